package colorsensor

import (
	"math"

	"github.com/cjeanneret/RoverGo/internal/logic/sensing"
)

// Classification bounds.
const (
	darkBelow      = 30  // reflectance under which unsaturated light is black
	brightAbove    = 70  // reflectance over which unsaturated light is white
	greyMax        = 0.2 // saturation under which light is unsaturated
	minColorSignal = 8   // reflectance under which hue is noise
)

// Reflectance scales clear channel count c against the white calibration count to
// a 0..100 percentage.
func Reflectance(c uint16, white float64) int {
	if white <= 0 {
		return 0
	}
	p := int(float64(c) / white * 100)
	if p > 100 {
		return 100
	}
	return p
}

// Classify maps raw RGB counts and their reflectance to a discrete colour.
func Classify(raw RGBC, reflected int) sensing.Color {
	if reflected < minColorSignal {
		return sensing.Black
	}
	r, g, b := float64(raw.R), float64(raw.G), float64(raw.B)
	hi := math.Max(r, math.Max(g, b))
	lo := math.Min(r, math.Min(g, b))
	if hi == 0 {
		return sensing.Black
	}
	if (hi-lo)/hi < greyMax {
		switch {
		case reflected < darkBelow:
			return sensing.Black
		case reflected > brightAbove:
			return sensing.White
		default:
			return sensing.None
		}
	}
	switch h := hue(r, g, b, hi, lo); {
	case h < 20 || h >= 330:
		return sensing.Red
	case h < 70:
		return sensing.Yellow
	case h < 170:
		return sensing.Green
	case h < 260:
		return sensing.Blue
	default:
		return sensing.None
	}
}

// hue returns the HSV hue in degrees [0, 360).
func hue(r, g, b, hi, lo float64) float64 {
	d := hi - lo
	var h float64
	switch hi {
	case r:
		h = math.Mod((g-b)/d, 6)
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	h *= 60
	if h < 0 {
		h += 360
	}
	return h
}
