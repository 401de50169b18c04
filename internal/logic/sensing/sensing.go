// Package sensing turns raw colour sensor readings into the two booleans
// the control loops stop on: "on a black line" and "on white background".
package sensing

import "fmt"

// Color is the discrete colour classification reported by a colour sensor.
type Color string

const (
	None   Color = "none"
	Black  Color = "black"
	White  Color = "white"
	Red    Color = "red"
	Yellow Color = "yellow"
	Green  Color = "green"
	Blue   Color = "blue"
)

// Reading is the instantaneous state of one colour sensor.
type Reading struct {
	Reflected int   // reflected light, percent 0-100
	Color     Color // discrete classification
}

func (r Reading) String() string {
	return fmt.Sprintf("%d%%/%s", r.Reflected, r.Color)
}

// Predicate reports whether a reading satisfies a stop condition.
type Predicate func(Reading) bool

// Default reflectance thresholds.
const (
	DefaultBlackBelow = 25
	DefaultWhiteAbove = 95
)

// Thresholds holds the reflectance cut-offs used together with the discrete
// colour classification. Both must agree for a match.
type Thresholds struct {
	BlackBelow int // black requires Reflected < BlackBelow
	WhiteAbove int // white requires Reflected > WhiteAbove
}

// DefaultThresholds returns the calibrated 25/95 thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{BlackBelow: DefaultBlackBelow, WhiteAbove: DefaultWhiteAbove}
}

// IsBlack reports whether r is on a black line.
func (t Thresholds) IsBlack(r Reading) bool {
	return r.Reflected < t.BlackBelow && r.Color == Black
}

// IsWhite reports whether r is on white background.
func (t Thresholds) IsWhite(r Reading) bool {
	return r.Reflected > t.WhiteAbove && r.Color == White
}

// IsBlack applies the default thresholds.
func IsBlack(r Reading) bool { return DefaultThresholds().IsBlack(r) }

// IsWhite applies the default thresholds.
func IsWhite(r Reading) bool { return DefaultThresholds().IsWhite(r) }
