package colorsensor

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/cjeanneret/RoverGo/internal/logic/sensing"
)

const addr = DefaultAddr

func initOps() []i2ctest.IO {
	return []i2ctest.IO{
		{Addr: addr, W: []byte{0x92}, R: []byte{idTCS34725}}, // ID
		{Addr: addr, W: []byte{0x81, 0xF6}},                  // ATIME, 10 cycles
		{Addr: addr, W: []byte{0x8F, 0x00}},                  // gain 1x
		{Addr: addr, W: []byte{0x80, 0x01}},                  // PON
		{Addr: addr, W: []byte{0x80, 0x03}},                  // PON | AEN
	}
}

func sample(c, r, g, b uint16) i2ctest.IO {
	return i2ctest.IO{Addr: addr, W: []byte{0xB4}, R: []byte{
		byte(c), byte(c >> 8),
		byte(r), byte(r >> 8),
		byte(g), byte(g >> 8),
		byte(b), byte(b >> 8),
	}}
}

func TestRead(t *testing.T) {
	tests := []struct {
		name       string
		io         i2ctest.IO
		wantReflex int
		wantColor  sensing.Color
	}{
		{"black line", sample(1000, 300, 300, 300), 9, sensing.Black},
		{"line edge", sample(5120, 1700, 1700, 1700), 50, sensing.None},
		{"white mat", sample(9000, 3000, 3000, 3000), 87, sensing.White},
		{"green marker", sample(5000, 100, 400, 150), 48, sensing.Green},
		{"saturated", sample(65535, 20000, 20000, 20000), 100, sensing.White},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb := &i2ctest.Playback{Ops: append(initOps(), tt.io), DontPanic: true}
			defer pb.Close()

			dev, err := NewI2C(pb, addr, "A", nil)
			if err != nil {
				t.Fatal(err)
			}
			got, err := dev.Read()
			if err != nil {
				t.Fatal(err)
			}
			if got.Reflected != tt.wantReflex || got.Color != tt.wantColor {
				t.Errorf("Read() = %v, want %d%%/%s", got, tt.wantReflex, tt.wantColor)
			}
		})
	}
}

func TestNewI2C_Options(t *testing.T) {
	ops := []i2ctest.IO{
		{Addr: addr, W: []byte{0x92}, R: []byte{idTCS34727}},
		{Addr: addr, W: []byte{0x81, 0x00}}, // 256 cycles
		{Addr: addr, W: []byte{0x8F, 0x02}}, // gain 16x
		{Addr: addr, W: []byte{0x80, 0x01}},
		{Addr: addr, W: []byte{0x80, 0x03}},
		sample(2000, 500, 500, 500),
	}
	pb := &i2ctest.Playback{Ops: ops, DontPanic: true}
	defer pb.Close()

	dev, err := NewI2C(pb, addr, "B", &Opts{IntegrationCycles: 256, Gain: Gain16x, WhiteClear: 4000})
	if err != nil {
		t.Fatal(err)
	}
	got, err := dev.Read()
	if err != nil {
		t.Fatal(err)
	}
	if got.Reflected != 50 {
		t.Errorf("Reflected = %d, want 50 against white calibration", got.Reflected)
	}
}

func TestNewI2C_WrongDevice(t *testing.T) {
	pb := &i2ctest.Playback{Ops: []i2ctest.IO{{Addr: addr, W: []byte{0x92}, R: []byte{0x10}}}, DontPanic: true}
	defer pb.Close()

	if _, err := NewI2C(pb, addr, "A", nil); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("err = %v, want ErrUnknownDevice", err)
	}
}

func TestNewI2C_BadOptions(t *testing.T) {
	pb := &i2ctest.Playback{DontPanic: true}
	if _, err := NewI2C(pb, addr, "A", &Opts{IntegrationCycles: 300}); err == nil {
		t.Error("expected error for 300 cycles")
	}
	if _, err := NewI2C(pb, addr, "A", &Opts{Gain: Gain(9)}); err == nil {
		t.Error("expected error for invalid gain")
	}
}

func TestRead_BusError(t *testing.T) {
	// no sample op queued: the playback bus fails the read
	pb := &i2ctest.Playback{Ops: initOps(), DontPanic: true}
	dev, err := NewI2C(pb, addr, "A", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dev.Read(); err == nil {
		t.Error("expected read error")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		raw     RGBC
		reflect int
		want    sensing.Color
	}{
		{"too dark for hue", RGBC{R: 10, G: 200, B: 10}, 5, sensing.Black},
		{"no signal", RGBC{}, 40, sensing.Black},
		{"grey", RGBC{R: 100, G: 110, B: 105}, 50, sensing.None},
		{"red", RGBC{R: 400, G: 80, B: 80}, 40, sensing.Red},
		{"yellow", RGBC{R: 400, G: 380, B: 60}, 60, sensing.Yellow},
		{"blue", RGBC{R: 60, G: 120, B: 400}, 30, sensing.Blue},
		{"magenta", RGBC{R: 300, G: 60, B: 400}, 30, sensing.None},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.raw, tt.reflect); got != tt.want {
				t.Errorf("Classify(%+v, %d) = %s, want %s", tt.raw, tt.reflect, got, tt.want)
			}
		})
	}
}

func TestReflectance(t *testing.T) {
	if got := Reflectance(100, 0); got != 0 {
		t.Errorf("zero white = %d", got)
	}
	if got := Reflectance(2560, 10240); got != 25 {
		t.Errorf("Reflectance(2560) = %d, want 25", got)
	}
}
