package imu

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"
)

const addr = DefaultAddr

func headingIO(deg float64) i2ctest.IO {
	raw := uint16(int16(deg * lsbPerDegree))
	return i2ctest.IO{Addr: addr, W: []byte{regEulHeading}, R: []byte{byte(raw), byte(raw >> 8)}}
}

func initOps(refDeg float64) []i2ctest.IO {
	return []i2ctest.IO{
		{Addr: addr, W: []byte{regChipID}, R: []byte{chipID}},
		{Addr: addr, W: []byte{regOprMode, modeConfig}},
		{Addr: addr, W: []byte{regOprMode, modeIMU}},
		headingIO(refDeg),
	}
}

func TestYaw_RelativeToReference(t *testing.T) {
	ops := append(initOps(350),
		headingIO(20),  // +30 across north
		headingIO(260), // -90
		headingIO(100), // reset reference
		headingIO(55),  // -45 from the new reference
	)
	pb := &i2ctest.Playback{Ops: ops, DontPanic: true}
	defer pb.Close()

	dev, err := NewI2C(pb, addr)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []float64{30, -90} {
		got, err := dev.Yaw()
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("Yaw() = %v, want %v", got, want)
		}
	}
	if err := dev.ResetYaw(); err != nil {
		t.Fatal(err)
	}
	if got, _ := dev.Yaw(); got != -45 {
		t.Errorf("Yaw() after reset = %v, want -45", got)
	}
}

func TestYaw_FractionalDegrees(t *testing.T) {
	pb := &i2ctest.Playback{Ops: append(initOps(0), headingIO(12.5)), DontPanic: true}
	defer pb.Close()

	dev, err := NewI2C(pb, addr)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := dev.Yaw(); got != 12.5 {
		t.Errorf("Yaw() = %v, want 12.5", got)
	}
}

func TestNewI2C_WrongChip(t *testing.T) {
	pb := &i2ctest.Playback{Ops: []i2ctest.IO{{Addr: addr, W: []byte{regChipID}, R: []byte{0x55}}}, DontPanic: true}
	defer pb.Close()
	if _, err := NewI2C(pb, addr); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("err = %v, want ErrUnknownDevice", err)
	}
}

func TestYaw_BusError(t *testing.T) {
	pb := &i2ctest.Playback{Ops: initOps(0), DontPanic: true}
	dev, err := NewI2C(pb, addr)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dev.Yaw(); err == nil {
		t.Error("expected read error")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0},
		{180, 180},
		{-180, 180},
		{190, -170},
		{-190, 170},
		{360, 0},
		{-350, 10},
		{725, 5},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
