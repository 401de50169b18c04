// Package imu reads the fused heading of a Bosch BNO055 over I²C.
package imu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/cjeanneret/RoverGo/internal/debug"
)

// DefaultAddr is the BNO055 address with COM3 low.
const DefaultAddr uint16 = 0x28

const (
	regChipID     byte = 0x00
	regEulHeading byte = 0x1A
	regOprMode    byte = 0x3D

	chipID byte = 0xA0

	modeConfig byte = 0x00
	modeIMU    byte = 0x08 // accelerometer + gyroscope fusion, relative heading

	// switching into a fusion mode takes 7 ms, out of it 19 ms
	modeSwitchDelay = 20 * time.Millisecond

	lsbPerDegree = 16.0
)

// ErrUnknownDevice is returned when the chip ID does not match a BNO055.
var ErrUnknownDevice = errors.New("bno055: unexpected chip id")

// Dev represents a BNO055 used as a heading sensor.
type Dev struct {
	d   *i2c.Dev
	mu  sync.Mutex
	ref float64 // raw heading captured by ResetYaw
}

// NewI2C checks the chip ID and switches the sensor to IMU fusion mode.
// The heading reference is captured at start-up.
func NewI2C(b i2c.Bus, addr uint16) (*Dev, error) {
	dev := &Dev{d: &i2c.Dev{Bus: b, Addr: addr}}

	debug.I2C("bno055", addr, regChipID)
	id := make([]byte, 1)
	if err := dev.d.Tx([]byte{regChipID}, id); err != nil {
		return nil, fmt.Errorf("bno055: read chip id: %w", err)
	}
	if id[0] != chipID {
		return nil, fmt.Errorf("%w 0x%02x", ErrUnknownDevice, id[0])
	}
	if err := dev.setMode(modeConfig); err != nil {
		return nil, err
	}
	if err := dev.setMode(modeIMU); err != nil {
		return nil, err
	}
	if err := dev.ResetYaw(); err != nil {
		return nil, err
	}
	return dev, nil
}

func (dev *Dev) setMode(mode byte) error {
	if err := dev.d.Tx([]byte{regOprMode, mode}, nil); err != nil {
		return fmt.Errorf("bno055: set mode 0x%02x: %w", mode, err)
	}
	time.Sleep(modeSwitchDelay)
	return nil
}

// heading returns the raw Euler heading in degrees [0, 360).
func (dev *Dev) heading() (float64, error) {
	debug.I2C("bno055", dev.d.Addr, regEulHeading)
	buf := make([]byte, 2)
	if err := dev.d.Tx([]byte{regEulHeading}, buf); err != nil {
		return 0, fmt.Errorf("bno055: read heading: %w", err)
	}
	return float64(int16(binary.LittleEndian.Uint16(buf))) / lsbPerDegree, nil
}

// ResetYaw makes the current heading the zero reference.
func (dev *Dev) ResetYaw() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	h, err := dev.heading()
	if err != nil {
		return err
	}
	dev.ref = h
	return nil
}

// Yaw returns the heading relative to the reference in (-180, 180].
// Positive is clockwise seen from above.
func (dev *Dev) Yaw() (float64, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	h, err := dev.heading()
	if err != nil {
		return 0, err
	}
	return Normalize(h - dev.ref), nil
}

// Halt puts the sensor back in config mode.
func (dev *Dev) Halt() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.d.Tx([]byte{regOprMode, modeConfig}, nil)
}

func (dev *Dev) String() string {
	return "bno055"
}

// Normalize wraps an angle in degrees into (-180, 180].
func Normalize(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg > 180 {
		deg -= 360
	} else if deg <= -180 {
		deg += 360
	}
	return deg
}
