// Package colorsensor reads a TCS34725 RGB-clear light sensor over I²C and
// turns raw counts into a reflectance percentage and a discrete colour.
package colorsensor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/logic/sensing"
)

// DefaultAddr is the fixed I²C address of the TCS3472x family.
const DefaultAddr uint16 = 0x29

const (
	cmdBit      byte = 0x80
	cmdAutoIncr byte = 0x20

	regEnable  byte = 0x00
	regATime   byte = 0x01
	regControl byte = 0x0F
	regID      byte = 0x12
	regCData   byte = 0x14

	enablePON byte = 0x01
	enableAEN byte = 0x02

	idTCS34725 byte = 0x44
	idTCS34727 byte = 0x4D
)

// Gain is the analog gain of the RGBC channels.
type Gain byte

const (
	Gain1x Gain = iota
	Gain4x
	Gain16x
	Gain60x
)

// ErrUnknownDevice is returned when the ID register does not match a TCS34725.
var ErrUnknownDevice = errors.New("tcs34725: unexpected device id")

// Opts represents configurable options for the TCS34725.
type Opts struct {
	// IntegrationCycles is the number of 2.4 ms ADC cycles, 1..256.
	// 0 defaults to 10 (24 ms).
	IntegrationCycles int
	Gain              Gain
	// WhiteClear is the clear count read over the white calibration
	// surface. 0 uses the full scale of the integration time.
	WhiteClear uint16
}

// Dev represents a TCS34725 sensor.
type Dev struct {
	d     *i2c.Dev
	mu    sync.Mutex
	name  string
	white float64
}

// NewI2C returns an initialised, enabled sensor.
func NewI2C(b i2c.Bus, addr uint16, name string, opts *Opts) (*Dev, error) {
	o := Opts{}
	if opts != nil {
		o = *opts
	}
	if o.IntegrationCycles <= 0 {
		o.IntegrationCycles = 10
	}
	if o.IntegrationCycles > 256 {
		return nil, fmt.Errorf("tcs34725: integration cycles %d out of range", o.IntegrationCycles)
	}
	if o.Gain > Gain60x {
		return nil, fmt.Errorf("tcs34725: invalid gain %d", o.Gain)
	}
	white := float64(o.WhiteClear)
	if white == 0 {
		white = float64(fullScale(o.IntegrationCycles))
	}

	dev := &Dev{d: &i2c.Dev{Bus: b, Addr: addr}, name: name, white: white}
	if err := dev.start(o); err != nil {
		return nil, err
	}
	return dev, nil
}

func (dev *Dev) start(o Opts) error {
	debug.I2C(dev.name, dev.d.Addr, regID)
	id := make([]byte, 1)
	if err := dev.d.Tx([]byte{cmdBit | regID}, id); err != nil {
		return fmt.Errorf("tcs34725 %s: read id: %w", dev.name, err)
	}
	if id[0] != idTCS34725 && id[0] != idTCS34727 {
		return fmt.Errorf("%w 0x%02x", ErrUnknownDevice, id[0])
	}
	writes := [][]byte{
		{cmdBit | regATime, byte(256 - o.IntegrationCycles)},
		{cmdBit | regControl, byte(o.Gain)},
		{cmdBit | regEnable, enablePON},
	}
	for _, w := range writes {
		if err := dev.d.Tx(w, nil); err != nil {
			return fmt.Errorf("tcs34725 %s: configure: %w", dev.name, err)
		}
	}
	// oscillator warm-up after power on
	time.Sleep(3 * time.Millisecond)
	if err := dev.d.Tx([]byte{cmdBit | regEnable, enablePON | enableAEN}, nil); err != nil {
		return fmt.Errorf("tcs34725 %s: enable: %w", dev.name, err)
	}
	return nil
}

// RGBC holds one raw sample of the four channels.
type RGBC struct {
	C, R, G, B uint16
}

// ReadRaw returns the latest raw channel counts.
func (dev *Dev) ReadRaw() (RGBC, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	debug.I2C(dev.name, dev.d.Addr, regCData)
	buf := make([]byte, 8)
	if err := dev.d.Tx([]byte{cmdBit | cmdAutoIncr | regCData}, buf); err != nil {
		return RGBC{}, fmt.Errorf("tcs34725 %s: read: %w", dev.name, err)
	}
	return RGBC{
		C: binary.LittleEndian.Uint16(buf[0:]),
		R: binary.LittleEndian.Uint16(buf[2:]),
		G: binary.LittleEndian.Uint16(buf[4:]),
		B: binary.LittleEndian.Uint16(buf[6:]),
	}, nil
}

// Read returns the reflectance in percent of the white calibration and the
// classified colour.
func (dev *Dev) Read() (sensing.Reading, error) {
	raw, err := dev.ReadRaw()
	if err != nil {
		return sensing.Reading{}, err
	}
	r := Reflectance(raw.C, dev.white)
	return sensing.Reading{Reflected: r, Color: Classify(raw, r)}, nil
}

// Halt powers the sensor down.
func (dev *Dev) Halt() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.d.Tx([]byte{cmdBit | regEnable, 0}, nil)
}

func (dev *Dev) String() string {
	return fmt.Sprintf("tcs34725{%s}", dev.name)
}

// fullScale is the saturation count of the clear channel.
func fullScale(cycles int) int {
	n := cycles * 1024
	if n > 65535 {
		n = 65535
	}
	return n
}
