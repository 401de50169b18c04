// Package motor drives DC gear motors through an H-bridge (one PWM enable
// pin and two direction pins) and counts ticks of their encoder channel.
package motor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/hw/gpio"
)

// MaxPower is the magnitude of full forward or reverse power.
const MaxPower = 100

// ErrUnknownStopAction is returned for a stop action other than brake or coast.
var ErrUnknownStopAction = errors.New("unknown stop action")

// StopAction selects how a motor halts.
type StopAction int

const (
	Brake StopAction = iota // short both motor leads
	Coast                   // release both motor leads
)

func (a StopAction) String() string {
	if a == Coast {
		return "coast"
	}
	return "brake"
}

// ParseStopAction converts "brake" or "coast". Empty means brake.
func ParseStopAction(s string) (StopAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "brake":
		return Brake, nil
	case "coast":
		return Coast, nil
	default:
		return Brake, fmt.Errorf("%w: %q", ErrUnknownStopAction, s)
	}
}

// Config holds the wiring of one H-bridge channel.
type Config struct {
	Name       string
	PWMPin     int // hardware PWM pin (BCM)
	In1Pin     int
	In2Pin     int
	EncoderPin int  // 0 = no encoder
	Invert     bool // motor mounted mirrored
	// FrequencyHz is the PWM output frequency. 0 defaults to 1 kHz.
	FrequencyHz int
	// Cycle is the PWM range. 0 defaults to MaxPower.
	Cycle uint32
}

// DC is one H-bridge driven motor.
type DC struct {
	gpio  gpio.Driver
	cfg   Config
	power int

	ticks int
	last  gpio.Level
}

// Clamp limits power to [-MaxPower, MaxPower].
func Clamp(p int) int {
	if p > MaxPower {
		return MaxPower
	}
	if p < -MaxPower {
		return -MaxPower
	}
	return p
}

// NewDC sets up the pins of one motor and leaves it coasting.
func NewDC(g gpio.Driver, cfg Config) (*DC, error) {
	if cfg.FrequencyHz <= 0 {
		cfg.FrequencyHz = 1000
	}
	if cfg.Cycle == 0 {
		cfg.Cycle = MaxPower
	}
	if cfg.Name == "" {
		cfg.Name = fmt.Sprintf("motor@%d", cfg.PWMPin)
	}

	if err := g.SetupPin(cfg.PWMPin, gpio.PWM); err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Name, err)
	}
	// go-rpio divides the PWM clock by the cycle length
	if err := g.SetFrequency(cfg.PWMPin, cfg.FrequencyHz*int(cfg.Cycle)); err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Name, err)
	}
	for _, pin := range []int{cfg.In1Pin, cfg.In2Pin} {
		if err := g.SetupPin(pin, gpio.Output); err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Name, err)
		}
	}
	if cfg.EncoderPin > 0 {
		if err := g.SetupPin(cfg.EncoderPin, gpio.Input); err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Name, err)
		}
	}

	m := &DC{gpio: g, cfg: cfg}
	if err := m.Coast(); err != nil {
		return nil, err
	}
	return m, nil
}

// Name returns the configured motor name.
func (m *DC) Name() string { return m.cfg.Name }

// Power returns the last commanded power after clamping.
func (m *DC) Power() int { return m.power }

// SetPower runs the motor at p percent. Out-of-range values are clamped.
func (m *DC) SetPower(p int) error {
	p = Clamp(p)
	m.power = p
	if p == 0 {
		return m.Coast()
	}

	forward := p > 0
	if m.cfg.Invert {
		forward = !forward
	}
	duty := p
	if duty < 0 {
		duty = -duty
	}

	debug.Trace("%s: power %d", m.cfg.Name, p)
	if err := m.direction(gpio.Level(forward), gpio.Level(!forward)); err != nil {
		return err
	}
	return m.duty(uint32(duty) * m.cfg.Cycle / MaxPower)
}

// Brake shorts the motor leads.
func (m *DC) Brake() error {
	m.power = 0
	if err := m.direction(gpio.High, gpio.High); err != nil {
		return err
	}
	return m.duty(m.cfg.Cycle)
}

// Coast releases the motor leads.
func (m *DC) Coast() error {
	m.power = 0
	if err := m.duty(0); err != nil {
		return err
	}
	return m.direction(gpio.Low, gpio.Low)
}

// Stop halts the motor with action.
func (m *DC) Stop(action StopAction) error {
	if action == Coast {
		return m.Coast()
	}
	return m.Brake()
}

// PollEncoder samples the encoder channel once and returns the number of
// rising edges seen since the last reset.
func (m *DC) PollEncoder() (int, error) {
	if m.cfg.EncoderPin <= 0 {
		return 0, fmt.Errorf("%s: no encoder configured", m.cfg.Name)
	}
	l, err := m.gpio.ReadPin(m.cfg.EncoderPin)
	if err != nil {
		return m.ticks, fmt.Errorf("%s: read encoder: %w", m.cfg.Name, err)
	}
	if l == gpio.High && m.last == gpio.Low {
		m.ticks++
	}
	m.last = l
	return m.ticks, nil
}

// ResetEncoder zeroes the tick count.
func (m *DC) ResetEncoder() {
	m.ticks = 0
}

func (m *DC) direction(in1, in2 gpio.Level) error {
	if err := m.gpio.WritePin(m.cfg.In1Pin, in1); err != nil {
		return fmt.Errorf("%s: %w", m.cfg.Name, err)
	}
	if err := m.gpio.WritePin(m.cfg.In2Pin, in2); err != nil {
		return fmt.Errorf("%s: %w", m.cfg.Name, err)
	}
	return nil
}

func (m *DC) duty(d uint32) error {
	if err := m.gpio.WriteDuty(m.cfg.PWMPin, d, m.cfg.Cycle); err != nil {
		return fmt.Errorf("%s: %w", m.cfg.Name, err)
	}
	return nil
}
