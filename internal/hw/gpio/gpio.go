package gpio

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/RoverGo/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates how a GPIO is driven.
type PinMode int

const (
	Input PinMode = iota
	Output
	PWM
)

func (m PinMode) String() string {
	switch m {
	case Input:
		return "input"
	case Output:
		return "output"
	case PWM:
		return "pwm"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	// SetFrequency sets the PWM clock of a pin set up as PWM.
	SetFrequency(pin int, hz int) error
	// WriteDuty sets the PWM duty cycle to duty/cycle.
	WriteDuty(pin int, duty, cycle uint32) error
	Close() error
}

// MockDriver is a test implementation that logs actions and remembers
// the last level and duty written to each pin.
// Used for development on PC or testing.
type MockDriver struct {
	mu     sync.Mutex
	levels map[int]Level
	duties map[int]float64
}

// NewDriver creates a GPIO driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return &MockDriver{}, nil
	}
	return NewRPiRealDriver()
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.levels == nil {
		m.levels = make(map[int]Level)
	}
	m.levels[pin] = level
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin], nil
}

func (m *MockDriver) SetFrequency(pin int, hz int) error {
	debug.GPIO("SetFrequency", pin, hz)
	return nil
}

func (m *MockDriver) WriteDuty(pin int, duty, cycle uint32) error {
	debug.GPIO("WriteDuty", pin, fmt.Sprintf("%d/%d", duty, cycle))
	if cycle == 0 {
		return fmt.Errorf("pin %d: zero PWM cycle", pin)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.duties == nil {
		m.duties = make(map[int]float64)
	}
	m.duties[pin] = float64(duty) / float64(cycle)
	return nil
}

// Duty returns the last duty ratio written to pin.
func (m *MockDriver) Duty(pin int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duties[pin]
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}
