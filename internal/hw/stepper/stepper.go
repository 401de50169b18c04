package stepper

import (
	"context"
	"fmt"
	"time"

	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/hw/gpio"
	"github.com/cjeanneret/RoverGo/internal/logic/geometry"
)

// Config holds the hardware configuration for a stepper motor.
type Config struct {
	Name          string
	StepPin       int
	DirPin        int
	EnablePin     int // A4988 ENABLE pin (BCM). 0 = not used. Active LOW (LOW=enabled).
	StepsPerRev   int
	Microstepping int
	// StepDelay is the half-cycle of the STEP pulse at full speed.
	// Total step = 2*StepDelay. Lower speeds stretch it proportionally.
	StepDelay time.Duration
}

// Stepper drives an A4988 and keeps count of the steps it issued.
// Acceleration, ramping, etc. can be added later.
type Stepper struct {
	gpio     gpio.Driver
	cfg      Config
	delay    time.Duration // delay between STEP pulse half-cycles at speed 100
	calc     *geometry.StepsCalculator
	position int // signed steps since start-up
}

// NewStepper creates a new stepper motor controller.
// cfg.StepDelay: if 0, defaults to 1ms.
func NewStepper(g gpio.Driver, cfg Config) *Stepper {
	_ = g.SetupPin(cfg.StepPin, gpio.Output)
	_ = g.SetupPin(cfg.DirPin, gpio.Output)

	delay := cfg.StepDelay
	if delay <= 0 {
		delay = 1 * time.Millisecond
	}
	if cfg.Name == "" {
		cfg.Name = fmt.Sprintf("stepper@%d", cfg.StepPin)
	}

	s := &Stepper{
		gpio:  g,
		cfg:   cfg,
		delay: delay,
		calc:  geometry.NewStepsCalculator(cfg.StepsPerRev, cfg.Microstepping),
	}

	// A4988 ENABLE: active LOW. LOW = enabled, HIGH = disabled.
	if cfg.EnablePin > 0 {
		_ = g.SetupPin(cfg.EnablePin, gpio.Output)
		_ = g.WritePin(cfg.EnablePin, gpio.Low) // enable by default
	}

	return s
}

// MoveSteps moves the motor by a number of steps (positive or negative) at
// full speed.
func (s *Stepper) MoveSteps(steps int) error {
	return s.move(context.Background(), steps, s.delay)
}

// RunForDegrees turns the output shaft by degrees at speed percent (1..100)
// of the full step rate. Cancelling ctx stops between two steps; the
// position keeps the steps actually issued.
func (s *Stepper) RunForDegrees(ctx context.Context, degrees float64, speed int) error {
	if speed <= 0 {
		return fmt.Errorf("%s: speed %d must be positive", s.cfg.Name, speed)
	}
	if speed > 100 {
		speed = 100
	}
	delay := s.delay * 100 / time.Duration(speed)
	return s.move(ctx, s.calc.StepsFromAngle(degrees), delay)
}

// DegreesCounted returns the shaft angle since start-up, in whole degrees.
func (s *Stepper) DegreesCounted() (int, error) {
	return s.calc.AngleFromSteps(s.position), nil
}

func (s *Stepper) move(ctx context.Context, steps int, delay time.Duration) error {
	if steps == 0 {
		return nil
	}

	var dirLevel gpio.Level
	var direction string
	sign := 1
	if steps > 0 {
		dirLevel = gpio.High
		direction = "forward"
	} else {
		dirLevel = gpio.Low
		direction = "backward"
		steps = -steps
		sign = -1
	}

	debug.Printf("%s: moving %d steps (%s) on pin %d", s.cfg.Name, steps, direction, s.cfg.StepPin)

	if err := s.gpio.WritePin(s.cfg.DirPin, dirLevel); err != nil {
		return err
	}

	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: stopped after %d of %d steps: %w", s.cfg.Name, i, steps, err)
		}
		if err := s.stepPulse(delay); err != nil {
			return err
		}
		s.position += sign
	}
	return nil
}

func (s *Stepper) stepPulse(delay time.Duration) error {
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.High); err != nil {
		return err
	}
	time.Sleep(delay)
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.Low); err != nil {
		return err
	}
	time.Sleep(delay)
	return nil
}

// Enable turns on the motor driver (A4988 ENABLE=LOW). Motors hold position.
func (s *Stepper) Enable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.Low)
}

// Disable turns off the motor driver (A4988 ENABLE=HIGH). Motors freewheel,
// no holding torque.
func (s *Stepper) Disable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.High)
}
