// Package servo runs a Feetech STS bus servo as a position-counting
// attachment motor.
package servo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"

	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/logic/geometry"
)

var (
	// ErrOutOfRange is returned when a move would leave the single-turn range.
	ErrOutOfRange = errors.New("servo target out of range")
	// ErrNotSettled is returned when the servo misses its target in time.
	ErrNotSettled = errors.New("servo did not reach target")
)

// Actuator is the subset of a feetech.Servo used here.
type Actuator interface {
	Position(ctx context.Context) (int, error)
	SetPositionWithTime(ctx context.Context, position int, timeMs int) error
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
}

// Config tunes motion of the servo.
type Config struct {
	// MaxDegreesPerSec is the shaft speed at speed 100. 0 defaults to 360.
	MaxDegreesPerSec float64
	// Tolerance is the settle window in ticks. 0 defaults to 10.
	Tolerance int
	// Poll is the position sampling period while settling. 0 defaults to 20ms.
	Poll time.Duration
	// Grace is added to the planned move time before giving up. 0 defaults to 1s.
	Grace time.Duration
}

func (c *Config) defaults() {
	if c.MaxDegreesPerSec <= 0 {
		c.MaxDegreesPerSec = 360
	}
	if c.Tolerance <= 0 {
		c.Tolerance = 10
	}
	if c.Poll <= 0 {
		c.Poll = 20 * time.Millisecond
	}
	if c.Grace <= 0 {
		c.Grace = time.Second
	}
}

// Servo counts degrees from the position it had at start-up.
type Servo struct {
	a      Actuator
	cfg    Config
	origin int
	closer func() error
}

// New reads the start-up position and enables torque.
func New(ctx context.Context, a Actuator, cfg Config) (*Servo, error) {
	cfg.defaults()
	origin, err := a.Position(ctx)
	if err != nil {
		return nil, fmt.Errorf("servo: read origin: %w", err)
	}
	if err := a.Enable(ctx); err != nil {
		return nil, fmt.Errorf("servo: enable: %w", err)
	}
	debug.Verbose("Servo: origin %d ticks", origin)
	return &Servo{a: a, cfg: cfg, origin: origin}, nil
}

// Open connects to servo id on a Feetech STS bus.
func Open(ctx context.Context, port string, baud int, id int, cfg Config) (*Servo, error) {
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: baud,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus %s: %w", port, err)
	}
	return attach(ctx, feetech.NewServo(bus, id, nil), bus.Close, cfg)
}

// attach runs New and hands closer to the servo. closer runs at once when
// New fails.
func attach(ctx context.Context, a Actuator, closer func() error, cfg Config) (*Servo, error) {
	s, err := New(ctx, a, cfg)
	if err != nil {
		if cerr := closer(); cerr != nil {
			return nil, errors.Join(err, fmt.Errorf("servo: close bus: %w", cerr))
		}
		return nil, err
	}
	s.closer = closer
	return s, nil
}

// RunForDegrees turns by degrees at speed percent and waits until the
// position settles.
func (s *Servo) RunForDegrees(ctx context.Context, degrees float64, speed int) error {
	if speed <= 0 {
		return fmt.Errorf("servo: speed %d must be positive", speed)
	}
	if speed > 100 {
		speed = 100
	}
	cur, err := s.a.Position(ctx)
	if err != nil {
		return fmt.Errorf("servo: read position: %w", err)
	}
	target := cur + geometry.ServoTicksFromAngle(degrees)
	if target < 0 || target >= geometry.ServoTicksPerRev {
		return fmt.Errorf("%w: %d", ErrOutOfRange, target)
	}

	dps := s.cfg.MaxDegreesPerSec * float64(speed) / 100
	ms := int(math.Abs(degrees) / dps * 1000)
	debug.Verbose("Servo: %d -> %d in %d ms", cur, target, ms)
	if err := s.a.SetPositionWithTime(ctx, target, ms); err != nil {
		return fmt.Errorf("servo: set position: %w", err)
	}
	return s.settle(ctx, target, time.Duration(ms)*time.Millisecond+s.cfg.Grace)
}

func (s *Servo) settle(ctx context.Context, target int, within time.Duration) error {
	deadline := time.NewTimer(within)
	defer deadline.Stop()
	tick := time.NewTicker(s.cfg.Poll)
	defer tick.Stop()

	for {
		pos, err := s.a.Position(ctx)
		if err != nil {
			return fmt.Errorf("servo: read position: %w", err)
		}
		if d := pos - target; d <= s.cfg.Tolerance && d >= -s.cfg.Tolerance {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: at %d, want %d", ErrNotSettled, pos, target)
		case <-tick.C:
		}
	}
}

// DegreesCounted returns the angle from the start-up position.
func (s *Servo) DegreesCounted() (int, error) {
	pos, err := s.a.Position(context.Background())
	if err != nil {
		return 0, fmt.Errorf("servo: read position: %w", err)
	}
	return geometry.ServoAngleFromTicks(pos - s.origin), nil
}

// Close releases torque and the bus.
func (s *Servo) Close() error {
	err := s.a.Disable(context.Background())
	if s.closer != nil {
		err = errors.Join(err, s.closer())
	}
	return err
}
