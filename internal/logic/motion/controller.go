// Package motion implements the reactive control loops of the drive base:
// line following, colour-terminated drives, gyro turns and gyro-held
// straight moves. It is the layer between programs (sequences of moves) and
// the hardware adapters.
package motion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/logic/control"
	"github.com/cjeanneret/RoverGo/internal/logic/sensing"
)

var (
	// ErrUnknownPort is returned when a sensor port is neither A nor B.
	ErrUnknownPort = errors.New("unknown sensor port")

	// ErrUnknownColor is returned when a stop colour is neither black nor white.
	ErrUnknownColor = errors.New("unknown stop color")

	// ErrWatchdog is returned when a loop exceeds the configured watchdog.
	ErrWatchdog = errors.New("watchdog expired")

	// ErrNegativeSpeed is returned when a speed is below zero. Direction
	// carries the sign.
	ErrNegativeSpeed = errors.New("speed must not be negative")
)

// Port identifies one of the two colour sensors.
type Port string

const (
	PortA Port = "A" // left sensor
	PortB Port = "B" // right sensor
)

// ParsePort converts "A" or "B" (case-insensitive).
func ParsePort(s string) (Port, error) {
	switch p := Port(strings.ToUpper(strings.TrimSpace(s))); p {
	case PortA, PortB:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPort, s)
	}
}

// Base is the differential drive actuator. Implementations clamp power to
// their hardware range; callers may pass values outside it.
type Base interface {
	// SetPower drives both wheels continuously until reissued or stopped.
	SetPower(left, right int) error
	// MoveDistance performs a bounded tank move and blocks until done.
	MoveDistance(ctx context.Context, cm float64, left, right int) error
	// Stop halts both wheels with the configured stop action.
	Stop() error
}

// ColorSensor returns the current reading of one reflectance sensor.
type ColorSensor interface {
	Read() (sensing.Reading, error)
}

// HeadingSensor reports yaw in degrees relative to its reference.
type HeadingSensor interface {
	ResetYaw() error
	Yaw() (float64, error)
}

// Clock is the time source of timed loops.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Options holds the read-only tuning of a Controller.
type Options struct {
	Gains       control.Gains
	Thresholds  sensing.Thresholds
	HeadingGain float64

	// Watchdog bounds every loop when > 0. Zero keeps loops unbounded.
	Watchdog time.Duration
	// PollInterval paces loop iterations when > 0. Zero is a tight poll.
	PollInterval time.Duration

	Clock Clock
}

// DefaultOptions returns the calibrated gains and thresholds with no
// watchdog and tight polling.
func DefaultOptions() Options {
	return Options{
		Gains:       control.DefaultGains(),
		Thresholds:  sensing.DefaultThresholds(),
		HeadingGain: control.DefaultHeadingGain,
		Clock:       SystemClock{},
	}
}

// Controller runs control loops against one drive base, two colour sensors
// and one heading sensor.
type Controller struct {
	base     Base
	sensors  map[Port]ColorSensor
	heading  HeadingSensor
	follower *control.LineFollower
	opts     Options
}

// NewController creates a controller. a and b are the sensors on ports A and B.
func NewController(base Base, a, b ColorSensor, heading HeadingSensor, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	return &Controller{
		base:     base,
		sensors:  map[Port]ColorSensor{PortA: a, PortB: b},
		heading:  heading,
		follower: control.NewLineFollower(opts.Gains),
		opts:     opts,
	}
}

// Options returns the controller tuning.
func (c *Controller) Options() Options {
	return c.opts
}

// DriveDistance drives a bounded distance in cm. Both speeds are negated
// for Backward.
func (c *Controller) DriveDistance(ctx context.Context, cm float64, dir control.Direction, left, right int) error {
	if err := checkDirection(dir); err != nil {
		return err
	}
	if dir != control.Forward {
		left, right = -left, -right
	}
	return c.base.MoveDistance(ctx, cm, left, right)
}

func (c *Controller) drive(left, right int) error {
	debug.Drive(left, right)
	return c.base.SetPower(left, right)
}

// seconds converts a float-seconds input to whole milliseconds.
func seconds(s float64) time.Duration {
	return time.Duration(int(s*1000)) * time.Millisecond
}

func checkDirection(d control.Direction) error {
	if d != control.Forward && d != control.Backward {
		return fmt.Errorf("%w: %v", control.ErrUnknownDirection, d)
	}
	return nil
}
