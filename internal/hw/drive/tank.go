// Package drive pairs two DC motors into a differential (tank) drive base.
package drive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/hw/motor"
	"github.com/cjeanneret/RoverGo/internal/logic/geometry"
)

// Wheel is one side of the drive base.
type Wheel interface {
	SetPower(p int) error
	Stop(action motor.StopAction) error
	PollEncoder() (int, error)
	ResetEncoder()
}

// Config tunes the drive base.
type Config struct {
	TicksPerCm float64
	StopAction motor.StopAction
	// EncoderPoll is the sampling period of distance moves. 0 samples
	// continuously.
	EncoderPoll time.Duration
}

// Tank drives a left and a right wheel.
type Tank struct {
	left, right Wheel
	cfg         Config
}

// NewTank creates a tank drive.
func NewTank(left, right Wheel, cfg Config) *Tank {
	return &Tank{left: left, right: right, cfg: cfg}
}

// SetPower runs both wheels until reissued or stopped. The motors clamp
// out-of-range power.
func (t *Tank) SetPower(left, right int) error {
	if err := t.left.SetPower(left); err != nil {
		return fmt.Errorf("left wheel: %w", err)
	}
	if err := t.right.SetPower(right); err != nil {
		return fmt.Errorf("right wheel: %w", err)
	}
	return nil
}

// Stop halts both wheels with the configured stop action.
func (t *Tank) Stop() error {
	return errors.Join(
		wrap("left wheel", t.left.Stop(t.cfg.StopAction)),
		wrap("right wheel", t.right.Stop(t.cfg.StopAction)),
	)
}

// MoveDistance drives cm at the given wheel powers and blocks until both
// wheels have covered their share of the distance. The faster wheel covers
// cm, the slower one its proportion; a wheel at zero power is done at once.
func (t *Tank) MoveDistance(ctx context.Context, cm float64, left, right int) error {
	if cm == 0 || (left == 0 && right == 0) {
		return nil
	}
	if t.cfg.TicksPerCm <= 0 {
		return errors.New("move distance: ticks per cm not configured")
	}
	lTarget, rTarget := shares(geometry.TicksForDistance(cm, t.cfg.TicksPerCm), motor.Clamp(left), motor.Clamp(right))
	debug.Verbose("Drive: %.1f cm at (%d, %d) -> ticks (%d, %d)", cm, left, right, lTarget, rTarget)

	t.left.ResetEncoder()
	t.right.ResetEncoder()
	if err := t.SetPower(left, right); err != nil {
		return errors.Join(err, t.Stop())
	}

	var ticker *time.Ticker
	if t.cfg.EncoderPoll > 0 {
		ticker = time.NewTicker(t.cfg.EncoderPoll)
		defer ticker.Stop()
	}

	lDone, rDone := lTarget == 0, rTarget == 0
	for !lDone || !rDone {
		if err := ctx.Err(); err != nil {
			return errors.Join(err, t.Stop())
		}
		if ticker != nil {
			select {
			case <-ctx.Done():
				return errors.Join(ctx.Err(), t.Stop())
			case <-ticker.C:
			}
		}
		if !lDone {
			n, err := t.left.PollEncoder()
			if err != nil {
				return errors.Join(err, t.Stop())
			}
			if lDone = n >= lTarget; lDone {
				if err := t.left.Stop(t.cfg.StopAction); err != nil {
					return errors.Join(wrap("left wheel", err), t.Stop())
				}
			}
		}
		if !rDone {
			n, err := t.right.PollEncoder()
			if err != nil {
				return errors.Join(err, t.Stop())
			}
			if rDone = n >= rTarget; rDone {
				if err := t.right.Stop(t.cfg.StopAction); err != nil {
					return errors.Join(wrap("right wheel", err), t.Stop())
				}
			}
		}
	}
	return t.Stop()
}

// shares splits a tick target between the wheels in proportion to power.
func shares(ticks, left, right int) (int, int) {
	l, r := abs(left), abs(right)
	fast := l
	if r > fast {
		fast = r
	}
	return ticks * l / fast, ticks * r / fast
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", what, err)
}
