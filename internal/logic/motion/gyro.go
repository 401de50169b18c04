package motion

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/logic/control"
	"github.com/cjeanneret/RoverGo/internal/logic/sensing"
)

// GyroTurn pivots until the absolute yaw reaches degrees. Full power until
// the threshold is crossed, then a hard stop. The heading reference is
// zeroed before and after.
func (c *Controller) GyroTurn(ctx context.Context, degrees float64, pivot, side control.Alignment, speed int) error {
	left, right, err := turnSpeeds(pivot, side, speed)
	if err != nil {
		return fmt.Errorf("gyro turn: %w", err)
	}
	debug.Verbose("gyro_turn: %.1f° pivot=%v side=%v -> (%d, %d)", degrees, pivot, side, left, right)
	return c.withHeadingReference("gyro_turn", func() error {
		return c.driveUntil(ctx, "gyro_turn", left, right, func() (bool, error) {
			yaw, err := c.heading.Yaw()
			if err != nil {
				return false, err
			}
			return math.Abs(yaw) >= degrees, nil
		})
	})
}

// GyroTurnTillColor pivots until the sensor on port sees color.
func (c *Controller) GyroTurnTillColor(ctx context.Context, pivot, side control.Alignment, port Port, color sensing.Color, speed int) error {
	left, right, err := turnSpeeds(pivot, side, speed)
	if err != nil {
		return fmt.Errorf("gyro turn till color: %w", err)
	}
	s, err := c.sensor(port)
	if err != nil {
		return fmt.Errorf("gyro turn till color: %w", err)
	}
	pred, err := c.Predicate(color)
	if err != nil {
		return fmt.Errorf("gyro turn till color: %w", err)
	}
	return c.withHeadingReference("gyro_turn_till_color", func() error {
		return c.driveUntil(ctx, "gyro_turn_till_color", left, right, func() (bool, error) {
			r, err := s.Read()
			if err != nil {
				return false, err
			}
			return pred(r), nil
		})
	})
}

// GyroMove drives straight for secs seconds, nulling yaw drift with a
// proportional heading hold. Speed must not be negative; dir gives the sign.
func (c *Controller) GyroMove(ctx context.Context, secs float64, speed int, dir control.Direction) error {
	if err := checkDirection(dir); err != nil {
		return fmt.Errorf("gyro move: %w", err)
	}
	if speed < 0 {
		return fmt.Errorf("gyro move: %w: %d", ErrNegativeSpeed, speed)
	}
	power := dir.Sign() * speed
	hold := control.NewHeadingHold(c.opts.HeadingGain, speed)

	return c.withHeadingReference("gyro_move", func() error {
		end := c.opts.Clock.Now().Add(seconds(secs))
		l := c.newLoop("gyro_move")
		for {
			if err := l.next(ctx); err != nil {
				return l.abort(err)
			}
			if !c.opts.Clock.Now().Before(end) {
				return l.finish()
			}
			yaw, err := c.heading.Yaw()
			if err != nil {
				return l.abort(fmt.Errorf("gyro_move: read yaw: %w", err))
			}
			left, right := control.StraightPowers(power, hold.Correction(yaw))
			if err := c.drive(left, right); err != nil {
				return l.abort(fmt.Errorf("gyro_move: %w", err))
			}
		}
	})
}

// withHeadingReference zeroes the heading reference around fn.
func (c *Controller) withHeadingReference(name string, fn func() error) error {
	if err := c.heading.ResetYaw(); err != nil {
		return fmt.Errorf("%s: reset yaw: %w", name, err)
	}
	err := fn()
	if rerr := c.heading.ResetYaw(); rerr != nil {
		return errors.Join(err, fmt.Errorf("%s: reset yaw: %w", name, rerr))
	}
	return err
}

func turnSpeeds(pivot, side control.Alignment, speed int) (int, int, error) {
	switch pivot {
	case control.Left, control.Right, control.Center:
	default:
		return 0, 0, fmt.Errorf("%w: pivot %v", control.ErrUnknownAlignment, pivot)
	}
	if side != control.Left && side != control.Right {
		return 0, 0, fmt.Errorf("%w: side %v", control.ErrUnknownAlignment, side)
	}
	l, r := control.TurnSpeeds(pivot, side, speed)
	return l, r, nil
}
