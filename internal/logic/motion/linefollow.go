package motion

import (
	"context"
	"fmt"

	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/logic/control"
	"github.com/cjeanneret/RoverGo/internal/logic/sensing"
)

// stopFunc reports whether a loop should stop before its next command.
type stopFunc func() (bool, error)

// LineFollowTillColor follows the line with the sensor on port until the
// other sensor sees color.
func (c *Controller) LineFollowTillColor(ctx context.Context, port Port, align control.Alignment, speed int, color sensing.Color) error {
	b, err := c.Bind(port, align, color)
	if err != nil {
		return fmt.Errorf("line follow till color: %w", err)
	}
	return c.followLine(ctx, "line_follow_till_color", b, speed, func() (bool, error) {
		r, err := b.Stop.Read()
		if err != nil {
			return false, err
		}
		return b.StopWhen(r), nil
	})
}

// LineFollowOutOfColor follows the line with the sensor on port until the
// other sensor no longer sees color.
func (c *Controller) LineFollowOutOfColor(ctx context.Context, port Port, align control.Alignment, speed int, color sensing.Color) error {
	b, err := c.Bind(port, align, color)
	if err != nil {
		return fmt.Errorf("line follow out of color: %w", err)
	}
	return c.followLine(ctx, "line_follow_out_of_color", b, speed, func() (bool, error) {
		r, err := b.Stop.Read()
		if err != nil {
			return false, err
		}
		return !b.StopWhen(r), nil
	})
}

// LineFollowTimer follows the line with the sensor on port for secs seconds
// (truncated to whole milliseconds).
func (c *Controller) LineFollowTimer(ctx context.Context, port Port, align control.Alignment, speed int, secs float64) error {
	b, err := c.Bind(port, align, sensing.Black)
	if err != nil {
		return fmt.Errorf("line follow timer: %w", err)
	}
	end := c.opts.Clock.Now().Add(seconds(secs))
	return c.followLine(ctx, "line_follow_timer", b, speed, func() (bool, error) {
		return !c.opts.Clock.Now().Before(end), nil
	})
}

// followLine is the shared line-follow cycle. State is fresh for every call.
func (c *Controller) followLine(ctx context.Context, name string, b Binding, speed int, done stopFunc) error {
	var st control.LineState
	debug.Verbose("%s: sign=%d speed=%d", name, b.Sign, speed)

	l := c.newLoop(name)
	for {
		if err := l.next(ctx); err != nil {
			return l.abort(err)
		}
		stop, err := done()
		if err != nil {
			return l.abort(fmt.Errorf("%s: read stop condition: %w", name, err))
		}
		if stop {
			return l.finish()
		}
		r, err := b.Active.Read()
		if err != nil {
			return l.abort(fmt.Errorf("%s: read line sensor: %w", name, err))
		}
		correction := c.follower.Correction(float64(r.Reflected), b.Sign, &st)
		left, right := control.DifferentialPowers(speed, correction)
		if err := c.drive(left, right); err != nil {
			return l.abort(fmt.Errorf("%s: %w", name, err))
		}
	}
}

// DriveTillColor drives both wheels at speed, without line correction,
// until the sensor on port sees color.
func (c *Controller) DriveTillColor(ctx context.Context, port Port, speed int, color sensing.Color) error {
	s, err := c.sensor(port)
	if err != nil {
		return fmt.Errorf("drive till color: %w", err)
	}
	pred, err := c.Predicate(color)
	if err != nil {
		return fmt.Errorf("drive till color: %w", err)
	}
	return c.driveUntil(ctx, "drive_till_color", speed, speed, func() (bool, error) {
		r, err := s.Read()
		if err != nil {
			return false, err
		}
		return pred(r), nil
	})
}

// driveUntil commands a fixed differential once, then polls done.
func (c *Controller) driveUntil(ctx context.Context, name string, left, right int, done stopFunc) error {
	if err := c.drive(left, right); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	l := c.newLoop(name)
	for {
		if err := l.next(ctx); err != nil {
			return l.abort(err)
		}
		stop, err := done()
		if err != nil {
			return l.abort(fmt.Errorf("%s: %w", name, err))
		}
		if stop {
			return l.finish()
		}
	}
}
