package motion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/RoverGo/internal/debug"
)

// loop is one poll-check-act cycle. Each call to next is a suspension
// point: it observes cancellation, the optional pacing ticker and the
// optional watchdog before the caller polls its sensors.
type loop struct {
	c          *Controller
	name       string
	start      time.Time
	ticker     *time.Ticker
	iterations int
}

func (c *Controller) newLoop(name string) *loop {
	l := &loop{c: c, name: name}
	if c.opts.Watchdog > 0 {
		l.start = c.opts.Clock.Now()
	}
	if c.opts.PollInterval > 0 {
		l.ticker = time.NewTicker(c.opts.PollInterval)
	}
	debug.Live("Loop %s: started", name)
	return l
}

func (l *loop) next(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.ticker != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.ticker.C:
		}
	}
	if wd := l.c.opts.Watchdog; wd > 0 && l.c.opts.Clock.Now().Sub(l.start) >= wd {
		return fmt.Errorf("%w: %s after %v", ErrWatchdog, l.name, wd)
	}
	l.iterations++
	return nil
}

// finish stops the base after the stop condition fired.
func (l *loop) finish() error {
	l.close()
	debug.Loop(l.name, l.iterations, "stop condition")
	if err := l.c.base.Stop(); err != nil {
		return fmt.Errorf("%s: stop base: %w", l.name, err)
	}
	return nil
}

// abort stops the base and returns err, joined with any stop failure.
func (l *loop) abort(err error) error {
	l.close()
	debug.Loop(l.name, l.iterations, err.Error())
	if serr := l.c.base.Stop(); serr != nil {
		return errors.Join(err, fmt.Errorf("%s: stop base: %w", l.name, serr))
	}
	return err
}

func (l *loop) close() {
	if l.ticker != nil {
		l.ticker.Stop()
		l.ticker = nil
	}
}
