package program

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/logic/control"
	"github.com/cjeanneret/RoverGo/internal/logic/motion"
	"github.com/cjeanneret/RoverGo/internal/logic/sensing"
)

// ErrNoAttachment is returned by arm and forklift steps when the
// attachment is not configured.
var ErrNoAttachment = errors.New("attachment not configured")

// Drive is the motion layer used by programs. *motion.Controller
// implements it.
type Drive interface {
	LineFollowTillColor(ctx context.Context, port motion.Port, align control.Alignment, speed int, color sensing.Color) error
	LineFollowOutOfColor(ctx context.Context, port motion.Port, align control.Alignment, speed int, color sensing.Color) error
	LineFollowTimer(ctx context.Context, port motion.Port, align control.Alignment, speed int, secs float64) error
	DriveTillColor(ctx context.Context, port motion.Port, speed int, color sensing.Color) error
	DriveDistance(ctx context.Context, cm float64, dir control.Direction, left, right int) error
	GyroTurn(ctx context.Context, degrees float64, pivot, side control.Alignment, speed int) error
	GyroTurnTillColor(ctx context.Context, pivot, side control.Alignment, port motion.Port, color sensing.Color, speed int) error
	GyroMove(ctx context.Context, secs float64, speed int, dir control.Direction) error
}

// Attachment is a mechanism moved up or down by an amount. *attach.Arm
// (degrees) and *attach.Forklift (cm) implement it. A zero speed selects
// the attachment default.
type Attachment interface {
	Up(ctx context.Context, amount float64, speed int) error
	Down(ctx context.Context, amount float64, speed int) error
}

// Defaults are the speeds used by steps that leave speed at 0.
type Defaults struct {
	Speed     int // line follow, drives and gyro moves
	TurnSpeed int // gyro turns
}

// DefaultDefaults returns speed 40 and turn speed 30.
func DefaultDefaults() Defaults {
	return Defaults{Speed: 40, TurnSpeed: 30}
}

// Options configures a Runner.
type Options struct {
	Arm      Attachment
	Forklift Attachment
	Defaults Defaults
	// Now is the time source of the run timing log. nil uses time.Now.
	Now func() time.Time
}

// Runner executes loaded programs, one at a time.
type Runner struct {
	drive    Drive
	opts     Options
	programs map[string]Program
	order    []string
	seq      Sequencer

	mu       sync.Mutex
	selected int // index into order of the next run
}

// NewRunner validates programs and prepares them for execution.
func NewRunner(drive Drive, programs []Program, opts Options) (*Runner, error) {
	if err := Validate(programs); err != nil {
		return nil, err
	}
	d := DefaultDefaults()
	if opts.Defaults.Speed <= 0 {
		opts.Defaults.Speed = d.Speed
	}
	if opts.Defaults.TurnSpeed <= 0 {
		opts.Defaults.TurnSpeed = d.TurnSpeed
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := &Runner{
		drive:    drive,
		opts:     opts,
		programs: make(map[string]Program, len(programs)),
	}
	for _, p := range programs {
		r.programs[p.Name] = p
		r.order = append(r.order, p.Name)
	}
	return r, nil
}

// Programs returns the loaded programs in configuration order.
func (r *Runner) Programs() []Program {
	out := make([]Program, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.programs[name])
	}
	return out
}

// Names returns the program names in configuration order.
func (r *Runner) Names() []string {
	return append([]string(nil), r.order...)
}

// Lookup returns the named program.
func (r *Runner) Lookup(name string) (Program, bool) {
	p, ok := r.programs[name]
	return p, ok
}

// State reports whether a program is running and which.
func (r *Runner) State() (State, string) {
	return r.seq.State()
}

// Selected returns the program run when no name is given, or "" when no
// program is loaded.
func (r *Runner) Selected() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.order) == 0 {
		return ""
	}
	return r.order[r.selected]
}

// Select makes name the selected program.
func (r *Runner) Select(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.order {
		if n == name {
			r.selected = i
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownProgram, name)
}

// Next advances the selection, wrapping after the last program, and
// returns the newly selected name.
func (r *Runner) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.order) == 0 {
		return ""
	}
	r.selected = (r.selected + 1) % len(r.order)
	return r.order[r.selected]
}

// Run executes the named program and blocks until it finishes, fails or
// ctx is cancelled. An empty name runs the selected program and then
// advances the selection.
func (r *Runner) Run(ctx context.Context, name string) error {
	p, advance, err := r.begin(name)
	if err != nil {
		return err
	}
	defer r.end(advance)
	return r.exec(ctx, p)
}

// Start checks and claims the sequencer synchronously, then runs the
// program in the background. It returns the name of the program started,
// which is the selected one when name is empty. The returned channel
// yields its result.
func (r *Runner) Start(ctx context.Context, name string) (string, <-chan error, error) {
	p, advance, err := r.begin(name)
	if err != nil {
		return "", nil, err
	}
	done := make(chan error, 1)
	go func() {
		defer close(done)
		err := r.exec(ctx, p)
		r.end(advance)
		done <- err
	}()
	return p.Name, done, nil
}

func (r *Runner) begin(name string) (Program, bool, error) {
	advance := name == ""
	if advance {
		name = r.Selected()
	}
	p, ok := r.programs[name]
	if !ok {
		return Program{}, false, fmt.Errorf("%w: %q", ErrUnknownProgram, name)
	}
	if err := r.seq.Begin(name); err != nil {
		return Program{}, false, err
	}
	return p, advance, nil
}

func (r *Runner) end(advance bool) {
	if advance {
		debug.Info("Next program: %s", r.Next())
	}
	if err := r.seq.End(); err != nil {
		debug.Error(err)
	}
}

func (r *Runner) exec(ctx context.Context, p Program) error {
	start := r.opts.Now()
	debug.Info("Program %s: %d steps", p.Name, len(p.Steps))
	defer func() {
		debug.Run(p.Name, start.UnixMilli(), r.opts.Now().UnixMilli())
	}()

	for i, s := range p.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		debug.Step(i+1, s.String())
		if err := r.step(ctx, s); err != nil {
			return stepError(p.Name, i, s, err)
		}
	}
	return nil
}

func (r *Runner) step(ctx context.Context, s Step) error {
	a, err := s.parse()
	if err != nil {
		return err
	}
	speed := pick(s.Speed, r.opts.Defaults.Speed)
	turn := pick(s.Speed, r.opts.Defaults.TurnSpeed)

	switch s.Op {
	case OpLineFollowTillColor:
		return r.drive.LineFollowTillColor(ctx, a.port, a.align, speed, a.color)
	case OpLineFollowOutOfColor:
		return r.drive.LineFollowOutOfColor(ctx, a.port, a.align, speed, a.color)
	case OpLineFollowTimer:
		return r.drive.LineFollowTimer(ctx, a.port, a.align, speed, s.Seconds)
	case OpDriveTillColor:
		return r.drive.DriveTillColor(ctx, a.port, speed, a.color)
	case OpDriveDistance:
		left := pick(s.LeftSpeed, speed)
		right := pick(s.RightSpeed, left)
		return r.drive.DriveDistance(ctx, s.Distance, a.direction, left, right)
	case OpGyroTurn:
		return r.drive.GyroTurn(ctx, s.Degrees, a.pivot, a.side, turn)
	case OpGyroTurnTillColor:
		return r.drive.GyroTurnTillColor(ctx, a.pivot, a.side, a.port, a.color, turn)
	case OpGyroMove:
		return r.drive.GyroMove(ctx, s.Seconds, speed, a.direction)
	case OpArmUp, OpArmDown:
		if r.opts.Arm == nil {
			return fmt.Errorf("arm: %w", ErrNoAttachment)
		}
		if s.Op == OpArmUp {
			return r.opts.Arm.Up(ctx, s.Degrees, s.Speed)
		}
		return r.opts.Arm.Down(ctx, s.Degrees, s.Speed)
	case OpForkliftUp, OpForkliftDown:
		if r.opts.Forklift == nil {
			return fmt.Errorf("forklift: %w", ErrNoAttachment)
		}
		if s.Op == OpForkliftUp {
			return r.opts.Forklift.Up(ctx, s.Distance, s.Speed)
		}
		return r.opts.Forklift.Down(ctx, s.Distance, s.Speed)
	case OpWait:
		return wait(ctx, time.Duration(s.Seconds*float64(time.Second)))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOp, s.Op)
	}
}

func pick(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
