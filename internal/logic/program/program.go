// Package program interprets missions: named lists of steps loaded from the
// configuration and executed one after another against the motion
// controller and the attachments.
package program

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cjeanneret/RoverGo/internal/logic/control"
	"github.com/cjeanneret/RoverGo/internal/logic/motion"
	"github.com/cjeanneret/RoverGo/internal/logic/sensing"
)

var (
	// ErrUnknownOp is returned for a step whose op is not recognised.
	ErrUnknownOp = errors.New("unknown step op")

	// ErrMissingParam is returned when a step lacks a required parameter.
	ErrMissingParam = errors.New("missing step parameter")

	// ErrUnknownProgram is returned when running a program that is not loaded.
	ErrUnknownProgram = errors.New("unknown program")
)

// Op names a step kind.
type Op string

const (
	OpLineFollowTillColor  Op = "line_follow_till_color"
	OpLineFollowOutOfColor Op = "line_follow_out_of_color"
	OpLineFollowTimer      Op = "line_follow_timer"
	OpDriveTillColor       Op = "drive_till_color"
	OpDriveDistance        Op = "drive_distance"
	OpGyroTurn             Op = "gyro_turn"
	OpGyroTurnTillColor    Op = "gyro_turn_till_color"
	OpGyroMove             Op = "gyro_move"
	OpArmUp                Op = "arm_up"
	OpArmDown              Op = "arm_down"
	OpForkliftUp           Op = "forklift_up"
	OpForkliftDown         Op = "forklift_down"
	OpWait                 Op = "wait"
)

// Program is a named mission.
type Program struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Steps       []Step `yaml:"steps"`
}

// Step is one call into the motion layer or an attachment. Only the fields
// the op needs are read; a zero speed means the configured default.
type Step struct {
	Op        Op     `yaml:"op"`
	Port      string `yaml:"port,omitempty"`      // A or B
	Align     string `yaml:"align,omitempty"`     // left or right edge of the line
	Pivot     string `yaml:"pivot,omitempty"`     // left, right or center
	Side      string `yaml:"side,omitempty"`      // left or right turn
	Direction string `yaml:"direction,omitempty"` // forward or backward
	Color     string `yaml:"color,omitempty"`     // black or white, default black

	Speed      int `yaml:"speed,omitempty"`
	LeftSpeed  int `yaml:"left_speed,omitempty"`
	RightSpeed int `yaml:"right_speed,omitempty"`

	Degrees  float64 `yaml:"degrees,omitempty"`
	Distance float64 `yaml:"distance,omitempty"` // cm
	Seconds  float64 `yaml:"seconds,omitempty"`
}

// param is a bit set of step parameters.
type param uint16

const (
	pPort param = 1 << iota
	pAlign
	pPivot
	pSide
	pDirection
	pColor
	pDegrees
	pDistance
	pSeconds
)

// ops lists the parameters each op reads. Degrees are optional for the arm.
var ops = map[Op]struct{ required, optional param }{
	OpLineFollowTillColor:  {required: pPort | pAlign, optional: pColor},
	OpLineFollowOutOfColor: {required: pPort | pAlign, optional: pColor},
	OpLineFollowTimer:      {required: pPort | pAlign | pSeconds},
	OpDriveTillColor:       {required: pPort, optional: pColor},
	OpDriveDistance:        {required: pDistance, optional: pDirection},
	OpGyroTurn:             {required: pDegrees | pPivot | pSide},
	OpGyroTurnTillColor:    {required: pPivot | pSide | pPort, optional: pColor},
	OpGyroMove:             {required: pSeconds, optional: pDirection},
	OpArmUp:                {optional: pDegrees},
	OpArmDown:              {optional: pDegrees},
	OpForkliftUp:           {required: pDistance},
	OpForkliftDown:         {required: pDistance},
	OpWait:                 {required: pSeconds},
}

// Ops returns the known op names.
func Ops() []Op {
	return []Op{
		OpLineFollowTillColor, OpLineFollowOutOfColor, OpLineFollowTimer,
		OpDriveTillColor, OpDriveDistance,
		OpGyroTurn, OpGyroTurnTillColor, OpGyroMove,
		OpArmUp, OpArmDown, OpForkliftUp, OpForkliftDown,
		OpWait,
	}
}

// args are the parsed parameters of a step.
type args struct {
	port      motion.Port
	align     control.Alignment
	pivot     control.Alignment
	side      control.Alignment
	direction control.Direction
	color     sensing.Color
}

// parse checks the step and converts its string parameters.
func (s Step) parse() (args, error) {
	sig, ok := ops[s.Op]
	if !ok {
		return args{}, fmt.Errorf("%w: %q", ErrUnknownOp, s.Op)
	}
	need := func(p param) bool { return sig.required&p != 0 }
	reads := func(p param) bool { return (sig.required|sig.optional)&p != 0 }

	a := args{direction: control.Forward, color: sensing.Black}
	var err error
	if need(pPort) {
		if a.port, err = motion.ParsePort(s.Port); err != nil {
			return args{}, err
		}
	}
	if need(pAlign) {
		if a.align, err = control.ParseAlignment(s.Align); err != nil {
			return args{}, fmt.Errorf("align: %w", err)
		}
	}
	if need(pPivot) {
		if a.pivot, err = control.ParseAlignment(s.Pivot); err != nil {
			return args{}, fmt.Errorf("pivot: %w", err)
		}
	}
	if need(pSide) {
		if a.side, err = control.ParseAlignment(s.Side); err != nil {
			return args{}, fmt.Errorf("side: %w", err)
		}
		if a.side == control.Center {
			return args{}, fmt.Errorf("side: %w: center", control.ErrUnknownAlignment)
		}
	}
	if reads(pDirection) && s.Direction != "" {
		if a.direction, err = control.ParseDirection(s.Direction); err != nil {
			return args{}, err
		}
	}
	if reads(pColor) && s.Color != "" {
		a.color = sensing.Color(strings.ToLower(strings.TrimSpace(s.Color)))
		if a.color != sensing.Black && a.color != sensing.White {
			return args{}, fmt.Errorf("%w: %q", motion.ErrUnknownColor, s.Color)
		}
	}
	if need(pDegrees) && s.Degrees == 0 {
		return args{}, fmt.Errorf("%w: degrees", ErrMissingParam)
	}
	if need(pDistance) && s.Distance == 0 {
		return args{}, fmt.Errorf("%w: distance", ErrMissingParam)
	}
	if s.Distance < 0 {
		return args{}, fmt.Errorf("distance %v must be positive, direction gives the sign", s.Distance)
	}
	if need(pSeconds) && s.Seconds <= 0 {
		return args{}, fmt.Errorf("%w: seconds", ErrMissingParam)
	}
	if s.Speed < 0 {
		return args{}, fmt.Errorf("speed %d must not be negative", s.Speed)
	}
	return a, nil
}

// String describes the step for logs.
func (s Step) String() string {
	var b strings.Builder
	b.WriteString(string(s.Op))
	add := func(k string, v any) { fmt.Fprintf(&b, " %s=%v", k, v) }
	if s.Port != "" {
		add("port", s.Port)
	}
	if s.Align != "" {
		add("align", s.Align)
	}
	if s.Pivot != "" {
		add("pivot", s.Pivot)
	}
	if s.Side != "" {
		add("side", s.Side)
	}
	if s.Direction != "" {
		add("direction", s.Direction)
	}
	if s.Color != "" {
		add("color", s.Color)
	}
	if s.Speed != 0 {
		add("speed", s.Speed)
	}
	if s.Degrees != 0 {
		add("degrees", s.Degrees)
	}
	if s.Distance != 0 {
		add("distance", s.Distance)
	}
	if s.Seconds != 0 {
		add("seconds", s.Seconds)
	}
	return b.String()
}

// Validate checks names and every step of programs.
func Validate(programs []Program) error {
	seen := make(map[string]bool, len(programs))
	for i, p := range programs {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("program %d: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("program %q: duplicate name", p.Name)
		}
		seen[p.Name] = true
		if len(p.Steps) == 0 {
			return fmt.Errorf("program %q: no steps", p.Name)
		}
		for j, s := range p.Steps {
			if _, err := s.parse(); err != nil {
				return stepError(p.Name, j, s, err)
			}
		}
	}
	return nil
}

func stepError(program string, i int, s Step, err error) error {
	return fmt.Errorf("program %q step %d (%s): %w", program, i+1, s.Op, err)
}
