// Package control holds the pure feedback laws used by the motion loops:
// the line-follow PID correction, pivot-turn speed resolution and the
// straight-line heading hold.
package control

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownAlignment is returned when an alignment name is not left, right or center.
	ErrUnknownAlignment = errors.New("unknown alignment")

	// ErrUnknownDirection is returned when a direction name is not forward or backward.
	ErrUnknownDirection = errors.New("unknown direction")
)

// Alignment is the side of the robot a sensor or pivot is associated with.
type Alignment int

const (
	Left Alignment = iota + 1
	Right
	Center
)

func (a Alignment) String() string {
	switch a {
	case Left:
		return "left"
	case Right:
		return "right"
	case Center:
		return "center"
	default:
		return fmt.Sprintf("alignment(%d)", int(a))
	}
}

// ParseAlignment converts "left", "right" or "center" (case-insensitive).
func ParseAlignment(s string) (Alignment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	case "center", "centre":
		return Center, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAlignment, s)
	}
}

// Direction is the sign of linear travel.
type Direction int

const (
	Forward Direction = iota + 1
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection converts "forward" or "backward" (case-insensitive).
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forward":
		return Forward, nil
	case "backward":
		return Backward, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDirection, s)
	}
}

// Sign returns +1 for Forward and -1 otherwise.
func (d Direction) Sign() int {
	if d == Forward {
		return 1
	}
	return -1
}
