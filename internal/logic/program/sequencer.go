package program

import (
	"errors"
	"fmt"
	"sync"
)

// ErrSequenceActive is returned when a program is started while another
// one is running.
var ErrSequenceActive = errors.New("a program is already running")

// State is the state of the Sequencer.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Sequencer guards the drive base so that a single program runs at a time.
// The zero value is Idle and ready to use.
type Sequencer struct {
	mu      sync.Mutex
	state   State
	current string
}

// Begin moves Idle -> Running for the named program.
func (s *Sequencer) Begin(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return fmt.Errorf("%w: %q", ErrSequenceActive, s.current)
	}
	s.state = Running
	s.current = name
	return nil
}

// End moves Running -> Idle. Ending an idle sequencer is an error.
func (s *Sequencer) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running {
		return fmt.Errorf("invalid transition: %s -> %s", s.state, Idle)
	}
	s.state = Idle
	s.current = ""
	return nil
}

// State returns the current state and the running program, if any.
func (s *Sequencer) State() (State, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.current
}
