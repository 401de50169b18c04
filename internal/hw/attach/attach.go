// Package attach drives the open-loop attachments of the rover: the arm and the
// forklift. Neither takes part in the feedback loops of the drive base.
package attach

import (
	"context"
	"fmt"

	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/logic/geometry"
)

// Motor is a position-counting auxiliary motor.
type Motor interface {
	// RunForDegrees turns by degrees (signed) at speed percent and blocks
	// until done.
	RunForDegrees(ctx context.Context, degrees float64, speed int) error
	// DegreesCounted is the angle turned since start-up.
	DegreesCounted() (int, error)
}

// Arm swings an attachment on one motor.
type Arm struct {
	m     Motor
	speed int
}

// NewArm creates an arm that moves at defaultSpeed when a step gives none.
func NewArm(m Motor, defaultSpeed int) *Arm {
	return &Arm{m: m, speed: defaultSpeed}
}

// Up raises the arm by degrees. Zero degrees moves by the angle counted so
// far.
func (a *Arm) Up(ctx context.Context, degrees float64, speed int) error {
	deg, err := a.degrees(degrees)
	if err != nil {
		return err
	}
	debug.Verbose("Arm: up %.0f° at %d", deg, a.pick(speed))
	return a.m.RunForDegrees(ctx, deg, a.pick(speed))
}

// Down lowers the arm by degrees. Zero degrees moves by the angle counted so
// far, which returns the arm to its start-up position.
func (a *Arm) Down(ctx context.Context, degrees float64, speed int) error {
	deg, err := a.degrees(degrees)
	if err != nil {
		return err
	}
	debug.Verbose("Arm: down %.0f° at %d", deg, a.pick(speed))
	return a.m.RunForDegrees(ctx, -deg, a.pick(speed))
}

func (a *Arm) degrees(d float64) (float64, error) {
	if d != 0 {
		return d, nil
	}
	n, err := a.m.DegreesCounted()
	if err != nil {
		return 0, fmt.Errorf("arm: degrees counted: %w", err)
	}
	return float64(n), nil
}

func (a *Arm) pick(speed int) int {
	if speed == 0 {
		return a.speed
	}
	return speed
}

// Forklift raises and lowers the lift on a worm drive.
type Forklift struct {
	m            Motor
	degreesPerCm float64
	speed        int
}

// NewForklift creates a forklift. degreesPerCm <= 0 uses the stock gearing.
func NewForklift(m Motor, degreesPerCm float64, defaultSpeed int) *Forklift {
	if degreesPerCm <= 0 {
		degreesPerCm = geometry.DefaultForkliftDegreesPerCm
	}
	return &Forklift{m: m, degreesPerCm: degreesPerCm, speed: defaultSpeed}
}

// Up lifts by cm. The lift motor runs backward to raise.
func (f *Forklift) Up(ctx context.Context, cm float64, speed int) error {
	return f.run(ctx, -cm, speed)
}

// Down lowers by cm.
func (f *Forklift) Down(ctx context.Context, cm float64, speed int) error {
	return f.run(ctx, cm, speed)
}

func (f *Forklift) run(ctx context.Context, cm float64, speed int) error {
	if speed == 0 {
		speed = f.speed
	}
	deg := float64(int(geometry.ForkliftDegrees(cm, f.degreesPerCm)))
	debug.Verbose("Forklift: %.1f cm -> %.0f° at %d", cm, deg, speed)
	return f.m.RunForDegrees(ctx, deg, speed)
}
