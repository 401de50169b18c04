package geometry

import "math"

// StepsCalculator converts output-shaft angles to stepper microsteps.
type StepsCalculator struct {
	stepsPerDegree float64
}

// NewStepsCalculator creates a step calculator for a motor with the given
// full steps per revolution and microstepping factor.
func NewStepsCalculator(stepsPerRev, microstepping int) *StepsCalculator {
	if microstepping <= 0 {
		microstepping = 1
	}
	microstepsPerRev := float64(stepsPerRev * microstepping)
	return &StepsCalculator{stepsPerDegree: microstepsPerRev / 360.0}
}

// StepsPerDegree returns the microstep density.
func (s *StepsCalculator) StepsPerDegree() float64 {
	return s.stepsPerDegree
}

// StepsFromAngle converts an angle (in degrees) to motor steps, truncated
// toward zero.
func (s *StepsCalculator) StepsFromAngle(angleDegrees float64) int {
	return int(angleDegrees * s.stepsPerDegree)
}

// AngleFromSteps converts a step count back to degrees, rounded to the
// nearest whole degree.
func (s *StepsCalculator) AngleFromSteps(steps int) int {
	if s.stepsPerDegree == 0 {
		return 0
	}
	return int(math.Round(float64(steps) / s.stepsPerDegree))
}
