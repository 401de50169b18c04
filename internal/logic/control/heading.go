package control

import (
	"math"

	"github.com/felixge/pidctrl"
)

// DefaultHeadingGain scales heading drift into wheel power during straight moves.
const DefaultHeadingGain = 16

// HeadingHold is a proportional-only controller that nulls yaw drift while
// driving straight. The correction grows with commanded power so that the
// same gain works at every speed.
type HeadingHold struct {
	pid   *pidctrl.PIDController
	speed float64
}

// NewHeadingHold creates a heading hold for the given gain and commanded
// speed (sign of travel is irrelevant: backward travel mirrors both the
// power and the correction).
func NewHeadingHold(gain float64, speed int) *HeadingHold {
	pid := pidctrl.NewPIDController(gain, 0, 0).
		SetOutputLimits(math.Inf(-1), math.Inf(1)).
		Set(0)
	return &HeadingHold{
		pid:   pid,
		speed: math.Abs(float64(speed)),
	}
}

// Correction returns the power to subtract from the left wheel and add to
// the right wheel for the given yaw (degrees from the heading reference).
func (h *HeadingHold) Correction(yaw float64) float64 {
	return -h.pid.Update(h.speed * (yaw / 180))
}

// StraightPowers applies a heading correction to a signed power.
func StraightPowers(power int, correction float64) (left, right int) {
	return power - int(correction), power + int(correction)
}

// DifferentialPowers applies a line-follow correction to a base speed.
func DifferentialPowers(speed int, correction float64) (left, right int) {
	return speed + int(correction), speed - int(correction)
}
