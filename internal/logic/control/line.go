package control

// Default line-follow calibration.
const (
	DefaultTargetLight = 58
	DefaultKp          = 0.25
	DefaultKd          = 1.0
	DefaultKi          = 0.001
)

// Gains configures the line-follow correction.
type Gains struct {
	Target   float64 // reflectance of the line edge
	Kp       float64
	Kd       float64
	Ki       float64
	Adaptive bool // use the full PID sum instead of the P term alone
}

// DefaultGains returns the calibrated gains with adaptive mode enabled.
func DefaultGains() Gains {
	return Gains{
		Target:   DefaultTargetLight,
		Kp:       DefaultKp,
		Kd:       DefaultKd,
		Ki:       DefaultKi,
		Adaptive: true,
	}
}

// LineState is the integrator/derivative memory of one line-follow loop.
// The zero value is the reset state; a loop owns its LineState exclusively.
type LineState struct {
	Integral  float64
	LastError float64
}

// Reset zeroes the state.
func (s *LineState) Reset() {
	s.Integral = 0
	s.LastError = 0
}

// LineFollower computes differential corrections from one reflectance value.
type LineFollower struct {
	Gains Gains
}

// NewLineFollower creates a follower with the given gains.
func NewLineFollower(g Gains) *LineFollower {
	return &LineFollower{Gains: g}
}

// Correction returns the differential correction for a reflectance reading.
// sign is +1 for a left-mounted sensor and -1 for a right-mounted one.
// st is updated in place. The result is not clamped.
func (f *LineFollower) Correction(reflected float64, sign int, st *LineState) float64 {
	g := f.Gains
	err := reflected - g.Target
	derivative := err - st.LastError
	st.Integral += err
	st.LastError = err
	if g.Adaptive {
		return (g.Kp*err + g.Kd*derivative + g.Ki*st.Integral) * float64(sign)
	}
	return g.Kp * err * float64(sign)
}

// Sign maps an alignment to the correction polarity: Right is -1, anything else +1.
func Sign(a Alignment) int {
	if a == Right {
		return -1
	}
	return 1
}
