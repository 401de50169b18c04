package geometry

import "math"

// ServoTicksPerRev is the resolution of a Feetech STS magnetic encoder.
const ServoTicksPerRev = 4096

// DefaultForkliftDegreesPerCm is the lift gearing: one motor quarter turn per cm.
const DefaultForkliftDegreesPerCm = 90

// ServoTicksFromAngle converts degrees to servo encoder ticks, truncated
// toward zero.
func ServoTicksFromAngle(degrees float64) int {
	return int(degrees * ServoTicksPerRev / 360)
}

// ServoAngleFromTicks converts servo ticks to whole degrees (rounded).
func ServoAngleFromTicks(ticks int) int {
	return int(math.Round(float64(ticks) * 360 / ServoTicksPerRev))
}

// TicksForDistance converts a travel distance to encoder ticks. Negative
// distances count the same as positive ones.
func TicksForDistance(cm, ticksPerCm float64) int {
	return int(math.Abs(cm) * ticksPerCm)
}

// ForkliftDegrees converts a lift height in cm to motor degrees.
func ForkliftDegrees(cm, degreesPerCm float64) float64 {
	return cm * degreesPerCm
}
