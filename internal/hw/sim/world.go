// Package sim is the off-robot stand-in for the rover hardware: a
// differential-drive kinematic model over a striped floor that serves as
// drive base, colour sensors, heading sensor and attachment motors.
package sim

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/hw/imu"
	"github.com/cjeanneret/RoverGo/internal/hw/motor"
	"github.com/cjeanneret/RoverGo/internal/logic/sensing"
)

// Config describes the simulated robot and floor.
type Config struct {
	MaxSpeedCmS   float64 // wheel speed at power 100
	TrackWidthCm  float64 // distance between the wheels
	SensorAheadCm float64 // sensors sit this far in front of the axle
	SensorApartCm float64 // lateral distance between sensors A and B

	StripeEveryCm float64 // black stripes across the y axis
	StripeWidthCm float64
	EdgeCm        float64 // width of the grey ramp on each stripe edge

	// RealTime makes distance moves and attachment moves take wall time.
	RealTime bool
	// Now is the time source. nil uses time.Now.
	Now func() time.Time
}

// DefaultConfig returns a small rover on a mat with a stripe every 50 cm.
func DefaultConfig() Config {
	return Config{
		MaxSpeedCmS:   40,
		TrackWidthCm:  12,
		SensorAheadCm: 6,
		SensorApartCm: 4,
		StripeEveryCm: 50,
		StripeWidthCm: 2,
		EdgeCm:        1,
		RealTime:      true,
	}
}

// Floor reflectances.
const (
	blackReflect = 8
	matReflect   = 97
)

// Pose is the state of the simulated robot.
type Pose struct {
	X, Y        float64 // cm
	Heading     float64 // degrees clockwise from +y
	Left, Right int     // commanded power
}

// World is the simulated robot.
type World struct {
	mu   sync.Mutex
	cfg  Config
	pose Pose
	last time.Time
	ref  float64 // heading reference for Yaw
}

// NewWorld places the robot at the origin facing +y.
func NewWorld(cfg Config) *World {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &World{cfg: cfg, last: cfg.Now()}
}

// Pose returns the current state.
func (w *World) Pose() Pose {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.advance()
	return w.pose
}

// advance integrates the kinematics up to now. Callers hold mu.
func (w *World) advance() {
	now := w.cfg.Now()
	dt := now.Sub(w.last).Seconds()
	w.last = now
	if dt > 0 {
		w.integrate(dt)
	}
}

func (w *World) integrate(dt float64) {
	vl := float64(w.pose.Left) / motor.MaxPower * w.cfg.MaxSpeedCmS
	vr := float64(w.pose.Right) / motor.MaxPower * w.cfg.MaxSpeedCmS
	v := (vl + vr) / 2
	if w.cfg.TrackWidthCm > 0 {
		omega := (vl - vr) / w.cfg.TrackWidthCm // rad/s, clockwise
		w.pose.Heading += omega * dt * 180 / math.Pi
	}
	h := w.pose.Heading * math.Pi / 180
	w.pose.X += v * math.Sin(h) * dt
	w.pose.Y += v * math.Cos(h) * dt
}

// SetPower drives both wheels. Power is clamped like the real motors.
func (w *World) SetPower(left, right int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.advance()
	w.pose.Left, w.pose.Right = motor.Clamp(left), motor.Clamp(right)
	return nil
}

// Stop halts both wheels.
func (w *World) Stop() error {
	return w.SetPower(0, 0)
}

// MoveDistance moves the faster wheel by cm. Without RealTime the move is
// applied at once.
func (w *World) MoveDistance(ctx context.Context, cm float64, left, right int) error {
	left, right = motor.Clamp(left), motor.Clamp(right)
	fast := math.Max(math.Abs(float64(left)), math.Abs(float64(right)))
	if cm == 0 || fast == 0 {
		return nil
	}
	d := time.Duration(math.Abs(cm) / (fast / motor.MaxPower * w.cfg.MaxSpeedCmS) * float64(time.Second))
	debug.Verbose("Sim: move %.1f cm at (%d, %d) for %v", cm, left, right, d)

	if !w.cfg.RealTime {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.advance()
		w.pose.Left, w.pose.Right = left, right
		w.integrate(d.Seconds())
		w.pose.Left, w.pose.Right = 0, 0
		return nil
	}

	if err := w.SetPower(left, right); err != nil {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		_ = w.Stop()
		return ctx.Err()
	case <-t.C:
	}
	return w.Stop()
}

// ResetYaw makes the current heading the zero reference.
func (w *World) ResetYaw() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.advance()
	w.ref = w.pose.Heading
	return nil
}

// Yaw returns the heading relative to the reference in (-180, 180].
func (w *World) Yaw() (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.advance()
	return imu.Normalize(w.pose.Heading - w.ref), nil
}

// Sensor returns the colour sensor on the left (A) or right (B) of the
// robot front.
func (w *World) Sensor(left bool) *Sensor {
	side := 1.0
	if left {
		side = -1
	}
	return &Sensor{w: w, lateral: side * w.cfg.SensorApartCm / 2}
}

// reflectAt samples the floor. Callers hold mu.
func (w *World) reflectAt(y float64) int {
	c := w.cfg
	if c.StripeEveryCm <= 0 {
		return matReflect
	}
	// distance from the stripe centre line
	pos := math.Mod(y, c.StripeEveryCm)
	if pos < 0 {
		pos += c.StripeEveryCm
	}
	d := math.Min(pos, c.StripeEveryCm-pos)
	half := c.StripeWidthCm / 2
	switch {
	case d <= half:
		return blackReflect
	case c.EdgeCm > 0 && d < half+c.EdgeCm:
		return blackReflect + int((d-half)/c.EdgeCm*(matReflect-blackReflect))
	default:
		return matReflect
	}
}

// Sensor is a simulated downward colour sensor.
type Sensor struct {
	w       *World
	lateral float64 // cm right of the centre line
}

// Read samples the floor under the sensor.
func (s *Sensor) Read() (sensing.Reading, error) {
	w := s.w
	w.mu.Lock()
	defer w.mu.Unlock()
	w.advance()

	h := w.pose.Heading * math.Pi / 180
	y := w.pose.Y + w.cfg.SensorAheadCm*math.Cos(h) - s.lateral*math.Sin(h)
	r := w.reflectAt(y)

	color := sensing.None
	switch {
	case r <= blackReflect:
		color = sensing.Black
	case r >= matReflect:
		color = sensing.White
	}
	return sensing.Reading{Reflected: r, Color: color}, nil
}
