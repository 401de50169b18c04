package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// Motor is a simulated attachment motor that counts degrees.
type Motor struct {
	mu       sync.Mutex
	name     string
	degrees  float64
	maxDPS   float64
	realTime bool
}

// NewMotor creates a motor turning maxDegreesPerSec at speed 100.
func NewMotor(name string, maxDegreesPerSec float64, realTime bool) *Motor {
	if maxDegreesPerSec <= 0 {
		maxDegreesPerSec = 720
	}
	return &Motor{name: name, maxDPS: maxDegreesPerSec, realTime: realTime}
}

// RunForDegrees turns by degrees. With real time it takes as long as the
// physical motor would and may be cancelled part way.
func (m *Motor) RunForDegrees(ctx context.Context, degrees float64, speed int) error {
	if speed <= 0 {
		return fmt.Errorf("%s: speed %d must be positive", m.name, speed)
	}
	if speed > 100 {
		speed = 100
	}
	if m.realTime {
		d := time.Duration(math.Abs(degrees) / (m.maxDPS * float64(speed) / 100) * float64(time.Second))
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	m.mu.Lock()
	m.degrees += degrees
	m.mu.Unlock()
	return nil
}

// DegreesCounted returns the angle turned since creation.
func (m *Motor) DegreesCounted() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int(math.Round(m.degrees)), nil
}
