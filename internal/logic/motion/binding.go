package motion

import (
	"fmt"

	"github.com/cjeanneret/RoverGo/internal/logic/control"
	"github.com/cjeanneret/RoverGo/internal/logic/sensing"
)

// Binding is the sensor wiring of one line-follow loop: the sensor that
// tracks the line, the other sensor that triggers the stop, the stop
// predicate and the correction polarity.
type Binding struct {
	Sign     int
	Active   ColorSensor
	Stop     ColorSensor
	StopWhen sensing.Predicate
}

// Bind resolves the binding for a loop that tracks the line with the sensor
// on port and stops on the other sensor matching color.
func (c *Controller) Bind(port Port, align control.Alignment, color sensing.Color) (Binding, error) {
	var active, stop Port
	switch port {
	case PortA:
		active, stop = PortA, PortB
	case PortB:
		active, stop = PortB, PortA
	default:
		return Binding{}, fmt.Errorf("%w: %q", ErrUnknownPort, port)
	}
	pred, err := c.Predicate(color)
	if err != nil {
		return Binding{}, err
	}
	return Binding{
		Sign:     control.Sign(align),
		Active:   c.sensors[active],
		Stop:     c.sensors[stop],
		StopWhen: pred,
	}, nil
}

// Predicate returns the stop predicate for a target colour. The empty
// colour means black.
func (c *Controller) Predicate(color sensing.Color) (sensing.Predicate, error) {
	th := c.opts.Thresholds
	switch color {
	case sensing.Black, "":
		return th.IsBlack, nil
	case sensing.White:
		return th.IsWhite, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownColor, color)
	}
}

// sensor returns the sensor on port.
func (c *Controller) sensor(port Port) (ColorSensor, error) {
	s, ok := c.sensors[port]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPort, port)
	}
	return s, nil
}
