package motor

import (
	"errors"
	"testing"

	"github.com/cjeanneret/RoverGo/internal/hw/gpio"
)

// recordingDriver records GPIO calls for verification.
type recordingDriver struct {
	levels  map[int]gpio.Level
	duties  map[int]uint32
	modes   map[int]gpio.PinMode
	freq    map[int]int
	encoder []gpio.Level // successive encoder reads
	reads   int
}

func newRecordingDriver() *recordingDriver {
	return &recordingDriver{
		levels: map[int]gpio.Level{},
		duties: map[int]uint32{},
		modes:  map[int]gpio.PinMode{},
		freq:   map[int]int{},
	}
}

func (d *recordingDriver) SetupPin(pin int, mode gpio.PinMode) error {
	d.modes[pin] = mode
	return nil
}

func (d *recordingDriver) WritePin(pin int, level gpio.Level) error {
	d.levels[pin] = level
	return nil
}

func (d *recordingDriver) ReadPin(pin int) (gpio.Level, error) {
	if d.reads >= len(d.encoder) {
		return gpio.Low, errors.New("trace exhausted")
	}
	l := d.encoder[d.reads]
	d.reads++
	return l, nil
}

func (d *recordingDriver) SetFrequency(pin int, hz int) error {
	d.freq[pin] = hz
	return nil
}

func (d *recordingDriver) WriteDuty(pin int, duty, cycle uint32) error {
	d.duties[pin] = duty
	return nil
}

func (d *recordingDriver) Close() error { return nil }

var testConfig = Config{Name: "left", PWMPin: 18, In1Pin: 5, In2Pin: 6, EncoderPin: 17}

func TestNewDC_SetsUpPins(t *testing.T) {
	d := newRecordingDriver()
	if _, err := NewDC(d, testConfig); err != nil {
		t.Fatal(err)
	}
	if d.modes[18] != gpio.PWM || d.modes[5] != gpio.Output || d.modes[17] != gpio.Input {
		t.Errorf("modes = %v", d.modes)
	}
	if d.freq[18] != 100000 {
		t.Errorf("PWM clock = %d, want 100000", d.freq[18])
	}
	if d.duties[18] != 0 || d.levels[5] != gpio.Low || d.levels[6] != gpio.Low {
		t.Error("motor should start coasting")
	}
}

func TestDC_SetPower(t *testing.T) {
	tests := []struct {
		name     string
		invert   bool
		power    int
		wantDuty uint32
		wantIn1  gpio.Level
		wantIn2  gpio.Level
		wantPow  int
	}{
		{"forward", false, 40, 40, gpio.High, gpio.Low, 40},
		{"reverse", false, -25, 25, gpio.Low, gpio.High, -25},
		{"clamped", false, 180, 100, gpio.High, gpio.Low, 100},
		{"clamped reverse", false, -101, 100, gpio.Low, gpio.High, -100},
		{"inverted", true, 40, 40, gpio.Low, gpio.High, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newRecordingDriver()
			cfg := testConfig
			cfg.Invert = tt.invert
			m, err := NewDC(d, cfg)
			if err != nil {
				t.Fatal(err)
			}
			if err := m.SetPower(tt.power); err != nil {
				t.Fatal(err)
			}
			if d.duties[18] != tt.wantDuty {
				t.Errorf("duty = %d, want %d", d.duties[18], tt.wantDuty)
			}
			if d.levels[5] != tt.wantIn1 || d.levels[6] != tt.wantIn2 {
				t.Errorf("in1/in2 = %v/%v, want %v/%v", d.levels[5], d.levels[6], tt.wantIn1, tt.wantIn2)
			}
			if m.Power() != tt.wantPow {
				t.Errorf("Power() = %d, want %d", m.Power(), tt.wantPow)
			}
		})
	}
}

func TestDC_Stop(t *testing.T) {
	d := newRecordingDriver()
	m, _ := NewDC(d, testConfig)
	_ = m.SetPower(60)

	if err := m.Stop(Brake); err != nil {
		t.Fatal(err)
	}
	if d.levels[5] != gpio.High || d.levels[6] != gpio.High || d.duties[18] != 100 {
		t.Error("brake should short both leads at full duty")
	}
	if err := m.Stop(Coast); err != nil {
		t.Fatal(err)
	}
	if d.levels[5] != gpio.Low || d.levels[6] != gpio.Low || d.duties[18] != 0 {
		t.Error("coast should release both leads")
	}
	if m.Power() != 0 {
		t.Errorf("Power() after stop = %d", m.Power())
	}
}

func TestDC_PollEncoderCountsRisingEdges(t *testing.T) {
	d := newRecordingDriver()
	m, _ := NewDC(d, testConfig)
	d.encoder = []gpio.Level{gpio.Low, gpio.High, gpio.High, gpio.Low, gpio.High, gpio.Low}

	var ticks int
	for range d.encoder {
		var err error
		if ticks, err = m.PollEncoder(); err != nil {
			t.Fatal(err)
		}
	}
	if ticks != 2 {
		t.Errorf("ticks = %d, want 2", ticks)
	}
	m.ResetEncoder()
	if _, err := m.PollEncoder(); err == nil {
		t.Error("exhausted trace should return an error")
	}
}

func TestDC_NoEncoder(t *testing.T) {
	cfg := testConfig
	cfg.EncoderPin = 0
	m, _ := NewDC(newRecordingDriver(), cfg)
	if _, err := m.PollEncoder(); err == nil {
		t.Error("PollEncoder without encoder should fail")
	}
}

func TestParseStopAction(t *testing.T) {
	for in, want := range map[string]StopAction{"": Brake, "brake": Brake, "Coast": Coast} {
		got, err := ParseStopAction(in)
		if err != nil || got != want {
			t.Errorf("ParseStopAction(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseStopAction("hold"); !errors.Is(err, ErrUnknownStopAction) {
		t.Errorf("hold: err = %v", err)
	}
}
