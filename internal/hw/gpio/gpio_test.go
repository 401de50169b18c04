package gpio

import "testing"

func TestMockDriver_RemembersLevels(t *testing.T) {
	m := &MockDriver{}
	if l, _ := m.ReadPin(5); l != Low {
		t.Errorf("unwritten pin = %v, want Low", l)
	}
	if err := m.WritePin(5, High); err != nil {
		t.Fatal(err)
	}
	if l, _ := m.ReadPin(5); l != High {
		t.Errorf("pin 5 = %v, want High", l)
	}
}

func TestMockDriver_Duty(t *testing.T) {
	m := &MockDriver{}
	if err := m.WriteDuty(18, 25, 100); err != nil {
		t.Fatal(err)
	}
	if got := m.Duty(18); got != 0.25 {
		t.Errorf("Duty = %v, want 0.25", got)
	}
	if err := m.WriteDuty(18, 1, 0); err == nil {
		t.Error("zero cycle should fail")
	}
}

func TestPinMode_String(t *testing.T) {
	tests := map[PinMode]string{Input: "input", Output: "output", PWM: "pwm", PinMode(7): "mode(7)"}
	for m, want := range tests {
		if got := m.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(m), got, want)
		}
	}
}

func TestNewDriver_Mock(t *testing.T) {
	d, err := NewDriver(true)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.(*MockDriver); !ok {
		t.Errorf("NewDriver(true) = %T, want *MockDriver", d)
	}
}
