package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ---------- ValidateConfigPath ----------

func TestValidateConfigPath_Valid(t *testing.T) {
	// Create a real configs/ directory so filepath.Abs resolves correctly.
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "default.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateConfigPath(path); err != nil {
		t.Errorf("expected valid path, got error: %v", err)
	}
}

func TestValidateConfigPath_PathTraversal(t *testing.T) {
	cases := []string{
		"../../etc/passwd",
		"configs/../../../etc/shadow",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for traversal path %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_WrongExtension(t *testing.T) {
	cases := []string{
		"configs/default.json",
		"configs/default.yml",
		"configs/default.txt",
		"configs/default",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for extension in %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_NotInConfigsDir(t *testing.T) {
	cases := []string{
		"other/default.yaml",
		"default.yaml",
		"/tmp/default.yaml",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for path outside configs/ %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_EmptyPath(t *testing.T) {
	if err := ValidateConfigPath(""); err == nil {
		t.Error("expected error for empty path, got nil")
	}
}

func TestValidateConfigPath_VeryLongPath(t *testing.T) {
	long := "configs/" + strings.Repeat("a", 1000) + ".yaml"
	// Should not panic; error or success is OS-dependent, but must not crash.
	_ = ValidateConfigPath(long)
}

func TestValidateConfigPath_SpecialChars(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name    string
		wantErr bool
	}{
		{"con fig.yaml", false},
		{"café.yaml", false},
	}
	for _, tc := range cases {
		path := filepath.Join(cfgDir, tc.name)
		err := ValidateConfigPath(path)
		if tc.wantErr && err == nil {
			t.Errorf("expected error for %q, got nil", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("unexpected error for %q: %v", tc.name, err)
		}
	}
}

func TestValidateConfigPath_DoubleTraversal(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// Try to escape via ../../configs/ok.yaml. filepath.Clean resolves this
	// and the parent must still be "configs".
	path := filepath.Join(cfgDir, "../../configs/ok.yaml")
	err := ValidateConfigPath(path)
	// After Clean the parent may or may not be "configs" depending on resolution.
	// The important thing is it either succeeds with a valid parent or fails.
	_ = err
}

// ---------- Load ----------

// writeConfig creates a temporary configs/ dir with the given YAML content and returns the path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
drive:
  left:  {pwm_pin: 12, in1_pin: 5, in2_pin: 6, encoder_pin: 17}
  right: {pwm_pin: 13, in1_pin: 20, in2_pin: 21, encoder_pin: 27, invert: true}
  ticks_per_cm: 24.5
  stop_action: coast
  encoder_poll_us: 200
sensors:
  a: {bus: "1", addr: 0x29, white_clear: 9000, integration_cycles: 20, gain: 16}
  b: {bus: "3", addr: 0x29}
  imu: {bus: "1", addr: 0x28}
forklift:
  enabled: true
  stepper: {step_pin: 23, dir_pin: 24, enable_pin: 25, steps_per_rev: 200, microstepping: 8, step_delay_us: 400}
arm:
  enabled: true
  port: /dev/ttyUSB0
control:
  kp: 0.3
  adaptive: false
  watchdog_ms: 15000
  poll_interval_ms: 5
defaults:
  debug_level: 2
  mock_hardware: false
programs:
  - name: tv
    steps:
      - {op: wait, seconds: 0.5}
      - {op: gyro_move, seconds: 2.6, speed: 45, direction: forward}
  - name: windmill
    steps:
      - {op: drive_distance, distance: 20.5, direction: forward}
      - {op: gyro_turn, degrees: 100, pivot: center, side: right}
      - {op: drive_distance, distance: 55, left_speed: 85, right_speed: 80}
`

func TestLoad_ValidFullConfig(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Drive.Right.EncoderPin != 27 || !cfg.Drive.Right.Invert {
		t.Errorf("drive.right = %+v", cfg.Drive.Right)
	}
	if cfg.Drive.TicksPerCm != 24.5 {
		t.Errorf("ticks_per_cm = %v, want 24.5", cfg.Drive.TicksPerCm)
	}
	if cfg.Sensors.A.Addr != 0x29 || cfg.Sensors.A.Gain != 16 || cfg.Sensors.A.WhiteClear != 9000 {
		t.Errorf("sensors.a = %+v", cfg.Sensors.A)
	}
	// keys absent from b keep their defaults
	if cfg.Sensors.B.IntegrationCycles != 10 || cfg.Sensors.B.Gain != 4 || cfg.Sensors.B.Bus != "3" {
		t.Errorf("sensors.b = %+v", cfg.Sensors.B)
	}
	if cfg.Forklift.Stepper.Microstepping != 8 || cfg.Forklift.DegreesPerCm != 90 {
		t.Errorf("forklift = %+v", cfg.Forklift)
	}
	if cfg.Arm.BaudRate != 1000000 || cfg.Arm.DefaultSpeed != 40 {
		t.Errorf("arm = %+v", cfg.Arm)
	}
	if cfg.Control.Kp != 0.3 || cfg.Control.Kd != 1 || cfg.Control.Adaptive {
		t.Errorf("control = %+v", cfg.Control)
	}
	if cfg.Defaults.MockHardware {
		t.Error("mock_hardware should be false")
	}
	if len(cfg.Programs) != 2 || cfg.Programs[1].Steps[2].LeftSpeed != 85 {
		t.Errorf("programs = %+v", cfg.Programs)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := cfg.Control
	if c.TargetLight != 58 || c.Kp != 0.25 || c.Kd != 1 || c.Ki != 0.001 || !c.Adaptive {
		t.Errorf("line follow defaults = %+v", c)
	}
	if c.HeadingGain != 16 || c.BlackBelow != 25 || c.WhiteAbove != 95 {
		t.Errorf("gyro/threshold defaults = %+v", c)
	}
	if c.DefaultSpeed != 40 || c.DefaultTurnSpeed != 30 {
		t.Errorf("speed defaults = %d/%d, want 40/30", c.DefaultSpeed, c.DefaultTurnSpeed)
	}
	if cfg.Forklift.DefaultSpeed != 100 {
		t.Errorf("forklift.default_speed = %d, want 100", cfg.Forklift.DefaultSpeed)
	}
	if cfg.Drive.StopAction != "brake" {
		t.Errorf("stop_action = %q, want brake", cfg.Drive.StopAction)
	}
	if cfg.Watchdog() != 0 || cfg.PollInterval() != 0 {
		t.Error("watchdog and poll interval should be off by default")
	}
	if !cfg.Defaults.MockHardware {
		t.Error("mock_hardware should default to true")
	}
}

func TestLoad_ZeroValuesFilled(t *testing.T) {
	path := writeConfig(t, `
drive:
  pwm_frequency_hz: 0
  pwm_cycle: 0
forklift:
  degrees_per_cm: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Drive.PWMFrequencyHz != 1000 || cfg.Drive.PWMCycle != 100 {
		t.Errorf("pwm = %d Hz / %d", cfg.Drive.PWMFrequencyHz, cfg.Drive.PWMCycle)
	}
	if cfg.Forklift.DegreesPerCm != 90 {
		t.Errorf("degrees_per_cm = %v, want 90", cfg.Forklift.DegreesPerCm)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"stop action", "drive: {stop_action: float}"},
		{"ticks per cm", "drive: {ticks_per_cm: -1}"},
		{"gain", "sensors: {a: {gain: 2}}"},
		{"integration", "sensors: {b: {integration_cycles: 300}}"},
		{"target light", "control: {target_light: 101}"},
		{"black below", "control: {black_below: -1}"},
		{"white above", "control: {white_above: 120}"},
		{"thresholds crossed", "control: {black_below: 80, white_above: 60}"},
		{"default speed", "control: {default_speed: 0}"},
		{"turn speed", "control: {default_turn_speed: 150}"},
		{"watchdog", "control: {watchdog_ms: -5}"},
		{"forklift speed", "forklift: {default_speed: 0}"},
		{"arm port", "arm: {enabled: true}\ndefaults: {mock_hardware: false}"},
		{"debug level", "defaults: {debug_level: 9}"},
		{"program name", "programs: [{steps: [{op: wait, seconds: 1}]}]"},
		{"duplicate program", "programs: [{name: a, steps: [{op: wait, seconds: 1}]}, {name: a, steps: [{op: wait, seconds: 1}]}]"},
		{"unknown op", "programs: [{name: a, steps: [{op: jump}]}]"},
		{"bad step", "programs: [{name: a, steps: [{op: drive_till_color, port: C}]}]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.yaml)
			if _, err := Load(path); err == nil {
				t.Errorf("expected error for %q, got nil", tc.yaml)
			}
		})
	}
}

func TestLoad_MockArmNeedsNoPort(t *testing.T) {
	path := writeConfig(t, "arm: {enabled: true}")
	if _, err := Load(path); err != nil {
		t.Errorf("mock arm without port should load, got: %v", err)
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "big.yaml")
	data := make([]byte, MaxConfigFileBytes+1)
	for i := range data {
		data[i] = '#'
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for oversized config file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "{{{{invalid yaml!!!!")
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestLoad_UnknownFields(t *testing.T) {
	yaml := `
control:
  kp: 0.2
unknown_section:
  foo: bar
`
	path := writeConfig(t, yaml)
	_, err := Load(path)
	if err != nil {
		t.Errorf("unknown fields should be ignored, got error: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "nonexistent.yaml")
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for nonexistent file, got nil")
	}
}

func TestLoad_OutsideConfigsDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for a file outside configs/, got nil")
	}
}

// The shipped configuration must always load.
func TestLoad_ShippedDefault(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(filepath.Dir(filepath.Dir(wd)), "configs", "default.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("configs/default.yaml: %v", err)
	}
	if len(cfg.Programs) == 0 {
		t.Error("shipped config should define programs")
	}
}

func TestLoad_ShippedStepCounts(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(filepath.Join(filepath.Dir(filepath.Dir(wd)), "configs", "default.yaml"))
	if err != nil {
		t.Fatalf("configs/default.yaml: %v", err)
	}
	want := []struct {
		name  string
		steps int
	}{
		{"run1", 24},
		{"run2", 6},
		{"run3", 15},
		{"run4", 43},
		{"run5", 8},
		{"run6", 8},
		{"run7", 1},
	}
	if len(cfg.Programs) != len(want) {
		t.Fatalf("programs = %d, want %d", len(cfg.Programs), len(want))
	}
	for i, w := range want {
		p := cfg.Programs[i]
		if p.Name != w.name || len(p.Steps) != w.steps {
			t.Errorf("program %d = %s with %d steps, want %s with %d", i, p.Name, len(p.Steps), w.name, w.steps)
		}
	}
}

// ---------- Helper methods ----------

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{
		Drive:    DriveConfig{EncoderPollUs: 250},
		Forklift: ForkliftConfig{Stepper: StepperConfig{StepDelayUs: 400}},
		Control:  ControlConfig{WatchdogMs: 1500, PollIntervalMs: 5},
	}
	cases := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"EncoderPoll", cfg.EncoderPoll(), 250 * time.Microsecond},
		{"StepDelay", cfg.StepDelay(), 400 * time.Microsecond},
		{"Watchdog", cfg.Watchdog(), 1500 * time.Millisecond},
		{"PollInterval", cfg.PollInterval(), 5 * time.Millisecond},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s() = %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}

func TestConfig_MotionOptions(t *testing.T) {
	cfg := Default()
	cfg.Control.TargetLight = 60
	cfg.Control.Adaptive = false
	cfg.Control.BlackBelow = 20
	cfg.Control.WatchdogMs = 3000
	o := cfg.MotionOptions()
	if o.Gains.Target != 60 || o.Gains.Adaptive || o.Gains.Kp != 0.25 {
		t.Errorf("gains = %+v", o.Gains)
	}
	if o.Thresholds.BlackBelow != 20 || o.Thresholds.WhiteAbove != 95 {
		t.Errorf("thresholds = %+v", o.Thresholds)
	}
	if o.HeadingGain != 16 || o.Watchdog != 3*time.Second || o.Clock == nil {
		t.Errorf("options = %+v", o)
	}
}

func TestConfig_ProgramDefaults(t *testing.T) {
	cfg := Default()
	cfg.Control.DefaultSpeed = 50
	if d := cfg.ProgramDefaults(); d.Speed != 50 || d.TurnSpeed != 30 {
		t.Errorf("ProgramDefaults() = %+v", d)
	}
}

func TestConfig_StopAction(t *testing.T) {
	cfg := Default()
	cfg.Drive.StopAction = "coast"
	if got := cfg.StopAction().String(); got != "coast" {
		t.Errorf("StopAction() = %s, want coast", got)
	}
}
