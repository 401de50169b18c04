package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/RoverGo/internal/hw/motor"
	"github.com/cjeanneret/RoverGo/internal/logic/control"
	"github.com/cjeanneret/RoverGo/internal/logic/motion"
	"github.com/cjeanneret/RoverGo/internal/logic/program"
	"github.com/cjeanneret/RoverGo/internal/logic/sensing"
)

// MaxConfigFileBytes bounds the size of a configuration file.
const MaxConfigFileBytes = 1 << 20

// WheelConfig is the H-bridge wiring of one drive wheel (BCM numbering).
type WheelConfig struct {
	PWMPin     int  `yaml:"pwm_pin"`     // hardware PWM: 12, 13, 18 or 19
	In1Pin     int  `yaml:"in1_pin"`
	In2Pin     int  `yaml:"in2_pin"`
	EncoderPin int  `yaml:"encoder_pin"` // 0 = no encoder
	Invert     bool `yaml:"invert"`      // motor mounted mirrored
}

// DriveConfig describes the drive base.
type DriveConfig struct {
	Left           WheelConfig `yaml:"left"`
	Right          WheelConfig `yaml:"right"`
	TicksPerCm     float64     `yaml:"ticks_per_cm"`
	PWMFrequencyHz int         `yaml:"pwm_frequency_hz"`
	PWMCycle       int         `yaml:"pwm_cycle"`
	StopAction     string      `yaml:"stop_action"`     // brake or coast
	EncoderPollUs  int         `yaml:"encoder_poll_us"` // 0 = continuous sampling
}

// ColorSensorConfig describes one TCS34725 on an I²C bus.
type ColorSensorConfig struct {
	Bus               string `yaml:"bus"`         // i2creg name, "" = first bus
	Addr              uint16 `yaml:"addr"`        // 0x29
	WhiteClear        uint16 `yaml:"white_clear"` // clear count over white, 0 = full scale
	IntegrationCycles int    `yaml:"integration_cycles"`
	Gain              int    `yaml:"gain"` // 1, 4, 16 or 60
}

// IMUConfig describes the BNO055 heading sensor.
type IMUConfig struct {
	Bus  string `yaml:"bus"`
	Addr uint16 `yaml:"addr"` // 0x28
}

// SensorsConfig groups the sensors.
type SensorsConfig struct {
	A   ColorSensorConfig `yaml:"a"` // left
	B   ColorSensorConfig `yaml:"b"` // right
	IMU IMUConfig         `yaml:"imu"`
}

// StepperConfig holds the configuration for a stepper motor.
type StepperConfig struct {
	StepPin       int `yaml:"step_pin"`
	DirPin        int `yaml:"dir_pin"`
	EnablePin     int `yaml:"enable_pin"` // A4988 ENABLE pin (BCM). 0 = not used. Active LOW.
	StepsPerRev   int `yaml:"steps_per_rev"`
	Microstepping int `yaml:"microstepping"`
	StepDelayUs   int `yaml:"step_delay_us"` // STEP half-cycle at speed 100
}

// ForkliftConfig describes the stepper-driven lift (motor C).
type ForkliftConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Stepper      StepperConfig `yaml:"stepper"`
	DegreesPerCm float64       `yaml:"degrees_per_cm"`
	DefaultSpeed int           `yaml:"default_speed"`
}

// ArmConfig describes the Feetech servo arm (motor D).
type ArmConfig struct {
	Enabled          bool    `yaml:"enabled"`
	Port             string  `yaml:"port"` // e.g. /dev/ttyUSB0
	BaudRate         int     `yaml:"baud_rate"`
	ServoID          int     `yaml:"servo_id"`
	DefaultSpeed     int     `yaml:"default_speed"`
	MaxDegreesPerSec float64 `yaml:"max_degrees_per_sec"`
}

// ControlConfig holds the calibration of the control loops.
type ControlConfig struct {
	TargetLight      int     `yaml:"target_light"`
	Kp               float64 `yaml:"kp"`
	Kd               float64 `yaml:"kd"`
	Ki               float64 `yaml:"ki"`
	Adaptive         bool    `yaml:"adaptive"`
	HeadingGain      float64 `yaml:"heading_gain"`
	BlackBelow       int     `yaml:"black_below"`
	WhiteAbove       int     `yaml:"white_above"`
	DefaultSpeed     int     `yaml:"default_speed"`
	DefaultTurnSpeed int     `yaml:"default_turn_speed"`
	WatchdogMs       int     `yaml:"watchdog_ms"`      // 0 = loops are unbounded
	PollIntervalMs   int     `yaml:"poll_interval_ms"` // 0 = tight poll
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel   int    `yaml:"debug_level"`   // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockHardware bool   `yaml:"mock_hardware"` // simulate the rover (true=dev/test, false=real Raspberry Pi)
	HTTPAddr     string `yaml:"http_addr"`
}

// Config aggregates all application configuration.
type Config struct {
	Drive    DriveConfig       `yaml:"drive"`
	Sensors  SensorsConfig     `yaml:"sensors"`
	Forklift ForkliftConfig    `yaml:"forklift"`
	Arm      ArmConfig         `yaml:"arm"`
	Control  ControlConfig     `yaml:"control"`
	Defaults DefaultsConfig    `yaml:"defaults"`
	Programs []program.Program `yaml:"programs"`
}

// Default returns the configuration used for keys absent from the file.
func Default() Config {
	return Config{
		Drive: DriveConfig{
			TicksPerCm:     20,
			PWMFrequencyHz: 1000,
			PWMCycle:       motor.MaxPower,
			StopAction:     "brake",
		},
		Sensors: SensorsConfig{
			A:   ColorSensorConfig{Addr: 0x29, IntegrationCycles: 10, Gain: 4},
			B:   ColorSensorConfig{Addr: 0x29, IntegrationCycles: 10, Gain: 4},
			IMU: IMUConfig{Addr: 0x28},
		},
		Forklift: ForkliftConfig{
			Stepper:      StepperConfig{StepsPerRev: 200, Microstepping: 16, StepDelayUs: 500},
			DegreesPerCm: 90,
			DefaultSpeed: 100,
		},
		Arm: ArmConfig{
			BaudRate:         1000000,
			ServoID:          1,
			DefaultSpeed:     40,
			MaxDegreesPerSec: 360,
		},
		Control: ControlConfig{
			TargetLight:      control.DefaultTargetLight,
			Kp:               control.DefaultKp,
			Kd:               control.DefaultKd,
			Ki:               control.DefaultKi,
			Adaptive:         true,
			HeadingGain:      control.DefaultHeadingGain,
			BlackBelow:       sensing.DefaultBlackBelow,
			WhiteAbove:       sensing.DefaultWhiteAbove,
			DefaultSpeed:     40,
			DefaultTurnSpeed: 30,
		},
		Defaults: DefaultsConfig{
			MockHardware: true,
			HTTPAddr:     ":8080",
		},
	}
}

// ValidateConfigPath rejects paths that escape the configs/ directory or are
// not YAML files.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	for _, elem := range strings.Split(filepath.ToSlash(path), "/") {
		if elem == ".." {
			return fmt.Errorf("config path %q must not contain ..", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must end in .yaml", path)
	}
	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("config path %q must be in a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	if err := ValidateConfigPath(path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file is %d bytes, limit is %d", info.Size(), MaxConfigFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges, fills zero values with defaults and validates
// the programs.
func (c *Config) Validate() error {
	d := Default()

	if _, err := motor.ParseStopAction(c.Drive.StopAction); err != nil {
		return fmt.Errorf("drive.stop_action: %w", err)
	}
	if c.Drive.TicksPerCm <= 0 {
		return fmt.Errorf("drive.ticks_per_cm must be > 0, got %g", c.Drive.TicksPerCm)
	}
	if c.Drive.PWMFrequencyHz <= 0 {
		c.Drive.PWMFrequencyHz = d.Drive.PWMFrequencyHz
	}
	if c.Drive.PWMCycle <= 0 {
		c.Drive.PWMCycle = d.Drive.PWMCycle
	}

	for name, s := range map[string]*ColorSensorConfig{"a": &c.Sensors.A, "b": &c.Sensors.B} {
		switch s.Gain {
		case 1, 4, 16, 60:
		default:
			return fmt.Errorf("sensors.%s.gain must be 1, 4, 16 or 60, got %d", name, s.Gain)
		}
		if s.IntegrationCycles < 1 || s.IntegrationCycles > 256 {
			return fmt.Errorf("sensors.%s.integration_cycles must be between 1 and 256, got %d", name, s.IntegrationCycles)
		}
	}

	if c.Forklift.DegreesPerCm <= 0 {
		c.Forklift.DegreesPerCm = d.Forklift.DegreesPerCm
	}
	if err := checkSpeed("forklift.default_speed", c.Forklift.DefaultSpeed); err != nil {
		return err
	}
	if err := checkSpeed("arm.default_speed", c.Arm.DefaultSpeed); err != nil {
		return err
	}
	if c.Arm.Enabled && c.Arm.Port == "" && !c.Defaults.MockHardware {
		return errors.New("arm.port is required when the arm is enabled")
	}

	if err := checkPercent("control.target_light", c.Control.TargetLight); err != nil {
		return err
	}
	if err := checkPercent("control.black_below", c.Control.BlackBelow); err != nil {
		return err
	}
	if err := checkPercent("control.white_above", c.Control.WhiteAbove); err != nil {
		return err
	}
	if c.Control.BlackBelow > c.Control.WhiteAbove {
		return fmt.Errorf("control.black_below (%d) must not exceed control.white_above (%d)",
			c.Control.BlackBelow, c.Control.WhiteAbove)
	}
	if err := checkSpeed("control.default_speed", c.Control.DefaultSpeed); err != nil {
		return err
	}
	if err := checkSpeed("control.default_turn_speed", c.Control.DefaultTurnSpeed); err != nil {
		return err
	}
	if c.Control.WatchdogMs < 0 || c.Control.PollIntervalMs < 0 {
		return errors.New("control.watchdog_ms and control.poll_interval_ms must not be negative")
	}

	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}

	if err := program.Validate(c.Programs); err != nil {
		return fmt.Errorf("programs: %w", err)
	}
	return nil
}

func checkPercent(key string, v int) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("%s must be between 0 and 100, got %d", key, v)
	}
	return nil
}

func checkSpeed(key string, v int) error {
	if v < 1 || v > 100 {
		return fmt.Errorf("%s must be between 1 and 100, got %d", key, v)
	}
	return nil
}

// StopAction returns the parsed drive stop action.
func (c *Config) StopAction() motor.StopAction {
	a, _ := motor.ParseStopAction(c.Drive.StopAction)
	return a
}

// EncoderPoll returns the sampling period of distance moves.
func (c *Config) EncoderPoll() time.Duration {
	return time.Duration(c.Drive.EncoderPollUs) * time.Microsecond
}

// StepDelay returns the forklift STEP half-cycle at full speed.
func (c *Config) StepDelay() time.Duration {
	return time.Duration(c.Forklift.Stepper.StepDelayUs) * time.Microsecond
}

// Watchdog returns the loop watchdog, 0 when disabled.
func (c *Config) Watchdog() time.Duration {
	return time.Duration(c.Control.WatchdogMs) * time.Millisecond
}

// PollInterval returns the loop pacing, 0 for a tight poll.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Control.PollIntervalMs) * time.Millisecond
}

// MotionOptions returns the controller tuning.
func (c *Config) MotionOptions() motion.Options {
	o := motion.DefaultOptions()
	o.Gains = control.Gains{
		Target:   float64(c.Control.TargetLight),
		Kp:       c.Control.Kp,
		Kd:       c.Control.Kd,
		Ki:       c.Control.Ki,
		Adaptive: c.Control.Adaptive,
	}
	o.Thresholds = sensing.Thresholds{
		BlackBelow: c.Control.BlackBelow,
		WhiteAbove: c.Control.WhiteAbove,
	}
	o.HeadingGain = c.Control.HeadingGain
	o.Watchdog = c.Watchdog()
	o.PollInterval = c.PollInterval()
	return o
}

// ProgramDefaults returns the speeds used by steps without one.
func (c *Config) ProgramDefaults() program.Defaults {
	return program.Defaults{
		Speed:     c.Control.DefaultSpeed,
		TurnSpeed: c.Control.DefaultTurnSpeed,
	}
}
