package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/cjeanneret/RoverGo/internal/config"
	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/hw/attach"
	"github.com/cjeanneret/RoverGo/internal/hw/colorsensor"
	"github.com/cjeanneret/RoverGo/internal/hw/drive"
	"github.com/cjeanneret/RoverGo/internal/hw/gpio"
	"github.com/cjeanneret/RoverGo/internal/hw/imu"
	"github.com/cjeanneret/RoverGo/internal/hw/motor"
	"github.com/cjeanneret/RoverGo/internal/hw/servo"
	"github.com/cjeanneret/RoverGo/internal/hw/sim"
	"github.com/cjeanneret/RoverGo/internal/hw/stepper"
	"github.com/cjeanneret/RoverGo/internal/logic/motion"
	"github.com/cjeanneret/RoverGo/internal/logic/program"
	"github.com/cjeanneret/RoverGo/internal/web"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "rovergo"
	app.Usage = "run line-following rover programs"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Value: filepath.Join("configs", "default.yaml"),
			Usage: "path to config file",
		},
		cli.IntFlag{
			Name:  "debug",
			Value: -1,
			Usage: "debug level 0-4, overrides the config",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "serve",
			Usage: "start the web UI",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "http",
					Usage: "http server listening address, overrides the config",
				},
			},
			Action: serve,
		},
		{
			Name:      "run",
			Usage:     "run one program and wait for it",
			ArgsUsage: "[program]",
			Action:    run,
		},
		{
			Name:  "sensors",
			Usage: "print live colour and heading readings",
			Flags: []cli.Flag{
				cli.DurationFlag{
					Name:  "interval",
					Value: 200 * time.Millisecond,
					Usage: "time between readings",
				},
				cli.IntFlag{
					Name:  "count",
					Usage: "number of readings, 0 until interrupted",
				},
			},
			Action: sensors,
		},
		{
			Name:   "programs",
			Usage:  "list the configured programs",
			Action: programs,
		},
	}
	return app
}

// rootContext is cancelled by SIGINT or SIGTERM.
func rootContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadConfig loads the config named by --config and applies --debug.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.GlobalString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	if lvl := c.GlobalInt("debug"); lvl >= 0 {
		if lvl > 4 {
			return nil, fmt.Errorf("debug level must be between 0 and 4, got %d", lvl)
		}
		cfg.Defaults.DebugLevel = lvl
	}
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", path)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Mock hardware", cfg.Defaults.MockHardware)
	return cfg, nil
}

func serve(c *cli.Context) error {
	ctx, cancel := rootContext()
	defer cancel()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	r, err := newRover(ctx, cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	addr := c.String("http")
	if addr == "" {
		addr = cfg.Defaults.HTTPAddr
	}
	broadcaster := web.NewStatusBroadcaster()
	debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

	srv := web.NewServer(addr, broadcaster, r.runner)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

func run(c *cli.Context) error {
	ctx, cancel := rootContext()
	defer cancel()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	r, err := newRover(ctx, cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := r.runner.Run(ctx, c.Args().First()); err != nil {
		return fmt.Errorf("program failed: %w", err)
	}
	return nil
}

func programs(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	fmt.Println(titleStyle.Render("Programs"))
	for _, p := range cfg.Programs {
		fmt.Println(programLine(p))
	}
	return nil
}

// programLine formats one entry of the programs listing.
func programLine(p program.Program) string {
	line := fmt.Sprintf("%-10s %s", p.Name, labelStyle.Render(fmt.Sprintf("%d steps", len(p.Steps))))
	if p.Description != "" {
		line += "  " + p.Description
	}
	return line
}

func sensors(c *cli.Context) error {
	ctx, cancel := rootContext()
	defer cancel()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	r, err := newRover(ctx, cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	fmt.Println(titleStyle.Render("Sensors") + labelStyle.Render("  ctrl-c to stop"))
	ticker := time.NewTicker(c.Duration("interval"))
	defer ticker.Stop()

	count := c.Int("count")
	for i := 0; count <= 0 || i < count; i++ {
		fmt.Println(r.readingLine())
		if count > 0 && i == count-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

// readingLine reads every sensor once. A failed sensor shows its error.
func (r *rover) readingLine() string {
	field := func(label string, read func() (string, error)) string {
		v, err := read()
		if err != nil {
			v = errorStyle.Render(err.Error())
		}
		return labelStyle.Render(label) + " " + v
	}
	color := func(s motion.ColorSensor) func() (string, error) {
		return func() (string, error) {
			rd, err := s.Read()
			return fmt.Sprintf("%-10s", rd), err
		}
	}
	yaw := func() (string, error) {
		deg, err := r.heading.Yaw()
		return fmt.Sprintf("%7.2f°", deg), err
	}
	return field("A", color(r.a)) + "  " + field("B", color(r.b)) + "  " + field("yaw", yaw)
}

// rover is the assembled robot: hardware, controller and program runner.
type rover struct {
	base    motion.Base
	a, b    motion.ColorSensor
	heading motion.HeadingSensor
	runner  *program.Runner
	closers []func() error
}

// Close stops the wheels and releases the hardware in reverse order.
func (r *rover) Close() {
	if r.base != nil {
		if err := r.base.Stop(); err != nil {
			log.Printf("stopping drive base failed: %v", err)
		}
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			log.Printf("closing hardware failed: %v", err)
		}
	}
}

// newRover builds the simulated or the real robot, depending on
// defaults.mock_hardware.
func newRover(ctx context.Context, cfg *config.Config) (*rover, error) {
	r := &rover{}
	var arm, forklift attach.Motor
	var err error
	if cfg.Defaults.MockHardware {
		arm, forklift = r.buildSim(cfg)
	} else {
		arm, forklift, err = r.buildReal(ctx, cfg)
		if err != nil {
			r.Close()
			return nil, err
		}
	}

	var opts program.Options
	opts.Defaults = cfg.ProgramDefaults()
	if cfg.Arm.Enabled {
		opts.Arm = attach.NewArm(arm, cfg.Arm.DefaultSpeed)
	}
	if cfg.Forklift.Enabled {
		opts.Forklift = attach.NewForklift(forklift, cfg.Forklift.DegreesPerCm, cfg.Forklift.DefaultSpeed)
	}

	debug.Step(5, "Creating motion controller and program runner")
	ctrl := motion.NewController(r.base, r.a, r.b, r.heading, cfg.MotionOptions())
	r.runner, err = program.NewRunner(ctrl, cfg.Programs, opts)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("load programs: %w", err)
	}
	debug.Value("Programs", len(cfg.Programs))
	return r, nil
}

// buildSim wires the simulated floor and attachment motors.
func (r *rover) buildSim(cfg *config.Config) (arm, forklift attach.Motor) {
	debug.Step(1, "Creating simulated rover")
	world := sim.NewWorld(sim.DefaultConfig())
	r.base = world
	r.heading = world
	r.a = world.Sensor(true)
	r.b = world.Sensor(false)
	arm = sim.NewMotor("arm", cfg.Arm.MaxDegreesPerSec, true)
	forklift = sim.NewMotor("forklift", stepperDegreesPerSec(cfg.Forklift.Stepper), true)
	return arm, forklift
}

// buildReal brings up GPIO, I²C and the serial servo bus. Every opened
// resource is registered in r.closers before the next one is opened.
func (r *rover) buildReal(ctx context.Context, cfg *config.Config) (arm, forklift attach.Motor, err error) {
	debug.Step(1, "Initializing GPIO driver")
	g, err := gpio.NewDriver(false)
	if err != nil {
		return nil, nil, fmt.Errorf("init GPIO failed: %w", err)
	}
	r.closers = append(r.closers, g.Close)

	debug.Step(2, "Initializing drive motors")
	left, err := motor.NewDC(g, wheelConfig("left", cfg.Drive.Left, cfg.Drive))
	if err != nil {
		return nil, nil, fmt.Errorf("init left motor failed: %w", err)
	}
	right, err := motor.NewDC(g, wheelConfig("right", cfg.Drive.Right, cfg.Drive))
	if err != nil {
		return nil, nil, fmt.Errorf("init right motor failed: %w", err)
	}
	r.base = drive.NewTank(left, right, drive.Config{
		TicksPerCm:  cfg.Drive.TicksPerCm,
		StopAction:  cfg.StopAction(),
		EncoderPoll: cfg.EncoderPoll(),
	})
	debug.PrintStruct("Drive config", cfg.Drive)

	debug.Step(3, "Initializing I²C sensors")
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("init host failed: %w", err)
	}
	buses := map[string]i2c.BusCloser{}
	open := func(name string) (i2c.Bus, error) {
		if b, ok := buses[name]; ok {
			return b, nil
		}
		b, err := i2creg.Open(name)
		if err != nil {
			return nil, fmt.Errorf("open I²C bus %q: %w", name, err)
		}
		buses[name] = b
		r.closers = append(r.closers, b.Close)
		return b, nil
	}
	for _, s := range []struct {
		name string
		cfg  config.ColorSensorConfig
		dst  *motion.ColorSensor
	}{
		{"A", cfg.Sensors.A, &r.a},
		{"B", cfg.Sensors.B, &r.b},
	} {
		bus, err := open(s.cfg.Bus)
		if err != nil {
			return nil, nil, err
		}
		gain, err := gainFor(s.cfg.Gain)
		if err != nil {
			return nil, nil, err
		}
		dev, err := colorsensor.NewI2C(bus, s.cfg.Addr, s.name, &colorsensor.Opts{
			IntegrationCycles: s.cfg.IntegrationCycles,
			Gain:              gain,
			WhiteClear:        s.cfg.WhiteClear,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init colour sensor %s failed: %w", s.name, err)
		}
		r.closers = append(r.closers, dev.Halt)
		*s.dst = dev
	}
	bus, err := open(cfg.Sensors.IMU.Bus)
	if err != nil {
		return nil, nil, err
	}
	gyro, err := imu.NewI2C(bus, cfg.Sensors.IMU.Addr)
	if err != nil {
		return nil, nil, fmt.Errorf("init IMU failed: %w", err)
	}
	r.closers = append(r.closers, gyro.Halt)
	r.heading = gyro

	debug.Step(4, "Initializing attachments")
	if cfg.Forklift.Enabled {
		s := cfg.Forklift.Stepper
		st := stepper.NewStepper(g, stepper.Config{
			Name:          "forklift",
			StepPin:       s.StepPin,
			DirPin:        s.DirPin,
			EnablePin:     s.EnablePin,
			StepsPerRev:   s.StepsPerRev,
			Microstepping: s.Microstepping,
			StepDelay:     cfg.StepDelay(),
		})
		r.closers = append(r.closers, st.Disable)
		forklift = st
		debug.PrintStruct("Forklift stepper config", s)
	}
	if cfg.Arm.Enabled {
		sv, err := servo.Open(ctx, cfg.Arm.Port, cfg.Arm.BaudRate, cfg.Arm.ServoID, servo.Config{
			MaxDegreesPerSec: cfg.Arm.MaxDegreesPerSec,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init arm servo failed: %w", err)
		}
		r.closers = append(r.closers, sv.Close)
		arm = sv
		debug.Value("Arm port", cfg.Arm.Port)
	}
	return arm, forklift, nil
}

func wheelConfig(name string, w config.WheelConfig, d config.DriveConfig) motor.Config {
	return motor.Config{
		Name:        name,
		PWMPin:      w.PWMPin,
		In1Pin:      w.In1Pin,
		In2Pin:      w.In2Pin,
		EncoderPin:  w.EncoderPin,
		Invert:      w.Invert,
		FrequencyHz: d.PWMFrequencyHz,
		Cycle:       uint32(d.PWMCycle),
	}
}

// gainFor maps the configured analog gain factor to the sensor setting.
func gainFor(factor int) (colorsensor.Gain, error) {
	switch factor {
	case 1:
		return colorsensor.Gain1x, nil
	case 4:
		return colorsensor.Gain4x, nil
	case 16:
		return colorsensor.Gain16x, nil
	case 60:
		return colorsensor.Gain60x, nil
	default:
		return 0, fmt.Errorf("colour sensor gain must be 1, 4, 16 or 60, got %d", factor)
	}
}

// stepperDegreesPerSec is the shaft speed of a stepper at speed 100: one
// microstep per two step delays.
func stepperDegreesPerSec(s config.StepperConfig) float64 {
	microsteps := s.StepsPerRev * s.Microstepping
	if microsteps <= 0 || s.StepDelayUs <= 0 {
		return 0
	}
	stepsPerSec := 1e6 / float64(2*s.StepDelayUs)
	return stepsPerSec * 360 / float64(microsteps)
}
