// Package options holds the runtime settings of gospinner. Defaults are
// overlaid by an optional TOML file, which is overlaid by command-line flags.
package options

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/richinsley/gospinner/scheduler"
	"github.com/richinsley/gospinner/shader"
)

// Backends accepted by -backend.
const (
	BackendGLFW     = "glfw"
	BackendHeadless = "headless"
	BackendSoft     = "soft"
)

// Duration is a time.Duration written as a string such as "16ms" in TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

type Options struct {
	Config   string   `toml:"-"`
	Help     bool     `toml:"-"`
	Backend  string   `toml:"backend"`
	Strategy string   `toml:"strategy"`
	Interval Duration `toml:"interval"`
	Policy   string   `toml:"policy"`
	Version  string   `toml:"version"`
	Width    int      `toml:"width"`
	Height   int      `toml:"height"`
	Title    string   `toml:"title"`
	// Duration stops the animation after this long. Zero runs until the
	// window is closed.
	Duration   Duration   `toml:"duration"`
	Record     string     `toml:"record"`
	FPS        int        `toml:"fps"`
	FFmpeg     string     `toml:"ffmpeg"`
	ClearColor [4]float32 `toml:"clear_color"`
}

// Default returns the built-in settings.
func Default() *Options {
	return &Options{
		Backend:    BackendGLFW,
		Strategy:   scheduler.StrategyFrame.String(),
		Interval:   Duration(scheduler.DefaultInterval),
		Policy:     "fail-stop",
		Version:    shader.VersionModern.String(),
		Width:      640,
		Height:     480,
		Title:      "gospinner",
		FPS:        60,
		ClearColor: [4]float32{0.1, 0.1, 0.1, 1.0},
	}
}

// Decode overlays the TOML document read from r onto o. Unknown keys are an
// error so that typos do not silently fall back to defaults.
func Decode(r io.Reader, o *Options) error {
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(o); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("invalid config: %s", strict.String())
		}
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return fmt.Errorf("invalid config at line %d, column %d: %w", row, col, err)
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadFile overlays the TOML file at path onto o.
func LoadFile(path string, o *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := Decode(bytes.NewReader(data), o); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Encode writes o as TOML.
func (o *Options) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(o)
}

func newFlagSet(name string, o *Options) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&o.Config, "config", o.Config, "Path to a TOML config file")
	fs.BoolVar(&o.Help, "help", o.Help, "Show help message")
	fs.StringVar(&o.Backend, "backend", o.Backend, "Graphics backend: glfw, headless or soft")
	fs.StringVar(&o.Strategy, "strategy", o.Strategy, "Tick scheduling: frame or interval")
	fs.DurationVar((*time.Duration)(&o.Interval), "interval", time.Duration(o.Interval), "Tick period for the interval strategy")
	fs.StringVar(&o.Policy, "policy", o.Policy, "What to do after a failed tick: fail-stop or continue")
	fs.StringVar(&o.Version, "version", o.Version, "Shader dialect: legacy (ESSL 1.00) or modern (ESSL 3.00)")
	fs.IntVar(&o.Width, "width", o.Width, "Width of the surface")
	fs.IntVar(&o.Height, "height", o.Height, "Height of the surface")
	fs.DurationVar((*time.Duration)(&o.Duration), "duration", time.Duration(o.Duration), "Stop after this long (0 runs until the window closes)")
	fs.StringVar(&o.Record, "record", o.Record, "Record presented frames to this video file")
	fs.IntVar(&o.FPS, "fps", o.FPS, "Frame rate of the recording")
	fs.StringVar(&o.FFmpeg, "ffmpeg", o.FFmpeg, "Path to ffmpeg executable")
	return fs
}

// Parse builds the options from command-line arguments. When -config names a
// file, its settings replace the defaults and explicit flags still win.
func Parse(name string, args []string, output io.Writer) (*Options, error) {
	o := Default()
	fs := newFlagSet(name, o)
	fs.SetOutput(output)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.Help {
		fmt.Fprintf(output, "Usage of %s:\n", name)
		fs.PrintDefaults()
		return o, nil
	}

	if o.Config != "" {
		fromFile := Default()
		if err := LoadFile(o.Config, fromFile); err != nil {
			return nil, err
		}
		fs = newFlagSet(name, fromFile)
		fs.SetOutput(output)
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		o = fromFile
	}

	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Validate checks that every setting is usable.
func (o *Options) Validate() error {
	switch o.Backend {
	case BackendGLFW, BackendHeadless, BackendSoft:
	default:
		return fmt.Errorf("unknown backend %q", o.Backend)
	}
	if _, err := o.SchedulerStrategy(); err != nil {
		return err
	}
	if _, err := o.TickPolicy(); err != nil {
		return err
	}
	if _, err := o.ShaderVersion(); err != nil {
		return err
	}
	if o.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", time.Duration(o.Interval))
	}
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("invalid surface size %dx%d", o.Width, o.Height)
	}
	if o.Duration < 0 {
		return fmt.Errorf("duration must not be negative, got %v", time.Duration(o.Duration))
	}
	if o.Record != "" && o.FPS <= 0 {
		return fmt.Errorf("fps must be positive when recording, got %d", o.FPS)
	}
	for _, c := range o.ClearColor {
		if c < 0 || c > 1 {
			return fmt.Errorf("clear_color components must be within [0, 1], got %v", o.ClearColor)
		}
	}
	return nil
}

func (o *Options) SchedulerStrategy() (scheduler.Strategy, error) {
	return scheduler.ParseStrategy(o.Strategy)
}

func (o *Options) ShaderVersion() (shader.Version, error) {
	return shader.ParseVersion(o.Version)
}

func (o *Options) TickPolicy() (scheduler.Policy, error) {
	return scheduler.ParsePolicy(o.Policy)
}
