package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/kinetic/internal/capture"
	"github.com/san-kum/kinetic/internal/inference"
	"github.com/san-kum/kinetic/internal/particles"
	"github.com/san-kum/kinetic/internal/shape"
)

const (
	DefaultFPS        = 60
	DefaultListen     = "127.0.0.1:8089"
	DefaultAPIKeyEnv  = "GEMINI_API_KEY"
	DefaultDataDir    = "runs"
	DefaultLogFile    = "kinetic.log"
	DefaultLogLevel   = "info"
	DefaultTheme      = "default"
	SourceBrowser     = "browser"
	SourceDir         = "dir"
	SourceBlank       = "blank"
	DefaultIntervalMs = 300
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Model       string        `yaml:"model"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Template    string        `yaml:"template"`
	Color       string        `yaml:"color"`
	Theme       string        `yaml:"theme"`
	Particles   int           `yaml:"particles"`
	FPS         int           `yaml:"fps"`
	Seed        uint64        `yaml:"seed"`
	Capture     CaptureConfig `yaml:"capture"`
	MetricsAddr string        `yaml:"metrics_addr"`
	DataDir     string        `yaml:"data_dir"`
	Record      bool          `yaml:"record"`
	LogFile     string        `yaml:"log_file"`
	LogLevel    string        `yaml:"log_level"`
}

type CaptureConfig struct {
	Source       string  `yaml:"source"`
	Listen       string  `yaml:"listen"`
	Dir          string  `yaml:"dir"`
	IntervalMs   int     `yaml:"interval_ms"`
	Width        int     `yaml:"width"`
	Height       int     `yaml:"height"`
	SourceWidth  int     `yaml:"source_width"`
	SourceHeight int     `yaml:"source_height"`
	Quality      float64 `yaml:"quality"`
	MaxInFlight  int     `yaml:"max_in_flight"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:     inference.DefaultModel,
		APIKeyEnv: DefaultAPIKeyEnv,
		Template:  shape.Sphere.String(),
		Color:     particles.DefaultColor,
		Theme:     DefaultTheme,
		Particles: shape.DefaultCount,
		FPS:       DefaultFPS,
		Capture: CaptureConfig{
			Source:       SourceBrowser,
			Listen:       DefaultListen,
			IntervalMs:   DefaultIntervalMs,
			Width:        capture.DefaultWidth,
			Height:       capture.DefaultHeight,
			SourceWidth:  capture.DefaultSourceSize.Width,
			SourceHeight: capture.DefaultSourceSize.Height,
			Quality:      0.6,
			MaxInFlight:  capture.DefaultMaxInFlight,
		},
		DataDir:  DefaultDataDir,
		Record:   true,
		LogFile:  DefaultLogFile,
		LogLevel: DefaultLogLevel,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks enumerated values and ranges.
func (c *Config) Validate() error {
	var errs []error
	if _, err := shape.ParseTemplate(c.Template); err != nil {
		errs = append(errs, fmt.Errorf("%w: template: %w", ErrInvalid, err))
	}
	if _, err := particles.ParseColor(c.Color); err != nil {
		errs = append(errs, fmt.Errorf("%w: color: %w", ErrInvalid, err))
	}
	if c.Particles < 0 {
		errs = append(errs, fmt.Errorf("%w: particles must be >= 0, got %d", ErrInvalid, c.Particles))
	}
	if c.FPS <= 0 || c.FPS > 240 {
		errs = append(errs, fmt.Errorf("%w: fps must be in (0, 240], got %d", ErrInvalid, c.FPS))
	}
	switch c.Capture.Source {
	case SourceBrowser, SourceBlank:
	case SourceDir:
		if c.Capture.Dir == "" {
			errs = append(errs, fmt.Errorf("%w: capture.dir is required for the dir source", ErrInvalid))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: capture.source %q (want %s, %s or %s)", ErrInvalid, c.Capture.Source, SourceBrowser, SourceDir, SourceBlank))
	}
	if c.Capture.IntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("%w: capture.interval_ms must be positive", ErrInvalid))
	}
	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		errs = append(errs, fmt.Errorf("%w: capture size %dx%d", ErrInvalid, c.Capture.Width, c.Capture.Height))
	}
	if c.Capture.Quality <= 0 || c.Capture.Quality > 1 {
		errs = append(errs, fmt.Errorf("%w: capture.quality must be in (0, 1], got %g", ErrInvalid, c.Capture.Quality))
	}
	if c.Capture.MaxInFlight <= 0 {
		errs = append(errs, fmt.Errorf("%w: capture.max_in_flight must be positive", ErrInvalid))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, fmt.Errorf("%w: log_level: %w", ErrInvalid, err))
	}
	return errors.Join(errs...)
}

// Level parses LogLevel ("debug", "info", "warn", "error").
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(c.LogLevel))
	return l, err
}

// Interval is the capture period.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Capture.IntervalMs) * time.Millisecond
}

// JPEGQuality converts the 0..1 quality to the 1..100 scale of image/jpeg.
func (c *Config) JPEGQuality() int {
	q := int(c.Capture.Quality*100 + 0.5)
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}
	return q
}

// APIKey reads the key from the configured environment variable.
func (c *Config) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}
