// Package config loads drawing and server tuning from an optional YAML file
// and DRAW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/joeblew999/plat-draw/internal/draw"
	"github.com/joeblew999/plat-draw/internal/geo"
)

// Config holds all tuning knobs.
type Config struct {
	Capture    CaptureConfig    `mapstructure:"capture"`
	Stabilizer StabilizerConfig `mapstructure:"stabilizer"`
	Marker     MarkerConfig     `mapstructure:"marker"`
	Sessions   SessionsConfig   `mapstructure:"sessions"`
	Listings   ListingsConfig   `mapstructure:"listings"`
}

type CaptureConfig struct {
	Tolerance     float64       `mapstructure:"tolerance"`
	FeedbackDelay time.Duration `mapstructure:"feedback_delay"`
}

type StabilizerConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	Window         time.Duration `mapstructure:"window"`
	MaxCorrections int           `mapstructure:"max_corrections"`
	Epsilon        float64       `mapstructure:"epsilon"`
}

type MarkerConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type SessionsConfig struct {
	// Max is the number of concurrently open drawing sessions.
	Max int `mapstructure:"max"`
	// Outbox is the buffered command queue per session.
	Outbox int `mapstructure:"outbox"`
}

type ListingsConfig struct {
	SearchLimit int `mapstructure:"search_limit"`
}

// DrawOptions maps the tuning onto controller options.
func (c *Config) DrawOptions() draw.Options {
	return draw.Options{
		Tolerance:     c.Capture.Tolerance,
		FeedbackDelay: c.Capture.FeedbackDelay,
		Policy: draw.RetryPolicy{
			Interval:       c.Stabilizer.Interval,
			Window:         c.Stabilizer.Window,
			MaxCorrections: c.Stabilizer.MaxCorrections,
		},
		Epsilon:       c.Stabilizer.Epsilon,
		MarkerTimeout: c.Marker.Timeout,
	}
}

// Default returns the built-in configuration without consulting files or
// the environment.
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			Tolerance:     geo.DefaultTolerance,
			FeedbackDelay: draw.DefaultFeedbackDelay,
		},
		Stabilizer: StabilizerConfig{
			Interval:       draw.DefaultRetryPolicy.Interval,
			Window:         draw.DefaultRetryPolicy.Window,
			MaxCorrections: draw.DefaultRetryPolicy.MaxCorrections,
			Epsilon:        draw.DefaultEpsilon,
		},
		Marker:   MarkerConfig{Timeout: draw.DefaultMarkerTimeout},
		Sessions: SessionsConfig{Max: 256, Outbox: 256},
		Listings: ListingsConfig{SearchLimit: 100},
	}
}

// Load reads configuration from path (or ./draw.yaml, ./configs/draw.yaml
// when path is empty) and the environment.
func Load(path string) (*Config, error) {
	return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	v.SetDefault("capture.tolerance", geo.DefaultTolerance)
	v.SetDefault("capture.feedback_delay", draw.DefaultFeedbackDelay)
	v.SetDefault("stabilizer.interval", draw.DefaultRetryPolicy.Interval)
	v.SetDefault("stabilizer.window", draw.DefaultRetryPolicy.Window)
	v.SetDefault("stabilizer.max_corrections", draw.DefaultRetryPolicy.MaxCorrections)
	v.SetDefault("stabilizer.epsilon", draw.DefaultEpsilon)
	v.SetDefault("marker.timeout", draw.DefaultMarkerTimeout)
	v.SetDefault("sessions.max", 256)
	v.SetDefault("sessions.outbox", 256)
	v.SetDefault("listings.search_limit", 100)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("draw")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// DRAW_STABILIZER_WINDOW → stabilizer.window
	v.SetEnvPrefix("DRAW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func isNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, fs.ErrNotExist)
}

// Validate checks that every knob is usable.
func (c *Config) Validate() error {
	var errs []string

	if c.Capture.Tolerance <= 0 {
		errs = append(errs, fmt.Sprintf("capture.tolerance must be positive, got %g", c.Capture.Tolerance))
	}
	if c.Capture.FeedbackDelay <= 0 {
		errs = append(errs, "capture.feedback_delay must be positive")
	}
	if c.Stabilizer.Interval <= 0 {
		errs = append(errs, "stabilizer.interval must be positive")
	}
	if c.Stabilizer.Window < c.Stabilizer.Interval {
		errs = append(errs, fmt.Sprintf("stabilizer.window (%s) must be at least stabilizer.interval (%s)",
			c.Stabilizer.Window, c.Stabilizer.Interval))
	}
	if c.Stabilizer.MaxCorrections <= 0 {
		errs = append(errs, "stabilizer.max_corrections must be positive")
	}
	if c.Stabilizer.Epsilon <= 0 {
		errs = append(errs, "stabilizer.epsilon must be positive")
	}
	if c.Marker.Timeout <= 0 {
		errs = append(errs, "marker.timeout must be positive")
	}
	if c.Sessions.Max <= 0 {
		errs = append(errs, "sessions.max must be positive")
	}
	if c.Sessions.Outbox <= 0 {
		errs = append(errs, "sessions.outbox must be positive")
	}
	if c.Listings.SearchLimit <= 0 || c.Listings.SearchLimit > 1000 {
		errs = append(errs, fmt.Sprintf("listings.search_limit must be 1-1000, got %d", c.Listings.SearchLimit))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
