// Package config loads seqchart settings from .seqchart.yaml, SEQCHART_*
// environment variables and command line flags through viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// TimelineConfig holds the initial timeline settings of a chart.
type TimelineConfig struct {
	Mode                  string  `mapstructure:"mode"`
	NonlinearMinimumDelta float64 `mapstructure:"nonlinear_minimum_delta"`
	TickSpacing           int     `mapstructure:"tick_spacing"`
}

// LimitsConfig bounds dependency collection for filtered logs.
type LimitsConfig struct {
	MaxCauseDepth           int           `mapstructure:"max_cause_depth"`
	MaxConsequenceDepth     int           `mapstructure:"max_consequence_depth"`
	MaxNumberOfCauses       int           `mapstructure:"max_number_of_causes"`
	MaxNumberOfConsequences int           `mapstructure:"max_number_of_consequences"`
	MaxCollectionTime       time.Duration `mapstructure:"max_collection_time"`
	CollectMessageReuses    bool          `mapstructure:"collect_message_reuses"`
}

// Config holds all runtime configuration for seqchart.
// Values are populated from .seqchart.yaml, SEQCHART_* env vars, and CLI flags.
type Config struct {
	PollInterval         time.Duration  `mapstructure:"poll_interval"`
	MaxCachedEvents      int            `mapstructure:"max_cached_events"`
	HeadFingerprintBytes int            `mapstructure:"head_fingerprint_bytes"`
	Verbose              bool           `mapstructure:"verbose"`
	Timeline             TimelineConfig `mapstructure:"timeline"`
	Limits               LimitsConfig   `mapstructure:"limits"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("poll_interval", 3*time.Second)
	viper.SetDefault("max_cached_events", 1024)
	viper.SetDefault("head_fingerprint_bytes", 4096)
	viper.SetDefault("verbose", false)
	viper.SetDefault("timeline.mode", "nonlinear")
	viper.SetDefault("timeline.nonlinear_minimum_delta", 0.1)
	viper.SetDefault("timeline.tick_spacing", 100)
	viper.SetDefault("limits.max_cause_depth", 15)
	viper.SetDefault("limits.max_consequence_depth", 15)
	viper.SetDefault("limits.max_number_of_causes", 100)
	viper.SetDefault("limits.max_number_of_consequences", 100)
	viper.SetDefault("limits.max_collection_time", time.Duration(0))
	viper.SetDefault("limits.collect_message_reuses", true)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values no component can work with.
func (c Config) Validate() error {
	switch {
	case c.PollInterval < 0:
		return fmt.Errorf("poll_interval must not be negative, got %s", c.PollInterval)
	case c.MaxCachedEvents < 0:
		return fmt.Errorf("max_cached_events must not be negative, got %d", c.MaxCachedEvents)
	case c.HeadFingerprintBytes < 0:
		return fmt.Errorf("head_fingerprint_bytes must not be negative, got %d", c.HeadFingerprintBytes)
	case c.Timeline.NonlinearMinimumDelta <= 0 || c.Timeline.NonlinearMinimumDelta > 1:
		return fmt.Errorf("timeline.nonlinear_minimum_delta must be in (0, 1], got %v", c.Timeline.NonlinearMinimumDelta)
	case c.Timeline.TickSpacing <= 0:
		return fmt.Errorf("timeline.tick_spacing must be positive, got %d", c.Timeline.TickSpacing)
	case c.Limits.MaxCollectionTime < 0:
		return fmt.Errorf("limits.max_collection_time must not be negative, got %s", c.Limits.MaxCollectionTime)
	}
	return nil
}
