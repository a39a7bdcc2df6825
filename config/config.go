// Package config loads runtime settings for an observation system from an
// optional YAML file and OBSERVATORY_ environment variables using Viper.
//
// Keys use dotted names (flush.default, dirty_check.interval); the matching
// environment variable upper-cases them and replaces dots with underscores,
// e.g. OBSERVATORY_DIRTY_CHECK_INTERVAL=250ms.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/delaneyj/observatory/observation"
	"github.com/spf13/viper"
)

const EnvPrefix = "OBSERVATORY"

type Config struct {
	Flush      FlushConfig      `mapstructure:"flush" yaml:"flush"`
	Binding    BindingConfig    `mapstructure:"binding" yaml:"binding"`
	DirtyCheck DirtyCheckConfig `mapstructure:"dirty_check" yaml:"dirty_check"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

type FlushConfig struct {
	Default string `mapstructure:"default" yaml:"default"`
}

type BindingConfig struct {
	Strict bool `mapstructure:"strict" yaml:"strict"`
}

type DirtyCheckConfig struct {
	Disabled bool          `mapstructure:"disabled" yaml:"disabled"`
	Throw    bool          `mapstructure:"throw" yaml:"throw"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("flush.default", "batched")
	v.SetDefault("binding.strict", false)
	v.SetDefault("dirty_check.disabled", false)
	v.SetDefault("dirty_check.throw", false)
	v.SetDefault("dirty_check.interval", 120*time.Millisecond)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads path when it is not empty, then applies environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := observation.ParseFlushMode(c.Flush.Default); err != nil {
		return fmt.Errorf("config: flush.default: %w", err)
	}
	if c.DirtyCheck.Interval < 0 {
		return fmt.Errorf("config: dirty_check.interval must not be negative, got %s", c.DirtyCheck.Interval)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Options turns the configuration into system options. logger may be nil.
func (c *Config) Options(logger *slog.Logger) []observation.Option {
	mode, _ := observation.ParseFlushMode(c.Flush.Default)
	opts := []observation.Option{
		observation.WithDefaultFlush(mode),
		observation.WithStrictBinding(c.Binding.Strict),
		observation.WithDirtyCheck(observation.DirtyCheckSettings{
			Disabled: c.DirtyCheck.Disabled,
			Throw:    c.DirtyCheck.Throw,
			Interval: c.DirtyCheck.Interval,
		}),
	}
	if logger != nil {
		opts = append(opts, observation.WithLogger(logger))
	}
	return opts
}

// Logger builds a slog logger writing to w in the configured format.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: log.level: %w", err)
	}
	return level, nil
}
