// Package config loads controller and relay settings.
//
// Sources, highest precedence first: explicit Set calls (CLI flags), ESCALATE_*
// environment variables, the config file, defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roach88/escalate/internal/sequencer"
)

// EnvPrefix is prepended to every key for environment lookup,
// e.g. ESCALATE_MAX_BOOTS.
const EnvPrefix = "ESCALATE"

// Config is the resolved configuration.
type Config struct {
	VerificationEnabled bool          `mapstructure:"verification_enabled"`
	AlertSource         string        `mapstructure:"alert_source"`
	Alert               string        `mapstructure:"alert"`
	MaxBoots            int           `mapstructure:"max_boots"`
	BootTimeout         time.Duration `mapstructure:"boot_timeout"`
	DB                  string        `mapstructure:"db"`
	LogLevel            string        `mapstructure:"log_level"`
}

func setDefaults(v *viper.Viper) {
	def := sequencer.DefaultConfig()
	v.SetDefault("verification_enabled", def.VerificationEnabled)
	v.SetDefault("alert_source", string(def.AlertSource))
	v.SetDefault("alert", string(def.Alert))
	v.SetDefault("max_boots", 4)
	v.SetDefault("boot_timeout", 5*time.Second)
	v.SetDefault("db", "")
	v.SetDefault("log_level", "info")
}

// New returns a viper instance with defaults and environment binding. An
// empty path skips the config file.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return v, nil
}

// Load resolves a Config from path, the environment and defaults.
func Load(path string) (Config, error) {
	v, err := New(path)
	if err != nil {
		return Config{}, err
	}
	return Decode(v)
}

// Decode unmarshals and validates v.
func Decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	if c.MaxBoots < 1 {
		errs = append(errs, fmt.Errorf("max_boots must be at least 1, got %d", c.MaxBoots))
	}
	if c.BootTimeout <= 0 {
		errs = append(errs, fmt.Errorf("boot_timeout must be positive, got %s", c.BootTimeout))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Sequencer returns the test body configuration.
func (c Config) Sequencer() sequencer.Config {
	return sequencer.Config{
		VerificationEnabled: c.VerificationEnabled,
		AlertSource:         sequencer.NMISource(c.AlertSource),
		Alert:               sequencer.AlertID(c.Alert),
	}
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}
