// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable viper binds, e.g. EXPECTKIT_HARNESS_ORDER.
const EnvPrefix = "EXPECTKIT"

// Ordering values accepted by harness.order.
const (
	OrderRandom  = "random"
	OrderDefined = "defined"
)

// Config holds the entire harness configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Harness HarnessConfig `mapstructure:"harness" yaml:"harness"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// HarnessConfig controls how a test suite built on expectkit runs.
type HarnessConfig struct {
	// MinimumCoverage is the percentage (0..100) declared to the coverage gate.
	MinimumCoverage int `mapstructure:"minimum_coverage" yaml:"minimum_coverage"`
	// Order is either "random" or "defined".
	Order string `mapstructure:"order" yaml:"order"`
	// Seed fixes the random order. Zero picks a time based seed.
	Seed int64 `mapstructure:"seed" yaml:"seed"`
	// SubprocessTimeout bounds how long the parent waits on an isolation child.
	SubprocessTimeout time.Duration `mapstructure:"subprocess_timeout" yaml:"subprocess_timeout"`
	// LeakCheck enables the goroutine leak check after the suite finishes.
	LeakCheck bool `mapstructure:"leak_check" yaml:"leak_check"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static, so this only fires on a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration parameter.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "expectkit")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", false)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Harness --
	v.SetDefault("harness.minimum_coverage", 100)
	v.SetDefault("harness.order", OrderRandom)
	v.SetDefault("harness.seed", 0)
	v.SetDefault("harness.subprocess_timeout", "2m")
	v.SetDefault("harness.leak_check", true)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.Harness.Order = strings.ToLower(strings.TrimSpace(cfg.Harness.Order))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Load reads configuration from path (or expectkit.yaml in the working or home
// directory when path is empty), layering EXPECTKIT_* environment variables on top.
// A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, fmt.Errorf("failed to expand config path %q: %w", path, err)
		}
		v.SetConfigFile(expanded)
	} else {
		v.SetConfigName("expectkit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Clean(home))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return NewConfigFromViper(v)
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if err := c.Harness.Validate(); err != nil {
		return fmt.Errorf("harness configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the harness settings.
func (h *HarnessConfig) Validate() error {
	if h.MinimumCoverage < 0 || h.MinimumCoverage > 100 {
		return fmt.Errorf("minimum_coverage must be between 0 and 100")
	}
	switch h.Order {
	case OrderRandom, OrderDefined:
	default:
		return fmt.Errorf("order must be %q or %q, got %q", OrderRandom, OrderDefined, h.Order)
	}
	if h.SubprocessTimeout <= 0 {
		return fmt.Errorf("subprocess_timeout must be a positive duration")
	}
	return nil
}
