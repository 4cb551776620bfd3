// Package config loads process-level configuration (data directory, control
// API bind address, drain deadline, log level/format) via viper, the same
// way the ingest service's config package does.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is logflowd's process configuration. It intentionally does not
// carry per-source settings — those live in the Configuration Store under
// DataDir and are managed through the control API, not process config.
type Config struct {
	Control ControlConfig `mapstructure:"control"`
	Logging LoggingConfig `mapstructure:"logging"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
}

// ControlConfig configures the small net/http control server (§6).
type ControlConfig struct {
	ListenAddr   string        `mapstructure:"listen_addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RuntimeConfig configures process-wide runtime behavior not tied to any
// one source.
type RuntimeConfig struct {
	DataDir       string        `mapstructure:"data_dir"`
	DrainDeadline time.Duration `mapstructure:"drain_deadline"`
}

// Load reads configuration from configPath (if non-empty) or from a
// "config.yaml" discovered on the default search path, then applies
// LOGFLOW_-prefixed environment variable overrides.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("control.listen_addr", ":8090")
	v.SetDefault("control.read_timeout", "10s")
	v.SetDefault("control.write_timeout", "10s")
	v.SetDefault("control.idle_timeout", "120s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("runtime.data_dir", "/var/lib/logflow")
	v.SetDefault("runtime.drain_deadline", "10s")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/logflow")
	}

	v.SetEnvPrefix("LOGFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &cfg, nil
}
