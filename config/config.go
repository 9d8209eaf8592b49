// Package config loads server settings from defaults, an optional config
// file and ORDERHUB_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "ORDERHUB"

type Config struct {
	Addr            string        `mapstructure:"addr"`
	DatabasePath    string        `mapstructure:"database_path"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	SnapshotLimit   int           `mapstructure:"snapshot_limit"`
	SendBuffer      int           `mapstructure:"send_buffer"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	WriteWait       time.Duration `mapstructure:"write_wait"`
	PongWait        time.Duration `mapstructure:"pong_wait"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("database_path", "orderhub.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("snapshot_limit", 50)
	v.SetDefault("send_buffer", 256)
	v.SetDefault("max_message_size", 4096)
	v.SetDefault("write_wait", 10*time.Second)
	v.SetDefault("pong_wait", 60*time.Second)
	v.SetDefault("shutdown_timeout", 10*time.Second)
}

// Load reads the configuration. An explicit file must exist; without one
// an orderhub.yaml in the working directory is used when present.
func Load(file string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("orderhub")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path must not be empty"))
	}
	if c.SnapshotLimit <= 0 {
		errs = append(errs, fmt.Errorf("snapshot_limit must be positive, got %d", c.SnapshotLimit))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, fmt.Errorf("send_buffer must be positive, got %d", c.SendBuffer))
	}
	if c.MaxMessageSize <= 0 {
		errs = append(errs, fmt.Errorf("max_message_size must be positive, got %d", c.MaxMessageSize))
	}
	if c.WriteWait <= 0 || c.PongWait <= 0 || c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("write_wait, pong_wait and shutdown_timeout must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
