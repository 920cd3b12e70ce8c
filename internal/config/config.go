// Package config loads application configuration from an optional YAML file
// plus AIWM_-prefixed environment overrides, with desktop-friendly defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	DataDir string `mapstructure:"data_dir"`

	Storage struct {
		Driver string `mapstructure:"driver"`
		Path   string `mapstructure:"path"`
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"storage"`

	Scheduler struct {
		IntervalSeconds int    `mapstructure:"interval_seconds"`
		DefaultProfile  string `mapstructure:"default_profile"`
	} `mapstructure:"scheduler"`

	Notifications struct {
		QuietHours struct {
			Start string `mapstructure:"start"`
			End   string `mapstructure:"end"`
		} `mapstructure:"quiet_hours"`
		Channels []string `mapstructure:"channels"`
	} `mapstructure:"notifications"`

	Retention struct {
		Logs struct {
			Days int `mapstructure:"days"`
		} `mapstructure:"logs"`
		Telemetry struct {
			Days int `mapstructure:"days"`
		} `mapstructure:"telemetry"`
		SecurityScans struct {
			Days int `mapstructure:"days"`
		} `mapstructure:"security_scans"`
		Backups struct {
			Keep int `mapstructure:"keep"`
		} `mapstructure:"backups"`
	} `mapstructure:"retention"`
}

// Interval returns the scheduler polling interval.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Scheduler.IntervalSeconds) * time.Second
}

// DatabasePath returns the storage path, defaulting to app.db in the data dir.
func (c *Config) DatabasePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return filepath.Join(c.DataDir, "app.db")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".aiwm"
	}
	return filepath.Join(home, ".aiwm")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("storage.driver", "sqlite3")
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("scheduler.interval_seconds", 60)
	v.SetDefault("scheduler.default_profile", "local")
	v.SetDefault("notifications.quiet_hours.start", "22:00")
	v.SetDefault("notifications.quiet_hours.end", "06:00")
	v.SetDefault("notifications.channels", []string{"in-app"})
	v.SetDefault("retention.logs.days", 14)
	v.SetDefault("retention.telemetry.days", 7)
	v.SetDefault("retention.security_scans.days", 30)
	v.SetDefault("retention.backups.keep", 5)
}

// Load reads configuration from the given file path, or from config.yaml in
// the default data dir and working directory when path is empty. A missing
// config file is not an error; defaults and environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AIWM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultDataDir())
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to the given YAML file, or to config.yaml
// in the data dir when path is empty. Preference edits made through the CLI
// persist this way.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = filepath.Join(cfg.DataDir, "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: save: %w", err)
	}

	v := viper.New()
	v.Set("data_dir", cfg.DataDir)
	v.Set("storage.driver", cfg.Storage.Driver)
	v.Set("storage.path", cfg.Storage.Path)
	v.Set("storage.dsn", cfg.Storage.DSN)
	v.Set("scheduler.interval_seconds", cfg.Scheduler.IntervalSeconds)
	v.Set("scheduler.default_profile", cfg.Scheduler.DefaultProfile)
	v.Set("notifications.quiet_hours.start", cfg.Notifications.QuietHours.Start)
	v.Set("notifications.quiet_hours.end", cfg.Notifications.QuietHours.End)
	v.Set("notifications.channels", cfg.Notifications.Channels)
	v.Set("retention.logs.days", cfg.Retention.Logs.Days)
	v.Set("retention.telemetry.days", cfg.Retention.Telemetry.Days)
	v.Set("retention.security_scans.days", cfg.Retention.SecurityScans.Days)
	v.Set("retention.backups.keep", cfg.Retention.Backups.Keep)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("config: save %s: %w", path, err)
	}
	return nil
}

// Default returns the configuration with no file or environment applied.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Defaults always unmarshal cleanly.
	_ = v.Unmarshal(&cfg)
	return &cfg
}
