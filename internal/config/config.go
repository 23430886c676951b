package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pipewright/fdkit/internal/core"
	"github.com/spf13/viper"
)

type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Capture  CaptureConfig  `mapstructure:"capture"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Server   ServerConfig   `mapstructure:"server"`
	Watchdog WatchdogConfig `mapstructure:"watchdog"`
	Sessions SessionsConfig `mapstructure:"sessions"`
}

type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

type CaptureConfig struct {
	Tee bool `mapstructure:"tee"`
}

// ArchiveConfig selects where finished session records are persisted.
type ArchiveConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"` // For localfs
	S3      S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// ServerConfig holds the observability listener settings.
type ServerConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Addr        string `mapstructure:"addr"`
	MetricsPath string `mapstructure:"metrics_path"`
}

// WatchdogConfig holds the descriptor-budget watchdog settings.
type WatchdogConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Interval       time.Duration `mapstructure:"interval"`
	MaxDescriptors int64         `mapstructure:"max_descriptors"`
	RlimitFraction float64       `mapstructure:"rlimit_fraction"`
}

// SessionsConfig bounds the in-memory session store.
type SessionsConfig struct {
	Max int           `mapstructure:"max"`
	TTL time.Duration `mapstructure:"ttl"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Logging: LoggingConfig{
			Development: false,
		},
		Capture: CaptureConfig{
			Tee: false,
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Type:    "localfs",
			Path:    "archive",
		},
		Server: ServerConfig{
			Enabled:     false,
			Addr:        "127.0.0.1:9090",
			MetricsPath: "/metrics",
		},
		Watchdog: WatchdogConfig{
			Enabled:        false,
			Interval:       30 * time.Second,
			RlimitFraction: 0.9,
		},
		Sessions: SessionsConfig{
			Max: 100,
			TTL: time.Hour,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Enabled {
		_, port, err := net.SplitHostPort(c.Server.Addr)
		if err != nil {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("server addr %q: %w", c.Server.Addr, err))
		}
		p, err := strconv.Atoi(port)
		if err != nil || p < 1 || p > 65535 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("server port must be between 1 and 65535, got %q", port))
		}
		if c.Server.MetricsPath == "" || !strings.HasPrefix(c.Server.MetricsPath, "/") {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("metrics_path must start with /, got %q", c.Server.MetricsPath))
		}
	}

	// Archive validation - if enabled, check backend config exists
	if c.Archive.Enabled {
		switch c.Archive.Type {
		case "localfs":
			if c.Archive.Path == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("archive path required when type is localfs"))
			}
		case "s3":
			if c.Archive.S3.Bucket == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("s3 bucket required when type is s3"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("archive type must be localfs or s3, got %q", c.Archive.Type))
		}
	}

	// Watchdog validation
	if c.Watchdog.Enabled && (c.Watchdog.RlimitFraction <= 0 || c.Watchdog.RlimitFraction > 1) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("rlimit_fraction must be in (0, 1], got %f", c.Watchdog.RlimitFraction))
	}
	if c.Watchdog.Interval < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("watchdog interval cannot be negative, got %s", c.Watchdog.Interval))
	}
	if c.Watchdog.MaxDescriptors < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_descriptors cannot be negative, got %d", c.Watchdog.MaxDescriptors))
	}

	// Sessions validation
	if c.Sessions.Max < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("sessions max cannot be negative, got %d", c.Sessions.Max))
	}
	if c.Sessions.TTL < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("sessions ttl cannot be negative, got %s", c.Sessions.TTL))
	}

	return nil
}
