package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	internal "github.com/ZanzyTHEbar/gacha-sync/gsync"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	GSync GSyncConfig `mapstructure:"gsync"`
}

// GSyncConfig stores the puller specific configurations.
type GSyncConfig struct {
	LogLevel  string          `mapstructure:"logLevel"`
	Database  DatabaseConfig  `mapstructure:"database"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Pacing    PacingConfig    `mapstructure:"pacing"`
	Validator ValidatorConfig `mapstructure:"validator"`
	Kuro      KuroConfig      `mapstructure:"kuro"`
}

// DatabaseConfig stores database connection details.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// HTTPConfig stores the remote API client settings.
// A zero timeout keeps the client default, which never times out.
type HTTPConfig struct {
	UserAgent      string `mapstructure:"userAgent"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds"`
}

// PacingConfig controls the courtesy sleeps between remote calls.
type PacingConfig struct {
	SleepSeconds int `mapstructure:"sleepSeconds"`
	Burst        int `mapstructure:"burst"`
}

// ValidatorConfig controls validated url memoization.
type ValidatorConfig struct {
	TTLHours int `mapstructure:"ttlHours"`
}

// KuroConfig stores Kuro (Wuthering Waves) specific settings.
type KuroConfig struct {
	RecordEndpoint string `mapstructure:"recordEndpoint"`
}

// Sleep returns the pacing sleep as a duration.
func (c *Config) Sleep() time.Duration {
	return time.Duration(c.GSync.Pacing.SleepSeconds) * time.Second
}

// TTL returns the validated url freshness window.
func (c *Config) TTL() time.Duration {
	return time.Duration(c.GSync.Validator.TTLHours) * time.Hour
}

// Timeout returns the per request timeout, zero means none.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.GSync.HTTP.TimeoutSeconds) * time.Second
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("..")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Set default values
	v.SetDefault("gsync.logLevel", "info")
	v.SetDefault("gsync.database.dsn", internal.DefaultDatabaseDSN)
	v.SetDefault("gsync.http.userAgent", internal.DefaultUserAgent)
	v.SetDefault("gsync.http.timeoutSeconds", 0)
	v.SetDefault("gsync.pacing.sleepSeconds", 3)
	v.SetDefault("gsync.pacing.burst", 5)
	v.SetDefault("gsync.validator.ttlHours", 24)
	v.SetDefault("gsync.kuro.recordEndpoint", internal.DefaultKuroRecordEndpoint)

	v.AutomaticEnv()                                   // Read in environment variables that match
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // gsync.pacing.burst becomes GSYNC_PACING_BURST

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults will be used.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if cfg.GSync.Pacing.Burst <= 0 {
		return nil, fmt.Errorf("gsync.pacing.burst must be positive, got %d", cfg.GSync.Pacing.Burst)
	}
	if cfg.GSync.Validator.TTLHours <= 0 {
		return nil, fmt.Errorf("gsync.validator.ttlHours must be positive, got %d", cfg.GSync.Validator.TTLHours)
	}

	return &cfg, nil
}
