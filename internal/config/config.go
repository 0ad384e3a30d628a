// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel                string        `mapstructure:"LOG_LEVEL"`
	Environment             string        `mapstructure:"ENVIRONMENT"`
	HTTPAddr                string        `mapstructure:"HTTP_ADDR"`
	StoreDriver             string        `mapstructure:"STORE_DRIVER"`
	DBURL                   string        `mapstructure:"DB_URL"`
	MigrationsPath          string        `mapstructure:"MIGRATIONS_PATH"`
	GithubToken             string        `mapstructure:"GITHUB_TOKEN"`
	GithubBaseURL           string        `mapstructure:"GITHUB_BASE_URL"`
	GithubRequestsPerSecond float64       `mapstructure:"GITHUB_REQUESTS_PER_SECOND"`
	GithubBurst             int           `mapstructure:"GITHUB_BURST"`
	ReposToRegister         []string      `mapstructure:"REPOS_TO_REGISTER"`
	SyncInterval            time.Duration `mapstructure:"SYNC_INTERVAL"`
	SyncConcurrency         int           `mapstructure:"SYNC_CONCURRENCY"`
	CycleTimeout            time.Duration `mapstructure:"CYCLE_TIMEOUT"`
	RedisAddr               string        `mapstructure:"REDIS_ADDR"`
	RedisPassword           string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB                 int           `mapstructure:"REDIS_DB"`
	LockTTL                 time.Duration `mapstructure:"LOCK_TTL"`
}

// IsDevelopment reports whether internal error details may be returned to clients.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ENVIRONMENT", "production")
	v.SetDefault("HTTP_ADDR", ":5000")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("MIGRATIONS_PATH", "file://migrations")
	v.SetDefault("GITHUB_REQUESTS_PER_SECOND", 1.0)
	v.SetDefault("GITHUB_BURST", 10)
	v.SetDefault("REPOS_TO_REGISTER", []string{})
	v.SetDefault("SYNC_INTERVAL", "24h")
	v.SetDefault("SYNC_CONCURRENCY", 5)
	v.SetDefault("CYCLE_TIMEOUT", "30m")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOCK_TTL", "10m")
	v.SetDefault("DB_URL", "")
	v.SetDefault("GITHUB_TOKEN", "")
	v.SetDefault("GITHUB_BASE_URL", "")

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DBURL == "" {
			return errors.New("DB_URL is a required configuration field")
		}
	case StoreDriverMemory:
	default:
		return errors.New("STORE_DRIVER must be either 'postgres' or 'memory'")
	}
	if c.GithubToken == "" {
		return errors.New("GITHUB_TOKEN is a required configuration field")
	}
	if c.SyncInterval <= 0 {
		return errors.New("SYNC_INTERVAL must be a positive duration")
	}
	if c.SyncConcurrency < 1 {
		return errors.New("SYNC_CONCURRENCY must be at least 1")
	}
	if c.CycleTimeout <= 0 {
		return errors.New("CYCLE_TIMEOUT must be a positive duration")
	}
	if c.GithubRequestsPerSecond <= 0 || c.GithubBurst < 1 {
		return errors.New("GITHUB_REQUESTS_PER_SECOND must be positive and GITHUB_BURST at least 1")
	}
	if c.RedisAddr != "" && c.LockTTL <= 0 {
		return errors.New("LOCK_TTL must be a positive duration when REDIS_ADDR is set")
	}
	return nil
}
