package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/streakmatch/storage"
	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds every setting of the service. Values come from the environment,
// optionally seeded from a .env file.
type Config struct {
	DatabaseURL  string `env:"DATABASE_URL"`
	JWTSecretKey string `env:"JWT_SECRET_KEY"`
	ServerPort   int    `env:"SERVER_PORT"  envDefault:"8080"`
	StoreDriver  string `env:"STORE_DRIVER" envDefault:"postgres"`
	LogLevel     string `env:"LOG_LEVEL"    envDefault:"info"`

	ForfeitWindow        time.Duration `env:"FORFEIT_WINDOW"            envDefault:"48h"`
	ResultWindow         time.Duration `env:"RESULT_WINDOW"             envDefault:"24h"`
	FeedCacheTTL         time.Duration `env:"FEED_CACHE_TTL"            envDefault:"15s"`
	ScoreCacheTTL        time.Duration `env:"SCORE_CACHE_TTL"           envDefault:"30s"`
	OutcomeRetryInterval time.Duration `env:"OUTCOME_RETRY_INTERVAL"    envDefault:"30s"`
	LiveSweepInterval    time.Duration `env:"MATCH_LIVE_SWEEP_INTERVAL" envDefault:"1m"`
	OutcomeApplyAttempts int           `env:"OUTCOME_APPLY_ATTEMPTS"    envDefault:"3"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	R2AccountID       string `env:"R2_ACCOUNT_ID"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	R2SecretAccessKey string `env:"R2_SECRET_ACCESS_KEY"`
	R2BucketName      string `env:"R2_BUCKET_NAME"`
	R2PublicBaseURL   string `env:"R2_PUBLIC_BASE_URL"`
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the configuration from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL environment variable is not set")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver)
	}

	if c.JWTSecretKey == "" {
		return errors.New("JWT_SECRET_KEY environment variable is not set")
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort)
	}
	if c.ForfeitWindow <= 0 {
		return fmt.Errorf("FORFEIT_WINDOW must be positive, got %s", c.ForfeitWindow)
	}
	if c.ResultWindow <= 0 {
		return fmt.Errorf("RESULT_WINDOW must be positive, got %s", c.ResultWindow)
	}
	if c.OutcomeApplyAttempts < 1 {
		return fmt.Errorf("OUTCOME_APPLY_ATTEMPTS must be at least 1, got %d", c.OutcomeApplyAttempts)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	origins := c.CORSAllowedOrigins[:0]
	for _, o := range c.CORSAllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSAllowedOrigins = origins
	return nil
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func (c *Config) R2() storage.R2Config {
	return storage.R2Config{
		AccountID:       c.R2AccountID,
		AccessKeyID:     c.R2AccessKeyID,
		SecretAccessKey: c.R2SecretAccessKey,
		BucketName:      c.R2BucketName,
		PublicBaseURL:   c.R2PublicBaseURL,
	}
}
