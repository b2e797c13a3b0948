package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the coach service.
// Environment variables are parsed from the COACH_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Persistence. Exactly one driver is active per deployment.
	DBDriver    string `envconfig:"DB_DRIVER" default:"auto"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:""`

	// Completion upstream (OpenAI-compatible chat completions endpoint).
	CompletionBaseURL        string  `envconfig:"COMPLETION_BASE_URL" default:"https://api.openai.com"`
	CompletionAPIKey         string  `envconfig:"COMPLETION_API_KEY" default:""`
	CompletionModel          string  `envconfig:"COMPLETION_MODEL" default:"gpt-4o-mini"`
	CompletionMaxTokens      int     `envconfig:"COMPLETION_MAX_TOKENS" default:"600"`
	CompletionTemperature    float32 `envconfig:"COMPLETION_TEMPERATURE" default:"0.7"`
	CompletionTimeoutSeconds int     `envconfig:"COMPLETION_TIMEOUT_SECONDS" default:"30"`

	// Entitlement gating
	FreeDailyLimit int `envconfig:"FREE_DAILY_LIMIT" default:"3"`

	// Auth tokens
	JWTAccessSecret         string `envconfig:"JWT_ACCESS_SECRET" default:"dev_access"`
	JWTRefreshSecret        string `envconfig:"JWT_REFRESH_SECRET" default:"dev_refresh"`
	AccessTokenTTLMinutes   int    `envconfig:"ACCESS_TOKEN_TTL_MINUTES" default:"15"`
	RefreshTokenTTLHours    int    `envconfig:"REFRESH_TOKEN_TTL_HOURS" default:"720"`
	RevenueCatWebhookSecret string `envconfig:"REVENUECAT_WEBHOOK_SECRET" default:""`

	// Health checking
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"15"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
}

// ResolveDefaults derives the DB driver when set to "auto" and validates the
// resulting selection.
func (c *Config) ResolveDefaults() error {
	if c.DBDriver == "" || c.DBDriver == "auto" {
		if c.PostgresDSN != "" {
			c.DBDriver = "postgres"
		} else {
			c.DBDriver = "sqlite"
		}
	}

	switch c.DBDriver {
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("DB_DRIVER is postgres but POSTGRES_DSN is empty")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			c.SQLitePath = "coach.db"
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}

	if c.FreeDailyLimit <= 0 {
		return fmt.Errorf("FREE_DAILY_LIMIT must be positive")
	}
	return nil
}

// New creates a new Config by parsing environment variables.
// Environment variables should be prefixed with COACH_
// Example: COACH_HTTP_PORT, COACH_POSTGRES_DSN
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("COACH", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Int("port", cfg.HTTPPort).
		Str("completion_model", cfg.CompletionModel).
		Int("free_daily_limit", cfg.FreeDailyLimit).
		Str("postgres_dsn_present", func() string {
			if cfg.PostgresDSN != "" {
				return "true"
			}
			return "false"
		}()).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing.
func NewForTesting() *Config {
	return &Config{
		Environment:               EnvTesting,
		HTTPPort:                  8080,
		DBDriver:                  "sqlite",
		SQLitePath:                ":memory:",
		CompletionBaseURL:         "http://localhost:0",
		CompletionModel:           "gpt-4o-mini",
		CompletionMaxTokens:       600,
		CompletionTemperature:     0.7,
		CompletionTimeoutSeconds:  5,
		FreeDailyLimit:            3,
		JWTAccessSecret:           "test_access",
		JWTRefreshSecret:          "test_refresh",
		AccessTokenTTLMinutes:     15,
		RefreshTokenTTLHours:      720,
		HealthIntervalSeconds:     1,
		HealthProbeTimeoutSeconds: 1,
	}
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
