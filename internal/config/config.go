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

// Config holds the configuration for the habit service.
// Environment variables are parsed from the HABITS_ prefix.
type Config struct {
	// Build target selects high-level environment: local, cloud-dev, cloud
	BuildTarget string `envconfig:"BUILD_TARGET" default:"cloud-dev"`

	// DBDriver is derived from BuildTarget when set to "auto"
	DBDriver string `envconfig:"DB_DRIVER" default:"auto"`

	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Postgres Configuration
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// SQLite Configuration (local build target)
	SQLitePath string `envconfig:"SQLITE_PATH" default:"chainhabit.db"`

	// Auth
	TokenTTLHours int `envconfig:"TOKEN_TTL_HOURS" default:"720"`
	BcryptCost    int `envconfig:"BCRYPT_COST" default:"12"`

	// Outbound email. When user/password are empty the mailer logs
	// messages instead of sending them.
	SMTPHost     string `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser     string `envconfig:"SMTP_USER" default:""`
	SMTPPassword string `envconfig:"SMTP_PASSWORD" default:""`
	FromAddress  string `envconfig:"FROM_ADDRESS" default:"Habit Tracker App <no-reply@chainhabit.app>"`
	FrontendURL  string `envconfig:"FRONTEND_URL" default:"http://localhost:5173"`

	// Inactivity reminder scan. Fires once per day at ReminderHour (UTC).
	ReminderEnabled bool `envconfig:"REMINDER_ENABLED" default:"true"`
	ReminderHour    int  `envconfig:"REMINDER_HOUR" default:"10"`

	// Health checking
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
}

// ResolveDefaults validates BuildTarget and derives DBDriver when set to "auto" or empty.
func (c *Config) ResolveDefaults() error {
	var defaultDB string

	switch c.BuildTarget {
	case "local":
		defaultDB = "sqlite"
	case "cloud-dev", "cloud":
		defaultDB = "postgres"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.DBDriver == "" || c.DBDriver == "auto" {
		c.DBDriver = defaultDB
	}

	allowedDB := map[string]bool{"postgres": true, "sqlite": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}

	if c.ReminderHour < 0 || c.ReminderHour > 23 {
		return fmt.Errorf("REMINDER_HOUR must be 0-23, got %d", c.ReminderHour)
	}
	return nil
}

// New creates a new Config by parsing environment variables.
// Environment variables are prefixed with HABITS_,
// e.g. HABITS_HTTP_PORT, HABITS_POSTGRES_DSN.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("HABITS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Bool("reminder_enabled", cfg.ReminderEnabled).
		Int("reminder_hour", cfg.ReminderHour).
		Str("postgres_dsn_present", func() string {
			if cfg.PostgresDSN != "" {
				return "true"
			}
			return "false"
		}()).
		Bool("smtp_configured", cfg.SMTPUser != "" && cfg.SMTPPassword != "").
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	cfg := &Config{
		Environment: EnvTesting,
		BuildTarget: "local",
		DBDriver:    "auto",
		HTTPPort:    8080,

		TokenTTLHours: 720,
		BcryptCost:    4,

		ReminderEnabled: false,
		ReminderHour:    10,

		HealthIntervalSeconds:     30,
		HealthProbeTimeoutSeconds: 2,
	}
	_ = cfg.ResolveDefaults()
	return cfg
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
