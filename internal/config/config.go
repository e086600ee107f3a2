// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full service configuration.
type Config struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// Store selects the persistence backend: "postgres" or "memory".
	Store string `env:"STORE" envDefault:"postgres"`

	// JWTSecret enables HS256 bearer token verification. When empty the
	// service trusts the user id header set by an upstream gateway.
	JWTSecret         string `env:"JWT_SECRET"`
	UserHeader        string `env:"USER_ID_HEADER" envDefault:"X-User-ID"`
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"*"`

	RateLimit RateLimit `envPrefix:"RATE_LIMIT_"`
	Database  Database  `envPrefix:"DB_"`
	Redis     Redis     `envPrefix:"REDIS_"`
}

// Database holds PostgreSQL connection settings.
type Database struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"postgres"`
	Password string `env:"PASSWORD" envDefault:"postgres"`
	Name     string `env:"NAME" envDefault:"eventbooking"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`

	MaxConns int32 `env:"MAX_CONNS" envDefault:"20"`
	MinConns int32 `env:"MIN_CONNS" envDefault:"2"`

	ConnectAttempts int           `env:"CONNECT_ATTEMPTS" envDefault:"5"`
	ConnectBackoff  time.Duration `env:"CONNECT_BACKOFF" envDefault:"2s"`
	// LockTimeout bounds the wait for an event row lock.
	LockTimeout time.Duration `env:"LOCK_TIMEOUT" envDefault:"5s"`
}

// DSN builds a libpq-compatible connection string.
func (c Database) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Redis holds the optional Redis connection. An empty URL disables the
// rate limiter and switches notifications to an in-process channel.
type Redis struct {
	URL      string `env:"URL"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// Enabled reports whether a Redis server is configured.
func (r Redis) Enabled() bool { return r.URL != "" }

// RateLimit configures the register/cancel limiter.
type RateLimit struct {
	Requests int           `env:"REQUESTS" envDefault:"30"`
	Window   time.Duration `env:"WINDOW" envDefault:"1m"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case "postgres", "memory":
	default:
		return fmt.Errorf("STORE must be postgres or memory, got %q", c.Store)
	}
	if c.RateLimit.Requests < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must not be negative")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	return nil
}
