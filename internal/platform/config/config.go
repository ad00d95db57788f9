// Copyright (c) 2026 FacultyEval. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values. A local '.env' file is
loaded first when present so that development setups need no exported shell state.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (stores, mailer, lock) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// # Store Drivers

const (
	// DriverPostgres persists accounts and verification records in PostgreSQL.
	DriverPostgres = "postgres"
	// DriverMongo persists them in MongoDB with a TTL index on verification records.
	DriverMongo = "mongo"
	// DriverMemory keeps everything in process. Development and tests only.
	DriverMemory = "memory"
)

// # Configuration Schema

// Config holds all runtime configuration for the FacultyEval API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// StoreDriver selects the persistence backend (postgres, mongo, memory).
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Document Database (MongoDB)
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"facultyeval"`

	// Key-Value Store (Redis). Empty falls back to an in-process key lock.
	RedisURL string `env:"REDIS_URL"`

	// Cryptographic keys for access token signing
	JWTPrivKeyPath string `env:"JWT_PRIVATE_KEY_PATH,required"`
	JWTPubKeyPath  string `env:"JWT_PUBLIC_KEY_PATH,required"`

	// Outbound email (SMTP). Empty host logs messages instead of sending them.
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT"     envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"     envDefault:"FacultyEval <no-reply@facultyeval.app>"`

	// AppBaseURL is the front-end origin used to build verification links.
	AppBaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`

	// AllowedEmailDomains restricts signup to institutional domains. Empty allows all.
	AllowedEmailDomains []string `env:"ALLOWED_EMAIL_DOMAINS" envSeparator:","`

	// Cross-Origin Resource Sharing
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
}

// # Configuration Loading

// Load reads an optional .env file and parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// A missing .env file is the normal case outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to read .env file: %w", err)
	}

	return Parse()
}

// Parse maps the current environment onto a [Config] and validates driver-specific settings.
func Parse() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate enforces settings whose requirement depends on another setting.
func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required for the %s driver", DriverPostgres)
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("config: MONGO_URI is required for the %s driver", DriverMongo)
		}
	case DriverMemory:
		if c.IsProduction() {
			return fmt.Errorf("config: the %s driver cannot be used in production", DriverMemory)
		}
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.SMTPHost != "" && c.SMTPUsername == "" {
		return fmt.Errorf("config: SMTP_USERNAME is required when SMTP_HOST is set")
	}

	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
