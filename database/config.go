package database

import (
	"fmt"
	"time"
)

// Config holds database connection configuration.
type Config struct {
	// Enabled controls whether the database component is active.
	Enabled bool `mapstructure:"enabled"`

	// DSN is the PostgreSQL connection string.
	DSN string `mapstructure:"dsn"`

	// MaxConns sets the maximum number of connections in the pool.
	MaxConns int32 `mapstructure:"max_conns"`

	// MinConns sets the number of connections the pool keeps warm.
	MinConns int32 `mapstructure:"min_conns"`

	// ConnMaxLifetime is the maximum time a connection may be reused (e.g. "1h", "30m").
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`

	// ConnMaxIdleTime is the maximum time a connection may sit idle (e.g. "5m", "10m").
	ConnMaxIdleTime string `mapstructure:"conn_max_idle_time"`

	// MaxRetries is the number of connection attempts before giving up.
	MaxRetries int `mapstructure:"max_retries"`

	// Migrate controls whether schema migrations run on startup.
	Migrate bool `mapstructure:"migrate"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.MaxConns <= 0 {
		c.MaxConns = 25
	}
	if c.MinConns <= 0 {
		c.MinConns = 2
	}
	if c.ConnMaxLifetime == "" {
		c.ConnMaxLifetime = "1h"
	}
	if c.ConnMaxIdleTime == "" {
		c.ConnMaxIdleTime = "10m"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.DSN == "" {
		return fmt.Errorf("database: dsn is required when enabled")
	}
	if _, err := time.ParseDuration(c.ConnMaxLifetime); c.ConnMaxLifetime != "" && err != nil {
		return fmt.Errorf("database: invalid conn_max_lifetime: %w", err)
	}
	if _, err := time.ParseDuration(c.ConnMaxIdleTime); c.ConnMaxIdleTime != "" && err != nil {
		return fmt.Errorf("database: invalid conn_max_idle_time: %w", err)
	}
	return nil
}
