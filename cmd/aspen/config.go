package main

import (
	"fmt"
	"time"

	"github.com/josephdodge8141/aspen-backend/clients"
	"github.com/josephdodge8141/aspen-backend/config"
	"github.com/josephdodge8141/aspen-backend/database"
	"github.com/josephdodge8141/aspen-backend/httpclient"
	"github.com/josephdodge8141/aspen-backend/runs"
	"github.com/josephdodge8141/aspen-backend/server"
)

// runsConfig tunes the ephemeral run registry.
type runsConfig struct {
	// TTL is how long a finished run stays readable.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
	// GCInterval is how often the eviction pass runs.
	GCInterval time.Duration `yaml:"gc_interval" mapstructure:"gc_interval"`
}

// engineConfig tunes workflow execution.
type engineConfig struct {
	// ExprTimeout bounds each expression evaluation during execute.
	ExprTimeout time.Duration `yaml:"expr_timeout" mapstructure:"expr_timeout"`
	// MaxDepth caps sub-workflow nesting.
	MaxDepth int `yaml:"max_depth" mapstructure:"max_depth"`
}

// tracingConfig configures OTLP trace export.
type tracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// appConfig is the full configuration for the workflow service.
type appConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server   server.Config     `yaml:"server" mapstructure:"server"`
	Database database.Config   `yaml:"database" mapstructure:"database"`
	HTTP     httpclient.Config `yaml:"http" mapstructure:"http"`
	Clients  clients.Config    `yaml:"clients" mapstructure:"clients"`
	Runs     runsConfig        `yaml:"runs" mapstructure:"runs"`
	Engine   engineConfig      `yaml:"engine" mapstructure:"engine"`
	Tracing  tracingConfig     `yaml:"tracing" mapstructure:"tracing"`
}

// ApplyDefaults fills unset fields with sensible defaults.
func (c *appConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "aspen"
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.HTTP.ApplyDefaults()

	if c.Runs.TTL <= 0 {
		c.Runs.TTL = runs.DefaultTTL
	}
	if c.Runs.GCInterval <= 0 {
		c.Runs.GCInterval = runs.DefaultGCInterval
	}
	if c.Engine.ExprTimeout <= 0 {
		c.Engine.ExprTimeout = 5 * time.Second
	}
	if c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = "localhost:4318"
		c.Tracing.Insecure = true
	}
	if c.Tracing.SampleRate <= 0 {
		c.Tracing.SampleRate = 1.0
	}
}

// Validate checks the configuration for invalid values.
func (c *appConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("config.http: %w", err)
	}
	if err := c.Clients.Validate(); err != nil {
		return fmt.Errorf("config.clients: %w", err)
	}
	return nil
}
