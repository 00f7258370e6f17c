package database

import (
	"context"
	"fmt"

	"github.com/josephdodge8141/aspen-backend/component"
	"github.com/josephdodge8141/aspen-backend/logger"
)

// Migrator applies schema migrations against an established pool.
type Migrator interface {
	Apply(ctx context.Context, db *DB) error
}

// Component wraps DB and implements component.Component for lifecycle
// management.
type Component struct {
	db       *DB
	cfg      Config
	log      *logger.Logger
	migrator Migrator
}

// NewComponent creates a database component for use with the component registry.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	return &Component{
		cfg: cfg,
		log: log.WithComponent("database"),
	}
}

// WithMigrator registers a migrator to run on Start when cfg.Migrate is set.
func (c *Component) WithMigrator(m Migrator) *Component {
	c.migrator = m
	return c
}

// DB returns the underlying *DB, or nil if not started.
func (c *Component) DB() *DB {
	return c.db
}

var _ component.Component = (*Component)(nil)

// Name returns the component name.
func (c *Component) Name() string { return "database" }

// Start connects to the database and optionally runs migrations.
func (c *Component) Start(ctx context.Context) error {
	db, err := NewWithContext(ctx, c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("database start: %w", err)
	}
	c.db = db

	if c.cfg.Migrate && c.migrator != nil {
		if err := c.migrator.Apply(ctx, c.db); err != nil {
			return fmt.Errorf("database migrate: %w", err)
		}
	}
	return nil
}

// Stop gracefully closes the connection pool.
func (c *Component) Stop(_ context.Context) error {
	if c.db != nil {
		c.db.Close()
	}
	return nil
}

// Health returns the current health status of the database.
func (c *Component) Health(ctx context.Context) component.Health {
	if c.db == nil {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusUnhealthy,
			Message: "database not initialized",
		}
	}
	if err := c.db.Ping(ctx); err != nil {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusUnhealthy,
			Message: err.Error(),
		}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// Describe reports connection details for the startup summary.
func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "PostgreSQL",
		Type:    "database",
		Details: fmt.Sprintf("pool=%d/%d", c.cfg.MaxConns, c.cfg.MinConns),
	}
}
