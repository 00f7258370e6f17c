// Package migration applies ordered SQL schema migrations tracked in a
// schema_migrations table.
package migration

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/josephdodge8141/aspen-backend/database"
	"github.com/josephdodge8141/aspen-backend/logger"
)

// Migration describes a single schema migration. Up runs inside a
// transaction together with the bookkeeping insert.
type Migration struct {
	ID          string
	Description string
	Up          string
}

// Runner applies migrations in registration order.
type Runner struct {
	log        *logger.Logger
	migrations []Migration
}

// NewRunner creates a runner with the given migrations.
func NewRunner(log *logger.Logger, migrations ...Migration) *Runner {
	return &Runner{
		log:        log.WithComponent("migration"),
		migrations: migrations,
	}
}

// Add registers a migration to be applied.
func (r *Runner) Add(m Migration) {
	r.migrations = append(r.migrations, m)
}

// Apply runs all pending migrations in order. Implements database.Migrator.
func (r *Runner) Apply(ctx context.Context, db *database.DB) error {
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id         TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range r.migrations {
		applied, err := r.isApplied(ctx, db, m.ID)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if applied {
			r.log.Debug("Migration already applied", map[string]interface{}{
				"id": m.ID,
			})
			continue
		}

		r.log.Info("Applying migration", map[string]interface{}{
			"id":          m.ID,
			"description": m.Description,
		})
		err = db.WithTransaction(ctx, func(tx pgx.Tx) error {
			if _, execErr := tx.Exec(ctx, m.Up); execErr != nil {
				return execErr
			}
			_, execErr := tx.Exec(ctx,
				`INSERT INTO schema_migrations (id) VALUES ($1)`, m.ID)
			return execErr
		})
		if err != nil {
			return fmt.Errorf("migration %s failed: %w", m.ID, err)
		}
	}
	return nil
}

func (r *Runner) isApplied(ctx context.Context, db *database.DB, id string) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}
