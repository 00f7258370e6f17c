// Package database provides a PostgreSQL connection pool built on pgx
// with connection retry, health checks, transactions, and schema migrations.
package database
