// Package storage declares the persistence contract for the project registry.
//
// Implementations live in subpackages:
//
//   - memory: process-local map, used by tests and the "memory" driver
//   - sqlite: modernc.org/sqlite, the default driver
//   - postgres: jackc/pgx connection pool
package storage
