// Package store provides PostgreSQL persistence for actors (agents and
// human reviewers) and the ruling/precedent archive, with in-memory
// fallbacks for development and tests.
package store

import "database/sql"

// Store provides access to the PostgreSQL database.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store backed by the given database connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}
