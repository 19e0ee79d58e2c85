package database

import "context"

// Repository provides data access on top of the shared connection pool
type Repository struct {
	db *DB
}

// NewRepository creates a repository backed by db
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
