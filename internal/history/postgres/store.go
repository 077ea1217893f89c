package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/datavet-systems/datavet/internal/history"
)

// Compile-time interface satisfaction check.
var _ history.Store = (*Store)(nil)

// Store is a Postgres-backed history store.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Postgres Store and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewFromPool creates a Store from an existing pool (useful for testing).
func NewFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate runs the schema DDL to create tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

// Start migrates the schema and verifies connectivity.
func (s *Store) Start(ctx context.Context) error {
	if err := s.Migrate(ctx); err != nil {
		return err
	}
	return s.Ping(ctx)
}

// Stop closes the connection pool.
func (s *Store) Stop(_ context.Context) error {
	s.pool.Close()
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return history.Unavailable("postgres ping", err)
	}
	return nil
}
