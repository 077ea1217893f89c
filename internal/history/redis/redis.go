// Package redis implements the history.Store interface on Redis/Valkey.
// Metric and run series are sorted sets scored by timestamp; alerts are JSON
// strings with per-dataset and global sorted-set indexes.
package redis

import (
	"context"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/datavet-systems/datavet/internal/history"
	"github.com/datavet-systems/datavet/pkg/types"
)

// Compile-time interface satisfaction check.
var _ history.Store = (*Store)(nil)

// SCAN batch size and default sorted-set trim limit.
const (
	scanBatchSize         = 100
	defaultIndexMax int64 = 500
)

// Store implements history.Store backed by Redis/Valkey.
type Store struct {
	client   *goredis.Client
	prefix   string
	indexMax int64
	logger   *slog.Logger
}

// New creates a Redis history store from configuration.
func New(cfg *types.RedisConfig) *Store {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	s := NewFromClient(client, cfg.KeyPrefix)
	if cfg.IndexMax > 0 {
		s.indexMax = cfg.IndexMax
	}
	return s
}

// NewFromClient creates a Store from an existing client (useful for testing).
func NewFromClient(client *goredis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "datavet:"
	}
	return &Store{
		client:   client,
		prefix:   prefix,
		indexMax: defaultIndexMax,
		logger:   slog.Default(),
	}
}

// SetLogger overrides the default logger.
func (s *Store) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// Start verifies connectivity.
func (s *Store) Start(ctx context.Context) error {
	return s.Ping(ctx)
}

// Stop closes the client connection.
func (s *Store) Stop(_ context.Context) error {
	return s.client.Close()
}

// Ping checks connectivity to the Redis server.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return history.Unavailable("redis ping", err)
	}
	return nil
}

// Client returns the underlying Redis client (for advanced usage/testing).
func (s *Store) Client() *goredis.Client {
	return s.client
}

func (s *Store) metricsKey(dataset string) string { return s.prefix + "metrics:" + dataset }
func (s *Store) runsKey(dataset string) string    { return s.prefix + "runs:" + dataset }
func (s *Store) alertKey(alertID string) string   { return s.prefix + "alert:" + alertID }
func (s *Store) alertIndexKey(dataset string) string {
	return s.prefix + "alerts:" + dataset
}
func (s *Store) alertGlobalKey() string         { return s.prefix + "alerts:all" }
func (s *Store) openKey(dataset string) string  { return s.prefix + "alerts:open:" + dataset }
func (s *Store) datasetsKey() string            { return s.prefix + "datasets" }
