// Package history defines the persistence contract for quality metric time
// series, validation runs and alert state, plus the in-memory reference
// implementation. Redis, Postgres and DynamoDB backends live in subpackages.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/datavet-systems/datavet/pkg/types"
)

// ErrUnavailable classifies backend connectivity failures. The monitor treats
// it as a degraded condition: metrics are still computed and returned, alert
// evaluation for that observation is skipped.
var ErrUnavailable = errors.New("history store unavailable")

// ErrNotFound is returned when a requested alert does not exist.
var ErrNotFound = errors.New("not found")

// Unavailable wraps a backend transport error so callers can classify it with
// errors.Is(err, ErrUnavailable) while keeping the cause in the chain.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// Store is the storage backend contract. Metric snapshots and validation runs
// are append-only; alerts are mutable records upserted by AlertID. List
// methods return newest first.
type Store interface {
	// Metric time series, one snapshot per (dataset, measured-at).
	AppendMetrics(ctx context.Context, m types.QualityMetrics) error
	ListMetrics(ctx context.Context, dataset string, limit int) ([]types.QualityMetrics, error)

	// Validation runs.
	RecordRun(ctx context.Context, result types.ValidationResult) error
	ListRuns(ctx context.Context, dataset string, limit int) ([]types.ValidationResult, error)

	// Alert state. Open means not yet RESOLVED.
	UpsertAlert(ctx context.Context, alert types.Alert) error
	GetAlert(ctx context.Context, alertID string) (*types.Alert, error)
	ListOpenAlerts(ctx context.Context, dataset string) ([]types.Alert, error)
	ListAlerts(ctx context.Context, dataset string, limit int) ([]types.Alert, error)
	ListAllAlerts(ctx context.Context, limit int) ([]types.Alert, error)

	// Datasets with any recorded history.
	ListDatasets(ctx context.Context) ([]string, error)

	// PruneBefore removes metric snapshots and runs older than cutoff, plus
	// RESOLVED alerts resolved before it. Returns the number of records removed.
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Lifecycle.
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Ping(ctx context.Context) error
}
