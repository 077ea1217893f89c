package history

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/datavet-systems/datavet/pkg/types"
)

// Compile-time interface satisfaction check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps all history in process memory. It backs single-process
// deployments and tests; nothing survives a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	metrics map[string][]types.QualityMetrics // per dataset, append order
	runs    map[string][]types.ValidationResult
	alerts  map[string]types.Alert // by AlertID
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		metrics: make(map[string][]types.QualityMetrics),
		runs:    make(map[string][]types.ValidationResult),
		alerts:  make(map[string]types.Alert),
	}
}

// AppendMetrics appends one metric snapshot for the dataset.
func (s *MemoryStore) AppendMetrics(_ context.Context, m types.QualityMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics[m.Dataset] = append(s.metrics[m.Dataset], m)
	return nil
}

// ListMetrics returns up to limit snapshots for the dataset, newest first.
func (s *MemoryStore) ListMetrics(_ context.Context, dataset string, limit int) ([]types.QualityMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.metrics[dataset]
	if limit <= 0 || limit > len(series) {
		limit = len(series)
	}
	out := make([]types.QualityMetrics, 0, limit)
	for i := len(series) - 1; i >= len(series)-limit; i-- {
		out = append(out, series[i])
	}
	return out, nil
}

// RecordRun appends one validation run for the dataset.
func (s *MemoryStore) RecordRun(_ context.Context, result types.ValidationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[result.Dataset] = append(s.runs[result.Dataset], result)
	return nil
}

// ListRuns returns up to limit runs for the dataset, newest first.
func (s *MemoryStore) ListRuns(_ context.Context, dataset string, limit int) ([]types.ValidationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := s.runs[dataset]
	if limit <= 0 || limit > len(runs) {
		limit = len(runs)
	}
	out := make([]types.ValidationResult, 0, limit)
	for i := len(runs) - 1; i >= len(runs)-limit; i-- {
		out = append(out, runs[i])
	}
	return out, nil
}

// UpsertAlert stores or replaces an alert by its AlertID.
func (s *MemoryStore) UpsertAlert(_ context.Context, alert types.Alert) error {
	if alert.AlertID == "" {
		return fmt.Errorf("upsert alert: empty alert ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[alert.AlertID] = alert
	return nil
}

// GetAlert retrieves an alert by ID.
func (s *MemoryStore) GetAlert(_ context.Context, alertID string) (*types.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.alerts[alertID]
	if !ok {
		return nil, fmt.Errorf("alert %q: %w", alertID, ErrNotFound)
	}
	return &a, nil
}

// ListOpenAlerts returns the dataset's alerts that are not yet RESOLVED,
// newest first.
func (s *MemoryStore) ListOpenAlerts(_ context.Context, dataset string) ([]types.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Alert
	for _, a := range s.alerts {
		if a.Dataset == dataset && a.Status != types.AlertResolved {
			out = append(out, a)
		}
	}
	sortAlerts(out)
	return out, nil
}

// ListAlerts returns recent alerts for the dataset, newest first.
func (s *MemoryStore) ListAlerts(_ context.Context, dataset string, limit int) ([]types.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Alert
	for _, a := range s.alerts {
		if a.Dataset == dataset {
			out = append(out, a)
		}
	}
	sortAlerts(out)
	return capAlerts(out, limit), nil
}

// ListAllAlerts returns recent alerts across all datasets, newest first.
func (s *MemoryStore) ListAllAlerts(_ context.Context, limit int) ([]types.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, a)
	}
	sortAlerts(out)
	return capAlerts(out, limit), nil
}

// ListDatasets returns every dataset with recorded history, sorted.
func (s *MemoryStore) ListDatasets(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for ds := range s.metrics {
		seen[ds] = struct{}{}
	}
	for ds := range s.runs {
		seen[ds] = struct{}{}
	}
	for _, a := range s.alerts {
		seen[a.Dataset] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for ds := range seen {
		out = append(out, ds)
	}
	sort.Strings(out)
	return out, nil
}

// PruneBefore drops metrics and runs older than cutoff and RESOLVED alerts
// resolved before it.
func (s *MemoryStore) PruneBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for ds, series := range s.metrics {
		kept := series[:0]
		for _, m := range series {
			if m.MeasuredAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, m)
		}
		s.metrics[ds] = kept
	}
	for ds, runs := range s.runs {
		kept := runs[:0]
		for _, r := range runs {
			if r.Timestamp.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		s.runs[ds] = kept
	}
	for id, a := range s.alerts {
		if a.Status == types.AlertResolved && a.ResolvedAt != nil && a.ResolvedAt.Before(cutoff) {
			delete(s.alerts, id)
			removed++
		}
	}
	return removed, nil
}

// Start is a no-op for the in-memory store.
func (s *MemoryStore) Start(_ context.Context) error { return nil }

// Stop is a no-op for the in-memory store.
func (s *MemoryStore) Stop(_ context.Context) error { return nil }

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func sortAlerts(alerts []types.Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].TriggeredAt.Equal(alerts[j].TriggeredAt) {
			return alerts[i].AlertID > alerts[j].AlertID
		}
		return alerts[i].TriggeredAt.After(alerts[j].TriggeredAt)
	})
}

func capAlerts(alerts []types.Alert, limit int) []types.Alert {
	if limit > 0 && len(alerts) > limit {
		return alerts[:limit]
	}
	return alerts
}
