package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/datavet-systems/datavet/pkg/types"
)

// SweepResult reports what one retention sweep removed.
type SweepResult struct {
	Pruned       int `json:"pruned"`
	AutoResolved int `json:"autoResolved"`
}

// Sweep prunes history past the retention window and resolves open alerts on
// datasets that have gone quiet. Without a configured retention it is a no-op.
func (m *Monitor) Sweep(ctx context.Context) (SweepResult, error) {
	return m.sweepAt(ctx, time.Now())
}

func (m *Monitor) sweepAt(ctx context.Context, now time.Time) (SweepResult, error) {
	var res SweepResult
	if m.retention <= 0 {
		return res, nil
	}

	cutoff := now.Add(-m.retention)
	pruned, err := m.store.PruneBefore(ctx, cutoff)
	if err != nil {
		return res, fmt.Errorf("pruning history: %w", err)
	}
	res.Pruned = pruned

	datasets, err := m.store.ListDatasets(ctx)
	if err != nil {
		return res, fmt.Errorf("listing datasets: %w", err)
	}
	for _, ds := range datasets {
		n, err := m.resolveStale(ctx, ds, cutoff, now)
		if err != nil {
			m.logger.Warn("stale alert sweep failed", "dataset", ds, "error", err)
			continue
		}
		res.AutoResolved += n
	}

	if res.Pruned > 0 || res.AutoResolved > 0 {
		m.logger.Info("history sweep complete",
			"pruned", res.Pruned, "autoResolved", res.AutoResolved)
	}
	return res, nil
}

// resolveStale resolves open alerts for a dataset with no snapshot younger
// than the retention cutoff. Such alerts can no longer clear through Observe
// because the dataset has stopped reporting.
func (m *Monitor) resolveStale(ctx context.Context, dataset string, cutoff, now time.Time) (int, error) {
	lock := m.datasetLock(dataset)
	lock.Lock()
	defer lock.Unlock()

	snaps, err := m.store.ListMetrics(ctx, dataset, 1)
	if err != nil {
		return 0, err
	}
	if len(snaps) > 0 && snaps[0].MeasuredAt.After(cutoff) {
		return 0, nil // dataset still reporting
	}

	open, err := m.store.ListOpenAlerts(ctx, dataset)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, alert := range open {
		if err := Transition(alert.Status, types.AlertResolved); err != nil {
			continue
		}
		t := now
		alert.Status = types.AlertResolved
		alert.ResolvedAt = &t
		if err := m.store.UpsertAlert(ctx, alert); err != nil {
			return resolved, err
		}
		resolved++
		m.logger.Info("auto-resolved stale alert",
			"dataset", dataset, "alertID", alert.AlertID, "metric", alert.Metric)
	}
	return resolved, nil
}
