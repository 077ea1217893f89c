package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/datavet-systems/datavet/internal/history"
	"github.com/datavet-systems/datavet/pkg/types"
)

func activeAlert(id, dataset string, triggeredAt time.Time) types.Alert {
	return types.Alert{
		AlertID:     id,
		Dataset:     dataset,
		Metric:      types.MetricCompleteness,
		Condition:   "completeness < 0.95",
		Severity:    types.SeverityHigh,
		Message:     "completeness breached",
		Value:       0.90,
		Threshold:   0.95,
		Status:      types.AlertActive,
		TriggeredAt: triggeredAt,
	}
}

// TestAlertUpsertGet validates alert round-trip and in-place status updates.
func TestAlertUpsertGet(t *testing.T, store history.Store) {
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	a := activeAlert("st-alert-1", "st-alerts", now)
	if err := store.UpsertAlert(ctx, a); err != nil {
		t.Fatalf("UpsertAlert: %v", err)
	}

	got, err := store.GetAlert(ctx, "st-alert-1")
	if err != nil {
		t.Fatalf("GetAlert: %v", err)
	}
	if got.Status != types.AlertActive || got.Value != 0.90 {
		t.Errorf("unexpected alert state: %+v", got)
	}

	// Upsert by the same ID mutates in place, it does not create a second record.
	resolved := now.Add(time.Minute)
	a.Status = types.AlertResolved
	a.ResolvedAt = &resolved
	a.Notifications = []types.NotificationRecord{{Channel: "console", SentAt: now, Success: true}}
	if err := store.UpsertAlert(ctx, a); err != nil {
		t.Fatalf("UpsertAlert update: %v", err)
	}

	got, err = store.GetAlert(ctx, "st-alert-1")
	if err != nil {
		t.Fatalf("GetAlert after update: %v", err)
	}
	if got.Status != types.AlertResolved {
		t.Errorf("expected RESOLVED, got %s", got.Status)
	}
	if got.ResolvedAt == nil || !got.ResolvedAt.Equal(resolved) {
		t.Errorf("expected resolved_at %v, got %v", resolved, got.ResolvedAt)
	}
	if len(got.Notifications) != 1 || !got.Notifications[0].Success {
		t.Errorf("expected notification log to round-trip, got %+v", got.Notifications)
	}

	all, err := store.ListAlerts(ctx, "st-alerts", 10)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	count := 0
	for _, x := range all {
		if x.AlertID == "st-alert-1" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one record for st-alert-1, got %d", count)
	}
}

// TestAlertGetMissing validates the not-found sentinel.
func TestAlertGetMissing(t *testing.T, store history.Store) {
	_, err := store.GetAlert(context.Background(), "st-alert-ghost")
	if !errors.Is(err, history.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestOpenAlerts validates that only non-RESOLVED alerts are listed as open.
func TestOpenAlerts(t *testing.T, store history.Store) {
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	active := activeAlert("st-open-active", "st-open", now.Add(-2*time.Minute))

	acked := activeAlert("st-open-acked", "st-open", now.Add(-1*time.Minute))
	ackedAt := now
	acked.Status = types.AlertAcknowledged
	acked.AcknowledgedAt = &ackedAt

	resolved := activeAlert("st-open-resolved", "st-open", now.Add(-3*time.Minute))
	resolvedAt := now
	resolved.Status = types.AlertResolved
	resolved.ResolvedAt = &resolvedAt

	for _, a := range []types.Alert{active, acked, resolved} {
		if err := store.UpsertAlert(ctx, a); err != nil {
			t.Fatalf("UpsertAlert: %v", err)
		}
	}

	open, err := store.ListOpenAlerts(ctx, "st-open")
	if err != nil {
		t.Fatalf("ListOpenAlerts: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("expected 2 open alerts, got %d", len(open))
	}
	for _, a := range open {
		if a.Status == types.AlertResolved {
			t.Errorf("resolved alert %q listed as open", a.AlertID)
		}
	}

	other, err := store.ListOpenAlerts(ctx, "st-open-other-dataset")
	if err != nil {
		t.Fatalf("ListOpenAlerts other dataset: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no open alerts for other dataset, got %d", len(other))
	}
}

// TestAlertListOrdering validates newest-first ordering and the limit cap.
func TestAlertListOrdering(t *testing.T, store history.Store) {
	ctx := context.Background()
	base := time.Now().Add(-10 * time.Minute).Truncate(time.Millisecond)

	ids := []string{"st-ord-1", "st-ord-2", "st-ord-3"}
	for i, id := range ids {
		if err := store.UpsertAlert(ctx, activeAlert(id, "st-ordering", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("UpsertAlert: %v", err)
		}
	}

	got, err := store.ListAlerts(ctx, "st-ordering", 2)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(got))
	}
	if got[0].AlertID != "st-ord-3" || got[1].AlertID != "st-ord-2" {
		t.Errorf("expected newest first, got %q then %q", got[0].AlertID, got[1].AlertID)
	}
}

// TestListAllAlerts validates the cross-dataset listing.
func TestListAllAlerts(t *testing.T, store history.Store) {
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	if err := store.UpsertAlert(ctx, activeAlert("st-all-a", "st-all-one", now.Add(-time.Minute))); err != nil {
		t.Fatalf("UpsertAlert: %v", err)
	}
	if err := store.UpsertAlert(ctx, activeAlert("st-all-b", "st-all-two", now)); err != nil {
		t.Fatalf("UpsertAlert: %v", err)
	}

	all, err := store.ListAllAlerts(ctx, 100)
	if err != nil {
		t.Fatalf("ListAllAlerts: %v", err)
	}
	// The store is shared across subtests, so expect at least ours.
	found := map[string]bool{}
	for _, a := range all {
		found[a.AlertID] = true
	}
	if !found["st-all-a"] || !found["st-all-b"] {
		t.Errorf("expected both datasets' alerts in global listing, got %v", found)
	}
}

// TestListDatasets validates that datasets with any history are discoverable.
func TestListDatasets(t *testing.T, store history.Store) {
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	if err := store.AppendMetrics(ctx, snapshot("st-ds-metrics", now, 0.9)); err != nil {
		t.Fatalf("AppendMetrics: %v", err)
	}

	datasets, err := store.ListDatasets(ctx)
	if err != nil {
		t.Fatalf("ListDatasets: %v", err)
	}
	found := false
	for _, ds := range datasets {
		if ds == "st-ds-metrics" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected st-ds-metrics in %v", datasets)
	}
}

// TestPing validates connectivity.
func TestPing(t *testing.T, store history.Store) {
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

// TestPruneBefore validates retention sweeping. Runs last in RunAll: the
// cutoff sits far in the past so other subtests' recent records survive.
func TestPruneBefore(t *testing.T, store history.Store) {
	ctx := context.Background()
	old := time.Now().Add(-90 * 24 * time.Hour).Truncate(time.Millisecond)
	cutoff := time.Now().Add(-45 * 24 * time.Hour)
	now := time.Now().Truncate(time.Millisecond)

	if err := store.AppendMetrics(ctx, snapshot("st-prune", old, 0.5)); err != nil {
		t.Fatalf("AppendMetrics old: %v", err)
	}
	if err := store.AppendMetrics(ctx, snapshot("st-prune", now, 0.9)); err != nil {
		t.Fatalf("AppendMetrics new: %v", err)
	}
	if err := store.RecordRun(ctx, types.ValidationResult{
		RunID: "st-prune-run-old", Dataset: "st-prune", Timestamp: old, TotalRules: 1, Passed: 1, Valid: true,
	}); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	oldResolved := activeAlert("st-prune-resolved", "st-prune", old)
	oldResolvedAt := old.Add(time.Minute)
	oldResolved.Status = types.AlertResolved
	oldResolved.ResolvedAt = &oldResolvedAt
	if err := store.UpsertAlert(ctx, oldResolved); err != nil {
		t.Fatalf("UpsertAlert resolved: %v", err)
	}
	// An old but still-open alert must survive the sweep.
	if err := store.UpsertAlert(ctx, activeAlert("st-prune-open", "st-prune", old)); err != nil {
		t.Fatalf("UpsertAlert open: %v", err)
	}

	removed, err := store.PruneBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("PruneBefore: %v", err)
	}
	if removed < 3 {
		t.Errorf("expected at least 3 records removed (metric, run, resolved alert), got %d", removed)
	}

	metrics, err := store.ListMetrics(ctx, "st-prune", 10)
	if err != nil {
		t.Fatalf("ListMetrics: %v", err)
	}
	if len(metrics) != 1 || metrics[0].Score != 0.9 {
		t.Errorf("expected only the recent snapshot to survive, got %+v", metrics)
	}

	if _, err := store.GetAlert(ctx, "st-prune-resolved"); !errors.Is(err, history.ErrNotFound) {
		t.Errorf("expected resolved alert to be pruned, got %v", err)
	}
	if _, err := store.GetAlert(ctx, "st-prune-open"); err != nil {
		t.Errorf("expected open alert to survive the sweep: %v", err)
	}
}
