// Integration tests exercising the full path from records to alert delivery:
// rule loading, validation, quality measurement, monitoring, and sinks wired
// together the way the serve command wires them.
package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datavet-systems/datavet/internal/alert"
	"github.com/datavet-systems/datavet/internal/engine"
	"github.com/datavet-systems/datavet/internal/history"
	"github.com/datavet-systems/datavet/internal/monitor"
	"github.com/datavet-systems/datavet/internal/quality"
	"github.com/datavet-systems/datavet/internal/rules"
	"github.com/datavet-systems/datavet/pkg/dataset"
	"github.com/datavet-systems/datavet/pkg/types"
)

func writeRuleFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func readAlertLog(t *testing.T, path string) []types.Alert {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)

	var alerts []types.Alert
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var a types.Alert
		require.NoError(t, json.Unmarshal(line, &a))
		alerts = append(alerts, a)
	}
	return alerts
}

// orderRecords builds n rows with amount nulled on the first nullAmounts rows.
func orderRecords(n, nullAmounts int) []map[string]any {
	records := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		rec := map[string]any{
			"order_id": 1000 + i,
			"amount":   float64(10 * (i + 1)),
		}
		if i < nullAmounts {
			rec["amount"] = nil
		}
		records = append(records, rec)
	}
	return records
}

// ---------------------------------------------------------------------------
// Test 1: Healthy dataset: rules from disk, clean metrics, no alerts
// ---------------------------------------------------------------------------

func TestIntegration_HealthyDataset_NoAlerts(t *testing.T) {
	tmpDir := t.TempDir()
	rulesDir := filepath.Join(tmpDir, "rules")
	require.NoError(t, os.MkdirAll(rulesDir, 0o755))
	alertLog := filepath.Join(tmpDir, "alerts.log")

	writeRuleFile(t, rulesDir, "orders.yaml", `dataset: orders
rules:
  - kind: not-null
    columns: [order_id, amount]
    severity: HIGH
  - kind: unique
    columns: [order_id]
    severity: HIGH
  - kind: range
    columns: [amount]
    params:
      min: 0
    severity: MEDIUM
`)

	specs, err := rules.LoadDir(rulesDir, "orders")
	require.NoError(t, err)
	require.Len(t, specs, 3)

	store := history.NewMemory()
	dispatcher, err := alert.NewDispatcher([]types.SinkConfig{
		{Type: types.SinkConsole},
		{Type: types.SinkFile, Path: alertLog},
	})
	require.NoError(t, err)

	mon := monitor.New(store, &types.MonitorConfig{
		Conditions: []types.AlertCondition{
			{Metric: types.MetricCompleteness, Operator: "<", Threshold: 0.95, Severity: types.SeverityHigh},
			{Metric: types.MetricQualityScore, Operator: "<", Threshold: 0.9, Severity: types.SeverityMedium},
		},
	})
	mon.SetNotifier(dispatcher.NotifyFunc())

	exec := engine.New(rules.NewRegistry())
	calc, err := quality.New(types.DefaultWeights())
	require.NoError(t, err)
	calc.SetKeyColumns("order_id")

	ctx := context.Background()

	// Step 1: Validate
	ds := dataset.FromRecords("orders", orderRecords(20, 0))
	result, err := exec.Execute(ctx, ds, specs)
	require.NoError(t, err)
	assert.True(t, result.Valid, "clean dataset should validate")
	assert.Equal(t, 3, result.Passed)

	require.NoError(t, store.RecordRun(ctx, *result))

	// Step 2: Measure quality
	metrics, err := calc.Measure(ds, result)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, metrics.Completeness, 1e-9)
	assert.InDelta(t, 1.0, metrics.Uniqueness, 1e-9)
	assert.InDelta(t, 1.0, metrics.Score, 1e-9)

	// Step 3: Observe; nothing should trigger
	report, err := mon.Observe(ctx, metrics)
	require.NoError(t, err)
	assert.Empty(t, report.Triggered)
	assert.Empty(t, report.Resolved)
	assert.False(t, report.Degraded)

	// History holds the snapshot and the run
	snaps, err := store.ListMetrics(ctx, "orders", 0)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
	runs, err := store.ListRuns(ctx, "orders", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	// No alerts delivered for the happy path
	assert.Empty(t, readAlertLog(t, alertLog))
}

// ---------------------------------------------------------------------------
// Test 2: Degraded dataset: alert fires, cooldown holds, ack, recovery
// ---------------------------------------------------------------------------

func TestIntegration_DegradedDataset_AlertLifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	alertLog := filepath.Join(tmpDir, "alerts.log")

	var webhookHits atomic.Int64
	var lastPayload atomic.Value
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var a types.Alert
		if err := json.NewDecoder(r.Body).Decode(&a); err == nil {
			lastPayload.Store(a)
		}
		webhookHits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	store := history.NewMemory()
	dispatcher, err := alert.NewDispatcher([]types.SinkConfig{
		{Type: types.SinkFile, Path: alertLog},
		{Type: types.SinkWebhook, URL: hook.URL},
	})
	require.NoError(t, err)

	mon := monitor.New(store, &types.MonitorConfig{
		Conditions: []types.AlertCondition{
			{Metric: types.MetricCompleteness, Operator: "<", Threshold: 0.95, Severity: types.SeverityHigh},
		},
		Cooldown: "1h",
	})
	mon.SetNotifier(dispatcher.NotifyFunc())

	specs := []types.RuleSpec{
		{Kind: types.RuleNotNull, Columns: []string{"amount"}, Severity: types.SeverityHigh},
	}
	exec := engine.New(rules.NewRegistry())
	calc, err := quality.New(types.DefaultWeights())
	require.NoError(t, err)

	ctx := context.Background()

	// Step 1: Validate degraded data (3 of 20 amounts null, completeness 0.925)
	ds := dataset.FromRecords("orders", orderRecords(20, 3))
	result, err := exec.Execute(ctx, ds, specs)
	require.NoError(t, err)
	assert.False(t, result.Valid)

	metrics, err := calc.Measure(ds, result)
	require.NoError(t, err)
	assert.Less(t, metrics.Completeness, 0.95)

	// Step 2: Observe triggers one alert, delivered to both sinks
	report, err := mon.Observe(ctx, metrics)
	require.NoError(t, err)
	require.Len(t, report.Triggered, 1)

	triggered := report.Triggered[0]
	assert.Equal(t, types.AlertActive, triggered.Status)
	assert.Equal(t, types.MetricCompleteness, triggered.Metric)
	assert.Equal(t, types.SeverityHigh, triggered.Severity)
	assert.Len(t, triggered.Notifications, 2)

	logged := readAlertLog(t, alertLog)
	require.Len(t, logged, 1)
	assert.Equal(t, triggered.AlertID, logged[0].AlertID)
	assert.Equal(t, int64(1), webhookHits.Load())

	delivered, ok := lastPayload.Load().(types.Alert)
	require.True(t, ok)
	assert.Equal(t, "orders", delivered.Dataset)
	assert.InDelta(t, metrics.Completeness, delivered.Value, 1e-9)

	// Step 3: Still degraded within the cooldown: refreshed, not re-notified
	metrics2, err := calc.Measure(dataset.FromRecords("orders", orderRecords(20, 3)), result)
	require.NoError(t, err)
	report, err = mon.Observe(ctx, metrics2)
	require.NoError(t, err)
	assert.Empty(t, report.Triggered)
	require.Len(t, report.Refreshed, 1)
	assert.Equal(t, triggered.AlertID, report.Refreshed[0].AlertID)
	assert.Len(t, readAlertLog(t, alertLog), 1, "cooldown should suppress repeat delivery")
	assert.Equal(t, int64(1), webhookHits.Load())

	// Step 4: Operator acknowledges
	acked, err := mon.Acknowledge(ctx, triggered.AlertID)
	require.NoError(t, err)
	assert.Equal(t, types.AlertAcknowledged, acked.Status)
	require.NotNil(t, acked.AcknowledgedAt)

	open, err := store.ListOpenAlerts(ctx, "orders")
	require.NoError(t, err)
	assert.Len(t, open, 1, "acknowledged alerts stay open")

	// Step 5: Data recovers and the alert resolves on the next observation
	cleanDS := dataset.FromRecords("orders", orderRecords(20, 0))
	cleanResult, err := exec.Execute(ctx, cleanDS, specs)
	require.NoError(t, err)
	cleanMetrics, err := calc.Measure(cleanDS, cleanResult)
	require.NoError(t, err)

	report, err = mon.Observe(ctx, cleanMetrics)
	require.NoError(t, err)
	require.Len(t, report.Resolved, 1)
	assert.Equal(t, triggered.AlertID, report.Resolved[0].AlertID)

	final, err := store.GetAlert(ctx, triggered.AlertID)
	require.NoError(t, err)
	assert.Equal(t, types.AlertResolved, final.Status)
	require.NotNil(t, final.ResolvedAt)

	open, err = store.ListOpenAlerts(ctx, "orders")
	require.NoError(t, err)
	assert.Empty(t, open)

	// Step 6: Resolution is terminal
	_, err = mon.Resolve(ctx, triggered.AlertID)
	assert.Error(t, err)

	// Resolution itself is not notified
	assert.Equal(t, int64(1), webhookHits.Load())
}

// ---------------------------------------------------------------------------
// Test 3: Trend detection: a sudden drop within absolute bounds still alerts
// ---------------------------------------------------------------------------

func TestIntegration_TrendAnomaly_DetectedAndRecovered(t *testing.T) {
	store := history.NewMemory()
	mon := monitor.New(store, &types.MonitorConfig{
		Trend: &types.TrendConfig{Enabled: true, Window: 10, Sigmas: 3, MinHistory: 3},
	})

	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	snapshot := func(offset time.Duration, completeness, score float64) types.QualityMetrics {
		return types.QualityMetrics{
			Dataset:      "metrics-feed",
			MeasuredAt:   base.Add(offset),
			Completeness: completeness,
			Uniqueness:   1, Validity: 1, Consistency: 1, Timeliness: 1,
			Score: score,
		}
	}

	// Step 1: Seed a stable history (tight variance around 0.98 / 0.99)
	for i, c := range []float64{0.980, 0.981, 0.979, 0.980, 0.982} {
		seed := snapshot(time.Duration(i)*time.Minute, c, c+0.010)
		require.NoError(t, store.AppendMetrics(ctx, seed))
	}

	// Step 2: A drop to 0.90 is far outside 3σ of that history
	report, err := mon.Observe(ctx, snapshot(10*time.Minute, 0.900, 0.910))
	require.NoError(t, err)
	require.Len(t, report.TrendAnomalies, 2, "completeness and quality_score should both deviate")
	assert.Equal(t, types.MetricCompleteness, report.TrendAnomalies[0].Metric)
	assert.Equal(t, types.MetricQualityScore, report.TrendAnomalies[1].Metric)
	assert.Greater(t, report.TrendAnomalies[0].Deviation, 3.0)
	require.Len(t, report.Triggered, 2)
	for _, a := range report.Triggered {
		assert.Equal(t, types.SeverityMedium, a.Severity, "trend alerts default to MEDIUM")
	}

	// Step 3: Recovery widens the window's variance; the alerts resolve
	report, err = mon.Observe(ctx, snapshot(20*time.Minute, 0.980, 0.990))
	require.NoError(t, err)
	assert.Empty(t, report.TrendAnomalies)
	assert.Len(t, report.Resolved, 2)

	open, err := store.ListOpenAlerts(ctx, "metrics-feed")
	require.NoError(t, err)
	assert.Empty(t, open)
}

// ---------------------------------------------------------------------------
// Test 4: Maintenance window: state transitions happen, delivery does not
// ---------------------------------------------------------------------------

func TestIntegration_MaintenanceWindow_SuppressesDelivery(t *testing.T) {
	tmpDir := t.TempDir()
	alertLog := filepath.Join(tmpDir, "alerts.log")

	store := history.NewMemory()
	dispatcher, err := alert.NewDispatcher([]types.SinkConfig{
		{Type: types.SinkFile, Path: alertLog},
	})
	require.NoError(t, err)

	mon := monitor.New(store, &types.MonitorConfig{
		Conditions: []types.AlertCondition{
			{Metric: types.MetricCompleteness, Operator: "<", Threshold: 0.95, Severity: types.SeverityHigh},
		},
		// A window with no days, dates, or times covers every instant.
		Maintenance: []types.MaintenanceWindow{{}},
	})
	mon.SetNotifier(dispatcher.NotifyFunc())

	ctx := context.Background()
	report, err := mon.Observe(ctx, types.QualityMetrics{
		Dataset:      "orders",
		MeasuredAt:   time.Now(),
		Completeness: 0.90,
		Uniqueness:   1, Validity: 1, Consistency: 1, Timeliness: 1,
		Score: 0.95,
	})
	require.NoError(t, err)
	require.Len(t, report.Triggered, 1)

	stored, err := store.GetAlert(ctx, report.Triggered[0].AlertID)
	require.NoError(t, err)
	assert.Equal(t, types.AlertActive, stored.Status, "alert state still transitions")
	assert.Empty(t, stored.Notifications, "delivery is suppressed")
	assert.Nil(t, stored.LastNotifiedAt)
	assert.Empty(t, readAlertLog(t, alertLog))
}

// ---------------------------------------------------------------------------
// Test 5: Retention sweep: old history pruned, quiet datasets auto-resolve
// ---------------------------------------------------------------------------

func TestIntegration_RetentionSweep(t *testing.T) {
	store := history.NewMemory()
	mon := monitor.New(store, &types.MonitorConfig{
		Conditions: []types.AlertCondition{
			{Metric: types.MetricCompleteness, Operator: "<", Threshold: 0.95, Severity: types.SeverityHigh},
		},
		Retention: "1h",
	})

	ctx := context.Background()
	now := time.Now()

	// A dataset that stopped reporting two hours ago, with an open alert
	require.NoError(t, store.AppendMetrics(ctx, types.QualityMetrics{
		Dataset:      "legacy",
		MeasuredAt:   now.Add(-2 * time.Hour),
		Completeness: 0.80,
	}))
	require.NoError(t, store.UpsertAlert(ctx, types.Alert{
		AlertID:     "legacy-alert-1",
		Dataset:     "legacy",
		Metric:      types.MetricCompleteness,
		Condition:   "completeness < 0.95",
		Severity:    types.SeverityHigh,
		Status:      types.AlertActive,
		TriggeredAt: now.Add(-2 * time.Hour),
	}))

	// A dataset that is still reporting
	require.NoError(t, store.AppendMetrics(ctx, types.QualityMetrics{
		Dataset:      "orders",
		MeasuredAt:   now,
		Completeness: 1.0,
	}))

	res, err := mon.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pruned, "the stale snapshot should be pruned")
	assert.Equal(t, 1, res.AutoResolved, "the quiet dataset's alert should resolve")

	legacyAlert, err := store.GetAlert(ctx, "legacy-alert-1")
	require.NoError(t, err)
	assert.Equal(t, types.AlertResolved, legacyAlert.Status)
	require.NotNil(t, legacyAlert.ResolvedAt)

	snaps, err := store.ListMetrics(ctx, "orders", 0)
	require.NoError(t, err)
	assert.Len(t, snaps, 1, "fresh history survives the sweep")
}
