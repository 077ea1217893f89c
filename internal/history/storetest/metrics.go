package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/datavet-systems/datavet/internal/history"
	"github.com/datavet-systems/datavet/pkg/types"
)

func snapshot(dataset string, measuredAt time.Time, score float64) types.QualityMetrics {
	return types.QualityMetrics{
		Dataset:      dataset,
		MeasuredAt:   measuredAt,
		Completeness: score,
		Uniqueness:   1.0,
		Validity:     score,
		Consistency:  1.0,
		Timeliness:   1.0,
		Score:        score,
	}
}

// TestMetricsAppendList validates the metric time series round-trip and
// newest-first ordering.
func TestMetricsAppendList(t *testing.T, store history.Store) {
	ctx := context.Background()
	base := time.Now().Add(-1 * time.Hour).Truncate(time.Millisecond)

	for i, score := range []float64{0.91, 0.94, 0.97} {
		m := snapshot("st-metrics", base.Add(time.Duration(i)*time.Minute), score)
		if err := store.AppendMetrics(ctx, m); err != nil {
			t.Fatalf("AppendMetrics: %v", err)
		}
	}
	if err := store.AppendMetrics(ctx, snapshot("st-metrics-other", base, 0.5)); err != nil {
		t.Fatalf("AppendMetrics other dataset: %v", err)
	}

	got, err := store.ListMetrics(ctx, "st-metrics", 10)
	if err != nil {
		t.Fatalf("ListMetrics: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(got))
	}
	if got[0].Score != 0.97 || got[2].Score != 0.91 {
		t.Errorf("expected newest first, got scores %v, %v, %v", got[0].Score, got[1].Score, got[2].Score)
	}
	if got[0].Dataset != "st-metrics" {
		t.Errorf("expected dataset st-metrics, got %q", got[0].Dataset)
	}
}

// TestMetricsLimit validates that limit caps the returned window from the
// newest end.
func TestMetricsLimit(t *testing.T, store history.Store) {
	ctx := context.Background()
	base := time.Now().Add(-1 * time.Hour).Truncate(time.Millisecond)

	for i := 0; i < 5; i++ {
		m := snapshot("st-limit", base.Add(time.Duration(i)*time.Minute), float64(i)/10)
		if err := store.AppendMetrics(ctx, m); err != nil {
			t.Fatalf("AppendMetrics: %v", err)
		}
	}

	got, err := store.ListMetrics(ctx, "st-limit", 2)
	if err != nil {
		t.Fatalf("ListMetrics: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(got))
	}
	if got[0].Score != 0.4 {
		t.Errorf("expected newest snapshot first, got score %v", got[0].Score)
	}

	empty, err := store.ListMetrics(ctx, "st-limit-nothing", 5)
	if err != nil {
		t.Fatalf("ListMetrics unknown dataset: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no snapshots for unknown dataset, got %d", len(empty))
	}
}

// TestRunRecordList validates validation run persistence.
func TestRunRecordList(t *testing.T, store history.Store) {
	ctx := context.Background()
	base := time.Now().Add(-30 * time.Minute).Truncate(time.Millisecond)

	for i := 0; i < 3; i++ {
		r := types.ValidationResult{
			RunID:      testRunID("st-run", i),
			Dataset:    "st-runs",
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
			TotalRules: 2,
			Passed:     1,
			Failed:     1,
			Valid:      false,
			Outcomes: []types.RuleOutcome{
				{
					Rule:  types.RuleSpec{Columns: []string{"id"}, Kind: types.RuleNotNull, Severity: types.SeverityHigh},
					State: types.OutcomeFailed,
				},
			},
		}
		if err := store.RecordRun(ctx, r); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	got, err := store.ListRuns(ctx, "st-runs", 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(got))
	}
	if got[0].RunID != testRunID("st-run", 2) {
		t.Errorf("expected newest run first, got %q", got[0].RunID)
	}
	if len(got[0].Outcomes) != 1 {
		t.Errorf("expected outcomes to round-trip, got %d", len(got[0].Outcomes))
	}
}

func testRunID(prefix string, i int) string {
	return prefix + "-" + string(rune('a'+i))
}
