package dynamo

import (
	"strings"
	"testing"
	"time"
)

func TestDatasetPK(t *testing.T) {
	got := datasetPK("orders")
	if got != "DATASET#orders" {
		t.Errorf("datasetPK = %q, want %q", got, "DATASET#orders")
	}
}

func TestAlertPK(t *testing.T) {
	got := alertPK("alert-123")
	if got != "ALERT#alert-123" {
		t.Errorf("alertPK = %q, want %q", got, "ALERT#alert-123")
	}
}

func TestMetricSK_Uniqueness(t *testing.T) {
	ts := time.Now()
	a := metricSK(ts)
	b := metricSK(ts)
	if a == b {
		t.Error("metricSK should produce unique values for same timestamp")
	}
	if !strings.HasPrefix(a, "METRIC#") {
		t.Errorf("metricSK should start with METRIC#, got %q", a)
	}
}

func TestRunSK(t *testing.T) {
	ts := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	got := runSK(ts, "run-42")
	if !strings.HasPrefix(got, "RUN#") {
		t.Errorf("runSK prefix mismatch: %q", got)
	}
	if !strings.HasSuffix(got, "#run-42") {
		t.Errorf("runSK suffix mismatch: %q", got)
	}
}

func TestAlertIdxSK(t *testing.T) {
	ts := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	got := alertIdxSK(ts, "alert-7")
	if !strings.HasPrefix(got, "ALERTIDX#") {
		t.Errorf("alertIdxSK prefix mismatch: %q", got)
	}
	if !strings.HasSuffix(got, "#alert-7") {
		t.Errorf("alertIdxSK suffix mismatch: %q", got)
	}
}

// Zero-padded millisecond SKs must sort lexicographically in time order.
func TestSeriesSKOrdering(t *testing.T) {
	early := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	late := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	a := runSK(early, "run-a")
	b := runSK(late, "run-b")
	if a >= b {
		t.Errorf("expected %q < %q", a, b)
	}
}

func TestSeriesUpperBound(t *testing.T) {
	cutoff := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	bound := seriesUpperBound(prefixRun, cutoff)

	before := runSK(cutoff.Add(-time.Hour), "run-old")
	if before >= bound {
		t.Errorf("SK before cutoff should sort below bound: %q >= %q", before, bound)
	}

	at := runSK(cutoff, "run-now")
	if at <= bound {
		t.Errorf("SK at cutoff should sort above bound: %q <= %q", at, bound)
	}
}

func TestTTLEpoch(t *testing.T) {
	before := time.Now().Add(time.Hour).Unix()
	got := ttlEpoch(time.Hour)
	after := time.Now().Add(time.Hour).Unix()

	if got < before || got > after {
		t.Errorf("ttlEpoch(1h) = %d, expected between %d and %d", got, before, after)
	}
}
