// Package storetest provides shared conformance tests for history.Store
// implementations. Call RunAll from a test function to verify a backend
// satisfies the full behavioral contract.
package storetest

import (
	"testing"

	"github.com/datavet-systems/datavet/internal/history"
)

// RunAll runs the complete store conformance suite as subtests. PruneBefore
// runs last because it sweeps across datasets.
func RunAll(t *testing.T, store history.Store) {
	t.Helper()

	t.Run("MetricsAppendList", func(t *testing.T) { TestMetricsAppendList(t, store) })
	t.Run("MetricsLimit", func(t *testing.T) { TestMetricsLimit(t, store) })
	t.Run("RunRecordList", func(t *testing.T) { TestRunRecordList(t, store) })
	t.Run("AlertUpsertGet", func(t *testing.T) { TestAlertUpsertGet(t, store) })
	t.Run("AlertGetMissing", func(t *testing.T) { TestAlertGetMissing(t, store) })
	t.Run("OpenAlerts", func(t *testing.T) { TestOpenAlerts(t, store) })
	t.Run("AlertListOrdering", func(t *testing.T) { TestAlertListOrdering(t, store) })
	t.Run("ListAllAlerts", func(t *testing.T) { TestListAllAlerts(t, store) })
	t.Run("ListDatasets", func(t *testing.T) { TestListDatasets(t, store) })
	t.Run("Ping", func(t *testing.T) { TestPing(t, store) })
	t.Run("PruneBefore", func(t *testing.T) { TestPruneBefore(t, store) })
}
