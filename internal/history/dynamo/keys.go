package dynamo

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// PK/SK prefix constants. Millisecond timestamps are zero-padded to 13 digits
// so lexicographic SK order matches chronological order.
const (
	prefixDataset  = "DATASET#"
	prefixAlert    = "ALERT#"
	prefixMetric   = "METRIC#"
	prefixRun      = "RUN#"
	prefixAlertIdx = "ALERTIDX#"
	prefixType     = "TYPE#"

	skDataset    = "DATASET"
	skAlertTruth = "ALERT"
)

func datasetPK(dataset string) string { return prefixDataset + dataset }
func alertPK(alertID string) string   { return prefixAlert + alertID }

func metricSK(ts time.Time) string {
	return fmt.Sprintf("%s%013d#%s", prefixMetric, ts.UnixMilli(), nonce())
}

func runSK(ts time.Time, runID string) string {
	return fmt.Sprintf("%s%013d#%s", prefixRun, ts.UnixMilli(), runID)
}

func alertIdxSK(triggeredAt time.Time, alertID string) string {
	return fmt.Sprintf("%s%013d#%s", prefixAlertIdx, triggeredAt.UnixMilli(), alertID)
}

func globalAlertSK(triggeredAt time.Time, alertID string) string {
	return fmt.Sprintf("%013d#%s", triggeredAt.UnixMilli(), alertID)
}

// seriesUpperBound is the SK upper bound capturing every series record with a
// timestamp strictly before cutoff.
func seriesUpperBound(prefix string, cutoff time.Time) string {
	return fmt.Sprintf("%s%013d", prefix, cutoff.UnixMilli())
}

func nonce() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func ttlEpoch(d time.Duration) int64 {
	return time.Now().Add(d).Unix()
}
