package engine

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Instruments resolve against the global providers, which stay no-ops until
// telemetry.Init installs real ones.
var (
	tracer = otel.Tracer("github.com/datavet-systems/datavet/internal/engine")
	meter  = otel.Meter("github.com/datavet-systems/datavet/internal/engine")

	rulesTotal    metric.Int64Counter
	batchDuration metric.Float64Histogram
)

func init() {
	rulesTotal, _ = meter.Int64Counter("datavet.rules.executed",
		metric.WithDescription("Rules executed, partitioned by outcome state."))
	batchDuration, _ = meter.Float64Histogram("datavet.batch.duration",
		metric.WithDescription("Validation batch wall time."),
		metric.WithUnit("s"))
}
