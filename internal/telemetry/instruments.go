package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/datavet-systems/datavet"

// Instruments bundles the counters and histograms recorded around validation
// runs and quality observations. They resolve against the global meter, so
// they are no-ops unless Init installed a provider.
type Instruments struct {
	Runs         metric.Int64Counter
	RuleFailures metric.Int64Counter
	RunDuration  metric.Float64Histogram
	Alerts       metric.Int64Counter
	QualityScore metric.Float64Gauge
}

// NewInstruments registers the datavet instruments on the global meter.
func NewInstruments() (*Instruments, error) {
	meter := otel.Meter(meterName)

	runs, err := meter.Int64Counter("datavet.validation.runs",
		metric.WithDescription("Validation runs executed"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("datavet.validation.rule_failures",
		metric.WithDescription("Rules that failed across validation runs"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("datavet.validation.duration",
		metric.WithDescription("Validation run duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	alerts, err := meter.Int64Counter("datavet.monitor.alerts_triggered",
		metric.WithDescription("Alerts newly triggered by quality observations"))
	if err != nil {
		return nil, err
	}
	score, err := meter.Float64Gauge("datavet.quality.score",
		metric.WithDescription("Latest composite quality score per dataset"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		Runs:         runs,
		RuleFailures: failures,
		RunDuration:  duration,
		Alerts:       alerts,
		QualityScore: score,
	}, nil
}
