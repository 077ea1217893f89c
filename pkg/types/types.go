package types

import (
	"fmt"
	"strings"
	"time"
)

// RuleSpec declaratively describes one validation check. Immutable once
// constructed; the executor never modifies a spec.
type RuleSpec struct {
	// Columns are the target columns, order-significant for multi-column kinds:
	// compare reads Columns[0] against Columns[1], unique builds a composite key.
	Columns     []string       `yaml:"columns" json:"columns"`
	Kind        RuleKind       `yaml:"kind" json:"kind"`
	Severity    Severity       `yaml:"severity,omitempty" json:"severity,omitempty"`
	Params      map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
}

// Label returns a short human identifier for reporting, e.g. "range(age)".
func (r RuleSpec) Label() string {
	if r.Description != "" {
		return r.Description
	}
	return fmt.Sprintf("%s(%s)", r.Kind, strings.Join(r.Columns, ","))
}

// CrossField reports whether the rule compares values across columns of the
// same row. Cross-field outcomes feed the consistency dimension.
func (r RuleSpec) CrossField() bool {
	return r.Kind == RuleCompare && len(r.Columns) > 1
}

// RowFailure records one offending row inside a bounded outcome sample.
type RowFailure struct {
	Row   int `json:"row"`
	Value any `json:"value,omitempty"`
}

// RuleOutcome is the immutable result of executing one rule. A re-run produces
// a new outcome; outcomes are never updated in place.
type RuleOutcome struct {
	Rule          RuleSpec      `json:"rule"`
	State         OutcomeState  `json:"state"`
	RowsEvaluated int           `json:"rowsEvaluated"`
	FailedRows    int           `json:"failedRows"`
	Sample        []RowFailure  `json:"sample,omitempty"`
	Elapsed       time.Duration `json:"elapsed"`
	Err           string        `json:"error,omitempty"`
}

// ValidationResult aggregates the outcomes of one rule batch. Outcomes keep
// the order of the input specs. Invariant: Passed+Failed+Errored == TotalRules.
type ValidationResult struct {
	RunID      string        `json:"runId"`
	Dataset    string        `json:"dataset"`
	Timestamp  time.Time     `json:"timestamp"`
	Outcomes   []RuleOutcome `json:"outcomes"`
	TotalRules int           `json:"totalRules"`
	Passed     int           `json:"passed"`
	Failed     int           `json:"failed"`
	Errored    int           `json:"errored"`
	Valid      bool          `json:"valid"`
}

// QualityMetrics is an immutable snapshot of the five quality dimensions plus
// the weighted composite score, all clamped to [0,1].
type QualityMetrics struct {
	Dataset      string    `json:"dataset"`
	MeasuredAt   time.Time `json:"measuredAt"`
	Completeness float64   `json:"completeness"`
	Uniqueness   float64   `json:"uniqueness"`
	Validity     float64   `json:"validity"`
	Consistency  float64   `json:"consistency"`
	Timeliness   float64   `json:"timeliness"`
	Score        float64   `json:"qualityScore"`
}

// Dimension looks up a dimension (or the composite score) by metric name.
func (m QualityMetrics) Dimension(name string) (float64, bool) {
	switch name {
	case MetricCompleteness:
		return m.Completeness, true
	case MetricUniqueness:
		return m.Uniqueness, true
	case MetricValidity:
		return m.Validity, true
	case MetricConsistency:
		return m.Consistency, true
	case MetricTimeliness:
		return m.Timeliness, true
	case MetricQualityScore:
		return m.Score, true
	default:
		return 0, false
	}
}

// NotificationRecord logs one delivery attempt for an alert. Failed deliveries
// are recorded with Success=false and never block a state transition.
type NotificationRecord struct {
	Channel string    `json:"channel"`
	SentAt  time.Time `json:"sentAt"`
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
}

// Alert tracks one threshold or trend breach for a dataset. The AlertID is
// stable across the lifecycle; a re-trigger after resolution mints a new one.
type Alert struct {
	AlertID        string               `json:"alertId"`
	Dataset        string               `json:"dataset"`
	Metric         string               `json:"metric"`
	Condition      string               `json:"condition"`
	Severity       Severity             `json:"severity"`
	Message        string               `json:"message,omitempty"`
	Value          float64              `json:"value"`
	Threshold      float64              `json:"threshold"`
	Status         AlertStatus          `json:"status"`
	TriggeredAt    time.Time            `json:"triggeredAt"`
	AcknowledgedAt *time.Time           `json:"acknowledgedAt,omitempty"`
	ResolvedAt     *time.Time           `json:"resolvedAt,omitempty"`
	LastNotifiedAt *time.Time           `json:"lastNotifiedAt,omitempty"`
	Notifications  []NotificationRecord `json:"notifications,omitempty"`
}

// Key identifies the alert lineage as (dataset, metric, condition). At most
// one non-resolved alert exists per key at any time.
func (a Alert) Key() string {
	return a.Dataset + "|" + a.Metric + "|" + a.Condition
}
