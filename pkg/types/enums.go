// Package types defines the public domain types for the datavet data quality engine.
package types

import (
	"fmt"
	"strings"
)

// Severity classifies how serious a rule failure is.
type Severity string

// Severity values, ordered from least to most serious.
const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the ordinal position of a severity, 0 for unknown values.
func (s Severity) Rank() int {
	return severityRank[s]
}

// AtLeast reports whether s is as serious as min or more.
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() >= min.Rank()
}

// ParseSeverity normalizes a severity string, accepting any casing.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := severityRank[sev]; !ok {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// OutcomeState represents the result of executing one rule.
type OutcomeState string

// OutcomeState values enumerate the possible rule execution results.
const (
	OutcomePassed  OutcomeState = "PASSED"
	OutcomeFailed  OutcomeState = "FAILED"
	OutcomeErrored OutcomeState = "ERRORED"
)

// AlertStatus represents the lifecycle state of an alert.
type AlertStatus string

// AlertStatus values represent the alert lifecycle states.
const (
	AlertActive       AlertStatus = "ACTIVE"
	AlertAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertResolved     AlertStatus = "RESOLVED"
)

// RuleKind identifies a validation check in the rule catalog.
type RuleKind string

// Built-in rule kinds. Custom kinds may be registered at runtime.
const (
	RuleNotNull       RuleKind = "not-null"
	RuleUnique        RuleKind = "unique"
	RuleRange         RuleKind = "range"
	RulePattern       RuleKind = "pattern"
	RuleInSet         RuleKind = "in-set"
	RuleCompare       RuleKind = "compare"
	RuleLength        RuleKind = "length"
	RuleDateNotFuture RuleKind = "date-not-future"
	RuleDateNotPast   RuleKind = "date-not-past"
	RuleDateRange     RuleKind = "date-range"

	// Format presets, fixed-pattern variants of RulePattern.
	RuleEmail RuleKind = "email"
	RulePhone RuleKind = "phone"
	RuleURL   RuleKind = "url"
)

// SinkType defines the notification sink backend.
type SinkType string

// SinkType values enumerate the supported notification sinks.
const (
	SinkConsole     SinkType = "console"
	SinkFile        SinkType = "file"
	SinkWebhook     SinkType = "webhook"
	SinkSNS         SinkType = "sns"
	SinkSQS         SinkType = "sqs"
	SinkEventBridge SinkType = "eventbridge"
)

// Quality dimension names as they appear in metrics, alert conditions and APIs.
const (
	MetricCompleteness = "completeness"
	MetricUniqueness   = "uniqueness"
	MetricValidity     = "validity"
	MetricConsistency  = "consistency"
	MetricTimeliness   = "timeliness"
	MetricQualityScore = "quality_score"
)

// MetricNames lists every dimension an alert condition may reference.
func MetricNames() []string {
	return []string{
		MetricCompleteness,
		MetricUniqueness,
		MetricValidity,
		MetricConsistency,
		MetricTimeliness,
		MetricQualityScore,
	}
}
