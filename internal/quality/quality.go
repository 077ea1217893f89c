// Package quality computes the five normalized quality dimensions and the
// weighted composite score for a dataset snapshot. All dimensions are clamped
// to [0,1]; empty inputs yield 1.0 rather than dividing by zero.
package quality

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/datavet-systems/datavet/pkg/dataset"
	"github.com/datavet-systems/datavet/pkg/types"
)

// ErrInvalidWeights is returned when dimension weights do not form a convex
// combination (non-negative, summing to 1.0 within epsilon).
var ErrInvalidWeights = errors.New("dimension weights must sum to 1.0")

const weightEpsilon = 0.001

// ValidateWeights checks that the weights are non-negative and sum to 1.0
// within a small epsilon, keeping the composite score a convex combination.
func ValidateWeights(w types.Weights) error {
	for name, v := range map[string]float64{
		types.MetricCompleteness: w.Completeness,
		types.MetricValidity:     w.Validity,
		types.MetricConsistency:  w.Consistency,
		types.MetricUniqueness:   w.Uniqueness,
		types.MetricTimeliness:   w.Timeliness,
	} {
		if v < 0 {
			return fmt.Errorf("%w: %s weight is negative", ErrInvalidWeights, name)
		}
	}
	sum := w.Completeness + w.Validity + w.Consistency + w.Uniqueness + w.Timeliness
	if math.Abs(sum-1.0) > weightEpsilon {
		return fmt.Errorf("%w: got %.3f", ErrInvalidWeights, sum)
	}
	return nil
}

// Calculator measures quality metrics for dataset snapshots. Construct with
// New or NewFromConfig; the zero value is not usable.
type Calculator struct {
	weights    types.Weights
	keyColumns []string
	sla        time.Duration
}

// New builds a calculator with the given dimension weights. The weights are
// validated up front so a bad configuration fails before any data is measured.
func New(weights types.Weights) (*Calculator, error) {
	if err := ValidateWeights(weights); err != nil {
		return nil, err
	}
	return &Calculator{weights: weights}, nil
}

// NewFromConfig builds a calculator from the project configuration, applying
// defaults for anything unset.
func NewFromConfig(cfg *types.QualityConfig) (*Calculator, error) {
	weights := types.DefaultWeights()
	if cfg != nil && cfg.Weights != nil {
		weights = *cfg.Weights
	}
	c, err := New(weights)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return c, nil
	}
	c.keyColumns = cfg.KeyColumns
	if cfg.FreshnessSLA != "" {
		sla, err := time.ParseDuration(cfg.FreshnessSLA)
		if err != nil {
			return nil, fmt.Errorf("parse freshness SLA %q: %w", cfg.FreshnessSLA, err)
		}
		c.sla = sla
	}
	return c, nil
}

// SetKeyColumns designates the columns whose tuples the uniqueness dimension
// counts. Empty means dataset-wide.
func (c *Calculator) SetKeyColumns(cols ...string) {
	c.keyColumns = cols
}

// SetFreshnessSLA sets the window within which data counts as fully timely.
// Zero disables the timeliness check (dimension stays 1.0).
func (c *Calculator) SetFreshnessSLA(d time.Duration) {
	c.sla = d
}

// Measure computes all five dimensions plus the composite score for one
// dataset snapshot and its validation result. A nil result is treated as a
// run with zero rules.
func (c *Calculator) Measure(ds *dataset.Dataset, result *types.ValidationResult) (types.QualityMetrics, error) {
	return c.measureAt(ds, result, time.Now())
}

func (c *Calculator) measureAt(ds *dataset.Dataset, result *types.ValidationResult, now time.Time) (types.QualityMetrics, error) {
	var outcomes []types.RuleOutcome
	if result != nil {
		outcomes = result.Outcomes
	}

	uniq, err := Uniqueness(ds, c.keyColumns...)
	if err != nil {
		return types.QualityMetrics{}, fmt.Errorf("uniqueness for %s: %w", ds.Name(), err)
	}

	m := types.QualityMetrics{
		Dataset:      ds.Name(),
		MeasuredAt:   now,
		Completeness: Completeness(ds),
		Uniqueness:   uniq,
		Validity:     Validity(outcomes),
		Consistency:  Consistency(outcomes),
		Timeliness:   Timeliness(ds.AsOf(), c.sla, now),
	}
	m.Score = clamp(c.weights.Completeness*m.Completeness +
		c.weights.Validity*m.Validity +
		c.weights.Consistency*m.Consistency +
		c.weights.Uniqueness*m.Uniqueness +
		c.weights.Timeliness*m.Timeliness)
	return m, nil
}

// Completeness is the fraction of non-null cells, 1.0 for an empty dataset.
func Completeness(ds *dataset.Dataset) float64 {
	cells := ds.CellCount()
	if cells == 0 {
		return 1.0
	}
	return clamp(1 - float64(ds.NullCells())/float64(cells))
}

// Uniqueness is the fraction of distinct row tuples over the given key
// columns, dataset-wide when none are given. 1.0 for an empty dataset.
func Uniqueness(ds *dataset.Dataset, keyColumns ...string) (float64, error) {
	if ds.Rows() == 0 {
		return 1.0, nil
	}
	distinct, err := ds.DistinctRows(keyColumns...)
	if err != nil {
		return 0, err
	}
	return clamp(float64(distinct) / float64(ds.Rows())), nil
}

// Validity is the severity-weighted pass rate over rule outcomes. FAILED and
// ERRORED outcomes both count against it at their declared severity. 1.0 when
// no rules ran.
func Validity(outcomes []types.RuleOutcome) float64 {
	var passed, total float64
	for _, o := range outcomes {
		w := severityWeight(o.Rule.Severity)
		total += w
		if o.State == types.OutcomePassed {
			passed += w
		}
	}
	if total == 0 {
		return 1.0
	}
	return clamp(passed / total)
}

// Consistency is the plain pass rate restricted to cross-field outcomes, 1.0
// when the batch has none.
func Consistency(outcomes []types.RuleOutcome) float64 {
	var passed, total float64
	for _, o := range outcomes {
		if !o.Rule.CrossField() {
			continue
		}
		total++
		if o.State == types.OutcomePassed {
			passed++
		}
	}
	if total == 0 {
		return 1.0
	}
	return clamp(passed / total)
}

// Timeliness degrades linearly with data age: 1.0 while age is within the
// freshness SLA, reaching 0.0 at twice the SLA. Zero SLA or an unknown data
// timestamp means freshness is not tracked and scores 1.0.
func Timeliness(asOf time.Time, sla time.Duration, now time.Time) float64 {
	if sla <= 0 || asOf.IsZero() {
		return 1.0
	}
	age := now.Sub(asOf)
	if age <= sla {
		return 1.0
	}
	return clamp(2 - float64(age)/float64(sla))
}

// Severity multipliers for the validity dimension. Unknown severities get the
// MEDIUM weight.
func severityWeight(s types.Severity) float64 {
	switch s {
	case types.SeverityLow:
		return 1
	case types.SeverityHigh:
		return 4
	case types.SeverityCritical:
		return 8
	default:
		return 2
	}
}

func clamp(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
