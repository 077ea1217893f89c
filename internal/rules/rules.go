// Package rules maps declarative rule kinds to executable checks and ships
// the built-in catalog. Checkers read the dataset and report failing rows;
// they never mutate it.
package rules

import (
	"context"
	"errors"

	"github.com/datavet-systems/datavet/pkg/dataset"
	"github.com/datavet-systems/datavet/pkg/types"
)

var (
	// ErrUnknownRuleKind is returned when a spec references a kind that is
	// neither built-in nor registered.
	ErrUnknownRuleKind = errors.New("unknown rule kind")

	// ErrDuplicateRuleKind is returned when Register is called for a kind
	// that already exists. Use RegisterOverride to replace deliberately.
	ErrDuplicateRuleKind = errors.New("rule kind already registered")
)

// Checker evaluates one rule against a dataset snapshot. limit caps the
// failing-row sample; the full failing count is always exact. A returned
// error means the check could not run (bad params, missing column) and the
// executor records an ERRORED outcome for the rule.
type Checker func(ctx context.Context, ds *dataset.Dataset, rule types.RuleSpec, limit int) (*CheckResult, error)

// CheckResult is a checker's raw finding before it becomes a RuleOutcome.
type CheckResult struct {
	Evaluated int
	Failed    int
	Sample    []types.RowFailure
}

// sampler accumulates failing rows, keeping at most limit of them while
// counting all. limit <= 0 keeps every failure.
type sampler struct {
	limit  int
	failed int
	sample []types.RowFailure
}

func newSampler(limit int) *sampler {
	return &sampler{limit: limit}
}

func (s *sampler) fail(row int, value any) {
	s.failed++
	if s.limit <= 0 || len(s.sample) < s.limit {
		s.sample = append(s.sample, types.RowFailure{Row: row, Value: value})
	}
}

func (s *sampler) result(evaluated int) *CheckResult {
	return &CheckResult{Evaluated: evaluated, Failed: s.failed, Sample: s.sample}
}

// checkCancel polls for cancellation every few thousand rows so a timed-out
// rule stops scanning instead of running to completion.
func checkCancel(ctx context.Context, row int) error {
	if row&0x0fff == 0 {
		return ctx.Err()
	}
	return nil
}
