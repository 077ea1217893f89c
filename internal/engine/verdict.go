package engine

import (
	"github.com/datavet-systems/datavet/pkg/types"
)

// Aggregate reduces an outcome sequence to one ValidationResult. It is a pure
// function of its inputs: recomputing over the same outcomes always yields the
// same counts and verdict. The caller stamps RunID and Timestamp.
//
// Validity policy: a FAILED outcome at or above the threshold severity flips
// the verdict. ERRORED outcomes count as failures at their declared severity,
// so a misconfigured or timed-out critical rule is never silently ignored.
func Aggregate(dataset string, outcomes []types.RuleOutcome, threshold types.Severity) *types.ValidationResult {
	result := &types.ValidationResult{
		Dataset:    dataset,
		Outcomes:   outcomes,
		TotalRules: len(outcomes),
		Valid:      true,
	}

	for _, o := range outcomes {
		switch o.State {
		case types.OutcomePassed:
			result.Passed++
			continue
		case types.OutcomeFailed:
			result.Failed++
		case types.OutcomeErrored:
			result.Errored++
		}
		if o.Rule.Severity.AtLeast(threshold) {
			result.Valid = false
		}
	}
	return result
}
