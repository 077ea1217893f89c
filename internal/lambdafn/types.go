// Package lambdafn provides shared types and initialization for the Lambda
// validator handler.
package lambdafn

import (
	"time"

	"github.com/datavet-systems/datavet/pkg/types"
)

// ValidatorRequest is the input to the validator Lambda: an inline dataset,
// the rules to run against it, and an optional quality configuration. When
// Quality is nil only validation runs and no metrics are returned.
type ValidatorRequest struct {
	Dataset string               `json:"dataset"`
	AsOf    *time.Time           `json:"asOf,omitempty"`
	Records []map[string]any     `json:"records"`
	Rules   []types.RuleSpec     `json:"rules"`
	Quality *types.QualityConfig `json:"quality,omitempty"`
}

// ValidatorResponse carries the validation result and, when quality
// measurement was requested, the five-dimension metrics.
type ValidatorResponse struct {
	Result  *types.ValidationResult `json:"result"`
	Metrics *types.QualityMetrics   `json:"metrics,omitempty"`
}
