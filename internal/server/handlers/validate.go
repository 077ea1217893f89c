package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/datavet-systems/datavet/internal/rules"
	"github.com/datavet-systems/datavet/pkg/dataset"
	"github.com/datavet-systems/datavet/pkg/types"
)

// validateRequest carries an inline dataset and rule batch.
type validateRequest struct {
	Dataset string           `json:"dataset"`
	AsOf    *time.Time       `json:"asOf,omitempty"`
	Records []map[string]any `json:"records"`
	Rules   []types.RuleSpec `json:"rules"`
}

func (req *validateRequest) toDataset() *dataset.Dataset {
	var opts []dataset.Option
	if req.AsOf != nil {
		opts = append(opts, dataset.WithAsOf(*req.AsOf))
	}
	return dataset.FromRecords(req.Dataset, req.Records, opts...)
}

// Validate runs an inline rule batch against inline records and returns the
// full ValidationResult. Nothing is persisted; use Quality for that.
func (h *Handlers) Validate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "api.Validate")
	defer span.End()

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", err)
		return
	}
	if req.Dataset == "" {
		h.writeError(w, http.StatusBadRequest, "dataset is required", nil)
		return
	}
	if len(req.Records) == 0 {
		h.writeError(w, http.StatusBadRequest, "records are required", nil)
		return
	}
	if len(req.Rules) == 0 {
		h.writeError(w, http.StatusBadRequest, "rules are required", nil)
		return
	}

	start := time.Now()
	result, err := h.executor.Execute(ctx, req.toDataset(), req.Rules)
	if err != nil {
		if errors.Is(err, rules.ErrUnknownRuleKind) {
			h.writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		h.writeError(w, http.StatusInternalServerError, "validation failed", err)
		return
	}
	h.recordRun(ctx, result, time.Since(start))

	_ = json.NewEncoder(w).Encode(result)
}

// recordRun emits the API-level run instruments.
func (h *Handlers) recordRun(ctx context.Context, result *types.ValidationResult, elapsed time.Duration) {
	if h.inst == nil || result == nil {
		return
	}
	ds := attribute.String("dataset", result.Dataset)
	h.inst.Runs.Add(ctx, 1, metric.WithAttributes(ds, attribute.Bool("valid", result.Valid)))
	if result.Failed > 0 {
		h.inst.RuleFailures.Add(ctx, int64(result.Failed), metric.WithAttributes(ds))
	}
	h.inst.RunDuration.Record(ctx, float64(elapsed)/float64(time.Millisecond), metric.WithAttributes(ds))
}
