package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/datavet-systems/datavet/internal/monitor"
	"github.com/datavet-systems/datavet/internal/quality"
	"github.com/datavet-systems/datavet/internal/rules"
	"github.com/datavet-systems/datavet/pkg/types"
)

// qualityRequest extends validateRequest with an optional per-request quality
// configuration. Rules may be empty: the snapshot is then measured without a
// validity signal.
type qualityRequest struct {
	validateRequest
	Quality *types.QualityConfig `json:"quality,omitempty"`
}

type qualityResponse struct {
	Result *types.ValidationResult `json:"result,omitempty"`
	Report *monitor.Report         `json:"report"`
}

// Quality validates inline records, measures the quality snapshot, persists
// it, and runs alert evaluation. The response carries the validation result
// plus the monitor report (snapshot, triggered/resolved alerts, anomalies).
func (h *Handlers) Quality(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "api.Quality")
	defer span.End()

	var req qualityRequest
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

	calc := h.quality
	if req.Quality != nil {
		var err error
		if calc, err = quality.NewFromConfig(req.Quality); err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
	}

	ds := req.toDataset()

	var result *types.ValidationResult
	if len(req.Rules) > 0 {
		start := time.Now()
		var err error
		result, err = h.executor.Execute(ctx, ds, req.Rules)
		if err != nil {
			if errors.Is(err, rules.ErrUnknownRuleKind) {
				h.writeError(w, http.StatusBadRequest, err.Error(), nil)
				return
			}
			h.writeError(w, http.StatusInternalServerError, "validation failed", err)
			return
		}
		h.recordRun(ctx, result, time.Since(start))

		if err := h.store.RecordRun(ctx, *result); err != nil {
			h.logger.Error("recording run", "dataset", req.Dataset, "error", err)
		}
	}

	metrics, err := calc.Measure(ds, result)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "quality measurement failed", err)
		return
	}

	report, err := h.monitor.Observe(ctx, metrics)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "quality observation failed", err)
		return
	}

	if h.inst != nil {
		dsAttr := metric.WithAttributes(attribute.String("dataset", req.Dataset))
		h.inst.QualityScore.Record(ctx, report.Metrics.Score, dsAttr)
		if n := len(report.Triggered); n > 0 {
			h.inst.Alerts.Add(ctx, int64(n), dsAttr)
		}
	}

	_ = json.NewEncoder(w).Encode(qualityResponse{Result: result, Report: report})
}
