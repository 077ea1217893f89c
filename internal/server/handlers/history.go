package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/datavet-systems/datavet/pkg/types"
)

// ListDatasets returns every dataset with recorded history.
func (h *Handlers) ListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := h.store.ListDatasets(r.Context())
	if err != nil {
		h.writeError(w, storeStatus(err), "failed to list datasets", err)
		return
	}
	if datasets == nil {
		datasets = []string{}
	}
	_ = json.NewEncoder(w).Encode(datasets)
}

// ListMetrics returns recent quality snapshots for a dataset, newest first.
func (h *Handlers) ListMetrics(w http.ResponseWriter, r *http.Request) {
	ds := chi.URLParam(r, "dataset")
	metrics, err := h.store.ListMetrics(r.Context(), ds, parseLimit(r, 20))
	if err != nil {
		h.writeError(w, storeStatus(err), "failed to list metrics", err)
		return
	}
	if metrics == nil {
		metrics = []types.QualityMetrics{}
	}
	_ = json.NewEncoder(w).Encode(metrics)
}

// ListRuns returns recent validation runs for a dataset, newest first.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	ds := chi.URLParam(r, "dataset")
	runs, err := h.store.ListRuns(r.Context(), ds, parseLimit(r, 20))
	if err != nil {
		h.writeError(w, storeStatus(err), "failed to list runs", err)
		return
	}
	if runs == nil {
		runs = []types.ValidationResult{}
	}
	_ = json.NewEncoder(w).Encode(runs)
}
