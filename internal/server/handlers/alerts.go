package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/datavet-systems/datavet/internal/history"
	"github.com/datavet-systems/datavet/pkg/types"
)

// statusFilter builds a predicate from the ?status= query. Empty keeps
// everything; "open" keeps non-resolved alerts.
func statusFilter(q string) (func(types.Alert) bool, bool) {
	if q == "" {
		return func(types.Alert) bool { return true }, true
	}
	if strings.EqualFold(q, "open") {
		return func(a types.Alert) bool { return a.Status != types.AlertResolved }, true
	}
	status := types.AlertStatus(strings.ToUpper(q))
	switch status {
	case types.AlertActive, types.AlertAcknowledged, types.AlertResolved:
		return func(a types.Alert) bool { return a.Status == status }, true
	}
	return nil, false
}

func filterAlerts(alerts []types.Alert, keep func(types.Alert) bool) []types.Alert {
	out := make([]types.Alert, 0, len(alerts))
	for _, a := range alerts {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

// ListAlerts returns recent alerts across every dataset, optionally filtered
// by ?status= (ACTIVE, ACKNOWLEDGED, RESOLVED, or "open").
func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	keep, ok := statusFilter(status)
	if !ok {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", status), nil)
		return
	}

	alerts, err := h.store.ListAllAlerts(r.Context(), parseLimit(r, 50))
	if err != nil {
		h.writeError(w, storeStatus(err), "failed to list alerts", err)
		return
	}
	_ = json.NewEncoder(w).Encode(filterAlerts(alerts, keep))
}

// ListDatasetAlerts returns alerts for one dataset, optionally filtered by
// ?status=. "open" uses the store's open-alert index directly.
func (h *Handlers) ListDatasetAlerts(w http.ResponseWriter, r *http.Request) {
	ds := chi.URLParam(r, "dataset")
	status := r.URL.Query().Get("status")

	if strings.EqualFold(status, "open") {
		alerts, err := h.store.ListOpenAlerts(r.Context(), ds)
		if err != nil {
			h.writeError(w, storeStatus(err), "failed to list alerts", err)
			return
		}
		if alerts == nil {
			alerts = []types.Alert{}
		}
		_ = json.NewEncoder(w).Encode(alerts)
		return
	}

	keep, ok := statusFilter(status)
	if !ok {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", status), nil)
		return
	}
	alerts, err := h.store.ListAlerts(r.Context(), ds, parseLimit(r, 50))
	if err != nil {
		h.writeError(w, storeStatus(err), "failed to list alerts", err)
		return
	}
	_ = json.NewEncoder(w).Encode(filterAlerts(alerts, keep))
}

// GetAlert returns one alert by ID.
func (h *Handlers) GetAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := h.store.GetAlert(r.Context(), chi.URLParam(r, "alertID"))
	if err != nil {
		status := storeStatus(err)
		msg := "failed to get alert"
		if status == http.StatusNotFound {
			msg = "alert not found"
		}
		h.writeError(w, status, msg, err)
		return
	}
	_ = json.NewEncoder(w).Encode(alert)
}

// AcknowledgeAlert marks an ACTIVE alert as acknowledged.
func (h *Handlers) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	h.setAlertStatus(w, r, h.monitor.Acknowledge)
}

// ResolveAlert resolves an alert manually.
func (h *Handlers) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	h.setAlertStatus(w, r, h.monitor.Resolve)
}

func (h *Handlers) setAlertStatus(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (*types.Alert, error)) {
	alert, err := op(r.Context(), chi.URLParam(r, "alertID"))
	if err != nil {
		switch {
		case errors.Is(err, history.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "alert not found", err)
		case errors.Is(err, history.ErrUnavailable):
			h.writeError(w, http.StatusServiceUnavailable, "history store unavailable", err)
		default:
			h.writeError(w, http.StatusConflict, "invalid state transition", err)
		}
		return
	}
	_ = json.NewEncoder(w).Encode(alert)
}
