// Package handlers implements HTTP request handlers for the datavet API.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"

	"github.com/datavet-systems/datavet/internal/engine"
	"github.com/datavet-systems/datavet/internal/history"
	"github.com/datavet-systems/datavet/internal/monitor"
	"github.com/datavet-systems/datavet/internal/quality"
	"github.com/datavet-systems/datavet/internal/rules"
	"github.com/datavet-systems/datavet/internal/telemetry"
)

// tracer resolves against the global provider, a no-op until telemetry.Init
// installs a real one.
var tracer = otel.Tracer("github.com/datavet-systems/datavet/internal/server/handlers")

// Handlers contains all HTTP handler dependencies.
type Handlers struct {
	executor *engine.Executor
	store    history.Store
	monitor  *monitor.Monitor
	quality  *quality.Calculator
	registry *rules.Registry
	inst     *telemetry.Instruments
	logger   *slog.Logger
}

// New creates a new Handlers instance.
func New(exec *engine.Executor, store history.Store, mon *monitor.Monitor, calc *quality.Calculator, reg *rules.Registry) *Handlers {
	inst, err := telemetry.NewInstruments()
	if err != nil {
		slog.Default().Warn("telemetry instruments unavailable", "error", err)
	}
	return &Handlers{
		executor: exec,
		store:    store,
		monitor:  mon,
		quality:  calc,
		registry: reg,
		inst:     inst,
		logger:   slog.Default(),
	}
}

// SetLogger overrides the default logger.
func (h *Handlers) SetLogger(l *slog.Logger) {
	if l != nil {
		h.logger = l
	}
}

// writeError logs the internal error and returns a sanitized JSON error to the client.
func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string, err error) {
	if err != nil {
		h.logger.Error(msg, "error", err, "status", status)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// storeStatus maps a history store failure onto an HTTP status.
func storeStatus(err error) int {
	switch {
	case errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, history.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseLimit reads a bounded ?limit= query value, falling back to def.
func parseLimit(r *http.Request, def int) int {
	limit := def
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	return limit
}
