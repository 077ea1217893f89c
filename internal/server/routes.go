package server

import (
	"github.com/go-chi/chi/v5"

	"github.com/datavet-systems/datavet/internal/server/handlers"
)

func (s *Server) registerRoutes(r chi.Router, h *handlers.Handlers) {
	// Probes
	r.Get("/healthz", h.Health)
	r.Get("/readyz", h.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		// Validation
		r.Post("/validate", h.Validate)
		r.Post("/quality", h.Quality)

		// History
		r.Get("/datasets", h.ListDatasets)
		r.Get("/datasets/{dataset}/metrics", h.ListMetrics)
		r.Get("/datasets/{dataset}/runs", h.ListRuns)
		r.Get("/datasets/{dataset}/alerts", h.ListDatasetAlerts)

		// Alerts
		r.Get("/alerts", h.ListAlerts)
		r.Get("/alerts/{alertID}", h.GetAlert)
		r.Post("/alerts/{alertID}/ack", h.AcknowledgeAlert)
		r.Post("/alerts/{alertID}/resolve", h.ResolveAlert)

		// Rule catalog
		r.Get("/rules", h.ListRules)
	})
}
