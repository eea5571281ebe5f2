// Package api serves the screen recording report endpoints over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter wires the report routes, health probes and metrics endpoint
func NewRouter(h *Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(Recoverer)

	r.Post("/user_report", h.AddUserReport)
	r.Get("/user_report", h.GetUserReports)
	r.Post("/client_report", h.AddClientReport)
	r.Get("/client_report", h.GetClientReports)
	r.Get("/check_report_exists", h.CheckReportExists)
	r.Put("/client_report/update_validity", h.UpdateClientReportValidity)
	r.Delete("/client_report/delete", h.DeleteClientReport)

	r.Get("/health/live", h.HealthLive)
	r.Get("/health/ready", h.HealthReady)
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	return r
}
