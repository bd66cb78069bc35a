// Package api exposes the assistant over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/api/handlers"
	"github.com/dvloznov/finance-assistant/internal/api/middleware"
	"github.com/dvloznov/finance-assistant/internal/jobs"
)

// Service is everything the HTTP surface needs from the assistant.
type Service interface {
	handlers.TransactionService
	handlers.QueryService
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
}

// NewRouter builds the HTTP handler. store may be nil, in which case the
// job endpoints are not mounted.
func NewRouter(svc Service, store jobs.JobStore, cfg RouterConfig, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(middleware.CORS(cfg.CORSAllowedOrigins)))

	transactions := handlers.NewTransactionsHandler(svc, log)
	query := handlers.NewQueryHandler(svc, log)

	r.Get("/health", handlers.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/transactions", transactions.SubmitTransaction)
		r.Get("/users/{userID}/transactions", transactions.ListTransactions)
		r.Post("/query", query.HandleQuery)

		if store != nil {
			jobsHandler := handlers.NewJobsHandler(store, log)
			r.Get("/jobs", jobsHandler.ListJobs)
			r.Get("/jobs/{jobID}", jobsHandler.GetJob)
		}
	})

	return r
}
