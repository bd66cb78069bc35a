// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finance_assistant_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finance_assistant_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	TransactionsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finance_assistant_transactions_submitted_total",
			Help: "Transactions submitted, by outcome (indexed, recorded, rejected, failed).",
		},
		[]string{"outcome"},
	)

	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finance_assistant_queries_total",
			Help: "Queries handled, by routed intent and status.",
		},
		[]string{"intent", "status"},
	)

	GenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "finance_assistant_generation_duration_seconds",
			Help:    "Time spent waiting for answer generation.",
			Buckets: prometheus.DefBuckets,
		},
	)

	IndexJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finance_assistant_index_jobs_total",
			Help: "Background re-index jobs processed, by status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		TransactionsSubmittedTotal,
		QueriesTotal,
		GenerationDuration,
		IndexJobsTotal,
	)
}
