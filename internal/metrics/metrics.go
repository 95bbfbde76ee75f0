package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bizfin_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bizfin_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	RecurringGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bizfin_recurring_generated_total",
		Help: "Transactions materialized from recurring templates",
	})

	RecurringDuplicates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bizfin_recurring_duplicates_total",
		Help: "Occurrences skipped because a matching transaction already existed",
	})

	// stage is one of check, insert, watermark.
	RecurringFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bizfin_recurring_failures_total",
		Help: "Store failures while expanding recurring templates",
	}, []string{"stage"})

	RecurringRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bizfin_recurring_runs_total",
		Help: "Generator runs, labeled by mode and result",
	}, []string{"mode", "result"})

	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bizfin_transfers_total",
		Help: "Transfer attempts, labeled by outcome",
	}, []string{"outcome"})
)
