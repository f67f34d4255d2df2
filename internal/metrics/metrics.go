// Package metrics exposes Prometheus collectors for the daily pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Source metrics
	sourceFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailydigest_source_fetch_total",
			Help: "Total number of source fetches by outcome",
		},
		[]string{"source", "status"},
	)

	sourceItemsCount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dailydigest_source_items_count",
			Help:    "Number of raw items returned by a source",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
		[]string{"source"},
	)

	// Pipeline metrics
	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailydigest_attempts_total",
			Help: "Total number of pipeline attempts by status",
		},
		[]string{"status"},
	)

	attemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dailydigest_attempt_duration_seconds",
			Help:    "Duration of aggregate+analyze attempts",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailydigest_runs_total",
			Help: "Total number of daily runs by final state",
		},
		[]string{"state"},
	)

	lastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dailydigest_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		},
	)

	// Delivery metrics
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailydigest_deliveries_total",
			Help: "Total number of per-recipient delivery outcomes",
		},
		[]string{"status", "mode"},
	)
)

// RecordSourceFetch records how one source fared in an aggregation run.
func RecordSourceFetch(source string, items int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	sourceFetchTotal.WithLabelValues(source, status).Inc()
	if err == nil {
		sourceItemsCount.WithLabelValues(source).Observe(float64(items))
	}
}

// RecordAttempt records one finished pipeline attempt.
func RecordAttempt(status string, seconds float64) {
	attemptsTotal.WithLabelValues(status).Inc()
	attemptDuration.WithLabelValues(status).Observe(seconds)
}

// RecordRun records the final state of a daily run.
func RecordRun(state string, unixSeconds float64) {
	runsTotal.WithLabelValues(state).Inc()
	if state == "succeeded" {
		lastSuccess.Set(unixSeconds)
	}
}

// RecordDelivery records one recipient outcome.
func RecordDelivery(succeeded, individually bool) {
	status := "success"
	if !succeeded {
		status = "failure"
	}
	mode := "batch"
	if individually {
		mode = "individual"
	}
	deliveriesTotal.WithLabelValues(status, mode).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
