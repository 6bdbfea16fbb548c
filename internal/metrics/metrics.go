// Package metrics provides a simple Prometheus-compatible metrics endpoint.
package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics holds runtime counters for the analysis pipeline.
type Metrics struct {
	// Pipeline operations
	Analyses         atomic.Int64
	AnalysisFailures atomic.Int64
	Fallbacks        atomic.Int64
	Optimizations    atomic.Int64
	AlertsSent       atomic.Int64

	// Batch operations
	Batches    atomic.Int64
	BatchItems atomic.Int64

	// Timing (last analysis duration in ms)
	LastAnalysisDurationMs atomic.Int64

	startTime time.Time
}

// New creates a metrics instance.
func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordAnalysis records one pipeline run.
func (m *Metrics) RecordAnalysis(success, usedFallback bool, durationMs int64) {
	m.Analyses.Add(1)
	if !success {
		m.AnalysisFailures.Add(1)
	}
	if usedFallback {
		m.Fallbacks.Add(1)
	}
	m.LastAnalysisDurationMs.Store(durationMs)
}

// RecordOptimization records an alternative-route search that succeeded.
func (m *Metrics) RecordOptimization() {
	m.Optimizations.Add(1)
}

// RecordAlert records one delivered notification.
func (m *Metrics) RecordAlert() {
	m.AlertsSent.Add(1)
}

// RecordBatch records one batch run and its item count.
func (m *Metrics) RecordBatch(items int) {
	m.Batches.Add(1)
	m.BatchItems.Add(int64(items))
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		uptime := time.Since(m.startTime).Seconds()

		fmt.Fprintf(w, "# HELP saferoute_uptime_seconds Time since the service started\n")
		fmt.Fprintf(w, "# TYPE saferoute_uptime_seconds gauge\n")
		fmt.Fprintf(w, "saferoute_uptime_seconds %.2f\n\n", uptime)

		fmt.Fprintf(w, "# HELP saferoute_analyses_total Total route analyses\n")
		fmt.Fprintf(w, "# TYPE saferoute_analyses_total counter\n")
		fmt.Fprintf(w, "saferoute_analyses_total %d\n\n", m.Analyses.Load())

		fmt.Fprintf(w, "# HELP saferoute_analysis_failures_total Total failed analyses\n")
		fmt.Fprintf(w, "# TYPE saferoute_analysis_failures_total counter\n")
		fmt.Fprintf(w, "saferoute_analysis_failures_total %d\n\n", m.AnalysisFailures.Load())

		fmt.Fprintf(w, "# HELP saferoute_fallbacks_total Analyses served from the direct-line fallback\n")
		fmt.Fprintf(w, "# TYPE saferoute_fallbacks_total counter\n")
		fmt.Fprintf(w, "saferoute_fallbacks_total %d\n\n", m.Fallbacks.Load())

		fmt.Fprintf(w, "# HELP saferoute_optimizations_total Alternative routes found\n")
		fmt.Fprintf(w, "# TYPE saferoute_optimizations_total counter\n")
		fmt.Fprintf(w, "saferoute_optimizations_total %d\n\n", m.Optimizations.Load())

		fmt.Fprintf(w, "# HELP saferoute_alerts_total Notifications delivered\n")
		fmt.Fprintf(w, "# TYPE saferoute_alerts_total counter\n")
		fmt.Fprintf(w, "saferoute_alerts_total %d\n\n", m.AlertsSent.Load())

		fmt.Fprintf(w, "# HELP saferoute_batches_total Batch analyses run\n")
		fmt.Fprintf(w, "# TYPE saferoute_batches_total counter\n")
		fmt.Fprintf(w, "saferoute_batches_total %d\n\n", m.Batches.Load())

		fmt.Fprintf(w, "# HELP saferoute_batch_items_total Items processed across all batches\n")
		fmt.Fprintf(w, "# TYPE saferoute_batch_items_total counter\n")
		fmt.Fprintf(w, "saferoute_batch_items_total %d\n\n", m.BatchItems.Load())

		fmt.Fprintf(w, "# HELP saferoute_last_analysis_duration_ms Last analysis duration\n")
		fmt.Fprintf(w, "# TYPE saferoute_last_analysis_duration_ms gauge\n")
		fmt.Fprintf(w, "saferoute_last_analysis_duration_ms %d\n", m.LastAnalysisDurationMs.Load())
	}
}
