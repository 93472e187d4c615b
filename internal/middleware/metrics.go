package middleware

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics stores service counters. Ingestion counters are bumped by the
// router after each accepted run.
type Metrics struct {
	RequestsTotal  uint64
	RequestsFailed uint64
	RunsIngested   uint64
	RowsIngested   uint64
	StartTime      time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

// IncrementRequests increments total request counter
func IncrementRequests() {
	atomic.AddUint64(&globalMetrics.RequestsTotal, 1)
}

// IncrementFailed increments failed request counter
func IncrementFailed() {
	atomic.AddUint64(&globalMetrics.RequestsFailed, 1)
}

// RecordIngestedRun records one accepted sync run of n rows
func RecordIngestedRun(n int) {
	atomic.AddUint64(&globalMetrics.RunsIngested, 1)
	atomic.AddUint64(&globalMetrics.RowsIngested, uint64(n))
}

// MetricsMiddleware counts requests and failures
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		IncrementRequests()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 500 {
			IncrementFailed()
		}
	})
}

// MetricsHandler exposes the counters as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	snapshot := struct {
		RequestsTotal  uint64  `json:"requests_total"`
		RequestsFailed uint64  `json:"requests_failed"`
		RunsIngested   uint64  `json:"runs_ingested"`
		RowsIngested   uint64  `json:"rows_ingested"`
		UptimeSeconds  float64 `json:"uptime_seconds"`
	}{
		RequestsTotal:  atomic.LoadUint64(&globalMetrics.RequestsTotal),
		RequestsFailed: atomic.LoadUint64(&globalMetrics.RequestsFailed),
		RunsIngested:   atomic.LoadUint64(&globalMetrics.RunsIngested),
		RowsIngested:   atomic.LoadUint64(&globalMetrics.RowsIngested),
		UptimeSeconds:  time.Since(globalMetrics.StartTime).Seconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}
