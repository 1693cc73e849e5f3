package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	apiRequestsTotal       *prometheus.CounterVec
	apiLatencySeconds      *prometheus.HistogramVec
	apiErrorsTotal         *prometheus.CounterVec
	gradebookLoadFailures  prometheus.Counter
	uploadRequestsTotal    *prometheus.CounterVec
	uploadRejectedTotal    *prometheus.CounterVec
	uploadLatencyHistogram prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduport_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eduport_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduport_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		gradebookLoadFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eduport_gradebook_course_load_failures_total",
			Help: "Total number of per-course load failures during gradebook aggregation.",
		})

		uploadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduport_upload_requests_total",
			Help: "Total number of accepted attachment uploads by type.",
		}, []string{"type"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduport_upload_rejected_total",
			Help: "Total number of rejected attachment uploads by reason.",
		}, []string{"reason"})

		uploadLatencyHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eduport_upload_latency_seconds",
			Help:    "Latency distribution for attachment uploads.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			gradebookLoadFailures,
			uploadRequestsTotal,
			uploadRejectedTotal,
			uploadLatencyHistogram,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// GradebookLoadFailures exposes the counter for skipped course loads.
func GradebookLoadFailures() prometheus.Counter {
	RegisterMetrics()
	return gradebookLoadFailures
}

// UploadRequests exposes the counter for accepted uploads.
func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRequestsTotal
}

// UploadRejected exposes the counter for rejected uploads.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// UploadLatency exposes the upload latency histogram.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencyHistogram
}
