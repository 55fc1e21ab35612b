package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	lifecycleTransitions  *prometheus.CounterVec
	mediaUploadsTotal     *prometheus.CounterVec
	mediaRejectedTotal    *prometheus.CounterVec
	exportDurationSeconds prometheus.Histogram
	exportResultsTotal    *prometheus.CounterVec
	exportsInFlight       prometheus.Gauge
	exportArchiveBytes    prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "frs_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "frs_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "frs_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		lifecycleTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "frs_submission_transitions_total",
			Help: "Submission lifecycle operations by outcome.",
		}, []string{"operation", "outcome"})

		mediaUploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "frs_media_uploads_total",
			Help: "Accepted media uploads by kind.",
		}, []string{"kind"})

		mediaRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "frs_media_rejected_total",
			Help: "Rejected media uploads by reason.",
		}, []string{"reason"})

		exportDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "frs_export_duration_seconds",
			Help:    "End to end duration of submission exports.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		})

		exportResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "frs_export_results_total",
			Help: "Submission exports by result.",
		}, []string{"result"})

		exportsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "frs_exports_in_flight",
			Help: "Number of exports currently running.",
		})

		exportArchiveBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "frs_export_archive_bytes",
			Help:    "Size of published export archives.",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 10),
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			lifecycleTransitions,
			mediaUploadsTotal,
			mediaRejectedTotal,
			exportDurationSeconds,
			exportResultsTotal,
			exportsInFlight,
			exportArchiveBytes,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// LifecycleTransitions counts start, answer and complete operations.
func LifecycleTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return lifecycleTransitions
}

// MediaUploads counts stored media files.
func MediaUploads() *prometheus.CounterVec {
	RegisterMetrics()
	return mediaUploadsTotal
}

// MediaRejected counts refused media files.
func MediaRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return mediaRejectedTotal
}

// ExportDuration observes export latency.
func ExportDuration() prometheus.Histogram {
	RegisterMetrics()
	return exportDurationSeconds
}

// ExportResults counts exports by result.
func ExportResults() *prometheus.CounterVec {
	RegisterMetrics()
	return exportResultsTotal
}

// ExportsInFlight tracks running exports.
func ExportsInFlight() prometheus.Gauge {
	RegisterMetrics()
	return exportsInFlight
}

// ExportArchiveBytes observes published archive sizes.
func ExportArchiveBytes() prometheus.Histogram {
	RegisterMetrics()
	return exportArchiveBytes
}
