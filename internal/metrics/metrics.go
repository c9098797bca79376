// Package metrics provides Prometheus metrics for filedesk. A CLI run is
// short-lived, so metrics are written to a textfile for the node_exporter
// textfile collector instead of being served.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedesk_requests_total",
			Help: "Total number of File Service requests",
		},
		[]string{"operation", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filedesk_request_duration_seconds",
			Help:    "File Service request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	filesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedesk_files_created_total",
			Help: "Total number of file creation requests",
		},
		[]string{"status"},
	)

	fileListSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filedesk_file_list_size",
			Help: "Number of files in the most recently applied listing",
		},
	)

	downloadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filedesk_download_bytes_total",
			Help: "Total bytes downloaded and saved",
		},
	)

	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedesk_downloads_total",
			Help: "Total number of downloads",
		},
		[]string{"status"},
	)

	storageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filedesk_storage_operation_duration_seconds",
			Help:    "Save destination operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	storageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedesk_storage_operations_total",
			Help: "Total save destination operations",
		},
		[]string{"backend", "operation", "status"},
	)
)

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordRequest records a File Service request. A status of 0 means the
// request never got a response.
func RecordRequest(operation string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	requestsTotal.WithLabelValues(operation, label).Inc()
	requestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordFileCreated records a create request outcome.
func RecordFileCreated(success bool) {
	filesCreatedTotal.WithLabelValues(statusLabel(success)).Inc()
}

// SetFileListSize sets the size of the latest listing.
func SetFileListSize(n int) {
	fileListSize.Set(float64(n))
}

// RecordDownload records a finished download.
func RecordDownload(bytes int64, success bool) {
	downloadBytes.Add(float64(bytes))
	downloadsTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordStorageOperation records a save destination operation.
func RecordStorageOperation(backend, operation string, duration time.Duration, success bool) {
	storageOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	storageOperationsTotal.WithLabelValues(backend, operation, statusLabel(success)).Inc()
}

// WriteTextfile writes all registered metrics to path in the text
// exposition format. The file is replaced atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
