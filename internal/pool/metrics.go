package pool

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricsOnce ensures metrics are only registered once.
var metricsOnce sync.Once

// metricsInstance is the singleton instance of pool metrics.
var metricsInstance *Metrics

// Metrics holds all Prometheus metrics for the storage pool.
type Metrics struct {
	UploadsTotal   *prometheus.CounterVec // syncly_pool_uploads_total{status}
	DownloadsTotal *prometheus.CounterVec // syncly_pool_downloads_total{status}

	BytesUploaded   prometheus.Counter // syncly_pool_bytes_uploaded_total
	BytesDownloaded prometheus.Counter // syncly_pool_bytes_downloaded_total

	ChunksWritten  prometheus.Counter // syncly_pool_chunks_written_total
	QuotaFailovers prometheus.Counter // syncly_pool_quota_failovers_total

	PoolTotalBytes prometheus.Gauge // syncly_pool_total_bytes
	PoolUsedBytes  prometheus.Gauge // syncly_pool_used_bytes
}

// InitMetrics initializes all pool metrics. Metrics are only registered
// once; subsequent calls return the same instance.
func InitMetrics(registry prometheus.Registerer) *Metrics {
	metricsOnce.Do(func() {
		if registry == nil {
			registry = prometheus.DefaultRegisterer
		}
		metricsInstance = &Metrics{
			UploadsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
				Name: "syncly_pool_uploads_total",
				Help: "Total uploads by status",
			}, []string{"status"}),

			DownloadsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
				Name: "syncly_pool_downloads_total",
				Help: "Total downloads by status",
			}, []string{"status"}),

			BytesUploaded: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "syncly_pool_bytes_uploaded_total",
				Help: "Total bytes placed on backends",
			}),

			BytesDownloaded: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "syncly_pool_bytes_downloaded_total",
				Help: "Total bytes fetched from backends",
			}),

			ChunksWritten: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "syncly_pool_chunks_written_total",
				Help: "Total chunks written to backends",
			}),

			QuotaFailovers: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "syncly_pool_quota_failovers_total",
				Help: "Chunk writes retried on another backend after a quota rejection",
			}),

			PoolTotalBytes: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
				Name: "syncly_pool_total_bytes",
				Help: "Aggregate capacity across all backends",
			}),

			PoolUsedBytes: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
				Name: "syncly_pool_used_bytes",
				Help: "Aggregate used bytes across all backends",
			}),
		}
	})
	return metricsInstance
}
