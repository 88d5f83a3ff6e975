package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline Prometheus metrics.
var (
	PipelineRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outfitter",
			Name:      "pipeline_requests_total",
			Help:      "Total number of pipeline runs",
		},
		[]string{"mode", "status"}, // status: ok / cached / error
	)

	PipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "outfitter",
			Name:      "pipeline_duration_seconds",
			Help:      "Pipeline run duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"mode"},
	)

	CategoryItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outfitter",
			Name:      "category_items_total",
			Help:      "Items flowing through each pipeline stage",
		},
		[]string{"stage"}, // discovered / verified / validated / rejected / returned
	)

	RemoteCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outfitter",
			Name:      "remote_calls_total",
			Help:      "Calls to external collaborators",
		},
		[]string{"service", "operation", "status"},
	)

	RemoteCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "outfitter",
			Name:      "remote_call_duration_seconds",
			Help:      "External collaborator call duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"service", "operation"},
	)

	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outfitter",
			Name:      "remote_retries_total",
			Help:      "Retries of transient remote failures",
		},
		[]string{"operation"},
	)

	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outfitter",
			Name:      "cache_total",
			Help:      "Pipeline cache hits and misses",
		},
		[]string{"result"}, // hit / miss / error
	)
)

var registerOnce sync.Once

// Register registers all pipeline metrics with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			PipelineRequestsTotal,
			PipelineDuration,
			CategoryItemsTotal,
			RemoteCallsTotal,
			RemoteCallDuration,
			RetriesTotal,
			CacheTotal,
		)
	})
}
