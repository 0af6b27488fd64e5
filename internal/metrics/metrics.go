package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var Registry = prometheus.NewRegistry()

var (
	IngestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptum_ingest_total",
			Help: "Documents ingested by outcome",
		},
		[]string{"status"},
	)
	ChunksWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptum_chunks_written_total",
			Help: "Chunk records written by language",
		},
		[]string{"language"},
	)
	RetrievalTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptum_retrieval_total",
			Help: "Retrieval requests by outcome",
		},
		[]string{"status"},
	)
	CollectionQueryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptum_collection_query_errors_total",
			Help: "Per-collection query failures skipped during retrieval",
		},
		[]string{"collection"},
	)
	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptum_cache_requests_total",
			Help: "Cache lookups by cache name and result",
		},
		[]string{"cache", "result"},
	)
	DimensionMismatch = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptum_embedding_dimension_mismatch_total",
			Help: "Embeddings padded or truncated to the configured dimension",
		},
		[]string{"action"},
	)
	LanguageFallback = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scriptum_language_fallback_total",
			Help: "Language detections that fell back to the default language",
		},
	)
	ActiveTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scriptum_tasks_active",
			Help: "Ingestion tasks currently in progress",
		},
	)
	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptum_job_runs_total",
			Help: "Scheduled job runs by job and outcome",
		},
		[]string{"job", "status"},
	)
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scriptum_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~41s
		},
		[]string{"stage"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		IngestTotal,
		ChunksWritten,
		RetrievalTotal,
		CollectionQueryErrors,
		CacheRequests,
		DimensionMismatch,
		LanguageFallback,
		ActiveTasks,
		JobRuns,
		StageDuration,
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
