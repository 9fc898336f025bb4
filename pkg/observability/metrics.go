package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Ingestion metrics
	IngestionCyclesTotal   *prometheus.CounterVec
	FetchUnitsTotal        *prometheus.CounterVec
	FetchDuration          *prometheus.HistogramVec
	ReadingsUpsertedTotal  prometheus.Counter
	SchemaMismatchesTotal  *prometheus.CounterVec
	TriggersConsumedTotal  prometheus.Counter

	// Job queue metrics
	JobsEnqueuedTotal  *prometheus.CounterVec
	JobsClaimedTotal   prometheus.Counter
	JobsCompletedTotal *prometheus.CounterVec
	JobsRequeuedTotal  prometheus.Counter
	JobDuration        *prometheus.HistogramVec
	JobsPending        prometheus.Gauge

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pulse_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		IngestionCyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_ingestion_cycles_total",
				Help: "Total number of ingestion cycles",
			},
			[]string{"status"},
		),
		FetchUnitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_fetch_units_total",
				Help: "Fetch units by data type and outcome",
			},
			[]string{"data_type", "outcome"},
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pulse_fetch_duration_seconds",
				Help:    "Provider fetch duration in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"data_type"},
		),
		ReadingsUpsertedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pulse_readings_upserted_total",
				Help: "Total number of readings written to the raw store",
			},
		),
		SchemaMismatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_schema_mismatches_total",
				Help: "Payloads the field resolver could not recognize",
			},
			[]string{"data_type"},
		),
		TriggersConsumedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pulse_triggers_consumed_total",
				Help: "Total number of fetch triggers consumed",
			},
		),

		JobsEnqueuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_jobs_enqueued_total",
				Help: "Analytics jobs enqueued by time range",
			},
			[]string{"time_range"},
		),
		JobsClaimedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pulse_jobs_claimed_total",
				Help: "Total number of analytics jobs claimed",
			},
		),
		JobsCompletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_jobs_completed_total",
				Help: "Analytics jobs reaching a terminal state",
			},
			[]string{"status"},
		),
		JobsRequeuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pulse_jobs_requeued_total",
				Help: "Abandoned jobs re-enqueued after lease expiry",
			},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pulse_job_duration_seconds",
				Help:    "Analytics job processing duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 15, 60},
			},
			[]string{"time_range"},
		),
		JobsPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pulse_jobs_pending",
				Help: "Current number of pending analytics jobs",
			},
		),

		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_storage_operations_total",
				Help: "Total number of storage operations",
			},
			[]string{"operation", "backend", "status"},
		),
		StorageOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pulse_storage_operation_duration_seconds",
				Help:    "Storage operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "backend"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type", "key_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type", "key_type"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pulse_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pulse_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.IngestionCyclesTotal,
		m.FetchUnitsTotal,
		m.FetchDuration,
		m.ReadingsUpsertedTotal,
		m.SchemaMismatchesTotal,
		m.TriggersConsumedTotal,
		m.JobsEnqueuedTotal,
		m.JobsClaimedTotal,
		m.JobsCompletedTotal,
		m.JobsRequeuedTotal,
		m.JobDuration,
		m.JobsPending,
		m.StorageOperationsTotal,
		m.StorageOperationDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
