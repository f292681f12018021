package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database metrics
	dbQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solindexor_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"db", "operation"},
	)

	dbQueryTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "solindexor_db_query_duration_seconds",
			Help:    "Duration of database queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"db", "operation"},
	)

	dbErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solindexor_db_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"db", "error_type"},
	)

	// Indexing metrics
	CursorSlot = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "solindexor_cursor_slot",
			Help: "Slot of the last signature the live cursor advanced to",
		},
		[]string{"program"},
	)

	SignaturesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solindexor_signatures_processed_total",
			Help: "Total number of signatures processed by outcome",
		},
		[]string{"program", "outcome"},
	)

	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solindexor_events_delivered_total",
			Help: "Total number of decoded events delivered to handlers",
		},
		[]string{"program", "kind"},
	)

	DecodingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solindexor_decoding_errors_total",
			Help: "Total number of payloads that failed to decode",
		},
		[]string{"program"},
	)

	TickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "solindexor_tick_duration_seconds",
			Help:    "Time taken by a single poll tick",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"program"},
	)

	ReorgsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solindexor_reorgs_detected_total",
			Help: "Total number of chain reorganizations detected",
		},
		[]string{"program"},
	)

	ReorgDepth = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "solindexor_reorg_depth_checkpoints",
			Help:    "Number of checkpoints walked back to find the common ancestor",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
		},
		[]string{"program"},
	)

	BackfillSignatures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solindexor_backfill_signatures_total",
			Help: "Total number of signatures processed by backfill",
		},
		[]string{"program"},
	)

	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solindexor_retries_total",
			Help: "Total number of retried operations",
		},
		[]string{"operation"},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solindexor_notifications_total",
			Help: "Total number of live log notifications received",
		},
		[]string{"program"},
	)

	NotifierReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "solindexor_notifier_reconnects_total",
			Help: "Total number of websocket reconnects of the live notifier",
		},
	)

	// System metrics
	Uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "solindexor_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)

	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solindexor_errors_total",
			Help: "Total number of errors by component and severity",
		},
		[]string{"component", "severity"},
	)

	ComponentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "solindexor_component_health",
			Help: "Component health status (1=healthy, 0=unhealthy)",
		},
		[]string{"component"},
	)

	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "solindexor_goroutines",
			Help: "Number of active goroutines",
		},
	)

	MemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "solindexor_memory_usage_bytes",
			Help: "Memory usage statistics",
		},
		[]string{"type"},
	)

	startTime = time.Now()
)

func DBQueryInc(db string, operation string) {
	dbQueries.WithLabelValues(db, operation).Inc()
}

func DBQueryDuration(db string, operation string, duration time.Duration) {
	dbQueryTime.WithLabelValues(db, operation).Observe(duration.Seconds())
}

func DBErrorsInc(db string, errorType string) {
	dbErrors.WithLabelValues(db, errorType).Inc()
}

func CursorSlotSet(program string, slot uint64) {
	CursorSlot.WithLabelValues(program).Set(float64(slot))
}

func SignatureProcessedInc(program, outcome string) {
	SignaturesProcessed.WithLabelValues(program, outcome).Inc()
}

func EventDeliveredInc(program, kind string) {
	EventsDelivered.WithLabelValues(program, kind).Inc()
}

func DecodingErrorsInc(program string, count int) {
	DecodingErrors.WithLabelValues(program).Add(float64(count))
}

func TickDurationLog(program string, duration time.Duration) {
	TickDuration.WithLabelValues(program).Observe(duration.Seconds())
}

func ReorgDetectedInc(program string, depth int) {
	ReorgsDetected.WithLabelValues(program).Inc()
	ReorgDepth.WithLabelValues(program).Observe(float64(depth))
}

func BackfillSignaturesInc(program string) {
	BackfillSignatures.WithLabelValues(program).Inc()
}

func NotificationInc(program string) {
	Notifications.WithLabelValues(program).Inc()
}

func NotifierReconnectInc() {
	NotifierReconnects.Inc()
}

func RetryInc(operation string) {
	Retries.WithLabelValues(operation).Inc()
}

func ErrorsInc(component, severity string) {
	Errors.WithLabelValues(component, severity).Inc()
}

func ComponentHealthSet(component string, healthy bool) {
	boolAsFloat := float64(1)
	if !healthy {
		boolAsFloat = 0
	}

	ComponentHealth.WithLabelValues(component).Set(boolAsFloat)
}

// UpdateSystemMetrics updates runtime system metrics.
// This should be called periodically (e.g., every 15 seconds).
func UpdateSystemMetrics() {
	Uptime.Set(time.Since(startTime).Seconds())

	Goroutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	MemoryUsage.WithLabelValues("alloc").Set(float64(m.Alloc))
	MemoryUsage.WithLabelValues("total_alloc").Set(float64(m.TotalAlloc))
	MemoryUsage.WithLabelValues("sys").Set(float64(m.Sys))
	MemoryUsage.WithLabelValues("heap_inuse").Set(float64(m.HeapInuse))
}
