package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// HTTP metrics
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	RequestErrors   *prometheus.CounterVec

	// Treatment metrics
	FillSessionsStarted   prometheus.Counter
	FillSessionsCompleted prometheus.Counter
	DrainSessionsRecorded prometheus.Counter
	TreatmentsCompleted   prometheus.Counter
	DrainColors           *prometheus.CounterVec

	// Device metrics
	ScaleReadings       prometheus.Counter
	ScaleTriggers       prometheus.Counter
	DrainageCompletions *prometheus.CounterVec

	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxQueueSize         prometheus.Gauge
	OutboxRetries           *prometheus.CounterVec
	OutboxEventsPruned      prometheus.Counter
}

// NewMetrics creates all application metrics and registers them with reg.
// Tests pass a fresh prometheus.NewRegistry() to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_errors_total",
			Help:      "Total number of HTTP requests answered with a 4xx or 5xx status",
		}, []string{"method", "path", "status"}),

		FillSessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "treatment",
			Name:      "fill_sessions_started_total",
			Help:      "Fill sessions opened",
		}),
		FillSessionsCompleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "treatment",
			Name:      "fill_sessions_completed_total",
			Help:      "Fill sessions completed",
		}),
		DrainSessionsRecorded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "treatment",
			Name:      "drain_sessions_recorded_total",
			Help:      "Drain sessions recorded",
		}),
		TreatmentsCompleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "treatment",
			Name:      "treatments_completed_total",
			Help:      "Treatments moved to completed",
		}),
		DrainColors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "treatment",
			Name:      "drain_colors_total",
			Help:      "Drain sessions by classified effluent color",
		}, []string{"bucket"}),

		ScaleReadings: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "iot",
			Name:      "scale_readings_total",
			Help:      "Weight readings reported by scales",
		}),
		ScaleTriggers: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "iot",
			Name:      "scale_triggers_total",
			Help:      "Weight readings at or below the drain trigger volume",
		}),
		DrainageCompletions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "iot",
			Name:      "drainage_completions_total",
			Help:      "Device-reported drainage completions",
		}, []string{"session_updated"}),

		OutboxEventsProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxQueueSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "batch_size",
			Help:      "Number of events claimed in the last poll",
		}),
		OutboxRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),
		OutboxEventsPruned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_pruned_total",
			Help:      "Processed outbox events deleted after the retention period",
		}),
	}
}
