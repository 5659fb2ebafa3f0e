package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "smartsensors_"

	resultSuccess = "success"
	resultError   = "error"
)

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	DropStale   = "stale"
	DropStopped = "stopped"
)

var (
	registerOnce sync.Once

	pollTicks   *prometheus.CounterVec
	pollLatency *prometheus.HistogramVec
	pollDropped *prometheus.CounterVec
	pollState   *prometheus.GaugeVec

	logEntries        *prometheus.CounterVec
	escalationsTotal  *prometheus.CounterVec
	persistenceErrors *prometheus.CounterVec
)

// Init registers client metrics with the default registry.
func Init() {
	registerOnce.Do(func() {
		pollTicks = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "poll_ticks_total",
				Help: "Total applied poll ticks by view and result",
			},
			[]string{"view", "result"},
		)
		pollLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "poll_latency_seconds",
				Help:    "Sensor data fetch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"view", "result"},
		)
		pollDropped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "poll_dropped_total",
				Help: "Poll results discarded because they were stale or arrived after stop",
			},
			[]string{"view", "reason"},
		)
		pollState = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "poll_state",
				Help: "Current display state per view (1 for the active state)",
			},
			[]string{"view", "state"},
		)

		logEntries = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "log_entries_total",
				Help: "Total diagnostic log entries by level",
			},
			[]string{"level"},
		)
		escalationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "log_escalations_total",
				Help: "Total log escalation attempts by sink and result",
			},
			[]string{"sink", "result"},
		)
		persistenceErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "log_persistence_errors_total",
				Help: "Total failed log persistence operations by operation",
			},
			[]string{"op"},
		)

		prometheus.MustRegister(
			pollTicks,
			pollLatency,
			pollDropped,
			pollState,
			logEntries,
			escalationsTotal,
			persistenceErrors,
		)
	})
}

// ObservePoll records one applied poll tick.
func ObservePoll(view, result string, duration time.Duration) {
	if view == "" {
		view = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if pollTicks != nil {
		pollTicks.WithLabelValues(view, result).Inc()
	}
	if pollLatency != nil {
		pollLatency.WithLabelValues(view, result).Observe(duration.Seconds())
	}
}

// IncPollDropped counts a discarded poll result.
func IncPollDropped(view, reason string) {
	if pollDropped != nil {
		pollDropped.WithLabelValues(view, reason).Inc()
	}
}

// SetPollState marks state as the active display state of view.
func SetPollState(view string, state string, all []string) {
	if pollState == nil {
		return
	}
	for _, s := range all {
		value := 0.0
		if s == state {
			value = 1
		}
		pollState.WithLabelValues(view, s).Set(value)
	}
}

// IncLogEntry counts a diagnostic log entry.
func IncLogEntry(level string) {
	if logEntries != nil {
		logEntries.WithLabelValues(level).Inc()
	}
}

// IncEscalation counts a log escalation attempt.
func IncEscalation(sink, result string) {
	if sink == "" {
		sink = "unknown"
	}
	if escalationsTotal != nil {
		escalationsTotal.WithLabelValues(sink, result).Inc()
	}
}

// IncPersistenceError counts a failed log store operation.
func IncPersistenceError(op string) {
	if persistenceErrors != nil {
		persistenceErrors.WithLabelValues(op).Inc()
	}
}
