// Package metrics exposes mapper activity as Prometheus metrics.
//
// A Metrics value owns its own registry, so tests and multiple instances
// never collide on the global default registerer.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace   = "graymapper"
	maxLabelLen = 64
)

// Message outcomes.
const (
	MessageConverted = "converted"
	MessageIgnored   = "ignored"
	MessageFailed    = "failed"
)

// sanitizeLabel keeps label values short and never empty.
func sanitizeLabel(s string) string {
	if s == "" {
		return "unknown"
	}
	s = strings.ReplaceAll(s, " ", "_")
	if len(s) > maxLabelLen {
		s = s[:maxLabelLen]
	}
	return s
}

// Metrics records operation, message, capability and transfer activity.
type Metrics struct {
	registry *prometheus.Registry

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	messages          *prometheus.CounterVec
	announcements     prometheus.Counter
	transfers         *prometheus.CounterVec
	transferBytes     *prometheus.CounterVec
}

// New creates the mapper metrics on a fresh registry that also carries the
// Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Finished operation routines by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Time spent in operation routines by kind",
				Buckets:   []float64{.005, .025, .1, .5, 1, 5, 30, 120, 600},
			},
			[]string{"kind"},
		),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_total",
				Help:      "Local bus messages seen by the converter by outcome",
			},
			[]string{"outcome"},
		),
		announcements: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capability_announcements_total",
				Help:      "Supported-operations records produced",
			},
		),
		transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfers_total",
				Help:      "File transfers by direction and outcome",
			},
			[]string{"direction", "outcome"},
		),
		transferBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfer_bytes_total",
				Help:      "Bytes moved by successful file transfers",
			},
			[]string{"direction"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.operations,
		m.operationDuration,
		m.messages,
		m.announcements,
		m.transfers,
		m.transferBytes,
	)
	return m
}

// ObserveOperation records a finished operation routine.
func (m *Metrics) ObserveOperation(kind, _ string, outcome string, elapsed time.Duration) {
	m.operations.WithLabelValues(sanitizeLabel(kind), sanitizeLabel(outcome)).Inc()
	m.operationDuration.WithLabelValues(sanitizeLabel(kind)).Observe(elapsed.Seconds())
}

// ObserveMessage records how the converter dealt with one bus message.
func (m *Metrics) ObserveMessage(outcome string) {
	m.messages.WithLabelValues(sanitizeLabel(outcome)).Inc()
}

// ObserveCapabilities records a supported-operations announcement.
func (m *Metrics) ObserveCapabilities(_ string, _ int) {
	m.announcements.Inc()
}

// ObserveTransfer records a finished file transfer.
func (m *Metrics) ObserveTransfer(direction string, ok bool, bytes int64) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.transfers.WithLabelValues(sanitizeLabel(direction), outcome).Inc()
	if ok && bytes > 0 {
		m.transferBytes.WithLabelValues(sanitizeLabel(direction)).Add(float64(bytes))
	}
}

// TrackInFlight exposes fn as the in-flight operations gauge.
// Call it once.
func (m *Metrics) TrackInFlight(fn func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "operations_in_flight",
			Help:      "Operation routines currently running",
		},
		func() float64 { return float64(fn()) },
	))
}

// Registry returns the registry backing the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus exposition handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
