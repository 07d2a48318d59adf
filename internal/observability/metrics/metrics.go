package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for dialogue and
// extraction flows.
type ConversationMetrics struct {
	turnsTotal         *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	escalationsTotal   *prometheus.CounterVec
	extractionLatency  *prometheus.HistogramVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "dialogue",
			Name:      "turns_total",
			Help:      "Total dialogue turns processed",
		}, []string{"state", "channel"}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "dialogue",
			Name:      "validation_failures_total",
			Help:      "Total appointment validation failures",
		}, []string{"kind"}),
		escalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "dialogue",
			Name:      "escalations_total",
			Help:      "Total conversations escalated to a human",
		}, []string{"reason", "channel"}),
		extractionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "extraction",
			Name:      "latency_seconds",
			Help:      "Latency of model extraction calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.validationFailures, m.escalationsTotal, m.extractionLatency)
	return m
}

func (m *ConversationMetrics) ObserveTurn(state, channel string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(state, channel).Inc()
}

func (m *ConversationMetrics) ObserveValidationFailure(kind string) {
	if m == nil {
		return
	}
	m.validationFailures.WithLabelValues(kind).Inc()
}

func (m *ConversationMetrics) ObserveEscalation(reason, channel string) {
	if m == nil {
		return
	}
	m.escalationsTotal.WithLabelValues(reason, channel).Inc()
}

func (m *ConversationMetrics) ObserveExtractionLatency(mode, status string, seconds float64) {
	if m == nil {
		return
	}
	m.extractionLatency.WithLabelValues(mode, status).Observe(seconds)
}
