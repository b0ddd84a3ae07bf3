package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics exposes counters/histograms for webhook reconciliation.
type WebhookMetrics struct {
	eventsTotal    *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "glidebook",
			Subsystem: "webhooks",
			Name:      "events_total",
			Help:      "Total inbound gateway webhook events by outcome",
		}, []string{"event_type", "outcome"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "glidebook",
			Subsystem: "webhooks",
			Name:      "latency_seconds",
			Help:      "Latency of gateway webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.eventsTotal, m.webhookLatency)
	return m
}

func (m *WebhookMetrics) ObserveEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(eventType, outcome).Inc()
}

func (m *WebhookMetrics) ObserveLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}

// ReservationMetrics counts state machine transitions.
type ReservationMetrics struct {
	transitionsTotal *prometheus.CounterVec
	conflictsTotal   prometheus.Counter
}

func NewReservationMetrics(reg prometheus.Registerer) *ReservationMetrics {
	m := &ReservationMetrics{
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "glidebook",
			Subsystem: "reservations",
			Name:      "transitions_total",
			Help:      "Total reservation state transitions",
		}, []string{"from", "to"}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "glidebook",
			Subsystem: "reservations",
			Name:      "transition_conflicts_total",
			Help:      "Optimistic concurrency conflicts during transitions",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitionsTotal, m.conflictsTotal)
	return m
}

func (m *ReservationMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *ReservationMetrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.conflictsTotal.Inc()
}
