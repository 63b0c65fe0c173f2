package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Payment settlement outcomes.
const (
	OutcomeSettled       = "settled"
	OutcomeAlreadyPaid   = "already_paid"
	OutcomeStockRejected = "stock_rejected"
	OutcomeNotFound      = "not_found"
	OutcomeUnpaid        = "unpaid"
	OutcomeError         = "error"
)

// PaymentMetrics counts settlement attempts by source and outcome.
type PaymentMetrics struct {
	processed *prometheus.CounterVec
	initiated prometheus.Counter
}

// NewPaymentMetrics registers payment counters on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payments_processed_total",
		Help:      "Payment settlement attempts by source and outcome.",
	}, []string{"source", "outcome"})
	initiated := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payments_initiated_total",
		Help:      "Checkouts that opened a gateway transaction.",
	})
	reg.MustRegister(processed, initiated)
	return &PaymentMetrics{processed: processed, initiated: initiated}
}

// IncProcessed records one settlement attempt.
func (m *PaymentMetrics) IncProcessed(source, outcome string) {
	if m == nil || m.processed == nil {
		return
	}
	m.processed.WithLabelValues(normalizeLabel(source), normalizeLabel(outcome)).Inc()
}

// IncInitiated records one successful gateway initialization.
func (m *PaymentMetrics) IncInitiated() {
	if m == nil || m.initiated == nil {
		return
	}
	m.initiated.Inc()
}

// RegistrationMetrics counts tournament registrations by mode and action.
type RegistrationMetrics struct {
	registrations *prometheus.CounterVec
}

// NewRegistrationMetrics registers the tournament registration counter.
func NewRegistrationMetrics(reg prometheus.Registerer) *RegistrationMetrics {
	if reg == nil {
		return &RegistrationMetrics{}
	}
	registrations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tournament_registrations_total",
		Help:      "Completed tournament registrations.",
	}, []string{"mode", "action"})
	reg.MustRegister(registrations)
	return &RegistrationMetrics{registrations: registrations}
}

// IncRegistration records a completed registration.
func (m *RegistrationMetrics) IncRegistration(mode, action string) {
	if m == nil || m.registrations == nil {
		return
	}
	m.registrations.WithLabelValues(normalizeLabel(mode), normalizeLabel(action)).Inc()
}
