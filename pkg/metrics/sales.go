package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SaleMetrics records purchase and renewal outcomes plus settlement latency
// against the external payment ledger.
type SaleMetrics struct {
	purchases  *prometheus.CounterVec
	renewals   *prometheus.CounterVec
	settlement *prometheus.HistogramVec
	refunds    *prometheus.CounterVec
}

// NewSaleMetrics registers the sale metrics on the provided registerer.
func NewSaleMetrics(reg prometheus.Registerer) *SaleMetrics {
	if reg == nil {
		return &SaleMetrics{}
	}
	purchases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sale_purchases_total",
		Help: "License purchases by outcome.",
	}, []string{"outcome"})
	renewals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sale_renewals_total",
		Help: "License renewals by outcome.",
	}, []string{"outcome"})
	settlement := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sale_settlement_duration_seconds",
		Help:    "Duration of payment ledger settlement calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	refunds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sale_compensating_refunds_total",
		Help: "Compensating refunds issued after a failed commit.",
	}, []string{"outcome"})
	reg.MustRegister(purchases, renewals, settlement, refunds)
	return &SaleMetrics{
		purchases:  purchases,
		renewals:   renewals,
		settlement: settlement,
		refunds:    refunds,
	}
}

// IncPurchase increments the purchase counter for the given outcome.
func (s *SaleMetrics) IncPurchase(outcome string) {
	if s == nil || s.purchases == nil {
		return
	}
	s.purchases.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncRenewal increments the renewal counter for the given outcome.
func (s *SaleMetrics) IncRenewal(outcome string) {
	if s == nil || s.renewals == nil {
		return
	}
	s.renewals.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveSettlement records the duration of a ledger settlement call.
func (s *SaleMetrics) ObserveSettlement(operation string, duration time.Duration) {
	if s == nil || s.settlement == nil {
		return
	}
	s.settlement.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncRefund increments the compensating refund counter for the given outcome.
func (s *SaleMetrics) IncRefund(outcome string) {
	if s == nil || s.refunds == nil {
		return
	}
	s.refunds.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
