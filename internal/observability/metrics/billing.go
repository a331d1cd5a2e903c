// Package metrics exposes prometheus instrumentation for the billing engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BillingMetrics counts billing activity across the sweep and invoice engine.
type BillingMetrics struct {
	SweepRuns         prometheus.Counter
	SweepErrors       prometheus.Counter
	SweepDuration     prometheus.Histogram
	InvoicesGenerated prometheus.Counter
	ChargesAttempted  prometheus.Counter
	ChargesFailed     prometheus.Counter
	RefundsAttempted  prometheus.Counter
	RefundsFailed     prometheus.Counter
	NotificationsSent prometheus.Counter
}

// NewBillingMetrics registers billing metrics on the default registerer.
func NewBillingMetrics() *BillingMetrics {
	return NewBillingMetricsWith(prometheus.DefaultRegisterer)
}

// NewBillingMetricsWith registers billing metrics on the given registerer.
func NewBillingMetricsWith(reg prometheus.Registerer) *BillingMetrics {
	factory := promauto.With(reg)
	return &BillingMetrics{
		SweepRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "orbit_billing_sweep_runs_total",
			Help: "Number of billing sweep executions.",
		}),
		SweepErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "orbit_billing_sweep_errors_total",
			Help: "Number of billing sweep executions that reported errors.",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "orbit_billing_sweep_duration_seconds",
			Help:    "Duration of billing sweep executions.",
			Buckets: prometheus.DefBuckets,
		}),
		InvoicesGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "orbit_invoices_generated_total",
			Help: "Number of invoices generated.",
		}),
		ChargesAttempted: factory.NewCounter(prometheus.CounterOpts{
			Name: "orbit_gateway_charges_attempted_total",
			Help: "Number of gateway charge attempts.",
		}),
		ChargesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "orbit_gateway_charges_failed_total",
			Help: "Number of gateway charge attempts that failed or declined.",
		}),
		RefundsAttempted: factory.NewCounter(prometheus.CounterOpts{
			Name: "orbit_gateway_refunds_attempted_total",
			Help: "Number of gateway refund attempts.",
		}),
		RefundsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "orbit_gateway_refunds_failed_total",
			Help: "Number of gateway refund attempts that failed.",
		}),
		NotificationsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "orbit_invoice_notifications_sent_total",
			Help: "Number of invoice notification emails sent.",
		}),
	}
}

// ObserveSweep records one sweep execution.
func (m *BillingMetrics) ObserveSweep(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.SweepRuns.Inc()
	m.SweepDuration.Observe(d.Seconds())
	if err != nil {
		m.SweepErrors.Inc()
	}
}
