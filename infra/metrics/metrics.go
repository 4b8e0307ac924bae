// Package metrics owns the engine's prometheus instruments. Everything
// is registered on a private registry so tests can build as many as they
// like.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tickbook"

// Outcome labels for orders and cancels.
const (
	OutcomeRested   = "rested"
	OutcomeFilled   = "filled"
	OutcomePartial  = "partial"
	OutcomeRejected = "rejected"
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
)

type Metrics struct {
	registry *prometheus.Registry

	Orders        *prometheus.CounterVec
	Cancels       *prometheus.CounterVec
	Fills         *prometheus.CounterVec
	FilledVolume  *prometheus.CounterVec
	Latency       *prometheus.HistogramVec
	RestingOrders *prometheus.GaugeVec
	Published     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Orders submitted, by symbol and outcome.",
		}, []string{"symbol", "outcome"}),
		Cancels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancels_total",
			Help:      "Cancel requests, by symbol and outcome.",
		}, []string{"symbol", "outcome"}),
		Fills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fills_total",
			Help:      "Executions, by symbol.",
		}, []string{"symbol"}),
		FilledVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filled_quantity_total",
			Help:      "Executed quantity, by symbol.",
		}, []string{"symbol"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_latency_seconds",
			Help:      "Time spent inside the book per command.",
			Buckets:   prometheus.ExponentialBuckets(100e-9, 2, 16),
		}, []string{"symbol", "op"}),
		RestingOrders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resting_orders",
			Help:      "Orders resting in the book, by symbol.",
		}, []string{"symbol"}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_published_total",
			Help:      "Execution reports handed to the publisher, by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.Orders,
		m.Cancels,
		m.Fills,
		m.FilledVolume,
		m.Latency,
		m.RestingOrders,
		m.Published,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveLatency records the time since start for op on symbol.
func (m *Metrics) ObserveLatency(symbol, op string, start time.Time) {
	m.Latency.WithLabelValues(symbol, op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the private registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
