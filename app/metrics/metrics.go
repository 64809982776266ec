package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OrdersCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_orders_created_total",
			Help: "Orders accepted by the order ledger",
		},
		[]string{"type"},
	)

	OrderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_order_transitions_total",
			Help: "Order status transitions by target status",
		},
		[]string{"status"},
	)

	RefundedAmount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pos_refunded_amount_total",
			Help: "Sum of refunded line values",
		},
	)

	LowStockWarnings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pos_low_stock_warnings_total",
			Help: "Low stock warnings raised while deducting recipes",
		},
	)

	CashEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_cash_events_total",
			Help: "Cash events by outcome (recorded or dropped without open shift)",
		},
		[]string{"outcome"},
	)

	OpenOrders = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pos_open_orders",
			Help: "Orders not yet completed or cancelled",
		},
	)

	SyncCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_sync_cycles_total",
			Help: "Sync bridge cycles by result",
		},
		[]string{"result"},
	)

	SyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pos_sync_duration_seconds",
			Help:    "Duration of a full sync cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pos_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(
		OrdersCreated,
		OrderTransitions,
		RefundedAmount,
		LowStockWarnings,
		CashEvents,
		OpenOrders,
		SyncCycles,
		SyncDuration,
		HTTPRequests,
		HTTPLatency,
	)
}
