package services

import (
	"RestoPOS/app/metrics"
	"RestoPOS/app/models"
)

// metricsRecorder counts committed events. Rolled back mutations never reach it.
type metricsRecorder struct{}

func (metricsRecorder) Notify(event Event) {
	switch event.Type {
	case EventOrderCreated:
		if event.Order != nil {
			metrics.OrdersCreated.WithLabelValues(string(event.Order.Type)).Inc()
		}
	case EventOrderStatus:
		if event.Order != nil {
			metrics.OrderTransitions.WithLabelValues(string(event.Order.Status)).Inc()
		}
	case EventLowStock:
		metrics.LowStockWarnings.Add(float64(len(event.Warnings)))
	case EventCashRecorded:
		metrics.CashEvents.WithLabelValues("recorded").Inc()
		if event.Amount < 0 {
			metrics.RefundedAmount.Add(-event.Amount)
		}
	case EventCashDropped:
		metrics.CashEvents.WithLabelValues("dropped").Inc()
	}
}

func countOpenOrders(orders []models.Order) int {
	n := 0
	for _, o := range orders {
		if !o.Status.IsTerminal() {
			n++
		}
	}
	return n
}
