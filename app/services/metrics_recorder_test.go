package services

import (
	"testing"

	"RestoPOS/app/metrics"
	"RestoPOS/app/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecorder_CountsCommittedEvents(t *testing.T) {
	f := newFixture(t)
	f.ingredient(t, "ing_bun", "Bun", 3, 1)
	f.product(t, "burger", 100, models.RecipeItem{IngredientID: "ing_bun", Quantity: 1})

	created := testutil.ToFloat64(metrics.OrdersCreated.WithLabelValues(string(models.OrderTypeTakeaway)))
	completed := testutil.ToFloat64(metrics.OrderTransitions.WithLabelValues(string(models.OrderStatusCompleted)))
	low := testutil.ToFloat64(metrics.LowStockWarnings)
	dropped := testutil.ToFloat64(metrics.CashEvents.WithLabelValues("dropped"))

	order := newOrder(models.OrderStatusPending, line("burger", 2, 100))
	order.PaymentMethod = models.PaymentCash
	_, _, err := f.store.CreateOrder(f.ctx, order)
	require.NoError(t, err)
	_, err = f.store.UpdateOrderStatus(f.ctx, order.ID, models.OrderStatusCompleted)
	require.NoError(t, err)

	assert.Equal(t, created+1, testutil.ToFloat64(metrics.OrdersCreated.WithLabelValues(string(models.OrderTypeTakeaway))))
	assert.Equal(t, completed+1, testutil.ToFloat64(metrics.OrderTransitions.WithLabelValues(string(models.OrderStatusCompleted))))
	assert.Equal(t, low+1, testutil.ToFloat64(metrics.LowStockWarnings))
	assert.Equal(t, dropped+1, testutil.ToFloat64(metrics.CashEvents.WithLabelValues("dropped")), "no shift was open")

	// a rejected mutation emits nothing
	f.persister.setFail(true)
	_, _, err = f.store.CreateOrder(f.ctx, newOrder(models.OrderStatusPending, line("burger", 1, 100)))
	require.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, created+1, testutil.ToFloat64(metrics.OrdersCreated.WithLabelValues(string(models.OrderTypeTakeaway))))
}

func TestCountOpenOrders(t *testing.T) {
	orders := []models.Order{
		{Status: models.OrderStatusPending},
		{Status: models.OrderStatusReady},
		{Status: models.OrderStatusCompleted},
		{Status: models.OrderStatusCancelled},
	}
	assert.Equal(t, 2, countOpenOrders(orders))
	assert.Zero(t, countOpenOrders(nil))
}
