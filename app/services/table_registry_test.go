package services

import (
	"testing"

	"RestoPOS/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario: move an open order between tables, then retry the same move
func TestMoveOrder(t *testing.T) {
	f := newFixture(t)
	f.table(t, "A")
	f.table(t, "B")

	order := newOrder(models.OrderStatusPreparing, line("noodles", 1, 80))
	order.TableID = "A"
	_, _, err := f.store.CreateOrder(f.ctx, order)
	require.NoError(t, err)

	moved, err := f.store.MoveOrder(f.ctx, "A", "B")
	require.NoError(t, err)
	assert.Equal(t, "B", moved.TableID)

	a, b := f.tableState(t, "A"), f.tableState(t, "B")
	assert.Equal(t, models.TableAvailable, a.Status)
	assert.Empty(t, a.CurrentOrderID)
	assert.Equal(t, models.TableOccupied, b.Status)
	assert.Equal(t, order.ID, b.CurrentOrderID)
	assertOccupancyConsistent(t, f.store)

	saves := f.persister.saves
	_, err = f.store.MoveOrder(f.ctx, "A", "B")
	require.ErrorIs(t, err, ErrNoSourceOrder)
	assert.Equal(t, saves, f.persister.saves)
	assert.Equal(t, b, f.tableState(t, "B"))
	assert.Equal(t, a, f.tableState(t, "A"))
}

func TestMoveOrder_Rejections(t *testing.T) {
	f := newFixture(t)
	f.table(t, "A")
	f.table(t, "B")

	first := newOrder(models.OrderStatusPending, line("tea", 1, 30))
	first.TableID = "A"
	second := newOrder(models.OrderStatusPending, line("tea", 1, 30))
	second.TableID = "B"
	for _, o := range []models.Order{first, second} {
		_, _, err := f.store.CreateOrder(f.ctx, o)
		require.NoError(t, err)
	}

	_, err := f.store.MoveOrder(f.ctx, "A", "B")
	require.ErrorIs(t, err, ErrTableOccupied)
	_, err = f.store.MoveOrder(f.ctx, "A", "A")
	require.ErrorIs(t, err, ErrSameTable)
	_, err = f.store.MoveOrder(f.ctx, "A", "Z")
	require.ErrorIs(t, err, ErrTableNotFound)
	_, err = f.store.MoveOrder(f.ctx, "Z", "A")
	require.ErrorIs(t, err, ErrTableNotFound)

	f.table(t, "C")
	f.persister.setFail(true)
	_, err = f.store.MoveOrder(f.ctx, "A", "C")
	require.ErrorIs(t, err, errDiskFull)
	f.persister.setFail(false)

	assert.Equal(t, first.ID, f.tableState(t, "A").CurrentOrderID)
	assert.Empty(t, f.tableState(t, "C").CurrentOrderID)
	got, err := f.store.GetOrder(first.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.TableID)
	assertOccupancyConsistent(t, f.store)
}

func TestTables_CRUDAndTokens(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.AddTable(f.ctx, models.Table{})
	require.ErrorIs(t, err, ErrMissingTableName)

	created, err := f.store.AddTable(f.ctx, models.Table{Name: "Patio 1", Status: models.TableOccupied, CurrentOrderID: "bogus"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.QRToken)
	assert.Equal(t, models.TableAvailable, created.Status)
	assert.Empty(t, created.CurrentOrderID)

	byToken, err := f.store.TableByToken(created.QRToken)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byToken.ID)

	rotated, err := f.store.RotateTableToken(f.ctx, created.ID)
	require.NoError(t, err)
	assert.NotEqual(t, created.QRToken, rotated)
	_, err = f.store.TableByToken(created.QRToken)
	require.ErrorIs(t, err, ErrTableNotFound)
	_, err = f.store.TableByToken(rotated)
	require.NoError(t, err)

	result, err := f.store.UpdateTable(f.ctx, models.Table{ID: created.ID, Name: "Patio One", Capacity: 6})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, result.Outcome)
	table := f.tableState(t, created.ID)
	assert.Equal(t, "Patio One", table.Name)
	assert.Equal(t, rotated, table.QRToken)

	result, err = f.store.UpdateTable(f.ctx, models.Table{ID: "nope", Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, result.Outcome)

	result, err = f.store.DeleteTable(f.ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, result.Outcome)
	_, err = f.store.TableByToken(rotated)
	require.ErrorIs(t, err, ErrTableNotFound)
	_, err = f.store.RotateTableToken(f.ctx, created.ID)
	require.ErrorIs(t, err, ErrTableNotFound)
}

func TestUpdateTable_KeepsOccupancy(t *testing.T) {
	f := newFixture(t)
	f.table(t, "T1")
	order := newOrder(models.OrderStatusPending, line("tea", 1, 30))
	order.TableID = "T1"
	_, _, err := f.store.CreateOrder(f.ctx, order)
	require.NoError(t, err)

	_, err = f.store.UpdateTable(f.ctx, models.Table{ID: "T1", Name: "Window", Status: models.TableAvailable})
	require.NoError(t, err)
	table := f.tableState(t, "T1")
	assert.Equal(t, models.TableOccupied, table.Status)
	assert.Equal(t, order.ID, table.CurrentOrderID)

	_, err = f.store.DeleteTable(f.ctx, "T1")
	require.ErrorIs(t, err, ErrTableOccupied)
}

func TestAbsorbTableSnapshot(t *testing.T) {
	f := newFixture(t)
	f.table(t, "T1")
	known := f.tableState(t, "T1")

	order := newOrder(models.OrderStatusPending, line("tea", 1, 30))
	order.TableID = "T2"
	_, _, err := f.store.CreateOrder(f.ctx, order)
	require.NoError(t, err)

	err = f.store.AbsorbTableSnapshot(f.ctx, []models.Table{
		{ID: "T1", Name: "Table 1", Status: models.TableOccupied, CurrentOrderID: "stale"},
		{ID: "T2", Name: "Table 2"},
	})
	require.NoError(t, err)

	t1, t2 := f.tableState(t, "T1"), f.tableState(t, "T2")
	assert.Equal(t, known.QRToken, t1.QRToken)
	assert.Equal(t, models.TableAvailable, t1.Status)
	assert.Empty(t, t1.CurrentOrderID)
	assert.NotEmpty(t, t2.QRToken)
	assert.Equal(t, models.TableOccupied, t2.Status)
	assert.Equal(t, order.ID, t2.CurrentOrderID)
	assertOccupancyConsistent(t, f.store)
}
