package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"RestoPOS/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDiskFull = errors.New("disk full")

// memoryPersister keeps records as JSON, like the SQLite store does
type memoryPersister struct {
	mu      sync.Mutex
	records map[string][]byte
	fail    bool
	saves   int
}

func newMemoryPersister() *memoryPersister {
	return &memoryPersister{records: make(map[string][]byte)}
}

func (p *memoryPersister) Load(_ context.Context, key string, dest any) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.records[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (p *memoryPersister) Save(_ context.Context, records map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errDiskFull
	}
	encoded := make(map[string][]byte, len(records))
	for key, value := range records {
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		encoded[key] = data
	}
	for key, data := range encoded {
		p.records[key] = data
	}
	p.saves++
	return nil
}

func (p *memoryPersister) setFail(fail bool) {
	p.mu.Lock()
	p.fail = fail
	p.mu.Unlock()
}

// recordingNotifier collects dispatched events
type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(event Event) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

func (n *recordingNotifier) ofType(t EventType) []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Event
	for _, e := range n.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store     *Store
	persister *memoryPersister
	events    *recordingNotifier
	ctx       context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	persister := newMemoryPersister()
	store := NewStore(persister, NewConsoleLogger(&bytes.Buffer{}))

	// every mutation sees a strictly later clock
	var mu sync.Mutex
	tick := 0
	store.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return baseTime.Add(time.Duration(tick) * time.Second)
	}

	events := &recordingNotifier{}
	store.Subscribe(events)
	return &fixture{store: store, persister: persister, events: events, ctx: context.Background()}
}

func (f *fixture) ingredient(t *testing.T, id, name string, stock, min float64) {
	t.Helper()
	_, err := f.store.AddIngredient(f.ctx, models.Ingredient{ID: id, Name: name, Unit: "pcs", CurrentStock: stock, MinStockLevel: min})
	require.NoError(t, err)
}

func (f *fixture) product(t *testing.T, id string, price float64, recipe ...models.RecipeItem) {
	t.Helper()
	_, err := f.store.SaveProduct(f.ctx, models.Product{ID: id, Name: id, Price: price, Recipe: recipe})
	require.NoError(t, err)
}

func (f *fixture) table(t *testing.T, id string) {
	t.Helper()
	_, err := f.store.AddTable(f.ctx, models.Table{ID: id, Name: "Table " + id, Capacity: 4})
	require.NoError(t, err)
}

func (f *fixture) stock(t *testing.T, id string) float64 {
	t.Helper()
	ing, err := f.store.GetIngredient(id)
	require.NoError(t, err)
	return ing.CurrentStock
}

func (f *fixture) tableState(t *testing.T, id string) models.Table {
	t.Helper()
	table, err := f.store.GetTable(id)
	require.NoError(t, err)
	return *table
}

var orderSeq int

func newOrder(status models.OrderStatus, items ...models.OrderItem) models.Order {
	orderSeq++
	var total float64
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}
	return models.Order{
		ID:          fmt.Sprintf("order-%d", orderSeq),
		OrderNumber: fmt.Sprintf("A%04d", orderSeq),
		Type:        models.OrderTypeTakeaway,
		Status:      status,
		Items:       items,
		Subtotal:    total,
		Total:       total,
	}
}

func line(productID string, quantity int, price float64) models.OrderItem {
	return models.OrderItem{ProductID: productID, ProductName: productID, Quantity: quantity, Price: price}
}

// assertOccupancyConsistent checks both directions of the table/order link
func assertOccupancyConsistent(t *testing.T, s *Store) {
	t.Helper()
	orders := make(map[string]models.Order)
	for _, o := range s.GetOrders() {
		orders[o.ID] = o
	}
	tables := make(map[string]models.Table)
	for _, table := range s.GetTables() {
		tables[table.ID] = table
		if table.CurrentOrderID == "" {
			continue
		}
		o, ok := orders[table.CurrentOrderID]
		require.True(t, ok, "table %s references unknown order", table.ID)
		assert.False(t, o.Status.IsTerminal(), "table %s holds terminal order %s", table.ID, o.ID)
	}
	for _, o := range orders {
		if o.TableID == "" || o.Status.IsTerminal() {
			continue
		}
		if table, ok := tables[o.TableID]; ok {
			assert.Equal(t, o.ID, table.CurrentOrderID, "open order %s not on its table", o.ID)
		}
	}
}

func TestStore_LoadRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.ingredient(t, "ing_bun", "Bun", 10, 2)
	f.product(t, "burger", 120, models.RecipeItem{IngredientID: "ing_bun", Quantity: 1})
	f.table(t, "T1")

	order := newOrder(models.OrderStatusConfirmed, line("burger", 2, 120))
	order.TableID = "T1"
	_, _, err := f.store.CreateOrder(f.ctx, order)
	require.NoError(t, err)

	reloaded := NewStore(f.persister, nil)
	require.NoError(t, reloaded.Load(f.ctx))

	got, err := reloaded.GetOrder(order.ID)
	require.NoError(t, err)
	assert.True(t, got.StockDeducted)
	assert.Equal(t, time.UTC, got.CreatedAt.Location())
	assert.Equal(t, 8.0, reloaded.GetIngredients()[0].CurrentStock)

	table, err := reloaded.GetTable("T1")
	require.NoError(t, err)
	assert.Equal(t, models.TableOccupied, table.Status)
	assert.Equal(t, order.ID, table.CurrentOrderID)

	pending, revisions := reloaded.PendingOrders()
	require.Len(t, pending, 1)
	assert.Contains(t, revisions, order.ID)
}

func TestStore_LoadEmpty(t *testing.T) {
	s := NewStore(newMemoryPersister(), nil)
	require.NoError(t, s.Load(context.Background()))
	assert.Empty(t, s.GetOrders())
	assert.Nil(t, s.GetOpenShift())
}

func TestStore_FailedPersistRollsBack(t *testing.T) {
	f := newFixture(t)
	f.ingredient(t, "ing_bun", "Bun", 10, 0)
	f.product(t, "burger", 100, models.RecipeItem{IngredientID: "ing_bun", Quantity: 1})
	f.table(t, "T1")
	_, err := f.store.StartShift(f.ctx, "staff-1", "Ann", 500)
	require.NoError(t, err)

	before := len(f.events.events)
	f.persister.setFail(true)

	order := newOrder(models.OrderStatusCompleted, line("burger", 3, 100))
	order.TableID = "T1"
	order.PaymentMethod = models.PaymentCash
	_, _, err = f.store.CreateOrder(f.ctx, order)
	require.ErrorIs(t, err, errDiskFull)

	assert.Empty(t, f.store.GetOrders())
	assert.Equal(t, 10.0, f.stock(t, "ing_bun"))
	assert.Equal(t, 0.0, f.store.GetOpenShift().TotalCashSales)

	dineIn := newOrder(models.OrderStatusConfirmed, line("burger", 1, 100))
	dineIn.TableID = "T1"
	_, _, err = f.store.CreateOrder(f.ctx, dineIn)
	require.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, models.TableAvailable, f.tableState(t, "T1").Status)
	assert.Empty(t, f.tableState(t, "T1").CurrentOrderID)
	assert.Len(t, f.events.events, before, "no events for a rolled back mutation")

	f.persister.setFail(false)
	_, _, err = f.store.CreateOrder(f.ctx, order)
	require.NoError(t, err)
	assert.Equal(t, 7.0, f.stock(t, "ing_bun"))
}

func TestStore_MarkPushedKeepsNewerRevision(t *testing.T) {
	f := newFixture(t)
	order := newOrder(models.OrderStatusPending, line("tea", 1, 30))
	_, _, err := f.store.CreateOrder(f.ctx, order)
	require.NoError(t, err)

	_, revisions := f.store.PendingOrders()

	// changed again while the push was in flight
	_, err = f.store.UpdateOrderStatus(f.ctx, order.ID, models.OrderStatusConfirmed)
	require.NoError(t, err)

	require.NoError(t, f.store.MarkPushed(f.ctx, revisions))
	pending, _ := f.store.PendingOrders()
	require.Len(t, pending, 1)

	_, revisions = f.store.PendingOrders()
	require.NoError(t, f.store.MarkPushed(f.ctx, revisions))
	pending, _ = f.store.PendingOrders()
	assert.Empty(t, pending)
}

func TestStore_ReadsReturnCopies(t *testing.T) {
	f := newFixture(t)
	order := newOrder(models.OrderStatusPending, line("tea", 1, 30))
	_, _, err := f.store.CreateOrder(f.ctx, order)
	require.NoError(t, err)

	got, err := f.store.GetOrder(order.ID)
	require.NoError(t, err)
	got.Items[0].Quantity = 99

	again, err := f.store.GetOrder(order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Items[0].Quantity)
}

func TestStore_EventsFollowCommitOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.StartShift(f.ctx, "staff-1", "Ann", 0)
	require.NoError(t, err)

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.store.RecordCashTransaction(f.ctx, 1, "float")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	recorded := f.events.ofType(EventCashRecorded)
	require.Len(t, recorded, writers)
	for i, e := range recorded {
		require.NotNil(t, e.Shift)
		assert.Equal(t, float64(i+1), e.Shift.TotalCashSales)
	}
}
