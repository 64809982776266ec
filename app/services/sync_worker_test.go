package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"RestoPOS/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote upserts pushed orders and serves them back like the relational source
type fakeRemote struct {
	mu        sync.Mutex
	orders    map[string]models.Order
	order     []string
	tables    []models.Table
	fetchErr  error
	pushErr   error
	pushCalls int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{orders: make(map[string]models.Order)}
}

func (r *fakeRemote) put(o models.Order) {
	if _, ok := r.orders[o.ID]; !ok {
		r.order = append(r.order, o.ID)
	}
	r.orders[o.ID] = o.Clone()
}

func (r *fakeRemote) FetchOrders(context.Context) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	out := make([]models.Order, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.orders[id].Clone())
	}
	return out, nil
}

func (r *fakeRemote) FetchTables(context.Context) ([]models.Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Table(nil), r.tables...), nil
}

func (r *fakeRemote) PushOrders(_ context.Context, orders []models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushCalls++
	if r.pushErr != nil {
		return r.pushErr
	}
	for _, o := range orders {
		r.put(o)
	}
	return nil
}

func (r *fakeRemote) pushes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pushCalls
}

type fakeRecorder struct {
	mu       sync.Mutex
	statuses []string
	logs     []string
}

func (r *fakeRecorder) UpdateSyncStatus(status string, _ string, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	return nil
}

func (r *fakeRecorder) LogSync(entityType, action string, _ int, status, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, entityType+"/"+action+"/"+status)
	return nil
}

func (r *fakeRecorder) lastStatus() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return ""
	}
	return r.statuses[len(r.statuses)-1]
}

func TestSyncOnce_PushThenAbsorb(t *testing.T) {
	f := newFixture(t)
	f.table(t, "T1")
	remote := newFakeRemote()
	remote.put(models.Order{ID: "web-1", OrderNumber: "W1", TableID: "T1", Status: models.OrderStatusConfirmed, CreatedAt: baseTime})
	recorder := &fakeRecorder{}

	local := newOrder(models.OrderStatusPending, line("tea", 1, 30))
	_, _, err := f.store.CreateOrder(f.ctx, local)
	require.NoError(t, err)

	worker := NewSyncWorker(f.store, remote, recorder, nil, SyncOptions{})
	require.NoError(t, worker.SyncOnce(f.ctx))

	pending, _ := f.store.PendingOrders()
	assert.Empty(t, pending)
	assert.Len(t, f.store.GetOrders(), 2)
	assert.Equal(t, "web-1", f.tableState(t, "T1").CurrentOrderID)
	assert.Equal(t, "completed", recorder.lastStatus())
	assert.Equal(t, []string{"order/push/success", "order/pull/success"}, recorder.logs)

	// nothing pending and nothing new: a second cycle pushes nothing
	require.NoError(t, worker.SyncOnce(f.ctx))
	assert.Equal(t, 1, remote.pushes())
}

func TestSyncOnce_FailuresLeaveStateAlone(t *testing.T) {
	f := newFixture(t)
	remote := newFakeRemote()
	remote.pushErr = errors.New("connection refused")
	remote.fetchErr = errors.New("connection refused")
	recorder := &fakeRecorder{}

	local := newOrder(models.OrderStatusPending, line("tea", 1, 30))
	_, _, err := f.store.CreateOrder(f.ctx, local)
	require.NoError(t, err)

	worker := NewSyncWorker(f.store, remote, recorder, NewConsoleLogger(&discard{}), SyncOptions{})
	err = worker.SyncOnce(f.ctx)
	require.Error(t, err)

	pending, _ := f.store.PendingOrders()
	assert.Len(t, pending, 1)
	assert.Len(t, f.store.GetOrders(), 1)
	assert.Equal(t, "failed", recorder.lastStatus())

	remote.mu.Lock()
	remote.pushErr, remote.fetchErr = nil, nil
	remote.mu.Unlock()

	require.NoError(t, worker.SyncOnce(f.ctx))
	pending, _ = f.store.PendingOrders()
	assert.Empty(t, pending)
	assert.Len(t, f.store.GetOrders(), 1)
}

func TestSyncOnce_Retries(t *testing.T) {
	f := newFixture(t)
	remote := &flakyRemote{fakeRemote: newFakeRemote(), failures: 2}

	worker := NewSyncWorker(f.store, remote, nil, nil, SyncOptions{MaxRetry: 10 * time.Second})
	require.NoError(t, worker.SyncOnce(f.ctx))
	assert.Equal(t, 3, remote.fetches)
}

func TestSyncOnce_Tables(t *testing.T) {
	f := newFixture(t)
	f.table(t, "T1")
	remote := newFakeRemote()

	worker := NewSyncWorker(f.store, remote, nil, nil, SyncOptions{SyncTables: true})
	require.NoError(t, worker.SyncOnce(f.ctx))
	require.Len(t, f.store.GetTables(), 1, "an empty listing keeps the local tables")

	remote.tables = []models.Table{{ID: "R1", Name: "Rooftop 1"}, {ID: "R2", Name: "Rooftop 2"}}
	require.NoError(t, worker.SyncOnce(f.ctx))
	tables := f.store.GetTables()
	require.Len(t, tables, 2)
	assert.Equal(t, "R1", tables[0].ID)
	assert.NotEmpty(t, tables[0].QRToken)
}

func TestSyncWorker_StartStop(t *testing.T) {
	f := newFixture(t)
	remote := newFakeRemote()
	worker := NewSyncWorker(f.store, remote, nil, nil, SyncOptions{Interval: 10 * time.Millisecond})

	order := newOrder(models.OrderStatusPending, line("tea", 1, 30))
	_, _, err := f.store.CreateOrder(f.ctx, order)
	require.NoError(t, err)

	worker.Start(f.ctx)
	worker.Start(f.ctx)
	require.Eventually(t, func() bool {
		pending, _ := f.store.PendingOrders()
		return len(pending) == 0
	}, 2*time.Second, 10*time.Millisecond)
	worker.Stop()
	worker.Stop()

	// restarts after a stop
	ctx, cancel := context.WithCancel(f.ctx)
	worker.Start(ctx)
	cancel()
	worker.Stop()
}

type flakyRemote struct {
	*fakeRemote
	failures int
	fetches  int
}

func (r *flakyRemote) FetchOrders(ctx context.Context) ([]models.Order, error) {
	r.fetches++
	if r.fetches <= r.failures {
		return nil, errors.New("timeout")
	}
	return r.fakeRemote.FetchOrders(ctx)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
