package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"RestoPOS/app/metrics"
	"RestoPOS/app/models"
)

// Keys of the persisted records. Each holds one JSON document.
const (
	KeyProducts     = "products"
	KeyCategories   = "categories"
	KeyOptionGroups = "option-groups"
	KeyDiscounts    = "discounts"
	KeyIngredients  = "ingredients"
	KeyStaff        = "staff"
	KeyShifts       = "shifts"
	KeyOrders       = "orders"
	KeyTables       = "tables"
	KeyTableTokens  = "table-tokens"
	KeySettings     = "settings"
	KeyMovements    = "ingredient-movements"
	KeySyncPending  = "sync-pending"
)

// Persister stores the records of the store. Save must apply all records or none.
type Persister interface {
	Load(ctx context.Context, key string, dest any) (bool, error)
	Save(ctx context.Context, records map[string]any) error
}

// EventType names a change broadcast after a mutation commits
type EventType string

const (
	EventOrderCreated     EventType = "order_created"
	EventOrderUpdated     EventType = "order_updated"
	EventItemsAppended    EventType = "items_appended"
	EventOrderStatus      EventType = "order_status"
	EventTableUpdated     EventType = "table_updated"
	EventLowStock         EventType = "low_stock"
	EventShiftOpened      EventType = "shift_opened"
	EventShiftClosed      EventType = "shift_closed"
	EventCashRecorded     EventType = "cash_recorded"
	EventCashDropped      EventType = "cash_dropped"
	EventSnapshotAbsorbed EventType = "snapshot_absorbed"
)

// Event describes a committed change. Pointers are copies owned by the receiver.
type Event struct {
	Type     EventType          `json:"type"`
	Order    *models.Order      `json:"order,omitempty"`
	Items    []models.OrderItem `json:"items,omitempty"`
	Table    *models.Table      `json:"table,omitempty"`
	Shift    *models.Shift      `json:"shift,omitempty"`
	Amount   float64            `json:"amount,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
	At       time.Time          `json:"at"`
}

// Notifier receives events after they are committed, in commit order. Notify
// must not block or call back into a Store mutation.
type Notifier interface {
	Notify(event Event)
}

// state is the full data set owned by a Store
type state struct {
	products     []models.Product
	categories   []models.Category
	optionGroups []models.OptionGroup
	discounts    []models.Discount
	ingredients  []models.Ingredient
	staff        []models.Staff
	shifts       []models.Shift
	orders       []models.Order
	tables       []models.Table
	tokens       []models.TableToken
	settings     models.Settings
	movements    []models.IngredientMovement

	// order id -> revision not yet acknowledged by the remote source
	pending  map[string]uint64
	revision uint64
}

func newState() *state {
	return &state{pending: make(map[string]uint64)}
}

func (st *state) clone() *state {
	c := &state{
		categories:   append([]models.Category(nil), st.categories...),
		discounts:    make([]models.Discount, len(st.discounts)),
		ingredients:  append([]models.Ingredient(nil), st.ingredients...),
		staff:        append([]models.Staff(nil), st.staff...),
		tables:       append([]models.Table(nil), st.tables...),
		tokens:       append([]models.TableToken(nil), st.tokens...),
		settings:     st.settings,
		movements:    append([]models.IngredientMovement(nil), st.movements...),
		products:     make([]models.Product, len(st.products)),
		optionGroups: make([]models.OptionGroup, len(st.optionGroups)),
		shifts:       make([]models.Shift, len(st.shifts)),
		orders:       make([]models.Order, len(st.orders)),
		pending:      make(map[string]uint64, len(st.pending)),
		revision:     st.revision,
	}
	for i, d := range st.discounts {
		d.CategoryIDs = append([]string(nil), d.CategoryIDs...)
		c.discounts[i] = d
	}
	for i, p := range st.products {
		c.products[i] = p.Clone()
	}
	for i, g := range st.optionGroups {
		g.Choices = append([]models.OptionChoice(nil), g.Choices...)
		c.optionGroups[i] = g
	}
	for i, sh := range st.shifts {
		c.shifts[i] = sh.Clone()
	}
	for i, o := range st.orders {
		c.orders[i] = o.Clone()
	}
	for id, rev := range st.pending {
		c.pending[id] = rev
	}
	return c
}

func (st *state) record(key string) any {
	switch key {
	case KeyProducts:
		return st.products
	case KeyCategories:
		return st.categories
	case KeyOptionGroups:
		return st.optionGroups
	case KeyDiscounts:
		return st.discounts
	case KeyIngredients:
		return st.ingredients
	case KeyStaff:
		return st.staff
	case KeyShifts:
		return st.shifts
	case KeyOrders:
		return st.orders
	case KeyTables:
		return st.tables
	case KeyTableTokens:
		return st.tokens
	case KeySettings:
		return st.settings
	case KeyMovements:
		return st.movements
	case KeySyncPending:
		return st.pending
	}
	return nil
}

func (st *state) orderIndex(id string) int {
	for i := range st.orders {
		if st.orders[i].ID == id {
			return i
		}
	}
	return -1
}

func (st *state) tableIndex(id string) int {
	for i := range st.tables {
		if st.tables[i].ID == id {
			return i
		}
	}
	return -1
}

func (st *state) ingredientIndex(id string) int {
	for i := range st.ingredients {
		if st.ingredients[i].ID == id {
			return i
		}
	}
	return -1
}

func (st *state) productIndex(id string) int {
	for i := range st.products {
		if st.products[i].ID == id {
			return i
		}
	}
	return -1
}

func (st *state) openShiftIndex() int {
	for i := range st.shifts {
		if st.shifts[i].Status == models.ShiftOpen {
			return i
		}
	}
	return -1
}

// tx is the working copy handed to a mutation
type tx struct {
	st     *state
	dirty  map[string]bool
	events []Event
	now    time.Time
}

func (t *tx) touch(keys ...string) {
	for _, k := range keys {
		t.dirty[k] = true
	}
}

func (t *tx) emit(e Event) {
	e.At = t.now
	t.events = append(t.events, e)
}

// markPending queues an order for the next push to the remote source
func (t *tx) markPending(orderID string) {
	t.st.revision++
	t.st.pending[orderID] = t.st.revision
	t.touch(KeySyncPending)
}

func (t *tx) records() map[string]any {
	records := make(map[string]any, len(t.dirty))
	for key := range t.dirty {
		records[key] = t.st.record(key)
	}
	return records
}

// Store owns the order, table, stock, and shift ledgers. It is the only
// sanctioned writer of stock, occupancy, and shift totals.
type Store struct {
	mu        sync.Mutex
	st        *state
	persister Persister
	logger    *LoggerService

	notifyMu  sync.RWMutex
	notifiers []Notifier

	dispatchMu sync.Mutex // taken before mu is released so commits dispatch in order

	now func() time.Time
}

// NewStore creates an empty store backed by persister
func NewStore(persister Persister, logger *LoggerService) *Store {
	return &Store{
		st:        newState(),
		persister: persister,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		notifiers: []Notifier{metricsRecorder{}},
	}
}

// Subscribe registers a notifier for committed events
func (s *Store) Subscribe(n Notifier) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.notifiers = append(s.notifiers, n)
}

// Load hydrates the store from the persister. Missing records load as empty.
func (s *Store) Load(ctx context.Context) error {
	st := newState()
	targets := map[string]any{
		KeyProducts:     &st.products,
		KeyCategories:   &st.categories,
		KeyOptionGroups: &st.optionGroups,
		KeyDiscounts:    &st.discounts,
		KeyIngredients:  &st.ingredients,
		KeyStaff:        &st.staff,
		KeyShifts:       &st.shifts,
		KeyOrders:       &st.orders,
		KeyTables:       &st.tables,
		KeyTableTokens:  &st.tokens,
		KeySettings:     &st.settings,
		KeyMovements:    &st.movements,
		KeySyncPending:  &st.pending,
	}

	for key, dest := range targets {
		if _, err := s.persister.Load(ctx, key, dest); err != nil {
			return fmt.Errorf("failed to load %s: %w", key, err)
		}
	}

	if st.pending == nil {
		st.pending = make(map[string]uint64)
	}
	for _, rev := range st.pending {
		if rev > st.revision {
			st.revision = rev
		}
	}
	for i := range st.orders {
		normalizeOrderTimes(&st.orders[i])
	}

	s.mu.Lock()
	s.st = st
	s.mu.Unlock()

	s.logInfo("Store loaded",
		fmt.Sprintf("orders=%d tables=%d ingredients=%d", len(st.orders), len(st.tables), len(st.ingredients)))
	return nil
}

// mutate runs fn on a copy of the state. The copy replaces the live state only
// if fn succeeds and every touched record is persisted.
func (s *Store) mutate(ctx context.Context, fn func(t *tx) error) error {
	s.mu.Lock()
	t := &tx{st: s.st.clone(), dirty: make(map[string]bool), now: s.now()}

	if err := fn(t); err != nil {
		s.mu.Unlock()
		return err
	}

	if len(t.dirty) > 0 {
		if err := s.persister.Save(ctx, t.records()); err != nil {
			s.mu.Unlock()
			s.logError("Failed to persist store", err)
			return fmt.Errorf("failed to persist state: %w", err)
		}
		s.st = t.st
		if t.dirty[KeyOrders] {
			metrics.OpenOrders.Set(float64(countOpenOrders(s.st.orders)))
		}
	}
	s.dispatchMu.Lock()
	s.mu.Unlock()

	s.dispatch(t.events)
	s.dispatchMu.Unlock()
	return nil
}

// view runs fn against the live state under the store lock
func (s *Store) view(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.st)
}

func (s *Store) dispatch(events []Event) {
	if len(events) == 0 {
		return
	}
	s.notifyMu.RLock()
	notifiers := append([]Notifier(nil), s.notifiers...)
	s.notifyMu.RUnlock()

	for _, e := range events {
		for _, n := range notifiers {
			n.Notify(e)
		}
	}
}

// PendingOrders returns orders not yet acknowledged by the remote source with
// the revision each was queued at.
func (s *Store) PendingOrders() ([]models.Order, map[string]uint64) {
	var orders []models.Order
	revisions := make(map[string]uint64)
	s.view(func(st *state) {
		for id, rev := range st.pending {
			if i := st.orderIndex(id); i >= 0 {
				orders = append(orders, st.orders[i].Clone())
				revisions[id] = rev
			}
		}
	})
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })
	return orders, revisions
}

// MarkPushed clears pending entries whose revision did not change since the push
func (s *Store) MarkPushed(ctx context.Context, revisions map[string]uint64) error {
	return s.mutate(ctx, func(t *tx) error {
		for id, rev := range revisions {
			if current, ok := t.st.pending[id]; ok && current == rev {
				delete(t.st.pending, id)
				t.touch(KeySyncPending)
			}
		}
		return nil
	})
}

func (s *Store) logInfo(message string, details ...string) {
	if s.logger != nil {
		s.logger.LogInfo(message, details...)
	}
}

func (s *Store) logWarning(message string, details ...string) {
	if s.logger != nil {
		s.logger.LogWarning(message, details...)
	}
}

func (s *Store) logError(message string, err error, details ...string) {
	if s.logger != nil {
		s.logger.LogError(message, err, details...)
	}
}

func normalizeOrderTimes(o *models.Order) {
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	if o.CompletedAt != nil {
		t := o.CompletedAt.UTC()
		o.CompletedAt = &t
	}
}
