package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"RestoPOS/app/models"

	"github.com/google/uuid"
)

// CreateOrder validates and records a new order. CONFIRMED and COMPLETED orders
// have their stock deducted immediately.
func (s *Store) CreateOrder(ctx context.Context, order models.Order) (*models.Order, Result, error) {
	if strings.TrimSpace(order.ID) == "" {
		return nil, Result{}, ErrMissingOrderID
	}
	if strings.TrimSpace(order.OrderNumber) == "" {
		return nil, Result{}, ErrMissingOrderNumber
	}
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	if !order.Status.IsValid() {
		return nil, Result{}, fmt.Errorf("%w: %s", ErrInvalidStatus, order.Status)
	}
	if err := validateItems(order.Items); err != nil {
		return nil, Result{}, err
	}

	var (
		created  models.Order
		warnings []string
	)
	err := s.mutate(ctx, func(t *tx) error {
		for _, existing := range t.st.orders {
			if existing.ID == order.ID {
				return fmt.Errorf("order %s: %w", order.ID, ErrDuplicateOrder)
			}
			if existing.OrderNumber == order.OrderNumber {
				return fmt.Errorf("order number %s: %w", order.OrderNumber, ErrDuplicateOrder)
			}
		}

		if order.CreatedAt.IsZero() {
			order.CreatedAt = t.now
		}
		order.CreatedAt = order.CreatedAt.UTC()
		order.UpdatedAt = t.now
		assignItemIDs(order.Items)

		if order.TableID != "" && !order.Status.IsTerminal() {
			i := t.st.tableIndex(order.TableID)
			switch {
			case i < 0:
				warnings = append(warnings, fmt.Sprintf("table %s not found", order.TableID))
			case t.st.holdsOpenOrder(t.st.tables[i]):
				return fmt.Errorf("table %s: %w", t.st.tables[i].Name, ErrTableOccupied)
			default:
				t.occupyTable(order.TableID, order.ID)
			}
		}

		if needsDeduction(order.Status) && !order.StockDeducted {
			warnings = append(warnings, t.deductForOrder(order.Items, saleReference(order))...)
			order.StockDeducted = true
		}

		if order.Status == models.OrderStatusCompleted {
			now := t.now
			order.CompletedAt = &now
			if order.PaymentMethod == models.PaymentCash && !t.recordCash(order.Total, models.CashSale, order.OrderNumber) {
				warnings = append(warnings, "no open shift, cash sale not recorded")
			}
		}

		t.st.orders = append(t.st.orders, order)
		t.touch(KeyOrders)
		t.markPending(order.ID)

		created = order.Clone()
		copied := created.Clone()
		t.emit(Event{Type: EventOrderCreated, Order: &copied, Warnings: warnings})
		return nil
	})
	if err != nil {
		return nil, Result{}, err
	}

	s.logInfo("Order created", fmt.Sprintf("order=%s status=%s items=%d", created.OrderNumber, created.Status, len(created.Items)))
	s.logWarnings("Order "+created.OrderNumber, warnings)
	return &created, applied(warnings), nil
}

// AppendItems adds items to an open order and recomputes its totals. The
// existing discount amount is kept.
func (s *Store) AppendItems(ctx context.Context, orderID string, items []models.OrderItem) (*models.Order, Result, error) {
	if len(items) == 0 {
		return nil, skipped("no items to append"), nil
	}
	if err := validateItems(items); err != nil {
		return nil, Result{}, err
	}

	var (
		updated  models.Order
		result   Result
		warnings []string
	)
	err := s.mutate(ctx, func(t *tx) error {
		i := t.st.orderIndex(orderID)
		if i < 0 {
			result = notFound(fmt.Sprintf("order %s not found", orderID))
			return nil
		}
		order := &t.st.orders[i]
		if order.Status.IsTerminal() {
			return fmt.Errorf("append to %s: %w", order.OrderNumber, ErrOrderClosed)
		}

		added := make([]models.OrderItem, len(items))
		for k, item := range items {
			item.RefundedQuantity = 0
			if item.Status == "" {
				item.Status = models.ItemStatusPending
			}
			added[k] = item
		}
		order.Items = mergeItems(order.Items, added)
		recalculateTotals(order, t.st.settings)
		order.UpdatedAt = t.now

		if order.StockDeducted {
			warnings = t.deductForOrder(added, saleReference(*order))
		}

		t.touch(KeyOrders)
		t.markPending(order.ID)

		updated = order.Clone()
		copied := updated.Clone()
		t.emit(Event{Type: EventItemsAppended, Order: &copied, Items: added, Warnings: warnings})
		result = applied(warnings)
		return nil
	})
	if err != nil {
		return nil, Result{}, err
	}
	if result.Outcome == OutcomeNotFound {
		s.logWarning("Append ignored", result.Message)
		return nil, result, nil
	}

	s.logWarnings("Order "+updated.OrderNumber, warnings)
	return &updated, result, nil
}

// UpdateOrder replaces an order's editable content. Status, table, creation
// time, refund totals and the stock guard stay as stored; they change only
// through their own operations.
func (s *Store) UpdateOrder(ctx context.Context, order models.Order) (*models.Order, Result, error) {
	if err := validateItems(order.Items); err != nil {
		return nil, Result{}, err
	}

	var (
		updated models.Order
		result  Result
	)
	err := s.mutate(ctx, func(t *tx) error {
		i := t.st.orderIndex(order.ID)
		if i < 0 {
			result = notFound(fmt.Sprintf("order %s not found", order.ID))
			return nil
		}
		existing := t.st.orders[i]
		if existing.Status.IsTerminal() {
			return fmt.Errorf("update %s: %w", existing.OrderNumber, ErrOrderClosed)
		}

		if order.OrderNumber == "" {
			order.OrderNumber = existing.OrderNumber
		}
		for _, other := range t.st.orders {
			if other.ID != order.ID && other.OrderNumber == order.OrderNumber {
				return fmt.Errorf("order number %s: %w", order.OrderNumber, ErrDuplicateOrder)
			}
		}

		order.Status = existing.Status
		order.TableID = existing.TableID
		order.CreatedAt = existing.CreatedAt
		order.CompletedAt = existing.CompletedAt
		order.StockDeducted = existing.StockDeducted
		order.RefundedAmount = existing.RefundedAmount
		order.UpdatedAt = t.now
		assignItemIDs(order.Items)

		t.st.orders[i] = order
		t.touch(KeyOrders)
		t.markPending(order.ID)

		updated = order.Clone()
		copied := updated.Clone()
		t.emit(Event{Type: EventOrderUpdated, Order: &copied})
		result = applied(nil)
		return nil
	})
	if err != nil {
		return nil, Result{}, err
	}
	if result.Outcome == OutcomeNotFound {
		s.logWarning("Update ignored", result.Message)
		return nil, result, nil
	}
	return &updated, result, nil
}

// UpdateOrderStatus moves an order through its lifecycle. Completing frees the
// table, deducts stock if still pending and books cash sales; cancelling frees
// the table and leaves stock alone.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) (Result, error) {
	if !status.IsValid() {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	var (
		result   Result
		number   string
		warnings []string
	)
	err := s.mutate(ctx, func(t *tx) error {
		i := t.st.orderIndex(orderID)
		if i < 0 {
			result = notFound(fmt.Sprintf("order %s not found", orderID))
			return nil
		}
		order := &t.st.orders[i]
		number = order.OrderNumber

		if order.Status == status {
			result = skipped(fmt.Sprintf("order %s already %s", order.OrderNumber, status))
			return nil
		}
		if order.Status.IsTerminal() {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, status)
		}

		order.Status = status
		order.UpdatedAt = t.now

		switch status {
		case models.OrderStatusCompleted:
			now := t.now
			order.CompletedAt = &now
			if order.TableID != "" {
				t.releaseTable(order.TableID, order.ID)
			}
			if !order.StockDeducted {
				warnings = append(warnings, t.deductForOrder(order.Items, saleReference(*order))...)
				order.StockDeducted = true
			}
			if order.PaymentMethod == models.PaymentCash && !t.recordCash(order.Total, models.CashSale, order.OrderNumber) {
				warnings = append(warnings, "no open shift, cash sale not recorded")
			}

		case models.OrderStatusCancelled:
			if order.TableID != "" {
				t.releaseTable(order.TableID, order.ID)
			}
		}

		t.touch(KeyOrders)
		t.markPending(order.ID)

		copied := order.Clone()
		t.emit(Event{Type: EventOrderStatus, Order: &copied, Warnings: warnings})
		result = applied(warnings)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	switch result.Outcome {
	case OutcomeNotFound:
		s.logWarning("Status update ignored", result.Message)
	case OutcomeSkipped:
		s.logDebug("Status update skipped", result.Message)
	default:
		s.logInfo("Order status updated", fmt.Sprintf("order=%s status=%s", number, status))
		s.logWarnings("Order "+number, warnings)
	}
	return result, nil
}

// RefundOrderItem refunds up to quantity units of one line. The amount is
// clamped to what is left; a fully refunded order is cancelled. Stock is never
// restored.
func (s *Store) RefundOrderItem(ctx context.Context, orderID, itemID string, quantity int) (Result, error) {
	var (
		result   Result
		number   string
		refunded int
		value    float64
	)
	err := s.mutate(ctx, func(t *tx) error {
		i := t.st.orderIndex(orderID)
		if i < 0 {
			result = notFound(fmt.Sprintf("order %s not found", orderID))
			return nil
		}
		order := &t.st.orders[i]
		number = order.OrderNumber

		if order.Status == models.OrderStatusCancelled {
			result = skipped(fmt.Sprintf("order %s is cancelled", order.OrderNumber))
			return nil
		}

		k := -1
		for idx := range order.Items {
			if order.Items[idx].ID == itemID {
				k = idx
				break
			}
		}
		if k < 0 {
			result = notFound(fmt.Sprintf("item %s not found in order %s", itemID, order.OrderNumber))
			return nil
		}
		item := &order.Items[k]

		refunded = quantity
		if remaining := item.Remaining(); remaining < refunded {
			refunded = remaining
		}
		if refunded <= 0 {
			result = skipped(fmt.Sprintf("nothing left to refund on %s", item.ProductName))
			return nil
		}

		item.RefundedQuantity += refunded
		value = item.Price * float64(refunded)
		order.RefundedAmount += value
		order.UpdatedAt = t.now

		// only a completed cash order has its sale in the drawer
		var warnings []string
		paid := order.Status == models.OrderStatusCompleted && order.PaymentMethod == models.PaymentCash
		if paid && !t.recordCash(-value, models.CashRefund, order.OrderNumber) {
			warnings = append(warnings, "no open shift, cash refund not recorded")
		}

		eventType := EventOrderUpdated
		if order.FullyRefunded() {
			order.Status = models.OrderStatusCancelled
			if order.TableID != "" {
				t.releaseTable(order.TableID, order.ID)
			}
			eventType = EventOrderStatus
		}

		t.touch(KeyOrders)
		t.markPending(order.ID)

		copied := order.Clone()
		t.emit(Event{Type: eventType, Order: &copied, Warnings: warnings})
		result = applied(warnings)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if result.Changed() {
		s.logInfo("Item refunded", fmt.Sprintf("order=%s item=%s quantity=%d value=%.2f", number, itemID, refunded, value))
		s.logWarnings("Order "+number, result.Warnings)
	} else {
		s.logWarning("Refund ignored", result.Message)
	}
	return result, nil
}

// AbsorbExternalSnapshot replaces the order ledger with an external listing and
// re-derives table occupancy from it. Local orders not yet pushed are kept so a
// lagging snapshot cannot drop them.
func (s *Store) AbsorbExternalSnapshot(ctx context.Context, orders []models.Order) error {
	var deltas []TableDelta
	err := s.mutate(ctx, func(t *tx) error {
		absorbed := make([]models.Order, 0, len(orders)+len(t.st.pending))
		seen := make(map[string]bool, len(orders))

		for _, o := range orders {
			if o.ID == "" || seen[o.ID] {
				continue
			}
			if _, pending := t.st.pending[o.ID]; pending {
				continue
			}
			o = o.Clone()
			normalizeOrderTimes(&o)
			if local := t.st.orderIndex(o.ID); local >= 0 && t.st.orders[local].StockDeducted {
				o.StockDeducted = true
			}
			seen[o.ID] = true
			absorbed = append(absorbed, o)
		}

		for id := range t.st.pending {
			if i := t.st.orderIndex(id); i >= 0 {
				absorbed = append(absorbed, t.st.orders[i].Clone())
			}
		}

		sort.SliceStable(absorbed, func(a, b int) bool {
			return absorbed[a].CreatedAt.Before(absorbed[b].CreatedAt)
		})

		if !sameOrders(t.st.orders, absorbed) {
			t.st.orders = absorbed
			t.touch(KeyOrders)
		}

		deltas = ReconcileTables(t.st.orders, t.st.tables)
		t.applyTableDeltas(deltas)

		if len(t.dirty) > 0 {
			t.emit(Event{Type: EventSnapshotAbsorbed})
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(deltas) > 0 {
		s.logInfo("Snapshot absorbed", fmt.Sprintf("orders=%d tableChanges=%d", len(orders), len(deltas)))
	}
	return nil
}

// GetOrders returns all orders, oldest first
func (s *Store) GetOrders() []models.Order {
	var orders []models.Order
	s.view(func(st *state) {
		orders = make([]models.Order, len(st.orders))
		for i, o := range st.orders {
			orders[i] = o.Clone()
		}
	})
	return orders
}

// GetOrder returns an order by id
func (s *Store) GetOrder(id string) (*models.Order, error) {
	var order *models.Order
	s.view(func(st *state) {
		if i := st.orderIndex(id); i >= 0 {
			c := st.orders[i].Clone()
			order = &c
		}
	})
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return order, nil
}

// OpenOrders returns orders that are neither completed nor cancelled
func (s *Store) OpenOrders() []models.Order {
	var orders []models.Order
	s.view(func(st *state) {
		for _, o := range st.orders {
			if !o.Status.IsTerminal() {
				orders = append(orders, o.Clone())
			}
		}
	})
	return orders
}

// GetOrdersByTable returns every order placed on a table
func (s *Store) GetOrdersByTable(tableID string) []models.Order {
	var orders []models.Order
	s.view(func(st *state) {
		for _, o := range st.orders {
			if o.TableID == tableID {
				orders = append(orders, o.Clone())
			}
		}
	})
	return orders
}

func (s *Store) logWarnings(prefix string, warnings []string) {
	for _, w := range warnings {
		s.logWarning(prefix, w)
	}
}

func (s *Store) logDebug(message string, details ...string) {
	if s.logger != nil {
		s.logger.LogDebug(message, details...)
	}
}

func needsDeduction(status models.OrderStatus) bool {
	return status == models.OrderStatusConfirmed || status == models.OrderStatusCompleted
}

func saleReference(order models.Order) string {
	return fmt.Sprintf("Sale - Order %s", order.OrderNumber)
}

func validateItems(items []models.OrderItem) error {
	for _, item := range items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: %s quantity must be positive", ErrInvalidItem, item.ProductName)
		}
		if item.RefundedQuantity < 0 || item.RefundedQuantity > item.Quantity {
			return fmt.Errorf("%w: %s refunded quantity out of range", ErrInvalidItem, item.ProductName)
		}
		if item.Price < 0 {
			return fmt.Errorf("%w: %s price must not be negative", ErrInvalidItem, item.ProductName)
		}
	}
	return nil
}

func assignItemIDs(items []models.OrderItem) {
	seen := make(map[string]bool, len(items))
	for i := range items {
		if items[i].ID == "" || seen[items[i].ID] {
			items[i].ID = uuid.NewString()
		}
		seen[items[i].ID] = true
	}
}

// mergeItems folds added into existing. A line with the same product, price,
// notes and options and no refunds absorbs the quantity; anything else becomes
// a new line. Each added item takes the id of the line it landed on.
func mergeItems(existing, added []models.OrderItem) []models.OrderItem {
	merged := append([]models.OrderItem(nil), existing...)
	lines := make([]int, len(added))
	for k, item := range added {
		lines[k] = -1
		for i := range merged {
			if sameLine(merged[i], item) {
				merged[i].Quantity += item.Quantity
				lines[k] = i
				break
			}
		}
		if lines[k] < 0 {
			merged = append(merged, item)
			lines[k] = len(merged) - 1
		}
	}
	assignItemIDs(merged)
	for k, i := range lines {
		added[k].ID = merged[i].ID
	}
	return merged
}

func sameLine(a, b models.OrderItem) bool {
	if a.ProductID != b.ProductID || a.Price != b.Price || a.Notes != b.Notes {
		return false
	}
	if a.RefundedQuantity > 0 || a.Status == models.ItemStatusDone {
		return false
	}
	if len(a.SelectedOptions) != len(b.SelectedOptions) {
		return false
	}
	for i := range a.SelectedOptions {
		if a.SelectedOptions[i] != b.SelectedOptions[i] {
			return false
		}
	}
	return true
}

// recalculateTotals derives subtotal, tax and total from the lines; the
// discount amount comes from the pricing layer and is kept as is.
func recalculateTotals(order *models.Order, settings models.Settings) {
	var subtotal float64
	for _, item := range order.Items {
		subtotal += item.Price * float64(item.Quantity)
	}

	rate := settings.TaxRate / 100
	order.Subtotal = roundMoney(subtotal)
	if settings.TaxIncludedInPrice {
		if rate > 0 {
			order.Tax = roundMoney(subtotal - subtotal/(1+rate))
		} else {
			order.Tax = 0
		}
		order.Total = roundMoney(order.Subtotal - order.Discount)
		return
	}
	order.Tax = roundMoney(subtotal * rate)
	order.Total = roundMoney(order.Subtotal + order.Tax - order.Discount)
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

func sameOrders(a, b []models.Order) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameOrder(a[i], b[i]) {
			return false
		}
	}
	return true
}

func sameOrder(a, b models.Order) bool {
	if a.ID != b.ID || a.OrderNumber != b.OrderNumber || a.TableID != b.TableID ||
		a.Type != b.Type || a.Status != b.Status || a.Subtotal != b.Subtotal ||
		a.Tax != b.Tax || a.Discount != b.Discount || a.Total != b.Total ||
		a.PaymentMethod != b.PaymentMethod || a.DeliveryPlatform != b.DeliveryPlatform ||
		a.CustomerName != b.CustomerName || a.StockDeducted != b.StockDeducted ||
		a.RefundedAmount != b.RefundedAmount || !a.CreatedAt.Equal(b.CreatedAt) ||
		!a.UpdatedAt.Equal(b.UpdatedAt) || len(a.Items) != len(b.Items) {
		return false
	}
	if (a.CompletedAt == nil) != (b.CompletedAt == nil) {
		return false
	}
	if a.CompletedAt != nil && !a.CompletedAt.Equal(*b.CompletedAt) {
		return false
	}
	for i := range a.Items {
		x, y := a.Items[i], b.Items[i]
		if x.ID != y.ID || x.ProductID != y.ProductID || x.ProductName != y.ProductName ||
			x.Quantity != y.Quantity || x.Price != y.Price || x.Notes != y.Notes ||
			x.Status != y.Status || x.RefundedQuantity != y.RefundedQuantity ||
			len(x.SelectedOptions) != len(y.SelectedOptions) {
			return false
		}
		for k := range x.SelectedOptions {
			if x.SelectedOptions[k] != y.SelectedOptions[k] {
				return false
			}
		}
	}
	return true
}
