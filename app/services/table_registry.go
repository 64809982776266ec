package services

import (
	"context"
	"fmt"
	"strings"

	"RestoPOS/app/models"

	"github.com/google/uuid"
)

// occupyTable marks a table as holding orderID
func (t *tx) occupyTable(tableID, orderID string) bool {
	i := t.st.tableIndex(tableID)
	if i < 0 {
		return false
	}
	t.st.tables[i].Status = models.TableOccupied
	t.st.tables[i].CurrentOrderID = orderID
	t.touch(KeyTables)

	table := t.st.tables[i]
	t.emit(Event{Type: EventTableUpdated, Table: &table})
	return true
}

// releaseTable frees a table held by orderID. A table claimed by another order
// is left alone.
func (t *tx) releaseTable(tableID, orderID string) {
	i := t.st.tableIndex(tableID)
	if i < 0 {
		return
	}
	table := &t.st.tables[i]
	if table.CurrentOrderID != "" && table.CurrentOrderID != orderID {
		return
	}
	if table.Status != models.TableOccupied && table.CurrentOrderID == "" {
		return
	}
	table.Status = models.TableAvailable
	table.CurrentOrderID = ""
	t.touch(KeyTables)

	copied := *table
	t.emit(Event{Type: EventTableUpdated, Table: &copied})
}

// holdsOpenOrder reports whether the table references an order that is still open
func (st *state) holdsOpenOrder(table models.Table) bool {
	if table.CurrentOrderID == "" {
		return false
	}
	i := st.orderIndex(table.CurrentOrderID)
	return i >= 0 && !st.orders[i].Status.IsTerminal()
}

func (t *tx) setToken(tableID, token string) {
	for i := range t.st.tokens {
		if t.st.tokens[i].TableID == tableID {
			t.st.tokens[i].Token = token
			t.touch(KeyTableTokens)
			return
		}
	}
	t.st.tokens = append(t.st.tokens, models.TableToken{TableID: tableID, Token: token})
	t.touch(KeyTableTokens)
}

func (t *tx) dropToken(tableID string) {
	for i := range t.st.tokens {
		if t.st.tokens[i].TableID == tableID {
			t.st.tokens = append(t.st.tokens[:i], t.st.tokens[i+1:]...)
			t.touch(KeyTableTokens)
			return
		}
	}
}

func (st *state) tokenFor(tableID string) string {
	for _, tok := range st.tokens {
		if tok.TableID == tableID {
			return tok.Token
		}
	}
	return ""
}

func newTableToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// GetTables returns all tables
func (s *Store) GetTables() []models.Table {
	var tables []models.Table
	s.view(func(st *state) {
		tables = append([]models.Table(nil), st.tables...)
	})
	return tables
}

// GetTable returns a table by id
func (s *Store) GetTable(id string) (*models.Table, error) {
	var table *models.Table
	s.view(func(st *state) {
		if i := st.tableIndex(id); i >= 0 {
			c := st.tables[i]
			table = &c
		}
	})
	if table == nil {
		return nil, fmt.Errorf("table %s: %w", id, ErrTableNotFound)
	}
	return table, nil
}

// TableByToken resolves the customer-facing QR token to its table
func (s *Store) TableByToken(token string) (*models.Table, error) {
	var table *models.Table
	s.view(func(st *state) {
		for _, tok := range st.tokens {
			if tok.Token == token {
				if i := st.tableIndex(tok.TableID); i >= 0 {
					c := st.tables[i]
					table = &c
				}
				return
			}
		}
	})
	if table == nil {
		return nil, fmt.Errorf("token: %w", ErrTableNotFound)
	}
	return table, nil
}

// AddTable registers a table. A missing id or token is generated.
func (s *Store) AddTable(ctx context.Context, table models.Table) (*models.Table, error) {
	if strings.TrimSpace(table.Name) == "" {
		return nil, ErrMissingTableName
	}
	if table.ID == "" {
		table.ID = uuid.NewString()
	}
	if table.QRToken == "" {
		table.QRToken = newTableToken()
	}
	// occupancy only comes from orders
	if table.Status != models.TableReserved {
		table.Status = models.TableAvailable
	}
	table.CurrentOrderID = ""

	err := s.mutate(ctx, func(t *tx) error {
		if t.st.tableIndex(table.ID) >= 0 {
			return fmt.Errorf("table %s: already exists", table.ID)
		}
		t.st.tables = append(t.st.tables, table)
		t.setToken(table.ID, table.QRToken)
		t.touch(KeyTables)

		copied := table
		t.emit(Event{Type: EventTableUpdated, Table: &copied})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &table, nil
}

// UpdateTable replaces a table's descriptive fields. The token is kept unless a
// new one is supplied; occupancy stays owned by the order flow.
func (s *Store) UpdateTable(ctx context.Context, table models.Table) (Result, error) {
	if strings.TrimSpace(table.Name) == "" {
		return Result{}, ErrMissingTableName
	}

	var result Result
	err := s.mutate(ctx, func(t *tx) error {
		i := t.st.tableIndex(table.ID)
		if i < 0 {
			result = notFound(fmt.Sprintf("table %s not found", table.ID))
			return nil
		}
		current := t.st.tables[i]

		if table.QRToken == "" {
			table.QRToken = firstNonEmpty(current.QRToken, t.st.tokenFor(table.ID), newTableToken())
		}

		if t.st.holdsOpenOrder(current) {
			table.Status = current.Status
			table.CurrentOrderID = current.CurrentOrderID
		} else {
			if table.Status != models.TableReserved {
				table.Status = models.TableAvailable
			}
			table.CurrentOrderID = ""
		}

		t.st.tables[i] = table
		t.setToken(table.ID, table.QRToken)
		t.touch(KeyTables)

		copied := table
		t.emit(Event{Type: EventTableUpdated, Table: &copied})
		result = applied(nil)
		return nil
	})
	return result, err
}

// RotateTableToken issues a new QR token for a table
func (s *Store) RotateTableToken(ctx context.Context, id string) (string, error) {
	var token string
	err := s.mutate(ctx, func(t *tx) error {
		i := t.st.tableIndex(id)
		if i < 0 {
			return fmt.Errorf("table %s: %w", id, ErrTableNotFound)
		}
		token = newTableToken()
		t.st.tables[i].QRToken = token
		t.setToken(id, token)
		t.touch(KeyTables)
		return nil
	})
	return token, err
}

// DeleteTable removes a table and its token. A table holding an open order
// cannot be deleted.
func (s *Store) DeleteTable(ctx context.Context, id string) (Result, error) {
	var result Result
	err := s.mutate(ctx, func(t *tx) error {
		i := t.st.tableIndex(id)
		if i < 0 {
			result = notFound(fmt.Sprintf("table %s not found", id))
			return nil
		}
		if t.st.holdsOpenOrder(t.st.tables[i]) {
			return fmt.Errorf("delete table %s: %w", id, ErrTableOccupied)
		}
		t.st.tables = append(t.st.tables[:i], t.st.tables[i+1:]...)
		t.dropToken(id)
		t.touch(KeyTables)
		result = applied(nil)
		return nil
	})
	return result, err
}

// MoveOrder moves the open order of one table to another. Both tables and the
// order change together or not at all.
func (s *Store) MoveOrder(ctx context.Context, fromTableID, toTableID string) (*models.Order, error) {
	if fromTableID == toTableID {
		return nil, ErrSameTable
	}

	var moved models.Order
	err := s.mutate(ctx, func(t *tx) error {
		from := t.st.tableIndex(fromTableID)
		if from < 0 {
			return fmt.Errorf("source table %s: %w", fromTableID, ErrTableNotFound)
		}
		to := t.st.tableIndex(toTableID)
		if to < 0 {
			return fmt.Errorf("destination table %s: %w", toTableID, ErrTableNotFound)
		}

		source := t.st.tables[from]
		if !t.st.holdsOpenOrder(source) {
			return fmt.Errorf("move from %s: %w", source.Name, ErrNoSourceOrder)
		}
		if t.st.holdsOpenOrder(t.st.tables[to]) {
			return fmt.Errorf("move to %s: %w", t.st.tables[to].Name, ErrTableOccupied)
		}

		o := t.st.orderIndex(source.CurrentOrderID)
		order := &t.st.orders[o]

		t.releaseTable(fromTableID, order.ID)
		t.occupyTable(toTableID, order.ID)
		order.TableID = toTableID
		order.UpdatedAt = t.now
		t.touch(KeyOrders)
		t.markPending(order.ID)

		moved = order.Clone()
		copied := moved.Clone()
		t.emit(Event{Type: EventOrderUpdated, Order: &copied})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logInfo("Order moved", fmt.Sprintf("order=%s from=%s to=%s", moved.OrderNumber, fromTableID, toTableID))
	return &moved, nil
}

// AbsorbTableSnapshot replaces the tables with an external listing, keeping
// known tokens, then re-derives occupancy from the current orders.
func (s *Store) AbsorbTableSnapshot(ctx context.Context, tables []models.Table) error {
	return s.mutate(ctx, func(t *tx) error {
		absorbed := make([]models.Table, len(tables))
		for i, table := range tables {
			if table.QRToken == "" {
				table.QRToken = t.st.tokenFor(table.ID)
			}
			if table.QRToken == "" {
				table.QRToken = newTableToken()
			}
			if table.Status == "" {
				table.Status = models.TableAvailable
			}
			absorbed[i] = table
		}

		t.st.tables = absorbed
		t.st.tokens = t.st.tokens[:0]
		for _, table := range absorbed {
			t.st.tokens = append(t.st.tokens, models.TableToken{TableID: table.ID, Token: table.QRToken})
		}
		t.touch(KeyTables, KeyTableTokens)

		t.applyTableDeltas(ReconcileTables(t.st.orders, t.st.tables))
		return nil
	})
}
