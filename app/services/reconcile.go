package services

import (
	"RestoPOS/app/models"
)

// TableDelta is the occupancy a table must be forced to
type TableDelta struct {
	TableID        string             `json:"tableId"`
	Status         models.TableStatus `json:"status"`
	CurrentOrderID string             `json:"currentOrderId,omitempty"`
}

// ReconcileTables derives table occupancy from orders. For each table the most
// recently created open order referencing it wins; a table with no open order
// that still claims one is released. Tables already consistent produce no delta.
func ReconcileTables(orders []models.Order, tables []models.Table) []TableDelta {
	latest := make(map[string]*models.Order)
	for i := range orders {
		o := &orders[i]
		if o.TableID == "" || o.Status.IsTerminal() {
			continue
		}
		current, ok := latest[o.TableID]
		if !ok || newerOrder(o, current) {
			latest[o.TableID] = o
		}
	}

	var deltas []TableDelta
	for _, table := range tables {
		if o, ok := latest[table.ID]; ok {
			if table.Status != models.TableOccupied || table.CurrentOrderID != o.ID {
				deltas = append(deltas, TableDelta{
					TableID:        table.ID,
					Status:         models.TableOccupied,
					CurrentOrderID: o.ID,
				})
			}
			continue
		}

		if table.Status == models.TableOccupied || table.CurrentOrderID != "" {
			deltas = append(deltas, TableDelta{
				TableID: table.ID,
				Status:  models.TableAvailable,
			})
		}
	}
	return deltas
}

func newerOrder(a, b *models.Order) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// applyTableDeltas writes deltas into the working state and announces each table
func (t *tx) applyTableDeltas(deltas []TableDelta) {
	for _, d := range deltas {
		i := t.st.tableIndex(d.TableID)
		if i < 0 {
			continue
		}
		t.st.tables[i].Status = d.Status
		t.st.tables[i].CurrentOrderID = d.CurrentOrderID
		table := t.st.tables[i]
		t.emit(Event{Type: EventTableUpdated, Table: &table})
	}
	if len(deltas) > 0 {
		t.touch(KeyTables)
	}
}
