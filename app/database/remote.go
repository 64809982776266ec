package database

import (
	"context"
	"fmt"
	"time"

	"RestoPOS/app/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteOrder is the relational row of an order in the remote source
type RemoteOrder struct {
	ID               string `gorm:"primaryKey"`
	OrderNumber      string `gorm:"uniqueIndex"`
	TableID          string
	Type             string
	Status           string
	Subtotal         float64
	Tax              float64
	Discount         float64
	Total            float64
	PaymentMethod    string
	DeliveryPlatform string
	CustomerName     string
	StockDeducted    bool
	RefundedAmount   float64
	CreatedAt        time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime:false"`
	CompletedAt      *time.Time
	Items            []RemoteOrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// RemoteOrderItem is one line of a RemoteOrder
type RemoteOrderItem struct {
	ID               string `gorm:"primaryKey"`
	OrderID          string `gorm:"index"`
	Position         int
	ProductID        string
	ProductName      string
	Quantity         int
	Price            float64
	Notes            string
	Status           string
	RefundedQuantity int
	SelectedOptions  []models.SelectedOption `gorm:"serializer:json"`
}

// RemoteTable is the relational row of a table
type RemoteTable struct {
	ID             string `gorm:"primaryKey"`
	Name           string
	Status         string
	Capacity       int
	CurrentOrderID string
}

// RemoteSource reads and writes orders and tables in the remote database
type RemoteSource struct {
	db *gorm.DB
}

// NewRemoteSource wraps an open gorm connection
func NewRemoteSource(db *gorm.DB) *RemoteSource {
	return &RemoteSource{db: db}
}

// Migrate creates the remote tables
func (r *RemoteSource) Migrate() error {
	if err := r.db.AutoMigrate(&RemoteOrder{}, &RemoteOrderItem{}, &RemoteTable{}); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Ping checks that the remote database is reachable
func (r *RemoteSource) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// FetchOrders returns every order with its items
func (r *RemoteSource) FetchOrders(ctx context.Context) ([]models.Order, error) {
	var rows []RemoteOrder
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch orders: %w", err)
	}

	orders := make([]models.Order, len(rows))
	for i, row := range rows {
		orders[i] = row.toModel()
	}
	return orders, nil
}

// FetchTables returns every table
func (r *RemoteSource) FetchTables(ctx context.Context) ([]models.Table, error) {
	var rows []RemoteTable
	if err := r.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch tables: %w", err)
	}

	tables := make([]models.Table, len(rows))
	for i, row := range rows {
		tables[i] = models.Table{
			ID:             row.ID,
			Name:           row.Name,
			Status:         models.TableStatus(row.Status),
			Capacity:       row.Capacity,
			CurrentOrderID: row.CurrentOrderID,
		}
	}
	return tables, nil
}

// PushOrders upserts orders and replaces their items in one transaction
func (r *RemoteSource) PushOrders(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, order := range orders {
			row := remoteOrderFrom(order)
			items := row.Items
			row.Items = nil

			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
				return fmt.Errorf("failed to upsert order %s: %w", order.OrderNumber, err)
			}
			if err := tx.Where("order_id = ?", row.ID).Delete(&RemoteOrderItem{}).Error; err != nil {
				return fmt.Errorf("failed to clear items of %s: %w", order.OrderNumber, err)
			}
			if len(items) > 0 {
				if err := tx.Create(&items).Error; err != nil {
					return fmt.Errorf("failed to insert items of %s: %w", order.OrderNumber, err)
				}
			}
		}
		return nil
	})
}

// PushTables upserts tables
func (r *RemoteSource) PushTables(ctx context.Context, tables []models.Table) error {
	if len(tables) == 0 {
		return nil
	}
	rows := make([]RemoteTable, len(tables))
	for i, t := range tables {
		rows[i] = RemoteTable{
			ID:             t.ID,
			Name:           t.Name,
			Status:         string(t.Status),
			Capacity:       t.Capacity,
			CurrentOrderID: t.CurrentOrderID,
		}
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
}

// Close closes the remote connection
func (r *RemoteSource) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func remoteOrderFrom(o models.Order) RemoteOrder {
	row := RemoteOrder{
		ID:               o.ID,
		OrderNumber:      o.OrderNumber,
		TableID:          o.TableID,
		Type:             string(o.Type),
		Status:           string(o.Status),
		Subtotal:         o.Subtotal,
		Tax:              o.Tax,
		Discount:         o.Discount,
		Total:            o.Total,
		PaymentMethod:    string(o.PaymentMethod),
		DeliveryPlatform: o.DeliveryPlatform,
		CustomerName:     o.CustomerName,
		StockDeducted:    o.StockDeducted,
		RefundedAmount:   o.RefundedAmount,
		CreatedAt:        o.CreatedAt.UTC(),
		UpdatedAt:        o.UpdatedAt.UTC(),
		CompletedAt:      o.CompletedAt,
		Items:            make([]RemoteOrderItem, len(o.Items)),
	}
	for i, item := range o.Items {
		row.Items[i] = RemoteOrderItem{
			ID:               item.ID,
			OrderID:          o.ID,
			Position:         i,
			ProductID:        item.ProductID,
			ProductName:      item.ProductName,
			Quantity:         item.Quantity,
			Price:            item.Price,
			Notes:            item.Notes,
			Status:           string(item.Status),
			RefundedQuantity: item.RefundedQuantity,
			SelectedOptions:  item.SelectedOptions,
		}
	}
	return row
}

func (row RemoteOrder) toModel() models.Order {
	o := models.Order{
		ID:               row.ID,
		OrderNumber:      row.OrderNumber,
		TableID:          row.TableID,
		Type:             models.OrderType(row.Type),
		Status:           models.OrderStatus(row.Status),
		Subtotal:         row.Subtotal,
		Tax:              row.Tax,
		Discount:         row.Discount,
		Total:            row.Total,
		PaymentMethod:    models.PaymentMethod(row.PaymentMethod),
		DeliveryPlatform: row.DeliveryPlatform,
		CustomerName:     row.CustomerName,
		StockDeducted:    row.StockDeducted,
		RefundedAmount:   row.RefundedAmount,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
		Items:            make([]models.OrderItem, len(row.Items)),
	}
	if row.CompletedAt != nil {
		t := row.CompletedAt.UTC()
		o.CompletedAt = &t
	}
	for i, item := range row.Items {
		o.Items[i] = models.OrderItem{
			ID:               item.ID,
			ProductID:        item.ProductID,
			ProductName:      item.ProductName,
			Quantity:         item.Quantity,
			Price:            item.Price,
			SelectedOptions:  item.SelectedOptions,
			Notes:            item.Notes,
			Status:           models.ItemStatus(item.Status),
			RefundedQuantity: item.RefundedQuantity,
		}
	}
	return o
}
