package models

import (
	"time"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusPreparing OrderStatus = "PREPARING"
	OrderStatusReady     OrderStatus = "READY"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

func (s OrderStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no regular transition leaves this status
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// IsValid reports whether s is one of the known statuses
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing,
		OrderStatusReady, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// OrderType is how the order is served
type OrderType string

const (
	OrderTypeDineIn   OrderType = "DINE_IN"
	OrderTypeTakeaway OrderType = "TAKEAWAY"
	OrderTypeDelivery OrderType = "DELIVERY"
)

// PaymentMethod used to settle an order
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentCard     PaymentMethod = "CARD"
	PaymentTransfer PaymentMethod = "TRANSFER"
	PaymentQR       PaymentMethod = "QR"
)

// ItemStatus is the kitchen progress of a line; informational only
type ItemStatus string

const (
	ItemStatusPending ItemStatus = "PENDING"
	ItemStatusCooking ItemStatus = "COOKING"
	ItemStatusDone    ItemStatus = "DONE"
)

// SelectedOption is a denormalized option choice snapshotted on a line item
type SelectedOption struct {
	GroupID       string  `json:"groupId"`
	ChoiceID      string  `json:"choiceId"`
	Name          string  `json:"name"`
	PriceModifier float64 `json:"priceModifier"`
}

// OrderItem represents an item in an order. Name and price are snapshots taken
// when the item was sold.
type OrderItem struct {
	ID               string           `json:"id"`
	ProductID        string           `json:"productId"`
	ProductName      string           `json:"productName"`
	Quantity         int              `json:"quantity"`
	Price            float64          `json:"price"` // effective unit price including options
	SelectedOptions  []SelectedOption `json:"selectedOptions,omitempty"`
	Notes            string           `json:"notes,omitempty"`
	Status           ItemStatus       `json:"status,omitempty"`
	RefundedQuantity int              `json:"refundedQuantity"`
}

// Remaining returns the quantity still refundable on the line
func (i OrderItem) Remaining() int {
	return i.Quantity - i.RefundedQuantity
}

// Order represents a customer order
type Order struct {
	ID               string        `json:"id"`
	OrderNumber      string        `json:"orderNumber"`
	TableID          string        `json:"tableId,omitempty"`
	Type             OrderType     `json:"type"`
	Status           OrderStatus   `json:"status"`
	Items            []OrderItem   `json:"items"`
	Subtotal         float64       `json:"subtotal"`
	Tax              float64       `json:"tax"`
	Discount         float64       `json:"discount"`
	Total            float64       `json:"total"`
	PaymentMethod    PaymentMethod `json:"paymentMethod,omitempty"`
	DeliveryPlatform string        `json:"deliveryPlatform,omitempty"`
	CustomerName     string        `json:"customerName,omitempty"`
	StockDeducted    bool          `json:"stockDeducted"`
	RefundedAmount   float64       `json:"refundedAmount"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
	CompletedAt      *time.Time    `json:"completedAt,omitempty"`
}

// Clone returns a deep copy of the order
func (o Order) Clone() Order {
	c := o
	if o.Items != nil {
		c.Items = make([]OrderItem, len(o.Items))
		for i, item := range o.Items {
			if item.SelectedOptions != nil {
				item.SelectedOptions = append([]SelectedOption(nil), item.SelectedOptions...)
			}
			c.Items[i] = item
		}
	}
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		c.CompletedAt = &t
	}
	return c
}

// FullyRefunded reports whether every line has been refunded completely
func (o Order) FullyRefunded() bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, item := range o.Items {
		if item.Remaining() > 0 {
			return false
		}
	}
	return true
}

// TableStatus represents the occupancy of a table
type TableStatus string

const (
	TableAvailable TableStatus = "AVAILABLE"
	TableOccupied  TableStatus = "OCCUPIED"
	TableReserved  TableStatus = "RESERVED"
)

// Table represents a restaurant table
type Table struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Status         TableStatus `json:"status"`
	Capacity       int         `json:"capacity"`
	CurrentOrderID string      `json:"currentOrderId,omitempty"`
	QRToken        string      `json:"qrToken,omitempty"`
}

// TableToken binds the customer-facing QR token to a table
type TableToken struct {
	TableID string `json:"tableId"`
	Token   string `json:"token"`
}
