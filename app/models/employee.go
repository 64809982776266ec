package models

import (
	"time"
)

// Staff represents an employee/user of the system
type Staff struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Role    string `json:"role"` // "admin", "cashier", "waiter", "kitchen"
	PINHash string `json:"pinHash,omitempty"`
	Active  bool   `json:"active"`
}

// ShiftStatus represents the state of a cash drawer shift
type ShiftStatus string

const (
	ShiftOpen   ShiftStatus = "OPEN"
	ShiftClosed ShiftStatus = "CLOSED"
)

// CashEventKind classifies a cash movement in a shift
type CashEventKind string

const (
	CashSale   CashEventKind = "sale"
	CashRefund CashEventKind = "refund"
	CashManual CashEventKind = "manual"
)

// CashEvent represents cash movements in a shift
type CashEvent struct {
	Kind      CashEventKind `json:"kind"`
	Amount    float64       `json:"amount"` // Positive for income, negative for refunds
	Reference string        `json:"reference"`
	At        time.Time     `json:"at"`
}

// Shift represents a cash drawer session for one staff member
type Shift struct {
	ID             string      `json:"id"`
	StaffID        string      `json:"staffId"`
	StaffName      string      `json:"staffName"`
	StartTime      time.Time   `json:"startTime"`
	EndTime        *time.Time  `json:"endTime,omitempty"`
	StartingCash   float64     `json:"startingCash"`
	EndingCash     *float64    `json:"endingCash,omitempty"`
	TotalCashSales float64     `json:"totalCashSales"`
	ExpectedCash   float64     `json:"expectedCash"`
	Difference     *float64    `json:"difference,omitempty"`
	Status         ShiftStatus `json:"status"`
	Notes          string      `json:"notes,omitempty"`
	Events         []CashEvent `json:"events,omitempty"`
}

// Clone returns a deep copy of the shift
func (s Shift) Clone() Shift {
	c := s
	if s.EndTime != nil {
		t := *s.EndTime
		c.EndTime = &t
	}
	if s.EndingCash != nil {
		v := *s.EndingCash
		c.EndingCash = &v
	}
	if s.Difference != nil {
		v := *s.Difference
		c.Difference = &v
	}
	if s.Events != nil {
		c.Events = append([]CashEvent(nil), s.Events...)
	}
	return c
}
