package services

import (
	"errors"
)

// Validation errors. They are fatal to the call that returned them and leave
// the store untouched.
var (
	ErrMissingOrderID     = errors.New("order id is required")
	ErrMissingOrderNumber = errors.New("order number is required")
	ErrDuplicateOrder     = errors.New("order already exists")
	ErrOrderClosed        = errors.New("order is already completed or cancelled")
	ErrInvalidStatus      = errors.New("unknown order status")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidItem        = errors.New("invalid order item")

	ErrTableNotFound    = errors.New("table not found")
	ErrTableOccupied    = errors.New("table already has an open order")
	ErrNoSourceOrder    = errors.New("source table has no open order")
	ErrSameTable        = errors.New("source and destination table are the same")
	ErrMissingTableName = errors.New("table name is required")

	ErrShiftAlreadyOpen = errors.New("a shift is already open")
	ErrNoOpenShift      = errors.New("no open shift")
	ErrInvalidAmount    = errors.New("amount must not be negative")
	ErrMissingStaff     = errors.New("staff id is required")

	ErrInvalidPIN  = errors.New("PIN must be 4 to 6 digits")
	ErrWrongPIN    = errors.New("invalid PIN")
	ErrStaffExists = errors.New("staff already exists")
	ErrMissingName = errors.New("name is required")

	ErrNotFound      = errors.New("not found")
	ErrNegativeStock = errors.New("stock must not be negative")
)
