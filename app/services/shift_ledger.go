package services

import (
	"context"
	"fmt"
	"strings"

	"RestoPOS/app/models"

	"github.com/google/uuid"
)

// recordCash adds delta to the open shift. Without an open shift the event is
// dropped and false is returned.
func (t *tx) recordCash(delta float64, kind models.CashEventKind, reference string) bool {
	i := t.st.openShiftIndex()
	if i < 0 {
		t.emit(Event{Type: EventCashDropped, Amount: delta})
		return false
	}

	shift := &t.st.shifts[i]
	shift.TotalCashSales += delta
	shift.ExpectedCash = shift.StartingCash + shift.TotalCashSales
	shift.Events = append(shift.Events, models.CashEvent{
		Kind:      kind,
		Amount:    delta,
		Reference: reference,
		At:        t.now,
	})
	t.touch(KeyShifts)

	copied := shift.Clone()
	t.emit(Event{Type: EventCashRecorded, Shift: &copied, Amount: delta})
	return true
}

// StartShift opens a cash drawer shift. Only one shift may be open at a time.
func (s *Store) StartShift(ctx context.Context, staffID, staffName string, startingCash float64) (*models.Shift, error) {
	if strings.TrimSpace(staffID) == "" {
		return nil, ErrMissingStaff
	}
	if startingCash < 0 {
		return nil, ErrInvalidAmount
	}

	var shift models.Shift
	err := s.mutate(ctx, func(t *tx) error {
		if t.st.openShiftIndex() >= 0 {
			return ErrShiftAlreadyOpen
		}

		name := staffName
		for _, member := range t.st.staff {
			if member.ID == staffID && member.Name != "" {
				name = member.Name
			}
		}

		shift = models.Shift{
			ID:             uuid.NewString(),
			StaffID:        staffID,
			StaffName:      name,
			StartTime:      t.now,
			StartingCash:   startingCash,
			TotalCashSales: 0,
			ExpectedCash:   startingCash,
			Status:         models.ShiftOpen,
		}
		t.st.shifts = append(t.st.shifts, shift)
		t.touch(KeyShifts)

		copied := shift.Clone()
		t.emit(Event{Type: EventShiftOpened, Shift: &copied})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logInfo("Shift opened", fmt.Sprintf("staff=%s startingCash=%.2f", shift.StaffName, startingCash))
	return &shift, nil
}

// RecordCashTransaction adds a manual cash movement to the open shift. With no
// open shift the amount is dropped and the result is skipped.
func (s *Store) RecordCashTransaction(ctx context.Context, amount float64, reason string) (Result, error) {
	var result Result
	err := s.mutate(ctx, func(t *tx) error {
		if !t.recordCash(amount, models.CashManual, reason) {
			result = skipped("no open shift, cash event dropped")
			return nil
		}
		result = applied(nil)
		return nil
	})
	if err == nil && result.Outcome == OutcomeSkipped {
		s.logWarning("Cash transaction dropped", fmt.Sprintf("amount=%.2f reason=%s", amount, reason))
	}
	return result, err
}

// CloseShift finalizes the open shift and computes the drawer difference
func (s *Store) CloseShift(ctx context.Context, endingCash float64, notes string) (*models.Shift, error) {
	if endingCash < 0 {
		return nil, ErrInvalidAmount
	}

	var shift models.Shift
	err := s.mutate(ctx, func(t *tx) error {
		i := t.st.openShiftIndex()
		if i < 0 {
			return ErrNoOpenShift
		}

		current := &t.st.shifts[i]
		now := t.now
		ending := endingCash
		current.EndTime = &now
		current.EndingCash = &ending
		current.ExpectedCash = current.StartingCash + current.TotalCashSales
		difference := ending - current.ExpectedCash
		current.Difference = &difference
		current.Status = models.ShiftClosed
		if notes != "" {
			current.Notes = strings.TrimSpace(current.Notes + "\n" + notes)
		}
		t.touch(KeyShifts)

		shift = current.Clone()
		copied := shift.Clone()
		t.emit(Event{Type: EventShiftClosed, Shift: &copied})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logInfo("Shift closed", fmt.Sprintf("staff=%s expected=%.2f ending=%.2f difference=%.2f",
		shift.StaffName, shift.ExpectedCash, endingCash, *shift.Difference))
	return &shift, nil
}

// GetOpenShift returns the open shift, or nil when none is open
func (s *Store) GetOpenShift() *models.Shift {
	var shift *models.Shift
	s.view(func(st *state) {
		if i := st.openShiftIndex(); i >= 0 {
			c := st.shifts[i].Clone()
			shift = &c
		}
	})
	return shift
}

// GetShifts returns every shift, newest first
func (s *Store) GetShifts() []models.Shift {
	var shifts []models.Shift
	s.view(func(st *state) {
		for i := len(st.shifts) - 1; i >= 0; i-- {
			shifts = append(shifts, st.shifts[i].Clone())
		}
	})
	return shifts
}
