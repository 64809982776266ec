package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"RestoPOS/app/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var pinPattern = regexp.MustCompile(`^\d{4,6}$`)

// ValidatePIN checks the PIN format without looking at any staff record
func ValidatePIN(pin string) error {
	if !pinPattern.MatchString(pin) {
		return ErrInvalidPIN
	}
	return nil
}

// GetStaff gets all staff members (active and inactive)
func (s *Store) GetStaff() []models.Staff {
	var staff []models.Staff
	s.view(func(st *state) {
		staff = make([]models.Staff, len(st.staff))
		for i, member := range st.staff {
			member.PINHash = ""
			staff[i] = member
		}
	})
	return staff
}

// CreateStaff creates a new staff member with a hashed PIN
func (s *Store) CreateStaff(ctx context.Context, member models.Staff, pin string) (*models.Staff, error) {
	if strings.TrimSpace(member.Name) == "" {
		return nil, ErrMissingName
	}
	if err := ValidatePIN(pin); err != nil {
		return nil, err
	}

	hashedPIN, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash PIN: %w", err)
	}
	member.PINHash = string(hashedPIN)
	if member.ID == "" {
		member.ID = uuid.NewString()
	}

	err = s.mutate(ctx, func(t *tx) error {
		for _, existing := range t.st.staff {
			if existing.ID == member.ID {
				return fmt.Errorf("staff %s: %w", member.ID, ErrStaffExists)
			}
		}
		t.st.staff = append(t.st.staff, member)
		t.touch(KeyStaff)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logInfo("Staff created", fmt.Sprintf("name=%s role=%s", member.Name, member.Role))
	member.PINHash = ""
	return &member, nil
}

// UpdateStaff updates name, role and active flag. The PIN is kept.
func (s *Store) UpdateStaff(ctx context.Context, member models.Staff) (Result, error) {
	if strings.TrimSpace(member.Name) == "" {
		return Result{}, ErrMissingName
	}

	var result Result
	err := s.mutate(ctx, func(t *tx) error {
		for i := range t.st.staff {
			if t.st.staff[i].ID != member.ID {
				continue
			}
			member.PINHash = t.st.staff[i].PINHash
			t.st.staff[i] = member
			t.touch(KeyStaff)
			result = applied(nil)
			return nil
		}
		result = notFound(fmt.Sprintf("staff %s not found", member.ID))
		return nil
	})
	return result, err
}

// UpdateStaffPIN replaces a staff member's PIN
func (s *Store) UpdateStaffPIN(ctx context.Context, staffID, pin string) (Result, error) {
	if err := ValidatePIN(pin); err != nil {
		return Result{}, err
	}
	hashedPIN, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return Result{}, fmt.Errorf("failed to hash PIN: %w", err)
	}

	var result Result
	err = s.mutate(ctx, func(t *tx) error {
		for i := range t.st.staff {
			if t.st.staff[i].ID == staffID {
				t.st.staff[i].PINHash = string(hashedPIN)
				t.touch(KeyStaff)
				result = applied(nil)
				return nil
			}
		}
		result = notFound(fmt.Sprintf("staff %s not found", staffID))
		return nil
	})
	return result, err
}

// DeleteStaff removes a staff member. Closed shifts keep the name snapshot.
func (s *Store) DeleteStaff(ctx context.Context, staffID string) (Result, error) {
	var result Result
	err := s.mutate(ctx, func(t *tx) error {
		for i := range t.st.staff {
			if t.st.staff[i].ID == staffID {
				t.st.staff = append(t.st.staff[:i], t.st.staff[i+1:]...)
				t.touch(KeyStaff)
				result = applied(nil)
				return nil
			}
		}
		result = notFound(fmt.Sprintf("staff %s not found", staffID))
		return nil
	})
	return result, err
}

// AuthenticatePIN finds the active staff member owning pin
func (s *Store) AuthenticatePIN(pin string) (*models.Staff, error) {
	if err := ValidatePIN(pin); err != nil {
		return nil, err
	}

	var staff []models.Staff
	s.view(func(st *state) {
		for _, member := range st.staff {
			if member.Active {
				staff = append(staff, member)
			}
		}
	})

	// bcrypt runs outside the store lock
	for _, member := range staff {
		if err := bcrypt.CompareHashAndPassword([]byte(member.PINHash), []byte(pin)); err == nil {
			member.PINHash = ""
			return &member, nil
		}
	}
	return nil, ErrWrongPIN
}
