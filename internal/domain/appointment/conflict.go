package appointment

import (
	"context"

	"github.com/google/uuid"

	"github.com/getadoc/getadoc/internal/platform/apperr"
)

// SlotKey identifies one doctor's slot on one date.
type SlotKey struct {
	DoctorProfileID uuid.UUID
	Date            string
	Time            string
}

var errSlotBooked = apperr.Conflict("Slot already booked")

// CheckConflict returns a Conflict error when a non-rejected appointment
// already holds key. Rejected appointments never block a slot.
//
// The check gives callers a clear answer; the partial unique index on
// appointment is what actually guarantees one active booking per slot when
// requests race.
func (s *Service) CheckConflict(ctx context.Context, key SlotKey) error {
	taken, err := s.repo.ExistsActive(ctx, key)
	if err != nil {
		return apperr.Unexpected("could not check slot", err)
	}
	if taken {
		return errSlotBooked
	}
	return nil
}
