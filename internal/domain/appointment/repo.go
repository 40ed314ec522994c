package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("appointment not found")
	// ErrSlotTaken reports that another active appointment holds the slot.
	ErrSlotTaken = errors.New("slot already booked")
	// ErrStaleStatus reports that the stored status changed since it was read.
	ErrStaleStatus = errors.New("appointment status changed")
)

type Repository interface {
	// Create inserts a booking. It fails with ErrSlotTaken when another
	// non-rejected appointment holds the same slot.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// UpdateState persists status, visited and prescription fields provided
	// the stored status still equals from.
	UpdateState(ctx context.Context, a *Appointment, from Status) error
	Delete(ctx context.Context, id uuid.UUID) error
	ExistsActive(ctx context.Context, key SlotKey) (bool, error)
	// List methods return newest first.
	ListByPatient(ctx context.Context, patientAccountID uuid.UUID) ([]*Appointment, error)
	ListByDoctor(ctx context.Context, doctorProfileID uuid.UUID) ([]*Appointment, error)
	ListAll(ctx context.Context, limit, offset int) ([]*Appointment, int, error)
	DeleteByDoctor(ctx context.Context, doctorProfileID uuid.UUID) (int64, error)
	DeleteByPatient(ctx context.Context, patientAccountID uuid.UUID) (int64, error)
}
