package doctor

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("doctor profile not found")
	ErrProfileExists = errors.New("doctor profile already exists")
)

type Repository interface {
	// Create fails with ErrProfileExists when the account already has one.
	Create(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetByAccount(ctx context.Context, accountID uuid.UUID) (*Profile, error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Profile, error)
	List(ctx context.Context) ([]*Profile, error)
	UpdateSlots(ctx context.Context, id uuid.UUID, slots []string) error
	Delete(ctx context.Context, id uuid.UUID) error
}
