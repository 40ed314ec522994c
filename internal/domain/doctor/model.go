package doctor

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/getadoc/getadoc/internal/domain/account"
)

// Profile is a doctor account's professional listing. There is at most one
// per account. AvailableSlots holds free-form slot labels such as
// "09:00 - 09:20" and is always replaced as a whole.
type Profile struct {
	ID              uuid.UUID       `json:"id"`
	AccountID       uuid.UUID       `json:"userId"`
	Specialization  string          `json:"specialization"`
	ExperienceYears int             `json:"experience"`
	Fee             decimal.Decimal `json:"fees"`
	AvailableSlots  []string        `json:"availableSlots"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// View is a profile together with its owning account's public details.
type View struct {
	*Profile
	Account *account.Summary `json:"account,omitempty"`
}

// Summary is the projection embedded in appointment read views.
type Summary struct {
	ID             uuid.UUID        `json:"id"`
	Specialization string           `json:"specialization"`
	Fee            decimal.Decimal  `json:"fees"`
	Account        *account.Summary `json:"account,omitempty"`
}

func (v *View) Summary() *Summary {
	if v == nil || v.Profile == nil {
		return nil
	}
	return &Summary{
		ID:             v.ID,
		Specialization: v.Specialization,
		Fee:            v.Fee,
		Account:        v.Account,
	}
}

// CreateInput carries the professional details for a new profile. Pointer
// fields distinguish "missing" from zero.
type CreateInput struct {
	Specialization  string
	ExperienceYears *int
	Fee             *decimal.Decimal
}
