package account

import (
	"time"

	"github.com/google/uuid"

	"github.com/getadoc/getadoc/internal/platform/auth"
)

// Account is an identity known to the system. Credentials live with the
// identity provider; only the role and contact details are stored here.
type Account struct {
	ID        uuid.UUID `json:"id"`
	Role      auth.Role `json:"role"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Summary is the public projection embedded in other read views.
type Summary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

func (a *Account) Summary() *Summary {
	if a == nil {
		return nil
	}
	return &Summary{ID: a.ID, Name: a.Name, Email: a.Email}
}
