package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Role is the closed set of account roles. Anything else is rejected when a
// token is verified, so code past the middleware never sees an unknown role.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// ParseRole validates a raw role claim.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string { return string(r) }

// Actor is the verified identity performing a request.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

func (a Actor) Is(r Role) bool { return a.Role == r }

type contextKey string

const actorKey contextKey = "actor"

// WithActor returns a copy of ctx carrying a.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromContext returns the verified actor, if the request has one.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok
}
