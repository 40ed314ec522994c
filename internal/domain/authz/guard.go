// Package authz decides whether an actor may perform an action on a target.
// It never mutates state. Services call Authorize once, immediately before
// the mutation it protects.
package authz

import (
	"context"

	"github.com/google/uuid"

	"github.com/getadoc/getadoc/internal/platform/apperr"
	"github.com/getadoc/getadoc/internal/platform/auth"
)

type Action string

const (
	ActionBookAppointment      Action = "appointment.book"
	ActionListOwnAppointments  Action = "appointment.list-own"
	ActionSetAppointmentStatus Action = "appointment.set-status"
	ActionCompleteAppointment  Action = "appointment.complete"
	ActionDeleteAppointment    Action = "appointment.delete"
	ActionCreateDoctorProfile  Action = "doctor.create-profile"
	ActionUpdateAvailability   Action = "doctor.update-availability"
	ActionListAccounts         Action = "admin.list-accounts"
	ActionListAllAppointments  Action = "admin.list-appointments"
	ActionDeleteAccount        Action = "admin.delete-account"
)

// Target identifies the owners of the record being acted on. Actions that
// are purely role-scoped ignore it.
type Target struct {
	PatientAccountID uuid.UUID
	DoctorProfileID  uuid.UUID
}

// ProfileFinder resolves the doctor profile owned by an account. found is
// false when the account has no profile.
type ProfileFinder interface {
	ProfileIDForAccount(ctx context.Context, accountID uuid.UUID) (id uuid.UUID, found bool, err error)
}

type Guard struct {
	profiles ProfileFinder
}

func NewGuard(profiles ProfileFinder) *Guard {
	return &Guard{profiles: profiles}
}

var (
	errAdminOnly       = apperr.Forbidden("Admin access required")
	errPatientOnly     = apperr.Forbidden("Only patients can book appointments")
	errDoctorOnly      = apperr.Forbidden("Only doctors can manage a doctor profile")
	errNoAppointments  = apperr.Forbidden("Only patients and doctors have appointments")
	errProfileNotFound = apperr.NotFound("Doctor profile not found")
	errNotPatientOwner = apperr.Forbidden("Not authorized: You do not own this appointment")
	errNotDoctorOwner  = apperr.Forbidden("Not authorized: This appointment is not assigned to you")
	errCannotDelete    = apperr.Forbidden("Not authorized to delete this appointment")
	errCannotSetStatus = apperr.Forbidden("Not authorized to update this appointment")
	errCannotComplete  = apperr.Forbidden("Not authorized to complete this appointment")
	errUnknownAction   = apperr.Forbidden("Action not permitted")
)

// Authorize returns nil when actor may perform action on target, otherwise
// a Forbidden error, or NotFound when a doctor acts without a profile.
func (g *Guard) Authorize(ctx context.Context, actor auth.Actor, action Action, target Target) error {
	switch action {
	case ActionListAccounts, ActionListAllAppointments, ActionDeleteAccount:
		return requireRole(actor, auth.RoleAdmin, errAdminOnly)

	case ActionBookAppointment:
		return requireRole(actor, auth.RolePatient, errPatientOnly)

	case ActionCreateDoctorProfile, ActionUpdateAvailability:
		return requireRole(actor, auth.RoleDoctor, errDoctorOnly)

	case ActionListOwnAppointments:
		if actor.Is(auth.RolePatient) || actor.Is(auth.RoleDoctor) {
			return nil
		}
		return errNoAppointments

	case ActionSetAppointmentStatus:
		if err := requireRole(actor, auth.RoleDoctor, errCannotSetStatus); err != nil {
			return err
		}
		return g.requireDoctorOwner(ctx, actor, target, errCannotSetStatus)

	case ActionCompleteAppointment:
		if err := requireRole(actor, auth.RoleDoctor, errCannotComplete); err != nil {
			return err
		}
		return g.requireDoctorOwner(ctx, actor, target, errCannotComplete)

	case ActionDeleteAppointment:
		switch actor.Role {
		case auth.RolePatient:
			if target.PatientAccountID != actor.ID {
				return errNotPatientOwner
			}
			return nil
		case auth.RoleDoctor:
			return g.requireDoctorOwner(ctx, actor, target, errNotDoctorOwner)
		}
		return errCannotDelete
	}
	return errUnknownAction
}

// DoctorProfile returns the id of the profile owned by a doctor actor.
func (g *Guard) DoctorProfile(ctx context.Context, actor auth.Actor) (uuid.UUID, error) {
	if !actor.Is(auth.RoleDoctor) {
		return uuid.Nil, errDoctorOnly
	}
	id, found, err := g.profiles.ProfileIDForAccount(ctx, actor.ID)
	if err != nil {
		return uuid.Nil, apperr.Unexpected("could not resolve doctor profile", err)
	}
	if !found {
		return uuid.Nil, errProfileNotFound
	}
	return id, nil
}

func (g *Guard) requireDoctorOwner(ctx context.Context, actor auth.Actor, target Target, denied error) error {
	profileID, err := g.DoctorProfile(ctx, actor)
	if err != nil {
		return err
	}
	if profileID != target.DoctorProfileID {
		return denied
	}
	return nil
}

func requireRole(actor auth.Actor, role auth.Role, denied error) error {
	if !actor.Is(role) {
		return denied
	}
	return nil
}
