// Package admin holds the administrator operations: auditing accounts and
// appointments and removing an account together with everything that
// depends on it.
package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/getadoc/getadoc/internal/domain/account"
	"github.com/getadoc/getadoc/internal/domain/appointment"
	"github.com/getadoc/getadoc/internal/domain/authz"
	"github.com/getadoc/getadoc/internal/domain/doctor"
	"github.com/getadoc/getadoc/internal/platform/apperr"
	"github.com/getadoc/getadoc/internal/platform/auth"
	"github.com/getadoc/getadoc/internal/platform/db"
)

// AppointmentLister is the appointment read side the audit view uses.
type AppointmentLister interface {
	ListAll(ctx context.Context, actor auth.Actor, limit, offset int) ([]*appointment.View, int, error)
}

// DeletionSummary reports what a cascade removed.
type DeletionSummary struct {
	AccountID           uuid.UUID  `json:"accountId"`
	Role                auth.Role  `json:"role"`
	ProfileID           *uuid.UUID `json:"profileId,omitempty"`
	AppointmentsRemoved int64      `json:"appointmentsRemoved"`
}

// Service works on the repositories directly so that every step of a cascade
// runs on the transaction WithinTx puts on the context.
type Service struct {
	accounts     account.Repository
	profiles     doctor.Repository
	appointments appointment.Repository
	listing      AppointmentLister
	tx           db.TxRunner
	guard        *authz.Guard
	logger       zerolog.Logger
}

func NewService(
	accounts account.Repository,
	profiles doctor.Repository,
	appointments appointment.Repository,
	listing AppointmentLister,
	tx db.TxRunner,
	guard *authz.Guard,
	logger zerolog.Logger,
) *Service {
	return &Service{
		accounts:     accounts,
		profiles:     profiles,
		appointments: appointments,
		listing:      listing,
		tx:           tx,
		guard:        guard,
		logger:       logger.With().Str("component", "admin").Logger(),
	}
}

var (
	errUserNotFound = apperr.NotFound("User not found")
	errDeleteSelf   = apperr.Forbidden("Admins cannot delete their own account")
)

// ListUsers returns one page of accounts, newest first, and the total.
func (s *Service) ListUsers(ctx context.Context, actor auth.Actor, limit, offset int) ([]*account.Account, int, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ActionListAccounts, authz.Target{}); err != nil {
		return nil, 0, err
	}
	items, total, err := s.accounts.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperr.Unexpected("could not list users", err)
	}
	return items, total, nil
}

func (s *Service) ListAppointments(ctx context.Context, actor auth.Actor, limit, offset int) ([]*appointment.View, int, error) {
	return s.listing.ListAll(ctx, actor, limit, offset)
}

// DeleteAccount removes an account and its dependents in one transaction:
// a doctor's profile and every appointment assigned to it, or a patient's
// appointments. Either all of it is removed or none of it is.
func (s *Service) DeleteAccount(ctx context.Context, actor auth.Actor, accountID uuid.UUID) (*DeletionSummary, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ActionDeleteAccount, authz.Target{}); err != nil {
		return nil, err
	}
	if accountID == actor.ID {
		return nil, errDeleteSelf
	}

	var summary *DeletionSummary
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		summary, err = s.cascade(ctx, accountID)
		return err
	})
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, apperr.Unexpected("could not delete account", err)
	}

	log := s.logger.Info().
		Str("account_id", accountID.String()).
		Str("role", string(summary.Role)).
		Str("admin_id", actor.ID.String()).
		Int64("appointments_removed", summary.AppointmentsRemoved)
	if summary.ProfileID != nil {
		log = log.Str("profile_id", summary.ProfileID.String())
	}
	log.Msg("account deleted")
	return summary, nil
}

func (s *Service) cascade(ctx context.Context, accountID uuid.UUID) (*DeletionSummary, error) {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if errors.Is(err, account.ErrNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	summary := &DeletionSummary{AccountID: acc.ID, Role: acc.Role}

	switch acc.Role {
	case auth.RoleDoctor:
		profile, err := s.profiles.GetByAccount(ctx, acc.ID)
		switch {
		case errors.Is(err, doctor.ErrNotFound):
			// A doctor who never created a profile has no appointments.
		case err != nil:
			return nil, fmt.Errorf("load doctor profile: %w", err)
		default:
			n, err := s.appointments.DeleteByDoctor(ctx, profile.ID)
			if err != nil {
				return nil, err
			}
			if err := s.profiles.Delete(ctx, profile.ID); err != nil {
				return nil, fmt.Errorf("delete doctor profile: %w", err)
			}
			id := profile.ID
			summary.ProfileID = &id
			summary.AppointmentsRemoved = n
		}

	case auth.RolePatient:
		n, err := s.appointments.DeleteByPatient(ctx, acc.ID)
		if err != nil {
			return nil, err
		}
		summary.AppointmentsRemoved = n
	}

	if err := s.accounts.Delete(ctx, acc.ID); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, errUserNotFound
		}
		return nil, fmt.Errorf("delete account: %w", err)
	}
	return summary, nil
}
