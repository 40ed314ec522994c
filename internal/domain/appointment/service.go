package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/getadoc/getadoc/internal/domain/account"
	"github.com/getadoc/getadoc/internal/domain/authz"
	"github.com/getadoc/getadoc/internal/domain/doctor"
	"github.com/getadoc/getadoc/internal/platform/apperr"
	"github.com/getadoc/getadoc/internal/platform/auth"
)

// DoctorDirectory is the part of the doctor registry appointments depend on.
type DoctorDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*doctor.Profile, error)
	Summaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*doctor.Summary, error)
}

type AccountDirectory interface {
	Summaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*account.Summary, error)
}

type Service struct {
	repo     Repository
	doctors  DoctorDirectory
	accounts AccountDirectory
	guard    *authz.Guard
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, doctors DoctorDirectory, accounts AccountDirectory, guard *authz.Guard, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		doctors:  doctors,
		accounts: accounts,
		guard:    guard,
		logger:   logger.With().Str("component", "appointment").Logger(),
		now:      time.Now,
	}
}

var (
	errMissingFields    = apperr.Validation("All fields are required")
	errInvalidDate      = apperr.Validation("date must match 2006-01-02")
	errInvalidStatus    = apperr.Validation("Invalid status")
	errNotFound         = apperr.NotFound("Appointment not found")
	errCompleteRejected = apperr.Conflict("Cannot complete a rejected appointment")
	errAlreadyCompleted = apperr.Conflict("Appointment is already completed")
	errConcurrentChange = apperr.Conflict("Appointment was changed by another request, please retry")
)

// Book creates a pending appointment for the calling patient. The doctor
// must exist and the slot must not be held by another non-rejected
// appointment.
func (s *Service) Book(ctx context.Context, actor auth.Actor, in BookInput) (*Appointment, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ActionBookAppointment, authz.Target{}); err != nil {
		return nil, err
	}

	date := strings.TrimSpace(in.Date)
	slot := strings.TrimSpace(in.Time)
	if in.DoctorProfileID == uuid.Nil || date == "" || slot == "" {
		return nil, errMissingFields
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, errInvalidDate
	}

	if _, err := s.doctors.Get(ctx, in.DoctorProfileID); err != nil {
		return nil, err
	}

	key := SlotKey{DoctorProfileID: in.DoctorProfileID, Date: date, Time: slot}
	if err := s.CheckConflict(ctx, key); err != nil {
		return nil, err
	}

	a := &Appointment{
		PatientAccountID: actor.ID,
		DoctorProfileID:  in.DoctorProfileID,
		Date:             date,
		Time:             slot,
		Status:           StatusPending,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			return nil, errSlotBooked
		}
		return nil, apperr.Unexpected("could not book appointment", err)
	}

	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("patient_id", actor.ID.String()).
		Str("doctor_id", a.DoctorProfileID.String()).
		Str("date", a.Date).
		Str("time", a.Time).
		Msg("appointment booked")
	return a, nil
}

// SetStatus moves an appointment assigned to the calling doctor to
// approved, rejected or completed. Moving to completed also marks it
// visited.
func (s *Service) SetStatus(ctx context.Context, actor auth.Actor, id uuid.UUID, raw string) (*Appointment, error) {
	next, err := ParseTarget(raw)
	if err != nil {
		return nil, errInvalidStatus
	}

	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, actor, authz.ActionSetAppointmentStatus, ownerOf(a)); err != nil {
		return nil, err
	}
	if !a.Status.CanTransitionTo(next) {
		return nil, apperr.Conflict(fmt.Sprintf("Cannot change appointment from %s to %s", a.Status, next))
	}

	from := a.Status
	a.Status = next
	if next == StatusCompleted {
		a.Visited = true
	}
	if err := s.save(ctx, a, from); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("from", string(from)).
		Str("to", string(next)).
		Msg("appointment status changed")
	return a, nil
}

// Complete closes an appointment with a prescription. Both the status
// change and the prescription are written in one update.
func (s *Service) Complete(ctx context.Context, actor auth.Actor, in CompleteInput) (*Appointment, error) {
	if in.AppointmentID == uuid.Nil {
		return nil, apperr.Validation("appointmentId is required")
	}

	a, err := s.load(ctx, in.AppointmentID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, actor, authz.ActionCompleteAppointment, ownerOf(a)); err != nil {
		return nil, err
	}
	switch a.Status {
	case StatusRejected:
		return nil, errCompleteRejected
	case StatusCompleted:
		return nil, errAlreadyCompleted
	}

	medicines := make([]Medicine, len(in.Medicines))
	copy(medicines, in.Medicines)
	prescribedAt := s.now().UTC()

	from := a.Status
	a.Status = StatusCompleted
	a.Visited = true
	a.Prescription = &Prescription{Content: in.PrescriptionContent, Medicines: medicines}
	a.PrescribedAt = &prescribedAt
	if err := s.save(ctx, a, from); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Int("medicines", len(medicines)).
		Msg("appointment completed")
	return a, nil
}

// Delete removes an appointment owned by the calling patient or assigned to
// the calling doctor.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	a, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guard.Authorize(ctx, actor, authz.ActionDeleteAppointment, ownerOf(a)); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return errNotFound
		}
		return apperr.Unexpected("could not delete appointment", err)
	}

	s.logger.Info().
		Str("appointment_id", id.String()).
		Str("actor_id", actor.ID.String()).
		Msg("appointment deleted")
	return nil
}

// ListMine returns the caller's appointments, newest first: a patient's own
// bookings, or those assigned to a doctor's profile.
func (s *Service) ListMine(ctx context.Context, actor auth.Actor) ([]*View, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ActionListOwnAppointments, authz.Target{}); err != nil {
		return nil, err
	}

	var (
		items []*Appointment
		err   error
	)
	if actor.Is(auth.RoleDoctor) {
		profileID, perr := s.guard.DoctorProfile(ctx, actor)
		if perr != nil {
			return nil, perr
		}
		items, err = s.repo.ListByDoctor(ctx, profileID)
	} else {
		items, err = s.repo.ListByPatient(ctx, actor.ID)
	}
	if err != nil {
		return nil, apperr.Unexpected("could not list appointments", err)
	}
	return s.withDetails(ctx, items)
}

// ListAll returns one page of every appointment, newest first, plus the
// total count.
func (s *Service) ListAll(ctx context.Context, actor auth.Actor, limit, offset int) ([]*View, int, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ActionListAllAppointments, authz.Target{}); err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.ListAll(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperr.Unexpected("could not list appointments", err)
	}
	views, err := s.withDetails(ctx, items)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, apperr.Unexpected("could not load appointment", err)
	}
	return a, nil
}

func (s *Service) save(ctx context.Context, a *Appointment, from Status) error {
	err := s.repo.UpdateState(ctx, a, from)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return errNotFound
	case errors.Is(err, ErrStaleStatus):
		return errConcurrentChange
	case errors.Is(err, ErrSlotTaken):
		return errSlotBooked
	}
	return apperr.Unexpected("could not update appointment", err)
}

func (s *Service) withDetails(ctx context.Context, items []*Appointment) ([]*View, error) {
	patientIDs := make([]uuid.UUID, len(items))
	doctorIDs := make([]uuid.UUID, len(items))
	for i, a := range items {
		patientIDs[i] = a.PatientAccountID
		doctorIDs[i] = a.DoctorProfileID
	}
	patients, err := s.accounts.Summaries(ctx, patientIDs)
	if err != nil {
		return nil, err
	}
	doctors, err := s.doctors.Summaries(ctx, doctorIDs)
	if err != nil {
		return nil, err
	}

	views := make([]*View, len(items))
	for i, a := range items {
		views[i] = &View{
			Appointment: a,
			Patient:     patients[a.PatientAccountID],
			Doctor:      doctors[a.DoctorProfileID],
		}
	}
	return views, nil
}

func ownerOf(a *Appointment) authz.Target {
	return authz.Target{PatientAccountID: a.PatientAccountID, DoctorProfileID: a.DoctorProfileID}
}
