package doctor

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/getadoc/getadoc/internal/domain/account"
	"github.com/getadoc/getadoc/internal/domain/authz"
	"github.com/getadoc/getadoc/internal/platform/apperr"
	"github.com/getadoc/getadoc/internal/platform/auth"
)

// AccountDirectory resolves public account details for read views.
type AccountDirectory interface {
	Summaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*account.Summary, error)
}

type Service struct {
	repo     Repository
	accounts AccountDirectory
	guard    *authz.Guard
	logger   zerolog.Logger
}

func NewService(repo Repository, accounts AccountDirectory, guard *authz.Guard, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		accounts: accounts,
		guard:    guard,
		logger:   logger.With().Str("component", "doctor").Logger(),
	}
}

// Upper bounds follow the doctor_profile columns: fee is NUMERIC(10,2).
const maxExperienceYears = 100

var maxFee = decimal.New(1, 8)

var (
	errMissingDetails  = apperr.Validation("Missing professional details")
	errProfileExists   = apperr.Conflict("Doctor profile already exists")
	errDoctorNotFound  = apperr.NotFound("Doctor not found")
	errProfileNotFound = apperr.NotFound("Doctor profile not found")
)

// CreateProfile registers the calling doctor's profile with no available
// slots. A second profile for the same account is a conflict.
func (s *Service) CreateProfile(ctx context.Context, actor auth.Actor, in CreateInput) (*Profile, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ActionCreateDoctorProfile, authz.Target{}); err != nil {
		return nil, err
	}

	specialization := strings.TrimSpace(in.Specialization)
	if specialization == "" || in.ExperienceYears == nil || in.Fee == nil {
		return nil, errMissingDetails
	}
	if *in.ExperienceYears < 0 {
		return nil, apperr.Validation("experience must not be negative")
	}
	if *in.ExperienceYears > maxExperienceYears {
		return nil, apperr.Validation("experience must not exceed 100 years")
	}
	if in.Fee.IsNegative() {
		return nil, apperr.Validation("fees must not be negative")
	}
	fee := in.Fee.Round(2)
	if fee.GreaterThanOrEqual(maxFee) {
		return nil, apperr.Validation("fees must be below 100000000")
	}

	if _, err := s.repo.GetByAccount(ctx, actor.ID); err == nil {
		return nil, errProfileExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, apperr.Unexpected("could not check doctor profile", err)
	}

	p := &Profile{
		AccountID:       actor.ID,
		Specialization:  specialization,
		ExperienceYears: *in.ExperienceYears,
		Fee:             fee,
		AvailableSlots:  []string{},
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, ErrProfileExists) {
			return nil, errProfileExists
		}
		return nil, apperr.Unexpected("could not create doctor profile", err)
	}

	s.logger.Info().
		Str("profile_id", p.ID.String()).
		Str("account_id", actor.ID.String()).
		Msg("doctor profile created")
	return p, nil
}

// SetAvailability replaces the calling doctor's slot labels wholesale. The
// labels are stored as given: no merging, deduplication or ordering.
func (s *Service) SetAvailability(ctx context.Context, actor auth.Actor, slots []string) error {
	if err := s.guard.Authorize(ctx, actor, authz.ActionUpdateAvailability, authz.Target{}); err != nil {
		return err
	}
	profileID, err := s.guard.DoctorProfile(ctx, actor)
	if err != nil {
		return err
	}

	owned := make([]string, len(slots))
	copy(owned, slots)
	if err := s.repo.UpdateSlots(ctx, profileID, owned); err != nil {
		if errors.Is(err, ErrNotFound) {
			return errProfileNotFound
		}
		return apperr.Unexpected("could not update availability", err)
	}

	s.logger.Info().
		Str("profile_id", profileID.String()).
		Int("slots", len(owned)).
		Msg("availability updated")
	return nil
}

// Get returns the bare profile, for existence checks.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Profile, error) {
	p, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, errDoctorNotFound
	}
	if err != nil {
		return nil, apperr.Unexpected("could not load doctor", err)
	}
	return p, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*View, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.withAccounts(ctx, []*Profile{p})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func (s *Service) ListDoctors(ctx context.Context) ([]*View, error) {
	profiles, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Unexpected("could not list doctors", err)
	}
	return s.withAccounts(ctx, profiles)
}

// Summaries resolves appointment-view projections for the given profile ids.
// Ids with no profile are absent from the result.
func (s *Service) Summaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Summary, error) {
	profiles, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return nil, apperr.Unexpected("could not load doctors", err)
	}
	list := make([]*Profile, 0, len(profiles))
	for _, p := range profiles {
		list = append(list, p)
	}
	views, err := s.withAccounts(ctx, list)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]*Summary, len(views))
	for _, v := range views {
		out[v.ID] = v.Summary()
	}
	return out, nil
}

func (s *Service) withAccounts(ctx context.Context, profiles []*Profile) ([]*View, error) {
	ids := make([]uuid.UUID, len(profiles))
	for i, p := range profiles {
		ids[i] = p.AccountID
	}
	accounts, err := s.accounts.Summaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]*View, len(profiles))
	for i, p := range profiles {
		views[i] = &View{Profile: p, Account: accounts[p.AccountID]}
	}
	return views, nil
}

type profileFinder struct{ repo Repository }

// NewProfileFinder lets the authorization guard resolve a doctor's profile.
func NewProfileFinder(repo Repository) authz.ProfileFinder {
	return profileFinder{repo: repo}
}

func (f profileFinder) ProfileIDForAccount(ctx context.Context, accountID uuid.UUID) (uuid.UUID, bool, error) {
	p, err := f.repo.GetByAccount(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return p.ID, true, nil
}
