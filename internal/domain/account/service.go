package account

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/getadoc/getadoc/internal/platform/apperr"
	"github.com/getadoc/getadoc/internal/platform/auth"
)

type Service struct {
	repo     Repository
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		validate: validator.New(),
		logger:   logger.With().Str("component", "account").Logger(),
	}
}

// Create registers an account. Accounts are normally provisioned alongside
// the identity provider; this is the operator path.
func (s *Service) Create(ctx context.Context, role auth.Role, name, email string) (*Account, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := auth.ParseRole(string(role)); err != nil {
		return nil, apperr.Validation("role must be one of: patient doctor admin")
	}
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, apperr.Validation("email must be a valid address")
	}

	a := &Account{Role: role, Name: name, Email: email}
	if err := s.repo.Create(ctx, a); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, apperr.Conflict("Email already registered")
		}
		return nil, apperr.Unexpected("could not create account", err)
	}

	s.logger.Info().Str("account_id", a.ID.String()).Str("role", string(a.Role)).Msg("account created")
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	a, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.Unexpected("could not load account", err)
	}
	return a, nil
}

// List returns accounts newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Account, int, error) {
	items, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperr.Unexpected("could not list users", err)
	}
	return items, total, nil
}

// Summaries resolves the public projection for each distinct id. Ids with no
// account are absent from the result.
func (s *Service) Summaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Summary, error) {
	accounts, err := s.repo.GetMany(ctx, dedupe(ids))
	if err != nil {
		return nil, apperr.Unexpected("could not load accounts", err)
	}
	out := make(map[uuid.UUID]*Summary, len(accounts))
	for id, a := range accounts {
		out[id] = a.Summary()
	}
	return out, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
