package doctor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/getadoc/getadoc/internal/platform/db"
)

type profileRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &profileRepoPG{pool: pool} }

func (r *profileRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

// fee is read as text so NUMERIC precision survives into decimal.Decimal.
const profileCols = `id, account_id, specialization, experience_years, fee::text,
	available_slots, created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var (
		p   Profile
		fee string
	)
	if err := row.Scan(&p.ID, &p.AccountID, &p.Specialization, &p.ExperienceYears, &fee,
		&p.AvailableSlots, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := decimal.NewFromString(fee)
	if err != nil {
		return nil, fmt.Errorf("profile %s fee %q: %w", p.ID, fee, err)
	}
	p.Fee = parsed
	if p.AvailableSlots == nil {
		p.AvailableSlots = []string{}
	}
	return &p, nil
}

func (r *profileRepoPG) Create(ctx context.Context, p *Profile) error {
	p.ID = uuid.New()
	if p.AvailableSlots == nil {
		p.AvailableSlots = []string{}
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor_profile (id, account_id, specialization, experience_years, fee, available_slots)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)
		RETURNING created_at, updated_at`,
		p.ID, p.AccountID, p.Specialization, p.ExperienceYears, p.Fee.String(), p.AvailableSlots,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if db.IsUniqueViolation(err, "doctor_profile_account_uq") {
		return ErrProfileExists
	}
	if err != nil {
		return fmt.Errorf("insert doctor profile: %w", err)
	}
	return nil
}

func (r *profileRepoPG) getOne(ctx context.Context, where string, arg interface{}) (*Profile, error) {
	p, err := scanProfile(r.conn(ctx).QueryRow(ctx, `SELECT `+profileCols+` FROM doctor_profile WHERE `+where, arg))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor profile: %w", err)
	}
	return p, nil
}

func (r *profileRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *profileRepoPG) GetByAccount(ctx context.Context, accountID uuid.UUID) (*Profile, error) {
	return r.getOne(ctx, `account_id = $1`, accountID)
}

func (r *profileRepoPG) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Profile, error) {
	out := make(map[uuid.UUID]*Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+profileCols+` FROM doctor_profile WHERE id = ANY($1::uuid[])`, keys)
	if err != nil {
		return nil, fmt.Errorf("get doctor profiles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *profileRepoPG) List(ctx context.Context) ([]*Profile, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+profileCols+` FROM doctor_profile ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list doctor profiles: %w", err)
	}
	defer rows.Close()
	items := []*Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *profileRepoPG) UpdateSlots(ctx context.Context, id uuid.UUID, slots []string) error {
	if slots == nil {
		slots = []string{}
	}
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE doctor_profile SET available_slots = $2, updated_at = NOW() WHERE id = $1`, id, slots)
	if err != nil {
		return fmt.Errorf("update availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *profileRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctor_profile WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete doctor profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
