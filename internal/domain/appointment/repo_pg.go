package appointment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/getadoc/getadoc/internal/platform/db"
)

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &appointmentRepoPG{pool: pool} }

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const appointmentCols = `id, patient_account_id, doctor_profile_id, date, time, status,
	visited, prescription, prescribed_at, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a            Appointment
		prescription []byte
	)
	if err := row.Scan(&a.ID, &a.PatientAccountID, &a.DoctorProfileID, &a.Date, &a.Time, &a.Status,
		&a.Visited, &prescription, &a.PrescribedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if len(prescription) > 0 {
		var p Prescription
		if err := json.Unmarshal(prescription, &p); err != nil {
			return nil, fmt.Errorf("appointment %s prescription: %w", a.ID, err)
		}
		if p.Medicines == nil {
			p.Medicines = []Medicine{}
		}
		a.Prescription = &p
	}
	return &a, nil
}

func encodePrescription(p *Prescription) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, patient_account_id, doctor_profile_id, date, time, status, visited)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientAccountID, a.DoctorProfileID, a.Date, a.Time, a.Status, a.Visited,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if db.IsUniqueViolation(err, "appointment_active_slot_uq") {
		return ErrSlotTaken
	}
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointment WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (r *appointmentRepoPG) UpdateState(ctx context.Context, a *Appointment, from Status) error {
	prescription, err := encodePrescription(a.Prescription)
	if err != nil {
		return fmt.Errorf("encode prescription: %w", err)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		UPDATE appointment
		SET status = $3, visited = $4, prescription = $5::jsonb, prescribed_at = $6, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING updated_at`,
		a.ID, from, a.Status, a.Visited, prescription, a.PrescribedAt,
	).Scan(&a.UpdatedAt)
	if db.IsNoRows(err) {
		// Either the row is gone or another request moved its status first.
		var exists bool
		if qerr := r.conn(ctx).QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM appointment WHERE id = $1)`, a.ID).Scan(&exists); qerr != nil {
			return fmt.Errorf("recheck appointment: %w", qerr)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrStaleStatus
	}
	if db.IsUniqueViolation(err, "appointment_active_slot_uq") {
		return ErrSlotTaken
	}
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointment WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) ExistsActive(ctx context.Context, key SlotKey) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointment
			WHERE doctor_profile_id = $1 AND date = $2 AND time = $3 AND status <> 'rejected'
		)`, key.DoctorProfileID, key.Date, key.Time).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slot: %w", err)
	}
	return exists, nil
}

func (r *appointmentRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()
	items := []*Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientAccountID uuid.UUID) ([]*Appointment, error) {
	return r.list(ctx, `SELECT `+appointmentCols+` FROM appointment
		WHERE patient_account_id = $1 ORDER BY created_at DESC`, patientAccountID)
}

func (r *appointmentRepoPG) ListByDoctor(ctx context.Context, doctorProfileID uuid.UUID) ([]*Appointment, error) {
	return r.list(ctx, `SELECT `+appointmentCols+` FROM appointment
		WHERE doctor_profile_id = $1 ORDER BY created_at DESC`, doctorProfileID)
}

func (r *appointmentRepoPG) ListAll(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}
	items, err := r.list(ctx, `SELECT `+appointmentCols+` FROM appointment
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *appointmentRepoPG) DeleteByDoctor(ctx context.Context, doctorProfileID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointment WHERE doctor_profile_id = $1`, doctorProfileID)
	if err != nil {
		return 0, fmt.Errorf("delete doctor appointments: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *appointmentRepoPG) DeleteByPatient(ctx context.Context, patientAccountID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointment WHERE patient_account_id = $1`, patientAccountID)
	if err != nil {
		return 0, fmt.Errorf("delete patient appointments: %w", err)
	}
	return tag.RowsAffected(), nil
}
