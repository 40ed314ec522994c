package admin

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/getadoc/getadoc/internal/domain/account"
	"github.com/getadoc/getadoc/internal/domain/appointment"
	"github.com/getadoc/getadoc/internal/domain/doctor"
	"github.com/getadoc/getadoc/internal/platform/auth"
)

// memDB is a tiny in-memory store shared by the three repository fakes.
// WithinTx snapshots it and restores the snapshot when fn fails, which is
// what a rolled back transaction looks like to the caller.
type memDB struct {
	accounts     map[uuid.UUID]*account.Account
	profiles     map[uuid.UUID]*doctor.Profile
	appointments map[uuid.UUID]*appointment.Appointment

	failProfileDelete bool
	failAccountDelete bool
	txCalls           int
}

func newMemDB() *memDB {
	return &memDB{
		accounts:     make(map[uuid.UUID]*account.Account),
		profiles:     make(map[uuid.UUID]*doctor.Profile),
		appointments: make(map[uuid.UUID]*appointment.Appointment),
	}
}

var errInjected = errors.New("injected failure")

func (m *memDB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txCalls++
	accounts := make(map[uuid.UUID]*account.Account, len(m.accounts))
	for k, v := range m.accounts {
		accounts[k] = v
	}
	profiles := make(map[uuid.UUID]*doctor.Profile, len(m.profiles))
	for k, v := range m.profiles {
		profiles[k] = v
	}
	appointments := make(map[uuid.UUID]*appointment.Appointment, len(m.appointments))
	for k, v := range m.appointments {
		appointments[k] = v
	}

	if err := fn(ctx); err != nil {
		m.accounts, m.profiles, m.appointments = accounts, profiles, appointments
		return err
	}
	return nil
}

// -- account.Repository --

type accountRepo struct{ db *memDB }

func (r accountRepo) Create(_ context.Context, a *account.Account) error {
	r.db.accounts[a.ID] = a
	return nil
}

func (r accountRepo) GetByID(_ context.Context, id uuid.UUID) (*account.Account, error) {
	a, ok := r.db.accounts[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	return a, nil
}

func (r accountRepo) GetMany(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*account.Account, error) {
	out := make(map[uuid.UUID]*account.Account)
	for _, id := range ids {
		if a, ok := r.db.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (r accountRepo) List(_ context.Context, limit, offset int) ([]*account.Account, int, error) {
	all := make([]*account.Account, 0, len(r.db.accounts))
	for _, a := range r.db.accounts {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (r accountRepo) Delete(_ context.Context, id uuid.UUID) error {
	if r.db.failAccountDelete {
		return errInjected
	}
	if _, ok := r.db.accounts[id]; !ok {
		return account.ErrNotFound
	}
	delete(r.db.accounts, id)
	return nil
}

// -- doctor.Repository --

type profileRepo struct{ db *memDB }

func (r profileRepo) Create(_ context.Context, p *doctor.Profile) error {
	r.db.profiles[p.ID] = p
	return nil
}

func (r profileRepo) GetByID(_ context.Context, id uuid.UUID) (*doctor.Profile, error) {
	p, ok := r.db.profiles[id]
	if !ok {
		return nil, doctor.ErrNotFound
	}
	return p, nil
}

func (r profileRepo) GetByAccount(_ context.Context, accountID uuid.UUID) (*doctor.Profile, error) {
	for _, p := range r.db.profiles {
		if p.AccountID == accountID {
			return p, nil
		}
	}
	return nil, doctor.ErrNotFound
}

func (r profileRepo) GetMany(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*doctor.Profile, error) {
	out := make(map[uuid.UUID]*doctor.Profile)
	for _, id := range ids {
		if p, ok := r.db.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (r profileRepo) List(_ context.Context) ([]*doctor.Profile, error) {
	out := []*doctor.Profile{}
	for _, p := range r.db.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (r profileRepo) UpdateSlots(_ context.Context, id uuid.UUID, slots []string) error {
	p, ok := r.db.profiles[id]
	if !ok {
		return doctor.ErrNotFound
	}
	p.AvailableSlots = slots
	return nil
}

func (r profileRepo) Delete(_ context.Context, id uuid.UUID) error {
	if r.db.failProfileDelete {
		return errInjected
	}
	if _, ok := r.db.profiles[id]; !ok {
		return doctor.ErrNotFound
	}
	delete(r.db.profiles, id)
	return nil
}

// -- appointment.Repository --

type appointmentRepo struct{ db *memDB }

func (r appointmentRepo) Create(_ context.Context, a *appointment.Appointment) error {
	a.ID = uuid.New()
	r.db.appointments[a.ID] = a
	return nil
}

func (r appointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, ok := r.db.appointments[id]
	if !ok {
		return nil, appointment.ErrNotFound
	}
	return a, nil
}

func (r appointmentRepo) UpdateState(_ context.Context, a *appointment.Appointment, _ appointment.Status) error {
	r.db.appointments[a.ID] = a
	return nil
}

func (r appointmentRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.db.appointments, id)
	return nil
}

func (r appointmentRepo) ExistsActive(context.Context, appointment.SlotKey) (bool, error) {
	return false, nil
}

func (r appointmentRepo) where(match func(*appointment.Appointment) bool) []*appointment.Appointment {
	out := []*appointment.Appointment{}
	for _, a := range r.db.appointments {
		if match(a) {
			out = append(out, a)
		}
	}
	return out
}

func (r appointmentRepo) ListByPatient(_ context.Context, id uuid.UUID) ([]*appointment.Appointment, error) {
	return r.where(func(a *appointment.Appointment) bool { return a.PatientAccountID == id }), nil
}

func (r appointmentRepo) ListByDoctor(_ context.Context, id uuid.UUID) ([]*appointment.Appointment, error) {
	return r.where(func(a *appointment.Appointment) bool { return a.DoctorProfileID == id }), nil
}

func (r appointmentRepo) ListAll(_ context.Context, limit, offset int) ([]*appointment.Appointment, int, error) {
	all := r.where(func(*appointment.Appointment) bool { return true })
	return all, len(all), nil
}

func (r appointmentRepo) deleteWhere(match func(*appointment.Appointment) bool) int64 {
	var n int64
	for id, a := range r.db.appointments {
		if match(a) {
			delete(r.db.appointments, id)
			n++
		}
	}
	return n
}

func (r appointmentRepo) DeleteByDoctor(_ context.Context, id uuid.UUID) (int64, error) {
	return r.deleteWhere(func(a *appointment.Appointment) bool { return a.DoctorProfileID == id }), nil
}

func (r appointmentRepo) DeleteByPatient(_ context.Context, id uuid.UUID) (int64, error) {
	return r.deleteWhere(func(a *appointment.Appointment) bool { return a.PatientAccountID == id }), nil
}

// -- fixtures --

func (m *memDB) addAccount(role auth.Role, name string) *account.Account {
	a := &account.Account{ID: uuid.New(), Role: role, Name: name, Email: name + "@example.com"}
	m.accounts[a.ID] = a
	return a
}

func (m *memDB) addProfile(owner *account.Account) *doctor.Profile {
	p := &doctor.Profile{ID: uuid.New(), AccountID: owner.ID, Specialization: "General", AvailableSlots: []string{}}
	m.profiles[p.ID] = p
	return p
}

func (m *memDB) addAppointment(patient *account.Account, profile *doctor.Profile, slot string) *appointment.Appointment {
	a := &appointment.Appointment{
		ID:               uuid.New(),
		PatientAccountID: patient.ID,
		DoctorProfileID:  profile.ID,
		Date:             "2024-06-01",
		Time:             slot,
		Status:           appointment.StatusPending,
	}
	m.appointments[a.ID] = a
	return a
}

func actorOf(a *account.Account) auth.Actor {
	return auth.Actor{ID: a.ID, Role: a.Role}
}
