package appointment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/getadoc/getadoc/internal/domain/account"
	"github.com/getadoc/getadoc/internal/domain/authz"
	"github.com/getadoc/getadoc/internal/domain/doctor"
	"github.com/getadoc/getadoc/internal/platform/apperr"
	"github.com/getadoc/getadoc/internal/platform/auth"
)

// mockRepo behaves like the Postgres repository, including the partial
// unique index on active slots. It hands out copies so a failed operation
// cannot leak changes into stored state.
type mockRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Appointment
	seq   int
	// staleUpdate makes UpdateState report a concurrent status change.
	staleUpdate bool
	failList    bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Appointment)}
}

func clone(a *Appointment) *Appointment {
	cp := *a
	if a.Prescription != nil {
		p := *a.Prescription
		p.Medicines = append([]Medicine(nil), a.Prescription.Medicines...)
		cp.Prescription = &p
	}
	if a.PrescribedAt != nil {
		at := *a.PrescribedAt
		cp.PrescribedAt = &at
	}
	return &cp
}

func (m *mockRepo) activeHolder(key SlotKey, except uuid.UUID) bool {
	for _, a := range m.items {
		if a.ID != except && a.Status != StatusRejected &&
			a.DoctorProfileID == key.DoctorProfileID && a.Date == key.Date && a.Time == key.Time {
			return true
		}
	}
	return false
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeHolder(SlotKey{a.DoctorProfileID, a.Date, a.Time}, uuid.Nil) {
		return ErrSlotTaken
	}
	m.seq++
	a.ID = uuid.New()
	a.CreatedAt = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Minute)
	a.UpdatedAt = a.CreatedAt
	m.items[a.ID] = clone(a)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(a), nil
}

func (m *mockRepo) UpdateState(_ context.Context, a *Appointment, from Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.items[a.ID]
	if !ok {
		return ErrNotFound
	}
	if m.staleUpdate || stored.Status != from {
		return ErrStaleStatus
	}
	m.items[a.ID] = clone(a)
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *mockRepo) ExistsActive(_ context.Context, key SlotKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeHolder(key, uuid.Nil), nil
}

func (m *mockRepo) filter(keep func(*Appointment) bool) []*Appointment {
	items := []*Appointment{}
	for _, a := range m.items {
		if keep(a) {
			items = append(items, clone(a))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items
}

func (m *mockRepo) ListByPatient(_ context.Context, patientAccountID uuid.UUID) ([]*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(a *Appointment) bool { return a.PatientAccountID == patientAccountID }), nil
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorProfileID uuid.UUID) ([]*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(a *Appointment) bool { return a.DoctorProfileID == doctorProfileID }), nil
}

func (m *mockRepo) ListAll(_ context.Context, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList {
		return nil, 0, errors.New("connection reset")
	}
	all := m.filter(func(*Appointment) bool { return true })
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *mockRepo) deleteWhere(match func(*Appointment) bool) int64 {
	var n int64
	for id, a := range m.items {
		if match(a) {
			delete(m.items, id)
			n++
		}
	}
	return n
}

func (m *mockRepo) DeleteByDoctor(_ context.Context, doctorProfileID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteWhere(func(a *Appointment) bool { return a.DoctorProfileID == doctorProfileID }), nil
}

func (m *mockRepo) DeleteByPatient(_ context.Context, patientAccountID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteWhere(func(a *Appointment) bool { return a.PatientAccountID == patientAccountID }), nil
}

// mockDoctors stands in for the doctor registry and also answers the
// guard's profile lookups.
type mockDoctors struct {
	profiles map[uuid.UUID]*doctor.Profile
}

func (m *mockDoctors) Get(_ context.Context, id uuid.UUID) (*doctor.Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, apperr.NotFound("Doctor not found")
	}
	return p, nil
}

func (m *mockDoctors) Summaries(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*doctor.Summary, error) {
	out := make(map[uuid.UUID]*doctor.Summary)
	for _, id := range ids {
		if p, ok := m.profiles[id]; ok {
			out[id] = &doctor.Summary{ID: p.ID, Specialization: p.Specialization, Fee: p.Fee}
		}
	}
	return out, nil
}

func (m *mockDoctors) ProfileIDForAccount(_ context.Context, accountID uuid.UUID) (uuid.UUID, bool, error) {
	for _, p := range m.profiles {
		if p.AccountID == accountID {
			return p.ID, true, nil
		}
	}
	return uuid.Nil, false, nil
}

type mockAccounts struct {
	accounts map[uuid.UUID]*account.Summary
}

func (m *mockAccounts) Summaries(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*account.Summary, error) {
	out := make(map[uuid.UUID]*account.Summary)
	for _, id := range ids {
		if a, ok := m.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

var fixedNow = time.Date(2024, 5, 2, 10, 30, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	repo     *mockRepo
	doctors  *mockDoctors
	accounts *mockAccounts

	patient      auth.Actor
	otherPatient auth.Actor
	doctor       auth.Actor
	otherDoctor  auth.Actor
	admin        auth.Actor

	profileID      uuid.UUID
	otherProfileID uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newMockRepo(),
		doctors:  &mockDoctors{profiles: make(map[uuid.UUID]*doctor.Profile)},
		accounts: &mockAccounts{accounts: make(map[uuid.UUID]*account.Summary)},
	}
	f.patient = f.addAccount(auth.RolePatient, "alice")
	f.otherPatient = f.addAccount(auth.RolePatient, "bob")
	f.doctor = f.addAccount(auth.RoleDoctor, "house")
	f.otherDoctor = f.addAccount(auth.RoleDoctor, "wilson")
	f.admin = f.addAccount(auth.RoleAdmin, "root")
	f.profileID = f.addProfile(f.doctor, "Cardiology")
	f.otherProfileID = f.addProfile(f.otherDoctor, "Oncology")

	guard := authz.NewGuard(f.doctors)
	f.svc = NewService(f.repo, f.doctors, f.accounts, guard, zerolog.Nop())
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) addAccount(role auth.Role, name string) auth.Actor {
	a := auth.Actor{ID: uuid.New(), Role: role}
	f.accounts.accounts[a.ID] = &account.Summary{ID: a.ID, Name: name, Email: name + "@example.com"}
	return a
}

func (f *fixture) addProfile(owner auth.Actor, specialization string) uuid.UUID {
	p := &doctor.Profile{ID: uuid.New(), AccountID: owner.ID, Specialization: specialization, AvailableSlots: []string{}}
	f.doctors.profiles[p.ID] = p
	return p.ID
}

func (f *fixture) book(patient auth.Actor, profileID uuid.UUID, date, slot string) (*Appointment, error) {
	return f.svc.Book(context.Background(), patient, BookInput{DoctorProfileID: profileID, Date: date, Time: slot})
}

// seed stores an appointment in the given status directly.
func (f *fixture) seed(status Status) *Appointment {
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	f.repo.seq++
	a := &Appointment{
		ID:               uuid.New(),
		PatientAccountID: f.patient.ID,
		DoctorProfileID:  f.profileID,
		Date:             "2024-06-01",
		Time:             "slot-" + uuid.NewString()[:8],
		Status:           status,
		Visited:          status == StatusCompleted,
		CreatedAt:        time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(f.repo.seq) * time.Minute),
	}
	f.repo.items[a.ID] = clone(a)
	return a
}

func (f *fixture) stored(id uuid.UUID) *Appointment {
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	if a, ok := f.repo.items[id]; ok {
		return clone(a)
	}
	return nil
}

func message(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return ""
}
