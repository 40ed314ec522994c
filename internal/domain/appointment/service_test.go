package appointment

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getadoc/getadoc/internal/platform/apperr"
	"github.com/getadoc/getadoc/internal/platform/auth"
)

const (
	day      = "2024-06-01"
	slotNine = "09:00 - 09:20"
)

// -- Book --

func TestService_Book(t *testing.T) {
	f := newFixture()

	a, err := f.book(f.patient, f.profileID, day, slotNine)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, f.patient.ID, a.PatientAccountID)
	assert.Equal(t, f.profileID, a.DoctorProfileID)
	assert.Equal(t, StatusPending, a.Status)
	assert.False(t, a.Visited)
	assert.Nil(t, a.Prescription)
	assert.NotNil(t, f.stored(a.ID))
}

func TestService_Book_MissingFields(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name string
		in   BookInput
	}{
		{"no doctor", BookInput{Date: day, Time: slotNine}},
		{"no date", BookInput{DoctorProfileID: f.profileID, Time: slotNine}},
		{"blank time", BookInput{DoctorProfileID: f.profileID, Date: day, Time: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Book(context.Background(), f.patient, tt.in)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Equal(t, "All fields are required", message(err))
		})
	}
	assert.Empty(t, f.repo.items)
}

func TestService_Book_InvalidDate(t *testing.T) {
	f := newFixture()
	_, err := f.book(f.patient, f.profileID, "01/06/2024", slotNine)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestService_Book_UnknownDoctor(t *testing.T) {
	f := newFixture()
	_, err := f.book(f.patient, uuid.New(), day, slotNine)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "Doctor not found", message(err))
}

func TestService_Book_OnlyPatients(t *testing.T) {
	f := newFixture()
	for _, actor := range []auth.Actor{f.doctor, f.admin} {
		_, err := f.book(actor, f.profileID, day, slotNine)
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err), "role %s", actor.Role)
	}
	assert.Empty(t, f.repo.items)
}

func TestService_Book_SlotTaken(t *testing.T) {
	f := newFixture()
	_, err := f.book(f.patient, f.profileID, day, slotNine)
	require.NoError(t, err)

	_, err = f.book(f.otherPatient, f.profileID, day, slotNine)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, "Slot already booked", message(err))
	assert.Len(t, f.repo.items, 1)
}

func TestService_Book_SlotIsPerDoctorDateAndTime(t *testing.T) {
	f := newFixture()
	_, err := f.book(f.patient, f.profileID, day, slotNine)
	require.NoError(t, err)

	_, err = f.book(f.otherPatient, f.profileID, day, "09:20 - 09:40")
	assert.NoError(t, err, "different time")
	_, err = f.book(f.otherPatient, f.profileID, "2024-06-02", slotNine)
	assert.NoError(t, err, "different date")
	_, err = f.book(f.otherPatient, f.otherProfileID, day, slotNine)
	assert.NoError(t, err, "different doctor")
}

func TestService_Book_ApprovedAndCompletedHoldTheSlot(t *testing.T) {
	for _, status := range []Status{StatusApproved, StatusCompleted} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture()
			a, err := f.book(f.patient, f.profileID, day, slotNine)
			require.NoError(t, err)
			_, err = f.svc.SetStatus(context.Background(), f.doctor, a.ID, string(status))
			require.NoError(t, err)

			_, err = f.book(f.otherPatient, f.profileID, day, slotNine)
			assert.Equal(t, "Slot already booked", message(err))
		})
	}
}

func TestService_Book_RejectionFreesTheSlot(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.book(f.patient, f.profileID, day, slotNine)
	require.NoError(t, err)
	_, err = f.svc.SetStatus(ctx, f.doctor, first.ID, "rejected")
	require.NoError(t, err)

	second, err := f.book(f.otherPatient, f.profileID, day, slotNine)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, second.Status)
	assert.Equal(t, StatusRejected, f.stored(first.ID).Status, "the rejected record is kept")
}

func TestService_Book_ConcurrentRequestsForOneSlot(t *testing.T) {
	f := newFixture()
	const n = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			patient := auth.Actor{ID: uuid.New(), Role: auth.RolePatient}
			_, err := f.book(patient, f.profileID, day, slotNine)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if message(err) == "Slot already booked" {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
}

// -- SetStatus --

func TestService_SetStatus_ApproveThenComplete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, err := f.book(f.patient, f.profileID, day, slotNine)
	require.NoError(t, err)

	approved, err := f.svc.SetStatus(ctx, f.doctor, a.ID, "approved")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	assert.False(t, approved.Visited)

	completed, err := f.svc.SetStatus(ctx, f.doctor, a.ID, "completed")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)
	assert.True(t, completed.Visited)
	assert.True(t, f.stored(a.ID).Visited)
}

func TestService_SetStatus_PendingToCompleted(t *testing.T) {
	f := newFixture()
	a := f.seed(StatusPending)

	got, err := f.svc.SetStatus(context.Background(), f.doctor, a.ID, "completed")
	require.NoError(t, err)
	assert.True(t, got.Visited)
}

func TestService_SetStatus_InvalidTarget(t *testing.T) {
	f := newFixture()
	a := f.seed(StatusPending)

	for _, raw := range []string{"", "pending", "cancelled", "APPROVED"} {
		_, err := f.svc.SetStatus(context.Background(), f.doctor, a.ID, raw)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "status %q", raw)
		assert.Equal(t, "Invalid status", message(err))
	}
	assert.Equal(t, StatusPending, f.stored(a.ID).Status)
}

func TestService_SetStatus_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.SetStatus(context.Background(), f.doctor, uuid.New(), "approved")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "Appointment not found", message(err))
}

func TestService_SetStatus_OtherDoctor(t *testing.T) {
	f := newFixture()
	a := f.seed(StatusPending)

	_, err := f.svc.SetStatus(context.Background(), f.otherDoctor, a.ID, "approved")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.Equal(t, "Not authorized to update this appointment", message(err))
	assert.Equal(t, StatusPending, f.stored(a.ID).Status)
}

func TestService_SetStatus_OnlyDoctors(t *testing.T) {
	f := newFixture()
	a := f.seed(StatusPending)

	for _, actor := range []auth.Actor{f.patient, f.admin} {
		_, err := f.svc.SetStatus(context.Background(), actor, a.ID, "approved")
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err), "role %s", actor.Role)
	}
}

func TestService_SetStatus_IllegalTransitions(t *testing.T) {
	tests := []struct {
		from Status
		to   string
	}{
		{StatusRejected, "approved"},
		{StatusRejected, "completed"},
		{StatusRejected, "rejected"},
		{StatusCompleted, "approved"},
		{StatusCompleted, "rejected"},
		{StatusCompleted, "completed"},
		{StatusApproved, "rejected"},
		{StatusApproved, "approved"},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+tt.to, func(t *testing.T) {
			f := newFixture()
			a := f.seed(tt.from)

			_, err := f.svc.SetStatus(context.Background(), f.doctor, a.ID, tt.to)
			assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
			assert.Equal(t, tt.from, f.stored(a.ID).Status)
		})
	}
}

func TestService_SetStatus_ConcurrentChange(t *testing.T) {
	f := newFixture()
	a := f.seed(StatusPending)
	f.repo.staleUpdate = true

	_, err := f.svc.SetStatus(context.Background(), f.doctor, a.ID, "approved")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, StatusPending, f.stored(a.ID).Status)
}

func TestService_SetStatus_DoctorWithoutProfile(t *testing.T) {
	f := newFixture()
	a := f.seed(StatusPending)
	newcomer := f.addAccount(auth.RoleDoctor, "newcomer")

	_, err := f.svc.SetStatus(context.Background(), newcomer, a.ID, "approved")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "Doctor profile not found", message(err))
}

// -- Complete --

func TestService_Complete(t *testing.T) {
	for _, from := range []Status{StatusPending, StatusApproved} {
		t.Run(string(from), func(t *testing.T) {
			f := newFixture()
			a := f.seed(from)
			meds := []Medicine{
				{Name: "Amoxicillin", Dosage: "500mg", Frequency: "3x daily", Duration: "7 days"},
				{Name: "Ibuprofen"},
			}

			got, err := f.svc.Complete(context.Background(), f.doctor, CompleteInput{
				AppointmentID:       a.ID,
				PrescriptionContent: "Rest and fluids",
				Medicines:           meds,
			})
			require.NoError(t, err)
			assert.Equal(t, StatusCompleted, got.Status)
			assert.True(t, got.Visited)
			require.NotNil(t, got.Prescription)
			assert.Equal(t, "Rest and fluids", got.Prescription.Content)
			assert.Equal(t, meds, got.Prescription.Medicines)
			require.NotNil(t, got.PrescribedAt)
			assert.Equal(t, fixedNow, *got.PrescribedAt)

			stored := f.stored(a.ID)
			assert.Equal(t, StatusCompleted, stored.Status)
			assert.Equal(t, meds, stored.Prescription.Medicines)

			// The caller's slice is not shared with the stored record.
			meds[0].Name = "changed"
			assert.Equal(t, "Amoxicillin", got.Prescription.Medicines[0].Name)
		})
	}
}

func TestService_Complete_EmptyPrescription(t *testing.T) {
	f := newFixture()
	a := f.seed(StatusApproved)

	got, err := f.svc.Complete(context.Background(), f.doctor, CompleteInput{AppointmentID: a.ID})
	require.NoError(t, err)
	require.NotNil(t, got.Prescription)
	assert.Empty(t, got.Prescription.Content)
	assert.NotNil(t, got.Prescription.Medicines)
	assert.Empty(t, got.Prescription.Medicines)
}

func TestService_Complete_Rejected(t *testing.T) {
	f := newFixture()
	a := f.seed(StatusRejected)

	_, err := f.svc.Complete(context.Background(), f.doctor, CompleteInput{AppointmentID: a.ID, PrescriptionContent: "x"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, "Cannot complete a rejected appointment", message(err))

	stored := f.stored(a.ID)
	assert.Equal(t, StatusRejected, stored.Status)
	assert.False(t, stored.Visited)
	assert.Nil(t, stored.Prescription)
	assert.Nil(t, stored.PrescribedAt)
}

func TestService_Complete_AlreadyCompleted(t *testing.T) {
	f := newFixture()
	a := f.seed(StatusPending)
	_, err := f.svc.Complete(context.Background(), f.doctor, CompleteInput{AppointmentID: a.ID, PrescriptionContent: "first"})
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), f.doctor, CompleteInput{AppointmentID: a.ID, PrescriptionContent: "second"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, "first", f.stored(a.ID).Prescription.Content)
}

func TestService_Complete_NotAssigned(t *testing.T) {
	f := newFixture()
	a := f.seed(StatusApproved)

	_, err := f.svc.Complete(context.Background(), f.otherDoctor, CompleteInput{AppointmentID: a.ID})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.Equal(t, "Not authorized to complete this appointment", message(err))

	_, err = f.svc.Complete(context.Background(), f.patient, CompleteInput{AppointmentID: a.ID})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.Equal(t, StatusApproved, f.stored(a.ID).Status)
}

func TestService_Complete_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Complete(context.Background(), f.doctor, CompleteInput{AppointmentID: uuid.New()})
	assert.Equal(t, "Appointment not found", message(err))

	_, err = f.svc.Complete(context.Background(), f.doctor, CompleteInput{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

// -- Delete --

func TestService_Delete(t *testing.T) {
	tests := []struct {
		name    string
		actor   func(*fixture) auth.Actor
		wantErr string
	}{
		{"owning patient", func(f *fixture) auth.Actor { return f.patient }, ""},
		{"assigned doctor", func(f *fixture) auth.Actor { return f.doctor }, ""},
		{"other patient", func(f *fixture) auth.Actor { return f.otherPatient }, "Not authorized: You do not own this appointment"},
		{"other doctor", func(f *fixture) auth.Actor { return f.otherDoctor }, "Not authorized: This appointment is not assigned to you"},
		{"admin", func(f *fixture) auth.Actor { return f.admin }, "Not authorized to delete this appointment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			a := f.seed(StatusPending)

			err := f.svc.Delete(context.Background(), tt.actor(f), a.ID)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Nil(t, f.stored(a.ID))
				return
			}
			assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
			assert.Equal(t, tt.wantErr, message(err))
			assert.NotNil(t, f.stored(a.ID))
		})
	}
}

func TestService_Delete_NotFound(t *testing.T) {
	f := newFixture()
	err := f.svc.Delete(context.Background(), f.patient, uuid.New())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestService_Delete_FreesTheSlot(t *testing.T) {
	f := newFixture()
	a, err := f.book(f.patient, f.profileID, day, slotNine)
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(context.Background(), f.doctor, a.ID))

	_, err = f.book(f.otherPatient, f.profileID, day, slotNine)
	assert.NoError(t, err)
}

// -- Listing --

func TestService_ListMine_Patient(t *testing.T) {
	f := newFixture()
	first, err := f.book(f.patient, f.profileID, day, slotNine)
	require.NoError(t, err)
	second, err := f.book(f.patient, f.otherProfileID, day, slotNine)
	require.NoError(t, err)
	_, err = f.book(f.otherPatient, f.profileID, day, "10:00 - 10:20")
	require.NoError(t, err)

	views, err := f.svc.ListMine(context.Background(), f.patient)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, second.ID, views[0].ID, "newest first")
	assert.Equal(t, first.ID, views[1].ID)
	assert.Equal(t, "alice", views[0].Patient.Name)
	assert.Equal(t, "Oncology", views[0].Doctor.Specialization)
}

func TestService_ListMine_Doctor(t *testing.T) {
	f := newFixture()
	_, err := f.book(f.patient, f.profileID, day, slotNine)
	require.NoError(t, err)
	_, err = f.book(f.otherPatient, f.profileID, day, "10:00 - 10:20")
	require.NoError(t, err)
	_, err = f.book(f.patient, f.otherProfileID, day, slotNine)
	require.NoError(t, err)

	views, err := f.svc.ListMine(context.Background(), f.doctor)
	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, v := range views {
		assert.Equal(t, f.profileID, v.DoctorProfileID)
		assert.NotNil(t, v.Patient)
	}
}

func TestService_ListMine_Empty(t *testing.T) {
	f := newFixture()
	views, err := f.svc.ListMine(context.Background(), f.patient)
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestService_ListMine_DoctorWithoutProfile(t *testing.T) {
	f := newFixture()
	newcomer := f.addAccount(auth.RoleDoctor, "newcomer")

	_, err := f.svc.ListMine(context.Background(), newcomer)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "Doctor profile not found", message(err))
}

func TestService_ListMine_Admin(t *testing.T) {
	f := newFixture()
	_, err := f.svc.ListMine(context.Background(), f.admin)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestService_ListAll(t *testing.T) {
	f := newFixture()
	for i := 0; i < 5; i++ {
		f.seed(StatusPending)
	}

	page, total, err := f.svc.ListAll(context.Background(), f.admin, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))
	assert.NotNil(t, page[0].Doctor)

	_, _, err = f.svc.ListAll(context.Background(), f.patient, 10, 0)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	f.repo.failList = true
	_, _, err = f.svc.ListAll(context.Background(), f.admin, 10, 0)
	assert.Equal(t, apperr.KindUnexpected, apperr.KindOf(err))
}

// -- Scenarios --

func TestScenario_BookApproveComplete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	a, err := f.book(f.patient, f.profileID, day, slotNine)
	require.NoError(t, err)
	_, err = f.svc.SetStatus(ctx, f.doctor, a.ID, "approved")
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, f.doctor, CompleteInput{
		AppointmentID:       a.ID,
		PrescriptionContent: "Follow up in two weeks",
		Medicines:           []Medicine{{Name: "Paracetamol", Dosage: "1g"}},
	})
	require.NoError(t, err)

	views, err := f.svc.ListMine(ctx, f.patient)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, StatusCompleted, views[0].Status)
	assert.True(t, views[0].Visited)
	assert.Equal(t, "Follow up in two weeks", views[0].Prescription.Content)
}
