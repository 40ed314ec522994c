package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/getadoc/getadoc/internal/domain/account"
	"github.com/getadoc/getadoc/internal/domain/doctor"
)

// Medicine is one prescribed item. Entries are stored as the doctor entered
// them; partially filled entries are allowed.
type Medicine struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Duration  string `json:"duration"`
}

type Prescription struct {
	Content   string     `json:"content"`
	Medicines []Medicine `json:"medicines"`
}

// Appointment is a patient's booking of one doctor slot on one date.
// Prescription and PrescribedAt are set together by completion and never
// cleared.
type Appointment struct {
	ID               uuid.UUID     `json:"id"`
	PatientAccountID uuid.UUID     `json:"patientId"`
	DoctorProfileID  uuid.UUID     `json:"doctorId"`
	Date             string        `json:"date"`
	Time             string        `json:"time"`
	Status           Status        `json:"status"`
	Visited          bool          `json:"visited"`
	Prescription     *Prescription `json:"prescription,omitempty"`
	PrescribedAt     *time.Time    `json:"prescribedAt,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// View is an appointment with the patient and doctor details resolved.
type View struct {
	*Appointment
	Patient *account.Summary `json:"patient,omitempty"`
	Doctor  *doctor.Summary  `json:"doctor,omitempty"`
}

type BookInput struct {
	DoctorProfileID uuid.UUID
	Date            string
	Time            string
}

type CompleteInput struct {
	AppointmentID       uuid.UUID
	PrescriptionContent string
	Medicines           []Medicine
}
