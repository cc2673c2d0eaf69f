package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/caresched/hospital-scheduling/internal/identity"
)

type Status string

const (
	StatusBooked    Status = "Booked"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

// Active statuses occupy a slot; Cancelled rows are history only.
func (s Status) Active() bool {
	return s == StatusBooked || s == StatusCompleted
}

// Terminal statuses permit no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// mayManage reports whether the actor may cancel or reschedule an
// appointment owned by patientID. Admins have staff override.
func mayManage(a identity.Actor, patientID uuid.UUID) bool {
	switch a.Role {
	case identity.RoleAdmin:
		return true
	case identity.RolePatient:
		return a.ID == patientID
	default:
		return false
	}
}

// mayView reports whether the actor may read an appointment.
func mayView(a identity.Actor, appt *Appointment) bool {
	switch a.Role {
	case identity.RoleAdmin:
		return true
	case identity.RoleDoctor:
		return a.ID == appt.DoctorID
	case identity.RolePatient:
		return a.ID == appt.PatientID
	default:
		return false
	}
}

type Appointment struct {
	ID           uuid.UUID
	PatientID    uuid.UUID
	DoctorID     uuid.UUID
	Date         time.Time
	Time         string
	Status       Status
	Diagnosis    *string
	Prescription *string
	Notes        *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Treatment holds the fields a doctor records when completing an
// appointment. Diagnosis and prescription are required, notes optional.
type Treatment struct {
	Diagnosis    string
	Prescription string
	Notes        string
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// DoctorStats backs the doctor dashboard counters.
type DoctorStats struct {
	Total     int64 `json:"total"`
	Booked    int64 `json:"booked"`
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
}
