package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/caresched/hospital-scheduling/internal/availability"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotAlreadyBooked   = errors.New("slot already has an active appointment")
	ErrInvalidTransition   = errors.New("appointment status does not permit this operation")
)

// Repository contains all DB interactions needed by the ledger. Each
// mutating method runs as one transaction: the appointment row and its
// slot change together or not at all.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// For conflict checks inside the slot lock
	GetActiveForSlot(ctx context.Context, key availability.SlotKey) (*Appointment, error)

	// Book claims the slot and inserts a Booked appointment in one
	// transaction. Returns ErrSlotAlreadyBooked when the slot is taken or
	// the active-appointment unique index rejects the insert.
	Book(ctx context.Context, patientID uuid.UUID, key availability.SlotKey) (*Appointment, error)

	// Cancel flips Booked -> Cancelled and frees the slot. The status
	// change is compare-and-swap; a row no longer Booked yields
	// ErrInvalidTransition.
	Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Reschedule frees the old slot, claims the new one, and moves the
	// appointment's date/time in place, keeping its identity.
	Reschedule(ctx context.Context, id uuid.UUID, newKey availability.SlotKey) (*Appointment, error)

	// Complete flips Booked -> Completed and stores the treatment fields.
	// The slot stays booked; its key is closed permanently.
	Complete(ctx context.Context, id uuid.UUID, tr Treatment) (*Appointment, error)

	// Queries
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error)
	ListAll(ctx context.Context, status *Status, limit, offset int) ([]Appointment, error)
	ListSharedHistory(ctx context.Context, doctorID, patientID uuid.UUID) ([]Appointment, error)
	CountByDoctor(ctx context.Context, doctorID uuid.UUID) (DoctorStats, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// Directory is the slice of the directory layer the ledger needs to
// validate booking targets.
type Directory interface {
	DoctorExists(ctx context.Context, id uuid.UUID) (bool, error)
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
}
