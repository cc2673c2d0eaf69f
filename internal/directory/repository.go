package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrEmailTaken      = errors.New("email already in use")

	// ErrDoctorHasAppointments blocks deletion while any appointment,
	// in any status, still references the doctor.
	ErrDoctorHasAppointments = errors.New("doctor has appointments on record")
)

type Repository interface {
	CreateDoctor(ctx context.Context, d *Doctor) error
	UpdateDoctor(ctx context.Context, d *Doctor) error
	// DeleteDoctor removes the doctor and all their slots in one
	// transaction. Fails with ErrDoctorHasAppointments if any
	// appointment references the doctor.
	DeleteDoctor(ctx context.Context, id uuid.UUID) error
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	SearchDoctors(ctx context.Context, query, specialty string) ([]Doctor, error)
	ListSpecialties(ctx context.Context) ([]string, error)
	DoctorExists(ctx context.Context, id uuid.UUID) (bool, error)

	CreatePatient(ctx context.Context, p *Patient) error
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	ListPatients(ctx context.Context, search string) ([]Patient, error)
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)

	Count(ctx context.Context) (Counts, error)
}
