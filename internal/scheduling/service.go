package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/caresched/hospital-scheduling/internal/availability"
	"github.com/caresched/hospital-scheduling/internal/config"
	"github.com/caresched/hospital-scheduling/internal/identity"
	redisclient "github.com/caresched/hospital-scheduling/internal/redis"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
)

var (
	ErrInvalidSlot       = errors.New("requested date/time is invalid or in the past")
	ErrForbidden         = errors.New("caller may not act on this appointment")
	ErrSlotContended     = errors.New("slot is currently being booked, please retry")
	ErrDoctorNotFound    = errors.New("doctor not found")
	ErrPatientNotFound   = errors.New("patient not found")
	ErrTreatmentRequired = errors.New("diagnosis and prescription are required to complete")
)

type Service struct {
	repo   Repository
	dir    Directory
	locker redisclient.Locker
	cfg    config.Config
}

func NewService(repo Repository, dir Directory, locker redisclient.Locker, cfg config.Config) *Service {
	return &Service{
		repo:   repo,
		dir:    dir,
		locker: locker,
		cfg:    cfg,
	}
}

// validateSlot rejects malformed times and slots that do not start in the
// future relative to now.
func (s *Service) validateSlot(date time.Time, timeOfDay string, now time.Time) error {
	if !availability.ValidTimeOfDay(timeOfDay, s.cfg.SlotGranularity) {
		return ErrInvalidSlot
	}
	if !availability.SlotStart(date, timeOfDay).After(now) {
		return ErrInvalidSlot
	}
	return nil
}

// Book reserves a doctor time unit for a patient. The per-key Redis lock
// keeps concurrent bookers from racing the check; the partial unique
// index on active appointments makes the loser fail deterministically
// even if the lock is unavailable.
func (s *Service) Book(ctx context.Context, actor identity.Actor, patientID, doctorID uuid.UUID, date time.Time, timeOfDay string) (*Appointment, error) {
	switch actor.Role {
	case identity.RoleAdmin:
	case identity.RolePatient:
		if actor.ID != patientID {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}

	if err := s.validateSlot(date, timeOfDay, time.Now()); err != nil {
		return nil, err
	}

	if ok, err := s.dir.PatientExists(ctx, patientID); err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	} else if !ok {
		return nil, ErrPatientNotFound
	}

	if ok, err := s.dir.DoctorExists(ctx, doctorID); err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	} else if !ok {
		return nil, ErrDoctorNotFound
	}

	key := availability.SlotKey{DoctorID: doctorID, Date: date, Time: timeOfDay}

	var created *Appointment

	claim := func(opCtx context.Context) error {
		// Inside the critical section re-check for an active appointment
		existing, err := s.repo.GetActiveForSlot(opCtx, key)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check active appointment: %w", err)
		}
		if existing != nil {
			return ErrSlotAlreadyBooked
		}

		appt, err := s.repo.Book(opCtx, patientID, key)
		if err != nil {
			return err
		}

		created = appt

		s.logEvent(opCtx, appt.ID, EventAppointmentBooked, map[string]any{
			"doctor_id":  doctorID.String(),
			"patient_id": patientID.String(),
			"date":       key.Date.Format(availability.DateLayout),
			"time":       key.Time,
		})

		return nil
	}

	err := s.locker.WithSlotLock(ctx, key.String(), claim)
	if errors.Is(err, redisclient.ErrLockUnavailable) {
		// The lock only reduces contention. With the backend down the
		// unique index still rejects the race loser, so proceed without
		// serialization rather than failing every booking.
		log.Printf("slot lock unavailable, booking %s without serialization: %v", key, err)
		err = claim(ctx)
	}
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotContended
		}
		return nil, err
	}

	return created, nil
}

// Cancel moves a booked appointment to Cancelled and frees its slot.
func (s *Service) Cancel(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !mayManage(actor, appt.PatientID) {
		return nil, ErrForbidden
	}
	if appt.Status != StatusBooked {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
		"by_role": string(actor.Role),
	})

	return updated, nil
}

// Reschedule moves a booked appointment to a new slot, keeping its
// identity. Old slot freed and new slot claimed in one transaction.
func (s *Service) Reschedule(ctx context.Context, actor identity.Actor, id uuid.UUID, newDate time.Time, newTime string) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !mayManage(actor, appt.PatientID) {
		return nil, ErrForbidden
	}
	if appt.Status != StatusBooked {
		return nil, ErrInvalidTransition
	}
	if err := s.validateSlot(newDate, newTime, time.Now()); err != nil {
		return nil, err
	}

	newKey := availability.SlotKey{DoctorID: appt.DoctorID, Date: newDate, Time: newTime}
	oldKey := availability.SlotKey{DoctorID: appt.DoctorID, Date: appt.Date, Time: appt.Time}

	if newKey.DoctorID == oldKey.DoctorID &&
		availability.DateOnly(newKey.Date).Equal(availability.DateOnly(oldKey.Date)) &&
		newKey.Time == oldKey.Time {
		return nil, ErrSlotAlreadyBooked
	}

	var updated *Appointment

	move := func(opCtx context.Context) error {
		existing, err := s.repo.GetActiveForSlot(opCtx, newKey)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check active appointment: %w", err)
		}
		if existing != nil {
			return ErrSlotAlreadyBooked
		}

		moved, err := s.repo.Reschedule(opCtx, id, newKey)
		if err != nil {
			return err
		}

		updated = moved

		s.logEvent(opCtx, moved.ID, EventAppointmentRescheduled, map[string]any{
			"from_date": oldKey.Date.Format(availability.DateLayout),
			"from_time": oldKey.Time,
			"to_date":   newKey.Date.Format(availability.DateLayout),
			"to_time":   newKey.Time,
		})

		return nil
	}

	err = s.locker.WithSlotLock(ctx, newKey.String(), move)
	if errors.Is(err, redisclient.ErrLockUnavailable) {
		log.Printf("slot lock unavailable, rescheduling to %s without serialization: %v", newKey, err)
		err = move(ctx)
	}
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotContended
		}
		return nil, err
	}

	return updated, nil
}

// Complete records treatment details and moves the appointment to
// Completed. Only the assigned doctor may complete; the slot remains
// booked permanently.
func (s *Service) Complete(ctx context.Context, actor identity.Actor, id uuid.UUID, tr Treatment) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if actor.Role != identity.RoleDoctor || actor.ID != appt.DoctorID {
		return nil, ErrForbidden
	}
	if appt.Status != StatusBooked {
		return nil, ErrInvalidTransition
	}
	if tr.Diagnosis == "" || tr.Prescription == "" {
		return nil, ErrTreatmentRequired
	}

	updated, err := s.repo.Complete(ctx, id, tr)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCompleted, map[string]any{})

	return updated, nil
}

// Get retrieves an appointment the actor is allowed to see.
func (s *Service) Get(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !mayView(actor, appt) {
		return nil, ErrForbidden
	}
	return appt, nil
}

// ListForPatient returns a patient's appointments, newest first.
func (s *Service) ListForPatient(ctx context.Context, actor identity.Actor, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if actor.Role == identity.RolePatient && actor.ID != patientID {
		return nil, ErrForbidden
	}
	if actor.Role == identity.RoleDoctor {
		return nil, ErrForbidden
	}

	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// ListForDoctor returns a doctor's appointments within a date range.
func (s *Service) ListForDoctor(ctx context.Context, actor identity.Actor, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	if actor.Role == identity.RoleDoctor && actor.ID != doctorID {
		return nil, ErrForbidden
	}
	if actor.Role == identity.RolePatient {
		return nil, ErrForbidden
	}

	return s.repo.ListByDoctor(ctx, doctorID, from, to)
}

// ListAll is the admin view over every appointment, optionally filtered
// by status.
func (s *Service) ListAll(ctx context.Context, actor identity.Actor, status *Status, limit, offset int) ([]Appointment, error) {
	if actor.Role != identity.RoleAdmin {
		return nil, ErrForbidden
	}

	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	return s.repo.ListAll(ctx, status, limit, offset)
}

// PatientHistory lets the assigned doctor review every appointment it
// shares with one patient.
func (s *Service) PatientHistory(ctx context.Context, actor identity.Actor, patientID uuid.UUID) ([]Appointment, error) {
	if actor.Role != identity.RoleDoctor {
		return nil, ErrForbidden
	}
	return s.repo.ListSharedHistory(ctx, actor.ID, patientID)
}

// DoctorDashboard returns the per-status counters for a doctor.
func (s *Service) DoctorDashboard(ctx context.Context, actor identity.Actor, doctorID uuid.UUID) (DoctorStats, error) {
	if actor.Role == identity.RoleDoctor && actor.ID != doctorID {
		return DoctorStats{}, ErrForbidden
	}
	if actor.Role == identity.RolePatient {
		return DoctorStats{}, ErrForbidden
	}
	return s.repo.CountByDoctor(ctx, doctorID)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max
	}
	return limit
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}
