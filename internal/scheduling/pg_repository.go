package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caresched/hospital-scheduling/internal/availability"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, patient_id, doctor_id, date, time, status, diagnosis, prescription, notes, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.Date,
		&a.Time,
		&a.Status,
		&a.Diagnosis,
		&a.Prescription,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// inTx runs fn inside one transaction, rolling back on any error.
func (r *PgRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Interface methods

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetActiveForSlot(ctx context.Context, key availability.SlotKey) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND date = $2 AND time = $3
		  AND status IN ('Booked', 'Completed')
	`, key.DoctorID, availability.DateOnly(key.Date), key.Time)
	return scanAppointment(row)
}

func (r *PgRepository) Book(ctx context.Context, patientID uuid.UUID, key availability.SlotKey) (*Appointment, error) {
	var created *Appointment

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		slots := availability.NewPgStore(tx)
		if err := slots.MarkBooked(ctx, key); err != nil {
			if errors.Is(err, availability.ErrSlotUnavailable) {
				return ErrSlotAlreadyBooked
			}
			return err
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO appointments (id, patient_id, doctor_id, date, time, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 'Booked', now(), now())
			RETURNING `+appointmentColumns+`
		`, uuid.New(), patientID, key.DoctorID, availability.DateOnly(key.Date), key.Time)

		appt, err := scanAppointment(row)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrSlotAlreadyBooked
			}
			return fmt.Errorf("insert appointment: %w", err)
		}

		created = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (r *PgRepository) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var updated *Appointment

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = 'Cancelled',
			    updated_at = now()
			WHERE id = $1
			  AND status = 'Booked'
			RETURNING `+appointmentColumns+`
		`, id)

		appt, err := scanAppointment(row)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				// Row exists but is no longer Booked, or does not exist at
				// all; the service has already distinguished the two.
				return ErrInvalidTransition
			}
			return fmt.Errorf("cancel appointment: %w", err)
		}

		slots := availability.NewPgStore(tx)
		key := availability.SlotKey{DoctorID: appt.DoctorID, Date: appt.Date, Time: appt.Time}
		if err := slots.MarkFree(ctx, key); err != nil {
			return fmt.Errorf("free slot %s: %w", key, err)
		}

		updated = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *PgRepository) Reschedule(ctx context.Context, id uuid.UUID, newKey availability.SlotKey) (*Appointment, error) {
	var updated *Appointment

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		// Read the old key under the row lock before touching anything.
		row := tx.QueryRow(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE id = $1
			FOR UPDATE
		`, id)
		current, err := scanAppointment(row)
		if err != nil {
			return err
		}
		if current.Status != StatusBooked {
			return ErrInvalidTransition
		}

		slots := availability.NewPgStore(tx)
		oldKey := availability.SlotKey{DoctorID: current.DoctorID, Date: current.Date, Time: current.Time}

		if err := slots.MarkFree(ctx, oldKey); err != nil {
			return fmt.Errorf("free slot %s: %w", oldKey, err)
		}
		if err := slots.MarkBooked(ctx, newKey); err != nil {
			if errors.Is(err, availability.ErrSlotUnavailable) {
				return ErrSlotAlreadyBooked
			}
			return err
		}

		row = tx.QueryRow(ctx, `
			UPDATE appointments
			SET date = $2,
			    time = $3,
			    updated_at = now()
			WHERE id = $1
			RETURNING `+appointmentColumns+`
		`, id, availability.DateOnly(newKey.Date), newKey.Time)

		appt, err := scanAppointment(row)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrSlotAlreadyBooked
			}
			return fmt.Errorf("move appointment: %w", err)
		}

		updated = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *PgRepository) Complete(ctx context.Context, id uuid.UUID, tr Treatment) (*Appointment, error) {
	var notes *string
	if tr.Notes != "" {
		notes = &tr.Notes
	}

	// The slot stays booked: a completed appointment closes its key.
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'Completed',
		    diagnosis = $2,
		    prescription = $3,
		    notes = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'Booked'
		RETURNING `+appointmentColumns+`
	`, id, tr.Diagnosis, tr.Prescription, notes)

	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}

	return appt, nil
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY date DESC, time DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND date BETWEEN $2 AND $3
		ORDER BY date, time
	`, doctorID, availability.DateOnly(from), availability.DateOnly(to))
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListAll(ctx context.Context, status *Status, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListSharedHistory(ctx context.Context, doctorID, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND patient_id = $2
		ORDER BY date DESC, time DESC
	`, doctorID, patientID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CountByDoctor(ctx context.Context, doctorID uuid.UUID) (DoctorStats, error) {
	var st DoctorStats

	err := r.pool.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE status = 'Booked'),
		       count(*) FILTER (WHERE status = 'Completed'),
		       count(*) FILTER (WHERE status = 'Cancelled')
		FROM appointments
		WHERE doctor_id = $1
	`, doctorID).Scan(&st.Total, &st.Booked, &st.Completed, &st.Cancelled)
	if err != nil {
		return DoctorStats{}, fmt.Errorf("count appointments: %w", err)
	}

	return st, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
