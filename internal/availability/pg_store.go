package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx satisfied by both *pgxpool.Pool and pgx.Tx,
// so the same store can run standalone or inside a ledger transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgStore struct {
	q Querier
}

func NewPgStore(q Querier) *PgStore {
	return &PgStore{q: q}
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&s.Time,
		&s.IsBooked,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func (st *PgStore) CreateSlots(ctx context.Context, doctorID uuid.UUID, dates []time.Time, times []string) (int64, error) {
	var created int64

	for _, date := range dates {
		for _, tm := range times {
			tag, err := st.q.Exec(ctx, `
				INSERT INTO availability_slots (id, doctor_id, date, time, is_booked, created_at, updated_at)
				VALUES ($1, $2, $3, $4, FALSE, now(), now())
				ON CONFLICT ON CONSTRAINT uq_slot_natural_key DO NOTHING
			`, uuid.New(), doctorID, DateOnly(date), tm)
			if err != nil {
				return created, fmt.Errorf("create slot %s %s: %w", date.Format(DateLayout), tm, err)
			}
			created += tag.RowsAffected()
		}
	}

	return created, nil
}

func (st *PgStore) ListFree(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Slot, error) {
	rows, err := st.q.Query(ctx, `
		SELECT id, doctor_id, date, time, is_booked, created_at, updated_at
		FROM availability_slots
		WHERE doctor_id = $1
		  AND date BETWEEN $2 AND $3
		  AND NOT is_booked
		ORDER BY date, time
	`, doctorID, DateOnly(from), DateOnly(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (st *PgStore) MarkBooked(ctx context.Context, key SlotKey) error {
	tag, err := st.q.Exec(ctx, `
		UPDATE availability_slots
		SET is_booked = TRUE,
		    updated_at = now()
		WHERE doctor_id = $1 AND date = $2 AND time = $3
		  AND NOT is_booked
	`, key.DoctorID, DateOnly(key.Date), key.Time)
	if err != nil {
		return fmt.Errorf("mark slot booked: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotUnavailable
	}
	return nil
}

func (st *PgStore) MarkFree(ctx context.Context, key SlotKey) error {
	tag, err := st.q.Exec(ctx, `
		UPDATE availability_slots
		SET is_booked = FALSE,
		    updated_at = now()
		WHERE doctor_id = $1 AND date = $2 AND time = $3
	`, key.DoctorID, DateOnly(key.Date), key.Time)
	if err != nil {
		return fmt.Errorf("mark slot free: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (st *PgStore) PruneExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := st.q.Exec(ctx, `
		DELETE FROM availability_slots
		WHERE date < $1
		  AND NOT is_booked
	`, DateOnly(before))
	if err != nil {
		return 0, fmt.Errorf("prune expired slots: %w", err)
	}
	return tag.RowsAffected(), nil
}
