package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSlotNotFound    = errors.New("slot not found")
	ErrSlotUnavailable = errors.New("slot does not exist or is already booked")
)

// Store owns the set of bookable slots and their booked/free state.
// MarkBooked and MarkFree must only be called on a transaction handle
// owned by the appointment ledger; they are never correct as standalone
// writes.
type Store interface {
	// CreateSlots opens one slot per (date, time) pair not already present
	// for the doctor. Existing tuples are skipped. Returns how many slots
	// were actually created.
	CreateSlots(ctx context.Context, doctorID uuid.UUID, dates []time.Time, times []string) (int64, error)

	// ListFree returns unbooked slots for the doctor within [from, to],
	// ordered by date then time.
	ListFree(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Slot, error)

	// MarkBooked flips the slot to booked. Fails with ErrSlotUnavailable
	// if the slot does not exist or is already booked.
	MarkBooked(ctx context.Context, key SlotKey) error

	// MarkFree flips the slot to free. Fails with ErrSlotNotFound if the
	// slot does not exist; freeing an already-free slot is a no-op.
	MarkFree(ctx context.Context, key SlotKey) error

	// PruneExpired deletes free slots dated strictly before the given day.
	// Booked slots are never deleted, so completed-appointment history
	// keeps its closed keys.
	PruneExpired(ctx context.Context, before time.Time) (int64, error)
}
