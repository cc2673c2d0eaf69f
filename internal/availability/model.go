package availability

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Slot is one bookable unit of a doctor's calendar. The natural key
// (doctor_id, date, time) is unique; is_booked tracks whether an active
// appointment currently holds it.
type Slot struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time
	Time      string
	IsBooked  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SlotKey identifies a slot by its natural key.
type SlotKey struct {
	DoctorID uuid.UUID
	Date     time.Time
	Time     string
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.DoctorID, k.Date.Format(DateLayout), k.Time)
}
