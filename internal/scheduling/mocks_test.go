package scheduling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caresched/hospital-scheduling/internal/availability"
	redisclient "github.com/caresched/hospital-scheduling/internal/redis"
)

// Compile-time checks
var (
	_ Repository = (*fakeRepo)(nil)
	_ Directory  = (*fakeDirectory)(nil)
)

type slotState struct {
	booked bool
}

// fakeRepo is an in-memory stand-in for the Postgres repository. It
// enforces the same rules the schema does: a slot must exist and be
// free to be claimed, and a key can hold at most one active
// appointment. All methods are safe for concurrent use, matching the
// serialization the real unique index provides.
type fakeRepo struct {
	mu           sync.Mutex
	slots        map[string]*slotState
	appointments map[uuid.UUID]*Appointment
	events       []EventLog
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		slots:        make(map[string]*slotState),
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

func (f *fakeRepo) addSlot(key availability.SlotKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slots[key.String()] = &slotState{}
}

func (f *fakeRepo) slotBooked(key availability.SlotKey) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[key.String()]
	return ok && s.booked
}

func (f *fakeRepo) activeForSlotLocked(key availability.SlotKey) *Appointment {
	for _, a := range f.appointments {
		if a.DoctorID == key.DoctorID &&
			availability.DateOnly(a.Date).Equal(availability.DateOnly(key.Date)) &&
			a.Time == key.Time &&
			a.Status.Active() {
			return a
		}
	}
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeRepo) GetActiveForSlot(ctx context.Context, key availability.SlotKey) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a := f.activeForSlotLocked(key); a != nil {
		cp := *a
		return &cp, nil
	}
	return nil, ErrAppointmentNotFound
}

func (f *fakeRepo) Book(ctx context.Context, patientID uuid.UUID, key availability.SlotKey) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	slot, ok := f.slots[key.String()]
	if !ok || slot.booked {
		return nil, ErrSlotAlreadyBooked
	}
	if f.activeForSlotLocked(key) != nil {
		return nil, ErrSlotAlreadyBooked
	}

	slot.booked = true
	now := time.Now()
	a := &Appointment{
		ID:        uuid.New(),
		PatientID: patientID,
		DoctorID:  key.DoctorID,
		Date:      availability.DateOnly(key.Date),
		Time:      key.Time,
		Status:    StatusBooked,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.appointments[a.ID] = a

	cp := *a
	return &cp, nil
}

func (f *fakeRepo) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.appointments[id]
	if !ok || a.Status != StatusBooked {
		return nil, ErrInvalidTransition
	}

	a.Status = StatusCancelled
	a.UpdatedAt = time.Now()

	key := availability.SlotKey{DoctorID: a.DoctorID, Date: a.Date, Time: a.Time}
	if slot, ok := f.slots[key.String()]; ok {
		slot.booked = false
	}

	cp := *a
	return &cp, nil
}

func (f *fakeRepo) Reschedule(ctx context.Context, id uuid.UUID, newKey availability.SlotKey) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != StatusBooked {
		return nil, ErrInvalidTransition
	}

	newSlot, ok := f.slots[newKey.String()]
	if !ok || newSlot.booked || f.activeForSlotLocked(newKey) != nil {
		return nil, ErrSlotAlreadyBooked
	}

	oldKey := availability.SlotKey{DoctorID: a.DoctorID, Date: a.Date, Time: a.Time}
	if oldSlot, ok := f.slots[oldKey.String()]; ok {
		oldSlot.booked = false
	}

	newSlot.booked = true
	a.Date = availability.DateOnly(newKey.Date)
	a.Time = newKey.Time
	a.UpdatedAt = time.Now()

	cp := *a
	return &cp, nil
}

func (f *fakeRepo) Complete(ctx context.Context, id uuid.UUID, tr Treatment) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.appointments[id]
	if !ok || a.Status != StatusBooked {
		return nil, ErrInvalidTransition
	}

	a.Status = StatusCompleted
	a.Diagnosis = &tr.Diagnosis
	a.Prescription = &tr.Prescription
	if tr.Notes != "" {
		a.Notes = &tr.Notes
	}
	a.UpdatedAt = time.Now()

	cp := *a
	return &cp, nil
}

func (f *fakeRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Appointment
	for _, a := range f.appointments {
		if a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Appointment
	for _, a := range f.appointments {
		if a.DoctorID == doctorID && !a.Date.Before(availability.DateOnly(from)) && !a.Date.After(availability.DateOnly(to)) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListAll(ctx context.Context, status *Status, limit, offset int) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Appointment
	for _, a := range f.appointments {
		if status == nil || a.Status == *status {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListSharedHistory(ctx context.Context, doctorID, patientID uuid.UUID) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Appointment
	for _, a := range f.appointments {
		if a.DoctorID == doctorID && a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) CountByDoctor(ctx context.Context, doctorID uuid.UUID) (DoctorStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var st DoctorStats
	for _, a := range f.appointments {
		if a.DoctorID != doctorID {
			continue
		}
		st.Total++
		switch a.Status {
		case StatusBooked:
			st.Booked++
		case StatusCompleted:
			st.Completed++
		case StatusCancelled:
			st.Cancelled++
		}
	}
	return st, nil
}

func (f *fakeRepo) InsertEvent(ctx context.Context, ev EventLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

// activeCount reports how many active appointments hold the key; the
// uniqueness invariant requires this to never exceed one.
func (f *fakeRepo) activeCount(key availability.SlotKey) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, a := range f.appointments {
		if a.DoctorID == key.DoctorID &&
			availability.DateOnly(a.Date).Equal(availability.DateOnly(key.Date)) &&
			a.Time == key.Time &&
			a.Status.Active() {
			n++
		}
	}
	return n
}

type fakeDirectory struct {
	doctors  map[uuid.UUID]bool
	patients map[uuid.UUID]bool
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		doctors:  make(map[uuid.UUID]bool),
		patients: make(map[uuid.UUID]bool),
	}
}

func (d *fakeDirectory) DoctorExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return d.doctors[id], nil
}

func (d *fakeDirectory) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return d.patients[id], nil
}

// passLocker runs the critical section directly, like a lock that is
// always free.
type passLocker struct{}

func (passLocker) WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// heldLocker simulates a lock someone else holds.
type heldLocker struct{}

func (heldLocker) WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

// downLocker simulates an unreachable lock backend. fn never runs.
type downLocker struct{}

func (downLocker) WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error {
	return fmt.Errorf("%w: dial tcp 127.0.0.1:6379: connect: connection refused", redisclient.ErrLockUnavailable)
}
