package api

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caresched/hospital-scheduling/internal/availability"
	"github.com/caresched/hospital-scheduling/internal/directory"
	"github.com/caresched/hospital-scheduling/internal/scheduling"
)

var (
	_ scheduling.Repository = (*memLedger)(nil)
	_ scheduling.Directory  = (*memLedger)(nil)
	_ directory.Repository  = (*memDirectory)(nil)
	_ availability.Store    = (*memSlots)(nil)
)

// memLedger backs the scheduling service in handler tests. It mirrors
// the database rules the handlers rely on: one active appointment per
// slot key, and slots must exist and be free to be claimed.
type memLedger struct {
	mu           sync.Mutex
	slots        map[string]bool // key -> booked
	appointments map[uuid.UUID]*scheduling.Appointment
	doctors      map[uuid.UUID]bool
	patients     map[uuid.UUID]bool
}

func newMemLedger() *memLedger {
	return &memLedger{
		slots:        make(map[string]bool),
		appointments: make(map[uuid.UUID]*scheduling.Appointment),
		doctors:      make(map[uuid.UUID]bool),
		patients:     make(map[uuid.UUID]bool),
	}
}

func (m *memLedger) addSlot(key availability.SlotKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[key.String()] = false
}

func (m *memLedger) activeForSlotLocked(key availability.SlotKey) *scheduling.Appointment {
	for _, a := range m.appointments {
		if a.DoctorID == key.DoctorID &&
			availability.DateOnly(a.Date).Equal(availability.DateOnly(key.Date)) &&
			a.Time == key.Time &&
			a.Status.Active() {
			return a
		}
	}
	return nil
}

func (m *memLedger) GetByID(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, scheduling.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memLedger) GetActiveForSlot(ctx context.Context, key availability.SlotKey) (*scheduling.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.activeForSlotLocked(key); a != nil {
		cp := *a
		return &cp, nil
	}
	return nil, scheduling.ErrAppointmentNotFound
}

func (m *memLedger) Book(ctx context.Context, patientID uuid.UUID, key availability.SlotKey) (*scheduling.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	booked, ok := m.slots[key.String()]
	if !ok || booked || m.activeForSlotLocked(key) != nil {
		return nil, scheduling.ErrSlotAlreadyBooked
	}

	m.slots[key.String()] = true
	now := time.Now()
	a := &scheduling.Appointment{
		ID:        uuid.New(),
		PatientID: patientID,
		DoctorID:  key.DoctorID,
		Date:      availability.DateOnly(key.Date),
		Time:      key.Time,
		Status:    scheduling.StatusBooked,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.appointments[a.ID] = a

	cp := *a
	return &cp, nil
}

func (m *memLedger) Cancel(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok || a.Status != scheduling.StatusBooked {
		return nil, scheduling.ErrInvalidTransition
	}

	a.Status = scheduling.StatusCancelled
	a.UpdatedAt = time.Now()
	key := availability.SlotKey{DoctorID: a.DoctorID, Date: a.Date, Time: a.Time}
	m.slots[key.String()] = false

	cp := *a
	return &cp, nil
}

func (m *memLedger) Reschedule(ctx context.Context, id uuid.UUID, newKey availability.SlotKey) (*scheduling.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok {
		return nil, scheduling.ErrAppointmentNotFound
	}
	if a.Status != scheduling.StatusBooked {
		return nil, scheduling.ErrInvalidTransition
	}

	booked, ok := m.slots[newKey.String()]
	if !ok || booked || m.activeForSlotLocked(newKey) != nil {
		return nil, scheduling.ErrSlotAlreadyBooked
	}

	oldKey := availability.SlotKey{DoctorID: a.DoctorID, Date: a.Date, Time: a.Time}
	m.slots[oldKey.String()] = false
	m.slots[newKey.String()] = true

	a.Date = availability.DateOnly(newKey.Date)
	a.Time = newKey.Time
	a.UpdatedAt = time.Now()

	cp := *a
	return &cp, nil
}

func (m *memLedger) Complete(ctx context.Context, id uuid.UUID, tr scheduling.Treatment) (*scheduling.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok || a.Status != scheduling.StatusBooked {
		return nil, scheduling.ErrInvalidTransition
	}

	a.Status = scheduling.StatusCompleted
	a.Diagnosis = &tr.Diagnosis
	a.Prescription = &tr.Prescription
	if tr.Notes != "" {
		a.Notes = &tr.Notes
	}
	a.UpdatedAt = time.Now()

	cp := *a
	return &cp, nil
}

func (m *memLedger) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]scheduling.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []scheduling.Appointment
	for _, a := range m.appointments {
		if a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memLedger) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]scheduling.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []scheduling.Appointment
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && !a.Date.Before(availability.DateOnly(from)) && !a.Date.After(availability.DateOnly(to)) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memLedger) ListAll(ctx context.Context, status *scheduling.Status, limit, offset int) ([]scheduling.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []scheduling.Appointment
	for _, a := range m.appointments {
		if status == nil || a.Status == *status {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memLedger) ListSharedHistory(ctx context.Context, doctorID, patientID uuid.UUID) ([]scheduling.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []scheduling.Appointment
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memLedger) CountByDoctor(ctx context.Context, doctorID uuid.UUID) (scheduling.DoctorStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var st scheduling.DoctorStats
	for _, a := range m.appointments {
		if a.DoctorID != doctorID {
			continue
		}
		st.Total++
		switch a.Status {
		case scheduling.StatusBooked:
			st.Booked++
		case scheduling.StatusCompleted:
			st.Completed++
		case scheduling.StatusCancelled:
			st.Cancelled++
		}
	}
	return st, nil
}

func (m *memLedger) InsertEvent(ctx context.Context, ev scheduling.EventLog) error {
	return nil
}

func (m *memLedger) DoctorExists(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doctors[id], nil
}

func (m *memLedger) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.patients[id], nil
}

type memDirectory struct {
	doctors  map[uuid.UUID]*directory.Doctor
	patients map[uuid.UUID]*directory.Patient
	busy     map[uuid.UUID]bool // doctors with appointments on record
}

func newMemDirectory() *memDirectory {
	return &memDirectory{
		doctors:  make(map[uuid.UUID]*directory.Doctor),
		patients: make(map[uuid.UUID]*directory.Patient),
		busy:     make(map[uuid.UUID]bool),
	}
}

func (m *memDirectory) CreateDoctor(ctx context.Context, d *directory.Doctor) error {
	for _, existing := range m.doctors {
		if existing.Email == d.Email {
			return directory.ErrEmailTaken
		}
	}
	cp := *d
	m.doctors[d.ID] = &cp
	return nil
}

func (m *memDirectory) UpdateDoctor(ctx context.Context, d *directory.Doctor) error {
	if _, ok := m.doctors[d.ID]; !ok {
		return directory.ErrDoctorNotFound
	}
	cp := *d
	m.doctors[d.ID] = &cp
	return nil
}

func (m *memDirectory) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.doctors[id]; !ok {
		return directory.ErrDoctorNotFound
	}
	if m.busy[id] {
		return directory.ErrDoctorHasAppointments
	}
	delete(m.doctors, id)
	return nil
}

func (m *memDirectory) GetDoctorByID(ctx context.Context, id uuid.UUID) (*directory.Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, directory.ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDirectory) SearchDoctors(ctx context.Context, query, specialty string) ([]directory.Doctor, error) {
	var out []directory.Doctor
	for _, d := range m.doctors {
		if specialty != "" && !strings.EqualFold(d.Specialty, specialty) {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

func (m *memDirectory) ListSpecialties(ctx context.Context) ([]string, error) {
	var out []string
	for _, d := range m.doctors {
		out = append(out, d.Specialty)
	}
	return out, nil
}

func (m *memDirectory) DoctorExists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.doctors[id]
	return ok, nil
}

func (m *memDirectory) CreatePatient(ctx context.Context, p *directory.Patient) error {
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *memDirectory) GetPatientByID(ctx context.Context, id uuid.UUID) (*directory.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, directory.ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memDirectory) ListPatients(ctx context.Context, search string) ([]directory.Patient, error) {
	var out []directory.Patient
	for _, p := range m.patients {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memDirectory) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.patients[id]
	return ok, nil
}

func (m *memDirectory) Count(ctx context.Context) (directory.Counts, error) {
	return directory.Counts{
		Doctors:  int64(len(m.doctors)),
		Patients: int64(len(m.patients)),
	}, nil
}

// memSlots shares the memLedger slot map so directory-created slots are
// bookable through the scheduling surface.
type memSlots struct {
	ledger *memLedger
}

func (m *memSlots) CreateSlots(ctx context.Context, doctorID uuid.UUID, dates []time.Time, times []string) (int64, error) {
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()

	var created int64
	for _, d := range dates {
		for _, tm := range times {
			key := availability.SlotKey{DoctorID: doctorID, Date: d, Time: tm}.String()
			if _, ok := m.ledger.slots[key]; ok {
				continue
			}
			m.ledger.slots[key] = false
			created++
		}
	}
	return created, nil
}

func (m *memSlots) ListFree(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]availability.Slot, error) {
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()

	var out []availability.Slot
	prefix := doctorID.String() + ":"
	for key, booked := range m.ledger.slots {
		if booked || !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, availability.Slot{DoctorID: doctorID})
	}
	return out, nil
}

func (m *memSlots) MarkBooked(ctx context.Context, key availability.SlotKey) error {
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()

	booked, ok := m.ledger.slots[key.String()]
	if !ok || booked {
		return availability.ErrSlotUnavailable
	}
	m.ledger.slots[key.String()] = true
	return nil
}

func (m *memSlots) MarkFree(ctx context.Context, key availability.SlotKey) error {
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()

	if _, ok := m.ledger.slots[key.String()]; !ok {
		return availability.ErrSlotNotFound
	}
	m.ledger.slots[key.String()] = false
	return nil
}

func (m *memSlots) PruneExpired(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// passLocker never contends.
type passLocker struct{}

func (passLocker) WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
