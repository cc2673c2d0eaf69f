package directory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/caresched/hospital-scheduling/internal/availability"
	"github.com/caresched/hospital-scheduling/internal/config"
	"github.com/caresched/hospital-scheduling/internal/identity"
)

var (
	ErrForbidden    = errors.New("caller may not perform this directory operation")
	ErrInvalidInput = errors.New("missing or malformed profile fields")
)

type Service struct {
	repo  Repository
	slots availability.Store
	cfg   config.Config
}

func NewService(repo Repository, slots availability.Store, cfg config.Config) *Service {
	return &Service{
		repo:  repo,
		slots: slots,
		cfg:   cfg,
	}
}

type NewDoctor struct {
	Name      string
	Email     string
	Specialty string
	Bio       string
	Phone     string
}

// CreateDoctor registers a doctor profile and opens an initial block of
// availability over the configured working hours and seed window.
func (s *Service) CreateDoctor(ctx context.Context, actor identity.Actor, in NewDoctor) (*Doctor, error) {
	if actor.Role != identity.RoleAdmin {
		return nil, ErrForbidden
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Specialty = strings.TrimSpace(in.Specialty)
	if in.Name == "" || in.Email == "" || in.Specialty == "" {
		return nil, ErrInvalidInput
	}

	d := &Doctor{
		ID:        uuid.New(),
		Name:      in.Name,
		Email:     in.Email,
		Specialty: in.Specialty,
	}
	if in.Bio != "" {
		d.Bio = &in.Bio
	}
	if in.Phone != "" {
		d.Phone = &in.Phone
	}

	if err := s.repo.CreateDoctor(ctx, d); err != nil {
		return nil, err
	}

	// Seed availability starting tomorrow; today's grid would be mostly in
	// the past already. Failure to seed is not fatal to the profile.
	dates := availability.DatesFrom(time.Now().AddDate(0, 0, 1), s.cfg.SeedDays)
	times := availability.TimesBetween(s.cfg.DayStartHour, s.cfg.DayEndHour, s.cfg.SlotGranularity)
	if n, err := s.slots.CreateSlots(ctx, d.ID, dates, times); err != nil {
		log.Printf("seeding availability for doctor %s failed after %d slots: %v", d.ID, n, err)
	}

	return d, nil
}

type DoctorUpdate struct {
	Name      string
	Specialty string
	Bio       string
	Phone     string
}

func (s *Service) UpdateDoctor(ctx context.Context, actor identity.Actor, id uuid.UUID, in DoctorUpdate) (*Doctor, error) {
	if actor.Role != identity.RoleAdmin && !(actor.Role == identity.RoleDoctor && actor.ID == id) {
		return nil, ErrForbidden
	}

	d, err := s.repo.GetDoctorByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		d.Name = name
	}
	if spec := strings.TrimSpace(in.Specialty); spec != "" {
		d.Specialty = spec
	}
	if in.Bio != "" {
		d.Bio = &in.Bio
	}
	if in.Phone != "" {
		d.Phone = &in.Phone
	}

	if err := s.repo.UpdateDoctor(ctx, d); err != nil {
		return nil, err
	}

	return d, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetDoctorByID(ctx, id)
}

// DeleteDoctor removes a doctor who has no appointments on record,
// along with their open slots. Any appointment, even a cancelled one,
// blocks deletion so history stays intact.
func (s *Service) DeleteDoctor(ctx context.Context, actor identity.Actor, id uuid.UUID) error {
	if actor.Role != identity.RoleAdmin {
		return ErrForbidden
	}
	return s.repo.DeleteDoctor(ctx, id)
}

// SearchDoctors filters by free-text query (name or specialty) and an
// optional exact-ish specialty filter. Open to every role.
func (s *Service) SearchDoctors(ctx context.Context, query, specialty string) ([]Doctor, error) {
	return s.repo.SearchDoctors(ctx, strings.TrimSpace(query), strings.TrimSpace(specialty))
}

func (s *Service) ListSpecialties(ctx context.Context) ([]string, error) {
	return s.repo.ListSpecialties(ctx)
}

type NewPatient struct {
	Name    string
	Email   string
	Contact string
}

func (s *Service) CreatePatient(ctx context.Context, actor identity.Actor, in NewPatient) (*Patient, error) {
	if actor.Role != identity.RoleAdmin {
		return nil, ErrForbidden
	}

	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, ErrInvalidInput
	}

	p := &Patient{
		ID:   uuid.New(),
		Name: in.Name,
	}
	if email := strings.ToLower(strings.TrimSpace(in.Email)); email != "" {
		p.Email = &email
	}
	if in.Contact != "" {
		p.Contact = &in.Contact
	}

	if err := s.repo.CreatePatient(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Patient, error) {
	if actor.Role != identity.RoleAdmin {
		return nil, ErrForbidden
	}
	return s.repo.GetPatientByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, actor identity.Actor, search string) ([]Patient, error) {
	if actor.Role != identity.RoleAdmin {
		return nil, ErrForbidden
	}
	return s.repo.ListPatients(ctx, strings.TrimSpace(search))
}

// OpenSlots adds availability for a doctor on explicit dates and times.
// Duplicates are skipped by the store.
func (s *Service) OpenSlots(ctx context.Context, actor identity.Actor, doctorID uuid.UUID, dates []time.Time, times []string) (int64, error) {
	if actor.Role != identity.RoleAdmin && !(actor.Role == identity.RoleDoctor && actor.ID == doctorID) {
		return 0, ErrForbidden
	}

	if ok, err := s.repo.DoctorExists(ctx, doctorID); err != nil {
		return 0, fmt.Errorf("load doctor: %w", err)
	} else if !ok {
		return 0, ErrDoctorNotFound
	}

	today := availability.DateOnly(time.Now())
	for _, d := range dates {
		if availability.DateOnly(d).Before(today) {
			return 0, fmt.Errorf("%w: date %s is in the past", ErrInvalidInput, d.Format(availability.DateLayout))
		}
	}
	for _, tm := range times {
		if !availability.ValidTimeOfDay(tm, s.cfg.SlotGranularity) {
			return 0, fmt.Errorf("%w: time %q is not on the %s grid", ErrInvalidInput, tm, s.cfg.SlotGranularity)
		}
	}

	return s.slots.CreateSlots(ctx, doctorID, dates, times)
}

// FreeSlots lists a doctor's open slots in [from, to].
func (s *Service) FreeSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]availability.Slot, error) {
	if ok, err := s.repo.DoctorExists(ctx, doctorID); err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	} else if !ok {
		return nil, ErrDoctorNotFound
	}
	return s.slots.ListFree(ctx, doctorID, from, to)
}

func (s *Service) Counts(ctx context.Context, actor identity.Actor) (Counts, error) {
	if actor.Role != identity.RoleAdmin {
		return Counts{}, ErrForbidden
	}
	return s.repo.Count(ctx)
}
