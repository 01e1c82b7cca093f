package scheduling

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ Store = (*MemoryRepository)(nil)

// MemoryRepository is a process-local Store. All writes go through one
// mutex, and the active-slot index makes InsertIfFree atomic the same way
// the partial unique index does in Postgres.
type MemoryRepository struct {
	mu           sync.RWMutex
	doctors      []Doctor
	departments  []Department
	patients     []Patient
	appointments map[uuid.UUID]*Appointment
	active       map[Slot]uuid.UUID
	events       []EventLog
	now          Clock
}

// NewMemoryRepository builds a store over the given reference data.
func NewMemoryRepository(departments []Department, doctors []Doctor) (*MemoryRepository, error) {
	for _, d := range doctors {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	return &MemoryRepository{
		doctors:      append([]Doctor(nil), doctors...),
		departments:  append([]Department(nil), departments...),
		appointments: make(map[uuid.UUID]*Appointment),
		active:       make(map[Slot]uuid.UUID),
		now:          time.Now,
	}, nil
}

// Directory

func (m *MemoryRepository) FindDoctorByName(_ context.Context, name string) (*Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, d := range m.doctors {
		if strings.EqualFold(d.Name, name) {
			d := d
			return &d, nil
		}
	}
	return nil, ErrDoctorNotFound
}

func (m *MemoryRepository) FindDoctorsByDepartment(_ context.Context, department string) ([]Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Doctor
	for _, d := range m.doctors {
		if strings.EqualFold(d.Department, department) {
			result = append(result, d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *MemoryRepository) FindDepartmentByName(_ context.Context, name string) (*Department, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, d := range m.departments {
		if strings.EqualFold(d.Name, name) {
			d := d
			return &d, nil
		}
	}
	return nil, ErrDepartmentNotFound
}

func (m *MemoryRepository) ListDepartments(_ context.Context) ([]Department, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]Department(nil), m.departments...), nil
}

// Patients

func (m *MemoryRepository) FindPatientByPhone(_ context.Context, phone string) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.patients {
		if p.Phone == phone {
			p := p
			return &p, nil
		}
	}
	return nil, ErrPatientNotFound
}

func (m *MemoryRepository) CreatePatient(_ context.Context, p Patient) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.patients = append(m.patients, p)
	return &p, nil
}

// PatientCount is used by tests and the dev server's diagnostics.
func (m *MemoryRepository) PatientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.patients)
}

// Ledger

func (m *MemoryRepository) InsertIfFree(_ context.Context, a Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot := a.Slot()
	if _, taken := m.active[slot]; taken {
		return nil, &SlotTakenError{Slot: slot}
	}
	if _, dup := m.appointments[a.ID]; dup {
		return nil, fmt.Errorf("appointment %s already exists", a.ID)
	}

	a.Status = StatusScheduled
	stored := a
	m.appointments[a.ID] = &stored
	m.active[slot] = a.ID
	return &a, nil
}

func (m *MemoryRepository) HasScheduled(_ context.Context, slot Slot) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.active[slot]
	return ok, nil
}

func (m *MemoryRepository) FindActiveByPatientPhone(_ context.Context, phone string) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Appointment
	for _, a := range m.appointments {
		if a.PatientPhone == phone && a.Status == StatusScheduled {
			result = append(result, *a)
		}
	}
	sortAppointments(result)
	return result, nil
}

func (m *MemoryRepository) CancelByPrefix(_ context.Context, prefix, phone string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var match *Appointment
	for _, a := range m.appointments {
		if a.Status != StatusScheduled || a.PatientPhone != phone || !strings.HasPrefix(a.ID.String(), prefix) {
			continue
		}
		if match != nil {
			return nil, ErrAmbiguousAppointmentID
		}
		match = a
	}
	if match == nil {
		return nil, ErrAppointmentNotFound
	}

	m.setStatus(match, StatusCancelled)
	out := *match
	return &out, nil
}

func (m *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	m.setStatus(a, to)
	out := *a
	return &out, nil
}

func (m *MemoryRepository) FindScheduledBefore(_ context.Context, day Date) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Appointment
	for _, a := range m.appointments {
		if a.Status == StatusScheduled && a.Date.Compare(day) <= 0 {
			result = append(result, *a)
		}
	}
	sortAppointments(result)
	return result, nil
}

func (m *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev.ID = int64(len(m.events) + 1)
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of the event log.
func (m *MemoryRepository) Events() []EventLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]EventLog(nil), m.events...)
}

// setStatus must be called with mu held.
func (m *MemoryRepository) setStatus(a *Appointment, to AppointmentStatus) {
	if a.Status == StatusScheduled && to != StatusScheduled {
		delete(m.active, a.Slot())
	}
	a.Status = to
	a.UpdatedAt = m.now().UTC()
}

func sortAppointments(appts []Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		if appts[i].Before(appts[j]) {
			return true
		}
		if appts[j].Before(appts[i]) {
			return false
		}
		return appts[i].CreatedAt.Before(appts[j].CreatedAt)
	})
}
