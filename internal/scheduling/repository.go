package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrValidation           = errors.New("invalid input")
	ErrInvalidDate          = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidTime          = fmt.Errorf("%w: invalid time", ErrValidation)
	ErrInvalidPhone         = fmt.Errorf("%w: invalid phone number", ErrValidation)
	ErrInvalidAppointmentID = fmt.Errorf("%w: invalid appointment id", ErrValidation)

	ErrNotFound              = errors.New("not found")
	ErrDoctorNotFound        = fmt.Errorf("doctor %w", ErrNotFound)
	ErrDepartmentNotFound    = fmt.Errorf("department %w", ErrNotFound)
	ErrPatientNotFound       = fmt.Errorf("patient %w", ErrNotFound)
	ErrAppointmentNotFound   = fmt.Errorf("appointment %w", ErrNotFound)
	ErrNoDoctorsInDepartment = fmt.Errorf("%w: no doctors in department", ErrNotFound)

	ErrSlotTaken               = errors.New("slot already has a scheduled appointment")
	ErrAmbiguousAppointmentID  = errors.New("appointment id prefix matches more than one appointment")
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrLockNotAcquired    = errors.New("lock not acquired")
)

// SlotTakenError names the slot a booking lost to.
type SlotTakenError struct {
	Slot Slot
}

func (e *SlotTakenError) Error() string {
	return fmt.Sprintf("slot %s: %v", e.Slot, ErrSlotTaken)
}

func (e *SlotTakenError) Unwrap() error { return ErrSlotTaken }

// unavailable marks a driver failure as transient.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}

// Directory is the read-only reference data store. Name lookups are
// case-insensitive exact matches; a miss returns ErrDoctorNotFound or
// ErrDepartmentNotFound, an empty department returns an empty slice.
type Directory interface {
	FindDoctorByName(ctx context.Context, name string) (*Doctor, error)
	FindDoctorsByDepartment(ctx context.Context, department string) ([]Doctor, error)
	FindDepartmentByName(ctx context.Context, name string) (*Department, error)
	ListDepartments(ctx context.Context) ([]Department, error)
}

// PatientStore backs the patient registry.
type PatientStore interface {
	// FindPatientByPhone returns the first patient with the phone or ErrPatientNotFound.
	FindPatientByPhone(ctx context.Context, phone string) (*Patient, error)
	CreatePatient(ctx context.Context, p Patient) (*Patient, error)
}

// Ledger is the authoritative appointment record.
type Ledger interface {
	// InsertIfFree stores a scheduled appointment unless its slot already has
	// one, as a single atomic step. A lost race returns *SlotTakenError.
	InsertIfFree(ctx context.Context, a Appointment) (*Appointment, error)

	// HasScheduled reports whether the slot has a scheduled appointment.
	HasScheduled(ctx context.Context, slot Slot) (bool, error)

	// FindActiveByPatientPhone returns scheduled appointments ordered by date then time.
	FindActiveByPatientPhone(ctx context.Context, phone string) ([]Appointment, error)

	// CancelByPrefix cancels the single scheduled appointment of phone whose id
	// starts with prefix. No match is ErrAppointmentNotFound, several matches are
	// ErrAmbiguousAppointmentID.
	CancelByPrefix(ctx context.Context, prefix, phone string) (*Appointment, error)

	// UpdateAppointmentStatus moves id from one status to another if it is still in from.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// FindScheduledBefore returns scheduled appointments dated on or before day.
	FindScheduledBefore(ctx context.Context, day Date) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}

// Store bundles every contract a backend provides.
type Store interface {
	Directory
	PatientStore
	Ledger
}

// Locker serialises work on a key across processes.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Clock is swapped in tests.
type Clock func() time.Time
