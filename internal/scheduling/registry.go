package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/frontdesk-scheduling/pkg/logging"
)

// Registry resolves a contact phone number to a patient, creating the
// patient on first contact. With a Locker, concurrent first contacts for one
// phone are serialised; without one, or when the lock cannot be taken,
// two racing calls may each create a record.
type Registry struct {
	store  PatientStore
	locker Locker
	logger *logging.Logger
	now    Clock
}

func NewRegistry(store PatientStore, locker Locker, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Default()
	}
	return &Registry{
		store:  store,
		locker: locker,
		logger: logger,
		now:    time.Now,
	}
}

// Resolve returns the patient registered under phone. An existing record
// keeps its stored name.
func (r *Registry) Resolve(ctx context.Context, name, phone string) (*Patient, error) {
	if r.locker == nil {
		return r.findOrCreate(ctx, name, phone)
	}

	var patient *Patient
	err := r.locker.WithLock(ctx, "patient:phone:"+phone, func(lockCtx context.Context) error {
		p, err := r.findOrCreate(lockCtx, name, phone)
		if err != nil {
			return err
		}
		patient = p
		return nil
	})
	switch {
	case err == nil:
		return patient, nil
	case errors.Is(err, ErrLockNotAcquired) || isLockFailure(err):
		r.logger.Warn("patient lock unavailable, resolving without it", "error", err)
		return r.findOrCreate(ctx, name, phone)
	default:
		return nil, err
	}
}

func (r *Registry) findOrCreate(ctx context.Context, name, phone string) (*Patient, error) {
	existing, err := r.store.FindPatientByPhone(ctx, phone)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrPatientNotFound) {
		return nil, fmt.Errorf("find patient: %w", err)
	}

	created, err := r.store.CreatePatient(ctx, Patient{
		ID:        uuid.New(),
		Name:      name,
		Phone:     phone,
		CreatedAt: r.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	r.logger.Info("patient registered", "patient_id", created.ID)
	return created, nil
}

// LockError is returned by lockers when the lock backend itself failed, as
// opposed to the guarded function.
type LockError struct {
	Err error
}

func (e *LockError) Error() string { return "lock backend: " + e.Err.Error() }
func (e *LockError) Unwrap() error { return e.Err }

func isLockFailure(err error) bool {
	var le *LockError
	return errors.As(err, &le)
}
