package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/frontdesk-scheduling/internal/observability/metrics"
	"github.com/hackgods/frontdesk-scheduling/pkg/logging"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
)

var ErrOutsideWorkingHours = errors.New("requested time is outside the doctor's working hours")

const (
	minPrefixLen = 4
	maxPrefixLen = 36
)

type Options struct {
	// StorageTimeout bounds every operation's storage calls. Zero disables it.
	StorageTimeout time.Duration
	// EnforceWorkingHours makes Book reject slots outside the doctor's template.
	EnforceWorkingHours bool
	// Location is the clinic's zone, used to decide when an appointment has elapsed.
	Location *time.Location
	Metrics  *metrics.SchedulingMetrics
	Logger   *logging.Logger
	Clock    Clock
}

// Service is the public operation set of the scheduling core.
type Service struct {
	directory Directory
	ledger    Ledger
	registry  *Registry
	evaluator *Evaluator
	opts      Options
	logger    *logging.Logger
	metrics   *metrics.SchedulingMetrics
	now       Clock
}

func NewService(directory Directory, ledger Ledger, registry *Registry, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Service{
		directory: directory,
		ledger:    ledger,
		registry:  registry,
		evaluator: NewEvaluator(ledger),
		opts:      opts,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		now:       opts.Clock,
	}
}

type BookRequest struct {
	PatientName  string `json:"patient_name"`
	PatientPhone string `json:"patient_phone"`
	DoctorName   string `json:"doctor_name"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Reason       string `json:"reason"`
}

// Book reserves a slot for a patient. The slot check and the insert happen
// in one Ledger call, so of several concurrent bookings for one slot exactly
// one succeeds and the rest get a *SlotTakenError.
func (s *Service) Book(ctx context.Context, req BookRequest) (appt *Appointment, err error) {
	defer s.observe("book", time.Now(), &err)

	date, err := ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		return nil, err
	}
	at, err := ParseTimeOfDay(strings.TrimSpace(req.Time))
	if err != nil {
		return nil, err
	}
	phone, err := normalizePhone(req.PatientPhone)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.PatientName)
	if name == "" {
		return nil, fmt.Errorf("%w: patient name is required", ErrValidation)
	}

	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	doctor, err := s.directory.FindDoctorByName(ctx, strings.TrimSpace(req.DoctorName))
	if err != nil {
		return nil, err
	}

	if s.opts.EnforceWorkingHours {
		if hours, ok := doctor.HoursOn(date.Weekday()); !ok || !hours.Covers(at) {
			return nil, ErrOutsideWorkingHours
		}
	}

	patient, err := s.registry.Resolve(ctx, name, phone)
	if err != nil {
		return nil, fmt.Errorf("resolve patient: %w", err)
	}

	now := s.now().UTC()
	created, err := s.ledger.InsertIfFree(ctx, Appointment{
		ID:           uuid.New(),
		PatientID:    patient.ID,
		PatientName:  name,
		PatientPhone: phone,
		DoctorID:     doctor.ID,
		DoctorName:   doctor.Name,
		Department:   doctor.Department,
		Date:         date,
		Time:         at,
		Reason:       strings.TrimSpace(req.Reason),
		Status:       StatusScheduled,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, created.ID, EventAppointmentBooked, map[string]any{
		"doctor_id":  created.DoctorID,
		"patient_id": created.PatientID.String(),
		"date":       created.Date.String(),
		"time":       created.Time.String(),
	})
	return created, nil
}

// CheckAvailability is advisory: a later Book may still lose the slot.
func (s *Service) CheckAvailability(ctx context.Context, doctorName, date, at string) (res Availability, err error) {
	defer s.observe("check_availability", time.Now(), &err)

	day, err := ParseDate(strings.TrimSpace(date))
	if err != nil {
		return Availability{}, err
	}
	t, err := ParseTimeOfDay(strings.TrimSpace(at))
	if err != nil {
		return Availability{}, err
	}

	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	doctor, err := s.directory.FindDoctorByName(ctx, strings.TrimSpace(doctorName))
	if err != nil {
		return Availability{}, err
	}
	return s.evaluator.Evaluate(ctx, *doctor, day, t)
}

// DoctorHours pairs a doctor with the hours worked on a given day.
type DoctorHours struct {
	Doctor Doctor
	Hours  WorkingHours
}

type DaySchedule struct {
	Department string
	Date       Date
	Weekday    time.Weekday
	Working    []DoctorHours
	Off        []Doctor
}

// GetDoctorSchedule lists who in a department works on date. An unknown or
// empty department is ErrNoDoctorsInDepartment; a department where nobody
// works that weekday returns a schedule with no Working entries.
func (s *Service) GetDoctorSchedule(ctx context.Context, department, date string) (sched *DaySchedule, err error) {
	defer s.observe("get_doctor_schedule", time.Now(), &err)

	day, err := ParseDate(strings.TrimSpace(date))
	if err != nil {
		return nil, err
	}
	department = strings.TrimSpace(department)

	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	doctors, err := s.directory.FindDoctorsByDepartment(ctx, department)
	if err != nil {
		return nil, err
	}
	if len(doctors) == 0 {
		return nil, ErrNoDoctorsInDepartment
	}

	sched = &DaySchedule{
		Department: department,
		Date:       day,
		Weekday:    day.Weekday(),
	}
	for _, d := range doctors {
		if hours, ok := d.HoursOn(sched.Weekday); ok {
			sched.Working = append(sched.Working, DoctorHours{Doctor: d, Hours: hours})
		} else {
			sched.Off = append(sched.Off, d)
		}
	}
	return sched, nil
}

// ListPatientAppointments returns the phone's scheduled appointments,
// earliest first.
func (s *Service) ListPatientAppointments(ctx context.Context, phone string) (appts []Appointment, err error) {
	defer s.observe("list_patient_appointments", time.Now(), &err)

	phone, err = normalizePhone(phone)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	return s.ledger.FindActiveByPatientPhone(ctx, phone)
}

// CancelAppointment cancels the caller's scheduled appointment addressed by
// an id prefix. The phone must match the one the appointment was booked with.
func (s *Service) CancelAppointment(ctx context.Context, idPrefix, phone string) (appt *Appointment, err error) {
	defer s.observe("cancel_appointment", time.Now(), &err)

	prefix, err := normalizePrefix(idPrefix)
	if err != nil {
		return nil, err
	}
	phone, err = normalizePhone(phone)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	cancelled, err := s.ledger.CancelByPrefix(ctx, prefix, phone)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, cancelled.ID, EventAppointmentCancelled, map[string]any{
		"doctor_id": cancelled.DoctorID,
		"date":      cancelled.Date.String(),
		"time":      cancelled.Time.String(),
	})
	return cancelled, nil
}

func (s *Service) GetDepartment(ctx context.Context, name string) (dept *Department, err error) {
	defer s.observe("get_department", time.Now(), &err)

	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	return s.directory.FindDepartmentByName(ctx, strings.TrimSpace(name))
}

func (s *Service) ListDepartments(ctx context.Context) (depts []Department, err error) {
	defer s.observe("list_departments", time.Now(), &err)

	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	return s.directory.ListDepartments(ctx)
}

// CompleteElapsed marks scheduled appointments whose start time has passed
// as completed and returns how many were moved. It is meant to be called by
// the worker periodically.
func (s *Service) CompleteElapsed(ctx context.Context) (completed int, err error) {
	defer s.observe("complete_elapsed", time.Now(), &err)

	now := s.now().In(s.opts.Location)
	findCtx, cancel := s.storageContext(ctx)
	candidates, err := s.ledger.FindScheduledBefore(findCtx, DateOf(now))
	cancel()
	if err != nil {
		return 0, fmt.Errorf("find elapsed appointments: %w", err)
	}

	for _, appt := range candidates {
		if !On(appt.Date, appt.Time, s.opts.Location).Before(now) {
			continue
		}
		if s.completeOne(ctx, appt) {
			completed++
		}
	}
	return completed, nil
}

// completeOne moves one appointment under its own storage timeout.
func (s *Service) completeOne(ctx context.Context, appt Appointment) bool {
	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	if _, err := s.transition(ctx, appt, StatusCompleted); err != nil {
		// not found means it was cancelled or completed in the meantime
		if !errors.Is(err, ErrAppointmentNotFound) {
			s.logger.Error("failed to complete appointment", "appointment_id", appt.ID, "error", err)
		}
		return false
	}
	s.logEvent(ctx, appt.ID, EventAppointmentCompleted, map[string]any{"reason": "elapsed"})
	return true
}

func (s *Service) transition(ctx context.Context, appt Appointment, to AppointmentStatus) (*Appointment, error) {
	if !appt.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, appt.Status, to)
	}
	return s.ledger.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, to)
}

func (s *Service) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.StorageTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opts.StorageTimeout)
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event payload", "event_type", eventType, "error", err)
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now().UTC(),
	}

	if err := s.ledger.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("failed to insert event log", "event_type", eventType, "appointment_id", appointmentID, "error", err)
	}
}

func (s *Service) observe(op string, start time.Time, errp *error) {
	s.metrics.ObserveOperation(op, Outcome(*errp), time.Since(start).Seconds())
}

// Outcome classifies an operation error into a short label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrOutsideWorkingHours):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrSlotTaken):
		return "slot_taken"
	case errors.Is(err, ErrAmbiguousAppointmentID), errors.Is(err, ErrInvalidStatusTransition):
		return "conflict"
	case errors.Is(err, ErrStorageUnavailable), errors.Is(err, context.DeadlineExceeded):
		return "unavailable"
	default:
		return "error"
	}
}

func normalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", fmt.Errorf("%w: phone number is required", ErrInvalidPhone)
	}
	return phone, nil
}

// normalizePrefix lowercases an id prefix and rejects anything that is not
// part of a canonical UUID, so stores may match it with LIKE safely.
func normalizePrefix(prefix string) (string, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if len(prefix) < minPrefixLen || len(prefix) > maxPrefixLen {
		return "", fmt.Errorf("%w: %q must be %d to %d characters", ErrInvalidAppointmentID, prefix, minPrefixLen, maxPrefixLen)
	}
	for _, c := range prefix {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && c != '-' {
			return "", fmt.Errorf("%w: %q", ErrInvalidAppointmentID, prefix)
		}
	}
	return prefix, nil
}
