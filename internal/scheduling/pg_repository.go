package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of *pgxpool.Pool the store uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ Store = (*PgRepository)(nil)

type PgRepository struct {
	db DBTX
}

func NewPgRepository(db DBTX) *PgRepository {
	return &PgRepository{db: db}
}

const appointmentColumns = `id, patient_id, patient_name, patient_phone, doctor_id, doctor_name, department,
		       appointment_date, appointment_time, reason, status, created_at, updated_at`

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var phone, email *string
	var hours []byte

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Specialization,
		&d.Department,
		&phone,
		&email,
		&d.ConsultationMinutes,
		&hours,
	)
	if err != nil {
		return nil, err
	}

	if phone != nil {
		d.Phone = *phone
	}
	if email != nil {
		d.Email = *email
	}
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &d.WorkingHours); err != nil {
			return nil, fmt.Errorf("decode working hours for %s: %w", d.ID, err)
		}
	}
	return &d, nil
}

func scanDepartment(row pgx.Row) (*Department, error) {
	var d Department
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Description,
		&d.Location,
		&d.Phone,
		&d.Services,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Phone,
		&p.Email,
		&p.DateOfBirth,
		&p.Address,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var day time.Time
	var at string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PatientName,
		&a.PatientPhone,
		&a.DoctorID,
		&a.DoctorName,
		&a.Department,
		&day,
		&at,
		&a.Reason,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Date = DateOf(day)
	if a.Time, err = ParseTimeOfDay(at); err != nil {
		return nil, fmt.Errorf("appointment %s: %w", a.ID, err)
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Directory

func (r *PgRepository) FindDoctorByName(ctx context.Context, name string) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, specialization, department, phone, email, consultation_minutes, working_hours
		FROM doctors
		WHERE lower(name) = lower($1)
		ORDER BY id
		LIMIT 1
	`, name)
	d, err := scanDoctor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, unavailable("find doctor", err)
	}
	return d, nil
}

func (r *PgRepository) FindDoctorsByDepartment(ctx context.Context, department string) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, specialization, department, phone, email, consultation_minutes, working_hours
		FROM doctors
		WHERE lower(department) = lower($1)
		ORDER BY name
	`, department)
	if err != nil {
		return nil, unavailable("find doctors by department", err)
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, unavailable("scan doctor", err)
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("find doctors by department", err)
	}
	return result, nil
}

func (r *PgRepository) FindDepartmentByName(ctx context.Context, name string) (*Department, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, description, location, phone, services
		FROM departments
		WHERE lower(name) = lower($1)
		LIMIT 1
	`, name)
	d, err := scanDepartment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDepartmentNotFound
		}
		return nil, unavailable("find department", err)
	}
	return d, nil
}

func (r *PgRepository) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, description, location, phone, services
		FROM departments
		ORDER BY id
	`)
	if err != nil {
		return nil, unavailable("list departments", err)
	}
	defer rows.Close()

	var result []Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, unavailable("scan department", err)
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list departments", err)
	}
	return result, nil
}

// Patients

func (r *PgRepository) FindPatientByPhone(ctx context.Context, phone string) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, phone, email, date_of_birth, address, created_at
		FROM patients
		WHERE phone = $1
		ORDER BY created_at
		LIMIT 1
	`, phone)
	p, err := scanPatient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, unavailable("find patient", err)
	}
	return p, nil
}

func (r *PgRepository) CreatePatient(ctx context.Context, p Patient) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO patients (id, name, phone, email, date_of_birth, address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, name, phone, email, date_of_birth, address, created_at
	`, p.ID, p.Name, p.Phone, p.Email, p.DateOfBirth, p.Address, p.CreatedAt)
	created, err := scanPatient(row)
	if err != nil {
		return nil, unavailable("create patient", err)
	}
	return created, nil
}

// Ledger

// InsertIfFree relies on the partial unique index over scheduled slots: the
// conflict check and the insert are one statement, and a conflicting row
// makes the statement return nothing.
func (r *PgRepository) InsertIfFree(ctx context.Context, a Appointment) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, patient_name, patient_phone, doctor_id, doctor_name, department,
		                          appointment_date, appointment_time, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'scheduled', $11, $11)
		ON CONFLICT (doctor_id, appointment_date, appointment_time) WHERE status = 'scheduled'
		DO NOTHING
		RETURNING `+appointmentColumns,
		a.ID, a.PatientID, a.PatientName, a.PatientPhone, a.DoctorID, a.DoctorName, a.Department,
		a.Date.Time(), a.Time.String(), a.Reason, a.CreatedAt)

	created, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &SlotTakenError{Slot: a.Slot()}
		}
		return nil, unavailable("insert appointment", err)
	}
	return created, nil
}

func (r *PgRepository) HasScheduled(ctx context.Context, slot Slot) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND appointment_date = $2 AND appointment_time = $3 AND status = 'scheduled'
		)
	`, slot.DoctorID, slot.Date.Time(), slot.Time.String()).Scan(&exists)
	if err != nil {
		return false, unavailable("check slot", err)
	}
	return exists, nil
}

func (r *PgRepository) FindActiveByPatientPhone(ctx context.Context, phone string) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_phone = $1 AND status = 'scheduled'
		ORDER BY appointment_date, appointment_time
	`, phone)
	if err != nil {
		return nil, unavailable("list patient appointments", err)
	}
	result, err := collectAppointments(rows)
	if err != nil {
		return nil, unavailable("list patient appointments", err)
	}
	return result, nil
}

func (r *PgRepository) CancelByPrefix(ctx context.Context, prefix, phone string) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, unavailable("begin cancel", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Two rows are enough to tell a unique match from an ambiguous one.
	rows, err := tx.Query(ctx, `
		SELECT id
		FROM appointments
		WHERE patient_phone = $1 AND status = 'scheduled' AND id::text LIKE $2 || '%'
		ORDER BY created_at
		LIMIT 2
		FOR UPDATE
	`, phone, prefix)
	if err != nil {
		return nil, unavailable("find appointment by prefix", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, unavailable("find appointment by prefix", err)
	}

	switch len(ids) {
	case 0:
		return nil, ErrAppointmentNotFound
	case 1:
	default:
		return nil, ErrAmbiguousAppointmentID
	}

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'scheduled'
		RETURNING `+appointmentColumns, ids[0])
	cancelled, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, unavailable("cancel appointment", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, unavailable("commit cancel", err)
	}
	return cancelled, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns, id, to, from)

	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, unavailable("update appointment status", err)
	}
	return a, nil
}

func (r *PgRepository) FindScheduledBefore(ctx context.Context, day Date) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'scheduled'
		  AND appointment_date <= $1
		ORDER BY appointment_date, appointment_time
	`, day.Time())
	if err != nil {
		return nil, unavailable("find scheduled appointments", err)
	}
	result, err := collectAppointments(rows)
	if err != nil {
		return nil, unavailable("find scheduled appointments", err)
	}
	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO appointment_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
