package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appointmentColumnNames = []string{
	"id", "patient_id", "patient_name", "patient_phone", "doctor_id", "doctor_name", "department",
	"appointment_date", "appointment_time", "reason", "status", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*PgRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPgRepository(mock), mock
}

func sampleAppointment() Appointment {
	now := time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)
	return Appointment{
		ID:           uuid.MustParse("3f2b8c1d-6a1e-4c55-9d1a-0b8f7e6d5c4b"),
		PatientID:    uuid.MustParse("11111111-2222-4333-8444-555555555555"),
		PatientName:  "Jane Doe",
		PatientPhone: "+15550001",
		DoctorID:     "doc_001",
		DoctorName:   "Dr. Sarah Ahmed",
		Department:   "Cardiology",
		Date:         Date{2026, time.January, 28},
		Time:         MustTime("10:00"),
		Reason:       "checkup",
		Status:       StatusScheduled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func appointmentRows(appts ...Appointment) *pgxmock.Rows {
	rows := pgxmock.NewRows(appointmentColumnNames)
	for _, a := range appts {
		rows.AddRow(a.ID, a.PatientID, a.PatientName, a.PatientPhone, a.DoctorID, a.DoctorName, a.Department,
			a.Date.Time(), a.Time.String(), a.Reason, a.Status, a.CreatedAt, a.UpdatedAt)
	}
	return rows
}

func TestPgInsertIfFree(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := sampleAppointment()

	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(a.ID, a.PatientID, a.PatientName, a.PatientPhone, a.DoctorID, a.DoctorName, a.Department,
			a.Date.Time(), "10:00", a.Reason, a.CreatedAt).
		WillReturnRows(appointmentRows(a))

	got, err := repo.InsertIfFree(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, a.Date, got.Date)
	assert.Equal(t, a.Time, got.Time)
	assert.Equal(t, StatusScheduled, got.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgInsertIfFreeConflict(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := sampleAppointment()

	mock.ExpectQuery("ON CONFLICT").WillReturnError(pgx.ErrNoRows)

	_, err := repo.InsertIfFree(context.Background(), a)

	var taken *SlotTakenError
	require.ErrorAs(t, err, &taken)
	assert.Equal(t, a.Slot(), taken.Slot)
	assert.ErrorIs(t, err, ErrSlotTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgDriverFailureIsUnavailable(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT EXISTS").WillReturnError(errors.New("connection reset by peer"))

	_, err := repo.HasScheduled(context.Background(), sampleAppointment().Slot())
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Equal(t, "unavailable", Outcome(err))
}

func TestPgHasScheduled(t *testing.T) {
	repo, mock := newMockRepo(t)
	slot := sampleAppointment().Slot()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(slot.DoctorID, slot.Date.Time(), "10:00").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	booked, err := repo.HasScheduled(context.Background(), slot)
	require.NoError(t, err)
	assert.True(t, booked)
}

func TestPgFindActiveByPatientPhone(t *testing.T) {
	repo, mock := newMockRepo(t)
	first := sampleAppointment()
	second := sampleAppointment()
	second.ID = uuid.New()
	second.Time = MustTime("14:30")

	mock.ExpectQuery("FROM appointments").
		WithArgs("+15550001").
		WillReturnRows(appointmentRows(first, second))

	got, err := repo.FindActiveByPatientPhone(context.Background(), "+15550001")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, MustTime("14:30"), got[1].Time)
}

func TestPgCancelByPrefix(t *testing.T) {
	a := sampleAppointment()

	t.Run("single match", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		cancelled := a
		cancelled.Status = StatusCancelled

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").
			WithArgs("+15550001", "3f2b8c1d").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(a.ID))
		mock.ExpectQuery("UPDATE appointments").
			WithArgs(a.ID).
			WillReturnRows(appointmentRows(cancelled))
		mock.ExpectCommit()

		got, err := repo.CancelByPrefix(context.Background(), "3f2b8c1d", "+15550001")
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, got.Status)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no match", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").
			WithArgs("+15550009", "3f2b8c1d").
			WillReturnRows(pgxmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		_, err := repo.CancelByPrefix(context.Background(), "3f2b8c1d", "+15550009")
		assert.ErrorIs(t, err, ErrAppointmentNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ambiguous", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").
			WithArgs("+15550001", "3f2b").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(a.ID).AddRow(uuid.New()))
		mock.ExpectRollback()

		_, err := repo.CancelByPrefix(context.Background(), "3f2b", "+15550001")
		assert.ErrorIs(t, err, ErrAmbiguousAppointmentID)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgUpdateAppointmentStatusLostRace(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := sampleAppointment().ID

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, StatusCompleted, StatusScheduled).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.UpdateAppointmentStatus(context.Background(), id, StatusScheduled, StatusCompleted)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestPgFindDoctorByName(t *testing.T) {
	repo, mock := newMockRepo(t)
	hours := []byte(`[{"day":"Monday","start_time":"09:00","end_time":"17:00","is_available":true}]`)
	phone := "+1-229-213-9601"

	mock.ExpectQuery("FROM doctors").
		WithArgs("dr. sarah ahmed").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "specialization", "department", "phone", "email", "consultation_minutes", "working_hours"}).
			AddRow("doc_001", "Dr. Sarah Ahmed", "Cardiologist", "Cardiology", &phone, (*string)(nil), 30, hours))

	d, err := repo.FindDoctorByName(context.Background(), "dr. sarah ahmed")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Sarah Ahmed", d.Name)
	assert.Equal(t, phone, d.Phone)
	wh, ok := d.HoursOn(time.Monday)
	assert.True(t, ok)
	assert.Equal(t, MustTime("09:00"), wh.Start)

	mock.ExpectQuery("FROM doctors").WithArgs("Dr. Nobody").WillReturnError(pgx.ErrNoRows)
	_, err = repo.FindDoctorByName(context.Background(), "Dr. Nobody")
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}
