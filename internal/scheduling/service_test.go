package scheduling_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/frontdesk-scheduling/internal/observability/metrics"
	"github.com/hackgods/frontdesk-scheduling/internal/scheduling"
	"github.com/hackgods/frontdesk-scheduling/internal/seed"
	"github.com/hackgods/frontdesk-scheduling/pkg/logging"
)

type fixture struct {
	svc   *scheduling.Service
	store *scheduling.MemoryRepository
}

func newFixture(t *testing.T, opts scheduling.Options) fixture {
	t.Helper()
	store, err := scheduling.NewMemoryRepository(seed.Departments(), seed.Doctors())
	require.NoError(t, err)

	logger := logging.New("error")
	if opts.Logger == nil {
		opts.Logger = logger
	}
	reg := scheduling.NewRegistry(store, nil, logger)
	return fixture{svc: scheduling.NewService(store, store, reg, opts), store: store}
}

func bookReq(name, phone, doctor, date, at string) scheduling.BookRequest {
	return scheduling.BookRequest{
		PatientName:  name,
		PatientPhone: phone,
		DoctorName:   doctor,
		Date:         date,
		Time:         at,
		Reason:       "checkup",
	}
}

func TestBookScenario(t *testing.T) {
	f := newFixture(t, scheduling.Options{})
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, bookReq("Jane Doe", "+15550001", "Dr. Sarah Ahmed", "2026-01-28", "10:00"))
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusScheduled, appt.Status)
	assert.Equal(t, "doc_001", appt.DoctorID)
	assert.Equal(t, "Cardiology", appt.Department)
	assert.Len(t, appt.ShortID(), scheduling.ShortIDLen)

	// same slot, different caller
	_, err = f.svc.Book(ctx, bookReq("John Roe", "+15550002", "Dr. Sarah Ahmed", "2026-01-28", "10:00"))
	var taken *scheduling.SlotTakenError
	require.ErrorAs(t, err, &taken)
	assert.Equal(t, scheduling.MustTime("10:00"), taken.Slot.Time)

	// Saturday
	res, err := f.svc.CheckAvailability(ctx, "Dr. Sarah Ahmed", "2026-01-31", "10:00")
	require.NoError(t, err)
	assert.Equal(t, scheduling.OutsideWorkingHour, res.Outcome)
	assert.Equal(t, time.Saturday, res.Weekday)
	assert.Nil(t, res.Hours)

	res, err = f.svc.CheckAvailability(ctx, "Dr. Sarah Ahmed", "2026-01-28", "10:00")
	require.NoError(t, err)
	assert.Equal(t, scheduling.AlreadyBooked, res.Outcome)

	cancelled, err := f.svc.CancelAppointment(ctx, appt.ShortID(), "+15550001")
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusCancelled, cancelled.Status)

	res, err = f.svc.CheckAvailability(ctx, "Dr. Sarah Ahmed", "2026-01-28", "10:00")
	require.NoError(t, err)
	assert.Equal(t, scheduling.Available, res.Outcome)

	// the freed slot can be booked again
	_, err = f.svc.Book(ctx, bookReq("John Roe", "+15550002", "Dr. Sarah Ahmed", "2026-01-28", "10:00"))
	require.NoError(t, err)
}

func TestBookConcurrentSameSlot(t *testing.T) {
	f := newFixture(t, scheduling.Options{})
	const callers = 50

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Book(context.Background(),
				bookReq(fmt.Sprintf("Caller %d", i), fmt.Sprintf("+1555%04d", i), "Dr. Sarah Ahmed", "2026-01-28", "10:00"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, scheduling.ErrSlotTaken):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, conflicts)
}

func TestClosedDaysAreNeverAvailable(t *testing.T) {
	f := newFixture(t, scheduling.Options{})
	ctx := context.Background()
	monday, err := scheduling.ParseDate("2026-01-26")
	require.NoError(t, err)

	for _, doc := range seed.Doctors() {
		for i := 0; i < 7; i++ {
			day := scheduling.DateOf(monday.Time().AddDate(0, 0, i))
			if _, works := doc.HoursOn(day.Weekday()); works {
				continue
			}
			for m := 0; m < 24*60; m += 30 {
				at := fmt.Sprintf("%02d:%02d", m/60, m%60)
				res, err := f.svc.CheckAvailability(ctx, doc.Name, day.String(), at)
				require.NoError(t, err)
				assert.NotEqual(t, scheduling.Available, res.Outcome, "%s on %s at %s", doc.Name, day, at)
			}
		}
	}
}

func TestBookValidation(t *testing.T) {
	f := newFixture(t, scheduling.Options{})
	ctx := context.Background()

	tests := []struct {
		name string
		req  scheduling.BookRequest
		want error
	}{
		{"bad date", bookReq("Jane", "+15550001", "Dr. Sarah Ahmed", "2026-1-28", "10:00"), scheduling.ErrInvalidDate},
		{"bad time", bookReq("Jane", "+15550001", "Dr. Sarah Ahmed", "2026-01-28", "25:00"), scheduling.ErrInvalidTime},
		{"no phone", bookReq("Jane", "  ", "Dr. Sarah Ahmed", "2026-01-28", "10:00"), scheduling.ErrInvalidPhone},
		{"no name", bookReq("", "+15550001", "Dr. Sarah Ahmed", "2026-01-28", "10:00"), scheduling.ErrValidation},
		{"unknown doctor", bookReq("Jane", "+15550001", "Dr. Nobody", "2026-01-28", "10:00"), scheduling.ErrDoctorNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Book(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 0, f.store.PatientCount(), "failed bookings register nobody")
}

func TestBookDoctorNameIsCaseInsensitive(t *testing.T) {
	f := newFixture(t, scheduling.Options{})

	appt, err := f.svc.Book(context.Background(), bookReq("Jane Doe", "+15550001", "dr. SARAH ahmed", "2026-01-28", "11:00"))
	require.NoError(t, err)
	assert.Equal(t, "Dr. Sarah Ahmed", appt.DoctorName)
}

func TestNamesAreTrimmedBeforeLookup(t *testing.T) {
	f := newFixture(t, scheduling.Options{})
	ctx := context.Background()
	const padded = "  Dr. Sarah Ahmed \t"

	res, err := f.svc.CheckAvailability(ctx, padded, "2026-01-28", "10:00")
	require.NoError(t, err)
	assert.Equal(t, scheduling.Available, res.Outcome)

	appt, err := f.svc.Book(ctx, bookReq("Jane Doe", "+15550001", padded, "2026-01-28", "10:00"))
	require.NoError(t, err)
	assert.Equal(t, "Dr. Sarah Ahmed", appt.DoctorName)

	sched, err := f.svc.GetDoctorSchedule(ctx, " Cardiology ", "2026-01-28")
	require.NoError(t, err)
	assert.Equal(t, "Cardiology", sched.Department)
	assert.NotEmpty(t, sched.Working)

	dept, err := f.svc.GetDepartment(ctx, " cardiology")
	require.NoError(t, err)
	assert.Equal(t, "Cardiology", dept.Name)
}

func TestBookOutsideHoursIsAcceptedUnlessEnforced(t *testing.T) {
	req := bookReq("Jane Doe", "+15550001", "Dr. Sarah Ahmed", "2026-01-31", "10:00")

	lenient := newFixture(t, scheduling.Options{})
	_, err := lenient.svc.Book(context.Background(), req)
	require.NoError(t, err)

	strict := newFixture(t, scheduling.Options{EnforceWorkingHours: true})
	_, err = strict.svc.Book(context.Background(), req)
	assert.ErrorIs(t, err, scheduling.ErrOutsideWorkingHours)

	req.Date = "2026-01-30"
	req.Time = "13:00"
	_, err = strict.svc.Book(context.Background(), req)
	assert.NoError(t, err, "end of Friday hours is inclusive")
}

func TestListPatientAppointments(t *testing.T) {
	f := newFixture(t, scheduling.Options{})
	ctx := context.Background()

	for _, slot := range [][2]string{{"2026-01-29", "09:00"}, {"2026-01-28", "15:00"}, {"2026-01-28", "10:00"}} {
		_, err := f.svc.Book(ctx, bookReq("Jane Doe", "+15550001", "Dr. Sarah Ahmed", slot[0], slot[1]))
		require.NoError(t, err)
	}
	other, err := f.svc.Book(ctx, bookReq("Jane Doe", "+15550001", "Dr. Michael Chen", "2026-01-28", "11:00"))
	require.NoError(t, err)
	_, err = f.svc.CancelAppointment(ctx, other.ID.String(), "+15550001")
	require.NoError(t, err)

	appts, err := f.svc.ListPatientAppointments(ctx, " +15550001 ")
	require.NoError(t, err)
	require.Len(t, appts, 3)
	assert.Equal(t, "2026-01-28 10:00", appts[0].Date.String()+" "+appts[0].Time.String())
	assert.Equal(t, "2026-01-28 15:00", appts[1].Date.String()+" "+appts[1].Time.String())
	assert.Equal(t, "2026-01-29 09:00", appts[2].Date.String()+" "+appts[2].Time.String())

	none, err := f.svc.ListPatientAppointments(ctx, "+15559999")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCancelAppointment(t *testing.T) {
	f := newFixture(t, scheduling.Options{})
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, bookReq("Jane Doe", "+15550001", "Dr. Sarah Ahmed", "2026-01-28", "10:00"))
	require.NoError(t, err)

	_, err = f.svc.CancelAppointment(ctx, appt.ShortID(), "+15550002")
	assert.ErrorIs(t, err, scheduling.ErrAppointmentNotFound, "other caller's phone")

	_, err = f.svc.CancelAppointment(ctx, "xyz!", "+15550001")
	assert.ErrorIs(t, err, scheduling.ErrInvalidAppointmentID)

	_, err = f.svc.CancelAppointment(ctx, "abc", "+15550001")
	assert.ErrorIs(t, err, scheduling.ErrInvalidAppointmentID, "too short")

	_, err = f.svc.CancelAppointment(ctx, "%%%%", "+15550001")
	assert.ErrorIs(t, err, scheduling.ErrInvalidAppointmentID, "wildcards rejected")

	upper := fmt.Sprintf("%X", appt.ID[:4])
	cancelled, err := f.svc.CancelAppointment(ctx, upper, "+15550001")
	require.NoError(t, err)
	assert.Equal(t, appt.ID, cancelled.ID)

	_, err = f.svc.CancelAppointment(ctx, appt.ShortID(), "+15550001")
	assert.ErrorIs(t, err, scheduling.ErrAppointmentNotFound, "already cancelled")
}

func TestCancelAmbiguousPrefix(t *testing.T) {
	f := newFixture(t, scheduling.Options{})
	ctx := context.Background()

	for i, at := range []string{"10:00", "10:30"} {
		_, err := f.store.InsertIfFree(ctx, scheduling.Appointment{
			ID:           uuid.MustParse(fmt.Sprintf("aaaa000%d-0000-4000-8000-000000000000", i)),
			PatientPhone: "+15550001",
			DoctorID:     "doc_001",
			Date:         scheduling.Date{Year: 2026, Month: time.January, Day: 28},
			Time:         scheduling.MustTime(at),
		})
		require.NoError(t, err)
	}

	_, err := f.svc.CancelAppointment(ctx, "aaaa", "+15550001")
	assert.ErrorIs(t, err, scheduling.ErrAmbiguousAppointmentID)

	cancelled, err := f.svc.CancelAppointment(ctx, "aaaa0001", "+15550001")
	require.NoError(t, err)
	assert.Equal(t, scheduling.MustTime("10:30"), cancelled.Time)
}

func TestGetDoctorSchedule(t *testing.T) {
	f := newFixture(t, scheduling.Options{})
	ctx := context.Background()

	sched, err := f.svc.GetDoctorSchedule(ctx, "cardiology", "2026-01-30")
	require.NoError(t, err)
	assert.Equal(t, time.Friday, sched.Weekday)
	require.Len(t, sched.Working, 1)
	assert.Equal(t, scheduling.MustTime("13:00"), sched.Working[0].Hours.End)
	assert.Empty(t, sched.Off)

	sched, err = f.svc.GetDoctorSchedule(ctx, "Cardiology", "2026-01-31")
	require.NoError(t, err)
	assert.Empty(t, sched.Working)
	require.Len(t, sched.Off, 1)

	_, err = f.svc.GetDoctorSchedule(ctx, "Dermatology", "2026-01-30")
	assert.ErrorIs(t, err, scheduling.ErrNoDoctorsInDepartment)
	assert.ErrorIs(t, err, scheduling.ErrNotFound)

	_, err = f.svc.GetDoctorSchedule(ctx, "Cardiology", "Friday")
	assert.ErrorIs(t, err, scheduling.ErrInvalidDate)
}

func TestDepartments(t *testing.T) {
	f := newFixture(t, scheduling.Options{})
	ctx := context.Background()

	depts, err := f.svc.ListDepartments(ctx)
	require.NoError(t, err)
	assert.Len(t, depts, 5)

	d, err := f.svc.GetDepartment(ctx, "NEUROLOGY")
	require.NoError(t, err)
	assert.Equal(t, "dept_002", d.ID)

	_, err = f.svc.GetDepartment(ctx, "Dermatology")
	assert.ErrorIs(t, err, scheduling.ErrDepartmentNotFound)
}

func TestCompleteElapsed(t *testing.T) {
	now := time.Date(2026, 1, 28, 10, 30, 0, 0, time.UTC)
	f := newFixture(t, scheduling.Options{Clock: func() time.Time { return now }})
	ctx := context.Background()

	for _, slot := range [][2]string{{"2026-01-27", "09:00"}, {"2026-01-28", "10:00"}, {"2026-01-28", "10:30"}, {"2026-01-28", "11:00"}} {
		_, err := f.svc.Book(ctx, bookReq("Jane Doe", "+15550001", "Dr. Sarah Ahmed", slot[0], slot[1]))
		require.NoError(t, err)
	}

	n, err := f.svc.CompleteElapsed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := f.svc.ListPatientAppointments(ctx, "+15550001")
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, scheduling.MustTime("10:30"), left[0].Time)

	// a completed slot is free again
	res, err := f.svc.CheckAvailability(ctx, "Dr. Sarah Ahmed", "2026-01-28", "10:00")
	require.NoError(t, err)
	assert.Equal(t, scheduling.Available, res.Outcome)

	n, err = f.svc.CompleteElapsed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	var completed int
	for _, ev := range f.store.Events() {
		if ev.EventType == scheduling.EventAppointmentCompleted {
			completed++
		}
	}
	assert.Equal(t, 2, completed)
}

// deadlineLedger records whether ledger calls arrive with a deadline.
type deadlineLedger struct {
	*scheduling.MemoryRepository
	mu        sync.Mutex
	unbounded []string
}

func (l *deadlineLedger) check(ctx context.Context, op string) {
	if _, ok := ctx.Deadline(); !ok {
		l.mu.Lock()
		l.unbounded = append(l.unbounded, op)
		l.mu.Unlock()
	}
}

func (l *deadlineLedger) FindScheduledBefore(ctx context.Context, day scheduling.Date) ([]scheduling.Appointment, error) {
	l.check(ctx, "find_scheduled_before")
	return l.MemoryRepository.FindScheduledBefore(ctx, day)
}

func (l *deadlineLedger) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to scheduling.AppointmentStatus) (*scheduling.Appointment, error) {
	l.check(ctx, "update_status")
	return l.MemoryRepository.UpdateAppointmentStatus(ctx, id, from, to)
}

func (l *deadlineLedger) InsertEvent(ctx context.Context, ev scheduling.EventLog) error {
	l.check(ctx, "insert_event")
	return l.MemoryRepository.InsertEvent(ctx, ev)
}

func TestCompleteElapsedBoundsStorageCalls(t *testing.T) {
	store, err := scheduling.NewMemoryRepository(seed.Departments(), seed.Doctors())
	require.NoError(t, err)
	ledger := &deadlineLedger{MemoryRepository: store}
	logger := logging.New("error")
	now := time.Date(2026, 1, 29, 8, 0, 0, 0, time.UTC)
	svc := scheduling.NewService(store, ledger, scheduling.NewRegistry(store, nil, logger), scheduling.Options{
		StorageTimeout: time.Second,
		Clock:          func() time.Time { return now },
		Logger:         logger,
	})
	ctx := context.Background()

	_, err = svc.Book(ctx, bookReq("Jane Doe", "+15550001", "Dr. Sarah Ahmed", "2026-01-28", "10:00"))
	require.NoError(t, err)
	ledger.unbounded = nil

	n, err := svc.CompleteElapsed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, ledger.unbounded)
}

func TestServiceRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewSchedulingMetrics(reg)
	f := newFixture(t, scheduling.Options{Metrics: m})
	ctx := context.Background()

	_, err := f.svc.Book(ctx, bookReq("Jane Doe", "+15550001", "Dr. Sarah Ahmed", "2026-01-28", "10:00"))
	require.NoError(t, err)
	_, err = f.svc.Book(ctx, bookReq("John Roe", "+15550002", "Dr. Sarah Ahmed", "2026-01-28", "10:00"))
	require.Error(t, err)

	n, err := testutil.GatherAndCount(reg, "frontdesk_scheduling_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per outcome")
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", scheduling.Outcome(nil))
	assert.Equal(t, "invalid", scheduling.Outcome(scheduling.ErrInvalidDate))
	assert.Equal(t, "not_found", scheduling.Outcome(scheduling.ErrDoctorNotFound))
	assert.Equal(t, "slot_taken", scheduling.Outcome(&scheduling.SlotTakenError{}))
	assert.Equal(t, "conflict", scheduling.Outcome(scheduling.ErrAmbiguousAppointmentID))
	assert.Equal(t, "unavailable", scheduling.Outcome(context.DeadlineExceeded))
	assert.Equal(t, "error", scheduling.Outcome(errors.New("boom")))
}
