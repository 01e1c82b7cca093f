package scheduling

import (
	"context"
	"fmt"
	"time"
)

type AvailabilityOutcome string

const (
	Available          AvailabilityOutcome = "available"
	OutsideWorkingHour AvailabilityOutcome = "outside_working_hours"
	AlreadyBooked      AvailabilityOutcome = "already_booked"
)

// Availability is the evaluator's verdict for one slot. Hours is set when the
// doctor works that weekday.
type Availability struct {
	Outcome AvailabilityOutcome
	Doctor  Doctor
	Date    Date
	Time    TimeOfDay
	Weekday time.Weekday
	Hours   *WorkingHours
}

// Evaluator decides whether a doctor can be booked at a date and time.
// Its answer is advisory; only Ledger.InsertIfFree guards a booking.
type Evaluator struct {
	ledger Ledger
}

func NewEvaluator(ledger Ledger) *Evaluator {
	return &Evaluator{ledger: ledger}
}

func (e *Evaluator) Evaluate(ctx context.Context, doctor Doctor, date Date, at TimeOfDay) (Availability, error) {
	res := Availability{
		Doctor:  doctor,
		Date:    date,
		Time:    at,
		Weekday: date.Weekday(),
	}

	hours, ok := doctor.HoursOn(res.Weekday)
	if !ok {
		res.Outcome = OutsideWorkingHour
		return res, nil
	}
	res.Hours = &hours

	if !hours.Covers(at) {
		res.Outcome = OutsideWorkingHour
		return res, nil
	}

	booked, err := e.ledger.HasScheduled(ctx, Slot{DoctorID: doctor.ID, Date: date, Time: at})
	if err != nil {
		return Availability{}, fmt.Errorf("check existing appointment: %w", err)
	}
	if booked {
		res.Outcome = AlreadyBooked
		return res, nil
	}

	res.Outcome = Available
	return res, nil
}
