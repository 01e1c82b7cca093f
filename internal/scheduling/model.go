package scheduling

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// allowedTransitions lists every legal status change. Anything else is rejected.
var allowedTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusScheduled: {StatusCancelled, StatusCompleted},
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// CanTransition reports whether an appointment in status s may move to next.
func (s AppointmentStatus) CanTransition(next AppointmentStatus) bool {
	for _, to := range allowedTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// WorkingHours is one day entry of a doctor's weekly template.
type WorkingHours struct {
	Day       time.Weekday
	Start     TimeOfDay
	End       TimeOfDay
	Available bool
}

// Covers reports whether t falls within the entry, inclusive at both ends.
func (w WorkingHours) Covers(t TimeOfDay) bool {
	return w.Start <= t && t <= w.End
}

type workingHoursJSON struct {
	Day         string    `json:"day"`
	StartTime   TimeOfDay `json:"start_time"`
	EndTime     TimeOfDay `json:"end_time"`
	IsAvailable bool      `json:"is_available"`
}

func (w WorkingHours) MarshalJSON() ([]byte, error) {
	return json.Marshal(workingHoursJSON{
		Day:         w.Day.String(),
		StartTime:   w.Start,
		EndTime:     w.End,
		IsAvailable: w.Available,
	})
}

func (w *WorkingHours) UnmarshalJSON(b []byte) error {
	var raw workingHoursJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	day, err := ParseWeekday(raw.Day)
	if err != nil {
		return err
	}
	*w = WorkingHours{Day: day, Start: raw.StartTime, End: raw.EndTime, Available: raw.IsAvailable}
	return nil
}

type Doctor struct {
	ID                  string         `json:"doctor_id"`
	Name                string         `json:"name"`
	Specialization      string         `json:"specialization"`
	Department          string         `json:"department"`
	Phone               string         `json:"phone,omitempty"`
	Email               string         `json:"email,omitempty"`
	ConsultationMinutes int            `json:"consultation_duration"`
	WorkingHours        []WorkingHours `json:"working_hours"`
}

// HoursOn returns the doctor's entry for wd when the doctor works that day.
func (d Doctor) HoursOn(wd time.Weekday) (WorkingHours, bool) {
	for _, wh := range d.WorkingHours {
		if wh.Day == wd {
			return wh, wh.Available
		}
	}
	return WorkingHours{}, false
}

// Validate checks the weekly template: one entry per weekday at most and
// start not after end on working days.
func (d Doctor) Validate() error {
	if strings.TrimSpace(d.ID) == "" || strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("doctor id and name are required")
	}
	seen := make(map[time.Weekday]bool, len(d.WorkingHours))
	for _, wh := range d.WorkingHours {
		if seen[wh.Day] {
			return fmt.Errorf("doctor %s: duplicate working hours for %s", d.ID, wh.Day)
		}
		seen[wh.Day] = true
		if wh.Available && wh.Start > wh.End {
			return fmt.Errorf("doctor %s: %s starts after it ends", d.ID, wh.Day)
		}
	}
	return nil
}

type Department struct {
	ID          string   `json:"department_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Phone       string   `json:"phone"`
	Services    []string `json:"services"`
}

type Patient struct {
	ID          uuid.UUID
	Name        string
	Phone       string
	Email       *string
	DateOfBirth *string
	Address     *string
	CreatedAt   time.Time
}

// Slot is the unit of booking contention.
type Slot struct {
	DoctorID string
	Date     Date
	Time     TimeOfDay
}

func (s Slot) String() string {
	return fmt.Sprintf("%s@%s %s", s.DoctorID, s.Date, s.Time)
}

// Appointment keeps a snapshot of patient and doctor display fields taken
// at booking time.
type Appointment struct {
	ID           uuid.UUID
	PatientID    uuid.UUID
	PatientName  string
	PatientPhone string
	DoctorID     string
	DoctorName   string
	Department   string
	Date         Date
	Time         TimeOfDay
	Reason       string
	Status       AppointmentStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ShortIDLen is how many leading characters of an appointment id callers use.
const ShortIDLen = 8

func (a Appointment) ShortID() string {
	return a.ID.String()[:ShortIDLen]
}

func (a Appointment) Slot() Slot {
	return Slot{DoctorID: a.DoctorID, Date: a.Date, Time: a.Time}
}

// Before orders appointments by date, then time.
func (a Appointment) Before(o Appointment) bool {
	if c := a.Date.Compare(o.Date); c != 0 {
		return c < 0
	}
	return a.Time < o.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
