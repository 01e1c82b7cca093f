package scheduling

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day with no zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate accepts only YYYY-MM-DD with zero-padded month and day.
func ParseDate(s string) (Date, error) {
	if len(s) != len(dateLayout) {
		return Date{}, fmt.Errorf("%w: %q, expected YYYY-MM-DD", ErrInvalidDate, s)
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q, expected YYYY-MM-DD", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	return d.Time().Compare(o.Time())
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeOfDay is minutes since midnight. It orders the same way as the
// zero-padded "HH:MM" strings it is parsed from.
type TimeOfDay int

// ParseTimeOfDay accepts only zero-padded 24-hour HH:MM.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' || !isDigits(s[:2]) || !isDigits(s[3:]) {
		return 0, fmt.Errorf("%w: %q, expected HH:MM (24-hour)", ErrInvalidTime, s)
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("%w: %q is not a valid time of day", ErrInvalidTime, s)
	}
	return TimeOfDay(h*60 + m), nil
}

// MustTime is ParseTimeOfDay for literals known to be valid.
func MustTime(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// On combines the day and time of day in loc.
func On(d Date, t TimeOfDay, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour(), t.Minute(), 0, 0, loc)
}

// ParseWeekday maps an English weekday name, in any case, to time.Weekday.
func ParseWeekday(s string) (time.Weekday, error) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.EqualFold(wd.String(), strings.TrimSpace(s)) {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
