package timesheet

import (
	"encoding/json"
	"time"
)

// =============================================================================
// DATE - UTC day granularity (all entry dates live on day boundaries)
// =============================================================================

type Date struct {
	Time time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayStart normalizes an arbitrary timestamp to UTC midnight of its
// calendar day.
func DayStart(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

// Comparison
func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool  { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool  { return d.Time.Equal(other.Time) }
func (d Date) IsZero() bool           { return d.Time.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// Properties
func (d Date) Weekday() time.Weekday { return d.Time.Weekday() }
func (d Date) Unix() int64           { return d.Time.Unix() }

func (d Date) String() string { return d.Time.Format("2006-01-02") }

// JSON encoding uses the YYYY-MM-DD day form.
func (d Date) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDate parses a YYYY-MM-DD day.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// =============================================================================
// WEEK BOUNDARIES - single source of truth for entry-to-week assignment
// =============================================================================

// StartOfWeek rewinds a timestamp to the most recent UTC Sunday midnight.
// Every component that assigns an entry to a week MUST go through this
// function. The ledger and the detector both key weeks by its result.
func StartOfWeek(t time.Time) Date {
	d := DayStart(t)
	return d.AddDays(-int(d.Weekday()))
}

// WeekOf is StartOfWeek for a Date.
func WeekOf(d Date) Date { return d.AddDays(-int(d.Weekday())) }

// WeekRange returns the half-open interval [start, start+7d) covering one
// week. An entry belongs to the week iff start <= entry.Date < end.
func WeekRange(weekStart Date) (start, end Date) {
	return weekStart, weekStart.AddDays(7)
}

// WeekEnd returns the last day of the week (start + 6 days), used for the
// closed display range on ledger rows.
func WeekEnd(weekStart Date) Date { return weekStart.AddDays(6) }

// InWeek reports whether d falls inside the week starting at weekStart.
func InWeek(d Date, weekStart Date) bool {
	start, end := WeekRange(weekStart)
	return !d.Before(start) && d.Before(end)
}
