package booking

import (
	"fmt"
	"time"
)

// =============================================================================
// DAY - Calendar date at day granularity (the unit of booking)
// =============================================================================

// Day is a calendar date normalized to midnight UTC. Two Days built from the
// same year/month/day are always Equal regardless of the source time zone.
type Day struct {
	Time time.Time
}

const (
	dayLayout     = "2006-01-02"
	compactLayout = "20060102"
)

// Constructors
func NewDay(year int, month time.Month, day int) Day {
	return Day{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf keeps the calendar date of t as seen in t's own location.
func DayOf(t time.Time) Day { return NewDay(t.Year(), t.Month(), t.Day()) }

// ParseDay accepts yyyy-MM-dd.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid date %q, use yyyy-MM-dd: %w", s, err)
	}
	return DayOf(t), nil
}

// MustParseDay panics on malformed input. Intended for tests and fixtures.
func MustParseDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Day) Before(other Day) bool { return d.Time.Before(other.Time) }
func (d Day) After(other Day) bool  { return d.Time.After(other.Time) }
func (d Day) Equal(other Day) bool  { return d.Time.Equal(other.Time) }
func (d Day) IsZero() bool          { return d.Time.IsZero() }

// Arithmetic
func (d Day) AddDays(n int) Day { return DayOf(d.Time.AddDate(0, 0, n)) }

// DaysUntil returns the number of whole days from d to other (negative if other is earlier).
func (d Day) DaysUntil(other Day) int { return int(other.Time.Sub(d.Time).Hours() / 24) }

// Formatting
func (d Day) String() string  { return d.Time.Format(dayLayout) }
func (d Day) Compact() string { return d.Time.Format(compactLayout) }

// Number returns the date as the integer yyyyMMdd.
func (d Day) Number() int64 {
	return int64(d.Time.Year())*10000 + int64(d.Time.Month())*100 + int64(d.Time.Day())
}
