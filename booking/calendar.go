package booking

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// CALENDAR GATE - Per-agency holiday calendar
// =============================================================================

// CalendarGate answers "is this agency closed on this day" and manages the
// holiday rows behind that answer.
type CalendarGate struct {
	Holidays  HolidayStore
	Directory Directory
}

func NewCalendarGate(holidays HolidayStore, dir Directory) *CalendarGate {
	return &CalendarGate{Holidays: holidays, Directory: dir}
}

// IsHoliday is true iff a non-deleted holiday matches (agency, day).
func (c *CalendarGate) IsHoliday(ctx context.Context, agencyID AgencyID, day Day) (bool, error) {
	h, err := c.Holidays.HolidayOn(ctx, agencyID, day)
	if err != nil {
		return false, fmt.Errorf("holiday lookup for agency %d on %s: %w", agencyID, day, err)
	}
	return h != nil, nil
}

// ListHolidays returns the live holidays of an agency, ascending by day.
func (c *CalendarGate) ListHolidays(ctx context.Context, agencyID AgencyID) ([]Holiday, error) {
	holidays, err := c.Holidays.ListHolidays(ctx, agencyID)
	if err != nil {
		return nil, err
	}
	if holidays == nil {
		holidays = []Holiday{}
	}
	return holidays, nil
}

// CreateHoliday closes the agency on day. Fails with NotFound for a missing
// or inactive agency and with Conflict when the day is already closed.
func (c *CalendarGate) CreateHoliday(ctx context.Context, agencyID AgencyID, day Day, reason string, actor Actor, at time.Time) (Holiday, error) {
	agency, err := c.Directory.GetAgency(ctx, agencyID)
	if err != nil {
		return Holiday{}, err
	}
	if !agency.Usable() {
		return Holiday{}, notFound("agency", int64(agencyID))
	}

	existing, err := c.Holidays.HolidayOn(ctx, agencyID, day)
	if err != nil {
		return Holiday{}, err
	}
	if existing != nil {
		return Holiday{}, &ConflictError{Reason: "holiday already exists for this date", AgencyID: agencyID, Day: day}
	}

	return c.Holidays.InsertHoliday(ctx, Holiday{
		AgencyID: agencyID,
		Day:      day,
		Reason:   reason,
		Audit:    Audit{CreatedBy: actor, CreatedOn: at},
	})
}

// DeleteHoliday soft-deletes. Missing or already-deleted holidays return false.
func (c *CalendarGate) DeleteHoliday(ctx context.Context, id HolidayID, actor Actor, at time.Time) (bool, error) {
	return c.Holidays.SoftDeleteHoliday(ctx, id, actor, at)
}
