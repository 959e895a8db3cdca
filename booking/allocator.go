/*
allocator.go - Finds the first bookable day and the token to hand out

ALGORITHM:
  day := desired
  repeat up to Horizon (20) times:
    holiday?            -> day++ ; continue
    active := live appointments of (agency, day), minus the one being moved
    quota  := QuotaResolver.MaxFor(agency, day)
    len(active) < quota -> accept day
    otherwise           -> day++
  accepted day gets token yyyyMMdd*100 + (max(active tokens) % 100) + 1

  No accepted day within the horizon -> AllocationError.
  Sequence 100 would not fit two digits -> CapacityFormatError.

LOCKING:
  Allocate is a pure read. Reserve runs the same scan but holds the
  SlotLocker for each probed day while it decides and, on acceptance,
  while the caller's commit writes. That makes count-then-write atomic per
  agency-day for every writer that shares the locker.

DEADLINES:
  ctx is checked before every probe so the caller's deadline bounds the
  scan in wall-clock time as well as in iterations.
*/
package booking

import (
	"context"
)

// AllocationHorizon is how many days the scan may look ahead.
const AllocationHorizon = 20

type Allocator struct {
	Calendar *CalendarGate
	Quota    *QuotaResolver
	Ledger   *Ledger
	Horizon  int
}

func NewAllocator(cal *CalendarGate, quota *QuotaResolver, ledger *Ledger) *Allocator {
	return &Allocator{Calendar: cal, Quota: quota, Ledger: ledger, Horizon: AllocationHorizon}
}

// Slot is an accepted day together with the token assigned on it.
type Slot struct {
	AgencyID AgencyID
	Day      Day
	Token    Token
}

// Probe is the evaluation of one agency-day.
type Probe struct {
	Day     Day
	Holiday bool
	Quota   int
	Active  []Appointment
}

// Open reports whether the day can take one more appointment.
func (p Probe) Open() bool { return !p.Holiday && len(p.Active) < p.Quota }

// Probe evaluates a single day without deciding anything.
func (a *Allocator) Probe(ctx context.Context, agencyID AgencyID, day Day, exclude AppointmentID) (Probe, error) {
	p := Probe{Day: day}

	holiday, err := a.Calendar.IsHoliday(ctx, agencyID, day)
	if err != nil {
		return p, err
	}
	if holiday {
		p.Holiday = true
		return p, nil
	}

	p.Active, err = a.Ledger.ActiveAppointments(ctx, agencyID, day, exclude)
	if err != nil {
		return p, err
	}
	p.Quota, err = a.Quota.MaxFor(ctx, agencyID, day)
	if err != nil {
		return p, err
	}
	return p, nil
}

// Allocate returns the first bookable day at or after desired and its token.
// It takes no locks; the result is advisory unless written under Reserve.
func (a *Allocator) Allocate(ctx context.Context, agencyID AgencyID, desired Day, exclude AppointmentID) (Slot, error) {
	return a.Reserve(ctx, noLock{}, agencyID, desired, exclude, nil)
}

// Reserve scans like Allocate while holding locker on each probed day. When a
// day is accepted, commit runs before the lock is released; an error from
// commit aborts the reservation and is returned as-is.
func (a *Allocator) Reserve(ctx context.Context, locker SlotLocker, agencyID AgencyID, desired Day, exclude AppointmentID, commit func(context.Context, Slot) error) (Slot, error) {
	horizon := a.Horizon
	if horizon <= 0 {
		horizon = AllocationHorizon
	}

	day := desired
	for i := 0; i < horizon; i++ {
		if err := ctx.Err(); err != nil {
			return Slot{}, err
		}

		slot, accepted, err := a.tryDay(ctx, locker, agencyID, day, exclude, commit)
		if err != nil {
			return Slot{}, err
		}
		if accepted {
			return slot, nil
		}
		day = day.AddDays(1)
	}

	return Slot{}, &AllocationError{AgencyID: agencyID, Desired: desired, Horizon: horizon}
}

func (a *Allocator) tryDay(ctx context.Context, locker SlotLocker, agencyID AgencyID, day Day, exclude AppointmentID, commit func(context.Context, Slot) error) (Slot, bool, error) {
	release, err := locker.Lock(ctx, SlotKey{AgencyID: agencyID, Day: day})
	if err != nil {
		return Slot{}, false, err
	}
	defer release()

	p, err := a.Probe(ctx, agencyID, day, exclude)
	if err != nil {
		return Slot{}, false, err
	}
	if !p.Open() {
		return Slot{}, false, nil
	}

	token, err := NextToken(day, p.Active)
	if err != nil {
		return Slot{}, false, err
	}
	slot := Slot{AgencyID: agencyID, Day: day, Token: token}

	if commit != nil {
		if err := commit(ctx, slot); err != nil {
			return Slot{}, false, err
		}
	}
	return slot, true, nil
}
