package booking_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/warp/agency-booking/booking"
	"github.com/warp/agency-booking/booking/store"
)

// =============================================================================
// CREATE
// =============================================================================

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	long := make([]byte, booking.MaxNotesLength+1)
	for i := range long {
		long[i] = 'x'
	}

	cases := map[string]struct {
		in    booking.CreateInput
		actor booking.Actor
	}{
		"agency id":   {booking.CreateInput{AgencyID: 0, CustomerID: f.customer, Desired: today}, clerk},
		"customer id": {booking.CreateInput{AgencyID: f.agency, CustomerID: -1, Desired: today}, clerk},
		"no date":     {booking.CreateInput{AgencyID: f.agency, CustomerID: f.customer}, clerk},
		"past date":   {booking.CreateInput{AgencyID: f.agency, CustomerID: f.customer, Desired: today.AddDays(-1)}, clerk},
		"notes":       {booking.CreateInput{AgencyID: f.agency, CustomerID: f.customer, Desired: today, Notes: string(long)}, clerk},
		"no actor":    {booking.CreateInput{AgencyID: f.agency, CustomerID: f.customer, Desired: today}, "  "},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateAppointment(ctx, c.in, c.actor)
			assert.ErrorIs(t, err, booking.ErrValidation)
		})
	}
}

func TestCreate_UnknownOrInactiveAgency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	inactive, err := f.mem.SaveAgency(ctx, booking.Agency{Name: "Closed", Active: false})
	require.NoError(t, err)

	for _, id := range []booking.AgencyID{999, inactive.ID} {
		_, err := f.svc.CreateAppointment(ctx, booking.CreateInput{AgencyID: id, CustomerID: f.customer, Desired: today}, clerk)
		assert.ErrorIs(t, err, booking.ErrNotFound)
	}
}

func TestCreate_UnknownCustomer(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateAppointment(context.Background(),
		booking.CreateInput{AgencyID: f.agency, CustomerID: 42, Desired: today}, clerk)

	var nf *booking.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "customer", nf.Resource)
}

func TestCreate_StampsActorAndAudits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	appt := f.book(t, today)

	assert.Equal(t, booking.StatusBooked, appt.Status)
	assert.Equal(t, clerk, appt.CreatedBy)
	assert.Nil(t, appt.ModifiedOn)

	trail, err := f.svc.AuditTrail(ctx, appt.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, booking.AuditAppointmentBooked, trail[0].Action)
	assert.Equal(t, clerk, trail[0].Actor)
	assert.NotEmpty(t, trail[0].ID)
}

// =============================================================================
// UPDATE / CANCEL
// =============================================================================

func TestUpdate_SameDateKeepsToken(t *testing.T) {
	// GIVEN: An appointment on D
	// WHEN: Updating its date to D
	// THEN: Date and token unchanged, modification stamped

	ctx := context.Background()
	f := newFixture(t)
	d := today.AddDays(1)
	appt := f.book(t, d)

	got, err := f.svc.UpdateAppointment(ctx, appt.ID, booking.Patch{Day: dayPtr(d)}, "clerk-2")
	require.NoError(t, err)

	assert.True(t, got.Day.Equal(d))
	assert.Equal(t, appt.Token, got.Token)
	assert.Equal(t, booking.Actor("clerk-2"), got.ModifiedBy)
	require.NotNil(t, got.ModifiedOn)
}

func TestUpdate_Reschedule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setQuota(t, 1)
	d := today.AddDays(1)
	appt := f.book(t, d)
	f.book(t, d.AddDays(1))

	// D+1 is full, so moving to D+1 lands on D+2.
	got, err := f.svc.UpdateAppointment(ctx, appt.ID, booking.Patch{Day: dayPtr(d.AddDays(1))}, clerk)
	require.NoError(t, err)
	assert.True(t, got.Day.Equal(d.AddDays(2)))
	assert.Equal(t, token(t, d.AddDays(2), 1), got.Token)

	// The vacated day is free again.
	assert.True(t, f.book(t, d).Day.Equal(d))

	trail, err := f.svc.AuditTrail(ctx, appt.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, booking.AuditAppointmentRescheduled, trail[1].Action)
}

func TestUpdate_RescheduleDoesNotCountItself(t *testing.T) {
	// GIVEN: Quota 1, the appointment sits on D
	// WHEN: Rescheduling earlier to D-1 which is full, scan reaches D
	// THEN: D is accepted because the appointment itself is excluded, token kept

	ctx := context.Background()
	f := newFixture(t)
	f.setQuota(t, 1)
	d := today.AddDays(2)
	f.book(t, d.AddDays(-1))
	appt := f.book(t, d)

	got, err := f.svc.UpdateAppointment(ctx, appt.ID, booking.Patch{Day: dayPtr(d.AddDays(-1))}, clerk)
	require.NoError(t, err)
	assert.True(t, got.Day.Equal(d))
	assert.Equal(t, appt.Token, got.Token)
}

func TestUpdate_NotesOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	appt := f.book(t, today)

	got, err := f.svc.UpdateAppointment(ctx, appt.ID, booking.Patch{Notes: strPtr("bring documents")}, clerk)
	require.NoError(t, err)
	assert.Equal(t, "bring documents", got.Notes)

	got, err = f.svc.UpdateAppointment(ctx, appt.ID, booking.Patch{Notes: strPtr("")}, clerk)
	require.NoError(t, err)
	assert.Empty(t, got.Notes)
}

func TestUpdate_StatusIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	appt := f.book(t, today)

	got, err := f.svc.UpdateAppointment(ctx, appt.ID, booking.Patch{Status: statusPtr("cancelled")}, clerk)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, got.Status)

	_, err = f.svc.UpdateAppointment(ctx, f.book(t, today).ID, booking.Patch{Status: statusPtr("Pending")}, clerk)
	assert.ErrorIs(t, err, booking.ErrValidation)
}

func TestUpdate_NothingLeavesCancelled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	appt := f.book(t, today)
	_, err := f.svc.CancelAppointment(ctx, appt.ID, clerk)
	require.NoError(t, err)

	_, err = f.svc.UpdateAppointment(ctx, appt.ID, booking.Patch{Status: statusPtr(booking.StatusBooked)}, clerk)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)

	_, err = f.svc.UpdateAppointment(ctx, appt.ID, booking.Patch{Day: dayPtr(today.AddDays(3))}, clerk)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)

	got, err := f.svc.UpdateAppointment(ctx, appt.ID, booking.Patch{Notes: strPtr("called back")}, clerk)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, got.Status)
}

func TestUpdate_CancelAndMoveRejected(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, today)

	_, err := f.svc.UpdateAppointment(context.Background(), appt.ID, booking.Patch{
		Day:    dayPtr(today.AddDays(1)),
		Status: statusPtr(booking.StatusCancelled),
	}, clerk)
	assert.ErrorIs(t, err, booking.ErrValidation)
}

func TestUpdate_Missing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.UpdateAppointment(context.Background(), 77, booking.Patch{Notes: strPtr("x")}, clerk)
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestUpdate_KeepingPastDateAllowed(t *testing.T) {
	// GIVEN: An appointment on D, and a clock that has moved past D
	// WHEN: Updating with date D and new notes, then with another past date
	// THEN: Keeping D succeeds, moving to a past date does not

	ctx := context.Background()
	f := newFixture(t)
	appt := f.book(t, today)

	later := booking.NewService(f.mem,
		booking.WithClock(func() time.Time { return today.AddDays(2).Time.Add(9 * time.Hour) }),
		booking.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	got, err := later.UpdateAppointment(ctx, appt.ID, booking.Patch{Day: dayPtr(today), Notes: strPtr("arrived late")}, clerk)
	require.NoError(t, err)
	assert.True(t, got.Day.Equal(today))
	assert.Equal(t, appt.Token, got.Token)
	assert.Equal(t, "arrived late", got.Notes)

	_, err = later.UpdateAppointment(ctx, appt.ID, booking.Patch{Day: dayPtr(today.AddDays(1))}, clerk)
	assert.ErrorIs(t, err, booking.ErrValidation)
}

func TestCancel_Idempotent(t *testing.T) {
	// GIVEN: Quota 2 with two bookings on D, one cancelled
	// WHEN: Cancelling it again
	// THEN: Row unchanged and only one slot is free

	ctx := context.Background()
	f := newFixture(t)
	f.setQuota(t, 2)
	d := today.AddDays(1)
	appt := f.book(t, d)
	f.book(t, d)

	first, err := f.svc.CancelAppointment(ctx, appt.ID, clerk)
	require.NoError(t, err)
	second, err := f.svc.CancelAppointment(ctx, appt.ID, "clerk-2")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, appt.Token, second.Token)

	av, err := f.svc.Availability(ctx, f.agency, d)
	require.NoError(t, err)
	assert.Equal(t, 1, av.Remaining)

	trail, err := f.svc.AuditTrail(ctx, appt.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 2)
}

// stallingStore only answers GetAppointment after a second, or earlier with
// the context error.
type stallingStore struct{ *store.Memory }

func (s stallingStore) GetAppointment(ctx context.Context, id booking.AppointmentID) (*booking.Appointment, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Second):
		return s.Memory.GetAppointment(ctx, id)
	}
}

func TestCancel_LookupBoundedByTimeout(t *testing.T) {
	// GIVEN: A store that is slow to return the appointment, and a 20ms timeout
	// WHEN: Cancelling without a caller deadline
	// THEN: The lookup is cut off by the service timeout

	svc := booking.NewService(stallingStore{store.NewMemory()},
		booking.WithTimeout(20*time.Millisecond),
		booking.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	start := time.Now()
	_, err := svc.CancelAppointment(context.Background(), 1, clerk)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestCancel_RecordsSpan(t *testing.T) {
	ctx := context.Background()
	rec := recordSpans()
	f := newFixture(t)
	appt := f.book(t, today)

	_, err := f.svc.CancelAppointment(ctx, appt.ID, clerk)
	require.NoError(t, err)

	var found bool
	for _, sp := range rec.Ended() {
		if sp.Name() != "booking.CancelAppointment" {
			continue
		}
		for _, kv := range sp.Attributes() {
			if kv.Key == "appointment.id" && kv.Value.AsInt64() == int64(appt.ID) {
				found = true
			}
		}
	}
	assert.True(t, found, "no booking.CancelAppointment span for appointment %d", appt.ID)
}

// =============================================================================
// LISTING
// =============================================================================

func TestList_OrderAndCancelledIncluded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	other, err := f.mem.SaveAgency(ctx, booking.Agency{Name: "North", Active: true})
	require.NoError(t, err)
	d := today.AddDays(1)

	a1 := f.book(t, d)
	a2 := f.book(t, d)
	b1, err := f.svc.CreateAppointment(ctx, booking.CreateInput{AgencyID: other.ID, CustomerID: f.customer, Desired: d}, clerk)
	require.NoError(t, err)
	_, err = f.svc.CancelAppointment(ctx, a1.ID, clerk)
	require.NoError(t, err)

	mine, err := f.svc.ListAppointments(ctx, &f.agency, d)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, a1.ID, mine[0].ID)
	assert.Equal(t, booking.StatusCancelled, mine[0].Status)
	assert.Equal(t, a2.ID, mine[1].ID)

	all, err := f.svc.ListAppointments(ctx, nil, d)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, b1.ID, all[2].ID)

	empty, err := f.svc.ListAppointments(ctx, nil, d.AddDays(9))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

// =============================================================================
// HOLIDAYS / QUOTA ADMIN
// =============================================================================

func TestHoliday_DuplicateConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := today.AddDays(10)

	h, err := f.svc.CreateHoliday(ctx, f.agency, d, "Inventory", clerk)
	require.NoError(t, err)
	assert.NotZero(t, h.ID)

	_, err = f.svc.CreateHoliday(ctx, f.agency, d, "Again", clerk)
	assert.ErrorIs(t, err, booking.ErrConflict)

	_, err = f.svc.CreateHoliday(ctx, 999, d, "", clerk)
	assert.ErrorIs(t, err, booking.ErrNotFound)

	_, err = f.svc.CreateHoliday(ctx, f.agency, today.AddDays(-1), "", clerk)
	assert.ErrorIs(t, err, booking.ErrValidation)
}

func TestHoliday_DeleteIsSoftAndIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := today.AddDays(4)
	later := today.AddDays(2)

	h, err := f.svc.CreateHoliday(ctx, f.agency, d, "", clerk)
	require.NoError(t, err)
	_, err = f.svc.CreateHoliday(ctx, f.agency, later, "", clerk)
	require.NoError(t, err)

	list, err := f.svc.ListHolidays(ctx, f.agency)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].Day.Equal(later))

	ok, err := f.svc.DeleteHoliday(ctx, h.ID, clerk)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.DeleteHoliday(ctx, h.ID, clerk)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.DeleteHoliday(ctx, 12345, clerk)
	require.NoError(t, err)
	assert.False(t, ok)

	// The day is open again and can be re-closed.
	assert.True(t, f.book(t, d).Day.Equal(d))
	_, err = f.svc.CreateHoliday(ctx, f.agency, d, "", clerk)
	require.NoError(t, err)
}

func TestSetAgencyQuota(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.SetAgencyQuota(ctx, f.agency, 0, clerk)
	assert.ErrorIs(t, err, booking.ErrValidation)
	_, err = f.svc.SetAgencyQuota(ctx, 999, 3, clerk)
	assert.ErrorIs(t, err, booking.ErrNotFound)

	created, err := f.svc.SetAgencyQuota(ctx, f.agency, 3, clerk)
	require.NoError(t, err)
	assert.Nil(t, created.ModifiedOn)

	updated, err := f.svc.SetAgencyQuota(ctx, f.agency, 4, "clerk-2")
	require.NoError(t, err)
	assert.Equal(t, 4, updated.MaxAppointments)
	assert.Equal(t, clerk, updated.CreatedBy)
	assert.Equal(t, booking.Actor("clerk-2"), updated.ModifiedBy)

	got, err := f.svc.GetAgencyQuota(ctx, f.agency)
	require.NoError(t, err)
	assert.Equal(t, 4, got.MaxAppointments)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestConcurrentCreates_NeverExceedQuota(t *testing.T) {
	// GIVEN: Quota 3 and 30 simultaneous bookings for the same day
	// WHEN: All run at once
	// THEN: No day holds more than 3 active appointments and no token repeats

	ctx := context.Background()
	f := newFixture(t)
	f.setQuota(t, 3)
	d := today.AddDays(1)

	var g errgroup.Group
	for i := 0; i < 30; i++ {
		g.Go(func() error {
			_, err := f.svc.CreateAppointment(ctx, booking.CreateInput{
				AgencyID: f.agency, CustomerID: f.customer, Desired: d,
			}, clerk)
			return err
		})
	}
	require.NoError(t, g.Wait())

	total := 0
	for i := 0; i < 10; i++ {
		day := d.AddDays(i)
		rows, err := f.svc.ListAppointments(ctx, &f.agency, day)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(rows), 3, day.String())

		seen := map[booking.Token]bool{}
		for _, a := range rows {
			assert.False(t, seen[a.Token], "duplicate token %s", a.Token)
			seen[a.Token] = true
			assert.True(t, a.Token.BelongsTo(day))
			assert.True(t, a.Token.Valid())
		}
		total += len(rows)
	}
	assert.Equal(t, 30, total)
}

func TestConcurrentMixedWrites_NeverExceedQuota(t *testing.T) {
	// GIVEN: Quota 3, D full with A1-A3 and D+1 full with B1-B3
	// WHEN: A1-A3 are cancelled and annotated, B1-B3 are moved to D and
	//       annotated, and 12 new bookings for D all run at once
	// THEN: No day holds more than 3 active appointments, active tokens stay
	//       unique, and exactly the 15 live bookings remain active

	ctx := context.Background()
	f := newFixture(t)
	f.setQuota(t, 3)
	d := today.AddDays(1)

	var as, bs []booking.Appointment
	for i := 0; i < 3; i++ {
		as = append(as, f.book(t, d))
	}
	for i := 0; i < 3; i++ {
		bs = append(bs, f.book(t, d.AddDays(1)))
	}

	// A conflict or a refused transition is a legitimate outcome of a lost race.
	tolerate := func(err error) error {
		if errors.Is(err, booking.ErrConflict) || errors.Is(err, booking.ErrInvalidTransition) {
			return nil
		}
		return err
	}

	var g errgroup.Group
	for _, a := range as {
		g.Go(func() error {
			_, err := f.svc.CancelAppointment(ctx, a.ID, clerk)
			return err
		})
		g.Go(func() error {
			_, err := f.svc.UpdateAppointment(ctx, a.ID, booking.Patch{Notes: strPtr("call before")}, "clerk-2")
			return tolerate(err)
		})
	}
	for _, b := range bs {
		g.Go(func() error {
			_, err := f.svc.UpdateAppointment(ctx, b.ID, booking.Patch{Day: dayPtr(d)}, clerk)
			return tolerate(err)
		})
		g.Go(func() error {
			_, err := f.svc.UpdateAppointment(ctx, b.ID, booking.Patch{Notes: strPtr("moved")}, "clerk-2")
			return tolerate(err)
		})
	}
	for i := 0; i < 12; i++ {
		g.Go(func() error {
			_, err := f.svc.CreateAppointment(ctx, booking.CreateInput{
				AgencyID: f.agency, CustomerID: f.customer, Desired: d,
			}, clerk)
			return err
		})
	}
	require.NoError(t, g.Wait())

	active := 0
	for i := 0; i < 12; i++ {
		day := d.AddDays(i)
		rows, err := f.svc.ListAppointments(ctx, &f.agency, day)
		require.NoError(t, err)

		seen := map[booking.Token]bool{}
		n := 0
		for _, a := range rows {
			if !a.Active() {
				continue
			}
			n++
			assert.False(t, seen[a.Token], "duplicate active token %s", a.Token)
			seen[a.Token] = true
			assert.True(t, a.Token.BelongsTo(day))
		}
		assert.LessOrEqual(t, n, 3, day.String())
		active += n
	}
	assert.Equal(t, 15, active)

	for _, a := range as {
		got, err := f.svc.GetAppointment(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, booking.StatusCancelled, got.Status)
	}
}

// gatedStore holds the holdAt-th GetAppointment call, after it has read the
// row, until release is closed. That call's caller then carries an old copy.
type gatedStore struct {
	*store.Memory
	gets    atomic.Int32
	holdAt  atomic.Int32
	held    chan struct{}
	release chan struct{}
}

func (s *gatedStore) GetAppointment(ctx context.Context, id booking.AppointmentID) (*booking.Appointment, error) {
	a, err := s.Memory.GetAppointment(ctx, id)
	if s.gets.Add(1) == s.holdAt.Load() {
		close(s.held)
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return a, err
}

// hold arms the gate for the n-th GetAppointment from now on.
func (s *gatedStore) hold(n int32) {
	s.held = make(chan struct{})
	s.release = make(chan struct{})
	s.gets.Store(0)
	s.holdAt.Store(n)
}

func newGatedService(t *testing.T) (*booking.Service, *gatedStore, booking.AgencyID, booking.CustomerID) {
	t.Helper()
	ctx := context.Background()
	gs := &gatedStore{Memory: store.NewMemory()}
	a, err := gs.SaveAgency(ctx, booking.Agency{Name: "Central", Active: true})
	require.NoError(t, err)
	c, err := gs.SaveCustomer(ctx, booking.Customer{FullName: "Ada Lovelace"})
	require.NoError(t, err)
	svc := booking.NewService(gs,
		booking.WithClock(func() time.Time { return today.Time.Add(9 * time.Hour) }),
		booking.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	_, err = svc.SetAgencyQuota(ctx, a.ID, 2, clerk)
	require.NoError(t, err)
	return svc, gs, a.ID, c.ID
}

func activeOn(t *testing.T, svc *booking.Service, agency booking.AgencyID, day booking.Day) int {
	t.Helper()
	rows, err := svc.ListAppointments(context.Background(), &agency, day)
	require.NoError(t, err)
	n := 0
	for _, a := range rows {
		if a.Active() {
			n++
		}
	}
	return n
}

func TestUpdate_SlowNotesWriteKeepsCancellation(t *testing.T) {
	// GIVEN: Quota 2, A and B booked on D, and a notes update of A that has
	//        read A but not yet written it
	// WHEN: A is cancelled and C books the freed slot before the update resumes
	// THEN: A stays cancelled with the new notes and D holds 2 active bookings

	ctx := context.Background()
	svc, gs, agency, customer := newGatedService(t)
	d := today.AddDays(1)
	book := func() booking.Appointment {
		appt, err := svc.CreateAppointment(ctx, booking.CreateInput{AgencyID: agency, CustomerID: customer, Desired: d}, clerk)
		require.NoError(t, err)
		return appt
	}
	a := book()
	book()

	gs.hold(1)
	done := make(chan error, 1)
	go func() {
		_, err := svc.UpdateAppointment(ctx, a.ID, booking.Patch{Notes: strPtr("late note")}, "clerk-2")
		done <- err
	}()
	<-gs.held

	_, err := svc.CancelAppointment(ctx, a.ID, clerk)
	require.NoError(t, err)
	c := book()
	assert.True(t, c.Day.Equal(d))

	close(gs.release)
	require.NoError(t, <-done)

	got, err := svc.GetAppointment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, got.Status)
	assert.Equal(t, "late note", got.Notes)
	assert.Equal(t, 2, activeOn(t, svc, agency, d))
}

func TestUpdate_StaleRescheduleRejectedAfterCancel(t *testing.T) {
	// GIVEN: A booked on D and a move of A to D+3 paused after its locked re-read
	// WHEN: A is cancelled meanwhile
	// THEN: The stale write is refused, the retry sees the cancellation, and
	//       A stays cancelled on D with nothing booked on D+3

	ctx := context.Background()
	svc, gs, agency, customer := newGatedService(t)
	d := today.AddDays(1)
	a, err := svc.CreateAppointment(ctx, booking.CreateInput{AgencyID: agency, CustomerID: customer, Desired: d}, clerk)
	require.NoError(t, err)

	// First read is the unlocked lookup, the second the re-read inside the slot lock.
	gs.hold(2)
	done := make(chan error, 1)
	go func() {
		_, err := svc.UpdateAppointment(ctx, a.ID, booking.Patch{Day: dayPtr(d.AddDays(3))}, clerk)
		done <- err
	}()
	<-gs.held

	_, err = svc.CancelAppointment(ctx, a.ID, clerk)
	require.NoError(t, err)

	close(gs.release)
	assert.ErrorIs(t, <-done, booking.ErrInvalidTransition)

	got, err := svc.GetAppointment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, got.Status)
	assert.True(t, got.Day.Equal(d))
	assert.Zero(t, activeOn(t, svc, agency, d))
	assert.Zero(t, activeOn(t, svc, agency, d.AddDays(3)))
}

// slowLocker counts acquisitions and delegates to an in-process mutex.
type slowLocker struct {
	inner *booking.KeyedMutex
	calls atomic.Int32
}

func (l *slowLocker) Lock(ctx context.Context, key booking.SlotKey) (func(), error) {
	l.calls.Add(1)
	return l.inner.Lock(ctx, key)
}

func TestService_UsesConfiguredLocker(t *testing.T) {
	locker := &slowLocker{inner: booking.NewKeyedMutex()}
	f := newFixture(t, booking.WithLocker(locker))

	f.book(t, today)

	assert.Equal(t, int32(1), locker.calls.Load())
}

func TestService_LockWaitHonoursDeadline(t *testing.T) {
	// GIVEN: The slot of D already held by someone else
	// WHEN: Booking D with a short deadline
	// THEN: The call gives up with DeadlineExceeded

	locker := booking.NewKeyedMutex()
	f := newFixture(t, booking.WithLocker(locker))
	d := today.AddDays(1)

	release, err := locker.Lock(context.Background(), booking.SlotKey{AgencyID: f.agency, Day: d})
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.svc.CreateAppointment(ctx, booking.CreateInput{AgencyID: f.agency, CustomerID: f.customer, Desired: d}, clerk)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// racingStore lets another writer take the chosen token right before the
// insert lands, the way a second instance without a shared lock would.
type racingStore struct {
	*store.Memory
	races   int
	inserts atomic.Int32
}

func (s *racingStore) InsertAppointment(ctx context.Context, a booking.Appointment) (booking.Appointment, error) {
	if int(s.inserts.Add(1)) <= s.races {
		ghost := a
		ghost.Notes = "other instance"
		if _, err := s.Memory.InsertAppointment(ctx, ghost); err != nil {
			return booking.Appointment{}, err
		}
	}
	return s.Memory.InsertAppointment(ctx, a)
}

func newRacingService(t *testing.T, races int) (*booking.Service, *racingStore, booking.AgencyID, booking.CustomerID) {
	t.Helper()
	ctx := context.Background()
	rs := &racingStore{Memory: store.NewMemory(), races: races}
	a, err := rs.SaveAgency(ctx, booking.Agency{Name: "Central", Active: true})
	require.NoError(t, err)
	c, err := rs.SaveCustomer(ctx, booking.Customer{FullName: "Ada Lovelace"})
	require.NoError(t, err)
	svc := booking.NewService(rs,
		booking.WithClock(func() time.Time { return today.Time.Add(9 * time.Hour) }),
		booking.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return svc, rs, a.ID, c.ID
}

func TestCreate_StorageConflictRetriedOnce(t *testing.T) {
	// GIVEN: Another writer steals the first token the allocator picks
	// WHEN: Booking
	// THEN: Allocation re-runs and the booking gets the next token

	svc, rs, agency, customer := newRacingService(t, 1)

	appt, err := svc.CreateAppointment(context.Background(), booking.CreateInput{AgencyID: agency, CustomerID: customer, Desired: today}, clerk)
	require.NoError(t, err)
	assert.Equal(t, token(t, today, 2), appt.Token)
	assert.Equal(t, int32(2), rs.inserts.Load())
}

func TestCreate_StorageConflictSurfacesAfterRetry(t *testing.T) {
	// GIVEN: Every attempt loses the race
	// WHEN: Booking
	// THEN: The second conflict is returned to the caller

	svc, rs, agency, customer := newRacingService(t, 2)

	_, err := svc.CreateAppointment(context.Background(), booking.CreateInput{AgencyID: agency, CustomerID: customer, Desired: today}, clerk)
	assert.ErrorIs(t, err, booking.ErrConflict)
	assert.True(t, booking.IsRetryable(err))
	assert.Equal(t, int32(2), rs.inserts.Load())
}
