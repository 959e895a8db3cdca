/*
service.go - Booking orchestration and the appointment state machine

PURPOSE:
  Service is the caller-facing surface of the engine. It validates input,
  checks master data, drives the Allocator under the slot lock, writes
  through the Ledger and records the audit trail.

STATE MACHINE:
  Booked --cancel-->     Cancelled   (terminal)
  Booked --reschedule--> Booked      (day/token may change)
  Nothing leaves Cancelled. Cancelling twice is a no-op.

CONCURRENCY:
  Each request runs on its own goroutine. The only shared mutable state is
  the appointment store, and Service is its only writer. Every write that
  can raise a day's active count happens inside Allocator.Reserve while the
  SlotLocker holds that agency-day. Updates re-read the row under that
  lock and the store only accepts a write carrying the version it last
  saved, so a write based on an old copy fails with ErrConflict instead of
  undoing a newer one. A conflict, including a token collision from
  another process without a shared locker, re-runs the operation once.

IDENTITY:
  Every mutating operation takes the acting identity explicitly.
*/
package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	maxReasonLength = 250

	// conflictRetries is how many times a storage conflict re-runs an operation.
	conflictRetries = 1
)

var tracer = otel.Tracer("github.com/warp/agency-booking/booking")

type Service struct {
	Directory Directory
	Calendar  *CalendarGate
	Quota     *QuotaResolver
	Quotas    QuotaStore
	Ledger    *Ledger
	Allocator *Allocator
	Audit     AuditLog
	Locker    SlotLocker
	Logger    *slog.Logger

	// Now is the clock used for audit stamps and the "no past dates" rule.
	Now func() time.Time

	// Timeout bounds an operation when the caller's context has no deadline.
	Timeout time.Duration
}

type Option func(*Service)

func WithLocker(l SlotLocker) Option        { return func(s *Service) { s.Locker = l } }
func WithLogger(l *slog.Logger) Option      { return func(s *Service) { s.Logger = l } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.Now = now } }
func WithTimeout(d time.Duration) Option    { return func(s *Service) { s.Timeout = d } }
func WithHorizon(days int) Option           { return func(s *Service) { s.Allocator.Horizon = days } }
func WithDefaultQuota(max int) Option       { return func(s *Service) { s.Quota.Default = max } }

// NewService wires every component over a single Store.
func NewService(store Store, opts ...Option) *Service {
	cal := NewCalendarGate(store, store)
	quota := NewQuotaResolver(store)
	ledger := NewLedger(store)

	s := &Service{
		Directory: store,
		Calendar:  cal,
		Quota:     quota,
		Quotas:    store,
		Ledger:    ledger,
		Allocator: NewAllocator(cal, quota, ledger),
		Audit:     store,
		Locker:    NewKeyedMutex(),
		Logger:    slog.Default(),
		Now:       time.Now,
		Timeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// INPUTS
// =============================================================================

type CreateInput struct {
	AgencyID   AgencyID
	CustomerID CustomerID
	Desired    Day
	Notes      string
}

// Patch carries the optional fields of an update. Nil means "leave as is";
// a non-nil empty Notes clears the notes.
type Patch struct {
	Day    *Day
	Status *Status
	Notes  *string
}

// =============================================================================
// APPOINTMENTS
// =============================================================================

// CreateAppointment books the first available day at or after in.Desired.
func (s *Service) CreateAppointment(ctx context.Context, in CreateInput, actor Actor) (Appointment, error) {
	if err := s.validateCreate(in, actor); err != nil {
		return Appointment{}, err
	}

	ctx, span := tracer.Start(ctx, "booking.CreateAppointment", trace.WithAttributes(
		attribute.Int64("agency.id", int64(in.AgencyID)),
		attribute.String("appointment.desired_date", in.Desired.String()),
	))
	defer span.End()
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.requireAgency(ctx, in.AgencyID); err != nil {
		return Appointment{}, s.fail(span, err)
	}
	if err := s.requireCustomer(ctx, in.CustomerID); err != nil {
		return Appointment{}, s.fail(span, err)
	}

	var created Appointment
	commit := func(ctx context.Context, slot Slot) error {
		now := s.Now().UTC()
		out, err := s.Ledger.Insert(ctx, Appointment{
			AgencyID:   in.AgencyID,
			CustomerID: in.CustomerID,
			Day:        slot.Day,
			Token:      slot.Token,
			Status:     StatusBooked,
			Notes:      in.Notes,
			Audit:      Audit{CreatedBy: actor, CreatedOn: now},
		})
		if err != nil {
			return err
		}
		created = out
		return nil
	}

	slot, err := s.reserve(ctx, in.AgencyID, in.Desired, 0, commit)
	if err != nil {
		s.Logger.Warn("appointment not booked",
			"agency_id", in.AgencyID, "customer_id", in.CustomerID,
			"desired_date", in.Desired.String(), "err", err)
		return Appointment{}, s.fail(span, err)
	}

	s.Logger.Info("appointment booked",
		"appointment_id", created.ID, "agency_id", in.AgencyID,
		"desired_date", in.Desired.String(), "date", slot.Day.String(), "token", slot.Token.String())
	span.SetAttributes(attribute.String("appointment.date", slot.Day.String()), attribute.Int64("appointment.token", int64(slot.Token)))

	s.audit(ctx, newAuditEntry(created.CreatedOn, actor, AuditAppointmentBooked, created.AgencyID, created.ID, map[string]any{
		"desired_date": in.Desired.String(),
		"date":         created.Day.String(),
		"token":        int64(created.Token),
	}))
	return created, nil
}

// UpdateAppointment applies a patch: reschedule first, then status, then notes.
func (s *Service) UpdateAppointment(ctx context.Context, id AppointmentID, patch Patch, actor Actor) (Appointment, error) {
	if err := s.validateUpdate(id, patch, actor); err != nil {
		return Appointment{}, err
	}
	if patch.Status != nil {
		if *patch.Status == "" {
			patch.Status = nil
		} else {
			st, _ := ParseStatus(string(*patch.Status))
			patch.Status = &st
		}
	}

	ctx, span := tracer.Start(ctx, "booking.UpdateAppointment", trace.WithAttributes(
		attribute.Int64("appointment.id", int64(id)),
	))
	defer span.End()
	ctx, cancel := s.bound(ctx)
	defer cancel()

	return s.applyPatch(ctx, span, id, patch, actor)
}

// CancelAppointment moves a booking to Cancelled, freeing one unit of quota.
// Cancelling an already-cancelled appointment returns it unchanged.
func (s *Service) CancelAppointment(ctx context.Context, id AppointmentID, actor Actor) (Appointment, error) {
	if id <= 0 {
		return Appointment{}, invalid("appointment_id", "must be positive")
	}
	if !actor.Valid() {
		return Appointment{}, invalid("actor", "acting identity is required")
	}

	ctx, span := tracer.Start(ctx, "booking.CancelAppointment", trace.WithAttributes(
		attribute.Int64("appointment.id", int64(id)),
	))
	defer span.End()
	ctx, cancel := s.bound(ctx)
	defer cancel()

	cancelled := StatusCancelled
	return s.applyPatch(ctx, span, id, Patch{Status: &cancelled}, actor)
}

// applyPatch writes a validated patch, then logs and audits the transition.
func (s *Service) applyPatch(ctx context.Context, span trace.Span, id AppointmentID, patch Patch, actor Actor) (Appointment, error) {
	var (
		before, updated Appointment
		err             error
	)
	for attempt := 0; attempt <= conflictRetries; attempt++ {
		before, updated, err = s.updateOnce(ctx, id, patch, actor)
		if err == nil || !IsRetryable(err) {
			break
		}
		s.Logger.Warn("appointment changed during update, re-reading",
			"appointment_id", id, "attempt", attempt+1)
	}
	if err != nil {
		return Appointment{}, s.fail(span, err)
	}
	if updated.Version == before.Version {
		s.Logger.Info("appointment unchanged", "appointment_id", id, "status", string(updated.Status))
		return updated, nil
	}

	s.Logger.Info("appointment updated",
		"appointment_id", id, "agency_id", updated.AgencyID,
		"date", updated.Day.String(), "token", updated.Token.String(), "status", string(updated.Status))

	s.audit(ctx, newAuditEntry(s.Now().UTC(), actor, updateAction(before, updated), updated.AgencyID, updated.ID, map[string]any{
		"from_date":   before.Day.String(),
		"to_date":     updated.Day.String(),
		"from_token":  int64(before.Token),
		"to_token":    int64(updated.Token),
		"from_status": string(before.Status),
		"to_status":   string(updated.Status),
	}))
	return updated, nil
}

// updateOnce reads the appointment again under the slot lock and writes the
// patch against that copy. The store rejects the write with ErrConflict when
// another writer got in between.
func (s *Service) updateOnce(ctx context.Context, id AppointmentID, patch Patch, actor Actor) (before, after Appointment, err error) {
	current, err := s.Ledger.Get(ctx, id)
	if err != nil {
		return Appointment{}, Appointment{}, err
	}
	if err := s.checkPatch(current, patch); err != nil {
		return Appointment{}, Appointment{}, err
	}

	write := func(ctx context.Context, slot *Slot) error {
		fresh, err := s.Ledger.Get(ctx, id)
		if err != nil {
			return err
		}
		if slot == nil && !fresh.Day.Equal(current.Day) {
			return &ConflictError{Reason: "appointment was rescheduled concurrently", AgencyID: fresh.AgencyID, Day: fresh.Day}
		}
		if err := s.checkPatch(fresh, patch); err != nil {
			return err
		}
		before = fresh
		if fresh.Status.Terminal() && settled(fresh, patch) {
			after = fresh
			return nil
		}

		next := fresh
		if slot != nil && !slot.Day.Equal(fresh.Day) {
			next.Day = slot.Day
			next.Token = slot.Token
		}
		if patch.Status != nil {
			next.Status = *patch.Status
		}
		if patch.Notes != nil {
			next.Notes = *patch.Notes
		}
		next.StampModified(actor, s.Now().UTC())
		out, err := s.Ledger.Update(ctx, next)
		if err != nil {
			return err
		}
		after = out
		return nil
	}

	if patch.Day != nil && !patch.Day.Equal(current.Day) {
		_, err := s.Allocator.Reserve(ctx, s.Locker, current.AgencyID, *patch.Day, id, func(ctx context.Context, slot Slot) error {
			return write(ctx, &slot)
		})
		if err != nil {
			s.Logger.Warn("appointment not rescheduled",
				"appointment_id", id, "agency_id", current.AgencyID,
				"from", current.Day.String(), "desired_date", patch.Day.String(), "err", err)
		}
		return before, after, err
	}

	release, err := s.Locker.Lock(ctx, SlotKey{AgencyID: current.AgencyID, Day: current.Day})
	if err != nil {
		return Appointment{}, Appointment{}, err
	}
	defer release()
	err = write(ctx, nil)
	return before, after, err
}

// GetAppointment returns a live appointment.
func (s *Service) GetAppointment(ctx context.Context, id AppointmentID) (Appointment, error) {
	if id <= 0 {
		return Appointment{}, invalid("appointment_id", "must be positive")
	}
	return s.Ledger.Get(ctx, id)
}

// ListAppointments returns the day's appointments, cancelled included. With
// an agency the order is by token; without, by agency then token.
func (s *Service) ListAppointments(ctx context.Context, agencyID *AgencyID, day Day) ([]Appointment, error) {
	if agencyID != nil && *agencyID <= 0 {
		return nil, invalid("agency_id", "must be positive")
	}
	if day.IsZero() {
		return nil, invalid("date", "is required")
	}
	return s.Ledger.List(ctx, agencyID, day)
}

// AuditTrail returns the recorded history of an appointment, oldest first.
func (s *Service) AuditTrail(ctx context.Context, id AppointmentID) ([]AuditEntry, error) {
	if _, err := s.GetAppointment(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.Audit.AuditFor(ctx, id)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []AuditEntry{}
	}
	return entries, nil
}

// Availability reports capacity of one agency-day.
func (s *Service) Availability(ctx context.Context, agencyID AgencyID, day Day) (Availability, error) {
	if agencyID <= 0 {
		return Availability{}, invalid("agency_id", "must be positive")
	}
	if day.IsZero() {
		return Availability{}, invalid("date", "is required")
	}
	if err := s.requireAgency(ctx, agencyID); err != nil {
		return Availability{}, err
	}
	p, err := s.Allocator.Probe(ctx, agencyID, day, 0)
	if err != nil {
		return Availability{}, err
	}
	return availabilityFrom(agencyID, p), nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (s *Service) CreateHoliday(ctx context.Context, agencyID AgencyID, day Day, reason string, actor Actor) (Holiday, error) {
	if agencyID <= 0 {
		return Holiday{}, invalid("agency_id", "must be positive")
	}
	if !actor.Valid() {
		return Holiday{}, invalid("actor", "acting identity is required")
	}
	if day.IsZero() {
		return Holiday{}, invalid("off_date", "is required")
	}
	if day.Before(s.today()) {
		return Holiday{}, invalid("off_date", "cannot create holiday for past dates")
	}
	if len(reason) > maxReasonLength {
		return Holiday{}, invalid("reason", "is too long")
	}

	h, err := s.Calendar.CreateHoliday(ctx, agencyID, day, strings.TrimSpace(reason), actor, s.Now().UTC())
	if err != nil {
		if IsConflict(err) {
			s.Logger.Warn("holiday already exists", "agency_id", agencyID, "date", day.String())
		}
		return Holiday{}, err
	}

	s.Logger.Info("holiday created", "holiday_id", h.ID, "agency_id", agencyID, "date", day.String())
	s.audit(ctx, newAuditEntry(h.CreatedOn, actor, AuditHolidayCreated, agencyID, 0, map[string]any{
		"holiday_id": int64(h.ID),
		"date":       day.String(),
		"reason":     h.Reason,
	}))
	return h, nil
}

// DeleteHoliday soft-deletes; false when the holiday is absent or already gone.
func (s *Service) DeleteHoliday(ctx context.Context, id HolidayID, actor Actor) (bool, error) {
	if id <= 0 {
		return false, invalid("holiday_id", "must be positive")
	}
	if !actor.Valid() {
		return false, invalid("actor", "acting identity is required")
	}
	now := s.Now().UTC()
	ok, err := s.Calendar.DeleteHoliday(ctx, id, actor, now)
	if err != nil || !ok {
		return ok, err
	}
	s.audit(ctx, newAuditEntry(now, actor, AuditHolidayDeleted, 0, 0, map[string]any{"holiday_id": int64(id)}))
	return true, nil
}

func (s *Service) ListHolidays(ctx context.Context, agencyID AgencyID) ([]Holiday, error) {
	if agencyID <= 0 {
		return nil, invalid("agency_id", "must be positive")
	}
	return s.Calendar.ListHolidays(ctx, agencyID)
}

// =============================================================================
// QUOTAS
// =============================================================================

// GetAgencyQuota returns the agency-wide setting, synthesized from the
// default when none is stored.
func (s *Service) GetAgencyQuota(ctx context.Context, agencyID AgencyID) (AgencySetting, error) {
	if agencyID <= 0 {
		return AgencySetting{}, invalid("agency_id", "must be positive")
	}
	if err := s.requireAgency(ctx, agencyID); err != nil {
		return AgencySetting{}, err
	}
	return s.Quota.Setting(ctx, agencyID)
}

// SetAgencyQuota upserts the agency-wide daily quota.
func (s *Service) SetAgencyQuota(ctx context.Context, agencyID AgencyID, maxAppointments int, actor Actor) (AgencySetting, error) {
	if agencyID <= 0 {
		return AgencySetting{}, invalid("agency_id", "must be positive")
	}
	if maxAppointments <= 0 {
		return AgencySetting{}, invalid("max_appointments", "must be greater than 0")
	}
	if !actor.Valid() {
		return AgencySetting{}, invalid("actor", "acting identity is required")
	}
	if err := s.requireAgency(ctx, agencyID); err != nil {
		return AgencySetting{}, err
	}

	now := s.Now().UTC()
	setting := AgencySetting{AgencyID: agencyID, MaxAppointments: maxAppointments}
	if existing, err := s.Quotas.GetSetting(ctx, agencyID); err != nil {
		return AgencySetting{}, err
	} else if existing != nil && !existing.Deleted {
		setting.Audit = existing.Audit
		setting.StampModified(actor, now)
	} else {
		setting.Audit = Audit{CreatedBy: actor, CreatedOn: now}
	}

	out, err := s.Quotas.UpsertSetting(ctx, setting)
	if err != nil {
		return AgencySetting{}, err
	}
	s.Logger.Info("agency quota updated", "agency_id", agencyID, "max_appointments", maxAppointments)
	s.audit(ctx, newAuditEntry(now, actor, AuditQuotaChanged, agencyID, 0, map[string]any{"max_appointments": maxAppointments}))
	return out, nil
}

// SetQuotaOverride replaces the agency quota for a single day.
func (s *Service) SetQuotaOverride(ctx context.Context, agencyID AgencyID, day Day, maxAppointments int, actor Actor) (QuotaOverride, error) {
	if agencyID <= 0 {
		return QuotaOverride{}, invalid("agency_id", "must be positive")
	}
	if day.IsZero() {
		return QuotaOverride{}, invalid("date", "is required")
	}
	if maxAppointments < 0 {
		return QuotaOverride{}, invalid("max_appointments", "must not be negative")
	}
	if !actor.Valid() {
		return QuotaOverride{}, invalid("actor", "acting identity is required")
	}
	if err := s.requireAgency(ctx, agencyID); err != nil {
		return QuotaOverride{}, err
	}

	now := s.Now().UTC()
	out, err := s.Quotas.UpsertOverride(ctx, QuotaOverride{
		AgencyID:        agencyID,
		Day:             day,
		MaxAppointments: maxAppointments,
		Audit:           Audit{CreatedBy: actor, CreatedOn: now},
	})
	if err != nil {
		return QuotaOverride{}, err
	}
	s.Logger.Info("quota override set", "agency_id", agencyID, "date", day.String(), "max_appointments", maxAppointments)
	s.audit(ctx, newAuditEntry(now, actor, AuditQuotaOverrideChanged, agencyID, 0, map[string]any{
		"date":             day.String(),
		"max_appointments": maxAppointments,
	}))
	return out, nil
}

// DeleteQuotaOverride drops the override so the agency default applies again.
func (s *Service) DeleteQuotaOverride(ctx context.Context, agencyID AgencyID, day Day, actor Actor) (bool, error) {
	if agencyID <= 0 {
		return false, invalid("agency_id", "must be positive")
	}
	if !actor.Valid() {
		return false, invalid("actor", "acting identity is required")
	}
	now := s.Now().UTC()
	ok, err := s.Quotas.SoftDeleteOverride(ctx, agencyID, day, actor, now)
	if err != nil || !ok {
		return ok, err
	}
	s.audit(ctx, newAuditEntry(now, actor, AuditQuotaOverrideRemoved, agencyID, 0, map[string]any{"date": day.String()}))
	return true, nil
}

func (s *Service) ListQuotaOverrides(ctx context.Context, agencyID AgencyID) ([]QuotaOverride, error) {
	if agencyID <= 0 {
		return nil, invalid("agency_id", "must be positive")
	}
	out, err := s.Quotas.ListOverrides(ctx, agencyID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []QuotaOverride{}
	}
	return out, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

// reserve runs allocation under the slot lock, re-running it once when the
// store reports a token collision.
func (s *Service) reserve(ctx context.Context, agencyID AgencyID, desired Day, exclude AppointmentID, commit func(context.Context, Slot) error) (Slot, error) {
	var (
		slot Slot
		err  error
	)
	for attempt := 0; attempt <= conflictRetries; attempt++ {
		slot, err = s.Allocator.Reserve(ctx, s.Locker, agencyID, desired, exclude, commit)
		if err == nil || !IsRetryable(err) {
			return slot, err
		}
		s.Logger.Warn("slot conflict, re-running allocation",
			"agency_id", agencyID, "desired_date", desired.String(), "attempt", attempt+1)
	}
	return slot, err
}

func (s *Service) validateCreate(in CreateInput, actor Actor) error {
	switch {
	case in.AgencyID <= 0:
		return invalid("agency_id", "must be positive")
	case in.CustomerID <= 0:
		return invalid("customer_id", "must be positive")
	case in.Desired.IsZero():
		return invalid("desired_date", "is required")
	case in.Desired.Before(s.today()):
		return invalid("desired_date", "cannot book appointment for past dates")
	case len(in.Notes) > MaxNotesLength:
		return invalid("notes", "is too long")
	case !actor.Valid():
		return invalid("actor", "acting identity is required")
	}
	return nil
}

func (s *Service) validateUpdate(id AppointmentID, p Patch, actor Actor) error {
	if id <= 0 {
		return invalid("appointment_id", "must be positive")
	}
	if !actor.Valid() {
		return invalid("actor", "acting identity is required")
	}
	if p.Day != nil && p.Day.IsZero() {
		return invalid("date", "is required when present")
	}
	if p.Status != nil && *p.Status != "" {
		st, ok := ParseStatus(string(*p.Status))
		if !ok {
			return invalid("status", "must be Booked or Cancelled")
		}
		if st == StatusCancelled && p.Day != nil {
			return invalid("date", "cannot reschedule and cancel in one update")
		}
	}
	if p.Notes != nil && len(*p.Notes) > MaxNotesLength {
		return invalid("notes", "is too long")
	}
	return nil
}

// checkPatch holds the rules that depend on the stored row. Keeping the
// current date is always allowed, even once that date has passed.
func (s *Service) checkPatch(current Appointment, p Patch) error {
	if p.Day != nil && !p.Day.Equal(current.Day) && p.Day.Before(s.today()) {
		return invalid("date", "cannot update appointment to a past date")
	}
	return checkTransition(current, p)
}

// settled reports whether applying p would leave a as it is.
func settled(a Appointment, p Patch) bool {
	return (p.Day == nil || p.Day.Equal(a.Day)) &&
		(p.Status == nil || *p.Status == a.Status) &&
		(p.Notes == nil || *p.Notes == a.Notes)
}

// checkTransition rejects anything that would bring a cancelled appointment
// back into quota.
func checkTransition(current Appointment, p Patch) error {
	if !current.Status.Terminal() {
		return nil
	}
	if p.Status != nil && *p.Status != current.Status {
		return &TransitionError{AppointmentID: current.ID, From: current.Status, To: *p.Status}
	}
	if p.Day != nil && !p.Day.Equal(current.Day) {
		return &TransitionError{AppointmentID: current.ID, From: current.Status, To: StatusBooked}
	}
	return nil
}

func updateAction(before, after Appointment) AuditAction {
	switch {
	case before.Status != StatusCancelled && after.Status == StatusCancelled:
		return AuditAppointmentCancelled
	case !before.Day.Equal(after.Day):
		return AuditAppointmentRescheduled
	default:
		return AuditAppointmentUpdated
	}
}

func (s *Service) requireAgency(ctx context.Context, id AgencyID) error {
	a, err := s.Directory.GetAgency(ctx, id)
	if err != nil {
		return err
	}
	if !a.Usable() {
		return notFound("agency", int64(id))
	}
	return nil
}

func (s *Service) requireCustomer(ctx context.Context, id CustomerID) error {
	c, err := s.Directory.GetCustomer(ctx, id)
	if err != nil {
		return err
	}
	if c == nil || c.Deleted {
		return notFound("customer", int64(id))
	}
	return nil
}

func (s *Service) today() Day { return DayOf(s.Now()) }

// bound applies the default timeout unless the caller already set a deadline.
func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.Timeout)
}

// audit is best-effort: the row is already written, so a failed entry is
// logged rather than turned into a failed operation.
func (s *Service) audit(ctx context.Context, e AuditEntry) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.AppendAudit(ctx, e); err != nil {
		s.Logger.Error("audit append failed", "action", string(e.Action), "appointment_id", e.AppointmentID, "err", err)
	}
}

func (s *Service) fail(span trace.Span, err error) error {
	if err != nil && !errors.Is(err, context.Canceled) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
