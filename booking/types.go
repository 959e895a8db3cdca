/*
Package booking provides the appointment slot-allocation engine.

PURPOSE:
  Agencies accept a bounded number of appointments per calendar day. This
  package decides which day a booking actually lands on (skipping holidays
  and full days), hands out a per-day token, and keeps the daily quota
  invariant intact across reschedules and cancellations.

KEY CONCEPTS IN THIS FILE (types.go):
  - Typed identifiers: AgencyID, CustomerID, AppointmentID, HolidayID
  - Actor: the opaque acting identity stamped on every write
  - Entities: Agency, Customer, AgencySetting, QuotaOverride, Holiday, Appointment
  - Status: Booked / Cancelled

COMPONENTS (leaf first):
  calendar.go:  CalendarGate   - holiday lookups and holiday admin
  quota.go:     QuotaResolver  - override > agency setting > default
  ledger.go:    Ledger         - appointment system of record
  allocator.go: Allocator      - forward scan + token assignment
  service.go:   Service        - create/update/cancel orchestration

INVARIANTS:
  1. Active appointments per (agency, day) never exceed the resolved quota
  2. Tokens are unique among active appointments of an (agency, day)
  3. A booking never lands on a holiday of its agency
  4. Rows are never physically removed; Deleted hides them from every read

SEE ALSO:
  - store.go: Persistence interfaces
  - errors.go: Failure taxonomy
*/
package booking

import (
	"strings"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AgencyID int64
type CustomerID int64
type AppointmentID int64
type HolidayID int64

// Actor identifies who performed a write. It is passed explicitly into every
// mutating operation; the engine never falls back to an ambient identity.
type Actor string

func (a Actor) String() string { return string(a) }

// Valid reports whether the actor carries a usable identity.
func (a Actor) Valid() bool { return strings.TrimSpace(string(a)) != "" }

// =============================================================================
// AUDIT METADATA - soft-delete and who/when stamps shared by every row
// =============================================================================

type Audit struct {
	CreatedBy  Actor
	CreatedOn  time.Time
	ModifiedBy Actor
	ModifiedOn *time.Time
	DeletedBy  Actor
	DeletedOn  *time.Time
	Deleted    bool
}

// StampModified records who changed the row and when.
func (a *Audit) StampModified(actor Actor, at time.Time) {
	a.ModifiedBy = actor
	a.ModifiedOn = &at
}

// StampDeleted marks the row as soft-deleted.
func (a *Audit) StampDeleted(actor Actor, at time.Time) {
	a.Deleted = true
	a.DeletedBy = actor
	a.DeletedOn = &at
}

// =============================================================================
// MASTER DATA
// =============================================================================

// Agency accepts appointments. The engine only reads its existence and
// active flag.
type Agency struct {
	ID     AgencyID
	Name   string
	Active bool
	Audit
}

// Usable reports whether the agency can take bookings.
func (a *Agency) Usable() bool { return a != nil && a.Active && !a.Deleted }

type Customer struct {
	ID       CustomerID
	FullName string
	Phone    string
	Email    string
	Audit
}

// AgencySetting holds the default daily quota of an agency.
// At most one non-deleted row exists per agency.
type AgencySetting struct {
	AgencyID        AgencyID
	MaxAppointments int
	Audit
}

// QuotaOverride replaces the agency default for a single day
// (reduced staffing, special openings).
type QuotaOverride struct {
	AgencyID        AgencyID
	Day             Day
	MaxAppointments int
	Audit
}

// Holiday closes an agency for one day.
// At most one non-deleted holiday exists per (agency, day).
type Holiday struct {
	ID       HolidayID
	AgencyID AgencyID
	Day      Day
	Reason   string
	Audit
}

// =============================================================================
// APPOINTMENT
// =============================================================================

type Status string

const (
	StatusBooked    Status = "Booked"
	StatusCancelled Status = "Cancelled"
)

// ParseStatus accepts the canonical names case-insensitively.
func ParseStatus(s string) (Status, bool) {
	switch {
	case strings.EqualFold(s, string(StatusBooked)):
		return StatusBooked, true
	case strings.EqualFold(s, string(StatusCancelled)):
		return StatusCancelled, true
	}
	return "", false
}

// Terminal reports whether no transition can originate from the status.
func (s Status) Terminal() bool { return s == StatusCancelled }

type Appointment struct {
	ID         AppointmentID
	AgencyID   AgencyID
	CustomerID CustomerID
	Day        Day
	Token      Token
	Status     Status
	Notes      string
	// Version counts committed writes. Stores only accept an update whose
	// Version matches the stored row.
	Version int64
	Audit
}

// Active reports whether the appointment consumes quota.
func (a Appointment) Active() bool { return a.Status != StatusCancelled && !a.Deleted }

// MaxNotesLength mirrors the storage column width for notes.
const MaxNotesLength = 500
