/*
store.go - Persistence interfaces consumed by the booking engine

PURPOSE:
  Defines the boundary between allocation logic and storage. The engine
  never sees SQL; implementations live in booking/store (memory),
  store/sqlite and store/postgres.

KEY INTERFACES:
  Directory:        Agency / customer existence
  HolidayStore:     Holiday calendar rows
  QuotaStore:       Agency settings and per-day overrides
  AppointmentStore: Appointment rows
  AuditLog:         Who did what, when

READ CONTRACT:
  Every read filters out soft-deleted rows. A lookup by id that finds
  nothing returns (nil, nil); absence is not an infrastructure error.

WRITE CONTRACT:
  - InsertHoliday returns ErrConflict when a live holiday exists for (agency, day)
  - InsertAppointment / UpdateAppointment return ErrConflict when the token
    collides with another active appointment of the same (agency, day)
  - InsertAppointment starts Version at 1. UpdateAppointment writes only
    when the stored Version equals a.Version, bumps it, and otherwise
    returns ErrConflict (or ErrNotFound when the row is gone)
  - Nothing is ever physically deleted
*/
package booking

import (
	"context"
	"time"
)

// Directory answers existence questions about master data.
type Directory interface {
	GetAgency(ctx context.Context, id AgencyID) (*Agency, error)
	GetCustomer(ctx context.Context, id CustomerID) (*Customer, error)
}

// DirectoryWriter seeds master data. Only administrative tooling writes here.
type DirectoryWriter interface {
	SaveAgency(ctx context.Context, a Agency) (Agency, error)
	SaveCustomer(ctx context.Context, c Customer) (Customer, error)
}

type HolidayStore interface {
	HolidayOn(ctx context.Context, agencyID AgencyID, day Day) (*Holiday, error)
	ListHolidays(ctx context.Context, agencyID AgencyID) ([]Holiday, error)
	InsertHoliday(ctx context.Context, h Holiday) (Holiday, error)

	// SoftDeleteHoliday returns false when the holiday is missing or already deleted.
	SoftDeleteHoliday(ctx context.Context, id HolidayID, actor Actor, at time.Time) (bool, error)
}

type QuotaStore interface {
	GetSetting(ctx context.Context, agencyID AgencyID) (*AgencySetting, error)
	UpsertSetting(ctx context.Context, s AgencySetting) (AgencySetting, error)

	GetOverride(ctx context.Context, agencyID AgencyID, day Day) (*QuotaOverride, error)
	ListOverrides(ctx context.Context, agencyID AgencyID) ([]QuotaOverride, error)
	UpsertOverride(ctx context.Context, o QuotaOverride) (QuotaOverride, error)
	SoftDeleteOverride(ctx context.Context, agencyID AgencyID, day Day, actor Actor, at time.Time) (bool, error)
}

type AppointmentStore interface {
	GetAppointment(ctx context.Context, id AppointmentID) (*Appointment, error)

	// AppointmentsOn returns the non-deleted appointments of an agency-day
	// (cancelled included), ordered by token.
	AppointmentsOn(ctx context.Context, agencyID AgencyID, day Day) ([]Appointment, error)

	// AllAppointmentsOn returns every agency's non-deleted appointments of a
	// day, ordered by agency then token.
	AllAppointmentsOn(ctx context.Context, day Day) ([]Appointment, error)

	// InsertAppointment assigns the id and returns the persisted row.
	InsertAppointment(ctx context.Context, a Appointment) (Appointment, error)
	// UpdateAppointment is a compare-and-set on Version.
	UpdateAppointment(ctx context.Context, a Appointment) (Appointment, error)
}

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	AuditFor(ctx context.Context, appointmentID AppointmentID) ([]AuditEntry, error)
}

// Store is everything the Service needs from persistence.
type Store interface {
	Directory
	HolidayStore
	QuotaStore
	AppointmentStore
	AuditLog
}
