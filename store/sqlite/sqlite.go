/*
Package sqlite provides a SQLite-backed implementation of booking.Store.

PURPOSE:
  Single-node persistence for the booking engine. Suitable for development
  and for a single-instance deployment; store/postgres serves the
  multi-instance case with the same schema shape.

INTERFACES IMPLEMENTED:
  booking.Store:           Directory, holidays, quotas, appointments, audit
  booking.DirectoryWriter: Agency / customer seeding

SOFT DELETE:
  No DELETE statements. Every table carries is_deleted plus the
  created/modified/deleted stamps, and every read filters is_deleted = 0.

KEY TABLES:
  agencies, customers:     Master data
  agency_settings:         One row per agency, max_appointments
  agency_quota_overrides:  Per-day replacement quota
  holidays:                Closed days per agency
  appointments:            The ledger of bookings
  audit_log:               Append-only history

INDEXES:
  - idx_active_token: UNIQUE (agency_id, appt_date, token_number) for rows
    that still consume quota. The last line of defence if two processes
    allocate without a shared SlotLocker.
  - idx_live_holiday: UNIQUE (agency_id, off_date) for live holidays.
  - idx_live_override: UNIQUE (agency_id, override_date) for live overrides.

CONCURRENCY:
  One open connection; SQLite serializes writers anyway and ":memory:"
  databases are per-connection.

USAGE:
  store, err := sqlite.New("./data/booking.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := booking.NewService(store)
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/agency-booking/booking"
)

const timeLayout = time.RFC3339Nano

// Store implements booking.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agencies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_by TEXT NOT NULL DEFAULT '',
		created_on TEXT NOT NULL,
		modified_by TEXT,
		modified_on TEXT,
		deleted_by TEXT,
		deleted_on TEXT,
		is_deleted INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		full_name TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		created_on TEXT NOT NULL,
		modified_by TEXT,
		modified_on TEXT,
		deleted_by TEXT,
		deleted_on TEXT,
		is_deleted INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS agency_settings (
		agency_id INTEGER PRIMARY KEY REFERENCES agencies(id),
		max_appointments INTEGER NOT NULL,
		created_by TEXT NOT NULL,
		created_on TEXT NOT NULL,
		modified_by TEXT,
		modified_on TEXT,
		deleted_by TEXT,
		deleted_on TEXT,
		is_deleted INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS agency_quota_overrides (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agency_id INTEGER NOT NULL REFERENCES agencies(id),
		override_date TEXT NOT NULL,
		max_appointments INTEGER NOT NULL,
		created_by TEXT NOT NULL,
		created_on TEXT NOT NULL,
		modified_by TEXT,
		modified_on TEXT,
		deleted_by TEXT,
		deleted_on TEXT,
		is_deleted INTEGER NOT NULL DEFAULT 0
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_live_override
		ON agency_quota_overrides(agency_id, override_date)
		WHERE is_deleted = 0;

	CREATE TABLE IF NOT EXISTS holidays (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agency_id INTEGER NOT NULL REFERENCES agencies(id),
		off_date TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL,
		created_on TEXT NOT NULL,
		modified_by TEXT,
		modified_on TEXT,
		deleted_by TEXT,
		deleted_on TEXT,
		is_deleted INTEGER NOT NULL DEFAULT 0
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_live_holiday
		ON holidays(agency_id, off_date)
		WHERE is_deleted = 0;

	CREATE TABLE IF NOT EXISTS appointments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agency_id INTEGER NOT NULL REFERENCES agencies(id),
		customer_id INTEGER NOT NULL REFERENCES customers(id),
		appt_date TEXT NOT NULL,
		token_number INTEGER NOT NULL,
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		created_by TEXT NOT NULL,
		created_on TEXT NOT NULL,
		modified_by TEXT,
		modified_on TEXT,
		deleted_by TEXT,
		deleted_on TEXT,
		is_deleted INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_appointments_agency_date
		ON appointments(agency_id, appt_date);

	-- A token is issued to at most one appointment that still holds quota.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_active_token
		ON appointments(agency_id, appt_date, token_number)
		WHERE status <> 'Cancelled' AND is_deleted = 0;

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		agency_id INTEGER,
		appointment_id INTEGER,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_appointment
		ON audit_log(appointment_id, at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DIRECTORY
// =============================================================================

const agencyColumns = `id, name, is_active, created_by, created_on, modified_by, modified_on, deleted_by, deleted_on, is_deleted`

func (s *Store) GetAgency(ctx context.Context, id booking.AgencyID) (*booking.Agency, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agencyColumns+` FROM agencies WHERE id = ?`, id)

	var (
		a     booking.Agency
		audit auditCols
	)
	err := row.Scan(append([]any{&a.ID, &a.Name, &a.Active}, audit.dest()...)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agency: %w", err)
	}
	a.Audit = audit.audit()
	return &a, nil
}

const customerColumns = `id, full_name, phone, email, created_by, created_on, modified_by, modified_on, deleted_by, deleted_on, is_deleted`

func (s *Store) GetCustomer(ctx context.Context, id booking.CustomerID) (*booking.Customer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)

	var (
		c     booking.Customer
		audit auditCols
	)
	err := row.Scan(append([]any{&c.ID, &c.FullName, &c.Phone, &c.Email}, audit.dest()...)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	c.Audit = audit.audit()
	return &c, nil
}

// SaveAgency inserts when ID is zero, otherwise upserts by id.
func (s *Store) SaveAgency(ctx context.Context, a booking.Agency) (booking.Agency, error) {
	if a.CreatedOn.IsZero() {
		a.CreatedOn = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO agencies (id, name, is_active, created_by, created_on, is_deleted)
		VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			is_active = excluded.is_active,
			is_deleted = excluded.is_deleted`,
		a.ID, a.Name, a.Active, a.CreatedBy, a.CreatedOn.Format(timeLayout), a.Deleted,
	)
	if err != nil {
		return booking.Agency{}, fmt.Errorf("failed to save agency: %w", err)
	}
	if a.ID == 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return booking.Agency{}, err
		}
		a.ID = booking.AgencyID(id)
	}
	return a, nil
}

func (s *Store) SaveCustomer(ctx context.Context, c booking.Customer) (booking.Customer, error) {
	if c.CreatedOn.IsZero() {
		c.CreatedOn = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, full_name, phone, email, created_by, created_on, is_deleted)
		VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			full_name = excluded.full_name,
			phone = excluded.phone,
			email = excluded.email,
			is_deleted = excluded.is_deleted`,
		c.ID, c.FullName, c.Phone, c.Email, c.CreatedBy, c.CreatedOn.Format(timeLayout), c.Deleted,
	)
	if err != nil {
		return booking.Customer{}, fmt.Errorf("failed to save customer: %w", err)
	}
	if c.ID == 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return booking.Customer{}, err
		}
		c.ID = booking.CustomerID(id)
	}
	return c, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

const holidayColumns = `id, agency_id, off_date, reason, created_by, created_on, modified_by, modified_on, deleted_by, deleted_on, is_deleted`

func (s *Store) HolidayOn(ctx context.Context, agencyID booking.AgencyID, day booking.Day) (*booking.Holiday, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+holidayColumns+` FROM holidays WHERE agency_id = ? AND off_date = ? AND is_deleted = 0 LIMIT 1`,
		agencyID, day.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query holiday: %w", err)
	}
	holidays, err := scanHolidays(rows)
	if err != nil || len(holidays) == 0 {
		return nil, err
	}
	return &holidays[0], nil
}

func (s *Store) ListHolidays(ctx context.Context, agencyID booking.AgencyID) ([]booking.Holiday, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+holidayColumns+` FROM holidays WHERE agency_id = ? AND is_deleted = 0 ORDER BY off_date`,
		agencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
	}
	return scanHolidays(rows)
}

func (s *Store) InsertHoliday(ctx context.Context, h booking.Holiday) (booking.Holiday, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (agency_id, off_date, reason, created_by, created_on)
		VALUES (?, ?, ?, ?, ?)`,
		h.AgencyID, h.Day.String(), h.Reason, h.CreatedBy, h.CreatedOn.Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return booking.Holiday{}, &booking.ConflictError{Reason: "holiday already exists for this date", AgencyID: h.AgencyID, Day: h.Day}
		}
		return booking.Holiday{}, fmt.Errorf("failed to insert holiday: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return booking.Holiday{}, err
	}
	h.ID = booking.HolidayID(id)
	return h, nil
}

func (s *Store) SoftDeleteHoliday(ctx context.Context, id booking.HolidayID, actor booking.Actor, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE holidays SET is_deleted = 1, deleted_by = ?, deleted_on = ?
		WHERE id = ? AND is_deleted = 0`,
		actor, at.Format(timeLayout), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete holiday: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func scanHolidays(rows *sql.Rows) ([]booking.Holiday, error) {
	defer rows.Close()
	out := make([]booking.Holiday, 0)
	for rows.Next() {
		var (
			h     booking.Holiday
			day   string
			audit auditCols
		)
		if err := rows.Scan(append([]any{&h.ID, &h.AgencyID, &day, &h.Reason}, audit.dest()...)...); err != nil {
			return nil, err
		}
		d, err := booking.ParseDay(day)
		if err != nil {
			return nil, err
		}
		h.Day = d
		h.Audit = audit.audit()
		out = append(out, h)
	}
	return out, rows.Err()
}

// =============================================================================
// QUOTAS
// =============================================================================

func (s *Store) GetSetting(ctx context.Context, agencyID booking.AgencyID) (*booking.AgencySetting, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT agency_id, max_appointments, created_by, created_on, modified_by, modified_on, deleted_by, deleted_on, is_deleted
		FROM agency_settings WHERE agency_id = ? AND is_deleted = 0`, agencyID)

	var (
		st    booking.AgencySetting
		audit auditCols
	)
	err := row.Scan(append([]any{&st.AgencyID, &st.MaxAppointments}, audit.dest()...)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agency setting: %w", err)
	}
	st.Audit = audit.audit()
	return &st, nil
}

func (s *Store) UpsertSetting(ctx context.Context, st booking.AgencySetting) (booking.AgencySetting, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agency_settings (agency_id, max_appointments, created_by, created_on, modified_by, modified_on, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(agency_id) DO UPDATE SET
			max_appointments = excluded.max_appointments,
			modified_by = excluded.modified_by,
			modified_on = excluded.modified_on,
			is_deleted = 0`,
		st.AgencyID, st.MaxAppointments, st.CreatedBy, st.CreatedOn.Format(timeLayout),
		nullString(string(st.ModifiedBy)), nullTime(st.ModifiedOn),
	)
	if err != nil {
		return booking.AgencySetting{}, fmt.Errorf("failed to upsert agency setting: %w", err)
	}
	return st, nil
}

const overrideColumns = `agency_id, override_date, max_appointments, created_by, created_on, modified_by, modified_on, deleted_by, deleted_on, is_deleted`

func (s *Store) GetOverride(ctx context.Context, agencyID booking.AgencyID, day booking.Day) (*booking.QuotaOverride, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+overrideColumns+` FROM agency_quota_overrides WHERE agency_id = ? AND override_date = ? AND is_deleted = 0`,
		agencyID, day.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query quota override: %w", err)
	}
	out, err := scanOverrides(rows)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}

func (s *Store) ListOverrides(ctx context.Context, agencyID booking.AgencyID) ([]booking.QuotaOverride, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+overrideColumns+` FROM agency_quota_overrides WHERE agency_id = ? AND is_deleted = 0 ORDER BY override_date`,
		agencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list quota overrides: %w", err)
	}
	return scanOverrides(rows)
}

// UpsertOverride replaces the live override of (agency, day), keeping its
// creation stamp.
func (s *Store) UpsertOverride(ctx context.Context, o booking.QuotaOverride) (booking.QuotaOverride, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return booking.QuotaOverride{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE agency_quota_overrides
		SET max_appointments = ?, modified_by = ?, modified_on = ?
		WHERE agency_id = ? AND override_date = ? AND is_deleted = 0`,
		o.MaxAppointments, o.CreatedBy, o.CreatedOn.Format(timeLayout), o.AgencyID, o.Day.String(),
	)
	if err != nil {
		return booking.QuotaOverride{}, fmt.Errorf("failed to update quota override: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO agency_quota_overrides (agency_id, override_date, max_appointments, created_by, created_on)
			VALUES (?, ?, ?, ?, ?)`,
			o.AgencyID, o.Day.String(), o.MaxAppointments, o.CreatedBy, o.CreatedOn.Format(timeLayout),
		); err != nil {
			return booking.QuotaOverride{}, fmt.Errorf("failed to insert quota override: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return booking.QuotaOverride{}, err
	}
	return o, nil
}

func (s *Store) SoftDeleteOverride(ctx context.Context, agencyID booking.AgencyID, day booking.Day, actor booking.Actor, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE agency_quota_overrides SET is_deleted = 1, deleted_by = ?, deleted_on = ?
		WHERE agency_id = ? AND override_date = ? AND is_deleted = 0`,
		actor, at.Format(timeLayout), agencyID, day.String(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete quota override: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func scanOverrides(rows *sql.Rows) ([]booking.QuotaOverride, error) {
	defer rows.Close()
	out := make([]booking.QuotaOverride, 0)
	for rows.Next() {
		var (
			o     booking.QuotaOverride
			day   string
			audit auditCols
		)
		if err := rows.Scan(append([]any{&o.AgencyID, &day, &o.MaxAppointments}, audit.dest()...)...); err != nil {
			return nil, err
		}
		d, err := booking.ParseDay(day)
		if err != nil {
			return nil, err
		}
		o.Day = d
		o.Audit = audit.audit()
		out = append(out, o)
	}
	return out, rows.Err()
}

// =============================================================================
// APPOINTMENTS
// =============================================================================

const appointmentColumns = `id, agency_id, customer_id, appt_date, token_number, status, notes, version, created_by, created_on, modified_by, modified_on, deleted_by, deleted_on, is_deleted`

func (s *Store) GetAppointment(ctx context.Context, id booking.AppointmentID) (*booking.Appointment, error) {
	out, err := s.queryAppointments(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = ? AND is_deleted = 0`, id)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}

func (s *Store) AppointmentsOn(ctx context.Context, agencyID booking.AgencyID, day booking.Day) ([]booking.Appointment, error) {
	return s.queryAppointments(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE agency_id = ? AND appt_date = ? AND is_deleted = 0
		ORDER BY token_number, id`, agencyID, day.String())
}

func (s *Store) AllAppointmentsOn(ctx context.Context, day booking.Day) ([]booking.Appointment, error) {
	return s.queryAppointments(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE appt_date = ? AND is_deleted = 0
		ORDER BY agency_id, token_number, id`, day.String())
}

func (s *Store) InsertAppointment(ctx context.Context, a booking.Appointment) (booking.Appointment, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO appointments (agency_id, customer_id, appt_date, token_number, status, notes, created_by, created_on)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.AgencyID, a.CustomerID, a.Day.String(), int64(a.Token), string(a.Status), a.Notes,
		a.CreatedBy, a.CreatedOn.Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return booking.Appointment{}, &booking.ConflictError{Reason: "token already issued", AgencyID: a.AgencyID, Day: a.Day}
		}
		return booking.Appointment{}, fmt.Errorf("failed to insert appointment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return booking.Appointment{}, err
	}
	a.ID = booking.AppointmentID(id)
	a.Version = 1
	return a, nil
}

// UpdateAppointment writes a only if the stored row is still at a.Version.
func (s *Store) UpdateAppointment(ctx context.Context, a booking.Appointment) (booking.Appointment, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE appointments
		SET appt_date = ?, token_number = ?, status = ?, notes = ?, modified_by = ?, modified_on = ?,
			version = version + 1
		WHERE id = ? AND is_deleted = 0 AND version = ?`,
		a.Day.String(), int64(a.Token), string(a.Status), a.Notes,
		nullString(string(a.ModifiedBy)), nullTime(a.ModifiedOn), a.ID, a.Version,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return booking.Appointment{}, &booking.ConflictError{Reason: "token already issued", AgencyID: a.AgencyID, Day: a.Day}
		}
		return booking.Appointment{}, fmt.Errorf("failed to update appointment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		cur, err := s.GetAppointment(ctx, a.ID)
		if err != nil {
			return booking.Appointment{}, err
		}
		if cur == nil {
			return booking.Appointment{}, &booking.NotFoundError{Resource: "appointment", ID: int64(a.ID)}
		}
		return booking.Appointment{}, &booking.ConflictError{Reason: "appointment was modified concurrently", AgencyID: cur.AgencyID, Day: cur.Day}
	}
	a.Version++
	return a, nil
}

func (s *Store) queryAppointments(ctx context.Context, query string, args ...any) ([]booking.Appointment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	out := make([]booking.Appointment, 0)
	for rows.Next() {
		var (
			a      booking.Appointment
			day    string
			token  int64
			status string
			audit  auditCols
		)
		dest := append([]any{&a.ID, &a.AgencyID, &a.CustomerID, &day, &token, &status, &a.Notes, &a.Version}, audit.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		d, err := booking.ParseDay(day)
		if err != nil {
			return nil, err
		}
		a.Day = d
		a.Token = booking.Token(token)
		a.Status = booking.Status(status)
		a.Audit = audit.audit()
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, e booking.AuditEntry) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode audit payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, at, actor, action, agency_id, appointment_id, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.At.UTC().Format(timeLayout), string(e.Actor), string(e.Action),
		nullInt(int64(e.AgencyID)), nullInt(int64(e.AppointmentID)), string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *Store) AuditFor(ctx context.Context, id booking.AppointmentID) ([]booking.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, at, actor, action, agency_id, appointment_id, payload_json
		FROM audit_log WHERE appointment_id = ? ORDER BY at, rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	out := make([]booking.AuditEntry, 0)
	for rows.Next() {
		var (
			e             booking.AuditEntry
			at            string
			agency, appt  sql.NullInt64
			payload       sql.NullString
			actor, action string
		)
		if err := rows.Scan(&e.ID, &at, &actor, &action, &agency, &appt, &payload); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(timeLayout, at)
		e.Actor = booking.Actor(actor)
		e.Action = booking.AuditAction(action)
		e.AgencyID = booking.AgencyID(agency.Int64)
		e.AppointmentID = booking.AppointmentID(appt.Int64)
		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("failed to decode audit payload: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

// auditCols scans the shared created/modified/deleted columns.
type auditCols struct {
	createdBy  string
	createdOn  string
	modifiedBy sql.NullString
	modifiedOn sql.NullString
	deletedBy  sql.NullString
	deletedOn  sql.NullString
	deleted    bool
}

func (c *auditCols) dest() []any {
	return []any{&c.createdBy, &c.createdOn, &c.modifiedBy, &c.modifiedOn, &c.deletedBy, &c.deletedOn, &c.deleted}
}

func (c *auditCols) audit() booking.Audit {
	a := booking.Audit{
		CreatedBy:  booking.Actor(c.createdBy),
		ModifiedBy: booking.Actor(c.modifiedBy.String),
		DeletedBy:  booking.Actor(c.deletedBy.String),
		Deleted:    c.deleted,
	}
	a.CreatedOn, _ = time.Parse(timeLayout, c.createdOn)
	a.ModifiedOn = parseNullTime(c.modifiedOn)
	a.DeletedOn = parseNullTime(c.deletedOn)
	return a
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func nullInt(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) &&
		(se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

var (
	_ booking.Store           = (*Store)(nil)
	_ booking.DirectoryWriter = (*Store)(nil)
)
