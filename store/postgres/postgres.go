/*
Package postgres provides a PostgreSQL-backed booking.Store and an
advisory-lock SlotLocker for multi-instance deployments.

SCHEMA:
  Same tables and partial unique indexes as store/sqlite, with native DATE,
  TIMESTAMPTZ and JSONB columns. Migrated on New.

CONFLICTS:
  unique_violation (23505) on idx_active_token or idx_live_holiday is
  reported as booking.ErrConflict so the Service can re-run allocation.
*/
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warp/agency-booking/booking"
)

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

// Open connects a pool to databaseURL and verifies it with a ping.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// New wraps an open pool and migrates the schema.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() { s.pool.Close() }

// Pool exposes the pool so an AdvisoryLocker can share it.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS agencies (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_by TEXT NOT NULL DEFAULT '',
		created_on TIMESTAMPTZ NOT NULL DEFAULT now(),
		modified_by TEXT,
		modified_on TIMESTAMPTZ,
		deleted_by TEXT,
		deleted_on TIMESTAMPTZ,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS customers (
		id BIGSERIAL PRIMARY KEY,
		full_name TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		created_on TIMESTAMPTZ NOT NULL DEFAULT now(),
		modified_by TEXT,
		modified_on TIMESTAMPTZ,
		deleted_by TEXT,
		deleted_on TIMESTAMPTZ,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS agency_settings (
		agency_id BIGINT PRIMARY KEY REFERENCES agencies(id),
		max_appointments INTEGER NOT NULL,
		created_by TEXT NOT NULL,
		created_on TIMESTAMPTZ NOT NULL,
		modified_by TEXT,
		modified_on TIMESTAMPTZ,
		deleted_by TEXT,
		deleted_on TIMESTAMPTZ,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS agency_quota_overrides (
		id BIGSERIAL PRIMARY KEY,
		agency_id BIGINT NOT NULL REFERENCES agencies(id),
		override_date DATE NOT NULL,
		max_appointments INTEGER NOT NULL,
		created_by TEXT NOT NULL,
		created_on TIMESTAMPTZ NOT NULL,
		modified_by TEXT,
		modified_on TIMESTAMPTZ,
		deleted_by TEXT,
		deleted_on TIMESTAMPTZ,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_live_override
		ON agency_quota_overrides(agency_id, override_date) WHERE NOT is_deleted;

	CREATE TABLE IF NOT EXISTS holidays (
		id BIGSERIAL PRIMARY KEY,
		agency_id BIGINT NOT NULL REFERENCES agencies(id),
		off_date DATE NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL,
		created_on TIMESTAMPTZ NOT NULL,
		modified_by TEXT,
		modified_on TIMESTAMPTZ,
		deleted_by TEXT,
		deleted_on TIMESTAMPTZ,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_live_holiday
		ON holidays(agency_id, off_date) WHERE NOT is_deleted;

	CREATE TABLE IF NOT EXISTS appointments (
		id BIGSERIAL PRIMARY KEY,
		agency_id BIGINT NOT NULL REFERENCES agencies(id),
		customer_id BIGINT NOT NULL REFERENCES customers(id),
		appt_date DATE NOT NULL,
		token_number BIGINT NOT NULL,
		status TEXT NOT NULL,
		notes VARCHAR(500) NOT NULL DEFAULT '',
		version BIGINT NOT NULL DEFAULT 1,
		created_by TEXT NOT NULL,
		created_on TIMESTAMPTZ NOT NULL,
		modified_by TEXT,
		modified_on TIMESTAMPTZ,
		deleted_by TEXT,
		deleted_on TIMESTAMPTZ,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE INDEX IF NOT EXISTS idx_appointments_agency_date
		ON appointments(agency_id, appt_date);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_active_token
		ON appointments(agency_id, appt_date, token_number)
		WHERE status <> 'Cancelled' AND NOT is_deleted;

	CREATE TABLE IF NOT EXISTS audit_log (
		id UUID PRIMARY KEY,
		seq BIGSERIAL,
		at TIMESTAMPTZ NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		agency_id BIGINT,
		appointment_id BIGINT,
		payload JSONB
	);
	CREATE INDEX IF NOT EXISTS idx_audit_appointment ON audit_log(appointment_id, at);
	`)
	return err
}

// =============================================================================
// DIRECTORY
// =============================================================================

const auditSelect = `created_by, created_on, modified_by, modified_on, deleted_by, deleted_on, is_deleted`

func (s *Store) GetAgency(ctx context.Context, id booking.AgencyID) (*booking.Agency, error) {
	var (
		a     booking.Agency
		audit auditCols
	)
	err := s.pool.QueryRow(ctx, `SELECT id, name, is_active, `+auditSelect+` FROM agencies WHERE id = $1`, int64(id)).
		Scan(append([]any{&a.ID, &a.Name, &a.Active}, audit.dest()...)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agency: %w", err)
	}
	a.Audit = audit.audit()
	return &a, nil
}

func (s *Store) GetCustomer(ctx context.Context, id booking.CustomerID) (*booking.Customer, error) {
	var (
		c     booking.Customer
		audit auditCols
	)
	err := s.pool.QueryRow(ctx, `SELECT id, full_name, phone, email, `+auditSelect+` FROM customers WHERE id = $1`, int64(id)).
		Scan(append([]any{&c.ID, &c.FullName, &c.Phone, &c.Email}, audit.dest()...)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	c.Audit = audit.audit()
	return &c, nil
}

func (s *Store) SaveAgency(ctx context.Context, a booking.Agency) (booking.Agency, error) {
	if a.CreatedOn.IsZero() {
		a.CreatedOn = time.Now().UTC()
	}
	var id int64
	var err error
	if a.ID == 0 {
		err = s.pool.QueryRow(ctx, `
			INSERT INTO agencies (name, is_active, created_by, created_on, is_deleted)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			a.Name, a.Active, string(a.CreatedBy), a.CreatedOn, a.Deleted).Scan(&id)
	} else {
		err = s.pool.QueryRow(ctx, `
			INSERT INTO agencies (id, name, is_active, created_by, created_on, is_deleted)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, is_active = EXCLUDED.is_active, is_deleted = EXCLUDED.is_deleted
			RETURNING id`,
			int64(a.ID), a.Name, a.Active, string(a.CreatedBy), a.CreatedOn, a.Deleted).Scan(&id)
	}
	if err != nil {
		return booking.Agency{}, fmt.Errorf("failed to save agency: %w", err)
	}
	a.ID = booking.AgencyID(id)
	return a, nil
}

func (s *Store) SaveCustomer(ctx context.Context, c booking.Customer) (booking.Customer, error) {
	if c.CreatedOn.IsZero() {
		c.CreatedOn = time.Now().UTC()
	}
	var id int64
	var err error
	if c.ID == 0 {
		err = s.pool.QueryRow(ctx, `
			INSERT INTO customers (full_name, phone, email, created_by, created_on, is_deleted)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			c.FullName, c.Phone, c.Email, string(c.CreatedBy), c.CreatedOn, c.Deleted).Scan(&id)
	} else {
		err = s.pool.QueryRow(ctx, `
			INSERT INTO customers (id, full_name, phone, email, created_by, created_on, is_deleted)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET full_name = EXCLUDED.full_name, phone = EXCLUDED.phone,
				email = EXCLUDED.email, is_deleted = EXCLUDED.is_deleted
			RETURNING id`,
			int64(c.ID), c.FullName, c.Phone, c.Email, string(c.CreatedBy), c.CreatedOn, c.Deleted).Scan(&id)
	}
	if err != nil {
		return booking.Customer{}, fmt.Errorf("failed to save customer: %w", err)
	}
	c.ID = booking.CustomerID(id)
	return c, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

const holidaySelect = `SELECT id, agency_id, off_date, reason, ` + auditSelect + ` FROM holidays`

func (s *Store) HolidayOn(ctx context.Context, agencyID booking.AgencyID, day booking.Day) (*booking.Holiday, error) {
	out, err := s.queryHolidays(ctx, holidaySelect+` WHERE agency_id = $1 AND off_date = $2 AND NOT is_deleted LIMIT 1`,
		int64(agencyID), day.Time)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}

func (s *Store) ListHolidays(ctx context.Context, agencyID booking.AgencyID) ([]booking.Holiday, error) {
	return s.queryHolidays(ctx, holidaySelect+` WHERE agency_id = $1 AND NOT is_deleted ORDER BY off_date`, int64(agencyID))
}

func (s *Store) InsertHoliday(ctx context.Context, h booking.Holiday) (booking.Holiday, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO holidays (agency_id, off_date, reason, created_by, created_on)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		int64(h.AgencyID), h.Day.Time, h.Reason, string(h.CreatedBy), h.CreatedOn).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return booking.Holiday{}, &booking.ConflictError{Reason: "holiday already exists for this date", AgencyID: h.AgencyID, Day: h.Day}
		}
		return booking.Holiday{}, fmt.Errorf("failed to insert holiday: %w", err)
	}
	h.ID = booking.HolidayID(id)
	return h, nil
}

func (s *Store) SoftDeleteHoliday(ctx context.Context, id booking.HolidayID, actor booking.Actor, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE holidays SET is_deleted = TRUE, deleted_by = $2, deleted_on = $3
		WHERE id = $1 AND NOT is_deleted`, int64(id), string(actor), at)
	if err != nil {
		return false, fmt.Errorf("failed to delete holiday: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) queryHolidays(ctx context.Context, query string, args ...any) ([]booking.Holiday, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	out := make([]booking.Holiday, 0)
	for rows.Next() {
		var (
			h     booking.Holiday
			day   time.Time
			audit auditCols
		)
		if err := rows.Scan(append([]any{&h.ID, &h.AgencyID, &day, &h.Reason}, audit.dest()...)...); err != nil {
			return nil, err
		}
		h.Day = booking.DayOf(day)
		h.Audit = audit.audit()
		out = append(out, h)
	}
	return out, rows.Err()
}

// =============================================================================
// QUOTAS
// =============================================================================

func (s *Store) GetSetting(ctx context.Context, agencyID booking.AgencyID) (*booking.AgencySetting, error) {
	var (
		st    booking.AgencySetting
		audit auditCols
	)
	err := s.pool.QueryRow(ctx, `
		SELECT agency_id, max_appointments, `+auditSelect+`
		FROM agency_settings WHERE agency_id = $1 AND NOT is_deleted`, int64(agencyID)).
		Scan(append([]any{&st.AgencyID, &st.MaxAppointments}, audit.dest()...)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agency setting: %w", err)
	}
	st.Audit = audit.audit()
	return &st, nil
}

func (s *Store) UpsertSetting(ctx context.Context, st booking.AgencySetting) (booking.AgencySetting, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agency_settings (agency_id, max_appointments, created_by, created_on, modified_by, modified_on)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (agency_id) DO UPDATE SET
			max_appointments = EXCLUDED.max_appointments,
			modified_by = EXCLUDED.modified_by,
			modified_on = EXCLUDED.modified_on,
			is_deleted = FALSE`,
		int64(st.AgencyID), st.MaxAppointments, string(st.CreatedBy), st.CreatedOn,
		nullText(string(st.ModifiedBy)), st.ModifiedOn)
	if err != nil {
		return booking.AgencySetting{}, fmt.Errorf("failed to upsert agency setting: %w", err)
	}
	return st, nil
}

const overrideSelect = `SELECT agency_id, override_date, max_appointments, ` + auditSelect + ` FROM agency_quota_overrides`

func (s *Store) GetOverride(ctx context.Context, agencyID booking.AgencyID, day booking.Day) (*booking.QuotaOverride, error) {
	out, err := s.queryOverrides(ctx, overrideSelect+` WHERE agency_id = $1 AND override_date = $2 AND NOT is_deleted`,
		int64(agencyID), day.Time)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}

func (s *Store) ListOverrides(ctx context.Context, agencyID booking.AgencyID) ([]booking.QuotaOverride, error) {
	return s.queryOverrides(ctx, overrideSelect+` WHERE agency_id = $1 AND NOT is_deleted ORDER BY override_date`, int64(agencyID))
}

func (s *Store) UpsertOverride(ctx context.Context, o booking.QuotaOverride) (booking.QuotaOverride, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agency_quota_overrides (agency_id, override_date, max_appointments, created_by, created_on)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (agency_id, override_date) WHERE NOT is_deleted DO UPDATE SET
			max_appointments = EXCLUDED.max_appointments,
			modified_by = EXCLUDED.created_by,
			modified_on = EXCLUDED.created_on`,
		int64(o.AgencyID), o.Day.Time, o.MaxAppointments, string(o.CreatedBy), o.CreatedOn)
	if err != nil {
		return booking.QuotaOverride{}, fmt.Errorf("failed to upsert quota override: %w", err)
	}
	return o, nil
}

func (s *Store) SoftDeleteOverride(ctx context.Context, agencyID booking.AgencyID, day booking.Day, actor booking.Actor, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE agency_quota_overrides SET is_deleted = TRUE, deleted_by = $3, deleted_on = $4
		WHERE agency_id = $1 AND override_date = $2 AND NOT is_deleted`,
		int64(agencyID), day.Time, string(actor), at)
	if err != nil {
		return false, fmt.Errorf("failed to delete quota override: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) queryOverrides(ctx context.Context, query string, args ...any) ([]booking.QuotaOverride, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query quota overrides: %w", err)
	}
	defer rows.Close()

	out := make([]booking.QuotaOverride, 0)
	for rows.Next() {
		var (
			o     booking.QuotaOverride
			day   time.Time
			audit auditCols
		)
		if err := rows.Scan(append([]any{&o.AgencyID, &day, &o.MaxAppointments}, audit.dest()...)...); err != nil {
			return nil, err
		}
		o.Day = booking.DayOf(day)
		o.Audit = audit.audit()
		out = append(out, o)
	}
	return out, rows.Err()
}

// =============================================================================
// APPOINTMENTS
// =============================================================================

const appointmentSelect = `SELECT id, agency_id, customer_id, appt_date, token_number, status, notes, version, ` + auditSelect + ` FROM appointments`

func (s *Store) GetAppointment(ctx context.Context, id booking.AppointmentID) (*booking.Appointment, error) {
	out, err := s.queryAppointments(ctx, appointmentSelect+` WHERE id = $1 AND NOT is_deleted`, int64(id))
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}

func (s *Store) AppointmentsOn(ctx context.Context, agencyID booking.AgencyID, day booking.Day) ([]booking.Appointment, error) {
	return s.queryAppointments(ctx, appointmentSelect+`
		WHERE agency_id = $1 AND appt_date = $2 AND NOT is_deleted
		ORDER BY token_number, id`, int64(agencyID), day.Time)
}

func (s *Store) AllAppointmentsOn(ctx context.Context, day booking.Day) ([]booking.Appointment, error) {
	return s.queryAppointments(ctx, appointmentSelect+`
		WHERE appt_date = $1 AND NOT is_deleted
		ORDER BY agency_id, token_number, id`, day.Time)
}

func (s *Store) InsertAppointment(ctx context.Context, a booking.Appointment) (booking.Appointment, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO appointments (agency_id, customer_id, appt_date, token_number, status, notes, created_by, created_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		int64(a.AgencyID), int64(a.CustomerID), a.Day.Time, int64(a.Token), string(a.Status), a.Notes,
		string(a.CreatedBy), a.CreatedOn).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return booking.Appointment{}, &booking.ConflictError{Reason: "token already issued", AgencyID: a.AgencyID, Day: a.Day}
		}
		return booking.Appointment{}, fmt.Errorf("failed to insert appointment: %w", err)
	}
	a.ID = booking.AppointmentID(id)
	a.Version = 1
	return a, nil
}

// UpdateAppointment writes a only if the stored row is still at a.Version.
func (s *Store) UpdateAppointment(ctx context.Context, a booking.Appointment) (booking.Appointment, error) {
	var version int64
	err := s.pool.QueryRow(ctx, `
		UPDATE appointments
		SET appt_date = $2, token_number = $3, status = $4, notes = $5, modified_by = $6, modified_on = $7,
			version = version + 1
		WHERE id = $1 AND NOT is_deleted AND version = $8
		RETURNING version`,
		int64(a.ID), a.Day.Time, int64(a.Token), string(a.Status), a.Notes,
		nullText(string(a.ModifiedBy)), a.ModifiedOn, a.Version).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return booking.Appointment{}, s.staleAppointment(ctx, a)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return booking.Appointment{}, &booking.ConflictError{Reason: "token already issued", AgencyID: a.AgencyID, Day: a.Day}
		}
		return booking.Appointment{}, fmt.Errorf("failed to update appointment: %w", err)
	}
	a.Version = version
	return a, nil
}

// staleAppointment explains an update that matched no row.
func (s *Store) staleAppointment(ctx context.Context, a booking.Appointment) error {
	cur, err := s.GetAppointment(ctx, a.ID)
	if err != nil {
		return err
	}
	if cur == nil {
		return &booking.NotFoundError{Resource: "appointment", ID: int64(a.ID)}
	}
	return &booking.ConflictError{Reason: "appointment was modified concurrently", AgencyID: cur.AgencyID, Day: cur.Day}
}

func (s *Store) queryAppointments(ctx context.Context, query string, args ...any) ([]booking.Appointment, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	out := make([]booking.Appointment, 0)
	for rows.Next() {
		var (
			a      booking.Appointment
			day    time.Time
			token  int64
			status string
			audit  auditCols
		)
		dest := append([]any{&a.ID, &a.AgencyID, &a.CustomerID, &day, &token, &status, &a.Notes, &a.Version}, audit.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		a.Day = booking.DayOf(day)
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
	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_log (id, at, actor, action, agency_id, appointment_id, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.At, string(e.Actor), string(e.Action),
		nullInt(int64(e.AgencyID)), nullInt(int64(e.AppointmentID)), payload)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *Store) AuditFor(ctx context.Context, id booking.AppointmentID) ([]booking.AuditEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, at, actor, action, COALESCE(agency_id, 0), COALESCE(appointment_id, 0), payload
		FROM audit_log WHERE appointment_id = $1 ORDER BY at, seq`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	out := make([]booking.AuditEntry, 0)
	for rows.Next() {
		var (
			e             booking.AuditEntry
			actor, action string
			agency, appt  int64
			payload       []byte
		)
		if err := rows.Scan(&e.ID, &e.At, &actor, &action, &agency, &appt, &payload); err != nil {
			return nil, err
		}
		e.Actor = booking.Actor(actor)
		e.Action = booking.AuditAction(action)
		e.AgencyID = booking.AgencyID(agency)
		e.AppointmentID = booking.AppointmentID(appt)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
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

type auditCols struct {
	createdBy  string
	createdOn  time.Time
	modifiedBy *string
	modifiedOn *time.Time
	deletedBy  *string
	deletedOn  *time.Time
	deleted    bool
}

func (c *auditCols) dest() []any {
	return []any{&c.createdBy, &c.createdOn, &c.modifiedBy, &c.modifiedOn, &c.deletedBy, &c.deletedOn, &c.deleted}
}

func (c *auditCols) audit() booking.Audit {
	a := booking.Audit{
		CreatedBy:  booking.Actor(c.createdBy),
		CreatedOn:  c.createdOn,
		ModifiedOn: c.modifiedOn,
		DeletedOn:  c.deletedOn,
		Deleted:    c.deleted,
	}
	if c.modifiedBy != nil {
		a.ModifiedBy = booking.Actor(*c.modifiedBy)
	}
	if c.deletedBy != nil {
		a.DeletedBy = booking.Actor(*c.deletedBy)
	}
	return a
}

func nullText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullInt(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var (
	_ booking.Store           = (*Store)(nil)
	_ booking.DirectoryWriter = (*Store)(nil)
)
