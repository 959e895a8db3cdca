// Package store provides in-process booking.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/agency-booking/booking"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	agencies     map[booking.AgencyID]booking.Agency
	customers    map[booking.CustomerID]booking.Customer
	settings     map[booking.AgencyID]booking.AgencySetting
	overrides    map[dayKey]booking.QuotaOverride
	holidays     map[booking.HolidayID]booking.Holiday
	appointments map[booking.AppointmentID]booking.Appointment
	audit        []booking.AuditEntry

	nextAgency      booking.AgencyID
	nextCustomer    booking.CustomerID
	nextHoliday     booking.HolidayID
	nextAppointment booking.AppointmentID
}

type dayKey struct {
	AgencyID booking.AgencyID
	Day      int64
}

func keyOf(agencyID booking.AgencyID, day booking.Day) dayKey {
	return dayKey{AgencyID: agencyID, Day: day.Number()}
}

func NewMemory() *Memory {
	return &Memory{
		agencies:     make(map[booking.AgencyID]booking.Agency),
		customers:    make(map[booking.CustomerID]booking.Customer),
		settings:     make(map[booking.AgencyID]booking.AgencySetting),
		overrides:    make(map[dayKey]booking.QuotaOverride),
		holidays:     make(map[booking.HolidayID]booking.Holiday),
		appointments: make(map[booking.AppointmentID]booking.Appointment),
	}
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (m *Memory) GetAgency(_ context.Context, id booking.AgencyID) (*booking.Agency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agencies[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) GetCustomer(_ context.Context, id booking.CustomerID) (*booking.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// SaveAgency inserts when ID is zero, otherwise replaces.
func (m *Memory) SaveAgency(_ context.Context, a booking.Agency) (booking.Agency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == 0 {
		m.nextAgency++
		a.ID = m.nextAgency
	} else if a.ID > m.nextAgency {
		m.nextAgency = a.ID
	}
	m.agencies[a.ID] = a
	return a, nil
}

func (m *Memory) SaveCustomer(_ context.Context, c booking.Customer) (booking.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		m.nextCustomer++
		c.ID = m.nextCustomer
	} else if c.ID > m.nextCustomer {
		m.nextCustomer = c.ID
	}
	m.customers[c.ID] = c
	return c, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (m *Memory) HolidayOn(_ context.Context, agencyID booking.AgencyID, day booking.Day) (*booking.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if h, ok := m.holidayOnLocked(agencyID, day); ok {
		return &h, nil
	}
	return nil, nil
}

func (m *Memory) holidayOnLocked(agencyID booking.AgencyID, day booking.Day) (booking.Holiday, bool) {
	for _, h := range m.holidays {
		if h.AgencyID == agencyID && h.Day.Equal(day) && !h.Deleted {
			return h, true
		}
	}
	return booking.Holiday{}, false
}

func (m *Memory) ListHolidays(_ context.Context, agencyID booking.AgencyID) ([]booking.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]booking.Holiday, 0)
	for _, h := range m.holidays {
		if h.AgencyID == agencyID && !h.Deleted {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (m *Memory) InsertHoliday(_ context.Context, h booking.Holiday) (booking.Holiday, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.holidayOnLocked(h.AgencyID, h.Day); ok {
		return booking.Holiday{}, &booking.ConflictError{Reason: "holiday already exists for this date", AgencyID: h.AgencyID, Day: h.Day}
	}
	m.nextHoliday++
	h.ID = m.nextHoliday
	m.holidays[h.ID] = h
	return h, nil
}

func (m *Memory) SoftDeleteHoliday(_ context.Context, id booking.HolidayID, actor booking.Actor, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holidays[id]
	if !ok || h.Deleted {
		return false, nil
	}
	h.StampDeleted(actor, at)
	m.holidays[id] = h
	return true, nil
}

// =============================================================================
// QUOTAS
// =============================================================================

func (m *Memory) GetSetting(_ context.Context, agencyID booking.AgencyID) (*booking.AgencySetting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[agencyID]
	if !ok || s.Deleted {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) UpsertSetting(_ context.Context, s booking.AgencySetting) (booking.AgencySetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[s.AgencyID] = s
	return s, nil
}

func (m *Memory) GetOverride(_ context.Context, agencyID booking.AgencyID, day booking.Day) (*booking.QuotaOverride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.overrides[keyOf(agencyID, day)]
	if !ok || o.Deleted {
		return nil, nil
	}
	return &o, nil
}

func (m *Memory) ListOverrides(_ context.Context, agencyID booking.AgencyID) ([]booking.QuotaOverride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]booking.QuotaOverride, 0)
	for _, o := range m.overrides {
		if o.AgencyID == agencyID && !o.Deleted {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

// UpsertOverride keeps the original creation stamp when replacing a live row.
func (m *Memory) UpsertOverride(_ context.Context, o booking.QuotaOverride) (booking.QuotaOverride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := keyOf(o.AgencyID, o.Day)
	if prev, ok := m.overrides[k]; ok && !prev.Deleted {
		actor, at := o.CreatedBy, o.CreatedOn
		o.Audit = prev.Audit
		o.StampModified(actor, at)
	}
	m.overrides[k] = o
	return o, nil
}

func (m *Memory) SoftDeleteOverride(_ context.Context, agencyID booking.AgencyID, day booking.Day, actor booking.Actor, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := keyOf(agencyID, day)
	o, ok := m.overrides[k]
	if !ok || o.Deleted {
		return false, nil
	}
	o.StampDeleted(actor, at)
	m.overrides[k] = o
	return true, nil
}

// =============================================================================
// APPOINTMENTS
// =============================================================================

func (m *Memory) GetAppointment(_ context.Context, id booking.AppointmentID) (*booking.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok || a.Deleted {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) AppointmentsOn(_ context.Context, agencyID booking.AgencyID, day booking.Day) ([]booking.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selectLocked(func(a booking.Appointment) bool {
		return a.AgencyID == agencyID && a.Day.Equal(day)
	}), nil
}

func (m *Memory) AllAppointmentsOn(_ context.Context, day booking.Day) ([]booking.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selectLocked(func(a booking.Appointment) bool { return a.Day.Equal(day) }), nil
}

func (m *Memory) selectLocked(match func(booking.Appointment) bool) []booking.Appointment {
	out := make([]booking.Appointment, 0)
	for _, a := range m.appointments {
		if !a.Deleted && match(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AgencyID != out[j].AgencyID {
			return out[i].AgencyID < out[j].AgencyID
		}
		if out[i].Token != out[j].Token {
			return out[i].Token < out[j].Token
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Memory) InsertAppointment(_ context.Context, a booking.Appointment) (booking.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkTokenLocked(a); err != nil {
		return booking.Appointment{}, err
	}
	m.nextAppointment++
	a.ID = m.nextAppointment
	a.Version = 1
	m.appointments[a.ID] = a
	return a, nil
}

func (m *Memory) UpdateAppointment(_ context.Context, a booking.Appointment) (booking.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.appointments[a.ID]
	if !ok || prev.Deleted {
		return booking.Appointment{}, &booking.NotFoundError{Resource: "appointment", ID: int64(a.ID)}
	}
	if prev.Version != a.Version {
		return booking.Appointment{}, &booking.ConflictError{Reason: "appointment was modified concurrently", AgencyID: prev.AgencyID, Day: prev.Day}
	}
	if err := m.checkTokenLocked(a); err != nil {
		return booking.Appointment{}, err
	}
	a.Version++
	m.appointments[a.ID] = a
	return a, nil
}

// checkTokenLocked mirrors the partial unique index on active tokens.
func (m *Memory) checkTokenLocked(a booking.Appointment) error {
	if !a.Active() {
		return nil
	}
	for _, other := range m.appointments {
		if other.ID != a.ID && other.Active() && other.AgencyID == a.AgencyID &&
			other.Day.Equal(a.Day) && other.Token == a.Token {
			return &booking.ConflictError{Reason: "token already issued", AgencyID: a.AgencyID, Day: a.Day}
		}
	}
	return nil
}

// =============================================================================
// AUDIT
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, e booking.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, e)
	return nil
}

func (m *Memory) AuditFor(_ context.Context, id booking.AppointmentID) ([]booking.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]booking.AuditEntry, 0)
	for _, e := range m.audit {
		if e.AppointmentID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

var (
	_ booking.Store           = (*Memory)(nil)
	_ booking.DirectoryWriter = (*Memory)(nil)
)
