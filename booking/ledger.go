/*
ledger.go - Appointment system of record

PURPOSE:
  The Ledger is the only path through which appointment rows are read for
  allocation and written by the Service. It turns store-level absence into
  NotFound and narrows a day's rows down to the ones that consume quota.

CRITICAL INVARIANTS:
  1. SOLE WRITER: Only Service calls Insert/Update
  2. NO HARD DELETE: Cancellation is a status, removal is a Deleted flag
  3. ACTIVE = status != Cancelled AND !Deleted

SEE ALSO:
  - store.go: AppointmentStore interface
  - allocator.go: Consumes ActiveAppointments
*/
package booking

import (
	"context"
	"fmt"
)

type Ledger struct {
	Store AppointmentStore
}

func NewLedger(store AppointmentStore) *Ledger {
	return &Ledger{Store: store}
}

// Get returns a live appointment or NotFound.
func (l *Ledger) Get(ctx context.Context, id AppointmentID) (Appointment, error) {
	a, err := l.Store.GetAppointment(ctx, id)
	if err != nil {
		return Appointment{}, fmt.Errorf("load appointment %d: %w", id, err)
	}
	if a == nil || a.Deleted {
		return Appointment{}, notFound("appointment", int64(id))
	}
	return *a, nil
}

// ActiveAppointments returns the quota-consuming appointments of an
// agency-day. exclude (when non-zero) is left out so a reschedule does not
// count against itself.
func (l *Ledger) ActiveAppointments(ctx context.Context, agencyID AgencyID, day Day, exclude AppointmentID) ([]Appointment, error) {
	rows, err := l.Store.AppointmentsOn(ctx, agencyID, day)
	if err != nil {
		return nil, fmt.Errorf("load appointments for agency %d on %s: %w", agencyID, day, err)
	}
	active := make([]Appointment, 0, len(rows))
	for _, a := range rows {
		if !a.Active() || (exclude != 0 && a.ID == exclude) {
			continue
		}
		active = append(active, a)
	}
	return active, nil
}

// List returns the non-deleted appointments of a day. With an agency they
// are ordered by token; without, by agency then token.
func (l *Ledger) List(ctx context.Context, agencyID *AgencyID, day Day) ([]Appointment, error) {
	var (
		rows []Appointment
		err  error
	)
	if agencyID != nil {
		rows, err = l.Store.AppointmentsOn(ctx, *agencyID, day)
	} else {
		rows, err = l.Store.AllAppointmentsOn(ctx, day)
	}
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []Appointment{}
	}
	return rows, nil
}

func (l *Ledger) Insert(ctx context.Context, a Appointment) (Appointment, error) {
	return l.Store.InsertAppointment(ctx, a)
}

func (l *Ledger) Update(ctx context.Context, a Appointment) (Appointment, error) {
	return l.Store.UpdateAppointment(ctx, a)
}
