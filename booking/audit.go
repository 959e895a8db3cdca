package booking

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// AUDIT TRAIL - Separate from the appointment rows, tracks who did what when
// =============================================================================

type AuditAction string

const (
	AuditAppointmentBooked      AuditAction = "appointment_booked"
	AuditAppointmentRescheduled AuditAction = "appointment_rescheduled"
	AuditAppointmentUpdated     AuditAction = "appointment_updated"
	AuditAppointmentCancelled   AuditAction = "appointment_cancelled"
	AuditHolidayCreated         AuditAction = "holiday_created"
	AuditHolidayDeleted         AuditAction = "holiday_deleted"
	AuditQuotaChanged           AuditAction = "quota_changed"
	AuditQuotaOverrideChanged   AuditAction = "quota_override_changed"
	AuditQuotaOverrideRemoved   AuditAction = "quota_override_removed"
)

// AuditEntry records one mutation. AppointmentID is zero for calendar and
// quota changes.
type AuditEntry struct {
	ID            string
	At            time.Time
	Actor         Actor
	Action        AuditAction
	AgencyID      AgencyID
	AppointmentID AppointmentID
	Payload       map[string]any
}

func newAuditEntry(at time.Time, actor Actor, action AuditAction, agencyID AgencyID, apptID AppointmentID, payload map[string]any) AuditEntry {
	return AuditEntry{
		ID:            uuid.NewString(),
		At:            at,
		Actor:         actor,
		Action:        action,
		AgencyID:      agencyID,
		AppointmentID: apptID,
		Payload:       payload,
	}
}
