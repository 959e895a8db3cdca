package api

import (
	"github.com/warp/agency-booking/booking"
)

// =============================================================================
// RESPONSE ENVELOPE
// =============================================================================

// Response wraps every body the API writes.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// REQUEST DTOs
// =============================================================================

// CreateAppointmentRequest carries the desired date as yyyy-MM-dd.
type CreateAppointmentRequest struct {
	AgencyID    int64  `json:"agency_id"`
	CustomerID  int64  `json:"customer_id"`
	DesiredDate string `json:"desired_date"`
	Notes       string `json:"notes"`
}

// UpdateAppointmentRequest fields are optional; notes may be set to "".
type UpdateAppointmentRequest struct {
	Date   *string `json:"date"`
	Status *string `json:"status"`
	Notes  *string `json:"notes"`
}

type CreateHolidayRequest struct {
	AgencyID int64  `json:"agency_id"`
	OffDate  string `json:"off_date"`
	Reason   string `json:"reason"`
}

type QuotaRequest struct {
	MaxAppointments int `json:"max_appointments"`
}

type CreateAgencyRequest struct {
	Name   string `json:"name"`
	Active *bool  `json:"active"`
}

type CreateCustomerRequest struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

// =============================================================================
// RESPONSE DTOs
// =============================================================================

type AppointmentDTO struct {
	ID          int64   `json:"id"`
	AgencyID    int64   `json:"agency_id"`
	CustomerID  int64   `json:"customer_id"`
	Date        string  `json:"date"`
	TokenNumber int64   `json:"token_number"`
	Status      string  `json:"status"`
	Notes       string  `json:"notes,omitempty"`
	CreatedBy   string  `json:"created_by"`
	CreatedOn   string  `json:"created_on"`
	ModifiedBy  string  `json:"modified_by,omitempty"`
	ModifiedOn  *string `json:"modified_on,omitempty"`
}

type HolidayDTO struct {
	ID       int64  `json:"id"`
	AgencyID int64  `json:"agency_id"`
	OffDate  string `json:"off_date"`
	Reason   string `json:"reason,omitempty"`
}

type QuotaDTO struct {
	AgencyID        int64  `json:"agency_id"`
	MaxAppointments int    `json:"max_appointments"`
	Date            string `json:"date,omitempty"`
}

type AvailabilityDTO struct {
	AgencyID    int64  `json:"agency_id"`
	Date        string `json:"date"`
	Holiday     bool   `json:"holiday"`
	Quota       int    `json:"quota"`
	Booked      int    `json:"booked"`
	Remaining   int    `json:"remaining"`
	Utilization string `json:"utilization"`
}

type AuditEntryDTO struct {
	ID      string         `json:"id"`
	At      string         `json:"at"`
	Actor   string         `json:"actor"`
	Action  string         `json:"action"`
	Payload map[string]any `json:"payload,omitempty"`
}

type AgencyDTO struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type CustomerDTO struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

const timestampLayout = "2006-01-02T15:04:05Z07:00"

func toAppointmentDTO(a booking.Appointment) AppointmentDTO {
	dto := AppointmentDTO{
		ID:          int64(a.ID),
		AgencyID:    int64(a.AgencyID),
		CustomerID:  int64(a.CustomerID),
		Date:        a.Day.String(),
		TokenNumber: int64(a.Token),
		Status:      string(a.Status),
		Notes:       a.Notes,
		CreatedBy:   a.CreatedBy.String(),
		CreatedOn:   a.CreatedOn.UTC().Format(timestampLayout),
		ModifiedBy:  a.ModifiedBy.String(),
	}
	if a.ModifiedOn != nil {
		s := a.ModifiedOn.UTC().Format(timestampLayout)
		dto.ModifiedOn = &s
	}
	return dto
}

func toAppointmentDTOs(in []booking.Appointment) []AppointmentDTO {
	out := make([]AppointmentDTO, 0, len(in))
	for _, a := range in {
		out = append(out, toAppointmentDTO(a))
	}
	return out
}

func toHolidayDTO(h booking.Holiday) HolidayDTO {
	return HolidayDTO{ID: int64(h.ID), AgencyID: int64(h.AgencyID), OffDate: h.Day.String(), Reason: h.Reason}
}

func toAvailabilityDTO(av booking.Availability) AvailabilityDTO {
	return AvailabilityDTO{
		AgencyID:    int64(av.AgencyID),
		Date:        av.Day.String(),
		Holiday:     av.Holiday,
		Quota:       av.Quota,
		Booked:      av.Active,
		Remaining:   av.Remaining,
		Utilization: av.Utilization.StringFixed(4),
	}
}

func toAuditDTOs(in []booking.AuditEntry) []AuditEntryDTO {
	out := make([]AuditEntryDTO, 0, len(in))
	for _, e := range in {
		out = append(out, AuditEntryDTO{
			ID:      e.ID,
			At:      e.At.UTC().Format(timestampLayout),
			Actor:   e.Actor.String(),
			Action:  string(e.Action),
			Payload: e.Payload,
		})
	}
	return out
}
