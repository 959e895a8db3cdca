/*
handlers.go - HTTP API handlers for the appointment booking engine

PURPOSE:
  Exposes booking.Service over REST. Handles HTTP request/response and JSON
  serialization, resolves the acting identity, and delegates every decision
  to the domain.

ENDPOINTS:
  Appointments:
    GET    /api/appointments?date=&agency_id=  List a day (cancelled included)
    POST   /api/appointments                   Book the first available slot
    GET    /api/appointments/{id}              Get one appointment
    PUT    /api/appointments/{id}              Reschedule / status / notes
    PATCH  /api/appointments/{id}/cancel       Cancel (idempotent)
    GET    /api/appointments/{id}/audit        Audit trail

  Calendar:
    GET    /api/agencies/{id}/holidays         List holidays by date
    POST   /api/holidays                       Close a day
    DELETE /api/holidays/{id}                  Reopen (soft delete)

  Quota:
    GET    /api/agencies/{id}/quota
    PUT    /api/agencies/{id}/quota
    GET    /api/agencies/{id}/quota/overrides
    PUT    /api/agencies/{id}/quota/overrides/{date}
    DELETE /api/agencies/{id}/quota/overrides/{date}
    GET    /api/agencies/{id}/availability?date=

  Directory (seeding):
    POST   /api/agencies
    POST   /api/customers

ERROR HANDLING:
  Domain failures map to status codes structurally, never by message:
  - 400: ValidationError, TransitionError, malformed input
  - 401: Missing acting identity
  - 404: NotFoundError
  - 409: ConflictError
  - 422: AllocationError, CapacityFormatError
  - 504: Operation deadline exceeded
  - 500: Anything else (details are logged, not returned)

SEE ALSO:
  - dto.go: Request/response data structures
  - identity.go: Acting identity resolution
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/warp/agency-booking/booking"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service   *booking.Service
	Directory booking.DirectoryWriter
	Logger    *slog.Logger
}

func NewHandler(svc *booking.Service, dir booking.DirectoryWriter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Service: svc, Directory: dir, Logger: logger}
}

// =============================================================================
// APPOINTMENT ENDPOINTS
// =============================================================================

// ListAppointments returns a day's appointments, optionally for one agency.
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	day, err := booking.ParseDay(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err)
		return
	}

	var agencyID *booking.AgencyID
	if raw := r.URL.Query().Get("agency_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid agency_id", err)
			return
		}
		a := booking.AgencyID(id)
		agencyID = &a
	}

	appts, err := h.Service.ListAppointments(r.Context(), agencyID, day)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", toAppointmentDTOs(appts))
}

func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req CreateAppointmentRequest
	if !decode(w, r, &req) {
		return
	}
	desired, err := booking.ParseDay(req.DesiredDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid desired_date", err)
		return
	}

	appt, err := h.Service.CreateAppointment(r.Context(), booking.CreateInput{
		AgencyID:   booking.AgencyID(req.AgencyID),
		CustomerID: booking.CustomerID(req.CustomerID),
		Desired:    desired,
		Notes:      req.Notes,
	}, actor)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	msg := "Appointment booked"
	if !appt.Day.Equal(desired) {
		msg = "Requested date unavailable, booked on " + appt.Day.String()
	}
	writeOK(w, http.StatusCreated, msg, toAppointmentDTO(appt))
}

func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	appt, err := h.Service.GetAppointment(r.Context(), booking.AppointmentID(id))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", toAppointmentDTO(appt))
}

func (h *Handler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateAppointmentRequest
	if !decode(w, r, &req) {
		return
	}

	var patch booking.Patch
	if req.Date != nil {
		d, err := booking.ParseDay(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date", err)
			return
		}
		patch.Day = &d
	}
	if req.Status != nil {
		st := booking.Status(strings.TrimSpace(*req.Status))
		patch.Status = &st
	}
	patch.Notes = req.Notes

	appt, err := h.Service.UpdateAppointment(r.Context(), booking.AppointmentID(id), patch, actor)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Appointment updated", toAppointmentDTO(appt))
}

func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	appt, err := h.Service.CancelAppointment(r.Context(), booking.AppointmentID(id), actor)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Appointment cancelled", toAppointmentDTO(appt))
}

func (h *Handler) AppointmentAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	entries, err := h.Service.AuditTrail(r.Context(), booking.AppointmentID(id))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", toAuditDTOs(entries))
}

// =============================================================================
// HOLIDAY ENDPOINTS
// =============================================================================

func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	holidays, err := h.Service.ListHolidays(r.Context(), booking.AgencyID(id))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]HolidayDTO, 0, len(holidays))
	for _, hol := range holidays {
		out = append(out, toHolidayDTO(hol))
	}
	writeOK(w, http.StatusOK, "", out)
}

func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req CreateHolidayRequest
	if !decode(w, r, &req) {
		return
	}
	day, err := booking.ParseDay(req.OffDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid off_date", err)
		return
	}

	hol, err := h.Service.CreateHoliday(r.Context(), booking.AgencyID(req.AgencyID), day, req.Reason, actor)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Holiday created", toHolidayDTO(hol))
}

func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	deleted, err := h.Service.DeleteHoliday(r.Context(), booking.HolidayID(id), actor)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Holiday not found or already deleted", nil)
		return
	}
	writeOK(w, http.StatusOK, "Holiday deleted", true)
}

// =============================================================================
// QUOTA ENDPOINTS
// =============================================================================

func (h *Handler) GetQuota(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	st, err := h.Service.GetAgencyQuota(r.Context(), booking.AgencyID(id))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", QuotaDTO{AgencyID: int64(st.AgencyID), MaxAppointments: st.MaxAppointments})
}

func (h *Handler) SetQuota(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req QuotaRequest
	if !decode(w, r, &req) {
		return
	}
	st, err := h.Service.SetAgencyQuota(r.Context(), booking.AgencyID(id), req.MaxAppointments, actor)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Agency settings updated", QuotaDTO{AgencyID: int64(st.AgencyID), MaxAppointments: st.MaxAppointments})
}

func (h *Handler) ListQuotaOverrides(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	overrides, err := h.Service.ListQuotaOverrides(r.Context(), booking.AgencyID(id))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]QuotaDTO, 0, len(overrides))
	for _, o := range overrides {
		out = append(out, QuotaDTO{AgencyID: int64(o.AgencyID), MaxAppointments: o.MaxAppointments, Date: o.Day.String()})
	}
	writeOK(w, http.StatusOK, "", out)
}

func (h *Handler) SetQuotaOverride(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	day, err := booking.ParseDay(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err)
		return
	}
	var req QuotaRequest
	if !decode(w, r, &req) {
		return
	}
	o, err := h.Service.SetQuotaOverride(r.Context(), booking.AgencyID(id), day, req.MaxAppointments, actor)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Quota override saved", QuotaDTO{AgencyID: int64(o.AgencyID), MaxAppointments: o.MaxAppointments, Date: o.Day.String()})
}

func (h *Handler) DeleteQuotaOverride(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	day, err := booking.ParseDay(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err)
		return
	}
	deleted, err := h.Service.DeleteQuotaOverride(r.Context(), booking.AgencyID(id), day, actor)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Quota override not found", nil)
		return
	}
	writeOK(w, http.StatusOK, "Quota override removed", true)
}

func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	day, err := booking.ParseDay(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err)
		return
	}
	av, err := h.Service.Availability(r.Context(), booking.AgencyID(id), day)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", toAvailabilityDTO(av))
}

// =============================================================================
// DIRECTORY ENDPOINTS
// =============================================================================

func (h *Handler) CreateAgency(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req CreateAgencyRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	active := req.Active == nil || *req.Active

	a, err := h.Directory.SaveAgency(r.Context(), booking.Agency{
		Name:   strings.TrimSpace(req.Name),
		Active: active,
		Audit:  booking.Audit{CreatedBy: actor, CreatedOn: h.Service.Now().UTC()},
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Agency created", AgencyDTO{ID: int64(a.ID), Name: a.Name, Active: a.Active})
}

func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req CreateCustomerRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.FullName) == "" {
		writeError(w, http.StatusBadRequest, "full_name is required", nil)
		return
	}

	c, err := h.Directory.SaveCustomer(r.Context(), booking.Customer{
		FullName: strings.TrimSpace(req.FullName),
		Phone:    req.Phone,
		Email:    req.Email,
		Audit:    booking.Audit{CreatedBy: actor, CreatedOn: h.Service.Now().UTC()},
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Customer created", CustomerDTO{ID: int64(c.ID), FullName: c.FullName, Phone: c.Phone, Email: c.Email})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (booking.Actor, bool) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "acting identity is required", nil)
		return "", false
	}
	return actor, true
}

// writeDomainError maps the booking error taxonomy onto HTTP.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *booking.ValidationError
	switch {
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, "Data Not Found", err)
	case errors.As(err, &ve):
		writeCodedError(w, http.StatusBadRequest, ve.Message, "validation", map[string]string{"field": ve.Field})
	case errors.Is(err, booking.ErrInvalidTransition):
		writeCodedError(w, http.StatusBadRequest, err.Error(), "invalid_transition", nil)
	case errors.Is(err, booking.ErrConflict):
		writeCodedError(w, http.StatusConflict, err.Error(), "conflict", nil)
	case errors.Is(err, booking.ErrAllocationExhausted):
		writeCodedError(w, http.StatusUnprocessableEntity, err.Error(), "allocation_exhausted", nil)
	case errors.Is(err, booking.ErrCapacityFormatExceeded):
		writeCodedError(w, http.StatusUnprocessableEntity, err.Error(), "capacity_format_exceeded", nil)
	case errors.Is(err, context.DeadlineExceeded):
		writeCodedError(w, http.StatusGatewayTimeout, "operation timed out", "timeout", nil)
	default:
		h.Logger.Error("request failed",
			"method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "err", err)
		writeJSON(w, http.StatusInternalServerError, Response{
			Message: "Internal Server Error",
			Error:   "An unexpected error occurred",
		})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid "+name, err)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	if message == "" {
		message = "Success"
	}
	writeJSON(w, status, Response{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := Response{Message: message, Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeCodedError(w http.ResponseWriter, status int, message, code string, details any) {
	writeJSON(w, status, Response{Message: message, Error: message, Code: code, Details: details})
}
