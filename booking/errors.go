/*
errors.go - Failure taxonomy of the booking engine

PURPOSE:
  Callers switch on failures structurally with errors.Is / errors.As,
  never by matching message text.

ERROR CATEGORIES:
  1. NotFound            - agency, customer, appointment or holiday missing/soft-deleted
  2. Conflict            - duplicate holiday, or a quota race caught by storage (retryable once)
  3. AllocationExhausted - no bookable day inside the horizon
  4. CapacityFormat      - the two-digit token sequence would overflow
  5. Validation          - malformed input, rejected before storage is touched
  6. InvalidTransition   - status change the state machine does not allow

  Anything else is an infrastructure failure and passes through unchanged.

USAGE:
    appt, err := svc.CreateAppointment(ctx, in, actor)
    switch {
    case booking.IsNotFound(err):
    case errors.Is(err, booking.ErrAllocationExhausted):
    }
*/
package booking

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrAllocationExhausted    = errors.New("no available appointment slot within horizon")
	ErrCapacityFormatExceeded = errors.New("daily token sequence exhausted")
	ErrValidation             = errors.New("validation failed")
	ErrInvalidTransition      = errors.New("invalid status transition")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing resource.
type NotFoundError struct {
	Resource string // "agency", "customer", "appointment", "holiday"
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %d was not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(resource string, id int64) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError reports a uniqueness violation on an (agency, day) key.
type ConflictError struct {
	Reason   string
	AgencyID AgencyID
	Day      Day
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict for agency %d on %s: %s", e.AgencyID, e.Day, e.Reason)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// AllocationError reports that every day of the horizon was a holiday or full.
type AllocationError struct {
	AgencyID AgencyID
	Desired  Day
	Horizon  int
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("no available appointment slots for agency %d in the %d days from %s",
		e.AgencyID, e.Horizon, e.Desired)
}

func (e *AllocationError) Unwrap() error { return ErrAllocationExhausted }

// CapacityFormatError reports a sequence that does not fit two digits.
type CapacityFormatError struct {
	Day Day
	Seq int
}

func (e *CapacityFormatError) Error() string {
	return fmt.Sprintf("token sequence %d on %s exceeds %d", e.Seq, e.Day, MaxTokenSeq)
}

func (e *CapacityFormatError) Unwrap() error { return ErrCapacityFormatExceeded }

// ValidationError names the offending input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// TransitionError reports a status change out of a terminal state.
type TransitionError struct {
	AppointmentID AppointmentID
	From          Status
	To            Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("appointment %d cannot move from %s to %s", e.AppointmentID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsRetryable returns true if re-running allocation may succeed.
func IsRetryable(err error) bool { return errors.Is(err, ErrConflict) }

// IsClientError returns true if the error is due to the request itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrAllocationExhausted) ||
		errors.Is(err, ErrCapacityFormatExceeded)
}
