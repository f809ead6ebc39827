package appointment

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthorization
	KindNotFound
	KindConflict
	KindInvalidTransition
	KindInfrastructure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindInfrastructure:
		return "infrastructure"
	}
	return "unknown"
}

// Error carries a stable machine-readable Code and a Message safe to show to the caller.
// Err holds the underlying cause and is never rendered to clients.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
	Details any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind and code so copies of a sentinel with a custom message still match it.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

var (
	ErrAppointmentNotFound  = &Error{Kind: KindNotFound, Code: "appointment_not_found", Message: "appointment not found"}
	ErrPetNotFound          = &Error{Kind: KindNotFound, Code: "pet_not_found", Message: "pet not found"}
	ErrVeterinarianNotFound = &Error{Kind: KindNotFound, Code: "veterinarian_not_found", Message: "veterinarian not found"}

	ErrPetNotOwned             = &Error{Kind: KindAuthorization, Code: "pet_not_owned", Message: "pet does not belong to the caller"}
	ErrVeterinarianNotApproved = &Error{Kind: KindAuthorization, Code: "veterinarian_not_approved", Message: "veterinarian is not approved"}
	ErrNotParticipant          = &Error{Kind: KindAuthorization, Code: "not_participant", Message: "caller is not the owner or veterinarian on this appointment"}
	ErrTransitionNotPermitted  = &Error{Kind: KindAuthorization, Code: "transition_not_permitted", Message: "caller's role may not perform this status change"}
	ErrRoleNotPermitted        = &Error{Kind: KindAuthorization, Code: "role_not_permitted", Message: "caller's role may not list appointments"}

	ErrTimeConflict        = &Error{Kind: KindConflict, Code: "time_conflict", Message: "veterinarian already has an appointment at that time"}
	ErrBookingInProgress   = &Error{Kind: KindConflict, Code: "booking_in_progress", Message: "veterinarian calendar is being updated, please retry shortly"}
	ErrAppointmentModified = &Error{Kind: KindConflict, Code: "appointment_modified", Message: "appointment was modified concurrently, reload and retry"}

	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Code: "invalid_transition", Message: "status change not allowed from the current status"}

	ErrInvalidStatus     = &Error{Kind: KindValidation, Code: "invalid_status", Message: "invalid status"}
	ErrInvalidType       = &Error{Kind: KindValidation, Code: "invalid_type", Message: "invalid appointment type"}
	ErrStartInPast       = &Error{Kind: KindValidation, Code: "start_time_in_past", Message: "appointment time must be in the future"}
	ErrInvalidDuration   = &Error{Kind: KindValidation, Code: "invalid_duration", Message: "duration must be a positive number of minutes"}
	ErrMalformedInterval = &Error{Kind: KindValidation, Code: "malformed_interval", Message: "interval end must be after its start"}
	ErrInvalidDate       = &Error{Kind: KindValidation, Code: "invalid_date", Message: "date must be formatted YYYY-MM-DD"}
	ErrDateInPast        = &Error{Kind: KindValidation, Code: "date_in_past", Message: "date must not be in the past"}
	ErrInvalidTimeOfDay  = &Error{Kind: KindValidation, Code: "invalid_time_of_day", Message: "time of day must be formatted HH:MM"}
)

func withMessage(base *Error, msg string) *Error {
	cp := *base
	cp.Message = msg
	return &cp
}

func withDetails(base *Error, details any) *Error {
	cp := *base
	cp.Details = details
	return &cp
}

func infraError(op string, err error) *Error {
	return &Error{
		Kind:    KindInfrastructure,
		Code:    "internal_error",
		Message: "internal error",
		Err:     fmt.Errorf("%s: %w", op, err),
	}
}

// KindOf reports the kind of err; anything that is not an *Error is infrastructure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInfrastructure
}

// wrapStore passes domain errors through and marks everything else as infrastructure.
func wrapStore(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return infraError(op, err)
}
