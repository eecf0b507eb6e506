package booking

import (
	"errors"
	"net/http"
)

// Storage sentinels. The pg layer maps driver errors onto these; the
// in-memory test store returns them directly.
var (
	ErrNotFound         = errors.New("not found")
	ErrSlotTaken        = errors.New("slot already booked")
	ErrDuplicateBooking = errors.New("duplicate active booking")
)

// Error is a domain failure surfaced to the HTTP boundary as
// {code, details} with the given status. Message is the human-readable
// line carried in the envelope's top-level message field.
type Error struct {
	Code    string
	Message string
	Details string
	Status  int
}

func (e *Error) Error() string {
	return e.Message
}

const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidDate        = "INVALID_DATE"
	CodeNotFound           = "NOT_FOUND"
	CodeDoctorNotAvailable = "DOCTOR_NOT_AVAILABLE"
	CodeSlotNotAvailable   = "SLOT_NOT_AVAILABLE"
	CodeAlreadyBooked      = "ALREADY_BOOKED"
	CodeAlreadyCancelled   = "ALREADY_CANCELLED"
	CodeCannotCancel       = "CANNOT_CANCEL"
	CodeCannotReschedule   = "CANNOT_RESCHEDULE"
	CodeUnexpected         = "UNEXPECTED"
)

func validationError(message string) *Error {
	return &Error{
		Code:    CodeValidation,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

func notFoundError(message, details string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: message,
		Details: details,
		Status:  http.StatusNotFound,
	}
}

func conflictError(code, message, details string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: details,
		Status:  http.StatusBadRequest,
	}
}

// AsError extracts a *Error, or wraps err as an UNEXPECTED failure so the
// boundary never leaks raw storage errors.
func AsError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return &Error{
		Code:    CodeUnexpected,
		Message: "Something went wrong",
		Status:  http.StatusInternalServerError,
	}
}
