package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Reason codes surfaced to API clients. These are stable identifiers;
// clients branch on the code, never on the message text.
const (
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodePermissionDenied   = "PERMISSION_DENIED"
	CodeValidation         = "VALIDATION_ERROR"
	CodeDoctorUnavailable  = "DOCTOR_UNAVAILABLE"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenAlreadyBooked = "TOKEN_ALREADY_BOOKED"
	CodeNotFound           = "NOT_FOUND"
	CodeInternal           = "INTERNAL"
)

// Error is a coded application error carrying the HTTP status it maps to.
type Error struct {
	Code    string `json:"code"`
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func Unauthenticated(msg string) *Error {
	return &Error{Code: CodeUnauthenticated, Status: http.StatusUnauthorized, Message: msg}
}

func PermissionDenied(format string, args ...interface{}) *Error {
	return &Error{Code: CodePermissionDenied, Status: http.StatusForbidden, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) *Error {
	return &Error{Code: CodeValidation, Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

func DoctorUnavailable(msg string) *Error {
	return &Error{Code: CodeDoctorUnavailable, Status: http.StatusBadRequest, Message: msg}
}

func InvalidToken(format string, args ...interface{}) *Error {
	return &Error{Code: CodeInvalidToken, Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

func TokenAlreadyBooked(msg string) *Error {
	return &Error{Code: CodeTokenAlreadyBooked, Status: http.StatusBadRequest, Message: msg}
}

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Code: CodeNotFound, Status: http.StatusNotFound, Message: fmt.Sprintf(format, args...)}
}

func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Status: http.StatusInternalServerError, Message: err.Error()}
}

// From extracts a coded error from err, or nil if err carries no code.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// CodeOf returns the reason code of err, or CodeInternal for uncoded errors.
// A nil error has no code.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	if e := From(err); e != nil {
		return e.Code
	}
	return CodeInternal
}
