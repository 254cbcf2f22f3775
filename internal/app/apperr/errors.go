// Package apperr is the application-layer error taxonomy shared by the app services.
package apperr

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// Kind classifies an application error. Kinds are comparable with errors.Is:
//
//	errors.Is(err, apperr.NotFound)
type Kind string

const (
	Validation     Kind = "ValidationError"
	AuthInitiation Kind = "AuthInitiationError"
	NotFound       Kind = "NotFoundError"
	Join           Kind = "JoinError"
	TripCreation   Kind = "TripCreationError"
	Network        Kind = "NetworkError"
	Unauthorized   Kind = "UnauthorizedError"
)

func (k Kind) Error() string { return string(k) }

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Details map[string]any

	// Err is the underlying cause, if any. It is never rendered to callers.
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && e != nil && e.Kind == k
}

// Retryable reports whether the caller may safely retry the operation.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case Join, TripCreation, Network, AuthInitiation:
		return true
	default:
		return false
	}
}

func NewValidation(message string, details map[string]any) *Error {
	return &Error{Kind: Validation, Status: http.StatusUnprocessableEntity, Code: "VALIDATION_ERROR", Message: message, Details: details}
}

func NewAuthInitiation(message string, cause error) *Error {
	return &Error{Kind: AuthInitiation, Status: http.StatusBadGateway, Code: "AUTH_INITIATION_FAILED", Message: message, Err: cause}
}

// NewAuthInput is an AuthInitiationError caused by the caller's own input (malformed email,
// unknown provider). It is reported with a 4xx status.
func NewAuthInput(message string, details map[string]any) *Error {
	return &Error{Kind: AuthInitiation, Status: http.StatusBadRequest, Code: "AUTH_INITIATION_FAILED", Message: message, Details: details}
}

func NewTripNotFound() *Error {
	return &Error{Kind: NotFound, Status: http.StatusNotFound, Code: "TRIP_NOT_FOUND", Message: "trip not found"}
}

func NewJoin(cause error) *Error {
	return &Error{Kind: Join, Status: http.StatusInternalServerError, Code: "JOIN_FAILED", Message: "could not join trip", Err: cause}
}

func NewTripCreation(cause error) *Error {
	return &Error{Kind: TripCreation, Status: http.StatusInternalServerError, Code: "TRIP_CREATION_FAILED", Message: "could not create trip", Err: cause}
}

func NewNetwork(cause error) *Error {
	return &Error{Kind: Network, Status: http.StatusServiceUnavailable, Code: "NETWORK_ERROR", Message: "upstream timed out or is unreachable; try again", Err: cause}
}

func NewUnauthorized(message string) *Error {
	return &Error{Kind: Unauthorized, Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: message}
}

// IsNetwork reports whether err is a timeout or connectivity failure.
func IsNetwork(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// Wrap classifies a dependency failure: network failures become NetworkError, already-typed
// application errors pass through, anything else is handed to fallback.
func Wrap(err error, fallback func(error) *Error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	if IsNetwork(err) {
		return NewNetwork(err)
	}
	return fallback(err)
}
