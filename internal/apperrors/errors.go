package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeNotFound            Code = "NOT_FOUND"
	CodeCapacityExceeded    Code = "CAPACITY_EXCEEDED"
	CodeSlotFull            Code = "SLOT_FULL"
	CodeInvalidTransition   Code = "INVALID_TRANSITION"
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"
	CodeForbidden           Code = "FORBIDDEN"
	CodeUnauthorized        Code = "UNAUTHORIZED"
)

// AppError carries a user-facing message and the HTTP status it maps to.
type AppError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches any AppError with the same code, so sentinels work with errors.Is.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

var (
	ErrNotFound            = &AppError{Code: CodeNotFound, Message: "not found", HTTPStatus: http.StatusNotFound}
	ErrCapacityExceeded    = &AppError{Code: CodeCapacityExceeded, Message: "capacity exceeded", HTTPStatus: http.StatusBadRequest}
	ErrSlotFull            = &AppError{Code: CodeSlotFull, Message: "slot full", HTTPStatus: http.StatusBadRequest}
	ErrInvalidTransition   = &AppError{Code: CodeInvalidTransition, Message: "invalid transition", HTTPStatus: http.StatusBadRequest}
	ErrValidation          = &AppError{Code: CodeValidation, Message: "validation error", HTTPStatus: http.StatusBadRequest}
	ErrUpstreamUnavailable = &AppError{Code: CodeUpstreamUnavailable, Message: "upstream unavailable", HTTPStatus: http.StatusServiceUnavailable}
	ErrForbidden           = &AppError{Code: CodeForbidden, Message: "forbidden", HTTPStatus: http.StatusForbidden}
	ErrUnauthorized        = &AppError{Code: CodeUnauthorized, Message: "unauthorized", HTTPStatus: http.StatusUnauthorized}
)

func newErr(kind *AppError, msg string) *AppError {
	return &AppError{Code: kind.Code, Message: msg, HTTPStatus: kind.HTTPStatus}
}

func NotFound(msg string) *AppError          { return newErr(ErrNotFound, msg) }
func CapacityExceeded(msg string) *AppError  { return newErr(ErrCapacityExceeded, msg) }
func SlotFull(msg string) *AppError          { return newErr(ErrSlotFull, msg) }
func InvalidTransition(msg string) *AppError { return newErr(ErrInvalidTransition, msg) }
func Forbidden(msg string) *AppError         { return newErr(ErrForbidden, msg) }
func Unauthorized(msg string) *AppError      { return newErr(ErrUnauthorized, msg) }

func Validation(format string, args ...any) *AppError {
	return newErr(ErrValidation, fmt.Sprintf(format, args...))
}

func Upstream(msg string, cause error) *AppError {
	e := newErr(ErrUpstreamUnavailable, msg)
	e.Cause = cause
	return e
}

// StatusFor maps err to an HTTP status; anything that is not an AppError is a 500.
func StatusFor(err error) int {
	var ae *AppError
	if errors.As(err, &ae) && ae.HTTPStatus != 0 {
		return ae.HTTPStatus
	}
	return http.StatusInternalServerError
}

// MessageFor returns the user-facing message of the outermost AppError, or err.Error().
func MessageFor(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
