package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorTimeout      ErrorCode = "TIMEOUT"
	ErrorInternal     ErrorCode = "INTERNAL_ERROR"
)

// HTTPStatus is the status code both transports answer with.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrorInvalidInput:
		return http.StatusBadRequest
	case ErrorTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Message is the client-facing text for the code.
func (c ErrorCode) Message() string {
	switch c {
	case ErrorInvalidInput:
		return "query must be a non-empty string"
	case ErrorTimeout:
		return "prediction timed out"
	default:
		return "internal error"
	}
}

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// AsError returns err as a *Error, classifying anything else as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ue *Error
	if errors.As(err, &ue) {
		return ue
	}
	return newError(ErrorInternal, "unexpected_error", err)
}
