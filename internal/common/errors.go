package common

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes shared across the service layer. Handlers translate them into
// HTTP statuses with HTTPStatus.
const (
	EInternal     = "internal error"
	ENotFound     = "not found"
	EConflict     = "conflict"
	EInvalid      = "invalid"
	EUnavailable  = "unavailable"
	EForbidden    = "forbidden"
	EUnauthorized = "unauthorized"
)

// Error is a coded error. Code is meant for programs, Msg for operators,
// Op and Err chain errors together into a logical stack trace.
type Error struct {
	Code string
	Msg  string
	Op   string
	Err  error
}

// Error implements the error interface by writing out the recursive messages.
func (e *Error) Error() string {
	if e.Msg != "" && e.Err != nil {
		var b strings.Builder
		b.WriteString(e.Msg)
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
		return b.String()
	} else if e.Msg != "" {
		return e.Msg
	} else if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("<%s>", e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code of the first coded error in the chain.
// Errors without a code are internal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	for errors.As(err, &e) {
		if e.Code != "" {
			return e.Code
		}
		if e.Err == nil {
			break
		}
		err = e.Err
	}
	return EInternal
}

// Unauthorized builds an EUnauthorized error for op.
func Unauthorized(op, msg string) *Error {
	return &Error{Code: EUnauthorized, Op: op, Msg: msg}
}

// NotFound builds an ENotFound error for op.
func NotFound(op, msg string) *Error {
	return &Error{Code: ENotFound, Op: op, Msg: msg}
}

// Invalid builds an EInvalid error for op.
func Invalid(op, msg string) *Error {
	return &Error{Code: EInvalid, Op: op, Msg: msg}
}

// Forbidden builds an EForbidden error for op.
func Forbidden(op, msg string) *Error {
	return &Error{Code: EForbidden, Op: op, Msg: msg}
}

// Conflict builds an EConflict error for op.
func Conflict(op, msg string) *Error {
	return &Error{Code: EConflict, Op: op, Msg: msg}
}

// Unavailable wraps err as an EUnavailable error for op.
func Unavailable(op string, err error) *Error {
	return &Error{Code: EUnavailable, Op: op, Err: err}
}

// Internal wraps err as an EInternal error for op.
func Internal(op string, err error) *Error {
	return &Error{Code: EInternal, Op: op, Err: err}
}

// IsUnauthorized reports whether err carries the EUnauthorized code.
func IsUnauthorized(err error) bool {
	return ErrorCode(err) == EUnauthorized
}

// IsNotFound reports whether err carries the ENotFound code.
func IsNotFound(err error) bool {
	return ErrorCode(err) == ENotFound
}

// HTTPStatus maps an error code to the response status.
func HTTPStatus(code string) int {
	switch code {
	case EUnauthorized:
		return http.StatusUnauthorized
	case EForbidden:
		return http.StatusForbidden
	case ENotFound:
		return http.StatusNotFound
	case EInvalid:
		return http.StatusBadRequest
	case EConflict:
		return http.StatusConflict
	case EUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
