package authapi

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is(err, ErrTransport) etc. on errors returned by Client.
var (
	// ErrTransport means the service could not be reached (connection refused, timeout, reset).
	ErrTransport = errors.New("transport error")
	// ErrAuthRejected means the service answered with a non-success status or an error detail.
	ErrAuthRejected = errors.New("auth rejected")
	// ErrMalformedResponse means a success response had an unexpected body shape.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrMissingToken is wrapped by the ErrAuthRejected error Login returns when a successful
	// response carries no access_token.
	ErrMissingToken = errors.New("no access token in response")
)

// Operations reported in Error.Op.
const (
	OpVerify   = "verify"
	OpMe       = "me"
	OpLogin    = "login"
	OpRegister = "register"
)

// Error is the concrete error returned by Client. Kind is one of the sentinel kinds above.
type Error struct {
	Kind   error
	Op     string
	Status int    // HTTP status; 0 for transport errors
	Detail string // service-provided "detail", if any
	Err    error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("authapi: %s: %v", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message renders err as the string a login or registration form shows its user.
// Returns "" for a nil error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return "Unexpected error. Please try again."
	}
	switch {
	case errors.Is(apiErr, ErrTransport):
		return "Network error. Please check API Gateway is running."
	case apiErr.Detail != "":
		return apiErr.Detail
	case errors.Is(apiErr, ErrMissingToken):
		return "Login failed - no token received"
	}
	switch apiErr.Op {
	case OpRegister:
		return "Registration failed"
	case OpLogin:
		return "Login failed"
	default:
		return "Request failed"
	}
}

func transportErr(op string, err error) *Error {
	return &Error{Kind: ErrTransport, Op: op, Err: err}
}

func rejectedErr(op string, status int, detail string) *Error {
	return &Error{Kind: ErrAuthRejected, Op: op, Status: status, Detail: detail}
}

func malformedErr(op string, status int, err error) *Error {
	return &Error{Kind: ErrMalformedResponse, Op: op, Status: status, Err: err}
}
