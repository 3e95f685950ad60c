package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// codeMalformed marks a 2xx response whose body could not be decoded or
// failed boundary validation. Treated as a network-level failure.
const codeMalformed = "malformed_response"

// Error is a failed remote call. Status is the HTTP status code, or 0 when
// no usable response was received (transport failure, malformed body).
type Error struct {
	Status int
	Code   string
	Detail string
	cause  error
}

func (e *Error) Error() string {
	switch {
	case e.cause != nil && e.Detail != "":
		return fmt.Sprintf("%s: %v", e.Detail, e.cause)
	case e.cause != nil:
		return e.cause.Error()
	case e.Status > 0:
		return fmt.Sprintf("%s (status %d)", e.Detail, e.Status)
	default:
		return e.Detail
	}
}

func (e *Error) Unwrap() error {
	return e.cause
}

// IsAuth reports whether err is a 401 from the service: the bearer token is
// missing, invalid, or expired.
func IsAuth(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Status == http.StatusUnauthorized
}

// IsForbidden reports whether err is a 403: the caller is authenticated but
// lacks the role the operation requires.
func IsForbidden(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Status == http.StatusForbidden
}

// IsNotFound reports whether err is a 404, typically a stale id.
func IsNotFound(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Status == http.StatusNotFound
}

// IsNetwork reports whether err is a transport failure or a malformed
// response, as opposed to an application-level rejection.
func IsNetwork(err error) bool {
	var re *Error
	if !errors.As(err, &re) {
		return false
	}
	return re.Status == 0 || re.Code == codeMalformed
}

// Detail returns the most specific message available for display: the
// remote-provided detail when present, otherwise the fallback.
func Detail(err error, fallback string) string {
	var re *Error
	if errors.As(err, &re) && re.Detail != "" {
		return re.Detail
	}
	return fallback
}
