package community

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorType categorizes an API failure for callers and metrics.
type ErrorType string

const (
	// TypeValidation indicates the server rejected the input (HTTP 400)
	TypeValidation ErrorType = "validation"
	// TypeUnauthorized indicates missing or rejected credentials (HTTP 401)
	TypeUnauthorized ErrorType = "unauthorized"
	// TypeForbidden indicates the caller may not touch the resource (HTTP 403)
	TypeForbidden ErrorType = "forbidden"
	// TypeNotFound indicates the resource does not exist (HTTP 404)
	TypeNotFound ErrorType = "not_found"
	// TypeConflict indicates the request clashed with current state (HTTP 409)
	TypeConflict ErrorType = "conflict"
	// TypeRateLimited indicates the server throttled the caller (HTTP 429)
	TypeRateLimited ErrorType = "rate_limited"
	// TypeServer indicates the backend failed (HTTP 5xx)
	TypeServer ErrorType = "server"
	// TypeUnavailable indicates the client refused to call out, because the
	// circuit breaker is open or the request never reached the server
	TypeUnavailable ErrorType = "unavailable"
)

// Error is a failed API call. It carries the server's error envelope when
// one was returned, plus the request ID so the failure can be matched
// against backend logs.
type Error struct {
	Type       ErrorType
	StatusCode int
	Message    string
	RequestID  string
	Cause      error
}

func (e *Error) Error() string {
	switch {
	case e.Cause != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Type, e.Cause)
	default:
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Temporary reports whether retrying the same call later could succeed.
func (e *Error) Temporary() bool {
	switch e.Type {
	case TypeRateLimited, TypeServer, TypeUnavailable:
		return true
	default:
		return false
	}
}

// errorEnvelope is the JSON error body the API returns.
type errorEnvelope struct {
	Error string    `json:"error"`
	Type  ErrorType `json:"type"`
}

// typeForStatus maps an HTTP status to an error type; used when the body
// carries no usable envelope.
func typeForStatus(status int) ErrorType {
	switch status {
	case http.StatusBadRequest:
		return TypeValidation
	case http.StatusUnauthorized:
		return TypeUnauthorized
	case http.StatusForbidden:
		return TypeForbidden
	case http.StatusNotFound:
		return TypeNotFound
	case http.StatusConflict:
		return TypeConflict
	case http.StatusTooManyRequests:
		return TypeRateLimited
	default:
		if status >= 500 {
			return TypeServer
		}
		return TypeValidation
	}
}

// errorFromResponse builds an *Error from a non-2xx response body.
func errorFromResponse(status int, body []byte, requestID string) *Error {
	e := &Error{
		Type:       typeForStatus(status),
		StatusCode: status,
		Message:    http.StatusText(status),
		RequestID:  requestID,
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error != "" {
			e.Message = envelope.Error
		}
		if envelope.Type != "" {
			e.Type = envelope.Type
		}
	}
	return e
}

// HasType reports whether err is an API error of the given type.
func HasType(err error, t ErrorType) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Type == t
}

// IsNotFound reports whether err means the resource does not exist.
func IsNotFound(err error) bool {
	return HasType(err, TypeNotFound)
}

// IsUnauthorized reports whether err means the credentials were rejected,
// including a 401 that survived the refresh-and-retry cycle.
func IsUnauthorized(err error) bool {
	return HasType(err, TypeUnauthorized)
}
