package forge

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies API failures so the sync engine can choose a policy
// (surface to the user, back off, retry on the next cycle).
type ErrorKind string

const (
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindNotFound     ErrorKind = "not_found"
	KindRateLimited  ErrorKind = "rate_limited"
	KindNetwork      ErrorKind = "network"
	KindAPI          ErrorKind = "api"
)

// APIError is the typed error returned by the forge client. RetryAfter is
// only meaningful for KindRateLimited.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	switch e.Kind {
	case KindUnauthorized:
		return "github: unauthorized - token may be invalid or expired"
	case KindForbidden:
		return "github: forbidden - insufficient permissions"
	case KindNotFound:
		return fmt.Sprintf("github: not found: %s", e.Message)
	case KindRateLimited:
		return fmt.Sprintf("github: rate limited, retry after %s", e.RetryAfter)
	case KindNetwork:
		return fmt.Sprintf("github: network error: %s", e.Message)
	}
	return fmt.Sprintf("github: API error (%d): %s", e.StatusCode, e.Message)
}

// KindOf returns the error kind of err, or "" when err is not an *APIError.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// RetryAfter reports whether err is a rate-limit error and the duration the
// caller must wait before making further calls.
func RetryAfter(err error) (time.Duration, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Kind == KindRateLimited {
		return apiErr.RetryAfter, true
	}
	return 0, false
}
