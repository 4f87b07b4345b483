package sltkapi

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrRejected    = errors.New("sltk: request rejected by backend")
	ErrNotFound    = errors.New("sltk: resource not found")
	ErrUnavailable = errors.New("sltk: backend unreachable or unavailable")
	ErrBadResponse = errors.New("sltk: invalid response format")
)

// APIError wraps a sentinel error with the failing operation and whatever the
// backend said about it.
type APIError struct {
	Sentinel  error
	Operation string
	Status    int
	Message   string
	Err       error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *APIError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Sentinel, e.Err}
	}
	return []error{e.Sentinel}
}

// RejectionMessage returns the reason the backend gave when it answered but
// refused the request. Transport failures report ok=false.
func RejectionMessage(err error) (string, bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status == 0 || apiErr.Message == "" {
		return "", false
	}
	return apiErr.Message, true
}
