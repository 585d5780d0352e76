package crmapi

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	// KindTransport means the request never produced a response.
	KindTransport ErrorKind = iota + 1
	// KindRejected means the API answered with a non-2xx status.
	KindRejected
	// KindDecode means a 2xx response could not be read.
	KindDecode
)

// Error is returned by every Client call that fails.
type Error struct {
	Op      string
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindRejected:
		if e.Message != "" {
			return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
		}
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	case KindDecode:
		return fmt.Sprintf("%s: decode response: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransport reports whether err is a network or decode failure rather than
// a rejection from the API.
func IsTransport(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return err != nil
	}
	return apiErr.Kind != KindRejected
}

func IsRejected(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindRejected
}

// StatusCode returns the HTTP status of a rejection, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// UserMessage picks the text shown to the operator: the API's own message
// when it sent one, otherwise fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Kind == KindRejected && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
