package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is a failed backend call: either the request never completed (Err is
// set, Status is zero) or the backend answered with a non-2xx status.
type Error struct {
	Method string
	Path   string
	Status int
	Body   []byte
	Err    error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: status %d: %v", e.Method, e.Path, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// Unreachable reports whether the request failed before any response arrived.
func (e *Error) Unreachable() bool { return e.Status == 0 }

// Fields decodes the response body as a JSON object. ok is false when the
// body is absent or not an object.
func (e *Error) Fields() (fields map[string]interface{}, ok bool) {
	if len(e.Body) == 0 {
		return nil, false
	}
	if err := json.Unmarshal(e.Body, &fields); err != nil {
		return nil, false
	}
	return fields, fields != nil
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// StatusOf returns the HTTP status carried by err, or zero.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
