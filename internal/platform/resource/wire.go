package resource

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrSchema marks a response whose shape does not match what the resource
// client expects.
var ErrSchema = errors.New("unexpected response shape")

// SchemaError names the resource and field that failed the shape check.
type SchemaError struct {
	Resource string
	Field    string
	Reason   string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: field %q: %s", e.Resource, e.Field, e.Reason)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// Missing returns the error for an absent required field.
func Missing(resource, field string) error {
	return &SchemaError{Resource: resource, Field: field, Reason: "required field missing"}
}

// Invalid returns the error for a present but malformed field.
func Invalid(resource, field, reason string) error {
	return &SchemaError{Resource: resource, Field: field, Reason: reason}
}

// Text decodes a JSON string, number or bool into a string. Loosely typed
// backend fields go through it.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*t = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		*t = Text(b)
	}
	return nil
}

// Or returns t, or def when t is blank.
func (t Text) Or(def string) string {
	if s := strings.TrimSpace(string(t)); s != "" {
		return s
	}
	return def
}

// Number decodes a JSON number or numeric string.
type Number struct {
	Value float64
	Valid bool
}

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte(`""`)) {
		*n = Number{}
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("number: %q", s)
	}
	*n = Number{Value: f, Valid: true}
	return nil
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

// ParseDate accepts the date and datetime layouts the backend emits. An empty
// string yields the zero time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// Date parses a wire date field, reporting failures as a SchemaError.
func Date(resource, field string, t Text) (time.Time, error) {
	d, err := ParseDate(string(t))
	if err != nil {
		return time.Time{}, Invalid(resource, field, err.Error())
	}
	return d, nil
}
