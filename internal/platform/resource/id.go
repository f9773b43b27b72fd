package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const tempPrefix = "temp-"

// ID is a server-assigned record id. The backend sends numbers for most
// resources and strings for a few, so both decode into the same type.
type ID string

// IDFromInt converts a numeric id.
func IDFromInt(n int64) ID { return ID(strconv.FormatInt(n, 10)) }

// NewTempID returns an ephemeral placeholder id. Placeholders are never sent
// to the backend.
func NewTempID() ID { return ID(tempPrefix + uuid.NewString()) }

// IsTemp reports whether id is a client-side placeholder.
func (id ID) IsTemp() bool { return strings.HasPrefix(string(id), tempPrefix) }

// IsZero reports whether id is unset. The backend never assigns 0.
func (id ID) IsZero() bool { return id == "" || id == "0" }

// Int returns the numeric form of id.
func (id ID) Int() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}

func (id ID) String() string { return string(id) }

// MarshalJSON writes numeric ids as JSON numbers so that foreign keys in
// submitted payloads keep the backend's integer type.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if n, ok := id.Int(); ok {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = IDFromInt(i)
		return nil
	}
	f, err := n.Float64()
	if err != nil || f != float64(int64(f)) {
		return fmt.Errorf("id: non-integer number %s", n)
	}
	*id = IDFromInt(int64(f))
	return nil
}
