package mutation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ehr/emr-web/internal/platform/apiclient"
)

// GenericMessage is shown when an error carries nothing more specific.
const GenericMessage = "Something went wrong. Please try again."

const unreachableMessage = "Unable to reach the server. Please check your connection and try again."

var envelopeKeys = map[string]bool{
	"detail":           true,
	"error":            true,
	"non_field_errors": true,
	"message":          true,
	"status":           true,
	"code":             true,
}

// Message extracts the most specific user-facing message from err. For a
// structured backend error body it tries, in order, a field error, "detail",
// "error", then "non_field_errors"[0]. A client-side ValidationError yields its
// message alone. fallback (or GenericMessage) is used when nothing matches.
func Message(err error, fallback string) string {
	if fallback == "" {
		fallback = GenericMessage
	}
	if err == nil {
		return fallback
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}

	var apiErr *apiclient.Error
	if !errors.As(err, &apiErr) {
		return fallback
	}
	if apiErr.Unreachable() {
		return unreachableMessage
	}
	fields, ok := apiErr.Fields()
	if !ok {
		return fallback
	}

	if msg := fieldError(fields); msg != "" {
		return msg
	}
	for _, k := range []string{"detail", "error", "non_field_errors"} {
		if msg := first(fields[k]); msg != "" {
			return msg
		}
	}
	return fallback
}

// fieldError returns "field: message" for the alphabetically first field key.
func fieldError(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if !envelopeKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if msg := first(fields[k]); msg != "" {
			return fmt.Sprintf("%s: %s", k, msg)
		}
	}
	return ""
}

func first(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []interface{}:
		for _, e := range t {
			if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
