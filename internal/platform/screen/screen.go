// Package screen binds a screen definition (how to load it, how to validate
// and submit its forms) to the browser-facing routes under /screens/<name>.
// Each browser session gets its own view.Controller per screen.
package screen

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/platform/mutation"
	"github.com/ehr/emr-web/internal/platform/notification"
	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/snapshot"
	"github.com/ehr/emr-web/internal/platform/view"
)

// Partial is an update payload: only the submitted fields.
type Partial = map[string]interface{}

// Definition describes one screen. D is the screen's data, C its create form.
type Definition[D any, C any] struct {
	// Name is the route segment and the label in logs, metrics and toasts.
	Name string
	// Noun names one record in toasts, e.g. "patient".
	Noun string
	// DepParams are query parameters that select the screen's data. A change
	// in any of them reloads the screen.
	DepParams []string

	Load  view.Loader[D]
	Empty func() D
	// View derives the filtered, sorted view of data. Nil omits it.
	View func(data D, f view.Filter) interface{}

	// Blank is the shape a create form opens with.
	Blank func() C
	// Rules are checked before create. They may consult the loaded data.
	Rules func(data D) []mutation.Rule[C]
	// UpdateRules are checked before update.
	UpdateRules func(data D) []mutation.Rule[Partial]

	Create func(ctx context.Context, v C) error
	Update func(ctx context.Context, id resource.ID, p Partial) error
	Delete func(ctx context.Context, id resource.ID) error

	Snapshot       *snapshot.Cache[D]
	FailureMessage string
	Messages       *mutation.Messages
}

// Env is what every screen shares.
type Env struct {
	Registry *view.Registry
	Notifier *notification.Manager
	Logger   zerolog.Logger

	// Policy applies to screens that load several resources at once.
	Policy view.Policy
	// Snapshots backs the fallback cache of screens that keep one. Nil
	// disables it.
	Snapshots   snapshot.Store
	SnapshotTTL time.Duration
}

// SnapshotCache returns the fallback cache for the screen called name, or nil
// when env has no snapshot store.
func SnapshotCache[D any](env Env, name string) *snapshot.Cache[D] {
	if env.Snapshots == nil {
		return nil
	}
	return snapshot.NewCache[D](env.Snapshots, name, env.SnapshotTTL)
}

// formFields returns the JSON names of C's exported fields.
func formFields[C any]() map[string]bool {
	var zero C
	t := reflect.TypeOf(zero)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	out := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		out[name] = true
	}
	return out
}

// toPartial converts a form value into its JSON field map.
func toPartial(v interface{}) (Partial, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var p Partial
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// restrict keeps the keys of p that are form fields. A nil field set keeps
// every key but "id".
func restrict(p Partial, fields map[string]bool) Partial {
	out := make(Partial, len(p))
	for k, v := range p {
		if k == "id" {
			continue
		}
		if fields != nil && !fields[k] {
			continue
		}
		out[k] = v
	}
	return out
}

// String returns p[key] as a string. Missing keys yield "".
func String(p Partial, key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// ID returns p[key] as a record id.
func ID(p Partial, key string) resource.ID {
	return resource.ID(String(p, key))
}
