package mutation

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Draft is the staging copy of a create/edit form. It lives only while the
// form is open and remembers the shape it was opened with.
type Draft[T any] struct {
	initial T
	current T
}

// NewDraft opens a draft on initial.
func NewDraft[T any](initial T) *Draft[T] {
	return &Draft[T]{initial: initial, current: initial}
}

// Set replaces the current values.
func (d *Draft[T]) Set(v T) { d.current = v }

// Current returns the current values.
func (d *Draft[T]) Current() T { return d.current }

// Initial returns the values the draft was opened with.
func (d *Draft[T]) Initial() T { return d.initial }

// Reset discards edits.
func (d *Draft[T]) Reset() { d.current = d.initial }

// Dirty reports whether any field differs from the initial shape.
func (d *Draft[T]) Dirty() bool {
	return len(d.Changed()) > 0
}

// Changed lists the fields that differ from the initial shape, by their JSON
// name when they have one. Map drafts compare key by key; other non-struct
// drafts report "value" when changed.
func (d *Draft[T]) Changed() []string {
	a := reflect.ValueOf(d.initial)
	b := reflect.ValueOf(d.current)
	for a.Kind() == reflect.Pointer {
		if a.IsNil() || b.IsNil() {
			if a.IsNil() != b.IsNil() {
				return []string{"value"}
			}
			return nil
		}
		a, b = a.Elem(), b.Elem()
	}
	if a.Kind() == reflect.Map && b.Kind() == reflect.Map {
		return changedKeys(a, b)
	}
	if a.Kind() != reflect.Struct {
		if !reflect.DeepEqual(d.initial, d.current) {
			return []string{"value"}
		}
		return nil
	}

	var changed []string
	t := a.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if !reflect.DeepEqual(a.Field(i).Interface(), b.Field(i).Interface()) {
			changed = append(changed, fieldName(f))
		}
	}
	return changed
}

func fieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
		return name
	}
	return f.Name
}

func changedKeys(a, b reflect.Value) []string {
	seen := map[string]bool{}
	var changed []string
	check := func(k reflect.Value) {
		name := fmt.Sprint(k.Interface())
		if seen[name] {
			return
		}
		seen[name] = true
		av, bv := a.MapIndex(k), b.MapIndex(k)
		if !av.IsValid() || !bv.IsValid() {
			if valueSet(av) || valueSet(bv) {
				changed = append(changed, name)
			}
			return
		}
		if !reflect.DeepEqual(av.Interface(), bv.Interface()) {
			changed = append(changed, name)
		}
	}
	for _, k := range a.MapKeys() {
		check(k)
	}
	for _, k := range b.MapKeys() {
		check(k)
	}
	sort.Strings(changed)
	return changed
}

// valueSet treats a missing key like an empty form field.
func valueSet(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return false
		}
		v = v.Elem()
	}
	return !v.IsZero()
}
