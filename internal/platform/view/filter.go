package view

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Order is a sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

func (o Order) sign() int {
	if o == Desc {
		return -1
	}
	return 1
}

// Filter is the client-side derived view over a screen's items.
type Filter struct {
	SearchTerm string `json:"searchTerm,omitempty"`
	Status     string `json:"status,omitempty"`
	SortBy     string `json:"sortBy,omitempty"`
	SortOrder  Order  `json:"sortOrder,omitempty"`
}

// FilterFromQuery reads search, status, sort and order.
func FilterFromQuery(q url.Values) Filter {
	f := Filter{
		SearchTerm: strings.TrimSpace(q.Get("search")),
		Status:     q.Get("status"),
		SortBy:     q.Get("sort"),
		SortOrder:  Asc,
	}
	if strings.EqualFold(q.Get("order"), string(Desc)) {
		f.SortOrder = Desc
	}
	return f
}

// SortKey extracts one sortable field. Exactly one extractor is set.
type SortKey[T any] struct {
	Time   func(T) time.Time
	Text   func(T) string
	Number func(T) float64
}

// TimeKey sorts by a timestamp.
func TimeKey[T any](fn func(T) time.Time) SortKey[T] { return SortKey[T]{Time: fn} }

// TextKey sorts by a string with locale-aware collation.
func TextKey[T any](fn func(T) string) SortKey[T] { return SortKey[T]{Text: fn} }

// NumberKey sorts by a number.
func NumberKey[T any](fn func(T) float64) SortKey[T] { return SortKey[T]{Number: fn} }

// FilterSpec declares which fields of T a Filter acts on.
type FilterSpec[T any] struct {
	// Search fields are matched case-insensitively against SearchTerm.
	Search []func(T) string
	Status func(T) string
	Sorts  map[string]SortKey[T]
	// DefaultSort is used when the Filter names no known sort key.
	DefaultSort string
}

// Apply returns the items matching f in f's order. items is not modified.
func Apply[T any](items []T, f Filter, spec FilterSpec[T]) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if Matches(it, f, spec) {
			out = append(out, it)
		}
	}

	key, ok := spec.Sorts[f.SortBy]
	if !ok {
		key, ok = spec.Sorts[spec.DefaultSort]
	}
	if !ok {
		return out
	}

	cmp := compareFunc(key)
	sign := f.SortOrder.sign()
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	// ties order by input position, reversed for desc
	sort.Slice(idx, func(a, b int) bool {
		c := cmp(out[idx[a]], out[idx[b]])
		if c == 0 {
			c = idx[a] - idx[b]
		}
		return c*sign < 0
	})
	sorted := make([]T, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted
}

// Matches reports whether item passes f's search term and status. Status is
// an exact match; "all" or blank matches every item.
func Matches[T any](item T, f Filter, spec FilterSpec[T]) bool {
	if f.Status != "" && f.Status != "all" && spec.Status != nil {
		if spec.Status(item) != f.Status {
			return false
		}
	}
	term := strings.ToLower(strings.TrimSpace(f.SearchTerm))
	if term == "" || len(spec.Search) == 0 {
		return true
	}
	for _, field := range spec.Search {
		if strings.Contains(strings.ToLower(field(item)), term) {
			return true
		}
	}
	return false
}

func compareFunc[T any](key SortKey[T]) func(a, b T) int {
	switch {
	case key.Time != nil:
		return func(a, b T) int {
			return sign64(key.Time(a).Sub(key.Time(b)).Milliseconds())
		}
	case key.Number != nil:
		return func(a, b T) int {
			d := key.Number(a) - key.Number(b)
			switch {
			case d < 0:
				return -1
			case d > 0:
				return 1
			}
			return 0
		}
	default:
		// Collators keep internal buffers, so each Apply gets its own.
		col := collate.New(language.English)
		return func(a, b T) int {
			return col.CompareString(key.Text(a), key.Text(b))
		}
	}
}

func sign64(n int64) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
