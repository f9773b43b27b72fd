package view

import (
	"net/url"
)

// Deps are the values a screen's data depends on (role, user, patient id,
// time range). A change in any of them triggers a reload.
type Deps map[string]string

// Equal reports whether d and o hold the same non-empty values.
func (d Deps) Equal(o Deps) bool {
	return d.Key() == o.Key()
}

// Key is a stable encoding of d, ignoring empty values.
func (d Deps) Key() string {
	v := url.Values{}
	for k, val := range d {
		if val != "" {
			v.Set(k, val)
		}
	}
	return v.Encode()
}

// Get returns the value of k.
func (d Deps) Get(k string) string {
	return d[k]
}

func (d Deps) clone() Deps {
	out := make(Deps, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
