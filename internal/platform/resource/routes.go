package resource

import (
	"net/http"
	"net/url"
	"strings"
)

// Routes are the backend paths of one resource. Templates use {id} for the
// record id and are relative to the backend base URL.
type Routes struct {
	List         string
	Get          string
	Create       string
	Update       string
	Delete       string
	UpdateMethod string
}

// REST returns bare REST routes for base: GET/POST base/, GET/PUT/DELETE
// base/{id}/.
func REST(base string) Routes {
	base = strings.Trim(base, "/")
	return Routes{
		List:         base + "/",
		Get:          base + "/{id}/",
		Create:       base + "/",
		Update:       base + "/{id}/",
		Delete:       base + "/{id}/",
		UpdateMethod: http.MethodPut,
	}
}

// Suffixed returns the create/update/delete-suffixed routes some backend
// resources use: POST base/create/, PUT base/{id}/update/, DELETE
// base/{id}/delete/.
func Suffixed(base string) Routes {
	r := REST(base)
	r.Create = strings.Trim(base, "/") + "/create/"
	r.Update = strings.Trim(base, "/") + "/{id}/update/"
	r.Delete = strings.Trim(base, "/") + "/{id}/delete/"
	return r
}

// WithPatch switches updates to PATCH.
func (r Routes) WithPatch() Routes {
	r.UpdateMethod = http.MethodPatch
	return r
}

// Pick returns legacy when legacy path conventions are kept, otherwise bare
// REST routes for base.
func Pick(legacy bool, base string, legacyRoutes Routes) Routes {
	if legacy {
		return legacyRoutes
	}
	return REST(base)
}

func expand(tmpl string, id ID) string {
	return strings.ReplaceAll(tmpl, "{id}", url.PathEscape(string(id)))
}
