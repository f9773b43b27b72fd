// Package fakebackend is an in-process REST backend used by tests. It serves
// in-memory collections over the same route templates the resource clients
// use, records every call, and can be told to fail or stall a collection.
package fakebackend

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/ehr/emr-web/internal/platform/resource"
)

// Record is one stored row.
type Record map[string]interface{}

// Call is one request received by the backend.
type Call struct {
	Method string
	Path   string
	Query  url.Values
}

type failure struct {
	status int
	body   string
}

type collection struct {
	nextID    int64
	records   map[string]Record
	order     []string
	paginated bool
	fail      *failure
	hold      chan struct{}
}

// Backend is the fake server.
type Backend struct {
	e     *echo.Echo
	srv   *httptest.Server
	mu    sync.Mutex
	cols  map[string]*collection
	calls []Call
}

// New starts a Backend. Close it when done.
func New() *Backend {
	b := &Backend{e: echo.New(), cols: make(map[string]*collection)}
	b.e.HideBanner = true
	b.e.Pre(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			b.mu.Lock()
			b.calls = append(b.calls, Call{
				Method: c.Request().Method,
				Path:   strings.TrimPrefix(c.Request().URL.Path, "/"),
				Query:  c.Request().URL.Query(),
			})
			b.mu.Unlock()
			return next(c)
		}
	})
	b.srv = httptest.NewServer(b.e)
	return b
}

// URL is the backend base URL.
func (b *Backend) URL() string { return b.srv.URL + "/" }

// Close stops the server.
func (b *Backend) Close() { b.srv.Close() }

// Echo exposes the router for resource-specific endpoints.
func (b *Backend) Echo() *echo.Echo { return b.e }

// Mount serves the collection named base on routes.
func (b *Backend) Mount(base string, routes resource.Routes) {
	b.mu.Lock()
	if _, ok := b.cols[base]; !ok {
		b.cols[base] = &collection{records: make(map[string]Record)}
	}
	b.mu.Unlock()

	b.e.GET(echoPath(routes.List), b.list(base))
	b.e.GET(echoPath(routes.Get), b.get(base))
	b.e.POST(echoPath(routes.Create), b.create(base))
	method := routes.UpdateMethod
	if method == "" {
		method = http.MethodPut
	}
	b.e.Add(method, echoPath(routes.Update), b.update(base))
	b.e.DELETE(echoPath(routes.Delete), b.remove(base))
}

// Paginated makes list responses use a {"count", "results"} envelope.
func (b *Backend) Paginated(base string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cols[base].paginated = true
}

// Seed stores records, assigning ids to those without one.
func (b *Backend) Seed(base string, recs ...Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	col := b.cols[base]
	for _, r := range recs {
		col.insert(copyRecord(r))
	}
}

// Records returns the stored records in insertion order.
func (b *Backend) Records(base string) []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	col := b.cols[base]
	out := make([]Record, 0, len(col.order))
	for _, id := range col.order {
		out = append(out, copyRecord(col.records[id]))
	}
	return out
}

// Fail makes every request to base answer status with body until Heal.
func (b *Backend) Fail(base string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cols[base].fail = &failure{status: status, body: body}
}

// Heal clears a Fail.
func (b *Backend) Heal(base string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cols[base].fail = nil
}

// Hold stalls list requests for base until the returned release func runs.
func (b *Backend) Hold(base string) (release func()) {
	ch := make(chan struct{})
	b.mu.Lock()
	b.cols[base].hold = ch
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if b.cols[base].hold == ch {
				b.cols[base].hold = nil
			}
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Calls returns every request received so far.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CountCalls counts requests with method whose path starts with prefix.
func (b *Backend) CountCalls(method, prefix string) int {
	n := 0
	for _, c := range b.Calls() {
		if c.Method == method && strings.HasPrefix(c.Path, prefix) {
			n++
		}
	}
	return n
}

// Reset clears the call log.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

func (b *Backend) guard(c echo.Context, base string) (*collection, error) {
	b.mu.Lock()
	col := b.cols[base]
	f := col.fail
	b.mu.Unlock()
	if f != nil {
		return nil, c.Blob(f.status, echo.MIMEApplicationJSON, []byte(f.body))
	}
	return col, nil
}

func (b *Backend) list(base string) echo.HandlerFunc {
	return func(c echo.Context) error {
		b.mu.Lock()
		hold := b.cols[base].hold
		b.mu.Unlock()
		if hold != nil {
			select {
			case <-hold:
			case <-c.Request().Context().Done():
				return c.Request().Context().Err()
			}
		}

		col, err := b.guard(c, base)
		if col == nil {
			return err
		}

		b.mu.Lock()
		var out []Record
		for _, id := range col.order {
			r := col.records[id]
			if matches(r, c.QueryParams()) {
				out = append(out, copyRecord(r))
			}
		}
		paginated := col.paginated
		b.mu.Unlock()

		if out == nil {
			out = []Record{}
		}
		if paginated {
			return c.JSON(http.StatusOK, map[string]interface{}{"count": len(out), "results": out})
		}
		return c.JSON(http.StatusOK, out)
	}
}

func (b *Backend) get(base string) echo.HandlerFunc {
	return func(c echo.Context) error {
		col, err := b.guard(c, base)
		if col == nil {
			return err
		}
		b.mu.Lock()
		r, ok := col.records[c.Param("id")]
		r = copyRecord(r)
		b.mu.Unlock()
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]string{"detail": "Not found."})
		}
		return c.JSON(http.StatusOK, r)
	}
}

func (b *Backend) create(base string) echo.HandlerFunc {
	return func(c echo.Context) error {
		col, err := b.guard(c, base)
		if col == nil {
			return err
		}
		var r Record
		if err := c.Bind(&r); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"detail": err.Error()})
		}
		delete(r, "id")
		b.mu.Lock()
		stored := col.insert(r)
		b.mu.Unlock()
		return c.JSON(http.StatusCreated, stored)
	}
}

func (b *Backend) update(base string) echo.HandlerFunc {
	return func(c echo.Context) error {
		col, err := b.guard(c, base)
		if col == nil {
			return err
		}
		var patch Record
		if err := c.Bind(&patch); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"detail": err.Error()})
		}
		id := c.Param("id")
		b.mu.Lock()
		r, ok := col.records[id]
		if ok {
			for k, v := range patch {
				if k == "id" {
					continue
				}
				r[k] = v
			}
		}
		r = copyRecord(r)
		b.mu.Unlock()
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]string{"detail": "Not found."})
		}
		return c.JSON(http.StatusOK, r)
	}
}

func (b *Backend) remove(base string) echo.HandlerFunc {
	return func(c echo.Context) error {
		col, err := b.guard(c, base)
		if col == nil {
			return err
		}
		id := c.Param("id")
		b.mu.Lock()
		_, ok := col.records[id]
		if ok {
			delete(col.records, id)
			for i, x := range col.order {
				if x == id {
					col.order = append(col.order[:i], col.order[i+1:]...)
					break
				}
			}
		}
		b.mu.Unlock()
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]string{"detail": "Not found."})
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func (col *collection) insert(r Record) Record {
	id := ""
	if v, ok := r["id"]; ok && v != nil {
		id = fmt.Sprint(v)
		if n, err := strconv.ParseInt(id, 10, 64); err == nil && n > col.nextID {
			col.nextID = n
		}
	} else {
		col.nextID++
		id = strconv.FormatInt(col.nextID, 10)
		r["id"] = col.nextID
	}
	if _, exists := col.records[id]; !exists {
		col.order = append(col.order, id)
	}
	col.records[id] = r
	return copyRecord(r)
}

// matches applies list query parameters: search is a case-insensitive
// substring match over string fields, anything else is field equality.
func matches(r Record, q url.Values) bool {
	for k, vals := range q {
		want := vals[0]
		if want == "" {
			continue
		}
		if k == "search" {
			if !searchMatch(r, want) {
				return false
			}
			continue
		}
		v, ok := r[k]
		if !ok {
			// patient_id filters match the "patient" foreign key.
			v, ok = r[strings.TrimSuffix(k, "_id")]
		}
		if !ok || fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}

func searchMatch(r Record, term string) bool {
	term = strings.ToLower(term)
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := r[k].(string); ok && strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	return false
}

func copyRecord(r Record) Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func echoPath(tmpl string) string {
	return "/" + strings.ReplaceAll(strings.TrimPrefix(tmpl, "/"), "{id}", ":id")
}
