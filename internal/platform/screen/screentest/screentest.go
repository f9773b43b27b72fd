// Package screentest wires screen handlers to an in-process fake backend for
// tests.
package screentest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/platform/apiclient"
	"github.com/ehr/emr-web/internal/platform/auth"
	"github.com/ehr/emr-web/internal/platform/fakebackend"
	"github.com/ehr/emr-web/internal/platform/notification"
	"github.com/ehr/emr-web/internal/platform/screen"
	"github.com/ehr/emr-web/internal/platform/snapshot"
	"github.com/ehr/emr-web/internal/platform/view"
)

// Session is the session cookie every request carries.
const Session = "test-tab"

// Harness is a BFF echo instance in front of a fake backend.
type Harness struct {
	Echo      *echo.Echo
	Backend   *fakebackend.Backend
	API       *apiclient.Client
	Env       screen.Env
	Snapshots *snapshot.MemoryStore
	Logger    zerolog.Logger
}

// New starts a Harness whose screens settle batch loads slot by slot.
func New(t *testing.T) *Harness {
	t.Helper()
	fb := fakebackend.New()
	t.Cleanup(fb.Close)

	api, err := apiclient.New(fb.URL())
	if err != nil {
		t.Fatalf("apiclient: %v", err)
	}
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	store := snapshot.NewMemoryStore(64)

	e := echo.New()
	e.Use(auth.SessionMiddleware(auth.Config{Dev: true}))
	return &Harness{
		Echo:    e,
		Backend: fb,
		API:     api,
		Env: screen.Env{
			Registry:    view.NewRegistry(time.Hour, logger),
			Notifier:    notification.NewManager(nil, logger),
			Logger:      logger,
			Policy:      view.SettleAll,
			Snapshots:   store,
			SnapshotTTL: time.Hour,
		},
		Snapshots: store,
		Logger:    logger,
	}
}

// Screens is the group screen handlers register on.
func (h *Harness) Screens() *echo.Group { return h.Echo.Group("/screens") }

// Do serves one request. A non-empty body is sent as JSON.
func (h *Harness) Do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return h.Serve(req)
}

// Serve serves req with the harness session cookie attached.
func (h *Harness) Serve(req *http.Request) *httptest.ResponseRecorder {
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: Session})
	rec := httptest.NewRecorder()
	h.Echo.ServeHTTP(rec, req)
	return rec
}

// Response is a decoded screen response with typed items.
type Response[D any] struct {
	State struct {
		Items        D                 `json:"items"`
		IsLoading    bool              `json:"isLoading"`
		IsSubmitting bool              `json:"isSubmitting"`
		Error        string            `json:"error"`
		Errors       map[string]string `json:"errors"`
		Phase        view.Phase        `json:"phase"`
		Stale        bool              `json:"stale"`
	} `json:"state"`
	View          json.RawMessage              `json:"view"`
	Notifications []*notification.Notification `json:"notifications"`
	Error         string                       `json:"error"`
	Field         string                       `json:"field"`
	Draft         map[string]interface{}       `json:"draft"`
	Confirm       *bool                        `json:"confirm"`
}

// Decode parses rec as a screen response.
func Decode[D any](t *testing.T, rec *httptest.ResponseRecorder) Response[D] {
	t.Helper()
	var r Response[D]
	if err := json.Unmarshal(rec.Body.Bytes(), &r); err != nil {
		t.Fatalf("decode response (%d): %v: %s", rec.Code, err, rec.Body.String())
	}
	return r
}

// Messages returns the toast texts of r.
func (r Response[D]) Messages() []string {
	out := make([]string, len(r.Notifications))
	for i, n := range r.Notifications {
		out[i] = n.Message
	}
	return out
}
