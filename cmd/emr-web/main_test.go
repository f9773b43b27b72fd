package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/config"
	"github.com/ehr/emr-web/internal/platform/auth"
	"github.com/ehr/emr-web/internal/platform/fakebackend"
	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/snapshot"
)

func testConfig(backendURL string) *config.Config {
	return &config.Config{
		Port:               "0",
		Env:                "development",
		BackendURL:         backendURL,
		PathStyle:          "legacy",
		LoadPolicy:         "settle",
		SnapshotTTL:        time.Minute,
		SnapshotMaxEntries: 16,
		MountIdleTTL:       time.Hour,
		CORSOrigins:        []string{"http://localhost:3000"},
		RateLimitRPS:       1000,
		RateLimitBurst:     1000,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *server {
	t.Helper()
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	srv, err := newServer(cfg, logger, serverDeps{snapshots: snapshot.NewMemoryStore(16)})
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	return srv
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, testConfig("http://backend.local/api/"))

	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["version"] != version {
		t.Errorf("unexpected body: %v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id on the response")
	}
}

func TestServer_NoDBHealthWithoutSnapshotDatabase(t *testing.T) {
	srv := newTestServer(t, testConfig("http://backend.local/api/"))

	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/db", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when no snapshot database is configured, got %d", rec.Code)
	}
}

func TestServer_RegistersScreenRoutes(t *testing.T) {
	srv := newTestServer(t, testConfig("http://backend.local/api/"))

	routes := make(map[string]bool)
	for _, r := range srv.echo.Routes() {
		routes[r.Method+" "+r.Path] = true
	}

	want := []string{
		"GET /screens/patients",
		"POST /screens/patients/items",
		"GET /screens/appointments",
		"GET /screens/diagnostics",
		"GET /screens/ehr",
		"GET /screens/lab-results",
		"POST /screens/lab-results/reports",
		"GET /screens/feedback",
		"GET /screens/support",
		"GET /screens/campaigns",
		"GET /screens/reports",
		"GET /screens/reports/export",
		"GET /screens/workspace",
		"GET /screens/analytics",
		"GET /screens/chat",
		"GET /screens/notifications",
		"GET /ws/notifications",
		"GET /ws/chat",
		"GET /metrics",
	}
	for _, w := range want {
		if !routes[w] {
			t.Errorf("route %q not registered", w)
		}
	}
	if routes["PUT /screens/reports/items/:id"] {
		t.Error("reports screen has no update flow")
	}
}

func TestServer_PatientScreenLoadsFromBackend(t *testing.T) {
	fb := fakebackend.New()
	defer fb.Close()
	fb.Mount("patients", resource.Pick(true, "patients", resource.Suffixed("patients")))
	fb.Seed("patients", fakebackend.Record{"first_name": "Ann", "last_name": "Lee"})

	srv := newTestServer(t, testConfig(fb.URL()))

	req := httptest.NewRequest(http.MethodGet, "/screens/patients", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: "tab-1"})
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if n := fb.CountCalls(http.MethodGet, "patients"); n != 1 {
		t.Errorf("expected one backend list call, got %d", n)
	}
}

func TestServer_RejectsUnknownLoadPolicy(t *testing.T) {
	cfg := testConfig("http://backend.local/api/")
	cfg.LoadPolicy = "eventually"
	_, err := newServer(cfg, zerolog.Nop(), serverDeps{snapshots: snapshot.NewMemoryStore(1)})
	if err == nil {
		t.Fatal("expected error for unknown load policy")
	}
}

func TestSweepInterval(t *testing.T) {
	if got := sweepInterval(time.Minute); got != time.Minute {
		t.Errorf("expected one minute floor, got %s", got)
	}
	if got := sweepInterval(time.Hour); got != 15*time.Minute {
		t.Errorf("expected quarter of ttl, got %s", got)
	}
}
