package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/ehr/emr-web/internal/platform/apiclient"
)

func createTestToken(t *testing.T, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString([]byte("any-key-signature-is-not-checked"))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func run(t *testing.T, cfg Config, req *http.Request) (Session, context.Context, *httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got Session
	var ctx context.Context
	h := SessionMiddleware(cfg)(func(c echo.Context) error {
		ctx = c.Request().Context()
		got = SessionFromContext(ctx)
		return c.String(http.StatusOK, "ok")
	})
	err := h(c)
	return got, ctx, rec, err
}

func TestSessionMiddleware_MissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/screens/patients", nil)
	_, _, _, err := run(t, Config{}, req)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
}

func TestSessionMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"not a jwt", "Bearer abc.def"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)
			_, _, _, err := run(t, Config{Dev: true}, req)
			if err == nil {
				t.Fatal("expected error")
			}
			if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %v", err)
			}
		})
	}
}

func TestSessionMiddleware_ReadsClaimsAndForwardsToken(t *testing.T) {
	token := createTestToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "doc-42"},
		Role:             "doctor",
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	sess, ctx, rec, err := run(t, Config{}, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.UserID != "doc-42" {
		t.Errorf("expected user doc-42, got %q", sess.UserID)
	}
	if !sess.HasRole("Doctor") || sess.PrimaryRole() != "doctor" {
		t.Errorf("expected doctor role, got %v", sess.Roles)
	}
	if apiclient.TokenFromContext(ctx) != token {
		t.Error("expected token forwarded to backend context")
	}
	if sess.ID == "" {
		t.Error("expected session id")
	}
	if rec.Header().Get("Set-Cookie") == "" {
		t.Error("expected session cookie to be issued")
	}
}

func TestSessionMiddleware_ReusesSessionCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "tab-1"})

	sess, _, rec, err := run(t, Config{Dev: true}, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.ID != "tab-1" {
		t.Errorf("expected tab-1, got %q", sess.ID)
	}
	if rec.Header().Get("Set-Cookie") != "" {
		t.Error("expected no new cookie")
	}
}

func TestSessionMiddleware_DevDefaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, ctx, _, err := run(t, Config{Dev: true}, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.UserID != "dev-user" || !sess.HasRole("admin") {
		t.Errorf("unexpected dev session: %+v", sess)
	}
	if apiclient.TokenFromContext(ctx) != "" {
		t.Error("expected no token for dev session")
	}
}

func TestSessionMiddleware_Skipper(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/health")

	h := SessionMiddleware(Config{Skipper: Skipper})(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if err := h(c); err != nil {
		t.Fatalf("expected public path to bypass auth, got %v", err)
	}
}

func TestIsPublicPath(t *testing.T) {
	if !IsPublicPath("/metrics") {
		t.Error("expected /metrics to be public")
	}
	if IsPublicPath("/screens/patients") {
		t.Error("expected screens to require a session")
	}
}
