// Package auth identifies the browser session behind each request. emr-web
// does not verify tokens: the REST backend does that on every call. Claims
// are only read so screens can key their dependencies on the user and role.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/emr-web/internal/platform/apiclient"
)

type contextKey string

const sessionKey contextKey = "emr_session"

// SessionCookie names the cookie that pins a browser tab to its screens.
const SessionCookie = "emr_session"

// Claims are the token fields emr-web reads.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
	Role  string   `json:"role"`
}

// Session is the per-browser identity screens are scoped to.
type Session struct {
	ID     string
	UserID string
	Roles  []string
	Token  string
}

// HasRole reports whether the session carries role.
func (s Session) HasRole(role string) bool {
	for _, r := range s.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// PrimaryRole returns the first role, or "" for a session without roles.
func (s Session) PrimaryRole() string {
	if len(s.Roles) == 0 {
		return ""
	}
	return s.Roles[0]
}

// Config controls SessionMiddleware.
type Config struct {
	// Dev admits requests without a bearer token as a fixed dev user.
	Dev     bool
	Skipper func(echo.Context) bool
}

// ParseClaims decodes the token's claims without checking its signature.
func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	if claims.Role != "" && len(claims.Roles) == 0 {
		claims.Roles = []string{claims.Role}
	}
	return claims, nil
}

// SessionMiddleware attaches a Session to the request context and forwards the
// bearer token to backend calls made while serving the request.
func SessionMiddleware(cfg Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			var sess Session
			token, err := bearer(c.Request())
			switch {
			case err != nil:
				return err
			case token == "" && cfg.Dev:
				sess = Session{UserID: "dev-user", Roles: []string{"admin"}}
			case token == "":
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			default:
				claims, err := ParseClaims(token)
				if err != nil || claims.Subject == "" {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
				}
				sess = Session{UserID: claims.Subject, Roles: claims.Roles, Token: token}
			}

			sess.ID = sessionID(c)

			ctx := WithSession(c.Request().Context(), sess)
			if sess.Token != "" {
				ctx = apiclient.WithToken(ctx, sess.Token)
			}
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func bearer(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		if q := r.URL.Query().Get("access_token"); q != "" && r.Header.Get("Upgrade") != "" {
			return q, nil
		}
		return "", nil
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}
	return strings.TrimSpace(parts[1]), nil
}

// sessionID returns the tab's session cookie, issuing one when absent.
func sessionID(c echo.Context) string {
	if ck, err := c.Cookie(SessionCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	id := uuid.New().String()
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(12 * time.Hour),
	})
	return id
}

// WithSession stores sess on ctx.
func WithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// SessionFromContext returns the request's Session, or the zero Session.
func SessionFromContext(ctx context.Context) Session {
	s, _ := ctx.Value(sessionKey).(Session)
	return s
}

func UserIDFromContext(ctx context.Context) string {
	return SessionFromContext(ctx).UserID
}

func RolesFromContext(ctx context.Context) []string {
	return SessionFromContext(ctx).Roles
}
