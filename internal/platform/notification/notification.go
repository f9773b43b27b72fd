// Package notification delivers toast notifications for screen outcomes.
// Every toast is queued on the browser session's outbox (drained into the
// next HTTP response), pushed to the user's websocket topic when a hub is
// configured, and logged.
package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/platform/auth"
	"github.com/ehr/emr-web/internal/platform/websocket"
)

// ---------------------------------------------------------------------------
// Notification Types
// ---------------------------------------------------------------------------

// Level is the toast's severity.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification is a single toast.
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Screen    string    `json:"screen,omitempty"`
	UserID    string    `json:"-"`
	SessionID string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier is what screens and coordinators report outcomes to.
type Notifier interface {
	Notify(ctx context.Context, level Level, screen, message string) *Notification
}

// Publisher pushes an event to connected browsers.
type Publisher interface {
	Publish(ctx context.Context, event websocket.Event) error
}

// ---------------------------------------------------------------------------
// Manager
// ---------------------------------------------------------------------------

const defaultOutboxSize = 50

// Manager is the process-wide Notifier.
type Manager struct {
	mu        sync.Mutex
	outbox    map[string][]*Notification
	maxQueued int
	pub       Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

// NewManager creates a Manager. pub may be nil.
func NewManager(pub Publisher, logger zerolog.Logger) *Manager {
	return &Manager{
		outbox:    make(map[string][]*Notification),
		maxQueued: defaultOutboxSize,
		pub:       pub,
		logger:    logger,
		now:       time.Now,
	}
}

// Notify records a toast for the session on ctx.
func (m *Manager) Notify(ctx context.Context, level Level, screen, message string) *Notification {
	sess := auth.SessionFromContext(ctx)
	n := &Notification{
		ID:        uuid.New().String(),
		Level:     level,
		Message:   message,
		Screen:    screen,
		UserID:    sess.UserID,
		SessionID: sess.ID,
		CreatedAt: m.now(),
	}

	evt := m.logger.Info()
	if level == LevelError {
		evt = m.logger.Warn()
	}
	evt.Str("screen", screen).Str("user_id", n.UserID).Str("level", string(level)).Msg(message)

	m.mu.Lock()
	q := append(m.outbox[n.SessionID], n)
	if len(q) > m.maxQueued {
		q = q[len(q)-m.maxQueued:]
	}
	m.outbox[n.SessionID] = q
	m.mu.Unlock()

	if m.pub != nil && n.UserID != "" {
		data, _ := json.Marshal(n)
		err := m.pub.Publish(ctx, websocket.Event{
			Type:      "toast",
			Topic:     websocket.UserTopic(n.UserID),
			Screen:    screen,
			Timestamp: n.CreatedAt,
			Data:      data,
		})
		if err != nil {
			m.logger.Warn().Err(err).Str("user_id", n.UserID).Msg("toast push failed")
		}
	}
	return n
}

// Success is Notify at LevelSuccess.
func (m *Manager) Success(ctx context.Context, screen, message string) *Notification {
	return m.Notify(ctx, LevelSuccess, screen, message)
}

// Error is Notify at LevelError.
func (m *Manager) Error(ctx context.Context, screen, message string) *Notification {
	return m.Notify(ctx, LevelError, screen, message)
}

// Drain returns and clears the session's queued toasts, oldest first.
func (m *Manager) Drain(sessionID string) []*Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.outbox[sessionID]
	delete(m.outbox, sessionID)
	return q
}

// Pending returns the number of queued toasts for the session.
func (m *Manager) Pending(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.outbox[sessionID])
}

// Forget discards the session's queue.
func (m *Manager) Forget(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.outbox, sessionID)
}

// ---------------------------------------------------------------------------
// HTTP Handler
// ---------------------------------------------------------------------------

// Handler exposes the outbox to browsers that poll instead of holding a
// websocket open.
type Handler struct {
	mgr *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{mgr: mgr}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications", h.HandleDrain)
}

// HandleDrain returns and clears the caller's pending toasts.
func (h *Handler) HandleDrain(c echo.Context) error {
	sess := auth.SessionFromContext(c.Request().Context())
	items := h.mgr.Drain(sess.ID)
	if items == nil {
		items = []*Notification{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"notifications": items})
}
