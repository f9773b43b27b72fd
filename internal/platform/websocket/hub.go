// Package websocket pushes toast notifications to browsers. Each connection
// is bound to its session's user topic at connect time; the hub fans events
// out to every connection on a topic.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/platform/auth"
)

// Event is one message pushed to a browser.
type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Screen    string          `json:"screen,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one browser connection.
type Client struct {
	ID    string
	Topic string
	Send  chan []byte
}

// NewClient creates a client bound to topic.
func NewClient(topic string) *Client {
	return &Client{ID: uuid.New().String(), Topic: topic, Send: make(chan []byte, 64)}
}

// Hub tracks clients by topic. All operations are thread-safe.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	logger  zerolog.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{clients: make(map[string]map[*Client]struct{}), logger: logger}
}

// UserTopic is the topic a user's connections are bound to.
func UserTopic(userID string) string { return "user:" + userID }

// Register adds a client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.Topic] == nil {
		h.clients[c.Topic] = make(map[*Client]struct{})
	}
	h.clients[c.Topic][c] = struct{}{}
}

// Unregister removes a client and closes its Send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.clients[c.Topic]
	if !ok {
		return
	}
	if _, ok := subs[c]; !ok {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.clients, c.Topic)
	}
	close(c.Send)
}

// Publish sends event to every client on event.Topic. Slow clients whose
// buffer is full miss the event.
func (h *Hub) Publish(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[event.Topic] {
		select {
		case c.Send <- data:
		default:
			h.logger.Warn().Str("client_id", c.ID).Str("topic", event.Topic).Msg("websocket buffer full, dropping event")
		}
	}
	return nil
}

// TopicCount returns the number of clients on topic.
func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin is enforced by the CORS configuration upstream
	},
}

// Handler upgrades browser connections and binds them to the session user.
type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications", h.Connect)
}

// Connect upgrades the request and starts the read/write pumps.
func (h *Handler) Connect(c echo.Context) error {
	sess := auth.SessionFromContext(c.Request().Context())
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	client := NewClient(UserTopic(sess.UserID))
	h.hub.Register(client)

	go writePump(client, ws)
	go h.readPump(client, ws)
	return nil
}

// readPump only watches for the browser closing the connection.
func (h *Handler) readPump(client *Client, conn Conn) {
	defer func() {
		h.hub.Unregister(client)
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(client *Client, conn Conn) {
	defer conn.Close()
	for message := range client.Send {
		if err := conn.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			return
		}
	}
}
