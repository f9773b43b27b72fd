package chat

import (
	"context"
	"net/http"
	"net/url"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/platform/auth"
)

const dialTimeout = 10 * time.Second

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Relay joins a browser socket to the backend chat socket for one room and
// copies frames both ways until either side closes. It does not reconnect.
type Relay struct {
	target string
	dialer *gorillawebsocket.Dialer
	logger zerolog.Logger
}

// NewRelay creates a Relay to target, a ws:// or wss:// URL. An empty target
// disables chat.
func NewRelay(target string, logger zerolog.Logger) *Relay {
	return &Relay{
		target: target,
		dialer: &gorillawebsocket.Dialer{HandshakeTimeout: dialTimeout},
		logger: logger.With().Str("component", "chat-relay").Logger(),
	}
}

func (r *Relay) RegisterRoutes(g *echo.Group) {
	g.GET("/chat", r.Connect)
}

// Connect dials the backend for ?room= and then upgrades the browser.
func (r *Relay) Connect(c echo.Context) error {
	if r.target == "" {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "chat is not configured")
	}
	room := c.QueryParam("room")
	if room == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "room is required")
	}
	sess := auth.SessionFromContext(c.Request().Context())

	u, err := url.Parse(r.target)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "invalid chat socket url")
	}
	q := u.Query()
	q.Set("room", room)
	u.RawQuery = q.Encode()

	header := http.Header{}
	if sess.Token != "" {
		header.Set("Authorization", "Bearer "+sess.Token)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dialTimeout)
	defer cancel()
	upstream, resp, err := r.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		r.logger.Error().Err(err).Str("room", room).Int("status", status).Msg("chat socket dial failed")
		return echo.NewHTTPError(http.StatusBadGateway, "chat is unavailable")
	}

	browser, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		upstream.Close()
		return err
	}
	r.logger.Debug().Str("room", room).Str("user_id", sess.UserID).Msg("chat relay opened")
	go r.pipe(browser, upstream, room)
	return nil
}

func (r *Relay) pipe(browser, upstream *gorillawebsocket.Conn, room string) {
	done := make(chan struct{}, 2)
	go copyFrames(upstream, browser, done)
	go copyFrames(browser, upstream, done)
	<-done
	browser.Close()
	upstream.Close()
	<-done
	r.logger.Debug().Str("room", room).Msg("chat relay closed")
}

func copyFrames(dst, src *gorillawebsocket.Conn, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	for {
		mt, msg, err := src.ReadMessage()
		if err != nil {
			return
		}
		if err := dst.WriteMessage(mt, msg); err != nil {
			return
		}
	}
}
