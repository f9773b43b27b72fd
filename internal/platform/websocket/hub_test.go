package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/platform/auth"
)

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := NewClient(UserTopic("u1"))

	hub.Register(client)
	if hub.TopicCount("user:u1") != 1 {
		t.Fatalf("expected 1 client on user:u1, got %d", hub.TopicCount("user:u1"))
	}

	hub.Unregister(client)
	if hub.TopicCount("user:u1") != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.TopicCount("user:u1"))
	}
	if _, ok := <-client.Send; ok {
		t.Error("expected Send channel to be closed")
	}

	// second unregister is a no-op
	hub.Unregister(client)
}

func TestHub_PublishOnlyReachesTopic(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	mine := NewClient(UserTopic("u1"))
	other := NewClient(UserTopic("u2"))
	hub.Register(mine)
	hub.Register(other)

	err := hub.Publish(context.Background(), Event{Type: "toast", Topic: UserTopic("u1"), Screen: "patients"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-mine.Send:
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if ev.Screen != "patients" {
			t.Errorf("expected screen patients, got %q", ev.Screen)
		}
	default:
		t.Fatal("expected event for u1")
	}

	select {
	case <-other.Send:
		t.Fatal("u2 should not receive u1's event")
	default:
	}
}

func TestHub_PublishDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := &Client{ID: "slow", Topic: "user:u1", Send: make(chan []byte, 1)}
	hub.Register(client)

	for i := 0; i < 3; i++ {
		if err := hub.Publish(context.Background(), Event{Type: "toast", Topic: "user:u1"}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	if len(client.Send) != 1 {
		t.Errorf("expected buffer to hold 1 event, got %d", len(client.Send))
	}
}

func TestHub_ConcurrentRegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := NewClient("user:shared")
			hub.Register(c)
			hub.Publish(context.Background(), Event{Type: "toast", Topic: "user:shared"})
			hub.Unregister(c)
		}()
	}
	wg.Wait()
	if hub.TopicCount("user:shared") != 0 {
		t.Fatalf("expected all clients unregistered, got %d", hub.TopicCount("user:shared"))
	}
}

func TestHandler_ConnectRequiresWebSocket(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/ws/notifications", nil), rec)

	if err := NewHandler(NewHub(zerolog.Nop())).Connect(c); err == nil && rec.Code == http.StatusOK {
		t.Fatal("expected plain HTTP request to be rejected")
	}
}

func TestHandler_DeliversToSessionUser(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	e := echo.New()
	e.Use(auth.SessionMiddleware(auth.Config{Dev: true}))
	NewHandler(hub).RegisterRoutes(e.Group("/ws"))

	server := httptest.NewServer(e)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/notifications"
	conn, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	topic := UserTopic("dev-user")
	deadline := time.Now().Add(2 * time.Second)
	for hub.TopicCount(topic) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.TopicCount(topic) != 1 {
		t.Fatalf("expected connection bound to %s", topic)
	}

	hub.Publish(context.Background(), Event{Type: "toast", Topic: topic, Data: json.RawMessage(`{"message":"Saved"}`)})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var received Event
	if err := conn.ReadJSON(&received); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if received.Type != "toast" || !strings.Contains(string(received.Data), "Saved") {
		t.Fatalf("unexpected event: %+v", received)
	}
}
