package chat

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/ehr/emr-web/internal/platform/mutation"
	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/screen"
	"github.com/ehr/emr-web/internal/platform/view"
)

const ScreenName = "chat"

type Handler struct {
	screen *screen.Handler[[]Message, CreateData]
}

func NewHandler(client *Client, env screen.Env) *Handler {
	return &Handler{screen: screen.New(Definition(client), env)}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	h.screen.RegisterRoutes(g)
}

// Definition is a chat room's message history. Live messages arrive over
// the relay; sending through the screen posts and refetches the room.
func Definition(client *Client) screen.Definition[[]Message, CreateData] {
	return screen.Definition[[]Message, CreateData]{
		Name:      ScreenName,
		Noun:      "message",
		DepParams: []string{"room"},
		Load: func(ctx context.Context, deps view.Deps) ([]Message, error) {
			if deps.Get("room") == "" {
				return []Message{}, nil
			}
			return client.List(ctx, resource.Query{"room": deps.Get("room")})
		},
		Empty: func() []Message { return []Message{} },
		View: func(items []Message, f view.Filter) interface{} {
			return view.Apply(items, f, filterSpec)
		},
		Rules: func([]Message) []mutation.Rule[CreateData] { return sendRules },
		Create: func(ctx context.Context, v CreateData) error {
			_, err := client.Create(ctx, v)
			return err
		},
		// A sent message shows up in the room; only failures are toasted.
		Messages:       &mutation.Messages{CreateFailed: "Failed to send message"},
		FailureMessage: "Failed to load messages",
	}
}

var sendRules = []mutation.Rule[CreateData]{
	mutation.Required("room", "Please choose a room", func(v CreateData) string { return v.Room }),
	mutation.Required("content", "Message cannot be empty", func(v CreateData) string { return v.Content }),
}
