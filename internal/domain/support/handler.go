package support

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/ehr/emr-web/internal/platform/mutation"
	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/screen"
	"github.com/ehr/emr-web/internal/platform/view"
)

const ScreenName = "support"

type Handler struct {
	screen *screen.Handler[[]Request, CreateData]
}

func NewHandler(client *Client, env screen.Env) *Handler {
	return &Handler{screen: screen.New(Definition(client), env)}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	h.screen.RegisterRoutes(g)
}

func Definition(client *Client) screen.Definition[[]Request, CreateData] {
	return screen.Definition[[]Request, CreateData]{
		Name:      ScreenName,
		Noun:      "support request",
		DepParams: []string{"priority"},
		Load: func(ctx context.Context, deps view.Deps) ([]Request, error) {
			return client.List(ctx, resource.Query{"priority": deps.Get("priority")})
		},
		Empty: func() []Request { return []Request{} },
		View: func(items []Request, f view.Filter) interface{} {
			return view.Apply(items, f, filterSpec)
		},
		Blank: func() CreateData { return CreateData{Priority: "medium"} },
		Rules: func([]Request) []mutation.Rule[CreateData] { return createRules },
		UpdateRules: func([]Request) []mutation.Rule[screen.Partial] {
			return updateRules
		},
		Create: func(ctx context.Context, v CreateData) error {
			_, err := client.Create(ctx, v)
			return err
		},
		Update: func(ctx context.Context, id resource.ID, p screen.Partial) error {
			_, err := client.Update(ctx, id, p)
			return err
		},
		Delete: client.Delete,
	}
}

var createRules = []mutation.Rule[CreateData]{
	mutation.Required("subject", "Subject is required", func(v CreateData) string { return v.Subject }),
	mutation.Required("description", "Please describe the issue", func(v CreateData) string { return v.Description }),
	mutation.OneOf("priority", Priorities, func(v CreateData) string { return v.Priority }),
	mutation.OneOf("status", Statuses, func(v CreateData) string { return v.Status }),
}

var updateRules = []mutation.Rule[screen.Partial]{
	mutation.OneOf("priority", Priorities, func(p screen.Partial) string { return screen.String(p, "priority") }),
	mutation.OneOf("status", Statuses, func(p screen.Partial) string { return screen.String(p, "status") }),
}
