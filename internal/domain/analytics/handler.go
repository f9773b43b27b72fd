package analytics

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/ehr/emr-web/internal/platform/screen"
	"github.com/ehr/emr-web/internal/platform/view"
)

const ScreenName = "analytics"

type Handler struct {
	screen *screen.Handler[Data, struct{}]
}

func NewHandler(client *Client, env screen.Env) *Handler {
	return &Handler{screen: screen.New(Definition(client, env), env)}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	h.screen.RegisterRoutes(g)
}

// Definition is the read-only analytics dashboard. An unknown range falls
// back to the last month.
func Definition(client *Client, env screen.Env) screen.Definition[Data, struct{}] {
	return screen.Definition[Data, struct{}]{
		Name:      ScreenName,
		DepParams: []string{"range"},
		Load: func(ctx context.Context, deps view.Deps) (Data, error) {
			return client.Load(ctx, env.Policy, rangeOf(deps))
		},
		Empty:          func() Data { return Data{}.orEmpty() },
		FailureMessage: "Failed to load analytics",
		Snapshot:       screen.SnapshotCache[Data](env, ScreenName),
	}
}

func rangeOf(deps view.Deps) string {
	r := deps.Get("range")
	for _, known := range Ranges {
		if r == known {
			return r
		}
	}
	return defaultRange
}
