package task

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/emr-web/internal/platform/mutation"
	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/screen"
	"github.com/ehr/emr-web/internal/platform/view"
)

const ScreenName = "workspace"

type Handler struct {
	screen *screen.Handler[[]Task, CreateData]
}

func NewHandler(client *Client, env screen.Env) *Handler {
	return &Handler{screen: screen.New(Definition(client, time.Now), env)}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	h.screen.RegisterRoutes(g)
}

// boardView is the workspace board: the filtered list plus the same tasks grouped
// into status columns.
type boardView struct {
	Tasks []Task `json:"tasks"`
	Board Board  `json:"board"`
}

// Definition is the workspace task board. now stamps the overdue count.
func Definition(client *Client, now func() time.Time) screen.Definition[[]Task, CreateData] {
	return screen.Definition[[]Task, CreateData]{
		Name: ScreenName,
		Noun: "task",
		Load: func(ctx context.Context, deps view.Deps) ([]Task, error) {
			return client.List(ctx, nil)
		},
		Empty: func() []Task { return []Task{} },
		View: func(items []Task, f view.Filter) interface{} {
			tasks := view.Apply(items, f, filterSpec)
			return boardView{Tasks: tasks, Board: board(tasks, now())}
		},
		Blank: func() CreateData { return CreateData{Status: "todo", Priority: "normal"} },
		Rules: func([]Task) []mutation.Rule[CreateData] { return createRules },
		UpdateRules: func([]Task) []mutation.Rule[screen.Partial] {
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
	mutation.Required("title", "Task title is required", func(v CreateData) string { return v.Title }),
	mutation.OneOf("status", Statuses, func(v CreateData) string { return v.Status }),
	mutation.OneOf("priority", Priorities, func(v CreateData) string { return v.Priority }),
	mutation.Date("due_date", func(v CreateData) string { return v.DueDate }),
}

var updateRules = []mutation.Rule[screen.Partial]{
	mutation.OneOf("status", Statuses, func(p screen.Partial) string { return screen.String(p, "status") }),
	mutation.OneOf("priority", Priorities, func(p screen.Partial) string { return screen.String(p, "priority") }),
	mutation.Date("due_date", func(p screen.Partial) string { return screen.String(p, "due_date") }),
}
