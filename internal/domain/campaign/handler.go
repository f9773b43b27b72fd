package campaign

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/ehr/emr-web/internal/platform/mutation"
	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/screen"
	"github.com/ehr/emr-web/internal/platform/view"
)

const ScreenName = "campaigns"

type Handler struct {
	screen *screen.Handler[[]Campaign, CreateData]
}

func NewHandler(client *Client, env screen.Env) *Handler {
	return &Handler{screen: screen.New(Definition(client, env), env)}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	h.screen.RegisterRoutes(g)
}

func Definition(client *Client, env screen.Env) screen.Definition[[]Campaign, CreateData] {
	return screen.Definition[[]Campaign, CreateData]{
		Name: ScreenName,
		Noun: "campaign",
		Load: func(ctx context.Context, deps view.Deps) ([]Campaign, error) {
			return client.List(ctx, nil)
		},
		Empty: func() []Campaign { return []Campaign{} },
		View: func(items []Campaign, f view.Filter) interface{} {
			return view.Apply(items, f, filterSpec)
		},
		Blank: func() CreateData { return CreateData{Status: "draft"} },
		Rules: func([]Campaign) []mutation.Rule[CreateData] { return createRules },
		UpdateRules: func([]Campaign) []mutation.Rule[screen.Partial] {
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
		Delete:         client.Delete,
		Snapshot:       screen.SnapshotCache[[]Campaign](env, ScreenName),
		FailureMessage: "Failed to load health campaigns",
	}
}

var createRules = []mutation.Rule[CreateData]{
	mutation.Required("title", "Campaign title is required", func(v CreateData) string { return v.Title }),
	mutation.Required("start_date", "Please select a start date", func(v CreateData) string { return v.StartDate }),
	mutation.Date("start_date", func(v CreateData) string { return v.StartDate }),
	mutation.Date("end_date", func(v CreateData) string { return v.EndDate }),
	periodRule(func(v CreateData) (string, string) { return v.StartDate, v.EndDate }),
	mutation.OneOf("status", Statuses, func(v CreateData) string { return v.Status }),
}

var updateRules = []mutation.Rule[screen.Partial]{
	mutation.Date("start_date", func(p screen.Partial) string { return screen.String(p, "start_date") }),
	mutation.Date("end_date", func(p screen.Partial) string { return screen.String(p, "end_date") }),
	periodRule(func(p screen.Partial) (string, string) {
		return screen.String(p, "start_date"), screen.String(p, "end_date")
	}),
	mutation.OneOf("status", Statuses, func(p screen.Partial) string { return screen.String(p, "status") }),
}

// periodRule fails when both dates are set and the campaign ends before it
// starts.
func periodRule[T any](get func(T) (start, end string)) mutation.Rule[T] {
	return func(v T) *mutation.ValidationError {
		s, e := get(v)
		if s == "" || e == "" {
			return nil
		}
		start, err1 := resource.ParseDate(s)
		end, err2 := resource.ParseDate(e)
		if err1 != nil || err2 != nil {
			return nil
		}
		if end.Before(start) {
			return &mutation.ValidationError{Field: "end_date", Message: "End date must be after the start date"}
		}
		return nil
	}
}
