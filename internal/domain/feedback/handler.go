package feedback

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ehr/emr-web/internal/platform/mutation"
	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/screen"
	"github.com/ehr/emr-web/internal/platform/view"
)

const ScreenName = "feedback"

type Handler struct {
	screen *screen.Handler[[]Feedback, CreateData]
}

func NewHandler(client *Client, env screen.Env) *Handler {
	return &Handler{screen: screen.New(Definition(client), env)}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	h.screen.RegisterRoutes(g)
}

// Definition is the feedback inbox. The category is chosen server side.
func Definition(client *Client) screen.Definition[[]Feedback, CreateData] {
	return screen.Definition[[]Feedback, CreateData]{
		Name:      ScreenName,
		Noun:      "feedback",
		DepParams: []string{"category"},
		Load: func(ctx context.Context, deps view.Deps) ([]Feedback, error) {
			return client.List(ctx, resource.Query{"category": deps.Get("category")})
		},
		Empty: func() []Feedback { return []Feedback{} },
		View: func(items []Feedback, f view.Filter) interface{} {
			return view.Apply(items, f, filterSpec)
		},
		Blank: func() CreateData { return CreateData{Category: defaultCategory, Rating: 5} },
		Rules: func([]Feedback) []mutation.Rule[CreateData] { return createRules },
		UpdateRules: func([]Feedback) []mutation.Rule[screen.Partial] {
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
		Messages: &mutation.Messages{
			Created:      "Thank you for your feedback",
			Updated:      "Feedback updated successfully",
			Deleted:      "Feedback deleted successfully",
			CreateFailed: "Failed to submit feedback",
			UpdateFailed: "Failed to update feedback",
			DeleteFailed: "Failed to delete feedback",
		},
	}
}

var createRules = []mutation.Rule[CreateData]{
	mutation.Required("comment", "Please enter your feedback", func(v CreateData) string { return v.Comment }),
	mutation.OneOf("category", Categories, func(v CreateData) string { return v.Category }),
	ratingRule(func(v CreateData) string { return strconv.Itoa(v.Rating) }),
}

var updateRules = []mutation.Rule[screen.Partial]{
	mutation.OneOf("category", Categories, func(p screen.Partial) string { return screen.String(p, "category") }),
	mutation.OneOf("status", Statuses, func(p screen.Partial) string { return screen.String(p, "status") }),
	ratingRule(func(p screen.Partial) string { return screen.String(p, "rating") }),
}

// ratingRule accepts a whole number of stars from 1 to 5. Blank passes.
func ratingRule[T any](get func(T) string) mutation.Rule[T] {
	return func(v T) *mutation.ValidationError {
		s := get(v)
		if s == "" {
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 5 {
			return &mutation.ValidationError{Field: "rating", Message: "Please choose a rating from 1 to 5"}
		}
		return nil
	}
}
