package scheduling

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/ehr/emr-web/internal/platform/mutation"
	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/screen"
	"github.com/ehr/emr-web/internal/platform/view"
)

const ScreenName = "appointments"

type Handler struct {
	screen *screen.Handler[[]Appointment, CreateData]
}

func NewHandler(client *Client, env screen.Env) *Handler {
	return &Handler{screen: screen.New(Definition(client), env)}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	h.screen.RegisterRoutes(g)
}

// Definition is the appointments screen. The day and the patient select
// what the backend returns; status is filtered locally.
func Definition(client *Client) screen.Definition[[]Appointment, CreateData] {
	return screen.Definition[[]Appointment, CreateData]{
		Name:      ScreenName,
		Noun:      "appointment",
		DepParams: []string{"date", "patient_id"},
		Load: func(ctx context.Context, deps view.Deps) ([]Appointment, error) {
			return client.List(ctx, resource.Query{
				"date":       deps.Get("date"),
				"patient_id": deps.Get("patient_id"),
			})
		},
		Empty: func() []Appointment { return []Appointment{} },
		View: func(items []Appointment, f view.Filter) interface{} {
			return view.Apply(items, f, filterSpec)
		},
		Blank: func() CreateData { return CreateData{Status: "scheduled", Duration: defaultDuration} },
		Rules: func([]Appointment) []mutation.Rule[CreateData] { return createRules },
		UpdateRules: func([]Appointment) []mutation.Rule[screen.Partial] {
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
	mutation.RequiredID("patient", "Please select a patient", func(v CreateData) resource.ID { return v.Patient }),
	mutation.Required("date", "Please select a date", func(v CreateData) string { return v.Date }),
	mutation.Date("date", func(v CreateData) string { return v.Date }),
	mutation.Required("time", "Please select a time", func(v CreateData) string { return v.Time }),
	clockRule(func(v CreateData) string { return v.Time }),
	mutation.Required("reason", "Please enter a reason for the visit", func(v CreateData) string { return v.Reason }),
	mutation.OneOf("status", Statuses, func(v CreateData) string { return v.Status }),
}

var updateRules = []mutation.Rule[screen.Partial]{
	mutation.Date("date", func(p screen.Partial) string { return screen.String(p, "date") }),
	clockRule(func(p screen.Partial) string { return screen.String(p, "time") }),
	mutation.OneOf("status", Statuses, func(p screen.Partial) string { return screen.String(p, "status") }),
}

func clockRule[T any](get func(T) string) mutation.Rule[T] {
	return func(v T) *mutation.ValidationError {
		s := get(v)
		if s == "" {
			return nil
		}
		if _, err := parseClock(s); err != nil {
			return &mutation.ValidationError{Field: "time", Message: "Time must look like 09:30"}
		}
		return nil
	}
}
