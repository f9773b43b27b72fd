package patient

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/ehr/emr-web/internal/platform/mutation"
	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/screen"
	"github.com/ehr/emr-web/internal/platform/view"
)

// ScreenName is the route segment of the patient list.
const ScreenName = "patients"

type Handler struct {
	screen *screen.Handler[[]Patient, CreateData]
}

func NewHandler(client *Client, env screen.Env) *Handler {
	return &Handler{screen: screen.New(Definition(client, env), env)}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	h.screen.RegisterRoutes(g)
}

// Definition is the patient list screen. The search term is sent to the
// backend, so changing it reloads the list; the last good list is kept as a
// fallback for backend outages.
func Definition(client *Client, env screen.Env) screen.Definition[[]Patient, CreateData] {
	return screen.Definition[[]Patient, CreateData]{
		Name:      ScreenName,
		Noun:      "patient",
		DepParams: []string{"search"},
		Load: func(ctx context.Context, deps view.Deps) ([]Patient, error) {
			return client.Search(ctx, deps.Get("search"))
		},
		Empty: func() []Patient { return []Patient{} },
		View: func(items []Patient, f view.Filter) interface{} {
			// The backend already applied the search term.
			f.SearchTerm = ""
			return view.Apply(items, f, filterSpec)
		},
		Blank: func() CreateData { return CreateData{} },
		Rules: func([]Patient) []mutation.Rule[CreateData] {
			return createRules
		},
		UpdateRules: func([]Patient) []mutation.Rule[screen.Partial] {
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
		Delete:   client.Delete,
		Snapshot: screen.SnapshotCache[[]Patient](env, ScreenName),
	}
}

var createRules = []mutation.Rule[CreateData]{
	mutation.Required("first_name", "First name is required", func(v CreateData) string { return v.FirstName }),
	mutation.Required("last_name", "Last name is required", func(v CreateData) string { return v.LastName }),
	mutation.Required("dob", "Date of birth is required", func(v CreateData) string { return v.DOB }),
	mutation.Date("dob", func(v CreateData) string { return v.DOB }),
	mutation.OneOf("gender", genders, func(v CreateData) string { return v.Gender }),
}

var updateRules = []mutation.Rule[screen.Partial]{
	mutation.Date("dob", func(p screen.Partial) string { return screen.String(p, "dob") }),
	mutation.OneOf("gender", genders, func(p screen.Partial) string { return screen.String(p, "gender") }),
}
