package clinical

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/emr-web/internal/platform/mutation"
	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/screen"
	"github.com/ehr/emr-web/internal/platform/view"
)

const ScreenName = "ehr"

// Handler serves the EHR screen: one patient's six sub-record lists, loaded
// together, each with its own create/update/delete routes.
type Handler struct {
	client *Client
	env    screen.Env
	screen *screen.Handler[Record, screen.Partial]
}

func NewHandler(client *Client, env screen.Env) *Handler {
	return &Handler{client: client, env: env, screen: screen.New(Definition(client, env), env)}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	h.screen.RegisterRoutes(g)
	base := "/" + ScreenName + "/:kind/items"
	g.POST(base, h.Create)
	g.PUT(base+"/:id", h.Update)
	g.PATCH(base+"/:id", h.Update)
	g.DELETE(base+"/:id", h.Delete)
}

// Definition is the EHR screen. Nothing is loaded until a patient is
// selected.
func Definition(client *Client, env screen.Env) screen.Definition[Record, screen.Partial] {
	return screen.Definition[Record, screen.Partial]{
		Name:      ScreenName,
		Noun:      "record",
		DepParams: []string{"patient_id"},
		Load: func(ctx context.Context, deps view.Deps) (Record, error) {
			id := deps.Get("patient_id")
			if id == "" {
				return Record{}.orEmpty(), nil
			}
			return client.Load(ctx, env.Policy, id)
		},
		Empty:          func() Record { return Record{}.orEmpty() },
		FailureMessage: "Failed to load EHR data",
		Snapshot:       screen.SnapshotCache[Record](env, ScreenName),
	}
}

func (h *Handler) Create(c echo.Context) error {
	k, body, err := h.request(c)
	if err != nil {
		return err
	}
	ctl, err := h.screen.Ready(c)
	if err != nil {
		return err
	}

	form := k.form(body)
	if screen.ID(form, "patient").IsZero() {
		form["patient"] = resource.ID(ctl.Deps().Get("patient_id"))
	}
	draft := mutation.NewDraft(screen.Partial{})
	draft.Set(form)
	coord := h.coordinator(ctl, k, k.createRules())
	if err := coord.Create(c.Request().Context(), draft, k.create); err != nil {
		return h.screen.Fail(c, ctl, err, draft.Current())
	}
	return h.screen.Respond(c, http.StatusCreated, ctl.State(), screen.Response{})
}

func (h *Handler) Update(c echo.Context) error {
	k, body, err := h.request(c)
	if err != nil {
		return err
	}
	form := k.form(body)
	if len(form) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no updatable fields submitted")
	}
	ctl, err := h.screen.Ready(c)
	if err != nil {
		return err
	}

	draft := mutation.NewDraft(screen.Partial{})
	draft.Set(form)
	coord := h.coordinator(ctl, k, k.format)
	if err := coord.Update(c.Request().Context(), resource.ID(c.Param("id")), draft, k.update); err != nil {
		return h.screen.Fail(c, ctl, err, draft.Current())
	}
	return h.screen.Respond(c, http.StatusOK, ctl.State(), screen.Response{})
}

func (h *Handler) Delete(c echo.Context) error {
	k, err := h.client.kind(c.Param("kind"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	ctl, err := h.screen.Ready(c)
	if err != nil {
		return err
	}
	coord := h.coordinator(ctl, k, nil)
	if err := coord.Delete(c.Request().Context(), resource.ID(c.Param("id")), k.remove); err != nil {
		return h.screen.Fail(c, ctl, err, nil)
	}
	return h.screen.Respond(c, http.StatusOK, ctl.State(), screen.Response{})
}

func (h *Handler) request(c echo.Context) (*kind, screen.Partial, error) {
	k, err := h.client.kind(c.Param("kind"))
	if errors.Is(err, ErrUnknownKind) {
		return nil, nil, echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	var body screen.Partial
	if err := c.Bind(&body); err != nil {
		return nil, nil, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return k, body, nil
}

func (h *Handler) coordinator(ctl *view.Controller[Record], k *kind, rules []partialRule) *mutation.Coordinator[screen.Partial] {
	return mutation.NewCoordinator(ctl, h.env.Notifier, mutation.DefaultMessages(k.noun), h.env.Logger, rules...)
}
