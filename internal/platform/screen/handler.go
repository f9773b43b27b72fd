package screen

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/emr-web/internal/platform/apiclient"
	"github.com/ehr/emr-web/internal/platform/auth"
	"github.com/ehr/emr-web/internal/platform/mutation"
	"github.com/ehr/emr-web/internal/platform/notification"
	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/view"
)

// Response is the body of every screen endpoint.
type Response struct {
	State         interface{}                  `json:"state"`
	View          interface{}                  `json:"view,omitempty"`
	Notifications []*notification.Notification `json:"notifications"`
	Error         string                       `json:"error,omitempty"`
	Field         string                       `json:"field,omitempty"`
	Draft         interface{}                  `json:"draft,omitempty"`
	Confirm       *bool                        `json:"confirm,omitempty"`
	Changed       []string                     `json:"changed,omitempty"`
}

// closeRequest is the body of POST /screens/<name>/close.
type closeRequest struct {
	Draft   Partial `json:"draft"`
	Initial Partial `json:"initial"`
	// Action is "request" (default), "discard" or "keep".
	Action string `json:"action"`
}

// Handler serves one screen.
type Handler[D any, C any] struct {
	def    Definition[D, C]
	env    Env
	fields map[string]bool
}

// New creates a Handler for def.
func New[D any, C any](def Definition[D, C], env Env) *Handler[D, C] {
	return &Handler[D, C]{def: def, env: env, fields: formFields[C]()}
}

// Name returns the screen name.
func (h *Handler[D, C]) Name() string { return h.def.Name }

func (h *Handler[D, C]) RegisterRoutes(g *echo.Group) {
	base := "/" + h.def.Name
	g.GET(base, h.Show)
	g.DELETE(base, h.Unmount)
	g.POST(base+"/close", h.Close)
	if h.def.Create != nil {
		g.POST(base+"/items", h.Create)
	}
	if h.def.Update != nil {
		g.PUT(base+"/items/:id", h.Update)
		g.PATCH(base+"/items/:id", h.Update)
	}
	if h.def.Delete != nil {
		g.DELETE(base+"/items/:id", h.Delete)
	}
}

// Controller returns the caller's controller for this screen, mounting it on
// first use.
func (h *Handler[D, C]) Controller(c echo.Context) (*view.Controller[D], error) {
	sess := auth.SessionFromContext(c.Request().Context())
	return view.Mount(h.env.Registry, sess.ID, h.def.Name, func() *view.Controller[D] {
		return view.NewController(view.Options[D]{
			Screen:         h.def.Name,
			Load:           h.def.Load,
			Empty:          h.def.Empty,
			FailureMessage: h.def.FailureMessage,
			Notifier:       h.env.Notifier,
			Snapshot:       h.def.Snapshot,
			Owner:          sess.UserID,
			Logger:         h.env.Logger,
		})
	})
}

// Deps reads the screen's dependencies from the request.
func (h *Handler[D, C]) Deps(c echo.Context) view.Deps {
	sess := auth.SessionFromContext(c.Request().Context())
	deps := view.Deps{"user": sess.UserID, "role": sess.PrimaryRole()}
	for _, p := range h.def.DepParams {
		deps[p] = c.QueryParam(p)
	}
	return deps
}

// Show mounts or refreshes the screen. ?refresh=true forces a refetch.
func (h *Handler[D, C]) Show(c echo.Context) error {
	ctl, err := h.Controller(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	ctx := c.Request().Context()
	deps := h.Deps(c)

	var state view.State[D]
	if c.QueryParam("refresh") == "true" && ctl.Deps().Equal(deps) {
		state, err = ctl.Load(ctx)
	} else {
		state, err = ctl.SetDeps(ctx, deps)
	}
	if errors.Is(err, view.ErrBusy) {
		return h.Respond(c, http.StatusConflict, state, Response{Error: err.Error()})
	}
	return h.Respond(c, http.StatusOK, state, Response{})
}

// Unmount drops the caller's screen, cancelling any load in flight.
func (h *Handler[D, C]) Unmount(c echo.Context) error {
	sess := auth.SessionFromContext(c.Request().Context())
	h.env.Registry.Unmount(sess.ID, h.def.Name)
	return c.NoContent(http.StatusNoContent)
}

// Create submits a create form.
func (h *Handler[D, C]) Create(c echo.Context) error {
	form := h.blank()
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctl, err := h.Ready(c)
	if err != nil {
		return err
	}

	draft := mutation.NewDraft(h.blank())
	draft.Set(form)
	var rules []mutation.Rule[C]
	if h.def.Rules != nil {
		rules = h.def.Rules(ctl.State().Items)
	}
	coord := mutation.NewCoordinator(ctl, h.env.Notifier, h.messages(), h.env.Logger, rules...)

	err = coord.Create(c.Request().Context(), draft, h.def.Create)
	if err != nil {
		return h.Fail(c, ctl, err, draft.Current())
	}
	return h.Respond(c, http.StatusCreated, ctl.State(), Response{})
}

// Update submits the fields present in the request body.
func (h *Handler[D, C]) Update(c echo.Context) error {
	var body Partial
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	partial := restrict(body, h.fields)
	if len(partial) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no updatable fields submitted")
	}
	ctl, err := h.Ready(c)
	if err != nil {
		return err
	}

	draft := mutation.NewDraft(Partial{})
	draft.Set(partial)
	var rules []mutation.Rule[Partial]
	if h.def.UpdateRules != nil {
		rules = h.def.UpdateRules(ctl.State().Items)
	}
	coord := mutation.NewCoordinator(ctl, h.env.Notifier, h.messages(), h.env.Logger, rules...)

	id := resource.ID(c.Param("id"))
	err = coord.Update(c.Request().Context(), id, draft, h.def.Update)
	if err != nil {
		return h.Fail(c, ctl, err, draft.Current())
	}
	return h.Respond(c, http.StatusOK, ctl.State(), Response{})
}

// Delete removes one record.
func (h *Handler[D, C]) Delete(c echo.Context) error {
	ctl, err := h.Ready(c)
	if err != nil {
		return err
	}
	coord := mutation.NewCoordinator[C](ctl, h.env.Notifier, h.messages(), h.env.Logger)
	if err := coord.Delete(c.Request().Context(), resource.ID(c.Param("id")), h.def.Delete); err != nil {
		return h.Fail(c, ctl, err, nil)
	}
	return h.Respond(c, http.StatusOK, ctl.State(), Response{})
}

// Close runs the discard-confirmation check for an open form.
func (h *Handler[D, C]) Close(c echo.Context) error {
	var req closeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctl, err := h.Ready(c)
	if err != nil {
		return err
	}

	initial := req.Initial
	if initial == nil {
		initial, err = toPartial(h.blank())
		if err != nil {
			return err
		}
	}
	draft := mutation.NewDraft(restrict(initial, h.fields))
	draft.Set(restrict(req.Draft, h.fields))
	coord := mutation.NewCoordinator[Partial](ctl, h.env.Notifier, h.messages(), h.env.Logger)

	var confirm bool
	switch req.Action {
	case "discard":
		err = coord.ConfirmDiscard(draft)
	case "keep":
		err = coord.KeepEditing()
	default:
		confirm, err = coord.RequestClose(draft)
	}
	if err != nil {
		return h.Fail(c, ctl, err, nil)
	}
	return h.Respond(c, http.StatusOK, ctl.State(), Response{Confirm: &confirm, Changed: draft.Changed()})
}

// Ready returns the caller's controller, loading it first if the screen was
// never mounted.
func (h *Handler[D, C]) Ready(c echo.Context) (*view.Controller[D], error) {
	ctl, err := h.Controller(c)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if ctl.Phase() == view.PhaseIdle {
		if _, err := ctl.SetDeps(c.Request().Context(), h.Deps(c)); errors.Is(err, view.ErrBusy) {
			return nil, echo.NewHTTPError(http.StatusConflict, err.Error())
		}
	}
	return ctl, nil
}

func (h *Handler[D, C]) blank() C {
	if h.def.Blank != nil {
		return h.def.Blank()
	}
	var zero C
	return zero
}

func (h *Handler[D, C]) messages() mutation.Messages {
	if h.def.Messages != nil {
		return *h.def.Messages
	}
	return mutation.DefaultMessages(h.def.Noun)
}

// Fail answers a failed mutation with the status StatusFor picks, the
// user-facing message and the submitted draft.
func (h *Handler[D, C]) Fail(c echo.Context, ctl *view.Controller[D], err error, draft interface{}) error {
	resp := Response{Error: mutation.Message(err, ""), Draft: draft}
	var verr *mutation.ValidationError
	var serr *mutation.SubmitError
	switch {
	case errors.As(err, &verr):
		resp.Field = verr.Field
	case errors.As(err, &serr):
		resp.Error = serr.Message
	}
	return h.Respond(c, StatusFor(err), ctl.State(), resp)
}

// Respond writes the screen envelope: state, derived view and the toasts
// raised for the caller's session.
func (h *Handler[D, C]) Respond(c echo.Context, status int, state view.State[D], resp Response) error {
	resp.State = state
	if h.def.View != nil {
		resp.View = h.def.View(state.Items, view.FilterFromQuery(c.QueryParams()))
	}
	sess := auth.SessionFromContext(c.Request().Context())
	resp.Notifications = h.env.Notifier.Drain(sess.ID)
	if resp.Notifications == nil {
		resp.Notifications = []*notification.Notification{}
	}
	return c.JSON(status, resp)
}

// StatusFor maps a screen error to an HTTP status: 422 for validation, 409
// when the screen is busy, the backend's 4xx status, else 502.
func StatusFor(err error) int {
	var verr *mutation.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, view.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, resource.ErrTempID):
		return http.StatusUnprocessableEntity
	}
	if s := apiclient.StatusOf(err); s >= 400 && s < 500 {
		return s
	}
	if errors.Is(err, context.Canceled) {
		return 499
	}
	return http.StatusBadGateway
}
