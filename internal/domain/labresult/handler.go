package labresult

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ehr/emr-web/internal/platform/apiclient"
	"github.com/ehr/emr-web/internal/platform/mutation"
	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/screen"
	"github.com/ehr/emr-web/internal/platform/view"
)

const ScreenName = "lab-results"

type Handler struct {
	client *Client
	env    screen.Env
	screen *screen.Handler[[]LabResult, CreateData]
}

func NewHandler(client *Client, env screen.Env) *Handler {
	return &Handler{client: client, env: env, screen: screen.New(Definition(client), env)}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	h.screen.RegisterRoutes(g)
	g.POST("/"+ScreenName+"/reports", h.UploadReport)
}

func Definition(client *Client) screen.Definition[[]LabResult, CreateData] {
	return screen.Definition[[]LabResult, CreateData]{
		Name:      ScreenName,
		Noun:      "lab result",
		DepParams: []string{"patient_id"},
		Load: func(ctx context.Context, deps view.Deps) ([]LabResult, error) {
			return client.List(ctx, resource.Query{"patient_id": deps.Get("patient_id")})
		},
		Empty: func() []LabResult { return []LabResult{} },
		View: func(items []LabResult, f view.Filter) interface{} {
			return view.Apply(items, f, filterSpec)
		},
		Blank: func() CreateData { return CreateData{Status: "pending"} },
		Rules: func([]LabResult) []mutation.Rule[CreateData] { return createRules },
		UpdateRules: func([]LabResult) []mutation.Rule[screen.Partial] {
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
	mutation.Required("test_name", "Test name is required", func(v CreateData) string { return v.TestName }),
	mutation.Required("date", "Please select a date", func(v CreateData) string { return v.Date }),
	mutation.Date("date", func(v CreateData) string { return v.Date }),
	mutation.OneOf("status", Flags, func(v CreateData) string { return v.Status }),
}

var updateRules = []mutation.Rule[screen.Partial]{
	mutation.Date("date", func(p screen.Partial) string { return screen.String(p, "date") }),
	mutation.OneOf("status", Flags, func(p screen.Partial) string { return screen.String(p, "status") }),
}

// uploadForm is the lab report upload form without the file body.
type uploadForm struct {
	Patient  resource.ID `json:"patient"`
	Title    string      `json:"title"`
	Filename string      `json:"filename"`
}

var uploadRules = []mutation.Rule[uploadForm]{
	mutation.RequiredID("patient", "Please select a patient", func(f uploadForm) resource.ID { return f.Patient }),
	mutation.Required("file", "Please choose a file to upload", func(f uploadForm) string { return f.Filename }),
}

// UploadReport forwards a multipart lab report to the backend and refreshes
// the lab results screen.
func (h *Handler) UploadReport(c echo.Context) error {
	form := uploadForm{
		Patient: resource.ID(c.FormValue("patient")),
		Title:   strings.TrimSpace(c.FormValue("title")),
	}
	fh, err := c.FormFile("file")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}
	if fh != nil {
		form.Filename = fh.Filename
	}

	ctl, err := h.screen.Ready(c)
	if err != nil {
		return err
	}
	draft := mutation.NewDraft(uploadForm{})
	draft.Set(form)
	coord := mutation.NewCoordinator(ctl, h.env.Notifier, mutation.Messages{
		Created:      "Lab report uploaded successfully",
		CreateFailed: "Failed to upload lab report",
	}, h.env.Logger, uploadRules...)

	var report Report
	err = coord.Create(c.Request().Context(), draft, func(ctx context.Context, f uploadForm) error {
		file, err := fh.Open()
		if err != nil {
			return err
		}
		defer file.Close()
		report, err = h.client.UploadReport(ctx, f.Patient, f.Title, apiclient.FilePart{
			Field:       "file",
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     file,
		})
		return err
	})
	if err != nil {
		return h.screen.Fail(c, ctl, err, draft.Current())
	}
	return h.screen.Respond(c, http.StatusCreated, ctl.State(), screen.Response{Draft: report})
}
