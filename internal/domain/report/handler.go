package report

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/emr-web/internal/platform/apiclient"
	"github.com/ehr/emr-web/internal/platform/mutation"
	"github.com/ehr/emr-web/internal/platform/notification"
	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/screen"
	"github.com/ehr/emr-web/internal/platform/view"
)

const ScreenName = "reports"

type Handler struct {
	client *Client
	env    screen.Env
	screen *screen.Handler[[]Report, CreateData]
}

func NewHandler(client *Client, env screen.Env) *Handler {
	return &Handler{client: client, env: env, screen: screen.New(Definition(client), env)}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	h.screen.RegisterRoutes(g)
	g.GET("/"+ScreenName+"/items/:id/view", h.ViewReport)
	g.GET("/"+ScreenName+"/export", h.Export)
}

// Definition is the reports screen. Reports are generated, never edited.
func Definition(client *Client) screen.Definition[[]Report, CreateData] {
	return screen.Definition[[]Report, CreateData]{
		Name:      ScreenName,
		Noun:      "report",
		DepParams: []string{"category"},
		Load: func(ctx context.Context, deps view.Deps) ([]Report, error) {
			return client.List(ctx, resource.Query{"category": deps.Get("category")})
		},
		Empty: func() []Report { return []Report{} },
		View: func(items []Report, f view.Filter) interface{} {
			return view.Apply(items, f, filterSpec)
		},
		Blank: func() CreateData { return CreateData{Category: "clinical", Format: "pdf"} },
		Rules: func([]Report) []mutation.Rule[CreateData] { return createRules },
		Create: func(ctx context.Context, v CreateData) error {
			_, err := client.Create(ctx, v)
			return err
		},
		Delete: client.Delete,
		Messages: &mutation.Messages{
			Created:      "Report generated successfully",
			Deleted:      "Report deleted successfully",
			CreateFailed: "Failed to generate report",
			DeleteFailed: "Failed to delete report",
		},
	}
}

var createRules = []mutation.Rule[CreateData]{
	mutation.Required("title", "Report title is required", func(v CreateData) string { return v.Title }),
	mutation.OneOf("category", Categories, func(v CreateData) string { return v.Category }),
	mutation.OneOf("format", Formats, func(v CreateData) string { return v.Format }),
	mutation.Date("date_from", func(v CreateData) string { return v.DateFrom }),
	mutation.Date("date_to", func(v CreateData) string { return v.DateTo }),
}

// ViewReport streams the rendered file of one report.
func (h *Handler) ViewReport(c echo.Context) error {
	id := resource.ID(c.Param("id"))
	blob, err := h.client.View(c.Request().Context(), id)
	if err != nil {
		return h.blobFailed(c, err, "Failed to open report")
	}
	return h.stream(c, blob, "inline", fmt.Sprintf("report-%s", id))
}

// Export streams every report of ?category= as one file.
func (h *Handler) Export(c echo.Context) error {
	blob, err := h.client.ExportAll(c.Request().Context(), c.QueryParam("category"), c.QueryParam("format"))
	if err != nil {
		return h.blobFailed(c, err, "Failed to export reports")
	}
	return h.stream(c, blob, "attachment", "reports")
}

func (h *Handler) stream(c echo.Context, blob *apiclient.Blob, disposition, fallbackName string) error {
	defer blob.Body.Close()
	name := blob.Filename
	if name == "" {
		name = fallbackName
	}
	contentType := blob.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("%s; filename=%q", disposition, name))
	return c.Stream(http.StatusOK, contentType, blob.Body)
}

// blobFailed raises a toast and answers with the screen envelope so the
// browser can show it in place of the file.
func (h *Handler) blobFailed(c echo.Context, err error, fallback string) error {
	ctl, rerr := h.screen.Ready(c)
	if rerr != nil {
		return rerr
	}
	msg := mutation.Message(err, fallback)
	h.env.Notifier.Notify(c.Request().Context(), notification.LevelError, ScreenName, msg)
	return h.screen.Fail(c, ctl, &mutation.SubmitError{Message: msg, Err: err}, nil)
}
