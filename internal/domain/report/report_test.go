package report

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ehr/emr-web/internal/platform/fakebackend"
	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/screen/screentest"
)

func setup(t *testing.T) *screentest.Harness {
	t.Helper()
	h := screentest.New(t)
	routes := resource.REST(resourceName)
	routes.Create = "reports/generate/"
	routes.Delete = "reports/{id}/delete/"
	h.Backend.Mount(resourceName, routes)
	h.Backend.Seed(resourceName,
		fakebackend.Record{"id": 1, "title": "Q1 visits", "category": "operational", "created_at": "2024-04-01T00:00:00Z"},
		fakebackend.Record{"id": 2, "title": "Billing", "category": "financial", "format": "xlsx", "created_at": "2024-04-02T00:00:00Z"},
	)

	e := h.Backend.Echo()
	e.GET("/reports/:id/view/", func(c echo.Context) error {
		if c.Param("id") != "1" {
			return c.JSON(http.StatusNotFound, map[string]string{"detail": "Report not found."})
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="q1-visits.pdf"`)
		return c.Blob(http.StatusOK, "application/pdf", []byte("%PDF-1.7 report"))
	})
	e.GET("/reports/export-all/", func(c echo.Context) error {
		return c.Blob(http.StatusOK, "text/csv", []byte("id,title\n"+c.QueryParam("category")))
	})

	NewHandler(NewClient(h.API, h.Logger, true), h.Env).RegisterRoutes(h.Screens())
	return h
}

func TestScreen_ListByCategory(t *testing.T) {
	h := setup(t)

	r := screentest.Decode[[]Report](t, h.Do(t, http.MethodGet, "/screens/reports?category=financial", ""))
	if len(r.State.Items) != 1 || r.State.Items[0].Format != "xlsx" || r.State.Items[0].GeneratedBy != "System" {
		t.Fatalf("unexpected items: %+v", r.State.Items)
	}
}

func TestGenerateAndDelete(t *testing.T) {
	h := setup(t)
	h.Do(t, http.MethodGet, "/screens/reports", "")

	rec := h.Do(t, http.MethodPost, "/screens/reports/items", `{"title":"Census","date_from":"2024-01-01"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if h.Backend.CountCalls(http.MethodPost, "reports/generate/") != 1 {
		t.Errorf("expected generate route, got %+v", h.Backend.Calls())
	}
	if msgs := screentest.Decode[[]Report](t, rec).Messages(); len(msgs) != 1 || msgs[0] != "Report generated successfully" {
		t.Errorf("unexpected toasts: %v", msgs)
	}

	rec = h.Do(t, http.MethodDelete, "/screens/reports/items/2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if h.Backend.CountCalls(http.MethodDelete, "reports/2/delete/") != 1 {
		t.Errorf("expected suffixed delete, got %+v", h.Backend.Calls())
	}

	if rec := h.Do(t, http.MethodPut, "/screens/reports/items/1", `{"title":"x"}`); rec.Code != http.StatusMethodNotAllowed && rec.Code != http.StatusNotFound {
		t.Errorf("expected reports to have no update route, got %d", rec.Code)
	}
}

func TestViewReport_StreamsBlob(t *testing.T) {
	h := setup(t)

	rec := h.Do(t, http.MethodGet, "/screens/reports/items/1/view", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/pdf" {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); cd != `inline; filename="q1-visits.pdf"` {
		t.Errorf("unexpected disposition %q", cd)
	}
	if rec.Body.String() != "%PDF-1.7 report" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestViewReport_MissingRaisesToast(t *testing.T) {
	h := setup(t)

	rec := h.Do(t, http.MethodGet, "/screens/reports/items/9/view", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	r := screentest.Decode[[]Report](t, rec)
	if r.Error != "Report not found." {
		t.Errorf("unexpected error %q", r.Error)
	}
	if msgs := r.Messages(); len(msgs) != 1 || msgs[0] != "Report not found." {
		t.Errorf("unexpected toasts: %v", msgs)
	}
}

func TestExport(t *testing.T) {
	h := setup(t)

	rec := h.Do(t, http.MethodGet, "/screens/reports/export?category=clinical", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "id,title\nclinical" {
		t.Errorf("expected category forwarded, got %q", rec.Body.String())
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); cd != `attachment; filename="reports"` {
		t.Errorf("unexpected disposition %q", cd)
	}
}
