package labresult

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ehr/emr-web/internal/platform/fakebackend"
	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/screen/screentest"
)

type upload struct {
	patient, title, filename, content string
}

func setup(t *testing.T) (*screentest.Harness, *[]upload) {
	t.Helper()
	h := screentest.New(t)
	h.Backend.Mount(resourceName, resource.REST(resourceName))
	h.Backend.Seed(resourceName,
		fakebackend.Record{"id": 1, "patient": 7, "patient_name": "Ann Lee", "test_name": "HbA1c", "result": "6.1", "unit": "%", "status": "abnormal", "date": "2024-03-02"},
		fakebackend.Record{"id": 2, "patient": 9, "test_name": "CBC", "result": "ok", "date": "2024-03-05"},
	)

	var got []upload
	h.Backend.Echo().POST("/"+reportsPath, func(c echo.Context) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"detail": "file is required"})
		}
		f, _ := fh.Open()
		defer f.Close()
		body, _ := io.ReadAll(f)
		got = append(got, upload{c.FormValue("patient"), c.FormValue("title"), fh.Filename, string(body)})
		return c.JSON(http.StatusCreated, map[string]interface{}{
			"id": 31, "patient": c.FormValue("patient"), "title": c.FormValue("title"),
			"file_url": "/media/lab-reports/" + fh.Filename, "uploaded_at": "2024-03-06T10:00:00Z",
		})
	})

	NewHandler(NewClient(h.API, h.Logger, true), h.Env).RegisterRoutes(h.Screens())
	return h, &got
}

func multipartRequest(t *testing.T, fields map[string]string, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if filename != "" {
		w, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(w, content)
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/screens/lab-results/reports", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	return req
}

func TestScreen_LoadsAndFiltersByPatient(t *testing.T) {
	h, _ := setup(t)

	r := screentest.Decode[[]LabResult](t, h.Do(t, http.MethodGet, "/screens/lab-results?patient_id=7", ""))
	if len(r.State.Items) != 1 || r.State.Items[0].TestName != "HbA1c" || r.State.Items[0].Unit != "%" {
		t.Fatalf("unexpected items: %+v", r.State.Items)
	}
	if got := h.Backend.Calls()[0].Query.Get("patient_id"); got != "7" {
		t.Errorf("expected patient_id forwarded, got %q", got)
	}

	r = screentest.Decode[[]LabResult](t, h.Do(t, http.MethodGet, "/screens/lab-results", ""))
	if len(r.State.Items) != 2 {
		t.Fatalf("expected all results, got %d", len(r.State.Items))
	}
	if cbc := r.State.Items[1]; cbc.Status != "pending" || cbc.PatientName != "Unknown" {
		t.Errorf("expected defaults applied, got %+v", cbc)
	}
}

func TestCreate_RequiresTestName(t *testing.T) {
	h, _ := setup(t)
	h.Do(t, http.MethodGet, "/screens/lab-results", "")
	h.Backend.Reset()

	rec := h.Do(t, http.MethodPost, "/screens/lab-results/items", `{"patient":7,"date":"2024-03-09"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if r := screentest.Decode[[]LabResult](t, rec); r.Field != "test_name" {
		t.Errorf("expected test_name error, got %q", r.Field)
	}
	if len(h.Backend.Calls()) != 0 {
		t.Errorf("expected no backend calls, got %+v", h.Backend.Calls())
	}

	rec = h.Do(t, http.MethodPost, "/screens/lab-results/items", `{"patient":7,"test_name":"Lipid panel","date":"2024-03-09"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	recs := h.Backend.Records(resourceName)
	if last := recs[len(recs)-1]; last["status"] != "pending" {
		t.Errorf("expected default status sent, got %+v", last)
	}
}

func TestUploadReport(t *testing.T) {
	h, got := setup(t)
	h.Do(t, http.MethodGet, "/screens/lab-results?patient_id=7", "")
	h.Backend.Reset()

	rec := h.Serve(multipartRequest(t, map[string]string{"patient": "7", "title": "March panel"}, "panel.pdf", "%PDF-1.4"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(*got) != 1 {
		t.Fatalf("expected one upload, got %d", len(*got))
	}
	if u := (*got)[0]; u.patient != "7" || u.title != "March panel" || u.filename != "panel.pdf" || u.content != "%PDF-1.4" {
		t.Errorf("unexpected upload: %+v", u)
	}
	if n := h.Backend.CountCalls(http.MethodGet, resourceName+"/"); n != 1 {
		t.Errorf("expected one refetch, got %d", n)
	}

	r := screentest.Decode[[]LabResult](t, rec)
	if r.Draft["fileUrl"] != "/media/lab-reports/panel.pdf" {
		t.Errorf("expected report in response, got %+v", r.Draft)
	}
	if msgs := r.Messages(); len(msgs) != 1 || msgs[0] != "Lab report uploaded successfully" {
		t.Errorf("unexpected toasts: %v", msgs)
	}
}

func TestUploadReport_MissingFile(t *testing.T) {
	h, got := setup(t)
	h.Do(t, http.MethodGet, "/screens/lab-results", "")

	rec := h.Serve(multipartRequest(t, map[string]string{"patient": "7"}, "", ""))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	r := screentest.Decode[[]LabResult](t, rec)
	if r.Field != "file" {
		t.Errorf("expected file error, got %q", r.Field)
	}
	if len(*got) != 0 {
		t.Error("expected nothing uploaded")
	}
}
