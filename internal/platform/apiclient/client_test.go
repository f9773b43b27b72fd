package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNew_RejectsNonHTTPScheme(t *testing.T) {
	if _, err := New("ftp://backend"); err == nil {
		t.Fatal("expected error for ftp scheme")
	}
}

func TestNew_AppendsTrailingSlash(t *testing.T) {
	c, err := New("http://backend/api")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.resolve("patients/7/", nil); got != "http://backend/api/patients/7/" {
		t.Errorf("unexpected url %s", got)
	}
}

func TestDo_InjectsTokenAndRequestID(t *testing.T) {
	var gotAuth, gotRID, gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRID = r.Header.Get("X-Request-ID")
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id": 7}`)
	}))
	defer srv.Close()

	c, _ := New(srv.URL + "/api/")
	ctx := WithRequestID(WithToken(context.Background(), "tok"), "rid-1")

	var out struct {
		ID int `json:"id"`
	}
	if err := c.Do(ctx, http.MethodGet, "patients/7/", map[string][]string{"search": {"ann"}}, nil, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("expected bearer token, got %q", gotAuth)
	}
	if gotRID != "rid-1" {
		t.Errorf("expected request id, got %q", gotRID)
	}
	if gotPath != "/api/patients/7/" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotQuery != "search=ann" {
		t.Errorf("unexpected query %s", gotQuery)
	}
	if out.ID != 7 {
		t.Errorf("expected id 7, got %d", out.ID)
	}
}

func TestDo_NonSuccessKeepsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"detail": "bad date"}`)
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	err := c.Do(context.Background(), http.MethodPost, "diagnostics/create/", nil, map[string]string{"a": "b"}, nil)

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", apiErr.Status)
	}
	fields, ok := apiErr.Fields()
	if !ok || fields["detail"] != "bad date" {
		t.Errorf("expected detail field, got %v", fields)
	}
	if StatusOf(err) != http.StatusBadRequest {
		t.Errorf("StatusOf mismatch")
	}
}

func TestDo_UnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, _ := New(url)
	err := c.Do(context.Background(), http.MethodGet, "patients/", nil, nil, nil)
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if !apiErr.Unreachable() {
		t.Error("expected unreachable error")
	}
}

func TestUpload_SendsMultipart(t *testing.T) {
	var gotField, gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotField = r.FormValue("patient")
		f, _, err := r.FormFile("file")
		if err == nil {
			b, _ := io.ReadAll(f)
			gotFile = string(b)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id": 1}`)
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	err := c.Upload(context.Background(), "lab-reports/", map[string]string{"patient": "7"},
		[]FilePart{{Field: "file", Filename: "cbc.pdf", Content: strings.NewReader("PDF")}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotField != "7" || gotFile != "PDF" {
		t.Errorf("unexpected upload: field=%q file=%q", gotField, gotFile)
	}
}

func TestDownload_ReturnsBlob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="report-3.pdf"`)
		io.WriteString(w, "%PDF-1.4")
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	blob, err := c.Download(context.Background(), "reports/3/view/", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer blob.Body.Close()
	if blob.ContentType != "application/pdf" || blob.Filename != "report-3.pdf" {
		t.Errorf("unexpected blob metadata: %+v", blob)
	}
	b, _ := io.ReadAll(blob.Body)
	if string(b) != "%PDF-1.4" {
		t.Errorf("unexpected blob body %q", b)
	}
}
