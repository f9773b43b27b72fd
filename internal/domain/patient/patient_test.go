package patient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/ehr/emr-web/internal/platform/fakebackend"
	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/screen/screentest"
)

func setup(t *testing.T, legacy bool) (*screentest.Harness, *Client) {
	t.Helper()
	h := screentest.New(t)
	client := NewClient(h.API, h.Logger, legacy)
	h.Backend.Mount(resourceName, resource.Pick(legacy, resourceName, resource.Suffixed(resourceName)))
	NewHandler(client, h.Env).RegisterRoutes(h.Screens())
	return h, client
}

func TestNormalize(t *testing.T) {
	var w wire
	if err := json.Unmarshal([]byte(`{"id":7,"name":"Ann Lee","dob":"1990-02-03","gender":"Female"}`), &w); err != nil {
		t.Fatal(err)
	}
	p, err := normalize(w)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if p.ID != "7" || p.FirstName != "Ann" || p.LastName != "Lee" || p.FullName != "Ann Lee" {
		t.Errorf("unexpected names: %+v", p)
	}
	if p.DateOfBirth == nil || p.DateOfBirth.Year() != 1990 {
		t.Errorf("expected dob renamed to dateOfBirth, got %v", p.DateOfBirth)
	}
	if p.Gender != "female" || p.Status != "active" {
		t.Errorf("unexpected defaults: %+v", p)
	}
}

func TestNormalize_RejectsBadShapes(t *testing.T) {
	for _, raw := range []string{
		`{"first_name":"Ann"}`,
		`{"id":1}`,
		`{"id":1,"first_name":"Ann","dob":"yesterday"}`,
	} {
		var w wire
		if err := json.Unmarshal([]byte(raw), &w); err != nil {
			t.Fatal(err)
		}
		if _, err := normalize(w); !errors.Is(err, resource.ErrSchema) {
			t.Errorf("%s: expected schema error, got %v", raw, err)
		}
	}
}

func TestClient_LegacyRoutes(t *testing.T) {
	h, client := setup(t, true)
	ctx := context.Background()

	if _, err := client.Create(ctx, CreateData{FirstName: "Ann", LastName: "Lee", DOB: "1990-02-03"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := client.Update(ctx, "1", map[string]interface{}{"phone": "555"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := client.Delete(ctx, "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if h.Backend.CountCalls(http.MethodPost, "patients/create/") != 1 ||
		h.Backend.CountCalls(http.MethodPut, "patients/1/update/") != 1 ||
		h.Backend.CountCalls(http.MethodDelete, "patients/1/delete/") != 1 {
		t.Errorf("expected suffixed routes, got %+v", h.Backend.Calls())
	}
}

func TestScreen_SearchIsForwarded(t *testing.T) {
	h, _ := setup(t, true)
	h.Backend.Seed(resourceName,
		fakebackend.Record{"first_name": "Ann", "last_name": "Lee", "dob": "1990-01-01"},
		fakebackend.Record{"first_name": "Bob", "last_name": "Ray", "dob": "1980-01-01"},
	)

	rec := h.Do(t, http.MethodGet, "/screens/patients?search=ann", "")
	r := screentest.Decode[[]Patient](t, rec)
	if len(r.State.Items) != 1 || r.State.Items[0].FirstName != "Ann" {
		t.Fatalf("expected one match, got %+v", r.State.Items)
	}
	calls := h.Backend.Calls()
	if calls[len(calls)-1].Query.Get("search") != "ann" {
		t.Errorf("expected search forwarded, got %v", calls[len(calls)-1].Query)
	}
}

func TestScreen_FallsBackToSnapshot(t *testing.T) {
	h, _ := setup(t, true)
	h.Backend.Seed(resourceName, fakebackend.Record{"first_name": "Ann", "last_name": "Lee"})

	h.Do(t, http.MethodGet, "/screens/patients", "")
	h.Backend.Fail(resourceName, http.StatusServiceUnavailable, `{"detail":"maintenance"}`)

	rec := h.Do(t, http.MethodGet, "/screens/patients?refresh=true", "")
	r := screentest.Decode[[]Patient](t, rec)
	if !r.State.Stale || len(r.State.Items) != 1 {
		t.Fatalf("expected stale snapshot, got %+v", r.State)
	}
	if r.State.Error != "Failed to load patients" {
		t.Errorf("unexpected error: %q", r.State.Error)
	}
}

func TestScreen_CreateValidation(t *testing.T) {
	h, _ := setup(t, true)
	h.Do(t, http.MethodGet, "/screens/patients", "")
	h.Backend.Reset()

	rec := h.Do(t, http.MethodPost, "/screens/patients/items", `{"first_name":"Ann","last_name":"Lee","dob":"1990-01-01","gender":"unknown"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if r := screentest.Decode[[]Patient](t, rec); r.Field != "gender" {
		t.Errorf("expected gender error, got %q", r.Field)
	}
	if len(h.Backend.Calls()) != 0 {
		t.Errorf("expected no backend calls, got %d", len(h.Backend.Calls()))
	}

	rec = h.Do(t, http.MethodPost, "/screens/patients/items", `{"first_name":"Ann","last_name":"Lee","dob":"1990-01-01","gender":"female"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	r := screentest.Decode[[]Patient](t, rec)
	if len(r.State.Items) != 1 || r.State.Items[0].FullName != "Ann Lee" {
		t.Errorf("expected refetched list with new patient, got %+v", r.State.Items)
	}
}
