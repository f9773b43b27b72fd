package view

import (
	"net/url"
	"reflect"
	"testing"
	"time"
)

type appt struct {
	ID      int
	Patient string
	Status  string
	Date    time.Time
}

var apptFilter = FilterSpec[appt]{
	Search: []func(appt) string{func(a appt) string { return a.Patient }},
	Status: func(a appt) string { return a.Status },
	Sorts: map[string]SortKey[appt]{
		"date": TimeKey(func(a appt) time.Time { return a.Date }),
		"name": TextKey(func(a appt) string { return a.Patient }),
		"id":   NumberKey(func(a appt) float64 { return float64(a.ID) }),
	},
	DefaultSort: "date",
}

func day(d int) time.Time { return time.Date(2024, 1, d, 9, 0, 0, 0, time.UTC) }

func sampleAppts() []appt {
	return []appt{
		{1, "Zoë Adams", "completed", day(3)},
		{2, "bob Brown", "pending", day(1)},
		{3, "Ann Clark", "completed", day(2)},
		{4, "Émile Dubois", "cancelled", day(2)},
	}
}

func ids(items []appt) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestApply_StatusFilterIsIdempotent(t *testing.T) {
	f := Filter{Status: "completed"}
	once := Apply(sampleAppts(), f, apptFilter)
	for _, a := range once {
		if a.Status != "completed" {
			t.Fatalf("unexpected status %q", a.Status)
		}
	}
	if len(once) != 2 {
		t.Fatalf("expected 2 completed, got %d", len(once))
	}
	twice := Apply(once, f, apptFilter)
	if !reflect.DeepEqual(ids(once), ids(twice)) {
		t.Fatalf("filter not idempotent: %v vs %v", ids(once), ids(twice))
	}
}

func TestApply_StatusFilterIsExact(t *testing.T) {
	if got := Apply(sampleAppts(), Filter{Status: "Completed"}, apptFilter); len(got) != 0 {
		t.Fatalf("expected no match for a differently cased status, got %+v", got)
	}
}

func TestApply_AllStatusMatchesEverything(t *testing.T) {
	if got := Apply(sampleAppts(), Filter{Status: "all"}, apptFilter); len(got) != 4 {
		t.Fatalf("expected 4, got %d", len(got))
	}
}

func TestApply_AscIsReversedDesc(t *testing.T) {
	for _, key := range []string{"date", "name", "id"} {
		asc := ids(Apply(sampleAppts(), Filter{SortBy: key, SortOrder: Asc}, apptFilter))
		desc := ids(Apply(sampleAppts(), Filter{SortBy: key, SortOrder: Desc}, apptFilter))
		for i, j := 0, len(desc)-1; i < j; i, j = i+1, j-1 {
			desc[i], desc[j] = desc[j], desc[i]
		}
		if !reflect.DeepEqual(asc, desc) {
			t.Errorf("%s: asc %v != reversed desc %v", key, asc, desc)
		}
	}
}

func TestApply_DateSortByMilliseconds(t *testing.T) {
	got := ids(Apply(sampleAppts(), Filter{SortBy: "date"}, apptFilter))
	if !reflect.DeepEqual(got, []int{2, 3, 4, 1}) {
		t.Fatalf("unexpected date order %v", got)
	}
}

func TestApply_NameSortIsLocaleAware(t *testing.T) {
	got := ids(Apply(sampleAppts(), Filter{SortBy: "name"}, apptFilter))
	// byte order would put "bob" after "Zoë" and "Émile" last
	if !reflect.DeepEqual(got, []int{3, 2, 4, 1}) {
		t.Fatalf("unexpected name order %v", got)
	}
}

func TestApply_SearchDoesNotMutateItems(t *testing.T) {
	items := sampleAppts()
	got := Apply(items, Filter{SearchTerm: "ANN"}, apptFilter)
	if len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("unexpected search result %v", ids(got))
	}
	if !reflect.DeepEqual(ids(items), []int{1, 2, 3, 4}) {
		t.Fatal("Apply reordered its input")
	}
}

func TestFilterFromQuery(t *testing.T) {
	f := FilterFromQuery(url.Values{"search": {" ann "}, "status": {"pending"}, "sort": {"date"}, "order": {"DESC"}})
	want := Filter{SearchTerm: "ann", Status: "pending", SortBy: "date", SortOrder: Desc}
	if f != want {
		t.Fatalf("got %+v, want %+v", f, want)
	}
	if FilterFromQuery(url.Values{}).SortOrder != Asc {
		t.Error("expected asc default")
	}
}
