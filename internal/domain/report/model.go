package report

import (
	"time"

	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/view"
)

const (
	resourceName = "reports"
	viewPath     = "reports/{id}/view/"
	exportPath   = "reports/export-all/"
)

var (
	Categories = []string{"clinical", "financial", "operational", "patient"}
	Formats    = []string{"pdf", "xlsx", "csv"}
)

type wire struct {
	ID          resource.ID   `json:"id"`
	Title       resource.Text `json:"title"`
	Category    resource.Text `json:"category"`
	Description resource.Text `json:"description"`
	Format      resource.Text `json:"format"`
	GeneratedBy resource.Text `json:"generated_by_name"`
	DateFrom    resource.Text `json:"date_from"`
	DateTo      resource.Text `json:"date_to"`
	CreatedAt   resource.Text `json:"created_at"`
}

type Report struct {
	ID          resource.ID `json:"id"`
	Title       string      `json:"title"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Format      string      `json:"format"`
	GeneratedBy string      `json:"generatedBy"`
	DateFrom    *time.Time  `json:"dateFrom,omitempty"`
	DateTo      *time.Time  `json:"dateTo,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// CreateData asks the backend to generate a report.
type CreateData struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Format   string `json:"format"`
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
}

func normalize(w wire) (Report, error) {
	if w.ID.IsZero() {
		return Report{}, resource.Missing(resourceName, "id")
	}
	created, err := resource.Date(resourceName, "created_at", w.CreatedAt)
	if err != nil {
		return Report{}, err
	}
	r := Report{
		ID:          w.ID,
		Title:       w.Title.Or("Untitled report"),
		Category:    w.Category.Or("clinical"),
		Description: string(w.Description),
		Format:      w.Format.Or("pdf"),
		GeneratedBy: w.GeneratedBy.Or("System"),
		CreatedAt:   created,
	}
	for _, f := range []struct {
		name string
		src  resource.Text
		dst  **time.Time
	}{{"date_from", w.DateFrom, &r.DateFrom}, {"date_to", w.DateTo, &r.DateTo}} {
		if f.src == "" {
			continue
		}
		d, err := resource.Date(resourceName, f.name, f.src)
		if err != nil {
			return Report{}, err
		}
		*f.dst = &d
	}
	return r, nil
}

var filterSpec = view.FilterSpec[Report]{
	Search: []func(Report) string{
		func(r Report) string { return r.Title },
		func(r Report) string { return r.Description },
	},
	Sorts: map[string]view.SortKey[Report]{
		"created": view.TimeKey(func(r Report) time.Time { return r.CreatedAt }),
		"title":   view.TextKey(func(r Report) string { return r.Title }),
	},
	DefaultSort: "created",
}
