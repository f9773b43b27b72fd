package feedback

import (
	"time"

	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/view"
)

const resourceName = "feedback"

const defaultCategory = "General"

var (
	Categories = []string{"General", "Service", "Facility", "Staff", "Billing", "Other"}
	Statuses   = []string{"new", "reviewed", "resolved"}
)

type wire struct {
	ID          resource.ID     `json:"id"`
	Patient     resource.ID     `json:"patient"`
	PatientName resource.Text   `json:"patient_name"`
	Category    resource.Text   `json:"category"`
	Rating      resource.Number `json:"rating"`
	Comment     resource.Text   `json:"comment"`
	Status      resource.Text   `json:"status"`
	Response    resource.Text   `json:"response"`
	CreatedAt   resource.Text   `json:"created_at"`
}

type Feedback struct {
	ID          resource.ID `json:"id"`
	PatientID   resource.ID `json:"patientId,omitempty"`
	PatientName string      `json:"patientName"`
	Category    string      `json:"category"`
	Rating      int         `json:"rating"`
	Comment     string      `json:"comment"`
	Status      string      `json:"status"`
	Response    string      `json:"response,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

type CreateData struct {
	Patient  resource.ID `json:"patient,omitempty"`
	Category string      `json:"category"`
	Rating   int         `json:"rating"`
	Comment  string      `json:"comment"`
	Status   string      `json:"status,omitempty"`
}

func normalize(w wire) (Feedback, error) {
	if w.ID.IsZero() {
		return Feedback{}, resource.Missing(resourceName, "id")
	}
	created, err := resource.Date(resourceName, "created_at", w.CreatedAt)
	if err != nil {
		return Feedback{}, err
	}
	rating := int(w.Rating.Value)
	if rating < 0 || rating > 5 {
		return Feedback{}, resource.Invalid(resourceName, "rating", "out of range")
	}
	return Feedback{
		ID:          w.ID,
		PatientID:   w.Patient,
		PatientName: w.PatientName.Or("Anonymous"),
		Category:    w.Category.Or(defaultCategory),
		Rating:      rating,
		Comment:     string(w.Comment),
		Status:      w.Status.Or("new"),
		Response:    string(w.Response),
		CreatedAt:   created,
	}, nil
}

var filterSpec = view.FilterSpec[Feedback]{
	Search: []func(Feedback) string{
		func(f Feedback) string { return f.Comment },
		func(f Feedback) string { return f.PatientName },
		func(f Feedback) string { return f.Category },
	},
	Status: func(f Feedback) string { return f.Status },
	Sorts: map[string]view.SortKey[Feedback]{
		"created": view.TimeKey(func(f Feedback) time.Time { return f.CreatedAt }),
		"rating":  view.NumberKey(func(f Feedback) float64 { return float64(f.Rating) }),
	},
	DefaultSort: "created",
}
