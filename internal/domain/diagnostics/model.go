package diagnostics

import (
	"time"

	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/view"
)

const resourceName = "diagnostics"

// Statuses a diagnostic order moves through.
var Statuses = []string{"pending", "in-progress", "completed", "cancelled"}

type wire struct {
	ID          resource.ID   `json:"id"`
	Patient     resource.ID   `json:"patient"`
	PatientName resource.Text `json:"patient_name"`
	TestType    resource.Text `json:"test_type"`
	Date        resource.Text `json:"date"`
	Status      resource.Text `json:"status"`
	Result      resource.Text `json:"result"`
	Notes       resource.Text `json:"notes"`
	DoctorName  resource.Text `json:"doctor_name"`
}

// Diagnostic is a diagnostic test ordered for a patient.
type Diagnostic struct {
	ID          resource.ID `json:"id"`
	PatientID   resource.ID `json:"patientId"`
	PatientName string      `json:"patientName"`
	TestType    string      `json:"testType"`
	Date        time.Time   `json:"date"`
	Status      string      `json:"status"`
	Result      string      `json:"result"`
	Notes       string      `json:"notes"`
	DoctorName  string      `json:"doctorName"`
}

// CreateData is the order form.
type CreateData struct {
	Patient  resource.ID `json:"patient"`
	TestType string      `json:"test_type"`
	Date     string      `json:"date"`
	Status   string      `json:"status"`
	Result   string      `json:"result,omitempty"`
	Notes    string      `json:"notes,omitempty"`
}

func normalize(w wire) (Diagnostic, error) {
	if w.ID.IsZero() {
		return Diagnostic{}, resource.Missing(resourceName, "id")
	}
	if w.Patient.IsZero() {
		return Diagnostic{}, resource.Missing(resourceName, "patient")
	}
	if w.TestType == "" {
		return Diagnostic{}, resource.Missing(resourceName, "test_type")
	}
	date, err := resource.Date(resourceName, "date", w.Date)
	if err != nil {
		return Diagnostic{}, err
	}
	return Diagnostic{
		ID:          w.ID,
		PatientID:   w.Patient,
		PatientName: w.PatientName.Or("Patient #" + w.Patient.String()),
		TestType:    string(w.TestType),
		Date:        date,
		Status:      w.Status.Or("pending"),
		Result:      string(w.Result),
		Notes:       string(w.Notes),
		DoctorName:  w.DoctorName.Or("Unknown"),
	}, nil
}

var filterSpec = view.FilterSpec[Diagnostic]{
	Search: []func(Diagnostic) string{
		func(d Diagnostic) string { return d.PatientName },
		func(d Diagnostic) string { return d.TestType },
		func(d Diagnostic) string { return d.DoctorName },
	},
	Status: func(d Diagnostic) string { return d.Status },
	Sorts: map[string]view.SortKey[Diagnostic]{
		"date":    view.TimeKey(func(d Diagnostic) time.Time { return d.Date }),
		"patient": view.TextKey(func(d Diagnostic) string { return d.PatientName }),
		"test":    view.TextKey(func(d Diagnostic) string { return d.TestType }),
	},
	DefaultSort: "date",
}
