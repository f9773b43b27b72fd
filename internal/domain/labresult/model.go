package labresult

import (
	"time"

	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/view"
)

const (
	resourceName = "lab-results"
	reportsPath  = "lab-reports/"
)

// Flags a result can carry relative to its reference range.
var Flags = []string{"normal", "abnormal", "critical", "pending"}

type wire struct {
	ID             resource.ID   `json:"id"`
	Patient        resource.ID   `json:"patient"`
	PatientName    resource.Text `json:"patient_name"`
	TestName       resource.Text `json:"test_name"`
	Result         resource.Text `json:"result"`
	Unit           resource.Text `json:"unit"`
	ReferenceRange resource.Text `json:"reference_range"`
	Status         resource.Text `json:"status"`
	Date           resource.Text `json:"date"`
	Notes          resource.Text `json:"notes"`
}

type LabResult struct {
	ID             resource.ID `json:"id"`
	PatientID      resource.ID `json:"patientId"`
	PatientName    string      `json:"patientName"`
	TestName       string      `json:"testName"`
	Result         string      `json:"result"`
	Unit           string      `json:"unit"`
	ReferenceRange string      `json:"referenceRange"`
	Status         string      `json:"status"`
	Date           time.Time   `json:"date"`
	Notes          string      `json:"notes"`
}

type CreateData struct {
	Patient        resource.ID `json:"patient"`
	TestName       string      `json:"test_name"`
	Result         string      `json:"result"`
	Unit           string      `json:"unit,omitempty"`
	ReferenceRange string      `json:"reference_range,omitempty"`
	Status         string      `json:"status"`
	Date           string      `json:"date"`
	Notes          string      `json:"notes,omitempty"`
}

// Report is an uploaded lab report file.
type Report struct {
	ID         resource.ID `json:"id"`
	PatientID  resource.ID `json:"patientId"`
	Title      string      `json:"title"`
	FileURL    string      `json:"fileUrl"`
	UploadedAt time.Time   `json:"uploadedAt"`
}

type reportWire struct {
	ID         resource.ID   `json:"id"`
	Patient    resource.ID   `json:"patient"`
	Title      resource.Text `json:"title"`
	File       resource.Text `json:"file"`
	FileURL    resource.Text `json:"file_url"`
	UploadedAt resource.Text `json:"uploaded_at"`
}

func normalize(w wire) (LabResult, error) {
	if w.ID.IsZero() {
		return LabResult{}, resource.Missing(resourceName, "id")
	}
	if w.TestName == "" {
		return LabResult{}, resource.Missing(resourceName, "test_name")
	}
	date, err := resource.Date(resourceName, "date", w.Date)
	if err != nil {
		return LabResult{}, err
	}
	return LabResult{
		ID:             w.ID,
		PatientID:      w.Patient,
		PatientName:    w.PatientName.Or("Unknown"),
		TestName:       string(w.TestName),
		Result:         string(w.Result),
		Unit:           string(w.Unit),
		ReferenceRange: string(w.ReferenceRange),
		Status:         w.Status.Or("pending"),
		Date:           date,
		Notes:          string(w.Notes),
	}, nil
}

func normalizeReport(w reportWire) (Report, error) {
	if w.ID.IsZero() {
		return Report{}, resource.Missing("lab-reports", "id")
	}
	uploaded, err := resource.Date("lab-reports", "uploaded_at", w.UploadedAt)
	if err != nil {
		return Report{}, err
	}
	return Report{
		ID:         w.ID,
		PatientID:  w.Patient,
		Title:      w.Title.Or("Lab report"),
		FileURL:    w.FileURL.Or(string(w.File)),
		UploadedAt: uploaded,
	}, nil
}

var filterSpec = view.FilterSpec[LabResult]{
	Search: []func(LabResult) string{
		func(r LabResult) string { return r.TestName },
		func(r LabResult) string { return r.PatientName },
	},
	Status: func(r LabResult) string { return r.Status },
	Sorts: map[string]view.SortKey[LabResult]{
		"date": view.TimeKey(func(r LabResult) time.Time { return r.Date }),
		"test": view.TextKey(func(r LabResult) string { return r.TestName }),
	},
	DefaultSort: "date",
}
