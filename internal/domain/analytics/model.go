package analytics

import (
	"github.com/ehr/emr-web/internal/platform/resource"
)

// Ranges the dashboard can be scoped to.
var Ranges = []string{"week", "month", "quarter", "year"}

const defaultRange = "month"

type summaryWire struct {
	TotalPatients     resource.Number `json:"total_patients"`
	TotalAppointments resource.Number `json:"total_appointments"`
	TotalDiagnostics  resource.Number `json:"total_diagnostics"`
	NewPatients       resource.Number `json:"new_patients"`
	CompletionRate    resource.Number `json:"completion_rate"`
}

type Summary struct {
	TotalPatients     int     `json:"totalPatients"`
	TotalAppointments int     `json:"totalAppointments"`
	TotalDiagnostics  int     `json:"totalDiagnostics"`
	NewPatients       int     `json:"newPatients"`
	CompletionRate    float64 `json:"completionRate"`
}

func normalizeSummary(w summaryWire) Summary {
	return Summary{
		TotalPatients:     int(w.TotalPatients.Value),
		TotalAppointments: int(w.TotalAppointments.Value),
		TotalDiagnostics:  int(w.TotalDiagnostics.Value),
		NewPatients:       int(w.NewPatients.Value),
		CompletionRate:    w.CompletionRate.Value,
	}
}

type pointWire struct {
	Label  resource.Text   `json:"label"`
	Date   resource.Text   `json:"date"`
	Status resource.Text   `json:"status"`
	Type   resource.Text   `json:"test_type"`
	Count  resource.Number `json:"count"`
}

// Point is one bar or slice of a chart.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// normalizePoint labels a point with the first of label, date, status or
// test_type the backend sent.
func normalizePoint(name string, w pointWire) (Point, error) {
	label := w.Label.Or(w.Date.Or(w.Status.Or(string(w.Type))))
	if label == "" {
		return Point{}, resource.Missing(name, "label")
	}
	return Point{Label: label, Value: w.Count.Value}, nil
}

// Data is everything the analytics dashboard shows.
type Data struct {
	Summary      Summary `json:"summary"`
	Appointments []Point `json:"appointments"`
	Diagnostics  []Point `json:"diagnostics"`
}

func (d Data) orEmpty() Data {
	if d.Appointments == nil {
		d.Appointments = []Point{}
	}
	if d.Diagnostics == nil {
		d.Diagnostics = []Point{}
	}
	return d
}
