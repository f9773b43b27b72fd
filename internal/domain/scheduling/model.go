package scheduling

import (
	"strings"
	"time"

	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/view"
)

const resourceName = "appointments"

var Statuses = []string{"scheduled", "confirmed", "completed", "cancelled", "no-show"}

type wire struct {
	ID          resource.ID     `json:"id"`
	Patient     resource.ID     `json:"patient"`
	PatientName resource.Text   `json:"patient_name"`
	Doctor      resource.ID     `json:"doctor"`
	DoctorName  resource.Text   `json:"doctor_name"`
	Date        resource.Text   `json:"date"`
	Time        resource.Text   `json:"time"`
	Duration    resource.Number `json:"duration"`
	Reason      resource.Text   `json:"reason"`
	Status      resource.Text   `json:"status"`
	Notes       resource.Text   `json:"notes"`
}

// Appointment is a scheduled visit.
type Appointment struct {
	ID          resource.ID `json:"id"`
	PatientID   resource.ID `json:"patientId"`
	PatientName string      `json:"patientName"`
	DoctorID    resource.ID `json:"doctorId,omitempty"`
	DoctorName  string      `json:"doctorName"`
	// Start is the date and time of the visit.
	Start           time.Time `json:"start"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	DurationMinutes int       `json:"durationMinutes"`
	Reason          string    `json:"reason"`
	Status          string    `json:"status"`
	Notes           string    `json:"notes"`
}

// CreateData is the booking form.
type CreateData struct {
	Patient  resource.ID `json:"patient"`
	Doctor   resource.ID `json:"doctor,omitempty"`
	Date     string      `json:"date"`
	Time     string      `json:"time"`
	Duration int         `json:"duration,omitempty"`
	Reason   string      `json:"reason"`
	Status   string      `json:"status"`
	Notes    string      `json:"notes,omitempty"`
}

const defaultDuration = 30

func normalize(w wire) (Appointment, error) {
	if w.ID.IsZero() {
		return Appointment{}, resource.Missing(resourceName, "id")
	}
	if w.Patient.IsZero() {
		return Appointment{}, resource.Missing(resourceName, "patient")
	}
	day, err := resource.Date(resourceName, "date", w.Date)
	if err != nil {
		return Appointment{}, err
	}
	if day.IsZero() {
		return Appointment{}, resource.Missing(resourceName, "date")
	}
	start := day
	clock := strings.TrimSpace(string(w.Time))
	if clock != "" {
		t, err := parseClock(clock)
		if err != nil {
			return Appointment{}, resource.Invalid(resourceName, "time", err.Error())
		}
		start = time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location())
	}
	duration := defaultDuration
	if w.Duration.Valid && w.Duration.Value > 0 {
		duration = int(w.Duration.Value)
	}
	return Appointment{
		ID:              w.ID,
		PatientID:       w.Patient,
		PatientName:     w.PatientName.Or("Patient #" + w.Patient.String()),
		DoctorID:        w.Doctor,
		DoctorName:      w.DoctorName.Or("Unknown"),
		Start:           start,
		Date:            day.Format("2006-01-02"),
		Time:            start.Format("15:04"),
		DurationMinutes: duration,
		Reason:          string(w.Reason),
		Status:          w.Status.Or("scheduled"),
		Notes:           string(w.Notes),
	}, nil
}

// parseClock accepts "15:04" and "15:04:05".
func parseClock(s string) (time.Time, error) {
	if t, err := time.Parse("15:04:05", s); err == nil {
		return t, nil
	}
	return time.Parse("15:04", s)
}

var filterSpec = view.FilterSpec[Appointment]{
	Search: []func(Appointment) string{
		func(a Appointment) string { return a.PatientName },
		func(a Appointment) string { return a.DoctorName },
		func(a Appointment) string { return a.Reason },
	},
	Status: func(a Appointment) string { return a.Status },
	Sorts: map[string]view.SortKey[Appointment]{
		"date":    view.TimeKey(func(a Appointment) time.Time { return a.Start }),
		"patient": view.TextKey(func(a Appointment) string { return a.PatientName }),
		"doctor":  view.TextKey(func(a Appointment) string { return a.DoctorName }),
	},
	DefaultSort: "date",
}
