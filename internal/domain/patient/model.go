package patient

import (
	"strings"
	"time"

	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/view"
)

const resourceName = "patients"

// wire is a patient as the backend sends it.
type wire struct {
	ID        resource.ID   `json:"id"`
	FirstName resource.Text `json:"first_name"`
	LastName  resource.Text `json:"last_name"`
	Name      resource.Text `json:"name"`
	DOB       resource.Text `json:"dob"`
	Gender    resource.Text `json:"gender"`
	Phone     resource.Text `json:"phone"`
	Email     resource.Text `json:"email"`
	Address   resource.Text `json:"address"`
	BloodType resource.Text `json:"blood_type"`
	Status    resource.Text `json:"status"`
	CreatedAt resource.Text `json:"created_at"`
}

// Patient is the view model of a patient record.
type Patient struct {
	ID          resource.ID `json:"id"`
	FirstName   string      `json:"firstName"`
	LastName    string      `json:"lastName"`
	FullName    string      `json:"fullName"`
	DateOfBirth *time.Time  `json:"dateOfBirth,omitempty"`
	Gender      string      `json:"gender"`
	Phone       string      `json:"phone"`
	Email       string      `json:"email"`
	Address     string      `json:"address"`
	BloodType   string      `json:"bloodType"`
	Status      string      `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// CreateData is the patient registration form.
type CreateData struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	DOB       string `json:"dob"`
	Gender    string `json:"gender"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	Address   string `json:"address,omitempty"`
	BloodType string `json:"blood_type,omitempty"`
}

var genders = []string{"male", "female", "other"}

func normalize(w wire) (Patient, error) {
	if w.ID.IsZero() {
		return Patient{}, resource.Missing(resourceName, "id")
	}
	first, last := string(w.FirstName), string(w.LastName)
	if first == "" && last == "" {
		// Older records only carry a combined name.
		if w.Name == "" {
			return Patient{}, resource.Missing(resourceName, "first_name")
		}
		first, last, _ = strings.Cut(string(w.Name), " ")
	}
	p := Patient{
		ID:        w.ID,
		FirstName: first,
		LastName:  last,
		FullName:  strings.TrimSpace(first + " " + last),
		Gender:    strings.ToLower(w.Gender.Or("")),
		Phone:     string(w.Phone),
		Email:     string(w.Email),
		Address:   string(w.Address),
		BloodType: string(w.BloodType),
		Status:    w.Status.Or("active"),
	}
	if w.DOB != "" {
		dob, err := resource.Date(resourceName, "dob", w.DOB)
		if err != nil {
			return Patient{}, err
		}
		p.DateOfBirth = &dob
	}
	created, err := resource.Date(resourceName, "created_at", w.CreatedAt)
	if err != nil {
		return Patient{}, err
	}
	p.CreatedAt = created
	return p, nil
}

func birthTime(p Patient) time.Time {
	if p.DateOfBirth == nil {
		return time.Time{}
	}
	return *p.DateOfBirth
}

var filterSpec = view.FilterSpec[Patient]{
	Search: []func(Patient) string{
		func(p Patient) string { return p.FullName },
		func(p Patient) string { return p.Email },
		func(p Patient) string { return p.Phone },
	},
	Status: func(p Patient) string { return p.Status },
	Sorts: map[string]view.SortKey[Patient]{
		"name":    view.TextKey(func(p Patient) string { return p.FullName }),
		"dob":     view.TimeKey(birthTime),
		"created": view.TimeKey(func(p Patient) time.Time { return p.CreatedAt }),
	},
	DefaultSort: "name",
}
