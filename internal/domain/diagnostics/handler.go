package diagnostics

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/ehr/emr-web/internal/domain/patient"
	"github.com/ehr/emr-web/internal/platform/mutation"
	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/screen"
	"github.com/ehr/emr-web/internal/platform/view"
)

const ScreenName = "diagnostics"

// Data is what the diagnostics screen loads: the orders and the patients an
// order may reference.
type Data struct {
	Diagnostics []Diagnostic      `json:"diagnostics"`
	Patients    []patient.Patient `json:"patients"`
}

type Handler struct {
	screen *screen.Handler[Data, CreateData]
}

func NewHandler(client *Client, patients *patient.Client, env screen.Env) *Handler {
	return &Handler{screen: screen.New(Definition(client, patients, env), env)}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	h.screen.RegisterRoutes(g)
}

// Definition is the diagnostics screen. patient_id narrows the list to one
// patient.
func Definition(client *Client, patients *patient.Client, env screen.Env) screen.Definition[Data, CreateData] {
	return screen.Definition[Data, CreateData]{
		Name:      ScreenName,
		Noun:      "diagnostic",
		DepParams: []string{"patient_id"},
		Load: func(ctx context.Context, deps view.Deps) (Data, error) {
			var d Data
			err := view.Batch(ctx, env.Policy,
				view.Fetch("diagnostics", &d.Diagnostics, func(ctx context.Context) ([]Diagnostic, error) {
					return client.List(ctx, resource.Query{"patient_id": deps.Get("patient_id")})
				}),
				view.Fetch("patients", &d.Patients, func(ctx context.Context) ([]patient.Patient, error) {
					return patients.List(ctx, nil)
				}),
			)
			return d.orEmpty(), err
		},
		Empty: func() Data { return Data{}.orEmpty() },
		View: func(d Data, f view.Filter) interface{} {
			return view.Apply(d.Diagnostics, f, filterSpec)
		},
		Blank: func() CreateData { return CreateData{Status: "pending"} },
		Rules: func(d Data) []mutation.Rule[CreateData] {
			known := patient.IDs(d.Patients)
			return createRules(func() []resource.ID { return known })
		},
		UpdateRules: func(Data) []mutation.Rule[screen.Partial] {
			return updateRules
		},
		Create: func(ctx context.Context, v CreateData) error {
			_, err := client.Create(ctx, v)
			return err
		},
		Update: func(ctx context.Context, id resource.ID, p screen.Partial) error {
			_, err := client.Update(ctx, id, p)
			return err
		},
		Delete: client.Delete,
	}
}

func (d Data) orEmpty() Data {
	if d.Diagnostics == nil {
		d.Diagnostics = []Diagnostic{}
	}
	if d.Patients == nil {
		d.Patients = []patient.Patient{}
	}
	return d
}

const invalidPatient = "Please select a valid patient"

func createRules(known func() []resource.ID) []mutation.Rule[CreateData] {
	patientID := func(v CreateData) resource.ID { return v.Patient }
	return []mutation.Rule[CreateData]{
		mutation.RequiredID("patient", invalidPatient, patientID),
		mutation.Known("patient", invalidPatient, patientID, known),
		mutation.Required("test_type", "Please select a test type", func(v CreateData) string { return v.TestType }),
		mutation.Required("date", "Please select a date", func(v CreateData) string { return v.Date }),
		mutation.Date("date", func(v CreateData) string { return v.Date }),
		mutation.OneOf("status", Statuses, func(v CreateData) string { return v.Status }),
	}
}

var updateRules = []mutation.Rule[screen.Partial]{
	mutation.Date("date", func(p screen.Partial) string { return screen.String(p, "date") }),
	mutation.OneOf("status", Statuses, func(p screen.Partial) string { return screen.String(p, "status") }),
}
