package clinical

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ehr/emr-web/internal/platform/apiclient"
	"github.com/ehr/emr-web/internal/platform/mutation"
	"github.com/ehr/emr-web/internal/platform/resource"
	"github.com/ehr/emr-web/internal/platform/screen"
	"github.com/ehr/emr-web/internal/platform/view"
)

// ErrUnknownKind is returned for a sub-record kind the EHR does not have.
var ErrUnknownKind = errors.New("unknown EHR record kind")

type partialRule = mutation.Rule[screen.Partial]

// kind is one sub-record resource with its wire and view types erased.
type kind struct {
	name   string
	noun   string
	fields []string
	// required rules apply to create only; format rules to create and update.
	required []partialRule
	format   []partialRule

	fetch  func(r *Record, patientID string) view.Slot
	create func(ctx context.Context, p screen.Partial) error
	update func(ctx context.Context, id resource.ID, p screen.Partial) error
	remove func(ctx context.Context, id resource.ID) error
}

type kindSpec[W any, V any] struct {
	name, noun string
	fields     []string
	required   []partialRule
	format     []partialRule
	normalize  func(W) (V, error)
	dst        func(r *Record) *[]V
}

func newKind[W any, V any](api *apiclient.Client, logger zerolog.Logger, legacy bool, s kindSpec[W, V]) *kind {
	base := "ehr/" + s.name
	c := resource.NewClient(api, logger, resource.Spec[W, V]{
		Name:      base,
		Routes:    resource.Pick(legacy, base, resource.REST(base).WithPatch()),
		Params:    []string{"patient_id"},
		Normalize: s.normalize,
	})
	return &kind{
		name:     s.name,
		noun:     s.noun,
		fields:   s.fields,
		required: s.required,
		format:   s.format,
		fetch: func(r *Record, patientID string) view.Slot {
			return view.Fetch(s.name, s.dst(r), func(ctx context.Context) ([]V, error) {
				return c.List(ctx, resource.Query{"patient_id": patientID})
			})
		},
		create: func(ctx context.Context, p screen.Partial) error {
			_, err := c.Create(ctx, p)
			return err
		},
		update: func(ctx context.Context, id resource.ID, p screen.Partial) error {
			_, err := c.Update(ctx, id, p)
			return err
		},
		remove: c.Delete,
	}
}

// form keeps the submitted fields this kind accepts.
func (k *kind) form(body screen.Partial) screen.Partial {
	out := screen.Partial{}
	for _, f := range k.fields {
		if v, ok := body[f]; ok {
			out[f] = v
		}
	}
	return out
}

func (k *kind) createRules() []partialRule {
	rules := []partialRule{
		mutation.RequiredID("patient", "Please select a patient first", func(p screen.Partial) resource.ID {
			return screen.ID(p, "patient")
		}),
	}
	rules = append(rules, k.required...)
	return append(rules, k.format...)
}

// Client reads and writes the six EHR sub-record resources.
type Client struct {
	kinds map[string]*kind
}

func NewClient(api *apiclient.Client, logger zerolog.Logger, legacy bool) *Client {
	c := &Client{kinds: make(map[string]*kind, len(Kinds))}
	for _, k := range []*kind{
		newKind(api, logger, legacy, kindSpec[medicalHistoryWire, MedicalHistory]{
			name:   KindMedicalHistory,
			noun:   "medical history",
			fields: []string{"condition", "diagnosis_date", "status", "notes"},
			required: []partialRule{
				required("condition", "Condition is required"),
			},
			format: []partialRule{
				date("diagnosis_date"),
				oneOf("status", "active", "resolved", "chronic"),
			},
			normalize: normalizeMedicalHistory,
			dst:       func(r *Record) *[]MedicalHistory { return &r.MedicalHistory },
		}),
		newKind(api, logger, legacy, kindSpec[allergyWire, Allergy]{
			name:   KindAllergies,
			noun:   "allergy",
			fields: []string{"allergen", "reaction", "severity", "notes"},
			required: []partialRule{
				required("allergen", "Allergen is required"),
			},
			format: []partialRule{
				oneOf("severity", "mild", "moderate", "severe"),
			},
			normalize: normalizeAllergy,
			dst:       func(r *Record) *[]Allergy { return &r.Allergies },
		}),
		newKind(api, logger, legacy, kindSpec[medicationWire, Medication]{
			name:   KindMedications,
			noun:   "medication",
			fields: []string{"name", "dosage", "frequency", "start_date", "end_date", "status"},
			required: []partialRule{
				required("name", "Medication name is required"),
				required("dosage", "Dosage is required"),
			},
			format: []partialRule{
				date("start_date"),
				date("end_date"),
				oneOf("status", "active", "discontinued", "completed"),
			},
			normalize: normalizeMedication,
			dst:       func(r *Record) *[]Medication { return &r.Medications },
		}),
		newKind(api, logger, legacy, kindSpec[immunizationWire, Immunization]{
			name:   KindImmunizations,
			noun:   "immunization",
			fields: []string{"vaccine", "date", "dose", "provider"},
			required: []partialRule{
				required("vaccine", "Vaccine is required"),
				required("date", "Date is required"),
			},
			format: []partialRule{
				date("date"),
			},
			normalize: normalizeImmunization,
			dst:       func(r *Record) *[]Immunization { return &r.Immunizations },
		}),
		newKind(api, logger, legacy, kindSpec[vitalSignWire, VitalSign]{
			name: KindVitalSigns,
			noun: "vital signs",
			fields: []string{
				"recorded_at", "blood_pressure", "heart_rate", "temperature",
				"respiratory_rate", "oxygen_saturation", "weight", "height",
			},
			required: []partialRule{
				required("recorded_at", "Recording time is required"),
			},
			format: []partialRule{
				date("recorded_at"),
				number("heart_rate"),
				number("temperature"),
				number("respiratory_rate"),
				number("oxygen_saturation"),
				number("weight"),
				number("height"),
			},
			normalize: normalizeVitalSign,
			dst:       func(r *Record) *[]VitalSign { return &r.VitalSigns },
		}),
		newKind(api, logger, legacy, kindSpec[familyHistoryWire, FamilyHistory]{
			name:   KindFamilyHistory,
			noun:   "family history",
			fields: []string{"relation", "condition", "age_at_diagnosis", "notes"},
			required: []partialRule{
				required("relation", "Relation is required"),
				required("condition", "Condition is required"),
			},
			format: []partialRule{
				number("age_at_diagnosis"),
			},
			normalize: normalizeFamilyHistory,
			dst:       func(r *Record) *[]FamilyHistory { return &r.FamilyHistory },
		}),
	} {
		c.kinds[k.name] = k
	}
	return c
}

func (c *Client) kind(name string) (*kind, error) {
	k, ok := c.kinds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	return k, nil
}

// Load fetches every kind for patientID in parallel under policy.
func (c *Client) Load(ctx context.Context, policy view.Policy, patientID string) (Record, error) {
	var r Record
	slots := make([]view.Slot, 0, len(Kinds))
	for _, name := range Kinds {
		slots = append(slots, c.kinds[name].fetch(&r, patientID))
	}
	err := view.Batch(ctx, policy, slots...)
	return r.orEmpty(), err
}

// Create adds a record of kind for the patient named in p.
func (c *Client) Create(ctx context.Context, kind string, p screen.Partial) error {
	k, err := c.kind(kind)
	if err != nil {
		return err
	}
	return k.create(ctx, p)
}

func (c *Client) Update(ctx context.Context, kind string, id resource.ID, p screen.Partial) error {
	k, err := c.kind(kind)
	if err != nil {
		return err
	}
	return k.update(ctx, id, p)
}

func (c *Client) Delete(ctx context.Context, kind string, id resource.ID) error {
	k, err := c.kind(kind)
	if err != nil {
		return err
	}
	return k.remove(ctx, id)
}

func required(field, message string) partialRule {
	return mutation.Required(field, message, func(p screen.Partial) string { return screen.String(p, field) })
}

func date(field string) partialRule {
	return mutation.Date(field, func(p screen.Partial) string { return screen.String(p, field) })
}

func number(field string) partialRule {
	return mutation.Number(field, func(p screen.Partial) string { return screen.String(p, field) })
}

func oneOf(field string, allowed ...string) partialRule {
	return mutation.OneOf(field, allowed, func(p screen.Partial) string { return screen.String(p, field) })
}
