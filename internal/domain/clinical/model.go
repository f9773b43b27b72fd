package clinical

import (
	"time"

	"github.com/ehr/emr-web/internal/platform/resource"
)

// Kinds of EHR sub-record, in the order the EHR screen shows them.
const (
	KindMedicalHistory = "medical-history"
	KindAllergies      = "allergies"
	KindMedications    = "medications"
	KindImmunizations  = "immunizations"
	KindVitalSigns     = "vital-signs"
	KindFamilyHistory  = "family-history"
)

var Kinds = []string{
	KindMedicalHistory, KindAllergies, KindMedications,
	KindImmunizations, KindVitalSigns, KindFamilyHistory,
}

// Record is a patient's electronic health record, one list per kind.
type Record struct {
	MedicalHistory []MedicalHistory `json:"medicalHistory"`
	Allergies      []Allergy        `json:"allergies"`
	Medications    []Medication     `json:"medications"`
	Immunizations  []Immunization   `json:"immunizations"`
	VitalSigns     []VitalSign      `json:"vitalSigns"`
	FamilyHistory  []FamilyHistory  `json:"familyHistory"`
}

// orEmpty replaces nil lists so that an unloaded kind renders as empty.
func (r Record) orEmpty() Record {
	if r.MedicalHistory == nil {
		r.MedicalHistory = []MedicalHistory{}
	}
	if r.Allergies == nil {
		r.Allergies = []Allergy{}
	}
	if r.Medications == nil {
		r.Medications = []Medication{}
	}
	if r.Immunizations == nil {
		r.Immunizations = []Immunization{}
	}
	if r.VitalSigns == nil {
		r.VitalSigns = []VitalSign{}
	}
	if r.FamilyHistory == nil {
		r.FamilyHistory = []FamilyHistory{}
	}
	return r
}

type MedicalHistory struct {
	ID            resource.ID `json:"id"`
	PatientID     resource.ID `json:"patientId"`
	Condition     string      `json:"condition"`
	DiagnosisDate *time.Time  `json:"diagnosisDate,omitempty"`
	Status        string      `json:"status"`
	Notes         string      `json:"notes"`
}

type medicalHistoryWire struct {
	ID            resource.ID   `json:"id"`
	Patient       resource.ID   `json:"patient"`
	Condition     resource.Text `json:"condition"`
	DiagnosisDate resource.Text `json:"diagnosis_date"`
	Status        resource.Text `json:"status"`
	Notes         resource.Text `json:"notes"`
}

func normalizeMedicalHistory(w medicalHistoryWire) (MedicalHistory, error) {
	const res = "ehr/" + KindMedicalHistory
	if err := requireIDs(res, w.ID, w.Patient); err != nil {
		return MedicalHistory{}, err
	}
	if w.Condition == "" {
		return MedicalHistory{}, resource.Missing(res, "condition")
	}
	date, err := optionalDate(res, "diagnosis_date", w.DiagnosisDate)
	if err != nil {
		return MedicalHistory{}, err
	}
	return MedicalHistory{
		ID:            w.ID,
		PatientID:     w.Patient,
		Condition:     string(w.Condition),
		DiagnosisDate: date,
		Status:        w.Status.Or("active"),
		Notes:         string(w.Notes),
	}, nil
}

type Allergy struct {
	ID        resource.ID `json:"id"`
	PatientID resource.ID `json:"patientId"`
	Allergen  string      `json:"allergen"`
	Reaction  string      `json:"reaction"`
	Severity  string      `json:"severity"`
	Notes     string      `json:"notes"`
}

type allergyWire struct {
	ID       resource.ID   `json:"id"`
	Patient  resource.ID   `json:"patient"`
	Allergen resource.Text `json:"allergen"`
	Reaction resource.Text `json:"reaction"`
	Severity resource.Text `json:"severity"`
	Notes    resource.Text `json:"notes"`
}

func normalizeAllergy(w allergyWire) (Allergy, error) {
	const res = "ehr/" + KindAllergies
	if err := requireIDs(res, w.ID, w.Patient); err != nil {
		return Allergy{}, err
	}
	if w.Allergen == "" {
		return Allergy{}, resource.Missing(res, "allergen")
	}
	return Allergy{
		ID:        w.ID,
		PatientID: w.Patient,
		Allergen:  string(w.Allergen),
		Reaction:  string(w.Reaction),
		Severity:  w.Severity.Or("mild"),
		Notes:     string(w.Notes),
	}, nil
}

type Medication struct {
	ID        resource.ID `json:"id"`
	PatientID resource.ID `json:"patientId"`
	Name      string      `json:"name"`
	Dosage    string      `json:"dosage"`
	Frequency string      `json:"frequency"`
	StartDate *time.Time  `json:"startDate,omitempty"`
	EndDate   *time.Time  `json:"endDate,omitempty"`
	Status    string      `json:"status"`
}

type medicationWire struct {
	ID        resource.ID   `json:"id"`
	Patient   resource.ID   `json:"patient"`
	Name      resource.Text `json:"name"`
	Dosage    resource.Text `json:"dosage"`
	Frequency resource.Text `json:"frequency"`
	StartDate resource.Text `json:"start_date"`
	EndDate   resource.Text `json:"end_date"`
	Status    resource.Text `json:"status"`
}

func normalizeMedication(w medicationWire) (Medication, error) {
	const res = "ehr/" + KindMedications
	if err := requireIDs(res, w.ID, w.Patient); err != nil {
		return Medication{}, err
	}
	if w.Name == "" {
		return Medication{}, resource.Missing(res, "name")
	}
	start, err := optionalDate(res, "start_date", w.StartDate)
	if err != nil {
		return Medication{}, err
	}
	end, err := optionalDate(res, "end_date", w.EndDate)
	if err != nil {
		return Medication{}, err
	}
	return Medication{
		ID:        w.ID,
		PatientID: w.Patient,
		Name:      string(w.Name),
		Dosage:    string(w.Dosage),
		Frequency: string(w.Frequency),
		StartDate: start,
		EndDate:   end,
		Status:    w.Status.Or("active"),
	}, nil
}

type Immunization struct {
	ID        resource.ID `json:"id"`
	PatientID resource.ID `json:"patientId"`
	Vaccine   string      `json:"vaccine"`
	Date      *time.Time  `json:"date,omitempty"`
	Dose      string      `json:"dose"`
	Provider  string      `json:"provider"`
}

type immunizationWire struct {
	ID       resource.ID   `json:"id"`
	Patient  resource.ID   `json:"patient"`
	Vaccine  resource.Text `json:"vaccine"`
	Date     resource.Text `json:"date"`
	Dose     resource.Text `json:"dose"`
	Provider resource.Text `json:"provider"`
}

func normalizeImmunization(w immunizationWire) (Immunization, error) {
	const res = "ehr/" + KindImmunizations
	if err := requireIDs(res, w.ID, w.Patient); err != nil {
		return Immunization{}, err
	}
	if w.Vaccine == "" {
		return Immunization{}, resource.Missing(res, "vaccine")
	}
	date, err := optionalDate(res, "date", w.Date)
	if err != nil {
		return Immunization{}, err
	}
	return Immunization{
		ID:        w.ID,
		PatientID: w.Patient,
		Vaccine:   string(w.Vaccine),
		Date:      date,
		Dose:      string(w.Dose),
		Provider:  w.Provider.Or("Unknown"),
	}, nil
}

type VitalSign struct {
	ID               resource.ID `json:"id"`
	PatientID        resource.ID `json:"patientId"`
	RecordedAt       time.Time   `json:"recordedAt"`
	BloodPressure    string      `json:"bloodPressure"`
	HeartRate        *float64    `json:"heartRate,omitempty"`
	Temperature      *float64    `json:"temperature,omitempty"`
	RespiratoryRate  *float64    `json:"respiratoryRate,omitempty"`
	OxygenSaturation *float64    `json:"oxygenSaturation,omitempty"`
	Weight           *float64    `json:"weight,omitempty"`
	Height           *float64    `json:"height,omitempty"`
}

type vitalSignWire struct {
	ID               resource.ID     `json:"id"`
	Patient          resource.ID     `json:"patient"`
	RecordedAt       resource.Text   `json:"recorded_at"`
	BloodPressure    resource.Text   `json:"blood_pressure"`
	HeartRate        resource.Number `json:"heart_rate"`
	Temperature      resource.Number `json:"temperature"`
	RespiratoryRate  resource.Number `json:"respiratory_rate"`
	OxygenSaturation resource.Number `json:"oxygen_saturation"`
	Weight           resource.Number `json:"weight"`
	Height           resource.Number `json:"height"`
}

func normalizeVitalSign(w vitalSignWire) (VitalSign, error) {
	const res = "ehr/" + KindVitalSigns
	if err := requireIDs(res, w.ID, w.Patient); err != nil {
		return VitalSign{}, err
	}
	at, err := resource.Date(res, "recorded_at", w.RecordedAt)
	if err != nil {
		return VitalSign{}, err
	}
	return VitalSign{
		ID:               w.ID,
		PatientID:        w.Patient,
		RecordedAt:       at,
		BloodPressure:    string(w.BloodPressure),
		HeartRate:        optionalNumber(w.HeartRate),
		Temperature:      optionalNumber(w.Temperature),
		RespiratoryRate:  optionalNumber(w.RespiratoryRate),
		OxygenSaturation: optionalNumber(w.OxygenSaturation),
		Weight:           optionalNumber(w.Weight),
		Height:           optionalNumber(w.Height),
	}, nil
}

type FamilyHistory struct {
	ID             resource.ID `json:"id"`
	PatientID      resource.ID `json:"patientId"`
	Relation       string      `json:"relation"`
	Condition      string      `json:"condition"`
	AgeAtDiagnosis *float64    `json:"ageAtDiagnosis,omitempty"`
	Notes          string      `json:"notes"`
}

type familyHistoryWire struct {
	ID             resource.ID     `json:"id"`
	Patient        resource.ID     `json:"patient"`
	Relation       resource.Text   `json:"relation"`
	Condition      resource.Text   `json:"condition"`
	AgeAtDiagnosis resource.Number `json:"age_at_diagnosis"`
	Notes          resource.Text   `json:"notes"`
}

func normalizeFamilyHistory(w familyHistoryWire) (FamilyHistory, error) {
	const res = "ehr/" + KindFamilyHistory
	if err := requireIDs(res, w.ID, w.Patient); err != nil {
		return FamilyHistory{}, err
	}
	if w.Condition == "" {
		return FamilyHistory{}, resource.Missing(res, "condition")
	}
	return FamilyHistory{
		ID:             w.ID,
		PatientID:      w.Patient,
		Relation:       w.Relation.Or("Unknown"),
		Condition:      string(w.Condition),
		AgeAtDiagnosis: optionalNumber(w.AgeAtDiagnosis),
		Notes:          string(w.Notes),
	}, nil
}

func requireIDs(res string, id, patient resource.ID) error {
	if id.IsZero() {
		return resource.Missing(res, "id")
	}
	if patient.IsZero() {
		return resource.Missing(res, "patient")
	}
	return nil
}

func optionalDate(res, field string, t resource.Text) (*time.Time, error) {
	if t == "" {
		return nil, nil
	}
	d, err := resource.Date(res, field, t)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func optionalNumber(n resource.Number) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}
