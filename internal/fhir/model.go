package fhir

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// FHIR R4 resource subset used by the app.
// Reference: https://www.hl7.org/fhir/R4/

// Common FHIR data types
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

type Identifier struct {
	Use    string `json:"use,omitempty"`
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

type HumanName struct {
	Use    string   `json:"use,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

type Quantity struct {
	Value float64 `json:"value,omitempty"`
	Unit  string  `json:"unit,omitempty"`
	System string `json:"system,omitempty"`
	Code   string `json:"code,omitempty"`
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Display   string `json:"display,omitempty"`
}

// Patient is the subset of the Patient resource the app reads.
type Patient struct {
	ResourceType string       `json:"resourceType" validate:"required,eq=Patient"`
	ID           string       `json:"id,omitempty" validate:"required"`
	Identifier   []Identifier `json:"identifier,omitempty"`
	Name         []HumanName  `json:"name,omitempty" validate:"required,min=1"`
	Gender       string       `json:"gender,omitempty"`
	BirthDate    string       `json:"birthDate,omitempty"`
}

// Observation is the subset of the Observation resource the app reads.
// Exactly one of the value[x] variants is expected to be populated.
type Observation struct {
	ResourceType         string            `json:"resourceType" validate:"required,eq=Observation"`
	ID                   string            `json:"id,omitempty"`
	Status               string            `json:"status,omitempty"`
	Category             []CodeableConcept `json:"category,omitempty"`
	Code                 CodeableConcept   `json:"code"`
	Subject              Reference         `json:"subject,omitempty"`
	EffectiveDateTime    string            `json:"effectiveDateTime,omitempty"`
	ValueString          *string           `json:"valueString,omitempty"`
	ValueQuantity        *Quantity         `json:"valueQuantity,omitempty"`
	ValueCodeableConcept *CodeableConcept  `json:"valueCodeableConcept,omitempty"`
}

// Bundle is a search result container.
type Bundle struct {
	ResourceType string  `json:"resourceType"`
	ID           string  `json:"id,omitempty"`
	Type         string  `json:"type,omitempty"`
	Total        int     `json:"total,omitempty"`
	Entry        []Entry `json:"entry,omitempty"`
}

// Entry wraps one resource. The resource is kept raw so that callers can
// check its type before committing to a shape.
type Entry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// OperationOutcome carries error details returned by a FHIR server.
type OperationOutcome struct {
	ResourceType string  `json:"resourceType"`
	Issue        []Issue `json:"issue,omitempty"`
}

type Issue struct {
	Severity    string `json:"severity,omitempty"`
	Code        string `json:"code,omitempty"`
	Diagnostics string `json:"diagnostics,omitempty"`
}

var (
	ErrNotABundle      = errors.New("fhir: response is not a Bundle resource")
	ErrMissingResource = errors.New("fhir: entry has no resource")
	ErrMissingValue    = errors.New("fhir: observation has no populated value variant")
)

// DecodeBundle parses a search response body into a Bundle. It fails with
// ErrNotABundle when the payload is either not JSON or not a Bundle, so
// callers never have to poke at arbitrary keys.
func DecodeBundle(body []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotABundle, err)
	}
	if b.ResourceType != "Bundle" {
		return nil, ErrNotABundle
	}
	return &b, nil
}

// ResourceType peeks at the wrapped resource's type without decoding the
// full resource.
func (e Entry) ResourceType() string {
	if len(e.Resource) == 0 {
		return ""
	}
	var probe struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(e.Resource, &probe); err != nil {
		return ""
	}
	return probe.ResourceType
}

// DecodePatient decodes the wrapped resource as a Patient.
func (e Entry) DecodePatient() (Patient, error) {
	if len(e.Resource) == 0 {
		return Patient{}, ErrMissingResource
	}
	var p Patient
	if err := json.Unmarshal(e.Resource, &p); err != nil {
		return Patient{}, fmt.Errorf("decode patient: %w", err)
	}
	if p.ResourceType != "Patient" {
		return Patient{}, fmt.Errorf("decode patient: unexpected resourceType %q", p.ResourceType)
	}
	return p, nil
}

// DecodeObservation decodes the wrapped resource as an Observation.
func (e Entry) DecodeObservation() (Observation, error) {
	if len(e.Resource) == 0 {
		return Observation{}, ErrMissingResource
	}
	var o Observation
	if err := json.Unmarshal(e.Resource, &o); err != nil {
		return Observation{}, fmt.Errorf("decode observation: %w", err)
	}
	if o.ResourceType != "Observation" {
		return Observation{}, fmt.Errorf("decode observation: unexpected resourceType %q", o.ResourceType)
	}
	return o, nil
}

// Value returns the single populated value variant rendered as text.
func (o Observation) Value() (string, error) {
	switch {
	case o.ValueString != nil:
		return *o.ValueString, nil
	case o.ValueQuantity != nil:
		return strconv.FormatFloat(o.ValueQuantity.Value, 'f', -1, 64), nil
	case o.ValueCodeableConcept != nil:
		return o.ValueCodeableConcept.Text, nil
	}
	return "", ErrMissingValue
}
