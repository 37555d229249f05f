package resolver

import (
	"net/url"
	"strings"

	"careview/internal/fhir"
)

// State of the patient lookup workflow on a page. Each user interaction
// runs the reducer once: (current state, input) in, (new state, effects)
// out. No state lives outside the session.
type State int

const (
	// StateNoResult means nothing has been searched yet this session.
	StateNoResult State = iota
	// StateAwaitingInput means required search fields are still missing or
	// the search has not been triggered.
	StateAwaitingInput
	// StateSearching means a search should be issued now.
	StateSearching
	// StateFound means the last search produced a valid non-empty result.
	StateFound
	// StateEmpty means the last search produced a valid result with zero
	// entries; no selection is offered.
	StateEmpty
	// StateInvalidResult means the last response was not a usable Patient
	// bundle; the raw payload is shown and any previous valid result stays
	// cached.
	StateInvalidResult
)

func (s State) String() string {
	switch s {
	case StateNoResult:
		return "no_result"
	case StateAwaitingInput:
		return "awaiting_input"
	case StateSearching:
		return "searching"
	case StateFound:
		return "found"
	case StateEmpty:
		return "empty"
	case StateInvalidResult:
		return "invalid_result"
	}
	return "unknown"
}

// Begin decides whether a patient search may be issued. With nil
// requirements the search is unconstrained and always proceeds. With
// requirements set, every field must be filled in and the search must have
// been explicitly triggered; the returned values carry the collected
// constraints.
func Begin(requirements []string, inputs map[string]string, triggered bool) (State, url.Values) {
	if requirements == nil {
		return StateSearching, nil
	}
	if !triggered {
		return StateAwaitingInput, nil
	}
	params := url.Values{}
	for _, field := range requirements {
		value := strings.TrimSpace(inputs[field])
		if value == "" {
			return StateAwaitingInput, nil
		}
		params.Set(field, value)
	}
	return StateSearching, params
}

// Outcome classifies a search response.
type Outcome struct {
	State  State
	Bundle *fhir.Bundle
	// Raw holds the payload to display when the result is invalid.
	Raw []byte
}

// Evaluate validates a patient search response body. A result is invalid
// when the entry list is absent or its first resource is not a Patient; in
// that case the raw payload is surfaced and the caller must leave any
// previously cached result untouched. An entry list that is present but
// empty is a valid empty result.
func Evaluate(body []byte) Outcome {
	bundle, err := fhir.DecodeBundle(body)
	if err != nil {
		return Outcome{State: StateInvalidResult, Raw: body}
	}
	if bundle.Entry == nil {
		return Outcome{State: StateInvalidResult, Raw: body}
	}
	if len(bundle.Entry) == 0 {
		return Outcome{State: StateEmpty, Bundle: bundle}
	}
	if bundle.Entry[0].ResourceType() != "Patient" {
		return Outcome{State: StateInvalidResult, Raw: body}
	}
	return Outcome{State: StateFound, Bundle: bundle}
}

// Classify reports Found or Empty for an already cached bundle.
func Classify(bundle *fhir.Bundle) State {
	if bundle == nil || len(bundle.Entry) == 0 {
		return StateEmpty
	}
	return StateFound
}

// Patients decodes the Patient resources of a bundle, skipping entries
// that do not decode.
func Patients(bundle *fhir.Bundle) []fhir.Patient {
	if bundle == nil {
		return nil
	}
	patients := make([]fhir.Patient, 0, len(bundle.Entry))
	for _, entry := range bundle.Entry {
		patient, err := entry.DecodePatient()
		if err != nil {
			continue
		}
		patients = append(patients, patient)
	}
	return patients
}

// PatientByID returns the patient with the given id from a bundle.
func PatientByID(bundle *fhir.Bundle, id string) (fhir.Patient, bool) {
	for _, patient := range Patients(bundle) {
		if patient.ID == id {
			return patient, true
		}
	}
	return fhir.Patient{}, false
}

// DisplayName renders a patient's first name as "<given...> <family>",
// joining multiple given names with single spaces.
func DisplayName(p fhir.Patient) string {
	if len(p.Name) == 0 {
		return ""
	}
	name := p.Name[0]
	given := strings.Join(name.Given, " ")
	if given == "" {
		return name.Family
	}
	if name.Family == "" {
		return given
	}
	return given + " " + name.Family
}

// Identifiers renders a patient's identifiers as "system: value" pairs
// joined by "; ".
func Identifiers(p fhir.Patient) string {
	parts := make([]string, 0, len(p.Identifier))
	for _, id := range p.Identifier {
		parts = append(parts, id.System+": "+id.Value)
	}
	return strings.Join(parts, "; ")
}
