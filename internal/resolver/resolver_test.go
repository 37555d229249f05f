package resolver

import (
	"encoding/json"
	"testing"

	"careview/internal/fhir"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBegin(t *testing.T) {
	tests := []struct {
		name         string
		requirements []string
		inputs       map[string]string
		triggered    bool
		expected     State
		wantParams   map[string]string
	}{
		{
			name:         "unconstrained_always_searches",
			requirements: nil,
			triggered:    false,
			expected:     StateSearching,
		},
		{
			name:         "constrained_not_triggered",
			requirements: []string{"given", "family"},
			inputs:       map[string]string{"given": "Derrick", "family": "Lin"},
			triggered:    false,
			expected:     StateAwaitingInput,
		},
		{
			name:         "constrained_missing_field",
			requirements: []string{"given", "family", "birthDate"},
			inputs:       map[string]string{"given": "Derrick", "family": "Lin"},
			triggered:    true,
			expected:     StateAwaitingInput,
		},
		{
			name:         "constrained_blank_field",
			requirements: []string{"given", "family"},
			inputs:       map[string]string{"given": "Derrick", "family": "   "},
			triggered:    true,
			expected:     StateAwaitingInput,
		},
		{
			name:         "constrained_complete",
			requirements: []string{"given", "family"},
			inputs:       map[string]string{"given": " Derrick ", "family": "Lin"},
			triggered:    true,
			expected:     StateSearching,
			wantParams:   map[string]string{"given": "Derrick", "family": "Lin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, params := Begin(tt.requirements, tt.inputs, tt.triggered)
			assert.Equal(t, tt.expected, state)
			for field, value := range tt.wantParams {
				assert.Equal(t, value, params.Get(field))
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected State
	}{
		{
			name:     "not_json",
			body:     `<html>gateway error</html>`,
			expected: StateInvalidResult,
		},
		{
			name:     "not_a_bundle",
			body:     `{"resourceType":"OperationOutcome","issue":[{"severity":"error","code":"processing"}]}`,
			expected: StateInvalidResult,
		},
		{
			name:     "entry_absent",
			body:     `{"resourceType":"Bundle","type":"searchset","total":0}`,
			expected: StateInvalidResult,
		},
		{
			name:     "entry_empty",
			body:     `{"resourceType":"Bundle","type":"searchset","total":0,"entry":[]}`,
			expected: StateEmpty,
		},
		{
			name:     "first_entry_not_a_patient",
			body:     `{"resourceType":"Bundle","type":"searchset","entry":[{"resource":{"resourceType":"Observation","status":"final"}}]}`,
			expected: StateInvalidResult,
		},
		{
			name:     "patient_result",
			body:     `{"resourceType":"Bundle","type":"searchset","entry":[{"resource":{"resourceType":"Patient","id":"p1"}}]}`,
			expected: StateFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := Evaluate([]byte(tt.body))
			assert.Equal(t, tt.expected, outcome.State)
			switch outcome.State {
			case StateInvalidResult:
				assert.Equal(t, []byte(tt.body), outcome.Raw, "invalid results surface the raw payload")
				assert.Nil(t, outcome.Bundle)
			default:
				require.NotNil(t, outcome.Bundle)
				assert.Nil(t, outcome.Raw)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, StateEmpty, Classify(nil))
	assert.Equal(t, StateEmpty, Classify(&fhir.Bundle{Entry: []fhir.Entry{}}))
	assert.Equal(t, StateFound, Classify(&fhir.Bundle{Entry: []fhir.Entry{{Resource: json.RawMessage(`{"resourceType":"Patient"}`)}}}))
}

func TestPatients(t *testing.T) {
	bundle := &fhir.Bundle{Entry: []fhir.Entry{
		{Resource: json.RawMessage(`{"resourceType":"Patient","id":"p1","gender":"male"}`)},
		{Resource: json.RawMessage(`{"resourceType":"Observation","status":"final"}`)},
		{Resource: json.RawMessage(`{"resourceType":"Patient","id":"p2","gender":"female"}`)},
	}}

	patients := Patients(bundle)
	require.Len(t, patients, 2, "non patient entries are skipped")
	assert.Equal(t, "p1", patients[0].ID)
	assert.Equal(t, "p2", patients[1].ID)

	assert.Nil(t, Patients(nil))
}

func TestPatientByID(t *testing.T) {
	bundle := &fhir.Bundle{Entry: []fhir.Entry{
		{Resource: json.RawMessage(`{"resourceType":"Patient","id":"p1"}`)},
		{Resource: json.RawMessage(`{"resourceType":"Patient","id":"p2"}`)},
	}}

	patient, ok := PatientByID(bundle, "p2")
	require.True(t, ok)
	assert.Equal(t, "p2", patient.ID)

	_, ok = PatientByID(bundle, "p3")
	assert.False(t, ok)
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		patient  fhir.Patient
		expected string
	}{
		{
			name: "given_and_family",
			patient: fhir.Patient{Name: []fhir.HumanName{
				{Given: []string{"Jane", "Q"}, Family: "Doe"},
			}},
			expected: "Jane Q Doe",
		},
		{
			name: "family_only",
			patient: fhir.Patient{Name: []fhir.HumanName{
				{Family: "Doe"},
			}},
			expected: "Doe",
		},
		{
			name: "given_only",
			patient: fhir.Patient{Name: []fhir.HumanName{
				{Given: []string{"Jane"}},
			}},
			expected: "Jane",
		},
		{
			name:     "no_names",
			patient:  fhir.Patient{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DisplayName(tt.patient))
		})
	}
}

func TestIdentifiers(t *testing.T) {
	patient := fhir.Patient{Identifier: []fhir.Identifier{
		{System: "urn:oid:1.2.3", Value: "12345"},
		{System: "http://hospital.example.org/mrn", Value: "MRN-9"},
	}}

	assert.Equal(t, "urn:oid:1.2.3: 12345; http://hospital.example.org/mrn: MRN-9", Identifiers(patient))
	assert.Equal(t, "", Identifiers(fhir.Patient{}))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "no_result", StateNoResult.String())
	assert.Equal(t, "invalid_result", StateInvalidResult.String())
	assert.Equal(t, "unknown", State(99).String())
}
