package calculator

import (
	"testing"
	"time"

	"careview/internal/fhir"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCockcroftGault(t *testing.T) {
	tests := []struct {
		name     string
		weightKg float64
		serum    float64
		age      int
		gender   string
		expected float64
	}{
		{
			name:     "reference_male",
			weightKg: 70,
			serum:    1.0,
			age:      50,
			gender:   "male",
			expected: 87.50,
		},
		{
			name:     "female_applies_085_factor",
			weightKg: 70,
			serum:    1.0,
			age:      50,
			gender:   "female",
			expected: 87.50 * 0.85,
		},
		{
			name:     "unknown_gender_treated_as_not_male",
			weightKg: 70,
			serum:    1.0,
			age:      50,
			gender:   "unknown",
			expected: 87.50 * 0.85,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CockcroftGault(tt.weightKg, tt.serum, tt.age, tt.gender)
			assert.InDelta(t, tt.expected, got, 0.01)
		})
	}
}

func TestDosing(t *testing.T) {
	tests := []struct {
		name         string
		weightKg     float64
		condition    Condition
		expectedDose float64
		expectedText string
	}{
		{
			name:         "malaria_uncapped",
			weightKg:     50,
			condition:    ConditionMalaria,
			expectedDose: 650,
			expectedText: "Single dose, repeated in 6-8 hours if needed.",
		},
		{
			name:         "rheumatoid_arthritis_under_cap",
			weightKg:     40,
			condition:    ConditionRheumatoidArthritis,
			expectedDose: 260,
			expectedText: "Once daily.",
		},
		{
			name:         "rheumatoid_arthritis_capped",
			weightKg:     70,
			condition:    ConditionRheumatoidArthritis,
			expectedDose: 400,
			expectedText: "Once daily.",
		},
		{
			name:         "lupus_capped",
			weightKg:     80,
			condition:    ConditionLupus,
			expectedDose: 400,
			expectedText: "Once daily.",
		},
		{
			name:         "unknown_condition",
			weightKg:     70,
			condition:    Condition("Unknown"),
			expectedDose: 0,
			expectedText: "No dosing information available.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dose, schedule := Dosing(tt.weightKg, tt.condition)
			assert.InDelta(t, tt.expectedDose, dose, 0.001)
			assert.Equal(t, tt.expectedText, schedule)
		})
	}
}

func TestAgeInYears(t *testing.T) {
	now := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		birthDate string
		expected  int
		wantErr   bool
	}{
		{name: "year_only_precision", birthDate: "1976-12-31", expected: 50},
		{name: "full_date", birthDate: "1976-01-01", expected: 50},
		{name: "bare_year", birthDate: "2000", expected: 26},
		{name: "empty", birthDate: "", wantErr: true},
		{name: "garbage", birthDate: "19xx-01-01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AgeInYears(tt.birthDate, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func weightObservation(effective string, weightKg float64) fhir.Observation {
	return fhir.Observation{
		ResourceType:      "Observation",
		EffectiveDateTime: effective,
		ValueQuantity:     &fhir.Quantity{Value: weightKg, Unit: "kg"},
	}
}

func TestDosingTable(t *testing.T) {
	observations := []fhir.Observation{
		weightObservation("2023-05-01T10:00:00Z", 50),
		weightObservation("2021-02-11T08:30:00Z", 62),
		weightObservation("2024-09-20T16:45:00Z", 70),
	}

	rows := DosingTable(observations, ConditionRheumatoidArthritis)
	require.Len(t, rows, 3)

	// One row per observation, in the order returned from the query.
	assert.Equal(t, 50.0, rows[0].WeightKg)
	assert.Equal(t, 62.0, rows[1].WeightKg)
	assert.Equal(t, 70.0, rows[2].WeightKg)

	assert.InDelta(t, 325.0, rows[0].DoseMg, 0.001)
	assert.InDelta(t, 400.0, rows[1].DoseMg, 0.001) // 62*6.5=403 capped
	assert.InDelta(t, 400.0, rows[2].DoseMg, 0.001)

	assert.Equal(t, time.Date(2023, time.May, 1, 10, 0, 0, 0, time.UTC), rows[0].Time)
	for _, row := range rows {
		assert.Equal(t, "Once daily.", row.Schedule)
	}
}

func TestDosingTableSkipsObservationsWithoutQuantity(t *testing.T) {
	valueString := "not a weight"
	observations := []fhir.Observation{
		{ResourceType: "Observation", ValueString: &valueString},
		weightObservation("2024-01-01T00:00:00Z", 55),
	}

	rows := DosingTable(observations, ConditionMalaria)
	require.Len(t, rows, 1)
	assert.InDelta(t, 715.0, rows[0].DoseMg, 0.001)
}

func TestDosingTableParsesDateOnlyEffectiveTimes(t *testing.T) {
	rows := DosingTable([]fhir.Observation{weightObservation("2024-03-15", 60)}, ConditionMalaria)
	require.Len(t, rows, 1)
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), rows[0].Time)
}
