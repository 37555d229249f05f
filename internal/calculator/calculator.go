package calculator

import (
	"fmt"
	"strconv"
	"time"

	"careview/internal/fhir"
)

// Pure clinical calculations. Nothing in this package touches the network
// or the session.

// Condition being treated with hydroxychloroquine.
type Condition string

const (
	ConditionMalaria             Condition = "Malaria"
	ConditionRheumatoidArthritis Condition = "Rheumatoid Arthritis"
	ConditionLupus               Condition = "Lupus"
)

// Conditions lists the selectable conditions in display order.
var Conditions = []Condition{ConditionMalaria, ConditionRheumatoidArthritis, ConditionLupus}

const maxDailyDoseMg = 400

// Dosing returns the hydroxychloroquine dose in mg and the dosing schedule
// for a patient weight and condition. Unknown conditions yield a zero dose.
func Dosing(weightKg float64, condition Condition) (float64, string) {
	switch condition {
	case ConditionMalaria:
		return weightKg * 13, "Single dose, repeated in 6-8 hours if needed."
	case ConditionRheumatoidArthritis, ConditionLupus:
		doseMg := weightKg * 6.5
		if doseMg > maxDailyDoseMg {
			doseMg = maxDailyDoseMg
		}
		return doseMg, "Once daily."
	}
	return 0, "No dosing information available."
}

// CockcroftGault estimates creatinine clearance in mL/min.
//
//	CrCl = (140 - age) x weight_kg x (0.85 if not male) / (72 x Cr)
//
// The formula expects serum creatinine in mg/dL. The historical input label
// says umol/L, which differs by a factor of ~88.4; preserved as-is pending
// domain sign-off, see DESIGN.md.
func CockcroftGault(weightKg, serumCreatinine float64, age int, gender string) float64 {
	sexFactor := 0.85
	if gender == "male" {
		sexFactor = 1.0
	}
	return ((140 - float64(age)) * weightKg * sexFactor) / (72 * serumCreatinine)
}

// AgeInYears derives an age from a FHIR birthDate with year-only precision:
// the difference of calendar years, ignoring month and day.
func AgeInYears(birthDate string, now time.Time) (int, error) {
	if len(birthDate) < 4 {
		return 0, fmt.Errorf("malformed birthDate %q", birthDate)
	}
	year, err := strconv.Atoi(birthDate[:4])
	if err != nil {
		return 0, fmt.Errorf("malformed birthDate %q: %w", birthDate, err)
	}
	return now.Year() - year, nil
}

// SerumCreatinineInput is the user-entered serum creatinine value.
type SerumCreatinineInput struct {
	Value float64 `validate:"gt=0.1,lte=1500"`
}

// DefaultSerumCreatinine is the pre-filled input value.
const DefaultSerumCreatinine = 60.0

// DosingRow is one dated dosing calculation for a historical weight
// observation.
type DosingRow struct {
	Time     time.Time
	WeightKg float64
	DoseMg   float64
	Schedule string
}

// DosingTable runs the dosing calculation once per weight observation,
// producing one dated row per observation in the order given.
func DosingTable(observations []fhir.Observation, condition Condition) []DosingRow {
	rows := make([]DosingRow, 0, len(observations))
	for _, obs := range observations {
		if obs.ValueQuantity == nil {
			continue
		}
		weightKg := obs.ValueQuantity.Value
		doseMg, schedule := Dosing(weightKg, condition)

		effective, err := time.Parse(time.RFC3339, obs.EffectiveDateTime)
		if err != nil {
			// Some servers emit date-only effective times.
			effective, _ = time.Parse("2006-01-02", obs.EffectiveDateTime)
		}

		rows = append(rows, DosingRow{
			Time:     effective,
			WeightKg: weightKg,
			DoseMg:   doseMg,
			Schedule: schedule,
		})
	}
	return rows
}
