package web

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"careview/internal/calculator"
	"careview/internal/fhir"
	"careview/internal/resolver"
	"careview/internal/session"

	"github.com/gofiber/fiber/v2"
)

const weightLOINC = "http://loinc.org|29463-7"

// searchWeights retrieves the vital-signs weight observations for one
// patient. count limits the number of returned observations; zero means no
// limit.
func (h *Handler) searchWeights(c *fiber.Ctx, sess *session.Session, patient fhir.Patient, count int) (*fhir.Response, error) {
	params := url.Values{}
	params.Set("category", "vital-signs")
	params.Set("patient", "Patient/"+patient.ID)
	params.Set("code", weightLOINC)
	if count > 0 {
		params.Set("_count", strconv.Itoa(count))
	}

	resp, err := h.fhirClient(sess).Search(c.Context(), "Observation", params)
	if err != nil {
		return nil, err
	}
	h.telemetry.RecordSearch(c.Context(), "Observation", resp.StatusCode)
	return resp, nil
}

// ShowPlaquenilPage renders the hydroxychloroquine dosing calculator: one
// dated dosing row per historical weight observation.
func (h *Handler) ShowPlaquenilPage(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to get session")
	}

	lookup, err := h.resolvePatients(c, sess)
	if err != nil {
		h.logger.ErrorContext(c.Context(), "Patient search failed", "error", err)
		return c.Status(fiber.StatusBadGateway).SendString("Patient search failed")
	}
	if err := sess.Save(); err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to save session", "error", err)
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to save session")
	}

	selectedID := c.FormValue("patient_id")
	condition := c.FormValue("condition")
	data := fiber.Map{
		"Title":        "Plaquenil Calculator",
		"Requirements": lookup.Requirements,
		"Inputs":       lookup.Inputs,
		"InvalidRaw":   lookup.InvalidRaw,
		"Patients":     lookup.Patients,
		"Conditions":   calculator.Conditions,
		"SelectedID":   selectedID,
		"Condition":    condition,
	}
	if lookup.InvalidRaw != "" {
		return h.render(c, "plaquenil", data)
	}

	if c.Method() != fiber.MethodPost || c.FormValue("action") != "calculate" || selectedID == "" || condition == "" {
		return h.render(c, "plaquenil", data)
	}
	patient, ok := resolver.PatientByID(lookup.Bundle, selectedID)
	if !ok {
		return h.render(c, "plaquenil", data)
	}

	resp, err := h.searchWeights(c, sess, patient, 0)
	if err != nil {
		h.logger.ErrorContext(c.Context(), "Weight observation search failed", "error", err)
		return c.Status(fiber.StatusBadGateway).SendString("Weight observation search failed")
	}

	bundle, decodeErr := resp.Bundle()
	if !resp.OK() || decodeErr != nil {
		data["Message"] = "no weight observations found."
		data["MessageRaw"] = prettyJSON(resp.Body)
		return h.render(c, "plaquenil", data)
	}
	if bundle.Total == 0 {
		data["Message"] = "no weight observations found."
		return h.render(c, "plaquenil", data)
	}

	observations := make([]fhir.Observation, 0, len(bundle.Entry))
	for _, entry := range bundle.Entry {
		obs, err := entry.DecodeObservation()
		if err != nil {
			continue
		}
		observations = append(observations, obs)
	}

	data["Rows"] = calculator.DosingTable(observations, calculator.Condition(condition))
	return h.render(c, "plaquenil", data)
}

// ShowCreatinineClearancePage renders the Cockcroft-Gault calculator using
// the patient's most recent weight observation.
func (h *Handler) ShowCreatinineClearancePage(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to get session")
	}

	lookup, err := h.resolvePatients(c, sess)
	if err != nil {
		h.logger.ErrorContext(c.Context(), "Patient search failed", "error", err)
		return c.Status(fiber.StatusBadGateway).SendString("Patient search failed")
	}
	if err := sess.Save(); err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to save session", "error", err)
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to save session")
	}

	selectedID := c.FormValue("patient_id")
	data := fiber.Map{
		"Title":        "Creatinine Clearance",
		"Requirements": lookup.Requirements,
		"Inputs":       lookup.Inputs,
		"InvalidRaw":   lookup.InvalidRaw,
		"Patients":     lookup.Patients,
		"SelectedID":   selectedID,
		"Serum":        strconv.FormatFloat(calculator.DefaultSerumCreatinine, 'f', 1, 64),
	}
	if lookup.InvalidRaw != "" {
		return h.render(c, "creatinine", data)
	}

	if c.Method() != fiber.MethodPost || c.FormValue("action") != "calculate" || selectedID == "" {
		return h.render(c, "creatinine", data)
	}
	patient, ok := resolver.PatientByID(lookup.Bundle, selectedID)
	if !ok {
		return h.render(c, "creatinine", data)
	}

	serum := calculator.DefaultSerumCreatinine
	if raw := c.FormValue("serum_creatinine"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			data["Message"] = "serum creatinine must be a number"
			return h.render(c, "creatinine", data)
		}
		serum = parsed
	}
	data["Serum"] = strconv.FormatFloat(serum, 'f', -1, 64)
	if err := h.validate.Validate(calculator.SerumCreatinineInput{Value: serum}); err != nil {
		data["Message"] = "serum creatinine must be between 0.1 and 1500.0"
		return h.render(c, "creatinine", data)
	}

	resp, err := h.searchWeights(c, sess, patient, 1)
	if err != nil {
		h.logger.ErrorContext(c.Context(), "Weight observation search failed", "error", err)
		return c.Status(fiber.StatusBadGateway).SendString("Weight observation search failed")
	}

	bundle, decodeErr := resp.Bundle()
	if !resp.OK() || decodeErr != nil {
		data["Message"] = "no weight observations found."
		data["MessageRaw"] = prettyJSON(resp.Body)
		return h.render(c, "creatinine", data)
	}
	if bundle.Total == 0 || len(bundle.Entry) == 0 {
		data["Message"] = "no weight observations found."
		return h.render(c, "creatinine", data)
	}

	obs, err := bundle.Entry[0].DecodeObservation()
	if err != nil || obs.ValueQuantity == nil {
		data["Message"] = "no weight observations found."
		data["MessageRaw"] = prettyJSON(resp.Body)
		return h.render(c, "creatinine", data)
	}

	age, err := calculator.AgeInYears(patient.BirthDate, time.Now())
	if err != nil {
		data["Message"] = "patient has no usable birth date"
		return h.render(c, "creatinine", data)
	}

	weight := obs.ValueQuantity.Value
	crcl := calculator.CockcroftGault(weight, serum, age, patient.Gender)

	data["Age"] = age
	data["Gender"] = patient.Gender
	data["Weight"] = strconv.FormatFloat(weight, 'f', -1, 64)
	data["Clearance"] = fmt.Sprintf("%.2f", crcl)

	return h.render(c, "creatinine", data)
}
