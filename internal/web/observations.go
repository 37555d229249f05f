package web

import (
	"net/url"

	"careview/internal/fhir"
	"careview/internal/resolver"
	"careview/internal/session"

	"github.com/gofiber/fiber/v2"
)

// patientLookup is the outcome of running the patient search workflow for
// one request.
type patientLookup struct {
	State        resolver.State
	Requirements []string
	Inputs       map[string]string
	InvalidRaw   string
	Bundle       *fhir.Bundle
	Patients     []fhir.Patient
}

// resolvePatients runs the per-page patient search workflow. With no search
// requirements an unconstrained search is issued immediately; otherwise the
// search waits for all required fields and an explicit trigger. A valid
// result replaces the session cache, an invalid one only surfaces its raw
// payload and offers no selection this cycle.
func (h *Handler) resolvePatients(c *fiber.Ctx, sess *session.Session) (patientLookup, error) {
	requirements := sess.SearchRequirements()
	lookup := patientLookup{Requirements: requirements, Inputs: map[string]string{}}

	var state resolver.State
	var params url.Values
	if requirements == nil {
		state = resolver.StateSearching
	} else {
		for _, field := range requirements {
			lookup.Inputs[field] = c.FormValue(field)
		}
		triggered := c.Method() == fiber.MethodPost && c.FormValue("action") == "search"
		state, params = resolver.Begin(requirements, lookup.Inputs, triggered)
	}
	lookup.State = state

	if state == resolver.StateSearching {
		resp, err := h.fhirClient(sess).Search(c.Context(), "Patient", params)
		if err != nil {
			return lookup, err
		}
		h.telemetry.RecordSearch(c.Context(), "Patient", resp.StatusCode)

		outcome := resolver.Evaluate(resp.Body)
		if !resp.OK() {
			outcome = resolver.Outcome{State: resolver.StateInvalidResult, Raw: resp.Body}
		}
		lookup.State = outcome.State

		switch outcome.State {
		case resolver.StateFound, resolver.StateEmpty:
			sess.SetPatientsResult(outcome.Bundle)
		case resolver.StateInvalidResult:
			// Raw payload shown; a previously cached valid result stays
			// untouched and no selection is offered this cycle.
			lookup.InvalidRaw = prettyJSON(outcome.Raw)
			return lookup, nil
		}
	}

	lookup.Bundle = sess.PatientsResult()
	lookup.Patients = resolver.Patients(lookup.Bundle)
	return lookup, nil
}

type patientDetails struct {
	ID          string
	Identifiers string
	Name        string
	Gender      string
	BirthDate   string
}

type observationRow struct {
	Code  string
	Value string
}

// ShowObservationsPage renders the patient browse page with per-patient
// detail and social-history observation views.
func (h *Handler) ShowObservationsPage(c *fiber.Ctx) error {
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

	data := fiber.Map{
		"Title":        "Observations",
		"Requirements": lookup.Requirements,
		"Inputs":       lookup.Inputs,
		"InvalidRaw":   lookup.InvalidRaw,
		"Patients":     lookup.Patients,
	}
	if lookup.InvalidRaw != "" {
		return h.render(c, "observations", data)
	}

	patientID := c.Query("patient")
	if patientID == "" {
		return h.render(c, "observations", data)
	}
	patient, ok := resolver.PatientByID(lookup.Bundle, patientID)
	if !ok {
		return h.render(c, "observations", data)
	}

	switch c.Query("view") {
	case "details":
		data["Selected"] = patientDetails{
			ID:          patient.ID,
			Identifiers: resolver.Identifiers(patient),
			Name:        resolver.DisplayName(patient),
			Gender:      patient.Gender,
			BirthDate:   patient.BirthDate,
		}

	case "observations":
		params := url.Values{}
		params.Set("category", "social-history")
		params.Set("patient", patient.ID)

		resp, err := h.fhirClient(sess).Search(c.Context(), "Observation", params)
		if err != nil {
			h.logger.ErrorContext(c.Context(), "Observation search failed", "error", err)
			return c.Status(fiber.StatusBadGateway).SendString("Observation search failed")
		}
		h.telemetry.RecordSearch(c.Context(), "Observation", resp.StatusCode)

		data["ObservationsFor"] = resolver.DisplayName(patient)

		bundle, decodeErr := resp.Bundle()
		if !resp.OK() || decodeErr != nil || len(bundle.Entry) == 0 {
			data["ObsMessage"] = "no observations found"
			data["ObsRaw"] = prettyJSON(resp.Body)
			return h.render(c, "observations", data)
		}

		rows := make([]observationRow, 0, len(bundle.Entry))
		for _, entry := range bundle.Entry {
			obs, err := entry.DecodeObservation()
			if err != nil {
				continue
			}
			value, err := obs.Value()
			if err != nil {
				value = ""
			}
			rows = append(rows, observationRow{Code: obs.Code.Text, Value: value})
		}
		data["Observations"] = rows
	}

	return h.render(c, "observations", data)
}
