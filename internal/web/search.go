package web

import (
	"github.com/gofiber/fiber/v2"
)

const (
	defaultQueryUnconstrained = "Patient?gender=male"
	defaultQueryConstrained   = "Patient?family=Lin&given=Derrick&birthdate=1973-06-03"
)

// ShowSearchPage renders the raw query form and, on submit, the upstream
// response exactly as received.
func (h *Handler) ShowSearchPage(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to get session")
	}

	query := c.FormValue("query")
	if query == "" {
		if sess.SearchRequirements() == nil {
			query = defaultQueryUnconstrained
		} else {
			query = defaultQueryConstrained
		}
	}

	data := fiber.Map{
		"Title":    "Search",
		"Endpoint": h.cfg.OAuth.FHIREndpoint(sess.WorkspaceID()),
		"Query":    query,
	}

	if c.Method() == fiber.MethodPost {
		resp, err := h.fhirClient(sess).RawQuery(c.Context(), query)
		if err != nil {
			h.logger.ErrorContext(c.Context(), "FHIR query failed", "error", err)
			return c.Status(fiber.StatusBadGateway).SendString("FHIR query failed")
		}
		h.telemetry.RecordSearch(c.Context(), "raw", resp.StatusCode)

		if resp.OK() {
			data["Status"] = "Success"
		} else {
			data["Status"] = "Error"
		}
		data["Result"] = prettyJSON(resp.Body)
	}

	return h.render(c, "search", data)
}
