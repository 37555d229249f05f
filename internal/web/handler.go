package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"careview/internal/config"
	"careview/internal/fhir"
	"careview/internal/monitoring"
	"careview/internal/oauth"
	"careview/internal/session"
	"careview/internal/validator"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"
)

type Handler struct {
	cfg        *config.Config
	store      *fibersession.Store
	flow       *oauth.Flow
	telemetry  monitoring.Telemetry
	validate   *validator.Validator
	logger     *slog.Logger
	httpClient *http.Client
}

type HandlerOption func(*Handler)

// WithHTTPClient overrides the HTTP client used for FHIR requests.
func WithHTTPClient(httpClient *http.Client) HandlerOption {
	return func(h *Handler) {
		h.httpClient = httpClient
	}
}

func NewHandler(cfg *config.Config, store *fibersession.Store, flow *oauth.Flow, tel monitoring.Telemetry, validate *validator.Validator, opts ...HandlerOption) *Handler {
	h := &Handler{
		cfg:       cfg,
		store:     store,
		flow:      flow,
		telemetry: tel,
		validate:  validate,
		logger:    tel.Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) render(c *fiber.Ctx, name string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	token, _ := c.Locals("token").(string)
	data["CSRFToken"] = token
	return c.Render(name, data)
}

func (h *Handler) session(c *fiber.Ctx) (*session.Session, error) {
	return session.FromCtx(h.store, c)
}

func (h *Handler) fhirClient(sess *session.Session) *fhir.Client {
	opts := []fhir.Option{fhir.WithLogger(h.logger)}
	if h.httpClient != nil {
		opts = append(opts, fhir.WithHTTPClient(h.httpClient))
	}
	return fhir.NewClient(h.cfg.OAuth.FHIREndpoint(sess.WorkspaceID()), sess.AccessToken(), opts...)
}

// ShowConnectPage lists the configured providers and, once authorized,
// the raw token response.
func (h *Handler) ShowConnectPage(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to get session")
	}

	data := fiber.Map{
		"Title":     "Connect",
		"Providers": h.cfg.Providers,
	}
	if sess.Authenticated() {
		data["TokenJSON"] = prettyJSON(mustMarshal(sess.TokenResponse()))
	}

	return h.render(c, "connect", data)
}

// InitiateAuthorization starts the PKCE flow for one provider.
func (h *Handler) InitiateAuthorization(c *fiber.Ctx) error {
	provider, err := h.cfg.ProviderBySlug(c.Params("provider"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).SendString("Unknown provider")
	}

	sess, err := h.session(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to get session")
	}

	state := uuid.NewString()
	verifier := oauth.GenerateVerifier()
	sess.BeginAuthorization(state, verifier, provider.Slug)
	if err := sess.Save(); err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to save session", "error", err)
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to save session")
	}

	return c.Redirect(h.flow.AuthCodeURL(provider, state, verifier), fiber.StatusFound)
}

// CompleteAuthorization handles the provider callback. A failed exchange
// shows the raw error payload and leaves the session unauthenticated.
func (h *Handler) CompleteAuthorization(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to get session")
	}

	state, verifier, providerSlug, ok := sess.PendingAuthorization()
	if !ok || c.Query("state") != state {
		return c.Status(fiber.StatusBadRequest).SendString("Authorization state mismatch")
	}
	sess.ClearPendingAuthorization()

	provider, err := h.cfg.ProviderBySlug(providerSlug)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Unknown provider")
	}

	connectData := fiber.Map{
		"Title":     "Connect",
		"Providers": h.cfg.Providers,
	}

	if errCode := c.Query("error"); errCode != "" {
		if err := sess.Save(); err != nil {
			h.logger.ErrorContext(c.Context(), "Failed to save session", "error", err)
		}
		h.telemetry.RecordTokenExchange(c.Context(), provider.Name, false)
		connectData["AuthError"] = prettyJSON(mustMarshal(fiber.Map{
			"error":             errCode,
			"error_description": c.Query("error_description"),
		}))
		return h.render(c, "connect", connectData)
	}

	token, err := h.flow.Exchange(c.Context(), c.Query("code"), verifier)
	if err != nil {
		if saveErr := sess.Save(); saveErr != nil {
			h.logger.ErrorContext(c.Context(), "Failed to save session", "error", saveErr)
		}
		h.telemetry.RecordTokenExchange(c.Context(), provider.Name, false)

		var exchangeErr *oauth.ExchangeError
		if errors.As(err, &exchangeErr) {
			connectData["AuthError"] = prettyJSON(exchangeErr.Body)
			return h.render(c, "connect", connectData)
		}

		h.logger.ErrorContext(c.Context(), "Token exchange failed", "provider", provider.Name, "error", err)
		return c.Status(fiber.StatusBadGateway).SendString("Token exchange failed")
	}

	sess.SetAuthorization(token, provider)
	if err := sess.Save(); err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to save session", "error", err)
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to save session")
	}

	h.telemetry.RecordTokenExchange(c.Context(), provider.Name, true)
	h.logger.InfoContext(c.Context(), "Authorization completed", "provider", provider.Name, "workspace_id", provider.WorkspaceID)

	return c.Redirect("/", fiber.StatusSeeOther)
}

// Logout clears the whole session.
func (h *Handler) Logout(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to get session")
	}

	if err := sess.Destroy(); err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to destroy session", "error", err)
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to destroy session")
	}

	return c.Redirect("/", fiber.StatusSeeOther)
}

func prettyJSON(body []byte) string {
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return string(body)
	}
	pretty, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return string(body)
	}
	return string(pretty)
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}
