package session

import (
	"encoding/gob"
	"time"

	"careview/internal/config"
	"careview/internal/fhir"
	"careview/internal/oauth"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

func init() {
	// Types stored in the session must be gob-registered.
	gob.Register(fhir.Bundle{})
	gob.Register([]string{})
	gob.Register(map[string]any{})
	gob.Register(time.Time{})
}

const (
	keyAccessToken        = "access_token"
	keyWorkspaceID        = "workspace_id"
	keyTokenResponse      = "token_response"
	keySearchRequirements = "search_requirements"
	keyPatientsResult     = "patients_result"
	keyPendingState       = "pending_state"
	keyPendingVerifier    = "pending_verifier"
	keyPendingProvider    = "pending_provider"
)

// Session is a typed view over the per-user session data: the current
// authorization, its search constraints and the cached patient search
// result. It is constructed at request entry and saved before the response
// goes out; there is no process-wide state.
type Session struct {
	sess *session.Session
}

// FromCtx loads the session for the current request.
func FromCtx(store *session.Store, c *fiber.Ctx) (*Session, error) {
	sess, err := store.Get(c)
	if err != nil {
		return nil, err
	}
	return &Session{sess: sess}, nil
}

// Authenticated reports whether a completed authorization is stored.
func (s *Session) Authenticated() bool {
	return s.AccessToken() != ""
}

func (s *Session) AccessToken() string {
	token, _ := s.sess.Get(keyAccessToken).(string)
	return token
}

func (s *Session) WorkspaceID() string {
	id, _ := s.sess.Get(keyWorkspaceID).(string)
	return id
}

// TokenResponse returns the raw token payload of the last exchange.
func (s *Session) TokenResponse() map[string]any {
	raw, _ := s.sess.Get(keyTokenResponse).(map[string]any)
	return raw
}

// SearchRequirements returns the fields that must be collected before a
// patient search; nil means unconstrained search is permitted.
func (s *Session) SearchRequirements() []string {
	reqs, _ := s.sess.Get(keySearchRequirements).([]string)
	return reqs
}

// SetAuthorization stores a completed authorization. Token and workspace id
// are written together, never separately; only the most recently completed
// authorization is kept, and the cached patient result is dropped because
// it belongs to the previous workspace.
func (s *Session) SetAuthorization(token *oauth.Token, provider config.Provider) {
	s.sess.Set(keyAccessToken, token.AccessToken)
	s.sess.Set(keyWorkspaceID, provider.WorkspaceID)
	s.sess.Set(keyTokenResponse, token.Raw)
	if provider.SearchRequirements != nil {
		s.sess.Set(keySearchRequirements, provider.SearchRequirements)
	} else {
		s.sess.Delete(keySearchRequirements)
	}
	s.sess.Delete(keyPatientsResult)
}

// PatientsResult returns the cached patient Bundle, or nil.
func (s *Session) PatientsResult() *fhir.Bundle {
	bundle, ok := s.sess.Get(keyPatientsResult).(fhir.Bundle)
	if !ok {
		return nil
	}
	return &bundle
}

// SetPatientsResult replaces the cached patient Bundle.
func (s *Session) SetPatientsResult(bundle *fhir.Bundle) {
	s.sess.Set(keyPatientsResult, *bundle)
}

// BeginAuthorization records the state and PKCE verifier of an in-flight
// authorization request.
func (s *Session) BeginAuthorization(state, verifier, providerSlug string) {
	s.sess.Set(keyPendingState, state)
	s.sess.Set(keyPendingVerifier, verifier)
	s.sess.Set(keyPendingProvider, providerSlug)
}

// PendingAuthorization returns the in-flight authorization, if any.
func (s *Session) PendingAuthorization() (state, verifier, providerSlug string, ok bool) {
	state, _ = s.sess.Get(keyPendingState).(string)
	verifier, _ = s.sess.Get(keyPendingVerifier).(string)
	providerSlug, _ = s.sess.Get(keyPendingProvider).(string)
	return state, verifier, providerSlug, state != "" && verifier != "" && providerSlug != ""
}

// ClearPendingAuthorization drops the in-flight authorization.
func (s *Session) ClearPendingAuthorization() {
	s.sess.Delete(keyPendingState)
	s.sess.Delete(keyPendingVerifier)
	s.sess.Delete(keyPendingProvider)
}

// Save persists the session.
func (s *Session) Save() error {
	return s.sess.Save()
}

// Destroy clears the whole session, ending the authorization.
func (s *Session) Destroy() error {
	return s.sess.Destroy()
}
