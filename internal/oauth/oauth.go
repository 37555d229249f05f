package oauth

import (
	"context"
	"errors"
	"fmt"

	"careview/internal/config"

	"golang.org/x/oauth2"
)

// Flow performs the authorization-code-with-PKCE exchange against the
// configured authorization server. The protocol itself is delegated to
// golang.org/x/oauth2; this type only binds it to the workspace providers.
type Flow struct {
	cfg config.OAuthConfig
}

func NewFlow(cfg config.OAuthConfig) *Flow {
	return &Flow{cfg: cfg}
}

// Token is the stored result of a completed exchange, kept raw alongside
// the access token so the Connect page can display the full response.
type Token struct {
	AccessToken string
	TokenType   string
	Raw         map[string]any
}

// GenerateVerifier returns a fresh PKCE code verifier.
func GenerateVerifier() string {
	return oauth2.GenerateVerifier()
}

func (f *Flow) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     f.cfg.ClientID,
		ClientSecret: f.cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  f.cfg.AuthorizeURL,
			TokenURL: f.cfg.TokenURL,
		},
		RedirectURL: f.cfg.AppURL + "/auth/callback",
		Scopes:      []string{f.cfg.Scope},
	}
}

// AuthCodeURL builds the authorization URL for a provider, carrying the
// S256 code challenge and the workspace FHIR endpoint as audience.
func (f *Flow) AuthCodeURL(provider config.Provider, state, verifier string) string {
	return f.oauthConfig().AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("aud", f.cfg.FHIREndpoint(provider.WorkspaceID)),
	)
}

// ExchangeError carries the authorization server's raw error payload. It is
// shown to the user unmodified; nothing is retried.
type ExchangeError struct {
	StatusCode int
	Body       []byte
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed with status %d", e.StatusCode)
}

// Exchange trades the authorization code for a token using the stored PKCE
// verifier. A failed exchange returns an *ExchangeError whose body is the
// server's response as-is.
func (f *Flow) Exchange(ctx context.Context, code, verifier string) (*Token, error) {
	tok, err := f.oauthConfig().Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, &ExchangeError{
				StatusCode: retrieveErr.Response.StatusCode,
				Body:       retrieveErr.Body,
			}
		}
		return nil, fmt.Errorf("token exchange: %w", err)
	}

	raw := map[string]any{
		"access_token": tok.AccessToken,
		"token_type":   tok.TokenType,
	}
	if tok.RefreshToken != "" {
		raw["refresh_token"] = tok.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		raw["expiry"] = tok.Expiry
	}
	for _, key := range []string{"scope", "id_token", "expires_in", "patient"} {
		if v := tok.Extra(key); v != nil {
			raw[key] = v
		}
	}

	return &Token{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		Raw:         raw,
	}, nil
}
