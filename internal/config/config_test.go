package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "development", cfg.Server.Environment)

	assert.Equal(t, "http://localhost:8080", cfg.OAuth.AppURL)
	assert.Equal(t, "https://app.meldrx.com/connect/authorize", cfg.OAuth.AuthorizeURL)
	assert.Equal(t, "https://app.meldrx.com/connect/token", cfg.OAuth.TokenURL)
	assert.Equal(t, "openid profile patient/*.read", cfg.OAuth.Scope)
	assert.Equal(t, "https://app.meldrx.com/api/fhir", cfg.OAuth.FHIRBaseURL)

	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "careview", cfg.Telemetry.ServiceName)
	assert.Equal(t, 1.0, cfg.Telemetry.SamplingRatio)
}

func TestNewConfigFromEnvironment(t *testing.T) {
	t.Setenv("CLIENT_ID", "client-abc")
	t.Setenv("CLIENT_SECRET", "secret-xyz")
	t.Setenv("APP_URL", "https://careview.example.org")
	t.Setenv("PORT", "9090")
	t.Setenv("MELDRX_WORKSPACE_ID", "ws-meldrx")
	t.Setenv("SMART_WORKSPACE_ID", "ws-smart")
	t.Setenv("EPIC_WORKSPACE_ID", "ws-epic")
	t.Setenv("TELEMETRY_ENABLED", "true")
	t.Setenv("FHIR_REQUEST_TIMEOUT", "5s")

	cfg := NewConfig()

	assert.Equal(t, "client-abc", cfg.OAuth.ClientID)
	assert.Equal(t, "secret-xyz", cfg.OAuth.ClientSecret)
	assert.Equal(t, "https://careview.example.org", cfg.OAuth.AppURL)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.OAuth.RequestTimeout)
	assert.True(t, cfg.Telemetry.Enabled)

	meldrx, err := cfg.ProviderBySlug("meldrx")
	require.NoError(t, err)
	assert.Equal(t, "ws-meldrx", meldrx.WorkspaceID)
}

func TestProviders(t *testing.T) {
	cfg := NewConfig()

	tests := []struct {
		slug         string
		name         string
		requirements []string
	}{
		{slug: "meldrx", name: "MeldRx", requirements: nil},
		{slug: "smarthealth-it", name: "SmartHealth IT", requirements: nil},
		{slug: "epic", name: "Epic", requirements: []string{"given", "family", "birthDate"}},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			provider, err := cfg.ProviderBySlug(tt.slug)
			require.NoError(t, err)
			assert.Equal(t, tt.name, provider.Name)
			assert.Equal(t, tt.requirements, provider.SearchRequirements)
		})
	}

	_, err := cfg.ProviderBySlug("cerner")
	assert.ErrorContains(t, err, "unknown provider")
}

func TestFHIREndpoint(t *testing.T) {
	oauth := OAuthConfig{FHIRBaseURL: "https://app.meldrx.com/api/fhir"}
	assert.Equal(t, "https://app.meldrx.com/api/fhir/ws-1", oauth.FHIREndpoint("ws-1"))
}

func TestEnvHelpersIgnoreMalformedValues(t *testing.T) {
	t.Setenv("TELEMETRY_ENABLED", "definitely")
	t.Setenv("OTEL_SAMPLING_RATIO", "lots")
	t.Setenv("SERVER_READ_TIMEOUT", "soon")

	cfg := NewConfig()

	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 1.0, cfg.Telemetry.SamplingRatio)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
}
