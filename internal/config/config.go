package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	OAuth     OAuthConfig
	Providers []Provider
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Environment  string
}

// OAuthConfig holds the client registration shared by all providers. The
// authorization server endpoints are fixed; only the workspace differs per
// provider.
type OAuthConfig struct {
	ClientID       string
	ClientSecret   string
	AppURL         string
	AuthorizeURL   string
	TokenURL       string
	RevocationURL  string
	Scope          string
	FHIRBaseURL    string
	RequestTimeout time.Duration
}

// Provider is a connectable identity and data provider. SearchRequirements
// lists the patient search fields that must be collected before a search is
// allowed; nil means an unconstrained search is permitted.
type Provider struct {
	Name               string
	Slug               string
	WorkspaceID        string
	SearchRequirements []string
}

type TelemetryConfig struct {
	Enabled        bool
	ExporterURL    string
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRatio  float64
}

func NewConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", ""),
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			Environment:  getEnv("SERVER_ENVIRONMENT", "development"),
		},
		OAuth: OAuthConfig{
			ClientID:       getEnv("CLIENT_ID", ""),
			ClientSecret:   getEnv("CLIENT_SECRET", ""),
			AppURL:         getEnv("APP_URL", "http://localhost:8080"),
			AuthorizeURL:   getEnv("MELDRX_AUTHORIZE_URL", "https://app.meldrx.com/connect/authorize"),
			TokenURL:       getEnv("MELDRX_TOKEN_URL", "https://app.meldrx.com/connect/token"),
			RevocationURL:  getEnv("MELDRX_REVOCATION_URL", "https://app.meldrx.com/connect/revocation"),
			Scope:          "openid profile patient/*.read",
			FHIRBaseURL:    getEnv("MELDRX_FHIR_BASE_URL", "https://app.meldrx.com/api/fhir"),
			RequestTimeout: getEnvDuration("FHIR_REQUEST_TIMEOUT", 30*time.Second),
		},
		Providers: []Provider{
			{
				Name:        "MeldRx",
				Slug:        "meldrx",
				WorkspaceID: getEnv("MELDRX_WORKSPACE_ID", ""),
			},
			{
				Name:        "SmartHealth IT",
				Slug:        "smarthealth-it",
				WorkspaceID: getEnv("SMART_WORKSPACE_ID", ""),
			},
			{
				Name:               "Epic",
				Slug:               "epic",
				WorkspaceID:        getEnv("EPIC_WORKSPACE_ID", ""),
				SearchRequirements: []string{"given", "family", "birthDate"},
			},
		},
		Telemetry: TelemetryConfig{
			Enabled:        getEnvBool("TELEMETRY_ENABLED", false),
			ExporterURL:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "careview"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			Environment:    getEnv("SERVER_ENVIRONMENT", "development"),
			SamplingRatio:  getEnvFloat("OTEL_SAMPLING_RATIO", 1.0),
		},
	}
}

// ProviderBySlug returns the configured provider with the given slug.
func (c *Config) ProviderBySlug(slug string) (Provider, error) {
	for _, p := range c.Providers {
		if p.Slug == slug {
			return p, nil
		}
	}
	return Provider{}, fmt.Errorf("unknown provider %q", slug)
}

// FHIREndpoint returns the workspace-scoped FHIR endpoint.
func (c *OAuthConfig) FHIREndpoint(workspaceID string) string {
	return c.FHIRBaseURL + "/" + workspaceID
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
