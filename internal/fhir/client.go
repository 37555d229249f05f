package fhir

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client issues authenticated search requests against one workspace-scoped
// FHIR endpoint. A non-2xx response is not a Go error; the payload is
// returned as-is so pages can show it to the user unmodified.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Response is the outcome of a single FHIR request.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the upstream answered with a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Bundle decodes the response body as a Bundle.
func (r *Response) Bundle() (*Bundle, error) {
	return DecodeBundle(r.Body)
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the given endpoint and bearer token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search issues GET {base}/{resourceType}?{params}. Params are AND-combined
// query parameters; nil or empty params mean "return all".
func (c *Client) Search(ctx context.Context, resourceType string, params url.Values) (*Response, error) {
	query := resourceType
	if len(params) > 0 {
		query += "?" + params.Encode()
	}
	return c.RawQuery(ctx, query)
}

// RawQuery issues GET {base}/{query} with the query string taken verbatim,
// e.g. "Patient?gender=male".
func (c *Client) RawQuery(ctx context.Context, query string) (*Response, error) {
	u := c.baseURL + "/" + strings.TrimPrefix(query, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build fhir request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/fhir+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fhir request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read fhir response: %w", err)
	}

	c.logger.DebugContext(ctx, "FHIR request completed", "url", u, "status", resp.StatusCode, "bytes", len(body))

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}
