package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/potenza-io/opsbot/pkg/utils/safe"
)

const (
	// DefaultBaseURL is the OpenAI responses endpoint root
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when no model is configured
	DefaultModel = "gpt-4.1"

	// DefaultTimeout bounds a single model invocation
	DefaultTimeout = 20 * time.Second
)

// client implements Client over the HTTP responses API
type client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option is a functional option for client configuration
type Option func(*client)

// WithBaseURL overrides the API root (used by tests)
func WithBaseURL(u string) Option {
	return func(c *client) {
		c.baseURL = u
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// New creates a responses-API client with the given API key
func New(apiKey string, opts ...Option) (Client, error) {
	if apiKey == "" {
		return nil, goerr.New("LLM API key is required")
	}

	c := &client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *client) Generate(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal LLM request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build LLM request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, goerr.Wrap(err, "LLM request failed", goerr.V("model", req.Model))
	}
	defer safe.Close(ctx, httpResp.Body)

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read LLM response body")
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, goerr.New("LLM endpoint returned error",
			goerr.V("status", httpResp.StatusCode),
			goerr.V("body", string(data)),
			goerr.V("model", req.Model),
		)
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, goerr.Wrap(err, "failed to decode LLM response")
	}
	if resp.ID == "" {
		return nil, goerr.New("LLM response has no id")
	}

	return &resp, nil
}
