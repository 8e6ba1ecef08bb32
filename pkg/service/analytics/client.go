package analytics

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/potenza-io/opsbot/pkg/utils/logging"
	"github.com/potenza-io/opsbot/pkg/utils/safe"
)

const (
	// DefaultTimeout bounds one gateway round trip
	DefaultTimeout = 20 * time.Second

	// sessionTTL is how long the auth cookie is assumed valid
	sessionTTL = 24 * time.Hour

	// refreshMargin re-authenticates slightly before the session expires
	refreshMargin = 5 * time.Minute
)

// client implements Gateway over the internal SQL-over-HTTP endpoint. The
// cookie session is shared across goroutines; authentication refresh and
// queries are serialized by the mutex.
type client struct {
	endpoint   string
	loginURL   string
	credential string
	title      string
	opName     string
	httpClient *http.Client

	mu        sync.Mutex
	expiresAt time.Time
}

// Option is a functional option for gateway configuration
type Option func(*client)

// WithHTTPClient replaces the underlying HTTP client. The default cookie
// jar is preserved if the replacement has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		if hc.Jar == nil {
			hc.Jar = c.httpClient.Jar
		}
		c.httpClient = hc
	}
}

// WithOperation overrides the title and op-name form fields
func WithOperation(title, opName string) Option {
	return func(c *client) {
		c.title = title
		c.opName = opName
	}
}

// New creates a gateway session. loginURL acquires the auth cookie;
// endpoint receives the SQL queries.
func New(endpoint, loginURL, credential string, opts ...Option) (Gateway, error) {
	if endpoint == "" {
		return nil, goerr.New("analytics endpoint is required")
	}
	if loginURL == "" {
		return nil, goerr.New("analytics login URL is required")
	}
	if credential == "" {
		return nil, goerr.New("analytics credential is required")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create cookie jar")
	}

	c := &client{
		endpoint:   endpoint,
		loginURL:   loginURL,
		credential: credential,
		title:      "opsbot",
		opName:     "execute_sql",
		httpClient: &http.Client{Timeout: DefaultTimeout, Jar: jar},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Execute runs one SQL statement and returns the parsed row maps
func (c *client) Execute(ctx context.Context, query string) ([]map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	body, err := c.post(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := ParseRows(body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse gateway response")
	}
	return rows, nil
}

// ensureSession refreshes the auth cookie when the previous one is within
// the expiry margin. Caller holds the mutex.
func (c *client) ensureSession(ctx context.Context) error {
	if time.Now().Before(c.expiresAt.Add(-refreshMargin)) {
		return nil
	}

	logging.From(ctx).Debug("refreshing analytics gateway session")

	form := url.Values{}
	form.Set("key", c.credential)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return goerr.Wrap(err, "failed to build gateway login request")
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return goerr.Wrap(err, "gateway login failed")
	}
	defer safe.Close(ctx, httpResp.Body)
	if _, err := io.Copy(io.Discard, httpResp.Body); err != nil {
		return goerr.Wrap(err, "failed to drain gateway login response")
	}

	if httpResp.StatusCode != http.StatusOK {
		return goerr.New("gateway login returned error", goerr.V("status", httpResp.StatusCode))
	}

	c.expiresAt = time.Now().Add(sessionTTL)
	return nil
}

// post sends the form-encoded query. Caller holds the mutex.
func (c *client) post(ctx context.Context, query string) (string, error) {
	form := url.Values{}
	form.Set("query", query)
	form.Set("key", c.credential)
	form.Set("title", c.title)
	form.Set("op_name", c.opName)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", goerr.Wrap(err, "failed to build gateway request")
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", goerr.Wrap(err, "gateway request failed")
	}
	defer safe.Close(ctx, httpResp.Body)

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read gateway response")
	}
	if httpResp.StatusCode != http.StatusOK {
		// Invalidate the session so the next call re-authenticates
		c.expiresAt = time.Time{}
		return "", goerr.New("gateway returned error",
			goerr.V("status", httpResp.StatusCode),
			goerr.V("body", string(data)),
		)
	}

	return string(data), nil
}
