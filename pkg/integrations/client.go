package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/matzehuels/pkghealth/pkg/httputil"
	"github.com/matzehuels/pkghealth/pkg/observability"
)

// Client provides shared HTTP functionality for the upstream API clients.
type Client struct {
	http       *http.Client
	headers    map[string]string
	limiter    *rate.Limiter
	breakers   *httputil.Breakers
	attempts   int
	retryDelay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit allows at most rps requests per second with the given burst.
// rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithBreakers routes every request through a per-host circuit breaker.
func WithBreakers(b *httputil.Breakers) Option {
	return func(c *Client) { c.breakers = b }
}

// WithRetries sets the number of attempts for retryable failures and the
// initial backoff between them. attempts <= 1 disables retries.
func WithRetries(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.attempts = max(attempts, 1)
		c.retryDelay = delay
	}
}

// NewClient creates a Client. Headers are applied to every request.
func NewClient(headers map[string]string, opts ...Option) *Client {
	c := &Client{
		http:       NewHTTPClient(nil),
		headers:    headers,
		attempts:   3,
		retryDelay: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a GET and JSON-decodes the response into v.
func (c *Client) Get(ctx context.Context, rawURL string, v any) error {
	return c.do(ctx, http.MethodGet, rawURL, nil, v)
}

// Post JSON-encodes body, POSTs it, and decodes the response into v.
func (c *Client) Post(ctx context.Context, rawURL string, body, v any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, rawURL, data, v)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte, v any) error {
	return httputil.Retry(ctx, c.attempts, c.retryDelay, func() error {
		return c.once(ctx, method, rawURL, body, v)
	})
}

// once performs a single attempt. Only transport failures and retryable
// statuses are reported to the breaker as failures.
func (c *Client) once(ctx context.Context, method, rawURL string, body []byte, v any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := c.newRequest(ctx, method, rawURL, body)
	if err != nil {
		return err
	}
	host, path := req.URL.Host, req.URL.EscapedPath()
	hooks := observability.HTTP()

	var result error
	call := func() error {
		hooks.OnRequest(ctx, method, host, path)
		start := time.Now()

		resp, err := c.http.Do(req)
		if err != nil {
			hooks.OnError(ctx, method, host, path, err)
			return httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
		}
		defer resp.Body.Close()
		hooks.OnResponse(ctx, method, host, path, resp.StatusCode, time.Since(start))

		if err := checkStatus(resp.StatusCode, rawURL); err != nil {
			if httputil.IsRetryable(err) {
				return err
			}
			result = err
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			result = fmt.Errorf("decode %s: %w", rawURL, err)
		}
		return nil
	}

	if c.breakers != nil {
		err = c.breakers.Do(host, call)
	} else {
		err = call()
	}
	if err != nil {
		return err
	}
	return result
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body []byte) (*http.Request, error) {
	var (
		req *http.Request
		err error
	)
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	} else {
		req, err = http.NewRequestWithContext(ctx, method, rawURL, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func checkStatus(code int, rawURL string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests || code >= 500:
		return httputil.Retryable(&StatusError{StatusCode: code, URL: rawURL})
	default:
		return &StatusError{StatusCode: code, URL: rawURL}
	}
}
