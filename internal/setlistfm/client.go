// Package setlistfm provides access to the setlist.fm REST catalog: a rate-limited
// request primitive with exponential backoff, the artist search endpoint, and a
// paginator that walks an artist's full setlist history.
package setlistfm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/rewired-gh/setoracle/internal/logger"
)

const (
	// DefaultBaseURL is the setlist.fm REST API root.
	DefaultBaseURL = "https://api.setlist.fm/rest/1.0"
	// DefaultMaxAttempts is the retry budget for rate-limited requests.
	DefaultMaxAttempts = 5
	// DefaultRetryDelayBase is the first backoff delay; it doubles after each retry.
	DefaultRetryDelayBase = 500 * time.Millisecond
)

// ErrRateLimitExceeded is returned once every attempt of a request was rate limited.
var ErrRateLimitExceeded = eris.New("rate limit exceeded")

// HTTPError is returned for any non-success status other than 429.
type HTTPError struct {
	Status   int
	Endpoint string
	Body     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("setlistfm: HTTP %d from %s: %s", e.Status, e.Endpoint, e.Body)
}

// ClientConfig is the process-wide request configuration. It is built once,
// shared by pointer and never mutated after construction.
type ClientConfig struct {
	BaseURL           string
	APIKey            string
	Language          string
	Timeout           time.Duration
	MaxAttempts       int
	RetryDelayBase    time.Duration
	RequestsPerSecond float64 // 0 disables request pacing
	SearchSort        string
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Client issues single logical requests against the catalog.
type Client struct {
	cfg         *ClientConfig
	httpClient  *http.Client
	limiter     *rate.Limiter
	sleep       SleepFunc
	maxAttempts int
}

// Option configures the Client.
type Option func(*Client)

// WithSleeper replaces the backoff sleep (for testing).
func WithSleeper(fn SleepFunc) Option {
	return func(c *Client) {
		c.sleep = fn
	}
}

// NewClient creates a new catalog client
func NewClient(cfg *ClientConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:     limiter,
		sleep:       Sleep,
		maxAttempts: maxAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request performs GET {base}{endpoint}?{query} and returns the response body.
// A 429 is retried after a backoff that starts at RetryDelayBase and doubles,
// until MaxAttempts attempts were made; any other non-success status fails
// immediately with *HTTPError.
func (c *Client) Request(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	reqURL := c.cfg.BaseURL + endpoint
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	delay := c.cfg.RetryDelayBase
	for attempt := 1; ; attempt++ {
		// Retries are paced by the backoff sleep alone.
		if attempt == 1 {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "rate limiter wait")
			}
		}

		body, status, err := c.do(ctx, reqURL)
		if err != nil {
			return nil, eris.Wrapf(err, "request %s", endpoint)
		}

		switch {
		case status == http.StatusTooManyRequests:
			if attempt >= c.maxAttempts {
				return nil, eris.Wrapf(ErrRateLimitExceeded, "%s: %d attempts", endpoint, attempt)
			}
			logger.Warn("Rate limited on %s (attempt %d/%d), backing off %v", endpoint, attempt, c.maxAttempts, delay)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, eris.Wrap(err, "backoff interrupted")
			}
			delay *= 2

		case status < 200 || status >= 300:
			return nil, &HTTPError{Status: status, Endpoint: endpoint, Body: truncate(string(body), 200)}

		default:
			return body, nil
		}
	}
}

func (c *Client) do(ctx context.Context, reqURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, err
	}

	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if c.cfg.Language != "" {
		req.Header.Set("Accept-Language", c.cfg.Language)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "read body")
	}
	return body, resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
