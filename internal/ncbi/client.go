// Package ncbi is the HTTP transport shared by the E-utilities and MeSH
// clients: one token-bucket limiter per API key policy, the tool, email and
// api_key parameters NCBI asks every caller to send, bounded response reads,
// and retries for throttled or briefly unavailable endpoints.
package ncbi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the NCBI E-utilities base URL.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	// DefaultTool identifies this application to NCBI.
	DefaultTool = "pubmed-records"
	// DefaultEmail is the contact email sent to NCBI.
	DefaultEmail = "pubmed-records@users.noreply.github.com"
	// DefaultTimeout bounds a single HTTP exchange.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxResponseBytes caps a response body at 50 MB.
	DefaultMaxResponseBytes int64 = 50 << 20

	// NCBI allows 3 requests per second per client, 10 with an API key.
	RateWithoutKey = 3
	RateWithKey    = 10
)

var (
	// ErrRateLimited is returned once NCBI keeps throttling after all retries.
	ErrRateLimited = errors.New("NCBI rate limit exceeded")
	// ErrResponseTooLarge is returned when a body is larger than MaxBytes.
	ErrResponseTooLarge = errors.New("response exceeds maximum size")
)

// StatusError is a non-200 answer that was not retried, or that was still
// failing after the last retry.
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("NCBI returned HTTP %d for %s", e.StatusCode, e.Endpoint)
}

// RetryPolicy bounds how often a throttled or unavailable request is
// repeated. Waits double from BaseWait up to MaxWait unless the server sends
// Retry-After.
type RetryPolicy struct {
	MaxRetries int
	BaseWait   time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy is used unless WithRetryPolicy overrides it.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 2, BaseWait: 700 * time.Millisecond, MaxWait: 4 * time.Second}

func (p RetryPolicy) wait(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}
	return min(p.BaseWait<<attempt, p.MaxWait)
}

// BaseClient sends rate-limited GET requests to E-utilities endpoints.
type BaseClient struct {
	BaseURL    string
	APIKey     string
	Tool       string
	Email      string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	MaxBytes   int64
	Retry      RetryPolicy
	Logger     zerolog.Logger

	timeout time.Duration
}

// Option configures a BaseClient.
type Option func(*BaseClient)

// WithBaseURL sets the base URL for requests.
func WithBaseURL(u string) Option {
	return func(c *BaseClient) { c.BaseURL = u }
}

// WithAPIKey sets the NCBI API key, which raises the request rate to
// RateWithKey.
func WithAPIKey(key string) Option {
	return func(c *BaseClient) {
		c.APIKey = key
		if key != "" {
			c.Limiter = rate.NewLimiter(rate.Limit(RateWithKey), 1)
		}
	}
}

// WithTool sets the tool parameter for NCBI requests.
func WithTool(tool string) Option {
	return func(c *BaseClient) { c.Tool = tool }
}

// WithEmail sets the email parameter for NCBI requests.
func WithEmail(email string) Option {
	return func(c *BaseClient) { c.Email = email }
}

// WithHTTPClient replaces the HTTP client. A client passed here keeps its own
// Timeout; WithTimeout does not change it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *BaseClient) { c.HTTPClient = hc }
}

// WithMaxResponseBytes sets the maximum allowed response body size.
func WithMaxResponseBytes(n int64) Option {
	return func(c *BaseClient) { c.MaxBytes = n }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
// Non-positive values keep DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *BaseClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *BaseClient) { c.Retry = p }
}

// WithLogger sets the logger used for retry and request diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(c *BaseClient) { c.Logger = l }
}

// NewBaseClient creates a client with the NCBI defaults, then applies opts.
func NewBaseClient(opts ...Option) *BaseClient {
	c := &BaseClient{
		BaseURL:  DefaultBaseURL,
		Tool:     DefaultTool,
		Email:    DefaultEmail,
		MaxBytes: DefaultMaxResponseBytes,
		Limiter:  rate.NewLimiter(rate.Limit(RateWithoutKey), 1),
		Retry:    DefaultRetryPolicy,
		Logger:   zerolog.Nop(),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.timeout}
	}
	return c
}

// requestURL adds the common parameters to params and joins the endpoint
// onto BaseURL.
func (c *BaseClient) requestURL(endpoint string, params url.Values) (string, error) {
	for key, value := range map[string]string{"api_key": c.APIKey, "tool": c.Tool, "email": c.Email} {
		if value != "" {
			params.Set(key, value)
		}
	}
	u, err := url.JoinPath(c.BaseURL, endpoint)
	if err != nil {
		return "", fmt.Errorf("building URL: %w", err)
	}
	return u + "?" + params.Encode(), nil
}

// DoGet performs a GET of endpoint with params plus the common NCBI
// parameters and returns the body. Throttling (HTTP 429, or a 200 whose
// body is NCBI's rate limit message) and 502/503/504 answers are retried
// according to Retry.
func (c *BaseClient) DoGet(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	target, err := c.requestURL(endpoint, params)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		body, retryAfter, err := c.attempt(ctx, endpoint, target)
		var retry retryable
		if !errors.As(err, &retry) {
			return body, err
		}
		if attempt >= c.Retry.MaxRetries {
			return nil, retry.err
		}

		wait := c.Retry.wait(attempt, retryAfter)
		c.Logger.Debug().
			Str("endpoint", endpoint).
			Int("attempt", attempt+1).
			Dur("wait", wait).
			Err(retry.err).
			Msg("NCBI request throttled, retrying")
		if err := sleepWithContext(ctx, wait); err != nil {
			return nil, fmt.Errorf("retry of %s canceled: %w", endpoint, err)
		}
	}
}

// retryable marks an attempt that may succeed if repeated.
type retryable struct{ err error }

func (r retryable) Error() string { return r.err.Error() }
func (r retryable) Unwrap() error { return r.err }

var rateLimitBody = []byte("API rate limit exceeded")

func (c *BaseClient) attempt(ctx context.Context, endpoint, target string) ([]byte, time.Duration, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, retryAfterDuration(resp.Header.Get("Retry-After")), retryable{
			fmt.Errorf("%w (HTTP 429); an API key raises the limit (--api-key or NCBI_API_KEY)", ErrRateLimited),
		}
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return nil, retryAfterDuration(resp.Header.Get("Retry-After")), retryable{
			&StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode},
		}
	default:
		return nil, 0, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.MaxBytes+1))
	if err != nil {
		return nil, 0, fmt.Errorf("reading response: %w", err)
	}
	if int64(len(body)) > c.MaxBytes {
		return nil, 0, fmt.Errorf("%w of %d bytes", ErrResponseTooLarge, c.MaxBytes)
	}
	if len(body) < 256 && bytes.Contains(body, rateLimitBody) {
		return nil, 0, retryable{fmt.Errorf("%w (reported in response body)", ErrRateLimited)}
	}

	c.Logger.Debug().
		Str("endpoint", endpoint).
		Int("bytes", len(body)).
		Msg("NCBI request completed")
	return body, 0, nil
}

// retryAfterDuration reads a Retry-After header given either in seconds or
// as an HTTP date.
func retryAfterDuration(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return max(time.Duration(secs)*time.Second, 0)
	}
	if t, err := http.ParseTime(v); err == nil {
		return max(time.Until(t), 0)
	}
	return 0
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
