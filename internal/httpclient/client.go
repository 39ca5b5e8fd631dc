// Package httpclient is the shared REST transport for integration plugins.
// It layers authentication, rate limiting, bounded retries, and JSON
// decoding over net/http so each integration client only describes its
// endpoints.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/finbridge/finbridge/errors"
	"github.com/finbridge/finbridge/logger"
)

const (
	defaultTimeout = 30 * time.Second
	maxAttempts    = 3
	retryBaseDelay = 500 * time.Millisecond
)

// Auth injects credentials into an outgoing request.
type Auth interface {
	Apply(req *http.Request)
}

// BearerAuth sends "Authorization: Bearer <token>".
type BearerAuth struct {
	Token string
}

func (a BearerAuth) Apply(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.Token)
}

// HeaderAuth sends the credential in a service-specific header, e.g.
// X-API-KEY or X-Ninja-Token.
type HeaderAuth struct {
	Header string
	Value  string
}

func (a HeaderAuth) Apply(req *http.Request) {
	req.Header.Set(a.Header, a.Value)
}

// TokenAuth sends "Authorization: Token <token>" (Paperless-NGX style).
type TokenAuth struct {
	Token string
}

func (a TokenAuth) Apply(req *http.Request) {
	req.Header.Set("Authorization", "Token "+a.Token)
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithRateLimit caps outgoing requests per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithHTTPClient swaps the underlying http.Client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger names the client's logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) { c.log = log }
}

// Client is a JSON REST client bound to one external service's base URL.
// Requests are retried up to three times on 429 and 5xx responses, with
// exponential backoff. Safe for concurrent use.
type Client struct {
	baseURL string
	auth    Auth
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.SugaredLogger
}

// New builds a client for the service at baseURL. A nil auth sends
// unauthenticated requests.
func New(baseURL string, auth Auth, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		auth:    auth,
		http:    &http.Client{Timeout: defaultTimeout},
		log:     logger.Named("httpclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get issues a GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

// Put issues a PUT with a JSON body and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

// Delete issues a DELETE. The response body is discarded.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "encode %s %s body", method, path)
		}
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := retryBaseDelay * time.Duration(1<<(attempt-2))
			c.log.Debugw("retrying request", "method", method, "path", path, "attempt", attempt, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "request cancelled during backoff")
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return errors.Wrap(err, "rate limiter")
			}
		}

		err := c.once(ctx, method, target, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
	}
	return errors.Mark(
		errors.Wrapf(lastErr, "%s %s: giving up after %d attempts", method, path, maxAttempts),
		errors.ErrExternalService)
}

func (c *Client) once(ctx context.Context, method, target string, payload []byte, out interface{}) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return errors.Wrapf(err, "build %s %s", method, target)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.auth != nil {
		c.auth.Apply(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport failures are treated as transient.
		return errors.Mark(errors.Wrapf(err, "%s %s", method, target), errRetryable)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return errors.Mark(
			errors.Newf("%s %s: status %d", method, target, resp.StatusCode),
			errRetryable)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		io.Copy(io.Discard, resp.Body)
		return errors.Mark(
			errors.Newf("%s %s: status %d: check credentials", method, target, resp.StatusCode),
			errors.ErrConfiguration)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Mark(
			errors.Newf("%s %s: status %d: %s", method, target, resp.StatusCode, strings.TrimSpace(string(snippet))),
			errors.ErrExternalService)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Mark(errors.Wrapf(err, "decode %s %s response", method, target), errors.ErrExternalService)
	}
	return nil
}

// errRetryable marks transient upstream failures worth another attempt.
var errRetryable = errors.New("retryable upstream error")

func retryable(err error) bool {
	return errors.Is(err, errRetryable)
}
