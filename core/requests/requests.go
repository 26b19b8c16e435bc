// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package requests

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"codeberg.org/safebites/safebites/core/audit"
	"codeberg.org/safebites/safebites/core/idgen"
	"codeberg.org/safebites/safebites/core/keymanager"
)

const (
	// clientSessionCacheSize defines the size of the TLS session cache.
	clientSessionCacheSize = 20

	// maxIdleConnsPerHost defines maximum idle connections to keep per host.
	maxIdleConnsPerHost = 20

	// maxResponseSize caps how much of a backend response is read.
	maxResponseSize = 4 << 20
)

var (
	errInvalidJSON      = errors.New("response contained invalid JSON")
	errAPIResponseError = errors.New("API response indicated error")
	errNoKeyAvailable   = errors.New("all translation API keys are timed out")
	errRateLimited      = errors.New("rate limiter refused request")
)

// HTTPClient is a pre-configured http.Client.
var HTTPClient = &http.Client{
	Transport: &http.Transport{
		TLSClientConfig: &tls.Config{
			ClientSessionCache: tls.NewLRUClientSessionCache(clientSessionCacheSize),
			MinVersion:         tls.VersionTLS12,
		},
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
	},
}

// APIError represents a non-2xx response from the translation backend.
type APIError struct {
	// StatusCode is the HTTP status code from the response.
	StatusCode int

	// Message contains the error message from the API response, or the status text.
	Message string

	// Err is the underlying error cause.
	Err error
}

// Error returns a formatted error message including the status code and API message if available.
func (e *APIError) Error() string {
	var b strings.Builder

	b.WriteString(e.Err.Error())

	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}

	fmt.Fprintf(&b, " (status code: %d)", e.StatusCode)

	return b.String()
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// NewClient builds a Client from opts.
func NewClient(opts Options) *Client {
	c := &Client{
		http:      opts.HTTPClient,
		keys:      opts.Keys,
		keyHeader: opts.KeyHeader,
		cache:     opts.Cache,
		userAgent: opts.UserAgent,
	}

	if c.http == nil {
		c.http = HTTPClient
	}

	if opts.RequestsPerSecond > 0 {
		burst := max(opts.Burst, 1)

		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return c
}

// GetJSON performs a GET request and returns the validated JSON body.
//
// Returns an error if:
//   - The request fails or the rate limiter wait is cancelled
//   - The response status is not 2xx
//   - The response contains invalid JSON
//   - The JSON payload carries an "error" object
//   - opts.Validate rejects the body
//
// Only bodies that pass every check are cached, so a bad response is never
// replayed from the cache. The cache key never includes the API key since the
// key travels in a header.
func (c *Client) GetJSON(ctx context.Context, opts RequestOptions) ([]byte, error) {
	opts.Method = http.MethodGet

	useCache := c.cache != nil && !opts.NoCache
	cacheKey := generateCacheKey(opts.fullURL())

	if useCache {
		if body, ok := c.cache.Get(cacheKey); ok {
			return body, nil
		}
	}

	body, err := c.do(ctx, opts)
	if err != nil {
		return nil, err
	}

	body, err = processJSONResponse(body)
	if err != nil {
		return nil, err
	}

	if opts.Validate != nil {
		if err := opts.Validate(body); err != nil {
			return nil, err
		}
	}

	if useCache {
		c.cache.Add(cacheKey, body)
	}

	return body, nil
}

// Do sends an HTTP request and returns the response together with its body bytes.
//
// Do bypasses the cache and does not check for non-OK status codes, leaving
// that task to the caller.
func (c *Client) Do(ctx context.Context, opts RequestOptions) (*http.Response, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", errRateLimited, err)
		}
	}

	var key *keymanager.Key

	if c.keys != nil {
		key = c.keys.Get()
		if key == nil {
			c.keys.ResetAll()

			return nil, nil, fmt.Errorf("%w (%d keys); consider supplying additional keys", errNoKeyAvailable, c.keys.Len())
		}
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, opts.fullURL(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	for name, values := range opts.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	req.Header.Set("Accept", "application/json")

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	if key != nil {
		req.Header.Set(c.keyHeader, key.Value)
	}

	resp, body, err := c.sendRequest(ctx, req)
	if err != nil {
		// The key did nothing wrong if the request itself failed.
		return nil, nil, err
	}

	if key != nil {
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
			c.keys.MarkTimedOut(key)
		default:
			if resp.StatusCode < http.StatusBadRequest {
				c.keys.MarkGood(key)
			}
		}
	}

	return resp, body, nil
}

// do performs a request and converts non-2xx responses into *APIError.
func (c *Client) do(ctx context.Context, opts RequestOptions) ([]byte, error) {
	resp, body, err := c.Do(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		// Google-style errors: {"error": {"code": 403, "message": "..."}}
		message := gjson.GetBytes(body, "error.message").String()

		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}

		if message == "" {
			message = "An unknown API error occurred"
		}

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    message,
			Err:        errAPIResponseError,
		}
	}

	return body, nil
}

// processJSONResponse validates a raw JSON response body and rejects payloads
// that report an error despite a 2xx status.
func processJSONResponse(respBody []byte) ([]byte, error) {
	if !gjson.ValidBytes(respBody) {
		return nil, fmt.Errorf("%w: %q", errInvalidJSON, truncate(string(respBody), 200))
	}

	if apiErr := gjson.GetBytes(respBody, "error"); apiErr.Exists() {
		message := apiErr.Get("message").String()
		if message == "" {
			message = "API response contained an error with no message"
		}

		return nil, fmt.Errorf("%w: %s", errAPIResponseError, message)
	}

	return respBody, nil
}

// sendRequest executes req, reads the body for auditing, and returns the response
// with a new, readable body stream, along with the raw body bytes.
func (c *Client) sendRequest(ctx context.Context, req *http.Request) (_ *http.Response, _ []byte, err error) {
	// Several calls can share one inbound request or run, so each gets its own suffix.
	requestID := idgen.Make()
	if parent := audit.RequestIDFrom(ctx); parent != "" {
		requestID = parent + "." + requestID
	}

	span := audit.Span{
		Destination: audit.ToTranslator,
		RequestID:   requestID,
		Method:      req.Method,
		URL:         req.URL.String(),
	}

	defer func() {
		span.Error = err
		span.End()
		span.Log()
	}()

	_ = span.Begin(ctx)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to make HTTP request: %w", err)
	}
	defer resp.Body.Close()

	span.StatusCode = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	span.Body = body

	resp.Body = io.NopCloser(bytes.NewReader(body))

	return resp, body, nil
}

// IsContextCanceled returns true if the error is due to context cancellation or deadline exceeded.
func IsContextCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	log.Trace().Int("len", len(s)).Msg("Truncating response body for error message")

	return s[:n] + "..."
}
