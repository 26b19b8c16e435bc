// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package requests

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/safebites/safebites/core/keymanager"
	"codeberg.org/safebites/safebites/core/requests/lrucache"
)

const testKeyHeader = "X-Goog-Api-Key"

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return srv
}

func TestGetJSONSendsKeyHeader(t *testing.T) {
	t.Parallel()

	var gotKey, gotQuery string

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get(testKeyHeader)
		gotQuery = r.URL.Query().Get("q")

		_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
	})

	client := NewClient(Options{
		HTTPClient: srv.Client(),
		Keys:       keymanager.New([]string{"secret"}, time.Second, time.Minute, "round-robin"),
		KeyHeader:  testKeyHeader,
	})

	body, err := client.GetJSON(context.Background(), RequestOptions{
		URL:   srv.URL,
		Query: url.Values{"q": {"milk"}},
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"data":{"ok":true}}`, string(body))
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "milk", gotQuery)
}

func TestGetJSONReturnsAPIError(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Invalid Value"}}`))
	})

	client := NewClient(Options{HTTPClient: srv.Client()})

	_, err := client.GetJSON(context.Background(), RequestOptions{URL: srv.URL})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Invalid Value", apiErr.Message)
	assert.ErrorIs(t, err, errAPIResponseError)
}

func TestGetJSONRejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	})

	client := NewClient(Options{HTTPClient: srv.Client()})

	_, err := client.GetJSON(context.Background(), RequestOptions{URL: srv.URL})
	assert.ErrorIs(t, err, errInvalidJSON)
}

func TestForbiddenResponseTimesOutKey(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	keys := keymanager.New([]string{"only"}, time.Hour, time.Hour, "round-robin")
	client := NewClient(Options{HTTPClient: srv.Client(), Keys: keys, KeyHeader: testKeyHeader})

	_, err := client.GetJSON(context.Background(), RequestOptions{URL: srv.URL})
	require.Error(t, err)

	_, err = client.GetJSON(context.Background(), RequestOptions{URL: srv.URL})
	require.ErrorIs(t, err, errNoKeyAvailable)

	// Exhausting every key resets them so the next call can try again.
	assert.NotNil(t, keys.Get())
}

func TestCachedGETSkipsBackend(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)

		_, _ = w.Write([]byte(`{"data":1}`))
	})

	cache, err := lrucache.New(4, time.Minute, false)
	require.NoError(t, err)

	client := NewClient(Options{HTTPClient: srv.Client(), Cache: cache})
	opts := RequestOptions{URL: srv.URL, Query: url.Values{"q": {"egg"}}}

	for range 3 {
		_, err := client.GetJSON(context.Background(), opts)
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), hits.Load())

	opts.NoCache = true
	_, err = client.GetJSON(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestErrorResponsesAreNotCached(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	cache, err := lrucache.New(4, time.Minute, false)
	require.NoError(t, err)

	client := NewClient(Options{HTTPClient: srv.Client(), Cache: cache})

	for range 2 {
		_, err := client.GetJSON(context.Background(), RequestOptions{URL: srv.URL})
		require.Error(t, err)
	}

	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, 0, cache.Len())
}

func TestRejectedBodiesAreNotCached(t *testing.T) {
	t.Parallel()

	errTooShort := errors.New("too short")

	tests := []struct {
		name     string
		first    string
		validate func([]byte) error
	}{
		{name: "error payload with status 200", first: `{"error":{"message":"backend hiccup"}}`},
		{name: "invalid JSON", first: `{"data":`},
		{
			name:  "rejected by Validate",
			first: `{"data":[]}`,
			validate: func(body []byte) error {
				if len(body) < 15 {
					return errTooShort
				}

				return nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var hits atomic.Int32

			srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				if hits.Add(1) == 1 {
					_, _ = w.Write([]byte(tt.first))

					return
				}

				_, _ = w.Write([]byte(`{"data":["ok","ok"]}`))
			})

			cache, err := lrucache.New(4, time.Minute, false)
			require.NoError(t, err)

			client := NewClient(Options{HTTPClient: srv.Client(), Cache: cache})
			opts := RequestOptions{URL: srv.URL, Query: url.Values{"q": {"Milch"}}, Validate: tt.validate}

			_, err = client.GetJSON(context.Background(), opts)
			require.Error(t, err)
			assert.Equal(t, 0, cache.Len())

			body, err := client.GetJSON(context.Background(), opts)
			require.NoError(t, err)
			assert.JSONEq(t, `{"data":["ok","ok"]}`, string(body))

			// Only the good body is replayed from now on.
			_, err = client.GetJSON(context.Background(), opts)
			require.NoError(t, err)
			assert.Equal(t, int32(2), hits.Load())
			assert.Equal(t, 1, cache.Len())
		})
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	client := NewClient(Options{HTTPClient: srv.Client(), RequestsPerSecond: 0.001, Burst: 1})

	_, err := client.GetJSON(context.Background(), RequestOptions{URL: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = client.GetJSON(ctx, RequestOptions{URL: srv.URL})
	require.ErrorIs(t, err, errRateLimited)
}

func TestIsContextCanceled(t *testing.T) {
	t.Parallel()

	assert.True(t, IsContextCanceled(context.Canceled))
	assert.True(t, IsContextCanceled(context.DeadlineExceeded))
	assert.False(t, IsContextCanceled(errInvalidJSON))
}

func TestGenerateCacheKeyIsStable(t *testing.T) {
	t.Parallel()

	assert.Equal(t, generateCacheKey("https://a/?q=1"), generateCacheKey("https://a/?q=1"))
	assert.NotEqual(t, generateCacheKey("https://a/?q=1"), generateCacheKey("https://a/?q=2"))
}
