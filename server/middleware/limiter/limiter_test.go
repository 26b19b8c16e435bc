// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package limiter

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter(clock *fakeClock) *Limiter {
	return New(Options{
		RequestsPerSecond: 1,
		Burst:             2,
		IPv4Prefix:        24,
		IPv6Prefix:        48,
		Expiry:            time.Minute,
		Now:               clock.Now,
	})
}

func serve(l *Limiter, remoteAddr, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remoteAddr

	rr := httptest.NewRecorder()
	l.Evaluate(rr, req, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	return rr
}

func TestEvaluateThrottlesPerNetwork(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := newTestLimiter(clock)

	assert.Equal(t, http.StatusOK, serve(l, "203.0.113.10:1000", "/api/results").Code)
	assert.Equal(t, http.StatusOK, serve(l, "203.0.113.11:1000", "/api/results").Code, "same /24 shares the bucket")

	blocked := serve(l, "203.0.113.12:1000", "/api/results")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "0", blocked.Header().Get(HeaderRateLimitRemaining))
	assert.Equal(t, "2", blocked.Header().Get(HeaderRateLimitLimit))
	assert.Equal(t, "2", blocked.Header().Get("Retry-After"))
	assert.Contains(t, blocked.Body.String(), `"status":429`)

	// A different network has its own bucket.
	assert.Equal(t, http.StatusOK, serve(l, "198.51.100.1:1000", "/api/results").Code)

	// Tokens refill over time.
	clock.Advance(time.Second)
	assert.Equal(t, http.StatusOK, serve(l, "203.0.113.10:1000", "/api/results").Code)
}

func TestEvaluateSkipsHealthChecks(t *testing.T) {
	t.Parallel()

	l := newTestLimiter(&fakeClock{now: time.Unix(1_700_000_000, 0)})

	for range 10 {
		assert.Equal(t, http.StatusOK, serve(l, "203.0.113.10:1000", "/healthz").Code)
	}

	assert.Zero(t, l.Len())
}

func TestExpiredNetworksAreCleanedUp(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := newTestLimiter(clock)

	serve(l, "203.0.113.10:1000", "/api/results")
	serve(l, "198.51.100.1:1000", "/api/results")
	assert.Equal(t, 2, l.Len())

	clock.Advance(2 * time.Minute)
	serve(l, "192.0.2.1:1000", "/api/results")

	assert.Equal(t, 1, l.Len(), "only the network seen after expiry should remain")
}

func TestGetClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		request    *http.Request
		expectedIP string
	}{
		{
			name: "X-Real-IP from trusted proxy",
			request: &http.Request{
				RemoteAddr: "127.0.0.1:12345",
				Header:     http.Header{"X-Real-Ip": []string{"2.2.2.2"}},
			},
			expectedIP: "2.2.2.2",
		},
		{
			name: "X-Forwarded-For from trusted proxy",
			request: &http.Request{
				RemoteAddr: "192.168.1.1:12345",
				Header:     http.Header{"X-Forwarded-For": []string{"3.3.3.3, 4.4.4.4"}},
			},
			expectedIP: "4.4.4.4",
		},
		{
			name: "Proxy headers from untrusted source are ignored",
			request: &http.Request{
				RemoteAddr: "1.1.1.1:12345",
				Header:     http.Header{"X-Real-Ip": []string{"2.2.2.2"}},
			},
			expectedIP: "1.1.1.1",
		},
		{
			name:       "RemoteAddr fallback",
			request:    &http.Request{RemoteAddr: "1.1.1.1:12345"},
			expectedIP: "1.1.1.1",
		},
		{
			name:       "Unparseable RemoteAddr",
			request:    &http.Request{RemoteAddr: "not-an-address"},
			expectedIP: "<nil>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expectedIP, getClientIP(tt.request).String())
		})
	}
}

func TestGetNetwork(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		ip         string
		ipv4Prefix int
		ipv6Prefix int
		expected   string
	}{
		{"IPv4 with /24", "192.168.1.1", 24, 64, "192.168.1.0/24"},
		{"IPv4 with /32", "192.168.1.1", 32, 64, "192.168.1.1/32"},
		{"IPv6 with /64", "2001:db8::1", 24, 64, "2001:db8::/64"},
		{"IPv6 with /48", "2001:db8:1:2::1", 24, 48, "2001:db8:1::/48"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, getNetwork(net.ParseIP(tt.ip), tt.ipv4Prefix, tt.ipv6Prefix).String())
		})
	}
}
