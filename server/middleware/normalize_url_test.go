// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		method           string
		requestURL       string
		expectedStatus   int
		expectedLocation string
	}{
		{
			name:           "Root path should not redirect",
			requestURL:     "/",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Path without trailing slash should not redirect",
			requestURL:     "/api/results",
			expectedStatus: http.StatusOK,
		},
		{
			name:             "Path with trailing slash should redirect",
			requestURL:       "/api/results/",
			expectedStatus:   http.StatusPermanentRedirect,
			expectedLocation: "/api/results",
		},
		{
			name:             "Versioned prefix should redirect",
			method:           http.MethodPut,
			requestURL:       "/api/v1/fragments/a",
			expectedStatus:   http.StatusPermanentRedirect,
			expectedLocation: "/api/fragments/a",
		},
		{
			name:             "Bare versioned prefix only loses its trailing slash",
			requestURL:       "/api/v1/",
			expectedStatus:   http.StatusPermanentRedirect,
			expectedLocation: "/api/v1",
		},
		{
			name:             "Versioned prefix with trailing slash keeps the slash for the next redirect",
			requestURL:       "/api/v1/results/",
			expectedStatus:   http.StatusPermanentRedirect,
			expectedLocation: "/api/results/",
		},
		{
			name:             "Query parameters should be preserved in trailing slash redirect",
			requestURL:       "/api/results/?lang=es",
			expectedStatus:   http.StatusPermanentRedirect,
			expectedLocation: "/api/results?lang=es",
		},
		{
			name:             "Query parameters should be preserved in version redirect",
			requestURL:       "/api/v1/results?lang=ja",
			expectedStatus:   http.StatusPermanentRedirect,
			expectedLocation: "/api/results?lang=ja",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			method := tt.method
			if method == "" {
				method = http.MethodGet
			}

			w := httptest.NewRecorder()
			Wrap(NormalizeURL, nextHandler).ServeHTTP(w, httptest.NewRequest(method, tt.requestURL, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedLocation, w.Header().Get("Location"))
		})
	}
}

func TestHasTrailingSlash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path     string
		expected bool
	}{
		{"/", false},
		{"/api", false},
		{"/api/", true},
		{"/api/fragments/a/", true},
		{"/api/fragments/a", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.expected, hasTrailingSlash(req))
		})
	}
}
