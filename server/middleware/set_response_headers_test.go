// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"codeberg.org/safebites/safebites/config"
)

func TestSetResponseHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path         string
		cacheControl string
	}{
		{"/api/results", "no-store"},
		{"/api/allergens", "no-store"},
		{"/api/languages", "public, max-age=86400"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			called := false
			handler := Wrap(SetResponseHeaders, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.True(t, called)
			assert.Equal(t, tt.cacheControl, rr.Header().Get("Cache-Control"))
			assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, config.BuildVersion, rr.Header().Get("Safebites-Version"))
			assert.NotEmpty(t, rr.Header().Get("Safebites-Revision"))
		})
	}
}
