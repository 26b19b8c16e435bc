// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package set_request_context

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"codeberg.org/safebites/safebites/core/audit"
	"codeberg.org/safebites/safebites/i18n"
	"codeberg.org/safebites/safebites/server/middleware"
	"codeberg.org/safebites/safebites/server/request_context"
)

// TestWithRequestContext_AttachesContext tests that request context is properly attached.
func TestWithRequestContext_AttachesContext(t *testing.T) {
	t.Parallel()

	var (
		requestID  string
		auditID    string
		statusCode int
	)

	handler := middleware.Wrap(WithRequestContext, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := request_context.FromRequest(r)

		requestID = ctx.RequestID
		statusCode = ctx.StatusCode
		auditID = audit.RequestIDFrom(r.Context())

		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, requestID, "request ID should be set")
	assert.Equal(t, requestID, auditID, "outbound calls should be labelled with the request ID")
	assert.Equal(t, requestID, rr.Header().Get("Safebites-Request-Id"))
	assert.Equal(t, http.StatusOK, statusCode)
}

// TestWithRequestContext_GeneratesUniqueRequestIDs tests that each request gets a unique ID.
func TestWithRequestContext_GeneratesUniqueRequestIDs(t *testing.T) {
	t.Parallel()

	var requestIDs []string

	handler := middleware.Wrap(WithRequestContext, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestIDs = append(requestIDs, request_context.FromRequest(r).RequestID)

		w.WriteHeader(http.StatusOK)
	}))

	for range 3 {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))
	}

	if !assert.Len(t, requestIDs, 3) {
		return
	}

	seen := make(map[string]bool)
	for _, id := range requestIDs {
		assert.False(t, seen[id], "duplicate request ID %s", id)

		seen[id] = true
	}
}

// TestWithRequestContext_PreservesRequestData tests that original request data is preserved.
func TestWithRequestContext_PreservesRequestData(t *testing.T) {
	t.Parallel()

	var (
		receivedMethod string
		receivedURL    string
		requestError   error
	)

	handler := middleware.Wrap(WithRequestContext, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedMethod = r.Method
		receivedURL = r.URL.Path
		requestError = request_context.FromRequest(r).RequestError

		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/test", nil))

	assert.Equal(t, http.MethodPost, receivedMethod)
	assert.Equal(t, "/api/test", receivedURL)
	assert.NoError(t, requestError)
}

// TestWithRequestContext_SetsLanguage verifies the localization tag is available to handlers.
func TestWithRequestContext_SetsLanguage(t *testing.T) {
	t.Parallel()

	var tagFromContext, tagFromRequestContext string

	handler := middleware.Wrap(WithRequestContext, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tagFromContext = i18n.TagFrom(r.Context()).String()
		tagFromRequestContext = request_context.FromRequest(r).T.String()
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

	// Without loaded catalogues every request resolves to the base locale.
	assert.Equal(t, i18n.BaseLocale, tagFromContext)
	assert.Equal(t, tagFromContext, tagFromRequestContext)
}
