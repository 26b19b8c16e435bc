// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package request_context provides per-request state management for HTTP handlers.

This package is separate because Go disallows a cyclic import graph.
*/
package request_context

import (
	"context"
	"net/http"

	"golang.org/x/text/language"

	"codeberg.org/safebites/safebites/core/audit"
	"codeberg.org/safebites/safebites/core/idgen"
	"codeberg.org/safebites/safebites/i18n"
)

// RequestContext carries request-scoped data through the middleware chain.
//
// It lives for the duration of a single HTTP request.
type RequestContext struct {
	// RequestID is an identifier for tracing requests.
	RequestID string

	// Holds any critical error encountered during request processing.
	//
	// Populated by middleware.CatchError when handlers return errors.
	RequestError error

	// HTTP status code to be sent in the response. Defaults to 200 OK.
	StatusCode int

	// T is the language responses are localized into.
	T language.Tag
}

// requestContextKeyType defines a unique type for a RequestContext key.
type requestContextKeyType struct{}

// requestContextKey is a unique key used to access RequestContext
// values from a context.Context.
var requestContextKey = requestContextKeyType{}

// WithRequestContext initializes a new request context and attaches it to
// the parent context.
//
// fallbackLanguage is used for localization when the request names no language.
// The returned context also labels outbound translator calls with the request ID.
func WithRequestContext(ctx context.Context, r *http.Request, fallbackLanguage string) context.Context {
	tag := i18n.FromRequest(r, fallbackLanguage)

	rc := RequestContext{
		RequestID:  idgen.Make(),
		StatusCode: http.StatusOK,
		T:          tag,
	}

	ctx = i18n.WithTag(ctx, tag)
	ctx = audit.WithRequestID(ctx, rc.RequestID)

	return context.WithValue(ctx, requestContextKey, &rc)
}

// FromContext extracts the RequestContext from a context, always returning
// a valid pointer.
//
// If no context is found, returns a zero-value instance.
func FromContext(ctx context.Context) *RequestContext {
	if v := ctx.Value(requestContextKey); v != nil {
		if rc, ok := v.(*RequestContext); ok {
			return rc
		}
	}

	return &RequestContext{}
}

// FromRequest is a convenience wrapper for extracting RequestContext
// directly from HTTP requests.
func FromRequest(r *http.Request) *RequestContext {
	return FromContext(r.Context())
}
