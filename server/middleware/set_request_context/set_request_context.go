// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package set_request_context

import (
	"net/http"

	"codeberg.org/safebites/safebites/config"
	"codeberg.org/safebites/safebites/server/request_context"
)

// WithRequestContext is a middleware that attaches a RequestContext to each HTTP request.
//
// The configured user language is the localization fallback.
func WithRequestContext(w http.ResponseWriter, r *http.Request, next http.Handler) {
	ctx := request_context.WithRequestContext(r.Context(), r, config.Global.User.Language)

	w.Header().Set("Safebites-Request-Id", request_context.FromContext(ctx).RequestID)

	next.ServeHTTP(w, r.WithContext(ctx))
}
