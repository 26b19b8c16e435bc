// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import "net/http"

// Middleware handles a request and decides whether, and with what request, to call next.
type Middleware func(w http.ResponseWriter, r *http.Request, next http.Handler)

// Wrap turns m into a handler that calls next.
func Wrap(m Middleware, next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m(w, r, next)
	}
}
