// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"net/http"
	"strings"
)

// versionedAPIPrefix is accepted as an alias of /api/ for clients that pin the API version.
const versionedAPIPrefix = "/api/v1/"

// NormalizeURL is a middleware that handles URL normalization by:
// 1. Removing the /api/v1/ version prefix in favour of /api/.
// 2. Removing trailing slashes from URLs (except root).
//
// Both redirects are permanent and preserve the request method and body.
func NormalizeURL(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if hasVersionPrefix(r) {
		removeVersionPrefix(w, r)

		return
	}

	if hasTrailingSlash(r) {
		removeTrailingSlash(w, r)

		return
	}

	next.ServeHTTP(w, r)
}

// hasTrailingSlash checks if a request path has a trailing slash (except root).
func hasTrailingSlash(r *http.Request) bool {
	return r.URL.Path != "/" && strings.HasSuffix(r.URL.Path, "/")
}

// removeTrailingSlash removes trailing slash and redirects.
func removeTrailingSlash(w http.ResponseWriter, r *http.Request) {
	target := *r.URL
	target.Path = strings.TrimSuffix(target.Path, "/")
	target.RawPath = ""

	http.Redirect(w, r, target.String(), http.StatusPermanentRedirect)
}

// hasVersionPrefix checks if a request path starts with /api/v1/ followed by a resource.
func hasVersionPrefix(r *http.Request) bool {
	return len(r.URL.Path) > len(versionedAPIPrefix) && strings.HasPrefix(r.URL.Path, versionedAPIPrefix)
}

// removeVersionPrefix rewrites /api/v1/... to /api/... and redirects.
func removeVersionPrefix(w http.ResponseWriter, r *http.Request) {
	target := *r.URL
	target.Path = "/api/" + strings.TrimPrefix(target.Path, versionedAPIPrefix)
	target.RawPath = ""

	http.Redirect(w, r, target.String(), http.StatusPermanentRedirect)
}
