// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"maps"
	"net/http"
	"strings"

	"codeberg.org/safebites/safebites/config"
)

var (
	// baseHeaders defines the default headers to be set in responses.
	//
	// Safebites-Version and Safebites-Revision are added dynamically in SetResponseHeaders.
	baseHeaders = http.Header{
		"Referrer-Policy":         {"no-referrer"},
		"X-Frame-Options":         {"DENY"},
		"X-Content-Type-Options":  {"nosniff"},
		"Content-Security-Policy": {"default-src 'none'; frame-ancestors 'none'"},
		"Permissions-Policy":      {strings.Join(defaultPermissionsPolicy, ", ")},
	}

	// defaultPermissionsPolicy defines the default Permissions-Policy header.
	defaultPermissionsPolicy = []string{
		"camera=()",
		"geolocation=()",
		"microphone=()",
		"payment=()",
		"usb=()",
	}
)

// SetResponseHeaders adds default headers to HTTP responses.
//
// Results change with every scan, so nothing is cacheable except the
// language list, which only changes with a deploy.
func SetResponseHeaders(w http.ResponseWriter, r *http.Request, next http.Handler) {
	headers := w.Header()

	maps.Insert(headers, maps.All(baseHeaders))

	headers.Set("Cache-Control", cacheControl(r.URL.Path))
	headers.Set("Vary", "Accept-Language")
	headers.Set("Safebites-Version", config.BuildVersion)
	headers.Set("Safebites-Revision", config.Global.Build.Revision())

	next.ServeHTTP(w, r)
}

func cacheControl(path string) string {
	if path == "/api/languages" && !config.Global.Development.InDevelopment {
		// 1 day
		return "public, max-age=86400"
	}

	return "no-store"
}
