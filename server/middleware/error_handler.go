// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"errors"
	"maps"
	"net/http"
	"net/http/httptest"

	"github.com/rs/zerolog/log"

	"codeberg.org/safebites/safebites/config"
	"codeberg.org/safebites/safebites/core/audit"
	"codeberg.org/safebites/safebites/server/request_context"
	"codeberg.org/safebites/safebites/server/routes"
)

// CatchError wraps HTTP handlers that return an error, providing centralized error handling,
// response buffering, and request logging.
//
// It operates as follows:
//  1. It times the request for logging purposes.
//  2. It runs the handler, buffering its output in an httptest.ResponseRecorder.
//  3. Any error returned by the handler is stored in the request context.
//
// After the handler runs, it decides on the final response:
//   - A *routes.APIError discards the buffered response and writes a JSON
//     error with the error's status and a localized message.
//   - Any other error without an HTTP error status (i.e., status < 400) is an
//     unhandled internal error and becomes a generic 500 JSON error.
//   - A 404 written by the handler is replaced with the generic JSON 404.
//   - Otherwise the buffered response is written to the client.
//
// Finally, it logs the completed request via the audit package.
func CatchError(handler func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := request_context.FromRequest(r)

		span := audit.Span{
			Destination: audit.ToUser,
			RequestID:   ctx.RequestID,
			Method:      r.Method,
			URL:         r.URL.String(),
		}

		_ = span.Begin(r.Context())
		defer span.End()

		recorder := httptest.NewRecorder()

		err := handler(recorder, r)

		ctx.RequestError = err

		var apiErr *routes.APIError

		switch {
		case errors.As(err, &apiErr):
			ctx.StatusCode = apiErr.Status
			routes.ErrorResponse(w, r)

		case (err != nil && recorder.Code < http.StatusBadRequest) || recorder.Code == http.StatusNotFound:
			if recorder.Code == http.StatusNotFound {
				ctx.StatusCode = http.StatusNotFound
			} else {
				ctx.StatusCode = http.StatusInternalServerError
			}

			routes.ErrorResponse(w, r)

		default:
			if recorder.Code == 0 {
				recorder.Code = http.StatusOK
			}

			ctx.StatusCode = recorder.Code
			maps.Copy(w.Header(), recorder.Header())
			w.WriteHeader(recorder.Code)

			if _, err := recorder.Body.WriteTo(w); err != nil {
				log.Err(err).Msg("Failed to write response body")
			}
		}

		span.StatusCode = ctx.StatusCode
		span.Error = ctx.RequestError

		if !config.Global.ShouldSkipServerLogging(r.URL.Path) {
			span.Log()
		}
	}
}
