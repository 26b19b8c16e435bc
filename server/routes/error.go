// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"errors"
	"net/http"

	"codeberg.org/safebites/safebites/i18n"
	"codeberg.org/safebites/safebites/server/request_context"
)

// User-facing messages. Each is a msgid in po/safebites.pot.
const (
	msgFragmentNotFound   i18n.MsgKey = "Fragment not found"
	msgAllergenNotFound   i18n.MsgKey = "Allergen not found"
	msgInvalidRequestBody i18n.MsgKey = "Invalid request body"
	msgInvalidQuery       i18n.MsgKey = "Invalid query parameter"
	msgNotRetryable       i18n.MsgKey = "This fragment cannot be retried right now"
	msgScannerNotRunning  i18n.MsgKey = "The scanner is not running"
	msgScannerBusy        i18n.MsgKey = "The scanner is busy, please try again shortly"
	msgSomethingWentWrong i18n.MsgKey = "Something went wrong"
	msgTooManyRequests    i18n.MsgKey = "Too many requests, please slow down"
	msgRouteNotFound      i18n.MsgKey = "Page not found"
)

// APIError is returned by handlers for failures the client should see.
//
// middleware.CatchError turns it into a JSON error response with Status and
// Message localized for the request.
type APIError struct {
	Status  int
	Message i18n.MsgKey
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return string(e.Message) + ": " + e.Err.Error()
	}

	return string(e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func badRequest(err error) *APIError {
	return &APIError{Status: http.StatusBadRequest, Message: msgInvalidRequestBody, Err: err}
}

func notFound(msg i18n.MsgKey) *APIError {
	return &APIError{Status: http.StatusNotFound, Message: msg}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// ErrorResponse writes the request's error as JSON.
//
// It reads RequestError and StatusCode from the request context, which
// middleware.CatchError fills in.
func ErrorResponse(w http.ResponseWriter, r *http.Request) {
	rc := request_context.FromRequest(r)

	writeError(w, r, rc.StatusCode, rc.RequestError)
}

// TooManyRequests writes the JSON body for a throttled request.
func TooManyRequests(w http.ResponseWriter, r *http.Request) {
	rc := request_context.FromRequest(r)
	rc.StatusCode = http.StatusTooManyRequests
	rc.RequestError = &APIError{Status: http.StatusTooManyRequests, Message: msgTooManyRequests}

	writeError(w, r, rc.StatusCode, rc.RequestError)
}

// NotFound answers requests that match no route.
func NotFound(w http.ResponseWriter, r *http.Request) error {
	return &APIError{Status: http.StatusNotFound, Message: msgRouteNotFound}
}

// writeError writes err as a JSON error body. Errors other than *APIError are
// reported with a generic message so internal details never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}

	msg := msgSomethingWentWrong

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
	} else if status == http.StatusNotFound {
		msg = msgRouteNotFound
	}

	var body errorBody

	body.Error.Status = status
	body.Error.Message = msg.Tr(r.Context())
	body.RequestID = request_context.FromRequest(r).RequestID

	w.Header().Set("Cache-Control", "no-store")

	_ = writeJSON(w, status, body)
}
