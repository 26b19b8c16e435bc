// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxRequestBodySize bounds JSON request bodies. A full frame of fragments stays well below it.
const maxRequestBodySize = 1 << 20

var errTrailingData = errors.New("unexpected data after JSON value")

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}

	return nil
}

// decodeJSON reads a single JSON value from the request body into v.
//
// Unknown fields and trailing data are rejected. Failures come back as a
// 400 *APIError.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return badRequest(err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return badRequest(errTrailingData)
	}

	return nil
}
