// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"errors"
	"net/http"

	"codeberg.org/safebites/safebites/match"
	"codeberg.org/safebites/safebites/translate"
)

var errEmptyText = errors.New("text must not be empty")

type matchRequest struct {
	Text string `json:"text"`
}

type matchResponse struct {
	Status         match.Status           `json:"status"`
	Matched        []string               `json:"matched"`
	SourceLanguage translate.LanguageCode `json:"sourceLanguage"`
	Untranslated   []string               `json:"untranslated,omitempty"`
	Message        string                 `json:"message"`
	Error          string                 `json:"error,omitempty"`
}

// Match runs the pipeline once, synchronously, against the enabled allergens.
//
// It bypasses the scanner, so the result is not part of /api/results.
func (api *API) Match(w http.ResponseWriter, r *http.Request) error {
	var req matchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	if req.Text == "" {
		return badRequest(errEmptyText)
	}

	ctx := r.Context()
	res := api.engine.Run(ctx, req.Text, api.allergens.EnabledTerms(), nil)

	if res.Status == match.StatusAborted {
		// The client went away or the server is shutting down.
		return res.Err
	}

	resp := matchResponse{
		Status:         res.Status,
		Matched:        res.Matched,
		SourceLanguage: res.SourceLanguage,
		Untranslated:   res.Untranslated,
	}

	if resp.Matched == nil {
		resp.Matched = []string{}
	}

	switch {
	case res.Status == match.StatusMatched && len(res.Matched) > 0:
		resp.Message = msgAllergensFound.Tr(ctx)
	case res.Status == match.StatusMatched:
		resp.Message = msgNoAllergens.Tr(ctx)
	case res.Status == match.StatusNoResult:
		resp.Message = msgNotEnoughData.Tr(ctx)
	default:
		resp.Message = msgCouldNotResolve.Tr(ctx)
	}

	if res.Err != nil {
		resp.Error = res.Err.Error()
	}

	return writeJSON(w, http.StatusOK, resp)
}
