// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"errors"
	"fmt"
	"net/http"

	"codeberg.org/safebites/safebites/scan"
	"codeberg.org/safebites/safebites/server/utils"
)

var (
	errMissingFragmentID   = errors.New("fragment id must not be empty")
	errDuplicateFragmentID = errors.New("duplicate fragment id")
)

type upsertFragmentRequest struct {
	Transcript string      `json:"transcript"`
	Bounds     scan.Region `json:"bounds"`
}

type replaceFrameRequest struct {
	Fragments []scan.Fragment `json:"fragments"`
}

// accepted is the body of every 202 response. Clients poll the results
// endpoints for the outcome.
type accepted struct {
	Status    string `json:"status"`
	Fragments int    `json:"fragments"`
}

// UpsertFragment adds a recognized fragment or updates its transcript.
func (api *API) UpsertFragment(w http.ResponseWriter, r *http.Request) error {
	var req upsertFragmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	ev := scan.FragmentEvent{
		Kind: scan.FragmentUpserted,
		Fragment: scan.Fragment{
			ID:         utils.GetPathVar(r, "id"),
			Transcript: req.Transcript,
			Bounds:     req.Bounds,
		},
	}

	if err := api.publish(r.Context(), ev); err != nil {
		return err
	}

	return writeJSON(w, http.StatusAccepted, accepted{Status: "accepted", Fragments: 1})
}

// RemoveFragment discards a fragment that left the camera frame.
//
// The removal is queued behind earlier fragment events, so an unknown ID is
// accepted and ignored by the scanner.
func (api *API) RemoveFragment(w http.ResponseWriter, r *http.Request) error {
	ev := scan.FragmentEvent{
		Kind:     scan.FragmentRemoved,
		Fragment: scan.Fragment{ID: utils.GetPathVar(r, "id")},
	}

	if err := api.publish(r.Context(), ev); err != nil {
		return err
	}

	return writeJSON(w, http.StatusAccepted, accepted{Status: "accepted", Fragments: 1})
}

// ReplaceFrame replaces the full fragment set with the fragments of a new camera frame.
func (api *API) ReplaceFrame(w http.ResponseWriter, r *http.Request) error {
	var req replaceFrameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(req.Fragments))

	for _, f := range req.Fragments {
		if f.ID == "" {
			return badRequest(errMissingFragmentID)
		}

		if _, dup := seen[f.ID]; dup {
			return badRequest(fmt.Errorf("%w: %q", errDuplicateFragmentID, f.ID))
		}

		seen[f.ID] = struct{}{}
	}

	ev := scan.FragmentEvent{Kind: scan.FrameReplaced, Frame: req.Fragments}
	if err := api.publish(r.Context(), ev); err != nil {
		return err
	}

	return writeJSON(w, http.StatusAccepted, accepted{Status: "accepted", Fragments: len(req.Fragments)})
}

// RetryFragment restarts a fragment whose last run failed or found too little text.
func (api *API) RetryFragment(w http.ResponseWriter, r *http.Request) error {
	if err := api.scanner.Retry(utils.GetPathVar(r, "id")); err != nil {
		return scanError(err)
	}

	return writeJSON(w, http.StatusAccepted, accepted{Status: "accepted", Fragments: 1})
}
