// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"codeberg.org/safebites/safebites/i18n"
	"codeberg.org/safebites/safebites/scan"
	"codeberg.org/safebites/safebites/server/utils"
)

// Per-state messages shown next to a fragment.
const (
	msgScanning        i18n.MsgKey = "Scanning..."
	msgAllergensFound  i18n.MsgKey = "Allergens found"
	msgNoAllergens     i18n.MsgKey = "No allergens found"
	msgNotEnoughData   i18n.MsgKey = "Not enough data"
	msgCouldNotResolve i18n.MsgKey = "Could not determine allergens for this text"
)

const (
	msgDetectedSingular = "{{.Count}} allergen detected"
	msgDetectedPlural   = "{{.Count}} allergens detected"
)

// ctxButton disambiguates short labels a client puts on buttons.
const ctxButton = "button"

var errUnknownState = errors.New("unknown fragment state")

var stateMessages = map[scan.State]i18n.MsgKey{
	scan.StatePending:   msgScanning,
	scan.StateFound:     msgAllergensFound,
	scan.StateNoneFound: msgNoAllergens,
	scan.StateNoResult:  msgNotEnoughData,
	scan.StateFailed:    msgCouldNotResolve,
}

type fragmentResponse struct {
	scan.FragmentView

	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`

	// RetryLabel is the localized caption for a retry control, set only when Retryable.
	RetryLabel string `json:"retryLabel,omitempty"`
}

type resultsResponse struct {
	Summary        []string           `json:"summary"`
	SummaryMessage string             `json:"summaryMessage"`
	Fragments      []fragmentResponse `json:"fragments"`
	Dropped        uint64             `json:"dropped"`
}

// Results returns every fragment's state together with the summary of matched allergens.
//
// The optional state query parameter limits the listed fragments to one
// state. The summary always covers the whole frame.
func (api *API) Results(w http.ResponseWriter, r *http.Request) error {
	filter := scan.State(utils.GetQueryParam(r, "state"))
	if _, ok := stateMessages[filter]; filter != "" && !ok {
		return &APIError{
			Status:  http.StatusBadRequest,
			Message: msgInvalidQuery,
			Err:     fmt.Errorf("%w: %q", errUnknownState, filter),
		}
	}

	snapshot := api.scanner.Snapshot()
	ctx := r.Context()

	resp := resultsResponse{
		Summary:   snapshot.Summary,
		Fragments: make([]fragmentResponse, 0, len(snapshot.Fragments)),
		Dropped:   snapshot.Dropped,
	}

	if resp.Summary == nil {
		resp.Summary = []string{}
	}

	pending := false

	for _, view := range snapshot.Fragments {
		pending = pending || view.State == scan.StatePending

		if filter == "" || view.State == filter {
			resp.Fragments = append(resp.Fragments, newFragmentResponse(ctx, view))
		}
	}

	slices.SortFunc(resp.Fragments, func(a, b fragmentResponse) int {
		return strings.Compare(a.ID, b.ID)
	})

	resp.SummaryMessage = summaryMessage(ctx, len(resp.Summary), len(snapshot.Fragments), pending)

	return writeJSON(w, http.StatusOK, resp)
}

// FragmentResult returns the state of a single fragment.
func (api *API) FragmentResult(w http.ResponseWriter, r *http.Request) error {
	view, ok := api.scanner.Fragment(utils.GetPathVar(r, "id"))
	if !ok {
		return notFound(msgFragmentNotFound)
	}

	return writeJSON(w, http.StatusOK, newFragmentResponse(r.Context(), view))
}

func newFragmentResponse(ctx context.Context, view scan.FragmentView) fragmentResponse {
	resp := fragmentResponse{
		FragmentView: view,
		Message:      stateMessages[view.State].Tr(ctx),
		Retryable:    view.State.Retryable(),
	}

	if resp.Retryable {
		resp.RetryLabel = i18n.TrC(ctx, ctxButton, "Retry")
	}

	return resp
}

// summaryMessage describes the whole frame: a count once anything matched,
// otherwise whether scanning is still under way.
func summaryMessage(ctx context.Context, matched, fragments int, pending bool) string {
	switch {
	case matched > 0:
		return i18n.TrN(ctx, msgDetectedSingular, msgDetectedPlural, matched, "Count", matched)
	case pending:
		return msgScanning.Tr(ctx)
	case fragments == 0:
		return msgNotEnoughData.Tr(ctx)
	default:
		return msgNoAllergens.Tr(ctx)
	}
}
