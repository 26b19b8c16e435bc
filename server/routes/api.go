// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"codeberg.org/safebites/safebites/allergen"
	"codeberg.org/safebites/safebites/core/audit"
	"codeberg.org/safebites/safebites/match"
	"codeberg.org/safebites/safebites/scan"
)

// publishTimeout bounds how long a request waits for room in a full fragment feed.
const publishTimeout = 2 * time.Second

// API holds the services behind the JSON endpoints.
//
// Handlers follow the middleware.CatchError signature and return an *APIError
// for failures the client should see.
type API struct {
	allergens *allergen.Store
	scanner   *scan.Coordinator
	feed      *scan.Feed
	engine    *match.Engine
	log       zerolog.Logger
}

// NewAPI returns an API backed by the given services.
//
// Fragment changes are published to feed, which the caller must connect to
// scanner with scan.Coordinator.Consume.
func NewAPI(allergens *allergen.Store, scanner *scan.Coordinator, feed *scan.Feed, engine *match.Engine) *API {
	return &API{
		allergens: allergens,
		scanner:   scanner,
		feed:      feed,
		engine:    engine,
		log:       audit.Sys("api"),
	}
}

// publish queues ev for the scanner, waiting at most publishTimeout for buffer space.
func (api *API) publish(ctx context.Context, ev scan.FragmentEvent) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	select {
	case <-api.scanner.Done():
		return scanError(scan.ErrStopped)
	default:
	}

	if err := api.feed.Publish(ctx, ev); err != nil {
		return scanError(err)
	}

	return nil
}

// refresh restarts every fragment after the enabled allergen set changed.
//
// The allergen change itself has already been applied, so a stopped scanner
// is logged rather than reported to the client.
func (api *API) refresh() {
	if err := api.scanner.Refresh(); err != nil {
		api.log.Warn().Err(err).Msg("Could not rescan fragments after allergen change")
	}
}

// scanError maps coordinator and feed errors to client-facing errors.
func scanError(err error) error {
	switch {
	case errors.Is(err, scan.ErrUnknownFragment):
		return &APIError{Status: http.StatusNotFound, Message: msgFragmentNotFound, Err: err}
	case errors.Is(err, scan.ErrNotRetryable):
		return &APIError{Status: http.StatusConflict, Message: msgNotRetryable, Err: err}
	case errors.Is(err, scan.ErrStopped), errors.Is(err, scan.ErrFeedClosed):
		return &APIError{Status: http.StatusServiceUnavailable, Message: msgScannerNotRunning, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &APIError{Status: http.StatusServiceUnavailable, Message: msgScannerBusy, Err: err}
	default:
		return err
	}
}
