// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package requests

import (
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"codeberg.org/safebites/safebites/core/keymanager"
	"codeberg.org/safebites/safebites/core/requests/lrucache"
)

// RequestOptions are parameters for Client.Do and Client.GetJSON.
type RequestOptions struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header

	// NoCache skips both cache lookup and storage for this request.
	NoCache bool

	// Validate, if set, checks a JSON body beyond the generic error checks of
	// Client.GetJSON. A rejected body is returned as an error and not cached.
	Validate func(body []byte) error
}

func (opts RequestOptions) fullURL() string {
	if len(opts.Query) == 0 {
		return opts.URL
	}

	return opts.URL + "?" + opts.Query.Encode()
}

// Options configures a Client.
type Options struct {
	// HTTPClient defaults to HTTPClient.
	HTTPClient *http.Client

	// Keys supplies API keys. A nil Keys sends requests without a key header.
	Keys *keymanager.KeyManager

	// KeyHeader is the header carrying the API key.
	KeyHeader string

	// Cache stores successful GET responses. A nil Cache disables caching.
	Cache *lrucache.Cache

	// RequestsPerSecond and Burst configure the outbound rate limiter.
	// A non-positive RequestsPerSecond disables limiting.
	RequestsPerSecond float64
	Burst             int

	UserAgent string
}

// Client performs calls against the translation backend.
//
// It is safe for concurrent use.
type Client struct {
	http      *http.Client
	keys      *keymanager.KeyManager
	keyHeader string
	cache     *lrucache.Cache
	limiter   *rate.Limiter
	userAgent string
}
