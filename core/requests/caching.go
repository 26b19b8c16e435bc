// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package requests

import (
	"hash/fnv"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"codeberg.org/safebites/safebites/core/requests/lrucache"
)

// NewCache builds the backend response cache, or returns nil when caching is disabled.
func NewCache(enabled bool, size int, ttl time.Duration, compress bool) (*lrucache.Cache, error) {
	if !enabled {
		log.Info().Msg("Cache is disabled, skipping cache initialization")

		return nil, nil
	}

	cache, err := lrucache.New(size, ttl, compress)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("size", size).
		Dur("ttl", ttl).
		Bool("compress", compress).
		Msg("Initialized translation response cache")

	return cache, nil
}

// generateCacheKey hashes the full request URL, query included.
//
// API keys are sent as a header and never reach the URL, so identical
// translation requests share a cache entry regardless of which key served them.
func generateCacheKey(url string) string {
	hasher := fnv.New64a()

	_, _ = hasher.Write([]byte(url))

	return strconv.FormatUint(hasher.Sum64(), 16)
}
