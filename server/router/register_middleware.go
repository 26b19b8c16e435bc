// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package router

import (
	"codeberg.org/safebites/safebites/config"
	"codeberg.org/safebites/safebites/server/middleware"
	"codeberg.org/safebites/safebites/server/middleware/limiter"
	"codeberg.org/safebites/safebites/server/middleware/set_request_context"
)

// RegisterMiddleware installs the middleware chain configured in config.Global.
func (router *Router) RegisterMiddleware() {
	// the first middleware is the most outer / first executed one
	router.Use(middleware.WithServerTiming)
	router.Use(middleware.NormalizeURL)                // handle trailing slashes and the /api/v1/ alias
	router.Use(set_request_context.WithRequestContext) // needed for everything else
	router.Use(middleware.SetResponseHeaders)          // all responses need this

	if cfg := config.Global.Limiter; cfg.Enabled {
		l := limiter.New(limiter.Options{
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
			IPv4Prefix:        cfg.IPv4Prefix,
			IPv6Prefix:        cfg.IPv6Prefix,
			Expiry:            cfg.Expiry,
		})

		router.Use(l.Evaluate)
	}
}
