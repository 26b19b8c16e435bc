// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package router

import (
	"net/http"

	"codeberg.org/safebites/safebites/server/middleware"
)

// Router serves the API: routes live on a ServeMux and every request first
// passes through the middleware chain.
type Router struct {
	mux   *http.ServeMux
	chain []middleware.Middleware

	// handler is mux wrapped in chain. Use rebuilds it.
	handler http.Handler
}

// NewRouter returns a Router with no routes and an empty chain.
func NewRouter() *Router {
	mux := http.NewServeMux()

	return &Router{mux: mux, handler: mux}
}

// HandleFunc registers fn for pattern using ServeMux pattern syntax,
// for example "GET /api/results/{id}".
func (router *Router) HandleFunc(pattern string, fn func(http.ResponseWriter, *http.Request)) {
	router.mux.HandleFunc(pattern, fn)
}

// Use appends m to the chain. Middlewares run in the order they were added,
// so the first one sees the request before any other.
func (router *Router) Use(m middleware.Middleware) {
	router.chain = append(router.chain, m)

	var h http.Handler = router.mux
	for i := len(router.chain) - 1; i >= 0; i-- {
		h = wrap(router.chain[i], h)
	}

	router.handler = h
}

func wrap(m middleware.Middleware, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m(w, r, next)
	})
}

// ServeHTTP implements http.Handler.
func (router *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	router.handler.ServeHTTP(w, r)
}
