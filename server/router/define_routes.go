// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package router

import (
	"net/http"
	"net/http/pprof"
	"runtime/trace"
	"time"

	"codeberg.org/safebites/safebites/config"
	"codeberg.org/safebites/safebites/server/middleware"
	"codeberg.org/safebites/safebites/server/routes"
)

// DefineRoutes registers every endpoint of api on the router.
func (router *Router) DefineRoutes(api *routes.API) {
	// Allergen routes
	router.HandleFunc("GET /api/allergens", middleware.CatchError(api.ListAllergens))
	router.HandleFunc("POST /api/allergens", middleware.CatchError(api.AddAllergen))
	router.HandleFunc("GET /api/allergens/{id}", middleware.CatchError(api.GetAllergen))
	router.HandleFunc("PUT /api/allergens/{id}/enabled", middleware.CatchError(api.SetAllergenEnabled))

	// Fragment routes, fed by the text recognizer
	router.HandleFunc("PUT /api/fragments/{id}", middleware.CatchError(api.UpsertFragment))
	router.HandleFunc("DELETE /api/fragments/{id}", middleware.CatchError(api.RemoveFragment))
	router.HandleFunc("POST /api/fragments/{id}/retry", middleware.CatchError(api.RetryFragment))
	router.HandleFunc("POST /api/frames", middleware.CatchError(api.ReplaceFrame))

	// Result routes
	router.HandleFunc("GET /api/results", middleware.CatchError(api.Results))
	router.HandleFunc("GET /api/results/{id}", middleware.CatchError(api.FragmentResult))

	// One-shot matching outside the scanner
	router.HandleFunc("POST /api/match", middleware.CatchError(api.Match))

	router.HandleFunc("GET /api/languages", middleware.CatchError(api.Languages))
	router.HandleFunc("GET /healthz", middleware.CatchError(api.Health))

	if config.Global.Development.InDevelopment {
		registerDebugRoutes(router)
	}

	// Everything else gets a JSON 404.
	router.HandleFunc("/", middleware.CatchError(routes.NotFound))
}

var flightRecorder = trace.NewFlightRecorder(trace.FlightRecorderConfig{MinAge: time.Minute})

func registerDebugRoutes(router *Router) {
	if !flightRecorder.Enabled() {
		if err := flightRecorder.Start(); err != nil {
			panic(err)
		}
	}

	router.HandleFunc("GET /debug/pprof", pprof.Index)
	router.HandleFunc("GET /debug/pprof/", pprof.Index)
	router.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
	router.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
	router.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
	router.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
	router.HandleFunc("GET /debug/flight", func(w http.ResponseWriter, r *http.Request) {
		_, _ = flightRecorder.WriteTo(w)
	})
}
