// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"net/http"

	"codeberg.org/safebites/safebites/config"
	"codeberg.org/safebites/safebites/i18n"
	"codeberg.org/safebites/safebites/translate"
)

type languagesResponse struct {
	// User is the language allergen terms are written in.
	User translate.LanguageCode `json:"user"`

	// Interface lists the languages status messages can be localized into.
	Interface []i18n.Language `json:"interface"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Revision string `json:"revision"`
	Instance string `json:"instance"`
}

// Languages reports the configured user language and the supported interface languages.
func (api *API) Languages(w http.ResponseWriter, r *http.Request) error {
	supported := i18n.Languages()
	if supported == nil {
		supported = []i18n.Language{}
	}

	return writeJSON(w, http.StatusOK, languagesResponse{
		User:      api.engine.UserLanguage(),
		Interface: supported,
	})
}

// Health answers 200 while the scanner accepts work and 503 once it has stopped.
func (api *API) Health(w http.ResponseWriter, r *http.Request) error {
	resp := healthResponse{
		Status:   "ok",
		Version:  config.BuildVersion,
		Revision: config.Global.Build.Revision(),
		Instance: config.Global.Instance.InstanceID,
	}

	status := http.StatusOK

	select {
	case <-api.scanner.Done():
		resp.Status = "stopping"
		status = http.StatusServiceUnavailable
	default:
	}

	w.Header().Set("Cache-Control", "no-store")

	return writeJSON(w, status, resp)
}
