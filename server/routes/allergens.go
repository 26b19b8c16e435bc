// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"errors"
	"net/http"
	"strings"

	"codeberg.org/safebites/safebites/allergen"
	"codeberg.org/safebites/safebites/server/utils"
)

var (
	errEmptyAllergenName = errors.New("allergen name must not be empty")
	errMissingEnabled    = errors.New(`"enabled" is required`)
)

type allergenList struct {
	Version   uint64          `json:"version"`
	Allergens []allergen.Term `json:"allergens"`
}

type addAllergenRequest struct {
	Name string `json:"name"`
}

type setEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// ListAllergens returns every allergen term with its enabled flag.
func (api *API) ListAllergens(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, allergenList{
		Version:   api.allergens.Version(),
		Allergens: api.allergens.List(),
	})
}

// GetAllergen returns a single allergen term.
func (api *API) GetAllergen(w http.ResponseWriter, r *http.Request) error {
	term, ok := api.allergens.Get(utils.GetPathVar(r, "id"))
	if !ok {
		return notFound(msgAllergenNotFound)
	}

	return writeJSON(w, http.StatusOK, term)
}

// AddAllergen creates a custom, enabled allergen term and rescans all fragments.
func (api *API) AddAllergen(w http.ResponseWriter, r *http.Request) error {
	var req addAllergenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return badRequest(errEmptyAllergenName)
	}

	term := api.allergens.Add(name)

	api.log.Info().
		Str("id", term.ID).
		Str("name", term.Name).
		Msg("Allergen added")

	api.refresh()

	w.Header().Set("Location", "/api/allergens/"+term.ID)

	return writeJSON(w, http.StatusCreated, term)
}

// SetAllergenEnabled toggles an allergen term. Fragments are rescanned only
// when the flag actually changed.
func (api *API) SetAllergenEnabled(w http.ResponseWriter, r *http.Request) error {
	var req setEnabledRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	if req.Enabled == nil {
		return badRequest(errMissingEnabled)
	}

	id := utils.GetPathVar(r, "id")
	before := api.allergens.Version()

	if !api.allergens.SetEnabled(id, *req.Enabled) {
		return notFound(msgAllergenNotFound)
	}

	if api.allergens.Version() != before {
		api.log.Info().
			Str("id", id).
			Bool("enabled", *req.Enabled).
			Msg("Allergen toggled")

		api.refresh()
	}

	term, _ := api.allergens.Get(id)

	return writeJSON(w, http.StatusOK, term)
}
