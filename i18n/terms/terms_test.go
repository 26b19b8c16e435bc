// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package terms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalize(t *testing.T) {
	SetTranslations(map[string]map[string]string{
		"Milk": {"es": "Leche", "ja": ""},
	})
	t.Cleanup(func() { SetTranslations(map[string]map[string]string{}) })

	assert.Equal(t, "Leche", Localize("es", "Milk"))
	assert.Equal(t, "Milk", Localize("en", "Milk"))
	assert.Equal(t, "Milk", Localize("ja", "Milk"), "empty translations fall back")
	assert.Equal(t, "Soy", Localize("es", "Soy"))
	assert.Equal(t, []string{"Leche", "Soy"}, LocalizeAll("es", []string{"Milk", "Soy"}))
	assert.Equal(t, 1, Len())
}
