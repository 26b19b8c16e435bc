// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package terms

import "sync"

var (
	mu sync.RWMutex

	// translations maps an English allergen name to its name per base language.
	translations = map[string]map[string]string{}
)

// SetTranslations replaces the in-memory translations.
// The provided map is used as-is and not copied.
func SetTranslations(m map[string]map[string]string) {
	mu.Lock()
	defer mu.Unlock()

	translations = m
}

// Len returns the number of English names with translations.
func Len() int {
	mu.RLock()
	defer mu.RUnlock()

	return len(translations)
}

// Localize returns the name of the English allergen name in lang, a base language code.
//
// No normalization is performed on name. If no translation is found, Localize
// returns name unchanged.
func Localize(lang, name string) string {
	if lang == "en" {
		return name
	}

	mu.RLock()
	defer mu.RUnlock()

	if t, ok := translations[name][lang]; ok && t != "" {
		return t
	}

	return name
}

// LocalizeAll applies Localize to every name.
func LocalizeAll(lang string, names []string) []string {
	out := make([]string, len(names))

	for i, name := range names {
		out[i] = Localize(lang, name)
	}

	return out
}
