// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package i18n

import (
	"slices"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// BaseLocale is the default locale used when no specific locale is set.
const BaseLocale = "en"

// baseTag is the canonical tag for BaseLocale.
var baseTag = language.Make(BaseLocale)

// Language describes one supported UI language.
type Language struct {
	Tag string `json:"tag"`

	// Name is the language's name written in itself, such as "Español".
	Name string `json:"name"`
}

// Languages returns the supported languages derived from the loaded gettext
// catalogues, sorted by tag. It returns nil before Setup has succeeded.
func Languages() []Language {
	if matcher == nil {
		return nil
	}

	out := make([]Language, 0, len(supportedTags))

	for _, t := range supportedTags {
		out = append(out, Language{Tag: t.String(), Name: display.Self.Name(t)})
	}

	slices.SortFunc(out, func(a, b Language) int {
		switch {
		case a.Tag < b.Tag:
			return -1
		case a.Tag > b.Tag:
			return 1
		default:
			return 0
		}
	})

	return out
}
