// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package i18n provides internationalisation utilities backed by GNU gettext
.po catalogues. It translates the user-facing status and error messages of the
scanner into the user's language.

# Quick start

Use the original English text as the msgid; do not invent keys.

	i18n.Tr(ctx, "No allergens found")
	i18n.TrC(ctx, "button", "Retry") // disambiguation via context
	i18n.TrN(ctx, "{{.Count}} allergen detected", "{{.Count}} allergens detected", n, "Count", n)

Run cmd/i18n_extract after adding messages to regenerate po/safebites.pot.

# Missing translations

By default, missing translations return the msgid unchanged. When
StrictMissingKeys is enabled, missing lookups are logged once
per locale+key and the returned text is visibly wrapped as "⟦...⟧".

# Formatting

Translations can include placeholders that are processed by Go's standard
text/template package. Provide substitutions as alternating key-value pairs
to any of the Tr functions.

# Allergen names

Localized names for the starter allergen list live in subpackage i18n/terms.
*/
package i18n
