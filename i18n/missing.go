// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package i18n

import (
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"codeberg.org/safebites/safebites/config"
)

// Logger is the logger used by package i18n.
var Logger zerolog.Logger

// Text without a translation is wrapped in these markers when
// StrictMissingKeys is enabled.
const (
	missingOpen  = "⟦"
	missingClose = "⟧"
)

// missingKey identifies one untranslated lookup.
type missingKey struct {
	locale  string
	msgctxt string
	msgid   string
}

// reported holds every missingKey already logged.
var reported sync.Map

func strict() bool {
	return config.Global.Internationalization.StrictMissingKeys
}

// missing logs the first lookup of msgid in tag that had no translation and
// returns text wrapped in the missing markers.
func missing(tag language.Tag, msgctxt, msgid, text string) string {
	key := missingKey{locale: localeKey(tag), msgctxt: msgctxt, msgid: msgid}

	if _, seen := reported.LoadOrStore(key, struct{}{}); !seen {
		event := Logger.Warn().
			Str("locale", key.locale).
			Str("msgid", msgid)
		if msgctxt != "" {
			event = event.Str("msgctxt", msgctxt)
		}

		event.Msg("Missing translation")
	}

	return marked(text)
}

func marked(s string) string {
	return missingOpen + s + missingClose
}

// localeKey reduces tag to its language, script and region so that variants
// and extensions share one entry.
func localeKey(tag language.Tag) string {
	b, s, r := tag.Raw()
	reduced, _ := language.Compose(b, s, r)

	return reduced.String()
}
