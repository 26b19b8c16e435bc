// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package i18n

import (
	"context"
	"strings"
	"sync"
	"text/template"

	"github.com/leonelquinteros/gotext"
	"golang.org/x/text/language"
)

// templates holds parsed message templates keyed by their text.
var templates sync.Map

// gotext's getters take printf-style arguments. Msgids are looked up as plain
// data and never passed with arguments, so they are called through these values.
var (
	getD  = (*gotext.Locale).GetD
	getND = (*gotext.Locale).GetND
	getDC = (*gotext.Locale).GetDC
)

// Tr translates msgid, the English source text, into the language carried by
// ctx. Optional key, value pairs fill {{.Key}} placeholders in the result.
//
// An untranslated msgid is returned as is, or wrapped in markers when
// StrictMissingKeys is enabled.
func Tr(ctx context.Context, msgid string, kv ...any) string {
	return translate(ctx, message{msgid: msgid}, pairs(kv))
}

// TrC is Tr with a gettext msgctxt, for short strings that translate
// differently depending on where they appear.
func TrC(ctx context.Context, msgctxt, msgid string, kv ...any) string {
	return translate(ctx, message{msgctxt: msgctxt, msgid: msgid}, pairs(kv))
}

// TrN picks the plural form of singular for count n. Untranslated, it falls
// back to singular when n is 1 and to plural otherwise.
func TrN(ctx context.Context, singular, plural string, n int, kv ...any) string {
	return translate(ctx, message{msgid: singular, plural: plural, n: n, counted: true}, pairs(kv))
}

// message is a single catalogue lookup.
type message struct {
	msgctxt string
	msgid   string
	plural  string
	n       int
	counted bool
}

// source is the English text used when no translation exists.
func (m message) source() string {
	if m.counted && m.n != 1 {
		return m.plural
	}

	return m.msgid
}

// lookup returns the translation of m in loc, if there is one.
func (m message) lookup(loc *gotext.Locale) (string, bool) {
	if loc == nil {
		return "", false
	}

	switch {
	case m.counted:
		if loc.IsTranslatedND(poDomain, m.msgid, m.n) {
			return getND(loc, poDomain, m.msgid, m.plural, m.n), true
		}
	case m.msgctxt != "":
		if loc.IsTranslatedDC(poDomain, m.msgid, m.msgctxt) {
			return getDC(loc, poDomain, m.msgid, m.msgctxt), true
		}
	default:
		if loc.IsTranslatedD(poDomain, m.msgid) {
			return getD(loc, poDomain, m.msgid), true
		}
	}

	return "", false
}

func translate(ctx context.Context, m message, data map[string]any) string {
	loc, tag := resolveLocale(TagFrom(ctx))

	text, ok := m.lookup(loc)
	if !ok {
		text = m.source()

		// The base locale is the source language, so it has nothing to miss.
		if tag != baseTag && strict() {
			text = missing(tag, m.msgctxt, m.msgid, text)
		}
	}

	return render(tag, text, data)
}

// render fills the placeholders in s. Text without placeholders is returned
// untouched. A template that fails to parse or execute yields s itself.
func render(tag language.Tag, s string, data map[string]any) string {
	if !strings.Contains(s, "{{") {
		return s
	}

	var out strings.Builder

	tmpl, err := parsed(s)
	if err == nil {
		err = tmpl.Execute(&out, data)
	}

	if err != nil {
		if strict() {
			return marked(s)
		}

		Logger.Warn().
			Err(err).
			Str("locale", tag.String()).
			Str("text", s).
			Msg("Failed to render translation")

		return s
	}

	return out.String()
}

func parsed(s string) (*template.Template, error) {
	if cached, ok := templates.Load(s); ok {
		return cached.(*template.Template), nil
	}

	tmpl, err := template.New("msg").Option("missingkey=error").Parse(s)
	if err != nil {
		return nil, err
	}

	cached, _ := templates.LoadOrStore(s, tmpl)

	return cached.(*template.Template), nil
}

// resolveLocale matches t against the loaded catalogues. It returns a nil
// locale and baseTag when Setup has not run.
func resolveLocale(t language.Tag) (*gotext.Locale, language.Tag) {
	if matcher == nil {
		return nil, baseTag
	}

	matched, _, _ := matcher.Match(t)
	if loc, ok := localesByTag[matched.String()]; ok {
		return loc, matched
	}

	// The matcher may attach a -u-rg extension; catalogues are keyed by base language.
	base, _ := matched.Base()

	return localesByTag[base.String()], language.Make(base.String())
}

// pairs turns alternating key, value arguments into template data. It panics
// on an odd count or a non-string key, both programming errors at the call site.
func pairs(kv []any) map[string]any {
	if len(kv)%2 != 0 {
		panic("i18n: odd number of key, value arguments")
	}

	data := make(map[string]any, len(kv)/2)

	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic("i18n: template key must be a string")
		}

		data[key] = kv[i+1]
	}

	return data
}
