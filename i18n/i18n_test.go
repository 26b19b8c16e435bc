// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package i18n

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"codeberg.org/safebites/safebites/config"
	"codeberg.org/safebites/safebites/i18n/terms"
	"codeberg.org/safebites/safebites/server/assets"
)

// These tests share package state and therefore do not run in parallel.

func setup(t *testing.T) {
	t.Helper()

	assets.FS = os.DirFS("..")

	require.NoError(t, Setup())
}

func ctxFor(tag string) context.Context {
	return WithTag(context.Background(), language.Make(tag))
}

func TestSetupLoadsCatalogues(t *testing.T) {
	setup(t)

	var tags []string
	for _, l := range Languages() {
		tags = append(tags, l.Tag)
	}

	assert.Equal(t, []string{"ar", "en", "es", "ja"}, tags)
	assert.Positive(t, terms.Len())
	assert.Equal(t, "Leche", terms.Localize("es", "Milk"))
}

func TestTr(t *testing.T) {
	setup(t)

	assert.Equal(t, "No allergens found", Tr(context.Background(), "No allergens found"))
	assert.Equal(t, "No se encontraron alérgenos", Tr(ctxFor("es"), "No allergens found"))
	assert.Equal(t, "No se encontraron alérgenos", Tr(ctxFor("es-MX"), "No allergens found"))
	assert.Equal(t, "データが不足しています", MsgKey("Not enough data").Tr(ctxFor("ja")))

	// Unsupported languages fall back to the source text.
	assert.Equal(t, "Not enough data", Tr(ctxFor("ko"), "Not enough data"))
}

func TestTrN(t *testing.T) {
	setup(t)

	const (
		singular = "{{.Count}} allergen detected"
		plural   = "{{.Count}} allergens detected"
	)

	assert.Equal(t, "1 allergen detected", TrN(context.Background(), singular, plural, 1, "Count", 1))
	assert.Equal(t, "3 allergens detected", TrN(context.Background(), singular, plural, 3, "Count", 3))
	assert.Equal(t, "3 alérgenos detectados", TrN(ctxFor("es"), singular, plural, 3, "Count", 3))
	assert.Equal(t, "2 件のアレルゲンを検出", TrN(ctxFor("ja"), singular, plural, 2, "Count", 2))
}

func TestStrictMissingKeys(t *testing.T) {
	setup(t)

	previous := config.Global.Internationalization.StrictMissingKeys
	config.Global.Internationalization.StrictMissingKeys = true

	t.Cleanup(func() { config.Global.Internationalization.StrictMissingKeys = previous })

	assert.Equal(t, "⟦Unheard of⟧", Tr(ctxFor("es"), "Unheard of"))
	assert.Equal(t, "Unheard of", Tr(ctxFor("en"), "Unheard of"), "the source language is never missing")
}

func TestFromRequest(t *testing.T) {
	setup(t)

	r := httptest.NewRequest("GET", "/api/results?lang=ja", nil)
	r.Header.Set("Accept-Language", "es")
	assert.Equal(t, "ja", localeKey(FromRequest(r, "")))

	r = httptest.NewRequest("GET", "/api/results", nil)
	r.Header.Set("Accept-Language", "ar-EG,ar;q=0.9")
	assert.Equal(t, "ar", mustBase(FromRequest(r, "")))

	r = httptest.NewRequest("GET", "/api/results?lang=auto", nil)
	assert.Equal(t, "es", mustBase(FromRequest(r, "es")))

	assert.Equal(t, baseTag, FromRequest(nil, "ja"))
}

func TestTrC(t *testing.T) {
	setup(t)

	assert.Equal(t, "Reintentar", TrC(ctxFor("es"), "button", "Retry"))
	assert.Equal(t, "再試行", TrC(ctxFor("ja"), "button", "Retry"))

	// Without the context the msgid is a different entry.
	assert.Equal(t, "Retry", Tr(ctxFor("es"), "Retry"))
}

func TestMissingIsLoggedOnce(t *testing.T) {
	setup(t)

	var buf bytes.Buffer

	previousLogger, previousStrict := Logger, config.Global.Internationalization.StrictMissingKeys
	Logger = zerolog.New(&buf)
	config.Global.Internationalization.StrictMissingKeys = true

	reported.Clear()

	t.Cleanup(func() {
		Logger = previousLogger
		config.Global.Internationalization.StrictMissingKeys = previousStrict
	})

	assert.Equal(t, "⟦Never translated⟧", Tr(ctxFor("ja"), "Never translated"))
	assert.Equal(t, "⟦Never translated⟧", Tr(ctxFor("ja-JP"), "Never translated"))
	assert.Equal(t, "⟦2 oddities⟧", TrN(ctxFor("ja"), "{{.Count}} oddity", "{{.Count}} oddities", 2, "Count", 2))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"msgid":"Never translated"`)
	assert.Contains(t, lines[0], `"locale":"ja"`)
	assert.Contains(t, lines[1], `"msgid":"{{.Count}} oddity"`)
}

func TestRenderFailure(t *testing.T) {
	setup(t)

	// A placeholder with no value renders the raw text rather than "<no value>".
	assert.Equal(t, "{{.Count}} left", Tr(context.Background(), "{{.Count}} left"))
	assert.Equal(t, "3 left", Tr(context.Background(), "{{.Count}} left", "Count", 3))

	assert.Panics(t, func() { Tr(context.Background(), "x", "Count") })
	assert.Panics(t, func() { Tr(context.Background(), "x", 1, 2) })
}

func mustBase(tag language.Tag) string {
	base, _ := tag.Base()

	return base.String()
}
