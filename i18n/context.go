// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package i18n

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type contextKeyType struct{}

var tagKey = contextKeyType{}

// LangParam is the name of the URL query parameter used by HTTP helpers to read
// a preferred language as a BCP 47 tag.
const LangParam = "lang"

// WithTag stores t in ctx and returns a derived context that carries it.
//
// Passing the zero value of [language.Tag] clears any existing value.
func WithTag(ctx context.Context, t language.Tag) context.Context {
	return context.WithValue(ctx, tagKey, t)
}

// TagFrom returns the language tag stored in ctx, or the tag for [BaseLocale]
// if none is present. It never returns the zero value of [language.Tag].
func TagFrom(ctx context.Context) language.Tag {
	if ctx != nil {
		if t, _ := ctx.Value(tagKey).(language.Tag); t != (language.Tag{}) {
			return t
		}
	}

	return baseTag
}

// FromRequest returns the best language tag for r by inspecting, in order,
// the [LangParam] query parameter and the Accept-Language header. A [LangParam]
// of "auto" (case-insensitive) is ignored.
//
// fallback is consulted when neither is present, which lets the server answer
// in the configured user language by default.
//
// If r is nil, or if Setup has not been called, FromRequest returns the tag for [BaseLocale].
func FromRequest(r *http.Request, fallback string) language.Tag {
	if r == nil || matcher == nil {
		return baseTag
	}

	preferred := make([]string, 0, 3)

	if q := r.URL.Query().Get(LangParam); q != "" && !strings.EqualFold(q, "auto") {
		preferred = append(preferred, q)
	}

	if al := r.Header.Get("Accept-Language"); al != "" {
		preferred = append(preferred, al)
	}

	if len(preferred) == 0 && fallback != "" {
		preferred = append(preferred, fallback)
	}

	tag, _ := language.MatchStrings(matcher, preferred...)

	return tag
}
