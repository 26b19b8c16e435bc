// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package translate detects the language of recognized text and translates
allergen terms into it.

Two backends are provided: [Google], which talks to a Cloud Translation v2
shaped JSON API, and [Identity], which returns every input unchanged.
*/
package translate

import (
	"errors"
	"strings"

	"golang.org/x/text/language"
)

// LanguageCode is a BCP 47 base language such as "en" or "de".
type LanguageCode string

// Unknown is returned by a detector that ran successfully but could not
// tell which language the text is written in.
const Unknown LanguageCode = "und"

var (
	// ErrDetectionFailed is returned when detection could not be attempted or the backend failed.
	ErrDetectionFailed = errors.New("language detection failed")

	// ErrTranslationFailed marks a single term that could not be translated.
	ErrTranslationFailed = errors.New("translation failed")
)

// Normalize reduces a language tag to its base language.
//
// Region and script subtags are dropped ("pt-BR" becomes "pt") and deprecated
// codes are canonicalized. Anything unparseable yields Unknown.
func Normalize(code string) LanguageCode {
	code = strings.TrimSpace(code)
	if code == "" {
		return Unknown
	}

	tag, err := language.Parse(code)
	if err != nil || tag == language.Und {
		return Unknown
	}

	base, confidence := tag.Base()
	if confidence == language.No {
		return Unknown
	}

	return LanguageCode(base.String())
}

// SameLanguage reports whether a and b share a base language.
// Unknown never equals anything, itself included.
func SameLanguage(a, b LanguageCode) bool {
	na, nb := Normalize(string(a)), Normalize(string(b))
	if na == Unknown || nb == Unknown {
		return false
	}

	return na == nb
}

// Tag returns the language.Tag for c, or language.Und if c does not parse.
func (c LanguageCode) Tag() language.Tag {
	tag, err := language.Parse(string(c))
	if err != nil {
		return language.Und
	}

	return tag
}

func (c LanguageCode) String() string {
	return string(c)
}
