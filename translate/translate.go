// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package translate

import (
	"context"
	"strings"
)

// Detector identifies the language a piece of text is written in.
type Detector interface {
	// Detect returns the base language of text. Empty or whitespace-only text
	// fails with ErrDetectionFailed without contacting any backend.
	Detect(ctx context.Context, text string) (LanguageCode, error)
}

// Translator translates terms into a target language.
type Translator interface {
	// TranslateBatch returns one Translation per input term, in input order.
	// A failure for one term never affects the others.
	TranslateBatch(ctx context.Context, terms []string, target LanguageCode) []Translation
}

// Translation is the outcome for one term of a batch.
type Translation struct {
	Source string
	Text   string
	Err    error // wraps ErrTranslationFailed when set
}

// OK reports whether the term was translated.
func (t Translation) OK() bool {
	return t.Err == nil
}

// Identity is a Translator and Detector that performs no translation.
//
// Detect reports Language for every non-blank text; TranslateBatch echoes its input.
type Identity struct {
	Language LanguageCode
}

// Detect implements Detector.
func (id Identity) Detect(_ context.Context, text string) (LanguageCode, error) {
	if strings.TrimSpace(text) == "" {
		return Unknown, ErrDetectionFailed
	}

	return Normalize(string(id.Language)), nil
}

// TranslateBatch implements Translator.
func (Identity) TranslateBatch(_ context.Context, terms []string, _ LanguageCode) []Translation {
	out := make([]Translation, len(terms))

	for i, term := range terms {
		out[i] = Translation{Source: term, Text: term}
	}

	return out
}
