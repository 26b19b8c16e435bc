// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package match finds the user's allergen terms in a piece of recognized text.

A run detects the text's language, translates the terms into it, looks for each
translation in the text and reports the hits as the user's original terms:

	Detecting -> Translating -> Matching -> BackTranslating

The back-translation stage maps each hit to the term the user entered, which is
already in the user's language, so it never calls the translator.
*/
package match

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"

	"codeberg.org/safebites/safebites/core/audit"
	"codeberg.org/safebites/safebites/translate"
)

// Status is the outcome of a run.
type Status string

// Possible Status values.
const (
	// StatusMatched means matching ran; Matched may still be empty.
	StatusMatched Status = "matched"

	// StatusNoResult means matching could not be attempted: the text was empty,
	// detection failed, or the language could not be determined.
	StatusNoResult Status = "no_result"

	// StatusTranslateFailed means no term could be translated into the text's language.
	StatusTranslateFailed Status = "translate_failed"

	// StatusAborted means the context was cancelled or the observer asked to stop.
	StatusAborted Status = "aborted"
)

// Stage names a step of a run.
type Stage string

// Stages in the order a run passes through them.
const (
	StageDetecting       Stage = "detecting"
	StageTranslating     Stage = "translating"
	StageMatching        Stage = "matching"
	StageBackTranslating Stage = "back_translating"
)

// Observer is told about each stage before it starts. Returning an error aborts the run.
type Observer func(Stage) error

// ErrNoText is reported for blank input.
var ErrNoText = errors.New("no text to match against")

// Result is the outcome of Engine.Run.
type Result struct {
	Status Status

	// Matched holds the user's terms found in the text, de-duplicated and sorted.
	Matched []string

	// SourceLanguage is the detected language of the text, or translate.Unknown.
	SourceLanguage translate.LanguageCode

	// Untranslated lists the terms that could not be translated and were skipped.
	Untranslated []string

	// Err describes why the run did not end in StatusMatched.
	Err error
}

// Options configures an Engine.
type Options struct {
	// UserLanguage is the language the user's terms are written in.
	UserLanguage translate.LanguageCode

	// WordBoundary requires a match to start and end on a word boundary.
	// By default any substring counts, so "egg" also matches "eggplant".
	WordBoundary bool
}

// Engine runs the matching pipeline. It is safe for concurrent use.
type Engine struct {
	detector     translate.Detector
	translator   translate.Translator
	userLanguage translate.LanguageCode
	wordBoundary bool
	log          zerolog.Logger
}

// NewEngine returns an Engine that detects with detector and translates with translator.
func NewEngine(detector translate.Detector, translator translate.Translator, opts Options) *Engine {
	return &Engine{
		detector:     detector,
		translator:   translator,
		userLanguage: translate.Normalize(string(opts.UserLanguage)),
		wordBoundary: opts.WordBoundary,
		log:          audit.Sys("match"),
	}
}

// UserLanguage returns the language results are reported in.
func (e *Engine) UserLanguage() translate.LanguageCode {
	return e.userLanguage
}

// Run matches terms against text. observe may be nil.
func (e *Engine) Run(ctx context.Context, text string, terms []string, observe Observer) Result {
	notify := func(stage Stage) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if observe == nil {
			return nil
		}

		return observe(stage)
	}

	if err := notify(StageDetecting); err != nil {
		return aborted(translate.Unknown, err)
	}

	if strings.TrimSpace(text) == "" {
		return Result{Status: StatusNoResult, SourceLanguage: translate.Unknown, Err: ErrNoText}
	}

	source, err := e.detector.Detect(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return aborted(translate.Unknown, ctx.Err())
		}

		return Result{Status: StatusNoResult, SourceLanguage: translate.Unknown, Err: err}
	}

	if source == translate.Unknown {
		return Result{
			Status:         StatusNoResult,
			SourceLanguage: source,
			Err:            fmt.Errorf("%w: language undetermined", translate.ErrDetectionFailed),
		}
	}

	if err := notify(StageTranslating); err != nil {
		return aborted(source, err)
	}

	terms = normalizeTerms(terms)

	var translations []translate.Translation

	if translate.SameLanguage(source, e.userLanguage) {
		translations = make([]translate.Translation, len(terms))
		for i, term := range terms {
			translations[i] = translate.Translation{Source: term, Text: term}
		}
	} else {
		translations = e.translator.TranslateBatch(ctx, terms, source)
		if ctx.Err() != nil {
			return aborted(source, ctx.Err())
		}
	}

	var untranslated []string

	for _, tr := range translations {
		if !tr.OK() {
			untranslated = append(untranslated, tr.Source)

			e.log.Warn().
				Err(tr.Err).
				Str("term", tr.Source).
				Str("target", string(source)).
				Msg("Skipping term that could not be translated")
		}
	}

	if len(terms) > 0 && len(untranslated) == len(terms) {
		return Result{
			Status:         StatusTranslateFailed,
			SourceLanguage: source,
			Untranslated:   untranslated,
			Err:            translate.ErrTranslationFailed,
		}
	}

	if err := notify(StageMatching); err != nil {
		return aborted(source, err)
	}

	fold := cases.Fold()
	haystack := fold.String(text)

	var hits []string

	for _, tr := range translations {
		if !tr.OK() {
			continue
		}

		needle := fold.String(strings.TrimSpace(tr.Text))
		if needle == "" {
			continue
		}

		if e.contains(haystack, needle) {
			hits = append(hits, tr.Source)
		}
	}

	if err := notify(StageBackTranslating); err != nil {
		return aborted(source, err)
	}

	// hits are already the user's own terms.
	slices.Sort(hits)
	hits = slices.Compact(hits)

	if hits == nil {
		hits = []string{}
	}

	return Result{
		Status:         StatusMatched,
		Matched:        hits,
		SourceLanguage: source,
		Untranslated:   untranslated,
	}
}

func (e *Engine) contains(haystack, needle string) bool {
	if !e.wordBoundary {
		return strings.Contains(haystack, needle)
	}

	return containsWord(haystack, needle)
}

// containsWord reports whether needle occurs in haystack with no letter or digit
// directly before or after it.
func containsWord(haystack, needle string) bool {
	for offset := 0; offset <= len(haystack)-len(needle); {
		i := strings.Index(haystack[offset:], needle)
		if i < 0 {
			return false
		}

		start := offset + i
		end := start + len(needle)

		before, _ := utf8.DecodeLastRuneInString(haystack[:start])
		after, _ := utf8.DecodeRuneInString(haystack[end:])

		if (start == 0 || !isWordRune(before)) && (end == len(haystack) || !isWordRune(after)) {
			return true
		}

		_, size := utf8.DecodeRuneInString(haystack[start:])
		offset = start + size
	}

	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// normalizeTerms lower-cases, trims, de-duplicates and sorts terms, dropping blanks.
func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))

	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			out = append(out, term)
		}
	}

	slices.Sort(out)

	return slices.Compact(out)
}

func aborted(source translate.LanguageCode, err error) Result {
	return Result{Status: StatusAborted, SourceLanguage: source, Err: err}
}
