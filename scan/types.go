// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import (
	"context"
	"time"

	"codeberg.org/safebites/safebites/match"
	"codeberg.org/safebites/safebites/translate"
)

// Region locates a fragment in the camera frame. The coordinator only carries it through.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Fragment is a piece of text recognized in the camera frame.
type Fragment struct {
	ID         string `json:"id"`
	Transcript string `json:"transcript"`
	Bounds     Region `json:"bounds"`
}

// Phase is where a fragment's newest run currently is.
type Phase string

// Possible Phase values.
const (
	PhaseIdle            Phase = "idle"
	PhaseDetecting       Phase = "detecting"
	PhaseTranslating     Phase = "translating"
	PhaseMatching        Phase = "matching"
	PhaseBackTranslating Phase = "back_translating"
	PhaseDone            Phase = "done"
	PhaseDetectFailed    Phase = "detect_failed"
	PhaseTranslateFailed Phase = "translate_failed"
)

// State is what the user is shown for a fragment.
type State string

// Possible State values.
const (
	StatePending   State = "pending"
	StateFound     State = "found"
	StateNoneFound State = "none_found"
	StateNoResult  State = "no_result"
	StateFailed    State = "failed"
)

// Retryable reports whether Coordinator.Retry accepts a fragment in this state.
func (s State) Retryable() bool {
	return s == StateFailed || s == StateNoResult
}

// Result is the committed outcome of one completed run.
type Result struct {
	FragmentID     string                 `json:"fragmentId"`
	Generation     uint64                 `json:"generation"`
	Matched        []string               `json:"matched"`
	SourceLanguage translate.LanguageCode `json:"sourceLanguage"`
	Untranslated   []string               `json:"untranslated,omitempty"`
	CompletedAt    time.Time              `json:"completedAt"`
}

// FragmentView is an immutable picture of one fragment.
//
// Result always comes from a single completed run. While a newer generation is
// in flight, Result still holds the previous run's outcome and State is pending.
type FragmentView struct {
	Fragment

	Generation uint64  `json:"generation"`
	Phase      Phase   `json:"phase"`
	State      State   `json:"state"`
	Result     *Result `json:"result,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Snapshot is the coordinator's published state. Readers must not modify it.
type Snapshot struct {
	Fragments map[string]FragmentView

	// Summary is the sorted union of matched terms across all fragments.
	Summary []string

	// Dropped counts discarded events: those from superseded or aborted runs
	// and those arriving after the coordinator stopped.
	Dropped uint64
}

// Pipeline runs matching for one transcript. *match.Engine implements it.
type Pipeline interface {
	Run(ctx context.Context, text string, terms []string, observe match.Observer) match.Result
}

// TermSource supplies the allergen terms a new run matches against. *allergen.Store implements it.
type TermSource interface {
	EnabledTerms() []string
}

// EventKind distinguishes FragmentEvent payloads.
type EventKind int

// Possible EventKind values.
const (
	FragmentUpserted EventKind = iota
	FragmentRemoved
	FrameReplaced
)

// FragmentEvent is one notification from the text recognizer.
type FragmentEvent struct {
	Kind EventKind

	// Fragment is set for FragmentUpserted. For FragmentRemoved only its ID is used.
	Fragment Fragment

	// Frame is the full set of fragments for FrameReplaced.
	Frame []Fragment
}

// Source is a producer of recognized fragments, such as an OCR engine.
type Source interface {
	// Events returns a channel that is closed when the source is done.
	Events() <-chan FragmentEvent
}
