// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package scan runs the matching pipeline for every recognized text fragment and
keeps the latest result for each one.

A single goroutine owns all mutable state. Callers and pipeline runs talk to it
through channels, and readers see an immutable [Snapshot] that is swapped in
atomically after every change.

Every Upsert with a new transcript starts a new generation of that fragment.
The previous run is cancelled, and anything it reports afterwards is discarded,
so a fragment's result always belongs to its newest generation.
*/
package scan

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"codeberg.org/safebites/safebites/core/audit"
	"codeberg.org/safebites/safebites/core/idgen"
	"codeberg.org/safebites/safebites/match"
)

var (
	// ErrStopped is returned by operations on a stopped coordinator.
	ErrStopped = errors.New("scan coordinator stopped")

	// ErrUnknownFragment is returned for an ID the coordinator does not track.
	ErrUnknownFragment = errors.New("unknown fragment")

	// ErrNotRetryable is returned by Retry for a fragment that has not failed.
	ErrNotRetryable = errors.New("fragment is not in a retryable state")
)

// Options configures a Coordinator.
type Options struct {
	// Now defaults to time.Now.
	Now func() time.Time
}

// Coordinator schedules pipeline runs per fragment generation. It is safe for concurrent use.
type Coordinator struct {
	pipeline Pipeline
	terms    TermSource
	now      func() time.Time
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	commands chan command
	events   chan runEvent
	done     chan struct{}
	stopOnce sync.Once
	runs     sync.WaitGroup

	snapshot atomic.Pointer[Snapshot]

	// Owned by the loop goroutine.
	latestGeneration map[string]uint64
	entries          map[string]*entry
	dropped          uint64
}

type entry struct {
	view   FragmentView
	cancel context.CancelFunc
}

type command struct {
	apply func()
	done  chan struct{}
}

type runEvent struct {
	fragmentID string
	generation uint64
	stage      match.Stage
	result     *match.Result
}

// NewCoordinator starts a coordinator. It stops when ctx is cancelled or Stop is called.
func NewCoordinator(ctx context.Context, pipeline Pipeline, terms TermSource, opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Coordinator{
		pipeline:         pipeline,
		terms:            terms,
		now:              opts.Now,
		log:              audit.Sys("scan"),
		commands:         make(chan command),
		events:           make(chan runEvent),
		done:             make(chan struct{}),
		latestGeneration: make(map[string]uint64),
		entries:          make(map[string]*entry),
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.publish()

	go c.loop()

	return c
}

// Upsert adds a fragment or updates its transcript.
//
// A transcript identical to the current one only updates the bounds; repeated
// frames of unchanged text therefore never restart a run.
func (c *Coordinator) Upsert(fragment Fragment) error {
	return c.exec(func() {
		c.upsert(fragment)
	})
}

// Remove forgets a fragment and cancels its run.
func (c *Coordinator) Remove(id string) error {
	var err error

	execErr := c.exec(func() {
		if !c.remove(id) {
			err = ErrUnknownFragment
		}
	})

	return errors.Join(execErr, err)
}

// ReplaceAll makes fragments the complete set: unknown IDs are added, changed
// transcripts restart, and fragments missing from the set are removed.
func (c *Coordinator) ReplaceAll(fragments []Fragment) error {
	return c.exec(func() {
		keep := make(map[string]struct{}, len(fragments))

		for _, fragment := range fragments {
			keep[fragment.ID] = struct{}{}
			c.upsert(fragment)
		}

		for id := range c.entries {
			if _, ok := keep[id]; !ok {
				c.remove(id)
			}
		}
	})
}

// Refresh starts a new generation for every fragment, for example after the
// allergen list changed.
func (c *Coordinator) Refresh() error {
	return c.exec(func() {
		for _, id := range slices.Sorted(maps.Keys(c.entries)) {
			c.restart(id)
		}
	})
}

// Retry starts a new generation for a fragment whose last run failed or found
// nothing to work with.
func (c *Coordinator) Retry(id string) error {
	var err error

	execErr := c.exec(func() {
		e, ok := c.entries[id]

		switch {
		case !ok:
			err = ErrUnknownFragment
		case !e.view.State.Retryable():
			err = ErrNotRetryable
		default:
			c.restart(id)
		}
	})

	return errors.Join(execErr, err)
}

// Stop cancels every run and waits for them to return. Later calls are no-ops.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(c.cancel)
	<-c.done
	c.runs.Wait()
}

// Done is closed once the coordinator has stopped accepting work.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Snapshot returns the current published state.
func (c *Coordinator) Snapshot() *Snapshot {
	return c.snapshot.Load()
}

// Fragment returns the view of a single fragment.
func (c *Coordinator) Fragment(id string) (FragmentView, bool) {
	view, ok := c.snapshot.Load().Fragments[id]

	return view, ok
}

// Summary returns the sorted union of matched terms across all fragments.
func (c *Coordinator) Summary() []string {
	return c.snapshot.Load().Summary
}

// Consume feeds events from src into the coordinator until src closes its
// channel, ctx is cancelled, or the coordinator stops.
func (c *Coordinator) Consume(ctx context.Context, src Source) error {
	events := src.Events()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return ErrStopped
		case ev, ok := <-events:
			if !ok {
				return nil
			}

			var err error

			switch ev.Kind {
			case FragmentUpserted:
				err = c.Upsert(ev.Fragment)
			case FragmentRemoved:
				err = c.Remove(ev.Fragment.ID)
			case FrameReplaced:
				err = c.ReplaceAll(ev.Frame)
			}

			switch {
			case errors.Is(err, ErrStopped):
				return err
			case err != nil:
				c.log.Debug().Err(err).Str("fragment", ev.Fragment.ID).Msg("Ignoring fragment event")
			}
		}
	}
}

// exec runs fn on the loop goroutine and waits for it to finish.
func (c *Coordinator) exec(fn func()) error {
	cmd := command{apply: fn, done: make(chan struct{})}

	select {
	case c.commands <- cmd:
		<-cmd.done

		return nil
	case <-c.done:
		return ErrStopped
	}
}

func (c *Coordinator) loop() {
	defer close(c.done)

	for {
		select {
		case <-c.ctx.Done():
			for _, e := range c.entries {
				e.cancel()
			}

			c.log.Debug().Int("fragments", len(c.entries)).Msg("Scan coordinator stopped")

			return
		case cmd := <-c.commands:
			cmd.apply()
			c.publish()
			close(cmd.done)
		case ev := <-c.events:
			if c.handle(ev) {
				c.publish()
			}
		}
	}
}

// handle applies a run event and reports whether anything visible changed.
func (c *Coordinator) handle(ev runEvent) bool {
	e, ok := c.entries[ev.fragmentID]

	var reason string

	switch {
	case c.ctx.Err() != nil:
		reason = "Dropping event after stop"
	case !ok || c.latestGeneration[ev.fragmentID] != ev.generation:
		reason = "Dropping event from superseded run"
	case ev.result != nil && ev.result.Status == match.StatusAborted:
		// A cancelled run never completed, so the fragment keeps its previous view.
		reason = "Dropping aborted run"
	}

	if reason != "" {
		c.dropped++

		c.log.Debug().
			Str("fragment", ev.fragmentID).
			Uint64("generation", ev.generation).
			Uint64("latest", c.latestGeneration[ev.fragmentID]).
			Msg(reason)

		return true
	}

	if ev.result == nil {
		e.view.Phase = phaseOf(ev.stage)

		return true
	}

	c.commit(e, *ev.result)

	return true
}

func (c *Coordinator) commit(e *entry, res match.Result) {
	e.view.Error = ""

	if res.Err != nil {
		e.view.Error = res.Err.Error()
	}

	switch res.Status {
	case match.StatusMatched:
		e.view.Phase = PhaseDone
		e.view.State = StateNoneFound

		if len(res.Matched) > 0 {
			e.view.State = StateFound
		}
	case match.StatusNoResult:
		e.view.Phase = PhaseDetectFailed
		e.view.State = StateNoResult
	default:
		e.view.Phase = PhaseTranslateFailed
		e.view.State = StateFailed
	}

	// A failed newest generation must not leave an older run's terms on screen.
	matched := res.Matched
	if matched == nil {
		matched = []string{}
	}

	e.view.Result = &Result{
		FragmentID:     e.view.ID,
		Generation:     e.view.Generation,
		Matched:        matched,
		SourceLanguage: res.SourceLanguage,
		Untranslated:   res.Untranslated,
		CompletedAt:    c.now(),
	}

	c.log.Debug().
		Str("fragment", e.view.ID).
		Uint64("generation", e.view.Generation).
		Str("state", string(e.view.State)).
		Strs("matched", matched).
		Msg("Committed scan result")
}

func (c *Coordinator) upsert(fragment Fragment) {
	if e, ok := c.entries[fragment.ID]; ok {
		e.view.Bounds = fragment.Bounds

		if e.view.Transcript == fragment.Transcript {
			return
		}

		e.view.Transcript = fragment.Transcript
		c.restart(fragment.ID)

		return
	}

	c.entries[fragment.ID] = &entry{
		view: FragmentView{Fragment: fragment, Phase: PhaseIdle, State: StatePending},
	}

	c.restart(fragment.ID)
}

func (c *Coordinator) remove(id string) bool {
	e, ok := c.entries[id]
	if !ok {
		return false
	}

	e.cancel()
	delete(c.entries, id)

	// Bumped so anything still in flight for this ID is recognized as stale.
	c.latestGeneration[id]++

	return true
}

// restart cancels the fragment's current run and starts the next generation.
func (c *Coordinator) restart(id string) {
	e := c.entries[id]

	if e.cancel != nil {
		e.cancel()
	}

	c.latestGeneration[id]++
	generation := c.latestGeneration[id]

	e.view.Generation = generation
	e.view.Phase = PhaseIdle
	e.view.State = StatePending

	ctx, cancel := context.WithCancel(c.ctx)
	ctx = audit.WithRequestID(ctx, idgen.Run(id, generation))
	e.cancel = cancel

	transcript := e.view.Transcript
	terms := c.terms.EnabledTerms()

	c.runs.Add(1)

	go func() {
		defer c.runs.Done()
		defer cancel()

		observe := func(stage match.Stage) error {
			c.post(runEvent{fragmentID: id, generation: generation, stage: stage})

			return ctx.Err()
		}

		res := c.pipeline.Run(ctx, transcript, terms, observe)

		c.post(runEvent{fragmentID: id, generation: generation, result: &res})
	}()
}

// post delivers ev to the loop. Stale events are still delivered so the loop
// can account for them; only a stopped coordinator discards them here.
func (c *Coordinator) post(ev runEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Coordinator) publish() {
	fragments := make(map[string]FragmentView, len(c.entries))

	var summary []string

	for id, e := range c.entries {
		fragments[id] = e.view

		if e.view.Result != nil {
			summary = append(summary, e.view.Result.Matched...)
		}
	}

	slices.Sort(summary)

	summary = slices.Compact(summary)
	if summary == nil {
		summary = []string{}
	}

	c.snapshot.Store(&Snapshot{
		Fragments: fragments,
		Summary:   summary,
		Dropped:   c.dropped,
	})
}

func phaseOf(stage match.Stage) Phase {
	switch stage {
	case match.StageDetecting:
		return PhaseDetecting
	case match.StageTranslating:
		return PhaseTranslating
	case match.StageMatching:
		return PhaseMatching
	case match.StageBackTranslating:
		return PhaseBackTranslating
	default:
		return PhaseIdle
	}
}
