// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import (
	"context"
	"errors"
	"sync"
)

// ErrFeedClosed is returned when publishing to a closed Feed.
var ErrFeedClosed = errors.New("fragment feed closed")

// Feed is a Source that other code pushes fragment events into.
type Feed struct {
	events chan FragmentEvent
	mu     sync.RWMutex
	closed bool
}

// NewFeed returns a Feed buffering up to size events.
func NewFeed(size int) *Feed {
	return &Feed{events: make(chan FragmentEvent, max(size, 0))}
}

// Events implements Source.
func (f *Feed) Events() <-chan FragmentEvent {
	return f.events
}

// Publish queues ev, blocking while the buffer is full.
func (f *Feed) Publish(ctx context.Context, ev FragmentEvent) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return ErrFeedClosed
	}

	select {
	case f.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the feed. Events already queued are still delivered.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.closed {
		f.closed = true
		close(f.events)
	}
}
