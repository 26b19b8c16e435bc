// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package keymanager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundRobin(t *testing.T) {
	t.Parallel()

	km := New([]string{"a", "b", "c"}, time.Second, time.Minute, "round-robin")

	var got []string
	for range 4 {
		got = append(got, km.Get().Value)
	}

	assert.Equal(t, []string{"a", "b", "c", "a"}, got)
}

func TestTimedOutKeyIsSkippedThenRevived(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	km := New([]string{"only"}, time.Second, 4*time.Second, "round-robin")
	km.now = func() time.Time { return now }

	key := km.Get()
	require.NotNil(t, key)

	km.MarkTimedOut(key)
	assert.Nil(t, km.Get(), "key should be unavailable during its timeout")

	now = now.Add(2 * time.Second)
	revived := km.Get()
	require.NotNil(t, revived)
	assert.Equal(t, "only", revived.Value)
}

func TestBackoffIsCapped(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	km := New([]string{"k"}, time.Second, 4*time.Second, "round-robin")
	km.now = func() time.Time { return now }

	key := km.Get()
	for range 10 {
		km.MarkTimedOut(key)
	}

	assert.Equal(t, now.Add(4*time.Second), key.timeoutUntil)

	km.MarkGood(key)
	assert.Equal(t, 0, key.failureCount)
}

func TestNoKeys(t *testing.T) {
	t.Parallel()

	km := New(nil, time.Second, time.Second, "random")

	assert.Nil(t, km.Get())
	assert.Equal(t, 0, km.Len())
}

func TestLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	km := New([]string{"a", "b"}, time.Second, time.Second, "least-recently-used")
	km.now = func() time.Time {
		now = now.Add(time.Millisecond)

		return now
	}

	first := km.Get().Value
	second := km.Get().Value

	assert.NotEqual(t, first, second)
}
