// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package lrucache

import (
	"bytes"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("ValidSize_NoCompression", func(t *testing.T) {
		t.Parallel()

		cache, err := New(3, time.Minute, false)
		require.NoError(t, err)
		assert.Equal(t, 0, cache.Len())
	})

	t.Run("ValidSize_WithCompression", func(t *testing.T) {
		t.Parallel()

		cache, err := New(3, time.Minute, true)
		require.NoError(t, err)
		assert.Equal(t, 0, cache.Len())
	})

	t.Run("InvalidSize", func(t *testing.T) {
		t.Parallel()

		cache, err := New(0, time.Minute, false)
		require.ErrorIs(t, err, ErrInvalidSize)
		assert.Nil(t, cache)
	})
}

// TestAddAndGet verifies retrieval and that eviction occurs once the capacity is reached.
func TestAddAndGet(t *testing.T) {
	t.Parallel()

	cache, err := New(2, 0, false)
	require.NoError(t, err)

	assert.False(t, cache.Add("foo", []byte("bar")), "eviction should not occur when the cache is not full")

	value, ok := cache.Get("foo")
	require.True(t, ok)
	assert.Equal(t, []byte("bar"), value)

	cache.Add("hello", []byte("world"))
	assert.Equal(t, 2, cache.Len())

	// "foo" was used more recently than "hello", so "hello" goes.
	_, _ = cache.Get("foo")
	assert.True(t, cache.Add("key3", []byte("value3")))

	_, ok = cache.Get("hello")
	assert.False(t, ok, "expected 'hello' to be evicted")

	_, ok = cache.Get("foo")
	assert.True(t, ok)
}

func TestExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	cache, err := New(4, time.Minute, false)
	require.NoError(t, err)

	cache.now = func() time.Time { return now }

	cache.Add("k", []byte("v"))

	now = now.Add(59 * time.Second)
	_, ok := cache.Get("k")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok = cache.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len(), "expired entry should be removed on access")
}

func TestCopiesPreventMutation(t *testing.T) {
	t.Parallel()

	cache, err := New(1, 0, false)
	require.NoError(t, err)

	payload := []byte("abc")
	cache.Add("k", payload)
	payload[0] = 'x'

	got, _ := cache.Get("k")
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'y'

	again, _ := cache.Get("k")
	assert.Equal(t, []byte("abc"), again)
}

func TestCompressionRoundTrip(t *testing.T) {
	t.Parallel()

	cache, err := New(2, 0, true)
	require.NoError(t, err)

	large := bytes.Repeat([]byte(`{"translatedText":"Milch"},`), 200)
	cache.Add("large", large)
	cache.Add("small", []byte("x"))

	got, ok := cache.Get("large")
	require.True(t, ok)
	assert.Equal(t, large, got)

	got, ok = cache.Get("small")
	require.True(t, ok)
	assert.Equal(t, []byte("x"), got)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	cache, err := New(2, 0, false)
	require.NoError(t, err)

	cache.Add("k", []byte("v"))

	assert.True(t, cache.Remove("k"))
	assert.False(t, cache.Remove("k"))
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	cache, err := New(50, time.Minute, true)
	require.NoError(t, err)

	var wg sync.WaitGroup

	for worker := range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range 200 {
				key := strconv.Itoa((worker * i) % 80)
				cache.Add(key, []byte(key))

				if v, ok := cache.Get(key); ok {
					assert.NotEmpty(t, v)
				}
			}
		}()
	}

	wg.Wait()
	assert.LessOrEqual(t, cache.Len(), 50)
}
