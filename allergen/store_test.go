// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package allergen

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreDefaultsAreDisabled(t *testing.T) {
	t.Parallel()

	s := NewStore("Eggs", "Milk")

	terms := s.List()
	require.Len(t, terms, 2)
	assert.Equal(t, "Eggs", terms[0].Name)
	assert.Equal(t, "Milk", terms[1].Name)

	for _, term := range terms {
		assert.False(t, term.Enabled)

		_, err := uuid.Parse(term.ID)
		assert.NoError(t, err)
	}

	assert.Empty(t, s.EnabledTerms())
	assert.Zero(t, s.Version())
}

func TestAddEnablesAndBumpsVersion(t *testing.T) {
	t.Parallel()

	s := NewStore()

	term := s.Add("Mustard")
	assert.True(t, term.Enabled)
	assert.Equal(t, uint64(1), s.Version())

	got, ok := s.Get(term.ID)
	require.True(t, ok)
	assert.Equal(t, term, got)
}

func TestSetEnabled(t *testing.T) {
	t.Parallel()

	s := NewStore("Milk")
	id := s.List()[0].ID

	assert.True(t, s.SetEnabled(id, true))
	assert.Equal(t, []string{"milk"}, s.EnabledTerms())
	assert.Equal(t, uint64(1), s.Version())

	// No change, no version bump.
	assert.True(t, s.SetEnabled(id, true))
	assert.Equal(t, uint64(1), s.Version())

	assert.False(t, s.SetEnabled("missing", true), "unknown IDs are a no-op")
	assert.Equal(t, uint64(1), s.Version())
}

func TestEnabledTermsNormalises(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Add("  Peanuts ")
	s.Add("milk")
	s.Add("MILK")
	s.Add("")
	s.Add("   ")

	assert.Equal(t, []string{"milk", "peanuts"}, s.EnabledTerms())
	assert.Len(t, s.List(), 5, "blank names are stored even though they never match")
}

func TestListReturnsCopy(t *testing.T) {
	t.Parallel()

	s := NewStore("Soy")

	terms := s.List()
	terms[0].Name = "changed"

	assert.Equal(t, "Soy", s.List()[0].Name)
}

func TestConcurrentMutation(t *testing.T) {
	t.Parallel()

	s := NewStore()

	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 50 {
				term := s.Add("x")
				s.SetEnabled(term.ID, false)
				_ = s.EnabledTerms()
			}
		}()
	}

	wg.Wait()

	assert.Len(t, s.List(), 400)
	assert.Equal(t, uint64(800), s.Version())
}
