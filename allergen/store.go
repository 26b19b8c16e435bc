// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package allergen holds the user's allergen terms for the current session.
*/
package allergen

import (
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Term is a single user allergen.
type Term struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Store is an in-memory, insertion-ordered list of terms. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	terms   []Term
	byID    map[string]int
	version uint64
}

// NewStore returns a store seeded with defaults, all of them disabled.
func NewStore(defaults ...string) *Store {
	s := &Store{byID: make(map[string]int, len(defaults))}

	for _, name := range defaults {
		s.insert(name, false)
	}

	return s
}

// Add appends a new, enabled term. Empty names are accepted but never match.
func (s *Store) Add(name string) Term {
	s.mu.Lock()
	defer s.mu.Unlock()

	term := s.insert(name, true)
	s.version++

	return term
}

// SetEnabled toggles a term. Unknown IDs are ignored and reported as false.
func (s *Store) SetEnabled(id string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byID[id]
	if !ok {
		return false
	}

	if s.terms[i].Enabled != enabled {
		s.terms[i].Enabled = enabled
		s.version++
	}

	return true
}

// Get returns the term with the given ID.
func (s *Store) Get(id string) (Term, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return Term{}, false
	}

	return s.terms[i], true
}

// List returns a copy of every term in insertion order.
func (s *Store) List() []Term {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.terms)
}

// EnabledTerms returns the names of enabled terms, lower-cased, trimmed,
// de-duplicated and sorted. Blank names are dropped.
func (s *Store) EnabledTerms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.terms))

	for _, term := range s.terms {
		if !term.Enabled {
			continue
		}

		name := strings.ToLower(strings.TrimSpace(term.Name))
		if name == "" {
			continue
		}

		out = append(out, name)
	}

	slices.Sort(out)

	return slices.Compact(out)
}

// Version increases on every change that can affect EnabledTerms.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.version
}

func (s *Store) insert(name string, enabled bool) Term {
	term := Term{
		ID:      uuid.NewString(),
		Name:    name,
		Enabled: enabled,
	}

	s.byID[term.ID] = len(s.terms)
	s.terms = append(s.terms, term)

	return term
}
