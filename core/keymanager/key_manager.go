// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package keymanager rotates translation backend API keys and backs off keys that fail.
*/
package keymanager

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// Possible keyStatus values.
const (
	Good     keyStatus = iota // Key is in a good state and can be used
	TimedOut                  // Key is currently timed out and should not be used
)

// keyStatus represents the current state of a key.
type keyStatus int

// Key is a single backend API key with its rotation metadata.
type Key struct {
	Value string

	status       keyStatus
	timeoutUntil time.Time
	failureCount int
	lastUsed     time.Time
}

// KeyManager hands out keys according to a load balancing method and
// times out keys that receive non-OK responses with exponential backoff.
//
// It is safe for concurrent use.
type KeyManager struct {
	keys                []*Key
	baseTimeout         time.Duration
	maxBackoffTime      time.Duration
	loadBalancingMethod string // "round-robin", "random" or "least-recently-used"
	currentIndex        int
	now                 func() time.Time
	mu                  sync.Mutex
}

// New creates a KeyManager for the given key values.
func New(
	keyValues []string,
	baseTimeout, maxBackoffTime time.Duration,
	loadBalancingMethod string,
) *KeyManager {
	keys := make([]*Key, len(keyValues))

	for i, value := range keyValues {
		keys[i] = &Key{Value: value, status: Good}
	}

	return &KeyManager{
		keys:                keys,
		baseTimeout:         baseTimeout,
		maxBackoffTime:      maxBackoffTime,
		loadBalancingMethod: loadBalancingMethod,
		now:                 time.Now,
	}
}

// Len returns the number of managed keys.
func (km *KeyManager) Len() int {
	return len(km.keys)
}

// Get selects a key. It returns nil only when the manager holds no keys or
// every key is timed out and none of the timeouts has elapsed yet.
func (km *KeyManager) Get() *Key {
	km.mu.Lock()
	defer km.mu.Unlock()

	now := km.now()
	healthy := km.healthyKeys()

	if len(healthy) == 0 {
		return km.fallbackKey(now)
	}

	var selected *Key

	switch km.loadBalancingMethod {
	case "random":
		// #nosec:G404 - key selection doesn't need to be cryptographically secure.
		selected = healthy[rand.Intn(len(healthy))]
	case "least-recently-used":
		sort.Slice(healthy, func(i, j int) bool {
			return healthy[i].lastUsed.Before(healthy[j].lastUsed)
		})

		selected = healthy[0]
	default:
		if km.currentIndex >= len(healthy) {
			km.currentIndex = 0
		}

		selected = healthy[km.currentIndex]
		km.currentIndex++
	}

	selected.lastUsed = now

	return selected
}

// MarkGood clears the failure history of key.
func (km *KeyManager) MarkGood(key *Key) {
	km.mu.Lock()
	defer km.mu.Unlock()

	key.status = Good
	key.failureCount = 0
}

// MarkTimedOut takes key out of rotation for an exponentially growing period,
// capped at the configured maximum backoff.
func (km *KeyManager) MarkTimedOut(key *Key) {
	km.mu.Lock()
	defer km.mu.Unlock()

	key.status = TimedOut
	key.failureCount++

	const exponentialBase = 2

	timeout := time.Duration(math.Min(
		float64(km.baseTimeout)*math.Pow(exponentialBase, float64(key.failureCount-1)),
		float64(km.maxBackoffTime),
	))

	key.timeoutUntil = km.now().Add(timeout)
}

// ResetAll returns every key to the good state.
func (km *KeyManager) ResetAll() {
	km.mu.Lock()
	defer km.mu.Unlock()

	for _, key := range km.keys {
		key.status = Good
		key.failureCount = 0
	}
}

func (km *KeyManager) healthyKeys() []*Key {
	healthy := make([]*Key, 0, len(km.keys))

	for _, key := range km.keys {
		if key.status == Good {
			healthy = append(healthy, key)
		}
	}

	return healthy
}

// fallbackKey revives the timed-out key whose timeout ends first, if it has ended.
func (km *KeyManager) fallbackKey(now time.Time) *Key {
	var best *Key

	for _, key := range km.keys {
		if best == nil || key.timeoutUntil.Before(best.timeoutUntil) {
			best = key
		}
	}

	if best == nil || now.Before(best.timeoutUntil) {
		return nil
	}

	best.status = Good
	best.lastUsed = now

	return best
}
