// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package lrucache provides a thread-safe, fixed-capacity least-recently-used (LRU) cache
of byte payloads with per-entry expiry.

When created with compression enabled via [New], payloads are stored zstd-compressed
whenever that saves space and are transparently decompressed by [Cache.Get].
*/
package lrucache

import (
	"container/list"
	"errors"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// ErrInvalidSize is returned by [New] for a non-positive capacity.
var ErrInvalidSize = errors.New("must provide a positive size")

// Cache is a fixed-capacity, least-recently-used cache that is safe for concurrent use.
// Instances must be constructed with [New]; the zero value is not ready for use.
type Cache struct {
	size      int
	ttl       time.Duration
	evictList *list.List
	items     map[string]*list.Element
	lock      sync.Mutex
	now       func() time.Time

	zstdEnc *zstd.Encoder // nil when compression is disabled
	zstdDec *zstd.Decoder
}

type entry struct {
	key        string
	payload    []byte
	compressed bool
	expiresAt  time.Time
}

// New creates a cache holding at most size entries, each valid for ttl.
// A zero ttl means entries never expire.
func New(size int, ttl time.Duration, compress bool) (*Cache, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	c := &Cache{
		size:      size,
		ttl:       ttl,
		evictList: list.New(),
		items:     make(map[string]*list.Element),
		now:       time.Now,
	}

	if compress {
		// A nil writer/reader lets us use the stateless EncodeAll/DecodeAll.
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}

		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
		if err != nil {
			return nil, err
		}

		c.zstdEnc = enc
		c.zstdDec = dec
	}

	return c, nil
}

// Add stores a copy of payload under key, making it the most recently used entry.
// Add reports whether an eviction occurred.
func (c *Cache) Add(key string, payload []byte) bool {
	// Compress before taking the lock; EncodeAll is safe for concurrent use.
	stored, compressed := c.encode(payload)

	c.lock.Lock()
	defer c.lock.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}

	if el, ok := c.items[key]; ok {
		c.evictList.MoveToFront(el)

		ent := el.Value.(*entry)
		ent.payload = stored
		ent.compressed = compressed
		ent.expiresAt = expiresAt

		return false
	}

	c.items[key] = c.evictList.PushFront(&entry{
		key:        key,
		payload:    stored,
		compressed: compressed,
		expiresAt:  expiresAt,
	})

	evicted := c.evictList.Len() > c.size
	if evicted {
		c.removeElement(c.evictList.Back())
	}

	return evicted
}

// Get returns a copy of the payload for key and marks it as most recently used.
// Expired entries are removed and reported as missing.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.lock.Lock()

	el, ok := c.items[key]
	if !ok {
		c.lock.Unlock()

		return nil, false
	}

	ent := el.Value.(*entry)
	if !ent.expiresAt.IsZero() && !c.now().Before(ent.expiresAt) {
		c.removeElement(el)
		c.lock.Unlock()

		return nil, false
	}

	c.evictList.MoveToFront(el)

	stored, compressed := ent.payload, ent.compressed

	c.lock.Unlock()

	return c.decode(stored, compressed)
}

// Remove deletes key and reports whether it was present.
func (c *Cache) Remove(key string) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)

		return true
	}

	return false
}

// Len returns the current number of entries, expired ones included until they are touched.
func (c *Cache) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.evictList.Len()
}

func (c *Cache) removeElement(el *list.Element) {
	if el == nil {
		return
	}

	c.evictList.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}

// encode copies payload so callers cannot mutate cached data, compressing it when that helps.
func (c *Cache) encode(payload []byte) ([]byte, bool) {
	if len(payload) == 0 {
		return []byte{}, false
	}

	if c.zstdEnc != nil {
		if packed := c.zstdEnc.EncodeAll(payload, nil); len(packed) < len(payload) {
			return packed, true
		}
	}

	return append([]byte(nil), payload...), false
}

// decode returns a private copy of the stored payload.
func (c *Cache) decode(stored []byte, compressed bool) ([]byte, bool) {
	if !compressed {
		return append([]byte(nil), stored...), true
	}

	decoded, err := c.zstdDec.DecodeAll(stored, nil)
	if err != nil {
		return nil, false
	}

	return decoded, true
}
