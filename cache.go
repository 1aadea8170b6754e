// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package unsqueeze

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-tinylfu"
)

type cacheKey struct {
	sum uint64
	n   int
}

type cached struct {
	name string
	raw  []byte
}

// Cache remembers the output of recently decoded inputs,
// identified by content. It is safe for concurrent use.
type Cache struct {
	opts []Option

	mu  sync.Mutex
	lfu *tinylfu.T[cacheKey, cached]

	hits, misses atomic.Int64
}

// NewCache holds up to entries outputs. Each miss is decoded with opts.
func NewCache(entries int, opts ...Option) *Cache {
	entries = max(entries, 1)
	return &Cache{
		opts: opts,
		lfu:  tinylfu.New[cacheKey, cached](entries, entries*10, func(k cacheKey) uint64 { return k.sum }),
	}
}

// Decompress returns the format name and output for packed.
// The output is shared between callers and must not be modified.
func (c *Cache) Decompress(packed []byte) (name string, raw []byte, err error) {
	k := cacheKey{xxhash.Sum64(packed), len(packed)}
	c.mu.Lock()
	v, ok := c.lfu.Get(k)
	c.mu.Unlock()
	if ok {
		c.hits.Add(1)
		return v.name, v.raw, nil
	}
	c.misses.Add(1)

	d, err := New(packed, c.opts...)
	if err != nil {
		return "", nil, err
	}
	raw, err = d.Decompress()
	if err != nil {
		return "", nil, err
	}

	c.mu.Lock()
	c.lfu.Add(k, cached{d.Name(), raw})
	c.mu.Unlock()
	return d.Name(), raw, nil
}

// Stats returns the number of lookups that were and were not cached.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
