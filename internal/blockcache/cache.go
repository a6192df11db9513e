// Package blockcache memoizes per-block disassembly text keyed by the
// block's start address.
//
// Entries are write-once: the first insert for a key wins and later inserts
// for the same key are dropped. All access is serialized by a single
// RWMutex; inserts are bounded by the number of unique blocks, lookups by
// the number of executions, so readers share the lock.
package blockcache

import (
	"fmt"
	"math/bits"
	"sync"

	"bbtrace/internal/host"
)

// DefaultBuckets is the bucket count used when New is given a non-positive size.
const DefaultBuckets = 1024

// bucketShift drops the low address bits, which mostly encode alignment.
const bucketShift = 4

type entry struct {
	key  host.Addr
	text string
	next *entry
}

// Cache is an address-keyed hash table of chained buckets.
type Cache struct {
	mu         sync.RWMutex
	buckets    []*entry
	mask       uint64
	count      int
	duplicates int
	torndown   bool
}

// Stats is a point-in-time view of the cache shape.
type Stats struct {
	Entries      int
	Buckets      int
	LongestChain int
	Duplicates   int
}

// New creates a cache with the given number of buckets, rounded up to a
// power of two.
func New(buckets int) *Cache {
	if buckets <= 0 {
		buckets = DefaultBuckets
	}
	n := 1 << bits.Len(uint(buckets-1))
	return &Cache{
		buckets: make([]*entry, n),
		mask:    uint64(n - 1),
	}
}

func (c *Cache) bucketOf(key host.Addr) uint64 {
	return (uint64(key) >> bucketShift) & c.mask
}

// Insert stores text under key. It reports false when key is already
// present, in which case the existing entry is kept and text is dropped.
func (c *Cache) Insert(key host.Addr, text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.torndown {
		panic(fmt.Errorf("blockcache: insert %s after teardown", key))
	}
	idx := c.bucketOf(key)
	for e := c.buckets[idx]; e != nil; e = e.next {
		if e.key == key {
			c.duplicates++
			return false
		}
	}
	c.buckets[idx] = &entry{key: key, text: text, next: c.buckets[idx]}
	c.count++
	return true
}

// Lookup returns the text stored under key.
func (c *Cache) Lookup(key host.Addr) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.torndown {
		return "", false
	}
	for e := c.buckets[c.bucketOf(key)]; e != nil; e = e.next {
		if e.key == key {
			return e.text, true
		}
	}
	return "", false
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}

// Stats reports the current shape of the table.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := Stats{
		Entries:    c.count,
		Buckets:    len(c.buckets),
		Duplicates: c.duplicates,
	}
	for _, head := range c.buckets {
		n := 0
		for e := head; e != nil; e = e.next {
			n++
		}
		st.LongestChain = max(st.LongestChain, n)
	}
	return st
}

// Range calls fn for every entry in bucket order, newest first within a
// bucket, until fn returns false. fn must not call back into the cache.
func (c *Cache) Range(fn func(key host.Addr, text string) bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, head := range c.buckets {
		for e := head; e != nil; e = e.next {
			if !fn(e.key, e.text) {
				return
			}
		}
	}
}

// Teardown drops every entry and the bucket array. It must be called once,
// after the last Insert or Lookup.
func (c *Cache) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.torndown {
		panic("blockcache: teardown called twice")
	}
	for i, head := range c.buckets {
		for e := head; e != nil; {
			next := e.next
			e.next = nil
			e = next
		}
		c.buckets[i] = nil
	}
	c.buckets = nil
	c.count = 0
	c.torndown = true
}
