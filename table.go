// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package aghash is a chained hash set that groups colliding keys at two
// levels: by bucket and by full hash value.
//
// # Layout
//
// A Table is an array of buckets whose length is always a power of two. A
// key with hash h lives in bucket h&(bucketCount-1). Within a bucket, keys
// are grouped into aggregates: one aggregate per distinct full hash value.
// Keys inside an aggregate all share the same hash and are told apart using
// the equality function only.
//
//	buckets
//	+---+
//	| 0 | --> agg{h=0x10} --> [k1, k7]
//	+---+     agg{h=0x30} --> [k3]
//	| 1 | --> agg{h=0x21} --> [k2]
//	+---+
//	| 2 |
//	+---+
//	| 3 | --> agg{h=0x13} --> [k4, k5, k6]
//	+---+
//
// Separating "same bucket" collisions (common, cured by more buckets) from
// "same hash" collisions (rare, never cured by more buckets) drives the
// growth policy: a bucket only triggers a resize when it is overloaded with
// keys AND holds more than one distinct hash value. A bucket full of keys
// sharing one hash would land in a single bucket no matter how many buckets
// there are.
//
// # Growth
//
// Growth multiplies the bucket count by 8 and relinks every aggregate as a
// whole into its new bucket. Individual keys are never rehashed: an
// aggregate carries its hash. The bucket count never exceeds
// 2^min(24, W) where W is the bit width of the hash type, and never
// shrinks.
//
// # Iteration
//
// Keys are visited in ascending hash order by probing hash values one at a
// time. Advancing past a run of unused hash values costs time proportional
// to the length of the run, so iteration is cheap for dense key sets and
// expensive for sparse ones, particularly with wide hash types.
//
// # Concurrency
//
// A Table created WithConcurrentAccess guards each bucket with a
// reader-writer lock; see WithConcurrentAccess for the details. Otherwise a
// Table is NOT goroutine-safe.
package aghash

import (
	"fmt"
	"math/bits"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"
)

const (
	debug = false

	defaultBucketCount = 16
	maxBucketCountLog  = 24

	// A bucket is grown when it holds more than maxBucketDistinct distinct
	// hashes and more than maxBucketKeys keys.
	maxBucketDistinct = 1
	maxBucketKeys     = 16
	growthFactor      = 8
)

// Hash is the set of types a hash function may return. The width of the
// type bounds the maximum number of buckets.
type Hash interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// aggregate groups all keys of a bucket that share the full hash value.
// Keys are kept in insertion order.
type aggregate[K any, H Hash] struct {
	hash H
	keys []K
}

type bucket[K any, H Hash] struct {
	aggs []*aggregate[K, H]
	// The number of keys across all aggregates.
	used int
}

func (b *bucket[K, H]) aggregate(h H) (*aggregate[K, H], int) {
	for i, a := range b.aggs {
		if a.hash == h {
			return a, i
		}
	}
	return nil, -1
}

// Table is a set of keys of type K hashed to values of type H. By default,
// keys are hashed with xxHash64 over their byte representation (folded to
// the width of H) and compared with ==, or by content for []byte keys.
// Different functions can be specified using the WithHash, WithByteHash and
// WithEqual options.
type Table[K any, H Hash] struct {
	hash      func(key K) H
	equal     func(a, b K) bool
	allocator Allocator

	initialBuckets int
	concurrent     bool

	buckets []bucket[K, H]
	// The number of keys in the table.
	used atomic.Int64
	// ready is false if the bucket array could not be allocated.
	ready bool

	// resizeMu is held shared by every operation and exclusively by resize.
	// Only used with WithConcurrentAccess.
	resizeMu sync.RWMutex
	// locks is sized once, at construction. Bucket i is guarded by
	// locks[i&(len(locks)-1)].
	locks []bucketLock

	stats counters
}

// New constructs a new Table. The zero value for a Table is not usable.
// Check Initialized before using the returned table when the configured
// Allocator may refuse allocations.
func New[K any, H Hash](options ...Option[K, H]) *Table[K, H] {
	t := &Table[K, H]{
		allocator:      defaultAllocator{},
		initialBuckets: defaultBucketCount,
	}
	for _, op := range options {
		op.apply(t)
	}
	if t.hash == nil {
		WithByteHash[K, H](xxhashFolded[H]).apply(t)
	}
	if t.equal == nil {
		t.equal = defaultEqual[K]()
	}

	n := roundBucketCount(t.initialBuckets, t.MaxBucketCount())
	if !t.alloc(uintptr(n) * unsafe.Sizeof(bucket[K, H]{})) {
		if debug {
			fmt.Printf("new: could not allocate %d buckets\n", n)
		}
		return t
	}
	t.buckets = make([]bucket[K, H], n)
	if t.concurrent {
		t.locks = make([]bucketLock, n)
	}
	t.ready = true

	t.checkInvariants()
	return t
}

// roundBucketCount returns the smallest power of two >= n, clamped to
// [1, max].
func roundBucketCount(n, max int) int {
	if n <= 1 {
		return 1
	}
	n = 1 << bits.Len(uint(n-1))
	if n > max {
		return max
	}
	return n
}

// Initialized reports whether the table was able to allocate its buckets.
// Using a table that is not initialized is invalid.
func (t *Table[K, H]) Initialized() bool {
	return t.ready
}

// Close releases every key, aggregate and the bucket array back to the
// configured allocator. It is unnecessary to close a table using the default
// allocator. It is invalid to use a Table after it has been closed, though
// Close itself is idempotent.
func (t *Table[K, H]) Close() {
	t.lockTable()
	defer t.unlockTable()

	if !t.ready {
		return
	}
	for i := range t.buckets {
		b := &t.buckets[i]
		for _, a := range b.aggs {
			for range a.keys {
				t.free(keySize[K]())
			}
			t.free(aggregateSize[K, H]())
		}
		b.aggs = nil
		b.used = 0
	}
	t.free(uintptr(len(t.buckets)) * unsafe.Sizeof(bucket[K, H]{}))
	t.buckets = nil
	t.used.Store(0)
	t.ready = false
}

// Insert adds key to the table unless an equal key is already present. It
// returns true if the key was inserted, and false if it was already present
// or memory for it could not be allocated.
func (t *Table[K, H]) Insert(key K) bool {
	h := t.hash(key)

	t.rlockTable()
	i := t.bucketIndex(h)
	t.lockBucket(i)
	b := &t.buckets[i]
	inserted := t.insertLocked(b, h, key)
	grow := inserted && t.overloaded(b)
	n := len(t.buckets)
	t.unlockBucket(i)
	t.runlockTable()

	if grow {
		t.grow(i, n)
	}
	if inserted {
		t.checkInvariants()
	}
	return inserted
}

func (t *Table[K, H]) insertLocked(b *bucket[K, H], h H, key K) bool {
	a, _ := b.aggregate(h)
	created := false
	if a == nil {
		if !t.alloc(aggregateSize[K, H]()) {
			return false
		}
		a = &aggregate[K, H]{hash: h}
		created = true
	} else {
		for i := range a.keys {
			if t.equal(a.keys[i], key) {
				if debug {
					fmt.Printf("insert(%v): present h=%x\n", key, h)
				}
				return false
			}
		}
	}

	if !t.alloc(keySize[K]()) {
		// Never leave an empty aggregate behind.
		if created {
			t.free(aggregateSize[K, H]())
		}
		return false
	}
	a.keys = append(a.keys, key)
	if created {
		b.aggs = append(b.aggs, a)
	}
	b.used++
	t.used.Add(1)

	if debug {
		fmt.Printf("insert(%v): h=%x bucket-used=%d bucket-distinct=%d\n",
			key, h, b.used, len(b.aggs))
	}
	return true
}

// Erase removes key from the table. It returns false if the key was not
// present. Erase never shrinks the table.
func (t *Table[K, H]) Erase(key K) bool {
	h := t.hash(key)

	t.rlockTable()
	i := t.bucketIndex(h)
	t.lockBucket(i)
	erased := t.eraseLocked(&t.buckets[i], h, key)
	t.unlockBucket(i)
	t.runlockTable()

	if erased {
		t.checkInvariants()
	}
	return erased
}

func (t *Table[K, H]) eraseLocked(b *bucket[K, H], h H, key K) bool {
	a, ai := b.aggregate(h)
	if a == nil {
		return false
	}
	for j := range a.keys {
		if !t.equal(a.keys[j], key) {
			continue
		}
		a.keys = slices.Delete(a.keys, j, j+1)
		t.free(keySize[K]())
		b.used--
		t.used.Add(-1)

		if len(a.keys) == 0 {
			b.aggs = slices.Delete(b.aggs, ai, ai+1)
			t.free(aggregateSize[K, H]())
		}
		if debug {
			fmt.Printf("erase(%v): h=%x bucket-used=%d bucket-distinct=%d\n",
				key, h, b.used, len(b.aggs))
		}
		return true
	}
	return false
}

// Exists reports whether key is present in the table.
func (t *Table[K, H]) Exists(key K) bool {
	return t.Find(key).Valid()
}

// Find returns an iterator positioned at key, or End if key is not present.
func (t *Table[K, H]) Find(key K) Iterator[K, H] {
	h := t.hash(key)

	t.rlockTable()
	i := t.bucketIndex(h)
	t.rlockBucket(i)
	defer func() {
		t.runlockBucket(i)
		t.runlockTable()
	}()

	if a, _ := t.buckets[i].aggregate(h); a != nil {
		for j := range a.keys {
			if t.equal(a.keys[j], key) {
				return Iterator[K, H]{t: t, agg: a, i: j}
			}
		}
	}
	return t.End()
}

// Len returns the number of keys in the table.
func (t *Table[K, H]) Len() int {
	return int(t.used.Load())
}

// BucketCount returns the current number of buckets.
func (t *Table[K, H]) BucketCount() int {
	t.rlockTable()
	defer t.runlockTable()
	return len(t.buckets)
}

// MaxBucketCount returns the number of buckets the table will never grow
// beyond: 2^min(24, W) where W is the bit width of H.
func (t *Table[K, H]) MaxBucketCount() int {
	return 1 << min(maxBucketCountLog, hashBits[H]())
}

// BucketLen returns the number of keys in bucket i.
func (t *Table[K, H]) BucketLen(i int) int {
	t.rlockTable()
	t.rlockBucket(i)
	defer func() {
		t.runlockBucket(i)
		t.runlockTable()
	}()
	return t.buckets[i].used
}

// BucketDistinct returns the number of distinct hash values in bucket i.
func (t *Table[K, H]) BucketDistinct(i int) int {
	t.rlockTable()
	t.rlockBucket(i)
	defer func() {
		t.runlockBucket(i)
		t.runlockTable()
	}()
	return len(t.buckets[i].aggs)
}

func (t *Table[K, H]) bucketIndex(h H) int {
	return int(uint64(h) & uint64(len(t.buckets)-1))
}

// aggregateFor returns the aggregate holding keys with hash h, or nil.
func (t *Table[K, H]) aggregateFor(h H) *aggregate[K, H] {
	t.rlockTable()
	i := t.bucketIndex(h)
	t.rlockBucket(i)
	a, _ := t.buckets[i].aggregate(h)
	t.runlockBucket(i)
	t.runlockTable()
	return a
}

func hashBits[H Hash]() int {
	var h H
	return int(unsafe.Sizeof(h)) * 8
}

func keySize[K any]() uintptr {
	var k K
	return unsafe.Sizeof(k)
}

func aggregateSize[K any, H Hash]() uintptr {
	return unsafe.Sizeof(aggregate[K, H]{})
}

// checkInvariants panics if the table is inconsistent. It is a noop unless
// built with the invariants tag. Tables with concurrent access are not
// checked as doing so would race with other operations.
func (t *Table[K, H]) checkInvariants() {
	if invariants && !t.concurrent {
		if err := t.validate(); err != nil {
			panic(fmt.Sprintf("invariant failed: %v\n%s", err, t.debugString()))
		}
	}
}

// validate checks the structural invariants of the table: bucket placement,
// counter sums, one aggregate per hash per bucket and no duplicate keys.
func (t *Table[K, H]) validate() error {
	n := len(t.buckets)
	if n == 0 || n&(n-1) != 0 {
		return fmt.Errorf("bucket count %d is not a power of two", n)
	}
	if n > t.MaxBucketCount() {
		return fmt.Errorf("bucket count %d exceeds max %d", n, t.MaxBucketCount())
	}

	var total int
	for i := range t.buckets {
		b := &t.buckets[i]
		var used int
		for j, a := range b.aggs {
			if len(a.keys) == 0 {
				return fmt.Errorf("bucket %d: empty aggregate h=%x", i, a.hash)
			}
			if idx := t.bucketIndex(a.hash); idx != i {
				return fmt.Errorf("bucket %d: aggregate h=%x belongs in bucket %d", i, a.hash, idx)
			}
			for _, o := range b.aggs[:j] {
				if o.hash == a.hash {
					return fmt.Errorf("bucket %d: duplicate aggregate h=%x", i, a.hash)
				}
			}
			for k := range a.keys {
				if h := t.hash(a.keys[k]); h != a.hash {
					return fmt.Errorf("bucket %d: key %v hashes to %x, not %x", i, a.keys[k], h, a.hash)
				}
				for l := range a.keys[:k] {
					if t.equal(a.keys[l], a.keys[k]) {
						return fmt.Errorf("bucket %d: duplicate key %v", i, a.keys[k])
					}
				}
			}
			used += len(a.keys)
		}
		if used != b.used {
			return fmt.Errorf("bucket %d: found %d keys, but used count is %d", i, used, b.used)
		}
		total += used
	}
	if total != t.Len() {
		return fmt.Errorf("found %d keys, but used count is %d", total, t.Len())
	}
	return nil
}

func (t *Table[K, H]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "buckets=%d  used=%d\n", len(t.buckets), t.Len())
	for i := range t.buckets {
		b := &t.buckets[i]
		if len(b.aggs) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "  %4d: used=%d distinct=%d\n", i, b.used, len(b.aggs))
		for _, a := range b.aggs {
			fmt.Fprintf(&buf, "        h=%x %v\n", a.hash, a.keys)
		}
	}
	return buf.String()
}
