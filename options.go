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

package aghash

// Option configures a Table while it is being created.
type Option[K any, H Hash] interface {
	apply(t *Table[K, H])
}

type hashOption[K any, H Hash] struct {
	hash func(key K) H
}

func (op hashOption[K, H]) apply(t *Table[K, H]) {
	t.hash = op.hash
}

// WithHash is an option to specify the hash function to use for a
// Table[K,H]. The maximum bucket count of the table is bounded by the width
// of H.
func WithHash[K any, H Hash](hash func(key K) H) Option[K, H] {
	return hashOption[K, H]{hash}
}

type byteHashOption[K any, H Hash] struct {
	hash func(b []byte) H
}

func (op byteHashOption[K, H]) apply(t *Table[K, H]) {
	keyBytes := keyBytesFunc[K]()
	hash := op.hash
	t.hash = func(key K) H {
		return hash(keyBytes(&key))
	}
}

// WithByteHash is an option to specify a hash function over the byte
// representation of keys: the contents of string and []byte keys, and the
// memory of any other key. Other keys may only be built from booleans and
// integers, in arrays or in structs without padding. Keys with pointers,
// floats or padding need WithHash.
func WithByteHash[K any, H Hash](hash func(b []byte) H) Option[K, H] {
	return byteHashOption[K, H]{hash}
}

type equalOption[K any, H Hash] struct {
	equal func(a, b K) bool
}

func (op equalOption[K, H]) apply(t *Table[K, H]) {
	t.equal = op.equal
}

// WithEqual is an option to specify the equality function used to tell
// apart keys with the same hash.
func WithEqual[K any, H Hash](equal func(a, b K) bool) Option[K, H] {
	return equalOption[K, H]{equal}
}

type bucketsOption[K any, H Hash] struct {
	n int
}

func (op bucketsOption[K, H]) apply(t *Table[K, H]) {
	t.initialBuckets = op.n
}

// WithInitialBuckets is an option to specify the initial number of buckets.
// The count is rounded up to a power of two and clamped to MaxBucketCount.
func WithInitialBuckets[K any, H Hash](n int) Option[K, H] {
	return bucketsOption[K, H]{n}
}

type concurrentOption[K any, H Hash] struct{}

func (concurrentOption[K, H]) apply(t *Table[K, H]) {
	t.concurrent = true
}

// WithConcurrentAccess is an option making the Table safe for use by
// multiple goroutines. Each bucket is guarded by a reader-writer lock: Find
// and Exists take it shared while Insert and Erase take it exclusively, so
// an operation blocks every other operation on the same bucket for its
// duration. The lock array is allocated once, at construction, with one
// lock per initial bucket; after growth, buckets share locks. Growth itself
// runs under a table-wide lock that every operation holds shared.
//
// Each operation is atomic; there are no multi-operation transactions.
// Iterators take locks for each step only and are invalidated by concurrent
// mutation.
func WithConcurrentAccess[K any, H Hash]() Option[K, H] {
	return concurrentOption[K, H]{}
}

// Allocator accounts for the memory used by a Table and may refuse it. Alloc
// is called before size bytes are allocated for a key, an aggregate or a
// bucket array; returning false fails the allocation. Free is called when
// memory previously admitted by Alloc is released.
//
// A refused allocation never corrupts the table: New leaves the table not
// initialized, Insert reports the key as not inserted and growth is skipped.
// With WithConcurrentAccess, an Allocator must be safe for concurrent use.
type Allocator interface {
	Alloc(size uintptr) bool
	Free(size uintptr)
}

type defaultAllocator struct{}

func (defaultAllocator) Alloc(size uintptr) bool {
	return true
}

func (defaultAllocator) Free(size uintptr) {
}

type allocatorOption[K any, H Hash] struct {
	allocator Allocator
}

func (op allocatorOption[K, H]) apply(t *Table[K, H]) {
	t.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a
// Table[K,H].
func WithAllocator[K any, H Hash](allocator Allocator) Option[K, H] {
	return allocatorOption[K, H]{allocator}
}
