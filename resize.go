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

import (
	"fmt"
	"unsafe"
)

// overloaded returns true if b holds enough keys with enough distinct hashes
// that spreading them over more buckets would shorten its chains, and the
// table still has room to grow. The caller must hold b's lock.
func (t *Table[K, H]) overloaded(b *bucket[K, H]) bool {
	return len(b.aggs) > maxBucketDistinct &&
		b.used > maxBucketKeys &&
		len(t.buckets)*growthFactor <= t.MaxBucketCount()
}

// grow resizes the table after an insert into bucket i overloaded it while
// the table had n buckets. With concurrent access the insert has already
// released its locks, so the overload is re-checked under the exclusive
// resize lock: another insert may have grown the table, or an erase may
// have drained the bucket, in the meantime.
func (t *Table[K, H]) grow(i, n int) {
	t.lockTable()
	defer t.unlockTable()

	if len(t.buckets) != n || !t.overloaded(&t.buckets[i]) {
		return
	}
	t.resize(n * growthFactor)
}

// resize relinks every aggregate into a new bucket array of newCount
// buckets. Keys are not rehashed: each aggregate is moved as a whole using
// its stored hash. If the new array cannot be allocated the table is left
// untouched and false is returned. The caller must hold the table lock
// exclusively.
func (t *Table[K, H]) resize(newCount int) bool {
	bucketSize := unsafe.Sizeof(bucket[K, H]{})
	if !t.alloc(uintptr(newCount) * bucketSize) {
		t.stats.failedResizes.Add(1)
		if debug {
			fmt.Printf("resize: could not allocate %d buckets\n", newCount)
		}
		return false
	}

	oldCount := len(t.buckets)
	newBuckets := make([]bucket[K, H], newCount)
	mask := uint64(newCount - 1)
	for i := range t.buckets {
		ob := &t.buckets[i]
		for _, a := range ob.aggs {
			nb := &newBuckets[uint64(a.hash)&mask]
			nb.aggs = append(nb.aggs, a)
			nb.used += len(a.keys)
		}
		ob.aggs = nil
		ob.used = 0
	}
	t.free(uintptr(oldCount) * bucketSize)
	t.buckets = newBuckets
	t.stats.resizes.Add(1)

	if debug {
		fmt.Printf("resize: buckets=%d->%d used=%d\n", oldCount, newCount, t.Len())
	}
	t.checkInvariants()
	return true
}
