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

import "sync/atomic"

// Stats holds the memory and growth counters of a Table.
type Stats struct {
	// Allocs and Frees count the keys, aggregates and bucket arrays admitted
	// and released through the Allocator.
	Allocs int64
	Frees  int64
	// BytesAllocated is the memory currently held by the table.
	BytesAllocated int64
	Resizes        int64
	// FailedResizes counts growth attempts whose bucket array could not be
	// allocated.
	FailedResizes int64
}

type counters struct {
	allocs        atomic.Int64
	frees         atomic.Int64
	bytes         atomic.Int64
	resizes       atomic.Int64
	failedResizes atomic.Int64
}

// Stats returns a snapshot of the table's counters.
func (t *Table[K, H]) Stats() Stats {
	return Stats{
		Allocs:         t.stats.allocs.Load(),
		Frees:          t.stats.frees.Load(),
		BytesAllocated: t.stats.bytes.Load(),
		Resizes:        t.stats.resizes.Load(),
		FailedResizes:  t.stats.failedResizes.Load(),
	}
}

func (t *Table[K, H]) alloc(size uintptr) bool {
	if !t.allocator.Alloc(size) {
		return false
	}
	t.stats.allocs.Add(1)
	t.stats.bytes.Add(int64(size))
	return true
}

func (t *Table[K, H]) free(size uintptr) {
	t.allocator.Free(size)
	t.stats.frees.Add(1)
	t.stats.bytes.Add(-int64(size))
}
