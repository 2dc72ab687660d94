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
	"sync"
	"unsafe"

	"golang.org/x/sys/cpu"
)

const cacheLineSize = unsafe.Sizeof(cpu.CacheLinePad{})

// bucketLock is a reader-writer lock padded to a cache line so that
// neighbouring bucket locks do not falsely share.
type bucketLock struct {
	sync.RWMutex
	//lint:ignore U1000 prevents false sharing
	pad [(cacheLineSize - unsafe.Sizeof(sync.RWMutex{})%cacheLineSize) % cacheLineSize]byte
}

// The lock helpers are noops unless the table was created with
// WithConcurrentAccess. Locks are always acquired in the order: table, then
// bucket.

func (t *Table[K, H]) lockTable() {
	if t.concurrent {
		t.resizeMu.Lock()
	}
}

func (t *Table[K, H]) unlockTable() {
	if t.concurrent {
		t.resizeMu.Unlock()
	}
}

func (t *Table[K, H]) rlockTable() {
	if t.concurrent {
		t.resizeMu.RLock()
	}
}

func (t *Table[K, H]) runlockTable() {
	if t.concurrent {
		t.resizeMu.RUnlock()
	}
}

// lockFor returns the lock guarding bucket i. The number of locks is a
// power of two no larger than the bucket count, so the mapping stays stable
// across growth: buckets that split from one another keep sharing a lock.
func (t *Table[K, H]) lockFor(i int) *bucketLock {
	return &t.locks[i&(len(t.locks)-1)]
}

func (t *Table[K, H]) lockBucket(i int) {
	if t.concurrent {
		t.lockFor(i).Lock()
	}
}

func (t *Table[K, H]) unlockBucket(i int) {
	if t.concurrent {
		t.lockFor(i).Unlock()
	}
}

func (t *Table[K, H]) rlockBucket(i int) {
	if t.concurrent {
		t.lockFor(i).RLock()
	}
}

func (t *Table[K, H]) runlockBucket(i int) {
	if t.concurrent {
		t.lockFor(i).RUnlock()
	}
}
