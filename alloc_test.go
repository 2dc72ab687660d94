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
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// testAllocator counts allocations and refuses those for which refuse
// returns true.
type testAllocator struct {
	refuse func(size uintptr) bool
	alloc  int
	free   int
	bytes  int64
}

func (a *testAllocator) Alloc(size uintptr) bool {
	if a.refuse != nil && a.refuse(size) {
		return false
	}
	a.alloc++
	a.bytes += int64(size)
	return true
}

func (a *testAllocator) Free(size uintptr) {
	a.free++
	a.bytes -= int64(size)
}

func TestAllocator(t *testing.T) {
	a := &testAllocator{}
	tbl := New(WithHash(identity16),
		WithInitialBuckets[uint16, uint16](1),
		WithAllocator[uint16, uint16](a))

	for k := uint16(0); k < 100; k++ {
		require.True(t, tbl.Insert(k))
	}

	// 1 initial bucket array, 1 grown bucket array (1 -> 8), and an
	// aggregate and a key per distinct hash.
	const expected = 1 + 1 + 100 + 100
	require.EqualValues(t, expected, a.alloc)
	require.EqualValues(t, 1, a.free)

	stats := tbl.Stats()
	require.EqualValues(t, a.alloc, stats.Allocs)
	require.EqualValues(t, a.free, stats.Frees)
	require.EqualValues(t, 1, stats.Resizes)
	require.EqualValues(t,
		100*unsafe.Sizeof(uint16(0))+
			100*unsafe.Sizeof(aggregate[uint16, uint16]{})+
			8*unsafe.Sizeof(bucket[uint16, uint16]{}),
		stats.BytesAllocated)
	require.Equal(t, a.bytes, stats.BytesAllocated)

	tbl.Close()
	require.EqualValues(t, expected, a.free)
	require.EqualValues(t, 0, a.bytes)
	require.EqualValues(t, 0, tbl.Stats().BytesAllocated)
	require.False(t, tbl.Initialized())

	// Close is idempotent.
	tbl.Close()
	require.EqualValues(t, expected, a.free)
}

func TestNewAllocationFailure(t *testing.T) {
	a := &testAllocator{refuse: func(uintptr) bool { return true }}
	tbl := New(WithHash(identity16), WithAllocator[uint16, uint16](a))
	require.False(t, tbl.Initialized())
	require.EqualValues(t, 0, tbl.Stats().Allocs)

	tbl.Close()
	require.EqualValues(t, 0, a.free)
}

func TestInsertAllocationFailure(t *testing.T) {
	keySize := unsafe.Sizeof(int64(0))
	a := &testAllocator{}
	tbl := New(WithHash(func(k int64) uint16 {
		return uint16(k % 2)
	}), WithAllocator[int64, uint16](a))
	require.True(t, tbl.Initialized())

	a.refuse = func(size uintptr) bool { return size == keySize }

	// A new aggregate is rolled back when its first key cannot be allocated.
	require.False(t, tbl.Insert(1))
	require.EqualValues(t, 0, tbl.Len())
	require.EqualValues(t, 0, tbl.BucketDistinct(1))
	require.Equal(t, 2, a.alloc)
	require.Equal(t, 1, a.free)
	require.NoError(t, tbl.validate())

	a.refuse = nil
	require.True(t, tbl.Insert(1))

	// An existing aggregate is left untouched.
	a.refuse = func(size uintptr) bool { return size == keySize }
	require.False(t, tbl.Insert(3))
	require.EqualValues(t, 1, tbl.Len())
	require.EqualValues(t, 1, tbl.BucketDistinct(1))
	require.Equal(t, []int64{1}, tbl.buckets[1].aggs[0].keys)
	require.NoError(t, tbl.validate())

	a.refuse = nil
	require.True(t, tbl.Insert(3))
	require.EqualValues(t, 2, tbl.BucketLen(1))
	require.EqualValues(t, a.bytes, tbl.Stats().BytesAllocated)
}

func TestResizeAllocationFailure(t *testing.T) {
	bucketSize := unsafe.Sizeof(bucket[uint16, uint16]{})
	a := &testAllocator{}
	tbl := New(WithHash(identity16),
		WithInitialBuckets[uint16, uint16](1),
		WithAllocator[uint16, uint16](a))

	a.refuse = func(size uintptr) bool { return size >= growthFactor*bucketSize }

	for k := uint16(0); k <= maxBucketKeys+1; k++ {
		require.True(t, tbl.Insert(k))
	}
	require.Equal(t, 1, tbl.BucketCount())
	require.EqualValues(t, 2, tbl.Stats().FailedResizes)
	require.EqualValues(t, 0, tbl.Stats().Resizes)
	require.NoError(t, tbl.validate())

	// Growth resumes once memory is available.
	a.refuse = nil
	require.True(t, tbl.Insert(100))
	require.Equal(t, growthFactor, tbl.BucketCount())
	require.EqualValues(t, 1, tbl.Stats().Resizes)
	require.EqualValues(t, maxBucketKeys+3, tbl.Len())
	require.NoError(t, tbl.validate())
}
