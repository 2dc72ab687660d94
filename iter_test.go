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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func collect[K any, H Hash](tbl *Table[K, H]) []K {
	var keys []K
	for it := tbl.Begin(); it.Valid(); it.Next() {
		keys = append(keys, it.Key())
	}
	return keys
}

func TestIterateEmpty(t *testing.T) {
	tbl := New[int, uint16]()
	require.True(t, tbl.Begin().Equal(tbl.End()))
	require.False(t, tbl.Begin().Valid())

	tbl.All(func(k int) bool {
		require.Fail(t, "should not iterate")
		return true
	})
}

func TestIterateOrder(t *testing.T) {
	tbl := New[int, uint16](WithInitialBuckets[int, uint16](1))
	e := make(map[int]struct{})
	for i := 0; i < 2000; i++ {
		k := rand.Intn(100_000)
		if _, ok := e[k]; ok {
			require.False(t, tbl.Insert(k))
			continue
		}
		require.True(t, tbl.Insert(k))
		e[k] = struct{}{}
	}
	for i := 0; i < 500; i++ {
		k := rand.Intn(100_000)
		_, ok := e[k]
		require.Equal(t, ok, tbl.Erase(k))
		delete(e, k)
	}

	keys := collect(tbl)
	require.Len(t, keys, len(e))
	seen := make(map[int]struct{})
	for i, k := range keys {
		require.Contains(t, e, k)
		require.NotContains(t, seen, k)
		seen[k] = struct{}{}
		if i > 0 {
			require.LessOrEqual(t, tbl.hash(keys[i-1]), tbl.hash(k))
		}
	}
}

func TestIterateSameHash(t *testing.T) {
	tbl := New(WithHash(func(k int) uint8 {
		return uint8(k % 4)
	}))
	for _, k := range []int{8, 3, 4, 0, 7} {
		require.True(t, tbl.Insert(k))
	}
	// Ascending by hash, then by insertion order within a hash.
	require.Equal(t, []int{8, 4, 0, 3, 7}, collect(tbl))

	require.True(t, tbl.Erase(4))
	require.True(t, tbl.Insert(4))
	require.Equal(t, []int{8, 0, 4, 3, 7}, collect(tbl))
}

func TestIterateRestart(t *testing.T) {
	tbl := New(WithHash(identity16))
	for k := uint16(0); k < 100; k += 3 {
		require.True(t, tbl.Insert(k))
	}
	first := collect(tbl)
	require.Len(t, first, 34)
	require.Equal(t, first, collect(tbl))

	var partial []uint16
	tbl.All(func(k uint16) bool {
		partial = append(partial, k)
		return len(partial) < 5
	})
	require.Equal(t, first[:5], partial)
}

func TestIterateHashWrap(t *testing.T) {
	tbl := New(WithHash(func(k uint8) uint8 {
		return k
	}))
	require.True(t, tbl.Insert(255))
	require.True(t, tbl.Insert(0))

	it := tbl.Begin()
	require.EqualValues(t, 0, it.Key())
	it.Next()
	require.EqualValues(t, 255, it.Key())
	it.Next()
	require.True(t, it.Equal(tbl.End()))

	// Next on End is a noop.
	it.Next()
	require.False(t, it.Valid())
}

func TestFindIterator(t *testing.T) {
	tbl := New(WithHash(func(k int) uint16 {
		return uint16(k % 10)
	}))
	for k := 0; k < 50; k++ {
		require.True(t, tbl.Insert(k))
	}

	it := tbl.Find(23)
	require.True(t, it.Valid())
	require.Equal(t, 23, it.Key())

	// Continue from the found position: the rest of hash 3, then hash 4.
	var rest []int
	for ; it.Valid(); it.Next() {
		rest = append(rest, it.Key())
	}
	require.Equal(t, []int{23, 33, 43, 4, 14}, rest[:5])
	require.Len(t, rest, 3+6*5)

	require.True(t, tbl.Find(50).Equal(tbl.End()))
	require.False(t, tbl.Find(50).Equal(tbl.Find(23)))
	require.True(t, tbl.Find(23).Equal(tbl.Find(23)))
}
