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

// Package workload runs the workloads of the agbench command against an
// aghash.Table and, where a comparison is meaningful, the builtin map.
package workload

import (
	"strconv"
	"time"

	"github.com/cockroachdb/aghash"
	"github.com/cockroachdb/aghash/internal/records"
	"github.com/pkg/errors"
)

// Implementations compared by Bench and BenchStrings.
const (
	ImplTable            = "aghash.Table"
	ImplBuiltinMap       = "map[int32]struct{}"
	ImplBuiltinStringMap = "map[string]struct{}"
)

// Operations timed by Bench.
const (
	OpInsert = "Insertion"
	OpFind   = "Find"
	OpErase  = "Erase"
)

// Timing is the outcome of one operation type run against one
// implementation.
type Timing struct {
	Op         string
	Impl       string
	Successful int
	Elapsed    time.Duration
}

// ErrNotInitialized is returned when a table cannot allocate its buckets.
var ErrNotInitialized = errors.New("table could not be initialized")

// Bench runs the first ops records of each sequence of recs against the
// builtin map set and a Table with initialBuckets buckets. Operations of
// one type complete on both implementations before the next type starts.
func Bench(recs *records.Records, ops, initialBuckets int) ([]Timing, error) {
	if ops > recs.Len() {
		return nil, errors.Errorf("%d operations exceeds the %d records supplied", ops, recs.Len())
	}

	t := aghash.New[int32, uint32](aghash.WithInitialBuckets[int32, uint32](initialBuckets))
	if !t.Initialized() {
		return nil, ErrNotInitialized
	}
	defer t.Close()
	return compare(t, ImplBuiltinMap,
		recs.Insert[:ops], recs.Find[:ops], recs.Erase[:ops], nil), nil
}

// BucketLoad is the occupancy of one bucket.
type BucketLoad struct {
	Bucket   int
	Keys     int
	Distinct int
}

// StringResult is the outcome of BenchStrings. Buckets, BucketCount and
// Stats are taken once every find has run and before any erase.
type StringResult struct {
	Timings     []Timing
	Buckets     []BucketLoad
	BucketCount int
	Stats       aghash.Stats
}

// BenchStrings is Bench with every record turned into its decimal string
// and a Table keyed by strings with a 16-bit hash. The narrow hash caps the
// table at 65,536 buckets so larger runs show keys piling up per bucket.
// Only buckets holding keys are reported.
func BenchStrings(recs *records.Records, ops, initialBuckets int) (StringResult, error) {
	if ops > recs.Len() {
		return StringResult{}, errors.Errorf("%d operations exceeds the %d records supplied", ops, recs.Len())
	}

	t := aghash.New[string, uint16](aghash.WithInitialBuckets[string, uint16](initialBuckets))
	if !t.Initialized() {
		return StringResult{}, ErrNotInitialized
	}
	defer t.Close()

	var res StringResult
	snapshot := func() {
		res.BucketCount = t.BucketCount()
		res.Stats = t.Stats()
		for i := 0; i < res.BucketCount; i++ {
			if n := t.BucketLen(i); n > 0 {
				res.Buckets = append(res.Buckets, BucketLoad{Bucket: i, Keys: n, Distinct: t.BucketDistinct(i)})
			}
		}
	}
	res.Timings = compare(t, ImplBuiltinStringMap,
		itoa(recs.Insert[:ops]), itoa(recs.Find[:ops]), itoa(recs.Erase[:ops]), snapshot)
	return res, nil
}

func itoa(keys []int32) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = strconv.Itoa(int(k))
	}
	return out
}

// compare times each pass of keys on a builtin map set, named mapImpl, and
// on t. afterFind, when set, runs between the find and erase passes.
func compare[K comparable, H aghash.Hash](
	t *aghash.Table[K, H], mapImpl string, insert, find, erase []K, afterFind func(),
) []Timing {
	m := make(map[K]struct{})

	var timings []Timing
	run := func(op, impl string, keys []K, f func(k K) bool) {
		var n int
		start := time.Now()
		for _, k := range keys {
			if f(k) {
				n++
			}
		}
		timings = append(timings, Timing{
			Op:         op,
			Impl:       impl,
			Successful: n,
			Elapsed:    time.Since(start),
		})
	}

	run(OpInsert, mapImpl, insert, func(k K) bool {
		if _, ok := m[k]; ok {
			return false
		}
		m[k] = struct{}{}
		return true
	})
	run(OpInsert, ImplTable, insert, t.Insert)

	run(OpFind, mapImpl, find, func(k K) bool {
		_, ok := m[k]
		return ok
	})
	run(OpFind, ImplTable, find, t.Exists)

	if afterFind != nil {
		afterFind()
	}

	run(OpErase, mapImpl, erase, func(k K) bool {
		if _, ok := m[k]; !ok {
			return false
		}
		delete(m, k)
		return true
	})
	run(OpErase, ImplTable, erase, t.Erase)

	return timings
}

func identity(k uint64) uint64 {
	return k
}

// Result is the outcome of a single-table workload.
type Result struct {
	Inserted    int
	Len         int
	BucketCount int
	Elapsed     time.Duration
	Stats       aghash.Stats
}

func result(t *aghash.Table[uint64, uint64], inserted int, elapsed time.Duration) Result {
	return Result{
		Inserted:    inserted,
		Len:         t.Len(),
		BucketCount: t.BucketCount(),
		Elapsed:     elapsed,
		Stats:       t.Stats(),
	}
}

// Distinct inserts 0..n-1 into a table hashing keys to themselves.
func Distinct(n, initialBuckets int) (Result, error) {
	t := aghash.New(aghash.WithHash(identity),
		aghash.WithInitialBuckets[uint64, uint64](initialBuckets))
	if !t.Initialized() {
		return Result{}, ErrNotInitialized
	}

	var inserted int
	start := time.Now()
	for i := 0; i < n; i++ {
		if t.Insert(uint64(i)) {
			inserted++
		}
	}
	return result(t, inserted, time.Since(start)), nil
}

// SparseStride is the distance between consecutive keys of Sparse.
const SparseStride = 100_000_000

// Sparse inserts i*SparseStride for i < n into a table hashing keys to
// themselves, leaving long runs of unused hash values between keys.
func Sparse(n, initialBuckets int) (Result, error) {
	t := aghash.New(aghash.WithHash(identity),
		aghash.WithInitialBuckets[uint64, uint64](initialBuckets))
	if !t.Initialized() {
		return Result{}, ErrNotInitialized
	}

	var inserted int
	start := time.Now()
	for i := 0; i < n; i++ {
		if t.Insert(uint64(i) * SparseStride) {
			inserted++
		}
	}
	return result(t, inserted, time.Since(start)), nil
}
