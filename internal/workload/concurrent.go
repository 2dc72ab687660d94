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

package workload

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/aghash"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Mode is the locking strategy of the Concurrent workload.
type Mode int

const (
	// Linear runs the insert, find and erase passes one after the other on
	// a single goroutine.
	Linear Mode = iota
	// TableLock runs the passes on separate goroutines, serializing every
	// operation with one mutex around an unsynchronized table.
	TableLock
	// BucketLock runs the passes on separate goroutines against a table
	// created with aghash.WithConcurrentAccess.
	BucketLock
)

func (m Mode) String() string {
	switch m {
	case Linear:
		return "linear"
	case TableLock:
		return "table-lock"
	case BucketLock:
		return "bucket-lock"
	default:
		return "unknown"
	}
}

// ParseMode parses the name of a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "linear":
		return Linear, nil
	case "table-lock", "table":
		return TableLock, nil
	case "bucket-lock", "bucket":
		return BucketLock, nil
	default:
		return 0, errors.Errorf("unknown mode %q, expected linear, table-lock or bucket-lock", s)
	}
}

// ConcurrentOptions configures the Concurrent workload.
type ConcurrentOptions struct {
	Mode Mode
	// Ops is the number of operations run by each of the insert, find and
	// erase passes.
	Ops int
	// KeyRange bounds the keys: each operation picks one uniformly in
	// [0, KeyRange).
	KeyRange       int
	Seed           int64
	InitialBuckets int
}

// ConcurrentResult is the outcome of the Concurrent workload.
type ConcurrentResult struct {
	Inserted int
	Found    int
	Erased   int
	Len      int
	Elapsed  time.Duration
	Stats    aghash.Stats
}

// Concurrent runs an insert pass, a find pass and an erase pass over random
// keys, concurrently unless opts.Mode is Linear. The passes observe each
// other's effects in whatever order the scheduler interleaves them.
func Concurrent(ctx context.Context, opts ConcurrentOptions) (ConcurrentResult, error) {
	if opts.KeyRange <= 0 {
		return ConcurrentResult{}, errors.Errorf("key range must be positive, got %d", opts.KeyRange)
	}

	options := []aghash.Option[int32, uint32]{
		aghash.WithInitialBuckets[int32, uint32](opts.InitialBuckets),
	}
	if opts.Mode == BucketLock {
		options = append(options, aghash.WithConcurrentAccess[int32, uint32]())
	}
	t := aghash.New(options...)
	if !t.Initialized() {
		return ConcurrentResult{}, ErrNotInitialized
	}

	var mu sync.Mutex
	op := func(f func(k int32) bool) func(k int32) bool {
		if opts.Mode != TableLock {
			return f
		}
		return func(k int32) bool {
			mu.Lock()
			defer mu.Unlock()
			return f(k)
		}
	}

	// Each pass draws keys from its own generator.
	pass := func(ctx context.Context, seed int64, f func(k int32) bool) (int, error) {
		rng := rand.New(rand.NewSource(seed))
		var n int
		for i := 0; i < opts.Ops; i++ {
			if i&0xffff == 0 {
				if err := ctx.Err(); err != nil {
					return n, err
				}
			}
			if f(int32(rng.Intn(opts.KeyRange))) {
				n++
			}
		}
		return n, nil
	}

	var res ConcurrentResult
	passes := []struct {
		f   func(k int32) bool
		out *int
	}{
		{op(t.Insert), &res.Inserted},
		{op(t.Exists), &res.Found},
		{op(t.Erase), &res.Erased},
	}

	start := time.Now()
	if opts.Mode == Linear {
		for i, p := range passes {
			n, err := pass(ctx, opts.Seed+int64(i), p.f)
			if err != nil {
				return ConcurrentResult{}, err
			}
			*p.out = n
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for i, p := range passes {
			g.Go(func() error {
				n, err := pass(gctx, opts.Seed+int64(i), p.f)
				*p.out = n
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return ConcurrentResult{}, err
		}
	}
	res.Elapsed = time.Since(start)
	res.Len = t.Len()
	res.Stats = t.Stats()
	return res, nil
}

// ReadResult is the outcome of the Read workload.
type ReadResult struct {
	// Hits holds the number of keys found by each reader.
	Hits    []int
	Elapsed time.Duration
}

// Read inserts 0..n-1 into a table with concurrent access, then has each of
// workers goroutines look up every key in [0, n) in parallel.
func Read(ctx context.Context, n, workers, initialBuckets int) (ReadResult, error) {
	if workers <= 0 {
		return ReadResult{}, errors.Errorf("workers must be positive, got %d", workers)
	}

	t := aghash.New(
		aghash.WithInitialBuckets[int32, uint32](initialBuckets),
		aghash.WithConcurrentAccess[int32, uint32]())
	if !t.Initialized() {
		return ReadResult{}, ErrNotInitialized
	}
	for i := 0; i < n; i++ {
		t.Insert(int32(i))
	}

	res := ReadResult{Hits: make([]int, workers)}
	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()
	for w := range res.Hits {
		g.Go(func() error {
			for i := 0; i < n; i++ {
				if i&0xffff == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				if t.Exists(int32(i)) {
					res.Hits[w]++
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ReadResult{}, err
	}
	res.Elapsed = time.Since(start)
	return res, nil
}
