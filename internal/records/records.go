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

// Package records reads and writes benchmark record files. A record file
// holds a count n on its first line followed by 3n decimal integers, one per
// line: n keys to insert, then n keys to find, then n keys to erase.
package records

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Order is the order in which keys are written to a record file.
type Order int

const (
	// Sequence writes 0..n-1 ascending in every pass.
	Sequence Order = iota
	// Random writes a permutation of 0..n-1 in every pass.
	Random
)

// BlockSize is the size of the blocks shuffled independently in each pass
// of a Random file. Keys never move between blocks after the initial
// shuffle, which keeps a pass's working set local.
const BlockSize = 1_000_000

func (o Order) String() string {
	switch o {
	case Sequence:
		return "sequence"
	case Random:
		return "random"
	default:
		return fmt.Sprintf("Order(%d)", int(o))
	}
}

// ParseOrder parses the name of an Order.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(s) {
	case "sequence", "seq":
		return Sequence, nil
	case "random", "rand":
		return Random, nil
	default:
		return 0, errors.Errorf("unknown record order %q", s)
	}
}

// Records are the three key sequences of a record file.
type Records struct {
	Insert []int32
	Find   []int32
	Erase  []int32
}

// Len returns the number of records per sequence.
func (r *Records) Len() int {
	return len(r.Insert)
}

// Generate writes a record file of n records per sequence to w.
func Generate(w io.Writer, n int, order Order, rng *rand.Rand) error {
	return generate(w, n, order, rng, BlockSize)
}

func generate(w io.Writer, n int, order Order, rng *rand.Rand, block int) error {
	if n < 0 {
		return errors.Errorf("negative record count %d", n)
	}

	keys := make([]int32, n)
	for i := range keys {
		keys[i] = int32(i)
	}
	if order == Random {
		rng.Shuffle(n, func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	}

	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, n); err != nil {
		return errors.Wrap(err, "writing record count")
	}
	var buf []byte
	for pass := 0; pass < 3; pass++ {
		if order == Random {
			for lo := 0; lo < n; lo += block {
				b := keys[lo:min(lo+block, n)]
				rng.Shuffle(len(b), func(i, j int) { b[i], b[j] = b[j], b[i] })
			}
		}
		for _, k := range keys {
			buf = strconv.AppendInt(buf[:0], int64(k), 10)
			buf = append(buf, '\n')
			if _, err := bw.Write(buf); err != nil {
				return errors.Wrapf(err, "writing pass %d", pass)
			}
		}
	}
	return errors.Wrap(bw.Flush(), "flushing records")
}

// Load parses a record file. A file with fewer than 3n keys, or with a
// line that is not an integer, is an error.
func Load(r io.Reader) (*Records, error) {
	s := bufio.NewScanner(r)
	line := 0
	next := func() (int64, error) {
		for s.Scan() {
			line++
			text := strings.TrimSpace(s.Text())
			if text == "" {
				continue
			}
			v, err := strconv.ParseInt(text, 10, 32)
			if err != nil {
				return 0, errors.Wrapf(err, "line %d", line)
			}
			return v, nil
		}
		if err := s.Err(); err != nil {
			return 0, errors.Wrap(err, "reading records")
		}
		return 0, io.ErrUnexpectedEOF
	}

	n, err := next()
	if err != nil {
		return nil, errors.Wrap(err, "reading record count")
	}
	if n < 0 {
		return nil, errors.Errorf("negative record count %d", n)
	}

	// The count is untrusted. Preallocate at most one block per pass.
	recs := &Records{}
	for i, seq := range []*[]int32{&recs.Insert, &recs.Find, &recs.Erase} {
		*seq = make([]int32, 0, min(n, BlockSize))
		for j := int64(0); j < n; j++ {
			v, err := next()
			if err != nil {
				return nil, errors.Wrapf(err, "reading record %d of pass %d", j, i)
			}
			*seq = append(*seq, int32(v))
		}
	}
	return recs, nil
}
