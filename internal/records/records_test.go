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

package records

import (
	"bytes"
	"io"
	"math/rand"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestGenerateSequence(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, 3, Sequence, nil))
	require.Equal(t, "3\n0\n1\n2\n0\n1\n2\n0\n1\n2\n", buf.String())

	recs, err := Load(&buf)
	require.NoError(t, err)
	require.Equal(t, 3, recs.Len())
	require.Equal(t, []int32{0, 1, 2}, recs.Insert)
	require.Equal(t, []int32{0, 1, 2}, recs.Find)
	require.Equal(t, []int32{0, 1, 2}, recs.Erase)
}

func TestGenerateRandom(t *testing.T) {
	const n = 10
	const block = 4

	var buf bytes.Buffer
	rng := rand.New(rand.NewSource(1))
	require.NoError(t, generate(&buf, n, Random, rng, block))

	recs, err := Load(&buf)
	require.NoError(t, err)

	sorted := func(s []int32) []int32 {
		s = slices.Clone(s)
		slices.Sort(s)
		return s
	}
	identity := []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	passes := [][]int32{recs.Insert, recs.Find, recs.Erase}
	for _, p := range passes {
		require.Equal(t, identity, sorted(p))
	}

	// Keys stay within their block across passes.
	for lo := 0; lo < n; lo += block {
		hi := min(lo+block, n)
		want := sorted(recs.Insert[lo:hi])
		require.Equal(t, want, sorted(recs.Find[lo:hi]))
		require.Equal(t, want, sorted(recs.Erase[lo:hi]))
	}
}

func TestGenerateEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, 0, Random, rand.New(rand.NewSource(1))))
	recs, err := Load(&buf)
	require.NoError(t, err)
	require.Zero(t, recs.Len())

	require.Error(t, Generate(io.Discard, -1, Sequence, nil))
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		input string
		err   string
	}{
		{"", "reading record count"},
		{"x\n", "reading record count: line 1"},
		{"-1\n", "negative record count"},
		{"2\n1\n2\n3\n4\n5\n", "reading record 1 of pass 2"},
		{"1\n1\n2\nthree\n", "reading record 0 of pass 2: line 4"},
		{"1\n1\n2\n9999999999\n", "line 4"},
	}
	for _, c := range testCases {
		t.Run("", func(t *testing.T) {
			_, err := Load(strings.NewReader(c.input))
			require.ErrorContains(t, err, c.err)
		})
	}

	_, err := Load(strings.NewReader("1\n5\n"))
	require.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestLoadTruncatedHugeCount(t *testing.T) {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err := Load(strings.NewReader("2000000000\n1\n2\n"))
	runtime.ReadMemStats(&after)
	require.ErrorContains(t, err, "reading record 2 of pass 0")
	require.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	require.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(64<<20))
}

func TestLoadBlankLines(t *testing.T) {
	recs, err := Load(strings.NewReader("1\n\n 7 \n8\n\n9\n"))
	require.NoError(t, err)
	require.Equal(t, []int32{7}, recs.Insert)
	require.Equal(t, []int32{8}, recs.Find)
	require.Equal(t, []int32{9}, recs.Erase)
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("Random")
	require.NoError(t, err)
	require.Equal(t, Random, o)
	o, err = ParseOrder("seq")
	require.NoError(t, err)
	require.Equal(t, Sequence, o)
	_, err = ParseOrder("sorted")
	require.Error(t, err)
	require.Equal(t, "random", Random.String())
}
