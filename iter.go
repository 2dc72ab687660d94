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

// Iterator is a position within a Table. Iterators visit keys in ascending
// order of hash value, and keys sharing a hash in insertion order. An
// iterator is only valid while the table is not mutated.
//
//	for it := t.Begin(); it.Valid(); it.Next() {
//	  fmt.Println(it.Key())
//	}
type Iterator[K any, H Hash] struct {
	t   *Table[K, H]
	agg *aggregate[K, H]
	i   int
}

// Begin returns an iterator positioned at the key with the smallest hash, or
// End if the table is empty.
func (t *Table[K, H]) Begin() Iterator[K, H] {
	return t.seek(0)
}

// End returns the past-the-end iterator.
func (t *Table[K, H]) End() Iterator[K, H] {
	return Iterator[K, H]{t: t}
}

// seek returns an iterator positioned at the first key whose hash is >= h.
// Each candidate hash value is looked up individually, so the cost is
// proportional to the number of unused hash values skipped.
func (t *Table[K, H]) seek(h H) Iterator[K, H] {
	for {
		if a := t.aggregateFor(h); a != nil {
			return Iterator[K, H]{t: t, agg: a}
		}
		h++
		if h == 0 {
			return t.End()
		}
	}
}

// Valid returns false if the iterator is positioned at End.
func (it Iterator[K, H]) Valid() bool {
	return it.agg != nil
}

// Key returns the key at the iterator's position. It is invalid to call Key
// on End.
func (it Iterator[K, H]) Key() K {
	return it.agg.keys[it.i]
}

// Next advances the iterator to the following key. Next is a noop on End.
func (it *Iterator[K, H]) Next() {
	if it.agg == nil {
		return
	}
	if it.i+1 < len(it.agg.keys) {
		it.i++
		return
	}
	h := it.agg.hash + 1
	if h == 0 {
		*it = it.t.End()
		return
	}
	*it = it.t.seek(h)
}

// Equal returns true if both iterators are at the same position of the same
// table.
func (it Iterator[K, H]) Equal(o Iterator[K, H]) bool {
	return it.t == o.t && it.agg == o.agg && it.i == o.i
}

// All calls yield sequentially for each key in the table, in the same order
// as an Iterator. If yield returns false, iteration stops. Mutating the
// table from within yield is invalid.
func (t *Table[K, H]) All(yield func(key K) bool) {
	for it := t.Begin(); it.Valid(); it.Next() {
		if !yield(it.Key()) {
			return
		}
	}
}
