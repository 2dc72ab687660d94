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
	"bytes"
	"fmt"
	"reflect"
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

// xxhashFolded is the default byte hash: xxHash64 folded down to the width
// of H so that every input bit influences the result.
func xxhashFolded[H Hash](b []byte) H {
	return fold[H](xxhash.Sum64(b))
}

// fold xor-folds a 64-bit hash onto the low bits of H.
func fold[H Hash](h uint64) H {
	for w := hashBits[H](); w < 64; w *= 2 {
		h ^= h >> w
	}
	return H(h)
}

// keyBytesFunc returns a function exposing the byte representation of a key
// without copying it: the contents of strings and byte slices, and the raw
// memory of anything else. It panics unless equal values of K always have
// identical memory. Pointers, floats and padded structs fail that test.
func keyBytesFunc[K any]() func(key *K) []byte {
	typ := reflect.TypeFor[K]()
	switch {
	case typ.Kind() == reflect.String:
		return func(key *K) []byte {
			s := *(*string)(unsafe.Pointer(key))
			return unsafe.Slice(unsafe.StringData(s), len(s))
		}
	case isByteSlice(typ):
		return func(key *K) []byte {
			return *(*[]byte)(unsafe.Pointer(key))
		}
	case !memHashable(typ):
		panic(fmt.Sprintf("aghash: cannot hash keys of type %s by memory, use WithHash", typ))
	}

	size := typ.Size()
	return func(key *K) []byte {
		return unsafe.Slice((*byte)(noescape(unsafe.Pointer(key))), size)
	}
}

// defaultEqual returns the equality function used when none is configured.
// Byte slices are compared by content, the way C strings are compared by
// content rather than by address. It panics if K is otherwise not
// comparable.
func defaultEqual[K any]() func(a, b K) bool {
	typ := reflect.TypeFor[K]()
	if !typ.Comparable() && !isByteSlice(typ) {
		panic(fmt.Sprintf("aghash: keys of type %s are not comparable, use WithEqual", typ))
	}
	switch typ.Kind() {
	case reflect.String:
		return func(a, b K) bool {
			return *(*string)(unsafe.Pointer(&a)) == *(*string)(unsafe.Pointer(&b))
		}
	case reflect.Slice:
		if isByteSlice(typ) {
			return func(a, b K) bool {
				return bytes.Equal(*(*[]byte)(unsafe.Pointer(&a)), *(*[]byte)(unsafe.Pointer(&b)))
			}
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Uintptr:
		// NB: Integers have no padding and a single representation per value
		// so comparing memory avoids boxing the keys into interfaces.
		size := typ.Size()
		return func(a, b K) bool {
			return bytes.Equal(
				unsafe.Slice((*byte)(noescape(unsafe.Pointer(&a))), size),
				unsafe.Slice((*byte)(noescape(unsafe.Pointer(&b))), size))
		}
	}
	return func(a, b K) bool {
		return any(a) == any(b)
	}
}

func isByteSlice(typ reflect.Type) bool {
	return typ.Kind() == reflect.Slice && typ.Elem().Kind() == reflect.Uint8
}

// memHashable reports whether values of typ are equal exactly when their
// memory is. Floats are excluded because +0 == -0 and NaN != NaN. Structs
// are excluded when they contain padding or blank fields, whose contents
// equality ignores.
func memHashable(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Uintptr:
		return true
	case reflect.Array:
		return typ.Len() == 0 || memHashable(typ.Elem())
	case reflect.Struct:
		var size uintptr
		for i := 0; i < typ.NumField(); i++ {
			f := typ.Field(i)
			if f.Name == "_" || f.Offset != size || !memHashable(f.Type) {
				return false
			}
			size += f.Type.Size()
		}
		return size == typ.Size()
	default:
		return false
	}
}

// noescape hides a pointer from escape analysis.  noescape is
// the identity function but escape analysis doesn't think the
// output depends on the input.  noescape is inlined and currently
// compiles down to zero instructions.
// USE CAREFULLY!
//
//go:nosplit
//go:nocheckptr
func noescape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
