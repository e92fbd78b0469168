// Copyright 2022 ColStream Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hashtable

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func insertStrings(t *testing.T, ht *StringHashMap, keys [][]byte, values []uint64) {
	for off := 0; off < len(keys); off += 256 {
		n := len(keys) - off
		if n > 256 {
			n = 256
		}
		states := make([][3]uint64, n)
		err := ht.InsertStringBatch(states, keys[off:off+n], values[off:off+n])
		require.NoError(t, err)
	}
}

func TestStringHashMapInsertFind(t *testing.T) {
	alloc := newCountingAllocator()
	ht := &StringHashMap{}
	require.NoError(t, ht.Init(alloc))

	const n = 2000
	keys := make([][]byte, n)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("group-%d", i))
	}
	values := make([]uint64, n)
	insertStrings(t, ht, keys, values)
	for i := range values {
		require.Equal(t, uint64(i+1), values[i])
	}
	require.Equal(t, uint64(n), ht.Cardinality())

	again := make([]uint64, n)
	insertStrings(t, ht, keys, again)
	require.Equal(t, values, again)
	require.Equal(t, uint64(n), ht.Cardinality())

	probe := [][]byte{[]byte("group-0"), []byte("group-1999"), []byte("missing")}
	states := make([][3]uint64, len(probe))
	found := make([]uint64, len(probe))
	ht.FindStringBatch(states, probe, found)
	require.Equal(t, uint64(1), found[0])
	require.Equal(t, uint64(2000), found[1])
	require.Equal(t, uint64(0), found[2])

	require.Greater(t, ht.Size(), int64(0))

	ht.Free()
	require.Equal(t, int64(0), alloc.live)
}

func TestStringHashMapWithRing(t *testing.T) {
	alloc := newCountingAllocator()
	ht := &StringHashMap{}
	require.NoError(t, ht.Init(alloc))

	keys := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("a")}
	zValues := []int64{1, 0, 1, 1}
	states := make([][3]uint64, len(keys))
	values := make([]uint64, len(keys))
	err := ht.InsertStringBatchWithRing(zValues, states, keys, values)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 0, 2, 1}, values)
	require.Equal(t, uint64(2), ht.Cardinality())

	states = make([][3]uint64, len(keys))
	found := make([]uint64, len(keys))
	ht.FindStringBatchWithRing(zValues, states, keys, found)
	require.Equal(t, []uint64{1, 0, 2, 1}, found)

	ht.Free()
	require.Equal(t, int64(0), alloc.live)
}

func TestStringHashMapIterator(t *testing.T) {
	alloc := newCountingAllocator()
	ht := &StringHashMap{}
	require.NoError(t, ht.Init(alloc))

	keys := [][]byte{[]byte("x"), []byte("y"), []byte("z")}
	states := make([][3]uint64, len(keys))
	values := make([]uint64, len(keys))
	require.NoError(t, ht.InsertStringBatch(states, keys, values))

	itr := &StringHashMapIterator{}
	itr.Init(ht)
	var cnt int
	seen := make(map[uint64]bool)
	for {
		cell, err := itr.Next()
		if err != nil {
			break
		}
		cnt++
		seen[cell.Mapped] = true
	}
	require.Equal(t, 3, cnt)
	require.True(t, seen[1] && seen[2] && seen[3])

	ht.Free()
	require.Equal(t, int64(0), alloc.live)
}

func TestStringHashMapMarshal(t *testing.T) {
	alloc := newCountingAllocator()
	ht := &StringHashMap{}
	require.NoError(t, ht.Init(alloc))

	const n = 1500
	keys := make([][]byte, n)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("value-%d", i))
	}
	values := make([]uint64, n)
	insertStrings(t, ht, keys, values)

	data, err := ht.MarshalBinary()
	require.NoError(t, err)

	other := &StringHashMap{}
	require.NoError(t, other.UnmarshalBinary(data, alloc))
	require.Equal(t, ht.Cardinality(), other.Cardinality())

	found := make([]uint64, n)
	for off := 0; off < n; off += 256 {
		m := n - off
		if m > 256 {
			m = 256
		}
		states := make([][3]uint64, m)
		other.FindStringBatch(states, keys[off:off+m], found[off:off+m])
	}
	require.Equal(t, values, found)

	ht.Free()
	other.Free()
	require.Equal(t, int64(0), alloc.live)
}
