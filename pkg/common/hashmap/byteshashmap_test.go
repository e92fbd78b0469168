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

package hashmap

import (
	"io"
	"testing"

	"github.com/colstream/colstream/pkg/common/mpool"
	"github.com/colstream/colstream/pkg/container/hashtable"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
	"github.com/stretchr/testify/require"
)

func TestBytesHashMapIterator(t *testing.T) {
	{
		m := mpool.MustNewZero()
		mp, err := NewBytesHashMap(false)
		require.NoError(t, err)
		ts := []types.Type{
			types.New(types.T_int8, 0, 0),
			types.New(types.T_int64, 0, 0),
			types.New(types.T_varchar, 0, 0),
		}
		vecs := newVectors(ts, false, Rows, m)
		itr := mp.NewIterator()
		vs, _, err := itr.Insert(0, Rows, vecs)
		require.NoError(t, err)
		require.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, vs[:Rows])
		require.Equal(t, uint64(Rows), mp.GroupCount())
		vs, _ = itr.Find(0, Rows, vecs)
		require.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, vs[:Rows])
		for _, vec := range vecs {
			vec.Free(m)
		}
		mp.Free()
		require.Equal(t, int64(0), m.CurrNB())
	}
	{
		m := mpool.MustNewZero()
		mp, err := NewBytesHashMap(true)
		require.NoError(t, err)
		ts := []types.Type{
			types.New(types.T_int64, 0, 0),
			types.New(types.T_varchar, 0, 0),
		}
		vecs := newVectorsWithNull(ts, false, Rows, m)
		itr := mp.NewIterator()
		vs, _, err := itr.Insert(0, Rows, vecs)
		require.NoError(t, err)
		require.Equal(t, []uint64{1, 2, 1, 3, 1, 4, 1, 5, 1, 6}, vs[:Rows])
		vs, _ = itr.Find(0, Rows, vecs)
		require.Equal(t, []uint64{1, 2, 1, 3, 1, 4, 1, 5, 1, 6}, vs[:Rows])
		for _, vec := range vecs {
			vec.Free(m)
		}
		mp.Free()
		require.Equal(t, int64(0), m.CurrNB())
	}
	{
		m := mpool.MustNewZero()
		mp, err := NewBytesHashMap(false)
		require.NoError(t, err)
		ts := []types.Type{
			types.New(types.T_varchar, 0, 0),
		}
		vecs := newVectorsWithNull(ts, false, Rows, m)
		itr := mp.NewIterator()
		vs, zvs, err := itr.Insert(0, Rows, vecs)
		require.NoError(t, err)
		require.Equal(t, []uint64{0, 1, 0, 2, 0, 3, 0, 4, 0, 5}, vs[:Rows])
		require.Equal(t, []int64{0, 1, 0, 1, 0, 1, 0, 1, 0, 1}, zvs[:Rows])
		vs, _ = itr.Find(0, Rows, vecs)
		require.Equal(t, []uint64{0, 1, 0, 2, 0, 3, 0, 4, 0, 5}, vs[:Rows])
		for _, vec := range vecs {
			vec.Free(m)
		}
		mp.Free()
		require.Equal(t, int64(0), m.CurrNB())
	}
}

func TestBytesHashMapConstNull(t *testing.T) {
	{
		m := mpool.MustNewZero()
		mp, err := NewBytesHashMap(true)
		require.NoError(t, err)
		rowCount := 5
		vecs := []*vector.Vector{
			vector.NewConstNull(types.T_varchar.ToType(), rowCount, m),
		}
		itr := mp.NewIterator()
		vs, _, err := itr.Insert(0, rowCount, vecs)
		require.NoError(t, err)
		require.Equal(t, []uint64{1, 1, 1, 1, 1}, vs[:rowCount])
		require.Equal(t, uint64(1), mp.GroupCount())
		for _, vec := range vecs {
			vec.Free(m)
		}
		mp.Free()
		require.Equal(t, int64(0), m.CurrNB())
	}
	{
		m := mpool.MustNewZero()
		mp, err := NewBytesHashMap(false)
		require.NoError(t, err)
		rowCount := 5
		vecs := []*vector.Vector{
			vector.NewConstNull(types.T_varchar.ToType(), rowCount, m),
		}
		itr := mp.NewIterator()
		vs, zvs, err := itr.Insert(0, rowCount, vecs)
		require.NoError(t, err)
		require.Equal(t, []uint64{0, 0, 0, 0, 0}, vs[:rowCount])
		require.Equal(t, []int64{0, 0, 0, 0, 0}, zvs[:rowCount])
		require.Equal(t, uint64(0), mp.GroupCount())
		for _, vec := range vecs {
			vec.Free(m)
		}
		mp.Free()
		require.Equal(t, int64(0), m.CurrNB())
	}
}

func TestBytesHashMapMarshalUnmarshal(t *testing.T) {
	m := mpool.MustNewZero()
	defer func() {
		require.Equal(t, int64(0), m.CurrNB())
	}()

	t.Run("empty map", func(t *testing.T) {
		mp, err := NewBytesHashMap(true)
		require.NoError(t, err)
		defer mp.Free()

		data, err := mp.MarshalBinary()
		require.NoError(t, err)

		unmarshaledMp := &BytesHashMap{}
		err = unmarshaledMp.UnmarshalBinary(data, hashtable.DefaultAllocator())
		require.NoError(t, err)
		defer unmarshaledMp.Free()

		require.Equal(t, uint64(0), unmarshaledMp.GroupCount())
		require.Equal(t, mp.HasNull(), unmarshaledMp.HasNull())
	})

	t.Run("single element", func(t *testing.T) {
		mp, err := NewBytesHashMap(false)
		require.NoError(t, err)
		defer mp.Free()

		rowCount := 1
		vecs := []*vector.Vector{
			newVector(rowCount, types.T_varchar.ToType(), m, false, []string{"12345"}),
		}
		defer func() {
			for _, vec := range vecs {
				vec.Free(m)
			}
		}()

		itr := mp.NewIterator()
		vs, _, err := itr.Insert(0, rowCount, vecs)
		require.NoError(t, err)
		expectedMappedValue := vs
		expectedGroupCount := mp.GroupCount()

		data, err := mp.MarshalBinary()
		require.NoError(t, err)

		unmarshaledMp := &BytesHashMap{}
		err = unmarshaledMp.UnmarshalBinary(data, hashtable.DefaultAllocator())
		require.NoError(t, err)
		defer unmarshaledMp.Free()

		require.Equal(t, expectedGroupCount, unmarshaledMp.GroupCount())
		require.Equal(t, mp.HasNull(), unmarshaledMp.HasNull())

		foundVs, _ := unmarshaledMp.NewIterator().Find(0, rowCount, vecs)
		require.Equal(t, expectedMappedValue, foundVs)
	})

	t.Run("resize", func(t *testing.T) {
		mp, err := NewBytesHashMap(false)
		require.NoError(t, err)
		defer mp.Free()

		numElements := 1500
		ts := []types.Type{
			types.New(types.T_varchar, 0, 0),
		}
		vecs := newVectors(ts, false, numElements, m)
		defer func() {
			for _, vec := range vecs {
				vec.Free(m)
			}
		}()

		originalVs := make([]uint64, numElements)
		itr := mp.NewIterator()
		for start := 0; start < numElements; start += UnitLimit {
			n := numElements - start
			if n > UnitLimit {
				n = UnitLimit
			}
			vs, _, err := itr.Insert(start, n, vecs)
			require.NoError(t, err)
			copy(originalVs[start:], vs[:n])
		}
		require.Equal(t, uint64(numElements), mp.GroupCount())

		data, err := mp.MarshalBinary()
		require.NoError(t, err)

		unmarshaledMp := &BytesHashMap{}
		err = unmarshaledMp.UnmarshalBinary(data, hashtable.DefaultAllocator())
		require.NoError(t, err)
		defer unmarshaledMp.Free()

		require.Equal(t, uint64(numElements), unmarshaledMp.GroupCount())

		foundItr := unmarshaledMp.NewIterator()
		for start := 0; start < numElements; start += UnitLimit {
			n := numElements - start
			if n > UnitLimit {
				n = UnitLimit
			}
			vs, _ := foundItr.Find(start, n, vecs)
			require.Equal(t, originalVs[start:start+n], vs[:n])
		}
	})

	t.Run("bad input", func(t *testing.T) {
		var m BytesHashMap
		err := m.UnmarshalBinary(nil, nil)
		if err != io.EOF {
			t.Fatal()
		}
		err = m.UnmarshalBinary([]byte{1, 0}, nil)
		if err != io.ErrUnexpectedEOF {
			t.Fatalf("got %v", err)
		}
		err = m.UnmarshalBinary([]byte{1, 1, 2, 3, 4, 5, 6, 7, 8, 0}, nil)
		if err != io.ErrUnexpectedEOF {
			t.Fatalf("got %v", err)
		}
	})
}
