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
	"bytes"
	"io"

	"github.com/colstream/colstream/pkg/container/hashtable"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
)

// NewBytesHashMap builds a map keyed on the concatenated byte form of
// the key columns. The keys are kept in a pool and compared on probe,
// so it fits key sets with variable length columns where identity has
// to be exact.
func NewBytesHashMap(hasNull bool) (*BytesHashMap, error) {
	mp := &hashtable.BytesHashMap{}
	mp.Init(nil)
	keys := make([][]byte, UnitLimit)
	for i := range keys {
		keys[i] = make([]byte, 0, 16)
	}
	return &BytesHashMap{
		hasNull: hasNull,
		keys:    keys,
		values:  make([]uint64, UnitLimit),
		zValues: make([]int64, UnitLimit),
		hashes:  make([]uint64, UnitLimit),
		hashMap: mp,
	}, nil
}

func (m *BytesHashMap) NewIterator() Iterator {
	return &bytesHashMapIterator{mp: m}
}

func (m *BytesHashMap) HasNull() bool {
	return m.hasNull
}

func (m *BytesHashMap) Free() {
	m.hashMap.Free()
}

func (m *BytesHashMap) GroupCount() uint64 {
	return m.rows
}

func (m *BytesHashMap) AddGroup() {
	m.rows++
}

func (m *BytesHashMap) AddGroups(rows uint64) {
	m.rows += rows
}

func (m *BytesHashMap) Size() int64 {
	size := int64(0)
	if m.hashMap != nil {
		size += m.hashMap.Size()
	}
	for i := range m.keys {
		size += int64(cap(m.keys[i]))
	}
	size += int64(cap(m.values)) * 8
	size += int64(cap(m.zValues)) * 8
	size += int64(cap(m.hashes)) * 8
	return size
}

// MarshalBinary lays out the null flag, the group count and the
// underlying table image, stored keys included.
func (m *BytesHashMap) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	if m.hasNull {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	rows := m.rows
	buf.Write(types.EncodeUint64(&rows))
	data, err := m.hashMap.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf.Write(data)
	return buf.Bytes(), nil
}

func (m *BytesHashMap) UnmarshalBinary(data []byte, allocator hashtable.Allocator) error {
	r := bytes.NewBuffer(data)

	flag, err := r.ReadByte()
	if err != nil {
		return err
	}
	m.hasNull = flag == 1
	var rowsBuf [8]byte
	if _, err := io.ReadFull(r, rowsBuf[:]); err != nil {
		return err
	}
	m.rows = types.DecodeUint64(rowsBuf[:])

	m.keys = make([][]byte, UnitLimit)
	for i := range m.keys {
		m.keys[i] = make([]byte, 0, 16)
	}
	m.values = make([]uint64, UnitLimit)
	m.zValues = make([]int64, UnitLimit)
	m.hashes = make([]uint64, UnitLimit)
	m.hashMap = &hashtable.BytesHashMap{}
	return m.hashMap.UnmarshalBinary(r.Bytes(), allocator)
}

func (itr *bytesHashMapIterator) Insert(start, count int, vecs []*vector.Vector) ([]uint64, []int64, error) {
	m := itr.mp
	defer m.resetKeys(count)
	m.encodeHashKeys(vecs, start, count)

	if m.hasNull {
		if err := m.hashMap.InsertBytesBatch(m.hashes[:count], m.keys[:count], m.values[:count]); err != nil {
			return nil, nil, err
		}
	} else {
		if err := m.hashMap.InsertBytesBatchWithRing(m.zValues[:count], m.hashes[:count], m.keys[:count], m.values[:count]); err != nil {
			return nil, nil, err
		}
	}
	m.rows = m.hashMap.Cardinality()
	return m.values[:count], m.zValues[:count], nil
}

func (itr *bytesHashMapIterator) Find(start, count int, vecs []*vector.Vector) ([]uint64, []int64) {
	m := itr.mp
	defer m.resetKeys(count)
	m.encodeHashKeys(vecs, start, count)

	if m.hasNull {
		m.hashMap.FindBytesBatch(m.hashes[:count], m.keys[:count], m.values[:count])
	} else {
		m.hashMap.FindBytesBatchWithRing(m.zValues[:count], m.hashes[:count], m.keys[:count], m.values[:count])
	}
	return m.values[:count], m.zValues[:count]
}

func (m *BytesHashMap) resetKeys(count int) {
	for i := 0; i < count; i++ {
		m.keys[i] = m.keys[i][:0]
	}
}

// encodeHashKeys serializes the key columns the same way StrHashMap
// does, minus the trailing padding. Exact probes need no minimum key
// width.
func (m *BytesHashMap) encodeHashKeys(vecs []*vector.Vector, start, count int) {
	for i := 0; i < count; i++ {
		m.zValues[i] = 1
	}
	for _, vec := range vecs {
		if vec.GetType().IsFixedLen() {
			m.fillFixedKeys(vec, vec.GetType().TypeSize(), start, count)
		} else {
			m.fillStrKeys(vec, start, count)
		}
	}
}

func (m *BytesHashMap) fillFixedKeys(vec *vector.Vector, sz, start, count int) {
	if vec.IsConstNull() {
		m.fillNulls(count)
		return
	}

	data := vec.UnsafeGetRawData()
	isConst := vec.IsConst()
	nsp := vec.GetNulls()
	for i := 0; i < count; i++ {
		row := start + i
		if isConst {
			row = 0
		}
		if m.hasNull {
			if nsp.Contains(uint64(row)) {
				m.keys[i] = append(m.keys[i], 1)
				continue
			}
			m.keys[i] = append(m.keys[i], 0)
		} else if nsp.Contains(uint64(row)) {
			m.zValues[i] = 0
			continue
		}
		m.keys[i] = append(m.keys[i], data[row*sz:(row+1)*sz]...)
	}
}

func (m *BytesHashMap) fillStrKeys(vec *vector.Vector, start, count int) {
	if vec.IsConstNull() {
		m.fillNulls(count)
		return
	}

	area := vec.GetArea()
	vs := vector.MustFixedColWithTypeCheck[types.Varlena](vec)
	isConst := vec.IsConst()
	nsp := vec.GetNulls()
	for i := 0; i < count; i++ {
		row := start + i
		if isConst {
			row = 0
		}
		if m.hasNull {
			if nsp.Contains(uint64(row)) {
				m.keys[i] = append(m.keys[i], 1)
				continue
			}
			m.keys[i] = append(m.keys[i], 0)
		} else if nsp.Contains(uint64(row)) {
			m.zValues[i] = 0
			continue
		}
		bs := vs[row].GetByteSlice(area)
		length := uint16(len(bs))
		m.keys[i] = append(m.keys[i], types.EncodeUint16(&length)...)
		m.keys[i] = append(m.keys[i], bs...)
	}
}

func (m *BytesHashMap) fillNulls(count int) {
	if m.hasNull {
		for i := 0; i < count; i++ {
			m.keys[i] = append(m.keys[i], 1)
		}
		return
	}
	for i := 0; i < count; i++ {
		m.zValues[i] = 0
	}
}
