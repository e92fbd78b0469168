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

// NewStrHashMap builds a map keyed on the concatenated byte form of
// the key columns. It handles keys of any width.
func NewStrHashMap(hasNull bool) (*StrHashMap, error) {
	mp := &hashtable.StringHashMap{}
	mp.Init(nil)
	keys := make([][]byte, UnitLimit)
	for i := range keys {
		keys[i] = make([]byte, 0, 16)
	}
	return &StrHashMap{
		hasNull:       hasNull,
		keys:          keys,
		values:        make([]uint64, UnitLimit),
		zValues:       make([]int64, UnitLimit),
		strHashStates: make([][3]uint64, UnitLimit),
		hashMap:       mp,
	}, nil
}

func (m *StrHashMap) NewIterator() Iterator {
	return &strHashMapIterator{mp: m}
}

func (m *StrHashMap) HasNull() bool {
	return m.hasNull
}

func (m *StrHashMap) Free() {
	m.hashMap.Free()
}

func (m *StrHashMap) GroupCount() uint64 {
	return m.rows
}

func (m *StrHashMap) AddGroup() {
	m.rows++
}

func (m *StrHashMap) AddGroups(rows uint64) {
	m.rows += rows
}

func (m *StrHashMap) Size() int64 {
	size := int64(0)
	if m.hashMap != nil {
		size += m.hashMap.Size()
	}
	for i := range m.keys {
		size += int64(cap(m.keys[i]))
	}
	size += int64(cap(m.values)) * 8
	size += int64(cap(m.zValues)) * 8
	size += int64(cap(m.strHashStates)) * 24
	return size
}

// MarshalBinary lays out the null flag, the group count and the
// underlying table image.
func (m *StrHashMap) MarshalBinary() ([]byte, error) {
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

func (m *StrHashMap) UnmarshalBinary(data []byte, allocator hashtable.Allocator) error {
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
	m.strHashStates = make([][3]uint64, UnitLimit)
	m.hashMap = &hashtable.StringHashMap{}
	return m.hashMap.UnmarshalBinary(r.Bytes(), allocator)
}

func (itr *strHashMapIterator) Insert(start, count int, vecs []*vector.Vector) ([]uint64, []int64, error) {
	m := itr.mp
	defer m.resetKeys(count)
	m.encodeHashKeys(vecs, start, count)

	if m.hasNull {
		if err := m.hashMap.InsertStringBatch(m.strHashStates[:count], m.keys[:count], m.values[:count]); err != nil {
			return nil, nil, err
		}
	} else {
		if err := m.hashMap.InsertStringBatchWithRing(m.zValues[:count], m.strHashStates[:count], m.keys[:count], m.values[:count]); err != nil {
			return nil, nil, err
		}
	}
	m.rows = m.hashMap.Cardinality()
	return m.values[:count], m.zValues[:count], nil
}

func (itr *strHashMapIterator) Find(start, count int, vecs []*vector.Vector) ([]uint64, []int64) {
	m := itr.mp
	defer m.resetKeys(count)
	m.encodeHashKeys(vecs, start, count)

	if m.hasNull {
		m.hashMap.FindStringBatch(m.strHashStates[:count], m.keys[:count], m.values[:count])
	} else {
		m.hashMap.FindStringBatchWithRing(m.zValues[:count], m.strHashStates[:count], m.keys[:count], m.values[:count])
	}
	return m.values[:count], m.zValues[:count]
}

func (m *StrHashMap) resetKeys(count int) {
	for i := 0; i < count; i++ {
		m.keys[i] = m.keys[i][:0]
	}
}

func (m *StrHashMap) encodeHashKeys(vecs []*vector.Vector, start, count int) {
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
	for i := 0; i < count; i++ {
		if l := len(m.keys[i]); l < 16 {
			m.keys[i] = append(m.keys[i], hashtable.StrKeyPadding[l:]...)
		}
	}
}

func (m *StrHashMap) fillFixedKeys(vec *vector.Vector, sz, start, count int) {
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

func (m *StrHashMap) fillStrKeys(vec *vector.Vector, start, count int) {
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

func (m *StrHashMap) fillNulls(count int) {
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
