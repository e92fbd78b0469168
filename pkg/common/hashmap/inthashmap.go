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
	"unsafe"

	"github.com/colstream/colstream/pkg/container/hashtable"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
)

// NewIntHashMap builds a map for key sets that pack into 8 bytes per
// row. Callers are responsible for checking the width bound, including
// the extra flag byte per column when hasNull is set and the length
// byte per variable length column.
func NewIntHashMap(hasNull bool) (*IntHashMap, error) {
	mp := &hashtable.Int64HashMap{}
	mp.Init(nil)
	return &IntHashMap{
		hasNull: hasNull,
		keys:    make([]uint64, UnitLimit),
		keyOffs: make([]uint32, UnitLimit),
		values:  make([]uint64, UnitLimit),
		zValues: make([]int64, UnitLimit),
		hashes:  make([]uint64, UnitLimit),
		hashMap: mp,
	}, nil
}

func (m *IntHashMap) NewIterator() Iterator {
	return &intHashMapIterator{mp: m}
}

func (m *IntHashMap) HasNull() bool {
	return m.hasNull
}

func (m *IntHashMap) Free() {
	m.hashMap.Free()
}

func (m *IntHashMap) GroupCount() uint64 {
	return m.rows
}

func (m *IntHashMap) AddGroup() {
	m.rows++
}

func (m *IntHashMap) AddGroups(rows uint64) {
	m.rows += rows
}

func (m *IntHashMap) Size() int64 {
	size := int64(0)
	if m.hashMap != nil {
		size += m.hashMap.Size()
	}
	size += int64(cap(m.keys)) * 8
	size += int64(cap(m.keyOffs)) * 4
	size += int64(cap(m.values)) * 8
	size += int64(cap(m.zValues)) * 8
	size += int64(cap(m.hashes)) * 8
	return size
}

// MarshalBinary lays out the null flag, the group count and the
// underlying table image.
func (m *IntHashMap) MarshalBinary() ([]byte, error) {
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

func (m *IntHashMap) UnmarshalBinary(data []byte, allocator hashtable.Allocator) error {
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

	m.keys = make([]uint64, UnitLimit)
	m.keyOffs = make([]uint32, UnitLimit)
	m.values = make([]uint64, UnitLimit)
	m.zValues = make([]int64, UnitLimit)
	m.hashes = make([]uint64, UnitLimit)
	m.hashMap = &hashtable.Int64HashMap{}
	return m.hashMap.UnmarshalBinary(r.Bytes(), allocator)
}

func (itr *intHashMapIterator) Insert(start, count int, vecs []*vector.Vector) ([]uint64, []int64, error) {
	m := itr.mp
	m.encodeHashKeys(vecs, start, count)

	copy(m.hashes[:count], zeroHashes[:count])
	if m.hasNull {
		if err := m.hashMap.InsertBatch(count, m.hashes[:count], unsafe.Pointer(&m.keys[0]), m.values[:count]); err != nil {
			return nil, nil, err
		}
	} else {
		if err := m.hashMap.InsertBatchWithRing(count, m.zValues[:count], m.hashes[:count], unsafe.Pointer(&m.keys[0]), m.values[:count]); err != nil {
			return nil, nil, err
		}
	}
	m.rows = m.hashMap.Cardinality()
	return m.values[:count], m.zValues[:count], nil
}

func (itr *intHashMapIterator) Find(start, count int, vecs []*vector.Vector) ([]uint64, []int64) {
	m := itr.mp
	m.encodeHashKeys(vecs, start, count)

	copy(m.hashes[:count], zeroHashes[:count])
	if m.hasNull {
		m.hashMap.FindBatch(count, m.hashes[:count], unsafe.Pointer(&m.keys[0]), m.values[:count])
	} else {
		m.hashMap.FindBatchWithRing(count, m.zValues[:count], m.hashes[:count], unsafe.Pointer(&m.keys[0]), m.values[:count])
	}
	return m.values[:count], m.zValues[:count]
}

func (m *IntHashMap) encodeHashKeys(vecs []*vector.Vector, start, count int) {
	copy(m.keys[:count], zeroKeys[:count])
	copy(m.keyOffs[:count], zeroOffs[:count])
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

func (m *IntHashMap) fillFixedKeys(vec *vector.Vector, sz, start, count int) {
	keys := unsafe.Slice((*byte)(unsafe.Pointer(&m.keys[0])), len(m.keys)*8)

	if vec.IsConstNull() {
		if m.hasNull {
			for i := 0; i < count; i++ {
				keys[i*8+int(m.keyOffs[i])] = 1
				m.keyOffs[i]++
			}
		} else {
			for i := 0; i < count; i++ {
				m.zValues[i] = 0
			}
		}
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
		off := i*8 + int(m.keyOffs[i])
		if m.hasNull {
			if nsp.Contains(uint64(row)) {
				keys[off] = 1
				m.keyOffs[i]++
				continue
			}
			keys[off] = 0
			copy(keys[off+1:], data[row*sz:(row+1)*sz])
			m.keyOffs[i] += uint32(sz) + 1
			continue
		}
		if nsp.Contains(uint64(row)) {
			m.zValues[i] = 0
			continue
		}
		copy(keys[off:], data[row*sz:(row+1)*sz])
		m.keyOffs[i] += uint32(sz)
	}
}

func (m *IntHashMap) fillStrKeys(vec *vector.Vector, start, count int) {
	keys := unsafe.Slice((*byte)(unsafe.Pointer(&m.keys[0])), len(m.keys)*8)

	if vec.IsConstNull() {
		if m.hasNull {
			for i := 0; i < count; i++ {
				keys[i*8+int(m.keyOffs[i])] = 1
				m.keyOffs[i]++
			}
		} else {
			for i := 0; i < count; i++ {
				m.zValues[i] = 0
			}
		}
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
		off := i*8 + int(m.keyOffs[i])
		if m.hasNull {
			if nsp.Contains(uint64(row)) {
				keys[off] = 1
				m.keyOffs[i]++
				continue
			}
			keys[off] = 0
			off++
			m.keyOffs[i]++
		} else if nsp.Contains(uint64(row)) {
			m.zValues[i] = 0
			continue
		}
		bs := vs[row].GetByteSlice(area)
		copy(keys[off:], bs)
		keys[off+len(bs)] = byte(len(bs))
		m.keyOffs[i] += uint32(len(bs)) + 1
	}
}
