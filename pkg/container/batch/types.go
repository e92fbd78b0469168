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

package batch

import (
	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/common/mpool"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
)

// EmptyBatch is the zero row batch that still means "there is more to
// come", as opposed to a nil batch which ends the stream.
var EmptyBatch = &Batch{}

// Batch represents a block of a relation, a set of equal length
// column vectors plus their attribute names.
type Batch struct {
	// Ro if true, Attrs is read only
	Ro bool
	// reference count, default is 1
	Cnt int64
	// Attrs column name list
	Attrs []string
	// Vecs col data
	Vecs []*vector.Vector

	rowCount int
}

// EncodeBatch is the wire form of a Batch.
type EncodeBatch struct {
	rowCount int64
	Vecs     []*vector.Vector
	Attrs    []string
}

func (m *EncodeBatch) MarshalBinary() ([]byte, error) {
	// ------------------------------------------------------------------
	// | rowCount | vecCnt | (size, vec)... | attrCnt | (size, attr)... |
	// ------------------------------------------------------------------
	var buf []byte

	rc := m.rowCount
	buf = append(buf, types.EncodeInt64(&rc)...)

	l := int32(len(m.Vecs))
	buf = append(buf, types.EncodeInt32(&l)...)
	for i := 0; i < int(l); i++ {
		data, err := m.Vecs[i].MarshalBinary()
		if err != nil {
			return nil, err
		}
		size := int32(len(data))
		buf = append(buf, types.EncodeInt32(&size)...)
		buf = append(buf, data...)
	}

	l = int32(len(m.Attrs))
	buf = append(buf, types.EncodeInt32(&l)...)
	for i := 0; i < int(l); i++ {
		size := int32(len(m.Attrs[i]))
		buf = append(buf, types.EncodeInt32(&size)...)
		buf = append(buf, m.Attrs[i]...)
	}

	return buf, nil
}

// UnmarshalBinary views data, the caller keeps the buffer alive.
func (m *EncodeBatch) UnmarshalBinary(data []byte) error {
	return m.unmarshalBinaryWithAnyMp(data, nil)
}

// UnmarshalBinaryWithCopy keeps its own copy of data, owned by mp.
func (m *EncodeBatch) UnmarshalBinaryWithCopy(data []byte, mp *mpool.MPool) error {
	return m.unmarshalBinaryWithAnyMp(data, mp)
}

func (m *EncodeBatch) unmarshalBinaryWithAnyMp(data []byte, mp *mpool.MPool) error {
	buf := data
	if len(buf) < 12 {
		return moerr.NewInternalErrorNoCtx("unmarshal batch: %d bytes", len(buf))
	}

	m.rowCount = types.DecodeInt64(buf[:8])
	buf = buf[8:]

	l := types.DecodeInt32(buf[:4])
	buf = buf[4:]
	if l > 0 {
		m.Vecs = make([]*vector.Vector, l)
		for i := 0; i < int(l); i++ {
			size := types.DecodeInt32(buf[:4])
			buf = buf[4:]
			vec := new(vector.Vector)
			if mp == nil {
				if err := vec.UnmarshalBinary(buf[:size]); err != nil {
					return err
				}
			} else {
				if err := vec.UnmarshalBinaryWithCopy(buf[:size], mp); err != nil {
					vec.Free(mp)
					return err
				}
			}
			buf = buf[size:]
			m.Vecs[i] = vec
		}
	}

	l = types.DecodeInt32(buf[:4])
	buf = buf[4:]
	if l > 0 {
		m.Attrs = make([]string, l)
		for i := 0; i < int(l); i++ {
			size := types.DecodeInt32(buf[:4])
			buf = buf[4:]
			m.Attrs[i] = string(buf[:size])
			buf = buf[size:]
		}
	}
	return nil
}
