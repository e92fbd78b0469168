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

package kvstore

import (
	"bytes"
	"context"

	"github.com/RoaringBitmap/roaring"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/common/mpool"
	"github.com/colstream/colstream/pkg/container/batch"
	"github.com/colstream/colstream/pkg/container/nulls"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
)

// Block payload layout: u32 row count, u32 vector count, then per
// vector the type, u32 length, u32 null length plus a roaring bitmap
// of null rows, u32 data length plus the raw column bytes, u32 area
// length plus the varlen area.

func encodeBlock(bat *batch.Batch) ([]byte, error) {
	var buf bytes.Buffer

	rows := uint32(bat.RowCount())
	buf.Write(types.EncodeUint32(&rows))
	cnt := uint32(len(bat.Vecs))
	buf.Write(types.EncodeUint32(&cnt))
	for _, vec := range bat.Vecs {
		typ := *vec.GetType()
		buf.Write(types.EncodeType(&typ))
		length := uint32(vec.Length())
		buf.Write(types.EncodeUint32(&length))
		{ // write nullLen, nulls
			var data []byte
			if vec.GetNulls().Any() {
				rb := roaring.New()
				for _, row := range vec.GetNulls().ToArray() {
					rb.Add(uint32(row))
				}
				var err error
				if data, err = rb.ToBytes(); err != nil {
					return nil, err
				}
			}
			nullLen := uint32(len(data))
			buf.Write(types.EncodeUint32(&nullLen))
			if len(data) > 0 {
				buf.Write(data)
			}
		}
		{ // write dataLen, data
			data := vec.UnsafeGetRawData()
			dataLen := uint32(len(data))
			buf.Write(types.EncodeUint32(&dataLen))
			if len(data) > 0 {
				buf.Write(data)
			}
		}
		{ // write areaLen, area
			area := vec.GetArea()
			areaLen := uint32(len(area))
			buf.Write(types.EncodeUint32(&areaLen))
			if len(area) > 0 {
				buf.Write(area)
			}
		}
	}
	return buf.Bytes(), nil
}

// decodeBlock rebuilds a batch from a block payload, copying column
// data into memory owned by mp. The payload itself is not retained.
func decodeBlock(ctx context.Context, data []byte, attrs []string, mp *mpool.MPool) (*batch.Batch, error) {
	rows := types.DecodeUint32(data)
	data = data[4:]
	cnt := int(types.DecodeUint32(data))
	data = data[4:]
	if cnt != len(attrs) {
		return nil, moerr.NewInternalError(ctx, "block has %d columns, want %d", cnt, len(attrs))
	}

	bat := batch.New(false, attrs)
	for i := 0; i < cnt; i++ {
		typ := types.DecodeType(data[:types.TSize])
		data = data[types.TSize:]
		length := int(types.DecodeUint32(data))
		data = data[4:]
		var nsp []byte
		{ // read nulls
			nullLen := int(types.DecodeUint32(data))
			data = data[4:]
			if nullLen > 0 {
				nsp = data[:nullLen]
				data = data[nullLen:]
			}
		}
		var col []byte
		{ // read data
			dataLen := int(types.DecodeUint32(data))
			data = data[4:]
			if dataLen > 0 {
				col = data[:dataLen]
				data = data[dataLen:]
			}
		}
		var area []byte
		{ // read area
			areaLen := int(types.DecodeUint32(data))
			data = data[4:]
			if areaLen > 0 {
				area = data[:areaLen]
				data = data[areaLen:]
			}
		}

		vec, err := vector.NewVecFromData(typ, length, col, area, mp)
		if err != nil {
			bat.Clean(mp)
			return nil, err
		}
		bat.Vecs[i] = vec
		if len(nsp) > 0 {
			rb := roaring.New()
			if err := rb.UnmarshalBinary(nsp); err != nil {
				bat.Clean(mp)
				return nil, err
			}
			for _, row := range rb.ToArray() {
				nulls.Add(vec.GetNulls(), uint64(row))
			}
		}
	}
	bat.SetRowCount(int(rows))
	return bat, nil
}

// Table meta layout: u32 name length plus the name, a length prefixed
// string slice of column names, u32 type count plus the packed types,
// u64 block count.

func encodeTableMeta(def TableDef, blocks uint64) []byte {
	var buf bytes.Buffer

	nameLen := uint32(len(def.Name))
	buf.Write(types.EncodeUint32(&nameLen))
	buf.WriteString(def.Name)
	{ // write attrs
		data := types.EncodeStringSlice(def.Attrs)
		byteLen := uint32(len(data))
		buf.Write(types.EncodeUint32(&byteLen))
		buf.Write(data)
	}
	{ // write types
		cnt := uint32(len(def.Types))
		buf.Write(types.EncodeUint32(&cnt))
		buf.Write(types.EncodeSlice(def.Types))
	}
	buf.Write(types.EncodeUint64(&blocks))
	return buf.Bytes()
}

// decodeTableMeta keeps references into data, the caller passes a
// private copy.
func decodeTableMeta(data []byte) (TableDef, uint64) {
	var def TableDef

	nameLen := int(types.DecodeUint32(data))
	data = data[4:]
	def.Name = string(data[:nameLen])
	data = data[nameLen:]
	{ // read attrs
		byteLen := int(types.DecodeUint32(data))
		data = data[4:]
		def.Attrs = types.DecodeStringSlice(data[:byteLen])
		data = data[byteLen:]
	}
	{ // read types
		cnt := int(types.DecodeUint32(data))
		data = data[4:]
		typs := types.DecodeSlice[types.Type](data[:cnt*types.TSize])
		def.Types = append([]types.Type{}, typs...)
		data = data[cnt*types.TSize:]
	}
	blocks := types.DecodeUint64(data)
	return def, blocks
}
