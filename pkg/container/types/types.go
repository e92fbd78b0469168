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

package types

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/common/mpool"
)

// T is the type id of a column.
type T uint8

const (
	// T_any means the type is not yet known, it never reaches storage.
	T_any T = 0

	T_bool T = 10

	// numerics
	T_int8    T = 20
	T_int16   T = 21
	T_int32   T = 22
	T_int64   T = 23
	T_uint8   T = 25
	T_uint16  T = 26
	T_uint32  T = 27
	T_uint64  T = 28
	T_float32 T = 30
	T_float64 T = 31

	// temporal
	T_date      T = 32
	T_datetime  T = 33
	T_timestamp T = 34
	T_time      T = 36

	T_decimal64  T = 40
	T_decimal128 T = 41

	T_uuid T = 43

	// variable length
	T_char      T = 60
	T_varchar   T = 61
	T_json      T = 62
	T_blob      T = 63
	T_text      T = 64
	T_binary    T = 65
	T_varbinary T = 66
)

// Type describes a column type, 16 bytes.
type Type struct {
	Oid     T
	Charset uint8
	notNull uint8
	dummy2  uint8

	Size  int32
	Width int32
	Scale int32
}

// FixedSizeTExceptStrType is the constraint of the fixed size column
// element types.
type FixedSizeTExceptStrType interface {
	bool | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 |
		float32 | float64 | Date | Datetime | Time | Timestamp |
		Decimal64 | Decimal128 | Uuid
}

// FixedSizeT adds Varlena, the fixed size header of the var length
// types.
type FixedSizeT interface {
	FixedSizeTExceptStrType | Varlena
}

const (
	MaxStringSize = 10 * 1024 * 1024
)

func New(oid T, width, scale int32) Type {
	var typ Type
	typ.Oid = oid
	typ.Size = int32(oid.TypeLen())
	typ.Width = width
	typ.Scale = scale
	typ.Charset = CharsetType(oid)
	return typ
}

func CharsetType(oid T) uint8 {
	switch oid {
	case T_blob, T_binary, T_varbinary:
		// binary charset
		return 1
	default:
		// utf8 charset
		return 0
	}
}

func (t T) ToType() Type {
	var typ Type
	typ.Oid = t
	typ.Size = int32(t.TypeLen())
	return typ
}

func (t Type) TypeSize() int {
	return int(t.Size)
}

func (t Type) IsVarlen() bool {
	return t.Oid.IsVarlen()
}

func (t Type) IsFixedLen() bool {
	return !t.Oid.IsVarlen()
}

func (t Type) Eq(b Type) bool {
	return t.Oid == b.Oid && t.Size == b.Size && t.Width == b.Width && t.Scale == b.Scale
}

// ProtoSize is the wire size of a marshaled Type.
func (t *Type) ProtoSize() int {
	return 16
}

func (t *Type) MarshalTo(data []byte) (int, error) {
	if len(data) < t.ProtoSize() {
		return 0, moerr.NewInternalErrorNoCtx("marshal type: buffer too small")
	}
	data[0] = uint8(t.Oid)
	data[1] = t.Charset
	data[2] = t.notNull
	data[3] = t.dummy2
	binary.LittleEndian.PutUint32(data[4:8], uint32(t.Size))
	binary.LittleEndian.PutUint32(data[8:12], uint32(t.Width))
	binary.LittleEndian.PutUint32(data[12:16], uint32(t.Scale))
	return t.ProtoSize(), nil
}

func (t *Type) Marshal() ([]byte, error) {
	data := make([]byte, t.ProtoSize())
	if _, err := t.MarshalTo(data); err != nil {
		return nil, err
	}
	return data, nil
}

func (t *Type) Unmarshal(data []byte) error {
	if len(data) < t.ProtoSize() {
		return moerr.NewInternalErrorNoCtx("unmarshal type: %d bytes, want %d", len(data), t.ProtoSize())
	}
	t.Oid = T(data[0])
	t.Charset = data[1]
	t.notNull = data[2]
	t.dummy2 = data[3]
	t.Size = int32(binary.LittleEndian.Uint32(data[4:8]))
	t.Width = int32(binary.LittleEndian.Uint32(data[8:12]))
	t.Scale = int32(binary.LittleEndian.Uint32(data[12:16]))
	return nil
}

func (t Type) String() string {
	return t.Oid.String()
}

// DescString returns the name shown to users, with width and scale
// where they matter.
func (t Type) DescString() string {
	switch t.Oid {
	case T_char:
		return fmt.Sprintf("CHAR(%d)", t.Width)
	case T_varchar:
		return fmt.Sprintf("VARCHAR(%d)", t.Width)
	case T_binary:
		return fmt.Sprintf("BINARY(%d)", t.Width)
	case T_varbinary:
		return fmt.Sprintf("VARBINARY(%d)", t.Width)
	case T_decimal64:
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Width, t.Scale)
	case T_decimal128:
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Width, t.Scale)
	}
	return t.Oid.String()
}

func (t T) IsVarlen() bool {
	switch t {
	case T_char, T_varchar, T_json, T_blob, T_text, T_binary, T_varbinary:
		return true
	}
	return false
}

// TypeLen returns the byte width of one element, the Varlena header
// width for the var length types.
func (t T) TypeLen() int {
	switch t {
	case T_any:
		return 0
	case T_bool, T_int8, T_uint8:
		return 1
	case T_int16, T_uint16:
		return 2
	case T_int32, T_uint32, T_float32, T_date:
		return 4
	case T_int64, T_uint64, T_float64, T_datetime, T_time, T_timestamp, T_decimal64:
		return 8
	case T_decimal128, T_uuid:
		return 16
	case T_char, T_varchar, T_json, T_blob, T_text, T_binary, T_varbinary:
		return VarlenaSize
	}
	panic(moerr.NewInternalErrorNoCtx("unknown type %d", t))
}

func (t T) String() string {
	switch t {
	case T_any:
		return "ANY"
	case T_bool:
		return "BOOL"
	case T_int8:
		return "TINYINT"
	case T_int16:
		return "SMALLINT"
	case T_int32:
		return "INT"
	case T_int64:
		return "BIGINT"
	case T_uint8:
		return "TINYINT UNSIGNED"
	case T_uint16:
		return "SMALLINT UNSIGNED"
	case T_uint32:
		return "INT UNSIGNED"
	case T_uint64:
		return "BIGINT UNSIGNED"
	case T_float32:
		return "FLOAT"
	case T_float64:
		return "DOUBLE"
	case T_date:
		return "DATE"
	case T_datetime:
		return "DATETIME"
	case T_timestamp:
		return "TIMESTAMP"
	case T_time:
		return "TIME"
	case T_decimal64:
		return "DECIMAL64"
	case T_decimal128:
		return "DECIMAL128"
	case T_uuid:
		return "UUID"
	case T_char:
		return "CHAR"
	case T_varchar:
		return "VARCHAR"
	case T_json:
		return "JSON"
	case T_blob:
		return "BLOB"
	case T_text:
		return "TEXT"
	case T_binary:
		return "BINARY"
	case T_varbinary:
		return "VARBINARY"
	}
	return fmt.Sprintf("unexpected type: %d", t)
}

func (t T) OidString() string {
	switch t {
	case T_any:
		return "T_any"
	case T_bool:
		return "T_bool"
	case T_int8:
		return "T_int8"
	case T_int16:
		return "T_int16"
	case T_int32:
		return "T_int32"
	case T_int64:
		return "T_int64"
	case T_uint8:
		return "T_uint8"
	case T_uint16:
		return "T_uint16"
	case T_uint32:
		return "T_uint32"
	case T_uint64:
		return "T_uint64"
	case T_float32:
		return "T_float32"
	case T_float64:
		return "T_float64"
	case T_date:
		return "T_date"
	case T_datetime:
		return "T_datetime"
	case T_timestamp:
		return "T_timestamp"
	case T_time:
		return "T_time"
	case T_decimal64:
		return "T_decimal64"
	case T_decimal128:
		return "T_decimal128"
	case T_uuid:
		return "T_uuid"
	case T_char:
		return "T_char"
	case T_varchar:
		return "T_varchar"
	case T_json:
		return "T_json"
	case T_blob:
		return "T_blob"
	case T_text:
		return "T_text"
	case T_binary:
		return "T_binary"
	case T_varbinary:
		return "T_varbinary"
	}
	return "unknown_type"
}

// Varlena is the 24 byte header of the var length types.  Values up to
// 23 bytes are stored inline, the first byte holds the length.  Longer
// values live in the vector area, the header then holds the marker
// 0xffffffff followed by offset and length as uint32.
type Varlena [VarlenaSize]byte

const (
	VarlenaInlineSize = 23
	VarlenaSize       = 24
	VarlenaBigHdr     = 0xffffffff
)

func (v *Varlena) UnsafePtr() unsafe.Pointer {
	return unsafe.Pointer(&v[0])
}

// ByteSlice views the inline value.  Do not call on a big one.
func (v *Varlena) ByteSlice() []byte {
	svlen := (*v)[0]
	ptr := unsafe.Add(v.UnsafePtr(), 1)
	return unsafe.Slice((*byte)(ptr), svlen)
}

func (v *Varlena) U32Slice() []uint32 {
	return unsafe.Slice((*uint32)(v.UnsafePtr()), VarlenaSize/4)
}

func (v *Varlena) OffsetLen() (uint32, uint32) {
	us := v.U32Slice()
	return us[1], us[2]
}

func (v *Varlena) SetOffsetLen(voff, vlen uint32) {
	us := v.U32Slice()
	us[0] = VarlenaBigHdr
	us[1] = voff
	us[2] = vlen
}

func (v *Varlena) IsSmall() bool {
	return (*v)[0] <= VarlenaInlineSize
}

func (v *Varlena) GetString(area []byte) string {
	if v.IsSmall() {
		return string(v.ByteSlice())
	}
	voff, vlen := v.OffsetLen()
	return string(area[voff : voff+vlen])
}

func (v *Varlena) GetByteSlice(area []byte) []byte {
	if v.IsSmall() {
		return v.ByteSlice()
	}
	voff, vlen := v.OffsetLen()
	return area[voff : voff+vlen]
}

func (v *Varlena) Reset() {
	var e Varlena
	*v = e
}

// BuildVarlena stores bs and returns the header plus the possibly
// grown area.
func BuildVarlena(bs []byte, area []byte, m *mpool.MPool) (Varlena, []byte, error) {
	var v Varlena
	vlen := len(bs)
	if vlen <= VarlenaInlineSize {
		v[0] = byte(vlen)
		copy(v[1:1+vlen], bs)
		return v, area, nil
	}
	voff := len(area)
	if voff+vlen <= cap(area) || m == nil {
		area = append(area, bs...)
	} else {
		var err error
		area, err = m.Grow2(area, bs, voff+vlen)
		if err != nil {
			return v, nil, err
		}
	}
	v.SetOffsetLen(uint32(voff), uint32(vlen))
	return v, area, nil
}
