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

package vector

import (
	"bytes"
	"fmt"
	"unsafe"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/common/mpool"
	"github.com/colstream/colstream/pkg/container/nulls"
	"github.com/colstream/colstream/pkg/container/types"
)

const (
	// FLAT is an ordinary uncompressed vector
	FLAT = iota
	// CONSTANT repeats a single value, or a single null
	CONSTANT
)

// Vector represents a column. Values of fixed size types live in data,
// var length values keep a Varlena header in data that points into area.
type Vector struct {
	// vector's class
	class int
	// type of the column values
	typ types.Type
	nsp *nulls.Nulls

	// typed view over data, rebuilt whenever data moves
	col  any
	data []byte

	// area for holding large strings.
	area []byte

	capacity int
	length   int

	// set when data/area views a caller owned buffer
	cantFreeData bool
	cantFreeArea bool
}

func NewVec(typ types.Type) *Vector {
	return &Vector{
		typ:   typ,
		class: FLAT,
		nsp:   &nulls.Nulls{},
	}
}

func NewConstNull(typ types.Type, length int, _ *mpool.MPool) *Vector {
	vec := &Vector{
		typ:   typ,
		class: CONSTANT,
		nsp:   &nulls.Nulls{},
	}

	if length > 0 {
		SetConstNull(vec, length)
	}

	return vec
}

func NewConstFixed[T types.FixedSizeT](typ types.Type, val T, length int, mp *mpool.MPool) (*Vector, error) {
	vec := &Vector{
		typ:   typ,
		class: CONSTANT,
		nsp:   &nulls.Nulls{},
	}

	if length > 0 {
		if err := SetConstFixed(vec, val, length, mp); err != nil {
			return nil, err
		}
	}

	return vec, nil
}

func NewConstBytes(typ types.Type, val []byte, length int, mp *mpool.MPool) (*Vector, error) {
	vec := &Vector{
		typ:   typ,
		class: CONSTANT,
		nsp:   &nulls.Nulls{},
	}

	if length > 0 {
		if err := SetConstBytes(vec, val, length, mp); err != nil {
			return nil, err
		}
	}

	return vec, nil
}

// NewVecFromData builds a flat vector over copies of raw column data
// and varlen area, both owned by mp.
func NewVecFromData(typ types.Type, length int, data, area []byte, mp *mpool.MPool) (*Vector, error) {
	vec := NewVec(typ)
	if len(data) > 0 {
		d, err := mp.Alloc(len(data))
		if err != nil {
			return nil, err
		}
		copy(d, data)
		vec.data = d
		vec.setupColFromData()
	}
	if len(area) > 0 {
		a, err := mp.Alloc(len(area))
		if err != nil {
			vec.Free(mp)
			return nil, err
		}
		copy(a, area)
		vec.area = a
	}
	vec.length = length
	return vec, nil
}

func (v *Vector) Length() int {
	return v.length
}

func (v *Vector) SetLength(n int) {
	v.length = n
}

func (v *Vector) Capacity() int {
	return v.capacity
}

// Size of data, used in (approximate) memory accounting.
func (v *Vector) Size() int {
	return v.length*v.typ.TypeSize() + len(v.area)
}

func (v *Vector) GetType() *types.Type {
	return &v.typ
}

func (v *Vector) SetType(typ types.Type) {
	v.typ = typ
}

func (v *Vector) GetNulls() *nulls.Nulls {
	return v.nsp
}

func (v *Vector) SetNulls(nsp *nulls.Nulls) {
	v.nsp = nsp
}

func (v *Vector) HasNull() bool {
	return v.nsp.Any()
}

func (v *Vector) GetArea() []byte {
	return v.area
}

func (v *Vector) IsConst() bool {
	return v.class == CONSTANT
}

func (v *Vector) SetClass(class int) {
	v.class = class
}

// IsConstNull return true if the vector means a scalar Null.
func (v *Vector) IsConstNull() bool {
	return v.IsConst() && v.nsp != nil && nulls.Contains(v.nsp, 0)
}

func (v *Vector) UnsafeGetRawData() []byte {
	length := 1
	if !v.IsConst() {
		length = v.length
	}
	return v.data[:length*v.typ.TypeSize()]
}

func (v *Vector) GetBytesAt(i int) []byte {
	if v.IsConst() {
		i = 0
	}
	bs := v.col.([]types.Varlena)
	return bs[i].GetByteSlice(v.area)
}

func (v *Vector) GetStringAt(i int) string {
	if v.IsConst() {
		i = 0
	}
	bs := v.col.([]types.Varlena)
	return bs[i].GetString(v.area)
}

func GetFixedAtWithTypeCheck[T types.FixedSizeT](v *Vector, idx int) T {
	if v.IsConst() {
		idx = 0
	}
	return MustFixedColWithTypeCheck[T](v)[idx]
}

func MustFixedCol[T types.FixedSizeT](v *Vector) []T {
	if v.col == nil {
		return nil
	}
	if v.class == CONSTANT {
		return v.col.([]T)[:1]
	}
	return v.col.([]T)[:v.length]
}

// MustFixedColWithTypeCheck panics when the element size of T does not
// match the vector's type.
func MustFixedColWithTypeCheck[T types.FixedSizeT](v *Vector) []T {
	var zero T
	if int(unsafe.Sizeof(zero)) != v.typ.TypeSize() {
		panic(moerr.NewInternalErrorNoCtx("fixed col of %s read as %d byte element", v.typ.String(), int(unsafe.Sizeof(zero))))
	}
	return MustFixedCol[T](v)
}

func MustBytesCol(v *Vector) [][]byte {
	varcol := MustFixedCol[types.Varlena](v)
	if len(varcol) == 0 {
		return nil
	}
	ret := make([][]byte, len(varcol))
	for i := range varcol {
		ret[i] = varcol[i].GetByteSlice(v.area)
	}
	return ret
}

func MustStrCol(v *Vector) []string {
	varcol := MustFixedCol[types.Varlena](v)
	if len(varcol) == 0 {
		return nil
	}
	ret := make([]string, len(varcol))
	for i := range varcol {
		ret[i] = varcol[i].GetString(v.area)
	}
	return ret
}

// MustVarlenaRawData returns the headers and the area without
// materializing each value.
func MustVarlenaRawData(v *Vector) ([]types.Varlena, []byte) {
	return MustFixedCol[types.Varlena](v), v.area
}

func SetFixedAt[T types.FixedSizeT](v *Vector, idx int, t T) error {
	col := MustFixedCol[T](v)
	if idx < 0 {
		idx = len(col) + idx
	}
	if idx < 0 || idx >= len(col) {
		return moerr.NewInternalErrorNoCtx("vector idx out of range: %d of %d", idx, len(col))
	}
	col[idx] = t
	return nil
}

func SetBytesAt(v *Vector, idx int, bs []byte, mp *mpool.MPool) error {
	var va types.Varlena
	var err error
	va, v.area, err = types.BuildVarlena(bs, v.area, mp)
	if err != nil {
		return err
	}
	return SetFixedAt(v, idx, va)
}

func SetStringAt(v *Vector, idx int, bs string, mp *mpool.MPool) error {
	return SetBytesAt(v, idx, []byte(bs), mp)
}

func SetConstNull(vec *Vector, length int) {
	nulls.Add(vec.nsp, 0)
	vec.length = length
}

func SetConstFixed[T types.FixedSizeT](vec *Vector, val T, length int, mp *mpool.MPool) error {
	if vec.capacity == 0 {
		if err := extend(vec, 1, mp); err != nil {
			return err
		}
	}
	col := vec.col.([]T)
	col[0] = val
	vec.length = length
	return nil
}

func SetConstBytes(vec *Vector, val []byte, length int, mp *mpool.MPool) error {
	var err error
	var va types.Varlena

	if vec.capacity == 0 {
		if err := extend(vec, 1, mp); err != nil {
			return err
		}
	}

	col := vec.col.([]types.Varlena)
	va, vec.area, err = types.BuildVarlena(val, vec.area, mp)
	if err != nil {
		return err
	}
	col[0] = va
	vec.length = length
	return nil
}

// PreExtend grows the capacity of the vector ahead of appends.
func (v *Vector) PreExtend(rows int, mp *mpool.MPool) error {
	if v.class == CONSTANT {
		return nil
	}

	return extend(v, rows, mp)
}

// Dup copies an identical vector owned by mp.
func (v *Vector) Dup(mp *mpool.MPool) (*Vector, error) {
	if v.IsConstNull() {
		return NewConstNull(v.typ, v.length, mp), nil
	}

	var err error

	w := &Vector{
		class:  v.class,
		typ:    v.typ,
		nsp:    v.nsp.Clone(),
		length: v.length,
	}

	dataLen := v.length
	if v.IsConst() {
		dataLen = 1
	}
	if dataLen > 0 {
		if err = extend(w, dataLen, mp); err != nil {
			return nil, err
		}
		copy(w.data, v.data[:dataLen*v.typ.TypeSize()])
	}

	if len(v.area) > 0 {
		if w.area, err = mp.Alloc(len(v.area)); err != nil {
			w.Free(mp)
			return nil, err
		}
		copy(w.area, v.area)
	}
	return w, nil
}

// Shrink keeps only the rows named by sels, which must be sorted.
// With negate, sels are the rows being dropped instead.
func (v *Vector) Shrink(sels []int64, negate bool) {
	if v.class == FLAT {
		switch v.typ.Oid {
		case types.T_bool:
			shrinkFixed[bool](v, sels, negate)
		case types.T_int8:
			shrinkFixed[int8](v, sels, negate)
		case types.T_int16:
			shrinkFixed[int16](v, sels, negate)
		case types.T_int32:
			shrinkFixed[int32](v, sels, negate)
		case types.T_int64:
			shrinkFixed[int64](v, sels, negate)
		case types.T_uint8:
			shrinkFixed[uint8](v, sels, negate)
		case types.T_uint16:
			shrinkFixed[uint16](v, sels, negate)
		case types.T_uint32:
			shrinkFixed[uint32](v, sels, negate)
		case types.T_uint64:
			shrinkFixed[uint64](v, sels, negate)
		case types.T_float32:
			shrinkFixed[float32](v, sels, negate)
		case types.T_float64:
			shrinkFixed[float64](v, sels, negate)
		case types.T_char, types.T_varchar, types.T_json, types.T_blob, types.T_text,
			types.T_binary, types.T_varbinary:
			// shrinking the headers is enough, area stays as is
			shrinkFixed[types.Varlena](v, sels, negate)
		case types.T_date:
			shrinkFixed[types.Date](v, sels, negate)
		case types.T_datetime:
			shrinkFixed[types.Datetime](v, sels, negate)
		case types.T_time:
			shrinkFixed[types.Time](v, sels, negate)
		case types.T_timestamp:
			shrinkFixed[types.Timestamp](v, sels, negate)
		case types.T_decimal64:
			shrinkFixed[types.Decimal64](v, sels, negate)
		case types.T_decimal128:
			shrinkFixed[types.Decimal128](v, sels, negate)
		case types.T_uuid:
			shrinkFixed[types.Uuid](v, sels, negate)
		default:
			panic(fmt.Sprintf("unexpect type %s for function vector.Shrink", v.typ))
		}
	}
	if negate {
		v.length -= len(sels)
	} else {
		v.length = len(sels)
	}
}

// UnionOne appends row sel of w.
func (v *Vector) UnionOne(w *Vector, sel int64, mp *mpool.MPool) error {
	if w.class == CONSTANT {
		sel = 0
	}

	if w.nsp.Contains(uint64(sel)) {
		return appendOneFixed(v, 0, true, mp)
	}

	switch v.typ.Oid {
	case types.T_bool:
		return AppendFixed(v, MustFixedCol[bool](w)[sel], false, mp)
	case types.T_int8:
		return AppendFixed(v, MustFixedCol[int8](w)[sel], false, mp)
	case types.T_int16:
		return AppendFixed(v, MustFixedCol[int16](w)[sel], false, mp)
	case types.T_int32:
		return AppendFixed(v, MustFixedCol[int32](w)[sel], false, mp)
	case types.T_int64:
		return AppendFixed(v, MustFixedCol[int64](w)[sel], false, mp)
	case types.T_uint8:
		return AppendFixed(v, MustFixedCol[uint8](w)[sel], false, mp)
	case types.T_uint16:
		return AppendFixed(v, MustFixedCol[uint16](w)[sel], false, mp)
	case types.T_uint32:
		return AppendFixed(v, MustFixedCol[uint32](w)[sel], false, mp)
	case types.T_uint64:
		return AppendFixed(v, MustFixedCol[uint64](w)[sel], false, mp)
	case types.T_float32:
		return AppendFixed(v, MustFixedCol[float32](w)[sel], false, mp)
	case types.T_float64:
		return AppendFixed(v, MustFixedCol[float64](w)[sel], false, mp)
	case types.T_char, types.T_varchar, types.T_json, types.T_blob, types.T_text,
		types.T_binary, types.T_varbinary:
		ws := MustFixedCol[types.Varlena](w)
		return AppendBytes(v, ws[sel].GetByteSlice(w.area), false, mp)
	case types.T_date:
		return AppendFixed(v, MustFixedCol[types.Date](w)[sel], false, mp)
	case types.T_datetime:
		return AppendFixed(v, MustFixedCol[types.Datetime](w)[sel], false, mp)
	case types.T_time:
		return AppendFixed(v, MustFixedCol[types.Time](w)[sel], false, mp)
	case types.T_timestamp:
		return AppendFixed(v, MustFixedCol[types.Timestamp](w)[sel], false, mp)
	case types.T_decimal64:
		return AppendFixed(v, MustFixedCol[types.Decimal64](w)[sel], false, mp)
	case types.T_decimal128:
		return AppendFixed(v, MustFixedCol[types.Decimal128](w)[sel], false, mp)
	case types.T_uuid:
		return AppendFixed(v, MustFixedCol[types.Uuid](w)[sel], false, mp)
	default:
		panic(fmt.Sprintf("unexpect type %s for function vector.UnionOne", v.typ))
	}
}

// UnionBatch appends the rows of w in [offset, offset+cnt) whose flag
// is set. Nil flags means every row of the range.
func (v *Vector) UnionBatch(w *Vector, offset int64, cnt int, flags []uint8, mp *mpool.MPool) error {
	if err := v.PreExtend(cnt, mp); err != nil {
		return err
	}

	if flags == nil {
		for i := 0; i < cnt; i++ {
			if err := v.UnionOne(w, offset+int64(i), mp); err != nil {
				return err
			}
		}
		return nil
	}
	for i := range flags {
		if flags[i] > 0 {
			if err := v.UnionOne(w, offset+int64(i), mp); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *Vector) Free(mp *mpool.MPool) {
	if !v.cantFreeData {
		mp.Free(v.data)
	}
	if !v.cantFreeArea {
		mp.Free(v.area)
	}
	v.class = FLAT
	v.col = nil
	v.data = nil
	v.area = nil
	v.capacity = 0
	v.length = 0
	v.cantFreeData = false
	v.cantFreeArea = false
	v.nsp = &nulls.Nulls{}
}

// CleanOnlyData resets the vector for reuse without giving the
// allocation back.
func (v *Vector) CleanOnlyData() {
	if v.data != nil {
		v.length = 0
	}
	if v.area != nil {
		v.area = v.area[:0]
	}
	if v.nsp != nil && v.nsp.Np != nil {
		v.nsp.Np.Reset()
	}
}

func (v *Vector) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(uint8(v.class))
	{ // write type
		data := types.EncodeType(&v.typ)
		buf.Write(data)
	}
	{ // write length
		length := int64(v.length)
		buf.Write(types.EncodeInt64(&length))
	}
	{ // write dataLen, data
		dataLen := uint32(v.typ.TypeSize())
		if !v.IsConst() {
			dataLen *= uint32(v.length)
		} else if v.IsConstNull() {
			dataLen = 0
		}
		buf.Write(types.EncodeUint32(&dataLen))
		if dataLen > 0 {
			buf.Write(v.data[:dataLen])
		}
	}
	{ // write nspLen, nsp
		data, err := v.nsp.Show()
		if err != nil {
			return nil, err
		}
		length := uint32(len(data))
		buf.Write(types.EncodeUint32(&length))
		if len(data) > 0 {
			buf.Write(data)
		}
	}
	{ // write areaLen, area
		length := uint32(len(v.area))
		buf.Write(types.EncodeUint32(&length))
		if len(v.area) > 0 {
			buf.Write(v.area)
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary views data, the caller keeps the buffer alive.
func (v *Vector) UnmarshalBinary(data []byte) error {
	{ // read class
		v.class = int(data[0])
		data = data[1:]
	}
	{ // read typ
		v.typ = types.DecodeType(data[:types.TSize])
		data = data[types.TSize:]
	}
	{ // read length
		v.length = int(types.DecodeInt64(data[:8]))
		data = data[8:]
	}
	{ // read data
		dataLen := int(types.DecodeUint32(data))
		data = data[4:]
		if dataLen > 0 {
			v.data = data[:dataLen:dataLen]
			v.setupColFromData()
			data = data[dataLen:]
		}
	}
	{ // read nsp
		v.nsp = &nulls.Nulls{}
		size := types.DecodeUint32(data)
		data = data[4:]
		if size > 0 {
			if err := v.nsp.ReadNoCopy(data[:size]); err != nil {
				return err
			}
			data = data[size:]
		}
	}
	{ // read area
		areaLen := int(types.DecodeUint32(data))
		data = data[4:]
		if areaLen > 0 {
			v.area = data[:areaLen:areaLen]
		}
	}
	v.cantFreeData = true
	v.cantFreeArea = true
	return nil
}

// UnmarshalBinaryWithCopy keeps its own copy of data, owned by mp.
func (v *Vector) UnmarshalBinaryWithCopy(data []byte, mp *mpool.MPool) error {
	var err error

	{ // read class
		v.class = int(data[0])
		data = data[1:]
	}
	{ // read typ
		v.typ = types.DecodeType(data[:types.TSize])
		data = data[types.TSize:]
	}
	{ // read length
		v.length = int(types.DecodeInt64(data[:8]))
		data = data[8:]
	}
	{ // read data
		dataLen := int(types.DecodeUint32(data))
		data = data[4:]
		if dataLen > 0 {
			if v.data, err = mp.Alloc(dataLen); err != nil {
				return err
			}
			copy(v.data, data[:dataLen])
			v.setupColFromData()
			data = data[dataLen:]
		}
	}
	{ // read nsp
		v.nsp = &nulls.Nulls{}
		size := types.DecodeUint32(data)
		data = data[4:]
		if size > 0 {
			if err := v.nsp.Read(data[:size]); err != nil {
				return err
			}
			data = data[size:]
		}
	}
	{ // read area
		areaLen := int(types.DecodeUint32(data))
		data = data[4:]
		if areaLen > 0 {
			if v.area, err = mp.Alloc(areaLen); err != nil {
				return err
			}
			copy(v.area, data[:areaLen])
		}
	}
	return nil
}

// String function is used to visually display the vector,
// which is used to implement the Printf interface
func (v *Vector) String() string {
	if v.IsConstNull() {
		return "null"
	}
	switch v.typ.Oid {
	case types.T_bool:
		return vecToString[bool](v)
	case types.T_int8:
		return vecToString[int8](v)
	case types.T_int16:
		return vecToString[int16](v)
	case types.T_int32:
		return vecToString[int32](v)
	case types.T_int64:
		return vecToString[int64](v)
	case types.T_uint8:
		return vecToString[uint8](v)
	case types.T_uint16:
		return vecToString[uint16](v)
	case types.T_uint32:
		return vecToString[uint32](v)
	case types.T_uint64:
		return vecToString[uint64](v)
	case types.T_float32:
		return vecToString[float32](v)
	case types.T_float64:
		return vecToString[float64](v)
	case types.T_date:
		return vecToString[types.Date](v)
	case types.T_datetime:
		return vecToString[types.Datetime](v)
	case types.T_time:
		return vecToString[types.Time](v)
	case types.T_timestamp:
		return vecToString[types.Timestamp](v)
	case types.T_decimal64:
		return vecToString[types.Decimal64](v)
	case types.T_decimal128:
		return vecToString[types.Decimal128](v)
	case types.T_uuid:
		return vecToString[types.Uuid](v)
	case types.T_char, types.T_varchar, types.T_json, types.T_blob, types.T_text,
		types.T_binary, types.T_varbinary:
		col := MustStrCol(v)
		if len(col) == 1 {
			if nulls.Contains(v.nsp, 0) {
				return "null"
			} else {
				return col[0]
			}
		}
		return fmt.Sprintf("%v-%s", col, v.nsp)
	default:
		panic("vec to string unknown types.")
	}
}

func AppendFixed[T types.FixedSizeT](vec *Vector, val T, isNull bool, mp *mpool.MPool) error {
	if mp == nil {
		panic(moerr.NewInternalErrorNoCtx("vector append does not have a mpool"))
	}
	return appendOneFixed(vec, val, isNull, mp)
}

func AppendBytes(vec *Vector, val []byte, isNull bool, mp *mpool.MPool) error {
	if mp == nil {
		panic(moerr.NewInternalErrorNoCtx("vector append does not have a mpool"))
	}
	return appendOneBytes(vec, val, isNull, mp)
}

func AppendFixedList[T types.FixedSizeT](vec *Vector, ws []T, isNulls []bool, mp *mpool.MPool) error {
	if mp == nil {
		panic(moerr.NewInternalErrorNoCtx("vector append does not have a mpool"))
	}
	if len(ws) == 0 {
		return nil
	}
	return appendList(vec, ws, isNulls, mp)
}

func AppendBytesList(vec *Vector, ws [][]byte, isNulls []bool, mp *mpool.MPool) error {
	if mp == nil {
		panic(moerr.NewInternalErrorNoCtx("vector append does not have a mpool"))
	}
	if len(ws) == 0 {
		return nil
	}
	return appendBytesList(vec, ws, isNulls, mp)
}

func AppendStringList(vec *Vector, ws []string, isNulls []bool, mp *mpool.MPool) error {
	if mp == nil {
		panic(moerr.NewInternalErrorNoCtx("vector append does not have a mpool"))
	}
	if len(ws) == 0 {
		return nil
	}
	return appendStringList(vec, ws, isNulls, mp)
}

func appendOneFixed[T any](vec *Vector, val T, isNull bool, mp *mpool.MPool) error {
	if err := extend(vec, 1, mp); err != nil {
		return err
	}
	length := vec.length
	vec.length++
	if isNull {
		nulls.Add(vec.nsp, uint64(length))
	} else {
		col := vec.col.([]T)
		col[length] = val
	}
	return nil
}

func appendOneBytes(vec *Vector, val []byte, isNull bool, mp *mpool.MPool) error {
	var err error
	var va types.Varlena

	if isNull {
		return appendOneFixed(vec, va, true, mp)
	}
	va, vec.area, err = types.BuildVarlena(val, vec.area, mp)
	if err != nil {
		return err
	}
	return appendOneFixed(vec, va, false, mp)
}

func appendList[T types.FixedSizeT](vec *Vector, vals []T, isNulls []bool, mp *mpool.MPool) error {
	if err := extend(vec, len(vals), mp); err != nil {
		return err
	}
	length := vec.length
	vec.length += len(vals)
	col := MustFixedCol[T](vec)
	for i, w := range vals {
		if len(isNulls) > 0 && isNulls[i] {
			nulls.Add(vec.nsp, uint64(length+i))
		} else {
			col[length+i] = w
		}
	}
	return nil
}

func appendBytesList(vec *Vector, vals [][]byte, isNulls []bool, mp *mpool.MPool) error {
	var err error
	var va types.Varlena

	if err = extend(vec, len(vals), mp); err != nil {
		return err
	}
	length := vec.length
	vec.length += len(vals)
	col := MustFixedCol[types.Varlena](vec)
	for i, w := range vals {
		if len(isNulls) > 0 && isNulls[i] {
			nulls.Add(vec.nsp, uint64(length+i))
		} else {
			va, vec.area, err = types.BuildVarlena(w, vec.area, mp)
			if err != nil {
				return err
			}
			col[length+i] = va
		}
	}
	return nil
}

func appendStringList(vec *Vector, vals []string, isNulls []bool, mp *mpool.MPool) error {
	var err error
	var va types.Varlena

	if err = extend(vec, len(vals), mp); err != nil {
		return err
	}
	length := vec.length
	vec.length += len(vals)
	col := MustFixedCol[types.Varlena](vec)
	for i, w := range vals {
		if len(isNulls) > 0 && isNulls[i] {
			nulls.Add(vec.nsp, uint64(length+i))
		} else {
			va, vec.area, err = types.BuildVarlena([]byte(w), vec.area, mp)
			if err != nil {
				return err
			}
			col[length+i] = va
		}
	}
	return nil
}

func extend(v *Vector, rows int, mp *mpool.MPool) error {
	if tgtCap := v.length + rows; tgtCap > v.capacity {
		sz := v.typ.TypeSize()
		old := v.data
		if v.cantFreeData {
			// the pool must not reclaim a viewed buffer
			old = nil
		}
		ndata, err := mp.Grow(old, tgtCap*sz)
		if err != nil {
			return err
		}
		if v.cantFreeData {
			copy(ndata, v.data)
			v.cantFreeData = false
		}
		v.data = ndata[:cap(ndata)]
		v.setupColFromData()
	}
	return nil
}

func (v *Vector) setupColFromData() {
	if v.typ.IsVarlen() {
		v.col = decodeFixedCol[types.Varlena](v)
	} else {
		// The following switch attaches the correctly typed slice
		// header to v.col.
		switch v.typ.Oid {
		case types.T_bool:
			v.col = decodeFixedCol[bool](v)
		case types.T_int8:
			v.col = decodeFixedCol[int8](v)
		case types.T_int16:
			v.col = decodeFixedCol[int16](v)
		case types.T_int32:
			v.col = decodeFixedCol[int32](v)
		case types.T_int64:
			v.col = decodeFixedCol[int64](v)
		case types.T_uint8:
			v.col = decodeFixedCol[uint8](v)
		case types.T_uint16:
			v.col = decodeFixedCol[uint16](v)
		case types.T_uint32:
			v.col = decodeFixedCol[uint32](v)
		case types.T_uint64:
			v.col = decodeFixedCol[uint64](v)
		case types.T_float32:
			v.col = decodeFixedCol[float32](v)
		case types.T_float64:
			v.col = decodeFixedCol[float64](v)
		case types.T_date:
			v.col = decodeFixedCol[types.Date](v)
		case types.T_datetime:
			v.col = decodeFixedCol[types.Datetime](v)
		case types.T_time:
			v.col = decodeFixedCol[types.Time](v)
		case types.T_timestamp:
			v.col = decodeFixedCol[types.Timestamp](v)
		case types.T_decimal64:
			v.col = decodeFixedCol[types.Decimal64](v)
		case types.T_decimal128:
			v.col = decodeFixedCol[types.Decimal128](v)
		case types.T_uuid:
			v.col = decodeFixedCol[types.Uuid](v)
		default:
			panic(fmt.Sprintf("unknown type %s", v.typ.Oid))
		}
	}
	tlen := v.typ.TypeSize()
	v.capacity = cap(v.data) / tlen
}

func decodeFixedCol[T types.FixedSizeT](v *Vector) []T {
	sz := v.typ.TypeSize()
	if cap(v.data) >= sz {
		return unsafe.Slice((*T)(unsafe.Pointer(&v.data[0])), cap(v.data)/sz)
	}
	return nil
}

func shrinkFixed[T types.FixedSizeT](v *Vector, sels []int64, negate bool) {
	vs := MustFixedCol[T](v)
	if !negate {
		for i, sel := range sels {
			vs[i] = vs[sel]
		}
	} else if len(sels) > 0 {
		for oldIdx, newIdx, selIdx, sel := int64(0), 0, 0, sels[0]; oldIdx < int64(v.length); oldIdx++ {
			if oldIdx != sel {
				vs[newIdx] = vs[oldIdx]
				newIdx++
			} else {
				selIdx++
				if selIdx == len(sels) {
					for idx := oldIdx + 1; idx < int64(v.length); idx++ {
						vs[newIdx] = vs[idx]
						newIdx++
					}
					break
				}
				sel = sels[selIdx]
			}
		}
	}
	v.nsp = nulls.Filter(v.nsp, sels, negate)
}

func vecToString[T types.FixedSizeT](v *Vector) string {
	col := MustFixedCol[T](v)
	if len(col) == 1 {
		if nulls.Contains(v.nsp, 0) {
			return "null"
		} else {
			return fmt.Sprintf("%v", col[0])
		}
	}
	return fmt.Sprintf("%v-%s", col, v.nsp)
}
