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
	"bytes"
	"context"
	"fmt"
	"sync/atomic"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/common/mpool"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
	"github.com/colstream/colstream/pkg/logutil"
)

func New(ro bool, attrs []string) *Batch {
	return &Batch{
		Ro:       ro,
		Cnt:      1,
		Attrs:    attrs,
		Vecs:     make([]*vector.Vector, len(attrs)),
		rowCount: 0,
	}
}

func NewWithSize(n int) *Batch {
	return &Batch{
		Cnt:      1,
		Vecs:     make([]*vector.Vector, n),
		rowCount: 0,
	}
}

func SetLength(bat *Batch, n int) {
	for _, vec := range bat.Vecs {
		vec.SetLength(n)
	}
	bat.rowCount = n
}

func (bat *Batch) MarshalBinary() ([]byte, error) {
	eb := EncodeBatch{
		rowCount: int64(bat.rowCount),
		Vecs:     bat.Vecs,
		Attrs:    bat.Attrs,
	}
	return eb.MarshalBinary()
}

func (bat *Batch) UnmarshalBinary(data []byte) error {
	return bat.unmarshalBinaryWithAnyMp(data, nil)
}

func (bat *Batch) UnmarshalBinaryWithCopy(data []byte, mp *mpool.MPool) error {
	return bat.unmarshalBinaryWithAnyMp(data, mp)
}

func (bat *Batch) unmarshalBinaryWithAnyMp(data []byte, mp *mpool.MPool) error {
	rbat := new(EncodeBatch)
	if err := rbat.unmarshalBinaryWithAnyMp(data, mp); err != nil {
		return err
	}

	bat.Cnt = 1
	bat.rowCount = int(rbat.rowCount)
	bat.Vecs = rbat.Vecs
	bat.Attrs = append(bat.Attrs, rbat.Attrs...)
	return nil
}

func (bat *Batch) Shrink(sels []int64, negate bool) {
	if !negate {
		if len(sels) == bat.rowCount {
			return
		}
	}
	for _, vec := range bat.Vecs {
		vec.Shrink(sels, negate)
	}
	if negate {
		bat.rowCount -= len(sels)
		return
	}
	bat.rowCount = len(sels)
}

func (bat *Batch) Size() int {
	var size int

	for _, vec := range bat.Vecs {
		size += vec.Size()
	}
	return size
}

func (bat *Batch) RowCount() int {
	return bat.rowCount
}

func (bat *Batch) VectorCount() int {
	return len(bat.Vecs)
}

func (bat *Batch) SetAttributes(attrs []string) {
	bat.Attrs = attrs
}

func (bat *Batch) SetVector(pos int32, vec *vector.Vector) {
	bat.Vecs[pos] = vec
}

func (bat *Batch) GetVector(pos int32) *vector.Vector {
	return bat.Vecs[pos]
}

// GetSubBatch projects the named columns, sharing the vectors with
// the receiver.
func (bat *Batch) GetSubBatch(cols []string) *Batch {
	mp := make(map[string]int)
	for i, attr := range bat.Attrs {
		mp[attr] = i
	}
	rbat := NewWithSize(len(cols))
	for i, col := range cols {
		rbat.Vecs[i] = bat.Vecs[mp[col]]
	}
	rbat.rowCount = bat.rowCount
	return rbat
}

func (bat *Batch) Clean(m *mpool.MPool) {
	if bat == EmptyBatch {
		return
	}
	if atomic.LoadInt64(&bat.Cnt) == 0 {
		return
	}
	if atomic.AddInt64(&bat.Cnt, -1) > 0 {
		return
	}
	for _, vec := range bat.Vecs {
		if vec != nil {
			vec.Free(m)
		}
	}
	bat.Attrs = nil
	bat.rowCount = 0
	bat.Vecs = nil
}

func (bat *Batch) CleanOnlyData() {
	for _, vec := range bat.Vecs {
		if vec != nil {
			vec.CleanOnlyData()
		}
	}
	bat.rowCount = 0
}

func (bat *Batch) String() string {
	var buf bytes.Buffer

	for i, vec := range bat.Vecs {
		buf.WriteString(fmt.Sprintf("%d : %s\n", i, vec.String()))
	}
	return buf.String()
}

func (bat *Batch) Log(tag string) {
	if bat == nil || bat.rowCount < 1 {
		return
	}
	logutil.Infof("\n" + tag + "\n" + bat.String())
}

func (bat *Batch) Dup(mp *mpool.MPool) (*Batch, error) {
	rbat := NewWithSize(len(bat.Vecs))
	rbat.SetAttributes(bat.Attrs)
	for j, vec := range bat.Vecs {
		rvec, err := vec.Dup(mp)
		if err != nil {
			rbat.Clean(mp)
			return nil, err
		}
		rbat.SetVector(int32(j), rvec)
	}
	rbat.rowCount = bat.rowCount
	return rbat, nil
}

func (bat *Batch) PreExtend(m *mpool.MPool, rows int) error {
	for i := range bat.Vecs {
		if err := bat.Vecs[i].PreExtend(rows, m); err != nil {
			return err
		}
	}
	return nil
}

// AppendWithCopy works like Append but duplicates b when the receiver
// is nil instead of sharing it.
func (bat *Batch) AppendWithCopy(ctx context.Context, mh *mpool.MPool, b *Batch) (*Batch, error) {
	if bat == nil {
		return b.Dup(mh)
	}
	return bat.Append(ctx, mh, b)
}

func (bat *Batch) Append(ctx context.Context, mh *mpool.MPool, b *Batch) (*Batch, error) {
	if bat == nil {
		return b, nil
	}
	if len(bat.Vecs) != len(b.Vecs) {
		return nil, moerr.NewInternalError(ctx, "unexpected error happens in batch append")
	}
	if len(bat.Vecs) == 0 {
		return bat, nil
	}

	for i := range bat.Vecs {
		if err := bat.Vecs[i].UnionBatch(b.Vecs[i], 0, b.Vecs[i].Length(), nil, mh); err != nil {
			return bat, err
		}
	}
	bat.rowCount += b.rowCount
	return bat, nil
}

func (bat *Batch) AddRowCount(rowCount int) {
	bat.rowCount += rowCount
}

func (bat *Batch) SetRowCount(rowCount int) {
	bat.rowCount = rowCount
}

func (bat *Batch) AddCnt(cnt int) {
	atomic.AddInt64(&bat.Cnt, int64(cnt))
}

func (bat *Batch) SetCnt(cnt int64) {
	atomic.StoreInt64(&bat.Cnt, cnt)
}

func (bat *Batch) GetCnt() int64 {
	return atomic.LoadInt64(&bat.Cnt)
}

func (bat *Batch) IsEmpty() bool {
	return bat.rowCount == 0
}

// TypesOf returns the column types of the batch.
func (bat *Batch) TypesOf() []types.Type {
	typs := make([]types.Type, len(bat.Vecs))
	for i, vec := range bat.Vecs {
		typs[i] = *vec.GetType()
	}
	return typs
}
