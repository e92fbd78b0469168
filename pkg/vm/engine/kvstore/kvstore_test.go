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
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/common/mpool"
	"github.com/colstream/colstream/pkg/container/batch"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
	"github.com/colstream/colstream/pkg/testutil"
)

func testDef() TableDef {
	return TableDef{
		Name:  "t1",
		Attrs: []string{"id", "name"},
		Types: []types.Type{types.T_int32.ToType(), types.T_varchar.ToType()},
	}
}

func openTestStore(t *testing.T) *Store {
	s, err := Open(filepath.Join(t.TempDir(), "store"))
	require.NoError(t, err)
	return s
}

func intDef(name string) TableDef {
	return TableDef{
		Name:  name,
		Attrs: []string{"v"},
		Types: []types.Type{types.T_int32.ToType()},
	}
}

func intBatch(vs []int32) *batch.Batch {
	return testutil.NewBatchWithVectors(
		[]*vector.Vector{testutil.MakeInt32Vector(vs, nil)}, nil)
}

func TestOpenInvalidPath(t *testing.T) {
	_, err := Open("")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidPath))
}

func TestCreateTable(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	defer func() {
		require.NoError(t, s.Close())
	}()

	require.NoError(t, s.CreateTable(ctx, testDef()))
	err := s.CreateTable(ctx, testDef())
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrTableAlreadyExists))

	err = s.CreateTable(ctx, TableDef{Attrs: []string{"a"}, Types: []types.Type{types.T_int32.ToType()}})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	// a slash would collide with the block key layout.
	err = s.CreateTable(ctx, TableDef{Name: "a/b", Attrs: []string{"a"}, Types: []types.Type{types.T_int32.ToType()}})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	err = s.CreateTable(ctx, TableDef{Name: "t2", Attrs: []string{"a", "b"}, Types: []types.Type{types.T_int32.ToType()}})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	def, err := s.GetTableDef(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, testDef(), def)

	_, err = s.GetTableDef(ctx, "missing")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNoSuchTable))
}

func TestTablesOrdered(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	defer func() {
		require.NoError(t, s.Close())
	}()
	require.Equal(t, "store", s.Name())

	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, s.CreateTable(ctx, intDef(name)))
	}
	defs := s.Tables()
	require.Equal(t, 3, len(defs))
	for i, want := range []string{"a", "b", "c"} {
		require.Equal(t, want, defs[i].Name)
	}
}

func TestAppendAndGetBlock(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	defer func() {
		require.NoError(t, s.Close())
	}()
	require.NoError(t, s.CreateTable(ctx, testDef()))

	bat := testutil.NewBatchWithVectors([]*vector.Vector{
		testutil.MakeInt32Vector([]int32{1, 2, 3}, nil),
		testutil.MakeVarcharVector([]string{"apple", "", "cherry"}, []uint64{1}),
	}, nil)
	seq, err := s.AppendBlock(ctx, "t1", bat)
	require.NoError(t, err)
	require.Equal(t, uint64(0), seq)
	bat.Clean(testutil.TestUtilMp)

	cnt, err := s.BlockCount(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, uint64(1), cnt)

	mp := mpool.MustNewZeroNoFixed()
	got, err := s.GetBlock(ctx, "t1", 0, mp)
	require.NoError(t, err)
	require.Equal(t, 3, got.RowCount())
	require.Equal(t, []string{"id", "name"}, got.Attrs)
	require.Equal(t, []int32{1, 2, 3}, vector.MustFixedColWithTypeCheck[int32](got.Vecs[0]))
	require.True(t, got.Vecs[1].GetNulls().Contains(1))
	require.Equal(t, "apple", got.Vecs[1].GetStringAt(0))
	require.Equal(t, "cherry", got.Vecs[1].GetStringAt(2))
	got.Clean(mp)
	require.Equal(t, int64(0), mp.CurrNB())

	_, err = s.GetBlock(ctx, "t1", 9, mp)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNoSuchBlock))
	_, err = s.GetBlock(ctx, "missing", 0, mp)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNoSuchTable))
}

func TestAppendBlockInvalid(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	defer func() {
		require.NoError(t, s.Close())
	}()
	require.NoError(t, s.CreateTable(ctx, testDef()))

	bat := intBatch([]int32{1})
	_, err := s.AppendBlock(ctx, "missing", bat)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNoSuchTable))
	_, err = s.AppendBlock(ctx, "t1", bat)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))
	bat.Clean(testutil.TestUtilMp)

	cbat := testutil.NewBatchWithVectors([]*vector.Vector{
		testutil.MakeScalarNull(types.T_int32, 3),
		testutil.MakeVarcharVector([]string{"x", "y", "z"}, nil),
	}, nil)
	_, err = s.AppendBlock(ctx, "t1", cbat)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNotSupported))
	cbat.Clean(testutil.TestUtilMp)
}

func TestBlockRoundTripTypes(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	defer func() {
		require.NoError(t, s.Close())
	}()
	def := TableDef{
		Name:  "mix",
		Attrs: []string{"a", "b", "c"},
		Types: []types.Type{
			types.T_int64.ToType(),
			types.T_float64.ToType(),
			types.T_varchar.ToType(),
		},
	}
	require.NoError(t, s.CreateTable(ctx, def))

	// nulls in both a fixed and a varlen column.
	bat := testutil.NewBatchWithVectors([]*vector.Vector{
		testutil.MakeInt64Vector([]int64{10, 20, 30, 40}, []uint64{0}),
		testutil.MakeFloat64Vector([]float64{1.5, 2.5, 3.5, 4.5}, nil),
		testutil.MakeVarcharVector([]string{"a long string that spills into the area", "b", "c", "d"}, []uint64{3}),
	}, nil)
	_, err := s.AppendBlock(ctx, "mix", bat)
	require.NoError(t, err)
	bat.Clean(testutil.TestUtilMp)

	mp := mpool.MustNewZeroNoFixed()
	got, err := s.GetBlock(ctx, "mix", 0, mp)
	require.NoError(t, err)
	require.Equal(t, 4, got.RowCount())
	require.True(t, got.Vecs[0].GetNulls().Contains(0))
	require.Equal(t, 1, got.Vecs[0].GetNulls().Count())
	require.Equal(t, []int64{10, 20, 30, 40}, vector.MustFixedColWithTypeCheck[int64](got.Vecs[0]))
	require.Equal(t, []float64{1.5, 2.5, 3.5, 4.5}, vector.MustFixedColWithTypeCheck[float64](got.Vecs[1]))
	require.Equal(t, "a long string that spills into the area", got.Vecs[2].GetStringAt(0))
	require.True(t, got.Vecs[2].GetNulls().Contains(3))
	got.Clean(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestBlockReader(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	defer func() {
		require.NoError(t, s.Close())
	}()
	require.NoError(t, s.CreateTable(ctx, intDef("t1")))

	for _, vs := range [][]int32{{1, 2}, {3}, {4, 5, 6}} {
		bat := intBatch(vs)
		_, err := s.AppendBlock(ctx, "t1", bat)
		require.NoError(t, err)
		bat.Clean(testutil.TestUtilMp)
	}

	mp := mpool.MustNewZeroNoFixed()
	r, err := s.NewBlockReader(ctx, "t1")
	require.NoError(t, err)
	var all []int32
	for {
		bat, err := r.Read(ctx, mp)
		require.NoError(t, err)
		if bat == nil {
			break
		}
		all = append(all, vector.MustFixedColWithTypeCheck[int32](bat.Vecs[0])...)
		bat.Clean(mp)
	}
	require.NoError(t, r.Close())
	require.Equal(t, []int32{1, 2, 3, 4, 5, 6}, all)
	require.Equal(t, int64(0), mp.CurrNB())

	_, err = s.NewBlockReader(ctx, "missing")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNoSuchTable))
}

func TestBlockReaderEmptyTable(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	defer func() {
		require.NoError(t, s.Close())
	}()
	require.NoError(t, s.CreateTable(ctx, intDef("empty")))

	r, err := s.NewBlockReader(ctx, "empty")
	require.NoError(t, err)
	bat, err := r.Read(ctx, mpool.MustNewZeroNoFixed())
	require.NoError(t, err)
	require.Nil(t, bat)
	require.NoError(t, r.Close())
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "store")

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.CreateTable(ctx, intDef("t1")))
	for _, vs := range [][]int32{{1, 2}, {3}} {
		bat := intBatch(vs)
		_, err := s.AppendBlock(ctx, "t1", bat)
		require.NoError(t, err)
		bat.Clean(testutil.TestUtilMp)
	}
	require.NoError(t, s.Close())

	// catalog and blocks survive a restart, appends continue the
	// sequence.
	s, err = Open(dir)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, s.Close())
	}()
	def, err := s.GetTableDef(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, intDef("t1"), def)
	cnt, err := s.BlockCount(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, uint64(2), cnt)

	mp := mpool.MustNewZeroNoFixed()
	got, err := s.GetBlock(ctx, "t1", 1, mp)
	require.NoError(t, err)
	require.Equal(t, []int32{3}, vector.MustFixedColWithTypeCheck[int32](got.Vecs[0]))
	got.Clean(mp)

	bat := intBatch([]int32{4})
	seq, err := s.AppendBlock(ctx, "t1", bat)
	require.NoError(t, err)
	require.Equal(t, uint64(2), seq)
	bat.Clean(testutil.TestUtilMp)

	r, err := s.NewBlockReader(ctx, "t1")
	require.NoError(t, err)
	var all []int32
	for {
		bat, err := r.Read(ctx, mp)
		require.NoError(t, err)
		if bat == nil {
			break
		}
		all = append(all, vector.MustFixedColWithTypeCheck[int32](bat.Vecs[0])...)
		bat.Clean(mp)
	}
	require.NoError(t, r.Close())
	require.Equal(t, []int32{1, 2, 3, 4}, all)
	require.Equal(t, int64(0), mp.CurrNB())
}
