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

package mysqlscan

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
	"github.com/colstream/colstream/pkg/testutil"
	"github.com/colstream/colstream/pkg/vm"
)

func newScanArg(attrs []string, typs []types.Type) *MySQLScan {
	return &MySQLScan{
		Dsn:   "user:pass@tcp(127.0.0.1:3306)/db",
		Query: "select id, name from t",
		Attrs: attrs,
		Types: typs,
		OperatorBase: vm.OperatorBase{
			OperatorInfo: vm.OperatorInfo{
				Idx:     0,
				IsFirst: false,
				IsLast:  false,
			},
		},
	}
}

// mockResult builds a source serving the given rows and then a clean
// end of stream.
func mockResult(ctrl *gomock.Controller, cols []string, rows [][]sql.RawBytes) *MockRowSource {
	src := NewMockRowSource(ctrl)
	src.EXPECT().Columns().Return(cols, nil)
	idx := 0
	src.EXPECT().Next().DoAndReturn(func() bool {
		return idx < len(rows)
	}).Times(len(rows) + 1)
	if len(rows) > 0 {
		src.EXPECT().Scan(gomock.Any()).DoAndReturn(func(dest ...interface{}) error {
			for i, d := range dest {
				*(d.(*sql.RawBytes)) = rows[idx][i]
			}
			idx++
			return nil
		}).Times(len(rows))
	}
	src.EXPECT().Err().Return(nil)
	src.EXPECT().Close().Return(nil)
	return src
}

func serveRows(ctrl *gomock.Controller, arg *MySQLScan, cols []string, rows [][]sql.RawBytes) {
	arg.newRows = func(ctx context.Context, dsn, query string) (RowSource, error) {
		return mockResult(ctrl, cols, rows), nil
	}
}

func TestString(t *testing.T) {
	buf := new(bytes.Buffer)
	arg := newScanArg([]string{"a"}, []types.Type{types.T_int32.ToType()})
	arg.String(buf)
	require.Equal(t, "mysql_scan: mysql scan", buf.String())
}

func TestNewArgument(t *testing.T) {
	arg := NewArgument()
	require.Equal(t, opName, arg.TypeName())
	arg.Release()
}

func TestPrepareInvalid(t *testing.T) {
	proc := testutil.NewProcess()

	arg := newScanArg([]string{"a", "b"}, []types.Type{types.T_int32.ToType()})
	err := arg.Prepare(proc)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	arg = newScanArg([]string{"a"}, []types.Type{types.T_int32.ToType()})
	arg.Dsn = ""
	err = arg.Prepare(proc)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	arg = newScanArg([]string{"a"}, []types.Type{types.T_int32.ToType()})
	arg.Query = ""
	err = arg.Prepare(proc)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))
}

func TestMySQLScan(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	proc := testutil.NewProcess()
	proc.Base.Lim.BatchRows = 16

	arg := newScanArg([]string{"id", "name"},
		[]types.Type{types.T_int32.ToType(), types.T_varchar.ToType()})
	serveRows(ctrl, arg, []string{"id", "name"}, [][]sql.RawBytes{
		{sql.RawBytes("1"), sql.RawBytes("alice")},
		{sql.RawBytes("2"), nil},
		{sql.RawBytes("3"), sql.RawBytes("carol")},
	})
	require.NoError(t, arg.Prepare(proc))

	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, 3, res.Batch.RowCount())
	require.Equal(t, []int32{1, 2, 3}, vector.MustFixedColWithTypeCheck[int32](res.Batch.Vecs[0]))
	vs := vector.MustStrCol(res.Batch.Vecs[1])
	require.Equal(t, "alice", vs[0])
	// a nil RawBytes arrives as SQL NULL.
	require.True(t, res.Batch.Vecs[1].GetNulls().Contains(1))
	require.Equal(t, "carol", vs[2])

	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Nil(t, res.Batch)
	require.Equal(t, vm.ExecStop, res.Status)

	arg.Free(proc, false, nil)
	proc.Free()
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestMySQLScanChunking(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	proc := testutil.NewProcess()
	proc.Base.Lim.BatchRows = 2

	arg := newScanArg([]string{"a"}, []types.Type{types.T_int32.ToType()})
	serveRows(ctrl, arg, []string{"a"}, [][]sql.RawBytes{
		{sql.RawBytes("1")},
		{sql.RawBytes("2")},
		{sql.RawBytes("3")},
		{sql.RawBytes("4")},
		{sql.RawBytes("5")},
	})
	require.NoError(t, arg.Prepare(proc))

	for _, wantRows := range []int{2, 2, 1} {
		res, err := arg.Call(proc)
		require.NoError(t, err)
		require.Equal(t, wantRows, res.Batch.RowCount())
	}
	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, vm.ExecStop, res.Status)

	arg.Free(proc, false, nil)
	proc.Free()
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestMySQLScanEmptyResult(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	proc := testutil.NewProcess()
	proc.Base.Lim.BatchRows = 16

	arg := newScanArg([]string{"a"}, []types.Type{types.T_int32.ToType()})
	serveRows(ctrl, arg, []string{"a"}, nil)
	require.NoError(t, arg.Prepare(proc))

	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Nil(t, res.Batch)
	require.Equal(t, vm.ExecStop, res.Status)

	arg.Free(proc, false, nil)
	proc.Free()
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestMySQLScanOpenError(t *testing.T) {
	proc := testutil.NewProcess()

	arg := newScanArg([]string{"a"}, []types.Type{types.T_int32.ToType()})
	arg.newRows = func(ctx context.Context, dsn, query string) (RowSource, error) {
		return nil, errors.New("connection refused")
	}
	require.NoError(t, arg.Prepare(proc))

	_, err := arg.Call(proc)
	require.Error(t, err)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrMySQLSource))
	require.Contains(t, err.Error(), "connection refused")
	require.Contains(t, err.Error(), arg.Query)

	arg.Free(proc, false, nil)
}

func TestMySQLScanColumnMismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	proc := testutil.NewProcess()

	src := NewMockRowSource(ctrl)
	src.EXPECT().Columns().Return([]string{"a", "b", "c"}, nil)
	src.EXPECT().Close().Return(nil)

	arg := newScanArg([]string{"a", "b"},
		[]types.Type{types.T_int32.ToType(), types.T_int32.ToType()})
	arg.newRows = func(ctx context.Context, dsn, query string) (RowSource, error) {
		return src, nil
	}
	require.NoError(t, arg.Prepare(proc))

	_, err := arg.Call(proc)
	require.Error(t, err)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrMySQLSource))
	require.Contains(t, err.Error(), "result has 3 columns, want 2")

	arg.Free(proc, false, nil)
}

func TestMySQLScanRowError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	proc := testutil.NewProcess()
	proc.Base.Lim.BatchRows = 16

	src := NewMockRowSource(ctrl)
	src.EXPECT().Columns().Return([]string{"a"}, nil)
	src.EXPECT().Next().Return(false)
	src.EXPECT().Err().Return(errors.New("invalid connection"))
	// the failed source is released by Free.
	src.EXPECT().Close().Return(nil)

	arg := newScanArg([]string{"a"}, []types.Type{types.T_int32.ToType()})
	arg.newRows = func(ctx context.Context, dsn, query string) (RowSource, error) {
		return src, nil
	}
	require.NoError(t, arg.Prepare(proc))

	_, err := arg.Call(proc)
	require.Error(t, err)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrMySQLSource))
	require.Contains(t, err.Error(), "invalid connection")

	arg.Free(proc, false, nil)
	proc.Free()
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestMySQLScanParseError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	proc := testutil.NewProcess()
	proc.Base.Lim.BatchRows = 16

	src := NewMockRowSource(ctrl)
	src.EXPECT().Columns().Return([]string{"a"}, nil)
	src.EXPECT().Next().Return(true)
	src.EXPECT().Scan(gomock.Any()).DoAndReturn(func(dest ...interface{}) error {
		*(dest[0].(*sql.RawBytes)) = sql.RawBytes("abc")
		return nil
	})
	src.EXPECT().Close().Return(nil)

	arg := newScanArg([]string{"a"}, []types.Type{types.T_int32.ToType()})
	arg.newRows = func(ctx context.Context, dsn, query string) (RowSource, error) {
		return src, nil
	}
	require.NoError(t, arg.Prepare(proc))

	_, err := arg.Call(proc)
	require.Error(t, err)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))
	require.Contains(t, err.Error(), "row 1")

	arg.Free(proc, false, nil)
	proc.Free()
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestMySQLScanReset(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	proc := testutil.NewProcess()
	proc.Base.Lim.BatchRows = 16

	cols := []string{"a"}
	rows := [][]sql.RawBytes{{sql.RawBytes("7")}, {sql.RawBytes("8")}}
	opened := 0
	arg := newScanArg(cols, []types.Type{types.T_int32.ToType()})
	arg.newRows = func(ctx context.Context, dsn, query string) (RowSource, error) {
		opened++
		return mockResult(ctrl, cols, rows), nil
	}

	for round := 0; round < 2; round++ {
		require.NoError(t, arg.Prepare(proc))
		res, err := arg.Call(proc)
		require.NoError(t, err)
		require.Equal(t, 2, res.Batch.RowCount())
		require.Equal(t, []int32{7, 8}, vector.MustFixedColWithTypeCheck[int32](res.Batch.Vecs[0]))
		res, err = arg.Call(proc)
		require.NoError(t, err)
		require.Equal(t, vm.ExecStop, res.Status)
		arg.Reset(proc, false, nil)
	}
	require.Equal(t, 2, opened)

	arg.Free(proc, false, nil)
	proc.Free()
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestMySQLScanTypes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	proc := testutil.NewProcess()
	proc.Base.Lim.BatchRows = 16

	cols := []string{"b", "i", "f", "d", "dec", "s"}
	typs := []types.Type{
		types.T_bool.ToType(),
		types.T_int64.ToType(),
		types.T_float64.ToType(),
		types.T_date.ToType(),
		types.New(types.T_decimal64, 10, 2),
		types.T_varchar.ToType(),
	}
	arg := newScanArg(cols, typs)
	serveRows(ctrl, arg, cols, [][]sql.RawBytes{{
		sql.RawBytes("1"),
		sql.RawBytes("-5"),
		sql.RawBytes("2.5"),
		sql.RawBytes("2022-01-02"),
		sql.RawBytes("7.25"),
		sql.RawBytes("tx"),
	}})
	require.NoError(t, arg.Prepare(proc))

	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, 1, res.Batch.RowCount())
	require.Equal(t, true, vector.MustFixedColWithTypeCheck[bool](res.Batch.Vecs[0])[0])
	require.Equal(t, int64(-5), vector.MustFixedColWithTypeCheck[int64](res.Batch.Vecs[1])[0])
	require.Equal(t, 2.5, vector.MustFixedColWithTypeCheck[float64](res.Batch.Vecs[2])[0])
	wantDate, err := types.ParseDate("2022-01-02")
	require.NoError(t, err)
	require.Equal(t, wantDate, vector.MustFixedColWithTypeCheck[types.Date](res.Batch.Vecs[3])[0])
	wantDec, err := types.ParseDecimal64("7.25", 10, 2)
	require.NoError(t, err)
	require.Equal(t, wantDec, vector.MustFixedColWithTypeCheck[types.Decimal64](res.Batch.Vecs[4])[0])
	require.Equal(t, "tx", vector.MustStrCol(res.Batch.Vecs[5])[0])

	arg.Free(proc, false, nil)
	proc.Free()
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}
