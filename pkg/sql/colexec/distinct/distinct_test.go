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

package distinct

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/container/batch"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
	"github.com/colstream/colstream/pkg/sql/colexec"
	"github.com/colstream/colstream/pkg/testutil"
	"github.com/colstream/colstream/pkg/vm"
	"github.com/colstream/colstream/pkg/vm/process"
)

// add unit tests for cases
type distinctTestCase struct {
	arg  *Distinct
	proc *process.Process
}

var (
	tcs []distinctTestCase
)

func init() {
	tcs = []distinctTestCase{
		newTestCase([]string{"a"}),
		newTestCase([]string{"a", "c"}),
		newTestCase(nil),
	}
}

func newTestCase(keyColumns []string) distinctTestCase {
	return distinctTestCase{
		proc: testutil.NewProcess(),
		arg: &Distinct{
			KeyColumns: keyColumns,
			OperatorBase: vm.OperatorBase{
				OperatorInfo: vm.OperatorInfo{
					Idx:     0,
					IsFirst: false,
					IsLast:  false,
				},
			},
		},
	}
}

func TestString(t *testing.T) {
	buf := new(bytes.Buffer)
	for _, tc := range tcs {
		tc.arg.String(buf)
	}

	buf.Reset()
	arg := &Distinct{KeyColumns: []string{"a", "b"}}
	arg.String(buf)
	require.Equal(t, "distinct([a, b])", buf.String())

	buf.Reset()
	all := &Distinct{}
	all.String(buf)
	require.Equal(t, "distinct([*])", buf.String())
}

func TestOverflowModeString(t *testing.T) {
	require.Equal(t, "throw", OverflowThrow.String())
	require.Equal(t, "break", OverflowBreak.String())
	require.Equal(t, "overflow(42)", OverflowMode(42).String())
}

func TestPrepare(t *testing.T) {
	for _, tc := range tcs {
		err := tc.arg.Prepare(tc.proc)
		require.NoError(t, err)
		tc.arg.Free(tc.proc, false, nil)
	}
}

func TestNewArgument(t *testing.T) {
	arg := NewArgument()
	require.NotNil(t, arg)
	require.Equal(t, opName, arg.TypeName())
	arg.Release()
}

func TestDistinct(t *testing.T) {
	for _, tc := range tcs {
		resetChildren(tc.arg)
		err := tc.arg.Prepare(tc.proc)
		require.NoError(t, err)
		res, err := tc.arg.Call(tc.proc)
		require.NoError(t, err)
		require.NotNil(t, res.Batch)
		require.Equal(t, 3, res.Batch.RowCount())
		res, err = tc.arg.Call(tc.proc)
		require.NoError(t, err)
		require.Nil(t, res.Batch)
		require.Equal(t, vm.ExecStop, res.Status)
		tc.arg.Reset(tc.proc, false, nil)

		// a reset operator starts over with an empty distinct set.
		resetChildren(tc.arg)
		err = tc.arg.Prepare(tc.proc)
		require.NoError(t, err)
		res, err = tc.arg.Call(tc.proc)
		require.NoError(t, err)
		require.NotNil(t, res.Batch)
		require.Equal(t, 3, res.Batch.RowCount())

		tc.arg.Free(tc.proc, false, nil)
		tc.proc.Free()
		require.Equal(t, int64(0), tc.proc.Mp().CurrNB())
	}
}

func TestDistinctAcrossBlocks(t *testing.T) {
	proc := testutil.NewProcess()
	arg := newDistinctArg([]string{"a"})
	b1 := makeKeyBatch([]string{"a"}, testutil.MakeInt32Vector([]int32{1, 2, 2, 3}, nil))
	b2 := makeKeyBatch([]string{"a"}, testutil.MakeInt32Vector([]int32{3, 4, 1, 5}, nil))
	setChild(arg, b1, b2)
	require.NoError(t, arg.Prepare(proc))

	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, 3, res.Batch.RowCount())
	require.Equal(t, []int32{1, 2, 3}, vector.MustFixedColWithTypeCheck[int32](res.Batch.Vecs[0]))
	require.Equal(t, setH8, arg.ctr.typ)

	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, 2, res.Batch.RowCount())
	require.Equal(t, []int32{4, 5}, vector.MustFixedColWithTypeCheck[int32](res.Batch.Vecs[0]))

	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Nil(t, res.Batch)
	require.Equal(t, vm.ExecStop, res.Status)

	arg.Free(proc, false, nil)
	proc.Free()
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestDistinctUnknownKeyColumn(t *testing.T) {
	proc := testutil.NewProcess()
	arg := newDistinctArg([]string{"missing"})
	setChild(arg, colexec.MakeMockBatchs())
	require.NoError(t, arg.Prepare(proc))

	_, err := arg.Call(proc)
	require.Error(t, err)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	arg.Free(proc, false, nil)
}

func TestDistinctAllConstantKeyPassthrough(t *testing.T) {
	proc := testutil.NewProcess()
	arg := newDistinctArg(nil)
	cv, err := vector.NewConstFixed[int64](types.T_int64.ToType(), 7, 3, testutil.TestUtilMp)
	require.NoError(t, err)
	bat := makeKeyBatch([]string{"x", "y"}, cv, testutil.MakeScalarNull(types.T_int64, 3))
	setChild(arg, bat)
	require.NoError(t, arg.Prepare(proc))

	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, 3, res.Batch.RowCount())
	// nothing to hash, so no set variant was ever picked.
	require.Equal(t, setNone, arg.ctr.typ)

	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, vm.ExecStop, res.Status)

	arg.Free(proc, false, nil)
	proc.Free()
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestDistinctConstantConfiguredKey(t *testing.T) {
	proc := testutil.NewProcess()
	arg := newDistinctArg([]string{"d"})
	setChild(arg, colexec.MakeMockBatchs(), colexec.MakeMockBatchs())
	require.NoError(t, arg.Prepare(proc))

	// d is a constant null column, so both blocks pass through whole.
	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, 3, res.Batch.RowCount())
	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, 3, res.Batch.RowCount())
	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, vm.ExecStop, res.Status)

	arg.Free(proc, false, nil)
}

func TestDistinctMaxRowsThrow(t *testing.T) {
	proc := testutil.NewProcess()
	arg := newDistinctArg([]string{"a"})
	arg.MaxRows = 2
	b1 := makeKeyBatch([]string{"a"}, testutil.MakeInt32Vector([]int32{1, 2}, nil))
	b2 := makeKeyBatch([]string{"a"}, testutil.MakeInt32Vector([]int32{3}, nil))
	setChild(arg, b1, b2)
	require.NoError(t, arg.Prepare(proc))

	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, 2, res.Batch.RowCount())

	_, err = arg.Call(proc)
	require.Error(t, err)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrDistinctLimitExceeded))
	require.Contains(t, err.Error(), "DISTINCT-Set size limit exceeded. Rows: 3, limit: 2.")

	arg.Free(proc, false, nil)
}

func TestDistinctMaxRowsBreak(t *testing.T) {
	proc := testutil.NewProcess()
	arg := newDistinctArg([]string{"a"})
	arg.MaxRows = 2
	arg.OverflowMode = OverflowBreak
	b1 := makeKeyBatch([]string{"a"}, testutil.MakeInt32Vector([]int32{1, 2}, nil))
	b2 := makeKeyBatch([]string{"a"}, testutil.MakeInt32Vector([]int32{3}, nil))
	setChild(arg, b1, b2)
	require.NoError(t, arg.Prepare(proc))

	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, 2, res.Batch.RowCount())

	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Nil(t, res.Batch)
	require.Equal(t, vm.ExecStop, res.Status)

	// the stream stays ended on later calls.
	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, vm.ExecStop, res.Status)

	arg.Free(proc, false, nil)
}

func TestDistinctMaxBytesBreak(t *testing.T) {
	proc := testutil.NewProcess()
	arg := newDistinctArg([]string{"a"})
	arg.MaxBytes = 1
	arg.OverflowMode = OverflowBreak
	b1 := makeKeyBatch([]string{"a"}, testutil.MakeInt32Vector([]int32{1, 2}, nil))
	setChild(arg, b1)
	require.NoError(t, arg.Prepare(proc))

	// any set at all is bigger than one byte.
	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Nil(t, res.Batch)
	require.Equal(t, vm.ExecStop, res.Status)

	arg.Free(proc, false, nil)
}

func TestDistinctInvalidOverflowMode(t *testing.T) {
	proc := testutil.NewProcess()
	arg := newDistinctArg([]string{"a"})
	arg.MaxRows = 1
	arg.OverflowMode = OverflowMode(42)
	b1 := makeKeyBatch([]string{"a"}, testutil.MakeInt32Vector([]int32{1, 2}, nil))
	setChild(arg, b1)
	require.NoError(t, arg.Prepare(proc))

	_, err := arg.Call(proc)
	require.Error(t, err)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidOverflowMode))

	arg.Free(proc, false, nil)
}

func TestDistinctRowCountHint(t *testing.T) {
	proc := testutil.NewProcess()
	arg := newDistinctArg([]string{"a"})
	arg.RowCountHint = 2
	b1 := makeKeyBatch([]string{"a"}, testutil.MakeInt32Vector([]int32{1, 2}, nil))
	b2 := makeKeyBatch([]string{"a"}, testutil.MakeInt32Vector([]int32{3, 4}, nil))
	setChild(arg, b1, b2)
	require.NoError(t, arg.Prepare(proc))

	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, 2, res.Batch.RowCount())

	// the hint is satisfied, the second block is never pulled.
	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Nil(t, res.Batch)
	require.Equal(t, vm.ExecStop, res.Status)

	arg.Free(proc, false, nil)
}

func TestDistinctNullKeys(t *testing.T) {
	proc := testutil.NewProcess()
	arg := newDistinctArg([]string{"a"})
	b1 := makeKeyBatch([]string{"a"}, testutil.MakeInt8Vector([]int8{1, 0, 2, 0}, []uint64{1, 3}))
	b2 := makeKeyBatch([]string{"a"}, testutil.MakeInt8Vector([]int8{0, 3}, []uint64{0}))
	setChild(arg, b1, b2)
	require.NoError(t, arg.Prepare(proc))

	// null is one key value, the second null row is a duplicate.
	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, 3, res.Batch.RowCount())
	require.True(t, res.Batch.Vecs[0].GetNulls().Contains(1))
	require.Equal(t, setH8, arg.ctr.typ)

	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, 1, res.Batch.RowCount())
	require.Equal(t, []int8{3}, vector.MustFixedColWithTypeCheck[int8](res.Batch.Vecs[0]))
	require.False(t, res.Batch.Vecs[0].GetNulls().Contains(0))

	arg.Free(proc, false, nil)
	proc.Free()
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestDistinctVarlenKeys(t *testing.T) {
	proc := testutil.NewProcess()
	arg := newDistinctArg([]string{"s"})
	b1 := makeKeyBatch([]string{"s"}, testutil.MakeVarcharVector([]string{"aa", "bb", "aa", "cc"}, []uint64{3}))
	b2 := makeKeyBatch([]string{"s"}, testutil.MakeVarcharVector([]string{"bb", "dd", "x"}, []uint64{2}))
	setChild(arg, b1, b2)
	require.NoError(t, arg.Prepare(proc))

	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, 3, res.Batch.RowCount())
	require.Equal(t, setHBytes, arg.ctr.typ)
	vs := vector.MustStrCol(res.Batch.Vecs[0])
	require.Equal(t, "aa", vs[0])
	require.Equal(t, "bb", vs[1])
	require.True(t, res.Batch.Vecs[0].GetNulls().Contains(2))

	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, 1, res.Batch.RowCount())
	require.Equal(t, []string{"dd"}, vector.MustStrCol(res.Batch.Vecs[0]))

	arg.Free(proc, false, nil)
	proc.Free()
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestDistinctWideFixedKeys(t *testing.T) {
	proc := testutil.NewProcess()
	arg := newDistinctArg([]string{"x", "y"})
	b1 := makeKeyBatch([]string{"x", "y"},
		testutil.MakeInt64Vector([]int64{1, 1, 2}, nil),
		testutil.MakeInt64Vector([]int64{9, 9, 9}, nil))
	setChild(arg, b1)
	require.NoError(t, arg.Prepare(proc))

	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, 2, res.Batch.RowCount())
	require.Equal(t, []int64{1, 2}, vector.MustFixedColWithTypeCheck[int64](res.Batch.Vecs[0]))
	require.Equal(t, setHStr, arg.ctr.typ)

	arg.Free(proc, false, nil)
}

func TestDistinctShortVarcharPackedKey(t *testing.T) {
	proc := testutil.NewProcess()
	arg := newDistinctArg([]string{"s"})
	vec := testutil.NewVector(3, types.New(types.T_varchar, 5, 0), testutil.TestUtilMp, false, []string{"a", "b", "a"})
	b1 := makeKeyBatch([]string{"s"}, vec)
	setChild(arg, b1)
	require.NoError(t, arg.Prepare(proc))

	// a varchar(5) key still fits the packed 8 byte key.
	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, 2, res.Batch.RowCount())
	require.Equal(t, []string{"a", "b"}, vector.MustStrCol(res.Batch.Vecs[0]))
	require.Equal(t, setH8, arg.ctr.typ)

	arg.Free(proc, false, nil)
}

func TestDistinctSkipsDuplicateBlock(t *testing.T) {
	proc := testutil.NewProcess()
	arg := newDistinctArg([]string{"a"})
	b1 := makeKeyBatch([]string{"a"}, testutil.MakeInt32Vector([]int32{1, 2}, nil))
	b2 := makeKeyBatch([]string{"a"}, testutil.MakeInt32Vector([]int32{1, 2}, nil))
	b3 := makeKeyBatch([]string{"a"}, testutil.MakeInt32Vector([]int32{3}, nil))
	setChild(arg, b1, b2, b3)
	require.NoError(t, arg.Prepare(proc))

	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, 2, res.Batch.RowCount())

	// the all duplicate block is skipped, the next call serves the
	// third block directly.
	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, 1, res.Batch.RowCount())
	require.Equal(t, []int32{3}, vector.MustFixedColWithTypeCheck[int32](res.Batch.Vecs[0]))

	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, vm.ExecStop, res.Status)

	arg.Free(proc, false, nil)
}

func TestDistinctEmptyBlockContinues(t *testing.T) {
	proc := testutil.NewProcess()
	arg := newDistinctArg([]string{"a"})
	b2 := makeKeyBatch([]string{"a"}, testutil.MakeInt32Vector([]int32{7}, nil))
	setChild(arg, batch.EmptyBatch, b2)
	require.NoError(t, arg.Prepare(proc))

	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, 1, res.Batch.RowCount())

	arg.Free(proc, false, nil)
}

func TestDistinctCompositeKey(t *testing.T) {
	proc := testutil.NewProcess()
	arg := newDistinctArg([]string{"a", "b"})
	b1 := makeKeyBatch([]string{"a", "b"},
		testutil.MakeInt32Vector([]int32{1, 1, 2}, nil),
		testutil.MakeVarcharVector([]string{"x", "y", "x"}, nil))
	b2 := makeKeyBatch([]string{"a", "b"},
		testutil.MakeInt32Vector([]int32{1, 3}, nil),
		testutil.MakeVarcharVector([]string{"x", "z"}, nil))
	setChild(arg, b1, b2)
	require.NoError(t, arg.Prepare(proc))

	res, err := arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, 3, res.Batch.RowCount())
	require.Equal(t, setHBytes, arg.ctr.typ)
	require.Equal(t, []int32{1, 1, 2}, vector.MustFixedColWithTypeCheck[int32](res.Batch.Vecs[0]))
	require.Equal(t, []string{"x", "y", "x"}, vector.MustStrCol(res.Batch.Vecs[1]))

	// the repeated (1, "x") pair is suppressed, the fresh (3, "z")
	// survives.
	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, 1, res.Batch.RowCount())
	require.Equal(t, []int32{3}, vector.MustFixedColWithTypeCheck[int32](res.Batch.Vecs[0]))
	require.Equal(t, []string{"z"}, vector.MustStrCol(res.Batch.Vecs[1]))

	res, err = arg.Call(proc)
	require.NoError(t, err)
	require.Equal(t, vm.ExecStop, res.Status)

	arg.Free(proc, false, nil)
	proc.Free()
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestDistinctDeterministicOutput(t *testing.T) {
	var gotA [2][]int32
	var gotB [2][]string
	for run := 0; run < 2; run++ {
		proc := testutil.NewProcess()
		arg := newDistinctArg([]string{"a", "b"})
		b1 := makeKeyBatch([]string{"a", "b"},
			testutil.MakeInt32Vector([]int32{1, 1, 2, 2}, nil),
			testutil.MakeVarcharVector([]string{"x", "x", "x", "y"}, nil))
		b2 := makeKeyBatch([]string{"a", "b"},
			testutil.MakeInt32Vector([]int32{2, 1, 3}, nil),
			testutil.MakeVarcharVector([]string{"y", "z", "x"}, nil))
		setChild(arg, b1, b2)
		require.NoError(t, arg.Prepare(proc))

		for {
			res, err := arg.Call(proc)
			require.NoError(t, err)
			if res.Batch == nil {
				break
			}
			gotA[run] = append(gotA[run], vector.MustFixedColWithTypeCheck[int32](res.Batch.Vecs[0])...)
			gotB[run] = append(gotB[run], vector.MustStrCol(res.Batch.Vecs[1])...)
		}
		arg.Free(proc, false, nil)
		proc.Free()
		require.Equal(t, int64(0), proc.Mp().CurrNB())
	}

	require.Equal(t, []int32{1, 2, 2, 1, 3}, gotA[0])
	require.Equal(t, []string{"x", "x", "y", "z", "x"}, gotB[0])
	require.Equal(t, gotA[0], gotA[1])
	require.Equal(t, gotB[0], gotB[1])
}

func newDistinctArg(keyColumns []string) *Distinct {
	return &Distinct{
		KeyColumns: keyColumns,
		OperatorBase: vm.OperatorBase{
			OperatorInfo: vm.OperatorInfo{
				Idx:     0,
				IsFirst: false,
				IsLast:  false,
			},
		},
	}
}

func makeKeyBatch(attrs []string, vecs ...*vector.Vector) *batch.Batch {
	bat := testutil.NewBatchWithVectors(vecs, nil)
	bat.Attrs = attrs
	return bat
}

func setChild(arg *Distinct, bats ...*batch.Batch) {
	op := colexec.NewMockOperator().WithBatchs(bats)
	arg.Children = nil
	arg.AppendChild(op)
}

func resetChildren(arg *Distinct) {
	bats := []*batch.Batch{
		colexec.MakeMockBatchs(),
		colexec.MakeMockBatchs(),
	}
	op := colexec.NewMockOperator().WithBatchs(bats)
	arg.Children = nil
	arg.AppendChild(op)
}
