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

package colexec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstream/colstream/pkg/container/batch"
	"github.com/colstream/colstream/pkg/testutil"
	"github.com/colstream/colstream/pkg/vm"
)

func TestMockOperator(t *testing.T) {
	proc := testutil.NewProcess()
	op := NewMockOperator().WithBatchs([]*batch.Batch{MakeMockBatchs(), MakeMockBatchs()})

	buf := new(bytes.Buffer)
	op.String(buf)
	require.Equal(t, "mock", buf.String())

	require.NoError(t, op.Prepare(proc))
	for i := 0; i < 2; i++ {
		result, err := op.Call(proc)
		require.NoError(t, err)
		require.NotNil(t, result.Batch)
		require.Equal(t, 3, result.Batch.RowCount())
	}
	result, err := op.Call(proc)
	require.NoError(t, err)
	require.Nil(t, result.Batch)
	require.Equal(t, vm.ExecStop, result.Status)

	// Reset rewinds to the first batch
	op.Reset(proc, false, nil)
	result, err = op.Call(proc)
	require.NoError(t, err)
	require.NotNil(t, result.Batch)

	op.Free(proc, false, nil)
	proc.Free()
	require.Equal(t, int64(0), proc.Mp().CurrNB())
}

func TestMakeMockBatchs(t *testing.T) {
	bat := MakeMockBatchs()
	require.Equal(t, 3, bat.RowCount())
	require.Equal(t, 4, bat.VectorCount())
	require.True(t, bat.Vecs[3].IsConstNull())
	bat.Clean(testutil.TestUtilMp)
}
