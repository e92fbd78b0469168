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

	"github.com/colstream/colstream/pkg/container/batch"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
	"github.com/colstream/colstream/pkg/testutil"
	"github.com/colstream/colstream/pkg/vm"
	"github.com/colstream/colstream/pkg/vm/process"
)

var _ vm.Operator = new(MockOperator)

// MockOperator hands out a fixed list of batches, for operator unit
// tests that need a child.
type MockOperator struct {
	vm.OperatorBase

	batchs  []*batch.Batch
	current int
}

func NewMockOperator() *MockOperator {
	return &MockOperator{}
}

func (mockOp *MockOperator) WithBatchs(batchs []*batch.Batch) *MockOperator {
	mockOp.batchs = append(mockOp.batchs, batchs...)
	return mockOp
}

func (mockOp *MockOperator) GetBatchs() []*batch.Batch {
	return mockOp.batchs
}

func (mockOp *MockOperator) GetOperatorBase() *vm.OperatorBase {
	return &mockOp.OperatorBase
}

func (mockOp *MockOperator) OpType() vm.OpType {
	return vm.Mock
}

func (mockOp *MockOperator) String(buf *bytes.Buffer) {
	buf.WriteString("mock")
}

func (mockOp *MockOperator) Prepare(proc *process.Process) error {
	return nil
}

func (mockOp *MockOperator) Reset(proc *process.Process, pipelineFailed bool, err error) {
	mockOp.current = 0
}

func (mockOp *MockOperator) Free(proc *process.Process, pipelineFailed bool, err error) {
	for i := range mockOp.batchs {
		if mockOp.batchs[i] != nil {
			mockOp.batchs[i].Clean(proc.Mp())
		}
	}
	mockOp.batchs = nil
	mockOp.current = 0
}

func (mockOp *MockOperator) Release() {
}

func (mockOp *MockOperator) Call(proc *process.Process) (vm.CallResult, error) {
	result := vm.NewCallResult()
	if mockOp.current >= len(mockOp.batchs) {
		result.Batch = nil
		result.Status = vm.ExecStop
		return result, nil
	}
	result.Batch = mockOp.batchs[mockOp.current]
	mockOp.current++
	return result, nil
}

// MakeMockBatchs returns a batch with 3 rows and 4 columns, the last
// column constant null.
func MakeMockBatchs() *batch.Batch {
	bat := batch.New(false, []string{"a", "b", "c", "d"})
	vecs := make([]*vector.Vector, 4)
	vecs[0] = testutil.MakeInt64Vector([]int64{1, 2, 3}, nil)
	vecs[1] = testutil.MakeVarcharVector([]string{"a", "b", "c"}, nil)
	vecs[2] = testutil.MakeFloat64Vector([]float64{1, 2, 3}, nil)
	vecs[3] = testutil.MakeScalarNull(types.T_int64, 3)
	bat.Vecs = vecs
	bat.SetRowCount(3)
	return bat
}
