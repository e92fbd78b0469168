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

package value_scan

import (
	"github.com/colstream/colstream/pkg/common/reuse"
	"github.com/colstream/colstream/pkg/container/batch"
	"github.com/colstream/colstream/pkg/vm"
	"github.com/colstream/colstream/pkg/vm/process"
)

var _ vm.Operator = new(ValueScan)

type container struct {
	// idx indicates which batch goes to the next operator now.
	idx int
}

// ValueScan is the leaf operator serving a fixed list of in memory
// batches, in order, then end of data.
type ValueScan struct {
	ctr    container
	Batchs []*batch.Batch

	vm.OperatorBase
}

func (valueScan *ValueScan) GetOperatorBase() *vm.OperatorBase {
	return &valueScan.OperatorBase
}

func init() {
	reuse.CreatePool[ValueScan](
		func() *ValueScan {
			return &ValueScan{}
		},
		func(a *ValueScan) {
			*a = ValueScan{}
		},
		reuse.DefaultOptions[ValueScan]().
			WithEnableChecker(),
	)
}

func (valueScan ValueScan) TypeName() string {
	return opName
}

func NewArgument() *ValueScan {
	return reuse.Alloc[ValueScan](nil)
}

func (valueScan *ValueScan) Release() {
	if valueScan != nil {
		reuse.Free[ValueScan](valueScan, nil)
	}
}

// SetBatchs hands the operator the batches to serve.  The operator
// owns them from here on, Free returns their memory.
func (valueScan *ValueScan) SetBatchs(bats []*batch.Batch) {
	valueScan.Batchs = bats
}

func (valueScan *ValueScan) Reset(proc *process.Process, pipelineFailed bool, err error) {
	valueScan.ctr.idx = 0
}

func (valueScan *ValueScan) Free(proc *process.Process, pipelineFailed bool, err error) {
	for i := range valueScan.Batchs {
		if valueScan.Batchs[i] != nil {
			valueScan.Batchs[i].Clean(proc.Mp())
		}
		valueScan.Batchs[i] = nil
	}
	valueScan.Batchs = nil
	valueScan.ctr.idx = 0
}
