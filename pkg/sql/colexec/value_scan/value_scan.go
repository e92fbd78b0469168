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
	"bytes"

	"github.com/colstream/colstream/pkg/vm"
	"github.com/colstream/colstream/pkg/vm/process"
)

const opName = "value_scan"

func (valueScan *ValueScan) String(buf *bytes.Buffer) {
	buf.WriteString(opName)
	buf.WriteString(": value_scan")
}

func (valueScan *ValueScan) OpType() vm.OpType {
	return vm.ValueScan
}

func (valueScan *ValueScan) Prepare(proc *process.Process) error {
	if valueScan.OpAnalyzer == nil {
		valueScan.OpAnalyzer = process.NewAnalyzer(valueScan.GetIdx(), valueScan.IsFirst, valueScan.IsLast, opName)
	} else {
		valueScan.OpAnalyzer.Reset()
	}
	return nil
}

func (valueScan *ValueScan) Call(proc *process.Process) (vm.CallResult, error) {
	if err, isCancel := vm.CancelCheck(proc); isCancel {
		return vm.CancelResult, err
	}

	analyzer := valueScan.OpAnalyzer
	analyzer.Start()
	defer analyzer.Stop()

	result := vm.NewCallResult()
	if valueScan.ctr.idx >= len(valueScan.Batchs) {
		result.Batch = nil
		result.Status = vm.ExecStop
		return result, nil
	}

	result.Batch = valueScan.Batchs[valueScan.ctr.idx]
	valueScan.ctr.idx++
	analyzer.Input(result.Batch)
	analyzer.Output(result.Batch)
	return result, nil
}
