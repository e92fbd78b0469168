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

package kvscan

import (
	"bytes"
	"time"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/vm"
	"github.com/colstream/colstream/pkg/vm/process"
)

const opName = "kv_scan"

func (kvScan *KVScan) String(buf *bytes.Buffer) {
	buf.WriteString(opName)
	buf.WriteString(": kv scan")
}

func (kvScan *KVScan) OpType() vm.OpType {
	return vm.KVScan
}

func (kvScan *KVScan) Prepare(proc *process.Process) error {
	if kvScan.OpAnalyzer == nil {
		kvScan.OpAnalyzer = process.NewAnalyzer(kvScan.GetIdx(), kvScan.IsFirst, kvScan.IsLast, opName)
	} else {
		kvScan.OpAnalyzer.Reset()
	}

	if kvScan.Store == nil || kvScan.Table == "" {
		return moerr.NewInvalidInput(proc.Ctx, "kv scan needs an open store and a table")
	}
	return nil
}

// Call serves the table's next block as one batch. The block decoded
// by the previous Call is released first, a drained reader closes and
// ends the stream.
func (kvScan *KVScan) Call(proc *process.Process) (vm.CallResult, error) {
	if err, isCancel := vm.CancelCheck(proc); isCancel {
		return vm.CancelResult, err
	}

	analyzer := kvScan.OpAnalyzer
	analyzer.Start()
	defer analyzer.Stop()

	ctr := &kvScan.ctr
	result := vm.NewCallResult()
	if ctr.finished {
		result.Batch = nil
		result.Status = vm.ExecStop
		return result, nil
	}

	if ctr.reader == nil {
		reader, err := kvScan.Store.NewBlockReader(proc.Ctx, kvScan.Table)
		if err != nil {
			return result, err
		}
		ctr.reader = reader
	}
	if ctr.bat != nil {
		ctr.bat.Clean(proc.Mp())
		ctr.bat = nil
	}

	start := time.Now()
	bat, err := ctr.reader.Read(proc.Ctx, proc.Mp())
	analyzer.AddScanTime(start)
	if err != nil {
		return result, err
	}
	if bat == nil {
		if err := ctr.reader.Close(); err != nil {
			return result, err
		}
		ctr.reader = nil
		ctr.finished = true
		result.Batch = nil
		result.Status = vm.ExecStop
		return result, nil
	}

	ctr.bat = bat
	analyzer.Alloc(int64(bat.Size()))
	analyzer.Output(bat)
	result.Batch = bat
	return result, nil
}
