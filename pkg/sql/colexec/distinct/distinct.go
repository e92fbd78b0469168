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

	"github.com/colstream/colstream/pkg/common/hashmap"
	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/container/batch"
	"github.com/colstream/colstream/pkg/vm"
	"github.com/colstream/colstream/pkg/vm/process"
)

const opName = "distinct"

func (distinct *Distinct) String(buf *bytes.Buffer) {
	buf.WriteString(opName)
	buf.WriteString("([")
	if len(distinct.KeyColumns) == 0 {
		buf.WriteString("*")
	} else {
		for i, name := range distinct.KeyColumns {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(name)
		}
	}
	buf.WriteString("])")
}

func (distinct *Distinct) OpType() vm.OpType {
	return vm.Distinct
}

func (distinct *Distinct) Prepare(proc *process.Process) error {
	if distinct.OpAnalyzer == nil {
		distinct.OpAnalyzer = process.NewAnalyzer(distinct.GetIdx(), distinct.IsFirst, distinct.IsLast, opName)
	} else {
		distinct.OpAnalyzer.Reset()
	}

	if distinct.ctr.inserted == nil {
		distinct.ctr.inserted = make([]uint8, hashmap.UnitLimit)
		distinct.ctr.zInserted = make([]uint8, hashmap.UnitLimit)
	}
	return nil
}

// Call pulls blocks from the child and keeps only the rows whose key
// shows up for the first time in the stream. A block with nothing new
// is skipped rather than sent on empty.
func (distinct *Distinct) Call(proc *process.Process) (vm.CallResult, error) {
	analyzer := distinct.OpAnalyzer
	analyzer.Start()
	defer analyzer.Stop()

	ctr := &distinct.ctr
	result := vm.NewCallResult()
	if ctr.state == ended {
		result.Batch = nil
		result.Status = vm.ExecStop
		return result, nil
	}

	for {
		if err, isCancel := vm.CancelCheck(proc); isCancel {
			return vm.CancelResult, err
		}

		// The hint is a soft limit. Once that many distinct rows went
		// out there is no point pulling more input.
		if distinct.RowCountHint > 0 && ctr.distinctRowCount() >= distinct.RowCountHint {
			ctr.state = ended
			result.Batch = nil
			result.Status = vm.ExecStop
			return result, nil
		}

		input, err := vm.ChildrenCall(distinct.GetChildren(0), proc, analyzer)
		if err != nil {
			return input, err
		}
		if input.Batch == nil {
			ctr.state = ended
			result.Batch = nil
			result.Status = vm.ExecStop
			return result, nil
		}
		bat := input.Batch
		if bat.IsEmpty() {
			continue
		}
		analyzer.Input(bat)

		if err := ctr.resolveKeys(distinct, bat, proc); err != nil {
			return result, err
		}
		// No usable key columns means every row is trivially distinct
		// within the configured keys, the block goes through as is.
		if len(ctr.keyVecs) == 0 {
			analyzer.Output(bat)
			result.Batch = bat
			return result, nil
		}

		if ctr.typ == setNone {
			if err := ctr.initSet(proc); err != nil {
				return result, err
			}
		}

		if err := ctr.insertBlock(bat); err != nil {
			return result, err
		}
		if len(ctr.sels) == 0 {
			continue
		}

		stop, err := distinct.checkLimits(proc)
		if err != nil {
			ctr.state = ended
			return result, err
		}
		if stop {
			ctr.state = ended
			result.Batch = nil
			result.Status = vm.ExecStop
			return result, nil
		}

		bat.Shrink(ctr.sels, false)
		analyzer.Output(bat)
		result.Batch = bat
		return result, nil
	}
}

// resolveKeys binds the key columns on this block. Configured names
// bind in the given order, otherwise every column takes part in
// position order. Constant columns never contribute to the key.
func (ctr *container) resolveKeys(distinct *Distinct, bat *batch.Batch, proc *process.Process) error {
	ctr.keyNames = ctr.keyNames[:0]
	ctr.keyVecs = ctr.keyVecs[:0]

	if len(distinct.KeyColumns) > 0 {
		for _, name := range distinct.KeyColumns {
			pos := -1
			for i, attr := range bat.Attrs {
				if attr == name {
					pos = i
					break
				}
			}
			if pos < 0 {
				return moerr.NewInvalidInput(proc.Ctx, "distinct key column %s not found in the input block", name)
			}
			if bat.Vecs[pos].IsConst() {
				continue
			}
			ctr.keyNames = append(ctr.keyNames, name)
			ctr.keyVecs = append(ctr.keyVecs, bat.Vecs[pos])
		}
		return nil
	}

	for i, vec := range bat.Vecs {
		if vec.IsConst() {
			continue
		}
		// Blocks built straight from vectors may carry no attributes.
		if i < len(bat.Attrs) {
			ctr.keyNames = append(ctr.keyNames, bat.Attrs[i])
		}
		ctr.keyVecs = append(ctr.keyVecs, vec)
	}
	return nil
}

// initSet picks the set variant from the packed key width and builds
// the hash map. It runs once, on the first block with a usable key.
func (ctr *container) initSet(proc *process.Process) error {
	if ctr.typ != setNone {
		return moerr.NewInternalError(proc.Ctx, "distinct set initialized twice")
	}

	// No plan metadata reaches the operator, so every key column may
	// hold nulls and pays a null flag byte in the packed key.
	ctr.keyNullable = true
	hasVarlen := false
	for _, vec := range ctr.keyVecs {
		typ := vec.GetType()
		width := typ.TypeSize()
		if typ.IsVarlen() {
			hasVarlen = true
			// var length keys pack their bytes plus a length byte.
			width = 128
			if typ.Width != 0 {
				width = int(typ.Width) + 1
			}
		}
		ctr.keyWidth += width
		if ctr.keyNullable {
			ctr.keyWidth++
		}
	}

	switch {
	case ctr.keyWidth <= 8:
		ctr.typ = setH8
	case hasVarlen:
		ctr.typ = setHBytes
	default:
		ctr.typ = setHStr
	}

	var err error
	switch ctr.typ {
	case setH8:
		if ctr.intHashMap, err = hashmap.NewIntHashMap(ctr.keyNullable); err != nil {
			return err
		}
		ctr.itr = ctr.intHashMap.NewIterator()
	case setHStr:
		if ctr.strHashMap, err = hashmap.NewStrHashMap(ctr.keyNullable); err != nil {
			return err
		}
		ctr.itr = ctr.strHashMap.NewIterator()
	default:
		if ctr.bytesHashMap, err = hashmap.NewBytesHashMap(ctr.keyNullable); err != nil {
			return err
		}
		ctr.itr = ctr.bytesHashMap.NewIterator()
	}
	return nil
}

// insertBlock feeds every row of the block into the set and collects
// the first occurrence rows in ctr.sels, in block order.
func (ctr *container) insertBlock(bat *batch.Batch) error {
	count := bat.RowCount()
	ctr.sels = ctr.sels[:0]
	for i := 0; i < count; i += hashmap.UnitLimit {
		n := count - i
		if n > hashmap.UnitLimit {
			n = hashmap.UnitLimit
		}
		rows := ctr.groupCount()
		vals, _, err := ctr.itr.Insert(i, n, ctr.keyVecs)
		if err != nil {
			return err
		}
		copy(ctr.inserted[:n], ctr.zInserted[:n])
		for k, v := range vals[:n] {
			if v > rows {
				ctr.inserted[k] = 1
				rows++
			}
		}
		for k := 0; k < n; k++ {
			if ctr.inserted[k] == 1 {
				ctr.sels = append(ctr.sels, int64(i+k))
			}
		}
	}
	ctr.rowCount = ctr.groupCount()
	ctr.byteCount = uint64(ctr.setSize())
	return nil
}

func (ctr *container) groupCount() uint64 {
	switch ctr.typ {
	case setH8:
		return ctr.intHashMap.GroupCount()
	case setHStr:
		return ctr.strHashMap.GroupCount()
	}
	return ctr.bytesHashMap.GroupCount()
}

func (ctr *container) setSize() int64 {
	switch ctr.typ {
	case setH8:
		return ctr.intHashMap.Size()
	case setHStr:
		return ctr.strHashMap.Size()
	}
	return ctr.bytesHashMap.Size()
}

// checkLimits applies MaxRows and MaxBytes to the totals of the whole
// stream. It reports whether the stream should end quietly, or fails
// with the configured error.
func (distinct *Distinct) checkLimits(proc *process.Process) (bool, error) {
	ctr := &distinct.ctr
	rowsOk := distinct.MaxRows == 0 || ctr.rowCount <= distinct.MaxRows
	bytesOk := distinct.MaxBytes == 0 || ctr.byteCount <= distinct.MaxBytes
	if rowsOk && bytesOk {
		return false, nil
	}

	switch distinct.OverflowMode {
	case OverflowThrow:
		return false, moerr.NewDistinctLimitExceeded(proc.Ctx,
			ctr.rowCount, distinct.MaxRows, ctr.byteCount, distinct.MaxBytes)
	case OverflowBreak:
		return true, nil
	}
	return false, moerr.NewInvalidOverflowMode(proc.Ctx, distinct.OverflowMode.String())
}
