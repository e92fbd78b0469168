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

package summarize

import (
	"bytes"

	hll "github.com/axiomhq/hyperloglog"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/container/batch"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
	"github.com/colstream/colstream/pkg/vm"
	"github.com/colstream/colstream/pkg/vm/process"
)

const opName = "summarize"

func (summarize *Summarize) String(buf *bytes.Buffer) {
	buf.WriteString(opName)
	buf.WriteString("([")
	if len(summarize.KeyColumns) == 0 {
		buf.WriteString("*")
	} else {
		for i, name := range summarize.KeyColumns {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(name)
		}
	}
	buf.WriteString("])")
}

func (summarize *Summarize) OpType() vm.OpType {
	return vm.Summarize
}

func (summarize *Summarize) Prepare(proc *process.Process) error {
	if summarize.OpAnalyzer == nil {
		summarize.OpAnalyzer = process.NewAnalyzer(summarize.GetIdx(), summarize.IsFirst, summarize.IsLast, opName)
	} else {
		summarize.OpAnalyzer.Reset()
	}
	return nil
}

// Call forwards the child's next block untouched. Row and byte totals
// and the key sketch accumulate on the way through, Stats serves them
// once the stream is drained.
func (summarize *Summarize) Call(proc *process.Process) (vm.CallResult, error) {
	analyzer := summarize.OpAnalyzer
	analyzer.Start()
	defer analyzer.Stop()

	ctr := &summarize.ctr
	result := vm.NewCallResult()
	for {
		if err, isCancel := vm.CancelCheck(proc); isCancel {
			return vm.CancelResult, err
		}

		input, err := vm.ChildrenCall(summarize.GetChildren(0), proc, analyzer)
		if err != nil {
			return input, err
		}
		if input.Batch == nil {
			return input, nil
		}
		bat := input.Batch
		if bat.IsEmpty() {
			continue
		}
		analyzer.Input(bat)

		if err := ctr.resolveKeys(summarize, bat, proc); err != nil {
			return result, err
		}
		ctr.rows += uint64(bat.RowCount())
		ctr.bytes += uint64(bat.Size())
		if len(ctr.keyVecs) == 0 {
			ctr.unkeyedRows += uint64(bat.RowCount())
		} else {
			ctr.sketchBlock(bat)
		}

		analyzer.Output(bat)
		result.Batch = bat
		return result, nil
	}
}

// resolveKeys binds the key columns on this block, the same way the
// distinct operator does. Constant columns never contribute.
func (ctr *container) resolveKeys(summarize *Summarize, bat *batch.Batch, proc *process.Process) error {
	ctr.keyVecs = ctr.keyVecs[:0]

	if len(summarize.KeyColumns) > 0 {
		for _, name := range summarize.KeyColumns {
			pos := -1
			for i, attr := range bat.Attrs {
				if attr == name {
					pos = i
					break
				}
			}
			if pos < 0 {
				return moerr.NewInvalidInput(proc.Ctx, "summarize key column %s not found in the input block", name)
			}
			if bat.Vecs[pos].IsConst() {
				continue
			}
			ctr.keyVecs = append(ctr.keyVecs, bat.Vecs[pos])
		}
		return nil
	}

	for _, vec := range bat.Vecs {
		if vec.IsConst() {
			continue
		}
		ctr.keyVecs = append(ctr.keyVecs, vec)
	}
	return nil
}

// sketchBlock feeds every row's packed key into the sketch.
func (ctr *container) sketchBlock(bat *batch.Batch) {
	if ctr.sk == nil {
		ctr.sk = hll.New()
	}
	count := bat.RowCount()
	for row := 0; row < count; row++ {
		key := ctr.buf[:0]
		for _, vec := range ctr.keyVecs {
			key = appendKeyField(key, vec, row)
		}
		ctr.buf = key
		ctr.sk.Insert(key)
	}
}

// appendKeyField frames one column value into the row key: a null
// flag, then the raw bytes, length prefixed for varlen values so
// neighbouring columns cannot run together.
func appendKeyField(key []byte, vec *vector.Vector, row int) []byte {
	if vec.GetNulls().Contains(uint64(row)) {
		return append(key, 1)
	}
	key = append(key, 0)
	if vec.GetType().IsVarlen() {
		v := vec.GetBytesAt(row)
		length := uint32(len(v))
		key = append(key, types.EncodeUint32(&length)...)
		return append(key, v...)
	}
	size := vec.GetType().TypeSize()
	data := vec.UnsafeGetRawData()
	return append(key, data[row*size:(row+1)*size]...)
}
