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

package vm

import (
	"bytes"
	"time"

	"github.com/colstream/colstream/pkg/container/batch"
	"github.com/colstream/colstream/pkg/vm/process"
)

type OpType int

const (
	ValueScan OpType = iota
	External
	MySQLScan
	KVScan
	Distinct
	Summarize
	Mock

	// LastInstructionOp is not a true operator, it marks the end of
	// the opcode space.
	LastInstructionOp
)

// Operator is the pull contract every pipeline stage implements.
// Call returns batches until end of data, signalled by a nil batch
// with ExecStop.
type Operator interface {
	// Free releases all memory the operator allocated from the
	// process pool. pipelineFailed tells how the pipeline ended.
	Free(proc *process.Process, pipelineFailed bool, err error)

	// Reset cleans state so the operator can run again, keeping
	// memory that can be reused.
	Reset(proc *process.Process, pipelineFailed bool, err error)

	// String appends the operator's plan form to buf.
	String(buf *bytes.Buffer)

	OpType() OpType

	// Prepare readies the operator for execution.
	Prepare(proc *process.Process) error

	// Call produces the next result.
	Call(proc *process.Process) (CallResult, error)

	// Release returns the argument struct to its reuse pool.
	Release()

	SetInfo(info *OperatorInfo)
	AppendChild(child Operator)

	GetOperatorBase() *OperatorBase
}

type OperatorBase struct {
	OperatorInfo
	Children   []Operator
	OpAnalyzer process.Analyzer
}

func (o *OperatorBase) SetInfo(info *OperatorInfo) {
	o.OperatorInfo = *info
}

func (o *OperatorBase) NumChildren() int {
	return len(o.Children)
}

func (o *OperatorBase) AppendChild(child Operator) {
	o.Children = append(o.Children, child)
}

func (o *OperatorBase) SetChildren(children []Operator) {
	o.Children = children
}

func (o *OperatorBase) GetChildren(idx int) Operator {
	return o.Children[idx]
}

func (o *OperatorBase) GetIdx() int {
	return o.Idx
}

func (o *OperatorBase) GetIsFirst() bool {
	return o.IsFirst
}

func (o *OperatorBase) GetIsLast() bool {
	return o.IsLast
}

var CancelResult = CallResult{
	Status: ExecStop,
}

// CancelCheck reports whether the process context ended, returning
// its error when it did.
func CancelCheck(proc *process.Process) (error, bool) {
	select {
	case <-proc.Ctx.Done():
		return proc.Ctx.Err(), true
	default:
		return nil, false
	}
}

// ChildrenCall pulls the next result from a child, charging the time
// to the child on the caller's analyzer.
func ChildrenCall(o Operator, proc *process.Process, anal process.Analyzer) (CallResult, error) {
	beforeChildrenCall := time.Now()
	result, err := o.Call(proc)
	anal.ChildrenCallStop(beforeChildrenCall)
	return result, err
}

type ExecStatus int

const (
	ExecStop ExecStatus = iota
	ExecNext
	ExecHasMore
)

type CallResult struct {
	Status ExecStatus
	Batch  *batch.Batch
}

func NewCallResult() CallResult {
	return CallResult{
		Status: ExecNext,
	}
}

type OperatorInfo struct {
	Idx     int
	IsFirst bool
	IsLast  bool
}
