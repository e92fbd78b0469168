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

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/vm/process"
)

// HandleAllOp walks the tree below op children first, applying fn to
// every (parent, op) pair. The root is visited with a nil parent.
func HandleAllOp(parentOp Operator, op Operator, fn func(parentOp Operator, op Operator) error) error {
	for _, child := range op.GetOperatorBase().Children {
		if err := HandleAllOp(op, child, fn); err != nil {
			return err
		}
	}
	return fn(parentOp, op)
}

// HandleLeafOp applies fn to the leaves only.
func HandleLeafOp(parentOp Operator, op Operator, fn func(parentOp Operator, op Operator) error) error {
	base := op.GetOperatorBase()
	if len(base.Children) == 0 {
		return fn(parentOp, op)
	}
	for _, child := range base.Children {
		if err := HandleLeafOp(op, child, fn); err != nil {
			return err
		}
	}
	return nil
}

// String writes the pipeline in plan order, leaves first.
func String(rootOp Operator, buf *bytes.Buffer) {
	first := true
	_ = HandleAllOp(nil, rootOp, func(_ Operator, op Operator) error {
		if !first {
			buf.WriteString(" -> ")
		}
		op.String(buf)
		first = false
		return nil
	})
}

// Prepare readies the tree from the leaves up.
func Prepare(op Operator, proc *process.Process) error {
	for _, child := range op.GetOperatorBase().Children {
		if err := Prepare(child, proc); err != nil {
			return err
		}
	}
	return op.Prepare(proc)
}

// Run drains the pipeline rooted at op. Operator panics surface as
// errors instead of killing the process.
func Run(op Operator, proc *process.Process) (end bool, err error) {
	defer func() {
		if e := recover(); e != nil {
			err = moerr.ConvertPanicError(proc.Ctx, e)
		}
	}()

	for {
		result, err := op.Call(proc)
		if err != nil {
			return false, err
		}
		if result.Status == ExecStop || result.Batch == nil {
			return true, nil
		}
	}
}
