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

package external

import (
	"github.com/colstream/colstream/pkg/common/reuse"
	"github.com/colstream/colstream/pkg/container/batch"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/vm"
	"github.com/colstream/colstream/pkg/vm/process"
)

var _ vm.Operator = new(External)

type container struct {
	reader *fileReader
	bat    *batch.Batch
	lines  [][]string

	// skip counts header lines still to drop, readLines counts every
	// line consumed from the file so errors can name one.
	skip      uint64
	readLines uint64
	finished  bool
}

// External is the leaf operator streaming one delimited file into
// batches.
type External struct {
	ctr container

	// Path is the file to stream.
	Path string
	// Compression is none, lz4 or auto. Auto and the empty string
	// detect by filename suffix.
	Compression string
	// Attrs and Types give the column schema in file order.
	Attrs []string
	Types []types.Type
	// Terminator separates fields, comma when left zero.
	Terminator rune
	// IgnoredLines drops that many leading lines, headers mostly.
	IgnoredLines uint64

	vm.OperatorBase
}

func (external *External) GetOperatorBase() *vm.OperatorBase {
	return &external.OperatorBase
}

func init() {
	reuse.CreatePool[External](
		func() *External {
			return &External{}
		},
		func(a *External) {
			*a = External{}
		},
		reuse.DefaultOptions[External]().
			WithEnableChecker(),
	)
}

func (external External) TypeName() string {
	return opName
}

func NewArgument() *External {
	return reuse.Alloc[External](nil)
}

func (external *External) Release() {
	if external != nil {
		reuse.Free[External](external, nil)
	}
}

func (external *External) Reset(proc *process.Process, pipelineFailed bool, err error) {
	ctr := &external.ctr
	if ctr.reader != nil {
		_ = ctr.reader.close(proc.Ctx)
		ctr.reader = nil
	}
	if ctr.bat != nil {
		ctr.bat.CleanOnlyData()
	}
	ctr.skip = 0
	ctr.readLines = 0
	ctr.finished = false
}

func (external *External) Free(proc *process.Process, pipelineFailed bool, err error) {
	ctr := &external.ctr
	if ctr.reader != nil {
		_ = ctr.reader.close(proc.Ctx)
		ctr.reader = nil
	}
	if ctr.bat != nil {
		ctr.bat.Clean(proc.Mp())
		ctr.bat = nil
	}
	ctr.lines = nil
	ctr.skip = 0
	ctr.readLines = 0
	ctr.finished = false
}
