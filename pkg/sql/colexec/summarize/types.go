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
	hll "github.com/axiomhq/hyperloglog"

	"github.com/colstream/colstream/pkg/common/reuse"
	"github.com/colstream/colstream/pkg/container/vector"
	"github.com/colstream/colstream/pkg/vm"
	"github.com/colstream/colstream/pkg/vm/process"
)

var _ vm.Operator = new(Summarize)

type container struct {
	// sk sketches the packed keys, built on the first keyed block.
	sk      *hll.Sketch
	keyVecs []*vector.Vector

	// buf is the reused per row key buffer, the sketch hashes it
	// without keeping a reference.
	buf []byte

	rows  uint64
	bytes uint64
	// unkeyedRows counts rows of blocks with no usable key column,
	// every such row is its own key.
	unkeyedRows uint64
}

// Summarize forwards blocks unchanged while keeping stream totals and
// an approximate distinct count over the key columns.
type Summarize struct {
	ctr container

	// KeyColumns picks the sketched columns by name. Empty means every
	// column.
	KeyColumns []string

	vm.OperatorBase
}

// Stats is the summary of a drained stream.
type Stats struct {
	Rows  uint64
	Bytes uint64
	// ApproxDistinct estimates how many distinct keys went through.
	ApproxDistinct uint64
}

func (summarize *Summarize) Stats() Stats {
	ctr := &summarize.ctr
	st := Stats{Rows: ctr.rows, Bytes: ctr.bytes}
	if ctr.sk != nil {
		st.ApproxDistinct = ctr.sk.Estimate()
	}
	st.ApproxDistinct += ctr.unkeyedRows
	return st
}

func (summarize *Summarize) GetOperatorBase() *vm.OperatorBase {
	return &summarize.OperatorBase
}

func init() {
	reuse.CreatePool[Summarize](
		func() *Summarize {
			return &Summarize{}
		},
		func(a *Summarize) {
			*a = Summarize{}
		},
		reuse.DefaultOptions[Summarize]().
			WithEnableChecker(),
	)
}

func (summarize Summarize) TypeName() string {
	return opName
}

func NewArgument() *Summarize {
	return reuse.Alloc[Summarize](nil)
}

func (summarize *Summarize) Release() {
	if summarize != nil {
		reuse.Free[Summarize](summarize, nil)
	}
}

func (summarize *Summarize) Reset(proc *process.Process, pipelineFailed bool, err error) {
	ctr := &summarize.ctr
	ctr.sk = nil
	ctr.keyVecs = ctr.keyVecs[:0]
	ctr.buf = ctr.buf[:0]
	ctr.rows = 0
	ctr.bytes = 0
	ctr.unkeyedRows = 0
}

func (summarize *Summarize) Free(proc *process.Process, pipelineFailed bool, err error) {
	ctr := &summarize.ctr
	ctr.sk = nil
	ctr.keyVecs = nil
	ctr.buf = nil
	ctr.rows = 0
	ctr.bytes = 0
	ctr.unkeyedRows = 0
}
