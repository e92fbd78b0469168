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
	"fmt"

	"github.com/colstream/colstream/pkg/common/hashmap"
	"github.com/colstream/colstream/pkg/common/reuse"
	"github.com/colstream/colstream/pkg/container/vector"
	"github.com/colstream/colstream/pkg/vm"
	"github.com/colstream/colstream/pkg/vm/process"
)

var _ vm.Operator = new(Distinct)

// OverflowMode tells Call what to do once the distinct set outgrows
// MaxRows or MaxBytes.
type OverflowMode int

const (
	// OverflowThrow fails the stream with ErrDistinctLimitExceeded.
	OverflowThrow OverflowMode = iota
	// OverflowBreak ends the stream early without an error.
	OverflowBreak
)

func (m OverflowMode) String() string {
	switch m {
	case OverflowThrow:
		return "throw"
	case OverflowBreak:
		return "break"
	}
	return fmt.Sprintf("overflow(%d)", int(m))
}

type vmState int

const (
	receiving vmState = iota
	ended
)

type setVariant int

const (
	// setNone means no usable block has arrived yet.
	setNone setVariant = iota
	// setH8 packs all key columns into a uint64 per row.
	setH8
	// setHStr hashes fixed width keys wider than 8 bytes.
	setHStr
	// setHBytes pools the exact key bytes for keys with at least one
	// var length column.
	setHBytes
)

type container struct {
	state vmState
	typ   setVariant

	// key columns resolved on the current block.
	keyNames []string
	keyVecs  []*vector.Vector

	// packed key width in bytes, null flags included.
	keyWidth    int
	keyNullable bool

	intHashMap   *hashmap.IntHashMap
	strHashMap   *hashmap.StrHashMap
	bytesHashMap *hashmap.BytesHashMap
	itr          hashmap.Iterator

	inserted  []uint8
	zInserted []uint8
	sels      []int64

	// totals over the whole stream, refreshed after every insertion
	// pass.
	rowCount  uint64
	byteCount uint64
}

// Distinct drops every row whose key was already seen earlier in the
// stream. Rows keep their first occurrence order.
type Distinct struct {
	ctr container

	// KeyColumns are the distinct key column names, in order. Empty
	// means every non constant column of each block.
	KeyColumns []string

	// MaxRows and MaxBytes bound the distinct set, 0 means unlimited.
	MaxRows  uint64
	MaxBytes uint64
	// OverflowMode picks the reaction to a violated bound.
	OverflowMode OverflowMode

	// RowCountHint stops pulling once that many distinct rows were
	// emitted, 0 disables it. With it set the output may miss rows, so
	// it only fits plans that cut the stream anyway.
	RowCountHint uint64

	vm.OperatorBase
}

func (distinct *Distinct) GetOperatorBase() *vm.OperatorBase {
	return &distinct.OperatorBase
}

func init() {
	reuse.CreatePool[Distinct](
		func() *Distinct {
			return &Distinct{}
		},
		func(a *Distinct) {
			*a = Distinct{}
		},
		reuse.DefaultOptions[Distinct]().
			WithEnableChecker(),
	)
}

func (distinct Distinct) TypeName() string {
	return opName
}

func NewArgument() *Distinct {
	return reuse.Alloc[Distinct](nil)
}

func (distinct *Distinct) Release() {
	if distinct != nil {
		reuse.Free[Distinct](distinct, nil)
	}
}

func (distinct *Distinct) Reset(proc *process.Process, pipelineFailed bool, err error) {
	distinct.ctr.reset()
}

func (distinct *Distinct) Free(proc *process.Process, pipelineFailed bool, err error) {
	distinct.ctr.reset()
	distinct.ctr.inserted = nil
	distinct.ctr.zInserted = nil
	distinct.ctr.sels = nil
}

func (ctr *container) reset() {
	ctr.state = receiving
	ctr.typ = setNone
	ctr.keyNames = nil
	ctr.keyVecs = nil
	ctr.keyWidth = 0
	ctr.keyNullable = false
	ctr.cleanHashMap()
	ctr.itr = nil
	ctr.sels = ctr.sels[:0]
	ctr.rowCount = 0
	ctr.byteCount = 0
}

func (ctr *container) cleanHashMap() {
	if ctr.intHashMap != nil {
		ctr.intHashMap.Free()
		ctr.intHashMap = nil
	}
	if ctr.strHashMap != nil {
		ctr.strHashMap.Free()
		ctr.strHashMap = nil
	}
	if ctr.bytesHashMap != nil {
		ctr.bytesHashMap.Free()
		ctr.bytesHashMap = nil
	}
}

// distinctRowCount is the number of distinct rows seen so far.
func (ctr *container) distinctRowCount() uint64 {
	return ctr.rowCount
}
