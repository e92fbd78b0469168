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
	"github.com/colstream/colstream/pkg/common/reuse"
	"github.com/colstream/colstream/pkg/container/batch"
	"github.com/colstream/colstream/pkg/vm"
	"github.com/colstream/colstream/pkg/vm/engine/kvstore"
	"github.com/colstream/colstream/pkg/vm/process"
)

var _ vm.Operator = new(KVScan)

type container struct {
	reader *kvstore.BlockReader

	// bat is the block served by the previous Call, dropped before the
	// next one is decoded.
	bat      *batch.Batch
	finished bool
}

// KVScan is the leaf operator streaming the blocks of one stored
// table.
type KVScan struct {
	ctr container

	// Store is the open block store holding the table.
	Store *kvstore.Store
	// Table is the table to stream.
	Table string

	vm.OperatorBase
}

func (kvScan *KVScan) GetOperatorBase() *vm.OperatorBase {
	return &kvScan.OperatorBase
}

func init() {
	reuse.CreatePool[KVScan](
		func() *KVScan {
			return &KVScan{}
		},
		func(a *KVScan) {
			*a = KVScan{}
		},
		reuse.DefaultOptions[KVScan]().
			WithEnableChecker(),
	)
}

func (kvScan KVScan) TypeName() string {
	return opName
}

func NewArgument() *KVScan {
	return reuse.Alloc[KVScan](nil)
}

func (kvScan *KVScan) Release() {
	if kvScan != nil {
		reuse.Free[KVScan](kvScan, nil)
	}
}

func (kvScan *KVScan) Reset(proc *process.Process, pipelineFailed bool, err error) {
	kvScan.ctr.drop(proc)
}

func (kvScan *KVScan) Free(proc *process.Process, pipelineFailed bool, err error) {
	kvScan.ctr.drop(proc)
}

// drop releases the reader and the pending block. There is nowhere to
// surface the close error from Reset or Free, so it is swallowed.
func (ctr *container) drop(proc *process.Process) {
	if ctr.reader != nil {
		_ = ctr.reader.Close()
		ctr.reader = nil
	}
	if ctr.bat != nil {
		ctr.bat.Clean(proc.Mp())
		ctr.bat = nil
	}
	ctr.finished = false
}
