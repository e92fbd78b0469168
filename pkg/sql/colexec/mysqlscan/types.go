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

package mysqlscan

import (
	"context"
	"database/sql"

	"github.com/colstream/colstream/pkg/common/reuse"
	"github.com/colstream/colstream/pkg/container/batch"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/vm"
	"github.com/colstream/colstream/pkg/vm/process"
)

var _ vm.Operator = new(MySQLScan)

// RowSource is the slice of the sql.Rows surface the scan consumes.
// *sql.Rows satisfies it directly, the generated mock drives tests
// without a server.
type RowSource interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close() error
}

type container struct {
	rows RowSource
	bat  *batch.Batch

	// raw holds one scanned row, dest aliases it so Scan can fill it.
	raw  []sql.RawBytes
	dest []interface{}

	readRows uint64
	finished bool
}

// MySQLScan is a leaf operator streaming one query result into
// batches.
type MySQLScan struct {
	ctr container

	// Dsn is the go-sql-driver data source name.
	Dsn string
	// Query is the statement whose result feeds the pipeline.
	Query string
	// Attrs names the result columns in order.
	Attrs []string
	// Types gives the column type for each entry of Attrs.
	Types []types.Type

	// newRows opens the streamed result. Swapped out in tests.
	newRows func(ctx context.Context, dsn, query string) (RowSource, error)

	vm.OperatorBase
}

func (scan *MySQLScan) GetOperatorBase() *vm.OperatorBase {
	return &scan.OperatorBase
}

func init() {
	reuse.CreatePool[MySQLScan](
		func() *MySQLScan {
			return &MySQLScan{}
		},
		func(a *MySQLScan) {
			*a = MySQLScan{}
		},
		reuse.DefaultOptions[MySQLScan]().
			WithEnableChecker(),
	)
}

func (scan MySQLScan) TypeName() string {
	return opName
}

func NewArgument() *MySQLScan {
	return reuse.Alloc[MySQLScan](nil)
}

func (scan *MySQLScan) Release() {
	if scan != nil {
		reuse.Free[MySQLScan](scan, nil)
	}
}

func (scan *MySQLScan) Reset(proc *process.Process, pipelineFailed bool, err error) {
	scan.ctr.closeRows()
	if scan.ctr.bat != nil {
		scan.ctr.bat.CleanOnlyData()
	}
	scan.ctr.readRows = 0
	scan.ctr.finished = false
}

func (scan *MySQLScan) Free(proc *process.Process, pipelineFailed bool, err error) {
	scan.ctr.closeRows()
	if scan.ctr.bat != nil {
		scan.ctr.bat.Clean(proc.Mp())
		scan.ctr.bat = nil
	}
	scan.ctr.raw = nil
	scan.ctr.dest = nil
	scan.ctr.readRows = 0
	scan.ctr.finished = false
}

// closeRows drops the result set. There is nowhere to surface the
// close error from Reset or Free, so it is swallowed.
func (ctr *container) closeRows() {
	if ctr.rows != nil {
		_ = ctr.rows.Close()
		ctr.rows = nil
	}
}
