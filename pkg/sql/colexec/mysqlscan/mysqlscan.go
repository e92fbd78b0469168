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
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/container/batch"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
	"github.com/colstream/colstream/pkg/vm"
	"github.com/colstream/colstream/pkg/vm/process"
)

const opName = "mysql_scan"

func (scan *MySQLScan) String(buf *bytes.Buffer) {
	buf.WriteString(opName)
	buf.WriteString(": mysql scan")
}

func (scan *MySQLScan) OpType() vm.OpType {
	return vm.MySQLScan
}

func (scan *MySQLScan) Prepare(proc *process.Process) error {
	if scan.OpAnalyzer == nil {
		scan.OpAnalyzer = process.NewAnalyzer(scan.GetIdx(), scan.IsFirst, scan.IsLast, opName)
	} else {
		scan.OpAnalyzer.Reset()
	}

	if len(scan.Attrs) == 0 || len(scan.Attrs) != len(scan.Types) {
		return moerr.NewInvalidInput(proc.Ctx, "mysql scan needs matching column names and types")
	}
	if scan.Dsn == "" || scan.Query == "" {
		return moerr.NewInvalidInput(proc.Ctx, "mysql scan needs a dsn and a query")
	}
	if scan.newRows == nil {
		scan.newRows = openQuery
	}
	if scan.ctr.bat == nil {
		scan.ctr.bat = batchOf(scan.Attrs, scan.Types)
	}
	return nil
}

// Call scans up to Lim.BatchRows result rows into one batch. The
// result set is closed as soon as it is drained.
func (scan *MySQLScan) Call(proc *process.Process) (vm.CallResult, error) {
	if err, isCancel := vm.CancelCheck(proc); isCancel {
		return vm.CancelResult, err
	}

	analyzer := scan.OpAnalyzer
	analyzer.Start()
	defer analyzer.Stop()

	ctr := &scan.ctr
	result := vm.NewCallResult()
	if ctr.finished {
		result.Batch = nil
		result.Status = vm.ExecStop
		return result, nil
	}

	if ctr.rows == nil {
		if err := scan.open(proc.Ctx); err != nil {
			return result, err
		}
	}

	limit := proc.BatchRows()
	bat := ctr.bat
	bat.CleanOnlyData()
	n := 0
	start := time.Now()
	for n < limit {
		if !ctr.rows.Next() {
			if err := ctr.rows.Err(); err != nil {
				return result, moerr.NewMySQLSource(proc.Ctx, scan.Query, err.Error())
			}
			err := ctr.rows.Close()
			ctr.rows = nil
			ctr.finished = true
			if err != nil {
				return result, moerr.NewMySQLSource(proc.Ctx, scan.Query, err.Error())
			}
			break
		}
		if err := ctr.rows.Scan(ctr.dest...); err != nil {
			return result, moerr.NewMySQLSource(proc.Ctx, scan.Query, err.Error())
		}
		ctr.readRows++
		for col, vec := range bat.Vecs {
			if err := appendField(proc, vec, scan.Types[col], ctr.raw[col], col, ctr.readRows); err != nil {
				return result, err
			}
		}
		n++
	}
	analyzer.AddScanTime(start)

	if n == 0 {
		result.Batch = nil
		result.Status = vm.ExecStop
		return result, nil
	}
	bat.SetRowCount(n)
	analyzer.Alloc(int64(bat.Size()))
	analyzer.Output(bat)
	result.Batch = bat
	return result, nil
}

func (scan *MySQLScan) open(ctx context.Context) error {
	rows, err := scan.newRows(ctx, scan.Dsn, scan.Query)
	if err != nil {
		return moerr.NewMySQLSource(ctx, scan.Query, err.Error())
	}
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return moerr.NewMySQLSource(ctx, scan.Query, err.Error())
	}
	if len(cols) != len(scan.Attrs) {
		_ = rows.Close()
		return moerr.NewMySQLSource(ctx, scan.Query,
			fmt.Sprintf("result has %d columns, want %d", len(cols), len(scan.Attrs)))
	}
	scan.ctr.rows = rows
	if scan.ctr.raw == nil {
		scan.ctr.raw = make([]sql.RawBytes, len(scan.Attrs))
		scan.ctr.dest = make([]interface{}, len(scan.Attrs))
		for i := range scan.ctr.raw {
			scan.ctr.dest[i] = &scan.ctr.raw[i]
		}
	}
	return nil
}

// openQuery runs the statement over a fresh connection. Closing the
// returned source closes both the rows and the database handle.
func openQuery(ctx context.Context, dsn, query string) (RowSource, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &dbRows{Rows: rows, db: db}, nil
}

type dbRows struct {
	*sql.Rows
	db *sql.DB
}

func (r *dbRows) Close() error {
	err := r.Rows.Close()
	if cerr := r.db.Close(); err == nil {
		err = cerr
	}
	return err
}

func batchOf(attrs []string, typs []types.Type) *batch.Batch {
	bat := batch.New(false, attrs)
	for i, typ := range typs {
		bat.Vecs[i] = vector.NewVec(typ)
	}
	return bat
}

func parseError(proc *process.Process, field, typeName string, col int, row uint64) error {
	return moerr.NewInvalidInput(proc.Ctx,
		"the input value %q is not %s type for column %d at row %d", field, typeName, col, row)
}

// appendField converts one scanned field. The driver reports SQL NULL
// as a nil RawBytes, everything else arrives in text form.
func appendField(proc *process.Process, vec *vector.Vector, typ types.Type, field sql.RawBytes, col int, row uint64) error {
	mp := proc.Mp()
	isNull := field == nil
	s := string(field)
	switch typ.Oid {
	case types.T_bool:
		if isNull {
			return vector.AppendFixed(vec, false, true, mp)
		}
		v, err := types.ParseBool(s)
		if err != nil {
			return parseError(proc, s, typ.Oid.String(), col, row)
		}
		return vector.AppendFixed(vec, v, false, mp)
	case types.T_int8:
		return appendInt[int8](proc, vec, typ, s, isNull, 8, col, row)
	case types.T_int16:
		return appendInt[int16](proc, vec, typ, s, isNull, 16, col, row)
	case types.T_int32:
		return appendInt[int32](proc, vec, typ, s, isNull, 32, col, row)
	case types.T_int64:
		return appendInt[int64](proc, vec, typ, s, isNull, 64, col, row)
	case types.T_uint8:
		return appendUint[uint8](proc, vec, typ, s, isNull, 8, col, row)
	case types.T_uint16:
		return appendUint[uint16](proc, vec, typ, s, isNull, 16, col, row)
	case types.T_uint32:
		return appendUint[uint32](proc, vec, typ, s, isNull, 32, col, row)
	case types.T_uint64:
		return appendUint[uint64](proc, vec, typ, s, isNull, 64, col, row)
	case types.T_float32:
		if isNull {
			return vector.AppendFixed(vec, float32(0), true, mp)
		}
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return parseError(proc, s, typ.Oid.String(), col, row)
		}
		return vector.AppendFixed(vec, float32(v), false, mp)
	case types.T_float64:
		if isNull {
			return vector.AppendFixed(vec, float64(0), true, mp)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return parseError(proc, s, typ.Oid.String(), col, row)
		}
		return vector.AppendFixed(vec, v, false, mp)
	case types.T_date:
		if isNull {
			return vector.AppendFixed(vec, types.Date(0), true, mp)
		}
		v, err := types.ParseDate(s)
		if err != nil {
			return parseError(proc, s, typ.Oid.String(), col, row)
		}
		return vector.AppendFixed(vec, v, false, mp)
	case types.T_time:
		if isNull {
			return vector.AppendFixed(vec, types.Time(0), true, mp)
		}
		v, err := types.ParseTime(s, typ.Scale)
		if err != nil {
			return parseError(proc, s, typ.Oid.String(), col, row)
		}
		return vector.AppendFixed(vec, v, false, mp)
	case types.T_datetime:
		if isNull {
			return vector.AppendFixed(vec, types.Datetime(0), true, mp)
		}
		v, err := types.ParseDatetime(s, typ.Scale)
		if err != nil {
			return parseError(proc, s, typ.Oid.String(), col, row)
		}
		return vector.AppendFixed(vec, v, false, mp)
	case types.T_timestamp:
		if isNull {
			return vector.AppendFixed(vec, types.Timestamp(0), true, mp)
		}
		v, err := types.ParseTimestamp(s, typ.Scale)
		if err != nil {
			return parseError(proc, s, typ.Oid.String(), col, row)
		}
		return vector.AppendFixed(vec, v, false, mp)
	case types.T_decimal64:
		if isNull {
			return vector.AppendFixed(vec, types.Decimal64(0), true, mp)
		}
		v, err := types.ParseDecimal64(s, typ.Width, typ.Scale)
		if err != nil {
			return parseError(proc, s, typ.Oid.String(), col, row)
		}
		return vector.AppendFixed(vec, v, false, mp)
	case types.T_decimal128:
		if isNull {
			return vector.AppendFixed(vec, types.Decimal128{}, true, mp)
		}
		v, err := types.ParseDecimal128(s, typ.Width, typ.Scale)
		if err != nil {
			return parseError(proc, s, typ.Oid.String(), col, row)
		}
		return vector.AppendFixed(vec, v, false, mp)
	case types.T_uuid:
		if isNull {
			return vector.AppendFixed(vec, types.Uuid{}, true, mp)
		}
		v, err := types.ParseUuid(s)
		if err != nil {
			return parseError(proc, s, typ.Oid.String(), col, row)
		}
		return vector.AppendFixed(vec, v, false, mp)
	case types.T_char, types.T_varchar, types.T_json,
		types.T_binary, types.T_varbinary, types.T_blob, types.T_text:
		return vector.AppendBytes(vec, field, isNull, mp)
	default:
		return moerr.NewNotSupported(proc.Ctx, "mysql column type %s", typ.Oid.String())
	}
}

func appendInt[T int8 | int16 | int32 | int64](proc *process.Process, vec *vector.Vector, typ types.Type, field string, isNull bool, bitSize int, col int, row uint64) error {
	mp := proc.Mp()
	if isNull {
		return vector.AppendFixed(vec, T(0), true, mp)
	}
	v, err := strconv.ParseInt(field, 10, bitSize)
	if err != nil {
		return parseError(proc, field, typ.Oid.String(), col, row)
	}
	return vector.AppendFixed(vec, T(v), false, mp)
}

func appendUint[T uint8 | uint16 | uint32 | uint64](proc *process.Process, vec *vector.Vector, typ types.Type, field string, isNull bool, bitSize int, col int, row uint64) error {
	mp := proc.Mp()
	if isNull {
		return vector.AppendFixed(vec, T(0), true, mp)
	}
	v, err := strconv.ParseUint(field, 10, bitSize)
	if err != nil {
		return parseError(proc, field, typ.Oid.String(), col, row)
	}
	return vector.AppendFixed(vec, T(v), false, mp)
}
