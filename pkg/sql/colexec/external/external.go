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
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/container/batch"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
	"github.com/colstream/colstream/pkg/vm"
	"github.com/colstream/colstream/pkg/vm/process"
)

const opName = "external"

// nullFlag is the csv spelling of a null field.
const nullFlag = "\\N"

func (external *External) String(buf *bytes.Buffer) {
	buf.WriteString(opName)
	buf.WriteString(": external scan")
}

func (external *External) OpType() vm.OpType {
	return vm.External
}

func (external *External) Prepare(proc *process.Process) error {
	if external.OpAnalyzer == nil {
		external.OpAnalyzer = process.NewAnalyzer(external.GetIdx(), external.IsFirst, external.IsLast, opName)
	} else {
		external.OpAnalyzer.Reset()
	}

	if len(external.Attrs) == 0 || len(external.Attrs) != len(external.Types) {
		return moerr.NewInvalidInput(proc.Ctx, "external scan needs matching column names and types")
	}
	if external.Terminator == 0 {
		external.Terminator = ','
	}
	if external.ctr.bat == nil {
		external.ctr.bat = batchOf(external.Attrs, external.Types)
	}
	return nil
}

// Call reads the next chunk of lines and serves it as one batch.
// End of file closes the source and then ends the stream.
func (external *External) Call(proc *process.Process) (vm.CallResult, error) {
	if err, isCancel := vm.CancelCheck(proc); isCancel {
		return vm.CancelResult, err
	}

	analyzer := external.OpAnalyzer
	analyzer.Start()
	defer analyzer.Stop()

	ctr := &external.ctr
	result := vm.NewCallResult()
	if ctr.finished {
		result.Batch = nil
		result.Status = vm.ExecStop
		return result, nil
	}

	if ctr.reader == nil {
		reader, err := newFileReader(proc.Ctx, external.Path, external.Compression, external.Terminator)
		if err != nil {
			return result, err
		}
		ctr.reader = reader
		ctr.skip = external.IgnoredLines
	}

	want := proc.BatchRows()
	if cap(ctr.lines) < want {
		ctr.lines = make([][]string, want)
	}
	ctr.lines = ctr.lines[:want]
	for {
		start := time.Now()
		lines, cnt, err := ctr.reader.read(proc.Ctx, want, ctr.lines)
		analyzer.AddScanTime(start)
		if err != nil {
			return result, moerr.NewInvalidInput(proc.Ctx, "read csv file %s: %s", external.Path, err.Error())
		}
		ctr.lines = lines
		ctr.readLines += uint64(cnt)
		if cnt < want {
			// the parser drained the file, release it right away.
			if err := ctr.reader.close(proc.Ctx); err != nil {
				return result, err
			}
			ctr.reader = nil
			ctr.finished = true
		}

		rows := lines[:cnt]
		if ctr.skip > 0 {
			drop := ctr.skip
			if drop > uint64(len(rows)) {
				drop = uint64(len(rows))
			}
			rows = rows[drop:]
			ctr.skip -= drop
		}
		if len(rows) == 0 {
			if ctr.finished {
				result.Batch = nil
				result.Status = vm.ExecStop
				return result, nil
			}
			continue
		}

		baseLine := ctr.readLines - uint64(len(rows))
		if err := external.fillBatch(proc, rows, baseLine); err != nil {
			return result, err
		}
		analyzer.Alloc(int64(ctr.bat.Size()))
		analyzer.Output(ctr.bat)
		result.Batch = ctr.bat
		return result, nil
	}
}

func batchOf(attrs []string, typs []types.Type) *batch.Batch {
	bat := batch.New(false, attrs)
	for i, typ := range typs {
		bat.Vecs[i] = vector.NewVec(typ)
	}
	return bat
}

func (external *External) fillBatch(proc *process.Process, rows [][]string, baseLine uint64) error {
	bat := external.ctr.bat
	bat.CleanOnlyData()
	for i, row := range rows {
		if len(row) < len(external.Attrs) {
			return moerr.NewInvalidInput(proc.Ctx,
				"the table column count is larger than the data column count in line %d", baseLine+uint64(i)+1)
		}
	}
	for col, vec := range bat.Vecs {
		if err := fillColumn(proc, vec, external.Types[col], rows, col, baseLine); err != nil {
			return err
		}
	}
	bat.SetRowCount(len(rows))
	return nil
}

// csvField trims and classifies one raw field. Null is the \N marker,
// or an empty field for non character types.
func csvField(field string, isString bool) (string, bool) {
	if !isString {
		field = strings.TrimSpace(field)
	}
	if field == nullFlag {
		return "", true
	}
	if !isString && len(field) == 0 {
		return "", true
	}
	return field, false
}

func parseError(proc *process.Process, field, typeName string, col int, line uint64) error {
	return moerr.NewInvalidInput(proc.Ctx,
		"the input value %q is not %s type for column %d at line %d", field, typeName, col, line)
}

func fillColumn(proc *process.Process, vec *vector.Vector, typ types.Type, rows [][]string, col int, baseLine uint64) error {
	mp := proc.Mp()
	switch typ.Oid {
	case types.T_bool:
		for i, row := range rows {
			field, isNull := csvField(row[col], false)
			if isNull {
				if err := vector.AppendFixed(vec, false, true, mp); err != nil {
					return err
				}
				continue
			}
			v, err := types.ParseBool(field)
			if err != nil {
				return parseError(proc, field, typ.Oid.String(), col, baseLine+uint64(i)+1)
			}
			if err := vector.AppendFixed(vec, v, false, mp); err != nil {
				return err
			}
		}
	case types.T_int8:
		return fillIntColumn[int8](proc, vec, typ, rows, col, baseLine, 8)
	case types.T_int16:
		return fillIntColumn[int16](proc, vec, typ, rows, col, baseLine, 16)
	case types.T_int32:
		return fillIntColumn[int32](proc, vec, typ, rows, col, baseLine, 32)
	case types.T_int64:
		return fillIntColumn[int64](proc, vec, typ, rows, col, baseLine, 64)
	case types.T_uint8:
		return fillUintColumn[uint8](proc, vec, typ, rows, col, baseLine, 8)
	case types.T_uint16:
		return fillUintColumn[uint16](proc, vec, typ, rows, col, baseLine, 16)
	case types.T_uint32:
		return fillUintColumn[uint32](proc, vec, typ, rows, col, baseLine, 32)
	case types.T_uint64:
		return fillUintColumn[uint64](proc, vec, typ, rows, col, baseLine, 64)
	case types.T_float32:
		for i, row := range rows {
			field, isNull := csvField(row[col], false)
			if isNull {
				if err := vector.AppendFixed(vec, float32(0), true, mp); err != nil {
					return err
				}
				continue
			}
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return parseError(proc, field, typ.Oid.String(), col, baseLine+uint64(i)+1)
			}
			if err := vector.AppendFixed(vec, float32(v), false, mp); err != nil {
				return err
			}
		}
	case types.T_float64:
		for i, row := range rows {
			field, isNull := csvField(row[col], false)
			if isNull {
				if err := vector.AppendFixed(vec, float64(0), true, mp); err != nil {
					return err
				}
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return parseError(proc, field, typ.Oid.String(), col, baseLine+uint64(i)+1)
			}
			if err := vector.AppendFixed(vec, v, false, mp); err != nil {
				return err
			}
		}
	case types.T_date:
		for i, row := range rows {
			field, isNull := csvField(row[col], false)
			if isNull {
				if err := vector.AppendFixed(vec, types.Date(0), true, mp); err != nil {
					return err
				}
				continue
			}
			v, err := types.ParseDate(field)
			if err != nil {
				return parseError(proc, field, typ.Oid.String(), col, baseLine+uint64(i)+1)
			}
			if err := vector.AppendFixed(vec, v, false, mp); err != nil {
				return err
			}
		}
	case types.T_time:
		for i, row := range rows {
			field, isNull := csvField(row[col], false)
			if isNull {
				if err := vector.AppendFixed(vec, types.Time(0), true, mp); err != nil {
					return err
				}
				continue
			}
			v, err := types.ParseTime(field, typ.Scale)
			if err != nil {
				return parseError(proc, field, typ.Oid.String(), col, baseLine+uint64(i)+1)
			}
			if err := vector.AppendFixed(vec, v, false, mp); err != nil {
				return err
			}
		}
	case types.T_datetime:
		for i, row := range rows {
			field, isNull := csvField(row[col], false)
			if isNull {
				if err := vector.AppendFixed(vec, types.Datetime(0), true, mp); err != nil {
					return err
				}
				continue
			}
			v, err := types.ParseDatetime(field, typ.Scale)
			if err != nil {
				return parseError(proc, field, typ.Oid.String(), col, baseLine+uint64(i)+1)
			}
			if err := vector.AppendFixed(vec, v, false, mp); err != nil {
				return err
			}
		}
	case types.T_timestamp:
		for i, row := range rows {
			field, isNull := csvField(row[col], false)
			if isNull {
				if err := vector.AppendFixed(vec, types.Timestamp(0), true, mp); err != nil {
					return err
				}
				continue
			}
			v, err := types.ParseTimestamp(field, typ.Scale)
			if err != nil {
				return parseError(proc, field, typ.Oid.String(), col, baseLine+uint64(i)+1)
			}
			if err := vector.AppendFixed(vec, v, false, mp); err != nil {
				return err
			}
		}
	case types.T_decimal64:
		for i, row := range rows {
			field, isNull := csvField(row[col], false)
			if isNull {
				if err := vector.AppendFixed(vec, types.Decimal64(0), true, mp); err != nil {
					return err
				}
				continue
			}
			v, err := types.ParseDecimal64(field, typ.Width, typ.Scale)
			if err != nil {
				return parseError(proc, field, typ.Oid.String(), col, baseLine+uint64(i)+1)
			}
			if err := vector.AppendFixed(vec, v, false, mp); err != nil {
				return err
			}
		}
	case types.T_decimal128:
		for i, row := range rows {
			field, isNull := csvField(row[col], false)
			if isNull {
				if err := vector.AppendFixed(vec, types.Decimal128{}, true, mp); err != nil {
					return err
				}
				continue
			}
			v, err := types.ParseDecimal128(field, typ.Width, typ.Scale)
			if err != nil {
				return parseError(proc, field, typ.Oid.String(), col, baseLine+uint64(i)+1)
			}
			if err := vector.AppendFixed(vec, v, false, mp); err != nil {
				return err
			}
		}
	case types.T_uuid:
		for i, row := range rows {
			field, isNull := csvField(row[col], false)
			if isNull {
				if err := vector.AppendFixed(vec, types.Uuid{}, true, mp); err != nil {
					return err
				}
				continue
			}
			v, err := types.ParseUuid(field)
			if err != nil {
				return parseError(proc, field, typ.Oid.String(), col, baseLine+uint64(i)+1)
			}
			if err := vector.AppendFixed(vec, v, false, mp); err != nil {
				return err
			}
		}
	case types.T_char, types.T_varchar, types.T_json,
		types.T_binary, types.T_varbinary, types.T_blob, types.T_text:
		for _, row := range rows {
			field, isNull := csvField(row[col], true)
			if err := vector.AppendBytes(vec, []byte(field), isNull, mp); err != nil {
				return err
			}
		}
	default:
		return moerr.NewNotSupported(proc.Ctx, "external column type %s", typ.Oid.String())
	}
	return nil
}

func fillIntColumn[T int8 | int16 | int32 | int64](proc *process.Process, vec *vector.Vector, typ types.Type, rows [][]string, col int, baseLine uint64, bitSize int) error {
	mp := proc.Mp()
	for i, row := range rows {
		field, isNull := csvField(row[col], false)
		if isNull {
			if err := vector.AppendFixed(vec, T(0), true, mp); err != nil {
				return err
			}
			continue
		}
		v, err := strconv.ParseInt(field, 10, bitSize)
		if err != nil {
			return parseError(proc, field, typ.Oid.String(), col, baseLine+uint64(i)+1)
		}
		if err := vector.AppendFixed(vec, T(v), false, mp); err != nil {
			return err
		}
	}
	return nil
}

func fillUintColumn[T uint8 | uint16 | uint32 | uint64](proc *process.Process, vec *vector.Vector, typ types.Type, rows [][]string, col int, baseLine uint64, bitSize int) error {
	mp := proc.Mp()
	for i, row := range rows {
		field, isNull := csvField(row[col], false)
		if isNull {
			if err := vector.AppendFixed(vec, T(0), true, mp); err != nil {
				return err
			}
			continue
		}
		v, err := strconv.ParseUint(field, 10, bitSize)
		if err != nil {
			return parseError(proc, field, typ.Oid.String(), col, baseLine+uint64(i)+1)
		}
		if err := vector.AppendFixed(vec, T(v), false, mp); err != nil {
			return err
		}
	}
	return nil
}
