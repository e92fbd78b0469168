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

package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/common/mpool"
	"github.com/colstream/colstream/pkg/config"
	"github.com/colstream/colstream/pkg/container/batch"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
	"github.com/colstream/colstream/pkg/logutil"
	"github.com/colstream/colstream/pkg/sql/colexec/external"
	"github.com/colstream/colstream/pkg/sql/colexec/kvscan"
	"github.com/colstream/colstream/pkg/sql/colexec/mysqlscan"
	"github.com/colstream/colstream/pkg/sql/colexec/summarize"
	"github.com/colstream/colstream/pkg/vm"
	"github.com/colstream/colstream/pkg/vm/engine/kvstore"
	"github.com/colstream/colstream/pkg/vm/process"

	"github.com/fagongzi/util/format"
	"github.com/panjf2000/ants/v2"
)

// runDistinct deduplicates every input on its own pipeline. An input
// is a csv file, a store table or a sql statement, picked by the
// configured source kind, no input falls back to the configured one.
// Surviving rows go to stdout as csv, or with -out to one file per
// input.
func runDistinct(args []string) error {
	flags := flag.NewFlagSet("distinct", flag.ExitOnError)
	var (
		configFile = flags.String("cfg", defaultConfigFile, "toml configuration of the tool")
		keys       = flags.String("keys", "", "comma separated key columns, overrides the configuration")
		out        = flags.String("out", "", "write distinct rows to csv files, stdout when empty")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}
	if *keys != "" {
		cfg.Distinct.KeyColumns = splitKeys(*keys)
	}
	inputs := flags.Args()
	if len(inputs) == 0 {
		input, err := defaultInput(cfg)
		if err != nil {
			return err
		}
		inputs = []string{input}
	}

	var store *kvstore.Store
	if cfg.Source.Kind == "kv" {
		if store, err = openStore(cfg); err != nil {
			return err
		}
		defer func() {
			_ = store.Close()
		}()
	}

	// every pipeline shares one stdout writer, -out gives each input
	// its own file.
	var shared *csvSink
	if *out == "" {
		shared = newStdoutSink()
	}

	workers := len(inputs)
	if n := runtime.NumCPU(); workers > n {
		workers = n
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return err
	}
	defer pool.Release()

	results := make([]pipelineResult, len(inputs))
	var wg sync.WaitGroup
	for i, input := range inputs {
		i, input := i, input
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			results[i] = runPipeline(cfg, store, input, shared, *out, i, len(inputs))
		}); err != nil {
			results[i] = pipelineResult{input: input, err: err}
			wg.Done()
		}
	}
	wg.Wait()

	var firstErr error
	if shared != nil {
		firstErr = shared.close()
	}
	for i := range results {
		res := &results[i]
		if res.err != nil {
			logutil.Errorf("distinct %s failed: %v", res.input, res.err)
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		logutil.Infof("distinct %s: %s rows in, %s bytes in, %s distinct out in %s blocks, about %s by sketch",
			res.input,
			format.Uint64ToString(res.stats.Rows),
			format.Uint64ToString(res.stats.Bytes),
			format.Uint64ToString(res.rows),
			format.Uint64ToString(res.blocks),
			format.Uint64ToString(res.stats.ApproxDistinct))
	}
	return firstErr
}

func defaultInput(cfg *config.Config) (string, error) {
	switch cfg.Source.Kind {
	case "csv":
		return cfg.Source.Path, nil
	case "kv":
		return cfg.Source.Table, nil
	case "mysql":
		return cfg.Source.Query, nil
	}
	return "", moerr.NewBadConfigNoCtx("no source kind")
}

// pipelineResult is what one input's run reports back.
type pipelineResult struct {
	input string
	// rows and blocks count the distinct output.
	rows   uint64
	blocks uint64
	// stats describes the input side, measured before deduplication.
	stats summarize.Stats
	err   error
}

// runPipeline drains source -> summarize -> distinct for one input and
// writes the surviving rows. Every run owns its operators, process and
// memory pool, runs on different inputs share only the store and the
// stdout writer.
func runPipeline(cfg *config.Config, store *kvstore.Store, input string, shared *csvSink, outBase string, idx, total int) (res pipelineResult) {
	res.input = input
	defer func() {
		if e := recover(); e != nil {
			res.err = moerr.ConvertPanicError(context.Background(), e)
		}
	}()

	mp := mpool.MustNewNoFixed("cs-tool-distinct")
	defer mpool.DeleteMPool(mp)
	proc := process.New(context.Background(), mp)
	proc.Base.Lim.BatchRows = cfg.Source.BatchRows
	proc.SetQueryId(input)
	defer proc.Free()

	src, attrs, err := buildSource(proc.Ctx, cfg, store, input)
	if err != nil {
		res.err = err
		return res
	}
	sum := summarize.NewArgument()
	sum.KeyColumns = append([]string{}, cfg.Distinct.KeyColumns...)
	sum.AppendChild(src)
	dist := cfg.DistinctOptions()
	dist.AppendChild(sum)
	src.SetInfo(&vm.OperatorInfo{Idx: 0, IsFirst: true})
	sum.SetInfo(&vm.OperatorInfo{Idx: 1})
	dist.SetInfo(&vm.OperatorInfo{Idx: 2, IsLast: true})
	defer func() {
		freePipeline(dist, proc, res.err != nil, res.err)
	}()

	if res.err = vm.Prepare(dist, proc); res.err != nil {
		return res
	}

	sink := shared
	if sink == nil {
		if sink, res.err = newFileSink(outFileName(outBase, idx, total), attrs); res.err != nil {
			return res
		}
		defer func() {
			if cerr := sink.close(); cerr != nil && res.err == nil {
				res.err = cerr
			}
		}()
	}

	for {
		result, err := dist.Call(proc)
		if err != nil {
			res.err = err
			break
		}
		if result.Batch == nil || result.Status == vm.ExecStop {
			break
		}
		if result.Batch.IsEmpty() {
			continue
		}
		if err := writeBatch(sink, result.Batch); err != nil {
			res.err = err
			break
		}
		res.rows += uint64(result.Batch.RowCount())
		res.blocks++
	}
	res.stats = sum.Stats()
	return res
}

// buildSource makes the leaf operator for one input and reports the
// column names the output will carry.
func buildSource(ctx context.Context, cfg *config.Config, store *kvstore.Store, input string) (vm.Operator, []string, error) {
	switch cfg.Source.Kind {
	case "csv":
		attrs, typs, err := cfg.Source.Schema()
		if err != nil {
			return nil, nil, err
		}
		arg := external.NewArgument()
		arg.Path = input
		arg.Compression = cfg.Source.Compression
		arg.Attrs = attrs
		arg.Types = typs
		return arg, attrs, nil
	case "kv":
		def, err := store.GetTableDef(ctx, input)
		if err != nil {
			return nil, nil, err
		}
		arg := kvscan.NewArgument()
		arg.Store = store
		arg.Table = input
		return arg, def.Attrs, nil
	case "mysql":
		attrs, typs, err := cfg.Source.Schema()
		if err != nil {
			return nil, nil, err
		}
		arg := mysqlscan.NewArgument()
		arg.Dsn = cfg.Source.Dsn
		arg.Query = input
		arg.Attrs = attrs
		arg.Types = typs
		return arg, attrs, nil
	}
	return nil, nil, moerr.NewBadConfigNoCtx("no source kind")
}

// freePipeline releases every operator of the tree, leaves first, and
// returns the argument structs to their pools.
func freePipeline(root vm.Operator, proc *process.Process, failed bool, err error) {
	_ = vm.HandleAllOp(nil, root, func(_ vm.Operator, op vm.Operator) error {
		op.Free(proc, failed, err)
		op.Release()
		return nil
	})
}

// csvSink serializes rows from concurrently running pipelines into one
// csv stream.
type csvSink struct {
	mu sync.Mutex
	w  *csv.Writer
	f  *os.File
}

func newStdoutSink() *csvSink {
	return &csvSink{w: csv.NewWriter(os.Stdout)}
}

// newFileSink creates the file and writes the column names as the
// header line.
func newFileSink(path string, header []string) (*csvSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &csvSink{w: w, f: f}, nil
}

func (s *csvSink) writeRow(record []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(record)
}

// close flushes the writer. Files close, stdout stays open.
func (s *csvSink) close() error {
	s.w.Flush()
	err := s.w.Error()
	if s.f != nil {
		if cerr := s.f.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// outFileName names the per input output file. A single input writes
// the file as given, several inputs number them from 1.
func outFileName(base string, idx, total int) string {
	if total == 1 {
		return base
	}
	return fmt.Sprintf("%s.%d", base, idx+1)
}

func splitKeys(s string) []string {
	parts := strings.Split(s, ",")
	keys := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			keys = append(keys, part)
		}
	}
	return keys
}

func writeBatch(sink *csvSink, bat *batch.Batch) error {
	record := make([]string, len(bat.Vecs))
	for row := 0; row < bat.RowCount(); row++ {
		for i, vec := range bat.Vecs {
			record[i] = formatCell(vec, row)
		}
		if err := sink.writeRow(record); err != nil {
			return err
		}
	}
	return nil
}

// formatCell renders one cell the way a csv load would read it back,
// null as \N after the mysql convention.
func formatCell(vec *vector.Vector, row int) string {
	if vec.IsConstNull() || vec.GetNulls().Contains(uint64(row)) {
		return "\\N"
	}
	switch vec.GetType().Oid {
	case types.T_bool:
		return strconv.FormatBool(vector.GetFixedAtWithTypeCheck[bool](vec, row))
	case types.T_int8:
		return format.Int64ToString(int64(vector.GetFixedAtWithTypeCheck[int8](vec, row)))
	case types.T_int16:
		return format.Int64ToString(int64(vector.GetFixedAtWithTypeCheck[int16](vec, row)))
	case types.T_int32:
		return format.Int64ToString(int64(vector.GetFixedAtWithTypeCheck[int32](vec, row)))
	case types.T_int64:
		return format.Int64ToString(vector.GetFixedAtWithTypeCheck[int64](vec, row))
	case types.T_uint8:
		return format.Uint64ToString(uint64(vector.GetFixedAtWithTypeCheck[uint8](vec, row)))
	case types.T_uint16:
		return format.Uint64ToString(uint64(vector.GetFixedAtWithTypeCheck[uint16](vec, row)))
	case types.T_uint32:
		return format.Uint64ToString(uint64(vector.GetFixedAtWithTypeCheck[uint32](vec, row)))
	case types.T_uint64:
		return format.Uint64ToString(vector.GetFixedAtWithTypeCheck[uint64](vec, row))
	case types.T_float32:
		return strconv.FormatFloat(float64(vector.GetFixedAtWithTypeCheck[float32](vec, row)), 'g', -1, 32)
	case types.T_float64:
		return strconv.FormatFloat(vector.GetFixedAtWithTypeCheck[float64](vec, row), 'g', -1, 64)
	case types.T_date:
		return vector.GetFixedAtWithTypeCheck[types.Date](vec, row).String()
	case types.T_datetime:
		return vector.GetFixedAtWithTypeCheck[types.Datetime](vec, row).String()
	case types.T_time:
		return vector.GetFixedAtWithTypeCheck[types.Time](vec, row).String()
	case types.T_timestamp:
		return vector.GetFixedAtWithTypeCheck[types.Timestamp](vec, row).String()
	case types.T_decimal64:
		return vector.GetFixedAtWithTypeCheck[types.Decimal64](vec, row).String()
	case types.T_decimal128:
		return vector.GetFixedAtWithTypeCheck[types.Decimal128](vec, row).String()
	case types.T_uuid:
		return vector.GetFixedAtWithTypeCheck[types.Uuid](vec, row).String()
	case types.T_char, types.T_varchar, types.T_json, types.T_blob, types.T_text,
		types.T_binary, types.T_varbinary:
		return vec.GetStringAt(row)
	}
	panic(moerr.NewInternalErrorNoCtx("cannot format a %s cell", vec.GetType().String()))
}
