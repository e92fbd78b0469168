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
	"flag"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/common/mpool"
	"github.com/colstream/colstream/pkg/config"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/logutil"
	"github.com/colstream/colstream/pkg/sql/colexec/external"
	"github.com/colstream/colstream/pkg/vm"
	"github.com/colstream/colstream/pkg/vm/engine/kvstore"
	"github.com/colstream/colstream/pkg/vm/process"

	"github.com/fagongzi/util/format"
)

// runLoad streams csv files into one table of the block store, one
// stored block per source batch. The table is created from the
// configured column schema when it does not exist yet.
func runLoad(args []string) error {
	flags := flag.NewFlagSet("load", flag.ExitOnError)
	var (
		configFile = flags.String("cfg", defaultConfigFile, "toml configuration of the tool")
		table      = flags.String("table", "", "target table, the [source] table when empty")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}
	files := flags.Args()
	if len(files) == 0 {
		return moerr.NewInvalidInputNoCtx("load needs at least one csv file")
	}
	target := *table
	if target == "" {
		target = cfg.Source.Table
	}
	if target == "" {
		return moerr.NewInvalidInputNoCtx("load needs a target table")
	}
	attrs, typs, err := cfg.Source.Schema()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	ctx := context.Background()
	if err := ensureTable(ctx, store, target, attrs, typs); err != nil {
		return err
	}

	var totalBlocks, totalRows uint64
	for _, file := range files {
		blocks, rows, err := loadFile(ctx, cfg, store, target, file, attrs, typs)
		if err != nil {
			return err
		}
		logutil.Infof("loaded %s into %s, %s blocks, %s rows",
			file, target, format.Uint64ToString(blocks), format.Uint64ToString(rows))
		totalBlocks += blocks
		totalRows += rows
	}
	logutil.Infof("load done, %s blocks, %s rows",
		format.Uint64ToString(totalBlocks), format.Uint64ToString(totalRows))
	return nil
}

// ensureTable creates the table when missing. An existing table must
// carry the configured schema, appending blocks of another shape would
// poison every later scan.
func ensureTable(ctx context.Context, store *kvstore.Store, table string, attrs []string, typs []types.Type) error {
	def, err := store.GetTableDef(ctx, table)
	if err != nil {
		if !moerr.IsMoErrCode(err, moerr.ErrNoSuchTable) {
			return err
		}
		return store.CreateTable(ctx, kvstore.TableDef{Name: table, Attrs: attrs, Types: typs})
	}
	if len(def.Attrs) != len(attrs) {
		return moerr.NewInvalidInputNoCtx("table %s has %d columns, the configuration has %d",
			table, len(def.Attrs), len(attrs))
	}
	for i := range attrs {
		if def.Attrs[i] != attrs[i] || def.Types[i].Oid != typs[i].Oid {
			return moerr.NewInvalidInputNoCtx("table %s column %d is %s %s, the configuration has %s %s",
				table, i, def.Attrs[i], def.Types[i].String(), attrs[i], typs[i].String())
		}
	}
	return nil
}

func loadFile(ctx context.Context, cfg *config.Config, store *kvstore.Store, table, file string, attrs []string, typs []types.Type) (blocks, rows uint64, err error) {
	mp := mpool.MustNewNoFixed("cs-tool-load")
	defer mpool.DeleteMPool(mp)
	proc := process.New(ctx, mp)
	proc.Base.Lim.BatchRows = cfg.Source.BatchRows
	proc.SetQueryId(file)
	defer proc.Free()

	arg := external.NewArgument()
	arg.Path = file
	arg.Compression = cfg.Source.Compression
	arg.Attrs = attrs
	arg.Types = typs
	defer func() {
		arg.Free(proc, err != nil, err)
		arg.Release()
	}()

	if err = arg.Prepare(proc); err != nil {
		return 0, 0, err
	}
	for {
		var result vm.CallResult
		if result, err = arg.Call(proc); err != nil {
			return blocks, rows, err
		}
		if result.Batch == nil || result.Status == vm.ExecStop {
			return blocks, rows, nil
		}
		if result.Batch.IsEmpty() {
			continue
		}
		if _, err = store.AppendBlock(ctx, table, result.Batch); err != nil {
			return blocks, rows, err
		}
		blocks++
		rows += uint64(result.Batch.RowCount())
	}
}
