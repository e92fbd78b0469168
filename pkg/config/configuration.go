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

package config

import (
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/logutil"
	"github.com/colstream/colstream/pkg/sql/colexec/distinct"
)

const (
	//default row count per block read from a source
	defaultBatchRows int64 = 8192

	//default log level
	defaultLogLevel = "info"

	//default log format
	defaultLogFormat = "console"

	//default maximum of log file size, in MB
	defaultLogMaxSize = 512
)

// DistinctParameters of the distinct operator
type DistinctParameters struct {
	//the distinct key, empty means every column
	KeyColumns []string `toml:"keyColumns"`

	//row bound of the distinct set. default: 0, unlimited
	MaxRows uint64 `toml:"maxRows"`

	//byte bound of the distinct set. default: 0, unlimited
	MaxBytes uint64 `toml:"maxBytes"`

	//what a full set does, "throw" or "break". default: throw
	OverflowMode string `toml:"overflowMode"`

	//stop reading once that many distinct rows went out. default: 0, off
	RowCountHint uint64 `toml:"rowCountHint"`
}

// SourceParameters of the input stream
type SourceParameters struct {
	//kind of the source, "csv", "kv" or "mysql"
	Kind string `toml:"kind"`

	//the csv file of the csv kind
	Path string `toml:"path"`

	//compression of the csv file, "none", "lz4" or "auto". default: auto
	Compression string `toml:"compression"`

	//the table of the kv kind, also the target of cs-tool load
	Table string `toml:"table"`

	//the connection string of the mysql kind
	Dsn string `toml:"dsn"`

	//the statement of the mysql kind
	Query string `toml:"query"`

	//the column schema of csv and mysql sources, "name:type" entries
	Columns []string `toml:"columns"`

	//row count per block. default: 8192
	BatchRows int64 `toml:"batchRows"`
}

// StoreParameters of the block store
type StoreParameters struct {
	//the pebble directory
	Path string `toml:"path"`
}

// Config is one cs-tool configuration file.
type Config struct {
	Distinct DistinctParameters `toml:"distinct"`
	Log      logutil.LogConfig  `toml:"log"`
	Source   SourceParameters   `toml:"source"`
	Store    StoreParameters    `toml:"store"`
}

// ParseConfig reads the file, fills defaults and validates.
func ParseConfig(file string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(file, cfg); err != nil {
		return nil, moerr.NewBadConfigNoCtx("parse %s: %s", file, err.Error())
	}
	cfg.SetDefaultValues()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfigFromString is ParseConfig over in memory data.
func ParseConfigFromString(data string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.Decode(data, cfg); err != nil {
		return nil, moerr.NewBadConfigNoCtx("parse config: %s", err.Error())
	}
	cfg.SetDefaultValues()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) SetDefaultValues() {
	if c.Distinct.OverflowMode == "" {
		c.Distinct.OverflowMode = "throw"
	}
	if c.Source.BatchRows == 0 {
		c.Source.BatchRows = defaultBatchRows
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = defaultLogFormat
	}
	if c.Log.MaxSize == 0 {
		c.Log.MaxSize = defaultLogMaxSize
	}
}

func (c *Config) Validate() error {
	switch c.Distinct.OverflowMode {
	case "throw", "break":
	default:
		return moerr.NewBadConfigNoCtx("unknown overflow mode %q", c.Distinct.OverflowMode)
	}
	if c.Source.BatchRows < 0 {
		return moerr.NewBadConfigNoCtx("negative batchRows %d", c.Source.BatchRows)
	}

	switch c.Source.Kind {
	case "":
		// commands that read no source run without one.
	case "csv":
		if c.Source.Path == "" {
			return moerr.NewBadConfigNoCtx("csv source needs a path")
		}
		switch c.Source.Compression {
		case "", "none", "lz4", "auto":
		default:
			return moerr.NewBadConfigNoCtx("unknown compression %q", c.Source.Compression)
		}
		if _, _, err := c.Source.Schema(); err != nil {
			return err
		}
	case "mysql":
		if c.Source.Dsn == "" || c.Source.Query == "" {
			return moerr.NewBadConfigNoCtx("mysql source needs a dsn and a query")
		}
		if _, _, err := c.Source.Schema(); err != nil {
			return err
		}
	case "kv":
		if c.Source.Table == "" {
			return moerr.NewBadConfigNoCtx("kv source needs a table")
		}
		if c.Store.Path == "" {
			return moerr.NewBadConfigNoCtx("kv source needs a store path")
		}
	default:
		return moerr.NewBadConfigNoCtx("unknown source kind %q", c.Source.Kind)
	}
	return nil
}

// DistinctOptions builds the distinct operator argument the config
// describes. The caller owns the returned argument.
func (c *Config) DistinctOptions() *distinct.Distinct {
	arg := distinct.NewArgument()
	arg.KeyColumns = append([]string{}, c.Distinct.KeyColumns...)
	arg.MaxRows = c.Distinct.MaxRows
	arg.MaxBytes = c.Distinct.MaxBytes
	arg.RowCountHint = c.Distinct.RowCountHint
	arg.OverflowMode = distinct.OverflowThrow
	if c.Distinct.OverflowMode == "break" {
		arg.OverflowMode = distinct.OverflowBreak
	}
	return arg
}

// Schema parses the configured columns into names and types.
func (s *SourceParameters) Schema() ([]string, []types.Type, error) {
	if len(s.Columns) == 0 {
		return nil, nil, moerr.NewBadConfigNoCtx("source needs columns")
	}
	attrs := make([]string, len(s.Columns))
	typs := make([]types.Type, len(s.Columns))
	for i, col := range s.Columns {
		name, typeName, ok := strings.Cut(col, ":")
		if !ok || name == "" {
			return nil, nil, moerr.NewBadConfigNoCtx("bad column %q, want name:type", col)
		}
		typ, err := parseTypeName(typeName)
		if err != nil {
			return nil, nil, err
		}
		attrs[i] = name
		typs[i] = typ
	}
	return attrs, typs, nil
}

var typeNames = map[string]types.T{
	"bool":       types.T_bool,
	"int8":       types.T_int8,
	"int16":      types.T_int16,
	"int32":      types.T_int32,
	"int64":      types.T_int64,
	"uint8":      types.T_uint8,
	"uint16":     types.T_uint16,
	"uint32":     types.T_uint32,
	"uint64":     types.T_uint64,
	"float32":    types.T_float32,
	"float64":    types.T_float64,
	"date":       types.T_date,
	"time":       types.T_time,
	"datetime":   types.T_datetime,
	"timestamp":  types.T_timestamp,
	"decimal64":  types.T_decimal64,
	"decimal128": types.T_decimal128,
	"uuid":       types.T_uuid,
	"char":       types.T_char,
	"varchar":    types.T_varchar,
	"json":       types.T_json,
	"binary":     types.T_binary,
	"varbinary":  types.T_varbinary,
	"blob":       types.T_blob,
	"text":       types.T_text,
}

// parseTypeName maps a config type name like int32, varchar(20) or
// decimal64(10,2) onto a column type. Decimals take width and scale,
// character types a width, the sub second time types a scale.
func parseTypeName(name string) (types.Type, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	var args []string
	if i := strings.IndexByte(name, '('); i >= 0 {
		if !strings.HasSuffix(name, ")") {
			return types.Type{}, moerr.NewBadConfigNoCtx("bad column type %q", name)
		}
		for _, arg := range strings.Split(name[i+1:len(name)-1], ",") {
			args = append(args, strings.TrimSpace(arg))
		}
		name = name[:i]
	}
	oid, ok := typeNames[name]
	if !ok {
		return types.Type{}, moerr.NewBadConfigNoCtx("unknown column type %q", name)
	}
	typ := oid.ToType()
	if len(args) == 0 {
		return typ, nil
	}

	n := make([]int32, len(args))
	for i, arg := range args {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 0 {
			return types.Type{}, moerr.NewBadConfigNoCtx("bad column type argument %q", arg)
		}
		n[i] = int32(v)
	}
	switch oid {
	case types.T_decimal64, types.T_decimal128:
		typ.Width = n[0]
		if len(n) > 1 {
			typ.Scale = n[1]
		}
		if len(n) > 2 {
			return types.Type{}, moerr.NewBadConfigNoCtx("bad column type %q", name)
		}
	case types.T_char, types.T_varchar, types.T_binary, types.T_varbinary:
		if len(n) > 1 {
			return types.Type{}, moerr.NewBadConfigNoCtx("bad column type %q", name)
		}
		typ.Width = n[0]
	case types.T_time, types.T_datetime, types.T_timestamp:
		if len(n) > 1 {
			return types.Type{}, moerr.NewBadConfigNoCtx("bad column type %q", name)
		}
		typ.Scale = n[0]
	default:
		return types.Type{}, moerr.NewBadConfigNoCtx("type %s takes no arguments", name)
	}
	return typ, nil
}
