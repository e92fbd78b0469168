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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/sql/colexec/distinct"
)

const testConfig = `
[distinct]
keyColumns = ["a", "b"]
maxRows = 100
maxBytes = 4096
overflowMode = "break"
rowCountHint = 10

[log]
level = "debug"
format = "json"

[source]
kind = "csv"
path = "in.csv"
compression = "lz4"
columns = ["id:int32", "name:varchar"]
batchRows = 4

[store]
path = "/tmp/store"
`

func TestParseConfigFromString(t *testing.T) {
	cfg, err := ParseConfigFromString(testConfig)
	require.NoError(t, err)

	require.Equal(t, []string{"a", "b"}, cfg.Distinct.KeyColumns)
	require.Equal(t, uint64(100), cfg.Distinct.MaxRows)
	require.Equal(t, uint64(4096), cfg.Distinct.MaxBytes)
	require.Equal(t, "break", cfg.Distinct.OverflowMode)
	require.Equal(t, uint64(10), cfg.Distinct.RowCountHint)

	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)

	require.Equal(t, "csv", cfg.Source.Kind)
	require.Equal(t, "in.csv", cfg.Source.Path)
	require.Equal(t, "lz4", cfg.Source.Compression)
	require.Equal(t, int64(4), cfg.Source.BatchRows)
	require.Equal(t, "/tmp/store", cfg.Store.Path)

	attrs, typs, err := cfg.Source.Schema()
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name"}, attrs)
	require.Equal(t, []types.Type{types.T_int32.ToType(), types.T_varchar.ToType()}, typs)
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfigFromString("")
	require.NoError(t, err)
	require.Equal(t, "throw", cfg.Distinct.OverflowMode)
	require.Equal(t, defaultBatchRows, cfg.Source.BatchRows)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "console", cfg.Log.Format)
	require.Equal(t, defaultLogMaxSize, cfg.Log.MaxSize)
}

func TestParseConfigFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cs.toml")
	require.NoError(t, os.WriteFile(file, []byte(testConfig), 0o644))

	cfg, err := ParseConfig(file)
	require.NoError(t, err)
	require.Equal(t, "csv", cfg.Source.Kind)

	_, err = ParseConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))
}

func TestValidate(t *testing.T) {
	bad := []string{
		"[distinct]\noverflowMode = \"explode\"\n",
		"[source]\nkind = \"ftp\"\n",
		"[source]\nkind = \"csv\"\n",
		"[source]\nkind = \"csv\"\npath = \"a.csv\"\ncompression = \"zip\"\ncolumns = [\"a:int32\"]\n",
		"[source]\nkind = \"csv\"\npath = \"a.csv\"\n",
		"[source]\nkind = \"mysql\"\nquery = \"select 1\"\n",
		"[source]\nkind = \"mysql\"\ndsn = \"u:p@/db\"\nquery = \"select 1\"\n",
		"[source]\nkind = \"kv\"\n",
		"[source]\nkind = \"kv\"\ntable = \"t\"\n",
		"[source]\nbatchRows = -1\n",
	}
	for _, data := range bad {
		_, err := ParseConfigFromString(data)
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig), data)
	}

	// a config without a source serves commands that read none.
	_, err := ParseConfigFromString("[store]\npath = \"/tmp/s\"\n")
	require.NoError(t, err)
}

func TestSchemaTypes(t *testing.T) {
	s := SourceParameters{Columns: []string{
		"a:bool",
		"b:int64",
		"c:float64",
		"d:date",
		"e:datetime(6)",
		"f:decimal64(10,2)",
		"g:varchar(20)",
		"h:uuid",
	}}
	attrs, typs, err := s.Schema()
	require.NoError(t, err)
	require.Equal(t, 8, len(attrs))
	require.Equal(t, types.T_bool, typs[0].Oid)
	require.Equal(t, types.T_int64, typs[1].Oid)
	require.Equal(t, int32(6), typs[4].Scale)
	require.Equal(t, types.T_decimal64, typs[5].Oid)
	require.Equal(t, int32(10), typs[5].Width)
	require.Equal(t, int32(2), typs[5].Scale)
	require.Equal(t, int32(20), typs[6].Width)
	require.Equal(t, types.T_uuid, typs[7].Oid)

	for _, col := range []string{
		"noType",
		"x:wat",
		"x:int32(3)",
		"x:decimal64(10,2,3)",
		"x:varchar(20",
		"x:varchar(-1)",
		"x:datetime(3,4)",
		":int32",
	} {
		s := SourceParameters{Columns: []string{col}}
		_, _, err := s.Schema()
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig), col)
	}
}

func TestDistinctOptions(t *testing.T) {
	cfg, err := ParseConfigFromString(testConfig)
	require.NoError(t, err)

	arg := cfg.DistinctOptions()
	require.Equal(t, []string{"a", "b"}, arg.KeyColumns)
	require.Equal(t, uint64(100), arg.MaxRows)
	require.Equal(t, uint64(4096), arg.MaxBytes)
	require.Equal(t, uint64(10), arg.RowCountHint)
	require.Equal(t, distinct.OverflowBreak, arg.OverflowMode)
	arg.Release()

	cfg, err = ParseConfigFromString("")
	require.NoError(t, err)
	arg = cfg.DistinctOptions()
	require.Equal(t, distinct.OverflowThrow, arg.OverflowMode)
	arg.Release()
}
