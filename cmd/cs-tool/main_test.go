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
	"os"
	"path/filepath"
	"testing"

	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/testutil"

	"github.com/stretchr/testify/require"
)

func TestSplitKeys(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, splitKeys("a, b ,c,"))
	require.Empty(t, splitKeys(" , "))
}

func TestOutFileName(t *testing.T) {
	require.Equal(t, "out.csv", outFileName("out.csv", 0, 1))
	require.Equal(t, "out.csv.1", outFileName("out.csv", 0, 3))
	require.Equal(t, "out.csv.3", outFileName("out.csv", 2, 3))
}

func TestFormatCell(t *testing.T) {
	iv := testutil.MakeInt64Vector([]int64{-7, 0, 42}, []uint64{1})
	require.Equal(t, "-7", formatCell(iv, 0))
	require.Equal(t, "\\N", formatCell(iv, 1))
	require.Equal(t, "42", formatCell(iv, 2))

	uv := testutil.MakeUint64Vector([]uint64{12345}, nil)
	require.Equal(t, "12345", formatCell(uv, 0))

	fv := testutil.MakeFloat64Vector([]float64{1.5}, nil)
	require.Equal(t, "1.5", formatCell(fv, 0))

	sv := testutil.MakeVarcharVector([]string{"a,b", ""}, nil)
	require.Equal(t, "a,b", formatCell(sv, 0))
	require.Equal(t, "", formatCell(sv, 1))

	cv := testutil.MakeScalarNull(types.T_int32, 3)
	require.Equal(t, "\\N", formatCell(cv, 2))
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	sink, err := newFileSink(path, []string{"id", "name"})
	require.NoError(t, err)
	require.NoError(t, sink.writeRow([]string{"1", "a,b"}))
	require.NoError(t, sink.writeRow([]string{"2", "\\N"}))
	require.NoError(t, sink.close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "id,name\n1,\"a,b\"\n2,\\N\n", string(data))
}
