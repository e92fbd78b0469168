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

package types

import (
	"testing"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/stretchr/testify/require"
)

// parse and print both go through the server time zone, so the round
// trips below hold no matter where the test runs.
func TestTimestampParse(t *testing.T) {
	cases := []struct {
		in        string
		precision int32
		want      string
	}{
		{"2022-01-02 03:04:05", 0, "2022-01-02 03:04:05"},
		{"2022-01-02 03:04:05.1239", 3, "2022-01-02 03:04:05.124"},
		{"2022-01-02 03:04:05.9999995", 6, "2022-01-02 03:04:06.000000"},
		{"20220102030405", 0, "2022-01-02 03:04:05"},
		{"20220102030405.7", 1, "2022-01-02 03:04:05.7"},
		{"2022-01-02", 0, "2022-01-02 00:00:00"},
	}
	for _, c := range cases {
		ts, err := ParseTimestamp(c.in, c.precision)
		require.NoError(t, err, c.in)
		require.Equal(t, c.want, ts.String2(c.precision), c.in)
	}
}

func TestTimestampParseInvalid(t *testing.T) {
	errCases := []string{
		"2022-01-02T03:04:05",
		"2022-01-42 03:04:05",
		"2022-01-02 03:64:05",
		"2022-01-02 03:04:05x7",
		"not a timestamp",
	}
	for _, s := range errCases {
		_, err := ParseTimestamp(s, 6)
		require.Equal(t, moerr.NewInvalidInputNoCtx("invalid timestamp value %s", s), err)
	}
}

func TestTimestampRange(t *testing.T) {
	for _, s := range []string{"1968-01-01 00:00:00", "2039-01-01 00:00:00"} {
		_, err := ParseTimestamp(s, 0)
		require.Equal(t, moerr.NewInvalidInputNoCtx("timestamp %s out of range", s), err)
	}

	require.False(t, ValidTimestamp(TimestampMinValue))
	require.False(t, ValidTimestamp(TimestampMaxValue))

	ts, err := ParseTimestamp("2022-01-02 03:04:05", 0)
	require.NoError(t, err)
	require.True(t, ValidTimestamp(ts))
	require.True(t, ValidTimestamp(NowUTC()))
}

func TestTimestampString(t *testing.T) {
	ts, err := ParseTimestamp("2022-01-02 03:04:05.5", 6)
	require.NoError(t, err)
	require.Equal(t, "2022-01-02 03:04:05.500000", ts.String())
	require.Equal(t, "2022-01-02 03:04:05", ts.String2(0))
}
