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

package logutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/lni/goutils/leaktest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestSetupLogger(t *testing.T) {
	defer leaktest.AfterTest(t)()
	type args struct {
		conf *LogConfig
	}
	tests := []struct {
		name string
		args args
	}{
		{
			name: "console",
			args: args{conf: &LogConfig{Level: "debug", Format: "console"}},
		},
		{
			name: "json",
			args: args{conf: &LogConfig{Level: "info", Format: "json"}},
		},
		{
			name: "file",
			args: args{conf: &LogConfig{
				Level:    "debug",
				Format:   "json",
				Filename: filepath.Join(t.TempDir(), "colstream.log"),
				MaxSize:  512,
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetupLogger(tt.args.conf)
			require.NotNil(t, GetGlobalLogger())
			Infof("%s logger setup", tt.name)
			Debug("debug message", zap.String("case", tt.name))
		})
	}
}

func TestSetupLogger_panic(t *testing.T) {
	defer leaktest.AfterTest(t)()
	conf := &LogConfig{Level: "debug", Format: "xml"}
	defer func() {
		err := recover()
		require.Equal(t, moerr.NewInternalError(context.TODO(), "unsupported log format: %s", conf.Format), err)
	}()
	SetupLogger(conf)
}

func TestSetupLogger_panicDir(t *testing.T) {
	defer leaktest.AfterTest(t)()
	conf := &LogConfig{Level: "debug", Format: "console", Filename: t.TempDir()}
	defer func() {
		err := recover()
		require.Equal(t, "log file can't be a directory", err)
	}()
	SetupLogger(conf)
}

func Test_getLoggerEncoder(t *testing.T) {
	defer leaktest.AfterTest(t)()
	entry := zapcore.Entry{Level: zapcore.DebugLevel, LoggerName: "console", Message: "msg"}

	buf, err := getLoggerEncoder("console").EncodeEntry(entry, nil)
	require.NoError(t, err)
	require.Regexp(t, `\d{4}/\d{2}/\d{2} (\d{2}:{0,1}){3}\.\d{6} \+\d{4} DEBUG console msg`, buf.String())

	buf, err = getLoggerEncoder("json").EncodeEntry(entry, nil)
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"level":"DEBUG"`)
	require.Contains(t, buf.String(), `"msg":"msg"`)

	buf, err = getLoggerEncoder("").EncodeEntry(entry, nil)
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"level":"DEBUG"`)
}

func TestLogConfig_getLevel(t *testing.T) {
	defer leaktest.AfterTest(t)()
	cfg := &LogConfig{Level: "debug", Format: "console"}
	require.Equal(t, zap.NewAtomicLevelAt(zap.DebugLevel), cfg.getLevel())

	cfg = &LogConfig{Format: "console"}
	require.Equal(t, zap.NewAtomicLevelAt(zap.InfoLevel), cfg.getLevel())
}

func TestLogConfig_getOptions(t *testing.T) {
	defer leaktest.AfterTest(t)()
	cfg := &LogConfig{Level: "debug", Format: "console", StacktraceLevel: "panic"}
	require.Equal(t, 2, len(cfg.getOptions()))
}

func TestLogConfig_getSyncer(t *testing.T) {
	defer leaktest.AfterTest(t)()
	cfg := &LogConfig{Level: "debug", Format: "console"}
	require.Equal(t, getConsoleSyncer(), cfg.getSyncer())

	cfg = &LogConfig{
		Level:    "debug",
		Format:   "console",
		Filename: filepath.Join(t.TempDir(), "colstream.log"),
		MaxSize:  512,
	}
	require.NotEqual(t, getConsoleSyncer(), cfg.getSyncer())
}

func TestLogConfig_getSinks(t *testing.T) {
	defer leaktest.AfterTest(t)()
	cfg := &LogConfig{Level: "debug", Format: "console"}
	require.Equal(t, 1, len(cfg.getSinks()))
}
