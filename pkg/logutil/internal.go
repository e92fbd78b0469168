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
	"os"

	"github.com/colstream/colstream/pkg/common/moerr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig describes the logging backend, normally filled from the
// [log] section of the config file.
type LogConfig struct {
	// Level is the minimum enabled level, one of debug, info, warn,
	// error, dpanic, panic and fatal.
	Level string `toml:"level"`
	// Format of the output, console or json.
	Format string `toml:"format"`
	// Filename is the file to write logs to.  Empty means stderr.
	Filename string `toml:"filename"`
	// MaxSize is the maximum size in MB of the log file before it
	// gets rotated.
	MaxSize int `toml:"max-size"`
	// MaxDays is the maximum number of days to retain old log files.
	MaxDays int `toml:"max-days"`
	// MaxBackups is the maximum number of old log files to retain.
	MaxBackups int `toml:"max-backups"`
	// StacktraceLevel is the level at and above which the logger
	// captures a stacktrace.  Empty means fatal.
	StacktraceLevel string `toml:"stacktrace-level"`
}

// ZapSink is one (encoder, syncer) pair fed into the tee core.
type ZapSink struct {
	enc zapcore.Encoder
	out zapcore.WriteSyncer
}

// SetupLogger builds the global zap logger from conf.  It panics on a
// broken config, there is no sane way to report errors without a
// working logger.
func SetupLogger(conf *LogConfig) {
	var cores []zapcore.Core

	level := conf.getLevel()
	for _, sink := range conf.getSinks() {
		cores = append(cores, zapcore.NewCore(sink.enc, sink.out, level))
	}
	logger := zap.New(zapcore.NewTee(cores...), conf.getOptions()...)
	setGlobalLogger(logger)
	logger.Debug("logger init", zap.String("level", conf.Level), zap.String("format", conf.Format))
}

func (cfg *LogConfig) getLevel() zap.AtomicLevel {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if len(cfg.Level) > 0 {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			panic(moerr.NewInternalError(context.TODO(), "unsupported log level: %s", cfg.Level))
		}
	}
	return level
}

func (cfg *LogConfig) getOptions() []zap.Option {
	stacktraceLevel := zapcore.FatalLevel
	if len(cfg.StacktraceLevel) > 0 {
		_ = stacktraceLevel.UnmarshalText([]byte(cfg.StacktraceLevel))
	}
	return []zap.Option{zap.AddStacktrace(stacktraceLevel), zap.AddCaller()}
}

func (cfg *LogConfig) getSyncer() zapcore.WriteSyncer {
	if stat, err := os.Stat(cfg.Filename); err == nil {
		if stat.IsDir() {
			panic("log file can't be a directory")
		}
	}
	if len(cfg.Filename) > 0 {
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxAge:     cfg.MaxDays,
			MaxBackups: cfg.MaxBackups,
			LocalTime:  true,
		})
	}
	return getConsoleSyncer()
}

func (cfg *LogConfig) getEncoder() zapcore.Encoder {
	return getLoggerEncoder(cfg.Format)
}

func (cfg *LogConfig) getSinks() []ZapSink {
	return []ZapSink{{cfg.getEncoder(), cfg.getSyncer()}}
}

func getConsoleSyncer() zapcore.WriteSyncer {
	return zapcore.AddSync(os.Stderr)
}

func getLoggerEncoder(format string) zapcore.Encoder {
	encoderConfig := getLoggerEncoderConfig()
	switch format {
	case "json", "":
		return zapcore.NewJSONEncoder(encoderConfig)
	case "console":
		return zapcore.NewConsoleEncoder(encoderConfig)
	default:
		panic(moerr.NewInternalError(context.TODO(), "unsupported log format: %s", format))
	}
}

func getLoggerEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:       "msg",
		LevelKey:         "level",
		TimeKey:          "time",
		NameKey:          "name",
		CallerKey:        "caller",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05.000000 -0700"),
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		ConsoleSeparator: " ",
	}
}
