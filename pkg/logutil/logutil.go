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
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	_globalLogger atomic.Value // *zap.Logger
	_skip1Logger  atomic.Value // *zap.Logger for the package level helpers
	_setupOnce    sync.Once
)

func setGlobalLogger(logger *zap.Logger) {
	_globalLogger.Store(logger)
	_skip1Logger.Store(logger.WithOptions(zap.AddCallerSkip(1)))
}

// GetGlobalLogger returns the process wide logger.  Before SetupLogger
// runs it lazily installs a console logger at info level.
func GetGlobalLogger() *zap.Logger {
	if logger, ok := _globalLogger.Load().(*zap.Logger); ok {
		return logger
	}
	_setupOnce.Do(func() {
		SetupLogger(&LogConfig{Level: "info", Format: "console"})
	})
	return _globalLogger.Load().(*zap.Logger)
}

func getSkip1Logger() *zap.Logger {
	if logger, ok := _skip1Logger.Load().(*zap.Logger); ok {
		return logger
	}
	GetGlobalLogger()
	return _skip1Logger.Load().(*zap.Logger)
}

func Debug(msg string, fields ...zap.Field) {
	getSkip1Logger().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	getSkip1Logger().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	getSkip1Logger().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	getSkip1Logger().Error(msg, fields...)
}

func Panic(msg string, fields ...zap.Field) {
	getSkip1Logger().Panic(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	getSkip1Logger().Fatal(msg, fields...)
}

func Debugf(msg string, args ...interface{}) {
	getSkip1Logger().Sugar().Debugf(msg, args...)
}

func Infof(msg string, args ...interface{}) {
	getSkip1Logger().Sugar().Infof(msg, args...)
}

func Warnf(msg string, args ...interface{}) {
	getSkip1Logger().Sugar().Warnf(msg, args...)
}

func Errorf(msg string, args ...interface{}) {
	getSkip1Logger().Sugar().Errorf(msg, args...)
}

func Panicf(msg string, args ...interface{}) {
	getSkip1Logger().Sugar().Panicf(msg, args...)
}

func Fatalf(msg string, args ...interface{}) {
	getSkip1Logger().Sugar().Fatalf(msg, args...)
}
