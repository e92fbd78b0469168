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

package process

import (
	"fmt"

	"github.com/colstream/colstream/pkg/common/mpool"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultBatchRows is the row cap sources use when Lim.BatchRows is
// unset.
const DefaultBatchRows = 8192

func (proc *Process) QueryId() string {
	return proc.Base.Id
}

func (proc *Process) SetQueryId(id string) {
	proc.Base.Id = id
}

// Some expression and test code evaluates without a process. Fall back
// to a zero pool so a nil proc cannot leak real memory.
var fallbackProcMp = mpool.MustNewNoFixed("fallback_proc_mp")

func (proc *Process) GetMPool() *mpool.MPool {
	if proc == nil {
		return fallbackProcMp
	}
	return proc.Base.mp
}

func (proc *Process) Mp() *mpool.MPool {
	return proc.GetMPool()
}

func (proc *Process) GetLim() Limitation {
	return proc.Base.Lim
}

func (proc *Process) SetLim(lim Limitation) {
	proc.Base.Lim = lim
}

// BatchRows returns the row cap for source batches.
func (proc *Process) BatchRows() int {
	if proc == nil || proc.Base.Lim.BatchRows <= 0 {
		return DefaultBatchRows
	}
	return int(proc.Base.Lim.BatchRows)
}

// Free releases the process. Operators clean their own state, the
// process only has its context to cancel.
func (proc *Process) Free() {
	if proc != nil && proc.Cancel != nil {
		proc.Cancel()
	}
}

// log and logf route operator logging through the process logger so
// every line carries the query id.
func (proc *Process) log(level zapcore.Level, msg string, fields ...zap.Field) {
	if ce := proc.Base.logger.Check(level, msg); ce != nil {
		if proc.Base.Id != "" {
			fields = append(fields, zap.String("query-id", proc.Base.Id))
		}
		ce.Write(fields...)
	}
}

func (proc *Process) logf(level zapcore.Level, msg string, args ...any) {
	if proc.Base.logger.Core().Enabled(level) {
		proc.log(level, fmt.Sprintf(msg, args...))
	}
}

func (proc *Process) Info(msg string, fields ...zap.Field) {
	proc.log(zap.InfoLevel, msg, fields...)
}

func (proc *Process) Error(msg string, fields ...zap.Field) {
	proc.log(zap.ErrorLevel, msg, fields...)
}

func (proc *Process) Warn(msg string, fields ...zap.Field) {
	proc.log(zap.WarnLevel, msg, fields...)
}

func (proc *Process) Debug(msg string, fields ...zap.Field) {
	proc.log(zap.DebugLevel, msg, fields...)
}

func (proc *Process) Infof(msg string, args ...any) {
	proc.logf(zap.InfoLevel, msg, args...)
}

func (proc *Process) Errorf(msg string, args ...any) {
	proc.logf(zap.ErrorLevel, msg, args...)
}

func (proc *Process) Warnf(msg string, args ...any) {
	proc.logf(zap.WarnLevel, msg, args...)
}

func (proc *Process) Debugf(msg string, args ...any) {
	proc.logf(zap.DebugLevel, msg, args...)
}
