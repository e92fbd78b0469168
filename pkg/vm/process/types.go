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
	"context"
	"time"

	"github.com/colstream/colstream/pkg/common/mpool"
	"github.com/colstream/colstream/pkg/logutil"

	"go.uber.org/zap"
)

// Limitation caps what a single pipeline may consume.
type Limitation struct {
	// Size is the memory threshold in bytes, 0 means no threshold.
	Size int64
	// BatchRows caps the rows a source operator packs into one batch.
	BatchRows int64
	// BatchSize caps the byte size of one batch.
	BatchSize int64
	// MaxMsgSize caps a single encoded batch message.
	MaxMsgSize int64
}

// Process carries the per-pipeline execution state. One query runs one
// or more pipelines, each pipeline owns exactly one Process.
type Process struct {
	Ctx    context.Context
	Cancel context.CancelFunc

	Base *BaseProcess
}

// BaseProcess holds the parts shared when a process is forked for a
// sub-pipeline.
type BaseProcess struct {
	// Id identifies the query this process belongs to.
	Id       string
	Lim      Limitation
	UnixTime int64

	mp     *mpool.MPool
	logger *zap.Logger
}

// New builds a process on ctx, drawing all batch memory from mp.
func New(ctx context.Context, mp *mpool.MPool) *Process {
	ctx, cancel := context.WithCancel(ctx)
	return &Process{
		Ctx:    ctx,
		Cancel: cancel,
		Base: &BaseProcess{
			mp:       mp,
			UnixTime: time.Now().UnixNano(),
			logger:   logutil.GetGlobalLogger(),
		},
	}
}

// NewFromProc forks a process sharing base state with parent, with its
// own cancelable context. Source operators running on worker
// goroutines get their own fork.
func NewFromProc(parent *Process) *Process {
	ctx, cancel := context.WithCancel(parent.Ctx)
	return &Process{
		Ctx:    ctx,
		Cancel: cancel,
		Base:   parent.Base,
	}
}
