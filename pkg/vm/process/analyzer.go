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
	"time"

	"github.com/colstream/colstream/pkg/container/batch"
)

// Analyzer collects per-operator runtime counters. Every operator
// owns one, started and stopped around each Call.
type Analyzer interface {
	Start()
	Stop()
	// ChildrenCallStop charges the time spent inside a child pull, so
	// it does not count against this operator.
	ChildrenCallStop(time.Time)
	// WaitStop charges time spent blocked on something external.
	WaitStop(time.Time)
	Alloc(int64)
	Input(*batch.Batch)
	Output(*batch.Batch)
	// AddScanTime charges raw source read time, fed by the leaf
	// operators.
	AddScanTime(time.Time)
	GetOpStats() *OperatorStats
	Reset()
}

type operatorAnalyzer struct {
	nodeIdx              int
	isFirst              bool
	isLast               bool
	start                time.Time
	wait                 time.Duration
	childrenCallDuration time.Duration
	opStats              *OperatorStats
}

var _ Analyzer = &operatorAnalyzer{}

func NewAnalyzer(idx int, isFirst bool, isLast bool, operatorName string) Analyzer {
	return &operatorAnalyzer{
		nodeIdx:              idx,
		isFirst:              isFirst,
		isLast:               isLast,
		wait:                 0,
		childrenCallDuration: 0,
		opStats:              NewOperatorStats(operatorName),
	}
}

func (opAlyzr *operatorAnalyzer) Reset() {
	opAlyzr.wait = 0
	opAlyzr.childrenCallDuration = 0
	opAlyzr.opStats.Reset()
}

func (opAlyzr *operatorAnalyzer) Start() {
	opAlyzr.start = time.Now()
	opAlyzr.wait = 0
	opAlyzr.childrenCallDuration = 0
}

func (opAlyzr *operatorAnalyzer) Stop() {
	if opAlyzr.opStats == nil {
		panic("operatorAnalyzer.Stop: opStats is nil")
	}

	waitDuration := opAlyzr.wait
	opDuration := time.Since(opAlyzr.start)
	totalDuration := opDuration - waitDuration - opAlyzr.childrenCallDuration
	if totalDuration < 0 {
		panic(fmt.Sprintf("operator %s consumed negative time: op %v wait %v children %v",
			opAlyzr.opStats.OperatorName, opDuration, waitDuration, opAlyzr.childrenCallDuration))
	}

	opAlyzr.opStats.TotalWaitTimeConsumed += waitDuration.Nanoseconds()
	opAlyzr.opStats.TotalTimeConsumed += totalDuration.Nanoseconds()
	opAlyzr.opStats.CallCount++
}

func (opAlyzr *operatorAnalyzer) Alloc(size int64) {
	opAlyzr.opStats.TotalMemorySize += size
}

// Input only counts on the first operator of a pipeline stage, so a
// batch passing several operators is not counted twice.
func (opAlyzr *operatorAnalyzer) Input(bat *batch.Batch) {
	if bat != nil && opAlyzr.isFirst {
		opAlyzr.opStats.TotalInputSize += int64(bat.Size())
		opAlyzr.opStats.TotalInputRows += int64(bat.RowCount())
	}
}

func (opAlyzr *operatorAnalyzer) Output(bat *batch.Batch) {
	if bat != nil && opAlyzr.isLast {
		opAlyzr.opStats.TotalOutputSize += int64(bat.Size())
		opAlyzr.opStats.TotalOutputRows += int64(bat.RowCount())
	}
}

func (opAlyzr *operatorAnalyzer) WaitStop(start time.Time) {
	opAlyzr.wait += time.Since(start)
}

func (opAlyzr *operatorAnalyzer) ChildrenCallStop(start time.Time) {
	opAlyzr.childrenCallDuration += time.Since(start)
}

func (opAlyzr *operatorAnalyzer) AddScanTime(t time.Time) {
	opAlyzr.opStats.TotalScanTime += time.Since(t).Nanoseconds()
}

func (opAlyzr *operatorAnalyzer) GetOpStats() *OperatorStats {
	if opAlyzr.opStats == nil {
		panic("operatorAnalyzer.GetOpStats: opStats is nil")
	}
	return opAlyzr.opStats
}

type OperatorStats struct {
	OperatorName          string `json:"-"`
	CallCount             int    `json:"CallCount,omitempty"`
	TotalTimeConsumed     int64  `json:"TotalTimeConsumed,omitempty"`
	TotalWaitTimeConsumed int64  `json:"TotalWaitTimeConsumed,omitempty"`
	TotalMemorySize       int64  `json:"TotalMemorySize,omitempty"`
	TotalInputRows        int64  `json:"TotalInputRows,omitempty"`
	TotalInputSize        int64  `json:"TotalInputSize,omitempty"`
	TotalOutputRows       int64  `json:"TotalOutputRows,omitempty"`
	TotalOutputSize       int64  `json:"TotalOutputSize,omitempty"`
	TotalScanTime         int64  `json:"TotalScanTime,omitempty"`
}

func NewOperatorStats(operatorName string) *OperatorStats {
	return &OperatorStats{
		OperatorName: operatorName,
	}
}

func (ps *OperatorStats) Reset() {
	name := ps.OperatorName
	*ps = OperatorStats{OperatorName: name}
}

func (ps *OperatorStats) String() string {
	return fmt.Sprintf(" CallNum:%d "+
		"TimeCost:%dns "+
		"WaitTime:%dns "+
		"InRows:%d "+
		"OutRows:%d "+
		"InSize:%dbytes "+
		"OutSize:%dbytes "+
		"MemSize:%dbytes "+
		"ScanTime:%dns",
		ps.CallCount,
		ps.TotalTimeConsumed,
		ps.TotalWaitTimeConsumed,
		ps.TotalInputRows,
		ps.TotalOutputRows,
		ps.TotalInputSize,
		ps.TotalOutputSize,
		ps.TotalMemorySize,
		ps.TotalScanTime)
}
