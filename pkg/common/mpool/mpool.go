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

package mpool

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/logutil"
)

// A few numbers.
const (
	B  = 1
	KB = 1024
	MB = 1024 * KB
	GB = 1024 * MB
	TB = 1024 * GB
	PB = 1024 * TB
)

// Flags to NewMPool.
const (
	// NoFixed disables the fixed size pools, every allocation
	// comes straight from the go heap.
	NoFixed = 1
)

// MPoolStats tracks allocation counters of one pool.
type MPoolStats struct {
	NumAlloc      atomic.Int64
	NumFree       atomic.Int64
	NumCurrBytes  atomic.Int64
	HighWaterMark atomic.Int64
}

func (s *MPoolStats) Report(tab string) string {
	if s.HighWaterMark.Load() == 0 {
		// empty, reduce noise
		return ""
	}
	ret := fmt.Sprintf("%s allocations: %d\n", tab, s.NumAlloc.Load())
	ret += fmt.Sprintf("%s frees: %d\n", tab, s.NumFree.Load())
	ret += fmt.Sprintf("%s current bytes: %d\n", tab, s.NumCurrBytes.Load())
	ret += fmt.Sprintf("%s high water mark: %d\n", tab, s.HighWaterMark.Load())
	return ret
}

func (s *MPoolStats) ReportJson() string {
	if s.HighWaterMark.Load() == 0 {
		return ""
	}
	return fmt.Sprintf(`{"alloc": %d, "free": %d, "current": %d, "highwater": %d}`,
		s.NumAlloc.Load(), s.NumFree.Load(), s.NumCurrBytes.Load(), s.HighWaterMark.Load())
}

// RecordAlloc updates the stats for an allocation of sz bytes and
// returns the current total.
func (s *MPoolStats) RecordAlloc(tag string, sz int64) int64 {
	s.NumAlloc.Add(1)
	curr := s.NumCurrBytes.Add(sz)
	hwm := s.HighWaterMark.Load()
	for curr > hwm {
		if s.HighWaterMark.CompareAndSwap(hwm, curr) {
			if curr/GB != hwm/GB {
				logutil.Infof("mpool %s new high watermark\n%s", tag, s.Report("    "))
			}
			break
		}
		hwm = s.HighWaterMark.Load()
	}
	return curr
}

// RecordFree updates the stats for a free of sz bytes and returns the
// current total.
func (s *MPoolStats) RecordFree(tag string, sz int64) int64 {
	s.NumFree.Add(1)
	curr := s.NumCurrBytes.Add(-sz)
	if curr < 0 {
		logutil.Fatalf("mpool %s free bug, stats: %s", tag, s.Report(""))
	}
	return curr
}

func (s *MPoolStats) RecordManyFrees(tag string, nfree, sz int64) int64 {
	s.NumFree.Add(nfree)
	curr := s.NumCurrBytes.Add(-sz)
	if curr < 0 {
		logutil.Fatalf("mpool %s free many bug, stats: %s", tag, s.Report(""))
	}
	return curr
}

const (
	NumFixedPool = 7
	kMemHdrSz    = 16
	kStripeSize  = 128
)

// Fixed pool elem sizes.  Allocations at most 4K go through the fixed
// pools, anything bigger hits the go heap directly.
var PoolElemSize = [NumFixedPool]int32{64, 128, 256, 512, 1024, 2048, 4096}

// Each allocation carries a 16 byte header right before the payload.
type memHdr struct {
	poolId       int64
	allocSz      int32
	fixedPoolIdx int8
	guard        [3]uint8
}

func (pHdr *memHdr) SetGuard() {
	pHdr.guard[0] = 0xDE
	pHdr.guard[1] = 0xAD
	pHdr.guard[2] = 0xBF
}

func (pHdr *memHdr) CheckGuard() bool {
	return pHdr.guard[0] == 0xDE && pHdr.guard[1] == 0xAD && pHdr.guard[2] == 0xBF
}

// fixedPool hands out fixed size cells carved from big stripes.  The
// stripes are held in buf so the cells on the freelist stay alive, the
// freelist links live in the first 8 bytes of each free cell.
type fixedPool struct {
	m      sync.Mutex
	poolId int64
	idx    int8
	eleSz  int32
	buf    [][]byte
	flist  unsafe.Pointer
}

func (fp *fixedPool) init(poolId int64, idx int) {
	fp.poolId = poolId
	fp.idx = int8(idx)
	fp.eleSz = PoolElemSize[idx]
}

// grow carves one more stripe.  Caller holds fp.m.
func (fp *fixedPool) grow() {
	cellSz := int(fp.eleSz) + kMemHdrSz
	stripe := make([]byte, cellSz*kStripeSize)
	fp.buf = append(fp.buf, stripe)
	for i := 0; i < kStripeSize; i++ {
		cell := unsafe.Pointer(&stripe[i*cellSz])
		*(*unsafe.Pointer)(cell) = fp.flist
		fp.flist = cell
	}
}

func (fp *fixedPool) alloc(sz int) []byte {
	fp.m.Lock()
	if fp.flist == nil {
		fp.grow()
	}
	cell := fp.flist
	fp.flist = *(*unsafe.Pointer)(cell)
	fp.m.Unlock()

	pHdr := (*memHdr)(cell)
	pHdr.poolId = fp.poolId
	pHdr.allocSz = int32(sz)
	pHdr.fixedPoolIdx = fp.idx
	pHdr.SetGuard()
	payload := unsafe.Slice((*byte)(unsafe.Add(cell, kMemHdrSz)), fp.eleSz)
	for i := range payload {
		payload[i] = 0
	}
	return payload[:sz]
}

func (fp *fixedPool) free(hdr unsafe.Pointer) {
	fp.m.Lock()
	*(*unsafe.Pointer)(hdr) = fp.flist
	fp.flist = hdr
	fp.m.Unlock()
}

// MPool is a tagged memory accounting pool.  All column data of the
// engine is allocated from one, so a leak always has a name attached.
type MPool struct {
	id      int64
	tag     string
	cap     int64
	noFixed bool
	stats   MPoolStats
	pools   [NumFixedPool]fixedPool
	details *mpoolDetails
}

var (
	globalStats MPoolStats
	globalCap   atomic.Int64
	globalPools sync.Map
	nextPoolId  atomic.Int64
)

// InitCap sets the process wide allocation limit.  Zero means PB.
func InitCap(cap int64) {
	globalCap.Store(cap)
}

func GlobalCap() int64 {
	if c := globalCap.Load(); c > 0 {
		return c
	}
	return PB
}

func GlobalStats() *MPoolStats {
	return &globalStats
}

// NewMPool creates a pool.  cap limits the bytes held by this pool,
// zero means no limit.
func NewMPool(tag string, cap int64, flag int) (*MPool, error) {
	if cap < 0 {
		return nil, moerr.NewInternalErrorNoCtx("mpool cap %d invalid", cap)
	}
	mp := &MPool{tag: tag, cap: cap}
	mp.id = nextPoolId.Add(1)
	mp.noFixed = flag&NoFixed != 0
	if !mp.noFixed {
		for i := range mp.pools {
			mp.pools[i].init(mp.id, i)
		}
	}
	globalPools.Store(mp.id, mp)
	return mp, nil
}

func MustNew(tag string) *MPool {
	mp, err := NewMPool(tag, 0, 0)
	if err != nil {
		panic(err)
	}
	return mp
}

func MustNewZero() *MPool {
	return MustNew("mustnewzero")
}

func MustNewNoFixed(tag string) *MPool {
	mp, err := NewMPool(tag, 0, NoFixed)
	if err != nil {
		panic(err)
	}
	return mp
}

func MustNewZeroNoFixed() *MPool {
	return MustNewNoFixed("mustnewzero-nofixed")
}

// DeleteMPool removes the pool from the global registry.  Whatever was
// not freed is charged back to the global stats.
func DeleteMPool(mp *MPool) {
	if mp == nil {
		return
	}
	globalPools.Delete(mp.id)
	if mp.stats.NumCurrBytes.Load() != 0 {
		logutil.Errorf("mpool %s destroyed with leak\n%s", mp.tag, mp.stats.Report("    "))
	}
	globalStats.RecordManyFrees(mp.tag,
		mp.stats.NumAlloc.Load()-mp.stats.NumFree.Load(),
		mp.stats.NumCurrBytes.Load())
}

func (mp *MPool) Tag() string {
	return mp.tag
}

func (mp *MPool) Cap() int64 {
	if mp.cap == 0 {
		return PB
	}
	return mp.cap
}

// CurrNB returns the bytes currently allocated from this pool.
func (mp *MPool) CurrNB() int64 {
	return mp.stats.NumCurrBytes.Load()
}

func (mp *MPool) Stats() *MPoolStats {
	return &mp.stats
}

func (mp *MPool) EnableDetailRecording() {
	if mp.details == nil {
		mp.details = newMpoolDetails()
	}
}

func (mp *MPool) DisableDetailRecording() {
	mp.details = nil
}

// Alloc returns a zeroed buffer of exactly sz bytes.  The capacity may
// be bigger when the buffer comes from a fixed pool.
func (mp *MPool) Alloc(sz int) ([]byte, error) {
	if sz < 0 || int64(sz) > GB {
		return nil, moerr.NewInternalErrorNoCtx("mpool alloc size %d out of range", sz)
	}
	if sz == 0 {
		return nil, nil
	}

	gcurr := globalStats.RecordAlloc("global", int64(sz))
	if gcurr > GlobalCap() {
		globalStats.RecordFree("global", int64(sz))
		return nil, moerr.NewOOMNoCtx()
	}
	mycurr := mp.stats.RecordAlloc(mp.tag, int64(sz))
	if mp.cap > 0 && mycurr > mp.cap {
		mp.stats.RecordFree(mp.tag, int64(sz))
		globalStats.RecordFree("global", int64(sz))
		return nil, moerr.NewOOMNoCtx()
	}
	if mp.details != nil {
		mp.details.recordAlloc(int64(sz))
	}

	if !mp.noFixed && sz <= int(PoolElemSize[NumFixedPool-1]) {
		for i := 0; i < NumFixedPool; i++ {
			if sz <= int(PoolElemSize[i]) {
				return mp.pools[i].alloc(sz), nil
			}
		}
	}
	return mp.allocLarge(sz), nil
}

func (mp *MPool) allocLarge(sz int) []byte {
	buf := make([]byte, kMemHdrSz+sz)
	pHdr := (*memHdr)(unsafe.Pointer(&buf[0]))
	pHdr.poolId = mp.id
	pHdr.allocSz = int32(sz)
	pHdr.fixedPoolIdx = NumFixedPool
	pHdr.SetGuard()
	return buf[kMemHdrSz : kMemHdrSz+sz : kMemHdrSz+sz]
}

// Free releases a buffer obtained from Alloc.  Free of nil is a noop.
func (mp *MPool) Free(bs []byte) {
	if bs == nil || cap(bs) == 0 {
		return
	}
	bs = bs[:1]
	hdr := unsafe.Add(unsafe.Pointer(&bs[0]), -kMemHdrSz)
	pHdr := (*memHdr)(hdr)
	if !pHdr.CheckGuard() {
		panic(moerr.NewInternalErrorNoCtx("mpool %s free corrupted pointer", mp.tag))
	}
	if pHdr.allocSz == -1 {
		panic(moerr.NewInternalErrorNoCtx("mpool %s double free", mp.tag))
	}
	if pHdr.poolId != mp.id {
		// cross pool free, send it back to the owner
		if other, ok := globalPools.Load(pHdr.poolId); ok {
			other.(*MPool).Free(bs)
			return
		}
		panic(moerr.NewInternalErrorNoCtx("mpool %s free foreign pointer", mp.tag))
	}

	sz := int64(pHdr.allocSz)
	mp.stats.RecordFree(mp.tag, sz)
	globalStats.RecordFree("global", sz)
	if mp.details != nil {
		mp.details.recordFree(sz)
	}

	idx := pHdr.fixedPoolIdx
	pHdr.allocSz = -1
	if idx < NumFixedPool {
		mp.pools[idx].free(hdr)
	}
}

// Realloc resizes the buffer to sz bytes.  Grown bytes are zeroed.
func (mp *MPool) Realloc(old []byte, sz int) ([]byte, error) {
	if sz <= cap(old) {
		return old[:sz], nil
	}
	ret, err := mp.Alloc(sz)
	if err != nil {
		return nil, err
	}
	copy(ret, old)
	mp.Free(old)
	return ret, nil
}

// Same growth strategy as go slices.
func calculateNewCap(oldCap int, requiredSize int) int {
	newcap := oldCap
	doublecap := newcap + newcap
	if requiredSize > doublecap {
		newcap = requiredSize
	} else {
		const threshold = 256
		if oldCap < threshold {
			newcap = doublecap
		} else {
			for 0 < newcap && newcap < requiredSize {
				newcap += newcap / 4
			}
			if newcap <= 0 {
				newcap = requiredSize
			}
		}
	}
	return newcap
}

// Grow extends the buffer to length sz, amortizing reallocations the
// way append does.
func (mp *MPool) Grow(old []byte, sz int) ([]byte, error) {
	if sz < len(old) {
		return nil, moerr.NewInternalErrorNoCtx("mpool grow actually shrinks, %d, %d", len(old), sz)
	}
	if sz <= cap(old) {
		return old[:sz], nil
	}
	ret, err := mp.Realloc(old, calculateNewCap(cap(old), sz))
	if err != nil {
		return nil, err
	}
	return ret[:sz], nil
}

// Grow2 extends the buffer to length sz and copies data right after
// the old content.
func (mp *MPool) Grow2(old []byte, data []byte, sz int) ([]byte, error) {
	len1 := len(old)
	len2 := len(data)
	if sz < len1+len2 {
		return nil, moerr.NewInternalErrorNoCtx("mpool grow2 actually shrinks, %d+%d, %d", len1, len2, sz)
	}
	ret, err := mp.Grow(old, sz)
	if err != nil {
		return nil, err
	}
	copy(ret[len1:len1+len2], data)
	return ret, nil
}

func (mp *MPool) ReportJson() string {
	ss := mp.stats.ReportJson()
	if ss == "" {
		return ""
	}
	ret := fmt.Sprintf(`{"%s": %s`, mp.tag, ss)
	if mp.details != nil {
		ret += fmt.Sprintf(`, "detailed_alloc": %s, "detailed_free": %s`,
			mp.details.reportJson(&mp.details.alloc),
			mp.details.reportJson(&mp.details.free))
	}
	return ret + "}"
}

// ReportMemUsage dumps the stats of pools matching tag as a json
// string.  Empty tag matches everything, "global" the global stats.
func ReportMemUsage(tag string) string {
	gstat := fmt.Sprintf(`{"global": %s}`, globalStats.ReportJson())
	if tag == "global" {
		return "[" + gstat + "]"
	}

	var entries []string
	if tag == "" {
		entries = append(entries, gstat)
	}
	globalPools.Range(func(_, v any) bool {
		mp := v.(*MPool)
		if tag == "" || tag == mp.tag {
			if e := mp.ReportJson(); e != "" {
				entries = append(entries, e)
			}
		}
		return true
	})
	return "[" + strings.Join(entries, ",") + "]"
}

// mpoolDetails records per callsite counters, for chasing leaks.
type mpoolDetails struct {
	mu    sync.Mutex
	alloc map[string]int64
	free  map[string]int64
}

func newMpoolDetails() *mpoolDetails {
	return &mpoolDetails{
		alloc: make(map[string]int64),
		free:  make(map[string]int64),
	}
}

func callerKey() string {
	_, file, line, ok := runtime.Caller(3)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", file, line)
}

func (d *mpoolDetails) recordAlloc(nb int64) {
	k := callerKey()
	d.mu.Lock()
	d.alloc[k] += nb
	d.mu.Unlock()
}

func (d *mpoolDetails) recordFree(nb int64) {
	k := callerKey()
	d.mu.Lock()
	d.free[k] += nb
	d.mu.Unlock()
}

func (d *mpoolDetails) reportJson(m *map[string]int64) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	js, err := json.Marshal(*m)
	if err != nil {
		return `"err"`
	}
	return string(js)
}
