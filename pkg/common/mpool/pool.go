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
	"sync"
	"sync/atomic"
	"unsafe"
)

// pool caches small pointer free objects off the go heap.  Cells are
// carved from byte stripes held in buf, the freelist link lives in the
// first 8 bytes of each free cell.  Do not put types with pointers in
// here, the collector cannot see through the stripes.
type pool struct {
	capacity int64
	size     atomic.Int64
	classes  [numPoolClass]poolClass
}

type poolClass struct {
	m     sync.Mutex
	eleSz int
	buf   [][]byte
	flist unsafe.Pointer
}

const (
	numPoolClass   = 8
	poolStripeSize = 64
	minPoolEleSz   = 8
	maxPoolEleSz   = minPoolEleSz << (numPoolClass - 1)
)

// newPool creates a pool with the given growth budget in bytes.  Zero
// means no budget, once the budget is hit the pool grows one cell at a
// time instead of a stripe at a time.
func newPool(capacity int64) *pool {
	p := &pool{capacity: capacity}
	for i := range p.classes {
		p.classes[i].eleSz = minPoolEleSz << i
	}
	return p
}

func poolClassIdx(sz uintptr) int {
	idx := 0
	for uintptr(minPoolEleSz<<idx) < sz {
		idx++
	}
	return idx
}

// grow carves n more cells.  Caller holds pc.m.
func (pc *poolClass) grow(n int) int {
	stripe := make([]byte, pc.eleSz*n)
	pc.buf = append(pc.buf, stripe)
	for i := 0; i < n; i++ {
		cell := unsafe.Pointer(&stripe[i*pc.eleSz])
		*(*unsafe.Pointer)(cell) = pc.flist
		pc.flist = cell
	}
	return pc.eleSz * n
}

func alloc[T any](p *pool) *T {
	var zero T
	sz := unsafe.Sizeof(zero)
	if sz == 0 || sz > maxPoolEleSz {
		return new(T)
	}

	pc := &p.classes[poolClassIdx(sz)]
	pc.m.Lock()
	if pc.flist == nil {
		n := poolStripeSize
		if p.capacity > 0 && p.size.Load()+int64(pc.eleSz*n) > p.capacity {
			n = 1
		}
		p.size.Add(int64(pc.grow(n)))
	}
	cell := pc.flist
	pc.flist = *(*unsafe.Pointer)(cell)
	pc.m.Unlock()

	pt := (*T)(cell)
	*pt = zero
	return pt
}

func free[T any](p *pool, v *T) {
	var zero T
	sz := unsafe.Sizeof(zero)
	if sz == 0 || sz > maxPoolEleSz {
		// was never pooled, let the collector have it
		return
	}

	pc := &p.classes[poolClassIdx(sz)]
	cell := unsafe.Pointer(v)
	pc.m.Lock()
	*(*unsafe.Pointer)(cell) = pc.flist
	pc.flist = cell
	pc.m.Unlock()
}
