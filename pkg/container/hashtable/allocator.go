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

package hashtable

import (
	"golang.org/x/sys/unix"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/common/mpool"
)

// blocks at least this big bypass the pool and map straight from the OS
const kMmapThreshold = 1 << 20

// Allocator hands out the zeroed blocks backing hash table cells.
type Allocator interface {
	Alloc(sz int) ([]byte, error)
	Free(bs []byte)
}

type poolArenaAllocator struct {
	pool *mpool.MPool
}

var defaultAllocator Allocator = &poolArenaAllocator{
	pool: mpool.MustNewNoFixed("hashtable"),
}

// DefaultAllocator returns the process wide allocator for hash table
// blocks.
func DefaultAllocator() Allocator {
	return defaultAllocator
}

func (a *poolArenaAllocator) Alloc(sz int) ([]byte, error) {
	if sz >= kMmapThreshold {
		data, err := unix.Mmap(-1, 0, sz,
			unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
		if err != nil {
			return nil, moerr.NewOOMNoCtx()
		}
		return data, nil
	}
	return a.pool.Alloc(sz)
}

// Free routes on capacity.  Pool buffers keep cap below the mmap
// threshold, mapped buffers keep the full mapping length.
func (a *poolArenaAllocator) Free(bs []byte) {
	if bs == nil {
		return
	}
	if cap(bs) >= kMmapThreshold {
		_ = unix.Munmap(bs[:cap(bs)])
		return
	}
	a.pool.Free(bs)
}
