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

// every standard pool chunk sits at the mmap threshold, so chunks come
// straight from the OS
const kBytesPoolChunkSize = kMmapThreshold

// BytesPool retains the key bytes of a BytesHashMap. Appends fill the
// active chunk, keys wider than a chunk get a chunk of their own.
// Nothing is freed piecemeal, the whole pool goes at once.
type BytesPool struct {
	allocator Allocator

	chunks [][]byte
	active int
	off    uint64
}

func (p *BytesPool) Init(allocator Allocator) {
	if allocator == nil {
		allocator = DefaultAllocator()
	}
	p.allocator = allocator
	p.active = -1
}

// Append copies key into the pool and returns the chunk and offset it
// landed at.
func (p *BytesPool) Append(key []byte) (chunk, off uint32, err error) {
	n := uint64(len(key))
	if n > kBytesPoolChunkSize {
		bs, err := p.allocator.Alloc(len(key))
		if err != nil {
			return 0, 0, err
		}
		copy(bs, key)
		p.chunks = append(p.chunks, bs)
		return uint32(len(p.chunks) - 1), 0, nil
	}

	if p.active < 0 || p.off+n > kBytesPoolChunkSize {
		bs, err := p.allocator.Alloc(kBytesPoolChunkSize)
		if err != nil {
			return 0, 0, err
		}
		p.chunks = append(p.chunks, bs)
		p.active = len(p.chunks) - 1
		p.off = 0
	}
	copy(p.chunks[p.active][p.off:], key)
	at := p.off
	p.off += n
	return uint32(p.active), uint32(at), nil
}

// Get returns the stored key. The slice aliases pool memory and stays
// valid until Free.
func (p *BytesPool) Get(chunk, off, length uint32) []byte {
	return p.chunks[chunk][uint64(off) : uint64(off)+uint64(length)]
}

func (p *BytesPool) Size() int64 {
	var size int64
	for i := range p.chunks {
		size += 24
		size += int64(len(p.chunks[i]))
	}
	return size
}

func (p *BytesPool) Free() {
	for i := range p.chunks {
		if len(p.chunks[i]) > 0 {
			p.allocator.Free(p.chunks[i])
		}
		p.chunks[i] = nil
	}
	p.chunks = nil
	p.active = -1
	p.off = 0
}
