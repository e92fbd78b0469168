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
	"math/bits"
	"math/rand"
	"unsafe"
)

// The tables hash with wyhash on every platform.  The seeds are drawn
// per process, so hash states are only comparable within one process.

var hashkey [4]uint64

func init() {
	hashkey[0] = rand.Uint64()
	hashkey[1] = rand.Uint64()
	hashkey[2] = rand.Uint64()
	hashkey[3] = rand.Uint64()
}

const (
	m1 = 0xa0761d6478bd642f
	m2 = 0xe7037ed1a0b428db
	m3 = 0x8ebc6af09c88c6e3
	m4 = 0x589965cc75374cc3
	m5 = 0x1d8e4e27c47d124f
)

// Int64BatchHash hashes length packed uint64 keys starting at data.
func Int64BatchHash(data unsafe.Pointer, hashes *uint64, length int) {
	dataSlice := unsafe.Slice((*uint64)(data), length)
	hashSlice := unsafe.Slice(hashes, length)

	for i := 0; i < length; i++ {
		hashSlice[i] = wyhash64(dataSlice[i])
	}
}

// Int64CellBatchHash rehashes the keys of length cells starting at
// data, used when cells move between blocks.
func Int64CellBatchHash(data unsafe.Pointer, hashes *uint64, length int) {
	dataSlice := unsafe.Slice((*Int64HashMapCell)(data), length)
	hashSlice := unsafe.Slice(hashes, length)

	for i := 0; i < length; i++ {
		hashSlice[i] = wyhash64(dataSlice[i].Key)
	}
}

// BytesBatchHash hashes length byte keys starting at data into single
// lane hashes.
func BytesBatchHash(data *[]byte, hashes *uint64, length int) {
	dataSlice := unsafe.Slice(data, length)
	hashSlice := unsafe.Slice(hashes, length)

	for i := 0; i < length; i++ {
		bs := dataSlice[i]
		hashSlice[i] = wyhash(unsafe.Pointer(unsafe.SliceData(bs)), hashkey[1], uint64(len(bs)))
	}
}

// BytesBatchGenHashStates derives the three lane hash state of length
// byte keys starting at data.
func BytesBatchGenHashStates(data *[]byte, states *[3]uint64, length int) {
	dataSlice := unsafe.Slice(data, length)
	stateSlice := unsafe.Slice(states, length)

	for i := 0; i < length; i++ {
		bs := dataSlice[i]
		ptr := unsafe.Pointer(unsafe.SliceData(bs))
		l := uint64(len(bs))
		stateSlice[i][0] = wyhash(ptr, hashkey[1], l)
		stateSlice[i][1] = wyhash(ptr, hashkey[2], l)
		stateSlice[i][2] = wyhash(ptr, hashkey[3], l)
	}
}

func wyhash(data unsafe.Pointer, seed, s uint64) uint64 {
	var a, b uint64
	seed ^= hashkey[0] ^ m1
	switch {
	case s == 0:
		return seed
	case s < 4:
		a = uint64(*(*byte)(data))
		a |= uint64(*(*byte)(unsafe.Add(data, s>>1))) << 8
		a |= uint64(*(*byte)(unsafe.Add(data, s-1))) << 16
	case s == 4:
		a = r4(data, 0)
		b = a
	case s < 8:
		a = r4(data, 0)
		b = r4(data, s-4)
	case s == 8:
		a = r8(data, 0)
		b = a
	case s <= 16:
		a = r8(data, 0)
		b = r8(data, s-8)
	default:
		l := s
		if l > 48 {
			seed1 := seed
			seed2 := seed
			for ; l > 48; l -= 48 {
				seed = mix(r8(data, 0)^m2, r8(data, 8)^seed)
				seed1 = mix(r8(data, 16)^m3, r8(data, 24)^seed1)
				seed2 = mix(r8(data, 32)^m4, r8(data, 40)^seed2)
				data = unsafe.Add(data, 48)
			}
			seed ^= seed1 ^ seed2
		}
		for ; l > 16; l -= 16 {
			seed = mix(r8(data, 0)^m2, r8(data, 8)^seed)
			data = unsafe.Add(data, 16)
		}
		a = r8(data, l-16)
		b = r8(data, l-8)
	}

	return mix(m5^uint64(s), mix(a^m2, b^seed))
}

func mix(a, b uint64) uint64 {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	return hi ^ lo
}

func r4(data unsafe.Pointer, p uint64) uint64 {
	return uint64(*(*uint32)(unsafe.Add(data, p)))
}

func r8(data unsafe.Pointer, p uint64) uint64 {
	return *(*uint64)(unsafe.Add(data, p))
}

func wyhash64(x uint64) uint64 {
	return mix(m5^8, mix(x^m2, x^hashkey[1]^hashkey[0]^m1))
}
