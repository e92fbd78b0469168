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

import "unsafe"

const (
	kInitialCellCntBits = 10
	kInitialCellCnt     = 1 << kInitialCellCntBits

	kLoadFactorNumerator   = 1
	kLoadFactorDenominator = 2

	// a block never grows past this many bytes, growth past it adds
	// blocks instead of reallocating
	maxBlockSize = 1 << 28
)

type Int64HashMapCell struct {
	Key    uint64
	Mapped uint64
}

type StringHashMapCell struct {
	HashState [3]uint64
	Mapped    uint64
}

// BytesHashMapCell points into the owning map's BytesPool. Chunk, Off
// and Len locate the stored key, probes compare those bytes before
// they trust the hash.
type BytesHashMapCell struct {
	Hash   uint64
	Chunk  uint32
	Off    uint32
	Len    uint32
	Mapped uint64
}

// StrKeyPadding pads short string keys up to 16 bytes so rows with
// equal key prefixes of different widths stay distinct.
var StrKeyPadding [16]byte

var (
	intCellSize             uint64
	maxIntCellCntPerBlock   uint64
	strCellSize             uint64
	maxStrCellCntPerBlock   uint64
	bytesCellSize           uint64
	maxBytesCellCntPerBlock uint64
)

func init() {
	intCellSize = uint64(unsafe.Sizeof(Int64HashMapCell{}))
	maxIntCellCntPerBlock = maxBlockSize / intCellSize
	strCellSize = uint64(unsafe.Sizeof(StringHashMapCell{}))
	maxStrCellCntPerBlock = maxBlockSize / strCellSize
	bytesCellSize = uint64(unsafe.Sizeof(BytesHashMapCell{}))
	maxBytesCellCntPerBlock = maxBlockSize / bytesCellSize
}

func maxElemCnt(cellCnt uint64) uint64 {
	return cellCnt * kLoadFactorNumerator / kLoadFactorDenominator
}
