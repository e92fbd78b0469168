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
	"bytes"
	"io"
	"unsafe"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/container/types"
)

// BytesHashMap maps byte keys of any length to values starting from 1.
// Unlike StringHashMap it retains every key in a BytesPool and compares
// probes byte for byte, so equal mappings always mean equal keys.
type BytesHashMap struct {
	allocator Allocator

	blockCellCnt    uint64
	blockMaxElemCnt uint64
	cellCntMask     uint64

	cellCnt uint64
	elemCnt uint64
	rawData [][]byte
	cells   [][]BytesHashMapCell

	pool BytesPool
}

func (ht *BytesHashMap) Init(allocator Allocator) error {
	if allocator == nil {
		allocator = DefaultAllocator()
	}
	ht.allocator = allocator
	ht.blockCellCnt = kInitialCellCnt
	ht.blockMaxElemCnt = maxElemCnt(kInitialCellCnt)
	ht.elemCnt = 0
	ht.cellCnt = kInitialCellCnt
	ht.cellCntMask = kInitialCellCnt - 1

	ht.rawData = make([][]byte, 1)
	ht.cells = make([][]BytesHashMapCell, 1)
	ht.pool.Init(allocator)

	return ht.allocate(0, ht.blockCellCnt*bytesCellSize)
}

func (ht *BytesHashMap) allocate(index int, size uint64) error {
	if ht.rawData[index] != nil {
		panic("overwriting")
	}
	bs, err := ht.allocator.Alloc(int(size))
	if err != nil {
		return err
	}
	ht.rawData[index] = bs
	ht.cells[index] = unsafe.Slice((*BytesHashMapCell)(unsafe.Pointer(&ht.rawData[index][0])), ht.blockCellCnt)
	return nil
}

func (ht *BytesHashMap) Free() {
	for i := range ht.rawData {
		if len(ht.rawData[i]) > 0 {
			ht.allocator.Free(ht.rawData[i])
		}
		ht.rawData[i], ht.cells[i] = nil, nil
	}
	ht.rawData, ht.cells = nil, nil
	ht.pool.Free()
}

// Key returns the stored bytes of an occupied cell.
func (ht *BytesHashMap) Key(cell *BytesHashMapCell) []byte {
	return ht.pool.Get(cell.Chunk, cell.Off, cell.Len)
}

func (ht *BytesHashMap) InsertBytesBatch(hashes []uint64, keys [][]byte, values []uint64) error {
	if err := ht.ResizeOnDemand(uint64(len(keys))); err != nil {
		return err
	}

	BytesBatchHash(&keys[0], &hashes[0], len(keys))

	for i := range keys {
		cell := ht.findCell(hashes[i], keys[i])
		if cell.Mapped == 0 {
			// persist the key before the cell becomes visible, a failed
			// append leaves the cell empty
			chunk, off, err := ht.pool.Append(keys[i])
			if err != nil {
				return err
			}
			ht.elemCnt++
			cell.Hash = hashes[i]
			cell.Chunk = chunk
			cell.Off = off
			cell.Len = uint32(len(keys[i]))
			cell.Mapped = ht.elemCnt
		}
		values[i] = cell.Mapped
	}
	return nil
}

func (ht *BytesHashMap) InsertBytesBatchWithRing(zValues []int64, hashes []uint64, keys [][]byte, values []uint64) error {
	if err := ht.ResizeOnDemand(uint64(len(keys))); err != nil {
		return err
	}

	BytesBatchHash(&keys[0], &hashes[0], len(keys))

	for i := range keys {
		if zValues[i] == 0 {
			continue
		}

		cell := ht.findCell(hashes[i], keys[i])
		if cell.Mapped == 0 {
			chunk, off, err := ht.pool.Append(keys[i])
			if err != nil {
				return err
			}
			ht.elemCnt++
			cell.Hash = hashes[i]
			cell.Chunk = chunk
			cell.Off = off
			cell.Len = uint32(len(keys[i]))
			cell.Mapped = ht.elemCnt
		}
		values[i] = cell.Mapped
	}
	return nil
}

func (ht *BytesHashMap) FindBytesBatch(hashes []uint64, keys [][]byte, values []uint64) {
	BytesBatchHash(&keys[0], &hashes[0], len(keys))

	for i := range keys {
		cell := ht.findCell(hashes[i], keys[i])
		values[i] = cell.Mapped
	}
}

func (ht *BytesHashMap) FindBytesBatchWithRing(zValues []int64, hashes []uint64, keys [][]byte, values []uint64) {
	BytesBatchHash(&keys[0], &hashes[0], len(keys))

	for i := range keys {
		if zValues[i] == 0 {
			values[i] = 0
			continue
		}
		cell := ht.findCell(hashes[i], keys[i])
		values[i] = cell.Mapped
	}
}

func (ht *BytesHashMap) findCell(hash uint64, key []byte) *BytesHashMapCell {
	for idx := hash & ht.cellCntMask; true; idx = (idx + 1) & ht.cellCntMask {
		blockId := idx / ht.blockCellCnt
		cellId := idx % ht.blockCellCnt
		cell := &ht.cells[blockId][cellId]
		if cell.Mapped == 0 {
			return cell
		}
		if cell.Hash == hash && cell.Len == uint32(len(key)) && bytes.Equal(ht.Key(cell), key) {
			return cell
		}
	}
	return nil
}

func (ht *BytesHashMap) findEmptyCell(hash uint64) *BytesHashMapCell {
	for idx := hash & ht.cellCntMask; true; idx = (idx + 1) & ht.cellCntMask {
		blockId := idx / ht.blockCellCnt
		cellId := idx % ht.blockCellCnt
		cell := &ht.cells[blockId][cellId]
		if cell.Mapped == 0 {
			return cell
		}
	}
	return nil
}

func (ht *BytesHashMap) ResizeOnDemand(n uint64) error {
	targetCnt := ht.elemCnt + n
	if targetCnt <= uint64(len(ht.rawData))*ht.blockMaxElemCnt {
		return nil
	}

	newCellCnt := ht.cellCnt << 1
	newMaxElemCnt := maxElemCnt(newCellCnt)
	for newMaxElemCnt < targetCnt {
		newCellCnt <<= 1
		newMaxElemCnt = maxElemCnt(newCellCnt)
	}

	newAlloc := int(newCellCnt * bytesCellSize)
	if ht.blockCellCnt == maxBytesCellCntPerBlock {
		// double the blocks
		oldBlockNum := len(ht.rawData)
		newBlockNum := newAlloc / maxBlockSize

		ht.rawData = append(ht.rawData, make([][]byte, newBlockNum-oldBlockNum)...)
		ht.cells = append(ht.cells, make([][]BytesHashMapCell, newBlockNum-oldBlockNum)...)
		ht.cellCnt = ht.blockCellCnt * uint64(newBlockNum)
		ht.cellCntMask = ht.cellCnt - 1

		for i := oldBlockNum; i < newBlockNum; i++ {
			if err := ht.allocate(i, ht.blockCellCnt*bytesCellSize); err != nil {
				return err
			}
		}

		// rearrange the cells
		var block []BytesHashMapCell
		var emptyCell BytesHashMapCell

		for i := 0; i < oldBlockNum; i++ {
			block = ht.cells[i]
			for j := uint64(0); j < ht.blockCellCnt; j++ {
				cell := &block[j]
				if cell.Mapped == 0 {
					continue
				}
				newCell := ht.findCell(cell.Hash, ht.Key(cell))
				if newCell != cell {
					*newCell = *cell
					*cell = emptyCell
				}
			}
		}

		block = ht.cells[oldBlockNum]
		for j := uint64(0); j < ht.blockCellCnt; j++ {
			cell := &block[j]
			if cell.Mapped == 0 {
				break
			}
			newCell := ht.findCell(cell.Hash, ht.Key(cell))
			if newCell != cell {
				*newCell = *cell
				*cell = emptyCell
			}
		}
	} else {
		oldCells0 := ht.cells[0]
		oldData0 := ht.rawData[0]
		ht.rawData[0] = nil
		ht.cellCnt = newCellCnt
		ht.cellCntMask = newCellCnt - 1

		if newAlloc <= maxBlockSize {
			ht.blockCellCnt = newCellCnt
			ht.blockMaxElemCnt = newMaxElemCnt

			if err := ht.allocate(0, uint64(newAlloc)); err != nil {
				return err
			}
		} else {
			ht.blockCellCnt = maxBytesCellCntPerBlock
			ht.blockMaxElemCnt = maxElemCnt(ht.blockCellCnt)

			newBlockNum := newAlloc / maxBlockSize
			ht.rawData = make([][]byte, newBlockNum)
			ht.cells = make([][]BytesHashMapCell, newBlockNum)
			ht.cellCnt = ht.blockCellCnt * uint64(newBlockNum)
			ht.cellCntMask = ht.cellCnt - 1

			for i := 0; i < newBlockNum; i++ {
				if err := ht.allocate(i, ht.blockCellCnt*bytesCellSize); err != nil {
					return err
				}
			}
		}

		// rearrange the cells
		for i := range oldCells0 {
			cell := &oldCells0[i]
			if cell.Mapped != 0 {
				newCell := ht.findEmptyCell(cell.Hash)
				*newCell = *cell
			}
		}

		ht.allocator.Free(oldData0)
	}

	return nil
}

func (ht *BytesHashMap) Cardinality() uint64 {
	return ht.elemCnt
}

func (ht *BytesHashMap) Size() int64 {
	// 160 is the fixed size of BytesHashMap
	ret := int64(160)
	for i := range ht.rawData {
		ret += 24
		ret += int64(len(ht.rawData[i]))
	}
	ret += ht.pool.Size()
	return ret
}

type BytesHashMapIterator struct {
	table *BytesHashMap
	pos   uint64
}

func (it *BytesHashMapIterator) Init(ht *BytesHashMap) {
	it.table = ht
}

func (it *BytesHashMapIterator) Next() (cell *BytesHashMapCell, err error) {
	for it.pos < it.table.cellCnt {
		blockId := it.pos / it.table.blockCellCnt
		cellId := it.pos % it.table.blockCellCnt
		cell = &it.table.cells[blockId][cellId]
		if cell.Mapped != 0 {
			break
		}
		it.pos++
	}

	if it.pos >= it.table.cellCnt {
		err = moerr.NewInternalErrorNoCtx("out of range")
		return
	}
	it.pos++

	return
}

func (ht *BytesHashMap) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	buf.Write(types.EncodeUint64(&ht.elemCnt))
	buf.Write(types.EncodeUint64(&ht.cellCnt))
	buf.Write(types.EncodeUint64(&ht.blockCellCnt))
	buf.Write(types.EncodeUint64(&ht.blockMaxElemCnt))
	buf.Write(types.EncodeUint64(&ht.cellCntMask))

	// the occupied cell count, then each key with its mapping
	buf.Write(types.EncodeUint64(&ht.elemCnt))
	if ht.elemCnt > 0 {
		for _, block := range ht.cells {
			for i := range block {
				if block[i].Mapped != 0 {
					keyLen := block[i].Len
					buf.Write(types.EncodeUint64(&block[i].Hash))
					buf.Write(types.EncodeUint32(&keyLen))
					buf.Write(ht.Key(&block[i]))
					buf.Write(types.EncodeUint64(&block[i].Mapped))
				}
			}
		}
	}

	return buf.Bytes(), nil
}

func (ht *BytesHashMap) UnmarshalBinary(data []byte, allocator Allocator) error {
	r := bytes.NewBuffer(data)

	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	ht.elemCnt = types.DecodeUint64(buf[:])
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	ht.cellCnt = types.DecodeUint64(buf[:])
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	ht.blockCellCnt = types.DecodeUint64(buf[:])
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	ht.blockMaxElemCnt = types.DecodeUint64(buf[:])
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	ht.cellCntMask = types.DecodeUint64(buf[:])

	if allocator == nil {
		allocator = DefaultAllocator()
	}
	ht.allocator = allocator
	ht.pool.Init(allocator)

	numBlocks := int(ht.cellCnt / ht.blockCellCnt)
	if ht.cellCnt%ht.blockCellCnt != 0 {
		numBlocks++
	}
	ht.rawData = make([][]byte, numBlocks)
	ht.cells = make([][]BytesHashMapCell, numBlocks)

	for i := 0; i < numBlocks; i++ {
		if err := ht.allocate(i, ht.blockCellCnt*bytesCellSize); err != nil {
			return err
		}
	}

	numCells := types.DecodeUint64(r.Next(8))
	for i := uint64(0); i < numCells; i++ {
		hash := types.DecodeUint64(r.Next(8))
		keyLen := types.DecodeUint32(r.Next(4))
		key := r.Next(int(keyLen))
		mapped := types.DecodeUint64(r.Next(8))

		chunk, off, err := ht.pool.Append(key)
		if err != nil {
			return err
		}
		cell := ht.findEmptyCell(hash)
		cell.Hash = hash
		cell.Chunk = chunk
		cell.Off = off
		cell.Len = keyLen
		cell.Mapped = mapped
	}
	return nil
}
