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

// Int64HashMap maps packed 8 byte keys to values starting from 1.  A
// cell with Mapped 0 is empty, so the zero key needs no special case.
type Int64HashMap struct {
	allocator Allocator

	blockCellCnt    uint64
	blockMaxElemCnt uint64
	cellCntMask     uint64

	cellCnt uint64
	elemCnt uint64
	rawData [][]byte
	cells   [][]Int64HashMapCell
}

func (ht *Int64HashMap) Init(allocator Allocator) error {
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
	ht.cells = make([][]Int64HashMapCell, 1)

	return ht.allocate(0, ht.blockCellCnt*intCellSize)
}

func (ht *Int64HashMap) allocate(index int, size uint64) error {
	if ht.rawData[index] != nil {
		panic("overwriting")
	}
	bs, err := ht.allocator.Alloc(int(size))
	if err != nil {
		return err
	}
	ht.rawData[index] = bs
	ht.cells[index] = unsafe.Slice((*Int64HashMapCell)(unsafe.Pointer(&ht.rawData[index][0])), ht.blockCellCnt)
	return nil
}

func (ht *Int64HashMap) Free() {
	for i := range ht.rawData {
		if len(ht.rawData[i]) > 0 {
			ht.allocator.Free(ht.rawData[i])
		}
		ht.rawData[i], ht.cells[i] = nil, nil
	}
	ht.rawData, ht.cells = nil, nil
}

func (ht *Int64HashMap) InsertBatch(n int, hashes []uint64, keysPtr unsafe.Pointer, values []uint64) error {
	if err := ht.ResizeOnDemand(uint64(n)); err != nil {
		return err
	}

	if hashes[0] == 0 {
		Int64BatchHash(keysPtr, &hashes[0], n)
	}

	keys := unsafe.Slice((*uint64)(keysPtr), n)
	for i, key := range keys {
		cell := ht.findCell(hashes[i], key)
		if cell.Mapped == 0 {
			ht.elemCnt++
			cell.Key = key
			cell.Mapped = ht.elemCnt
		}
		values[i] = cell.Mapped
	}
	return nil
}

func (ht *Int64HashMap) InsertBatchWithRing(n int, zValues []int64, hashes []uint64, keysPtr unsafe.Pointer, values []uint64) error {
	if err := ht.ResizeOnDemand(uint64(n)); err != nil {
		return err
	}

	if hashes[0] == 0 {
		Int64BatchHash(keysPtr, &hashes[0], n)
	}

	keys := unsafe.Slice((*uint64)(keysPtr), n)
	for i, key := range keys {
		if zValues[i] == 0 {
			continue
		}
		cell := ht.findCell(hashes[i], key)
		if cell.Mapped == 0 {
			ht.elemCnt++
			cell.Key = key
			cell.Mapped = ht.elemCnt
		}
		values[i] = cell.Mapped
	}
	return nil
}

func (ht *Int64HashMap) FindBatch(n int, hashes []uint64, keysPtr unsafe.Pointer, values []uint64) {
	if hashes[0] == 0 {
		Int64BatchHash(keysPtr, &hashes[0], n)
	}

	keys := unsafe.Slice((*uint64)(keysPtr), n)
	for i, key := range keys {
		cell := ht.findCell(hashes[i], key)
		values[i] = cell.Mapped
	}
}

func (ht *Int64HashMap) FindBatchWithRing(n int, zValues []int64, hashes []uint64, keysPtr unsafe.Pointer, values []uint64) {
	if hashes[0] == 0 {
		Int64BatchHash(keysPtr, &hashes[0], n)
	}

	keys := unsafe.Slice((*uint64)(keysPtr), n)
	for i, key := range keys {
		if zValues[i] == 0 {
			values[i] = 0
			continue
		}
		cell := ht.findCell(hashes[i], key)
		values[i] = cell.Mapped
	}
}

func (ht *Int64HashMap) findCell(hash uint64, key uint64) *Int64HashMapCell {
	for idx := hash & ht.cellCntMask; true; idx = (idx + 1) & ht.cellCntMask {
		blockId := idx / ht.blockCellCnt
		cellId := idx % ht.blockCellCnt
		cell := &ht.cells[blockId][cellId]
		if cell.Key == key || cell.Mapped == 0 {
			return cell
		}
	}
	return nil
}

func (ht *Int64HashMap) findEmptyCell(hash uint64, key uint64) *Int64HashMapCell {
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

func (ht *Int64HashMap) ResizeOnDemand(n uint64) error {
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

	newAlloc := int(newCellCnt * intCellSize)
	if ht.blockCellCnt == maxIntCellCntPerBlock {
		// double the blocks
		oldBlockNum := len(ht.rawData)
		newBlockNum := newAlloc / maxBlockSize

		ht.rawData = append(ht.rawData, make([][]byte, newBlockNum-oldBlockNum)...)
		ht.cells = append(ht.cells, make([][]Int64HashMapCell, newBlockNum-oldBlockNum)...)
		ht.cellCnt = ht.blockCellCnt * uint64(newBlockNum)
		ht.cellCntMask = ht.cellCnt - 1

		for i := oldBlockNum; i < newBlockNum; i++ {
			if err := ht.allocate(i, ht.blockCellCnt*intCellSize); err != nil {
				return err
			}
		}

		// rearrange the cells
		var hashes [256]uint64

		for i := 0; i < oldBlockNum; i++ {
			block := ht.cells[i]
			for j := uint64(0); j < ht.blockCellCnt; j += 256 {
				cells := block[j : j+256]
				Int64CellBatchHash(unsafe.Pointer(&cells[0]), &hashes[0], 256)
				for k := range cells {
					cell := &cells[k]
					if cell.Mapped == 0 {
						continue
					}
					newCell := ht.findCell(hashes[k], cell.Key)
					if newCell != cell {
						*newCell = *cell
						*cell = Int64HashMapCell{}
					}
				}
			}
		}

		block := ht.cells[oldBlockNum]
		for j := uint64(0); j < ht.blockCellCnt; j++ {
			cell := &block[j]
			if cell.Mapped == 0 {
				break
			}
			newCell := ht.findCell(wyhash64(cell.Key), cell.Key)
			if newCell != cell {
				*newCell = *cell
				*cell = Int64HashMapCell{}
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
			ht.blockCellCnt = maxIntCellCntPerBlock
			ht.blockMaxElemCnt = maxElemCnt(ht.blockCellCnt)

			newBlockNum := newAlloc / maxBlockSize
			ht.rawData = make([][]byte, newBlockNum)
			ht.cells = make([][]Int64HashMapCell, newBlockNum)
			ht.cellCnt = ht.blockCellCnt * uint64(newBlockNum)
			ht.cellCntMask = ht.cellCnt - 1

			for i := 0; i < newBlockNum; i++ {
				if err := ht.allocate(i, ht.blockCellCnt*intCellSize); err != nil {
					return err
				}
			}
		}

		// rearrange the cells
		var hashes [256]uint64
		for i := 0; i < len(oldCells0); i += 256 {
			cells := oldCells0[i : i+256]
			Int64CellBatchHash(unsafe.Pointer(&cells[0]), &hashes[0], 256)
			for j := range cells {
				cell := &cells[j]
				if cell.Mapped != 0 {
					newCell := ht.findEmptyCell(hashes[j], cell.Key)
					*newCell = *cell
				}
			}
		}

		ht.allocator.Free(oldData0)
	}

	return nil
}

func (ht *Int64HashMap) Cardinality() uint64 {
	return ht.elemCnt
}

func (ht *Int64HashMap) Size() int64 {
	// 96 is the fixed size of Int64HashMap
	ret := int64(96)
	for i := range ht.rawData {
		ret += 24
		ret += int64(len(ht.rawData[i]))
	}
	return ret
}

type Int64HashMapIterator struct {
	table *Int64HashMap
	pos   uint64
}

func (it *Int64HashMapIterator) Init(ht *Int64HashMap) {
	it.table = ht
}

func (it *Int64HashMapIterator) Next() (cell *Int64HashMapCell, err error) {
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

func (ht *Int64HashMap) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	buf.Write(types.EncodeUint64(&ht.elemCnt))
	buf.Write(types.EncodeUint64(&ht.cellCnt))
	buf.Write(types.EncodeUint64(&ht.blockCellCnt))
	buf.Write(types.EncodeUint64(&ht.blockMaxElemCnt))
	buf.Write(types.EncodeUint64(&ht.cellCntMask))

	// the occupied cell count, then the cells themselves
	buf.Write(types.EncodeUint64(&ht.elemCnt))
	if ht.elemCnt > 0 {
		for _, block := range ht.cells {
			for i := range block {
				if block[i].Mapped != 0 {
					buf.Write(types.EncodeUint64(&block[i].Key))
					buf.Write(types.EncodeUint64(&block[i].Mapped))
				}
			}
		}
	}

	return buf.Bytes(), nil
}

func (ht *Int64HashMap) UnmarshalBinary(data []byte, allocator Allocator) error {
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

	numBlocks := int(ht.cellCnt / ht.blockCellCnt)
	if ht.cellCnt%ht.blockCellCnt != 0 {
		numBlocks++
	}
	ht.rawData = make([][]byte, numBlocks)
	ht.cells = make([][]Int64HashMapCell, numBlocks)

	for i := 0; i < numBlocks; i++ {
		if err := ht.allocate(i, ht.blockCellCnt*intCellSize); err != nil {
			return err
		}
	}

	numCells := types.DecodeUint64(r.Next(8))
	for i := uint64(0); i < numCells; i++ {
		var cell Int64HashMapCell
		cell.Key = types.DecodeUint64(r.Next(8))
		cell.Mapped = types.DecodeUint64(r.Next(8))
		*ht.findEmptyCell(wyhash64(cell.Key), cell.Key) = cell
	}
	return nil
}
