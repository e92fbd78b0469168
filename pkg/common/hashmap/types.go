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

package hashmap

import (
	"github.com/colstream/colstream/pkg/container/hashtable"
	"github.com/colstream/colstream/pkg/container/vector"
)

// UnitLimit is the largest number of rows a single Insert or Find call
// accepts. Callers walk larger batches in UnitLimit sized steps.
const UnitLimit = 256

var (
	_ HashMap = new(IntHashMap)
	_ HashMap = new(StrHashMap)
	_ HashMap = new(BytesHashMap)

	_ Iterator = new(intHashMapIterator)
	_ Iterator = new(strHashMapIterator)
	_ Iterator = new(bytesHashMapIterator)
)

// zero filled scratch used to reset the per call buffers.
var (
	zeroKeys   [UnitLimit]uint64
	zeroOffs   [UnitLimit]uint32
	zeroHashes [UnitLimit]uint64
)

// HashMap is the deduplication state shared by the grouping operators.
// Both implementations assign dense group ids starting from 1, with 0
// reserved to mean "no group".
type HashMap interface {
	// HasNull reports whether null keys form their own group. When
	// false, rows with a null key are skipped and get group id 0.
	HasNull() bool

	// Free releases the hash table memory.
	Free()

	// GroupCount returns the number of distinct groups seen so far.
	GroupCount() uint64

	// AddGroup and AddGroups bump the group count for rows grouped
	// outside the table, such as spilled or pre-aggregated input.
	AddGroup()
	AddGroups(uint64)

	// Size returns the memory footprint in bytes.
	Size() int64
}

// Iterator inserts or probes a run of rows against the owning map.
type Iterator interface {
	// Insert maps vecs[start : start+count] to group ids, creating
	// groups for unseen keys. The first result holds one group id per
	// row. The second is the zero ring: 0 marks rows skipped for a
	// null key when the map was built without null support.
	Insert(start, count int, vecs []*vector.Vector) ([]uint64, []int64, error)

	// Find is Insert without group creation. Unseen keys get id 0.
	Find(start, count int, vecs []*vector.Vector) ([]uint64, []int64)
}

// IntHashMap packs narrow fixed width keys into single uint64 values.
type IntHashMap struct {
	hasNull bool

	rows    uint64
	keys    []uint64
	keyOffs []uint32
	values  []uint64
	zValues []int64
	hashes  []uint64

	hashMap *hashtable.Int64HashMap
}

// StrHashMap hashes keys of any width from their byte form.
type StrHashMap struct {
	hasNull bool

	rows          uint64
	keys          [][]byte
	values        []uint64
	zValues       []int64
	strHashStates [][3]uint64

	hashMap *hashtable.StringHashMap
}

// BytesHashMap keys on the same byte form as StrHashMap but retains
// the exact bytes, so a match is never probabilistic.
type BytesHashMap struct {
	hasNull bool

	rows    uint64
	keys    [][]byte
	values  []uint64
	zValues []int64
	hashes  []uint64

	hashMap *hashtable.BytesHashMap
}

type intHashMapIterator struct {
	mp *IntHashMap
}

type strHashMapIterator struct {
	mp *StrHashMap
}

type bytesHashMapIterator struct {
	mp *BytesHashMap
}
