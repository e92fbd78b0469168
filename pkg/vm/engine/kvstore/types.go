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

package kvstore

import (
	"encoding/binary"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/google/btree"

	"github.com/colstream/colstream/pkg/container/types"
)

const (
	metaPrefix = "meta/"
	dataPrefix = "data/"
)

// TableDef describes one table of the store: its name and the column
// schema every block of the table follows.
type TableDef struct {
	Name  string
	Attrs []string
	Types []types.Type
}

// tableEntry is the in memory catalog record, ordered by table name.
type tableEntry struct {
	def    TableDef
	blocks uint64
}

func (e *tableEntry) Less(item btree.Item) bool {
	return e.def.Name < item.(*tableEntry).def.Name
}

// Store is a block store over a single pebble directory. The catalog
// is kept in an ordered tree and persisted under meta keys, block
// payloads live under data keys.
type Store struct {
	sync.RWMutex
	name   string
	db     *pebble.DB
	tables *btree.BTree
}

// BlockReader streams the blocks of one table in append order.
type BlockReader struct {
	itr   *pebble.Iterator
	attrs []string
	valid bool
}

func metaKey(table string) []byte {
	return []byte(metaPrefix + table)
}

func blockPrefix(table string) []byte {
	return []byte(dataPrefix + table + "/")
}

func blockKey(table string, seq uint64) []byte {
	k := make([]byte, 0, len(dataPrefix)+len(table)+1+8)
	k = append(k, dataPrefix...)
	k = append(k, table...)
	k = append(k, '/')
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return append(k, b[:]...)
}

// upperBound is the smallest key greater than every key with the
// given prefix.
func upperBound(k []byte) []byte {
	u := make([]byte, len(k))
	copy(u, k)
	for i := len(u) - 1; i >= 0; i-- {
		u[i] = u[i] + 1
		if u[i] != 0 {
			return u[:i+1]
		}
	}
	return nil
}
