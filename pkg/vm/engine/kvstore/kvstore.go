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
	"context"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/pebble"
	"github.com/google/btree"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/common/mpool"
	"github.com/colstream/colstream/pkg/container/batch"
)

// Open opens the store directory, creating it when missing, and loads
// the table catalog.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, moerr.NewInvalidPathNoCtx(dir)
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	s := &Store{
		name:   filepath.Base(dir),
		db:     db,
		tables: btree.New(2),
	}
	if err := s.loadCatalog(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Name is the catalog qualifier of the store, the base name of its
// directory.
func (s *Store) Name() string {
	return s.name
}

func (s *Store) loadCatalog() error {
	prefix := []byte(metaPrefix)
	itr := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	for valid := itr.First(); valid; valid = itr.Next() {
		v := itr.Value()
		r := make([]byte, len(v))
		copy(r, v)
		def, blocks := decodeTableMeta(r)
		s.tables.ReplaceOrInsert(&tableEntry{def: def, blocks: blocks})
	}
	err := itr.Error()
	if cerr := itr.Close(); err == nil {
		err = cerr
	}
	return err
}

// CreateTable registers the table and persists its definition.
func (s *Store) CreateTable(ctx context.Context, def TableDef) error {
	if def.Name == "" || strings.ContainsRune(def.Name, '/') {
		return moerr.NewInvalidInput(ctx, "invalid table name %q", def.Name)
	}
	if len(def.Attrs) == 0 || len(def.Attrs) != len(def.Types) {
		return moerr.NewInvalidInput(ctx, "table %s needs matching column names and types", def.Name)
	}

	s.Lock()
	defer s.Unlock()
	if s.tables.Get(&tableEntry{def: TableDef{Name: def.Name}}) != nil {
		return moerr.NewTableAlreadyExists(ctx, def.Name)
	}
	if err := s.db.Set(metaKey(def.Name), encodeTableMeta(def, 0), nil); err != nil {
		return err
	}
	s.tables.ReplaceOrInsert(&tableEntry{def: def})
	return nil
}

// GetTableDef returns the schema of one table.
func (s *Store) GetTableDef(ctx context.Context, table string) (TableDef, error) {
	s.RLock()
	defer s.RUnlock()
	e := s.entryLocked(table)
	if e == nil {
		return TableDef{}, moerr.NewNoSuchTable(ctx, s.name, table)
	}
	return e.def, nil
}

// Tables lists every table definition in name order.
func (s *Store) Tables() []TableDef {
	s.RLock()
	defer s.RUnlock()
	defs := make([]TableDef, 0, s.tables.Len())
	s.tables.Ascend(func(item btree.Item) bool {
		defs = append(defs, item.(*tableEntry).def)
		return true
	})
	return defs
}

// BlockCount returns how many blocks the table holds.
func (s *Store) BlockCount(ctx context.Context, table string) (uint64, error) {
	s.RLock()
	defer s.RUnlock()
	e := s.entryLocked(table)
	if e == nil {
		return 0, moerr.NewNoSuchTable(ctx, s.name, table)
	}
	return e.blocks, nil
}

// AppendBlock encodes the batch as the table's next block and commits
// it together with the bumped block count. The sequence of the new
// block is returned.
func (s *Store) AppendBlock(ctx context.Context, table string, bat *batch.Batch) (uint64, error) {
	s.Lock()
	defer s.Unlock()
	e := s.entryLocked(table)
	if e == nil {
		return 0, moerr.NewNoSuchTable(ctx, s.name, table)
	}
	if len(bat.Vecs) != len(e.def.Attrs) {
		return 0, moerr.NewInvalidInput(ctx,
			"block has %d columns, table %s has %d", len(bat.Vecs), table, len(e.def.Attrs))
	}
	for _, vec := range bat.Vecs {
		if vec.IsConst() {
			return 0, moerr.NewNotSupported(ctx, "constant vector in a stored block")
		}
	}
	payload, err := encodeBlock(bat)
	if err != nil {
		return 0, err
	}

	seq := e.blocks
	b := s.db.NewBatch()
	defer func() {
		_ = b.Close()
	}()
	if err := b.Set(blockKey(table, seq), payload, nil); err != nil {
		return 0, err
	}
	if err := b.Set(metaKey(table), encodeTableMeta(e.def, seq+1), nil); err != nil {
		return 0, err
	}
	if err := b.Commit(nil); err != nil {
		return 0, err
	}
	e.blocks = seq + 1
	return seq, nil
}

// GetBlock decodes one block by sequence number into memory owned by
// mp.
func (s *Store) GetBlock(ctx context.Context, table string, seq uint64, mp *mpool.MPool) (*batch.Batch, error) {
	s.RLock()
	e := s.entryLocked(table)
	s.RUnlock()
	if e == nil {
		return nil, moerr.NewNoSuchTable(ctx, s.name, table)
	}

	v, c, err := s.db.Get(blockKey(table, seq))
	if err == pebble.ErrNotFound {
		return nil, moerr.NewNoSuchBlock(ctx, seq, table)
	}
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return decodeBlock(ctx, v, e.def.Attrs, mp)
}

// NewBlockReader opens an iterator over the table's blocks in append
// order.
func (s *Store) NewBlockReader(ctx context.Context, table string) (*BlockReader, error) {
	s.RLock()
	e := s.entryLocked(table)
	s.RUnlock()
	if e == nil {
		return nil, moerr.NewNoSuchTable(ctx, s.name, table)
	}

	prefix := blockPrefix(table)
	itr := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	return &BlockReader{
		itr:   itr,
		attrs: e.def.Attrs,
		valid: itr.First(),
	}, nil
}

func (s *Store) entryLocked(table string) *tableEntry {
	item := s.tables.Get(&tableEntry{def: TableDef{Name: table}})
	if item == nil {
		return nil
	}
	return item.(*tableEntry)
}

// Read decodes the next block into memory owned by mp. A nil batch
// without error means the table is drained.
func (r *BlockReader) Read(ctx context.Context, mp *mpool.MPool) (*batch.Batch, error) {
	if !r.valid {
		return nil, r.itr.Error()
	}
	bat, err := decodeBlock(ctx, r.itr.Value(), r.attrs, mp)
	if err != nil {
		return nil, err
	}
	r.valid = r.itr.Next()
	return bat, nil
}

func (r *BlockReader) Close() error {
	return r.itr.Close()
}
