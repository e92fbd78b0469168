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

// Package reuse pools operator argument structs. Every operator
// registers a pool in its init and allocates arguments through
// Alloc/Free instead of plain new, so pipeline setup and teardown do
// not churn the allocator. A debug checker can track each object and
// panic on double get, double free and free-less garbage collection.
package reuse

import (
	"os"
	"sync"
	"sync/atomic"
)

var (
	enableChecker atomic.Bool
	enableVerbose atomic.Bool

	// type name -> Pool[T]. Pools register once in package inits.
	pools = sync.Map{}
)

func init() {
	if os.Getenv("cs_reuse_enable_checker") == "true" {
		enableChecker.Store(true)
	}
	if os.Getenv("cs_reuse_enable_verbose") == "true" {
		enableVerbose.Store(true)
	}
}

// ReusableObject is implemented by any argument struct managed here.
// TypeName must be stable and unique, it keys the pool registry.
type ReusableObject interface {
	TypeName() string
}

// Pool allocates and recycles objects of one type.
type Pool[T ReusableObject] interface {
	Alloc() *T
	Free(*T)
}

// Options controls how a pool is created.
type Options[T ReusableObject] struct {
	enableChecker bool
	release       func(*T)
}

func DefaultOptions[T ReusableObject]() *Options[T] {
	return &Options[T]{}
}

// WithEnableChecker lets the global checker track this pool's objects.
// The checker still has to be switched on, see RunReuseTests.
func (opts *Options[T]) WithEnableChecker() *Options[T] {
	opts.enableChecker = true
	return opts
}

// WithReleaseFunc runs fn right before an object goes back to the
// pool, after the reset func.
func (opts *Options[T]) WithReleaseFunc(fn func(*T)) *Options[T] {
	opts.release = fn
	return opts
}

func (opts *Options[T]) adjust() {
	if opts.release == nil {
		opts.release = func(*T) {}
	}
}

// CreatePool registers the pool for T. Registering a type twice is a
// programming error and panics.
func CreatePool[T ReusableObject](
	new func() *T,
	reset func(*T),
	opts *Options[T]) {
	var v T
	name := v.TypeName()
	if _, ok := pools.Load(name); ok {
		panic("duplicate create pool: " + name)
	}
	pools.Store(name, newSyncBased(new, reset, opts))
}

// Alloc returns an object from p, or from T's registered pool when p
// is nil.
func Alloc[T ReusableObject](p Pool[T]) *T {
	if p == nil {
		p = getPool[T]()
	}
	return p.Alloc()
}

// Free returns v to p, or to T's registered pool when p is nil.
func Free[T ReusableObject](v *T, p Pool[T]) {
	if p == nil {
		p = getPool[T]()
	}
	p.Free(v)
}

func getPool[T ReusableObject]() Pool[T] {
	var v T
	name := v.TypeName()
	p, ok := pools.Load(name)
	if !ok {
		panic("pool not created: " + name)
	}
	return p.(Pool[T])
}
