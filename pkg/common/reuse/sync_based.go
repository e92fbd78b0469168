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

package reuse

import (
	"runtime"
	"sync"
)

type syncBased[T ReusableObject] struct {
	pool  sync.Pool
	reset func(*T)
	opts  *Options[T]
	c     *checker[T]
}

func newSyncBased[T ReusableObject](
	new func() *T,
	reset func(*T),
	opts *Options[T]) Pool[T] {
	opts.adjust()
	c := newChecker[T](opts.enableChecker)
	return &syncBased[T]{
		pool: sync.Pool{
			New: func() any {
				v := new()
				c.created(v)
				if enableChecker.Load() && opts.enableChecker {
					runtime.SetFinalizer(
						v,
						func(v *T) {
							c.gc(v)
						})
				}
				return v
			},
		},
		reset: reset,
		opts:  opts,
		c:     c,
	}
}

func (p *syncBased[T]) Alloc() *T {
	v := p.pool.Get().(*T)
	p.c.got(v)
	return v
}

func (p *syncBased[T]) Free(v *T) {
	p.c.free(v)
	p.reset(v)
	p.opts.release(v)
	p.pool.Put(v)
}
