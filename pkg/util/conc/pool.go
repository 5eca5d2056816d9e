// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package conc

import (
	"github.com/cockroachdb/errors"
	ants "github.com/panjf2000/ants/v2"
)

// ErrTaskPanicked 表示任务在执行过程中发生了 panic 且被池吞掉。
var ErrTaskPanicked = errors.New("conc: task panicked")

// Pool 是对 ants.Pool 的泛型封装，每个任务返回一个 Future。
type Pool[T any] struct {
	inner *ants.Pool
	opt   *poolOption
}

// NewPool 创建协程池，cap <= 0 表示不限制 worker 数量。
func NewPool[T any](cap int, opts ...PoolOption) *Pool[T] {
	opt := defaultPoolOption()
	for _, o := range opts {
		o(opt)
	}

	pool, err := ants.NewPool(cap, opt.antsOptions()...)
	if err != nil {
		panic(err)
	}

	return &Pool[T]{
		inner: pool,
		opt:   opt,
	}
}

// Submit 提交一个任务。
// 非阻塞模式下池已满时，返回的 Future 立即完成并携带 ants.ErrPoolOverload。
func (pool *Pool[T]) Submit(method func() (T, error)) *Future[T] {
	future, _ := pool.TrySubmit(method)
	return future
}

// TrySubmit 与 Submit 相同，但同时返回提交阶段的错误，
// 调用方无需等待 Future 即可知道任务是否被接收。
func (pool *Pool[T]) TrySubmit(method func() (T, error)) (*Future[T], error) {
	future := newFuture[T]()
	err := pool.inner.Submit(func() {
		defer close(future.ch)
		future.err = ErrTaskPanicked
		if pool.opt.preHandler != nil {
			pool.opt.preHandler()
		}
		res, err := method()
		future.value = res
		future.err = err
	})
	if err != nil {
		future.err = err
		close(future.ch)
		return future, err
	}

	return future, nil
}

// Cap 返回池的容量，-1 表示不限制。
func (pool *Pool[T]) Cap() int {
	return pool.inner.Cap()
}

// Running 返回正在执行任务的 worker 数量。
func (pool *Pool[T]) Running() int {
	return pool.inner.Running()
}

// Free 返回空闲 worker 数量，不限容量的池返回 -1。
func (pool *Pool[T]) Free() int {
	return pool.inner.Free()
}

// Release 释放池，已提交的任务继续执行完毕。
func (pool *Pool[T]) Release() {
	pool.inner.Release()
}
