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
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	ants "github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestPool(t *testing.T) {
	pool := NewPool[any](2)
	defer pool.Release()

	taskNum := pool.Cap() * 2
	futures := make([]*Future[any], 0, taskNum)
	for i := 0; i < taskNum; i++ {
		res := i
		future := pool.Submit(func() (any, error) {
			time.Sleep(10 * time.Millisecond)
			return res, nil
		})
		futures = append(futures, future)
	}

	require.NoError(t, AwaitAll(futures...))
	for i, future := range futures {
		res, err := future.Await()
		assert.NoError(t, err)
		assert.Equal(t, i, res.(int))
		assert.True(t, future.OK())
	}
}

func TestPoolUnlimited(t *testing.T) {
	pool := NewPool[int](0)
	defer pool.Release()

	assert.Equal(t, -1, pool.Cap())
	f := pool.Submit(func() (int, error) { return 42, nil })
	assert.Equal(t, 42, f.Value())
}

func TestPoolNonBlockingOverload(t *testing.T) {
	pool := NewPool[struct{}](1, WithNonBlocking(true))
	defer pool.Release()

	release := make(chan struct{})
	first := pool.Submit(func() (struct{}, error) {
		<-release
		return struct{}{}, nil
	})

	second, err := pool.TrySubmit(func() (struct{}, error) {
		return struct{}{}, nil
	})
	assert.ErrorIs(t, err, ants.ErrPoolOverload)
	assert.ErrorIs(t, second.Err(), ants.ErrPoolOverload)

	close(release)
	assert.NoError(t, first.Err())
}

func TestPoolPreHandler(t *testing.T) {
	counter := atomic.NewInt32(0)
	pool := NewPool[struct{}](1, WithPreHandler(func() { counter.Inc() }))
	defer pool.Release()

	BlockOnAll(
		pool.Submit(func() (struct{}, error) { return struct{}{}, nil }),
		pool.Submit(func() (struct{}, error) { return struct{}{}, errors.New("mock") }),
	)
	assert.Equal(t, int32(2), counter.Load())
}

func TestPoolConcealPanic(t *testing.T) {
	pool := NewPool[int](1, WithConcealPanic(true), WithName("panic"))
	defer pool.Release()

	f := pool.Submit(func() (int, error) {
		panic("mock panic")
	})
	select {
	case <-f.Inner():
	case <-time.After(5 * time.Second):
		t.Fatal("future not resolved after panic")
	}
	assert.ErrorIs(t, f.Err(), ErrTaskPanicked)
}

func TestPoolReleased(t *testing.T) {
	pool := NewPool[int](1)
	pool.Release()

	f := pool.Submit(func() (int, error) { return 1, nil })
	assert.ErrorIs(t, f.Err(), ants.ErrPoolClosed)
}
