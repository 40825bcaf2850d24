// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package frame

import "sync"

// BufferPool hands out read buffers for ACK polling and response reads.
type BufferPool struct {
	smallPool sync.Pool
	framePool sync.Pool
	largePool sync.Pool
}

// Buffer size classes
const (
	SmallBufferSize = 16   // ACK polling
	FrameBufferSize = 270  // one normal frame with overhead
	LargeBufferSize = 1024 // chunked GET DATA responses
)

var defaultPool = NewBufferPool()

// NewBufferPool creates a new buffer pool
func NewBufferPool() *BufferPool {
	mk := func(n int) func() any {
		return func() any {
			buf := make([]byte, n)
			return &buf
		}
	}
	return &BufferPool{
		smallPool: sync.Pool{New: mk(SmallBufferSize)},
		framePool: sync.Pool{New: mk(FrameBufferSize)},
		largePool: sync.Pool{New: mk(LargeBufferSize)},
	}
}

// GetBuffer returns a zeroed buffer of exactly size bytes. Sizes above
// LargeBufferSize are allocated directly.
func (p *BufferPool) GetBuffer(size int) []byte {
	var pool *sync.Pool
	switch {
	case size <= SmallBufferSize:
		pool = &p.smallPool
	case size <= FrameBufferSize:
		pool = &p.framePool
	case size <= LargeBufferSize:
		pool = &p.largePool
	default:
		return make([]byte, size)
	}

	bufPtr, ok := pool.Get().(*[]byte)
	if !ok {
		return make([]byte, size)
	}
	buf := (*bufPtr)[:size]
	clear(buf)
	return buf
}

// PutBuffer returns a buffer obtained from GetBuffer.
func (p *BufferPool) PutBuffer(buf []byte) {
	if buf == nil {
		return
	}
	full := buf[:cap(buf)]
	switch cap(buf) {
	case SmallBufferSize:
		p.smallPool.Put(&full)
	case FrameBufferSize:
		p.framePool.Put(&full)
	case LargeBufferSize:
		p.largePool.Put(&full)
	}
}

// GetBuffer gets a buffer from the default pool
func GetBuffer(size int) []byte {
	return defaultPool.GetBuffer(size)
}

// PutBuffer returns a buffer to the default pool
func PutBuffer(buf []byte) {
	defaultPool.PutBuffer(buf)
}
