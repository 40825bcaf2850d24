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

package pn532

import (
	"context"

	"github.com/ZaparooProject/go-pn532-hce/internal/syncutil"
)

type mockRead struct {
	err  error
	data []byte
}

// MockTransport is a scripted Transport. Each Read consumes one queued
// result; with nothing queued it returns a not-ready status byte.
type MockTransport struct {
	writeErr  error
	reads     []mockRead
	writes    [][]byte
	readCount int
	mu        syncutil.Mutex
	closed    bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// QueueRead queues one read result. data starts with the status byte.
func (m *MockTransport) QueueRead(data ...byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads = append(m.reads, mockRead{data: append([]byte(nil), data...)})
}

// QueueNotReady queues n reads with a clear ready bit.
func (m *MockTransport) QueueNotReady(n int) {
	for range n {
		m.QueueRead(0x00)
	}
}

// QueueReadError queues a failing read.
func (m *MockTransport) QueueReadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads = append(m.reads, mockRead{err: err})
}

// SetWriteError makes every write fail with err.
func (m *MockTransport) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

func (m *MockTransport) Write(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrTransportClosed
	}
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes = append(m.writes, append([]byte(nil), data...))
	return nil
}

func (m *MockTransport) Read(_ context.Context, buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrTransportClosed
	}

	m.readCount++
	clear(buf)
	if len(m.reads) == 0 {
		return len(buf), nil
	}
	next := m.reads[0]
	m.reads = m.reads[1:]
	if next.err != nil {
		return 0, next.err
	}
	copy(buf, next.data)
	return len(buf), nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (*MockTransport) String() string {
	return "mock"
}

// Writes returns every frame written.
func (m *MockTransport) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	copy(out, m.writes)
	return out
}

// ReadCount returns how many reads were attempted.
func (m *MockTransport) ReadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readCount
}

// IsClosed reports whether Close was called.
func (m *MockTransport) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
