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

package testing

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ZaparooProject/go-pn532-hce/internal/syncutil"
)

// errTransportClosed wraps io.ErrClosedPipe so callers classify it as fatal.
var errTransportClosed = fmt.Errorf("simulator transport closed: %w", io.ErrClosedPipe)

// CommandLogEntry records one write to the simulator.
type CommandLogEntry struct {
	Timestamp time.Time
	Data      []byte
}

// SimulatorTransport exposes a VirtualPN532 as an I2C style bus. It
// satisfies pn532.Transport.
type SimulatorTransport struct {
	sim        *VirtualPN532
	CommandLog []CommandLogEntry
	mu         syncutil.Mutex
	closed     bool
}

// NewSimulatorTransport wraps sim.
func NewSimulatorTransport(sim *VirtualPN532) *SimulatorTransport {
	return &SimulatorTransport{sim: sim}
}

// Write forwards a frame to the simulator.
func (t *SimulatorTransport) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("simulator write: %w", err)
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errTransportClosed
	}
	t.CommandLog = append(t.CommandLog, CommandLogEntry{Timestamp: time.Now(), Data: append([]byte(nil), data...)})
	t.mu.Unlock()

	if _, err := t.sim.Write(data); err != nil {
		return fmt.Errorf("simulator write: %w", err)
	}
	return nil
}

// Read performs one I2C style read.
func (t *SimulatorTransport) Read(ctx context.Context, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("simulator read: %w", err)
	}
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return 0, errTransportClosed
	}
	n, err := t.sim.ReadI2C(buf)
	if err != nil {
		return n, fmt.Errorf("simulator read: %w", err)
	}
	return n, nil
}

// Close marks the transport closed.
func (t *SimulatorTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (t *SimulatorTransport) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (*SimulatorTransport) String() string {
	return "sim:0x24"
}

// Writes returns the number of frames written.
func (t *SimulatorTransport) Writes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.CommandLog)
}
