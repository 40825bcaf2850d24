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

// Package i2c provides I2C transport implementation for PN532
package i2c

import (
	"context"
	"fmt"
	"strings"

	pn532 "github.com/ZaparooProject/go-pn532-hce"
	"github.com/ZaparooProject/go-pn532-hce/internal/syncutil"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// Address is the PN532 7-bit I2C address (datasheet says 0x48, which
	// is the 8-bit write address including the R/W bit; periph.io and the
	// Linux kernel expect the 7-bit form: 0x48 >> 1 = 0x24).
	Address = 0x24

	// Max clock frequency (400 kHz).
	maxClockFreq = 400 * physic.KiloHertz
)

// Transport implements pn532.Transport over one I2C bus. Every read is a
// plain I2C read: the PN532 puts its status byte first.
type Transport struct {
	dev     *i2c.Dev
	bus     i2c.BusCloser // Held so Close() can release the OS file descriptor
	busName string
	mu      syncutil.Mutex
	closed  bool
}

// parseI2CPath extracts the bus path from a composite path.
// Accepts "/dev/i2c-1:0x24" or "/dev/i2c-1" (bare bus).
func parseI2CPath(path string) string {
	bus, _, _ := strings.Cut(path, ":")
	return bus
}

// New opens the named I2C bus, for example "/dev/i2c-1" or "1".
func New(busName string) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(parseI2CPath(busName))
	if err != nil {
		return nil, pn532.NewTransportError("open", busName,
			fmt.Errorf("%w: %w", pn532.ErrDeviceNotFound, err), pn532.ErrorTypePermanent)
	}

	// Ignore error, continue with default speed
	_ = bus.SetSpeed(maxClockFreq)

	return NewWithBus(bus, busName), nil
}

// NewWithBus wraps an already open bus.
func NewWithBus(bus i2c.BusCloser, busName string) *Transport {
	return &Transport{
		dev:     &i2c.Dev{Addr: Address, Bus: bus},
		bus:     bus,
		busName: busName,
	}
}

func (t *Transport) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("i2c %s: %w", op, err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return pn532.NewTransportError(op, t.busName, pn532.ErrTransportClosed, pn532.ErrorTypePermanent)
	}
	return nil
}

// Write sends one frame in a single I2C write.
func (t *Transport) Write(ctx context.Context, data []byte) error {
	if err := t.check(ctx, "write"); err != nil {
		return err
	}
	if err := t.dev.Tx(data, nil); err != nil {
		return t.busError("write", err)
	}
	return nil
}

// Read performs one I2C read of len(buf) bytes.
func (t *Transport) Read(ctx context.Context, buf []byte) (int, error) {
	if err := t.check(ctx, "read"); err != nil {
		return 0, err
	}
	if err := t.dev.Tx(nil, buf); err != nil {
		return 0, t.busError("read", err)
	}
	return len(buf), nil
}

// busError classifies a failed transaction. A vanished adapter cannot be
// retried.
func (t *Transport) busError(op string, err error) error {
	errType := pn532.ErrorTypeTransient
	if pn532.IsFatal(err) {
		errType = pn532.ErrorTypePermanent
	}
	return pn532.NewTransportError(op, t.busName, err, errType)
}

// Close releases the bus. Closing twice is a no-op.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.bus == nil {
		return nil
	}
	if err := t.bus.Close(); err != nil {
		return fmt.Errorf("failed to close I2C bus %s: %w", t.busName, err)
	}
	return nil
}

func (t *Transport) String() string {
	return fmt.Sprintf("i2c:%s@0x%02X", parseI2CPath(t.busName), Address)
}

var _ pn532.Transport = (*Transport)(nil)
