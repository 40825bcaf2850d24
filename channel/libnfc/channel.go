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

// Package libnfc carries APDUs through libnfc, for boards driven by the
// libnfc stack instead of this module's own PN532 driver.
//
// The libnfc binding needs cgo; build with -tags libnfc to get Open.
// Channel itself works with any Initiator.
package libnfc

import (
	"context"
	"fmt"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532-hce"
	"github.com/ZaparooProject/go-pn532-hce/internal/syncutil"
)

// sakISO14443Part4 is the SAK bit of targets that speak ISO14443-4.
const sakISO14443Part4 = 0x20

// DefaultTimeout bounds one transceive.
const DefaultTimeout = time.Second

// maxFrame is the largest response libnfc can return.
const maxFrame = 262

// PassiveTarget is an ISO14443A target selected by the Initiator.
type PassiveTarget struct {
	UID  []byte
	ATS  []byte
	Sak  byte
	Atqa [2]byte
}

// Initiator is the part of a libnfc device used here.
type Initiator interface {
	// SelectTarget selects the first ISO14443A target, or returns a nil
	// target when the field is empty.
	SelectTarget() (*PassiveTarget, error)
	Deselect() error
	Transceive(tx, rx []byte, timeout time.Duration) (int, error)
	Close() error
	String() string
}

// Channel implements apdu.Channel on a libnfc initiator.
type Channel struct {
	ini      Initiator
	rx       []byte
	timeout  time.Duration
	selected bool
	mu       syncutil.Mutex
}

// NewChannel wraps ini. A zero timeout means DefaultTimeout.
func NewChannel(ini Initiator, timeout time.Duration) *Channel {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Channel{ini: ini, timeout: timeout, rx: make([]byte, maxFrame)}
}

// Detect selects a target that can run the payload service. Targets
// without ISO14443-4 support are released and reported as
// pn532.ErrNoTargetDetected.
func (c *Channel) Detect(ctx context.Context) (*pn532.Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("libnfc detect: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.ini.SelectTarget()
	if err != nil {
		return nil, pn532.NewTransportError("select target", c.ini.String(), err, pn532.ErrorTypeTransient)
	}
	if t == nil || len(t.UID) == 0 {
		return nil, pn532.ErrNoTargetDetected
	}
	if t.Sak&sakISO14443Part4 == 0 {
		pn532.Debugf("libnfc: target % X (SAK 0x%02X) is not ISO14443-4", t.UID, t.Sak)
		_ = c.ini.Deselect()
		return nil, pn532.ErrNoTargetDetected
	}
	c.selected = true
	return &pn532.Target{
		UID:     t.UID,
		ATS:     t.ATS,
		Number:  1,
		SensRes: uint16(t.Atqa[0])<<8 | uint16(t.Atqa[1]),
		SelRes:  t.Sak,
	}, nil
}

// Transmit exchanges one APDU with the selected target.
func (c *Channel) Transmit(ctx context.Context, cmd []byte, maxResp int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("libnfc transmit: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.selected {
		return nil, pn532.ErrNoTargetDetected
	}
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}

	n, err := c.ini.Transceive(cmd, c.rx, timeout)
	if err != nil {
		return nil, pn532.NewTransportError("transceive", c.ini.String(), err, pn532.ErrorTypeTransient)
	}
	if n > maxResp {
		return nil, fmt.Errorf("%w: %d byte response, limit %d", pn532.ErrDataTooLarge, n, maxResp)
	}
	return append([]byte(nil), c.rx[:n]...), nil
}

// Release deselects the target so the next Detect starts fresh.
func (c *Channel) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.selected {
		return nil
	}
	c.selected = false
	if err := c.ini.Deselect(); err != nil {
		return fmt.Errorf("libnfc deselect: %w", err)
	}
	return nil
}

// Close releases the device.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = false
	if err := c.ini.Close(); err != nil {
		return fmt.Errorf("libnfc close: %w", err)
	}
	return nil
}

func (c *Channel) String() string {
	return "libnfc:" + c.ini.String()
}
