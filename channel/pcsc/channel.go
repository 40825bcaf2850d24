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

// Package pcsc carries APDUs to a phone through a PC/SC contactless
// reader. The reader firmware handles detection and ISO14443-4, so only
// the APDU exchange of the payload service runs here.
//
// The PC/SC binding needs pcsclite and cgo; build with -tags pcsc to get
// Open. Channel itself works with any Card.
package pcsc

import (
	"context"
	"fmt"
	"strings"

	pn532 "github.com/ZaparooProject/go-pn532-hce"
	"github.com/ZaparooProject/go-pn532-hce/internal/syncutil"
)

// Card is a connected card, as returned by the PC/SC binding.
type Card interface {
	Transmit(cmd []byte) ([]byte, error)
	Disconnect() error
}

// Channel implements apdu.Channel over a Card.
type Channel struct {
	card    Card
	reader  string
	removed func(error) bool
	mu      syncutil.Mutex
}

// NewChannel wraps card, connected through the named reader.
func NewChannel(card Card, reader string) *Channel {
	return &Channel{card: card, reader: reader, removed: looksRemoved}
}

// Transmit sends one APDU. A card that left the field is reported as
// pn532.ErrNoTargetDetected.
func (c *Channel) Transmit(ctx context.Context, cmd []byte, maxResp int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pcsc transmit: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.card == nil {
		return nil, pn532.NewTransportError("transmit", c.reader, pn532.ErrTransportClosed, pn532.ErrorTypePermanent)
	}

	resp, err := c.card.Transmit(cmd)
	if err != nil {
		if c.removed(err) {
			return nil, fmt.Errorf("pcsc %s: %w: %w", c.reader, pn532.ErrNoTargetDetected, err)
		}
		return nil, pn532.NewTransportError("transmit", c.reader, err, pn532.ErrorTypeTransient)
	}
	if len(resp) > maxResp {
		return nil, fmt.Errorf("%w: %d byte response, limit %d", pn532.ErrDataTooLarge, len(resp), maxResp)
	}
	return resp, nil
}

// Close disconnects the card. Closing twice is a no-op.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.card == nil {
		return nil
	}
	err := c.card.Disconnect()
	c.card = nil
	if err != nil {
		return fmt.Errorf("pcsc disconnect %s: %w", c.reader, err)
	}
	return nil
}

func (c *Channel) String() string {
	return "pcsc:" + c.reader
}

// looksRemoved matches the removal errors of the various PC/SC stacks by
// message. The binding adds typed checks on top.
func looksRemoved(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"removed", "reset", "unpowered", "no smart card", "not transacted"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// readerPatterns are fragments of common contactless reader names.
var readerPatterns = []string{
	"ACR", "ACS", "NFC", "PICC", "CONTACTLESS",
	"SCL", "HID", "IDENTIV", "CCID", "DUAL",
}

// ContactlessReaders orders readers so that likely contactless ones come
// first. SAM slots are dropped.
func ContactlessReaders(readers []string) []string {
	var likely, other []string
	for _, r := range readers {
		upper := strings.ToUpper(r)
		if strings.Contains(upper, "SAM") {
			continue
		}
		matched := false
		for _, p := range readerPatterns {
			if strings.Contains(upper, p) {
				matched = true
				break
			}
		}
		if matched {
			likely = append(likely, r)
		} else {
			other = append(other, r)
		}
	}
	return append(likely, other...)
}

// PickReader selects name from readers, or the single contactless reader
// when name is empty.
func PickReader(readers []string, name string) (string, error) {
	candidates := ContactlessReaders(readers)
	if name != "" {
		for _, r := range candidates {
			if r == name || strings.Contains(r, name) {
				return r, nil
			}
		}
		return "", fmt.Errorf("pcsc reader %q: %w", name, pn532.ErrDeviceNotFound)
	}
	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("pcsc: %w", pn532.ErrDeviceNotFound)
	case 1:
		return candidates[0], nil
	default:
		return "", fmt.Errorf("pcsc: %w: %v", pn532.ErrAmbiguousDevice, candidates)
	}
}
