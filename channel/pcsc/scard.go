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

//go:build pcsc

package pcsc

import (
	"context"
	"errors"
	"fmt"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532-hce"
	"github.com/ebfe/scard"
)

// DefaultWaitSlice bounds one GetStatusChange call so ctx is honored.
const DefaultWaitSlice = 500 * time.Millisecond

// Reader is an established PC/SC context bound to one reader.
type Reader struct {
	ctx  *scard.Context
	name string
}

// Open establishes a PC/SC context and picks the reader; see PickReader.
func Open(name string) (*Reader, error) {
	sctx, err := scard.EstablishContext()
	if err != nil {
		return nil, pn532.NewTransportError("establish context", "pcsc", err, pn532.ErrorTypePermanent)
	}
	readers, err := sctx.ListReaders()
	if err != nil && !errors.Is(err, scard.ErrNoReadersAvailable) {
		_ = sctx.Release()
		return nil, fmt.Errorf("pcsc list readers: %w", err)
	}
	reader, err := PickReader(readers, name)
	if err != nil {
		_ = sctx.Release()
		return nil, err
	}
	pn532.Debugf("pcsc: using reader %q", reader)
	return &Reader{ctx: sctx, name: reader}, nil
}

// Name returns the selected reader name.
func (r *Reader) Name() string {
	return r.name
}

// WaitForCard blocks until a card is present, then connects to it.
func (r *Reader) WaitForCard(ctx context.Context) (*Channel, error) {
	states := []scard.ReaderState{{Reader: r.name, CurrentState: scard.StateUnaware}}
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pcsc wait: %w", err)
		}
		err := r.ctx.GetStatusChange(states, DefaultWaitSlice)
		switch {
		case errors.Is(err, scard.ErrTimeout):
			continue
		case err != nil:
			return nil, pn532.NewTransportError("status change", r.name, err, pn532.ErrorTypeTransient)
		}
		event := states[0].EventState
		states[0].CurrentState = event &^ scard.StateChanged
		if event&scard.StatePresent == 0 || event&scard.StateMute != 0 {
			continue
		}

		card, err := r.ctx.Connect(r.name, scard.ShareShared, scard.ProtocolAny)
		if err != nil {
			pn532.Debugf("pcsc connect %s: %v", r.name, err)
			continue
		}
		// the binding panics on transmit with an unknown protocol
		if proto := card.ActiveProtocol(); proto != scard.ProtocolT0 && proto != scard.ProtocolT1 {
			_ = card.Disconnect(scard.LeaveCard)
			continue
		}
		ch := NewChannel(&scardCard{card: card}, r.name)
		ch.removed = isCardRemoved
		return ch, nil
	}
}

// Close releases the PC/SC context.
func (r *Reader) Close() error {
	if err := r.ctx.Release(); err != nil {
		return fmt.Errorf("pcsc release: %w", err)
	}
	return nil
}

type scardCard struct {
	card *scard.Card
}

func (c *scardCard) Transmit(cmd []byte) ([]byte, error) {
	return c.card.Transmit(cmd) //nolint:wrapcheck // Channel wraps it
}

func (c *scardCard) Disconnect() error {
	return c.card.Disconnect(scard.ResetCard) //nolint:wrapcheck // Channel wraps it
}

// isCardRemoved checks typed PC/SC errors first, then the message.
func isCardRemoved(err error) bool {
	switch {
	case errors.Is(err, scard.ErrRemovedCard),
		errors.Is(err, scard.ErrResetCard),
		errors.Is(err, scard.ErrNoSmartcard),
		errors.Is(err, scard.ErrUnpoweredCard):
		return true
	default:
		return looksRemoved(err)
	}
}
