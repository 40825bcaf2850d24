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
	"github.com/ZaparooProject/go-pn532-hce/internal/syncutil"
)

// APDUHandler answers one command APDU.
type APDUHandler func(apdu []byte) []byte

// VirtualCard is an ISO14443-4 card in the simulated field, typically a
// phone running a card emulation service.
type VirtualCard struct {
	Handler  APDUHandler
	UID      []byte
	ATS      []byte
	received [][]byte
	mu       syncutil.Mutex
}

// NewVirtualCard creates a card with a random-looking 4 byte UID.
func NewVirtualCard(handler APDUHandler) *VirtualCard {
	return &VirtualCard{
		Handler: handler,
		UID:     []byte{0x08, 0x12, 0x34, 0x56},
		ATS:     []byte{0x05, 0x78, 0x80, 0x70, 0x02},
	}
}

func (c *VirtualCard) record(apdu []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, apdu)
}

// Received returns the APDUs the card has been sent.
func (c *VirtualCard) Received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.received))
	copy(out, c.received)
	return out
}

// InitiatorSession scripts a reader talking to the PN532 in target mode.
// It sends Commands in order and then leaves the field.
type InitiatorSession struct {
	Commands  [][]byte
	responses [][]byte
	pos       int
	mu        syncutil.Mutex
}

// NewInitiatorSession creates a session sending the given command APDUs.
func NewInitiatorSession(commands ...[]byte) *InitiatorSession {
	return &InitiatorSession{Commands: commands}
}

func (s *InitiatorSession) next() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.Commands) {
		return nil, false
	}
	cmd := s.Commands[s.pos]
	s.pos++
	return cmd, true
}

func (s *InitiatorSession) respond(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, append([]byte(nil), data...))
}

// Responses returns the response APDUs the target sent back.
func (s *InitiatorSession) Responses() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.responses))
	copy(out, s.responses)
	return out
}

// Done reports whether every command has been sent.
func (s *InitiatorSession) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos >= len(s.Commands)
}

// BuildTypeADetectionResponse builds an InListPassiveTarget answer for one
// ISO14443-4 Type A target: NbTg Tg SENS_RES SEL_RES NFCIDLength NFCID ATS.
func BuildTypeADetectionResponse(tg byte, uid, ats []byte) []byte {
	out := []byte{0x01, tg, 0x00, 0x04, 0x20, byte(len(uid))}
	out = append(out, uid...)
	return append(out, ats...)
}
