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

import (
	"errors"
	"fmt"
)

// Decode failures
var (
	ErrBadStart          = errors.New("frame: bad preamble or start code")
	ErrBadLengthChecksum = errors.New("frame: length checksum mismatch")
	ErrBadCommandMatch   = errors.New("frame: response does not answer pending command")
	ErrLengthOverflow    = errors.New("frame: payload longer than expected")
	ErrBadChecksum       = errors.New("frame: data checksum mismatch")
	ErrNoPendingCommand  = errors.New("frame: no pending command")
	ErrFrameTruncated    = errors.New("frame: truncated")
	ErrFrameTooLarge     = errors.New("frame: payload exceeds normal frame size")
)

// Pending identifies the command whose response the next decode expects.
// The zero value means nothing is outstanding.
type Pending struct {
	opcode byte
	ok     bool
}

// PendingCommand returns the pending identity for opcode.
func PendingCommand(opcode byte) Pending {
	return Pending{opcode: opcode, ok: true}
}

// Valid reports whether a command is outstanding.
func (p Pending) Valid() bool { return p.ok }

// Opcode returns the command code that was sent.
func (p Pending) Opcode() byte { return p.opcode }

// ResponseCode is the code the PN532 answers with: the command code plus one.
func (p Pending) ResponseCode() byte { return p.opcode + 1 }

func (p Pending) String() string {
	if !p.ok {
		return "none"
	}
	return fmt.Sprintf("0x%02X", p.opcode)
}

// EncodeCommand builds a host to PN532 frame carrying opcode, params and
// body, and returns the identity its response must match.
func EncodeCommand(opcode byte, params, body []byte) ([]byte, Pending, error) {
	buf, err := build(HostToPn532, []byte{opcode}, params, body)
	if err != nil {
		return nil, Pending{}, err
	}
	return buf, PendingCommand(opcode), nil
}

// EncodeResponse builds a PN532 to host frame. code is the response code
// (command plus one) and data follows it.
func EncodeResponse(code byte, data []byte) ([]byte, error) {
	return build(Pn532ToHost, []byte{code}, data)
}

func build(tfi byte, parts ...[]byte) ([]byte, error) {
	n := 1
	for _, p := range parts {
		n += len(p)
	}
	if n > MaxFrameDataLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}

	length := byte(n)
	buf := make([]byte, 0, n+FrameOverhead)
	buf = append(buf, Preamble, StartCode1, StartCode2, length, Complement([]byte{length}), tfi)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	buf = append(buf, Complement(buf[frameTFI:]), Postamble)
	return buf, nil
}

// DecodeResponse parses a bus read (status byte first) holding a response
// to pending, and returns the payload after the response code.
// The payload may be at most expectedLen bytes.
func DecodeResponse(raw []byte, pending Pending, expectedLen int) ([]byte, error) {
	if len(raw) < offTFI {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTruncated, len(raw))
	}
	if raw[offStart] != Preamble || raw[offStart+1] != StartCode1 || raw[offStart+2] != StartCode2 {
		return nil, fmt.Errorf("%w: % X", ErrBadStart, raw[offStart:offLength])
	}
	if !ValidateFrameLength(raw[offLength], raw[offLCS]) {
		return nil, fmt.Errorf("%w: LEN=0x%02X LCS=0x%02X", ErrBadLengthChecksum, raw[offLength], raw[offLCS])
	}
	if !pending.Valid() {
		return nil, ErrNoPendingCommand
	}

	length := int(raw[offLength])
	if length < 2 {
		// a one byte frame is the PN532 application error frame
		return nil, fmt.Errorf("%w: LEN=%d", ErrBadCommandMatch, length)
	}
	if len(raw) <= offCode {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrFrameTruncated, offCode+1, len(raw))
	}
	if raw[offTFI] != Pn532ToHost || raw[offCode] != pending.ResponseCode() {
		return nil, fmt.Errorf("%w: got %02X %02X, want %02X %02X",
			ErrBadCommandMatch, raw[offTFI], raw[offCode], Pn532ToHost, pending.ResponseCode())
	}

	// an oversized frame arrives cut to the caller's buffer, so the
	// length field is judged before the body
	dataLen := length - 2
	if dataLen > expectedLen {
		return nil, fmt.Errorf("%w: %d > %d", ErrLengthOverflow, dataLen, expectedLen)
	}
	dcs := offTFI + length
	if len(raw) <= dcs {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrFrameTruncated, dcs+1, len(raw))
	}
	if !ValidateFrameChecksum(raw, offTFI, dcs+1) {
		return nil, fmt.Errorf("%w: DCS=0x%02X", ErrBadChecksum, raw[dcs])
	}

	out := make([]byte, dataLen)
	copy(out, raw[offData:offData+dataLen])
	return out, nil
}

// Status returns the status byte of a bus read.
func Status(raw []byte) byte {
	if len(raw) == 0 {
		return 0
	}
	return raw[offStatus]
}
