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

// Package apdu builds and classifies the ISO 7816-4 command APDUs exchanged
// between the reader and the emulated card, and provides a reader-side
// client that runs the select / get data / send message sequence over any
// Channel.
//
// Command layout: CLA INS P1 P2 [Lc Data] [Le]. Responses carry a two byte
// status word trailer, except the single byte failure code returned by the
// emulated card.
package apdu

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Instruction bytes
const (
	ClassISO byte = 0x00

	InsSelect  byte = 0xA4
	InsGetData byte = 0xCA
	InsSendMsg byte = 0xDA
)

// P1/P2 values. The GET DATA family reuses P2 as an instruction selector.
const (
	P1SelectByName byte = 0x04
	P2SelectFirst  byte = 0x00
	P2GetData      byte = 0x01
	P2GetMoreData  byte = 0x02
	P2SendMessage  byte = 0x01
)

const (
	headerLength = 4
	maxShortLc   = 0xFF
)

// DefaultMaxChunk is the largest application payload carried by one GET DATA
// or GET MORE DATA response.
const DefaultMaxChunk = 100

// DefaultAID is the application identifier of the payload service.
var DefaultAID = []byte{0xF0, 0x01, 0x02, 0x03, 0x04, 0x05, 0x09}

var (
	// ErrInvalidAID is returned for an empty or oversized AID.
	ErrInvalidAID = errors.New("apdu: invalid AID")
	// ErrDataTooLong is returned when a command body does not fit in Lc.
	ErrDataTooLong = errors.New("apdu: data does not fit a short APDU")
)

// ParseAID decodes a hex AID such as "F0010203040509". Spaces and colons
// between bytes are ignored.
func ParseAID(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ":", "").Replace(s)
	aid, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAID, err)
	}
	if len(aid) == 0 || len(aid) > 16 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidAID, len(aid))
	}
	return aid, nil
}

// BuildSelectAID returns SELECT by name: 00 A4 04 00 Lc AID 00.
func BuildSelectAID(aid []byte) ([]byte, error) {
	if len(aid) == 0 || len(aid) > 16 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidAID, len(aid))
	}
	cmd := make([]byte, 0, headerLength+2+len(aid))
	cmd = append(cmd, ClassISO, InsSelect, P1SelectByName, P2SelectFirst, byte(len(aid)))
	cmd = append(cmd, aid...)
	return append(cmd, 0x00), nil
}

// BuildGetData returns 00 CA 00 P2 00 maxChunk. selector is P2GetData or
// P2GetMoreData.
func BuildGetData(selector, maxChunk byte) []byte {
	return []byte{ClassISO, InsGetData, 0x00, selector, 0x00, maxChunk}
}

// BuildSendData returns 00 DA 00 01 Lc data.
func BuildSendData(data []byte) ([]byte, error) {
	if len(data) > maxShortLc {
		return nil, fmt.Errorf("%w: %d bytes", ErrDataTooLong, len(data))
	}
	cmd := make([]byte, 0, headerLength+1+len(data))
	cmd = append(cmd, ClassISO, InsSendMsg, 0x00, P2SendMessage, byte(len(data)))
	return append(cmd, data...), nil
}
