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

package apdu

import (
	"errors"
	"fmt"
)

// StatusWord is the SW1-SW2 trailer of a response APDU.
type StatusWord uint16

// Status words used by the payload service.
const (
	StatusSuccess  StatusWord = 0x9000
	StatusMoreData StatusWord = 0x9100
)

// FailureCode is the single byte the emulated card answers with for any
// command it does not honor.
const FailureCode byte = 0x6F

// NewStatusWord creates a StatusWord from its two bytes.
func NewStatusWord(sw1, sw2 byte) StatusWord {
	return StatusWord(uint16(sw1)<<8 | uint16(sw2))
}

// SW1 returns the high byte.
func (sw StatusWord) SW1() byte { return byte(sw >> 8) }

// SW2 returns the low byte.
func (sw StatusWord) SW2() byte { return byte(sw) }

// Bytes returns the trailer as it appears on the wire.
func (sw StatusWord) Bytes() []byte { return []byte{sw.SW1(), sw.SW2()} }

func (sw StatusWord) String() string {
	switch sw {
	case StatusSuccess:
		return "9000 (success)"
	case StatusMoreData:
		return "9100 (more data)"
	default:
		return fmt.Sprintf("%04X", uint16(sw))
	}
}

// ErrShortResponse is returned for a response without a full status word.
var ErrShortResponse = errors.New("apdu: response shorter than status word")

// Response is a parsed response APDU. Data aliases the parsed buffer.
type Response struct {
	Data   []byte
	Status StatusWord
}

// ParseResponse splits raw into body and trailing status word.
func ParseResponse(raw []byte) (*Response, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("%w: % X", ErrShortResponse, raw)
	}
	n := len(raw) - 2
	return &Response{
		Data:   raw[:n],
		Status: NewStatusWord(raw[n], raw[n+1]),
	}, nil
}

// StatusError reports a status word other than the one a step requires.
type StatusError struct {
	Step   string
	Status StatusWord
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("apdu: %s returned status %s", e.Step, e.Status)
}
