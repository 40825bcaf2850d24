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

// Package message encodes the application payload served by the emulated
// card and decodes it on the reader side, either as raw UTF-8 text or as an
// NDEF message with a single Text record.
package message

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hsanjuan/go-ndef"
)

// Format selects the payload encoding.
type Format int

// Payload formats
const (
	FormatRaw Format = iota
	FormatNDEF
)

// DefaultLanguage is the language code of encoded Text records.
const DefaultLanguage = "en"

var (
	ErrUnknownFormat = errors.New("message: unknown payload format")
	ErrNoTextRecord  = errors.New("message: no NDEF text record")
)

func (f Format) String() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatNDEF:
		return "ndef"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat accepts "raw" or "ndef", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "raw", "text":
		return FormatRaw, nil
	case "ndef":
		return FormatNDEF, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Encode returns the payload bytes for text.
func Encode(f Format, text string) ([]byte, error) {
	switch f {
	case FormatRaw:
		return []byte(text), nil
	case FormatNDEF:
		data, err := ndef.NewTextMessage(text, DefaultLanguage).Marshal()
		if err != nil {
			return nil, fmt.Errorf("message: marshal NDEF text: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, f)
	}
}

// Decode interprets payload as text.
func Decode(f Format, payload []byte) (string, error) {
	switch f {
	case FormatRaw:
		return string(payload), nil
	case FormatNDEF:
		return decodeNDEFText(payload)
	default:
		return "", fmt.Errorf("%w: %v", ErrUnknownFormat, f)
	}
}

// decodeNDEFText returns the text of the first well-known Text record.
func decodeNDEFText(payload []byte) (string, error) {
	msg := &ndef.Message{}
	if _, err := msg.Unmarshal(payload); err != nil {
		return "", fmt.Errorf("message: parse NDEF: %w", err)
	}

	for _, rec := range msg.Records {
		if rec.TNF() != ndef.NFCForumWellKnownType || rec.Type() != "T" {
			continue
		}
		p, err := rec.Payload()
		if err != nil {
			continue
		}
		text, err := parseTextPayload(p.Marshal())
		if err != nil {
			continue
		}
		return text, nil
	}
	return "", ErrNoTextRecord
}

// parseTextPayload strips the status byte and language code of a Text
// record payload. Bits 0-5 of the status byte hold the language length.
func parseTextPayload(payload []byte) (string, error) {
	if len(payload) < 1 {
		return "", errors.New("text payload too short")
	}
	langLen := int(payload[0] & 0x3F)
	if len(payload) < 1+langLen {
		return "", errors.New("invalid text payload length")
	}
	return string(payload[1+langLen:]), nil
}
