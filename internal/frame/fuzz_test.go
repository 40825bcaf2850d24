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
	"testing"
)

// Run with: go test -fuzz=FuzzDecodeResponse -fuzztime=30s ./internal/frame/

// FuzzDecodeResponse feeds arbitrary bus reads to the decoder. Clone chips
// and noisy buses produce garbage, which must never panic.
func FuzzDecodeResponse(f *testing.F) {
	f.Add([]byte{0x01, 0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD5, 0x15, 0x16, 0x00}, byte(0x14), 8)
	f.Add([]byte{0x01, 0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}, byte(0x14), 8)
	f.Add([]byte{0x01, 0x00, 0x00, 0xFF, 0x01, 0xFF, 0x7F, 0x81, 0x00}, byte(0x40), 16)
	f.Add([]byte{}, byte(0x00), 0)
	f.Add([]byte{0x01}, byte(0x4A), 64)
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, byte(0xFF), 1000)

	f.Fuzz(func(t *testing.T, raw []byte, opcode byte, expectedLen int) {
		if expectedLen < 0 {
			expectedLen = 0
		}
		payload, err := DecodeResponse(raw, PendingCommand(opcode), expectedLen)
		if err == nil && len(payload) > expectedLen {
			t.Fatalf("payload of %d bytes exceeds expected %d", len(payload), expectedLen)
		}
	})
}

// FuzzEncodeDecode checks that every encodable response decodes to itself.
func FuzzEncodeDecode(f *testing.F) {
	f.Add(byte(0x14), []byte{})
	f.Add(byte(0x40), []byte{0x00, 0x90, 0x00})
	f.Add(byte(0x4A), []byte{0x01, 0x01, 0x00, 0x04, 0x20, 0x04, 0x01, 0x02, 0x03, 0x04})

	f.Fuzz(func(t *testing.T, opcode byte, data []byte) {
		encoded, err := EncodeResponse(opcode+1, data)
		if err != nil {
			if len(data)+2 <= MaxFrameDataLength {
				t.Fatalf("unexpected encode error: %v", err)
			}
			return
		}
		raw := append([]byte{ReadyBit}, encoded...)
		got, err := DecodeResponse(raw, PendingCommand(opcode), len(data))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if string(got) != string(data) {
			t.Fatalf("round trip mismatch: % X != % X", got, data)
		}
	})
}

// FuzzValidateFrameChecksum ensures arbitrary bounds never panic.
func FuzzValidateFrameChecksum(f *testing.F) {
	f.Add([]byte{0xD5, 0x03, 0x28}, 0, 3)
	f.Add([]byte{0x01, 0xFF}, 0, 2)
	f.Add([]byte{}, -1, 5)

	f.Fuzz(func(_ *testing.T, buf []byte, start, end int) {
		_ = ValidateFrameChecksum(buf, start, end)
	})
}
