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

// TFI (Frame Identifier) constants
const (
	HostToPn532 = 0xD4 // Commands from host to PN532
	Pn532ToHost = 0xD5 // Responses from PN532 to host
)

// Frame structure constants
const (
	Preamble   = 0x00 // Frame preamble byte
	StartCode1 = 0x00 // Start code byte 1
	StartCode2 = 0xFF // Start code byte 2
	Postamble  = 0x00 // Frame postamble byte
)

// Frame size limits
const (
	// MaxFrameDataLength is the largest LEN value of a normal information frame.
	// It counts the TFI byte, so a command carries at most 254 bytes after it.
	MaxFrameDataLength = 0xFF
	// FrameOverhead is preamble, start code, LEN, LCS, DCS and postamble.
	FrameOverhead = 7
	// ResponseOverhead is the bytes of a response read that are not payload:
	// status byte, frame overhead, TFI and response code.
	ResponseOverhead = 1 + FrameOverhead + 2
	// AckReadLength is the status byte followed by the six ACK bytes.
	AckReadLength = 7
)

// Offsets into a bus read. Every read starts with the status byte.
const (
	offStatus = 0
	offStart  = 1
	offLength = 4
	offLCS    = 5
	offTFI    = 6
	offCode   = 7
	offData   = 8
)

// frameTFI is the TFI position in an encoded frame, which has no status byte.
const frameTFI = 5

// ReadyBit is set in the status byte once the PN532 has output pending.
const ReadyBit = 0x01

// ACK/NACK frame patterns
var (
	AckFrame  = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}
	NackFrame = []byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00}
)
