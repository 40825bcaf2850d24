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

package pn532

// PN532 command codes
const (
	cmdGetFirmwareVersion  = 0x02
	cmdSAMConfiguration    = 0x14
	cmdInDataExchange      = 0x40
	cmdInListPassiveTarget = 0x4A
	cmdTgGetData           = 0x86
	cmdTgInitAsTarget      = 0x8C
	cmdTgSetData           = 0x8E
)

// InListPassiveTarget baud rate / modulation types
const (
	BaudRate106kbpsTypeA byte = 0x00 // ISO/IEC 14443 Type A
)

// statusFlagMask covers the MI and NAD flag bits (7 and 6) of a status
// byte. The remaining bits are the error code.
const statusFlagMask byte = 0xC0

// maskedEqual reports whether v, restricted to the bits in mask, equals want.
func maskedEqual(v, mask, want byte) bool {
	return v&mask == want&mask
}

// CheckStatus reports whether an InDataExchange or target mode status byte
// signals success. The MI and NAD flags are ignored.
func CheckStatus(status byte) bool {
	return maskedEqual(status, ^statusFlagMask, 0)
}

// StatusErrorCode returns the error code of a status byte, flags removed.
func StatusErrorCode(status byte) byte {
	return status &^ statusFlagMask
}
