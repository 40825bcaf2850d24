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

import "bytes"

// ValidateFrameLength checks LEN against its length checksum.
func ValidateFrameLength(length, lengthChecksum byte) bool {
	return (int(length)+int(lengthChecksum))&0xFF == 0
}

// ValidateFrameChecksum reports whether buf[start:end] (TFI, data and DCS)
// sums to zero. Out of range bounds never validate.
func ValidateFrameChecksum(buf []byte, start, end int) bool {
	if start < 0 || end < 0 || start > end || end > len(buf) {
		return false
	}
	return CalculateChecksum(buf[start:end]) == 0
}

// IsReady reports whether a status byte signals that output is pending.
func IsReady(status byte) bool {
	return status&ReadyBit != 0
}

// IsAck reports whether b starts with the six byte ACK pattern.
func IsAck(b []byte) bool {
	return len(b) >= len(AckFrame) && bytes.Equal(b[:len(AckFrame)], AckFrame)
}

// IsNack reports whether b starts with the NACK pattern.
func IsNack(b []byte) bool {
	return len(b) >= len(NackFrame) && bytes.Equal(b[:len(NackFrame)], NackFrame)
}
