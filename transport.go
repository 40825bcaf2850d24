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

import (
	"context"
)

// Transport is the bus the PN532 is attached to.
//
// Reads follow the PN532 I2C contract: the first byte of every read is the
// status byte, whose low bit is set once the chip has output pending, and
// the output (an ACK or a response frame) follows it. Transports for buses
// without a status byte synthesize one.
type Transport interface {
	// Write sends one complete frame.
	Write(ctx context.Context, data []byte) error
	// Read fills buf with the status byte and whatever output follows it,
	// returning the number of bytes read.
	Read(ctx context.Context, buf []byte) (int, error)
	// Close releases the bus.
	Close() error
	// String identifies the bus in errors and traces.
	String() string
}
