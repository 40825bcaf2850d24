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

// Package notify delivers messages received over the payload channel to the
// surrounding application: callbacks, channels, a websocket hub and an mDNS
// announcement of that hub.
package notify

// Notifier receives every message delivered by the emulated card or
// retrieved by the reader. Deliver must not block for long; it runs on the
// goroutine serving the NFC exchange.
type Notifier interface {
	Deliver(msg string)
}

// Func adapts a function to Notifier.
type Func func(msg string)

// Deliver calls f.
func (f Func) Deliver(msg string) {
	f(msg)
}

// Chan delivers into a channel, dropping messages when it is full.
type Chan chan<- string

// Deliver sends msg unless the channel is full.
func (c Chan) Deliver(msg string) {
	select {
	case c <- msg:
	default:
	}
}

// Multi fans a message out to every notifier in order.
type Multi []Notifier

// Deliver forwards msg to each non-nil notifier.
func (m Multi) Deliver(msg string) {
	for _, n := range m {
		if n != nil {
			n.Deliver(msg)
		}
	}
}

type discard struct{}

func (discard) Deliver(string) {}

// Discard drops every message.
var Discard Notifier = discard{}
