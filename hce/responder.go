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

// Package hce implements the emulated card side of the payload exchange:
// a pure responder mapping (session, command APDU) to (response APDU,
// session), a Service holding the session between calls, and a Host that
// drives a PN532 in target mode.
package hce

import (
	"bytes"

	"github.com/ZaparooProject/go-pn532-hce/apdu"
	"github.com/ZaparooProject/go-pn532-hce/message"
)

// Config configures the payload service.
type Config struct {
	// AID, when set, is the only application a SELECT may name. Nil
	// accepts any SELECT.
	AID []byte
	// Payload is the application message served by GET DATA.
	Payload []byte
	// MaxChunk is the largest body of one GET DATA response.
	MaxChunk int
	// ResetOnDeactivate clears the selection and any undelivered chunks
	// when the host reports a deactivation. Off by default: the session
	// outlives the link.
	ResetOnDeactivate bool
}

// DefaultConfig serves the expected message as raw text in 100 byte
// chunks.
func DefaultConfig() Config {
	return Config{
		Payload:  []byte(message.ExpectedMessage),
		MaxChunk: apdu.DefaultMaxChunk,
	}
}

func (c Config) maxChunk() int {
	if c.MaxChunk <= 0 {
		return apdu.DefaultMaxChunk
	}
	return c.MaxChunk
}

// Session is the state carried between two commands.
type Session struct {
	// Payload is the message being served, captured on every SELECT.
	Payload []byte
	// Remaining is the part of the payload not yet delivered; nil when
	// nothing is pending.
	Remaining   []byte
	AppSelected bool
}

// Result is the outcome of one command.
type Result struct {
	Response []byte
	// Message is the body of a SEND MSG, nil for other commands.
	Message []byte
	Session Session
	Kind    apdu.Kind
}

// Respond answers cmd. It neither retains nor modifies cmd or s; the new
// session is returned in the result. A nil command yields an empty
// response and leaves the session unchanged; a zero-length one is an
// unrecognized command.
func Respond(s Session, cmd []byte, cfg Config) Result {
	res := Result{Session: s, Kind: apdu.Classify(cmd)}
	if cmd == nil {
		res.Response = []byte{}
		return res
	}

	switch res.Kind {
	case apdu.SelectAID:
		if cfg.AID != nil && !bytes.Equal(apdu.SelectedAID(cmd), cfg.AID) {
			res.Response = []byte{apdu.FailureCode}
			return res
		}
		res.Session.AppSelected = true
		res.Session.Payload = cfg.Payload
		res.Response = apdu.StatusSuccess.Bytes()

	case apdu.GetData:
		if !s.AppSelected {
			res.Response = []byte{apdu.FailureCode}
			return res
		}
		res.Response, res.Session.Remaining = chunk(s.Payload, cfg.maxChunk())

	case apdu.GetMoreData:
		if !s.AppSelected {
			res.Response = []byte{apdu.FailureCode}
			return res
		}
		if s.Remaining == nil {
			res.Response = apdu.StatusSuccess.Bytes()
			return res
		}
		res.Response, res.Session.Remaining = chunk(s.Remaining, cfg.maxChunk())

	case apdu.SendMsg:
		if !s.AppSelected {
			res.Response = []byte{apdu.FailureCode}
			return res
		}
		res.Message = apdu.ExtractMessage(cmd)
		res.Response = apdu.StatusSuccess.Bytes()

	default:
		res.Response = []byte{apdu.FailureCode}
	}
	return res
}

// chunk returns the response for data and the part left for GET MORE DATA.
func chunk(data []byte, maxChunk int) (response, remaining []byte) {
	if len(data) <= maxChunk {
		response = make([]byte, 0, len(data)+2)
		response = append(response, data...)
		return append(response, apdu.StatusSuccess.Bytes()...), nil
	}
	response = make([]byte, 0, maxChunk+2)
	response = append(response, data[:maxChunk]...)
	return append(response, apdu.StatusMoreData.Bytes()...), data[maxChunk:]
}
