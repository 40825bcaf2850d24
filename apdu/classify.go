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

// Kind is the classification of an incoming command APDU.
type Kind int

// Command kinds recognized by the payload service.
const (
	Unrecognized Kind = iota
	SelectAID
	GetData
	GetMoreData
	SendMsg
)

func (k Kind) String() string {
	switch k {
	case SelectAID:
		return "SELECT AID"
	case GetData:
		return "GET DATA"
	case GetMoreData:
		return "GET MORE DATA"
	case SendMsg:
		return "SEND MSG"
	default:
		return "unrecognized"
	}
}

// Classify inspects CLA, INS and, for the GET DATA family, the P2 selector.
// Only the header is examined; well-formedness of the body is not checked.
func Classify(cmd []byte) Kind {
	if len(cmd) < 2 || cmd[0] != ClassISO {
		return Unrecognized
	}
	switch cmd[1] {
	case InsSelect:
		if len(cmd) > 2 {
			return SelectAID
		}
	case InsGetData:
		if len(cmd) < headerLength || cmd[2] != 0x00 {
			return Unrecognized
		}
		switch cmd[3] {
		case P2GetData:
			return GetData
		case P2GetMoreData:
			return GetMoreData
		}
	case InsSendMsg:
		if len(cmd) > headerLength && cmd[2] == 0x00 && cmd[3] == P2SendMessage {
			return SendMsg
		}
	}
	return Unrecognized
}

// SelectedAID returns the AID named by a SELECT command, or nil when the Lc
// field is inconsistent with the command length.
func SelectedAID(cmd []byte) []byte {
	if len(cmd) <= headerLength {
		return nil
	}
	lc := int(cmd[headerLength])
	start := headerLength + 1
	if lc == 0 || start+lc > len(cmd) {
		return nil
	}
	return cmd[start : start+lc]
}

// ExtractMessage returns the body of a SEND MSG command. When the byte after
// the header is a consistent Lc it is skipped; otherwise everything after
// the header is the message.
func ExtractMessage(cmd []byte) []byte {
	if len(cmd) <= headerLength {
		return nil
	}
	body := cmd[headerLength:]
	if int(body[0]) == len(body)-1 {
		body = body[1:]
	}
	out := make([]byte, len(body))
	copy(out, body)
	return out
}
