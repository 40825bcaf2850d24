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
	"fmt"
)

// TgInitAsTarget mode bits
const (
	TargetModePassiveOnly byte = 0x01
	TargetModeDEPOnly     byte = 0x02
	TargetModePICCOnly    byte = 0x04
)

// Response limits for target mode commands
const (
	targetInitResponseLimit = 64
	targetDataResponseLimit = 255
	targetSetResponseLimit  = 1
)

// TargetParams configures the card the PN532 emulates.
type TargetParams struct {
	// NFCID1 is the 3 byte UID tail; the PN532 prepends 0x08.
	NFCID1  [3]byte
	SensRes [2]byte
	Mode    byte
	SelRes  byte
}

// DefaultTargetParams emulates an ISO14443-4 (ISO-DEP) PICC.
func DefaultTargetParams() TargetParams {
	return TargetParams{
		Mode:    TargetModePassiveOnly | TargetModePICCOnly,
		SensRes: [2]byte{0x04, 0x00},
		NFCID1:  [3]byte{0x12, 0x34, 0x56},
		SelRes:  0x20,
	}
}

// params lays out Mode, MifareParams(6), FeliCaParams(18), NFCID3t(10),
// LEN Gt and LEN Tk. FeliCa, DEP and historical bytes are left empty.
func (p TargetParams) params() []byte {
	out := make([]byte, 0, 1+6+18+10+2)
	out = append(out, p.Mode, p.SensRes[0], p.SensRes[1], p.NFCID1[0], p.NFCID1[1], p.NFCID1[2], p.SelRes)
	out = append(out, make([]byte, 18+10)...)
	return append(out, 0x00, 0x00)
}

// Activation describes how an initiator activated the emulated target.
type Activation struct {
	// InitiatorCommand is the first command the initiator sent.
	InitiatorCommand []byte
	Mode             byte
}

// TgInitAsTarget arms the PN532 as a target and blocks until an initiator
// activates it, the ACK or response timeout expires, or ctx ends.
func (d *Device) TgInitAsTarget(ctx context.Context, params TargetParams) (*Activation, error) {
	resp, err := d.Exchange(ctx, cmdTgInitAsTarget, params.params(), nil, targetInitResponseLimit)
	if err != nil {
		return nil, fmt.Errorf("TgInitAsTarget: %w", err)
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("%w: TgInitAsTarget without mode byte", ErrInvalidResponse)
	}
	return &Activation{Mode: resp[0], InitiatorCommand: append([]byte(nil), resp[1:]...)}, nil
}

// TgGetData returns the next command APDU sent by the initiator.
func (d *Device) TgGetData(ctx context.Context) ([]byte, error) {
	resp, err := d.Exchange(ctx, cmdTgGetData, nil, nil, targetDataResponseLimit)
	if err != nil {
		return nil, fmt.Errorf("TgGetData: %w", err)
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("%w: TgGetData without status byte", ErrInvalidResponse)
	}
	if !CheckStatus(resp[0]) {
		return nil, &PN532Error{Command: "TgGetData", ErrorCode: StatusErrorCode(resp[0])}
	}
	return resp[1:], nil
}

// TgSetData sends a response APDU to the initiator.
func (d *Device) TgSetData(ctx context.Context, data []byte) error {
	resp, err := d.Exchange(ctx, cmdTgSetData, nil, data, targetSetResponseLimit)
	if err != nil {
		return fmt.Errorf("TgSetData: %w", err)
	}
	if len(resp) == 0 {
		return fmt.Errorf("%w: TgSetData without status byte", ErrInvalidResponse)
	}
	if !CheckStatus(resp[0]) {
		return &PN532Error{Command: "TgSetData", ErrorCode: StatusErrorCode(resp[0])}
	}
	return nil
}
