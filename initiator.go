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

// FirmwareVersion is the GetFirmwareVersion answer.
type FirmwareVersion struct {
	IC       byte
	Version  byte
	Revision byte
	Support  byte
}

func (f FirmwareVersion) String() string {
	return fmt.Sprintf("PN5%02X v%d.%d", f.IC, f.Version, f.Revision)
}

// SupportsISO14443A reports whether the firmware handles Type A targets.
func (f FirmwareVersion) SupportsISO14443A() bool {
	return f.Support&0x01 != 0
}

// GetFirmwareVersion queries the chip and firmware revision.
func (d *Device) GetFirmwareVersion(ctx context.Context) (FirmwareVersion, error) {
	resp, err := d.Exchange(ctx, cmdGetFirmwareVersion, nil, nil, DefaultFirmwareResponseLimit)
	if err != nil {
		return FirmwareVersion{}, fmt.Errorf("GetFirmwareVersion: %w", err)
	}
	if len(resp) != 4 {
		return FirmwareVersion{}, fmt.Errorf("%w: firmware version of %d bytes", ErrInvalidResponse, len(resp))
	}
	return FirmwareVersion{IC: resp[0], Version: resp[1], Revision: resp[2], Support: resp[3]}, nil
}

// SAMConfiguration configures the SAM. The PN532 rejects RF commands
// until this has succeeded once after power up.
func (d *Device) SAMConfiguration(ctx context.Context, cfg SAMConfig) error {
	if _, err := d.Exchange(ctx, cmdSAMConfiguration, cfg.params(), nil, d.config.SAMResponseLimit); err != nil {
		return fmt.Errorf("SAMConfiguration: %w", err)
	}
	Debugln("SAMConfiguration succeeded")
	return nil
}

// Target is a passive ISO14443A target found by InListPassiveTarget.
type Target struct {
	UID []byte
	ATS []byte
	// Number is the logical target number used to address exchanges.
	Number  byte
	SensRes uint16
	SelRes  byte
}

func (t *Target) String() string {
	return fmt.Sprintf("target %d UID % X SAK 0x%02X", t.Number, t.UID, t.SelRes)
}

// InListPassiveTarget looks for one ISO14443A target. ErrNoTargetDetected
// means the field is empty, which is the normal idle outcome.
func (d *Device) InListPassiveTarget(ctx context.Context) (*Target, error) {
	resp, err := d.Exchange(ctx, cmdInListPassiveTarget,
		[]byte{0x01, BaudRate106kbpsTypeA}, nil, d.config.DetectResponseLimit)
	if err != nil {
		return nil, fmt.Errorf("InListPassiveTarget: %w", err)
	}
	if len(resp) == 0 || resp[0] != 1 {
		return nil, ErrNoTargetDetected
	}
	return parseTypeATarget(resp), nil
}

// parseTypeATarget reads NbTg Tg SENS_RES(2) SEL_RES NFCIDLength NFCID [ATS].
// A short answer still yields a usable target number.
func parseTypeATarget(resp []byte) *Target {
	t := &Target{Number: resp[0]}
	if len(resp) < 2 {
		return t
	}
	t.Number = resp[1]
	if len(resp) < 6 {
		return t
	}
	t.SensRes = uint16(resp[2])<<8 | uint16(resp[3])
	t.SelRes = resp[4]

	uidLen := int(resp[5])
	if len(resp) < 6+uidLen {
		return t
	}
	t.UID = append([]byte(nil), resp[6:6+uidLen]...)
	if rest := resp[6+uidLen:]; len(rest) > 0 && int(rest[0]) <= len(rest) && rest[0] > 0 {
		t.ATS = append([]byte(nil), rest[:rest[0]]...)
	}
	return t
}

// InDataExchange sends data to target tg and returns the target's answer.
// expectedLen bounds the response payload, status byte included.
func (d *Device) InDataExchange(ctx context.Context, tg byte, data []byte, expectedLen int) ([]byte, error) {
	resp, err := d.Exchange(ctx, cmdInDataExchange, []byte{tg}, data, expectedLen)
	if err != nil {
		return nil, fmt.Errorf("InDataExchange: %w", err)
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("%w: InDataExchange without status byte", ErrInvalidResponse)
	}
	if !CheckStatus(resp[0]) {
		return nil, &PN532Error{
			Command:   "InDataExchange",
			ErrorCode: StatusErrorCode(resp[0]),
			Target:    tg,
		}
	}
	return resp[1:], nil
}
