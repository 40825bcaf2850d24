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

//go:build libnfc

package libnfc

import (
	"fmt"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532-hce"
	"github.com/clausecker/nfc/v2"
)

// nfcDevice is the subset of nfc.Device used by the adapter.
type nfcDevice interface {
	InitiatorInit() error
	InitiatorSelectPassiveTarget(m nfc.Modulation, initData []byte) (nfc.Target, error)
	InitiatorDeselectTarget() error
	InitiatorTransceiveBytes(tx, rx []byte, timeout int) (int, error)
	Close() error
	String() string
}

var typeA106 = nfc.Modulation{Type: nfc.ISO14443a, BaudRate: nfc.Nbr106}

// Open opens a libnfc device (conn "" picks the first one) in initiator
// mode.
func Open(conn string, timeout time.Duration) (*Channel, error) {
	dev, err := nfc.Open(conn)
	if err != nil {
		return nil, pn532.NewTransportError("open", conn,
			fmt.Errorf("%w: %w", pn532.ErrDeviceNotFound, err), pn532.ErrorTypePermanent)
	}
	ini := &initiator{dev: dev}
	if err := dev.InitiatorInit(); err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("libnfc initiator init: %w", err)
	}
	pn532.Debugf("libnfc: opened %s", ini.String())
	return NewChannel(ini, timeout), nil
}

// ListDevices returns the libnfc connection strings of attached devices.
func ListDevices() ([]string, error) {
	devices, err := nfc.ListDevices()
	if err != nil {
		return nil, fmt.Errorf("libnfc list devices: %w", err)
	}
	return devices, nil
}

type initiator struct {
	dev nfcDevice
}

func (i *initiator) SelectTarget() (*PassiveTarget, error) {
	t, err := i.dev.InitiatorSelectPassiveTarget(typeA106, nil)
	if err != nil {
		return nil, err //nolint:wrapcheck // Channel wraps it
	}
	a, ok := t.(*nfc.ISO14443aTarget)
	if !ok || a.UIDLen <= 0 || a.UIDLen > len(a.UID) {
		return nil, nil
	}
	pt := &PassiveTarget{
		UID:  append([]byte(nil), a.UID[:a.UIDLen]...),
		Sak:  a.Sak,
		Atqa: a.Atqa,
	}
	if a.AtsLen > 0 && a.AtsLen <= len(a.Ats) {
		pt.ATS = append([]byte(nil), a.Ats[:a.AtsLen]...)
	}
	return pt, nil
}

func (i *initiator) Deselect() error {
	return i.dev.InitiatorDeselectTarget() //nolint:wrapcheck // Channel wraps it
}

func (i *initiator) Transceive(tx, rx []byte, timeout time.Duration) (int, error) {
	return i.dev.InitiatorTransceiveBytes(tx, rx, int(timeout.Milliseconds())) //nolint:wrapcheck // Channel wraps it
}

func (i *initiator) Close() error {
	return i.dev.Close() //nolint:wrapcheck // Channel wraps it
}

func (i *initiator) String() string {
	return i.dev.String()
}
