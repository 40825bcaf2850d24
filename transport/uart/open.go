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

package uart

import (
	"context"
	"fmt"
	"strings"

	pn532 "github.com/ZaparooProject/go-pn532-hce"
	"go.bug.st/serial/enumerator"
)

// knownAdapters are the USB serial bridges found on PN532 boards.
var knownAdapters = []string{
	"067B:2303", // Prolific PL2303
	"0403:6001", // FTDI FT232
	"10C4:EA60", // Silicon Labs CP210x
	"1A86:7523", // QinHeng CH340
}

var pn532Keywords = []string{"pn532", "nfc", "rfid", "13.56"}

// isLikelyPN532 checks if a serial port is likely to be a PN532 device
func isLikelyPN532(port *enumerator.PortDetails) bool {
	if !port.IsUSB {
		return false
	}
	vidpid := strings.ToUpper(port.VID + ":" + port.PID)
	for _, known := range knownAdapters {
		if vidpid == known {
			return true
		}
	}
	product := strings.ToLower(port.Product)
	for _, keyword := range pn532Keywords {
		if strings.Contains(product, keyword) {
			return true
		}
	}
	return false
}

// Discover lists USB serial ports that look like PN532 boards.
func Discover(ctx context.Context) ([]string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("uart: list ports: %w", err)
	}
	var found []string
	for _, port := range ports {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("uart discover: %w", err)
		}
		if isLikelyPN532(port) {
			found = append(found, port.Name)
		}
	}
	return found, nil
}

// Open opens the single port Discover finds. ErrDeviceNotFound and
// ErrAmbiguousDevice report zero or several candidates.
func Open(ctx context.Context) (*Transport, error) {
	ports, err := Discover(ctx)
	if err != nil {
		return nil, err
	}
	switch len(ports) {
	case 0:
		return nil, fmt.Errorf("uart: %w", pn532.ErrDeviceNotFound)
	case 1:
		pn532.Debugf("uart: PN532 candidate on %s", ports[0])
		return New(ports[0])
	default:
		return nil, fmt.Errorf("uart: %w: %v", pn532.ErrAmbiguousDevice, ports)
	}
}
