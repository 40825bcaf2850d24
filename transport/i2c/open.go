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

package i2c

import (
	"context"
	"fmt"

	pn532 "github.com/ZaparooProject/go-pn532-hce"
)

// Open finds the single bus with a PN532 answering at Address and opens
// it. ErrDeviceNotFound and ErrAmbiguousDevice report zero or several
// candidates.
func Open(ctx context.Context) (*Transport, error) {
	buses, err := Discover(ctx)
	if err != nil {
		return nil, err
	}
	switch len(buses) {
	case 0:
		return nil, fmt.Errorf("i2c: %w", pn532.ErrDeviceNotFound)
	case 1:
		pn532.Debugf("i2c: PN532 found on %s", buses[0])
		return New(buses[0])
	default:
		return nil, fmt.Errorf("i2c: %w: %v", pn532.ErrAmbiguousDevice, buses)
	}
}
