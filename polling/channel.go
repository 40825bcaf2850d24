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

package polling

import (
	"context"

	pn532 "github.com/ZaparooProject/go-pn532-hce"
)

// targetChannel carries APDUs to a detected target with InDataExchange.
type targetChannel struct {
	device *pn532.Device
	target byte
}

// Transmit implements apdu.Channel. The PN532 status byte is not part of
// maxResp.
func (c *targetChannel) Transmit(ctx context.Context, cmd []byte, maxResp int) ([]byte, error) {
	//nolint:wrapcheck // InDataExchange already names the command
	return c.device.InDataExchange(ctx, c.target, cmd, maxResp+1)
}
