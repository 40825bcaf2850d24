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
	"testing"

	"github.com/stretchr/testify/assert"
	"go.bug.st/serial/enumerator"
)

func TestIsLikelyPN532(t *testing.T) {
	t.Parallel()

	tests := []struct {
		port *enumerator.PortDetails
		name string
		want bool
	}{
		{name: "CH340", port: &enumerator.PortDetails{IsUSB: true, VID: "1a86", PID: "7523"}, want: true},
		{name: "CP210x", port: &enumerator.PortDetails{IsUSB: true, VID: "10C4", PID: "EA60"}, want: true},
		{name: "ProductName", port: &enumerator.PortDetails{IsUSB: true, VID: "1234", PID: "5678", Product: "PN532 NFC Module"}, want: true},
		{name: "OtherUSB", port: &enumerator.PortDetails{IsUSB: true, VID: "2341", PID: "0043", Product: "Arduino Uno"}},
		{name: "BuiltIn", port: &enumerator.PortDetails{Name: "/dev/ttyS0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isLikelyPN532(tt.port))
		})
	}
}
