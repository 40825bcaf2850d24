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

//go:build !prod

package pn532

import (
	"context"
	"testing"
	"time"

	testutil "github.com/ZaparooProject/go-pn532-hce/internal/testing"
	"github.com/stretchr/testify/require"
)

// noSleep keeps polling loops instant in tests. Timeouts still expire
// because elapsed time is counted in poll increments.
func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// createSimDevice creates a device wired to a fresh wire simulator.
func createSimDevice(t *testing.T, opts ...Option) (*Device, *testutil.VirtualPN532, *testutil.SimulatorTransport) {
	t.Helper()
	sim := testutil.NewVirtualPN532()
	transport := testutil.NewSimulatorTransport(sim)
	opts = append([]Option{
		WithSleeper(noSleep),
		WithAckTimeout(100 * time.Millisecond),
		WithResponseTimeout(100 * time.Millisecond),
	}, opts...)
	device, err := New(transport, opts...)
	require.NoError(t, err)
	return device, sim, transport
}

// createMockDevice creates a device with a scripted mock transport.
func createMockDevice(t *testing.T, opts ...Option) (*Device, *MockTransport) {
	t.Helper()
	mock := NewMockTransport()
	opts = append([]Option{WithSleeper(noSleep)}, opts...)
	device, err := New(mock, opts...)
	require.NoError(t, err)
	return device, mock
}
