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
	"errors"
	"testing"
	"time"

	"github.com/ZaparooProject/go-pn532-hce/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ackRead = []byte{0x01, 0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}

func TestWaitForAck(t *testing.T) {
	t.Parallel()

	errBus := errors.New("i2c: remote I/O error")

	tests := []struct {
		setup     func(*MockTransport)
		wantErr   error
		name      string
		wantReads int
	}{
		{
			name:      "ack on first read",
			setup:     func(m *MockTransport) { m.QueueRead(ackRead...) },
			wantReads: 1,
		},
		{
			name: "ack after not ready polls",
			setup: func(m *MockTransport) {
				m.QueueNotReady(3)
				m.QueueRead(ackRead...)
			},
			wantReads: 4,
		},
		{
			name: "read errors count as not ready",
			setup: func(m *MockTransport) {
				m.QueueReadError(errBus)
				m.QueueReadError(errBus)
				m.QueueRead(ackRead...)
			},
			wantReads: 3,
		},
		{
			name: "any ready status byte with the low bit set",
			setup: func(m *MockTransport) {
				m.QueueRead(0xFF, 0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00)
			},
			wantReads: 1,
		},
		{
			name:      "nack is not an ack",
			setup:     func(m *MockTransport) { m.QueueRead(0x01, 0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00) },
			wantErr:   ErrInvalidACK,
			wantReads: 1,
		},
		{
			name:      "never ready",
			setup:     func(*MockTransport) {},
			wantErr:   ErrNoACK,
			wantReads: 6,
		},
		{
			name: "only read errors",
			setup: func(m *MockTransport) {
				for range 10 {
					m.QueueReadError(errBus)
				}
			},
			wantErr:   ErrNoACK,
			wantReads: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, mock := createMockDevice(t)
			tt.setup(mock)

			err := device.WaitForAck(context.Background(), 50*time.Millisecond)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantReads, mock.ReadCount())
		})
	}
}

func TestWaitForAck_SingleByteMutation(t *testing.T) {
	t.Parallel()

	for idx := 1; idx < len(ackRead); idx++ {
		device, mock := createMockDevice(t)
		mutated := append([]byte(nil), ackRead...)
		mutated[idx] ^= 0x01
		mock.QueueRead(mutated...)

		err := device.WaitForAck(context.Background(), 50*time.Millisecond)
		require.ErrorIs(t, err, ErrInvalidACK, "mutation at byte %d", idx)
	}
}

func TestWaitForAck_TimeoutIsTimeoutEquivalent(t *testing.T) {
	t.Parallel()

	device, _ := createMockDevice(t)
	err := device.WaitForAck(context.Background(), 20*time.Millisecond)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.True(t, IsRetryable(err))
}

func TestWaitForAck_ZeroTimeoutWaitsForever(t *testing.T) {
	t.Parallel()

	device, mock := createMockDevice(t)
	mock.QueueNotReady(500)
	mock.QueueRead(ackRead...)

	require.NoError(t, device.WaitForAck(context.Background(), 0))
	assert.Equal(t, 501, mock.ReadCount())
}

func TestWaitForAck_ContextCancelled(t *testing.T) {
	t.Parallel()

	device, _ := createMockDevice(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := device.WaitForAck(ctx, 0)
	require.ErrorIs(t, err, context.Canceled)
}

func responseRead(t *testing.T, code byte, data []byte) []byte {
	t.Helper()
	encoded, err := frame.EncodeResponse(code, data)
	require.NoError(t, err)
	return append([]byte{frame.ReadyBit}, encoded...)
}

func TestReadResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		setup   func(*testing.T, *MockTransport)
		wantErr error
		name    string
		want    []byte
	}{
		{
			name: "payload returned without response code",
			setup: func(t *testing.T, m *MockTransport) {
				m.QueueRead(responseRead(t, 0x41, []byte{0x00, 0x90, 0x00})...)
			},
			want: []byte{0x00, 0x90, 0x00},
		},
		{
			name: "ready after polling",
			setup: func(t *testing.T, m *MockTransport) {
				m.QueueNotReady(3)
				m.QueueRead(responseRead(t, 0x41, []byte{0x00})...)
			},
			want: []byte{0x00},
		},
		{
			name:    "timeout",
			setup:   func(*testing.T, *MockTransport) {},
			wantErr: ErrTransportTimeout,
		},
		{
			name: "response to another command",
			setup: func(t *testing.T, m *MockTransport) {
				m.QueueRead(responseRead(t, 0x4B, []byte{0x00})...)
			},
			wantErr: frame.ErrBadCommandMatch,
		},
		{
			name: "overflow",
			setup: func(t *testing.T, m *MockTransport) {
				m.QueueRead(responseRead(t, 0x41, make([]byte, 17))...)
			},
			wantErr: frame.ErrLengthOverflow,
		},
		{
			name: "checksum",
			setup: func(t *testing.T, m *MockTransport) {
				raw := responseRead(t, 0x41, []byte{0x00, 0x90, 0x00})
				raw[len(raw)-2]++
				m.QueueRead(raw...)
			},
			wantErr: frame.ErrBadChecksum,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, mock := createMockDevice(t)
			tt.setup(t, mock)

			got, err := device.ReadResponse(context.Background(), frame.PendingCommand(0x40), 16, 30*time.Millisecond)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadResponse_DecodeFailureIsFrameCorruption(t *testing.T) {
	t.Parallel()

	device, mock := createMockDevice(t)
	mock.QueueRead(0x01, 0x00, 0x00, 0xFE)

	_, err := device.ReadResponse(context.Background(), frame.PendingCommand(0x40), 16, time.Second)
	require.ErrorIs(t, err, ErrFrameCorrupted)
	require.ErrorIs(t, err, frame.ErrBadStart)
	assert.False(t, IsTimeout(err))
}

func TestReadResponse_NoPendingCommand(t *testing.T) {
	t.Parallel()

	device, mock := createMockDevice(t)
	mock.QueueRead(responseRead(t, 0x15, nil)...)

	_, err := device.ReadResponse(context.Background(), frame.Pending{}, 8, time.Second)
	require.ErrorIs(t, err, frame.ErrNoPendingCommand)
}
