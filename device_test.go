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
	testutil "github.com/ZaparooProject/go-pn532-hce/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	require.ErrorIs(t, err, ErrInvalidParameter)

	device, err := New(NewMockTransport())
	require.NoError(t, err)
	cfg := device.Config()
	assert.Equal(t, 5*time.Second, cfg.AckTimeout)
	assert.Equal(t, time.Second, cfg.ResponseTimeout)
	assert.Equal(t, 10*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 8, cfg.SAMResponseLimit)
	assert.Equal(t, 64, cfg.DetectResponseLimit)
}

func TestNew_Options(t *testing.T) {
	t.Parallel()

	tests := []struct {
		opt     Option
		check   func(*testing.T, DeviceConfig)
		name    string
		wantErr bool
	}{
		{
			name: "ack timeout",
			opt:  WithAckTimeout(time.Second),
			check: func(t *testing.T, c DeviceConfig) {
				assert.Equal(t, time.Second, c.AckTimeout)
			},
		},
		{name: "negative ack timeout", opt: WithAckTimeout(-1), wantErr: true},
		{
			name: "zero response timeout waits forever",
			opt:  WithResponseTimeout(0),
			check: func(t *testing.T, c DeviceConfig) {
				assert.Zero(t, c.ResponseTimeout)
			},
		},
		{name: "negative response timeout", opt: WithResponseTimeout(-time.Second), wantErr: true},
		{
			name: "poll interval",
			opt:  WithPollInterval(time.Millisecond),
			check: func(t *testing.T, c DeviceConfig) {
				assert.Equal(t, time.Millisecond, c.PollInterval)
			},
		},
		{name: "zero poll interval", opt: WithPollInterval(0), wantErr: true},
		{
			name: "response limits",
			opt:  WithResponseLimits(10, 80),
			check: func(t *testing.T, c DeviceConfig) {
				assert.Equal(t, 10, c.SAMResponseLimit)
				assert.Equal(t, 80, c.DetectResponseLimit)
			},
		},
		{name: "bad response limits", opt: WithResponseLimits(0, 80), wantErr: true},
		{name: "nil config", opt: WithConfig(nil), wantErr: true},
		{
			name: "whole config",
			opt:  WithConfig(&DeviceConfig{AckTimeout: time.Minute, TraceSize: 2}),
			check: func(t *testing.T, c DeviceConfig) {
				assert.Equal(t, time.Minute, c.AckTimeout)
				assert.Equal(t, 2, c.TraceSize)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, err := New(NewMockTransport(), tt.opt)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			tt.check(t, device.Config())
		})
	}
}

func TestSAMConfiguration(t *testing.T) {
	t.Parallel()

	device, sim, transport := createSimDevice(t)
	require.NoError(t, device.SAMConfiguration(context.Background(), DefaultSAMConfig()))

	assert.True(t, sim.GetState().SAMConfigured)
	require.Len(t, transport.CommandLog, 1)
	assert.Equal(t,
		[]byte{0x00, 0x00, 0xFF, 0x05, 0xFB, 0xD4, 0x14, 0x01, 0x14, 0x01, 0x02, 0x00},
		transport.CommandLog[0].Data)
}

func TestSAMConfiguration_NoAck(t *testing.T) {
	t.Parallel()

	device, sim, _ := createSimDevice(t)
	sim.DropNextACK()

	err := device.SAMConfiguration(context.Background(), DefaultSAMConfig())
	require.ErrorIs(t, err, ErrInvalidACK, "the response frame arrives where the ACK was expected")

	trace := GetTrace(err)
	require.NotNil(t, trace)
	require.NotEmpty(t, trace.Trace)
	assert.Equal(t, TraceTX, trace.Trace[0].Direction)
	assert.Contains(t, trace.FormatTrace(), "D4 14 01 14 01")
}

func TestSAMConfiguration_Silent(t *testing.T) {
	t.Parallel()

	device, sim, _ := createSimDevice(t)
	sim.Silence(cmdSAMConfiguration)

	err := device.SAMConfiguration(context.Background(), DefaultSAMConfig())
	require.ErrorIs(t, err, ErrTransportTimeout)
	assert.True(t, IsTimeout(err))
}

func TestSAMConfiguration_Params(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte{0x01, 0x14, 0x01}, DefaultSAMConfig().params())
	assert.Equal(t, []byte{0x02, 0x00, 0x00}, SAMConfig{Mode: SAMModeVirtualCard}.params())
}

func TestInListPassiveTarget(t *testing.T) {
	t.Parallel()

	device, sim, _ := createSimDevice(t)
	ctx := context.Background()
	require.NoError(t, device.SAMConfiguration(ctx, DefaultSAMConfig()))

	_, err := device.InListPassiveTarget(ctx)
	require.ErrorIs(t, err, ErrNoTargetDetected)

	card := testutil.NewVirtualCard(nil)
	sim.SetCard(card)
	target, err := device.InListPassiveTarget(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(1), target.Number)
	assert.Equal(t, card.UID, target.UID)
	assert.Equal(t, card.ATS, target.ATS)
	assert.Equal(t, byte(0x20), target.SelRes)
	assert.Equal(t, uint16(0x0004), target.SensRes)
	assert.Contains(t, target.String(), "08 12 34 56")
}

func TestParseTypeATarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		want *Target
		name string
		resp []byte
	}{
		{
			name: "count only",
			resp: []byte{0x01},
			want: &Target{Number: 1},
		},
		{
			name: "target number without details",
			resp: []byte{0x01, 0x02},
			want: &Target{Number: 2},
		},
		{
			name: "uid without ats",
			resp: []byte{0x01, 0x01, 0x00, 0x44, 0x00, 0x07, 1, 2, 3, 4, 5, 6, 7},
			want: &Target{Number: 1, SensRes: 0x0044, UID: []byte{1, 2, 3, 4, 5, 6, 7}},
		},
		{
			name: "uid length past the end",
			resp: []byte{0x01, 0x01, 0x00, 0x04, 0x20, 0x0A, 1, 2},
			want: &Target{Number: 1, SensRes: 0x0004, SelRes: 0x20},
		},
		{
			name: "truncated ats is ignored",
			resp: []byte{0x01, 0x01, 0x00, 0x04, 0x20, 0x01, 0xAA, 0x09, 0x78},
			want: &Target{Number: 1, SensRes: 0x0004, SelRes: 0x20, UID: []byte{0xAA}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, parseTypeATarget(tt.resp))
		})
	}
}

func TestInDataExchange(t *testing.T) {
	t.Parallel()

	device, sim, _ := createSimDevice(t)
	ctx := context.Background()
	sim.SetCard(testutil.NewVirtualCard(func(apdu []byte) []byte {
		return []byte{0x90, 0x00}
	}))
	require.NoError(t, device.SAMConfiguration(ctx, DefaultSAMConfig()))
	target, err := device.InListPassiveTarget(ctx)
	require.NoError(t, err)

	resp, err := device.InDataExchange(ctx, target.Number, []byte{0x00, 0xA4, 0x04, 0x00}, 16)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x00}, resp)

	// MI and NAD flags do not make a status byte an error
	sim.SetExchangeStatus(0xC0)
	resp, err = device.InDataExchange(ctx, target.Number, []byte{0x00}, 16)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x00}, resp)

	sim.SetExchangeStatus(0x41)
	_, err = device.InDataExchange(ctx, target.Number, []byte{0x00}, 16)
	var pe *PN532Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, byte(0x01), pe.ErrorCode)
	assert.True(t, pe.IsTimeoutError())
	require.ErrorIs(t, err, ErrCommandFailed)

	_, err = device.InDataExchange(ctx, 0x05, []byte{0x00}, 16)
	code, ok := ErrorCodeOf(err)
	require.True(t, ok)
	assert.Equal(t, byte(0x27), code)
}

func TestInDataExchange_ResponseTooLong(t *testing.T) {
	t.Parallel()

	device, sim, _ := createSimDevice(t)
	ctx := context.Background()
	sim.SetCard(testutil.NewVirtualCard(func([]byte) []byte {
		return make([]byte, 40)
	}))
	require.NoError(t, device.SAMConfiguration(ctx, DefaultSAMConfig()))
	target, err := device.InListPassiveTarget(ctx)
	require.NoError(t, err)

	_, err = device.InDataExchange(ctx, target.Number, []byte{0x00}, 16)
	require.ErrorIs(t, err, frame.ErrLengthOverflow)
}

func TestGetFirmwareVersion(t *testing.T) {
	t.Parallel()

	device, sim, _ := createSimDevice(t)
	sim.SetFirmwareVersion(0x32, 0x01, 0x06, 0x07)

	fw, err := device.GetFirmwareVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "PN532 v1.6", fw.String())
	assert.True(t, fw.SupportsISO14443A())
}

func TestExchange_WriteFailureIsTimeoutEquivalent(t *testing.T) {
	t.Parallel()

	device, mock := createMockDevice(t)
	mock.SetWriteError(errors.New("i2c: bus error"))

	err := device.SAMConfiguration(context.Background(), DefaultSAMConfig())
	require.ErrorIs(t, err, ErrTransportWrite)
	assert.True(t, IsTimeout(err))
	assert.Zero(t, mock.ReadCount(), "no ACK wait after a failed write")
}

func TestExchange_FrameTooLarge(t *testing.T) {
	t.Parallel()

	device, mock := createMockDevice(t)
	_, err := device.InDataExchange(context.Background(), 1, make([]byte, 300), 16)
	require.ErrorIs(t, err, ErrDataTooLarge)
	require.ErrorIs(t, err, frame.ErrFrameTooLarge)
	assert.Empty(t, mock.Writes())
}

func TestAbortAndClose(t *testing.T) {
	t.Parallel()

	device, mock := createMockDevice(t)
	require.NoError(t, device.Abort(context.Background()))
	assert.Equal(t, [][]byte{frame.AckFrame}, mock.Writes())

	require.NoError(t, device.Close())
	assert.True(t, mock.IsClosed())
	require.ErrorIs(t, device.Abort(context.Background()), ErrTransportClosed)
}
