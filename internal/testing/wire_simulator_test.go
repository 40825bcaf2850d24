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

package testing

import (
	"bytes"
	"context"
	"testing"

	"github.com/ZaparooProject/go-pn532-hce/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func command(t *testing.T, cmd byte, params ...byte) []byte {
	t.Helper()
	buf, _, err := frame.EncodeCommand(cmd, params, nil)
	require.NoError(t, err)
	return buf
}

func readI2C(t *testing.T, sim *VirtualPN532, size int) []byte {
	t.Helper()
	buf := make([]byte, size)
	n, err := sim.ReadI2C(buf)
	require.NoError(t, err)
	return buf[:n]
}

func TestVirtualPN532_AckThenResponse(t *testing.T) {
	t.Parallel()

	sim := NewVirtualPN532()
	_, err := sim.Write(command(t, cmdSAMConfiguration, 0x01, 0x14, 0x01))
	require.NoError(t, err)

	ack := readI2C(t, sim, frame.AckReadLength)
	assert.Equal(t, byte(frame.ReadyBit), ack[0])
	assert.True(t, frame.IsAck(ack[1:]))

	resp := readI2C(t, sim, 8+frame.ResponseOverhead)
	payload, err := frame.DecodeResponse(resp, frame.PendingCommand(cmdSAMConfiguration), 8)
	require.NoError(t, err)
	assert.Empty(t, payload)
	assert.True(t, sim.GetState().SAMConfigured)

	assert.Equal(t, byte(0x00), readI2C(t, sim, 4)[0], "nothing left to read")
}

func TestVirtualPN532_ReadyDelay(t *testing.T) {
	t.Parallel()

	sim := NewVirtualPN532()
	sim.SetReadyDelay(2)
	_, err := sim.Write(command(t, cmdGetFirmwareVersion))
	require.NoError(t, err)

	assert.Equal(t, byte(0x00), readI2C(t, sim, frame.AckReadLength)[0])
	assert.Equal(t, byte(0x00), readI2C(t, sim, frame.AckReadLength)[0])
	assert.True(t, frame.IsAck(readI2C(t, sim, frame.AckReadLength)[1:]))
}

func TestVirtualPN532_StreamRead(t *testing.T) {
	t.Parallel()

	sim := NewVirtualPN532()
	_, err := sim.Write(command(t, cmdGetFirmwareVersion))
	require.NoError(t, err)

	var got []byte
	buf := make([]byte, 3)
	for sim.HasPendingResponse() {
		n, err := sim.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}

	want := append(bytes.Clone(frame.AckFrame), 0x00, 0x00, 0xFF, 0x06, 0xFA, 0xD5, 0x03, 0x32, 0x01, 0x06, 0x07)
	require.GreaterOrEqual(t, len(got), len(want))
	assert.Equal(t, want, got[:len(want)])
}

func TestVirtualPN532_UnknownCommand(t *testing.T) {
	t.Parallel()

	sim := NewVirtualPN532()
	_, err := sim.Write(command(t, 0x60))
	require.NoError(t, err)

	readI2C(t, sim, frame.AckReadLength)
	resp := readI2C(t, sim, 16)
	assert.Equal(t, errorFrame, resp[1:1+len(errorFrame)])
}

func TestVirtualPN532_HostAckAborts(t *testing.T) {
	t.Parallel()

	sim := NewVirtualPN532()
	_, err := sim.Write(command(t, cmdTgInitAsTarget, make([]byte, 37)...))
	require.NoError(t, err)
	assert.True(t, sim.GetState().TargetArmed)

	_, err = sim.Write(frame.AckFrame)
	require.NoError(t, err)
	assert.False(t, sim.GetState().TargetArmed)
	assert.False(t, sim.HasPendingResponse())
}

func TestVirtualPN532_CardExchange(t *testing.T) {
	t.Parallel()

	card := NewVirtualCard(func(apdu []byte) []byte {
		return append(bytes.Clone(apdu[:1]), 0x90, 0x00)
	})
	sim := NewVirtualPN532()
	sim.SetCard(card)
	transport := NewSimulatorTransport(sim)
	ctx := context.Background()

	exchange := func(cmd byte, params ...byte) []byte {
		require.NoError(t, transport.Write(ctx, command(t, cmd, params...)))
		readI2C(t, sim, frame.AckReadLength)
		buf := make([]byte, 64+frame.ResponseOverhead)
		_, err := transport.Read(ctx, buf)
		require.NoError(t, err)
		payload, err := frame.DecodeResponse(buf, frame.PendingCommand(cmd), 64)
		require.NoError(t, err)
		return payload
	}

	assert.Equal(t, []byte{0x00}, exchange(cmdInListPassiveTarget, 0x01, 0x00), "SAM not configured")
	exchange(cmdSAMConfiguration, 0x01, 0x14, 0x01)

	detected := exchange(cmdInListPassiveTarget, 0x01, 0x00)
	assert.Equal(t, byte(1), detected[0])
	assert.Equal(t, byte(1), detected[1])

	assert.Equal(t, []byte{0x00, 0xAB, 0x90, 0x00}, exchange(cmdInDataExchange, 0x01, 0xAB, 0xCD))
	assert.Equal(t, [][]byte{{0xAB, 0xCD}}, card.Received())

	assert.Equal(t, []byte{errCommand}, exchange(cmdInDataExchange, 0x02, 0xAB))

	sim.SetExchangeStatus(0x40)
	assert.Equal(t, []byte{0x40, 0x11, 0x90, 0x00}, exchange(cmdInDataExchange, 0x01, 0x11))

	assert.Equal(t, 6, transport.Writes())
	require.NoError(t, transport.Close())
	assert.True(t, transport.IsClosed())
	require.Error(t, transport.Write(ctx, []byte{0x00}))
}

func TestVirtualPN532_TargetMode(t *testing.T) {
	t.Parallel()

	session := NewInitiatorSession([]byte{0x00, 0xA4, 0x04, 0x00}, []byte{0x00, 0xCA, 0x00, 0x01})
	sim := NewVirtualPN532()
	sim.AddInitiatorSession(session)

	send := func(cmd byte, params ...byte) []byte {
		_, err := sim.Write(command(t, cmd, params...))
		require.NoError(t, err)
		readI2C(t, sim, frame.AckReadLength)
		payload, err := frame.DecodeResponse(readI2C(t, sim, 255+frame.ResponseOverhead), frame.PendingCommand(cmd), 255)
		require.NoError(t, err)
		return payload
	}

	assert.Equal(t, byte(0x08), send(cmdTgInitAsTarget, make([]byte, 37)...)[0])
	assert.Equal(t, []byte{0x00, 0x00, 0xA4, 0x04, 0x00}, send(cmdTgGetData))
	assert.Equal(t, []byte{0x00}, send(cmdTgSetData, 0x90, 0x00))
	assert.Equal(t, []byte{0x00, 0x00, 0xCA, 0x00, 0x01}, send(cmdTgGetData))
	assert.True(t, session.Done())
	assert.Equal(t, []byte{errTargetLeft}, send(cmdTgGetData))
	assert.Equal(t, [][]byte{{0x90, 0x00}}, session.Responses())
}

func TestVirtualPN532_Faults(t *testing.T) {
	t.Parallel()

	sim := NewVirtualPN532()

	sim.DropNextACK()
	_, err := sim.Write(command(t, cmdGetFirmwareVersion))
	require.NoError(t, err)
	first := readI2C(t, sim, 16)
	assert.False(t, frame.IsAck(first[1:]), "ACK should be dropped, response comes first")

	sim.CorruptNextACK()
	_, err = sim.Write(command(t, cmdGetFirmwareVersion))
	require.NoError(t, err)
	ack := readI2C(t, sim, frame.AckReadLength)
	assert.Equal(t, byte(frame.ReadyBit), ack[0])
	assert.False(t, frame.IsAck(ack[1:]))
	readI2C(t, sim, 16)

	sim.InjectChecksumError()
	_, err = sim.Write(command(t, cmdGetFirmwareVersion))
	require.NoError(t, err)
	readI2C(t, sim, frame.AckReadLength)
	_, err = frame.DecodeResponse(readI2C(t, sim, 16), frame.PendingCommand(cmdGetFirmwareVersion), 4)
	require.ErrorIs(t, err, frame.ErrBadChecksum)

	sim.InjectReadErrors(1)
	_, err = sim.ReadI2C(make([]byte, 4))
	require.ErrorIs(t, err, ErrInjectedRead)

	assert.Equal(t, 3, sim.CountCommand(cmdGetFirmwareVersion))
}

func TestJitteryConnection_ReassemblesStream(t *testing.T) {
	t.Parallel()

	sim := NewVirtualPN532()
	conn := NewJitteryConnection(sim, JitterConfig{FragmentMinBytes: 1, Seed: 42})
	_, err := conn.Write(command(t, cmdGetFirmwareVersion))
	require.NoError(t, err)

	var got []byte
	buf := make([]byte, 32)
	for range 100 {
		n, err := conn.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	assert.Len(t, got, len(frame.AckFrame)+13)
}
