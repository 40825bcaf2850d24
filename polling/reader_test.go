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
	"testing"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532-hce"
	"github.com/ZaparooProject/go-pn532-hce/apdu"
	"github.com/ZaparooProject/go-pn532-hce/hce"
	testutil "github.com/ZaparooProject/go-pn532-hce/internal/testing"
	"github.com/ZaparooProject/go-pn532-hce/message"
	"github.com/ZaparooProject/go-pn532-hce/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cmdSAMConfiguration    = 0x14
	cmdInDataExchange      = 0x40
	cmdInListPassiveTarget = 0x4A
)

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func createSimDevice(t *testing.T) (*pn532.Device, *testutil.VirtualPN532, *testutil.SimulatorTransport) {
	t.Helper()
	sim := testutil.NewVirtualPN532()
	transport := testutil.NewSimulatorTransport(sim)
	device, err := pn532.New(transport,
		pn532.WithSleeper(noSleep),
		pn532.WithAckTimeout(100*time.Millisecond),
		pn532.WithResponseTimeout(100*time.Millisecond),
	)
	require.NoError(t, err)
	return device, sim, transport
}

// newPhone puts an emulated card running the payload service in the field.
func newPhone(sim *testutil.VirtualPN532, payload string) (*hce.Service, *testutil.VirtualCard, <-chan string) {
	delivered := make(chan string, 4)
	cfg := hce.DefaultConfig()
	cfg.Payload = []byte(payload)
	svc := hce.NewService(cfg, notify.Chan(delivered))
	card := testutil.NewVirtualCard(svc.ProcessCommandAPDU)
	sim.SetCard(card)
	return svc, card, delivered
}

func newTestReader(t *testing.T, device *pn532.Device, callbacks Callbacks) *Reader {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ScanInterval = 10 * time.Millisecond
	reader, err := NewReader(device, cfg, callbacks)
	require.NoError(t, err)
	return reader
}

// rejectSend serves the payload but refuses the answer.
func rejectSend(svc *hce.Service) testutil.APDUHandler {
	return func(cmd []byte) []byte {
		if apdu.Classify(cmd) == apdu.SendMsg {
			return []byte{0x6A, 0x80}
		}
		return svc.ProcessCommandAPDU(cmd)
	}
}

func countKind(cmds [][]byte, kind apdu.Kind) int {
	n := 0
	for _, cmd := range cmds {
		if apdu.Classify(cmd) == kind {
			n++
		}
	}
	return n
}

func TestReader_ScanOnce_MatchSendsAnswer(t *testing.T) {
	t.Parallel()

	device, sim, _ := createSimDevice(t)
	_, card, delivered := newPhone(sim, message.ExpectedMessage)
	require.NoError(t, device.SAMConfiguration(context.Background(), pn532.DefaultSAMConfig()))

	var got []string
	reader := newTestReader(t, device, Callbacks{
		OnMessage: func(text string, matched bool) {
			assert.True(t, matched)
			got = append(got, text)
		},
	})

	cycle := reader.ScanOnce(context.Background())
	require.NoError(t, cycle.Err)
	assert.Equal(t, StepSend, cycle.Step)
	assert.Equal(t, OutcomeSuccess, cycle.Outcome)
	assert.True(t, cycle.Matched)
	assert.True(t, cycle.AnswerSent)
	assert.Equal(t, message.ExpectedMessage, cycle.Message)
	assert.Equal(t, []string{message.ExpectedMessage}, got)
	require.NotNil(t, cycle.Target)
	assert.Equal(t, []byte{0x08, 0x12, 0x34, 0x56}, cycle.Target.UID)

	received := card.Received()
	require.NotEmpty(t, received)
	assert.Equal(t, apdu.SelectAID, apdu.Classify(received[0]))
	// 445 bytes in 100 byte chunks
	assert.Equal(t, 1, countKind(received, apdu.GetData))
	assert.Equal(t, 4, countKind(received, apdu.GetMoreData))
	assert.Equal(t, 1, countKind(received, apdu.SendMsg))

	select {
	case msg := <-delivered:
		assert.Equal(t, message.AnswerMessage, msg)
	default:
		t.Fatal("answer not delivered to the card service")
	}

	m := reader.Metrics()
	assert.Equal(t, int64(1), m.ScanCycles)
	assert.Equal(t, int64(1), m.TargetsDetected)
	assert.Equal(t, int64(1), m.MessagesReceived)
	assert.Equal(t, int64(1), m.AnswersSent)
	assert.Zero(t, m.StepFailures)
}

func TestReader_ScanOnce_MismatchDoesNotAnswer(t *testing.T) {
	t.Parallel()

	device, sim, _ := createSimDevice(t)
	_, card, delivered := newPhone(sim, "something else")
	require.NoError(t, device.SAMConfiguration(context.Background(), pn532.DefaultSAMConfig()))

	reader := newTestReader(t, device, Callbacks{})
	cycle := reader.ScanOnce(context.Background())

	require.NoError(t, cycle.Err)
	assert.Equal(t, StepDecode, cycle.Step)
	assert.False(t, cycle.Matched)
	assert.False(t, cycle.AnswerSent)
	assert.Equal(t, "something else", cycle.Message)
	assert.Zero(t, countKind(card.Received(), apdu.SendMsg))
	assert.Empty(t, delivered)
	assert.Zero(t, reader.Metrics().AnswersSent)
}

func TestReader_ScanOnce_NDEFPayload(t *testing.T) {
	t.Parallel()

	device, sim, _ := createSimDevice(t)
	encoded, err := message.Encode(message.FormatNDEF, message.ExpectedMessage)
	require.NoError(t, err)
	newPhone(sim, string(encoded))
	require.NoError(t, device.SAMConfiguration(context.Background(), pn532.DefaultSAMConfig()))

	cfg := DefaultConfig()
	cfg.Format = message.FormatNDEF
	reader, err := NewReader(device, cfg, Callbacks{})
	require.NoError(t, err)

	cycle := reader.ScanOnce(context.Background())
	require.NoError(t, cycle.Err)
	assert.True(t, cycle.Matched)
	assert.True(t, cycle.AnswerSent)
}

func TestReader_ScanOnce_EmptyField(t *testing.T) {
	t.Parallel()

	device, _, _ := createSimDevice(t)
	require.NoError(t, device.SAMConfiguration(context.Background(), pn532.DefaultSAMConfig()))

	var cycles []Cycle
	reader := newTestReader(t, device, Callbacks{OnCycle: func(c Cycle) { cycles = append(cycles, c) }})
	cycle := reader.ScanOnce(context.Background())

	assert.True(t, cycle.Idle())
	assert.Nil(t, cycle.Target)
	assert.ErrorIs(t, cycle.Err, pn532.ErrNoTargetDetected)
	assert.Len(t, cycles, 1)

	m := reader.Metrics()
	assert.Equal(t, int64(1), m.ScanCycles)
	assert.Zero(t, m.TargetsDetected)
	assert.Zero(t, m.StepFailures, "an empty field is not a failure")
}

func TestReader_ScanOnce_StepFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		handler testutil.APDUHandler
		name    string
		step    Step
	}{
		{
			name:    "SelectRejected",
			handler: func([]byte) []byte { return []byte{0x6A, 0x82} },
			step:    StepSelect,
		},
		{
			name: "GetDataRejected",
			handler: func(cmd []byte) []byte {
				if apdu.Classify(cmd) == apdu.SelectAID {
					return []byte{0x90, 0x00}
				}
				return []byte{0x6F}
			},
			step: StepGetData,
		},
		{
			name: "SendRejected",
			handler: rejectSend(hce.NewService(hce.DefaultConfig(), nil)),
			step: StepSend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, sim, _ := createSimDevice(t)
			sim.SetCard(testutil.NewVirtualCard(tt.handler))
			require.NoError(t, device.SAMConfiguration(context.Background(), pn532.DefaultSAMConfig()))

			reader := newTestReader(t, device, Callbacks{})
			cycle := reader.ScanOnce(context.Background())

			require.Error(t, cycle.Err)
			assert.Equal(t, tt.step, cycle.Step)
			assert.Equal(t, OutcomeStepFailed, cycle.Outcome)
			assert.False(t, cycle.AnswerSent)
			assert.Equal(t, int64(1), reader.Metrics().StepFailures)
		})
	}
}

func TestReader_ScanOnce_Timeout(t *testing.T) {
	t.Parallel()

	device, sim, _ := createSimDevice(t)
	newPhone(sim, message.ExpectedMessage)
	require.NoError(t, device.SAMConfiguration(context.Background(), pn532.DefaultSAMConfig()))
	sim.Silence(cmdInDataExchange)

	reader := newTestReader(t, device, Callbacks{})
	cycle := reader.ScanOnce(context.Background())

	assert.Equal(t, StepSelect, cycle.Step)
	assert.Equal(t, OutcomeTimeout, cycle.Outcome)
	assert.Equal(t, int64(1), reader.Metrics().Timeouts)
}

func TestReader_StartConfiguresThenScans(t *testing.T) {
	t.Parallel()

	device, sim, _ := createSimDevice(t)
	newPhone(sim, message.ExpectedMessage)

	matched := make(chan string, 16)
	reader := newTestReader(t, device, Callbacks{
		OnMessage: func(text string, ok bool) {
			if ok {
				select {
				case matched <- text:
				default:
				}
			}
		},
	})
	require.NoError(t, reader.Start(context.Background()))
	t.Cleanup(reader.Stop)

	select {
	case text := <-matched:
		assert.Equal(t, message.ExpectedMessage, text)
	case <-time.After(5 * time.Second):
		t.Fatal("no message read")
	}

	assert.True(t, sim.GetState().SAMConfigured)
	cmds := sim.Commands()
	require.NotEmpty(t, cmds)
	assert.Equal(t, byte(cmdSAMConfiguration), cmds[0], "SAM must be configured before scanning")
	assert.Equal(t, 1, sim.CountCommand(cmdSAMConfiguration))
	assert.Equal(t, StateScanning, reader.State())
}

func TestReader_StartTwice(t *testing.T) {
	t.Parallel()

	device, _, _ := createSimDevice(t)
	reader := newTestReader(t, device, Callbacks{})
	require.NoError(t, reader.Start(context.Background()))
	t.Cleanup(reader.Stop)

	assert.ErrorIs(t, reader.Start(context.Background()), ErrAlreadyStarted)
}

func TestReader_SAMFailureIsFatal(t *testing.T) {
	t.Parallel()

	device, sim, _ := createSimDevice(t)
	sim.Silence(cmdSAMConfiguration)

	reader := newTestReader(t, device, Callbacks{})
	err := reader.Start(context.Background())

	require.Error(t, err)
	assert.True(t, pn532.IsTimeout(err))
	assert.Equal(t, StateStopped, reader.State())
	assert.NoError(t, reader.Err(), "startup failure is reported by Start only")
	assert.Zero(t, sim.CountCommand(cmdInListPassiveTarget), "no scan without SAM")
	require.NoError(t, reader.Wait())
}

func TestReader_Stop(t *testing.T) {
	t.Parallel()

	device, _, transport := createSimDevice(t)
	reader := newTestReader(t, device, Callbacks{})
	require.NoError(t, reader.Start(context.Background()))

	require.Eventually(t, func() bool {
		return reader.Metrics().ScanCycles > 0
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, reader.Close())
	assert.Equal(t, StateStopped, reader.State())
	require.NoError(t, reader.Wait())
	assert.True(t, transport.IsClosed())

	cycles := reader.Metrics().ScanCycles
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, cycles, reader.Metrics().ScanCycles, "scanning continued after Stop")
}

func TestReader_StopBeforeStart(t *testing.T) {
	t.Parallel()

	device, _, _ := createSimDevice(t)
	reader := newTestReader(t, device, Callbacks{})
	reader.Stop()

	assert.Equal(t, StateStopped, reader.State())
	assert.ErrorIs(t, reader.Start(context.Background()), ErrAlreadyStarted)
}

func TestReader_ContextCancelEndsScan(t *testing.T) {
	t.Parallel()

	device, _, _ := createSimDevice(t)
	reader := newTestReader(t, device, Callbacks{})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, reader.Start(ctx))
	cancel()

	done := make(chan error, 1)
	go func() { done <- reader.Wait() }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scan loop ignored context cancellation")
	}
	assert.Equal(t, StateStopped, reader.State())
}

func TestReader_BusLossStopsScan(t *testing.T) {
	t.Parallel()

	device, _, transport := createSimDevice(t)
	reader := newTestReader(t, device, Callbacks{})
	require.NoError(t, reader.Start(context.Background()))

	require.NoError(t, transport.Close())

	done := make(chan error, 1)
	go func() { done <- reader.Wait() }()
	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, pn532.IsFatal(err))
	case <-time.After(5 * time.Second):
		t.Fatal("scan loop kept running on a closed bus")
	}
}

func TestNewReader_InvalidConfig(t *testing.T) {
	t.Parallel()

	device, _, _ := createSimDevice(t)
	cfg := DefaultConfig()
	cfg.AID = nil

	_, err := NewReader(device, cfg, Callbacks{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestExchange_AnyChannel(t *testing.T) {
	t.Parallel()

	delivered := make(chan string, 1)
	svc := hce.NewService(hce.DefaultConfig(), notify.Chan(delivered))

	var seen string
	cycle := Exchange(context.Background(), svc, nil, func(text string, _ bool) { seen = text })

	require.NoError(t, cycle.Err)
	assert.True(t, cycle.Received)
	assert.True(t, cycle.Matched)
	assert.True(t, cycle.AnswerSent)
	assert.Nil(t, cycle.Target)
	assert.Equal(t, message.ExpectedMessage, seen)
	assert.Equal(t, message.AnswerMessage, <-delivered)
}

func TestExchange_ContinuationCap(t *testing.T) {
	t.Parallel()

	svc := hce.NewService(hce.DefaultConfig(), nil)
	cfg := DefaultConfig()
	cfg.MaxContinuations = 2

	cycle := Exchange(context.Background(), svc, cfg, nil)
	assert.Equal(t, StepGetData, cycle.Step)
	assert.ErrorIs(t, cycle.Err, apdu.ErrTooManyContinuations)
	assert.False(t, cycle.Received)
}
