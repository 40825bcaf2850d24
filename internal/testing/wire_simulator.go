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

// Package testing provides a wire level PN532 simulator for tests.
package testing

import (
	"bytes"
	"errors"

	"github.com/ZaparooProject/go-pn532-hce/internal/frame"
	"github.com/ZaparooProject/go-pn532-hce/internal/syncutil"
)

// PN532 command codes handled by the simulator
const (
	cmdGetFirmwareVersion  = 0x02
	cmdSAMConfiguration    = 0x14
	cmdInDataExchange      = 0x40
	cmdInListPassiveTarget = 0x4A
	cmdTgGetData           = 0x86
	cmdTgInitAsTarget      = 0x8C
	cmdTgSetData           = 0x8E
)

// PN532 error codes (User Manual section 7.1)
const (
	errTimeout    = 0x01
	errDepState   = 0x25
	errCommand    = 0x27
	errTargetLeft = 0x29
)

// errorFrame is the syntax error frame the PN532 sends for unknown commands.
var errorFrame = []byte{0x00, 0x00, 0xFF, 0x01, 0xFF, 0x7F, 0x81, 0x00}

// ErrInjectedRead is returned by reads after InjectReadErrors.
var ErrInjectedRead = errors.New("simulator: injected read error")

// SimulatorState is the chip state visible to tests.
type SimulatorState struct {
	SAMConfigured  bool
	SelectedTarget int // -1 = none
	TargetArmed    bool
}

// VirtualPN532 simulates a PN532 at the frame level. Each command frame
// produces an ACK and a response, queued as separate outputs.
//
// Read consumes the outputs as a byte stream (HSU). ReadI2C follows the
// I2C contract: a status byte, then one whole output per ready read.
type VirtualPN532 struct {
	card        *VirtualCard
	sessions    []*InitiatorSession
	active      *InitiatorSession
	rxBuffer    bytes.Buffer
	outputs     [][]byte
	streamPos   int
	commands    []byte
	aborted     []byte
	lastOutput  []byte
	state       SimulatorState
	mu          syncutil.Mutex
	readyDelay  int
	pendingWait int
	readErrors  int

	firmware        [4]byte
	exchangeStatus  int
	dropNextACK     bool
	corruptNextACK  bool
	injectChecksum  bool
	silenceCommands map[byte]bool
}

// NewVirtualPN532 creates a simulator with an empty field.
func NewVirtualPN532() *VirtualPN532 {
	return &VirtualPN532{
		state:           SimulatorState{SelectedTarget: -1},
		firmware:        [4]byte{0x32, 0x01, 0x06, 0x07},
		exchangeStatus:  -1,
		silenceCommands: make(map[byte]bool),
	}
}

// Write accepts host bytes. Complete command frames are processed at once.
func (v *VirtualPN532) Write(data []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.rxBuffer.Write(data)
	v.processReceivedData()
	return len(data), nil
}

// Read drains queued output as a byte stream, the way the HSU link
// delivers it. It returns 0 bytes when nothing is pending.
func (v *VirtualPN532) Read(buf []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.readErrors > 0 {
		v.readErrors--
		return 0, ErrInjectedRead
	}

	n := 0
	for n < len(buf) && len(v.outputs) > 0 {
		head := v.outputs[0]
		c := copy(buf[n:], head[v.streamPos:])
		n += c
		v.streamPos += c
		if v.streamPos == len(head) {
			v.outputs = v.outputs[1:]
			v.streamPos = 0
		}
	}
	return n, nil
}

// ReadI2C fills buf with the status byte followed by the next output. The
// output is consumed even if buf is too short to hold it.
func (v *VirtualPN532) ReadI2C(buf []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.readErrors > 0 {
		v.readErrors--
		return 0, ErrInjectedRead
	}

	clear(buf)
	if len(buf) == 0 {
		return 0, nil
	}
	if len(v.outputs) == 0 {
		return len(buf), nil
	}
	if v.pendingWait > 0 {
		v.pendingWait--
		return len(buf), nil
	}

	buf[0] = frame.ReadyBit
	copy(buf[1:], v.outputs[0][v.streamPos:])
	v.outputs = v.outputs[1:]
	v.streamPos = 0
	if len(v.outputs) > 0 {
		v.pendingWait = v.readyDelay
	}
	return len(buf), nil
}

// HasPendingResponse reports whether output is queued.
func (v *VirtualPN532) HasPendingResponse() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.outputs) > 0
}

// SetReadyDelay makes every output wait for n not-ready I2C polls.
func (v *VirtualPN532) SetReadyDelay(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.readyDelay = n
}

// InjectReadErrors makes the next n reads fail.
func (v *VirtualPN532) InjectReadErrors(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.readErrors = n
}

// DropNextACK suppresses the ACK of the next command.
func (v *VirtualPN532) DropNextACK() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dropNextACK = true
}

// CorruptNextACK sends a mangled ACK for the next command.
func (v *VirtualPN532) CorruptNextACK() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.corruptNextACK = true
}

// InjectChecksumError corrupts the DCS of the next response.
func (v *VirtualPN532) InjectChecksumError() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.injectChecksum = true
}

// SetExchangeStatus overrides the status byte of the next InDataExchange.
func (v *VirtualPN532) SetExchangeStatus(status byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.exchangeStatus = int(status)
}

// Silence makes the chip ACK cmd but never answer it.
func (v *VirtualPN532) Silence(cmd byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.silenceCommands[cmd] = true
}

// SetFirmwareVersion sets the GetFirmwareVersion answer.
func (v *VirtualPN532) SetFirmwareVersion(ic, ver, rev, support byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.firmware = [4]byte{ic, ver, rev, support}
}

// SetCard places card in the field. nil empties the field.
func (v *VirtualPN532) SetCard(card *VirtualCard) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.card = card
	v.state.SelectedTarget = -1
}

// AddInitiatorSession queues an initiator that will activate the chip the
// next time it is armed with TgInitAsTarget.
func (v *VirtualPN532) AddInitiatorSession(s *InitiatorSession) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sessions = append(v.sessions, s)
}

// Commands returns the command codes received, in order.
func (v *VirtualPN532) Commands() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]byte(nil), v.commands...)
}

// AbortedCommands returns, in order, the command that was last received
// each time the host sent an ACK abort.
func (v *VirtualPN532) AbortedCommands() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]byte(nil), v.aborted...)
}

// CountCommand returns how often cmd was received.
func (v *VirtualPN532) CountCommand(cmd byte) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return bytes.Count(v.commands, []byte{cmd})
}

// GetState returns the simulator state.
func (v *VirtualPN532) GetState() SimulatorState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *VirtualPN532) processReceivedData() {
	for {
		data := v.rxBuffer.Bytes()
		if len(data) < len(frame.AckFrame) {
			return
		}

		// an ACK from the host aborts the running command
		if frame.IsAck(data) {
			v.rxBuffer.Next(len(frame.AckFrame))
			if n := len(v.commands); n > 0 {
				v.aborted = append(v.aborted, v.commands[n-1])
			}
			v.outputs = nil
			v.streamPos = 0
			v.state.TargetArmed = false
			continue
		}
		if frame.IsNack(data) {
			v.rxBuffer.Next(len(frame.NackFrame))
			if v.lastOutput != nil {
				v.enqueue(v.lastOutput)
			}
			continue
		}

		start := bytes.Index(data, []byte{frame.Preamble, frame.StartCode1, frame.StartCode2})
		if start < 0 {
			v.rxBuffer.Reset()
			return
		}
		v.rxBuffer.Next(start)
		data = v.rxBuffer.Bytes()

		cmd, args, n, ok := parseCommandFrame(data)
		if n == 0 {
			return // incomplete
		}
		v.rxBuffer.Next(n)
		if ok {
			v.processCommand(cmd, args)
		}
	}
}

// parseCommandFrame returns the frame length consumed, or 0 when more
// bytes are needed. ok is false for frames that fail validation.
func parseCommandFrame(data []byte) (cmd byte, args []byte, n int, ok bool) {
	if len(data) < 5 {
		return 0, nil, 0, false
	}
	if !frame.ValidateFrameLength(data[3], data[4]) {
		return 0, nil, 1, false
	}
	length := int(data[3])
	total := 5 + length + 2
	if len(data) < total {
		return 0, nil, 0, false
	}
	if length < 2 || data[5] != frame.HostToPn532 || !frame.ValidateFrameChecksum(data, 5, 5+length+1) {
		return 0, nil, total, false
	}
	return data[6], append([]byte(nil), data[7:5+length]...), total, true
}

func (v *VirtualPN532) enqueue(out []byte) {
	if len(v.outputs) == 0 {
		v.pendingWait = v.readyDelay
	}
	v.outputs = append(v.outputs, out)
}

func (v *VirtualPN532) processCommand(cmd byte, args []byte) {
	v.commands = append(v.commands, cmd)

	switch {
	case v.dropNextACK:
		v.dropNextACK = false
	case v.corruptNextACK:
		v.corruptNextACK = false
		v.enqueue([]byte{0x00, 0x00, 0xFF, 0x00, 0xFE, 0x00})
	default:
		v.enqueue(append([]byte(nil), frame.AckFrame...))
	}

	if v.silenceCommands[cmd] {
		return
	}

	var data []byte
	answered := true
	switch cmd {
	case cmdGetFirmwareVersion:
		data = v.firmware[:]
	case cmdSAMConfiguration:
		if len(args) < 1 || args[0] < 0x01 || args[0] > 0x04 {
			v.enqueue(errorFrame)
			return
		}
		v.state.SAMConfigured = true
	case cmdInListPassiveTarget:
		data = v.handleInListPassiveTarget(args)
	case cmdInDataExchange:
		data = v.handleInDataExchange(args)
	case cmdTgInitAsTarget:
		data, answered = v.handleTgInitAsTarget()
	case cmdTgGetData:
		data = v.handleTgGetData()
	case cmdTgSetData:
		data = v.handleTgSetData(args)
	default:
		v.enqueue(errorFrame)
		return
	}
	if answered {
		v.sendResponse(cmd, data)
	}
}

func (v *VirtualPN532) sendResponse(cmd byte, data []byte) {
	out, err := frame.EncodeResponse(cmd+1, data)
	if err != nil {
		v.enqueue(errorFrame)
		return
	}
	if v.injectChecksum {
		v.injectChecksum = false
		out[len(out)-2] ^= 0xFF
	}
	v.lastOutput = out
	v.enqueue(out)
}

func (v *VirtualPN532) handleInListPassiveTarget(args []byte) []byte {
	if len(args) < 2 || args[1] != 0x00 || v.card == nil || !v.state.SAMConfigured {
		return []byte{0x00}
	}
	v.state.SelectedTarget = 1
	return BuildTypeADetectionResponse(1, v.card.UID, v.card.ATS)
}

func (v *VirtualPN532) handleInDataExchange(args []byte) []byte {
	if v.exchangeStatus >= 0 {
		status := byte(v.exchangeStatus)
		v.exchangeStatus = -1
		if status&0x3F != 0 {
			return []byte{status}
		}
		return append([]byte{status}, v.exchangeWithCard(args)...)
	}
	if len(args) < 1 || v.card == nil || v.state.SelectedTarget != int(args[0]) {
		return []byte{errCommand}
	}
	if v.card.Handler == nil {
		return []byte{errTimeout}
	}
	return append([]byte{0x00}, v.exchangeWithCard(args)...)
}

func (v *VirtualPN532) exchangeWithCard(args []byte) []byte {
	if v.card == nil || v.card.Handler == nil || len(args) < 1 {
		return nil
	}
	apdu := append([]byte(nil), args[1:]...)
	v.card.record(apdu)
	return v.card.Handler(apdu)
}

func (v *VirtualPN532) handleTgInitAsTarget() ([]byte, bool) {
	if len(v.sessions) == 0 {
		// nobody in the field: the command stays pending
		v.state.TargetArmed = true
		return nil, false
	}
	v.active = v.sessions[0]
	v.sessions = v.sessions[1:]
	v.state.TargetArmed = false
	// 106kbps, ISO/IEC 14443-4 PICC, followed by the RATS the reader sent
	return []byte{0x08, 0xE0, 0x80}, true
}

func (v *VirtualPN532) handleTgGetData() []byte {
	if v.active == nil {
		return []byte{errDepState}
	}
	apdu, ok := v.active.next()
	if !ok {
		v.active = nil
		return []byte{errTargetLeft}
	}
	return append([]byte{0x00}, apdu...)
}

func (v *VirtualPN532) handleTgSetData(args []byte) []byte {
	if v.active == nil {
		return []byte{errDepState}
	}
	v.active.respond(args)
	return []byte{0x00}
}
