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

// Package uart provides the HSU (high speed UART) transport for PN532.
//
// HSU has no status byte: the chip streams its ACK and response frames as
// soon as they are ready. The transport buffers the stream and hands the
// device one complete frame per read, prefixed with a synthetic ready
// status byte, so the device can poll it like an I2C bus.
package uart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532-hce"
	"github.com/ZaparooProject/go-pn532-hce/internal/frame"
	"github.com/ZaparooProject/go-pn532-hce/internal/syncutil"
	"go.bug.st/serial"
)

// BaudRate is the PN532 HSU default.
const BaudRate = 115200

// wakeUpSequence takes the PN532 out of power down: a 0x55 and enough
// idle bytes for the oscillator to start.
var wakeUpSequence = []byte{
	0x55, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

var startCode = []byte{frame.StartCode1, frame.StartCode2}

// Transport implements the pn532.Transport interface for UART communication.
type Transport struct {
	port     serial.Port
	portName string
	rx       []byte
	scratch  []byte
	mu       syncutil.Mutex
	awake    bool
	closed   bool
}

// readTimeout bounds one port read. 50ms proven to work on Linux/Mac,
// 100ms needed for Windows stability.
func readTimeout() time.Duration {
	if runtime.GOOS == "windows" {
		return 100 * time.Millisecond
	}
	return 50 * time.Millisecond
}

// New opens the serial port at BaudRate 8N1.
func New(portName string) (*Transport, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, openError(portName, err)
	}

	if err := port.SetReadTimeout(readTimeout()); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}
	return NewWithPort(port, portName), nil
}

// NewWithPort wraps an open port. The port's read timeout bounds each Read.
func NewWithPort(port serial.Port, portName string) *Transport {
	return &Transport{
		port:     port,
		portName: portName,
		scratch:  make([]byte, frame.FrameBufferSize),
	}
}

func openError(portName string, err error) error {
	var pe *serial.PortError
	if errors.As(err, &pe) && pe.Code() == serial.PortNotFound {
		err = fmt.Errorf("%w: %w", pn532.ErrDeviceNotFound, err)
	}
	return pn532.NewTransportError("open", portName, err, pn532.ErrorTypePermanent)
}

func (t *Transport) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("uart %s: %w", op, err)
	}
	if t.closed {
		return pn532.NewTransportError(op, t.portName, pn532.ErrTransportClosed, pn532.ErrorTypePermanent)
	}
	return nil
}

// Write sends one frame, waking the chip first on the first write.
func (t *Transport) Write(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.check(ctx, "write"); err != nil {
		return err
	}
	if !t.awake {
		if err := t.writeAll("wake up", wakeUpSequence); err != nil {
			return err
		}
		t.awake = true
	}
	// a new command makes anything still buffered stale, except when the
	// host aborts and the chip may still be talking
	if !frame.IsAck(data) {
		t.rx = t.rx[:0]
	}
	return t.writeAll("write", data)
}

func (t *Transport) writeAll(op string, data []byte) error {
	n, err := t.port.Write(data)
	if err != nil {
		return t.portError(op, err)
	}
	if n != len(data) {
		return pn532.NewTransportError(op, t.portName,
			fmt.Errorf("short write: %d of %d bytes", n, len(data)), pn532.ErrorTypeTransient)
	}
	return t.drainWithRetry(op)
}

// Read returns the next complete frame behind a ready status byte, or a
// single zero status byte when no complete frame has arrived yet.
func (t *Transport) Read(ctx context.Context, buf []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.check(ctx, "read"); err != nil {
		return 0, err
	}
	if len(buf) == 0 {
		return 0, nil
	}

	start, end, ok := splitFrame(t.rx)
	if !ok {
		n, err := t.port.Read(t.scratch)
		if err != nil {
			return 0, t.portError("read", err)
		}
		t.rx = append(t.rx, t.scratch[:n]...)
		start, end, ok = splitFrame(t.rx)
	}
	if !ok {
		t.rx = t.rx[start:]
		buf[0] = 0x00
		return 1, nil
	}

	buf[0] = frame.ReadyBit
	n := 1
	if len(buf) > 1 {
		// normalize to a full preamble even if the chip skipped it
		buf[1] = frame.Preamble
		n = 2 + copy(buf[2:], t.rx[start:end])
	}
	t.rx = t.rx[end:]
	return n, nil
}

// splitFrame finds the first complete frame in rx. The frame spans
// rx[start:end] starting at the 00 FF start code; bytes before start are
// noise. ok is false while the frame is incomplete.
func splitFrame(rx []byte) (start, end int, ok bool) {
	for off := 0; ; {
		idx := bytes.Index(rx[off:], startCode)
		if idx < 0 {
			// keep a trailing 0x00 that may begin a start code
			keep := len(rx)
			if keep > off && rx[keep-1] == frame.Preamble {
				keep--
			}
			return keep, keep, false
		}
		idx += off
		if len(rx) < idx+4 {
			return idx, idx, false
		}

		length, lcs := rx[idx+2], rx[idx+3]
		switch {
		case length == 0x00 && lcs == 0xFF, length == 0xFF && lcs == 0x00:
			// ACK or NACK
			end = idx + 5
		case frame.ValidateFrameLength(length, lcs):
			end = idx + 4 + int(length) + 2
		default:
			off = idx + 2
			continue
		}
		if len(rx) < end {
			return idx, idx, false
		}
		return idx, end, true
	}
}

// portError classifies serial failures. A closed or vanished port is
// permanent.
func (t *Transport) portError(op string, err error) error {
	errType := pn532.ErrorTypeTransient
	var pe *serial.PortError
	if (errors.As(err, &pe) && pe.Code() == serial.PortClosed) || pn532.IsFatal(err) {
		errType = pn532.ErrorTypePermanent
	}
	return pn532.NewTransportError(op, t.portName, err, errType)
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

// drainWithRetry performs port drain with retry logic for interrupted system calls
func (t *Transport) drainWithRetry(operation string) error {
	const maxRetries = 3
	baseDelay := 2 * time.Millisecond

	var err error
	for attempt := range maxRetries {
		err = t.port.Drain()
		if err == nil {
			return nil
		}
		if !isInterruptedSystemCall(err) {
			break
		}
		if attempt < maxRetries-1 {
			time.Sleep(baseDelay * time.Duration(1<<attempt)) // 2ms, 4ms
		}
	}
	return t.portError(operation+" drain", err)
}

// Close closes the port. Closing twice is a no-op.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}

func (t *Transport) String() string {
	return "uart:" + t.portName
}

var _ pn532.Transport = (*Transport)(nil)
