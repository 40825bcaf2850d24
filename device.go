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
	"fmt"
	"time"

	"github.com/ZaparooProject/go-pn532-hce/internal/frame"
	"github.com/ZaparooProject/go-pn532-hce/internal/syncutil"
)

// Default timings
const (
	DefaultAckTimeout      = 5000 * time.Millisecond
	DefaultResponseTimeout = 1000 * time.Millisecond
)

// Default response length limits, in payload bytes after the response code.
const (
	DefaultSAMResponseLimit      = 8
	DefaultDetectResponseLimit   = 64
	DefaultFirmwareResponseLimit = 4
)

// DeviceConfig contains the timing and length limits of a Device.
type DeviceConfig struct {
	// Sleep is used between bus polls; nil means SleepContext.
	Sleep SleepFunc
	// AckTimeout bounds the wait for the ACK after each command. Zero
	// waits forever.
	AckTimeout time.Duration
	// ResponseTimeout bounds the wait for the response frame. Zero waits
	// forever.
	ResponseTimeout time.Duration
	// PollInterval is the delay between bus polls.
	PollInterval        time.Duration
	SAMResponseLimit    int
	DetectResponseLimit int
	TraceSize           int
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		AckTimeout:          DefaultAckTimeout,
		ResponseTimeout:     DefaultResponseTimeout,
		PollInterval:        DefaultPollInterval,
		SAMResponseLimit:    DefaultSAMResponseLimit,
		DetectResponseLimit: DefaultDetectResponseLimit,
		TraceSize:           DefaultTraceSize,
	}
}

// Device is a PN532 reached over a Transport.
type Device struct {
	transport Transport
	config    *DeviceConfig
	trace     *TraceBuffer
	mu        syncutil.Mutex
}

// New creates a new PN532 device with the given transport and options
func New(transport Transport, opts ...Option) (*Device, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParameter)
	}
	device := &Device{
		transport: transport,
		config:    DefaultDeviceConfig(),
	}
	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}
	device.trace = NewTraceBuffer(transport.String(), device.config.TraceSize)
	return device, nil
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.transport
}

// Config returns a copy of the device configuration.
func (d *Device) Config() DeviceConfig {
	return *d.config
}

// Close releases the bus.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.transport.Close(); err != nil {
		return fmt.Errorf("close %s: %w", d.transport, err)
	}
	return nil
}

func (d *Device) pollPolicy(timeout time.Duration) PollPolicy {
	return PollPolicy{
		Interval: d.config.PollInterval,
		Timeout:  timeout,
		Sleep:    d.config.Sleep,
	}
}

// WriteCommand sends a command frame and waits for its ACK. The returned
// identity must be passed to ReadResponse.
//
// WriteCommand and ReadResponse do not lock the device; use Exchange unless
// the caller serializes bus access itself.
func (d *Device) WriteCommand(ctx context.Context, opcode byte, params, body []byte) (frame.Pending, error) {
	buf, pending, err := frame.EncodeCommand(opcode, params, body)
	if err != nil {
		return frame.Pending{}, NewTransportError("write command", d.transport.String(),
			fmt.Errorf("%w: %w", ErrDataTooLarge, err), ErrorTypePermanent)
	}

	d.trace.RecordTX(buf, fmt.Sprintf("cmd 0x%02X", opcode))
	Debugf("TX % X", buf)
	if err := d.transport.Write(ctx, buf); err != nil {
		return frame.Pending{}, NewTransportWriteError("write command", d.transport.String(), err)
	}

	if err := d.WaitForAck(ctx, d.config.AckTimeout); err != nil {
		return frame.Pending{}, err
	}
	return pending, nil
}

// Exchange sends a command and reads its response under the device lock.
// expectedLen bounds the response payload. Failures carry the wire trace
// of the exchange.
func (d *Device) Exchange(
	ctx context.Context, opcode byte, params, body []byte, expectedLen int,
) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.trace.Clear()
	pending, err := d.WriteCommand(ctx, opcode, params, body)
	if err != nil {
		return nil, d.trace.WrapError(err)
	}
	resp, err := d.ReadResponse(ctx, pending, expectedLen, d.config.ResponseTimeout)
	if err != nil {
		return nil, d.trace.WrapError(err)
	}
	return resp, nil
}

// Abort cancels the command the PN532 is executing by sending an ACK frame.
func (d *Device) Abort(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.trace.RecordTX(frame.AckFrame, "abort")
	if err := d.transport.Write(ctx, frame.AckFrame); err != nil {
		return NewTransportWriteError("abort", d.transport.String(), err)
	}
	return nil
}
