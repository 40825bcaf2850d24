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
	"time"

	"github.com/ZaparooProject/go-pn532-hce/internal/frame"
)

// WaitForAck polls the bus until the PN532 signals ready and checks that
// the ready output is the ACK frame. Bus read errors count as "not ready".
// It returns nil, an ErrNoACK timeout, or ErrInvalidACK.
func (d *Device) WaitForAck(ctx context.Context, timeout time.Duration) error {
	buf := frame.GetBuffer(frame.AckReadLength)
	defer frame.PutBuffer(buf)

	var n int
	var lastErr error
	err := d.pollPolicy(timeout).Poll(ctx, func() bool {
		var readErr error
		n, readErr = d.transport.Read(ctx, buf)
		if readErr != nil {
			lastErr = readErr
			return false
		}
		return n > 0 && frame.IsReady(buf[0])
	})
	if err != nil {
		if !errors.Is(err, ErrTransportTimeout) {
			return err
		}
		d.trace.RecordTimeout("ACK")
		if lastErr != nil {
			Debugf("ACK wait on %s timed out, last read error: %v", d.transport, lastErr)
		}
		return NewNoACKError("wait ack", d.transport.String())
	}

	d.trace.RecordRX(buf[:n], "ACK")
	if !frame.IsAck(buf[1:n]) {
		Debugf("expected ACK, got % X", buf[1:n])
		return NewInvalidACKError("wait ack", d.transport.String())
	}
	return nil
}

// ReadResponse polls until a response frame is ready and decodes it against
// pending. The payload after the response code is returned; it may be at
// most expectedLen bytes.
func (d *Device) ReadResponse(
	ctx context.Context, pending frame.Pending, expectedLen int, timeout time.Duration,
) ([]byte, error) {
	buf := frame.GetBuffer(expectedLen + frame.ResponseOverhead)
	defer frame.PutBuffer(buf)

	var n int
	var lastErr error
	err := d.pollPolicy(timeout).Poll(ctx, func() bool {
		var readErr error
		n, readErr = d.transport.Read(ctx, buf)
		if readErr != nil {
			lastErr = readErr
			return false
		}
		return n > 0 && frame.IsReady(buf[0])
	})
	if err != nil {
		if !errors.Is(err, ErrTransportTimeout) {
			return nil, err
		}
		d.trace.RecordTimeout("response to " + pending.String())
		return nil, NewResponseTimeoutError("read response", d.transport.String(), lastErr)
	}

	d.trace.RecordRX(buf[:n], "response")
	Debugf("RX % X", buf[:n])
	payload, err := frame.DecodeResponse(buf[:n], pending, expectedLen)
	if err != nil {
		return nil, NewFrameCorruptedError("read response", d.transport.String(), err)
	}
	return payload, nil
}
