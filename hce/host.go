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

package hce

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532-hce"
)

// DefaultRearmDelay is the pause after an unexpected target mode failure.
const DefaultRearmDelay = 100 * time.Millisecond

// Host runs a Service on a PN532 in card emulation (target) mode. Each
// activation by a reader is served until the reader releases the target;
// the PN532 is then armed again.
type Host struct {
	device     *pn532.Device
	service    *Service
	sleep      pn532.SleepFunc
	params     pn532.TargetParams
	rearmDelay time.Duration
	stopping   atomic.Bool
	sessions   atomic.Int64
}

// NewHost creates a host emulating a card with the given parameters.
func NewHost(device *pn532.Device, service *Service, params pn532.TargetParams) *Host {
	return &Host{
		device:     device,
		service:    service,
		params:     params,
		rearmDelay: DefaultRearmDelay,
		sleep:      device.Config().Sleep,
	}
}

// Sessions returns how many reader activations were served.
func (h *Host) Sessions() int64 {
	return h.sessions.Load()
}

// Stop asks Run to return once the current activation or wait ends.
func (h *Host) Stop() {
	h.stopping.Store(true)
}

// Run serves activations until ctx ends, Stop is called or the bus fails.
// It returns nil after Stop, ctx.Err() when ctx ends, and the bus error
// otherwise.
func (h *Host) Run(ctx context.Context) error {
	for {
		if h.stopping.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err //nolint:wrapcheck // context errors are returned as is
		}

		activation, err := h.device.TgInitAsTarget(ctx, h.params)
		if err != nil {
			if stop, runErr := h.handleArmError(ctx, err); stop {
				return runErr
			}
			continue
		}

		h.sessions.Add(1)
		pn532.Debugf("HCE activated: mode 0x%02X, initiator % X", activation.Mode, activation.InitiatorCommand)
		h.serve(ctx)
	}
}

// handleArmError decides whether Run should return after a failed
// TgInitAsTarget.
func (h *Host) handleArmError(ctx context.Context, err error) (bool, error) {
	switch {
	case ctx.Err() != nil:
		_ = h.device.Abort(context.Background())
		return true, ctx.Err()
	case pn532.IsFatal(err):
		return true, err
	case pn532.IsTimeout(err):
		// No reader yet. The PN532 is still waiting for one; abort so the
		// next TgInitAsTarget starts clean.
		if abortErr := h.device.Abort(ctx); abortErr != nil && pn532.IsFatal(abortErr) {
			return true, abortErr
		}
		return false, nil
	default:
		pn532.Warnf("HCE target mode failed: %v", err)
		sleep := h.sleep
		if sleep == nil {
			sleep = pn532.SleepContext
		}
		if sleepErr := sleep(ctx, h.rearmDelay); sleepErr != nil {
			return true, sleepErr
		}
		return false, nil
	}
}

// serve relays commands between the reader and the service until the link
// ends.
func (h *Host) serve(ctx context.Context) {
	for {
		cmd, err := h.device.TgGetData(ctx)
		if err != nil {
			if pn532.IsTimeout(err) {
				// the reader went quiet; TgGetData is still running on the chip
				_ = h.device.Abort(ctx)
			}
			h.deactivated(err)
			return
		}
		resp := h.service.ProcessCommandAPDU(cmd)
		if err := h.device.TgSetData(ctx, resp); err != nil {
			h.deactivated(err)
			return
		}
	}
}

func (h *Host) deactivated(err error) {
	if code, ok := pn532.ErrorCodeOf(err); !ok || code != pn532.StatusTargetReleased {
		pn532.Debugf("HCE link ended: %v", err)
	}
	h.service.OnDeactivated(deactivationReason(err))
}

// deactivationReason maps the error that ended a session. 0x25 (DEP
// invalid state) means the reader deselected the target; anything else is
// treated as the reader leaving.
func deactivationReason(err error) DeactivationReason {
	var pe *pn532.PN532Error
	if errors.As(err, &pe) && pe.ErrorCode == pn532.StatusDEPInvalidState {
		return Deselected
	}
	return LinkLoss
}
