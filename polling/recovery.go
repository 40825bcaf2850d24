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
	"fmt"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532-hce"
	"github.com/ZaparooProject/go-pn532-hce/internal/syncutil"
)

// ReopenFunc reopens the bus after the old device stopped answering.
type ReopenFunc func(ctx context.Context) (*pn532.Device, error)

// Recoverer brings the PN532 back after the host slept. The chip may have
// lost power with the USB or I2C bus, so its SAM configuration is
// replayed first; when that fails and a ReopenFunc was given, the device
// is closed and opened again.
type Recoverer struct {
	device      *pn532.Device
	reopen      ReopenFunc
	sleep       pn532.SleepFunc
	sam         pn532.SAMConfig
	backoff     time.Duration
	maxAttempts int
	mu          syncutil.Mutex
}

// NewRecoverer creates a recoverer. If reopen is nil, only the SAM reset
// is attempted.
func NewRecoverer(device *pn532.Device, sam pn532.SAMConfig, reopen ReopenFunc, cfg SleepRecoveryConfig) *Recoverer {
	if cfg.MaxRecoveryAttempts <= 0 {
		cfg.MaxRecoveryAttempts = 3
	}
	if cfg.RecoveryBackoff <= 0 {
		cfg.RecoveryBackoff = 500 * time.Millisecond
	}
	sleep := device.Config().Sleep
	if sleep == nil {
		sleep = pn532.SleepContext
	}
	return &Recoverer{
		device:      device,
		reopen:      reopen,
		sleep:       sleep,
		sam:         sam,
		backoff:     cfg.RecoveryBackoff,
		maxAttempts: cfg.MaxRecoveryAttempts,
	}
}

// Recover retries until the device answers SAMConfiguration again or the
// attempts run out. The last error is returned on failure.
func (r *Recoverer) Recover(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for attempt := range r.maxAttempts {
		if attempt > 0 {
			if err := r.sleep(ctx, r.backoff); err != nil {
				return err //nolint:wrapcheck // context errors are returned as is
			}
		}

		err := r.device.SAMConfiguration(ctx, r.sam)
		if err == nil {
			return nil
		}
		lastErr = err
		pn532.Debugf("recovery attempt %d: %v", attempt+1, err)

		if r.reopen == nil {
			continue
		}
		_ = r.device.Close()
		device, reopenErr := r.reopen(ctx)
		if reopenErr != nil {
			lastErr = reopenErr
			continue
		}
		if samErr := device.SAMConfiguration(ctx, r.sam); samErr != nil {
			_ = device.Close()
			lastErr = samErr
			continue
		}
		r.device = device
		return nil
	}
	return fmt.Errorf("recovery failed after %d attempts: %w", r.maxAttempts, lastErr)
}

// Device returns the current device, which changes after a reopen.
func (r *Recoverer) Device() *pn532.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.device
}
