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
	"fmt"
	"time"
)

// Option is a functional option for configuring a Device
type Option func(*Device) error

// WithAckTimeout sets how long to wait for the ACK of each command
func WithAckTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		if timeout < 0 {
			return fmt.Errorf("%w: ack timeout %v", ErrInvalidParameter, timeout)
		}
		d.config.AckTimeout = timeout
		return nil
	}
}

// WithResponseTimeout sets how long to wait for a response frame
func WithResponseTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		if timeout < 0 {
			return fmt.Errorf("%w: response timeout %v", ErrInvalidParameter, timeout)
		}
		d.config.ResponseTimeout = timeout
		return nil
	}
}

// WithPollInterval sets the delay between bus polls
func WithPollInterval(interval time.Duration) Option {
	return func(d *Device) error {
		if interval <= 0 {
			return fmt.Errorf("%w: poll interval %v", ErrInvalidParameter, interval)
		}
		d.config.PollInterval = interval
		return nil
	}
}

// WithSleeper replaces the sleep used between polls. Tests pass a no-op.
func WithSleeper(sleep SleepFunc) Option {
	return func(d *Device) error {
		d.config.Sleep = sleep
		return nil
	}
}

// WithResponseLimits sets the payload limits of the SAMConfiguration and
// InListPassiveTarget responses.
func WithResponseLimits(sam, detect int) Option {
	return func(d *Device) error {
		if sam <= 0 || detect <= 0 {
			return fmt.Errorf("%w: response limits %d/%d", ErrInvalidParameter, sam, detect)
		}
		d.config.SAMResponseLimit = sam
		d.config.DetectResponseLimit = detect
		return nil
	}
}

// WithConfig replaces the whole device configuration.
func WithConfig(config *DeviceConfig) Option {
	return func(d *Device) error {
		if config == nil {
			return fmt.Errorf("%w: nil config", ErrInvalidParameter)
		}
		cfg := *config
		d.config = &cfg
		return nil
	}
}
