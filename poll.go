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
	"time"
)

// DefaultPollInterval is the delay between two bus polls.
const DefaultPollInterval = 10 * time.Millisecond

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// SleepContext is the default SleepFunc.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PollPolicy bounds a polling loop.
//
// Elapsed time is counted in Interval increments rather than wall clock,
// so a loop with Timeout T probes at most T/Interval+1 times however long
// each probe takes. A zero Timeout polls until the context is done.
type PollPolicy struct {
	Sleep    SleepFunc
	Interval time.Duration
	Timeout  time.Duration
}

func (p PollPolicy) interval() time.Duration {
	if p.Interval <= 0 {
		return DefaultPollInterval
	}
	return p.Interval
}

// Attempts returns how many probes run before the policy times out, or 0
// for an unbounded policy.
func (p PollPolicy) Attempts() int {
	if p.Timeout <= 0 {
		return 0
	}
	return int(p.Timeout/p.interval()) + 1
}

// Poll calls probe until it reports done. It returns ErrTransportTimeout
// when the policy expires and the context error if ctx ends first.
func (p PollPolicy) Poll(ctx context.Context, probe func() bool) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	interval := p.interval()

	var elapsed time.Duration
	for {
		if probe() {
			return nil
		}
		if p.Timeout > 0 {
			elapsed += interval
			if elapsed > p.Timeout {
				return ErrTransportTimeout
			}
		}
		if err := sleep(ctx, interval); err != nil {
			return err
		}
	}
}
