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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollPolicy_Attempts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		policy PollPolicy
		want   int
	}{
		{name: "ack timeout", policy: PollPolicy{Interval: 10 * time.Millisecond, Timeout: 5 * time.Second}, want: 501},
		{name: "response timeout", policy: PollPolicy{Interval: 10 * time.Millisecond, Timeout: time.Second}, want: 101},
		{name: "partial interval", policy: PollPolicy{Interval: 10 * time.Millisecond, Timeout: 55 * time.Millisecond}, want: 6},
		{name: "default interval", policy: PollPolicy{Timeout: 100 * time.Millisecond}, want: 11},
		{name: "unbounded", policy: PollPolicy{Interval: 10 * time.Millisecond}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.policy.Attempts())
			if tt.want == 0 {
				return
			}

			tt.policy.Sleep = noSleep
			probes := 0
			err := tt.policy.Poll(context.Background(), func() bool {
				probes++
				return false
			})
			require.ErrorIs(t, err, ErrTransportTimeout)
			assert.Equal(t, tt.want, probes)
		})
	}
}

func TestPollPolicy_StopsWhenDone(t *testing.T) {
	t.Parallel()

	var slept []time.Duration
	policy := PollPolicy{
		Interval: 5 * time.Millisecond,
		Timeout:  time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}

	probes := 0
	require.NoError(t, policy.Poll(context.Background(), func() bool {
		probes++
		return probes == 3
	}))
	assert.Equal(t, 3, probes)
	assert.Equal(t, []time.Duration{5 * time.Millisecond, 5 * time.Millisecond}, slept)
}

func TestPollPolicy_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	probes := 0
	err := PollPolicy{Interval: time.Millisecond}.Poll(ctx, func() bool {
		probes++
		if probes == 2 {
			cancel()
		}
		return false
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, probes)
}

func TestSleepContext(t *testing.T) {
	t.Parallel()

	require.NoError(t, SleepContext(context.Background(), time.Millisecond))
	require.NoError(t, SleepContext(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}
