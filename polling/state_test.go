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
	"errors"
	"testing"

	pn532 "github.com/ZaparooProject/go-pn532-hce"
	"github.com/stretchr/testify/assert"
)

func TestClassifyOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want Outcome
	}{
		{name: "Success", err: nil, want: OutcomeSuccess},
		{name: "EmptyField", err: pn532.ErrNoTargetDetected, want: OutcomeStepFailed},
		{name: "StatusError", err: &pn532.PN532Error{Command: "InDataExchange", ErrorCode: 0x27}, want: OutcomeStepFailed},
		{name: "ResponseTimeout", err: pn532.NewResponseTimeoutError("read", "sim", nil), want: OutcomeTimeout},
		{name: "Other", err: errors.New("boom"), want: OutcomeStepFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ClassifyOutcome(tt.err))
		})
	}
}

func TestCycleIdle(t *testing.T) {
	t.Parallel()

	assert.True(t, Cycle{Step: StepDetect, Err: pn532.ErrNoTargetDetected}.Idle())
	assert.False(t, Cycle{Step: StepDetect, Err: errors.New("bus")}.Idle())
	assert.False(t, Cycle{Step: StepSelect, Err: pn532.ErrNoTargetDetected}.Idle())
	assert.False(t, Cycle{Step: StepDetect}.Idle())
}

func TestStrings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "scanning", StateScanning.String())
	assert.Equal(t, "get data", StepGetData.String())
	assert.Equal(t, "timeout", OutcomeTimeout.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mutate  func(*Config)
		name    string
		wantErr bool
	}{
		{name: "Default", mutate: func(*Config) {}},
		{name: "NoAID", mutate: func(c *Config) { c.AID = nil }, wantErr: true},
		{name: "LongAID", mutate: func(c *Config) { c.AID = make([]byte, 17) }, wantErr: true},
		{name: "ZeroChunk", mutate: func(c *Config) { c.MaxChunk = 0 }, wantErr: true},
		{name: "NegativeContinuations", mutate: func(c *Config) { c.MaxContinuations = -1 }, wantErr: true},
		{name: "NegativeInterval", mutate: func(c *Config) { c.ScanInterval = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
