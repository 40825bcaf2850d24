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
	"fmt"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532-hce"
	"github.com/ZaparooProject/go-pn532-hce/apdu"
	"github.com/ZaparooProject/go-pn532-hce/message"
)

// DefaultScanInterval is the pause between scan cycles.
const DefaultScanInterval = 2 * time.Second

// ErrInvalidConfig is wrapped by Config.Validate failures.
var ErrInvalidConfig = errors.New("invalid reader configuration")

// SleepRecoveryConfig configures automatic recovery after host sleep/wake
type SleepRecoveryConfig struct {
	// Enabled enables sleep detection and recovery attempts
	Enabled bool

	// TimeDiscontinuityThreshold is the minimum elapsed time beyond the expected
	// scan interval that indicates a sleep occurred. Default: 2 seconds
	TimeDiscontinuityThreshold time.Duration

	// MaxRecoveryAttempts is the number of SAM resets tried before the
	// reader gives up on the device. Default: 3
	MaxRecoveryAttempts int

	// RecoveryBackoff is the delay between recovery attempts
	RecoveryBackoff time.Duration
}

// DefaultSleepRecoveryConfig returns sensible defaults for sleep recovery
func DefaultSleepRecoveryConfig() SleepRecoveryConfig {
	return SleepRecoveryConfig{
		Enabled:                    true,
		TimeDiscontinuityThreshold: 2 * time.Second,
		MaxRecoveryAttempts:        3,
		RecoveryBackoff:            500 * time.Millisecond,
	}
}

// DetectSleep checks if the elapsed time since the last cycle indicates a
// system sleep. Returns true if elapsed exceeds interval + TimeDiscontinuityThreshold.
func (cfg SleepRecoveryConfig) DetectSleep(elapsed, interval time.Duration) bool {
	if !cfg.Enabled {
		return false
	}
	return elapsed > interval+cfg.TimeDiscontinuityThreshold
}

// Config holds the reader engine settings.
type Config struct {
	// AID is the application selected on every detected target.
	AID []byte
	// ExpectedMessage is compared with the decoded payload. A match makes
	// the reader answer with AnswerMessage.
	ExpectedMessage string
	AnswerMessage   string
	// Format is how the payload is decoded before comparison.
	Format message.Format
	// Limits bounds the response size of each APDU exchange.
	Limits apdu.Limits
	// MaxChunk is the Le requested by GET DATA / GET MORE DATA.
	MaxChunk byte
	// MaxContinuations caps GET MORE DATA requests per read.
	MaxContinuations int
	ScanInterval     time.Duration
	SAM              pn532.SAMConfig
	// SleepRecovery configures automatic recovery after host sleep/wake cycles
	SleepRecovery SleepRecoveryConfig
}

// DefaultConfig returns the configuration matching the bundled HCE card.
func DefaultConfig() *Config {
	return &Config{
		AID:              append([]byte(nil), apdu.DefaultAID...),
		ExpectedMessage:  message.ExpectedMessage,
		AnswerMessage:    message.AnswerMessage,
		Format:           message.FormatRaw,
		Limits:           apdu.DefaultLimits(),
		MaxChunk:         apdu.DefaultMaxChunk,
		MaxContinuations: apdu.DefaultGetDataOptions().MaxContinuations,
		ScanInterval:     DefaultScanInterval,
		SAM:              pn532.DefaultSAMConfig(),
		SleepRecovery:    DefaultSleepRecoveryConfig(),
	}
}

// Validate reports settings the engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case len(c.AID) == 0 || len(c.AID) > 16:
		return fmt.Errorf("%w: AID must be 1 to 16 bytes, got %d", ErrInvalidConfig, len(c.AID))
	case c.MaxChunk == 0:
		return fmt.Errorf("%w: max chunk must be positive", ErrInvalidConfig)
	case c.MaxContinuations < 0:
		return fmt.Errorf("%w: negative continuation cap", ErrInvalidConfig)
	case c.ScanInterval < 0:
		return fmt.Errorf("%w: negative scan interval", ErrInvalidConfig)
	}
	return nil
}
