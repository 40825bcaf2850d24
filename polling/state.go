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

	pn532 "github.com/ZaparooProject/go-pn532-hce"
)

// State is the lifecycle of a Reader.
type State int32

const (
	StateIdle State = iota
	StateConfiguring
	StateScanning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfiguring:
		return "configuring"
	case StateScanning:
		return "scanning"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Step names the stage of a scan cycle.
type Step int

const (
	StepDetect Step = iota
	StepSelect
	StepGetData
	StepDecode
	StepSend
)

func (s Step) String() string {
	switch s {
	case StepDetect:
		return "detect target"
	case StepSelect:
		return "select AID"
	case StepGetData:
		return "get data"
	case StepDecode:
		return "decode"
	case StepSend:
		return "send message"
	default:
		return "unknown"
	}
}

// Outcome is how a step ended.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	// OutcomeStepFailed covers error status words, empty fields and
	// malformed responses.
	OutcomeStepFailed
	// OutcomeTimeout means the PN532 or the card did not answer in time.
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeStepFailed:
		return "step failed"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ClassifyOutcome maps a step error to its Outcome.
func ClassifyOutcome(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case pn532.IsTimeout(err):
		return OutcomeTimeout
	default:
		return OutcomeStepFailed
	}
}

// Cycle is the result of one scan cycle.
type Cycle struct {
	Err error
	// Target is nil when nothing was detected.
	Target *pn532.Target
	// Message is the decoded payload, valid from StepDecode on.
	Message string
	// Step is the last step attempted.
	Step    Step
	Outcome Outcome
	// Received reports a payload that was read and decoded.
	Received bool
	Matched  bool
	// AnswerSent reports a successful SEND MSG.
	AnswerSent bool
}

// Idle reports a cycle that ended because no target was in the field.
func (c Cycle) Idle() bool {
	return c.Step == StepDetect && errors.Is(c.Err, pn532.ErrNoTargetDetected)
}
