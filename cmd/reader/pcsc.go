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

//go:build pcsc

package main

import (
	"context"
	"fmt"

	"github.com/ZaparooProject/go-pn532-hce/channel/pcsc"
	"github.com/ZaparooProject/go-pn532-hce/internal/cli"
	"github.com/ZaparooProject/go-pn532-hce/polling"
)

func init() {
	channelBackends["pcsc"] = channelBackend{
		usage: `Run one exchange over this PC/SC reader, or "auto", and exit`,
		run:   runPCSC,
	}
}

func runPCSC(ctx context.Context, name string, config *polling.Config, onMessage func(string, bool)) polling.Cycle {
	if name == cli.AutoDetect {
		name = ""
	}
	reader, err := pcsc.Open(name)
	if err != nil {
		return polling.Cycle{Step: polling.StepDetect, Err: err, Outcome: polling.ClassifyOutcome(err)}
	}
	defer func() { _ = reader.Close() }()

	_, _ = fmt.Printf("Waiting for a phone on %s...\n", reader.Name())
	ch, err := reader.WaitForCard(ctx)
	if err != nil {
		return polling.Cycle{Step: polling.StepDetect, Err: err, Outcome: polling.ClassifyOutcome(err)}
	}
	defer func() { _ = ch.Close() }()

	return polling.Exchange(ctx, ch, config, onMessage)
}
