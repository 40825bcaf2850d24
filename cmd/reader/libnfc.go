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

//go:build libnfc

package main

import (
	"context"
	"errors"
	"fmt"

	pn532 "github.com/ZaparooProject/go-pn532-hce"
	"github.com/ZaparooProject/go-pn532-hce/channel/libnfc"
	"github.com/ZaparooProject/go-pn532-hce/internal/cli"
	"github.com/ZaparooProject/go-pn532-hce/polling"
)

func init() {
	channelBackends["libnfc"] = channelBackend{
		usage: `Run one exchange over this libnfc device (e.g. pn532_uart:/dev/ttyUSB0), or "auto", and exit`,
		run:   runLibNFC,
	}
}

func runLibNFC(ctx context.Context, conn string, config *polling.Config, onMessage func(string, bool)) polling.Cycle {
	if conn == cli.AutoDetect {
		conn = ""
	}
	ch, err := libnfc.Open(conn, libnfc.DefaultTimeout)
	if err != nil {
		return polling.Cycle{Step: polling.StepDetect, Err: err, Outcome: polling.ClassifyOutcome(err)}
	}
	defer func() { _ = ch.Close() }()

	_, _ = fmt.Printf("Waiting for a phone on %s...\n", ch)
	target, err := waitForTarget(ctx, ch, config)
	if err != nil {
		return polling.Cycle{Step: polling.StepDetect, Err: err, Outcome: polling.ClassifyOutcome(err)}
	}
	defer func() { _ = ch.Release() }()

	cycle := polling.Exchange(ctx, ch, config, onMessage)
	cycle.Target = target
	return cycle
}

func waitForTarget(ctx context.Context, ch *libnfc.Channel, config *polling.Config) (*pn532.Target, error) {
	for {
		target, err := ch.Detect(ctx)
		if err == nil {
			return target, nil
		}
		if !errors.Is(err, pn532.ErrNoTargetDetected) {
			return nil, err //nolint:wrapcheck // already wrapped by the channel
		}
		if err := pn532.SleepContext(ctx, config.ScanInterval); err != nil {
			return nil, err //nolint:wrapcheck // context errors are returned as is
		}
	}
}
