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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532-hce"
	"github.com/ZaparooProject/go-pn532-hce/apdu"
	"github.com/ZaparooProject/go-pn532-hce/hce"
	"github.com/ZaparooProject/go-pn532-hce/internal/cli"
	"github.com/ZaparooProject/go-pn532-hce/internal/syncutil"
	"github.com/ZaparooProject/go-pn532-hce/message"
	"github.com/ZaparooProject/go-pn532-hce/notify"
)

// maxChunk keeps a GET DATA response, its status word and the TgSetData
// header inside one normal frame.
const maxChunk = 0xFF - 4

type config struct {
	service     hce.Config
	bus         cli.BusFlags
	ws          string
	logDir      string
	lockTimeout time.Duration
	mdns        bool
	debug       bool
}

func parseConfig(fs *flag.FlagSet, args []string) (*config, error) {
	cfg := &config{service: hce.DefaultConfig()}

	var text, format, aid string
	fs.StringVar(&cfg.bus.Bus, "bus", "", "I2C bus name (auto-detect if empty)")
	fs.StringVar(&cfg.bus.UART, "uart", "", `Serial port of a PN532 in HSU mode, or "auto" (overrides -bus)`)
	fs.StringVar(&text, "message", message.ExpectedMessage, "Message served to the reader")
	fs.StringVar(&format, "format", message.FormatRaw.String(), "Payload format: raw or ndef")
	fs.StringVar(&aid, "aid", "", "Only answer SELECT for this AID, hex (any AID if empty)")
	fs.IntVar(&cfg.service.MaxChunk, "chunk", apdu.DefaultMaxChunk, "Payload bytes per GET DATA response")
	fs.BoolVar(&cfg.service.ResetOnDeactivate, "reset-on-deactivate", false, "Drop the session when the reader releases the target")
	fs.StringVar(&cfg.ws, "ws", "", "Serve delivered messages over websocket on this address (e.g. :8765)")
	fs.BoolVar(&cfg.mdns, "mdns", false, "Announce the websocket hub over mDNS")
	fs.StringVar(&cfg.logDir, "log", "", "Write a session log to this directory")
	fs.DurationVar(&cfg.lockTimeout, "lock-timeout", 0, "Report locks held longer than this (deadlock builds only)")
	fs.BoolVar(&cfg.debug, "debug", false, "Enable debug output")

	if err := fs.Parse(args); err != nil {
		return nil, err //nolint:wrapcheck // flag already reported it
	}

	if aid != "" {
		parsed, err := apdu.ParseAID(aid)
		if err != nil {
			return nil, fmt.Errorf("invalid -aid: %w", err)
		}
		cfg.service.AID = parsed
	}
	parsedFormat, err := message.ParseFormat(format)
	if err != nil {
		return nil, fmt.Errorf("invalid -format: %w", err)
	}
	payload, err := message.Encode(parsedFormat, text)
	if err != nil {
		return nil, fmt.Errorf("invalid -message: %w", err)
	}
	if cfg.service.MaxChunk <= 0 || cfg.service.MaxChunk > maxChunk {
		return nil, fmt.Errorf("invalid -chunk %d: must be between 1 and %d", cfg.service.MaxChunk, maxChunk)
	}
	cfg.service.Payload = payload
	return cfg, nil
}

// messagePrinter reports every SEND MSG body on out.
func messagePrinter(out io.Writer) notify.Func {
	return func(msg string) {
		_, _ = fmt.Fprintf(out, "Reader says: %s\n", msg)
	}
}

func run(ctx context.Context, cfg *config) error {
	closeLog, err := cli.SetupLogging(cfg.debug, cfg.logDir)
	if err != nil {
		return err //nolint:wrapcheck // already descriptive
	}
	defer closeLog()
	if cfg.lockTimeout > 0 {
		syncutil.SetLockTimeout(cfg.lockTimeout)
	}

	var hub *cli.HubServer
	if cfg.ws != "" {
		if hub, err = cli.ServeHub(cfg.ws, cfg.mdns); err != nil {
			return err //nolint:wrapcheck // already descriptive
		}
		defer func() { _ = hub.Close() }()
	}

	device, err := cli.Connect(ctx, cfg.bus)
	if err != nil {
		return err //nolint:wrapcheck // already descriptive
	}
	defer func() {
		if err := device.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close device: %v\n", err)
		}
	}()

	service := hce.NewService(cfg.service, notify.Multi{messagePrinter(os.Stdout), hub.Notifier()})
	host := hce.NewHost(device, service, pn532.DefaultTargetParams())

	_, _ = fmt.Printf("Emulating a card with a %d byte payload. Press Ctrl+C to stop...\n", len(cfg.service.Payload))
	err = host.Run(ctx)
	_, _ = fmt.Printf("Served %d reader sessions.\n", host.Sessions())
	if err != nil {
		return fmt.Errorf("card emulation stopped: %w", err)
	}
	return nil
}

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg, err := parseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	ctx, cancel := cli.SignalContext()
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
