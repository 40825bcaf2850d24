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
	"github.com/ZaparooProject/go-pn532-hce/internal/cli"
	"github.com/ZaparooProject/go-pn532-hce/message"
	"github.com/ZaparooProject/go-pn532-hce/notify"
	"github.com/ZaparooProject/go-pn532-hce/polling"
)

type config struct {
	polling  *polling.Config
	channels map[string]string
	bus      cli.BusFlags
	ws       string
	logDir   string
	mdns     bool
	debug    bool
}

// channelBackend runs a single exchange over a non-PN532 reader. Backends
// register themselves from files built with their tag.
type channelBackend struct {
	run   func(ctx context.Context, arg string, config *polling.Config, onMessage func(string, bool)) polling.Cycle
	usage string
}

var channelBackends = map[string]channelBackend{}

func parseConfig(fs *flag.FlagSet, args []string) (*config, error) {
	defaults := polling.DefaultConfig()
	cfg := &config{channels: make(map[string]string)}

	var aid, format string
	expect := fs.String("expect", defaults.ExpectedMessage, "Message the phone is expected to send")
	answer := fs.String("answer", defaults.AnswerMessage, "Message sent back when the expected one arrives")
	interval := fs.Duration("interval", defaults.ScanInterval, "Pause between scan cycles")
	fs.StringVar(&cfg.bus.Bus, "bus", "", "I2C bus name (auto-detect if empty)")
	fs.StringVar(&cfg.bus.UART, "uart", "", `Serial port of a PN532 in HSU mode, or "auto" (overrides -bus)`)
	fs.StringVar(&aid, "aid", fmt.Sprintf("%X", defaults.AID), "AID to select, hex")
	fs.StringVar(&format, "format", message.FormatRaw.String(), "Payload format: raw or ndef")
	fs.StringVar(&cfg.ws, "ws", "", "Serve received messages over websocket on this address (e.g. :8765)")
	fs.BoolVar(&cfg.mdns, "mdns", false, "Announce the websocket hub over mDNS")
	fs.StringVar(&cfg.logDir, "log", "", "Write a session log to this directory")
	fs.BoolVar(&cfg.debug, "debug", false, "Enable debug output")

	channelArgs := make(map[string]*string, len(channelBackends))
	for name, backend := range channelBackends {
		channelArgs[name] = fs.String(name, "", backend.usage)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err //nolint:wrapcheck // flag already reported it
	}

	parsedAID, err := apdu.ParseAID(aid)
	if err != nil {
		return nil, fmt.Errorf("invalid -aid: %w", err)
	}
	parsedFormat, err := message.ParseFormat(format)
	if err != nil {
		return nil, fmt.Errorf("invalid -format: %w", err)
	}
	for name, arg := range channelArgs {
		if *arg != "" {
			cfg.channels[name] = *arg
		}
	}
	if len(cfg.channels) > 1 {
		return nil, errors.New("only one alternate channel can be used at a time")
	}

	defaults.AID = parsedAID
	defaults.Format = parsedFormat
	defaults.ExpectedMessage = *expect
	defaults.AnswerMessage = *answer
	defaults.ScanInterval = *interval
	if err := defaults.Validate(); err != nil {
		return nil, err //nolint:wrapcheck // already descriptive
	}
	cfg.polling = defaults
	return cfg, nil
}

// messagePrinter reports every decoded payload on out and to the hub.
func messagePrinter(out io.Writer, hub notify.Notifier) func(string, bool) {
	return func(text string, matched bool) {
		verdict := "unexpected"
		if matched {
			verdict = "expected"
		}
		_, _ = fmt.Fprintf(out, "Received %d characters (%s): %s\n", len([]rune(text)), verdict, text)
		hub.Deliver(text)
	}
}

func printCycle(out io.Writer, c polling.Cycle) {
	if c.Idle() {
		return
	}
	if c.Err != nil {
		_, _ = fmt.Fprintf(out, "Exchange failed at %s (%s): %v\n", c.Step, c.Outcome, c.Err)
		return
	}
	if c.AnswerSent {
		_, _ = fmt.Fprintln(out, "Answer sent.")
	}
}

func printMetrics(out io.Writer, m polling.Metrics) {
	_, _ = fmt.Fprintf(out,
		"Scan cycles: %d, targets: %d, messages: %d, answers: %d, failures: %d, timeouts: %d, recoveries: %d\n",
		m.ScanCycles, m.TargetsDetected, m.MessagesReceived, m.AnswersSent, m.StepFailures, m.Timeouts, m.Recoveries)
}

func runChannelWith(
	ctx context.Context, backends map[string]channelBackend, cfg *config, out io.Writer, onMessage func(string, bool),
) error {
	for name, arg := range cfg.channels {
		cycle := backends[name].run(ctx, arg, cfg.polling, onMessage)
		printCycle(out, cycle)
		if cycle.Err != nil {
			return fmt.Errorf("%s exchange: %w", name, cycle.Err)
		}
	}
	return nil
}

func runReader(ctx context.Context, cfg *config, onMessage func(string, bool)) error {
	device, err := cli.Connect(ctx, cfg.bus)
	if err != nil {
		return err //nolint:wrapcheck // already descriptive
	}

	reopen := func(ctx context.Context) (*pn532.Device, error) {
		return cli.Connect(ctx, cfg.bus)
	}
	reader, err := polling.NewReader(device, cfg.polling, polling.Callbacks{
		OnMessage: onMessage,
		OnCycle:   func(c polling.Cycle) { printCycle(os.Stdout, c) },
	}, polling.WithReopen(reopen))
	if err != nil {
		_ = device.Close()
		return fmt.Errorf("failed to create reader: %w", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close reader: %v\n", err)
		}
		printMetrics(os.Stdout, reader.Metrics())
	}()

	if err := reader.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reader: %w", err)
	}
	_, _ = fmt.Println("Waiting for a phone. Press Ctrl+C to stop...")

	if err := reader.Wait(); err != nil {
		return fmt.Errorf("reader stopped: %w", err)
	}
	return ctx.Err()
}

func run(ctx context.Context, cfg *config) error {
	closeLog, err := cli.SetupLogging(cfg.debug, cfg.logDir)
	if err != nil {
		return err //nolint:wrapcheck // already descriptive
	}
	defer closeLog()

	var hub *cli.HubServer
	if cfg.ws != "" {
		if hub, err = cli.ServeHub(cfg.ws, cfg.mdns); err != nil {
			return err //nolint:wrapcheck // already descriptive
		}
		defer func() { _ = hub.Close() }()
	}
	onMessage := messagePrinter(os.Stdout, hub.Notifier())

	if len(cfg.channels) > 0 {
		return runChannelWith(ctx, channelBackends, cfg, os.Stdout, onMessage)
	}
	return runReader(ctx, cfg, onMessage)
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

	start := time.Now()
	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error after %v: %v\n", time.Since(start).Round(time.Millisecond), err)
		return 1
	}
	return 0
}
