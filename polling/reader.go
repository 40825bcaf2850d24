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

// Package polling runs the reader side of the payload exchange. A Reader
// configures the PN532 once, then scans for a phone in card emulation
// mode, selects the application, reads its payload and answers when the
// payload matches the expected message.
package polling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532-hce"
	"github.com/ZaparooProject/go-pn532-hce/apdu"
	"github.com/ZaparooProject/go-pn532-hce/message"
)

// ErrAlreadyStarted is returned by a second Start.
var ErrAlreadyStarted = errors.New("reader already started")

// Callbacks receive scan results. Both run on the scan goroutine.
type Callbacks struct {
	// OnMessage is called for every decoded payload.
	OnMessage func(text string, matched bool)
	// OnCycle is called after every scan cycle, idle ones included.
	OnCycle func(c Cycle)
}

// Metrics tracks operational counters of a Reader
type Metrics struct {
	ScanCycles       int64         // Total number of scan cycles
	TargetsDetected  int64         // Cycles that found a target
	StepFailures     int64         // Steps that ended with OutcomeStepFailed, idle cycles excluded
	Timeouts         int64         // Steps that ended with OutcomeTimeout
	MessagesReceived int64         // Payloads read and decoded
	AnswersSent      int64         // Successful SEND MSG
	Recoveries       int64         // Successful recoveries after host sleep
	LastCycleLatency time.Duration // Duration of the last cycle
}

// Reader drives the PN532 as initiator. Start configures the SAM and
// launches the scan goroutine; Stop asks it to finish the current cycle
// and exit.
type Reader struct {
	device    *pn532.Device
	config    *Config
	callbacks Callbacks
	recoverer *Recoverer
	sleep     pn532.SleepFunc
	now       func() time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	errMu     sync.Mutex
	err       error
	state     atomic.Int32
	stopping  atomic.Bool

	scanCycles       atomic.Int64
	targetsDetected  atomic.Int64
	stepFailures     atomic.Int64
	timeouts         atomic.Int64
	messagesReceived atomic.Int64
	answersSent      atomic.Int64
	recoveries       atomic.Int64
	lastCycleLatency atomic.Int64
}

// Option configures a Reader.
type Option func(*Reader)

// WithReopen enables the full reconnection tier of sleep recovery.
func WithReopen(reopen ReopenFunc) Option {
	return func(r *Reader) {
		r.recoverer.reopen = reopen
	}
}

// WithClock replaces time.Now for sleep detection.
func WithClock(now func() time.Time) Option {
	return func(r *Reader) {
		r.now = now
	}
}

// NewReader creates a reader. A nil config means DefaultConfig.
func NewReader(device *pn532.Device, config *Config, callbacks Callbacks, opts ...Option) (*Reader, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	sleep := device.Config().Sleep
	if sleep == nil {
		sleep = pn532.SleepContext
	}
	r := &Reader{
		device:    device,
		config:    config,
		callbacks: callbacks,
		recoverer: NewRecoverer(device, config.SAM, nil, config.SleepRecovery),
		sleep:     sleep,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// State returns the lifecycle state.
func (r *Reader) State() State {
	return State(r.state.Load())
}

// Device returns the device in use. It changes after a recovery reopened
// the bus.
func (r *Reader) Device() *pn532.Device {
	return r.recoverer.Device()
}

// Start configures the SAM and launches the scan goroutine. A SAM failure
// is returned here only and leaves the reader stopped; the scan loop never
// runs without a configured SAM, so Wait and Err stay nil.
func (r *Reader) Start(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateConfiguring)) {
		return ErrAlreadyStarted
	}

	if err := r.Device().SAMConfiguration(ctx, r.config.SAM); err != nil {
		r.state.Store(int32(StateStopped))
		return fmt.Errorf("configure reader: %w", err)
	}
	pn532.Infof("reader configured, scanning for AID %X every %v", r.config.AID, r.config.ScanInterval)

	r.state.Store(int32(StateScanning))
	r.wg.Add(1)
	go r.scanLoop(ctx)
	return nil
}

// scanLoop runs cycles until Stop, ctx cancellation or a fatal bus error.
func (r *Reader) scanLoop(ctx context.Context) {
	defer r.wg.Done()
	defer r.state.Store(int32(StateStopped))

	// waitCtx only interrupts the pause between cycles; a cycle in flight
	// completes with ctx.
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.stopCh:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	last := r.now()
	for !r.stopping.Load() && ctx.Err() == nil {
		if err := r.checkSleep(ctx, &last); err != nil {
			r.setErr(err)
			return
		}

		cycle := r.ScanOnce(ctx)
		if cycle.Err != nil && pn532.IsFatal(cycle.Err) {
			pn532.Warnf("reader stopped: %v", cycle.Err)
			r.setErr(cycle.Err)
			return
		}

		if r.stopping.Load() {
			return
		}
		if err := r.sleep(waitCtx, r.config.ScanInterval); err != nil {
			return
		}
	}
}

// checkSleep recovers the device when the wall clock jumped further than
// a scan interval allows.
func (r *Reader) checkSleep(ctx context.Context, last *time.Time) error {
	now := r.now()
	elapsed := now.Sub(*last)
	*last = now
	if !r.config.SleepRecovery.DetectSleep(elapsed, r.config.ScanInterval) {
		return nil
	}

	pn532.Infof("host sleep detected (%v since last cycle), resetting PN532", elapsed)
	if err := r.recoverer.Recover(ctx); err != nil {
		return fmt.Errorf("sleep recovery: %w", err)
	}
	r.recoveries.Add(1)
	*last = r.now()
	return nil
}

// ScanOnce runs one cycle: detect, select, read, decode and, on a match,
// answer. It does not need Start but the SAM must already be configured.
func (r *Reader) ScanOnce(ctx context.Context) Cycle {
	start := r.now()
	cycle := r.scan(ctx)
	r.scanCycles.Add(1)
	r.lastCycleLatency.Store(int64(r.now().Sub(start)))
	r.record(cycle)
	if r.callbacks.OnCycle != nil {
		r.callbacks.OnCycle(cycle)
	}
	return cycle
}

func (r *Reader) scan(ctx context.Context) Cycle {
	device := r.Device()

	target, err := device.InListPassiveTarget(ctx)
	if err != nil {
		return failed(Cycle{Step: StepDetect}, err)
	}
	r.targetsDetected.Add(1)
	pn532.Debugf("reader found %s", target)

	ch := &targetChannel{device: device, target: target.Number}
	cycle := exchange(ctx, ch, r.config, func() bool { return !r.stopping.Load() }, r.callbacks.OnMessage)
	cycle.Target = target
	return cycle
}

// Exchange runs the APDU part of a scan cycle over any channel: select,
// read, decode and, on a match, answer. Backends that detect targets on
// their own (PC/SC, libnfc) use it directly. A nil config means
// DefaultConfig.
func Exchange(ctx context.Context, ch apdu.Channel, config *Config, onMessage func(text string, matched bool)) Cycle {
	if config == nil {
		config = DefaultConfig()
	}
	return exchange(ctx, ch, config, nil, onMessage)
}

func exchange(
	ctx context.Context, ch apdu.Channel, config *Config, proceed func() bool, onMessage func(string, bool),
) Cycle {
	client := apdu.NewClient(ch, config.Limits)

	cycle := Cycle{Step: StepSelect}
	if _, err := client.SelectAID(ctx, config.AID); err != nil {
		return failed(cycle, err)
	}

	cycle.Step = StepGetData
	payload, err := client.GetData(ctx, apdu.GetDataOptions{
		Continue:         proceed,
		MaxContinuations: config.MaxContinuations,
		MaxChunk:         config.MaxChunk,
	})
	if err != nil {
		return failed(cycle, err)
	}

	cycle.Step = StepDecode
	text, err := message.Decode(config.Format, payload)
	if err != nil {
		return failed(cycle, err)
	}
	cycle.Message = text
	cycle.Received = true
	cycle.Matched = text == config.ExpectedMessage
	pn532.Infof("received %d byte message, matched=%t", len(payload), cycle.Matched)
	if onMessage != nil {
		onMessage(text, cycle.Matched)
	}
	if !cycle.Matched {
		return cycle
	}

	cycle.Step = StepSend
	if err := client.SendMessage(ctx, []byte(config.AnswerMessage)); err != nil {
		pn532.Warnf("answer not delivered: %v", err)
		return failed(cycle, err)
	}
	cycle.AnswerSent = true
	pn532.Debugln("answer delivered")
	return cycle
}

func failed(c Cycle, err error) Cycle {
	c.Err = err
	c.Outcome = ClassifyOutcome(err)
	return c
}

func (r *Reader) record(c Cycle) {
	if c.Received {
		r.messagesReceived.Add(1)
	}
	if c.AnswerSent {
		r.answersSent.Add(1)
	}
	if c.Err == nil || c.Idle() {
		return
	}
	switch c.Outcome {
	case OutcomeTimeout:
		r.timeouts.Add(1)
	case OutcomeStepFailed:
		r.stepFailures.Add(1)
	case OutcomeSuccess:
	}
	pn532.Debugf("%s: %s: %v", c.Step, c.Outcome, c.Err)
}

// Stop asks the scan goroutine to exit after the current cycle and waits
// for it. The device stays open; see Close.
func (r *Reader) Stop() {
	r.stopping.Store(true)
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
	r.state.CompareAndSwap(int32(StateIdle), int32(StateStopped))
}

// Wait blocks until the scan goroutine exits and returns the error that
// ended it, if any.
func (r *Reader) Wait() error {
	r.wg.Wait()
	return r.Err()
}

// Close stops the reader and releases the bus.
func (r *Reader) Close() error {
	r.Stop()
	if err := r.Device().Close(); err != nil {
		return fmt.Errorf("close reader: %w", err)
	}
	return nil
}

// Err returns the error that stopped the reader, if any.
func (r *Reader) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

func (r *Reader) setErr(err error) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

// Metrics returns current operational metrics
func (r *Reader) Metrics() Metrics {
	return Metrics{
		ScanCycles:       r.scanCycles.Load(),
		TargetsDetected:  r.targetsDetected.Load(),
		StepFailures:     r.stepFailures.Load(),
		Timeouts:         r.timeouts.Load(),
		MessagesReceived: r.messagesReceived.Load(),
		AnswersSent:      r.answersSent.Load(),
		Recoveries:       r.recoveries.Load(),
		LastCycleLatency: time.Duration(r.lastCycleLatency.Load()),
	}
}
