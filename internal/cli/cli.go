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

// Package cli holds the plumbing shared by the reader and hce commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532-hce"
	"github.com/ZaparooProject/go-pn532-hce/notify"
	"github.com/ZaparooProject/go-pn532-hce/transport/i2c"
	"github.com/ZaparooProject/go-pn532-hce/transport/uart"
)

// AutoDetect as a port or bus name asks for enumeration.
const AutoDetect = "auto"

const shutdownTimeout = 2 * time.Second

// BusFlags selects the PN532 bus. UART wins over I2C when both are set.
type BusFlags struct {
	Bus  string
	UART string
}

// Describe names the bus the flags select.
func (b BusFlags) Describe() string {
	switch {
	case b.UART == AutoDetect:
		return "uart (auto-detect)"
	case b.UART != "":
		return "uart:" + b.UART
	case b.Bus == "" || b.Bus == AutoDetect:
		return "i2c (auto-detect)"
	default:
		return "i2c:" + b.Bus
	}
}

// OpenTransport opens the bus the flags select.
func OpenTransport(ctx context.Context, b BusFlags) (pn532.Transport, error) {
	switch {
	case b.UART == AutoDetect:
		t, err := uart.Open(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to find a PN532 serial adapter: %w", err)
		}
		return t, nil
	case b.UART != "":
		t, err := uart.New(b.UART)
		if err != nil {
			return nil, fmt.Errorf("failed to create UART transport for %s: %w", b.UART, err)
		}
		return t, nil
	case b.Bus == "" || b.Bus == AutoDetect:
		t, err := i2c.Open(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to find a PN532 I2C bus: %w", err)
		}
		return t, nil
	default:
		t, err := i2c.New(b.Bus)
		if err != nil {
			return nil, fmt.Errorf("failed to create I2C transport for %s: %w", b.Bus, err)
		}
		return t, nil
	}
}

// Connect opens the bus and checks a PN532 answers on it.
func Connect(ctx context.Context, b BusFlags, opts ...pn532.Option) (*pn532.Device, error) {
	transport, err := OpenTransport(ctx, b)
	if err != nil {
		return nil, err
	}
	device, err := pn532.New(transport, opts...)
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("failed to create PN532 device: %w", err)
	}

	version, err := device.GetFirmwareVersion(ctx)
	if err != nil {
		_ = device.Close()
		return nil, fmt.Errorf("no PN532 on %s: %w", b.Describe(), err)
	}
	if !version.SupportsISO14443A() {
		pn532.Warnf("%s reports no ISO14443A support (0x%02X)", version, version.Support)
	}
	pn532.Infof("connected to %s on %s", version, transport)
	return device, nil
}

// SignalContext returns a context cancelled by SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			_, _ = fmt.Fprint(os.Stderr, "\nShutting down gracefully...\n")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

// HubServer is a running websocket hub, optionally announced over mDNS.
type HubServer struct {
	Hub    *notify.Hub
	server *http.Server
	ad     *notify.Advertisement
	errCh  chan error
	Addr   string
}

// ServeHub starts a hub on addr. The listener is bound before returning so
// a port of 0 resolves to the real one.
func ServeHub(addr string, advertise bool) (*HubServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	hub := notify.NewHub()
	hs := &HubServer{
		Hub:   hub,
		Addr:  ln.Addr().String(),
		errCh: make(chan error, 1),
		server: &http.Server{
			Handler:           hub,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	go func() {
		if err := hs.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			hs.errCh <- err
		}
		close(hs.errCh)
	}()

	if advertise {
		port, err := listenPort(hs.Addr)
		if err == nil {
			hs.ad, err = notify.Advertise("", port, "/")
		}
		if err != nil {
			pn532.Warnf("mDNS announcement failed: %v", err)
		}
	}
	pn532.Infof("websocket hub listening on %s", hs.Addr)
	return hs, nil
}

func listenPort(addr string) (int, error) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("bad listen address %q: %w", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return 0, fmt.Errorf("bad listen port %q: %w", port, err)
	}
	return n, nil
}

// Close withdraws the announcement, disconnects clients and stops the
// server.
func (hs *HubServer) Close() error {
	if hs == nil {
		return nil
	}
	hs.ad.Shutdown()
	hs.Hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop hub: %w", err)
	}
	if err := <-hs.errCh; err != nil {
		return fmt.Errorf("hub server: %w", err)
	}
	return nil
}

// Notifier returns the hub as a notifier, or notify.Discard for a nil
// server.
func (hs *HubServer) Notifier() notify.Notifier {
	if hs == nil {
		return notify.Discard
	}
	return hs.Hub
}

// SetupLogging applies the -debug and -log flags. The returned func closes
// the session log.
func SetupLogging(debug bool, logDir string) (func(), error) {
	if debug {
		pn532.SetDebugEnabled(true)
	}
	if logDir == "" {
		return func() {}, nil
	}
	path, err := pn532.InitSessionLog(logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to start session log: %w", err)
	}
	_, _ = fmt.Fprintf(os.Stderr, "Session log: %s\n", path)
	return func() {
		if err := pn532.CloseSessionLog(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close session log: %v\n", err)
		}
	}, nil
}
