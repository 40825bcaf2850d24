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

package hce

import (
	"context"
	"fmt"

	pn532 "github.com/ZaparooProject/go-pn532-hce"
	"github.com/ZaparooProject/go-pn532-hce/internal/syncutil"
	"github.com/ZaparooProject/go-pn532-hce/notify"
)

// DeactivationReason tells why the link to the reader ended.
type DeactivationReason int

// Deactivation reasons
const (
	// LinkLoss means the reader left the field or released the target.
	LinkLoss DeactivationReason = iota
	// Deselected means another application was selected or the reader
	// deselected the target.
	Deselected
)

func (r DeactivationReason) String() string {
	switch r {
	case LinkLoss:
		return "link loss"
	case Deselected:
		return "deselected"
	default:
		return fmt.Sprintf("DeactivationReason(%d)", int(r))
	}
}

// Service holds the session of the payload responder between commands.
// Commands are answered one at a time.
type Service struct {
	notifier notify.Notifier
	cfg      Config
	session  Session
	mu       syncutil.Mutex
}

// NewService creates a service. A nil notifier discards delivered messages.
func NewService(cfg Config, notifier notify.Notifier) *Service {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Service{cfg: cfg, notifier: notifier}
}

// ProcessCommandAPDU answers one command APDU. A SEND MSG body is handed to
// the notifier after the session is updated.
func (s *Service) ProcessCommandAPDU(cmd []byte) []byte {
	s.mu.Lock()
	res := Respond(s.session, cmd, s.cfg)
	s.session = res.Session
	s.mu.Unlock()

	pn532.Debugf("HCE %s: C-APDU % X -> R-APDU % X", res.Kind, cmd, res.Response)
	if res.Message != nil {
		pn532.Infof("HCE received message: %q", res.Message)
		s.notifier.Deliver(string(res.Message))
	}
	return res.Response
}

// OnDeactivated is called by the host when the link ends. The session is
// kept unless Config.ResetOnDeactivate is set.
func (s *Service) OnDeactivated(reason DeactivationReason) {
	pn532.Debugf("HCE deactivated: %s", reason)
	if !s.cfg.ResetOnDeactivate {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.AppSelected = false
	s.session.Remaining = nil
}

// Session returns a copy of the current session.
func (s *Service) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// SetPayload replaces the payload served from the next SELECT on.
func (s *Service) SetPayload(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Payload = append([]byte(nil), payload...)
}

// Transmit lets the service act as an in-process card for an apdu.Client.
func (s *Service) Transmit(ctx context.Context, cmd []byte, maxResp int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // context errors are returned as is
	}
	resp := s.ProcessCommandAPDU(cmd)
	if maxResp > 0 && len(resp) > maxResp {
		return nil, fmt.Errorf("%w: %d byte response exceeds %d", pn532.ErrDataTooLarge, len(resp), maxResp)
	}
	return resp, nil
}
