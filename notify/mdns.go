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

package notify

import (
	"fmt"
	"os"

	"github.com/grandcat/zeroconf"
)

// mDNS service identity of the websocket hub.
const (
	ServiceType = "_pn532hce._tcp"
	Domain      = "local."
)

// Advertisement is a registered mDNS service.
type Advertisement struct {
	server *zeroconf.Server
}

// Advertise announces a hub listening on port. An empty instance name uses
// the host name.
func Advertise(instance string, port int, path string) (*Advertisement, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "pn532"
		}
		instance = "pn532-hce on " + host
	}

	server, err := zeroconf.Register(instance, ServiceType, Domain, port, TXTRecords(path), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	return &Advertisement{server: server}, nil
}

// TXTRecords returns the TXT records announced with the service.
func TXTRecords(path string) []string {
	if path == "" {
		path = "/"
	}
	return []string{
		"version=1",
		"protocol=websocket",
		"path=" + path,
	}
}

// Shutdown withdraws the announcement.
func (a *Advertisement) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
}
