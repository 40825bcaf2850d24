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
	"net/http"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532-hce"
	"github.com/ZaparooProject/go-pn532-hce/internal/syncutil"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// EventTypeMessage is the type of events carrying a delivered message.
const EventTypeMessage = "message"

const writeWait = 5 * time.Second

// Event is the JSON document sent to websocket clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
}

// Hub is an http.Handler upgrading requests to websockets and broadcasting
// every delivered message to the connected clients. A client connecting
// after a delivery receives the last message first.
type Hub struct {
	clients  map[*websocket.Conn]string
	last     *Event
	now      func() time.Time
	upgrader websocket.Upgrader
	mu       syncutil.Mutex
}

// NewHub creates a hub accepting websocket connections from any origin.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]string),
		now:     time.Now,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Deliver broadcasts msg. Clients whose write fails are dropped.
func (h *Hub) Deliver(msg string) {
	ev := &Event{
		ID:        uuid.New().String(),
		Type:      EventTypeMessage,
		Message:   msg,
		Timestamp: h.now().UTC(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = ev
	for conn, id := range h.clients {
		if err := writeEvent(conn, ev); err != nil {
			pn532.Warnf("websocket client %s write failed: %v", id, err)
			_ = conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Last returns the most recently delivered event, or nil.
func (h *Hub) Last() *Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return nil
	}
	ev := *h.last
	return &ev
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and keeps the connection registered until
// the client goes away. Incoming client messages are ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		pn532.Warnf("websocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}

	id := uuid.New().String()
	h.mu.Lock()
	if h.last != nil {
		if err := writeEvent(conn, h.last); err != nil {
			h.mu.Unlock()
			_ = conn.Close()
			return
		}
	}
	h.clients[conn] = id
	h.mu.Unlock()
	pn532.Debugf("websocket client %s connected from %s", id, r.RemoteAddr)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
	pn532.Debugf("websocket client %s disconnected", id)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.Close()
		delete(h.clients, conn)
	}
}

func writeEvent(conn *websocket.Conn, ev *Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err //nolint:wrapcheck // returned to the broadcaster only
	}
	return conn.WriteJSON(ev) //nolint:wrapcheck // returned to the broadcaster only
}
