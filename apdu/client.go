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

package apdu

import (
	"context"
	"errors"
	"fmt"

	pn532 "github.com/ZaparooProject/go-pn532-hce"
)

// Channel carries one command APDU to the card and returns its response.
// maxResp bounds the response length, status word included.
type Channel interface {
	Transmit(ctx context.Context, cmd []byte, maxResp int) ([]byte, error)
}

// ChannelFunc adapts a function to Channel.
type ChannelFunc func(ctx context.Context, cmd []byte, maxResp int) ([]byte, error)

// Transmit calls f.
func (f ChannelFunc) Transmit(ctx context.Context, cmd []byte, maxResp int) ([]byte, error) {
	return f(ctx, cmd, maxResp)
}

// Limits are the largest responses accepted for each step.
type Limits struct {
	Select  int
	GetData int
	Send    int
}

// DefaultLimits returns the response limits of the payload service.
func DefaultLimits() Limits {
	return Limits{Select: 16, GetData: 1000, Send: 16}
}

// GetDataOptions controls the continuation loop of GetData.
type GetDataOptions struct {
	// Continue is consulted before every GET MORE DATA. Returning false
	// stops the loop with ErrStopped.
	Continue func() bool
	// MaxContinuations caps the GET MORE DATA requests after the first
	// GET DATA.
	MaxContinuations int
	MaxChunk         byte
}

// DefaultGetDataOptions returns a 100 byte chunk and at most 64
// continuations.
func DefaultGetDataOptions() GetDataOptions {
	return GetDataOptions{
		MaxChunk:         DefaultMaxChunk,
		MaxContinuations: 64,
	}
}

var (
	// ErrTooManyContinuations is returned when the card keeps answering
	// "more data" past GetDataOptions.MaxContinuations.
	ErrTooManyContinuations = errors.New("apdu: too many GET MORE DATA continuations")
	// ErrStopped is returned when GetDataOptions.Continue asks to stop.
	ErrStopped = errors.New("apdu: stopped")
)

// Client runs the reader side of the payload exchange over a Channel.
type Client struct {
	ch     Channel
	limits Limits
}

// NewClient creates a client. Zero limits are replaced by the defaults.
func NewClient(ch Channel, limits Limits) *Client {
	def := DefaultLimits()
	if limits.Select <= 0 {
		limits.Select = def.Select
	}
	if limits.GetData <= 0 {
		limits.GetData = def.GetData
	}
	if limits.Send <= 0 {
		limits.Send = def.Send
	}
	return &Client{ch: ch, limits: limits}
}

func (c *Client) exchange(ctx context.Context, step string, cmd []byte, maxResp int) (*Response, error) {
	raw, err := c.ch.Transmit(ctx, cmd, maxResp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", step, err)
	}
	resp, err := ParseResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", step, err)
	}
	return resp, nil
}

// SelectAID selects the application and returns the response body, which
// is empty unless the card returns FCI.
func (c *Client) SelectAID(ctx context.Context, aid []byte) ([]byte, error) {
	cmd, err := BuildSelectAID(aid)
	if err != nil {
		return nil, err
	}
	resp, err := c.exchange(ctx, "select AID", cmd, c.limits.Select)
	if err != nil {
		return nil, err
	}
	if resp.Status != StatusSuccess {
		return nil, &StatusError{Step: "select AID", Status: resp.Status}
	}
	if len(resp.Data) > 0 {
		if fci, fciErr := ParseFCI(resp.Data); fciErr == nil {
			pn532.Debugf("select AID %X: %s", aid, fci)
		} else {
			pn532.Debugf("select AID %X: unparsed response % X", aid, resp.Data)
		}
	}
	return append([]byte(nil), resp.Data...), nil
}

// GetData retrieves the payload, following "more data" status words with
// GET MORE DATA and concatenating the chunks.
func (c *Client) GetData(ctx context.Context, opts GetDataOptions) ([]byte, error) {
	if opts.MaxChunk == 0 {
		opts.MaxChunk = DefaultMaxChunk
	}

	var payload []byte
	selector := P2GetData
	for continuation := 0; ; continuation++ {
		if continuation > 0 {
			if opts.Continue != nil && !opts.Continue() {
				return nil, ErrStopped
			}
			if continuation > opts.MaxContinuations {
				return nil, fmt.Errorf("%w: %d bytes received", ErrTooManyContinuations, len(payload))
			}
		}

		step := "get data"
		if selector == P2GetMoreData {
			step = "get more data"
		}
		resp, err := c.exchange(ctx, step, BuildGetData(selector, opts.MaxChunk), c.limits.GetData)
		if err != nil {
			return nil, err
		}

		switch resp.Status {
		case StatusSuccess:
			return append(payload, resp.Data...), nil
		case StatusMoreData:
			payload = append(payload, resp.Data...)
			selector = P2GetMoreData
		default:
			return nil, &StatusError{Step: step, Status: resp.Status}
		}
	}
}

// SendMessage delivers msg with SEND MSG.
func (c *Client) SendMessage(ctx context.Context, msg []byte) error {
	cmd, err := BuildSendData(msg)
	if err != nil {
		return err
	}
	resp, err := c.exchange(ctx, "send message", cmd, c.limits.Send)
	if err != nil {
		return err
	}
	if resp.Status != StatusSuccess {
		return &StatusError{Step: "send message", Status: resp.Status}
	}
	return nil
}
