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

package testing

import (
	"io"
	"math/rand/v2"
	"time"
)

// JitterConfig controls how a JitteryConnection distorts reads.
type JitterConfig struct {
	// MaxLatency is the upper bound of the random delay before each read.
	MaxLatency time.Duration
	// FragmentMinBytes is the smallest fragment a read returns.
	FragmentMinBytes int
	// Seed makes the fragmentation reproducible. Zero picks a random seed.
	Seed uint64
}

// DefaultJitterConfig fragments reads down to single bytes without delay.
func DefaultJitterConfig() JitterConfig {
	return JitterConfig{FragmentMinBytes: 1}
}

// JitteryConnection wraps a byte stream and returns reads in random
// fragments, the way USB serial adapters deliver HSU traffic.
type JitteryConnection struct {
	backend io.ReadWriter
	rng     *rand.Rand
	held    []byte
	config  JitterConfig
}

// NewJitteryConnection wraps backend.
func NewJitteryConnection(backend io.ReadWriter, config JitterConfig) *JitteryConnection {
	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64() //nolint:gosec // test code
	}
	if config.FragmentMinBytes < 1 {
		config.FragmentMinBytes = 1
	}
	return &JitteryConnection{
		backend: backend,
		config:  config,
		rng:     rand.New(rand.NewPCG(seed, seed^0xDEADBEEF)), //nolint:gosec // test code
	}
}

func (j *JitteryConnection) Write(data []byte) (int, error) {
	return j.backend.Write(data) //nolint:wrapcheck // pass-through
}

// Read returns at most one random sized fragment of the pending bytes.
func (j *JitteryConnection) Read(buf []byte) (int, error) {
	if j.config.MaxLatency > 0 {
		time.Sleep(time.Duration(j.rng.Int64N(int64(j.config.MaxLatency) + 1)))
	}

	if len(j.held) == 0 {
		tmp := make([]byte, len(buf))
		n, err := j.backend.Read(tmp)
		if err != nil || n == 0 {
			return n, err //nolint:wrapcheck // pass-through
		}
		j.held = tmp[:n]
	}

	size := len(j.held)
	if size > j.config.FragmentMinBytes {
		size = j.config.FragmentMinBytes + j.rng.IntN(size-j.config.FragmentMinBytes+1)
	}
	size = min(size, len(buf))
	n := copy(buf, j.held[:size])
	j.held = j.held[n:]
	return n, nil
}
