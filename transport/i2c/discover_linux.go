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

//go:build linux

package i2c

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	pn532 "github.com/ZaparooProject/go-pn532-hce"
	"golang.org/x/sys/unix"
)

// ioctl requests and functionality bits from linux/i2c-dev.h and
// linux/i2c.h. x/sys/unix does not export them.
const (
	i2cSlave = 0x0703
	i2cFuncs = 0x0705

	// i2cFuncI2C is I2C_FUNC_I2C: the adapter supports plain I2C
	// transfers, which the PN532 needs.
	i2cFuncI2C = 0x00000001
)

// Discover probes every /dev/i2c-* adapter for a device acknowledging
// Address and returns the matching bus paths.
func Discover(ctx context.Context) ([]string, error) {
	paths, err := filepath.Glob("/dev/i2c-*")
	if err != nil {
		return nil, fmt.Errorf("i2c: list adapters: %w", err)
	}
	sort.Strings(paths)

	var found []string
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("i2c discover: %w", err)
		}
		if probe(path) {
			found = append(found, path)
		}
	}
	return found, nil
}

// probe reports whether a device acknowledges a one byte read at Address.
func probe(path string) bool {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		pn532.Debugf("i2c: skip %s: %v", path, err)
		return false
	}
	defer func() { _ = unix.Close(fd) }()

	funcs, err := unix.IoctlGetUint32(fd, i2cFuncs)
	if err != nil || funcs&i2cFuncI2C == 0 {
		pn532.Debugf("i2c: %s lacks plain I2C support", path)
		return false
	}
	if err := unix.IoctlSetInt(fd, i2cSlave, Address); err != nil {
		return false
	}
	var status [1]byte
	n, err := unix.Read(fd, status[:])
	return err == nil && n == 1
}
