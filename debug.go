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

package pn532

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/ZaparooProject/go-pn532-hce/internal/syncutil"
	"github.com/rs/zerolog"
)

var (
	debugEnabled atomic.Bool

	logMu         syncutil.RWMutex
	consoleLogger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05.000",
	}).With().Timestamp().Logger()
	sessionLogger *zerolog.Logger
)

func init() {
	if os.Getenv("PN532_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled.Store(true)
	}
}

// SetDebugEnabled allows programmatic control of debug logging
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

// DebugEnabled reports whether debug output reaches the console.
func DebugEnabled() bool {
	return debugEnabled.Load()
}

// SetLogger replaces the console logger, e.g. with the host application's.
func SetLogger(l zerolog.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	consoleLogger = l
}

// Logger returns the console logger.
func Logger() zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return consoleLogger
}

// emit always writes to the session log (if initialized). The console only
// sees debug messages when debug mode is enabled.
func emit(level zerolog.Level, msg string) {
	logMu.RLock()
	console := consoleLogger
	session := sessionLogger
	logMu.RUnlock()

	if session != nil {
		session.WithLevel(level).Msg(msg)
	}
	if level > zerolog.DebugLevel || debugEnabled.Load() {
		console.WithLevel(level).Msg(msg)
	}
}

// Debugf logs a formatted debug message.
func Debugf(format string, args ...any) {
	emit(zerolog.DebugLevel, fmt.Sprintf(format, args...))
}

// Debugln logs its operands at debug level, spaced like fmt.Sprintln.
func Debugln(args ...any) {
	msg := fmt.Sprintln(args...)
	emit(zerolog.DebugLevel, msg[:len(msg)-1])
}

// Infof logs a formatted informational message.
func Infof(format string, args ...any) {
	emit(zerolog.InfoLevel, fmt.Sprintf(format, args...))
}

// Warnf logs a formatted warning.
func Warnf(format string, args ...any) {
	emit(zerolog.WarnLevel, fmt.Sprintf(format, args...))
}
