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
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	sessionLogFile *os.File
	sessionLogPath string
)

// InitSessionLog creates a new session log file in dir (the current
// directory when empty). Every log message, debug included, is written to
// it as JSON lines. Returns the log file path for display to the user.
func InitSessionLog(dir string) (string, error) {
	filename := fmt.Sprintf("pn532_%s.log", time.Now().Format("20060102_150405"))
	if dir != "" {
		filename = dir + string(os.PathSeparator) + filename
	}

	logFile, err := os.Create(filename) //nolint:gosec // filename is constructed internally
	if err != nil {
		return "", fmt.Errorf("failed to create session log: %w", err)
	}
	writeSessionHeader(logFile)

	l := zerolog.New(logFile).With().Timestamp().Logger()

	logMu.Lock()
	defer logMu.Unlock()
	sessionLogFile = logFile
	sessionLogPath = filename
	sessionLogger = &l
	return filename, nil
}

// CloseSessionLog closes the current session log file.
func CloseSessionLog() error {
	logMu.Lock()
	defer logMu.Unlock()

	if sessionLogFile == nil {
		return nil
	}
	sessionLogger.Info().Msg("session ended")

	err := sessionLogFile.Close()
	sessionLogFile = nil
	sessionLogPath = ""
	sessionLogger = nil
	if err != nil {
		return fmt.Errorf("failed to close session log: %w", err)
	}
	return nil
}

// GetSessionLogPath returns the current session log file path.
func GetSessionLogPath() string {
	logMu.RLock()
	defer logMu.RUnlock()
	return sessionLogPath
}

func writeSessionHeader(writer io.Writer) {
	_, _ = fmt.Fprint(writer, "# PN532 debug session\n")
	_, _ = fmt.Fprintf(writer, "# started %s pid %d %s/%s %s\n",
		time.Now().Format(time.RFC3339), os.Getpid(), runtime.GOOS, runtime.GOARCH, runtime.Version())
	_, _ = fmt.Fprintf(writer, "# cmdline: %s\n", strings.Join(os.Args, " "))
}
