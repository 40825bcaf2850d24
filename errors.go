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
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"syscall"
)

// Transport errors. Read and write failures are reported with the timeout
// error type so the polling loops treat them like "no answer yet".
var (
	ErrTransportTimeout = errors.New("transport timeout")
	ErrTransportWrite   = errors.New("transport write failed")
	ErrTransportRead    = errors.New("transport read failed")
	ErrTransportClosed  = errors.New("transport is closed")
)

// Communication errors
var (
	ErrNoACK          = errors.New("no ACK received")
	ErrInvalidACK     = errors.New("invalid ACK frame")
	ErrFrameCorrupted = errors.New("frame corrupted")
)

// Device and bus errors
var (
	ErrDeviceNotFound   = errors.New("device not found")
	ErrAmbiguousDevice  = errors.New("more than one candidate device")
	ErrCommandFailed    = errors.New("command execution failed")
	ErrInvalidResponse  = errors.New("invalid response format")
	ErrNoTargetDetected = errors.New("no target detected")
)

// Data errors
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrDataTooLarge     = errors.New("data too large")
)

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypePermanent:
		return "permanent"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// PN532Error reports a non-zero error code in a status byte returned by
// InDataExchange or one of the target mode commands.
type PN532Error struct {
	Command   string
	Context   string
	ErrorCode byte
	Target    byte
}

func (e *PN532Error) Error() string {
	base := fmt.Sprintf("%s error 0x%02X (%s)", e.Command, e.ErrorCode, pn532ErrorCodeMeaning(e.ErrorCode))
	if e.Context != "" {
		base += ": " + e.Context
	}
	return base
}

func (*PN532Error) Unwrap() error {
	return ErrCommandFailed
}

// Error codes are from the PN532 User Manual section 7.1
var errorCodeMeanings = map[byte]string{
	0x00: "success",
	0x01: "timeout",
	0x02: "CRC error",
	0x03: "parity error",
	0x04: "erroneous bit count during anti-collision",
	0x05: "framing error during mifare operation",
	0x06: "abnormal bit collision",
	0x07: "communication buffer size insufficient",
	0x09: "RF buffer overflow",
	0x0A: "RF field not activated in time",
	0x0B: "RF protocol error",
	0x0D: "overheating",
	0x0E: "internal buffer overflow",
	0x10: "invalid parameter",
	0x12: "DEP protocol not supported",
	0x13: "dataformat does not match",
	0x14: "authentication error",
	0x23: "UID check byte is wrong",
	0x25: "DEP invalid state",
	0x26: "operation not allowed",
	0x27: "wrong context for command",
	0x29: "target released by initiator",
	0x2A: "card ID mismatch",
	0x2B: "card disappeared",
	0x2C: "NFCID3 initiator/target mismatch",
	0x2D: "over-current event",
	0x2E: "NAD missing in DEP frame",
	0x81: "command not supported",
}

func pn532ErrorCodeMeaning(code byte) string {
	if m, ok := errorCodeMeanings[code]; ok {
		return m
	}
	return "unknown error"
}

// Status codes the target mode host reacts to.
const (
	StatusTimeout         byte = 0x01
	StatusDEPInvalidState byte = 0x25
	StatusTargetReleased  byte = 0x29
	StatusCardDisappeared byte = 0x2B
)

// IsTimeoutError returns true if the error code is the RF timeout
func (e *PN532Error) IsTimeoutError() bool {
	return e.ErrorCode == StatusTimeout
}

// IsReleased reports whether the initiator released or deselected the
// emulated target.
func (e *PN532Error) IsReleased() bool {
	return e.ErrorCode == StatusTargetReleased || e.ErrorCode == StatusDEPInvalidState
}

// ErrorCodeOf returns the PN532 status code carried by err, if any.
func ErrorCodeOf(err error) (byte, bool) {
	var pe *PN532Error
	if errors.As(err, &pe) {
		return pe.ErrorCode, true
	}
	return 0, false
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	var pe *PN532Error
	if errors.As(err, &pe) {
		return pe.IsTimeoutError()
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrNoACK),
		errors.Is(err, ErrFrameCorrupted):
		return true
	default:
		return false
	}
}

// IsTimeout reports whether err is one of the timeout-equivalent outcomes:
// a bus that never became ready, a failed bus transfer, or an expired
// context deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) && te.Type == ErrorTypeTimeout {
		return true
	}
	return errors.Is(err, ErrTransportTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// IsFatal returns true if the device is gone and no retry can succeed.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) && te.Type == ErrorTypePermanent {
		return true
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, ErrDeviceNotFound),
		errors.Is(err, ErrAmbiguousDevice),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// Windows error codes that indicate device removal
const (
	errAccessDenied syscall.Errno = 5   // ERROR_ACCESS_DENIED
	errGenFailure   syscall.Errno = 31  // ERROR_GEN_FAILURE
	errNoSuchDevice syscall.Errno = 433 // ERROR_NO_SUCH_DEVICE
)

func isDeviceGoneError(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}

	switch errno {
	case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
		return true
	}

	if runtime.GOOS == "windows" {
		switch errno {
		case errAccessDenied, errGenFailure, errNoSuchDevice:
			return true
		}
	}
	return false
}

// NewTransportError creates a new transport error
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewNoACKError creates an error for an ACK that never arrived
func NewNoACKError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrNoACK, ErrorTypeTimeout)
}

// NewInvalidACKError creates an error for a ready frame that is not an ACK
func NewInvalidACKError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrInvalidACK, ErrorTypeTransient)
}

// NewTransportWriteError wraps a failed bus write. Timeout typed so it
// collapses into the same outcome as an unanswered command.
func NewTransportWriteError(op, port string, cause error) *TransportError {
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrTransportWrite, cause), ErrorTypeTimeout)
}

// NewFrameCorruptedError wraps a frame decode failure
func NewFrameCorruptedError(op, port string, cause error) *TransportError {
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrFrameCorrupted, cause), ErrorTypeTransient)
}

// NewResponseTimeoutError reports a response that never became ready. The
// last bus read error, if any, is kept for diagnostics.
func NewResponseTimeoutError(op, port string, lastReadErr error) *TransportError {
	err := ErrTransportTimeout
	if lastReadErr != nil {
		err = fmt.Errorf("%w (last read: %w)", ErrTransportTimeout, lastReadErr)
	}
	return NewTransportError(op, port, err, ErrorTypeTimeout)
}
