// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout            = errors.New("command timed out")
	ErrUnsupportedDialect = errors.New("dialect not supported by this channel")
	ErrClosed             = errors.New("channel closed")
	ErrNoResponse         = errors.New("no recorded response")
)

// ChannelError is a transport level failure: the handle could not be
// opened, the ioctl failed, the device returned a check condition or the
// command timed out.
type ChannelError struct {
	Cmd Command
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("%s: %v", e.Cmd, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// Fail wraps err as a *ChannelError for cmd.
func Fail(cmd Command, err error) error {
	return &ChannelError{Cmd: cmd, Err: err}
}

// ValidationError means the device answered but the answer cannot be used:
// an all-zero buffer, an empty model string, inconsistent attribute reads
// or a known-bad target.
type ValidationError struct {
	Dialect Dialect
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.Dialect == DialectUnknown {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed (%s): %s", e.Dialect, e.Reason)
}

func Invalid(d Dialect, format string, args ...any) error {
	return &ValidationError{Dialect: d, Reason: fmt.Sprintf(format, args...)}
}

func IsChannelError(err error) bool {
	var ce *ChannelError
	return errors.As(err, &ce)
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
