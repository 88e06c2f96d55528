// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package channel

import (
	"context"
	"errors"
)

var errNoSGIO = errors.New("SG_IO is only available on linux")

// SGIO is unavailable on this platform; every command fails so callers fall
// back to replay fixtures.
type SGIO struct{}

func OpenSGIO() *SGIO { return &SGIO{} }

func (s *SGIO) Issue(_ context.Context, cmd Command) ([]byte, error) {
	return nil, Fail(cmd, errNoSGIO)
}

func (s *SGIO) Close() error { return nil }
