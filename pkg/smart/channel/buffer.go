// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package channel

import "sync"

var (
	sectorPool = sync.Pool{New: func() any { b := make([]byte, ATASectorSize); return &b }}
	pagePool   = sync.Pool{New: func() any { b := make([]byte, NVMeIdentifySize); return &b }}
)

// Scoped hands fn a zeroed transfer buffer of size bytes and returns a copy
// of what fn left in it. The transfer buffer goes back to its pool when
// Scoped returns, whatever fn did, so callers only ever hold the copy.
func Scoped(size int, fn func(buf []byte) error) ([]byte, error) {
	if size <= 0 {
		return nil, fn(nil)
	}

	var pool *sync.Pool
	switch {
	case size <= ATASectorSize:
		pool = &sectorPool
	case size <= NVMeIdentifySize:
		pool = &pagePool
	}

	var buf []byte
	if pool != nil {
		p := pool.Get().(*[]byte)
		defer func() {
			clear(*p)
			pool.Put(p)
		}()
		buf = (*p)[:size]
		clear(buf)
	} else {
		buf = make([]byte, size)
	}

	if err := fn(buf); err != nil {
		return nil, err
	}

	out := make([]byte, size)
	copy(out, buf)
	return out, nil
}

// AllZero reports whether b is empty or contains only zero bytes.
func AllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
