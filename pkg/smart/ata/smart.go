// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package ata

import (
	"encoding/binary"
	"fmt"
)

const (
	// MaxAttributes is the number of 12-byte slots in a SMART data page.
	MaxAttributes = 30
	attributeSize = 12
	tableOffset   = 2
)

// Attribute is one slot of the SMART READ DATA page. Threshold is not part
// of the data page; it is merged in from the threshold page.
type Attribute struct {
	ID        uint8
	Flags     uint16
	Current   uint8
	Worst     uint8
	Raw       [6]byte
	Reserved  uint8
	Threshold uint8
}

// RawValue is the 48-bit little-endian raw counter.
func (a Attribute) RawValue() uint64 {
	var v uint64
	for i := 5; i >= 0; i-- {
		v = v<<8 | uint64(a.Raw[i])
	}
	return v
}

// RawWord returns the n-th 16-bit little-endian word of the raw counter.
func (a Attribute) RawWord(n int) uint16 {
	return binary.LittleEndian.Uint16(a.Raw[n*2:])
}

// RawZero reports whether all six raw bytes are zero.
func (a Attribute) RawZero() bool {
	return a.Raw == [6]byte{}
}

// Prefailure is flag bit 0.
func (a Attribute) Prefailure() bool {
	return a.Flags&0x01 != 0
}

func (a Attribute) String() string {
	return fmt.Sprintf("0x%02X cur=%d worst=%d thr=%d raw=%d", a.ID, a.Current, a.Worst, a.Threshold, a.RawValue())
}

// Page is a view over a 512 byte SMART data or threshold page.
type Page struct {
	buf [SectorSize]byte
}

// NewPage copies b into a view. A short buffer panics.
func NewPage(b []byte) Page {
	if len(b) < SectorSize {
		panic(fmt.Sprintf("ata: smart page is %d bytes, want %d", len(b), SectorSize))
	}
	var p Page
	copy(p.buf[:], b)
	return p
}

func (p Page) Bytes() []byte {
	out := make([]byte, SectorSize)
	copy(out, p.buf[:])
	return out
}

func (p Page) Revision() uint16 {
	return binary.LittleEndian.Uint16(p.buf[0:])
}

// ChecksumValid reports whether the 512 bytes sum to zero modulo 256.
func (p Page) ChecksumValid() bool {
	var sum byte
	for _, b := range p.buf {
		sum += b
	}
	return sum == 0
}

// Attributes decodes the populated slots of a data page in on-device order.
// Slots with ID 0 are skipped.
func (p Page) Attributes() []Attribute {
	attrs := make([]Attribute, 0, MaxAttributes)
	for i := 0; i < MaxAttributes; i++ {
		off := tableOffset + i*attributeSize
		s := p.buf[off : off+attributeSize]
		if s[0] == 0 {
			continue
		}
		a := Attribute{
			ID:       s[0],
			Flags:    binary.LittleEndian.Uint16(s[1:3]),
			Current:  s[3],
			Worst:    s[4],
			Reserved: s[11],
		}
		copy(a.Raw[:], s[5:11])
		attrs = append(attrs, a)
	}
	return attrs
}

// Thresholds decodes a threshold page into ID -> threshold.
func (p Page) Thresholds() map[uint8]uint8 {
	out := make(map[uint8]uint8, MaxAttributes)
	for i := 0; i < MaxAttributes; i++ {
		off := tableOffset + i*attributeSize
		if id := p.buf[off]; id != 0 {
			out[id] = p.buf[off+1]
		}
	}
	return out
}

// ApplyThresholds returns attrs with Threshold filled from thresholds.
func ApplyThresholds(attrs []Attribute, thresholds map[uint8]uint8) []Attribute {
	out := make([]Attribute, len(attrs))
	for i, a := range attrs {
		a.Threshold = thresholds[a.ID]
		out[i] = a
	}
	return out
}

// IDs returns the attribute ID sequence, the fingerprint used for vendor
// classification and consistency checks.
func IDs(attrs []Attribute) []uint8 {
	ids := make([]uint8, len(attrs))
	for i, a := range attrs {
		ids[i] = a.ID
	}
	return ids
}
