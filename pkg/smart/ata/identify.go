// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package ata holds read-only views over ATA IDENTIFY DEVICE and SMART
// data pages. A view keeps its own copy of the buffer and decodes fields
// by word or byte offset on access.
package ata

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const SectorSize = 512

// Identify is the 256-word IDENTIFY DEVICE response.
type Identify struct {
	buf [SectorSize]byte
}

// NewIdentify copies b into a view. A short buffer is a channel contract
// violation and panics.
func NewIdentify(b []byte) Identify {
	if len(b) < SectorSize {
		panic(fmt.Sprintf("ata: identify buffer is %d bytes, want %d", len(b), SectorSize))
	}
	var id Identify
	copy(id.buf[:], b)
	return id
}

// Bytes returns a copy of the raw response.
func (id Identify) Bytes() []byte {
	out := make([]byte, SectorSize)
	copy(out, id.buf[:])
	return out
}

func (id Identify) Word(n int) uint16 {
	return binary.LittleEndian.Uint16(id.buf[n*2:])
}

func (id Identify) bit(word, bit int) bool {
	return id.Word(word)&(1<<bit) != 0
}

// words 10-19
func (id Identify) Serial() string { return swapString(id.buf[20:40]) }

// words 23-26
func (id Identify) Firmware() string { return swapString(id.buf[46:54]) }

// words 27-46
func (id Identify) Model() string { return swapString(id.buf[54:94]) }

func (id Identify) Cylinders() uint16 { return id.Word(1) }
func (id Identify) Heads() uint16     { return id.Word(3) }
func (id Identify) Sectors() uint16   { return id.Word(6) }

// LBA28 is the user addressable sector count from words 60-61.
func (id Identify) LBA28() uint32 {
	return uint32(id.Word(60)) | uint32(id.Word(61))<<16
}

// SupportsLBA48 is word 83 bit 10.
func (id Identify) SupportsLBA48() bool {
	return id.bit(83, 10)
}

// LBA48 is the sector count from words 100-103.
func (id Identify) LBA48() uint64 {
	return binary.LittleEndian.Uint64(id.buf[200:208])
}

// LogicalSectorSize honours word 106 and words 117-118.
func (id Identify) LogicalSectorSize() uint32 {
	w := id.Word(106)
	if w&0xC000 == 0x4000 && w&(1<<12) != 0 {
		size := (uint32(id.Word(117)) | uint32(id.Word(118))<<16) * 2
		if size != 0 {
			return size
		}
	}
	return SectorSize
}

func (id Identify) PhysicalSectorSize() uint32 {
	w := id.Word(106)
	logical := id.LogicalSectorSize()
	if w&0xC000 == 0x4000 && w&(1<<13) != 0 {
		return logical << (w & 0x0F)
	}
	return logical
}

// SectorCount returns the best known sector count, preferring LBA48, then
// LBA28, then CHS.
func (id Identify) SectorCount() uint64 {
	if id.SupportsLBA48() {
		if n := id.LBA48(); n != 0 {
			return n
		}
	}
	if n := id.LBA28(); n != 0 {
		return uint64(n)
	}
	return uint64(id.Cylinders()) * uint64(id.Heads()) * uint64(id.Sectors())
}

func (id Identify) CapacityBytes() uint64 {
	return id.SectorCount() * uint64(id.LogicalSectorSize())
}

// SmartSupported is word 82 bit 0.
func (id Identify) SmartSupported() bool {
	return id.bit(82, 0)
}

// SmartEnabled is word 85 bit 0.
func (id Identify) SmartEnabled() bool {
	return id.bit(85, 0)
}

// SATAGeneration returns the highest signalling generation advertised in
// word 76 (1 = 1.5 Gb/s, 2 = 3.0 Gb/s, 3 = 6.0 Gb/s), or 0 for PATA.
func (id Identify) SATAGeneration() int {
	w := id.Word(76)
	if w == 0 || w == 0xFFFF {
		return 0
	}
	for gen := 3; gen >= 1; gen-- {
		if w&(1<<gen) != 0 {
			return gen
		}
	}
	return 0
}

// SATACurrentGeneration decodes word 77 bits 1-3.
func (id Identify) SATACurrentGeneration() int {
	w := id.Word(77)
	if w == 0xFFFF {
		return 0
	}
	return int(w>>1) & 0x07
}

// RotationRate is word 217: 1 means non-rotating media, 0x0401-0xFFFE is
// rpm, anything else is not reported.
func (id Identify) RotationRate() uint16 {
	return id.Word(217)
}

func (id Identify) NonRotating() bool {
	return id.RotationRate() == 1
}

// TrimSupported is word 169 bit 0.
func (id Identify) TrimSupported() bool {
	return id.bit(169, 0)
}

// swapString undoes the ATA byte order (two characters per word, high byte
// first) and trims padding.
func swapString(b []byte) string {
	out := make([]byte, len(b))
	for i := 0; i+1 < len(b); i += 2 {
		out[i], out[i+1] = b[i+1], b[i]
	}
	return strings.TrimSpace(strings.Trim(string(out), "\x00"))
}

// SwapString is exported for callers that receive raw ATA string fields
// outside an IDENTIFY page.
func SwapString(b []byte) string {
	return swapString(b)
}
