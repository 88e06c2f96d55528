// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package nvme decodes the NVMe Identify Controller structure and the
// SMART / Health Information log page (log identifier 02h).
package nvme

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

const (
	IdentifySize = 4096
	LogSize      = 512
)

// Uint128 is a 16 byte little-endian counter as used by the health log.
type Uint128 struct {
	Lo, Hi uint64
}

func readUint128(b []byte) Uint128 {
	return Uint128{Lo: binary.LittleEndian.Uint64(b[0:8]), Hi: binary.LittleEndian.Uint64(b[8:16])}
}

// Uint64 saturates at math.MaxUint64.
func (u Uint128) Uint64() uint64 {
	if u.Hi != 0 {
		return math.MaxUint64
	}
	return u.Lo
}

func (u Uint128) Float64() float64 {
	return float64(u.Hi)*math.Exp2(64) + float64(u.Lo)
}

func (u Uint128) String() string {
	if u.Hi == 0 {
		return fmt.Sprintf("%d", u.Lo)
	}
	return fmt.Sprintf("%.0f", u.Float64())
}

// Controller is a view over the Identify Controller data structure.
type Controller struct {
	buf [IdentifySize]byte
}

// NewController copies b into a view. A short buffer panics.
func NewController(b []byte) Controller {
	if len(b) < IdentifySize {
		panic(fmt.Sprintf("nvme: identify buffer is %d bytes, want %d", len(b), IdentifySize))
	}
	var c Controller
	copy(c.buf[:], b)
	return c
}

func (c Controller) Bytes() []byte {
	out := make([]byte, IdentifySize)
	copy(out, c.buf[:])
	return out
}

func (c Controller) VendorID() uint16          { return binary.LittleEndian.Uint16(c.buf[0:]) }
func (c Controller) SubsystemVendorID() uint16 { return binary.LittleEndian.Uint16(c.buf[2:]) }
func (c Controller) Serial() string            { return trim(c.buf[4:24]) }
func (c Controller) Model() string             { return trim(c.buf[24:64]) }
func (c Controller) Firmware() string          { return trim(c.buf[64:72]) }

// WarningTemperature is WCTEMP converted to Celsius, 0 if not reported.
func (c Controller) WarningTemperature() int {
	return kelvinToCelsius(binary.LittleEndian.Uint16(c.buf[266:]))
}

// CriticalTemperature is CCTEMP converted to Celsius, 0 if not reported.
func (c Controller) CriticalTemperature() int {
	return kelvinToCelsius(binary.LittleEndian.Uint16(c.buf[268:]))
}

// TotalCapacity is TNVMCAP in bytes.
func (c Controller) TotalCapacity() Uint128 {
	return readUint128(c.buf[280:296])
}

// Namespaces is NN.
func (c Controller) Namespaces() uint32 {
	return binary.LittleEndian.Uint32(c.buf[516:])
}

func kelvinToCelsius(k uint16) int {
	if k == 0 {
		return 0
	}
	return int(k) - 273
}

func trim(b []byte) string {
	return strings.TrimSpace(strings.Trim(string(b), "\x00"))
}

// SmartLog is the decoded health log page. Offsets are fixed by the NVMe base
// specification and end at byte 231; the rest of the page is reserved.
type SmartLog struct {
	CriticalWarning         uint8
	CompositeTemperature    uint16 // Kelvin
	AvailableSpare          uint8
	AvailableSpareThreshold uint8
	PercentageUsed          uint8
	EnduranceGroupWarning   uint8
	DataUnitsRead           Uint128
	DataUnitsWritten        Uint128
	HostReadCommands        Uint128
	HostWriteCommands       Uint128
	ControllerBusyTime      Uint128
	PowerCycles             Uint128
	PowerOnHours            Uint128
	UnsafeShutdowns         Uint128
	MediaErrors             Uint128
	ErrorLogEntries         Uint128
	WarningTempTime         uint32
	CriticalTempTime        uint32
	TemperatureSensors      [8]uint16
	ThermalTransitionCount  [2]uint32
	ThermalManagementTime   [2]uint32
}

// DecodeSmartLog parses a log page. A short buffer panics.
func DecodeSmartLog(b []byte) SmartLog {
	if len(b) < LogSize {
		panic(fmt.Sprintf("nvme: smart log is %d bytes, want %d", len(b), LogSize))
	}
	l := SmartLog{
		CriticalWarning:         b[0],
		CompositeTemperature:    binary.LittleEndian.Uint16(b[1:3]),
		AvailableSpare:          b[3],
		AvailableSpareThreshold: b[4],
		PercentageUsed:          b[5],
		EnduranceGroupWarning:   b[6],
		DataUnitsRead:           readUint128(b[32:48]),
		DataUnitsWritten:        readUint128(b[48:64]),
		HostReadCommands:        readUint128(b[64:80]),
		HostWriteCommands:       readUint128(b[80:96]),
		ControllerBusyTime:      readUint128(b[96:112]),
		PowerCycles:             readUint128(b[112:128]),
		PowerOnHours:            readUint128(b[128:144]),
		UnsafeShutdowns:         readUint128(b[144:160]),
		MediaErrors:             readUint128(b[160:176]),
		ErrorLogEntries:         readUint128(b[176:192]),
		WarningTempTime:         binary.LittleEndian.Uint32(b[192:196]),
		CriticalTempTime:        binary.LittleEndian.Uint32(b[196:200]),
	}
	for i := range l.TemperatureSensors {
		l.TemperatureSensors[i] = binary.LittleEndian.Uint16(b[200+i*2:])
	}
	for i := range l.ThermalTransitionCount {
		l.ThermalTransitionCount[i] = binary.LittleEndian.Uint32(b[216+i*4:])
		l.ThermalManagementTime[i] = binary.LittleEndian.Uint32(b[224+i*4:])
	}
	return l
}

// CompositeCelsius converts the composite temperature.
func (l SmartLog) CompositeCelsius() int {
	return int(l.CompositeTemperature) - 273
}

// Critical warning bits.
const (
	WarnSpare       = 1 << 0
	WarnTemperature = 1 << 1
	WarnReliability = 1 << 2
	WarnReadOnly    = 1 << 3
	WarnVolatile    = 1 << 4
	WarnPMR         = 1 << 5
)
