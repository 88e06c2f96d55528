// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package nvme

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeSmartLog(t *testing.T) {
	b := make([]byte, LogSize)
	b[0] = WarnSpare | WarnReadOnly
	binary.LittleEndian.PutUint16(b[1:], 318)
	b[3] = 95
	b[4] = 10
	b[5] = 7
	binary.LittleEndian.PutUint64(b[32:], 1000)
	binary.LittleEndian.PutUint64(b[48:], 2000)
	binary.LittleEndian.PutUint64(b[64:], 3000)
	binary.LittleEndian.PutUint64(b[80:], 4000)
	binary.LittleEndian.PutUint64(b[112:], 42)
	binary.LittleEndian.PutUint64(b[128:], 8760)
	binary.LittleEndian.PutUint64(b[144:], 3)
	binary.LittleEndian.PutUint64(b[160:], 1)
	binary.LittleEndian.PutUint32(b[192:], 11)
	binary.LittleEndian.PutUint32(b[196:], 12)
	binary.LittleEndian.PutUint16(b[200:], 320)
	binary.LittleEndian.PutUint16(b[214:], 330)
	binary.LittleEndian.PutUint32(b[216:], 5)
	binary.LittleEndian.PutUint32(b[220:], 6)
	binary.LittleEndian.PutUint32(b[224:], 7)
	binary.LittleEndian.PutUint32(b[228:], 8)

	l := DecodeSmartLog(b)
	assert.Equal(t, uint8(WarnSpare|WarnReadOnly), l.CriticalWarning)
	assert.Equal(t, 45, l.CompositeCelsius())
	assert.Equal(t, uint8(95), l.AvailableSpare)
	assert.Equal(t, uint8(10), l.AvailableSpareThreshold)
	assert.Equal(t, uint8(7), l.PercentageUsed)
	assert.Equal(t, uint64(1000), l.DataUnitsRead.Uint64())
	assert.Equal(t, uint64(2000), l.DataUnitsWritten.Uint64())
	assert.Equal(t, uint64(3000), l.HostReadCommands.Uint64())
	assert.Equal(t, uint64(4000), l.HostWriteCommands.Uint64())
	assert.Equal(t, uint64(42), l.PowerCycles.Uint64())
	assert.Equal(t, uint64(8760), l.PowerOnHours.Uint64())
	assert.Equal(t, uint64(3), l.UnsafeShutdowns.Uint64())
	assert.Equal(t, uint64(1), l.MediaErrors.Uint64())
	assert.Equal(t, uint32(11), l.WarningTempTime)
	assert.Equal(t, uint32(12), l.CriticalTempTime)
	assert.Equal(t, uint16(320), l.TemperatureSensors[0])
	assert.Equal(t, uint16(330), l.TemperatureSensors[7])
	assert.Equal(t, [2]uint32{5, 6}, l.ThermalTransitionCount)
	assert.Equal(t, [2]uint32{7, 8}, l.ThermalManagementTime)
}

func TestUint128(t *testing.T) {
	small := Uint128{Lo: 12345}
	assert.Equal(t, uint64(12345), small.Uint64())
	assert.Equal(t, "12345", small.String())

	big := Uint128{Lo: 0, Hi: 1}
	assert.Equal(t, uint64(math.MaxUint64), big.Uint64())
	assert.Equal(t, math.Exp2(64), big.Float64())
}

func TestController(t *testing.T) {
	b := make([]byte, IdentifySize)
	binary.LittleEndian.PutUint16(b[0:], 0x144D)
	binary.LittleEndian.PutUint16(b[2:], 0x144D)
	copy(b[4:24], "S4EWNX0R123456      ")
	copy(b[24:64], "Samsung SSD 970 EVO Plus 1TB            ")
	copy(b[64:72], "2B2QEXM7")
	binary.LittleEndian.PutUint16(b[266:], 358)
	binary.LittleEndian.PutUint16(b[268:], 358+3)
	binary.LittleEndian.PutUint32(b[516:], 1)

	c := NewController(b)
	assert.Equal(t, uint16(0x144D), c.VendorID())
	assert.Equal(t, uint16(0x144D), c.SubsystemVendorID())
	assert.Equal(t, "S4EWNX0R123456", c.Serial())
	assert.Equal(t, "Samsung SSD 970 EVO Plus 1TB", c.Model())
	assert.Equal(t, "2B2QEXM7", c.Firmware())
	assert.Equal(t, 85, c.WarningTemperature())
	assert.Equal(t, 88, c.CriticalTemperature())
	assert.Equal(t, uint32(1), c.Namespaces())
}

func TestShortBuffersPanic(t *testing.T) {
	assert.Panics(t, func() { DecodeSmartLog(make([]byte, 231)) })
	assert.Panics(t, func() { NewController(make([]byte, 512)) })
}
