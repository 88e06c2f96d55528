// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSATSmartReadCDB(t *testing.T) {
	cdb := ataCDB(ATACommand(SAT, Target{Path: "/dev/sda"}, OpATASmart, FeatureSmartReadData))
	assert.Len(t, cdb, 16)
	assert.Equal(t, byte(0x85), cdb[0])
	assert.Equal(t, byte(0x08), cdb[1])
	assert.Equal(t, byte(0x0E), cdb[2])
	assert.Equal(t, FeatureSmartReadData, cdb[4])
	assert.Equal(t, byte(1), cdb[6])
	assert.Equal(t, byte(0x4F), cdb[10])
	assert.Equal(t, byte(0xC2), cdb[12])
	assert.Equal(t, byte(OpATASmart), cdb[14])
}

func TestSATNonDataCDB(t *testing.T) {
	cdb := ataCDB(ATACommand(SAT, Target{Path: "/dev/sda"}, OpATASmart, FeatureSmartEnable))
	assert.Equal(t, byte(0x06), cdb[1])
	assert.Equal(t, byte(0), cdb[6])
	assert.Equal(t, FeatureSmartEnable, cdb[4])
}

func TestBridgeCDBs(t *testing.T) {
	jm := ataCDB(ATACommand(JMicron, Target{Path: "/dev/sdb", Port: 1}, OpATAIdentify, 0))
	assert.Len(t, jm, 12)
	assert.Equal(t, byte(0xDF), jm[0])
	assert.Equal(t, byte(0x02), jm[3])
	assert.Equal(t, byte(0xB0), jm[10])
	assert.Equal(t, byte(OpATAIdentify), jm[11])

	sp := ataCDB(ATACommand(Sunplus, Target{Path: "/dev/sdb"}, OpATAIdentify, 0))
	assert.Equal(t, byte(0xF8), sp[0])
	assert.Equal(t, byte(1), sp[4])

	asm := nvmeBridgeCDB(NVMeSmartLogCommand(NVMeASMedia, Target{Path: "/dev/sdc"}))
	assert.Equal(t, byte(0xE6), asm[0])
	assert.Equal(t, byte(OpNVMeGetLogPage), asm[1])
	assert.Equal(t, NVMeLogSmartHealth, asm[3])
	assert.Equal(t, byte(127), asm[7])

	rtk := nvmeBridgeCDB(NVMeIdentifyCommand(NVMeRealtek, Target{Path: "/dev/sdc"}))
	assert.Equal(t, byte(0xE4), rtk[0])
	assert.Equal(t, byte(0x00), rtk[1])
	assert.Equal(t, byte(0x10), rtk[2])
	assert.Equal(t, byte(OpNVMeIdentify), rtk[3])
}

func TestNVMeControllerPath(t *testing.T) {
	assert.Equal(t, "/dev/nvme0", nvmeControllerPath("/dev/nvme0n1"))
	assert.Equal(t, "/dev/nvme12", nvmeControllerPath("/dev/nvme12n3"))
	assert.Equal(t, "/dev/nvme1", nvmeControllerPath("/dev/nvme1"))
	assert.Equal(t, "/dev/sda", nvmeControllerPath("/dev/sda"))
}

func TestSenseDecoding(t *testing.T) {
	fixed := []byte{0x70, 0, 0x05, 0, 0, 0, 0, 0}
	assert.Equal(t, uint8(0x05), senseKey(fixed))

	desc := []byte{0x72, 0x01, 0, 0, 0, 0, 0, 0x0E, 0x09, 0x0C}
	assert.Equal(t, uint8(0x01), senseKey(desc))
	assert.True(t, isATAReturnDescriptor(desc))
	assert.False(t, isATAReturnDescriptor(fixed))
}
