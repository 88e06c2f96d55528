// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package normalize

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cobaltcore-dev/diskprobe/pkg/smart/ata"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/health"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/nvme"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/vendor"
)

func attr(id, current uint8, raw uint64) ata.Attribute {
	a := ata.Attribute{ID: id, Current: current, Worst: current}
	for i := 0; i < 6; i++ {
		a.Raw[i] = byte(raw >> (8 * i))
	}
	return a
}

func TestUnknownIDsAreNoOps(t *testing.T) {
	profiles := []vendor.Profile{
		{Vendor: vendor.HDDGeneral},
		{Vendor: vendor.Samsung, HostUnit: vendor.UnitGB, NandUnit: vendor.UnitGB, LifeID: 0xB1, Flash: true},
		{Vendor: vendor.SanDiskGB, HostUnit: vendor.UnitGB, NandUnit: vendor.UnitGB, Life: vendor.LifeSanDisk1_10, LifeID: 0xE6, Flash: true},
	}
	for _, p := range profiles {
		for id := 1; id <= 0xFE; id++ {
			if Handles(uint8(id)) {
				continue
			}
			info := NewInfo()
			before := info
			Attribute(&info, attr(uint8(id), 42, 0xFFFFFFFFFF), p)
			assert.Equal(t, before, info, "id 0x%02X", id)
		}
	}
}

func TestClampLife(t *testing.T) {
	cases := map[int64]int{0: 0, 100: 100, 101: LifeUnknown, -5: LifeUnknown, 55: 55}
	for in, want := range cases {
		assert.Equal(t, want, ClampLife(in), "input %d", in)
	}
}

func TestCurrentValueLifeDecode(t *testing.T) {
	p := vendor.Profile{Vendor: vendor.Kingston, LifeID: 0xE7}
	for cur, want := range map[uint8]int{0: 0, 100: 100, 101: LifeUnknown} {
		info := NewInfo()
		Attribute(&info, attr(0xE7, cur, 0), p)
		assert.Equal(t, want, info.Life, "current %d", cur)
		assert.False(t, info.LifeFailed)
	}
}

func TestClampTemperature(t *testing.T) {
	assert.Nil(t, ClampTemperature(-273))
	assert.Nil(t, ClampTemperature(-300))
	assert.Nil(t, ClampTemperature(100))
	require.NotNil(t, ClampTemperature(45))
	assert.Equal(t, 45, *ClampTemperature(45))
	require.NotNil(t, ClampTemperature(-10))
}

func TestTemperatureAttribute(t *testing.T) {
	p := vendor.Profile{Vendor: vendor.HDDGeneral}
	info := NewInfo()
	Attribute(&info, attr(0xC2, 64, 0x0032_0014_002D), p)
	require.NotNil(t, info.Temperature)
	assert.Equal(t, 45, *info.Temperature)

	info = NewInfo()
	Attribute(&info, attr(0xC2, 64, 120), p)
	assert.Nil(t, info.Temperature)

	Attribute(&info, attr(0xBE, 64, 38), p)
	require.NotNil(t, info.Temperature)
	assert.Equal(t, 38, *info.Temperature)
}

func TestSamsungScenario(t *testing.T) {
	ids := []uint8{0x05, 0x09, 0x0C, 0xAA, 0xAB, 0xAC, 0xAD, 0xAE, 0xB2, 0xB4}
	p := vendor.Classify(vendor.Input{Model: "SAMSUNG MZ-V7E500", IDs: append(ids, 0xF1), NonRotating: true})
	require.Equal(t, vendor.Samsung, p.Vendor)
	require.Equal(t, vendor.UnitGB, p.HostUnit)

	attrs := []ata.Attribute{
		attr(0x09, 99, 1234),
		attr(0x0C, 99, 56),
		attr(0xAD, 97, 31),
		attr(0xF1, 99, 500),
	}
	info := ATA(attrs, p)
	assert.Equal(t, uint64(500), info.HostWrites)
	assert.Equal(t, uint64(1234), info.DetectedPowerOnHours)
	assert.Equal(t, uint64(56), info.PowerOnCount)
	assert.Equal(t, 97, info.Life)
	assert.Equal(t, uint64(31), info.WearLevelingCount)
	assert.Len(t, info.Attributes, 4)
}

func TestE9DependsOnProfile(t *testing.T) {
	intel := vendor.Profile{Vendor: vendor.Intel, HostUnit: vendor.Unit32MB, NandUnit: vendor.UnitGB, LifeID: 0xE9}
	info := ATA([]ata.Attribute{attr(0xE9, 88, 0), attr(0xE1, 100, 3200)}, intel)
	assert.Equal(t, 88, info.Life)
	assert.Equal(t, uint64(0), info.NandWrites)
	assert.Equal(t, uint64(100), info.HostWrites)

	sandisk := vendor.Profile{Vendor: vendor.SanDiskGB, HostUnit: vendor.UnitGB, NandUnit: vendor.UnitGB, Life: vendor.LifeSanDisk1_10, LifeID: 0xE6}
	info = ATA([]ata.Attribute{attr(0xE9, 100, 777), attr(0xE6, 100, 150)}, sandisk)
	assert.Equal(t, uint64(777), info.NandWrites)
	assert.Equal(t, 85, info.Life)
}

func TestLifeDecodeFlags(t *testing.T) {
	tests := []struct {
		name  string
		flags vendor.LifeFlags
		a     ata.Attribute
		want  int64
	}{
		{"current", 0, attr(0xE7, 93, 7), 93},
		{"raw", vendor.LifeRawValue, attr(0xA9, 100, 87), 87},
		{"increment", vendor.LifeRawValueIncrement, attr(0xCA, 100, 3), 97},
		{"sandisk 0.01", vendor.LifeSanDisk0_1, attr(0xE6, 100, 1250), 88},
		{"sandisk 0.1", vendor.LifeSanDisk1_10, attr(0xE6, 100, 125), 88},
		{"lenovo", vendor.LifeSanDiskLenovo, attr(0xE6, 100, 12), 88},
		{"cloud", vendor.LifeSanDiskCloud, attr(0xE9, 100, 88), 88},
		{"usb memory", vendor.LifeSanDiskUsbMemory, attr(0xE8, 88, 3), 88},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeLife(tt.a, tt.flags))
		})
	}
}

func TestLifeFailedOnlyForRawDecode(t *testing.T) {
	raw := vendor.Profile{Vendor: vendor.SiliconMotion, Life: vendor.LifeRawValue, LifeID: 0xA9}
	info := ATA([]ata.Attribute{attr(0xA9, 100, 0)}, raw)
	assert.Equal(t, 0, info.Life)
	assert.True(t, info.LifeFailed)

	current := vendor.Profile{Vendor: vendor.Kingston, LifeID: 0xE7}
	info = ATA([]ata.Attribute{attr(0xE7, 0, 0)}, current)
	assert.Equal(t, 0, info.Life)
	assert.False(t, info.LifeFailed)

	over := vendor.Profile{Vendor: vendor.Micron, Life: vendor.LifeRawValueIncrement, LifeID: 0xCA}
	info = ATA([]ata.Attribute{attr(0xCA, 100, 150)}, over)
	assert.Equal(t, LifeUnknown, info.Life)
}

func TestHostUnits(t *testing.T) {
	p := vendor.Profile{Vendor: vendor.WDC, HostUnit: vendor.Unit512B}
	info := ATA([]ata.Attribute{attr(0xF1, 100, 4*1024*1024), attr(0xF2, 100, 2*1024*1024)}, p)
	assert.Equal(t, uint64(2), info.HostWrites)
	assert.Equal(t, uint64(1), info.HostReads)

	hdd := ATA([]ata.Attribute{attr(0xF1, 100, 12345)}, vendor.Profile{Vendor: vendor.HDDGeneral})
	assert.Equal(t, uint64(0), hdd.HostWrites)
}

func TestPowerOnUnits(t *testing.T) {
	ms := vendor.Profile{Vendor: vendor.Intel, PowerOn: vendor.PowerOnMilliseconds}
	info := ATA([]ata.Attribute{attr(0x09, 100, 2*3600*1000*1000)}, ms)
	assert.Equal(t, uint64(2000), info.DetectedPowerOnHours)

	ten := vendor.Profile{Vendor: vendor.JMicron61x, PowerOn: vendor.PowerOnTenMinutes}
	info = ATA([]ata.Attribute{attr(0x09, 100, 60)}, ten)
	assert.Equal(t, uint64(10), info.DetectedPowerOnHours)
	assert.Equal(t, uint64(60), info.PowerOnRaw)
}

func TestNVMeDecode(t *testing.T) {
	b := make([]byte, nvme.LogSize)
	b[0] = 0
	binary.LittleEndian.PutUint16(b[1:], 318)
	b[3] = 100
	b[4] = 10
	b[5] = 20
	binary.LittleEndian.PutUint64(b[32:], 2097152)
	binary.LittleEndian.PutUint64(b[48:], 4194304)
	binary.LittleEndian.PutUint64(b[112:], 42)
	binary.LittleEndian.PutUint64(b[128:], 8760)

	info := NVMe(nvme.DecodeSmartLog(b))
	assert.Equal(t, 80, info.Life)
	require.NotNil(t, info.Temperature)
	assert.Equal(t, 45, *info.Temperature)
	assert.Equal(t, uint64(1000), info.HostReads)
	assert.Equal(t, uint64(2000), info.HostWrites)
	assert.Equal(t, uint64(42), info.PowerOnCount)
	assert.Equal(t, uint64(8760), info.DetectedPowerOnHours)
	assert.Equal(t, uint8(100), info.AvailableSpare)
	assert.Equal(t, health.Unknown, info.DiskStatus)
}

func TestNVMeNoTemperature(t *testing.T) {
	info := NVMe(nvme.DecodeSmartLog(make([]byte, nvme.LogSize)))
	assert.Nil(t, info.Temperature)
	assert.Equal(t, 100, info.Life)
}

func TestInferPowerOnUnit(t *testing.T) {
	tests := []struct {
		name    string
		delta   uint64
		elapsed time.Duration
		want    vendor.PowerOnUnit
		ok      bool
	}{
		{"hours", 10, 10 * time.Hour, vendor.PowerOnHours, true},
		{"minutes", 120, 2 * time.Hour, vendor.PowerOnMinutes, true},
		{"half minutes", 240, 2 * time.Hour, vendor.PowerOnHalfMinutes, true},
		{"seconds", 7200, 2 * time.Hour, vendor.PowerOnSeconds, true},
		{"ten minutes", 12, 2 * time.Hour, vendor.PowerOnTenMinutes, true},
		{"milliseconds", 7200 * 1000, 2 * time.Hour, vendor.PowerOnMilliseconds, true},
		{"too short", 10, time.Minute, vendor.PowerOnHours, false},
		{"no growth", 0, 5 * time.Hour, vendor.PowerOnHours, false},
		{"off scale", 30, 10 * time.Hour, vendor.PowerOnHours, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := InferPowerOnUnit(1000, 1000+tt.delta, tt.elapsed)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
