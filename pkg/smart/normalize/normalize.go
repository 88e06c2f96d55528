// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package normalize

import (
	"math"

	"github.com/cobaltcore-dev/diskprobe/pkg/smart/ata"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/nvme"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/vendor"
)

type rule func(info *Info, a ata.Attribute, p vendor.Profile)

// dispatch maps an attribute ID to its conversion. The same ID means
// different things under different profiles, so every rule looks at p.
var dispatch = map[uint8]rule{
	0x09: powerOnHours,
	0x0C: powerCycles,
	0x64: gbytesErased,
	0xA9: lifeOnly,
	0xAD: wearLeveling,
	0xB1: wearLeveling,
	0xBE: airflowTemperature,
	0xC2: temperature,
	0xCA: lifeOnly,
	0xD1: lifeOnly,
	0xE1: hostWrites,
	0xE6: lifeOnly,
	0xE7: lifeOnly,
	0xE8: lifeOnly,
	0xE9: lifeOrNandWrites,
	0xF1: hostWrites,
	0xF2: hostReads,
	0xF5: nandWrites,
	0xF6: hostWrites,
	0xF9: nandWrites,
}

// Handles reports whether id has a conversion rule.
func Handles(id uint8) bool {
	_, ok := dispatch[id]
	return ok
}

// Attribute applies the rule for a.ID, if any. Unknown IDs leave info
// untouched.
func Attribute(info *Info, a ata.Attribute, p vendor.Profile) {
	if r, ok := dispatch[a.ID]; ok {
		r(info, a, p)
	}
}

// ATA builds an Info from an attribute list.
func ATA(attrs []ata.Attribute, p vendor.Profile) Info {
	info := NewInfo()
	for _, a := range attrs {
		Attribute(&info, a, p)
	}
	info.Attributes = attrs
	return info
}

func low32(a ata.Attribute) uint64 {
	return a.RawValue() & 0xFFFFFFFF
}

func powerOnHours(info *Info, a ata.Attribute, p vendor.Profile) {
	raw := low32(a)
	if p.PowerOn == vendor.PowerOnMilliseconds {
		raw = a.RawValue()
	}
	info.PowerOnRaw = raw
	info.DetectedPowerOnHours = p.PowerOn.Hours(raw)
}

func powerCycles(info *Info, a ata.Attribute, _ vendor.Profile) {
	info.PowerOnCount = low32(a)
}

func gbytesErased(info *Info, a ata.Attribute, p vendor.Profile) {
	switch p.Vendor {
	case vendor.SandForce, vendor.SeagateIronWolf, vendor.SeagateBarraCuda:
		info.GBytesErased = a.RawValue()
	}
}

func wearLeveling(info *Info, a ata.Attribute, p vendor.Profile) {
	if a.ID == p.LifeID {
		life(info, a, p)
	}
	if p.Flash && info.WearLevelingCount == 0 {
		info.WearLevelingCount = uint64(a.RawWord(0))
	}
}

func temperature(info *Info, a ata.Attribute, _ vendor.Profile) {
	info.Temperature = ClampTemperature(int(a.Raw[0]))
}

// 0xBE is only used when 0xC2 is absent or implausible.
func airflowTemperature(info *Info, a ata.Attribute, _ vendor.Profile) {
	if info.Temperature == nil {
		info.Temperature = ClampTemperature(int(a.Raw[0]))
	}
}

func hostWrites(info *Info, a ata.Attribute, p vendor.Profile) {
	switch {
	case a.ID == 0xE1 && p.Vendor != vendor.Intel && p.Vendor != vendor.IntelDC:
		return
	case a.ID == 0xF6 && p.Vendor != vendor.Micron && p.Vendor != vendor.MicronMU02:
		return
	}
	if p.HostUnit != vendor.UnitUnknown {
		info.HostWrites = p.HostUnit.GB(a.RawValue())
	}
}

func hostReads(info *Info, a ata.Attribute, p vendor.Profile) {
	if p.HostUnit != vendor.UnitUnknown {
		info.HostReads = p.HostUnit.GB(a.RawValue())
	}
}

func nandWrites(info *Info, a ata.Attribute, p vendor.Profile) {
	if p.NandUnit != vendor.UnitUnknown {
		info.NandWrites = p.NandUnit.GB(a.RawValue())
	}
}

func lifeOnly(info *Info, a ata.Attribute, p vendor.Profile) {
	if a.ID == p.LifeID {
		life(info, a, p)
	}
}

// 0xE9 is remaining life for Intel and OCZ and NAND writes for the SanDisk
// GB family.
func lifeOrNandWrites(info *Info, a ata.Attribute, p vendor.Profile) {
	if a.ID == p.LifeID {
		life(info, a, p)
		return
	}
	nandWrites(info, a, p)
}

func life(info *Info, a ata.Attribute, p vendor.Profile) {
	info.Life = ClampLife(DecodeLife(a, p.Life))
	info.LifeFailed = p.Life.RawDecode() && info.Life == 0
}

// DecodeLife computes remaining life before clamping.
func DecodeLife(a ata.Attribute, f vendor.LifeFlags) int64 {
	raw := int64(a.RawValue())
	switch {
	case f&vendor.LifeRawValueIncrement != 0:
		return 100 - raw
	case f&vendor.LifeRawValue != 0:
		return raw
	case f&vendor.LifeSanDisk0_1 != 0:
		return 100 - raw/100
	case f&vendor.LifeSanDisk1_10 != 0:
		return 100 - raw/10
	case f&vendor.LifeSanDiskLenovo != 0:
		return 100 - raw
	case f&vendor.LifeSanDiskCloud != 0:
		return raw
	}
	return int64(a.Current)
}

// NVMe builds an Info from a health log page.
func NVMe(l nvme.SmartLog) Info {
	info := NewInfo()
	info.Life = ClampLife(100 - int64(l.PercentageUsed))
	info.Temperature = ClampTemperature(l.CompositeCelsius())
	info.HostReads = dataUnitsGB(l.DataUnitsRead)
	info.HostWrites = dataUnitsGB(l.DataUnitsWritten)
	info.PowerOnCount = l.PowerCycles.Uint64()
	info.PowerOnRaw = l.PowerOnHours.Uint64()
	info.DetectedPowerOnHours = info.PowerOnRaw
	info.CriticalWarning = l.CriticalWarning
	info.AvailableSpare = l.AvailableSpare
	info.AvailableSpareThreshold = l.AvailableSpareThreshold
	info.PercentageUsed = l.PercentageUsed
	info.MediaErrors = l.MediaErrors.Uint64()
	info.UnsafeShutdowns = l.UnsafeShutdowns.Uint64()
	return info
}

// A data unit is 1000 sectors of 512 bytes.
func dataUnitsGB(u nvme.Uint128) uint64 {
	gb := u.Float64() * 512000 / (1 << 30)
	if gb >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(gb)
}
