// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package health rates a device from its normalized SMART data.
package health

import (
	"strings"

	"github.com/cobaltcore-dev/diskprobe/pkg/smart/ata"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/vendor"
)

type Status int

const (
	Unknown Status = iota
	Good
	Caution
	Bad
)

func (s Status) String() string {
	switch s {
	case Good:
		return "good"
	case Caution:
		return "caution"
	case Bad:
		return "bad"
	}
	return "unknown"
}

// MarshalText lets Status appear by name in JSON reports.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText maps unrecognised names to Unknown.
func (s *Status) UnmarshalText(b []byte) error {
	*s = ParseStatus(string(b))
	return nil
}

func ParseStatus(name string) Status {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "good":
		return Good
	case "caution":
		return Caution
	case "bad":
		return Bad
	}
	return Unknown
}

// CautionThresholds are raw counts at or above which the reallocated,
// pending and uncorrectable sector attributes raise a caution. Zero
// disables a check.
type CautionThresholds struct {
	Reallocated   uint64
	Pending       uint64
	Uncorrectable uint64
}

func DefaultCaution() CautionThresholds {
	return CautionThresholds{Reallocated: 1, Pending: 1, Uncorrectable: 1}
}

// Input is everything Evaluate looks at.
type Input struct {
	NVMe  bool
	Model string

	// NVMe health log fields.
	CriticalWarning         uint8
	AvailableSpare          uint8
	AvailableSpareThreshold uint8
	Life                    int

	// ATA acquisition flags.
	Correct          bool
	ThresholdCorrect bool
	ThresholdBug     bool

	SSD        bool
	Profile    vendor.Profile
	Attributes []ata.Attribute
	// LifeFailed is set when the life attribute decoded from its raw value
	// reached zero.
	LifeFailed bool
	Caution    CautionThresholds
}

var virtualPlatforms = []string{
	"PARALLELS", "VMWARE", "QEMU", "VBOX", "VIRTUALBOX", "VIRTUAL HD", "XEN", "MSFT VIRTUAL",
}

// Virtualized reports whether a model string names an emulated disk.
func Virtualized(model string) bool {
	upper := strings.ToUpper(model)
	for _, v := range virtualPlatforms {
		if strings.Contains(upper, v) {
			return true
		}
	}
	return false
}

// Evaluate is a pure function of its input.
func Evaluate(in Input) Status {
	if in.NVMe {
		return evaluateNVMe(in)
	}
	return evaluateATA(in)
}

func evaluateNVMe(in Input) Status {
	switch {
	case Virtualized(in.Model):
		return Unknown
	case in.CriticalWarning > 0:
		return Bad
	case in.AvailableSpare < in.AvailableSpareThreshold:
		return Bad
	case in.AvailableSpare == in.AvailableSpareThreshold && in.AvailableSpareThreshold != 100:
		return Caution
	case in.Life > 0:
		return Good
	}
	return Caution
}

func evaluateATA(in Input) Status {
	if !in.Correct || (!in.SSD && !in.ThresholdCorrect) || in.ThresholdBug {
		return Unknown
	}

	errs, caution := 0, 0
	flagUnknown := true

	for _, a := range in.Attributes {
		if in.SSD && a.Threshold != 0 {
			flagUnknown = false
		}
		if !in.SSD && isSectorAttribute(a.ID) {
			flagUnknown = false
		}

		if CountsAsError(a, in.Profile) && a.Current < a.Threshold {
			errs++
		}
		if sectorCaution(a, in.Caution) {
			caution++
		}
	}
	if in.LifeFailed {
		errs++
	}

	switch {
	case errs > 0:
		return Bad
	case flagUnknown:
		return Unknown
	case caution > 0:
		return Caution
	}
	return Good
}

func isSectorAttribute(id uint8) bool {
	return id == 0x05 || id == 0xC5 || id == 0xC6
}

func sectorCaution(a ata.Attribute, th CautionThresholds) bool {
	raw := a.RawValue() & 0xFFFFFFFF
	var limit uint64
	switch a.ID {
	case 0x05:
		limit = th.Reallocated
	case 0xC5:
		limit = th.Pending
	case 0xC6:
		limit = th.Uncorrectable
	default:
		return false
	}
	return limit != 0 && raw >= limit
}

// errorRanges is the allow-list of IDs whose threshold crossing marks a disk
// bad.
var errorRanges = [][2]uint8{
	{0x01, 0x0D},
	{0xB8, 0xB8},
	{0xBB, 0xBD},
	{0xBF, 0xC1},
	{0xC3, 0xD1},
	{0xD3, 0xD4},
	{0xDC, 0xE4},
	{0xE6, 0xE9},
	{0xF0, 0xF0},
	{0xFA, 0xFA},
	{0xFE, 0xFE},
}

// CountsAsError reports whether a threshold crossing of a counts towards a
// Bad rating under profile p.
func CountsAsError(a ata.Attribute, p vendor.Profile) bool {
	switch {
	case a.ID == 0xC2:
		return false
	case a.ID == 0x01 && p.Vendor == vendor.SandForce && a.RawZero():
		return false
	case a.ID == 0xE8 && p.Life&vendor.LifeSanDiskUsbMemory != 0:
		return false
	}
	for _, r := range errorRanges {
		if a.ID >= r[0] && a.ID <= r[1] {
			return true
		}
	}
	return false
}
