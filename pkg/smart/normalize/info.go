// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package normalize turns raw SMART records into vendor independent metrics.
package normalize

import (
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/ata"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/health"
)

// LifeUnknown is the sentinel for a device without a usable life value.
const LifeUnknown = -1

// Info is the normalized metric set of one device. It is rebuilt on every
// poll.
type Info struct {
	// Temperature is in Celsius, nil when not reported or implausible.
	Temperature *int `json:"temperature,omitempty"`
	// Life is the remaining endurance in percent, or LifeUnknown.
	Life int `json:"life"`
	// LifeFailed is set when a raw decoded life value reached zero.
	LifeFailed bool `json:"life_failed,omitempty"`

	HostReads         uint64 `json:"host_reads_gb"`
	HostWrites        uint64 `json:"host_writes_gb"`
	NandWrites        uint64 `json:"nand_writes_gb"`
	GBytesErased      uint64 `json:"gbytes_erased"`
	WearLevelingCount uint64 `json:"wear_leveling_count"`

	PowerOnCount uint64 `json:"power_on_count"`
	// PowerOnRaw is the unscaled power-on counter.
	PowerOnRaw           uint64 `json:"power_on_raw"`
	DetectedPowerOnHours uint64 `json:"detected_power_on_hours"`
	// MeasuredPowerOnHours is 0 until the counter unit has been inferred
	// from its growth.
	MeasuredPowerOnHours uint64 `json:"measured_power_on_hours"`

	// NVMe health log fields.
	CriticalWarning         uint8  `json:"critical_warning,omitempty"`
	AvailableSpare          uint8  `json:"available_spare,omitempty"`
	AvailableSpareThreshold uint8  `json:"available_spare_threshold,omitempty"`
	PercentageUsed          uint8  `json:"percentage_used,omitempty"`
	MediaErrors             uint64 `json:"media_errors,omitempty"`
	UnsafeShutdowns         uint64 `json:"unsafe_shutdowns,omitempty"`

	DiskStatus health.Status   `json:"disk_status"`
	Attributes []ata.Attribute `json:"-"`
}

// NewInfo returns an Info in its reset state.
func NewInfo() Info {
	return Info{Life: LifeUnknown}
}

// ClampLife maps values outside [0,100] to LifeUnknown.
func ClampLife(v int64) int {
	if v < 0 || v > 100 {
		return LifeUnknown
	}
	return int(v)
}

// ClampTemperature returns nil for values at or below absolute zero and at
// or above 100 degrees.
func ClampTemperature(c int) *int {
	if c <= -273 || c >= 100 {
		return nil
	}
	return &c
}
