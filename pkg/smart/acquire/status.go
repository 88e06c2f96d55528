// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package acquire

import (
	"strings"

	"github.com/cobaltcore-dev/diskprobe/pkg/smart/ata"
)

// Status describes how far SMART acquisition got for a device.
type Status uint8

const (
	Supported Status = 1 << iota
	Enabled
	// Correct is set iff two reads of the attribute table returned the same
	// ID sequence.
	Correct
	ThresholdCorrect
	// ThresholdBug marks a bridge that returned the attribute page in answer
	// to the threshold read.
	ThresholdBug
)

// Has reports whether every flag in f is set.
func (s Status) Has(f Status) bool { return s&f == f }

func (s Status) String() string {
	if s == 0 {
		return "none"
	}
	names := []struct {
		flag Status
		name string
	}{
		{Supported, "supported"},
		{Enabled, "enabled"},
		{Correct, "correct"},
		{ThresholdCorrect, "threshold_correct"},
		{ThresholdBug, "threshold_bug"},
	}
	var parts []string
	for _, n := range names {
		if s&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ConsistencyCheck is true iff a and b have the same length and the same
// IDs in the same order. Values are not compared.
func ConsistencyCheck(a, b []ata.Attribute) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
