// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package normalize

import (
	"math"
	"time"

	"github.com/cobaltcore-dev/diskprobe/pkg/smart/vendor"
)

// MinInferenceWindow is the shortest wall clock span over which counter
// growth is trusted.
const MinInferenceWindow = 30 * time.Minute

// InferPowerOnUnit picks the counter unit whose tick rate is closest to the
// growth observed between two samples. It fails when the window is too short,
// the counter did not move, or no unit is within a factor of 1.4.
func InferPowerOnUnit(prevRaw, curRaw uint64, elapsed time.Duration) (vendor.PowerOnUnit, bool) {
	if elapsed < MinInferenceWindow || curRaw <= prevRaw {
		return vendor.PowerOnHours, false
	}

	observed := float64(curRaw-prevRaw) / elapsed.Hours()
	best, bestDist := vendor.PowerOnHours, math.Inf(1)
	for _, u := range vendor.PowerOnUnits {
		d := math.Abs(math.Log(observed / float64(u.TicksPerHour())))
		if d < bestDist {
			best, bestDist = u, d
		}
	}
	if bestDist > math.Log(1.4) {
		return vendor.PowerOnHours, false
	}
	return best, true
}
