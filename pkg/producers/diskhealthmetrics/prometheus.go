// Copyright (C) 2024 Clyso GmbH
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package diskhealthmetrics

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	diskLabels      = []string{"disk", "node", "instance"}
	attributeLabels = []string{"disk", "node", "instance", "id", "attribute"}

	healthStatusGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "disk_health_status",
			Help: "Disk health rating: 0 unknown, 1 good, 2 caution, 3 bad",
		},
		diskLabels,
	)

	deviceInfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "disk_device_info",
			Help: "Identity of the disk, always 1",
		},
		[]string{"disk", "node", "instance", "model", "serial", "firmware", "vendor", "dialect", "profile", "media", "osd_id"},
	)

	lifeRemainingGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "disk_life_remaining_percent",
			Help: "Remaining SSD life in percent",
		},
		diskLabels,
	)

	temperatureGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "disk_temperature_celsius",
			Help: "Disk temperature in Celsius",
		},
		diskLabels,
	)

	hostReadsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "disk_host_reads_gigabytes",
			Help: "Host reads in GB",
		},
		diskLabels,
	)

	hostWritesGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "disk_host_writes_gigabytes",
			Help: "Host writes in GB",
		},
		diskLabels,
	)

	nandWritesGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "disk_nand_writes_gigabytes",
			Help: "NAND writes in GB",
		},
		diskLabels,
	)

	powerOnHoursGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "disk_power_on_hours",
			Help: "Number of hours the disk has been powered on",
		},
		diskLabels,
	)

	powerCyclesGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "disk_power_cycles",
			Help: "Number of power on/off cycles",
		},
		diskLabels,
	)

	diskCapacityGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "disk_capacity_gb",
			Help: "Capacity of the disk in GB",
		},
		diskLabels,
	)

	nvmeSpareGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nvme_available_spare_percent",
			Help: "NVMe available spare in percent",
		},
		diskLabels,
	)

	nvmeMediaErrorsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nvme_media_errors",
			Help: "NVMe media and data integrity errors",
		},
		diskLabels,
	)

	attributeCurrentGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smart_attribute_current",
			Help: "Normalized current value of a SMART attribute",
		},
		attributeLabels,
	)

	attributeWorstGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smart_attribute_worst",
			Help: "Worst normalized value of a SMART attribute",
		},
		attributeLabels,
	)

	attributeRawGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smart_attribute_raw",
			Help: "Raw value of a SMART attribute",
		},
		attributeLabels,
	)

	diskGauges = []*prometheus.GaugeVec{
		healthStatusGauge, deviceInfoGauge, lifeRemainingGauge, temperatureGauge,
		hostReadsGauge, hostWritesGauge, nandWritesGauge, powerOnHoursGauge,
		powerCyclesGauge, diskCapacityGauge, nvmeSpareGauge, nvmeMediaErrorsGauge,
		attributeCurrentGauge, attributeWorstGauge, attributeRawGauge,
	}
)

func init() {
	for _, g := range diskGauges {
		prometheus.MustRegister(g)
	}
}

// PublishToPrometheus sets the gauges of every report.
func PublishToPrometheus(reports []DeviceReport, cfg DiskHealthMetricsConfig) {
	for _, r := range reports {
		labels := prometheus.Labels{
			"disk":     r.Device,
			"node":     r.NodeName,
			"instance": r.InstanceID,
		}
		healthStatusGauge.With(labels).Set(float64(r.Health))

		if !r.Identified {
			continue
		}
		media := "hdd"
		switch {
		case r.Identity.NVMe:
			media = "nvme"
		case r.Identity.SSD:
			media = "ssd"
		}
		// identity labels may change after a re-identification
		deviceInfoGauge.DeletePartialMatch(labels)
		deviceInfoGauge.With(prometheus.Labels{
			"disk":     r.Device,
			"node":     r.NodeName,
			"instance": r.InstanceID,
			"model":    r.Identity.Model,
			"serial":   r.Identity.Serial,
			"firmware": r.Identity.Firmware,
			"vendor":   r.Vendor,
			"dialect":  r.Identity.Dialect.String(),
			"profile":  r.Profile,
			"media":    media,
			"osd_id":   r.OSDID,
		}).Set(1)
		diskCapacityGauge.With(labels).Set(float64(r.Identity.CapacityGB))

		m := r.Metrics
		if lifeExported(m, cfg.IncludeZeroLife) {
			lifeRemainingGauge.With(labels).Set(float64(m.Life))
		} else {
			lifeRemainingGauge.Delete(labels)
		}
		if m.Temperature != nil {
			temperatureGauge.With(labels).Set(float64(*m.Temperature))
		} else {
			temperatureGauge.Delete(labels)
		}
		hostReadsGauge.With(labels).Set(float64(m.HostReads))
		hostWritesGauge.With(labels).Set(float64(m.HostWrites))
		nandWritesGauge.With(labels).Set(float64(m.NandWrites))
		powerOnHoursGauge.With(labels).Set(float64(powerOnHours(m.DetectedPowerOnHours, m.MeasuredPowerOnHours)))
		powerCyclesGauge.With(labels).Set(float64(m.PowerOnCount))

		if r.Identity.NVMe {
			nvmeSpareGauge.With(labels).Set(float64(m.AvailableSpare))
			nvmeMediaErrorsGauge.With(labels).Set(float64(m.MediaErrors))
		}

		for _, g := range []*prometheus.GaugeVec{attributeCurrentGauge, attributeWorstGauge, attributeRawGauge} {
			g.DeletePartialMatch(labels)
		}
		for _, a := range r.Attributes {
			al := prometheus.Labels{
				"disk":      r.Device,
				"node":      r.NodeName,
				"instance":  r.InstanceID,
				"id":        strconv.Itoa(int(a.ID)),
				"attribute": a.Key,
			}
			attributeCurrentGauge.With(al).Set(float64(a.Current))
			attributeWorstGauge.With(al).Set(float64(a.Worst))
			attributeRawGauge.With(al).Set(float64(a.Raw))
		}
	}
}

// powerOnHours prefers the measured value once the counter unit is known.
func powerOnHours(detected, measured uint64) uint64 {
	if measured != 0 {
		return measured
	}
	return detected
}

// deleteDiskMetrics drops every series of a device that left the inventory.
func deleteDiskMetrics(device string) int {
	n := 0
	for _, g := range diskGauges {
		n += g.DeletePartialMatch(prometheus.Labels{"disk": device})
	}
	return n
}

type prometheusSink struct {
	cfg DiskHealthMetricsConfig
}

func (s prometheusSink) Publish(_ context.Context, reports []DeviceReport) error {
	PublishToPrometheus(reports, s.cfg)
	return nil
}

func (s prometheusSink) Forget(device string) {
	deleteDiskMetrics(device)
}

func (s prometheusSink) String() string {
	return fmt.Sprintf("prometheus(:%d)", s.cfg.PrometheusPort)
}
