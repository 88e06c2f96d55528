// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package diskhealthmetrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cobaltcore-dev/diskprobe/pkg/smart"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/health"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/normalize"
)

func promReport(device string) DeviceReport {
	temp := 41
	info := normalize.NewInfo()
	info.Life = 88
	info.Temperature = &temp
	info.HostWrites = 1200
	info.DetectedPowerOnHours = 500
	info.MeasuredPowerOnHours = 480
	return DeviceReport{
		NodeName:   "node-1",
		InstanceID: "i-1",
		Device:     device,
		Identified: true,
		Identity:   smart.Identity{Model: "SAMSUNG MZ-V7E500", Serial: "S3Z2", SSD: true},
		Health:     health.Caution,
		Metrics:    info,
		Attributes: []ReportAttribute{
			{ID: 0x05, Key: "Reallocated_Sector_Ct", Current: 100, Worst: 99, Raw: 3},
			{ID: 0xC2, Key: "Temperature_Celsius", Current: 59, Worst: 40, Raw: 41},
		},
	}
}

func diskLabelSet(device string) prometheus.Labels {
	return prometheus.Labels{"disk": device, "node": "node-1", "instance": "i-1"}
}

func TestPublishToPrometheus(t *testing.T) {
	device := "promtest0"
	defer deleteDiskMetrics(device)
	labels := diskLabelSet(device)

	PublishToPrometheus([]DeviceReport{promReport(device)}, DefaultConfig())

	assert.Equal(t, float64(health.Caution), testutil.ToFloat64(healthStatusGauge.With(labels)))
	assert.Equal(t, 88.0, testutil.ToFloat64(lifeRemainingGauge.With(labels)))
	assert.Equal(t, 41.0, testutil.ToFloat64(temperatureGauge.With(labels)))
	assert.Equal(t, 1200.0, testutil.ToFloat64(hostWritesGauge.With(labels)))
	assert.Equal(t, 480.0, testutil.ToFloat64(powerOnHoursGauge.With(labels)))

	raw := attributeRawGauge.With(prometheus.Labels{
		"disk": device, "node": "node-1", "instance": "i-1", "id": "5", "attribute": "Reallocated_Sector_Ct",
	})
	assert.Equal(t, 3.0, testutil.ToFloat64(raw))
}

func TestPublishToPrometheusDropsStaleSeries(t *testing.T) {
	device := "promtest1"
	defer deleteDiskMetrics(device)
	labels := diskLabelSet(device)

	PublishToPrometheus([]DeviceReport{promReport(device)}, DefaultConfig())
	before := testutil.CollectAndCount(attributeCurrentGauge)

	r := promReport(device)
	r.Metrics.Life = normalize.LifeUnknown
	r.Metrics.Temperature = nil
	r.Attributes = r.Attributes[:1]
	PublishToPrometheus([]DeviceReport{r}, DefaultConfig())

	assert.Equal(t, before-1, testutil.CollectAndCount(attributeCurrentGauge))
	assert.False(t, lifeRemainingGauge.Delete(labels), "life series is removed once unknown")
	assert.False(t, temperatureGauge.Delete(labels))
}

func TestPublishToPrometheusUnidentified(t *testing.T) {
	device := "promtest2"
	defer deleteDiskMetrics(device)

	before := testutil.CollectAndCount(deviceInfoGauge)
	PublishToPrometheus([]DeviceReport{{Device: device, NodeName: "node-1", InstanceID: "i-1"}}, DefaultConfig())
	assert.Equal(t, float64(health.Unknown), testutil.ToFloat64(healthStatusGauge.With(diskLabelSet(device))))
	assert.Equal(t, before, testutil.CollectAndCount(deviceInfoGauge))
}

func TestPrometheusSinkForget(t *testing.T) {
	device := "promtest3"
	sink := prometheusSink{cfg: DefaultConfig()}
	require.NoError(t, sink.Publish(context.Background(), []DeviceReport{promReport(device)}))

	sink.Forget(device)
	assert.Zero(t, deleteDiskMetrics(device))
}

func TestPowerOnHours(t *testing.T) {
	assert.Equal(t, uint64(10), powerOnHours(10, 0))
	assert.Equal(t, uint64(12), powerOnHours(10, 12))
}
