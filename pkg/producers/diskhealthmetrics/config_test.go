// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package diskhealthmetrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Discovery())
	assert.Equal(t, time.Minute, cfg.PollInterval())

	c := cfg.Caution()
	assert.Equal(t, uint64(1), c.Reallocated)
	assert.Equal(t, uint64(1), c.Pending)
	assert.Equal(t, uint64(1), c.Uncorrectable)
}

func TestConfigDiscovery(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Disks = []string{"/dev/sda", "/dev/nvme0n1"}
	assert.False(t, cfg.Discovery())

	cfg = DefaultConfig()
	cfg.ReplayDir = "testdata/replay"
	assert.False(t, cfg.Discovery())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DiskHealthMetricsConfig)
		errMsg string
	}{
		{"zero interval", func(c *DiskHealthMetricsConfig) { c.Interval = 0 }, "interval must be positive"},
		{"no disks", func(c *DiskHealthMetricsConfig) { c.Disks = nil }, "disks must list devices"},
		{"nats without subject", func(c *DiskHealthMetricsConfig) { c.UseNats = true; c.NatsSubject = "" }, "nats subject"},
		{"bad port", func(c *DiskHealthMetricsConfig) { c.Prometheus = true; c.PrometheusPort = 70000 }, "invalid prometheus port"},
		{"life threshold", func(c *DiskHealthMetricsConfig) { c.LifeRemainingThreshold = 101 }, "life threshold"},
		{"cron", func(c *DiskHealthMetricsConfig) { c.RescanSchedule = "every hour" }, "rescan schedule"},
		{"s3 period", func(c *DiskHealthMetricsConfig) { c.S3Bucket = "b"; c.S3EveryNPolls = 0 }, "s3 upload period"},
		{"s3 half credentials", func(c *DiskHealthMetricsConfig) { c.S3AccessKey = "key" }, "secret key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfigValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = -1
	cfg.LifeRemainingThreshold = -5
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interval")
	assert.Contains(t, err.Error(), "life threshold")
}

func TestConfigReplayWithoutDisks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Disks = nil
	cfg.ReplayDir = "testdata/replay"
	assert.NoError(t, cfg.Validate())
}
