// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package diskhealthmetrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cobaltcore-dev/diskprobe/pkg/smart/health"
)

// DiscoverAll in Disks enables device discovery.
const DiscoverAll = "*"

type DiskHealthMetricsConfig struct {
	NatsURL        string
	NatsSubject    string
	UseNats        bool
	Prometheus     bool
	PrometheusPort int
	Disks          []string
	Interval       int // in seconds
	NodeName       string
	InstanceID     string

	// IncludeZeroLife keeps life=0 in exported gauges; otherwise a zero
	// life that was not decoded from a raw counter is left out.
	IncludeZeroLife bool

	// Caution counters for reallocated, pending and uncorrectable sectors.
	ReallocatedSectorsThreshold   uint64
	PendingSectorsThreshold       uint64
	UncorrectableSectorsThreshold uint64
	// NATS alert when remaining life drops to or below this percentage.
	LifeRemainingThreshold int

	// ReplayDir serves every *.yaml fixture in the directory instead of
	// real devices.
	ReplayDir string

	HistoryDBPath    string
	HistoryRetention time.Duration

	S3Bucket      string
	S3Prefix      string
	S3Endpoint    string
	S3Region      string
	S3AccessKey   string
	S3SecretKey   string
	S3EveryNPolls int

	RescanSchedule string
	WatchPath      string
	APIAddress     string

	// CephOSDBasePath is scanned for OSD directories, e.g. /var/lib/ceph/osd.
	CephOSDBasePath string
}

// DefaultConfig is what the command line defaults amount to.
func DefaultConfig() DiskHealthMetricsConfig {
	return DiskHealthMetricsConfig{
		NatsSubject:                   "osd.disk.health",
		PrometheusPort:                8080,
		Disks:                         []string{DiscoverAll},
		Interval:                      60,
		ReallocatedSectorsThreshold:   1,
		PendingSectorsThreshold:       1,
		UncorrectableSectorsThreshold: 1,
		LifeRemainingThreshold:        20,
		HistoryRetention:              30 * 24 * time.Hour,
		S3EveryNPolls:                 60,
		RescanSchedule:                "@every 1h",
		WatchPath:                     "/dev",
	}
}

func (c DiskHealthMetricsConfig) Caution() health.CautionThresholds {
	return health.CautionThresholds{
		Reallocated:   c.ReallocatedSectorsThreshold,
		Pending:       c.PendingSectorsThreshold,
		Uncorrectable: c.UncorrectableSectorsThreshold,
	}
}

func (c DiskHealthMetricsConfig) PollInterval() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// Discovery reports whether the device set comes from enumeration rather
// than an explicit list.
func (c DiskHealthMetricsConfig) Discovery() bool {
	return c.ReplayDir == "" && len(c.Disks) == 1 && c.Disks[0] == DiscoverAll
}

func (c DiskHealthMetricsConfig) Validate() error {
	var errs []error
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %d", c.Interval))
	}
	if c.ReplayDir == "" && len(c.Disks) == 0 {
		errs = append(errs, errors.New("disks must list devices or be \"*\""))
	}
	if c.UseNats && c.NatsSubject == "" {
		errs = append(errs, errors.New("nats subject is required when nats is enabled"))
	}
	if c.Prometheus && (c.PrometheusPort <= 0 || c.PrometheusPort > 65535) {
		errs = append(errs, fmt.Errorf("invalid prometheus port %d", c.PrometheusPort))
	}
	if c.LifeRemainingThreshold < 0 || c.LifeRemainingThreshold > 100 {
		errs = append(errs, fmt.Errorf("life threshold %d out of range", c.LifeRemainingThreshold))
	}
	if c.RescanSchedule != "" {
		if _, err := cron.ParseStandard(c.RescanSchedule); err != nil {
			errs = append(errs, fmt.Errorf("rescan schedule: %w", err))
		}
	}
	if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
		errs = append(errs, errors.New("s3 access key and secret key must be set together"))
	}
	if c.S3Bucket != "" && c.S3EveryNPolls <= 0 {
		errs = append(errs, errors.New("s3 upload period must be positive"))
	}
	return errors.Join(errs...)
}
