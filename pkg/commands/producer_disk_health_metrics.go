// Copyright 2024 Clyso GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cobaltcore-dev/diskprobe/pkg/producers/diskhealthmetrics"
)

var (
	dhmNatsURL                       string
	dhmNatsSubject                   string
	dhmPromEnabled                   bool
	dhmPromPort                      int
	dhmDisksFlag                     string
	dhmNodeName                      string
	dhmInstanceID                    string
	dhmIncludeZeroLife               bool
	dhmInterval                      int
	dhmReallocatedSectorsThreshold   uint64
	dhmPendingSectorsThreshold       uint64
	dhmUncorrectableSectorsThreshold uint64
	dhmLifeRemainingThreshold        int
	dhmReplayDir                     string
	dhmHistoryDB                     string
	dhmHistoryRetention              time.Duration
	dhmS3Bucket                      string
	dhmS3Prefix                      string
	dhmS3Endpoint                    string
	dhmS3Region                      string
	dhmS3EveryNPolls                 int
	dhmRescanSchedule                string
	dhmWatchPath                     string
	dhmAPIAddress                    string
	dhmCephOSDBasePath               string
)

var diskHealthMetricsCmd = &cobra.Command{
	Use:   "disk-health-metrics",
	Short: "Disk health metrics collector reading SMART data directly from the devices",
	Run: func(cmd *cobra.Command, args []string) {
		config := diskhealthmetrics.DiskHealthMetricsConfig{
			NatsURL:                       dhmNatsURL,
			NatsSubject:                   dhmNatsSubject,
			Prometheus:                    dhmPromEnabled,
			PrometheusPort:                dhmPromPort,
			Disks:                         splitDisks(dhmDisksFlag),
			NodeName:                      dhmNodeName,
			InstanceID:                    dhmInstanceID,
			IncludeZeroLife:               dhmIncludeZeroLife,
			Interval:                      dhmInterval,
			ReallocatedSectorsThreshold:   dhmReallocatedSectorsThreshold,
			PendingSectorsThreshold:       dhmPendingSectorsThreshold,
			UncorrectableSectorsThreshold: dhmUncorrectableSectorsThreshold,
			LifeRemainingThreshold:        dhmLifeRemainingThreshold,
			ReplayDir:                     dhmReplayDir,
			HistoryDBPath:                 dhmHistoryDB,
			HistoryRetention:              dhmHistoryRetention,
			S3Bucket:                      dhmS3Bucket,
			S3Prefix:                      dhmS3Prefix,
			S3Endpoint:                    dhmS3Endpoint,
			S3Region:                      dhmS3Region,
			S3EveryNPolls:                 dhmS3EveryNPolls,
			RescanSchedule:                dhmRescanSchedule,
			WatchPath:                     dhmWatchPath,
			APIAddress:                    dhmAPIAddress,
			CephOSDBasePath:               dhmCephOSDBasePath,
		}

		config = mergeDiskHealthMetricsConfigWithEnv(config)

		config.UseNats = config.NatsURL != ""

		event := log.Info()
		event.Bool("use_nats", config.UseNats)
		if config.UseNats {
			event.Str("nats_url", config.NatsURL)
			event.Str("nats_subject", config.NatsSubject)
		}

		event.Bool("prometheus_enabled", config.Prometheus)
		if config.Prometheus {
			event.Int("prometheus_port", config.PrometheusPort)
		}
		if config.ReplayDir != "" {
			event.Str("replay_dir", config.ReplayDir)
		}
		if config.HistoryDBPath != "" {
			event.Str("history_db", config.HistoryDBPath).Dur("history_retention", config.HistoryRetention)
		}
		if config.S3Bucket != "" {
			event.Str("s3_bucket", config.S3Bucket).Int("s3_every_n_polls", config.S3EveryNPolls)
		}

		event.Str("disks", fmt.Sprintf("%v", config.Disks)).
			Str("node_name", config.NodeName).
			Str("instance_id", config.InstanceID).
			Int("interval_seconds", config.Interval).
			Str("rescan_schedule", config.RescanSchedule)
		// Finalize the log message with the main message

		event.Msg("configuration_loaded")

		diskhealthmetrics.StartMonitoring(config)
	},
}

func splitDisks(s string) []string {
	var disks []string
	for _, d := range strings.Split(s, ",") {
		if d = strings.TrimSpace(d); d != "" {
			disks = append(disks, d)
		}
	}
	return disks
}

func mergeDiskHealthMetricsConfigWithEnv(cfg diskhealthmetrics.DiskHealthMetricsConfig) diskhealthmetrics.DiskHealthMetricsConfig {
	cfg.NatsURL = getEnv("NATS_URL", cfg.NatsURL)
	cfg.NatsSubject = getEnv("NATS_SUBJECT", cfg.NatsSubject)
	cfg.Prometheus = getEnvBool("PROMETHEUS", cfg.Prometheus)
	cfg.PrometheusPort = getEnvInt("PROMETHEUS_PORT", cfg.PrometheusPort)
	if disksEnv := getEnv("DISKS", ""); disksEnv != "" {
		cfg.Disks = splitDisks(disksEnv)
	}
	cfg.NodeName = getEnv("NODE_NAME", cfg.NodeName)
	cfg.InstanceID = getEnv("INSTANCE_ID", cfg.InstanceID)
	cfg.IncludeZeroLife = getEnvBool("INCLUDE_ZERO_LIFE", cfg.IncludeZeroLife)
	cfg.Interval = getEnvInt("INTERVAL", cfg.Interval)
	cfg.ReallocatedSectorsThreshold = getEnvUint64("REALLOCATED_SECTORS_THRESHOLD", cfg.ReallocatedSectorsThreshold)
	cfg.PendingSectorsThreshold = getEnvUint64("PENDING_SECTORS_THRESHOLD", cfg.PendingSectorsThreshold)
	cfg.UncorrectableSectorsThreshold = getEnvUint64("UNCORRECTABLE_SECTORS_THRESHOLD", cfg.UncorrectableSectorsThreshold)
	cfg.LifeRemainingThreshold = getEnvInt("LIFE_REMAINING_THRESHOLD", cfg.LifeRemainingThreshold)
	cfg.ReplayDir = getEnv("REPLAY_DIR", cfg.ReplayDir)
	cfg.HistoryDBPath = getEnv("HISTORY_DB", cfg.HistoryDBPath)
	cfg.HistoryRetention = getEnvDuration("HISTORY_RETENTION", cfg.HistoryRetention)
	cfg.S3Bucket = getEnv("S3_BUCKET", cfg.S3Bucket)
	cfg.S3Prefix = getEnv("S3_PREFIX", cfg.S3Prefix)
	cfg.S3Endpoint = getEnv("S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3Region = getEnv("S3_REGION", cfg.S3Region)
	cfg.S3AccessKey = getEnv("S3_ACCESS_KEY", cfg.S3AccessKey)
	cfg.S3SecretKey = getEnv("S3_SECRET_KEY", cfg.S3SecretKey)
	cfg.S3EveryNPolls = getEnvInt("S3_EVERY_N_POLLS", cfg.S3EveryNPolls)
	cfg.RescanSchedule = getEnv("RESCAN_SCHEDULE", cfg.RescanSchedule)
	cfg.WatchPath = getEnv("WATCH_PATH", cfg.WatchPath)
	cfg.APIAddress = getEnv("API_ADDRESS", cfg.APIAddress)
	cfg.CephOSDBasePath = getEnv("CEPH_OSD_BASE_PATH", cfg.CephOSDBasePath)

	return cfg
}

func init() {
	def := diskhealthmetrics.DefaultConfig()

	diskHealthMetricsCmd.Flags().StringVar(&dhmNatsURL, "nats-url", "", "NATS server URL")
	diskHealthMetricsCmd.Flags().StringVar(&dhmNatsSubject, "nats-subject", def.NatsSubject, "NATS subject to publish health events")
	diskHealthMetricsCmd.Flags().BoolVar(&dhmPromEnabled, "prometheus", false, "Enable Prometheus metrics")
	diskHealthMetricsCmd.Flags().IntVar(&dhmPromPort, "prometheus-port", def.PrometheusPort, "Prometheus metrics port")
	diskHealthMetricsCmd.Flags().StringVar(&dhmDisksFlag, "disks", diskhealthmetrics.DiscoverAll, "Comma separated list of disks to monitor, * discovers all disks")
	diskHealthMetricsCmd.Flags().StringVar(&dhmNodeName, "node-name", "", "Name of the node")
	diskHealthMetricsCmd.Flags().StringVar(&dhmInstanceID, "instance-id", "", "Instance ID")
	diskHealthMetricsCmd.Flags().BoolVar(&dhmIncludeZeroLife, "include-zero-life", false, "Export a remaining life of 0 even when it was not decoded from a raw counter")
	diskHealthMetricsCmd.Flags().IntVar(&dhmInterval, "interval", def.Interval, "Interval in seconds between SMART reads")
	diskHealthMetricsCmd.Flags().Uint64Var(&dhmReallocatedSectorsThreshold, "reallocated-sectors-threshold", def.ReallocatedSectorsThreshold, "Reallocated sectors count that rates a disk caution, 0 disables")
	diskHealthMetricsCmd.Flags().Uint64Var(&dhmPendingSectorsThreshold, "pending-sectors-threshold", def.PendingSectorsThreshold, "Pending sectors count that rates a disk caution, 0 disables")
	diskHealthMetricsCmd.Flags().Uint64Var(&dhmUncorrectableSectorsThreshold, "uncorrectable-sectors-threshold", def.UncorrectableSectorsThreshold, "Uncorrectable sectors count that rates a disk caution, 0 disables")
	diskHealthMetricsCmd.Flags().IntVar(&dhmLifeRemainingThreshold, "life-remaining-threshold", def.LifeRemainingThreshold, "Remaining SSD life in percent that triggers a lifetime alert")
	diskHealthMetricsCmd.Flags().StringVar(&dhmReplayDir, "replay-dir", "", "Serve recorded YAML fixtures from this directory instead of real devices")
	diskHealthMetricsCmd.Flags().StringVar(&dhmHistoryDB, "history-db", "", "Path of the SQLite history database")
	diskHealthMetricsCmd.Flags().DurationVar(&dhmHistoryRetention, "history-retention", def.HistoryRetention, "How long history rows are kept")
	diskHealthMetricsCmd.Flags().StringVar(&dhmS3Bucket, "s3-bucket", "", "S3 bucket for report snapshots")
	diskHealthMetricsCmd.Flags().StringVar(&dhmS3Prefix, "s3-prefix", "", "Key prefix for report snapshots")
	diskHealthMetricsCmd.Flags().StringVar(&dhmS3Endpoint, "s3-endpoint", "", "S3 endpoint URL for non-AWS object stores")
	diskHealthMetricsCmd.Flags().StringVar(&dhmS3Region, "s3-region", "", "S3 region")
	diskHealthMetricsCmd.Flags().IntVar(&dhmS3EveryNPolls, "s3-every-n-polls", def.S3EveryNPolls, "Upload a snapshot every N polls")
	diskHealthMetricsCmd.Flags().StringVar(&dhmRescanSchedule, "rescan-schedule", def.RescanSchedule, "Cron schedule for full device rescans, empty disables")
	diskHealthMetricsCmd.Flags().StringVar(&dhmWatchPath, "watch-path", def.WatchPath, "Directory watched for disk hot-plug")
	diskHealthMetricsCmd.Flags().StringVar(&dhmAPIAddress, "api-address", "", "Listen address of the HTTP API, defaults to the Prometheus port")
	diskHealthMetricsCmd.Flags().StringVar(&dhmCephOSDBasePath, "ceph-osd-base-path", "", "Ceph OSD data directory used to label disks with their OSD ID")
}
