// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/cobaltcore-dev/diskprobe/pkg/producers/diskhealthmetrics"
)

func StartProducers(producer ProducerConfig, globalConfig GlobalConfig, wg *sync.WaitGroup) {
	defer wg.Done()

	switch producer.Type {
	case "disk_health_metrics":
		settings := DiskHealthMetricsSettings(producer, globalConfig)
		log.Info().Str("name", producer.Name).Msg("--- disk health metrics ---")
		diskhealthmetrics.StartMonitoring(settings)
	default:
		log.Warn().Msgf("unknown producer type: %s", producer.Type)
	}
}

// DiskHealthMetricsSettings builds the producer configuration from the
// settings map, falling back to the global block and the defaults.
func DiskHealthMetricsSettings(producer ProducerConfig, globalConfig GlobalConfig) diskhealthmetrics.DiskHealthMetricsConfig {
	s := producer.Settings
	def := diskhealthmetrics.DefaultConfig()

	natsURL := GetStringSetting(s, "nats_url", globalConfig.NatsURL)
	return diskhealthmetrics.DiskHealthMetricsConfig{
		NatsURL:                       natsURL,
		NatsSubject:                   GetStringSetting(s, "nats_subject", def.NatsSubject),
		UseNats:                       natsURL != "",
		Prometheus:                    GetBoolSetting(s, "prometheus", false),
		PrometheusPort:                GetIntSetting(s, "prometheus_port", def.PrometheusPort),
		Disks:                         GetStringSliceSetting(s, "disks", def.Disks),
		Interval:                      GetIntSetting(s, "interval", def.Interval),
		NodeName:                      GetStringSetting(s, "node_name", globalConfig.NodeName),
		InstanceID:                    GetStringSetting(s, "instance_id", globalConfig.InstanceID),
		IncludeZeroLife:               GetBoolSetting(s, "include_zero_life", false),
		ReallocatedSectorsThreshold:   uint64(GetIntSetting(s, "reallocated_sectors_threshold", int(def.ReallocatedSectorsThreshold))),
		PendingSectorsThreshold:       uint64(GetIntSetting(s, "pending_sectors_threshold", int(def.PendingSectorsThreshold))),
		UncorrectableSectorsThreshold: uint64(GetIntSetting(s, "uncorrectable_sectors_threshold", int(def.UncorrectableSectorsThreshold))),
		LifeRemainingThreshold:        GetIntSetting(s, "life_remaining_threshold", def.LifeRemainingThreshold),
		ReplayDir:                     GetStringSetting(s, "replay_dir", ""),
		HistoryDBPath:                 GetStringSetting(s, "history_db", ""),
		HistoryRetention:              GetDurationSetting(s, "history_retention", def.HistoryRetention),
		S3Bucket:                      GetStringSetting(s, "s3_bucket", ""),
		S3Prefix:                      GetStringSetting(s, "s3_prefix", ""),
		S3Endpoint:                    GetStringSetting(s, "s3_endpoint", ""),
		S3Region:                      GetStringSetting(s, "s3_region", ""),
		S3AccessKey:                   GetStringSetting(s, "s3_access_key", globalConfig.AccessKey),
		S3SecretKey:                   GetStringSetting(s, "s3_secret_key", globalConfig.SecretKey),
		S3EveryNPolls:                 GetIntSetting(s, "s3_every_n_polls", def.S3EveryNPolls),
		RescanSchedule:                GetStringSetting(s, "rescan_schedule", def.RescanSchedule),
		WatchPath:                     GetStringSetting(s, "watch_path", def.WatchPath),
		APIAddress:                    GetStringSetting(s, "api_address", ""),
		CephOSDBasePath:               GetStringSetting(s, "ceph_osd_base_path", ""),
	}
}
