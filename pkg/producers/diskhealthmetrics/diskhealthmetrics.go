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

package diskhealthmetrics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const rescanDebounce = 2 * time.Second

// stdoutSink prints every poll round as JSON when NATS is disabled.
type stdoutSink struct {
	w io.Writer
}

func (s stdoutSink) Publish(_ context.Context, reports []DeviceReport) error {
	metricsJSON, err := json.Marshal(reports)
	if err != nil {
		return fmt.Errorf("error marshalling metrics to json: %w", err)
	}
	_, err = fmt.Fprintln(s.w, string(metricsJSON))
	return err
}

func StartMonitoring(cfg DiskHealthMetricsConfig) {
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.ReplayDir == "" && IsVirtualized() {
		log.Warn().Msg("host runs on a hypervisor, virtual disks usually report no SMART data")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		sinks   []Sink
		history *HistoryStore
	)

	if cfg.Prometheus {
		sinks = append(sinks, prometheusSink{cfg: cfg})
	}

	if cfg.UseNats {
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			log.Fatal().Err(err).Msg("error connecting to nats")
		}
		defer nc.Close()
		log.Info().Str("nats_url", cfg.NatsURL).Msg("connected to nats server")
		sinks = append(sinks, newNatsSink(nc, cfg))
	} else {
		sinks = append(sinks, stdoutSink{w: os.Stdout})
	}

	if cfg.HistoryDBPath != "" {
		var err error
		history, err = NewHistoryStore(cfg.HistoryDBPath, cfg.HistoryRetention)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.HistoryDBPath).Msg("error opening history store")
		}
		defer history.Close()
		sinks = append(sinks, history)
	}

	if cfg.S3Bucket != "" {
		archiver, err := NewS3Archiver(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("error configuring s3 archive")
		}
		sinks = append(sinks, archiver)
	}

	opts := []InventoryOption{WithSinks(sinks...)}
	if history != nil {
		opts = append(opts, WithPowerOnSeeder(history))
	}
	inv := NewInventory(cfg, opts...)
	defer inv.Close()

	if _, _, err := inv.Rescan(ctx); err != nil {
		log.Fatal().Err(err).Msg("error discovering devices")
	}
	if inv.Len() == 0 {
		log.Warn().Msg("no devices identified for monitoring, waiting for rescan")
	}
	log.Info().Strs("devices", inv.Devices()).Msg("devices for monitoring")

	rs := newRescanner(inv, rescanDebounce)
	go rs.Run(ctx)

	if cfg.ReplayDir == "" && cfg.Discovery() && cfg.WatchPath != "" {
		if err := watchDevices(ctx, cfg.WatchPath, rs.Trigger); err != nil {
			log.Error().Err(err).Msg("device hotplug detection disabled")
		}
	}
	if cfg.RescanSchedule != "" {
		c, err := startSchedule(cfg.RescanSchedule, rs.Trigger)
		if err != nil {
			log.Fatal().Err(err).Msg("error scheduling rescan")
		}
		defer c.Stop()
	}

	if cfg.Prometheus || cfg.APIAddress != "" {
		addr := cfg.APIAddress
		if addr == "" {
			addr = fmt.Sprintf(":%d", cfg.PrometheusPort)
		}
		go func() {
			if err := Serve(ctx, addr, NewRouter(inv, history, rs.Trigger)); err != nil {
				log.Fatal().Err(err).Msg("error starting api server")
			}
		}()
	}

	ticker := time.NewTicker(cfg.PollInterval())
	defer ticker.Stop()

	inv.PollAll(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping disk health monitoring")
			return
		case <-ticker.C:
			inv.PollAll(ctx)
		}
	}
}
