// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package diskhealthmetrics

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// diskNodePrefixes are /dev entries whose appearance warrants a rescan.
var diskNodePrefixes = []string{"sd", "nvme", "hd", "vd", "xvd"}

// rescanner coalesces rescan requests from the device watcher, the cron
// schedule and the API into debounced Inventory.Rescan calls.
type rescanner struct {
	inv      *Inventory
	trigger  chan struct{}
	debounce time.Duration
	logger   zerolog.Logger
}

func newRescanner(inv *Inventory, debounce time.Duration) *rescanner {
	return &rescanner{
		inv:      inv,
		trigger:  make(chan struct{}, 1),
		debounce: debounce,
		logger:   log.With().Str("component", "rescan").Logger(),
	}
}

// Trigger requests a rescan without blocking.
func (r *rescanner) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

func (r *rescanner) Run(ctx context.Context) {
	timer := time.NewTimer(r.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-r.trigger:
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(r.debounce)
			pending = true
		case <-timer.C:
			pending = false
			added, removed, err := r.inv.Rescan(ctx)
			if err != nil {
				r.logger.Error().Err(err).Msg("rescan_failed")
				continue
			}
			r.logger.Debug().Int("added", len(added)).Int("removed", len(removed)).Msg("rescan_done")
		}
	}
}

// watchDevices triggers a rescan whenever a disk node is created or removed
// in dir. It returns when ctx is done.
func watchDevices(ctx context.Context, dir string, trigger func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating device watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("error watching %s: %w", dir, err)
	}
	log.Info().Str("path", dir).Msg("started watching for device changes")

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					log.Warn().Msg("watcher events channel closed")
					return
				}
				if isDiskNodeEvent(event) {
					log.Debug().Str("event", event.String()).Msg("device_node_changed")
					trigger()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					log.Warn().Msg("watcher errors channel closed")
					return
				}
				log.Error().Err(err).Msg("device watcher encountered an error")
			}
		}
	}()
	return nil
}

func isDiskNodeEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
		return false
	}
	name := filepath.Base(event.Name)
	for _, p := range diskNodePrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// startSchedule runs trigger on a cron schedule such as "@every 1h" or
// "0 */6 * * *".
func startSchedule(schedule string, trigger func()) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(schedule, trigger); err != nil {
		return nil, fmt.Errorf("invalid rescan schedule %q: %w", schedule, err)
	}
	c.Start()
	log.Info().Str("schedule", schedule).Msg("scheduled periodic rescan")
	return c, nil
}
