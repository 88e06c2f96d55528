// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package diskhealthmetrics

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cobaltcore-dev/diskprobe/pkg/smart"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/cascade"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/channel"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/normalize"
)

// Sink receives the reports of every poll round.
type Sink interface {
	Publish(ctx context.Context, reports []DeviceReport) error
}

// Forgetter is implemented by sinks that keep per-device state.
type Forgetter interface {
	Forget(device string)
}

// PowerOnSeeder supplies an earlier power-on sample for a serial number.
type PowerOnSeeder interface {
	FirstPowerOn(ctx context.Context, serial string) (raw uint64, at time.Time, ok bool, err error)
}

type entry struct {
	dev            *smart.Device
	platformVendor string

	// polling allows one refresh per device at a time.
	polling sync.Mutex

	mu      sync.Mutex
	lastErr error
}

func (e *entry) setErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastErr = err
}

func (e *entry) err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Inventory owns the set of monitored devices.
type Inventory struct {
	cfg      DiskHealthMetricsConfig
	logger   zerolog.Logger
	sinks    []Sink
	seeder   PowerOnSeeder
	discover func(ctx context.Context) ([]discovered, error)
	open     func(desc channel.Descriptor) channel.Channel
	now      func() time.Time
	osd      *osdMapper
	progress func(device string)

	mu      sync.RWMutex
	devices map[string]*entry
	reports map[string]DeviceReport
	osdIDs  map[string]string
	// publishing counts PollAll calls inside their publish phase. Devices
	// removed meanwhile are forgotten again once the last one finishes.
	publishing    int
	pendingForget map[string]bool
}

type InventoryOption func(*Inventory)

func WithSinks(sinks ...Sink) InventoryOption {
	return func(inv *Inventory) { inv.sinks = append(inv.sinks, sinks...) }
}

func WithPowerOnSeeder(s PowerOnSeeder) InventoryOption {
	return func(inv *Inventory) { inv.seeder = s }
}

// WithProgress calls fn after each discovered device was examined during
// a rescan.
func WithProgress(fn func(device string)) InventoryOption {
	return func(inv *Inventory) { inv.progress = fn }
}

func withClock(now func() time.Time) InventoryOption {
	return func(inv *Inventory) { inv.now = now }
}

func NewInventory(cfg DiskHealthMetricsConfig, opts ...InventoryOption) *Inventory {
	inv := &Inventory{
		cfg:     cfg,
		logger:  log.With().Str("component", "inventory").Logger(),
		open:    func(channel.Descriptor) channel.Channel { return channel.OpenSGIO() },
		now:     time.Now,
		devices: make(map[string]*entry),
		reports: make(map[string]DeviceReport),
		osdIDs:  make(map[string]string),

		pendingForget: make(map[string]bool),
	}
	if cfg.CephOSDBasePath != "" {
		inv.osd = newOSDMapper(cfg.CephOSDBasePath)
	}
	inv.discover = func(ctx context.Context) ([]discovered, error) {
		return discoverDevices(ctx, inv.cfg)
	}
	for _, o := range opts {
		o(inv)
	}
	return inv
}

// Rescan diffs the discovered devices against the inventory. New devices
// are identified and added; vanished devices are closed and forgotten.
// Devices that no dialect identifies are left out until the next rescan.
func (inv *Inventory) Rescan(ctx context.Context) (added, removed []string, err error) {
	found, err := inv.discover(ctx)
	if err != nil {
		return nil, nil, err
	}

	if inv.osd != nil {
		ids, err := inv.osd.Load()
		if err != nil {
			inv.logger.Warn().Err(err).Msg("failed to load osd mapping")
		} else {
			inv.mu.Lock()
			inv.osdIDs = ids
			inv.mu.Unlock()
		}
	}

	seen := make(map[string]bool, len(found))
	for _, d := range found {
		seen[d.desc.Name] = true
	}

	inv.mu.RLock()
	var vanished []string
	for name := range inv.devices {
		if !seen[name] {
			vanished = append(vanished, name)
		}
	}
	inv.mu.RUnlock()

	for _, name := range vanished {
		inv.remove(name)
		removed = append(removed, name)
	}

	for _, d := range found {
		inv.mu.RLock()
		_, known := inv.devices[d.desc.Name]
		inv.mu.RUnlock()
		if known {
			if d.replay != nil {
				_ = d.replay.Close()
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return added, removed, err
		}
		if e := inv.identify(ctx, d); e != nil {
			inv.mu.Lock()
			inv.devices[d.desc.Name] = e
			inv.mu.Unlock()
			added = append(added, d.desc.Name)
		}
		if inv.progress != nil {
			inv.progress(d.desc.Name)
		}
	}

	sort.Strings(added)
	sort.Strings(removed)
	if len(added) > 0 || len(removed) > 0 {
		inv.logger.Info().Strs("added", added).Strs("removed", removed).Int("devices", inv.Len()).Msg("inventory_changed")
	}
	return added, removed, nil
}

func (inv *Inventory) identify(ctx context.Context, d discovered) *entry {
	ch := d.replay
	if ch == nil {
		ch = inv.open(d.desc)
	}
	dev := smart.NewDevice(ch, d.desc, smart.WithCaution(inv.cfg.Caution()), smart.WithClock(inv.now))

	if err := dev.Identify(ctx); err != nil {
		_ = ch.Close()
		if errors.Is(err, cascade.ErrNotIdentified) {
			inv.logger.Debug().Str("device", d.desc.Path).Msg("device_not_identified")
		} else {
			inv.logger.Warn().Err(err).Str("device", d.desc.Path).Msg("identify_failed")
		}
		return nil
	}

	id := dev.Identity()
	inv.logger.Info().
		Str("device", d.desc.Path).
		Str("dialect", id.Dialect.String()).
		Str("model", id.Model).
		Str("serial", id.Serial).
		Bool("ssd", id.SSD).
		Msg("device_identified")

	if inv.seeder != nil && id.Serial != "" {
		raw, at, ok, err := inv.seeder.FirstPowerOn(ctx, id.Serial)
		switch {
		case err != nil:
			inv.logger.Error().Err(err).Str("serial", id.Serial).Msg("error reading power-on history")
		case ok:
			dev.SeedPowerOn(raw, at)
		}
	}
	return &entry{dev: dev, platformVendor: d.platformVendor}
}

func (inv *Inventory) remove(name string) {
	inv.mu.Lock()
	e, ok := inv.devices[name]
	delete(inv.devices, name)
	delete(inv.reports, name)
	if ok && inv.publishing > 0 {
		inv.pendingForget[name] = true
	}
	inv.mu.Unlock()
	if !ok {
		return
	}

	e.polling.Lock()
	_ = e.dev.Close()
	e.polling.Unlock()

	inv.forget(name)
	inv.logger.Info().Str("device", name).Msg("device_removed")
}

func (inv *Inventory) forget(name string) {
	for _, s := range inv.sinks {
		if f, ok := s.(Forgetter); ok {
			f.Forget(name)
		}
	}
}

// live drops reports of devices that are no longer in the inventory.
func (inv *Inventory) live(reports []DeviceReport) []DeviceReport {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	out := make([]DeviceReport, 0, len(reports))
	for _, r := range reports {
		if _, ok := inv.devices[r.Device]; ok {
			out = append(out, r)
		}
	}
	return out
}

// PollAll refreshes every device concurrently and hands the reports to the
// sinks. A device whose previous refresh is still running is skipped.
func (inv *Inventory) PollAll(ctx context.Context) []DeviceReport {
	inv.mu.RLock()
	entries := make(map[string]*entry, len(inv.devices))
	for name, e := range inv.devices {
		entries[name] = e
	}
	inv.mu.RUnlock()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		reports = make([]DeviceReport, 0, len(entries))
	)
	for name, e := range entries {
		wg.Add(1)
		go func(name string, e *entry) {
			defer wg.Done()
			if !e.polling.TryLock() {
				inv.logger.Debug().Str("device", name).Msg("poll_skipped_busy")
				return
			}
			defer e.polling.Unlock()

			err := e.dev.Refresh(ctx)
			e.setErr(err)
			if err != nil {
				inv.logger.Warn().Err(err).
					Str("device", name).
					Bool("channel_error", channel.IsChannelError(err)).
					Msg("smart_refresh_failed")
			}

			r := inv.report(e)
			mu.Lock()
			reports = append(reports, r)
			mu.Unlock()
		}(name, e)
	}
	wg.Wait()

	sort.Slice(reports, func(i, j int) bool { return reports[i].Device < reports[j].Device })

	inv.mu.Lock()
	for _, r := range reports {
		if _, ok := inv.devices[r.Device]; ok {
			inv.reports[r.Device] = r
		}
	}
	inv.publishing++
	inv.mu.Unlock()

	for _, s := range inv.sinks {
		if err := s.Publish(ctx, inv.live(reports)); err != nil {
			inv.logger.Error().Err(err).Msgf("error publishing to %T", s)
		}
	}

	// a sink may have recreated state for a device removed while publishing
	inv.mu.Lock()
	inv.publishing--
	var stale []string
	if inv.publishing == 0 {
		for name := range inv.pendingForget {
			stale = append(stale, name)
		}
		clear(inv.pendingForget)
	}
	inv.mu.Unlock()
	for _, name := range stale {
		inv.forget(name)
	}
	return inv.live(reports)
}

func (inv *Inventory) report(e *entry) DeviceReport {
	r := BuildReport(e.dev)
	r.NodeName = inv.cfg.NodeName
	r.InstanceID = inv.cfg.InstanceID
	r.OEM = detectOEMRelationship(e.platformVendor, r.Vendor)
	inv.mu.RLock()
	r.OSDID = inv.osdIDs[r.Device]
	inv.mu.RUnlock()
	if err := e.err(); err != nil {
		r.Error = err.Error()
	}
	return r
}

// BuildReport converts the current state of a device into a DeviceReport.
func BuildReport(dev *smart.Device) DeviceReport {
	desc := dev.Descriptor()
	info := dev.Info()
	profile := dev.Profile()

	r := DeviceReport{
		Device:     desc.Name,
		Path:       desc.Path,
		Bus:        desc.Bus.String(),
		Identified: dev.Identified(),
		Identity:   dev.Identity(),
		SmartState: dev.Status().String(),
		Health:     info.DiskStatus,
		Metrics:    info,
		LastPoll:   dev.LastPoll(),
	}
	if r.Identified {
		r.Profile = profile.Vendor.String()
	}
	r.Attributes = reportAttributes(info.Attributes, profile)
	r.Metrics.Attributes = nil
	enhanceReport(&r, "", profile.Vendor)
	return r
}

// Reports returns the last report of every device, sorted by name.
func (inv *Inventory) Reports() []DeviceReport {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	out := make([]DeviceReport, 0, len(inv.reports))
	for _, r := range inv.reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Device < out[j].Device })
	return out
}

// Report returns the last report of one device. Devices that were
// identified but not polled yet get a report built from their identity.
func (inv *Inventory) Report(name string) (DeviceReport, bool) {
	inv.mu.RLock()
	r, ok := inv.reports[name]
	e, known := inv.devices[name]
	inv.mu.RUnlock()
	if ok {
		return r, true
	}
	if !known {
		return DeviceReport{}, false
	}
	return inv.report(e), true
}

// Devices returns the names of all inventoried devices.
func (inv *Inventory) Devices() []string {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	names := make([]string, 0, len(inv.devices))
	for name := range inv.devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (inv *Inventory) Len() int {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return len(inv.devices)
}

// Close releases every device channel.
func (inv *Inventory) Close() {
	for _, name := range inv.Devices() {
		inv.remove(name)
	}
}

// lifeExported reports whether a life value carries information. A zero
// that was not decoded from a raw counter is usually an unset attribute.
func lifeExported(info normalize.Info, includeZero bool) bool {
	if info.Life == normalize.LifeUnknown {
		return false
	}
	return info.Life != 0 || info.LifeFailed || includeZero
}
