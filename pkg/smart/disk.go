// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package smart ties identification, acquisition, classification,
// normalization and health rating together for one device.
//
// A Device owns its channel. Identify binds a dialect; Refresh re-reads the
// SMART tables and rebuilds the normalized metrics. Callers must not run two
// Refresh calls on the same Device at once; Info and the other accessors are
// safe to call while a refresh is running.
package smart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cobaltcore-dev/diskprobe/pkg/smart/acquire"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/ata"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/cascade"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/channel"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/health"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/normalize"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/vendor"
)

// Option configures a Device.
type Option func(*Device)

// WithCaution sets the sector count thresholds used by the health rating.
func WithCaution(c health.CautionThresholds) Option {
	return func(d *Device) { d.caution = c }
}

// WithClock replaces time.Now, for measured power-on hours.
func WithClock(now func() time.Time) Option {
	return func(d *Device) { d.now = now }
}

// Identity is what the bound dialect reported about the device.
type Identity struct {
	Dialect     channel.Dialect `json:"dialect"`
	Model       string          `json:"model"`
	Serial      string          `json:"serial"`
	Firmware    string          `json:"firmware"`
	NVMe        bool            `json:"nvme"`
	SSD         bool            `json:"ssd"`
	CapacityGB  uint64          `json:"capacity_gb,omitempty"`
	RPM         uint16          `json:"rpm,omitempty"`
	Virtualized bool            `json:"virtualized,omitempty"`
}

type powerOnSample struct {
	raw      uint64
	at       time.Time
	set      bool
	unit     vendor.PowerOnUnit
	inferred bool
}

type Device struct {
	ch      channel.Channel
	desc    channel.Descriptor
	caution health.CautionThresholds
	now     func() time.Time

	mu       sync.RWMutex
	bound    *cascade.Result
	dialect  channel.Dialect
	identity Identity
	profile  vendor.Profile
	profiled bool
	status   acquire.Status
	info     normalize.Info
	polled   time.Time
	powerOn  powerOnSample
}

func NewDevice(ch channel.Channel, desc channel.Descriptor, opts ...Option) *Device {
	d := &Device{
		ch:      ch,
		desc:    desc,
		caution: health.DefaultCaution(),
		now:     time.Now,
		info:    normalize.NewInfo(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Device) Descriptor() channel.Descriptor { return d.desc }

// Identify runs the identification cascade. A device that no dialect
// recognises returns an error wrapping cascade.ErrNotIdentified.
func (d *Device) Identify(ctx context.Context) error {
	res, err := cascade.Run(ctx, d.ch, d.desc)
	if err != nil {
		return err
	}

	id := Identity{
		Dialect:     res.Dialect,
		Model:       res.Model,
		Serial:      res.Serial,
		Firmware:    res.Firmware,
		NVMe:        res.NVMe(),
		Virtualized: health.Virtualized(res.Model),
	}
	if id.NVMe {
		id.SSD = true
		id.CapacityGB = res.Controller().TotalCapacity().Uint64() / (1 << 30)
	} else {
		view := res.ATA()
		id.SSD = view.NonRotating()
		id.CapacityGB = view.CapacityBytes() / (1 << 30)
		if rpm := view.RotationRate(); rpm >= 0x0401 && rpm != 0xFFFF {
			id.RPM = rpm
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.bound = res
	d.dialect = res.Dialect
	d.identity = id
	d.profiled = false
	return nil
}

// Identified reports whether a dialect is bound.
func (d *Device) Identified() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.bound != nil
}

func (d *Device) Identity() Identity {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.identity
}

// Info returns a copy of the last normalized metrics.
func (d *Device) Info() normalize.Info {
	d.mu.RLock()
	defer d.mu.RUnlock()
	info := d.info
	info.Attributes = append([]ata.Attribute(nil), d.info.Attributes...)
	return info
}

func (d *Device) Status() acquire.Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

func (d *Device) Profile() vendor.Profile {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.profile
}

// LastPoll is the time of the last successful refresh.
func (d *Device) LastPoll() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.polled
}

// SeedPowerOn supplies an earlier power-on counter sample, for example from
// persisted history, so the counter unit can be inferred sooner.
func (d *Device) SeedPowerOn(raw uint64, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.powerOn.set || at.Before(d.powerOn.at) {
		d.powerOn = powerOnSample{raw: raw, at: at, set: true}
	}
}

// Refresh re-reads SMART data and rebuilds Info.
//
// A ChannelError aborts the refresh and keeps the previous Info. Data that
// arrives but cannot be trusted resets Info and returns a ValidationError.
func (d *Device) Refresh(ctx context.Context) error {
	d.mu.RLock()
	bound, dialect := d.bound, d.dialect
	d.mu.RUnlock()
	if bound == nil {
		return fmt.Errorf("%s: %w", d.desc.Path, cascade.ErrNotIdentified)
	}

	r, err := acquire.Read(ctx, d.ch, dialect, bound.Target)
	if err != nil {
		if channel.IsValidationError(err) {
			d.reset(0)
		}
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if r.Dialect != d.dialect {
		log.Debug().Str("device", d.desc.Path).Str("from", d.dialect.String()).Str("to", r.Dialect.String()).Msg("dialect_rewritten")
		d.dialect = r.Dialect
	}

	var info normalize.Info
	if r.Log != nil {
		info = d.refreshNVMe(r)
	} else {
		var ok bool
		info, ok = d.refreshATA(r)
		if !ok {
			d.resetLocked(r.Status)
			return channel.Invalid(r.Dialect, "attribute reads inconsistent (%s)", r.Status)
		}
	}

	d.trackPowerOn(&info)
	d.info = info
	d.status = r.Status
	d.polled = d.now()
	return nil
}

func (d *Device) refreshNVMe(r *acquire.Reading) normalize.Info {
	if !d.profiled {
		d.profile = vendor.Classify(vendor.Input{Model: d.identity.Model, Firmware: d.identity.Firmware, NVMe: true})
		d.profiled = true
	}
	info := normalize.NVMe(*r.Log)
	info.DiskStatus = health.Evaluate(health.Input{
		NVMe:                    true,
		Model:                   d.identity.Model,
		CriticalWarning:         info.CriticalWarning,
		AvailableSpare:          info.AvailableSpare,
		AvailableSpareThreshold: info.AvailableSpareThreshold,
		Life:                    info.Life,
	})
	return info
}

func (d *Device) refreshATA(r *acquire.Reading) (normalize.Info, bool) {
	profile := d.profile
	if !d.profiled {
		view := d.bound.ATA()
		profile = vendor.Classify(vendor.Input{
			Model:       d.identity.Model,
			Firmware:    d.identity.Firmware,
			IDs:         r.IDs(),
			Thresholds:  r.ThresholdMap,
			NonRotating: view.NonRotating(),
			Rotating:    d.identity.RPM != 0,
		})
	}

	acquire.GuardThresholdBug(r, profile.Vendor)
	if !r.Status.Has(acquire.Correct) {
		return normalize.Info{}, false
	}
	if !d.profiled {
		d.profile = profile
		d.profiled = true
		log.Debug().Str("device", d.desc.Path).Str("profile", profile.String()).Msg("vendor_classified")
	}

	info := normalize.ATA(r.Attributes, profile)
	info.DiskStatus = health.Evaluate(health.Input{
		Correct:          true,
		ThresholdCorrect: r.Status.Has(acquire.ThresholdCorrect),
		ThresholdBug:     r.Status.Has(acquire.ThresholdBug),
		SSD:              d.identity.SSD || profile.Flash,
		Profile:          profile,
		Attributes:       r.Attributes,
		LifeFailed:       info.LifeFailed,
		Caution:          d.caution,
	})
	return info, true
}

func (d *Device) trackPowerOn(info *normalize.Info) {
	if info.PowerOnRaw == 0 {
		return
	}
	now := d.now()
	p := &d.powerOn
	switch {
	case !p.set || info.PowerOnRaw < p.raw:
		*p = powerOnSample{raw: info.PowerOnRaw, at: now, set: true}
	case !p.inferred:
		if u, ok := normalize.InferPowerOnUnit(p.raw, info.PowerOnRaw, now.Sub(p.at)); ok {
			p.unit, p.inferred = u, true
		}
	}
	if p.inferred {
		info.MeasuredPowerOnHours = p.unit.Hours(info.PowerOnRaw)
	}
}

func (d *Device) reset(s acquire.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked(s)
}

func (d *Device) resetLocked(s acquire.Status) {
	d.info = normalize.NewInfo()
	d.status = s &^ acquire.Correct
}

// Close releases the channel.
func (d *Device) Close() error {
	return d.ch.Close()
}
