// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package acquire reads the raw SMART tables of an identified device over
// its bound dialect.
package acquire

import (
	"bytes"
	"context"

	"github.com/rs/zerolog/log"

	"github.com/cobaltcore-dev/diskprobe/pkg/smart/ata"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/channel"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/nvme"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/vendor"
)

// Reading is the outcome of one acquisition.
type Reading struct {
	// Dialect is the dialect that produced the reading; it differs from the
	// requested one after a CSMI fallback.
	Dialect channel.Dialect
	Status  Status

	Data       []byte
	Thresholds []byte
	Attributes []ata.Attribute
	// ThresholdMap is nil when the threshold read failed.
	ThresholdMap map[uint8]uint8
	// Identical is set when the attribute and threshold pages were
	// byte-identical.
	Identical bool

	Log *nvme.SmartLog
}

// IDs returns the attribute ID sequence.
func (r *Reading) IDs() []uint8 {
	return ata.IDs(r.Attributes)
}

// Read acquires SMART data for d. A nil error does not mean the data is
// usable; check Status.
func Read(ctx context.Context, ch channel.Channel, d channel.Dialect, t channel.Target) (*Reading, error) {
	if d.IsNVMe() {
		return ReadNVMe(ctx, ch, d, t)
	}
	if d != channel.CSMIPhysicalDrive {
		return ReadATA(ctx, ch, d, t)
	}

	r, err := ReadATA(ctx, ch, d, t)
	if err == nil && r.Status.Has(Enabled|Correct|ThresholdCorrect) {
		return r, nil
	}
	log.Debug().Str("device", t.String()).Msg("csmi_physical_drive_fallback")
	fb, fbErr := ReadATA(ctx, ch, channel.CSMI, t)
	if fbErr != nil {
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return fb, nil
}

// ReadATA reads the attribute page, the threshold page and the attribute
// page again. If the first attempt fails or does not come back enabled and
// consistent, the device is woken with IDENTIFY, SMART is enabled and the
// whole sequence is retried once.
func ReadATA(ctx context.Context, ch channel.Channel, d channel.Dialect, t channel.Target) (*Reading, error) {
	r, err := readATAOnce(ctx, ch, d, t)
	if err == nil && r.Status.Has(Enabled|Correct) {
		return r, nil
	}
	if err != nil {
		log.Debug().Str("device", t.String()).Str("dialect", d.String()).Err(err).Msg("smart_read_failed")
	}

	if _, werr := ch.Issue(ctx, channel.ATACommand(d, t, channel.OpATAIdentify, 0)); werr != nil {
		log.Trace().Str("device", t.String()).Err(werr).Msg("smart_wake_failed")
	}
	if _, eerr := ch.Issue(ctx, channel.ATACommand(d, t, channel.OpATASmart, channel.FeatureSmartEnable)); eerr != nil {
		log.Debug().Str("device", t.String()).Err(eerr).Msg("smart_enable_failed")
	}

	return readATAOnce(ctx, ch, d, t)
}

func readATAOnce(ctx context.Context, ch channel.Channel, d channel.Dialect, t channel.Target) (*Reading, error) {
	readData := channel.ATACommand(d, t, channel.OpATASmart, channel.FeatureSmartReadData)
	readThresholds := channel.ATACommand(d, t, channel.OpATASmart, channel.FeatureSmartReadThresholds)

	first, err := ch.Issue(ctx, readData)
	if err != nil {
		return nil, err
	}
	if channel.AllZero(first) {
		return nil, channel.Invalid(d, "attribute page is all zero")
	}

	r := &Reading{Dialect: d, Status: Supported | Enabled, Data: first}

	th, thErr := ch.Issue(ctx, readThresholds)
	if thErr == nil {
		r.Thresholds = th
		r.Identical = bytes.Equal(first, th)
		if !channel.AllZero(th) {
			r.Status |= ThresholdCorrect
			r.ThresholdMap = ata.NewPage(th).Thresholds()
		}
	}

	attrs := ata.NewPage(first).Attributes()
	// A transport failure on the second read says nothing about consistency.
	second, err := ch.Issue(ctx, readData)
	if err != nil {
		return nil, err
	}
	if again := ata.NewPage(second).Attributes(); ConsistencyCheck(attrs, again) {
		r.Status |= Correct
		r.Data = second
		attrs = again
	}

	r.Attributes = ata.ApplyThresholds(attrs, r.ThresholdMap)
	return r, nil
}

// ReadNVMe reads the SMART / Health log page once.
func ReadNVMe(ctx context.Context, ch channel.Channel, d channel.Dialect, t channel.Target) (*Reading, error) {
	buf, err := ch.Issue(ctx, channel.NVMeSmartLogCommand(d, t))
	if err != nil {
		return nil, err
	}
	if channel.AllZero(buf) {
		return nil, channel.Invalid(d, "health log is all zero")
	}
	l := nvme.DecodeSmartLog(buf)
	return &Reading{Dialect: d, Status: Supported | Enabled | Correct, Data: buf, Log: &l}, nil
}

// GuardThresholdBug invalidates a reading whose threshold page was a copy of
// the attribute page. Indilinx controllers legitimately return identical
// pages.
func GuardThresholdBug(r *Reading, v vendor.ID) {
	if r == nil || !r.Identical || v == vendor.Indilinx {
		return
	}
	r.Status &^= Enabled | Correct | ThresholdCorrect
	r.Status |= ThresholdBug
}
