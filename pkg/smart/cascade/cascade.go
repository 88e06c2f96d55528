// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package cascade finds the command dialect a device answers to. Dialects
// are tried in a fixed order derived from the bus type and, for USB, the
// bridge vendor; the first attempt that returns a plausible identity wins.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/cobaltcore-dev/diskprobe/pkg/smart/ata"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/channel"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/nvme"
)

// ErrNotIdentified is returned when every attempt has been exhausted. It is
// a normal negative result, the device simply has no usable dialect.
var ErrNotIdentified = errors.New("no dialect identified the device")

// Result is a bound dialect together with the raw identify response.
type Result struct {
	Dialect  channel.Dialect
	Target   channel.Target
	Raw      []byte
	Model    string
	Serial   string
	Firmware string
	// Failed records the attempts that were rejected before this one.
	Failed []Failure
}

// Failure is one rejected attempt.
type Failure struct {
	Attempt Attempt
	Err     error
}

// NVMe reports whether the bound dialect speaks NVMe.
func (r *Result) NVMe() bool { return r.Dialect.IsNVMe() }

// ATA returns the ATA identify view. It panics for NVMe results.
func (r *Result) ATA() ata.Identify { return ata.NewIdentify(r.Raw) }

// Controller returns the NVMe identify controller view. It panics for ATA
// results.
func (r *Result) Controller() nvme.Controller { return nvme.NewController(r.Raw) }

// Run tries every planned attempt in order. A ValidationError caused by a
// known-bad target stops the cascade immediately; any other failure moves on
// to the next attempt.
func Run(ctx context.Context, ch channel.Channel, desc channel.Descriptor) (*Result, error) {
	if reason, bad := KnownBad(desc.Bus, desc.Model, desc.Firmware); bad {
		return nil, channel.Invalid(channel.DialectUnknown, "%s: %s", desc.Path, reason)
	}

	var failed []Failure
	for _, a := range Plan(desc) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := try(ctx, ch, a)
		if err != nil {
			log.Debug().Str("device", desc.Path).Str("dialect", a.Dialect.String()).Err(err).Msg("identify_attempt_failed")
			failed = append(failed, Failure{Attempt: a, Err: err})
			continue
		}

		if reason, bad := KnownBad(desc.Bus, res.Model, res.Firmware); bad {
			return nil, channel.Invalid(a.Dialect, "%s: %s", desc.Path, reason)
		}

		res.Failed = failed
		log.Debug().Str("device", desc.Path).Str("dialect", a.Dialect.String()).Str("model", res.Model).Msg("identify_bound")
		return res, nil
	}

	return nil, fmt.Errorf("%s: %d attempts: %w", desc.Path, len(failed), ErrNotIdentified)
}

func try(ctx context.Context, ch channel.Channel, a Attempt) (*Result, error) {
	var cmd channel.Command
	if a.Dialect.IsNVMe() {
		cmd = channel.NVMeIdentifyCommand(a.Dialect, a.Target)
	} else {
		cmd = channel.ATACommand(a.Dialect, a.Target, channel.OpATAIdentify, 0)
	}

	buf, err := ch.Issue(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := Validate(a.Dialect, buf, cmd.Length); err != nil {
		return nil, err
	}

	res := &Result{Dialect: a.Dialect, Target: a.Target, Raw: buf}
	if a.Dialect.IsNVMe() {
		c := nvme.NewController(buf)
		res.Model, res.Serial, res.Firmware = c.Model(), c.Serial(), c.Firmware()
	} else {
		id := ata.NewIdentify(buf)
		res.Model, res.Serial, res.Firmware = id.Model(), id.Serial(), id.Firmware()
	}
	if res.Model == "" {
		return nil, channel.Invalid(a.Dialect, "empty model string")
	}
	return res, nil
}

// Validate checks that an identify buffer can be parsed at all.
func Validate(d channel.Dialect, buf []byte, want int) error {
	switch {
	case len(buf) == 0:
		return channel.Invalid(d, "empty identify buffer")
	case len(buf) < want:
		return channel.Invalid(d, "identify buffer is %d bytes, want %d", len(buf), want)
	case channel.AllZero(buf):
		return channel.Invalid(d, "identify buffer is all zero")
	}
	return nil
}

// KnownBad reports targets that must never be bound, whatever they answer.
func KnownBad(bus channel.BusType, model, firmware string) (string, bool) {
	upper := strings.ToUpper(model)

	switch {
	case bus == channel.BusUSB && isCardReader(upper):
		return "sd card reader", true
	case strings.Contains(upper, "FUZEDRIVE"), strings.Contains(upper, "STOREMI"):
		return "virtual tiered volume", true
	case strings.Contains(upper, "SAMSUNG HD204UI") && strings.TrimSpace(firmware) == "1AQ10001":
		return "firmware 1AQ10001 loses writes under identify", true
	case strings.Contains(upper, "JMICRON") && (strings.Contains(upper, "RALD") || strings.Contains(upper, "RAID")):
		return "jmicron virtual array", true
	}
	return "", false
}

func isCardReader(upperModel string) bool {
	for _, s := range []string{"SD CARD", "CARD READER", "SD/MMC", "MULTI-CARD", "MULTICARD", "SD/MS"} {
		if strings.Contains(upperModel, s) {
			return true
		}
	}
	return false
}
