// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package channel is the boundary between the SMART core and the device.
// A Channel accepts a dialect-tagged command and returns a filled buffer;
// how the command block is encoded for a given dialect is its own concern.
package channel

import (
	"context"
	"fmt"
)

// Opcode is the ATA command register value, or the NVMe admin opcode for
// NVMe dialects.
type Opcode byte

const (
	OpATAIdentify    Opcode = 0xEC
	OpATASmart       Opcode = 0xB0
	OpATACheckPower  Opcode = 0xE5
	OpNVMeGetLogPage Opcode = 0x02
	OpNVMeIdentify   Opcode = 0x06
)

// SMART sub-command values carried in the feature register.
const (
	FeatureSmartReadData       byte = 0xD0
	FeatureSmartReadThresholds byte = 0xD1
	FeatureSmartReadLog        byte = 0xD5
	FeatureSmartEnable         byte = 0xD8
	FeatureSmartReturnStatus   byte = 0xDA
)

// NVMe identify CNS and log page identifiers, carried in Feature for NVMe
// dialects.
const (
	NVMeCNSController  byte = 0x01
	NVMeLogSmartHealth byte = 0x02
)

// Standard response sizes.
const (
	ATASectorSize    = 512
	NVMeIdentifySize = 4096
	NVMeLogSize      = 512
)

// Target addresses a device behind its dialect. Path is the OS handle
// (/dev/sda, /dev/nvme0); Port selects a drive behind a RAID controller or
// multi-port bridge.
type Target struct {
	Path string
	Port int
	Lun  int
}

func (t Target) String() string {
	if t.Port == 0 && t.Lun == 0 {
		return t.Path
	}
	return fmt.Sprintf("%s[port=%d,lun=%d]", t.Path, t.Port, t.Lun)
}

// Command is one device command. Length is the number of bytes the caller
// expects back; zero means a non-data command.
type Command struct {
	Dialect Dialect
	Target  Target
	Opcode  Opcode
	Feature byte
	Length  int
}

func (c Command) String() string {
	return fmt.Sprintf("%s %s op=0x%02X feat=0x%02X len=%d", c.Dialect, c.Target, byte(c.Opcode), c.Feature, c.Length)
}

// Channel issues device commands. Issue blocks until the device answers or
// the dialect timeout elapses; failures are returned as *ChannelError.
// Implementations are not required to be safe for concurrent use: each
// device owns its own channel.
type Channel interface {
	Issue(ctx context.Context, cmd Command) ([]byte, error)
	Close() error
}

// Descriptor is what the platform knows about a device before any command is
// sent to it.
type Descriptor struct {
	Name      string  `yaml:"name" json:"name"`
	Path      string  `yaml:"path" json:"path"`
	Bus       BusType `yaml:"-" json:"bus"`
	VendorID  uint16  `yaml:"vendor_id" json:"vendor_id"`
	ProductID uint16  `yaml:"product_id" json:"product_id"`
	Model     string  `yaml:"model" json:"model"`
	Serial    string  `yaml:"serial" json:"serial"`
	Firmware  string  `yaml:"firmware" json:"firmware"`
}

// ATACommand builds a SMART or IDENTIFY command for an ATA-style dialect.
func ATACommand(d Dialect, t Target, op Opcode, feature byte) Command {
	length := ATASectorSize
	if op == OpATASmart && (feature == FeatureSmartEnable || feature == FeatureSmartReturnStatus) {
		length = 0
	}
	if op == OpATACheckPower {
		length = 0
	}
	return Command{Dialect: d, Target: t, Opcode: op, Feature: feature, Length: length}
}

// NVMeIdentifyCommand requests the 4096 byte identify controller structure.
func NVMeIdentifyCommand(d Dialect, t Target) Command {
	return Command{Dialect: d, Target: t, Opcode: OpNVMeIdentify, Feature: NVMeCNSController, Length: NVMeIdentifySize}
}

// NVMeSmartLogCommand requests the SMART / Health Information log page.
func NVMeSmartLogCommand(d Dialect, t Target) Command {
	return Command{Dialect: d, Target: t, Opcode: OpNVMeGetLogPage, Feature: NVMeLogSmartHealth, Length: NVMeLogSize}
}
