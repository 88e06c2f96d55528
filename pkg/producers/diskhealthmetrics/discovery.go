// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package diskhealthmetrics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/disk"

	"github.com/cobaltcore-dev/diskprobe/pkg/smart/channel"
)

var (
	sysBlockPath      = "/sys/block"
	sysClassBlockPath = "/sys/class/block"
)

// virtualPrefixes are kernel block devices that never answer SMART.
var virtualPrefixes = []string{"loop", "ram", "zram", "dm-", "md", "sr", "fd", "nbd", "rbd", "drbd", "zd"}

// discoverDevices returns the devices the configuration asks for: fixtures
// from ReplayDir, the explicit Disks list, or every whole block disk.
func discoverDevices(ctx context.Context, cfg DiskHealthMetricsConfig) ([]discovered, error) {
	if cfg.ReplayDir != "" {
		return discoverReplay(cfg.ReplayDir)
	}

	var names []string
	if cfg.Discovery() {
		var err error
		names, err = enumerateBlockDevices(ctx)
		if err != nil {
			return nil, err
		}
	} else {
		names = cfg.Disks
	}

	out := make([]discovered, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		out = append(out, describeDevice(n))
	}
	return out, nil
}

func discoverReplay(dir string) ([]discovered, error) {
	replays, err := channel.LoadReplayDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error loading replay fixtures: %w", err)
	}
	out := make([]discovered, 0, len(replays))
	for _, r := range replays {
		out = append(out, discovered{desc: r.Descriptor(), replay: r})
	}
	return out, nil
}

// enumerateBlockDevices lists whole disks known to the kernel I/O counters,
// without partitions and virtual devices.
func enumerateBlockDevices(ctx context.Context) ([]string, error) {
	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("error reading block device counters: %w", err)
	}

	mounted := make(map[string]bool)
	parts, err := disk.PartitionsWithContext(ctx, true)
	if err != nil {
		log.Debug().Err(err).Msg("error listing partitions")
	}
	for _, p := range parts {
		if strings.HasPrefix(p.Device, "/dev/") {
			mounted[filepath.Base(p.Device)] = true
		}
	}

	var names []string
	for name := range counters {
		if isVirtualDevice(name) || isPartition(name, mounted) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func isVirtualDevice(name string) bool {
	for _, p := range virtualPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// isPartition trusts sysfs; a mounted device is only a partition if sysfs
// does not list it as a whole disk.
func isPartition(name string, mounted map[string]bool) bool {
	if fileExists(filepath.Join(sysClassBlockPath, name, "partition")) {
		return true
	}
	return mounted[name] && !fileExists(filepath.Join(sysBlockPath, name))
}

// describeDevice fills a descriptor from sysfs. Missing sysfs entries leave
// fields empty; the cascade copes with an unknown bus.
func describeDevice(dev string) discovered {
	name := filepath.Base(dev)
	path := dev
	if !strings.HasPrefix(path, "/") {
		path = "/dev/" + name
	}

	d := discovered{desc: channel.Descriptor{Name: name, Path: path}}
	sysDir := filepath.Join(sysBlockPath, name)
	resolved, err := filepath.EvalSymlinks(sysDir)
	if err != nil {
		resolved = sysDir
	}

	d.desc.Model = readSysfs(sysDir, "device", "model")
	d.desc.Serial = readSysfs(sysDir, "device", "serial")
	d.desc.Firmware = readSysfs(sysDir, "device", "firmware_rev")
	if d.desc.Firmware == "" {
		d.desc.Firmware = readSysfs(sysDir, "device", "rev")
	}
	d.platformVendor = readSysfs(sysDir, "device", "vendor")
	d.desc.Bus = busFromSysfs(name, resolved)
	if d.desc.Bus == channel.BusUSB {
		d.desc.VendorID, d.desc.ProductID = usbIDs(resolved)
	}
	return d
}

func busFromSysfs(name, resolved string) channel.BusType {
	switch {
	case strings.HasPrefix(name, "nvme") || strings.Contains(resolved, "/nvme/"):
		return channel.BusNVMe
	case strings.Contains(resolved, "/usb"):
		return channel.BusUSB
	case strings.Contains(resolved, "/ata"):
		return channel.BusSATA
	case strings.Contains(resolved, "/end_device-") || strings.Contains(resolved, "/port-"):
		return channel.BusSAS
	case strings.Contains(resolved, "/host"):
		if drv := driverName(resolved); strings.Contains(drv, "megaraid") || strings.Contains(drv, "mpt3sas") || strings.Contains(drv, "aacraid") {
			return channel.BusRAID
		}
		return channel.BusSCSI
	}
	return channel.BusUnknown
}

// usbIDs walks up from the block device to the USB device node that carries
// idVendor and idProduct.
func usbIDs(resolved string) (uint16, uint16) {
	for dir := resolved; dir != "/" && dir != "."; dir = filepath.Dir(dir) {
		v := readSysfs(dir, "idVendor")
		if v == "" {
			continue
		}
		vid, _ := strconv.ParseUint(v, 16, 16)
		pid, _ := strconv.ParseUint(readSysfs(dir, "idProduct"), 16, 16)
		return uint16(vid), uint16(pid)
	}
	return 0, 0
}

// driverName finds the SCSI host driver, e.g. megaraid_sas.
func driverName(resolved string) string {
	for dir := resolved; dir != "/" && dir != "."; dir = filepath.Dir(dir) {
		if strings.HasPrefix(filepath.Base(dir), "host") {
			if link, err := os.Readlink(filepath.Join(dir, "..", "driver")); err == nil {
				return filepath.Base(link)
			}
			return ""
		}
	}
	return ""
}

func readSysfs(parts ...string) string {
	b, err := os.ReadFile(filepath.Join(parts...))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
