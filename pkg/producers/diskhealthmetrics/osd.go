// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package diskhealthmetrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// osdMapper maps whole disks to the Ceph OSDs stored on them. An OSD
// directory (<base>/<cluster>_<id>) carries a "block" symlink and a
// "whoami" file; the block device may be a device-mapper volume stacked on
// partitions of the physical disk.
type osdMapper struct {
	basePath string
	sysBlock string
	sysClass string
}

func newOSDMapper(basePath string) *osdMapper {
	return &osdMapper{basePath: basePath, sysBlock: sysBlockPath, sysClass: sysClassBlockPath}
}

// Load scans the OSD directories and returns disk name -> OSD ID. A disk
// carrying several OSDs gets them comma separated.
func (m *osdMapper) Load() (map[string]string, error) {
	out := make(map[string]string)
	if m == nil || m.basePath == "" {
		return out, nil
	}
	if _, err := os.Stat(m.basePath); os.IsNotExist(err) {
		log.Debug().Str("base_path", m.basePath).Msg("ceph osd base path does not exist, skipping osd mapping")
		return out, nil
	}

	pattern := filepath.Join(m.basePath, "*_*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob pattern %s: %w", pattern, err)
	}

	for _, dir := range matches {
		osdID := readSysfs(dir, "whoami")
		if osdID == "" {
			continue
		}
		block, err := filepath.EvalSymlinks(filepath.Join(dir, "block"))
		if err != nil {
			continue
		}
		for _, disk := range m.physicalDisks(filepath.Base(block), 0) {
			if prev, ok := out[disk]; ok && prev != osdID {
				out[disk] = prev + "," + osdID
			} else {
				out[disk] = osdID
			}
			log.Debug().Str("disk", disk).Str("osd_id", osdID).Msg("mapped disk to osd")
		}
	}
	return out, nil
}

// physicalDisks follows device-mapper slaves down to whole disks.
func (m *osdMapper) physicalDisks(dev string, depth int) []string {
	if depth > 8 {
		return nil
	}
	entries, err := os.ReadDir(filepath.Join(m.sysBlock, dev, "slaves"))
	if err != nil || len(entries) == 0 {
		return []string{m.wholeDisk(dev)}
	}
	var disks []string
	for _, e := range entries {
		disks = append(disks, m.physicalDisks(e.Name(), depth+1)...)
	}
	return disks
}

// wholeDisk maps a partition such as sdb1 or nvme0n1p2 to its parent disk.
func (m *osdMapper) wholeDisk(dev string) string {
	if !fileExists(filepath.Join(m.sysClass, dev, "partition")) {
		return dev
	}
	resolved, err := filepath.EvalSymlinks(filepath.Join(m.sysClass, dev))
	if err != nil {
		return strings.TrimRight(dev, "0123456789")
	}
	return filepath.Base(filepath.Dir(resolved))
}
