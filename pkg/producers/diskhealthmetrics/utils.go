// Copyright (c) 2024 Clyso GmbH
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package diskhealthmetrics

import (
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

var sysVendorPath = "/sys/devices/virtual/dmi/id/sys_vendor"

// IsVirtualized checks if the host runs on a hypervisor. Disks of a
// virtual machine usually report no meaningful SMART data.
func IsVirtualized() bool {
	sysVendor, err := os.ReadFile(sysVendorPath)
	if err != nil {
		log.Debug().Err(err).Msg("error reading sys_vendor")
		return false
	}
	return virtualVendor(strings.TrimSpace(string(sysVendor)))
}

func virtualVendor(sysVendor string) bool {
	virtTech := []string{"VMware", "VirtualBox", "QEMU", "Xen", "KVM", "Microsoft Corporation", "Parallels", "Oracle VM Server", "innotek"}
	for _, tech := range virtTech {
		if strings.Contains(sysVendor, tech) {
			return true
		}
	}
	return false
}

var vendorPatterns = []struct {
	pattern *regexp.Regexp
	vendor  string
}{
	{regexp.MustCompile(`(?i)^DL2400`), "Seagate"},
	{regexp.MustCompile(`(?i)TOSHIBA`), "Toshiba"},
	{regexp.MustCompile(`(?i)^MG0[345678]`), "Toshiba"},
	{regexp.MustCompile(`(?i)^THNSN`), "Toshiba"},
	{regexp.MustCompile(`(?i)INTEL`), "Intel"},
	{regexp.MustCompile(`(?i)^SSDSC`), "Intel"},
	{regexp.MustCompile(`(?i)KIOXIA`), "Kioxia"},
	{regexp.MustCompile(`(?i)WESTERN`), "WesternDigital"},
	{regexp.MustCompile(`(?i)WDC`), "WesternDigital"},
	{regexp.MustCompile(`(?i)^WDS`), "WesternDigital"},
	{regexp.MustCompile(`(?i)^WD100`), "WesternDigital"},
	{regexp.MustCompile(`(?i)SEAGATE`), "Seagate"},
	{regexp.MustCompile(`(?i)^ST[12][0123456789]`), "Seagate"},
	{regexp.MustCompile(`(?i)HGST`), "HGST"},
	{regexp.MustCompile(`(?i)^HU[HS]`), "HGST"},
	{regexp.MustCompile(`(?i)MICRON`), "Micron"},
	{regexp.MustCompile(`(?i)^CT\d+`), "Micron"},
	{regexp.MustCompile(`(?i)MTFDD`), "Micron"},
	{regexp.MustCompile(`(?i)SANDISK`), "SanDisk"},
	{regexp.MustCompile(`(?i)SAMSUNG`), "Samsung"},
	{regexp.MustCompile(`(?i)^MZ[7-9V]`), "Samsung"},
	{regexp.MustCompile(`(?i)KINGSTON`), "Kingston"},
	{regexp.MustCompile(`(?i)^SA400`), "Kingston"},
	{regexp.MustCompile(`(?i)CRUCIAL`), "Micron"},
	{regexp.MustCompile(`(?i)HYNIX`), "SKhynix"},
	{regexp.MustCompile(`(?i)PLEXTOR`), "Plextor"},
	{regexp.MustCompile(`(?i)CORSAIR`), "Corsair"},
	{regexp.MustCompile(`(?i)^OCZ`), "OCZ"},
	{regexp.MustCompile(`(?i)ADATA`), "ADATA"},
}

// FindVendor maps a model string to a manufacturer display name. It returns
// "" when no pattern matches.
func FindVendor(deviceModel string) string {
	for _, entry := range vendorPatterns {
		if entry.pattern.MatchString(deviceModel) {
			return entry.vendor
		}
	}
	return ""
}
