// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package diskhealthmetrics

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cobaltcore-dev/diskprobe/pkg/smart/vendor"
)

// enhanceReport fills the display vendor and the OEM relationship.
// platformVendor is what the kernel reports for the device, often "ATA" or
// the server vendor for rebranded drives.
func enhanceReport(r *DeviceReport, platformVendor string, profile vendor.ID) {
	if r == nil {
		return
	}
	r.Vendor = displayVendor(r.Identity.Model, profile)
	r.OEM = detectOEMRelationship(platformVendor, r.Vendor)
}

// displayVendor prefers the model patterns and falls back to the classified
// profile, e.g. SILICONMOTION becomes "Siliconmotion".
func displayVendor(model string, profile vendor.ID) string {
	if v := FindVendor(model); v != "" {
		return v
	}
	switch profile {
	case vendor.HDDGeneral, vendor.SSDGeneral, vendor.NVMe:
		return ""
	}
	name, _, _ := strings.Cut(profile.String(), "_")
	return cases.Title(language.English).String(name)
}

// detectOEMRelationship names the rebranding when the platform vendor is a
// server OEM and the drive maker is somebody else.
func detectOEMRelationship(platformVendor, maker string) string {
	platform := strings.ToLower(strings.TrimSpace(platformVendor))
	if platform == "" || platform == "ata" || maker == "" {
		return ""
	}
	lowerMaker := strings.ToLower(maker)
	if strings.Contains(platform, lowerMaker) || strings.Contains(lowerMaker, platform) || FindVendor(platform) == maker {
		return ""
	}

	caser := cases.Title(language.English)
	oem := caser.String(platform)
	switch {
	case strings.Contains(platform, "lenovo"):
		oem = "Lenovo"
	case strings.Contains(platform, "dell"):
		oem = "Dell"
	case platform == "hp" || platform == "hpe" || strings.HasPrefix(platform, "hewlett"):
		oem = "HP"
	case strings.Contains(platform, "supermicro"):
		oem = "Supermicro"
	case strings.Contains(platform, "ibm"):
		oem = "IBM"
	}

	if maker == "WesternDigital" {
		maker = "WD"
	}
	return fmt.Sprintf("%s (%s OEM)", oem, maker)
}
