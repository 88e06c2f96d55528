// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package diskhealthmetrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cobaltcore-dev/diskprobe/pkg/smart/ata"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/vendor"
)

func TestSMARTAttributesUnique(t *testing.T) {
	seen := map[uint8]bool{}
	for _, a := range SMARTAttributes {
		assert.False(t, seen[a.ID], "duplicate attribute id %d", a.ID)
		seen[a.ID] = true
		assert.NotEmpty(t, a.Key)
		assert.NotEmpty(t, a.Name)
	}
}

func TestLookupAttribute(t *testing.T) {
	a := LookupAttribute(5)
	assert.Equal(t, "Reallocated_Sector_Ct", a.Key)
	assert.True(t, a.Critical)

	unknown := LookupAttribute(0xFB)
	assert.Equal(t, uint8(0xFB), unknown.ID)
	assert.Equal(t, "Unknown_Attribute_251", unknown.Key)
	assert.Equal(t, "Vendor Specific 0xFB", unknown.Name)
}

func TestReportAttributes(t *testing.T) {
	attrs := []ata.Attribute{
		{ID: 0xC2, Current: 30, Worst: 20, Threshold: 45, Raw: [6]byte{41}},
		{ID: 0x05, Current: 100, Worst: 100, Threshold: 10, Raw: [6]byte{8}},
		{ID: 0x01, Current: 40, Worst: 40, Threshold: 51},
	}
	out := reportAttributes(attrs, vendor.Profile{Vendor: vendor.HDDGeneral})
	require.Len(t, out, 3)

	assert.Equal(t, uint8(0x01), out[0].ID)
	assert.True(t, out[0].Failing)

	assert.Equal(t, uint8(0x05), out[1].ID)
	assert.Equal(t, uint64(8), out[1].Raw)
	assert.False(t, out[1].Failing, "above threshold")

	// temperature crossings never count against the drive
	assert.Equal(t, uint8(0xC2), out[2].ID)
	assert.False(t, out[2].Failing)
}

func TestFindVendor(t *testing.T) {
	tests := map[string]string{
		"SAMSUNG MZ-V7E500":    "Samsung",
		"MZ7LH960HAJR-00005":   "Samsung",
		"WDC WD40EFRX-68N32N0": "WesternDigital",
		"ST2000NM0055-1V4104":  "Seagate",
		"INTEL SSDSC2KB960G8":  "Intel",
		"HGST HUS726T4TALA6L4": "HGST",
		"CT1000MX500SSD1":      "Micron",
		"MG08ACA16TE":          "Toshiba",
		"Generic Flash":        "",
	}
	for model, want := range tests {
		assert.Equal(t, want, FindVendor(model), model)
	}
}

func TestDisplayVendor(t *testing.T) {
	assert.Equal(t, "Samsung", displayVendor("SAMSUNG MZ-V7E500", vendor.Samsung))
	assert.Equal(t, "Siliconmotion", displayVendor("SSD 256GB", vendor.SiliconMotionCVC))
	assert.Equal(t, "Jmicron", displayVendor("SSD 128GB", vendor.JMicron61x))
	assert.Equal(t, "", displayVendor("Generic Disk", vendor.HDDGeneral))
	assert.Equal(t, "", displayVendor("Generic SSD", vendor.SSDGeneral))
}

func TestDetectOEMRelationship(t *testing.T) {
	tests := []struct {
		platform, maker, want string
	}{
		{"ATA", "Samsung", ""},
		{"", "Samsung", ""},
		{"DELL", "", ""},
		{"SEAGATE", "Seagate", ""},
		{"WDC", "WesternDigital", ""},
		{"DELL", "Seagate", "Dell (Seagate OEM)"},
		{"LENOVO-X", "Samsung", "Lenovo (Samsung OEM)"},
		{"HPE", "WesternDigital", "HP (WD OEM)"},
		{"IBM-ESXS", "HGST", "IBM (HGST OEM)"},
		{"fujitsu", "Toshiba", "Fujitsu (Toshiba OEM)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, detectOEMRelationship(tt.platform, tt.maker), "%s/%s", tt.platform, tt.maker)
	}
}

func TestEnhanceReport(t *testing.T) {
	r := DeviceReport{}
	r.Identity.Model = "ST2000NM0055-1V4104"
	enhanceReport(&r, "DELL", vendor.HDDGeneral)
	assert.Equal(t, "Seagate", r.Vendor)
	assert.Equal(t, "Dell (Seagate OEM)", r.OEM)

	enhanceReport(nil, "DELL", vendor.HDDGeneral)
}

func TestVirtualVendor(t *testing.T) {
	assert.True(t, virtualVendor("QEMU"))
	assert.True(t, virtualVendor("VMware, Inc."))
	assert.True(t, virtualVendor("Microsoft Corporation"))
	assert.False(t, virtualVendor("Dell Inc."))
	assert.False(t, virtualVendor(""))
}
