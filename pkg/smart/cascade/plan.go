// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package cascade

import (
	"strings"

	"github.com/cobaltcore-dev/diskprobe/pkg/smart/channel"
)

// USB vendor IDs of bridge chip makers with a dedicated attempt order.
const (
	VendorJMicron  uint16 = 0x152D
	VendorASMedia  uint16 = 0x174C
	VendorRealtek  uint16 = 0x0BDA
	VendorCypress  uint16 = 0x04B4
	VendorProlific uint16 = 0x067B
	VendorSunplus  uint16 = 0x04FC
	VendorIOData   uint16 = 0x04BB
	VendorLogitec  uint16 = 0x0789
)

// Attempt is one (dialect, target) pair tried by the cascade.
type Attempt struct {
	Dialect channel.Dialect
	Target  channel.Target
}

func (a Attempt) String() string {
	return a.Dialect.String() + "@" + a.Target.String()
}

var (
	nvmeOrder = []channel.Dialect{
		channel.NVMeStorageQuery, channel.NVMeIntel, channel.NVMeSamsung,
		channel.NVMeIntelRST, channel.NVMeIntelVROC,
	}
	ataOrder = []channel.Dialect{
		channel.PhysicalDrive, channel.ScsiMiniport, channel.SiliconImage, channel.SAT,
	}
	raidOrder = []channel.Dialect{
		channel.CSMIPhysicalDrive, channel.CSMI, channel.MegaRAID, channel.AMDRC2, channel.JMB39X,
	}
	usbDefaultOrder = []channel.Dialect{
		channel.SAT, channel.Sunplus, channel.JMicron, channel.Cypress, channel.IOData,
		channel.Logitec, channel.Prolific, channel.NVMeJMicron, channel.NVMeASMedia, channel.NVMeRealtek,
	}
	usbVendorOrder = map[uint16][]channel.Dialect{
		VendorJMicron:  {channel.SAT, channel.JMicron, channel.JMS56X, channel.NVMeJMicron, channel.JMS586_40, channel.JMS586_20},
		VendorASMedia:  {channel.SAT, channel.SATASM1352R, channel.NVMeASMedia},
		VendorRealtek:  {channel.NVMeRealtek, channel.Realtek9220DP, channel.SAT},
		VendorCypress:  {channel.Cypress, channel.SAT},
		VendorProlific: {channel.Prolific, channel.SAT},
		VendorSunplus:  {channel.Sunplus, channel.SAT},
		VendorIOData:   {channel.IOData, channel.SAT},
		VendorLogitec:  {channel.Logitec, channel.SAT},
	}
	// NVMe enclosures are tried with their NVMe dialect first.
	usbNVMeProducts = map[uint16]map[uint16]bool{
		VendorJMicron: {0x0562: true, 0x0583: true, 0x0586: true},
		VendorASMedia: {0x2362: true, 0x2364: true},
	}
)

// IsNVMePath reports whether a device path names an NVMe controller or
// namespace.
func IsNVMePath(path string) bool {
	return strings.Contains(strings.ToLower(path), "nvme")
}

// Plan returns the attempts for a device in priority order.
func Plan(desc channel.Descriptor) []Attempt {
	var order []channel.Dialect

	switch {
	case desc.Bus == channel.BusNVMe || IsNVMePath(desc.Path):
		order = nvmeOrder
	case desc.Bus == channel.BusUSB:
		order = usbOrder(desc.VendorID, desc.ProductID)
	case desc.Bus == channel.BusRAID:
		order = append(append([]channel.Dialect{}, raidOrder...), ataOrder...)
	default:
		order = ataOrder
	}

	target := channel.Target{Path: desc.Path}
	attempts := make([]Attempt, 0, len(order))
	for _, d := range order {
		attempts = append(attempts, Attempt{Dialect: d, Target: target})
	}
	return attempts
}

func usbOrder(vid, pid uint16) []channel.Dialect {
	order, ok := usbVendorOrder[vid]
	if !ok {
		return usbDefaultOrder
	}
	if !usbNVMeProducts[vid][pid] {
		return order
	}

	// move the NVMe dialects to the front, keeping relative order
	front := make([]channel.Dialect, 0, len(order))
	var back []channel.Dialect
	for _, d := range order {
		if d.IsNVMe() {
			front = append(front, d)
		} else {
			back = append(back, d)
		}
	}
	return append(front, back...)
}
