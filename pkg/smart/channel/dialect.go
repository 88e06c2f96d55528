// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"fmt"
	"strings"
	"time"
)

// Dialect names the command encoding a controller or bridge chip understands.
type Dialect int

const (
	DialectUnknown Dialect = iota
	PhysicalDrive
	ScsiMiniport
	SiliconImage
	SAT
	Sunplus
	IOData
	Logitec
	Prolific
	JMicron
	Cypress
	SATASM1352R
	CSMI
	CSMIPhysicalDrive
	WMI
	NVMeSamsung
	NVMeIntel
	NVMeStorageQuery
	NVMeJMicron
	NVMeASMedia
	NVMeRealtek
	NVMeIntelRST
	NVMeIntelVROC
	MegaRAID
	JMS56X
	JMB39X
	JMS586_20
	JMS586_40
	AMDRC2
	Realtek9220DP
)

var dialectNames = map[Dialect]string{
	DialectUnknown:    "UNKNOWN",
	PhysicalDrive:     "PHYSICAL_DRIVE",
	ScsiMiniport:      "SCSI_MINIPORT",
	SiliconImage:      "SILICON_IMAGE",
	SAT:               "SAT",
	Sunplus:           "SUNPLUS",
	IOData:            "IO_DATA",
	Logitec:           "LOGITEC",
	Prolific:          "PROLIFIC",
	JMicron:           "JMICRON",
	Cypress:           "CYPRESS",
	SATASM1352R:       "SAT_ASM1352R",
	CSMI:              "CSMI",
	CSMIPhysicalDrive: "CSMI_PHYSICAL_DRIVE",
	WMI:               "WMI",
	NVMeSamsung:       "NVME_SAMSUNG",
	NVMeIntel:         "NVME_INTEL",
	NVMeStorageQuery:  "NVME_STORAGE_QUERY",
	NVMeJMicron:       "NVME_JMICRON",
	NVMeASMedia:       "NVME_ASMEDIA",
	NVMeRealtek:       "NVME_REALTEK",
	NVMeIntelRST:      "NVME_INTEL_RST",
	NVMeIntelVROC:     "NVME_INTEL_VROC",
	MegaRAID:          "MEGARAID",
	JMS56X:            "JMS56X",
	JMB39X:            "JMB39X",
	JMS586_20:         "JMS586_20",
	JMS586_40:         "JMS586_40",
	AMDRC2:            "AMD_RC2",
	Realtek9220DP:     "REALTEK_9220DP",
}

func (d Dialect) String() string {
	if name, ok := dialectNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Dialect(%d)", int(d))
}

func (d Dialect) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Dialect) UnmarshalText(b []byte) error {
	v, err := ParseDialect(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// ParseDialect is the inverse of String. Matching ignores case.
func ParseDialect(name string) (Dialect, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for d, n := range dialectNames {
		if n == name {
			return d, nil
		}
	}
	return DialectUnknown, fmt.Errorf("unknown dialect %q", name)
}

// IsNVMe reports whether the dialect carries NVMe admin commands rather than
// ATA taskfiles.
func (d Dialect) IsNVMe() bool {
	switch d {
	case NVMeSamsung, NVMeIntel, NVMeStorageQuery, NVMeJMicron, NVMeASMedia,
		NVMeRealtek, NVMeIntelRST, NVMeIntelVROC, JMS586_20, JMS586_40, Realtek9220DP:
		return true
	}
	return false
}

// IsUSBBridge reports whether the dialect addresses a disk behind a USB
// bridge chip.
func (d Dialect) IsUSBBridge() bool {
	switch d {
	case Sunplus, IOData, Logitec, Prolific, JMicron, Cypress, SATASM1352R,
		NVMeJMicron, NVMeASMedia, NVMeRealtek, JMS56X, JMS586_20, JMS586_40, Realtek9220DP:
		return true
	}
	return false
}

// Timeout is the per-command deadline the channel applies for this dialect.
// RAID controllers and USB bridges that spin the disk up are slow.
func (d Dialect) Timeout() time.Duration {
	switch d {
	case CSMI, CSMIPhysicalDrive, MegaRAID, AMDRC2, JMB39X:
		return 60 * time.Second
	case Sunplus, IOData, Logitec, Prolific, JMicron, Cypress, SATASM1352R, JMS56X:
		return 20 * time.Second
	case NVMeJMicron, NVMeASMedia, NVMeRealtek, JMS586_20, JMS586_40, Realtek9220DP:
		return 10 * time.Second
	case NVMeSamsung, NVMeIntel, NVMeStorageQuery, NVMeIntelRST, NVMeIntelVROC:
		return 2 * time.Second
	}
	return 10 * time.Second
}

// BusType is the host-side attachment of a device as reported by the platform.
type BusType int

const (
	BusUnknown BusType = iota
	BusATA
	BusSATA
	BusSCSI
	BusSAS
	BusUSB
	BusNVMe
	BusRAID
)

var busNames = []string{"unknown", "ata", "sata", "scsi", "sas", "usb", "nvme", "raid"}

func (b BusType) String() string {
	if int(b) >= 0 && int(b) < len(busNames) {
		return busNames[b]
	}
	return "unknown"
}

func (b BusType) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *BusType) UnmarshalText(text []byte) error {
	*b = ParseBusType(string(text))
	return nil
}

// ParseBusType accepts the lower case names produced by String.
func ParseBusType(name string) BusType {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range busNames {
		if n == name {
			return BusType(i)
		}
	}
	return BusUnknown
}
