// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package diskhealthmetrics

import (
	"time"

	"github.com/cobaltcore-dev/diskprobe/pkg/smart"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/channel"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/health"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/normalize"
)

// DeviceReport is the exported view of one device after a poll.
type DeviceReport struct {
	NodeName   string `json:"node_name"`
	InstanceID string `json:"instance_id"`
	Device     string `json:"device"` // e.g. "sda"
	Path       string `json:"path"`   // e.g. "/dev/sda"
	Bus        string `json:"bus"`

	Identified bool           `json:"identified"`
	Identity   smart.Identity `json:"identity"`
	Vendor     string         `json:"vendor,omitempty"` // display name, e.g. "Samsung"
	OEM        string         `json:"oem,omitempty"`    // e.g. "Dell (Seagate OEM)"
	Profile    string         `json:"profile,omitempty"`
	SmartState string         `json:"smart_state"`
	OSDID      string         `json:"osd_id,omitempty"`

	Health  health.Status  `json:"health"`
	Metrics normalize.Info `json:"metrics"`

	Attributes []ReportAttribute `json:"attributes,omitempty"`

	LastPoll time.Time `json:"last_poll"`
	Error    string    `json:"error,omitempty"`
}

// ReportAttribute is one SMART table slot with its catalogue name.
type ReportAttribute struct {
	ID        uint8  `json:"id"`
	Key       string `json:"key"`
	Name      string `json:"name"`
	Current   uint8  `json:"current"`
	Worst     uint8  `json:"worst"`
	Threshold uint8  `json:"threshold"`
	Raw       uint64 `json:"raw"`
	Critical  bool   `json:"critical"`
	Failing   bool   `json:"failing"` // below threshold and counted by the health rating
}

// NatsEvent represents an event to be published to NATS
type NatsEvent struct {
	ID         string            `json:"id"`
	Time       time.Time         `json:"time"`
	NodeName   string            `json:"node_name"`   // Name of the node where the drive is located
	InstanceID string            `json:"instance_id"` // ID of the instance (useful in cloud environments)
	Device     string            `json:"device"`      // Device identifier (e.g., /dev/sda)
	Serial     string            `json:"serial,omitempty"`
	EventType  string            `json:"event_type"` // e.g., 'health_transition', 'health_alert', 'lifetime_alert'
	Severity   string            `json:"severity"`   // e.g., 'info', 'warning', 'critical'
	Previous   health.Status     `json:"previous"`
	Current    health.Status     `json:"current"`
	Message    string            `json:"message"` // Description of the event
	Details    map[string]string `json:"details"` // Additional details, such as SMART attributes
}

// Snapshot is the archived form of one poll round.
type Snapshot struct {
	ID         string         `json:"id"`
	NodeName   string         `json:"node_name"`
	InstanceID string         `json:"instance_id"`
	Time       time.Time      `json:"time"`
	Devices    []DeviceReport `json:"devices"`
}

// discovered is one device found by enumeration, before identification.
type discovered struct {
	desc channel.Descriptor
	// platformVendor is the vendor string the kernel reports, e.g. "ATA"
	// or "DELL".
	platformVendor string
	// replay is set when the device comes from a fixture.
	replay channel.Channel
}
