// Copyright 2024 Clyso GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package diskhealthmetrics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/cobaltcore-dev/diskprobe/pkg/smart/health"
)

// publisher is the part of *nats.Conn the sink needs.
type publisher interface {
	Publish(subject string, data []byte) error
}

var _ publisher = (*nats.Conn)(nil)

// natsSink publishes an event when a device changes health or crosses a
// threshold. Repeated polls with the same state stay silent.
type natsSink struct {
	pub     publisher
	subject string
	cfg     DiskHealthMetricsConfig
	now     func() time.Time

	mu     sync.Mutex
	health map[string]health.Status
	alerts map[string]map[string]bool
}

func newNatsSink(pub publisher, cfg DiskHealthMetricsConfig) *natsSink {
	return &natsSink{
		pub:     pub,
		subject: cfg.NatsSubject,
		cfg:     cfg,
		now:     time.Now,
		health:  make(map[string]health.Status),
		alerts:  make(map[string]map[string]bool),
	}
}

func (s *natsSink) Publish(_ context.Context, reports []DeviceReport) error {
	return PublishToNATS(reports, s)
}

func (s *natsSink) Forget(device string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.health, device)
	delete(s.alerts, device)
}

// PublishToNATS sends the events the reports give rise to.
func PublishToNATS(reports []DeviceReport, s *natsSink) error {
	for _, r := range reports {
		for _, event := range s.events(r) {
			eventJSON, err := json.Marshal(event)
			if err != nil {
				return err
			}
			if err := s.pub.Publish(s.subject, eventJSON); err != nil {
				return fmt.Errorf("error publishing event for %s: %w", r.Device, err)
			}
		}
	}
	return nil
}

// events diffs a report against the last state seen for its device.
func (s *natsSink) events(r DeviceReport) []NatsEvent {
	if !r.Identified {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []NatsEvent
	prev, seen := s.health[r.Device]
	if !seen {
		prev = health.Unknown
	}
	s.health[r.Device] = r.Health
	if r.Health != prev {
		out = append(out, s.convertToNatsEvent(r, prev, "health_transition", severityFor(r.Health), map[string]string{
			"Previous": prev.String(),
			"Current":  r.Health.String(),
		}))
	}

	details := make(map[string]string)
	severity, eventType := "info", ""
	checkAndSetThresholds(details, r, &s.cfg, &severity, &eventType)

	active := make(map[string]bool, len(details))
	var crossed []string
	for key := range details {
		active[key] = true
		if !s.alerts[r.Device][key] {
			crossed = append(crossed, key)
		}
	}
	s.alerts[r.Device] = active

	if len(crossed) > 0 {
		sort.Strings(crossed)
		newDetails := make(map[string]string, len(crossed))
		for _, key := range crossed {
			newDetails[key] = details[key]
		}
		out = append(out, s.convertToNatsEvent(r, prev, eventType, severity, newDetails))
	}
	return out
}

// convertToNatsEvent wraps details into a NatsEvent for report r.
func (s *natsSink) convertToNatsEvent(r DeviceReport, prev health.Status, eventType, severity string, details map[string]string) NatsEvent {
	m := r.Metrics
	if m.Temperature != nil {
		details["TemperatureCelsius"] = fmt.Sprintf("%d", *m.Temperature)
	}
	if _, set := details["LifeRemaining"]; !set && lifeExported(m, s.cfg.IncludeZeroLife) {
		details["LifeRemaining"] = fmt.Sprintf("%d", m.Life)
	}
	details["PowerOnHours"] = fmt.Sprintf("%d", powerOnHours(m.DetectedPowerOnHours, m.MeasuredPowerOnHours))
	details["Model"] = r.Identity.Model

	message := generateMessage(details)
	if eventType == "health_transition" {
		message = fmt.Sprintf("Disk health changed from %s to %s.", prev, r.Health)
	}

	return NatsEvent{
		ID:         uuid.NewString(),
		Time:       s.now().UTC(),
		NodeName:   r.NodeName,
		InstanceID: r.InstanceID,
		Device:     r.Path,
		Serial:     r.Identity.Serial,
		EventType:  eventType,
		Severity:   severity,
		Previous:   prev,
		Current:    r.Health,
		Message:    message,
		Details:    details,
	}
}

func severityFor(s health.Status) string {
	switch s {
	case health.Good:
		return "info"
	case health.Bad:
		return "critical"
	}
	return "warning"
}

// checkAndSetThresholds checks the sector counters and remaining life
// against the configured thresholds and adjusts details and severity.
func checkAndSetThresholds(details map[string]string, r DeviceReport, config *DiskHealthMetricsConfig, severity *string, eventType *string) {
	raw := make(map[uint8]uint64, len(r.Attributes))
	for _, a := range r.Attributes {
		raw[a.ID] = a.Raw & 0xFFFFFFFF
	}

	sector := func(id uint8, key string, threshold uint64) {
		v, ok := raw[id]
		if !ok || threshold == 0 || v < threshold {
			return
		}
		details[key] = fmt.Sprintf("%d (Warning: reached threshold of %d)", v, threshold)
		if *severity == "info" {
			*severity = "warning"
		}
		if *eventType == "" {
			*eventType = "health_alert"
		}
	}
	sector(0x05, "ReallocatedSectors", config.ReallocatedSectorsThreshold)
	sector(0xC5, "PendingSectors", config.PendingSectorsThreshold)
	sector(0xC6, "UncorrectableSectors", config.UncorrectableSectorsThreshold)

	if r.Identity.NVMe && r.Metrics.CriticalWarning != 0 {
		details["CriticalWarning"] = fmt.Sprintf("0x%02X", r.Metrics.CriticalWarning)
		*severity = "critical"
		*eventType = "health_alert"
	}

	// Lifetime for SSDs
	if m := r.Metrics; lifeExported(m, config.IncludeZeroLife) && m.Life <= config.LifeRemainingThreshold {
		details["LifeRemaining"] = fmt.Sprintf("%d%% (Warning: at or below %d%%)", m.Life, config.LifeRemainingThreshold)
		*severity = "critical"
		*eventType = "lifetime_alert"
	}
}

// generateMessage generates a summary message based on the details.
func generateMessage(details map[string]string) string {
	if _, found := details["CriticalWarning"]; found {
		return "NVMe controller reports a critical warning."
	}
	if _, found := details["PendingSectors"]; found {
		return "SMART data indicates potential drive issues (pending sectors)."
	}
	if _, found := details["ReallocatedSectors"]; found {
		return "SMART data indicates potential drive issues (reallocated sectors)."
	}
	if _, found := details["UncorrectableSectors"]; found {
		return "SMART data indicates potential drive issues (uncorrectable sectors)."
	}
	if v, found := details["LifeRemaining"]; found && len(v) > 0 && v[len(v)-1] == ')' {
		return "SMART data indicates SSD nearing end of life."
	}
	return "SMART data collected successfully."
}
