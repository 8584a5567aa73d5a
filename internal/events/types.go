package events

import (
	"fmt"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	// Wear events, published when a reading changes tier.
	WearWarning   EventType = "wear_warning"
	WearCritical  EventType = "wear_critical"
	WearRecovered EventType = "wear_recovered"

	// Scanner events
	ScanCompleted EventType = "scan_completed"
	ScanFailed    EventType = "scan_failed"
)

// Severity indicates the urgency of an event.
type Severity int

const (
	SeverityInfo     Severity = 0
	SeverityWarning  Severity = 1
	SeverityCritical Severity = 2
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalText encodes the severity by name, so JSON consumers see
// "warning" rather than 1.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "info":
		*s = SeverityInfo
	case "warning":
		*s = SeverityWarning
	case "critical":
		*s = SeverityCritical
	default:
		return fmt.Errorf("unknown severity %q", b)
	}
	return nil
}

// Event is the payload published through the bus.
type Event struct {
	ID          string            `json:"id"`
	Type        EventType         `json:"type"`
	Severity    Severity          `json:"severity"`
	VehicleKind string            `json:"vehicle_kind,omitempty"`
	VehicleID   string            `json:"vehicle_id,omitempty"`
	VehicleName string            `json:"vehicle_name,omitempty"`
	Metric      string            `json:"metric,omitempty"`
	Message     string            `json:"message"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}
