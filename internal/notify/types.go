package notify

import (
	"strconv"
	"strings"
	"time"

	"fleetwear/internal/events"
)

// Service is a shoutrrr destination together with the severities it wants.
type Service struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	URL              string    `json:"url"`
	Enabled          bool      `json:"enabled"`
	NotifyOnCritical bool      `json:"notify_on_critical"`
	NotifyOnWarning  bool      `json:"notify_on_warning"`
	NotifyOnRecovery bool      `json:"notify_on_recovery"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Accepts reports whether the service's severity flags let e through.
// Recoveries carry info severity and have a flag of their own.
func (s Service) Accepts(e events.Event) bool {
	if e.Type == events.WearRecovered {
		return s.NotifyOnRecovery
	}
	switch e.Severity {
	case events.SeverityCritical:
		return s.NotifyOnCritical
	case events.SeverityWarning:
		return s.NotifyOnWarning
	}
	return false
}

// EventRule switches one event type on or off for a service and throttles
// repeats for the same vehicle reading.
type EventRule struct {
	ID           int64  `json:"id"`
	ServiceID    int64  `json:"service_id"`
	EventType    string `json:"event_type"`
	Enabled      bool   `json:"enabled"`
	CooldownSecs int    `json:"cooldown_secs"`
}

// Cooldown is the minimum gap between two alerts for the same reading.
func (r EventRule) Cooldown() time.Duration {
	return time.Duration(r.CooldownSecs) * time.Second
}

// QuietHours is a daily UTC window, "HH:MM" to "HH:MM", in which warnings
// and recoveries are held back. Windows may wrap midnight.
type QuietHours struct {
	ID        int64  `json:"id"`
	ServiceID int64  `json:"service_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Enabled   bool   `json:"enabled"`
}

// Covers reports whether t falls inside the window. A window whose start
// equals its end is empty.
func (q QuietHours) Covers(t time.Time) bool {
	if !q.Enabled {
		return false
	}
	t = t.UTC()
	minute := t.Hour()*60 + t.Minute()
	from, to := parseHHMM(q.StartTime), parseHHMM(q.EndTime)
	switch {
	case from == to:
		return false
	case from < to:
		return minute >= from && minute < to
	default:
		return minute >= from || minute < to
	}
}

// parseHHMM returns minutes after midnight for "HH:MM", or 0 when s is
// malformed.
func parseHHMM(s string) int {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return 0
	}
	h, errH := strconv.Atoi(hh)
	m, errM := strconv.Atoi(mm)
	if errH != nil || errM != nil || h > 23 || m > 59 || h < 0 || m < 0 {
		return 0
	}
	return h*60 + m
}

// Record is one delivery attempt from notification_history. SentAt is zero
// for failed attempts.
type Record struct {
	ID           int64     `json:"id"`
	ServiceID    int64     `json:"service_id"`
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	VehicleID    string    `json:"vehicle_id"`
	Message      string    `json:"message"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	SentAt       time.Time `json:"sent_at,omitzero"`
	CreatedAt    time.Time `json:"created_at"`
}
