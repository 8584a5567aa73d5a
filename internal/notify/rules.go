package notify

import (
	"database/sql"
	"errors"
	"fmt"
)

// ReplaceEventRules makes rules the complete rule set of a service. Event
// types not listed fall back to the default behaviour (always send, no
// cooldown).
func ReplaceEventRules(db *sql.DB, serviceID int64, rules []EventRule) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("replace event rules: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM notification_event_rules WHERE service_id = ?`, serviceID); err != nil {
		return fmt.Errorf("clear event rules: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO notification_event_rules (service_id, event_type, enabled, cooldown_secs)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(service_id, event_type) DO UPDATE SET
			enabled = excluded.enabled, cooldown_secs = excluded.cooldown_secs`)
	if err != nil {
		return fmt.Errorf("prepare event rule insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rules {
		if _, err := stmt.Exec(serviceID, r.EventType, boolInt(r.Enabled), r.CooldownSecs); err != nil {
			return fmt.Errorf("insert event rule %s: %w", r.EventType, err)
		}
	}
	return tx.Commit()
}

// GetEventRules returns a service's rules ordered by event type.
func GetEventRules(db *sql.DB, serviceID int64) ([]EventRule, error) {
	rows, err := db.Query(`
		SELECT id, service_id, event_type, enabled, cooldown_secs
		FROM notification_event_rules
		WHERE service_id = ?
		ORDER BY event_type`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("get event rules: %w", err)
	}
	return collect(rows, func(s scannable) (EventRule, error) {
		var r EventRule
		err := s.Scan(&r.ID, &r.ServiceID, &r.EventType, &r.Enabled, &r.CooldownSecs)
		return r, err
	})
}

// SetQuietHours stores the quiet-hours window of qh.ServiceID, replacing
// any previous one.
func SetQuietHours(db *sql.DB, qh *QuietHours) error {
	_, err := db.Exec(`
		INSERT INTO notification_quiet_hours (service_id, start_time, end_time, enabled)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(service_id) DO UPDATE SET
			start_time = excluded.start_time, end_time = excluded.end_time, enabled = excluded.enabled`,
		qh.ServiceID, qh.StartTime, qh.EndTime, boolInt(qh.Enabled))
	if err != nil {
		return fmt.Errorf("set quiet hours: %w", err)
	}
	return nil
}

// ClearQuietHours removes a service's quiet-hours window.
func ClearQuietHours(db *sql.DB, serviceID int64) error {
	if _, err := db.Exec(`DELETE FROM notification_quiet_hours WHERE service_id = ?`, serviceID); err != nil {
		return fmt.Errorf("clear quiet hours: %w", err)
	}
	return nil
}

// GetQuietHours returns a service's quiet-hours window, or nil if none is set.
func GetQuietHours(db *sql.DB, serviceID int64) (*QuietHours, error) {
	var qh QuietHours
	err := db.QueryRow(`
		SELECT id, service_id, start_time, end_time, enabled
		FROM notification_quiet_hours
		WHERE service_id = ?`, serviceID).
		Scan(&qh.ID, &qh.ServiceID, &qh.StartTime, &qh.EndTime, &qh.Enabled)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("get quiet hours: %w", err)
	}
	return &qh, nil
}
