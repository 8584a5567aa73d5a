package notify

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Delivery outcomes stored in notification_history.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// HistoryQuery selects notification history rows. Zero fields match all.
type HistoryQuery struct {
	ServiceID int64
	VehicleID string
	Status    string
	// Limit defaults to 50.
	Limit int
}

// RecordNotification appends a delivery attempt to notification_history.
func RecordNotification(db *sql.DB, rec *Record) (int64, error) {
	var sentAt sql.NullString
	if !rec.SentAt.IsZero() {
		sentAt = sql.NullString{String: rec.SentAt.UTC().Format(timeFormat), Valid: true}
	}

	res, err := db.Exec(`
		INSERT INTO notification_history
			(service_id, event_id, event_type, vehicle_id, message, status, error_message, sent_at)
		VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?, ?, ?)`,
		rec.ServiceID, rec.EventID, rec.EventType, rec.VehicleID,
		rec.Message, rec.Status, rec.ErrorMessage, sentAt)
	if err != nil {
		return 0, fmt.Errorf("record notification: %w", err)
	}
	return res.LastInsertId()
}

// History returns matching delivery attempts, newest first.
func History(db *sql.DB, q HistoryQuery) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if q.ServiceID > 0 {
		where, args = append(where, "service_id = ?"), append(args, q.ServiceID)
	}
	if q.VehicleID != "" {
		where, args = append(where, "vehicle_id = ?"), append(args, q.VehicleID)
	}
	if q.Status != "" {
		where, args = append(where, "status = ?"), append(args, q.Status)
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}

	query := `
		SELECT id, COALESCE(service_id, 0), event_id, event_type,
		       COALESCE(vehicle_id, ''), message, status,
		       COALESCE(error_message, ''), COALESCE(sent_at, ''), created_at
		FROM notification_history`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, q.Limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("notification history: %w", err)
	}
	return collect(rows, scanRecord)
}

// PruneHistory deletes delivery attempts older than days.
func PruneHistory(db *sql.DB, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days).UTC().Format(timeFormat)
	res, err := db.Exec(`DELETE FROM notification_history WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune notification history: %w", err)
	}
	return res.RowsAffected()
}

func scanRecord(s scannable) (Record, error) {
	var r Record
	var sentAt, createdAt string
	if err := s.Scan(&r.ID, &r.ServiceID, &r.EventID, &r.EventType,
		&r.VehicleID, &r.Message, &r.Status,
		&r.ErrorMessage, &sentAt, &createdAt); err != nil {
		return r, fmt.Errorf("scan history: %w", err)
	}
	r.SentAt = parseTime(sentAt)
	r.CreatedAt = parseTime(createdAt)
	return r, nil
}
