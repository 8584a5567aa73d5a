package notify

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const timeFormat = "2006-01-02 15:04:05"

// ErrNotFound is returned when an update or delete matches no row.
var ErrNotFound = errors.New("not found")

const serviceColumns = `id, name, url, enabled,
		       notify_on_critical, notify_on_warning, notify_on_recovery,
		       created_at, updated_at`

// ── Service CRUD ────────────────────────────────────────────────────────

// CreateService inserts a new notification destination.
func CreateService(db *sql.DB, svc *Service) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO notification_services
			(name, url, enabled, notify_on_critical, notify_on_warning, notify_on_recovery)
		VALUES (?, ?, ?, ?, ?, ?)`,
		svc.Name, svc.URL,
		boolInt(svc.Enabled),
		boolInt(svc.NotifyOnCritical),
		boolInt(svc.NotifyOnWarning),
		boolInt(svc.NotifyOnRecovery))
	if err != nil {
		return 0, fmt.Errorf("create notification service: %w", err)
	}
	return res.LastInsertId()
}

// GetService retrieves a service by ID. It returns nil, nil if absent.
func GetService(db *sql.DB, id int64) (*Service, error) {
	row := db.QueryRow(`SELECT `+serviceColumns+` FROM notification_services WHERE id = ?`, id)
	svc, err := scanService(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

// ListServices returns all notification services.
func ListServices(db *sql.DB) ([]Service, error) {
	return queryServices(db, `SELECT `+serviceColumns+` FROM notification_services ORDER BY name`)
}

// ListEnabledServices returns only enabled notification services.
func ListEnabledServices(db *sql.DB) ([]Service, error) {
	return queryServices(db, `SELECT `+serviceColumns+` FROM notification_services WHERE enabled = 1 ORDER BY name`)
}

// UpdateService overwrites a service's configuration.
func UpdateService(db *sql.DB, svc *Service) error {
	res, err := db.Exec(`
		UPDATE notification_services SET
			name = ?, url = ?, enabled = ?,
			notify_on_critical = ?, notify_on_warning = ?, notify_on_recovery = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		svc.Name, svc.URL,
		boolInt(svc.Enabled),
		boolInt(svc.NotifyOnCritical),
		boolInt(svc.NotifyOnWarning),
		boolInt(svc.NotifyOnRecovery),
		svc.ID)
	if err != nil {
		return fmt.Errorf("update notification service: %w", err)
	}
	return expectOneRow(res, "update notification service")
}

// DeleteService removes a service; rules and quiet hours cascade.
func DeleteService(db *sql.DB, id int64) error {
	res, err := db.Exec(`DELETE FROM notification_services WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete notification service: %w", err)
	}
	return expectOneRow(res, "delete notification service")
}

// ── helpers ──────────────────────────────────────────────────────────────

// scannable is satisfied by *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func queryServices(db *sql.DB, query string) ([]Service, error) {
	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list notification services: %w", err)
	}
	return collect(rows, scanService)
}

// collect scans every row with scan and closes rows.
func collect[T any](rows *sql.Rows, scan func(scannable) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanService(s scannable) (Service, error) {
	var svc Service
	var enabled, critical, warning, recovery int
	var createdAt, updatedAt string

	err := s.Scan(&svc.ID, &svc.Name, &svc.URL,
		&enabled, &critical, &warning, &recovery, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return svc, err
	}
	if err != nil {
		return svc, fmt.Errorf("scan notification service: %w", err)
	}
	svc.Enabled = enabled == 1
	svc.NotifyOnCritical = critical == 1
	svc.NotifyOnWarning = warning == 1
	svc.NotifyOnRecovery = recovery == 1
	svc.CreatedAt = parseTime(createdAt)
	svc.UpdatedAt = parseTime(updatedAt)
	return svc, nil
}

// parseTime accepts both the sqlite text layout and RFC 3339, which the
// driver returns for DATETIME columns.
func parseTime(s string) time.Time {
	for _, layout := range []string{timeFormat, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
