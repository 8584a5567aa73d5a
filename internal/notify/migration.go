package notify

import (
	"database/sql"
	"fmt"

	"fleetwear/internal/logging"
)

// Migrate creates the notification tables.
func Migrate(db *sql.DB) error {
	lg := logging.Component("notify")
	lg.Info().Msg("running migration: notifications")

	statements := []struct {
		label string
		sql   string
	}{
		{"notification_services", `
			CREATE TABLE IF NOT EXISTS notification_services (
				id                 INTEGER PRIMARY KEY AUTOINCREMENT,
				name               TEXT    NOT NULL,
				url                TEXT    NOT NULL,
				enabled            INTEGER DEFAULT 1,
				notify_on_critical INTEGER DEFAULT 1,
				notify_on_warning  INTEGER DEFAULT 0,
				notify_on_recovery INTEGER DEFAULT 0,
				created_at         DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at         DATETIME DEFAULT CURRENT_TIMESTAMP
			);`},
		{"notification_event_rules", `
			CREATE TABLE IF NOT EXISTS notification_event_rules (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				service_id    INTEGER NOT NULL,
				event_type    TEXT    NOT NULL,
				enabled       INTEGER DEFAULT 1,
				cooldown_secs INTEGER DEFAULT 3600,
				UNIQUE(service_id, event_type),
				FOREIGN KEY (service_id) REFERENCES notification_services(id) ON DELETE CASCADE
			);`},
		{"notification_quiet_hours", `
			CREATE TABLE IF NOT EXISTS notification_quiet_hours (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				service_id INTEGER NOT NULL UNIQUE,
				start_time TEXT    NOT NULL DEFAULT '22:00',
				end_time   TEXT    NOT NULL DEFAULT '06:00',
				enabled    INTEGER DEFAULT 0,
				FOREIGN KEY (service_id) REFERENCES notification_services(id) ON DELETE CASCADE
			);`},
		{"notification_history", `
			CREATE TABLE IF NOT EXISTS notification_history (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				service_id    INTEGER,
				event_id      TEXT    NOT NULL DEFAULT '',
				event_type    TEXT    NOT NULL,
				vehicle_id    TEXT,
				message       TEXT    NOT NULL,
				status        TEXT    NOT NULL,
				error_message TEXT,
				sent_at       DATETIME,
				created_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (service_id) REFERENCES notification_services(id) ON DELETE SET NULL
			);`},
		{"notification indexes", `
			CREATE INDEX IF NOT EXISTS idx_notif_services_enabled ON notification_services(enabled);
			CREATE INDEX IF NOT EXISTS idx_notif_rules_service    ON notification_event_rules(service_id);
			CREATE INDEX IF NOT EXISTS idx_notif_hist_created     ON notification_history(created_at);`},
	}

	for _, s := range statements {
		if _, err := db.Exec(s.sql); err != nil {
			return fmt.Errorf("notification migration failed at [%s]: %w", s.label, err)
		}
		lg.Debug().Str("step", s.label).Msg("migration step applied")
	}
	return nil
}
