package wearout

import (
	"database/sql"
	"fmt"

	"fleetwear/internal/logging"
)

// Migrate creates the wear_history table.
func Migrate(db *sql.DB) error {
	lg := logging.Component("wearout")
	lg.Info().Msg("running migration: wear history")

	statements := []struct {
		label string
		sql   string
	}{
		{"wear_history", `
			CREATE TABLE IF NOT EXISTS wear_history (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				vehicle_kind  TEXT    NOT NULL,
				vehicle_id    TEXT    NOT NULL,
				vehicle_name  TEXT    NOT NULL DEFAULT '',
				metric        TEXT    NOT NULL,
				percentage    REAL    NOT NULL,
				severity      TEXT    NOT NULL,
				display_value TEXT    NOT NULL DEFAULT '',
				timestamp     DATETIME DEFAULT CURRENT_TIMESTAMP,
				UNIQUE(vehicle_kind, vehicle_id, metric, timestamp)
			);`},
		{"wear_history indexes", `
			CREATE INDEX IF NOT EXISTS idx_wear_vehicle   ON wear_history(vehicle_kind, vehicle_id, metric);
			CREATE INDEX IF NOT EXISTS idx_wear_timestamp ON wear_history(timestamp);`},
	}

	for _, s := range statements {
		if _, err := db.Exec(s.sql); err != nil {
			return fmt.Errorf("wear migration failed at [%s]: %w", s.label, err)
		}
		lg.Debug().Str("step", s.label).Msg("migration step applied")
	}
	return nil
}
