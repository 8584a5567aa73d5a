package wearout

import (
	"database/sql"
	"fmt"
	"time"
)

const snapshotColumns = `id, vehicle_kind, vehicle_id, vehicle_name, metric, percentage, severity, display_value, timestamp`

// NewSnapshot captures a reading of a vehicle at ts.
func NewSnapshot(v VehicleWear, r Reading, ts time.Time) Snapshot {
	return Snapshot{
		VehicleKind:  v.Kind,
		VehicleID:    v.ID,
		VehicleName:  v.Name,
		Metric:       r.Metric,
		Percentage:   r.Percentage,
		Severity:     r.Severity,
		DisplayValue: r.DisplayValue,
		Timestamp:    ts,
	}
}

// StoreSnapshot persists a reading. A second write for the same vehicle,
// metric and second overwrites the first.
func StoreSnapshot(db *sql.DB, s Snapshot) error {
	_, err := db.Exec(`
		INSERT INTO wear_history (vehicle_kind, vehicle_id, vehicle_name, metric, percentage, severity, display_value, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(vehicle_kind, vehicle_id, metric, timestamp) DO UPDATE SET
			percentage    = excluded.percentage,
			severity      = excluded.severity,
			display_value = excluded.display_value
	`, s.VehicleKind, s.VehicleID, s.VehicleName, s.Metric, s.Percentage, string(s.Severity), s.DisplayValue,
		s.Timestamp.UTC().Format(timeFormat))
	return err
}

// GetLatestSnapshot returns the most recent reading of a vehicle metric,
// or nil when none was stored.
func GetLatestSnapshot(db *sql.DB, kind, vehicleID, metric string) (*Snapshot, error) {
	row := db.QueryRow(`
		SELECT `+snapshotColumns+`
		FROM wear_history
		WHERE vehicle_kind = ? AND vehicle_id = ? AND metric = ?
		ORDER BY timestamp DESC LIMIT 1
	`, kind, vehicleID, metric)

	s, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetAllLatestSnapshots returns the most recent reading of every vehicle
// metric, least healthy first.
func GetAllLatestSnapshots(db *sql.DB) ([]Snapshot, error) {
	rows, err := db.Query(`
		SELECT w.id, w.vehicle_kind, w.vehicle_id, w.vehicle_name, w.metric, w.percentage, w.severity, w.display_value, w.timestamp
		FROM wear_history w
		INNER JOIN (
			SELECT vehicle_kind, vehicle_id, metric, MAX(timestamp) AS max_ts
			FROM wear_history
			GROUP BY vehicle_kind, vehicle_id, metric
		) latest ON w.vehicle_kind = latest.vehicle_kind
			AND w.vehicle_id = latest.vehicle_id
			AND w.metric = latest.metric
			AND w.timestamp = latest.max_ts
		ORDER BY w.percentage ASC
	`)
	if err != nil {
		return nil, err
	}
	return collectSnapshots(rows)
}

// GetSnapshotHistory returns a vehicle metric's readings of the last days,
// oldest first.
func GetSnapshotHistory(db *sql.DB, kind, vehicleID, metric string, days int) ([]Snapshot, error) {
	since := time.Now().AddDate(0, 0, -days).UTC().Format(timeFormat)

	rows, err := db.Query(`
		SELECT `+snapshotColumns+`
		FROM wear_history
		WHERE vehicle_kind = ? AND vehicle_id = ? AND metric = ? AND timestamp >= ?
		ORDER BY timestamp ASC
	`, kind, vehicleID, metric, since)
	if err != nil {
		return nil, err
	}
	return collectSnapshots(rows)
}

// PruneHistory deletes readings older than days and returns how many went.
func PruneHistory(db *sql.DB, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days).UTC().Format(timeFormat)
	res, err := db.Exec(`DELETE FROM wear_history WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (Snapshot, error) {
	var s Snapshot
	var severity, ts string
	err := row.Scan(&s.ID, &s.VehicleKind, &s.VehicleID, &s.VehicleName, &s.Metric,
		&s.Percentage, &severity, &s.DisplayValue, &ts)
	if err != nil {
		return Snapshot{}, err
	}
	s.Severity = Severity(severity)
	s.Timestamp = parseTime(ts)
	return s, nil
}

func collectSnapshots(rows *sql.Rows) ([]Snapshot, error) {
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wear snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}
