// internal/wearout/storage_test.go
package wearout

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// ── Test DB setup ───────────────────────────────────────────────────────────

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func testSnapshot(id, metric string, pct float64, ts time.Time) Snapshot {
	return Snapshot{
		VehicleKind:  KindTruck,
		VehicleID:    id,
		VehicleName:  "plate-" + id,
		Metric:       metric,
		Percentage:   pct,
		Severity:     countdownSeverity(pct),
		DisplayValue: "test",
		Timestamp:    ts,
	}
}

// ── StoreSnapshot + GetLatestSnapshot ───────────────────────────────────────

func TestStoreAndGetLatestSnapshot(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	if err := StoreSnapshot(db, testSnapshot("k1", MetricOilLife, 25.5, now)); err != nil {
		t.Fatalf("StoreSnapshot failed: %v", err)
	}

	got, err := GetLatestSnapshot(db, KindTruck, "k1", MetricOilLife)
	if err != nil {
		t.Fatalf("GetLatestSnapshot failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected snapshot, got nil")
	}
	if got.Percentage != 25.5 {
		t.Errorf("Percentage = %.2f, want 25.50", got.Percentage)
	}
	if got.Severity != SeverityOK {
		t.Errorf("Severity = %q, want %q", got.Severity, SeverityOK)
	}
	if got.VehicleName != "plate-k1" {
		t.Errorf("VehicleName = %q", got.VehicleName)
	}
	if !got.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, now)
	}
}

func TestGetLatestSnapshot_ReturnsNewest(t *testing.T) {
	db := setupTestDB(t)
	base := time.Now().UTC().Truncate(time.Second)

	StoreSnapshot(db, testSnapshot("k1", MetricOilLife, 50, base.Add(-2*time.Hour)))
	StoreSnapshot(db, testSnapshot("k1", MetricOilLife, 30, base.Add(-1*time.Hour)))
	StoreSnapshot(db, testSnapshot("k1", MetricOilLife, 10, base))

	got, _ := GetLatestSnapshot(db, KindTruck, "k1", MetricOilLife)
	if got == nil {
		t.Fatal("expected snapshot")
	}
	if got.Percentage != 10 {
		t.Errorf("Percentage = %.2f, want 10 (newest)", got.Percentage)
	}
}

func TestGetLatestSnapshot_NotFound(t *testing.T) {
	db := setupTestDB(t)

	got, err := GetLatestSnapshot(db, KindTire, "missing", MetricTreadDepth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestStoreSnapshot_UpsertSameTimestamp(t *testing.T) {
	db := setupTestDB(t)
	ts := time.Now().UTC().Truncate(time.Second)

	StoreSnapshot(db, testSnapshot("k1", MetricOilLife, 40, ts))
	StoreSnapshot(db, testSnapshot("k1", MetricOilLife, 35, ts))

	history, err := GetSnapshotHistory(db, KindTruck, "k1", MetricOilLife, 1)
	if err != nil {
		t.Fatalf("GetSnapshotHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 row after upsert, got %d", len(history))
	}
	if history[0].Percentage != 35 {
		t.Errorf("Percentage = %.2f, want 35", history[0].Percentage)
	}
}

// ── GetAllLatestSnapshots ───────────────────────────────────────────────────

func TestGetAllLatestSnapshots_LeastHealthyFirst(t *testing.T) {
	db := setupTestDB(t)
	base := time.Now().UTC().Truncate(time.Second)

	StoreSnapshot(db, testSnapshot("k1", MetricOilLife, 80, base.Add(-time.Hour)))
	StoreSnapshot(db, testSnapshot("k1", MetricOilLife, 60, base))
	StoreSnapshot(db, testSnapshot("k2", MetricOilLife, 5, base))
	StoreSnapshot(db, testSnapshot("k2", MetricTireRotation, 90, base))

	all, err := GetAllLatestSnapshots(db)
	if err != nil {
		t.Fatalf("GetAllLatestSnapshots failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 latest rows, got %d", len(all))
	}
	if all[0].VehicleID != "k2" || all[0].Percentage != 5 {
		t.Errorf("first = %s/%.0f, want k2/5", all[0].VehicleID, all[0].Percentage)
	}
	if all[1].Percentage != 60 {
		t.Errorf("k1 latest = %.0f, want 60", all[1].Percentage)
	}
}

// ── History + pruning ───────────────────────────────────────────────────────

func TestGetSnapshotHistory_WindowAndOrder(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	StoreSnapshot(db, testSnapshot("k1", MetricOilLife, 90, now.AddDate(0, 0, -40)))
	StoreSnapshot(db, testSnapshot("k1", MetricOilLife, 70, now.AddDate(0, 0, -20)))
	StoreSnapshot(db, testSnapshot("k1", MetricOilLife, 50, now.AddDate(0, 0, -1)))
	StoreSnapshot(db, testSnapshot("k1", MetricTireRotation, 10, now))

	history, err := GetSnapshotHistory(db, KindTruck, "k1", MetricOilLife, 30)
	if err != nil {
		t.Fatalf("GetSnapshotHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 rows within 30 days, got %d", len(history))
	}
	if history[0].Percentage != 70 || history[1].Percentage != 50 {
		t.Errorf("history not oldest-first: %.0f, %.0f", history[0].Percentage, history[1].Percentage)
	}
}

func TestPruneHistory(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	StoreSnapshot(db, testSnapshot("k1", MetricOilLife, 90, now.AddDate(0, 0, -400)))
	StoreSnapshot(db, testSnapshot("k1", MetricOilLife, 50, now))

	n, err := PruneHistory(db, 365)
	if err != nil {
		t.Fatalf("PruneHistory failed: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d rows, want 1", n)
	}
}

func TestGetSnapshotHistory_ReportsCorruptRows(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now().UTC()
	if err := StoreSnapshot(db, testSnapshot("k1", MetricOilLife, 80, now.Add(-time.Hour))); err != nil {
		t.Fatal(err)
	}
	_, err := db.Exec(`INSERT INTO wear_history (vehicle_kind, vehicle_id, metric, percentage, severity, timestamp)
		VALUES (?, 'k1', ?, 'not-a-number', 'ok', ?)`, KindTruck, MetricOilLife, now.Format(timeFormat))
	if err != nil {
		t.Fatal(err)
	}

	history, err := GetSnapshotHistory(db, KindTruck, "k1", MetricOilLife, 30)
	if err == nil {
		t.Fatalf("expected a scan error, got %d snapshots", len(history))
	}
	if _, err := GetAllLatestSnapshots(db); err == nil {
		t.Fatal("expected a scan error from GetAllLatestSnapshots")
	}
}
