package wearout

import "time"

// Strategy computes wear for one input shape.
// Countdown and absolute readings are separate strategies; Compute picks one.
type Strategy interface {
	Calculate(input Input) Result
	Mode() Mode
}

// Mode identifies which formula produced a result.
type Mode string

const (
	ModeNone      Mode = "none"
	ModeCountdown Mode = "countdown"
	ModeAbsolute  Mode = "absolute"
)

// Severity is the coarse health tier shown next to a wear bar.
type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank orders severities so the worst of several readings can be picked.
func (s Severity) Rank() int {
	switch s {
	case SeverityOK:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// DefaultUnit labels countdown readings when the caller gives none.
const DefaultUnit = "km"

// Input is one wear reading.
//
// Countdown mode needs Target and Interval: Target is the odometer value at
// which service is due, Interval the full cycle length.
// Absolute mode needs Max and Inverse=true: Max is the value that counts as
// 100% health (e.g. new tread depth).
type Input struct {
	Current  float64  `json:"current"`
	Target   *float64 `json:"target,omitempty"`
	Interval *float64 `json:"interval,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Inverse  bool     `json:"inverse,omitempty"`
	Unit     string   `json:"unit,omitempty"`
}

// Result is the output of Compute. Percentage is always within [0, 100].
// Mode is ModeNone when the input matched neither shape; the numeric fields
// then read 0%, "" and critical.
type Result struct {
	Percentage   float64  `json:"percentage"`
	DisplayValue string   `json:"display_value"`
	Severity     Severity `json:"severity"`
	Mode         Mode     `json:"mode"`
}

// Metric names for the readings derived from fleet records.
const (
	MetricOilLife      = "oil_life"
	MetricTireRotation = "tire_rotation"
	MetricTreadDepth   = "tread_depth"
)

// Vehicle kinds stored alongside snapshots.
const (
	KindTruck = "truck"
	KindTire  = "tire"
)

// Reading is one named wear bar of a vehicle.
type Reading struct {
	Metric string `json:"metric"`
	Label  string `json:"label"`
	Result
}

// VehicleWear groups the readings of one truck or tire.
type VehicleWear struct {
	Kind     string    `json:"kind"`
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Status   string    `json:"status,omitempty"`
	Flags    []string  `json:"maintenance_flags,omitempty"`
	// MountedOn names the truck or trailer a tire is fitted to.
	MountedOn string    `json:"mounted_on,omitempty"`
	Readings  []Reading `json:"readings"`
	Worst    Severity  `json:"worst_severity"`
}

// Snapshot is a point-in-time reading stored in the database.
type Snapshot struct {
	ID           int       `json:"id,omitempty"`
	VehicleKind  string    `json:"vehicle_kind"`
	VehicleID    string    `json:"vehicle_id"`
	VehicleName  string    `json:"vehicle_name"`
	Metric       string    `json:"metric"`
	Percentage   float64   `json:"percentage"`
	Severity     Severity  `json:"severity"`
	DisplayValue string    `json:"display_value"`
	Timestamp    time.Time `json:"timestamp"`
}

// TrendPrediction estimates when a reading will run out.
type TrendPrediction struct {
	DaysRemaining *float64 `json:"days_remaining,omitempty"`
	// DailyRate is in percentage points per day; negative while wearing.
	DailyRate  float64 `json:"daily_rate"`
	Confidence string  `json:"confidence"` // "low", "medium", "high"
	// Since is the first snapshot of the fitted run.
	Since time.Time `json:"since"`
}
