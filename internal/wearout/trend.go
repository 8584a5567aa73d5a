package wearout

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// serviceJump is the rise in health, in percentage points, between two
// consecutive snapshots that is taken as a completed service. Oil changes and
// rotations push the next due mileage out, so the reading starts a new run.
const serviceJump = 20.0

// PredictTrend fits a least-squares line through the snapshots recorded since
// the last service and projects the days left until health reaches 0%.
// Returns nil when that run has fewer than three snapshots.
func PredictTrend(snapshots []Snapshot) *TrendPrediction {
	run := currentRun(snapshots)
	if len(run) < 3 {
		return nil
	}

	origin := run[0].Timestamp
	xs := make([]float64, len(run))
	ys := make([]float64, len(run))
	for i, s := range run {
		xs[i] = daysBetween(origin, s.Timestamp)
		ys[i] = s.Percentage
	}
	_, slope := stat.LinearRegression(xs, ys, nil, false)
	// Snapshots taken at one instant have no slope.
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		slope = 0
	}

	last := run[len(run)-1]
	pred := &TrendPrediction{
		DailyRate:  slope,
		Confidence: confidenceFor(daysBetween(origin, last.Timestamp)),
		Since:      origin,
	}
	if slope < -1e-4 && last.Percentage > 0 {
		days := last.Percentage / -slope
		pred.DaysRemaining = &days
	}
	return pred
}

// currentRun returns the tail of snapshots after the most recent service jump.
func currentRun(snapshots []Snapshot) []Snapshot {
	for i := len(snapshots) - 1; i > 0; i-- {
		if snapshots[i].Percentage-snapshots[i-1].Percentage >= serviceJump {
			return snapshots[i:]
		}
	}
	return snapshots
}

func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}

func confidenceFor(spanDays float64) string {
	if spanDays >= 90 {
		return "high"
	}
	if spanDays >= 30 {
		return "medium"
	}
	return "low"
}
