package wearout

import "fmt"

// CountdownStrategy reports remaining life before a service target,
// normalised by the full service interval (oil changes, tire rotations).
type CountdownStrategy struct{}

func (CountdownStrategy) Mode() Mode { return ModeCountdown }

func (CountdownStrategy) Calculate(input Input) Result {
	remaining := *input.Target - input.Current
	pct := safeDiv(remaining, *input.Interval) * 100

	// Overdue readings still show 0 left; the negative value drives severity.
	shown := remaining
	if shown < 0 {
		shown = 0
	}

	return Result{
		Percentage:   clamp(pct, 0, 100),
		DisplayValue: fmt.Sprintf("%s %s left", formatGrouped(shown), unitOf(input)),
		Severity:     countdownSeverity(pct),
		Mode:         ModeCountdown,
	}
}

func countdownSeverity(pct float64) Severity {
	switch {
	case pct < 10:
		return SeverityCritical
	case pct < 25:
		return SeverityWarning
	default:
		return SeverityOK
	}
}
