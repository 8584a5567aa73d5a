package wearout

import "fmt"

// AbsoluteStrategy reports a measurement against the value that counts as
// new, where higher is healthier (tread depth).
type AbsoluteStrategy struct{}

func (AbsoluteStrategy) Mode() Mode { return ModeAbsolute }

func (AbsoluteStrategy) Calculate(input Input) Result {
	pct := safeDiv(input.Current, *input.Max) * 100

	return Result{
		Percentage:   clamp(pct, 0, 100),
		DisplayValue: fmt.Sprintf("%s %s", formatPlain(input.Current), unitOf(input)),
		Severity:     absoluteSeverity(pct),
		Mode:         ModeAbsolute,
	}
}

func absoluteSeverity(pct float64) Severity {
	switch {
	case pct < 25:
		return SeverityCritical
	case pct < 50:
		return SeverityWarning
	default:
		return SeverityOK
	}
}
