// Package wearout computes vehicle wear and service-interval health, keeps a
// history of readings and projects when they will run out.
package wearout

import "math"

var (
	countdown Strategy = CountdownStrategy{}
	absolute  Strategy = AbsoluteStrategy{}
)

// Compute converts one reading into a health percentage, a display string and
// a severity tier. It is pure and safe for concurrent use.
//
// An inverse input with Max uses the absolute formula; otherwise an input with
// both Target and Interval uses the countdown formula. Anything else yields
// {0, "", critical} with Mode set to ModeNone.
func Compute(input Input) Result {
	strategy := strategyFor(input)
	if strategy == nil || !finite(strategy, input) {
		return Result{Severity: SeverityCritical, Mode: ModeNone}
	}
	return strategy.Calculate(input)
}

func strategyFor(input Input) Strategy {
	switch {
	case input.Inverse && input.Max != nil:
		return absolute
	case input.Target != nil && input.Interval != nil:
		return countdown
	default:
		return nil
	}
}

// finite reports whether the numbers the chosen strategy reads are real
// values; NaN or infinite inputs are treated like missing configuration.
// Fields the strategy ignores are not checked.
func finite(s Strategy, input Input) bool {
	vals := []float64{input.Current}
	if s.Mode() == ModeAbsolute {
		vals = append(vals, *input.Max)
	} else {
		vals = append(vals, *input.Target, *input.Interval)
	}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Countdown builds a countdown input.
func Countdown(current, target, interval float64, unit string) Input {
	return Input{Current: current, Target: ptr(target), Interval: ptr(interval), Unit: unit}
}

// Absolute builds an absolute (higher is better) input.
func Absolute(current, max float64, unit string) Input {
	return Input{Current: current, Max: ptr(max), Inverse: true, Unit: unit}
}

func unitOf(input Input) string {
	if input.Unit == "" {
		return DefaultUnit
	}
	return input.Unit
}
