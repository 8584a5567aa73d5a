package wearout

import (
	"math"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

const timeFormat = "2006-01-02 15:04:05"

func clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// safeDiv returns 0 for a zero divisor and for any non-finite quotient.
func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	q := a / b
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return 0
	}
	return q
}

// formatGrouped renders n with thousands separators, rounded half away from
// zero to at most three fraction digits, e.g. 1000 -> "1,000",
// 1234.5678 -> "1,234.568", 0.9999 -> "1".
func formatGrouped(n float64) string {
	return humanize.Commaf(math.Round(n*1000) / 1000)
}

// formatPlain renders n in its shortest exact form, e.g. 9 -> "9", 2.5 -> "2.5".
func formatPlain(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func ptr(v float64) *float64 { return &v }

// parseTime accepts the stored layout and the RFC 3339 form the sqlite driver
// hands back for DATETIME columns.
func parseTime(s string) time.Time {
	for _, layout := range []string{timeFormat, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
