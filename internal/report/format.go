package report

import (
	"fmt"
	"math"
)

// formatSeconds renders a duration in seconds as 1h 05m, 26m 40s or 45s
func formatSeconds(seconds float64) string {
	if math.IsInf(seconds, 0) || math.IsNaN(seconds) {
		return "∞"
	}
	s := int(math.Round(seconds))
	h := s / 3600
	m := (s % 3600) / 60
	sec := s % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, sec)
	default:
		return fmt.Sprintf("%ds", sec)
	}
}

func signed(v float64) string {
	if v > 0 {
		return fmt.Sprintf("+%.0f", v)
	}
	return fmt.Sprintf("%.0f", v)
}

func watts(w float64) string {
	if w <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f W", w)
}
