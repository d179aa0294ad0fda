package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// formatAmount renders a dollar figure with K/M/B abbreviations, the
// way the announcement messages show market caps and volumes.
func formatAmount(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e9:
		return trimZeros(fmt.Sprintf("%.2f", v/1e9)) + "B"
	case abs >= 1e6:
		return trimZeros(fmt.Sprintf("%.2f", v/1e6)) + "M"
	case abs >= 1e3:
		return trimZeros(fmt.Sprintf("%.2f", v/1e3)) + "K"
	default:
		return trimZeros(fmt.Sprintf("%.2f", v))
	}
}

// formatPrice compresses long runs of leading zeros in micro-cap
// prices: 0.000001234 becomes 0.0{5}1234.
func formatPrice(p float64) string {
	if p <= 0 {
		return "0"
	}
	if p >= 0.001 {
		return trimZeros(strconv.FormatFloat(p, 'f', 6, 64))
	}

	s := strconv.FormatFloat(p, 'f', -1, 64)
	frac := s[strings.Index(s, ".")+1:]
	zeros := 0
	for zeros < len(frac) && frac[zeros] == '0' {
		zeros++
	}
	digits := frac[zeros:]
	if len(digits) > 4 {
		digits = digits[:4]
	}
	digits = strings.TrimRight(digits, "0")
	if digits == "" {
		return "0"
	}
	return fmt.Sprintf("0.0{%d}%s", zeros, digits)
}

// formatCount adds thousands separators to holder counts.
func formatCount(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// formatAge renders the time since launch as a compact "2d 4h" style
// string.
func formatAge(age time.Duration) string {
	if age <= 0 {
		return "-"
	}
	days := int(age.Hours()) / 24
	hours := int(age.Hours()) % 24
	minutes := int(age.Minutes()) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", int(age.Minutes()))
	}
}

func trimZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
