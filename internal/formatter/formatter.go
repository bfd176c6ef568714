// package formatter renders durations, view counts, and cycle reports for
// messages and CLI output
package formatter

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// FormatDuration renders seconds as m:ss (or h:mm:ss past an hour).
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

// FormatScaledNumber renders a count with a K/M/B suffix, one decimal place,
// trailing zero trimmed: 1234567 -> "1.2M", 5000 -> "5K".
func FormatScaledNumber(n int64) string {
	abs := n
	if abs < 0 {
		abs = -abs
	}

	var scaled float64
	var suffix string
	switch {
	case abs >= 1_000_000_000:
		scaled, suffix = float64(n)/1_000_000_000, "B"
	case abs >= 1_000_000:
		scaled, suffix = float64(n)/1_000_000, "M"
	case abs >= 1_000:
		scaled, suffix = float64(n)/1_000, "K"
	default:
		return strconv.FormatInt(n, 10)
	}

	formatted := strconv.FormatFloat(scaled, 'f', 1, 64)
	formatted = strings.TrimSuffix(formatted, ".0")
	return formatted + suffix
}

// ReportLine is one labeled count row in a rendered report.
type ReportLine struct {
	Label string
	Value string
}

// RenderReport renders labeled rows as aligned plain text for CLI output.
func RenderReport(title string, lines []ReportLine) string {
	var buf bytes.Buffer
	buf.WriteString(title + "\n")

	width := 0
	for _, line := range lines {
		if len(line.Label) > width {
			width = len(line.Label)
		}
	}
	for _, line := range lines {
		buf.WriteString(fmt.Sprintf("  %-*s  %s\n", width, line.Label, line.Value))
	}
	return buf.String()
}
