package council

import (
	"fmt"
	"time"
)

// FormatDurationShort renders a turn or batch duration in at most two units:
// "0.4s", "12.3s", "4m05s", "1h20m".
func FormatDurationShort(d time.Duration) string {
	d = d.Truncate(100 * time.Millisecond)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// TruncateMiddle shortens s to maxLen runes by replacing the middle with "...".
// Newlines are flattened so the result fits on one line.
func TruncateMiddle(s string, maxLen int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' || c == '\r' {
			r[i] = ' '
		}
	}
	if len(r) <= maxLen {
		return string(r)
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	available := maxLen - 3
	first := (available + 1) / 2
	last := available / 2
	return string(r[:first]) + "..." + string(r[len(r)-last:])
}
