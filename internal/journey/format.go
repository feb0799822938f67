package journey

import (
	"fmt"
	"time"
)

// FormatMinutes renders d as "1h 5m" or "25m", truncating to whole minutes.
func FormatMinutes(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Minute)
	hours, mins := total/60, total%60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

func FormatDistance(km float64) string {
	if km < 0 {
		km = 0
	}
	return fmt.Sprintf("%.1f km", km)
}
