package feeds

import (
	"fmt"
	"strconv"
	"strings"

	"lauschr/internal/apperr"
)

// FormatDuration renders seconds as M:SS, or H:MM:SS from one hour on.
// Negative values render as 0:00.
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

// ParseDuration reads H:MM:SS, MM:SS or plain seconds. Empty input is zero.
func ParseDuration(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, apperr.Validation(component, "parse duration", fmt.Sprintf("too many fields in %q", value))
	}
	multipliers := []int{1, 60, 3600}
	total := 0
	for i := range parts {
		part := strings.TrimSpace(parts[len(parts)-1-i])
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, apperr.Validation(component, "parse duration", fmt.Sprintf("invalid field %q in %q", part, value))
		}
		total += n * multipliers[i]
	}
	return total, nil
}
