package notifier

import (
	"strconv"
	"strings"
	"time"
)

// inQuietHours reports whether now falls inside the user's quiet-hours
// window. Bounds are wall-clock "HH:MM" strings compared against server
// time; both ends are inclusive. A window whose start is later than its
// end spans midnight. The window is only honored when both bounds are
// present and well formed.
func inQuietHours(now time.Time, start, end *string) bool {
	if start == nil || end == nil {
		return false
	}

	startMin, ok := parseClock(*start)
	if !ok {
		return false
	}
	endMin, ok := parseClock(*end)
	if !ok {
		return false
	}

	nowMin := now.Hour()*60 + now.Minute()

	if startMin <= endMin {
		return nowMin >= startMin && nowMin <= endMin
	}
	// Window spans midnight.
	return nowMin >= startMin || nowMin <= endMin
}

// ValidClock reports whether s is a well-formed "HH:MM" quiet-hours bound.
func ValidClock(s string) bool {
	_, ok := parseClock(s)
	return ok
}

// parseClock converts a "HH:MM" wall-clock string to minutes since
// midnight.
func parseClock(s string) (int, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, false
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}

	return hour*60 + minute, true
}
