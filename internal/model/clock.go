package model

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	clock12 = regexp.MustCompile(`(?i)^(\d{1,2}):(\d{2})\s*(AM|PM)$`)
	clock24 = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// ParseClock converts "5:12 AM", "05:12 pm" or "17:30" into minutes since
// midnight. Out-of-range hours or minutes are rejected.
func ParseClock(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if m := clock12.FindStringSubmatch(s); m != nil {
		hours, _ := strconv.Atoi(m[1])
		minutes, _ := strconv.Atoi(m[2])
		if hours < 1 || hours > 12 || minutes > 59 {
			return 0, false
		}
		if hours == 12 {
			hours = 0
		}
		if strings.EqualFold(m[3], "PM") {
			hours += 12
		}
		return hours*60 + minutes, true
	}
	if m := clock24.FindStringSubmatch(s); m != nil {
		hours, _ := strconv.Atoi(m[1])
		minutes, _ := strconv.Atoi(m[2])
		if hours > 23 || minutes > 59 {
			return 0, false
		}
		return hours*60 + minutes, true
	}
	return 0, false
}

// MinutesSinceMidnight returns the time-of-day of t in minutes.
func MinutesSinceMidnight(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
