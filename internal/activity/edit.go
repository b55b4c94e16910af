package activity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var offsetPattern = regexp.MustCompile(`^([+-]?)(?:(\d+)hour)?(?:(\d+)m)?(?:(\d+)s)?$`)

// ParseOffset parses a time shift such as "+1hour30m", "-45s" or any value
// accepted by time.ParseDuration.
func ParseOffset(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if parts := offsetPattern.FindStringSubmatch(value); parts != nil && (parts[2] != "" || parts[3] != "" || parts[4] != "") {
		var offset time.Duration
		units := []time.Duration{time.Hour, time.Minute, time.Second}
		for i, unit := range units {
			if parts[i+2] == "" {
				continue
			}
			n, err := strconv.Atoi(parts[i+2])
			if err != nil {
				return 0, fmt.Errorf("invalid time offset %q: %w", value, err)
			}
			offset += time.Duration(n) * unit
		}
		if parts[1] == "-" {
			offset = -offset
		}
		return offset, nil
	}

	offset, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid time offset %q", value)
	}
	return offset, nil
}

// Shift moves every stored lap start and every trackpoint time by offset.
// Derived lap starts follow their trackpoints.
func Shift(a *Activity, offset time.Duration) {
	for _, lap := range a.Laps {
		if lap.HasStoredStart() {
			lap.start = lap.start.Add(offset)
		}
		for _, tp := range lap.Trackpoints {
			tp.Time = tp.Time.Add(offset)
		}
	}
}
