package activity

import (
	"strings"
	"time"
)

// TimestampLayout is the layout used when writing timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// ParseTimestamp parses an RFC 3339 timestamp with or without a fractional
// second part. The result is in UTC.
func ParseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, &MalformedTimestampError{Value: value, Err: err}
	}
	return t.UTC(), nil
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
