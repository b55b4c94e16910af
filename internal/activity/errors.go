package activity

import (
	"errors"
	"fmt"
)

// ErrEmptyAggregate is returned when a min, max or mean is requested over a
// lap without trackpoints or an activity without laps.
var ErrEmptyAggregate = errors.New("activity: empty aggregate")

// MalformedTimestampError reports a stored timestamp that does not match
// the recording timestamp layout.
type MalformedTimestampError struct {
	Value string
	Err   error
}

func (e *MalformedTimestampError) Error() string {
	return fmt.Sprintf("activity: malformed timestamp %q: %v", e.Value, e.Err)
}

func (e *MalformedTimestampError) Unwrap() error {
	return e.Err
}
