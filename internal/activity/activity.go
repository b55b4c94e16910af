package activity

import (
	"fmt"
	"iter"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}

// Position is a location fix in degrees.
type Position struct {
	Latitude  float64
	Longitude float64
}

// Trackpoint is a single timestamped sample. HeartRate is 0 when unknown.
type Trackpoint struct {
	Time      time.Time
	Distance  float64
	Altitude  float64
	HeartRate int
	Position  *Position
}

func NewTrackpoint(t time.Time) *Trackpoint {
	return &Trackpoint{Time: t}
}

// ParseTrackpoint builds a trackpoint from a raw timestamp string.
func ParseTrackpoint(ts string) (*Trackpoint, error) {
	t, err := ParseTimestamp(ts)
	if err != nil {
		return nil, err
	}
	return NewTrackpoint(t), nil
}

func (t *Trackpoint) String() string {
	return fmt.Sprintf("<Trackpoint: %s; distance %.0f; heart rate %d>", t.Time.Format(time.RFC3339), t.Distance, t.HeartRate)
}

// Lap is an ordered run of trackpoints plus summary fields.
//
// AvgHeartRateSummary and MaxHeartRateSummary hold the values supplied by the
// source recording. A summary of exactly 0 cannot be told apart from "not
// supplied", so it falls back to the value computed from the trackpoints.
type Lap struct {
	Trackpoints []*Trackpoint

	Duration float64 // seconds
	Distance float64 // meters
	Calories int
	MaxSpeed float64 // meters per second

	AvgHeartRateSummary int
	MaxHeartRateSummary int

	start         time.Time
	triggerMethod string
}

// NewLap creates a lap with an explicit start time. A zero time means the
// start is derived from the trackpoints.
func NewLap(start time.Time) *Lap {
	return &Lap{start: start}
}

// ParseLap creates a lap from a raw start time string. An empty string
// leaves the start time to be derived.
func ParseLap(start string) (*Lap, error) {
	if start == "" {
		return NewLap(time.Time{}), nil
	}
	t, err := ParseTimestamp(start)
	if err != nil {
		return nil, err
	}
	return NewLap(t), nil
}

// HasStoredStart reports whether the lap carries an explicit start time.
func (l *Lap) HasStoredStart() bool {
	return !l.start.IsZero()
}

func (l *Lap) SetStartTime(t time.Time) {
	l.start = t
}

func (l *Lap) StartTime() (time.Time, error) {
	if !l.start.IsZero() {
		return l.start, nil
	}
	if len(l.Trackpoints) == 0 {
		return time.Time{}, fmt.Errorf("lap start time: %w", ErrEmptyAggregate)
	}
	earliest := l.Trackpoints[0].Time
	for _, tp := range l.Trackpoints[1:] {
		if tp.Time.Before(earliest) {
			earliest = tp.Time
		}
	}
	return earliest, nil
}

func (l *Lap) EndTime() (time.Time, error) {
	if len(l.Trackpoints) == 0 {
		return time.Time{}, fmt.Errorf("lap end time: %w", ErrEmptyAggregate)
	}
	latest := l.Trackpoints[0].Time
	for _, tp := range l.Trackpoints[1:] {
		if tp.Time.After(latest) {
			latest = tp.Time
		}
	}
	return latest, nil
}

func (l *Lap) AvgHeartRate() (float64, error) {
	if l.AvgHeartRateSummary != 0 {
		return float64(l.AvgHeartRateSummary), nil
	}
	if len(l.Trackpoints) == 0 {
		return 0, fmt.Errorf("lap average heart rate: %w", ErrEmptyAggregate)
	}
	return meanHeartRate(l.Trackpoints), nil
}

func (l *Lap) MaxHeartRate() (int, error) {
	if l.MaxHeartRateSummary != 0 {
		return l.MaxHeartRateSummary, nil
	}
	if len(l.Trackpoints) == 0 {
		return 0, fmt.Errorf("lap max heart rate: %w", ErrEmptyAggregate)
	}
	return maxHeartRate(l.Trackpoints), nil
}

func (l *Lap) TriggerMethod() string {
	return l.triggerMethod
}

func (l *Lap) SetTriggerMethod(method string) {
	l.triggerMethod = titleCase(method)
}

func (l *Lap) String() string {
	start, _ := l.StartTime()
	return fmt.Sprintf("<Lap: started at %s; duration %.0f sec; %.0f meters (%d trackpoints)>",
		start.Format(time.RFC3339), l.Duration, l.Distance, len(l.Trackpoints))
}

// Activity is one recorded workout made of ordered laps.
type Activity struct {
	Laps []*Lap

	id    string
	sport string
}

func New(id string) *Activity {
	return &Activity{id: id}
}

// Identifier returns the recording ID, or the start time when the recording
// did not carry one.
func (a *Activity) Identifier() (string, error) {
	if a.id != "" {
		return a.id, nil
	}
	start, err := a.StartedAt()
	if err != nil {
		return "", fmt.Errorf("activity identifier: %w", err)
	}
	return FormatTimestamp(start), nil
}

// HasStoredIdentifier reports whether the activity carries an explicit ID.
func (a *Activity) HasStoredIdentifier() bool {
	return a.id != ""
}

func (a *Activity) SetIdentifier(id string) {
	a.id = id
}

func (a *Activity) Type() string {
	return a.sport
}

func (a *Activity) SetType(sport string) {
	a.sport = titleCase(sport)
}

func (a *Activity) StartedAt() (time.Time, error) {
	if len(a.Laps) == 0 {
		return time.Time{}, fmt.Errorf("activity start: %w", ErrEmptyAggregate)
	}
	var earliest time.Time
	for i, lap := range a.Laps {
		start, err := lap.StartTime()
		if err != nil {
			return time.Time{}, fmt.Errorf("activity start: lap %d: %w", i, err)
		}
		if i == 0 || start.Before(earliest) {
			earliest = start
		}
	}
	return earliest, nil
}

func (a *Activity) CompletedAt() (time.Time, error) {
	if len(a.Laps) == 0 {
		return time.Time{}, fmt.Errorf("activity completion: %w", ErrEmptyAggregate)
	}
	var latest time.Time
	for i, lap := range a.Laps {
		end, err := lap.EndTime()
		if err != nil {
			return time.Time{}, fmt.Errorf("activity completion: lap %d: %w", i, err)
		}
		if i == 0 || end.After(latest) {
			latest = end
		}
	}
	return latest, nil
}

// TotalTime is the sum of the laps' stored durations in seconds.
func (a *Activity) TotalTime() float64 {
	total := 0.0
	for _, lap := range a.Laps {
		total += lap.Duration
	}
	return total
}

func (a *Activity) Calories() int {
	total := 0
	for _, lap := range a.Laps {
		total += lap.Calories
	}
	return total
}

func (a *Activity) Distance() float64 {
	total := 0.0
	for _, lap := range a.Laps {
		total += lap.Distance
	}
	return total
}

// Trackpoints yields every trackpoint of every lap in order. The sequence
// can be ranged over any number of times.
func (a *Activity) Trackpoints() iter.Seq[*Trackpoint] {
	return func(yield func(*Trackpoint) bool) {
		for _, lap := range a.Laps {
			for _, tp := range lap.Trackpoints {
				if !yield(tp) {
					return
				}
			}
		}
	}
}

func (a *Activity) TrackpointCount() int {
	n := 0
	for _, lap := range a.Laps {
		n += len(lap.Trackpoints)
	}
	return n
}

func (a *Activity) String() string {
	sport := a.sport
	if sport == "" {
		sport = "Unknown"
	}
	id, _ := a.Identifier()
	return fmt.Sprintf("<Activity: id %q of type %q (%d laps)>", id, sport, len(a.Laps))
}
