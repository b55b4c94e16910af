// Package fusion transfers heart-rate data from a secondary recording into a
// primary recording of the same workout by aligning both on wall-clock
// seconds.
package fusion

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/briangreenhill/hrmerge/internal/activity"
	"gonum.org/v1/gonum/interp"
)

// errUndefinedInterpolation marks a second outside the secondary samples.
// It never leaves this package: callers see the 0 sentinel instead.
var errUndefinedInterpolation = errors.New("fusion: interpolation undefined")

// Result summarizes one merge.
type Result struct {
	Start   time.Time
	End     time.Time
	Samples int // distinct seconds with a secondary heart rate
	Visited int // primary trackpoints written
	Updated int // primary trackpoints that received a known value
	Unknown int // primary trackpoints set to 0
}

// Merge writes interpolated heart rates from secondary into every trackpoint
// of primary. Secondary is never modified.
//
// Primary must have at least one lap and one trackpoint; otherwise the
// activity.ErrEmptyAggregate from its span is returned and primary is left
// untouched. A secondary without samples sets every heart rate to 0.
func Merge(primary, secondary *activity.Activity) (Result, error) {
	startedAt, err := primary.StartedAt()
	if err != nil {
		return Result{}, fmt.Errorf("primary span: %w", err)
	}
	completedAt, err := primary.CompletedAt()
	if err != nil {
		return Result{}, fmt.Errorf("primary span: %w", err)
	}
	start, end := startedAt.Unix(), completedAt.Unix()

	s, err := newSeries(sparseHeartRates(secondary))
	if err != nil {
		return Result{}, err
	}
	values := make([]int, 0, primary.TrackpointCount())
	res := Result{Start: time.Unix(start, 0).UTC(), End: time.Unix(end, 0).UTC(), Samples: s.len()}
	cache := make(map[int64]int)
	for tp := range primary.Trackpoints() {
		hr := 0
		if sec := tp.Time.Unix(); sec >= start && sec <= end {
			hr = s.heartRate(sec, cache)
		}
		if hr > 0 {
			res.Updated++
		} else {
			res.Unknown++
		}
		values = append(values, hr)
	}

	i := 0
	for tp := range primary.Trackpoints() {
		tp.HeartRate = values[i]
		i++
	}
	res.Visited = i

	return res, nil
}

// sparseHeartRates maps each whole second of the recording to its heart rate.
// A repeated second keeps the last value seen.
func sparseHeartRates(a *activity.Activity) map[int64]int {
	samples := make(map[int64]int)
	for tp := range a.Trackpoints() {
		samples[tp.Time.Unix()] = tp.HeartRate
	}
	return samples
}

func roundHeartRate(v float64) int {
	if v <= 0 {
		return 0
	}
	return int(math.Round(v))
}

// series is a piecewise-linear heart-rate function over the seconds covered
// by the secondary samples.
type series struct {
	xs []float64
	ys []float64
	pl *interp.PiecewiseLinear
}

func newSeries(samples map[int64]int) (*series, error) {
	secs := make([]int64, 0, len(samples))
	for sec := range samples {
		secs = append(secs, sec)
	}
	sort.Slice(secs, func(i, j int) bool { return secs[i] < secs[j] })

	s := &series{
		xs: make([]float64, len(secs)),
		ys: make([]float64, len(secs)),
	}
	for i, sec := range secs {
		s.xs[i] = float64(sec)
		s.ys[i] = float64(samples[sec])
	}

	if len(secs) >= 2 {
		s.pl = &interp.PiecewiseLinear{}
		if err := s.pl.Fit(s.xs, s.ys); err != nil {
			return nil, fmt.Errorf("fusion: fit heart rate series: %w", err)
		}
	}
	return s, nil
}

func (s *series) len() int {
	return len(s.xs)
}

// at returns the heart rate at sec, or errUndefinedInterpolation when sec is
// not bracketed by two samples.
func (s *series) at(sec int64) (float64, error) {
	if len(s.xs) == 0 {
		return 0, errUndefinedInterpolation
	}
	x := float64(sec)
	if x < s.xs[0] || x > s.xs[len(s.xs)-1] {
		return 0, errUndefinedInterpolation
	}
	if s.pl == nil {
		return s.ys[0], nil
	}
	return s.pl.Predict(x), nil
}

// heartRate is the rounded value at sec, or 0 where the series is undefined.
// Results are memoized per second in cache.
func (s *series) heartRate(sec int64, cache map[int64]int) int {
	if hr, ok := cache[sec]; ok {
		return hr
	}
	hr := 0
	if v, err := s.at(sec); err == nil {
		hr = roundHeartRate(v)
	}
	cache[sec] = hr
	return hr
}
