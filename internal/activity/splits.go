package activity

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Split summarizes one fixed-distance slice of an activity.
type Split struct {
	Distance  float64
	SplitTime float64
	Elevation float64
	HeartRate float64
}

// Splits cuts the activity into slices of splitMeters using the trackpoints'
// cumulative distance. Split boundaries falling between two trackpoints get a
// linearly interpolated time and elevation. HeartRate is the mean of the known
// heart rates inside the split, or 0 when none were recorded.
func Splits(a *Activity, splitMeters float64) []Split {
	if splitMeters <= 0 {
		return nil
	}

	var (
		splits    []Split
		prev      *Trackpoint
		startTime time.Time
		covered   float64
		heartRate []float64
	)

	flush := func(end time.Time, elevation, distance float64) {
		s := Split{
			Distance:  distance,
			SplitTime: end.Sub(startTime).Seconds(),
			Elevation: elevation,
		}
		if len(heartRate) > 0 {
			s.HeartRate = stat.Mean(heartRate, nil)
		}
		splits = append(splits, s)
		heartRate = heartRate[:0]
		startTime = end
		covered = 0
	}

	for tp := range a.Trackpoints() {
		if tp.HeartRate > 0 {
			heartRate = append(heartRate, float64(tp.HeartRate))
		}
		if prev == nil {
			prev, startTime = tp, tp.Time
			continue
		}

		step := max(tp.Distance-prev.Distance, 0)
		elapsed := tp.Time.Sub(prev.Time)
		used := 0.0
		for step > 0 && covered+step-used >= splitMeters {
			used += splitMeters - covered
			frac := used / step
			flush(prev.Time.Add(time.Duration(frac*float64(elapsed))),
				prev.Altitude+frac*(tp.Altitude-prev.Altitude), splitMeters)
		}
		covered += step - used
		prev = tp
	}

	if covered > 0 && prev != nil {
		flush(prev.Time, prev.Altitude, covered)
	}

	return splits
}
