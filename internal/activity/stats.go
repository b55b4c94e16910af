package activity

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func heartRates(trackpoints []*Trackpoint) []float64 {
	values := make([]float64, len(trackpoints))
	for i, tp := range trackpoints {
		values[i] = float64(tp.HeartRate)
	}
	return values
}

func meanHeartRate(trackpoints []*Trackpoint) float64 {
	return stat.Mean(heartRates(trackpoints), nil)
}

func maxHeartRate(trackpoints []*Trackpoint) int {
	return int(floats.Max(heartRates(trackpoints)))
}
