package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplits(t *testing.T) {
	lap := NewLap(time.Time{})
	for i, d := range []float64{0, 400, 800, 1200, 1600, 2000, 2300} {
		tp := NewTrackpoint(at(i * 100))
		tp.Distance = d
		tp.Altitude = float64(10 * i)
		if i < 3 {
			tp.HeartRate = 120
		}
		lap.Trackpoints = append(lap.Trackpoints, tp)
	}
	a := New("")
	a.Laps = []*Lap{lap}

	splits := Splits(a, 1000)
	require.Len(t, splits, 3)

	assert.Equal(t, 1000.0, splits[0].Distance)
	assert.Equal(t, 250.0, splits[0].SplitTime)
	assert.Equal(t, 25.0, splits[0].Elevation)
	assert.Equal(t, 120.0, splits[0].HeartRate)

	assert.Equal(t, 1000.0, splits[1].Distance)
	assert.Equal(t, 250.0, splits[1].SplitTime)
	assert.Equal(t, 50.0, splits[1].Elevation)
	assert.Equal(t, 0.0, splits[1].HeartRate)

	assert.InDelta(t, 300.0, splits[2].Distance, 1e-9)
	assert.Equal(t, 100.0, splits[2].SplitTime)
	assert.Equal(t, 60.0, splits[2].Elevation)
}

func TestSplitsLongStep(t *testing.T) {
	lap := NewLap(time.Time{})
	first := NewTrackpoint(at(0))
	last := NewTrackpoint(at(350))
	last.Distance = 3500
	last.Altitude = 35
	lap.Trackpoints = []*Trackpoint{first, last}
	a := New("")
	a.Laps = []*Lap{lap}

	splits := Splits(a, 1000)
	require.Len(t, splits, 4)
	for i, want := range []float64{100, 100, 100, 50} {
		assert.InDelta(t, want, splits[i].SplitTime, 1e-6, "split %d", i)
	}
	assert.InDelta(t, 10.0, splits[0].Elevation, 1e-9)
	assert.InDelta(t, 500.0, splits[3].Distance, 1e-9)
}

func TestSplitsEmpty(t *testing.T) {
	assert.Empty(t, Splits(New(""), 1000))
	assert.Nil(t, Splits(New(""), 0))
}
