package format

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/hrmerge/internal/activity"
)

var base = time.Date(2014, 10, 23, 18, 5, 54, 0, time.UTC)

func at(sec int) time.Time {
	return base.Add(time.Duration(sec) * time.Second)
}

// sampleActivity is a two-lap run. The second trackpoint of the first lap
// has no position and no heart rate.
func sampleActivity() *activity.Activity {
	a := activity.New("garmin-42")
	a.SetType("running")

	first := activity.NewLap(at(0))
	first.Duration = 20
	first.Distance = 61.5
	first.Calories = 4
	first.MaxSpeed = 3.25
	first.AvgHeartRateSummary = 131
	first.MaxHeartRateSummary = 140
	first.SetTriggerMethod("manual")
	first.Trackpoints = []*activity.Trackpoint{
		point(0, 0, 120.5, 128, &activity.Position{Latitude: 45.1872, Longitude: 5.7245}),
		point(10, 30.25, 121, 0, nil),
		point(20, 61.5, 122.5, 140, &activity.Position{Latitude: 45.18755, Longitude: 5.72481}),
	}

	second := activity.NewLap(at(30))
	second.Duration = 10
	second.Distance = 31
	second.Calories = 2
	second.SetTriggerMethod("distance")
	second.Trackpoints = []*activity.Trackpoint{
		point(30, 92.5, 123, 142, &activity.Position{Latitude: 45.1878, Longitude: 5.7251}),
		point(40, 123.5, 123.5, 145, &activity.Position{Latitude: 45.1881, Longitude: 5.7254}),
	}

	a.Laps = []*activity.Lap{first, second}
	return a
}

func point(sec int, distance, altitude float64, hr int, pos *activity.Position) *activity.Trackpoint {
	tp := activity.NewTrackpoint(at(sec))
	tp.Distance = distance
	tp.Altitude = altitude
	tp.HeartRate = hr
	tp.Position = pos
	return tp
}

func TestRegistry(t *testing.T) {
	for _, path := range []string{"run.tcx", "RUN.TCX", "dir/run.gpx", "run.fit"} {
		_, err := ParserFor(path)
		assert.NoError(t, err, path)
		_, err = DumperFor(path)
		assert.NoError(t, err, path)
	}

	_, err := DumperFor("samples.parquet")
	assert.NoError(t, err)

	_, err = ParserFor("samples.parquet")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = ParserFor("run.csv")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = DumperFor("run")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.Equal(t, []string{"fit", "gpx", "tcx"}, Readable())
	assert.Equal(t, []string{"fit", "gpx", "parquet", "tcx"}, Writable())
}

func TestKey(t *testing.T) {
	assert.Equal(t, "tcx", Key("/tmp/Morning.Run.TCX"))
	assert.Equal(t, "", Key("noext"))
}

func TestDumpFileAndParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.tcx")

	require.NoError(t, DumpFile(path, sampleActivity()))

	got, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5, got.TrackpointCount())
}

func TestDumpFileUnsupportedCreatesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	err := DumpFile(path, sampleActivity())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestParseFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ParseFile(filepath.Join(dir, "missing.tcx"))
	assert.Error(t, err)

	_, err = ParseFile(filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	sub := filepath.Join(dir, "folder.gpx")
	require.NoError(t, os.Mkdir(sub, 0o755))
	_, err = ParseFile(sub)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.tcx")
	require.NoError(t, os.WriteFile(bad, []byte("not xml"), 0o644))
	_, err = ParseFile(bad)
	assert.ErrorIs(t, err, ErrMalformedInput)
}
