package format

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/hrmerge/internal/activity"
)

const tcxDocument = `<?xml version="1.0" encoding="UTF-8"?>
<TrainingCenterDatabase xmlns="http://www.garmin.com/xmlschemas/TrainingCenterDatabase/v2">
  <Activities>
    <Activity Sport="running">
      <Id>2014-10-23T18:05:54Z</Id>
      <Lap StartTime="2014-10-23T18:05:54Z">
        <TotalTimeSeconds>2.5</TotalTimeSeconds>
        <DistanceMeters>8.75</DistanceMeters>
        <Calories>1</Calories>
        <Intensity>Active</Intensity>
        <TriggerMethod>MANUAL</TriggerMethod>
        <Track>
          <Trackpoint>
            <Time>2014-10-23T18:05:54Z</Time>
            <Position>
              <LatitudeDegrees>45.1872</LatitudeDegrees>
              <LongitudeDegrees>5.7245</LongitudeDegrees>
            </Position>
            <AltitudeMeters>212.4</AltitudeMeters>
            <DistanceMeters>0</DistanceMeters>
          </Trackpoint>
        </Track>
        <Track>
          <Trackpoint>
            <Time>2014-10-23T18:05:56.500Z</Time>
            <DistanceMeters>8.75</DistanceMeters>
            <HeartRateBpm><Value>97</Value></HeartRateBpm>
          </Trackpoint>
        </Track>
      </Lap>
      <Lap StartTime="2014-10-23T18:06:00Z">
        <TotalTimeSeconds>0</TotalTimeSeconds>
        <DistanceMeters>0</DistanceMeters>
        <Calories>0</Calories>
        <Intensity>Active</Intensity>
      </Lap>
    </Activity>
  </Activities>
</TrainingCenterDatabase>`

func TestTCXParse(t *testing.T) {
	a, err := TCX{}.Parse(strings.NewReader(tcxDocument))
	require.NoError(t, err)

	assert.Equal(t, "Running", a.Type())
	id, err := a.Identifier()
	require.NoError(t, err)
	assert.Equal(t, "2014-10-23T18:05:54Z", id)

	require.Len(t, a.Laps, 1, "lap without trackpoints is dropped")
	lap := a.Laps[0]
	assert.Equal(t, 2.5, lap.Duration)
	assert.Equal(t, 8.75, lap.Distance)
	assert.Equal(t, 1, lap.Calories)
	assert.Equal(t, "Manual", lap.TriggerMethod())
	require.Len(t, lap.Trackpoints, 2, "tracks are concatenated")

	first, second := lap.Trackpoints[0], lap.Trackpoints[1]
	assert.Equal(t, &activity.Position{Latitude: 45.1872, Longitude: 5.7245}, first.Position)
	assert.Equal(t, 212.4, first.Altitude)
	assert.Equal(t, 0, first.HeartRate)
	assert.Nil(t, second.Position)
	assert.Equal(t, 97, second.HeartRate)
	assert.True(t, second.Time.Equal(at(2).Add(500_000_000)))
}

func TestTCXRoundTrip(t *testing.T) {
	want := sampleActivity()

	var buf bytes.Buffer
	require.NoError(t, TCX{}.Dump(&buf, want))

	got, err := TCX{}.Parse(&buf)
	require.NoError(t, err)

	// The second lap has no stored summary, so its trackpoint values are written.
	want.Laps[1].AvgHeartRateSummary = 144
	want.Laps[1].MaxHeartRateSummary = 145
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(activity.Activity{}, activity.Lap{})); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestTCXDumpFullPrecision(t *testing.T) {
	a := sampleActivity()
	a.Laps[0].Trackpoints[0].Distance = 1234.56789

	var buf bytes.Buffer
	require.NoError(t, TCX{}.Dump(&buf, a))
	assert.Contains(t, buf.String(), "<DistanceMeters>1234.56789</DistanceMeters>")
	assert.Contains(t, buf.String(), `StartTime="2014-10-23T18:05:54.000000Z"`)
	assert.NotContains(t, buf.String(), "<Value>0</Value>")
}

func TestTCXMalformed(t *testing.T) {
	tests := map[string]string{
		"not xml":        "{}",
		"no activity":    `<TrainingCenterDatabase><Activities></Activities></TrainingCenterDatabase>`,
		"no trackpoints": `<TrainingCenterDatabase><Activities><Activity Sport="Running"><Id>x</Id><Lap StartTime="2014-10-23T18:05:54Z"></Lap></Activity></Activities></TrainingCenterDatabase>`,
		"bad number":     strings.Replace(tcxDocument, "<Value>97</Value>", "<Value>ninety</Value>", 1),
		"bad time":       strings.Replace(tcxDocument, "<Time>2014-10-23T18:05:54Z</Time>", "<Time>yesterday</Time>", 1),
		"bad lap start":  strings.Replace(tcxDocument, `StartTime="2014-10-23T18:06:00Z"`, `StartTime="later"`, 1),
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := TCX{}.Parse(strings.NewReader(doc))
			assert.ErrorIs(t, err, ErrMalformedInput)
		})
	}
}

func TestTCXMalformedTimestampKeepsDetail(t *testing.T) {
	doc := strings.Replace(tcxDocument, "<Time>2014-10-23T18:05:54Z</Time>", "<Time>yesterday</Time>", 1)

	_, err := TCX{}.Parse(strings.NewReader(doc))
	var malformedTS *activity.MalformedTimestampError
	require.ErrorAs(t, err, &malformedTS)
	assert.Equal(t, "yesterday", malformedTS.Value)
}

func TestTCXDumpEmptyActivity(t *testing.T) {
	var buf bytes.Buffer
	err := TCX{}.Dump(&buf, activity.New(""))
	assert.ErrorIs(t, err, activity.ErrEmptyAggregate)
}

func TestTCXDumpLapHeartRateFromTrackpoints(t *testing.T) {
	a := sampleActivity()
	a.Laps[0].AvgHeartRateSummary = 0
	a.Laps[0].MaxHeartRateSummary = 0
	for _, tp := range a.Laps[1].Trackpoints {
		tp.HeartRate = 0
	}

	var buf bytes.Buffer
	require.NoError(t, TCX{}.Dump(&buf, a))
	out := buf.String()

	got, err := TCX{}.Parse(strings.NewReader(out))
	require.NoError(t, err)
	// (128 + 0 + 140) / 3
	assert.Equal(t, 89, got.Laps[0].AvgHeartRateSummary)
	assert.Equal(t, 140, got.Laps[0].MaxHeartRateSummary)
	assert.Equal(t, 1, strings.Count(out, "<AverageHeartRateBpm>"), "unknown lap heart rate is omitted")
	assert.Equal(t, 1, strings.Count(out, "<MaximumHeartRateBpm>"))
}
