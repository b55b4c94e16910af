package format

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tormoder/fit"

	"github.com/briangreenhill/hrmerge/internal/activity"
)

func TestFITRoundTrip(t *testing.T) {
	want := sampleActivity()

	var buf bytes.Buffer
	require.NoError(t, FIT{}.Dump(&buf, want))

	got, err := FIT{}.Parse(&buf)
	require.NoError(t, err)

	assert.Equal(t, "Running", got.Type())
	assert.False(t, got.HasStoredIdentifier())
	require.Len(t, got.Laps, len(want.Laps))

	for i, wantLap := range want.Laps {
		gotLap := got.Laps[i]
		wantStart, _ := wantLap.StartTime()
		gotStart, err := gotLap.StartTime()
		require.NoError(t, err)
		assert.True(t, wantStart.Equal(gotStart), "lap %d start", i)

		assert.InDelta(t, wantLap.Duration, gotLap.Duration, 1e-3)
		assert.InDelta(t, wantLap.Distance, gotLap.Distance, 1e-2)
		assert.InDelta(t, wantLap.MaxSpeed, gotLap.MaxSpeed, 1e-3)
		assert.Equal(t, wantLap.Calories, gotLap.Calories)
		wantAvg, wantPeak := lapHeartRate(wantLap)
		assert.Equal(t, wantAvg, gotLap.AvgHeartRateSummary, "lap %d average heart rate", i)
		assert.Equal(t, wantPeak, gotLap.MaxHeartRateSummary, "lap %d max heart rate", i)
		assert.Equal(t, wantLap.TriggerMethod(), gotLap.TriggerMethod())

		require.Len(t, gotLap.Trackpoints, len(wantLap.Trackpoints), "lap %d", i)
		for j, wantTP := range wantLap.Trackpoints {
			gotTP := gotLap.Trackpoints[j]
			assert.True(t, wantTP.Time.Equal(gotTP.Time), "lap %d point %d time", i, j)
			assert.InDelta(t, wantTP.Distance, gotTP.Distance, 1e-2)
			assert.InDelta(t, wantTP.Altitude, gotTP.Altitude, 0.2)
			assert.Equal(t, wantTP.HeartRate, gotTP.HeartRate, "lap %d point %d heart rate", i, j)
			if wantTP.Position == nil {
				assert.Nil(t, gotTP.Position)
				continue
			}
			require.NotNil(t, gotTP.Position)
			assert.InDelta(t, wantTP.Position.Latitude, gotTP.Position.Latitude, 1e-6)
			assert.InDelta(t, wantTP.Position.Longitude, gotTP.Position.Longitude, 1e-6)
		}
	}
}

func TestFITParseAssignsRecordsToLaps(t *testing.T) {
	header := fit.NewHeader(fit.V20, true)
	file, err := fit.NewFile(fit.FileTypeActivity, header)
	require.NoError(t, err)
	af, err := file.Activity()
	require.NoError(t, err)

	for _, start := range []int{0, 60, 120} {
		lap := fit.NewLapMsg()
		lap.StartTime = at(start)
		lap.Timestamp = at(start + 59)
		lap.LapTrigger = fit.LapTriggerTime
		af.Laps = append(af.Laps, lap)
	}
	for _, sec := range []int{0, 30, 61, 90} {
		rec := fit.NewRecordMsg()
		rec.Timestamp = at(sec)
		rec.HeartRate = 150
		af.Records = append(af.Records, rec)
	}
	rec := fit.NewRecordMsg()
	rec.Timestamp = at(100)
	af.Records = append(af.Records, rec)

	var buf bytes.Buffer
	require.NoError(t, fit.Encode(&buf, file, binary.LittleEndian))

	a, err := FIT{}.Parse(&buf)
	require.NoError(t, err)

	require.Len(t, a.Laps, 2, "lap without records is dropped")
	assert.Len(t, a.Laps[0].Trackpoints, 2)
	assert.Len(t, a.Laps[1].Trackpoints, 3)
	assert.Equal(t, "Time", a.Laps[0].TriggerMethod())
	assert.Equal(t, 0, a.Laps[1].Trackpoints[2].HeartRate, "invalid heart rate reads as unknown")
	assert.Nil(t, a.Laps[1].Trackpoints[2].Position)
}

func TestFITMalformed(t *testing.T) {
	_, err := FIT{}.Parse(bytes.NewReader([]byte("definitely not a fit file")))
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestFITDumpEmptyActivity(t *testing.T) {
	var buf bytes.Buffer
	err := FIT{}.Dump(&buf, activity.New(""))
	assert.ErrorIs(t, err, activity.ErrEmptyAggregate)
}

func TestFITClampsOutOfRangeValues(t *testing.T) {
	assert.Equal(t, uint8(254), fitUint8(300))
	assert.Equal(t, uint8(254), fitUint8(255))
	assert.Equal(t, uint8(180), fitUint8(180))

	assert.Equal(t, uint16(65534), fitAltitude(20000))
	assert.Equal(t, uint16(3500), fitAltitude(200))

	a := sampleActivity()
	a.Laps[0].Trackpoints[0].HeartRate = 300
	var buf bytes.Buffer
	require.NoError(t, FIT{}.Dump(&buf, a))

	got, err := FIT{}.Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, 254, got.Laps[0].Trackpoints[0].HeartRate)
}
