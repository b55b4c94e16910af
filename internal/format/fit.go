package format

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/tormoder/fit"

	"github.com/briangreenhill/hrmerge/internal/activity"
)

// FIT reads and writes Garmin FIT activity files.
type FIT struct{}

func (FIT) Parse(r io.Reader) (*activity.Activity, error) {
	decoded, err := fit.Decode(r)
	if err != nil {
		return nil, malformed("fit file", err)
	}
	af, err := decoded.Activity()
	if err != nil {
		return nil, malformed("fit activity", err)
	}

	a := activity.New("")
	if len(af.Sessions) > 0 {
		if sport := strings.TrimPrefix(af.Sessions[0].Sport.String(), "Sport"); sport != "" && sport != "Invalid" {
			a.SetType(sport)
		}
	}

	laps := make([]*activity.Lap, 0, len(af.Laps))
	for _, msg := range af.Laps {
		if msg == nil {
			continue
		}
		laps = append(laps, fitLap(msg))
	}
	if len(laps) == 0 {
		// Activities without lap messages are a single lap.
		laps = append(laps, activity.NewLap(time.Time{}))
	}

	for _, rec := range af.Records {
		if rec == nil || !validTime(rec.Timestamp) {
			continue
		}
		lap := laps[lapIndex(laps, rec.Timestamp)]
		lap.Trackpoints = append(lap.Trackpoints, fitTrackpoint(rec))
	}

	for _, lap := range laps {
		if len(lap.Trackpoints) > 0 {
			a.Laps = append(a.Laps, lap)
		}
	}
	if len(a.Laps) == 0 {
		return nil, malformed("fit activity has no records", nil)
	}
	return a, nil
}

func fitLap(msg *fit.LapMsg) *activity.Lap {
	var start time.Time
	if validTime(msg.StartTime) {
		start = msg.StartTime.UTC()
	}
	lap := activity.NewLap(start)

	lap.Duration = safePositive(msg.GetTotalTimerTimeScaled())
	if lap.Duration == 0 {
		lap.Duration = safePositive(msg.GetTotalElapsedTimeScaled())
	}
	lap.Distance = safePositive(msg.GetTotalDistanceScaled())
	lap.MaxSpeed = safePositive(msg.GetMaxSpeedScaled())
	if msg.TotalCalories != math.MaxUint16 {
		lap.Calories = int(msg.TotalCalories)
	}
	lap.AvgHeartRateSummary = int(validUint8(msg.AvgHeartRate))
	lap.MaxHeartRateSummary = int(validUint8(msg.MaxHeartRate))

	if trigger := strings.TrimPrefix(msg.LapTrigger.String(), "LapTrigger"); trigger != "" && trigger != "Invalid" {
		lap.SetTriggerMethod(trigger)
	}
	return lap
}

func fitTrackpoint(rec *fit.RecordMsg) *activity.Trackpoint {
	tp := activity.NewTrackpoint(rec.Timestamp.UTC())
	tp.Distance = safePositive(rec.GetDistanceScaled())
	if alt := rec.GetAltitudeScaled(); !math.IsNaN(alt) && !math.IsInf(alt, 0) {
		tp.Altitude = alt
	}
	tp.HeartRate = int(validUint8(rec.HeartRate))
	if !rec.PositionLat.Invalid() && !rec.PositionLong.Invalid() {
		tp.Position = &activity.Position{
			Latitude:  rec.PositionLat.Degrees(),
			Longitude: rec.PositionLong.Degrees(),
		}
	}
	return tp
}

// lapIndex returns the last lap that starts at or before t. Laps without a
// start time never claim records after the first lap.
func lapIndex(laps []*activity.Lap, t time.Time) int {
	idx := 0
	for i, lap := range laps {
		if !lap.HasStoredStart() {
			continue
		}
		start, _ := lap.StartTime()
		if !t.Before(start) {
			idx = i
		}
	}
	return idx
}

func validTime(t time.Time) bool {
	return !t.IsZero() && !fit.IsBaseTime(t)
}

func validUint8(v uint8) uint8 {
	if v == math.MaxUint8 {
		return 0
	}
	return v
}

// fitUint8 clamps v below the invalid marker 0xFF.
func fitUint8(v int) uint8 {
	if v >= math.MaxUint8 {
		return math.MaxUint8 - 1
	}
	return uint8(v)
}

// fitAltitude encodes meters with scale 5 and offset 500, clamped below the
// invalid marker 0xFFFF.
func fitAltitude(meters float64) uint16 {
	scaled := math.Round((meters + 500) * 5)
	if scaled >= math.MaxUint16 {
		return math.MaxUint16 - 1
	}
	return uint16(scaled)
}

func safePositive(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func (FIT) Dump(w io.Writer, a *activity.Activity) error {
	start, err := a.StartedAt()
	if err != nil {
		return err
	}
	end, err := a.CompletedAt()
	if err != nil {
		return err
	}

	header := fit.NewHeader(fit.V20, true)
	file, err := fit.NewFile(fit.FileTypeActivity, header)
	if err != nil {
		return fmt.Errorf("new fit file: %w", err)
	}
	file.FileId.TimeCreated = start

	af, err := file.Activity()
	if err != nil {
		return fmt.Errorf("fit activity: %w", err)
	}

	sport := fitSport(a.Type())
	for _, lap := range a.Laps {
		msg, err := fitLapMsg(lap, sport)
		if err != nil {
			return err
		}
		af.Laps = append(af.Laps, msg)
		for _, tp := range lap.Trackpoints {
			af.Records = append(af.Records, fitRecordMsg(tp))
		}
	}

	session := fit.NewSessionMsg()
	session.Timestamp = end
	session.StartTime = start
	session.Sport = sport
	session.TotalElapsedTime = uint32(math.Round(end.Sub(start).Seconds() * 1000))
	session.TotalTimerTime = uint32(math.Round(a.TotalTime() * 1000))
	session.TotalDistance = uint32(math.Round(a.Distance() * 100))
	session.TotalCalories = uint16(a.Calories())
	session.NumLaps = uint16(len(a.Laps))
	af.Sessions = append(af.Sessions, session)

	act := fit.NewActivityMsg()
	act.Timestamp = end
	act.NumSessions = 1
	af.Activity = act

	if err := fit.Encode(w, file, binary.LittleEndian); err != nil {
		return fmt.Errorf("encode fit: %w", err)
	}
	return nil
}

func fitLapMsg(lap *activity.Lap, sport fit.Sport) (*fit.LapMsg, error) {
	start, err := lap.StartTime()
	if err != nil {
		return nil, err
	}
	end := start
	if last, err := lap.EndTime(); err == nil {
		end = last
	}

	msg := fit.NewLapMsg()
	msg.Timestamp = end
	msg.StartTime = start
	msg.Sport = sport
	msg.TotalElapsedTime = uint32(math.Round(lap.Duration * 1000))
	msg.TotalTimerTime = msg.TotalElapsedTime
	msg.TotalDistance = uint32(math.Round(lap.Distance * 100))
	msg.TotalCalories = uint16(lap.Calories)
	msg.MaxSpeed = uint16(math.Round(lap.MaxSpeed * 1000))
	avg, peak := lapHeartRate(lap)
	if avg > 0 {
		msg.AvgHeartRate = fitUint8(avg)
	}
	if peak > 0 {
		msg.MaxHeartRate = fitUint8(peak)
	}
	msg.LapTrigger = fitLapTrigger(lap.TriggerMethod())
	return msg, nil
}

func fitRecordMsg(tp *activity.Trackpoint) *fit.RecordMsg {
	rec := fit.NewRecordMsg()
	rec.Timestamp = tp.Time
	rec.Distance = uint32(math.Round(tp.Distance * 100))
	if tp.Altitude > -500 {
		rec.Altitude = fitAltitude(tp.Altitude)
	}
	if tp.HeartRate > 0 {
		rec.HeartRate = fitUint8(tp.HeartRate)
	}
	if tp.Position != nil {
		rec.PositionLat = fit.NewLatitudeDegrees(tp.Position.Latitude)
		rec.PositionLong = fit.NewLongitudeDegrees(tp.Position.Longitude)
	}
	return rec
}

func fitSport(sport string) fit.Sport {
	switch strings.ToLower(sport) {
	case "running":
		return fit.SportRunning
	case "biking", "cycling":
		return fit.SportCycling
	case "swimming":
		return fit.SportSwimming
	case "walking":
		return fit.SportWalking
	case "hiking":
		return fit.SportHiking
	default:
		return fit.SportGeneric
	}
}

func fitLapTrigger(method string) fit.LapTrigger {
	switch strings.ToLower(strings.ReplaceAll(method, "_", "")) {
	case "manual":
		return fit.LapTriggerManual
	case "time":
		return fit.LapTriggerTime
	case "distance":
		return fit.LapTriggerDistance
	case "positionstart", "location":
		return fit.LapTriggerPositionStart
	case "sessionend":
		return fit.LapTriggerSessionEnd
	default:
		return fit.LapTriggerManual
	}
}
