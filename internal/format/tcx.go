package format

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/briangreenhill/hrmerge/internal/activity"
)

const tcxNamespace = "http://www.garmin.com/xmlschemas/TrainingCenterDatabase/v2"

// TCX reads and writes Garmin Training Center databases. Only the first
// activity of a database is used.
type TCX struct{}

type tcxDatabase struct {
	XMLName    xml.Name      `xml:"TrainingCenterDatabase"`
	Xmlns      string        `xml:"xmlns,attr,omitempty"`
	Activities []tcxActivity `xml:"Activities>Activity"`
}

type tcxActivity struct {
	Sport string   `xml:"Sport,attr"`
	ID    string   `xml:"Id"`
	Laps  []tcxLap `xml:"Lap"`
}

type tcxLap struct {
	StartTime        string     `xml:"StartTime,attr,omitempty"`
	TotalTimeSeconds string     `xml:"TotalTimeSeconds"`
	DistanceMeters   string     `xml:"DistanceMeters"`
	MaximumSpeed     string     `xml:"MaximumSpeed,omitempty"`
	Calories         string     `xml:"Calories"`
	AverageHeartRate *tcxValue  `xml:"AverageHeartRateBpm,omitempty"`
	MaximumHeartRate *tcxValue  `xml:"MaximumHeartRateBpm,omitempty"`
	Intensity        string     `xml:"Intensity"`
	TriggerMethod    string     `xml:"TriggerMethod,omitempty"`
	Tracks           []tcxTrack `xml:"Track"`
}

type tcxTrack struct {
	Trackpoints []tcxTrackpoint `xml:"Trackpoint"`
}

type tcxTrackpoint struct {
	Time           string       `xml:"Time"`
	Position       *tcxPosition `xml:"Position,omitempty"`
	AltitudeMeters string       `xml:"AltitudeMeters,omitempty"`
	DistanceMeters string       `xml:"DistanceMeters,omitempty"`
	HeartRate      *tcxValue    `xml:"HeartRateBpm,omitempty"`
}

type tcxPosition struct {
	Latitude  string `xml:"LatitudeDegrees"`
	Longitude string `xml:"LongitudeDegrees"`
}

type tcxValue struct {
	Value string `xml:"Value"`
}

func (TCX) Parse(r io.Reader) (*activity.Activity, error) {
	var db tcxDatabase
	if err := xml.NewDecoder(r).Decode(&db); err != nil {
		return nil, malformed("tcx document", err)
	}
	if len(db.Activities) == 0 {
		return nil, malformed("tcx document has no activity", nil)
	}

	src := db.Activities[0]
	a := activity.New(strings.TrimSpace(src.ID))
	a.SetType(src.Sport)

	for i, l := range src.Laps {
		lap, err := parseTCXLap(l)
		if err != nil {
			return nil, fmt.Errorf("lap %d: %w", i, err)
		}
		if len(lap.Trackpoints) == 0 {
			continue
		}
		a.Laps = append(a.Laps, lap)
	}
	if len(a.Laps) == 0 {
		return nil, malformed("tcx activity has no trackpoints", nil)
	}
	return a, nil
}

func parseTCXLap(l tcxLap) (*activity.Lap, error) {
	lap, err := activity.ParseLap(strings.TrimSpace(l.StartTime))
	if err != nil {
		return nil, malformed("lap start time", err)
	}

	if lap.Duration, err = parseFloat("TotalTimeSeconds", l.TotalTimeSeconds); err != nil {
		return nil, err
	}
	if lap.Distance, err = parseFloat("DistanceMeters", l.DistanceMeters); err != nil {
		return nil, err
	}
	if lap.MaxSpeed, err = parseFloat("MaximumSpeed", l.MaximumSpeed); err != nil {
		return nil, err
	}
	if lap.Calories, err = parseInt("Calories", l.Calories); err != nil {
		return nil, err
	}
	if l.AverageHeartRate != nil {
		if lap.AvgHeartRateSummary, err = parseInt("AverageHeartRateBpm", l.AverageHeartRate.Value); err != nil {
			return nil, err
		}
	}
	if l.MaximumHeartRate != nil {
		if lap.MaxHeartRateSummary, err = parseInt("MaximumHeartRateBpm", l.MaximumHeartRate.Value); err != nil {
			return nil, err
		}
	}
	if method := strings.TrimSpace(l.TriggerMethod); method != "" {
		lap.SetTriggerMethod(method)
	}

	for _, track := range l.Tracks {
		for _, t := range track.Trackpoints {
			tp, err := parseTCXTrackpoint(t)
			if err != nil {
				return nil, err
			}
			lap.Trackpoints = append(lap.Trackpoints, tp)
		}
	}
	return lap, nil
}

func parseTCXTrackpoint(t tcxTrackpoint) (*activity.Trackpoint, error) {
	tp, err := activity.ParseTrackpoint(t.Time)
	if err != nil {
		return nil, malformed("trackpoint time", err)
	}
	if tp.Distance, err = parseFloat("DistanceMeters", t.DistanceMeters); err != nil {
		return nil, err
	}
	if tp.Altitude, err = parseFloat("AltitudeMeters", t.AltitudeMeters); err != nil {
		return nil, err
	}
	if t.HeartRate != nil {
		if tp.HeartRate, err = parseInt("HeartRateBpm", t.HeartRate.Value); err != nil {
			return nil, err
		}
		if tp.HeartRate < 0 {
			return nil, malformed(fmt.Sprintf("negative heart rate %d", tp.HeartRate), nil)
		}
	}
	if t.Position != nil {
		lat, err := parseFloat("LatitudeDegrees", t.Position.Latitude)
		if err != nil {
			return nil, err
		}
		lon, err := parseFloat("LongitudeDegrees", t.Position.Longitude)
		if err != nil {
			return nil, err
		}
		tp.Position = &activity.Position{Latitude: lat, Longitude: lon}
	}
	return tp, nil
}

func (TCX) Dump(w io.Writer, a *activity.Activity) error {
	id, err := a.Identifier()
	if err != nil {
		return err
	}
	sport := a.Type()
	if sport == "" {
		sport = "Other"
	}

	out := tcxActivity{Sport: sport, ID: id}
	for i, lap := range a.Laps {
		l, err := dumpTCXLap(lap)
		if err != nil {
			return fmt.Errorf("lap %d: %w", i, err)
		}
		out.Laps = append(out.Laps, l)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	db := tcxDatabase{Xmlns: tcxNamespace, Activities: []tcxActivity{out}}
	if err := enc.Encode(db); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}

func dumpTCXLap(lap *activity.Lap) (tcxLap, error) {
	start, err := lap.StartTime()
	if err != nil {
		return tcxLap{}, err
	}

	l := tcxLap{
		StartTime:        activity.FormatTimestamp(start),
		TotalTimeSeconds: formatFloat(lap.Duration),
		DistanceMeters:   formatFloat(lap.Distance),
		Calories:         strconv.Itoa(lap.Calories),
		Intensity:        "Active",
		TriggerMethod:    lap.TriggerMethod(),
	}
	if lap.MaxSpeed != 0 {
		l.MaximumSpeed = formatFloat(lap.MaxSpeed)
	}
	avg, peak := lapHeartRate(lap)
	if avg > 0 {
		l.AverageHeartRate = &tcxValue{Value: strconv.Itoa(avg)}
	}
	if peak > 0 {
		l.MaximumHeartRate = &tcxValue{Value: strconv.Itoa(peak)}
	}

	track := tcxTrack{}
	for _, tp := range lap.Trackpoints {
		t := tcxTrackpoint{
			Time:           activity.FormatTimestamp(tp.Time),
			AltitudeMeters: formatFloat(tp.Altitude),
			DistanceMeters: formatFloat(tp.Distance),
		}
		if tp.HeartRate > 0 {
			t.HeartRate = &tcxValue{Value: strconv.Itoa(tp.HeartRate)}
		}
		if tp.Position != nil {
			t.Position = &tcxPosition{
				Latitude:  formatFloat(tp.Position.Latitude),
				Longitude: formatFloat(tp.Position.Longitude),
			}
		}
		track.Trackpoints = append(track.Trackpoints, t)
	}
	if len(track.Trackpoints) > 0 {
		l.Tracks = []tcxTrack{track}
	}
	return l, nil
}

// parseFloat reads an optional decimal element. Missing elements are 0.
func parseFloat(field, s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, malformed(field, err)
	}
	return v, nil
}

// parseInt reads an optional integer element. Missing elements are 0.
func parseInt(field, s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, malformed(field, err)
	}
	return v, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
