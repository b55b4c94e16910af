package format

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/briangreenhill/hrmerge/internal/activity"
)

const trackPointExtensionNamespace = "http://www.garmin.com/xmlschemas/TrackPointExtension/v1"

// GPX reads and writes GPS exchange files. Each track becomes one lap.
// Heart rate travels in the Garmin TrackPointExtension.
type GPX struct{}

func (GPX) Parse(r io.Reader) (*activity.Activity, error) {
	contents, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	g, err := gpx.ParseBytes(contents)
	if err != nil {
		return nil, malformed("gpx document", err)
	}

	a := activity.New(g.Name)
	total := 0.0
	for i, track := range g.Tracks {
		if a.Type() == "" && track.Type != "" {
			a.SetType(track.Type)
		}

		lap := activity.NewLap(time.Time{})
		var prev *gpx.GPXPoint
		lapDistance := 0.0
		for _, segment := range track.Segments {
			for j := range segment.Points {
				point := segment.Points[j]
				if point.Timestamp.IsZero() {
					return nil, malformed(fmt.Sprintf("track %d: point without time", i), nil)
				}

				tp := activity.NewTrackpoint(point.Timestamp.UTC())
				tp.Altitude = point.Elevation.Value()
				if hasFix(point) {
					if prev != nil {
						d := prev.Distance2D(&point)
						total += d
						lapDistance += d
					}
					tp.Position = &activity.Position{Latitude: point.Latitude, Longitude: point.Longitude}
					prev = &segment.Points[j]
				}
				tp.Distance = total

				hr, err := extensionHeartRate(point.Extensions.Nodes)
				if err != nil {
					return nil, fmt.Errorf("track %d: %w", i, err)
				}
				tp.HeartRate = hr

				lap.Trackpoints = append(lap.Trackpoints, tp)
			}
		}
		if len(lap.Trackpoints) == 0 {
			continue
		}

		start, _ := lap.StartTime()
		end, _ := lap.EndTime()
		lap.Duration = end.Sub(start).Seconds()
		lap.Distance = lapDistance
		a.Laps = append(a.Laps, lap)
	}
	if len(a.Laps) == 0 {
		return nil, malformed("gpx document has no track points", nil)
	}
	return a, nil
}

// hasFix reports whether a point carries a real position. Devices without a
// fix write 0,0.
func hasFix(p gpx.GPXPoint) bool {
	return p.Latitude != 0 || p.Longitude != 0
}

// extensionHeartRate finds the hr element of a TrackPointExtension. A point
// without one has an unknown heart rate.
func extensionHeartRate(nodes []gpx.ExtensionNode) (int, error) {
	for _, node := range nodes {
		if node.XMLName.Local == "hr" {
			hr, err := strconv.Atoi(strings.TrimSpace(node.Data))
			if err != nil {
				return 0, malformed("heart rate extension", err)
			}
			if hr < 0 {
				return 0, malformed(fmt.Sprintf("negative heart rate %d", hr), nil)
			}
			return hr, nil
		}
		if hr, err := extensionHeartRate(node.Nodes); err != nil || hr != 0 {
			return hr, err
		}
	}
	return 0, nil
}

type gpxDocument struct {
	XMLName     xml.Name     `xml:"gpx"`
	Xmlns       string       `xml:"xmlns,attr"`
	XmlnsGpxtpx string       `xml:"xmlns:gpxtpx,attr"`
	Creator     string       `xml:"creator,attr"`
	Version     string       `xml:"version,attr"`
	Metadata    *gpxMetadata `xml:"metadata,omitempty"`
	Tracks      []gpxTrack   `xml:"trk"`
}

type gpxMetadata struct {
	Name string `xml:"name,omitempty"`
	Time string `xml:"time,omitempty"`
}

type gpxTrack struct {
	Type     string       `xml:"type,omitempty"`
	Segments []gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxPoint struct {
	Lat        string         `xml:"lat,attr"`
	Lon        string         `xml:"lon,attr"`
	Elevation  string         `xml:"ele"`
	Time       string         `xml:"time"`
	Extensions *gpxExtensions `xml:"extensions,omitempty"`
}

type gpxExtensions struct {
	TPX struct {
		HR int `xml:"gpxtpx:hr"`
	} `xml:"gpxtpx:TrackPointExtension"`
}

// Dump writes coordinates with shortest round-trip precision and times with
// nanosecond precision. A trackpoint without a position is written as 0,0.
func (GPX) Dump(w io.Writer, a *activity.Activity) error {
	doc := gpxDocument{
		Xmlns:       "http://www.topografix.com/GPX/1/1",
		XmlnsGpxtpx: trackPointExtensionNamespace,
		Creator:     "hrmerge",
		Version:     "1.1",
	}
	var meta gpxMetadata
	if start, err := a.StartedAt(); err == nil {
		meta.Time = gpxTime(start)
	}
	if id, err := a.Identifier(); err == nil {
		meta.Name = id
	}
	if meta != (gpxMetadata{}) {
		doc.Metadata = &meta
	}

	for _, lap := range a.Laps {
		var segment gpxSegment
		for _, tp := range lap.Trackpoints {
			point := gpxPoint{
				Lat:       "0",
				Lon:       "0",
				Elevation: formatFloat(tp.Altitude),
				Time:      gpxTime(tp.Time),
			}
			if tp.Position != nil {
				point.Lat = formatFloat(tp.Position.Latitude)
				point.Lon = formatFloat(tp.Position.Longitude)
			}
			if tp.HeartRate > 0 {
				point.Extensions = &gpxExtensions{}
				point.Extensions.TPX.HR = tp.HeartRate
			}
			segment.Points = append(segment.Points, point)
		}
		doc.Tracks = append(doc.Tracks, gpxTrack{
			Type:     a.Type(),
			Segments: []gpxSegment{segment},
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode gpx: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func gpxTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
