package gpx

import (
	"fmt"
	"regexp"
	"time"

	gpxgo "github.com/tkrajina/gpxgo/gpx"

	"github.com/jengzang/gpx-tracks-etl/internal/models"
)

const creator = "gpx-tracks-etl"

var timeElement = regexp.MustCompile(`<time>[^<]*</time>`)

// Encode serializes points back into a GPX 1.1 document. Points are grouped
// into <trk>/<trkseg> by their Track and Segment indices, in input order.
// Times are written in UTC with their fractional seconds.
func Encode(points []models.TrackPoint) ([]byte, error) {
	g := &gpxgo.GPX{
		Version: "1.1",
		Creator: creator,
	}

	var trk *gpxgo.GPXTrack
	var seg *gpxgo.GPXTrackSegment
	for i, p := range points {
		if trk == nil || p.Track != points[i-1].Track {
			g.Tracks = append(g.Tracks, gpxgo.GPXTrack{})
			trk = &g.Tracks[len(g.Tracks)-1]
			seg = nil
		}
		if seg == nil || p.Segment != points[i-1].Segment {
			trk.Segments = append(trk.Segments, gpxgo.GPXTrackSegment{})
			seg = &trk.Segments[len(trk.Segments)-1]
		}

		gp := gpxgo.GPXPoint{
			Point: gpxgo.Point{
				Latitude:  p.Latitude,
				Longitude: p.Longitude,
			},
			Timestamp: p.Time.UTC(),
		}
		if p.Elevation != nil {
			gp.Elevation = *gpxgo.NewNullableFloat64(*p.Elevation)
		}
		seg.Points = append(seg.Points, gp)
	}

	out, err := g.ToXml(gpxgo.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return nil, fmt.Errorf("failed to encode gpx: %w", err)
	}
	return restoreSubsecond(out, points), nil
}

// restoreSubsecond replaces gpxgo's whole-second <time> values. The document
// carries no metadata time, so the n-th <time> belongs to the n-th point
// that has one.
func restoreSubsecond(out []byte, points []models.TrackPoint) []byte {
	times := make([]time.Time, 0, len(points))
	for _, p := range points {
		if p.Time.Year() > 1 {
			times = append(times, p.Time)
		}
	}

	n := 0
	return timeElement.ReplaceAllFunc(out, func(m []byte) []byte {
		if n >= len(times) {
			return m
		}
		t := times[n]
		n++
		return []byte("<time>" + t.UTC().Format(time.RFC3339Nano) + "</time>")
	})
}
