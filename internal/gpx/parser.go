// Package gpx adapts GPX documents to the track point model.
//
// Decoding is done by gpxgo. A streaming pre-scan enforces that every
// <trkpt> carries lat and lon attributes, which gpxgo would otherwise
// silently decode as zero, and reads each point's <time> at full
// xsd:dateTime precision including fractions and UTC offsets.
package gpx

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"time"

	gpxgo "github.com/tkrajina/gpxgo/gpx"

	"github.com/jengzang/gpx-tracks-etl/internal/models"
)

// Parse decodes a GPX document into a single ordered sequence of track
// points, concatenating all segments of all tracks in document order.
func Parse(data []byte) ([]models.TrackPoint, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	return doc.Points(), nil
}

// ParseDocument decodes a GPX document keeping the per-track grouping.
// Tracks without points are kept with an empty point list.
func ParseDocument(data []byte) (*models.Document, error) {
	times, err := scanPoints(data)
	if err != nil {
		return nil, err
	}

	g, err := gpxgo.ParseBytes(data)
	if err != nil {
		return nil, documentError("failed to decode document", err)
	}

	doc := &models.Document{
		Creator: g.Creator,
		Tracks:  make([]models.Track, 0, len(g.Tracks)),
	}

	index := 0
	for ti, trk := range g.Tracks {
		track := models.Track{Name: trk.Name}
		for si, seg := range trk.Segments {
			for pi, p := range seg.Points {
				ts, ok := times.at(ti, si, pi)
				if !ok {
					return nil, &ParseError{Track: ti, Segment: si, Point: pi, Msg: "missing time"}
				}

				tp := models.TrackPoint{
					Time:      ts,
					Latitude:  p.Latitude,
					Longitude: p.Longitude,
					Track:     ti,
					Segment:   si,
					Index:     index,
				}
				if p.Elevation.NotNull() {
					ele := p.Elevation.Value()
					tp.Elevation = &ele
				}
				track.Points = append(track.Points, tp)
				index++
			}
		}
		doc.Tracks = append(doc.Tracks, track)
	}

	if index == 0 {
		return nil, ErrEmptyTrack
	}

	return doc, nil
}

// Layouts accepted for <time>, tried in order. Values without a zone are UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

// pointTimes holds the <time> of every trkpt indexed by track, segment and
// point. A zero value means the point had no <time>.
type pointTimes [][][]time.Time

func (pt pointTimes) at(track, segment, point int) (time.Time, bool) {
	if track >= len(pt) || segment >= len(pt[track]) || point >= len(pt[track][segment]) {
		return time.Time{}, false
	}
	t := pt[track][segment][point]
	return t, !t.IsZero()
}

// scanPoints walks the token stream, verifies each trkpt has numeric lat and
// lon attributes and collects point times.
func scanPoints(data []byte) (pointTimes, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	// Only ASCII content is inspected; gpxgo handles the real charset.
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var times pointTimes
	track, segment, point := -1, -1, -1
	depth, pointDepth := 0, -1
	sawRoot := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, documentError("malformed xml", err)
		}

		if end, ok := tok.(xml.EndElement); ok {
			depth--
			if end.Name.Local == "trkpt" && depth == pointDepth {
				pointDepth = -1
			}
			continue
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		depth++

		switch start.Name.Local {
		case "gpx":
			sawRoot = true
		case "trk":
			track++
			segment, point = -1, -1
			times = append(times, nil)
		case "trkseg":
			if track < 0 {
				continue
			}
			segment++
			point = -1
			times[track] = append(times[track], nil)
		case "trkpt":
			point++
			for _, name := range []string{"lat", "lon"} {
				if err := checkCoordAttr(start, name); err != nil {
					return nil, &ParseError{Track: track, Segment: segment, Point: point, Msg: "invalid " + name + " attribute", Err: err}
				}
			}
			if track >= 0 && segment >= 0 {
				times[track][segment] = append(times[track][segment], time.Time{})
				pointDepth = depth - 1
			}
		case "time":
			if pointDepth < 0 || depth != pointDepth+2 {
				continue
			}
			var text string
			if err := dec.DecodeElement(&text, &start); err != nil {
				return nil, documentError("malformed xml", err)
			}
			depth--
			ts, err := parseTime(text)
			if err != nil {
				return nil, &ParseError{Track: track, Segment: segment, Point: point, Msg: "invalid time", Err: err}
			}
			times[track][segment][point] = ts
		}
	}

	if !sawRoot {
		return nil, documentError("missing <gpx> root element", nil)
	}
	return times, nil
}

func checkCoordAttr(start xml.StartElement, name string) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == name {
			_, err := strconv.ParseFloat(strings.TrimSpace(attr.Value), 64)
			return err
		}
	}
	return errMissingAttr
}

