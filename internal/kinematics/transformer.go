// Package kinematics derives speed and course for consecutive track points.
//
// A point's speed and course are computed from the point itself and the one
// before it: great-circle distance over elapsed time, and the initial bearing
// from the previous fix. The first point after a cursor reset has no
// predecessor and is emitted with speed 0 and course 0, so the output always
// has one record per input point, in input order.
package kinematics

import (
	"fmt"
	"math"

	"github.com/golang/geo/s2"

	"github.com/jengzang/gpx-tracks-etl/internal/models"
	"github.com/jengzang/gpx-tracks-etl/internal/spatial"
)

// SegmentPolicy controls the previous-point cursor at segment boundaries
type SegmentPolicy string

const (
	// SegmentReset starts a fresh cursor at every segment and track boundary
	SegmentReset SegmentPolicy = "reset"
	// SegmentContinuous keeps one cursor across the whole sequence
	SegmentContinuous SegmentPolicy = "continuous"
)

// ParseSegmentPolicy maps a configuration value to a policy
func ParseSegmentPolicy(s string) (SegmentPolicy, error) {
	switch SegmentPolicy(s) {
	case SegmentReset, "":
		return SegmentReset, nil
	case SegmentContinuous:
		return SegmentContinuous, nil
	}
	return "", fmt.Errorf("unknown segment policy %q", s)
}

// Options configures a Transformer
type Options struct {
	Segments SegmentPolicy
}

// Transformer computes EnrichedPoints from ordered TrackPoints.
// It keeps no state between calls and is safe for concurrent use.
type Transformer struct {
	opts Options
}

// NewTransformer creates a new transformer
func NewTransformer(opts Options) *Transformer {
	if opts.Segments == "" {
		opts.Segments = SegmentReset
	}
	return &Transformer{opts: opts}
}

// Policy returns the segment policy in effect
func (t *Transformer) Policy() SegmentPolicy {
	return t.opts.Segments
}

// Transform enriches points with speed and course. The whole sequence is
// rejected on the first invalid coordinate or backwards timestamp.
func (t *Transformer) Transform(points []models.TrackPoint) ([]models.EnrichedPoint, error) {
	out := make([]models.EnrichedPoint, 0, len(points))

	var prev *models.TrackPoint
	var prevLL s2.LatLng
	for i := range points {
		curr := &points[i]
		if err := validate(curr); err != nil {
			return nil, err
		}
		currLL := s2.LatLngFromDegrees(curr.Latitude, curr.Longitude)

		ep := models.EnrichedPoint{
			Time:      curr.Time,
			Latitude:  curr.Latitude,
			Longitude: curr.Longitude,
		}

		if prev != nil && (prev.Track == curr.Track || t.opts.Segments == SegmentContinuous) {
			if curr.Time.Before(prev.Time) {
				return nil, &NonMonotonicTimeError{
					Track:    curr.Track,
					Segment:  curr.Segment,
					Index:    curr.Index,
					Previous: prev.Time,
					Current:  curr.Time,
				}
			}
		}

		if prev != nil && t.linked(*prev, *curr) {
			ep.Linked = true
			ep.Speed, ep.DuplicateTime = speed(spatial.DistanceS2(prevLL, currLL), curr.Time.Sub(prev.Time).Seconds())
			ep.Course = spatial.BearingS2(prevLL, currLL)
		}

		out = append(out, ep)
		prev, prevLL = curr, currLL
	}

	return out, nil
}

// linked reports whether curr continues from prev under the segment policy
func (t *Transformer) linked(prev, curr models.TrackPoint) bool {
	if t.opts.Segments == SegmentContinuous {
		return true
	}
	return prev.SameSegment(curr)
}

// speed returns meters per second; a zero interval yields 0 and the duplicate flag
func speed(distance, seconds float64) (float64, bool) {
	if seconds <= 0 {
		return 0, true
	}
	v := distance / seconds
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, false
}

func validate(p *models.TrackPoint) error {
	reason := ""
	switch {
	case !spatial.ValidLatLng(p.Latitude, p.Longitude):
		reason = "latitude must be in [-90, 90] and longitude in [-180, 180]"
	case p.Time.IsZero():
		reason = "missing timestamp"
	default:
		return nil
	}
	return &InvalidPointError{
		Track:     p.Track,
		Segment:   p.Segment,
		Index:     p.Index,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Reason:    reason,
	}
}
