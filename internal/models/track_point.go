package models

import "time"

// TrackPoint is a single GPX track point as read from a document.
// Track, Segment and Index locate the point in the source so that a flattened
// sequence still exposes segment boundaries.
type TrackPoint struct {
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Elevation *float64  `json:"elevation,omitempty"`

	Track   int `json:"track"`   // track index in document order
	Segment int `json:"segment"` // segment index within the track
	Index   int `json:"index"`   // position in the flattened sequence
}

// SameSegment reports whether p and q were read from the same track segment
func (p TrackPoint) SameSegment(q TrackPoint) bool {
	return p.Track == q.Track && p.Segment == q.Segment
}

// EnrichedPoint is a track point with derived kinematics, one row of gpx_tracks
type EnrichedPoint struct {
	ID        int64     `json:"id,omitempty" db:"id"`
	Time      time.Time `json:"time" db:"time"`
	Latitude  float64   `json:"latitude" db:"latitude"`
	Longitude float64   `json:"longitude" db:"longitude"`
	Speed     float64   `json:"speed" db:"speed"`   // meters per second
	Course    float64   `json:"course" db:"course"` // degrees, [0, 360)

	// DuplicateTime marks a point whose timestamp equals its predecessor's.
	// Speed is 0 for such points. Not persisted.
	DuplicateTime bool `json:"duplicateTime,omitempty" db:"-"`

	// Linked is set when Speed and Course were derived from the preceding
	// point, i.e. the leg into this point belongs to the track. Not persisted.
	Linked bool `json:"-" db:"-"`
}

// Track is one <trk> of a GPX document with its points flattened in order
type Track struct {
	Name   string       `json:"name,omitempty"`
	Points []TrackPoint `json:"points"`
}

// Document is a parsed GPX document
type Document struct {
	Creator string  `json:"creator,omitempty"`
	Tracks  []Track `json:"tracks"`
}

// Points returns all points of all tracks in document order
func (d *Document) Points() []TrackPoint {
	var n int
	for _, t := range d.Tracks {
		n += len(t.Points)
	}
	points := make([]TrackPoint, 0, n)
	for _, t := range d.Tracks {
		points = append(points, t.Points...)
	}
	return points
}

// TrackPointsResponse represents a paginated response of stored points
type TrackPointsResponse struct {
	Data       []EnrichedPoint `json:"data"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	TotalPages int             `json:"totalPages"`
}

// TrackPointFilter represents filter parameters for querying stored points
type TrackPointFilter struct {
	StartTime int64   `form:"startTime"` // Unix timestamp
	EndTime   int64   `form:"endTime"`   // Unix timestamp
	MinSpeed  float64 `form:"minSpeed"`
	MaxSpeed  float64 `form:"maxSpeed"`
	Page      int     `form:"page"`
	PageSize  int     `form:"pageSize"`
}

// Normalize clamps pagination to the accepted range
func (f *TrackPointFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 100
	}
	if f.PageSize > 1000 {
		f.PageSize = 1000
	}
}
