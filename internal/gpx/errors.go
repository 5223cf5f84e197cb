package gpx

import (
	"errors"
	"fmt"
)

// ErrEmptyTrack is returned when a document contains no track points
var ErrEmptyTrack = errors.New("gpx document contains no track points")

var errMissingAttr = errors.New("attribute not present")

// ParseError reports a malformed document or a point missing a required field.
// Track, Segment and Point are -1 when the failure is not tied to a point.
type ParseError struct {
	Track   int
	Segment int
	Point   int
	Msg     string
	Err     error
}

func (e *ParseError) Error() string {
	loc := ""
	if e.Point >= 0 {
		loc = fmt.Sprintf(" at track %d segment %d point %d", e.Track, e.Segment, e.Point)
	}
	if e.Err != nil {
		return fmt.Sprintf("gpx parse error%s: %s: %v", loc, e.Msg, e.Err)
	}
	return fmt.Sprintf("gpx parse error%s: %s", loc, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func documentError(msg string, err error) *ParseError {
	return &ParseError{Track: -1, Segment: -1, Point: -1, Msg: msg, Err: err}
}
