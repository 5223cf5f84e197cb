package kinematics

import (
	"fmt"
	"time"
)

// InvalidPointError reports a point whose coordinates or time cannot be used
type InvalidPointError struct {
	Track     int
	Segment   int
	Index     int
	Latitude  float64
	Longitude float64
	Reason    string
}

func (e *InvalidPointError) Error() string {
	return fmt.Sprintf("invalid point %d (track %d segment %d, lat=%v lon=%v): %s",
		e.Index, e.Track, e.Segment, e.Latitude, e.Longitude, e.Reason)
}

// NonMonotonicTimeError reports a point timestamped strictly before its predecessor
type NonMonotonicTimeError struct {
	Track    int
	Segment  int
	Index    int
	Previous time.Time
	Current  time.Time
}

func (e *NonMonotonicTimeError) Error() string {
	return fmt.Sprintf("point %d (track %d segment %d) at %s precedes previous point at %s",
		e.Index, e.Track, e.Segment,
		e.Current.Format(time.RFC3339Nano), e.Previous.Format(time.RFC3339Nano))
}
