package pipeline

import (
	"fmt"
	"time"

	"github.com/jengzang/gpx-tracks-etl/internal/kinematics"
)

// Report describes one ingested GPX document
type Report struct {
	RunID     string        `json:"runId" yaml:"runId"`
	Source    string        `json:"source" yaml:"source"`
	StartedAt time.Time     `json:"startedAt" yaml:"startedAt"`
	Tracks    []TrackReport `json:"tracks" yaml:"tracks"`
	Written   int           `json:"written" yaml:"written"`
}

// TrackReport describes one track of a document after it was written
type TrackReport struct {
	RunID       string             `json:"runId" yaml:"runId"`
	Source      string             `json:"source" yaml:"source"`
	Track       int                `json:"track" yaml:"track"`
	Name        string             `json:"name,omitempty" yaml:"name,omitempty"`
	Written     int                `json:"written" yaml:"written"`
	Summary     kinematics.Summary `json:"summary" yaml:"summary"`
	NotifyError string             `json:"notifyError,omitempty" yaml:"notifyError,omitempty"`
}

// TrackError attaches the source and track to a failure inside one track
type TrackError struct {
	Source string
	Track  int
	Name   string
	Err    error
}

func (e *TrackError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s#%d (%s): %v", e.Source, e.Track, e.Name, e.Err)
	}
	return fmt.Sprintf("%s#%d: %v", e.Source, e.Track, e.Err)
}

func (e *TrackError) Unwrap() error {
	return e.Err
}
