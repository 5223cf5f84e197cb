package kinematics

import (
	"time"

	"github.com/jengzang/gpx-tracks-etl/internal/models"
	"github.com/jengzang/gpx-tracks-etl/internal/spatial"
)

// Summary holds aggregate figures for one enriched track
type Summary struct {
	Points         int           `json:"points" yaml:"points"`
	DuplicateTimes int           `json:"duplicateTimes" yaml:"duplicateTimes"`
	DistanceM      float64       `json:"distanceM" yaml:"distanceM"`
	Duration       time.Duration `json:"duration" yaml:"duration"`
	AvgSpeed       float64       `json:"avgSpeed" yaml:"avgSpeed"` // distance over duration, m/s
	MaxSpeed       float64       `json:"maxSpeed" yaml:"maxSpeed"`
	MeanCourse     float64       `json:"meanCourse" yaml:"meanCourse"` // circular mean of moving points
}

// Summarize aggregates enriched points. Distance sums only linked legs, so a
// gap between segments under the reset policy is not counted.
func Summarize(points []models.EnrichedPoint) Summary {
	s := Summary{Points: len(points)}
	if len(points) == 0 {
		return s
	}

	var courses []float64
	for i, p := range points {
		if p.DuplicateTime {
			s.DuplicateTimes++
		}
		if p.Speed > s.MaxSpeed {
			s.MaxSpeed = p.Speed
		}
		if p.Speed > 0 {
			courses = append(courses, p.Course)
		}
		if i > 0 && p.Linked {
			prev := points[i-1]
			s.DistanceM += spatial.HaversineDistance(prev.Latitude, prev.Longitude, p.Latitude, p.Longitude)
		}
	}

	s.Duration = points[len(points)-1].Time.Sub(points[0].Time)
	if secs := s.Duration.Seconds(); secs > 0 {
		s.AvgSpeed = s.DistanceM / secs
	}
	s.MeanCourse = spatial.CircularMeanDegrees(courses)

	return s
}
