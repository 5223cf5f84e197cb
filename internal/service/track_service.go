package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jengzang/gpx-tracks-etl/internal/models"
)

// ErrNotFound is returned when a stored point does not exist
var ErrNotFound = errors.New("track point not found")

// TrackStore reads stored points; both the SQLite and Postgres repositories satisfy it
type TrackStore interface {
	GetTrackPoints(ctx context.Context, filter models.TrackPointFilter) ([]models.EnrichedPoint, int64, error)
	GetTrackPointByID(ctx context.Context, id int64) (*models.EnrichedPoint, error)
}

// TrackService handles business logic for stored track points
type TrackService struct {
	store TrackStore
}

// NewTrackService creates a new track service
func NewTrackService(store TrackStore) *TrackService {
	return &TrackService{store: store}
}

// GetTrackPoints retrieves track points with filtering and pagination
func (s *TrackService) GetTrackPoints(ctx context.Context, filter models.TrackPointFilter) (*models.TrackPointsResponse, error) {
	filter.Normalize()
	if filter.MaxSpeed > 0 && filter.MinSpeed > filter.MaxSpeed {
		return nil, fmt.Errorf("minSpeed %g exceeds maxSpeed %g", filter.MinSpeed, filter.MaxSpeed)
	}

	points, total, err := s.store.GetTrackPoints(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get track points: %w", err)
	}
	if points == nil {
		points = []models.EnrichedPoint{}
	}

	return &models.TrackPointsResponse{
		Data:       points,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.PageSize))),
	}, nil
}

// GetTrackPointByID retrieves a single track point by ID
func (s *TrackService) GetTrackPointByID(ctx context.Context, id int64) (*models.EnrichedPoint, error) {
	point, err := s.store.GetTrackPointByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get track point: %w", err)
	}
	if point == nil {
		return nil, ErrNotFound
	}
	return point, nil
}
